package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReservationRepository puerto de persistencia de reservas y sus asignaciones.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	Update(ctx context.Context, r *entity.Reservation) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.Reservation, error)
	ListByReference(ctx context.Context, tenantID string, ref entity.Reference) ([]*entity.Reservation, error)
	// ListActiveByKey reservas no terminales con asignación pendiente en la clave.
	ListActiveByKey(ctx context.Context, key entity.StockKey) ([]*entity.Reservation, error)
	// ListExpired reservas no terminales con ExpiresAt <= now (todas las empresas).
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error)
}
