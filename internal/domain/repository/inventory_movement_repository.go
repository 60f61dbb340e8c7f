package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementFilter filtro de lectura del ledger.
type MovementFilter struct {
	TenantID   string
	ProductID  string
	LocationID string // opcional
	Limit      int
	Offset     int
}

// InventoryMovementRepository puerto de persistencia del ledger de movimientos (solo-agregar).
// Los IDs son únicos por tenant. Append es idempotente por (tenant, ID): si ya existe
// devuelve el asiento original y created=false.
// Las lecturas devuelven los asientos en orden de inserción (Sequence ascendente).
type InventoryMovementRepository interface {
	Append(ctx context.Context, entry entity.MovementEntry) (stored entity.MovementEntry, created bool, err error)
	GetByID(ctx context.Context, tenantID, id string) (*entity.MovementEntry, error)
	ListByKey(ctx context.Context, key entity.StockKey) ([]entity.MovementEntry, error)
	List(ctx context.Context, filter MovementFilter) ([]entity.MovementEntry, error)
	// Keys devuelve todas las claves con al menos un asiento para el tenant.
	Keys(ctx context.Context, tenantID string) ([]entity.StockKey, error)
}
