package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	dominv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Ledger registro solo-agregar de todos los movimientos; es la fuente de verdad del OnHand.
type Ledger struct {
	repo repository.InventoryMovementRepository
	now  func() time.Time
}

// NewLedger construye el ledger sobre el repositorio de movimientos.
func NewLedger(repo repository.InventoryMovementRepository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Append agrega entry. Si el ID ya existe devuelve el asiento original junto con
// domain.ErrDuplicateOperation, sin crear un segundo efecto.
func (l *Ledger) Append(ctx context.Context, entry entity.MovementEntry) (entity.MovementEntry, error) {
	if entry.ID == "" || !entry.Key.IsComplete() || !entry.Type.IsValid() || entry.Quantity.IsZero() {
		return entity.MovementEntry{}, domain.ErrInvalidInput
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = l.now()
	}
	stored, created, err := l.repo.Append(ctx, entry)
	if err != nil {
		return entity.MovementEntry{}, fmt.Errorf("append movimiento %s: %w", entry.ID, err)
	}
	if !created {
		return stored, domain.ErrDuplicateOperation
	}
	return stored, nil
}

// Exists indica si el tenant ya confirmó un asiento con ese ID.
func (l *Ledger) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	m, err := l.Get(ctx, tenantID, id)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// Get asiento del tenant por ID; nil si no existe.
func (l *Ledger) Get(ctx context.Context, tenantID, id string) (*entity.MovementEntry, error) {
	return l.repo.GetByID(ctx, tenantID, id)
}

// Replay asientos de la clave en orden de inserción.
func (l *Ledger) Replay(ctx context.Context, key entity.StockKey) ([]entity.MovementEntry, error) {
	return l.repo.ListByKey(ctx, key)
}

// OnHand reconstruye el OnHand de la clave sumando su historial.
func (l *Ledger) OnHand(ctx context.Context, key entity.StockKey) (decimal.Decimal, error) {
	entries, err := l.Replay(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return dominv.ReplayOnHand(entries), nil
}

// List lectura paginada del historial.
func (l *Ledger) List(ctx context.Context, filter repository.MovementFilter) ([]entity.MovementEntry, error) {
	return l.repo.List(ctx, filter)
}

// Keys claves con historial para el tenant.
func (l *Ledger) Keys(ctx context.Context, tenantID string) ([]entity.StockKey, error) {
	return l.repo.Keys(ctx, tenantID)
}

// sameMovement indica si stored es el mismo movimiento que entry (reintento legítimo).
func sameMovement(stored, entry entity.MovementEntry) bool {
	return stored.Key.String() == entry.Key.String() &&
		stored.Type == entry.Type &&
		stored.Quantity.Equal(entry.Quantity)
}

// reusedOperation error para un ID de operación ya usado por otro movimiento del tenant.
func reusedOperation(id string) error {
	return fmt.Errorf("%w: el id de operación %s ya se usó para otro movimiento", domain.ErrInvalidInput, id)
}

// isDuplicate atajo para el caso idempotente.
func isDuplicate(err error) bool { return errors.Is(err, domain.ErrDuplicateOperation) }
