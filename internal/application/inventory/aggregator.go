package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	dominv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Aggregator mantiene la proyección OnHand/Reserved por clave. Es el único escritor de
// StockLevel; no acepta escrituras directas: OnHand cambia solo vía Apply, Reserved vía ChangeReserved.
// Se invoca siempre bajo la exclusividad otorgada por el KeyCoordinator.
type Aggregator struct {
	levels       repository.StockRepository
	ledger       *Ledger
	reservations repository.ReservationRepository
	log          zerolog.Logger
	now          func() time.Time

	mu    sync.Mutex
	dirty map[string]entity.StockKey // claves con apply fallido pendiente de reconstrucción
}

// NewAggregator construye el agregador.
func NewAggregator(
	levels repository.StockRepository,
	ledger *Ledger,
	reservations repository.ReservationRepository,
	log zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		levels:       levels,
		ledger:       ledger,
		reservations: reservations,
		log:          log.With().Str("component", "aggregator").Logger(),
		now:          time.Now,
		dirty:        make(map[string]entity.StockKey),
	}
}

// CurrentLevel nivel actual; nivel en cero si la clave nunca se vio.
func (a *Aggregator) CurrentLevel(ctx context.Context, key entity.StockKey) (entity.StockLevel, error) {
	l, err := a.levels.Get(ctx, key)
	if err != nil {
		return entity.StockLevel{}, fmt.Errorf("leer nivel %s: %w", key, err)
	}
	if l == nil {
		return entity.NewStockLevel(key), nil
	}
	return *l, nil
}

// Apply aplica un asiento confirmado del ledger sobre la proyección.
func (a *Aggregator) Apply(ctx context.Context, entry entity.MovementEntry) (entity.StockLevel, error) {
	current, err := a.CurrentLevel(ctx, entry.Key)
	if err != nil {
		return entity.StockLevel{}, err
	}
	next, err := dominv.ApplyMovement(current, entry)
	if err != nil {
		return entity.StockLevel{}, err
	}
	if err := a.levels.Save(ctx, next, current.Version); err != nil {
		return entity.StockLevel{}, fmt.Errorf("guardar nivel %s: %w", entry.Key, err)
	}
	return next, nil
}

// ApplyCommitted como Apply, pero para un asiento ya agregado al ledger: si falla, la clave
// queda marcada y se reconstruye desde el ledger antes de devolver el error (fatal para la operación).
func (a *Aggregator) ApplyCommitted(ctx context.Context, entry entity.MovementEntry) (entity.StockLevel, error) {
	level, err := a.Apply(ctx, entry)
	if err == nil {
		return level, nil
	}
	a.markDirty(entry.Key)
	a.log.Error().Err(err).Str("key", entry.Key.String()).Str("movement_id", entry.ID).
		Msg("fallo aplicando movimiento ya registrado, reconstruyendo desde el ledger")
	if _, rerr := a.Rebuild(ctx, entry.Key); rerr != nil {
		a.log.Error().Err(rerr).Str("key", entry.Key.String()).Msg("reconstrucción fallida, la clave queda pendiente")
	}
	return entity.StockLevel{}, fmt.Errorf("aplicar movimiento %s: %w", entry.ID, err)
}

// ChangeReserved suma delta a Reserved de la clave (solo lo usa el gestor de reservas).
func (a *Aggregator) ChangeReserved(ctx context.Context, key entity.StockKey, delta decimal.Decimal) (entity.StockLevel, error) {
	current, err := a.CurrentLevel(ctx, key)
	if err != nil {
		return entity.StockLevel{}, err
	}
	next, err := dominv.ChangeReserved(current, delta)
	if err != nil {
		return entity.StockLevel{}, err
	}
	next.UpdatedAt = a.now()
	if err := a.levels.Save(ctx, next, current.Version); err != nil {
		return entity.StockLevel{}, fmt.Errorf("guardar reservado %s: %w", key, err)
	}
	return next, nil
}

// Rebuild reconstruye la proyección de la clave: OnHand desde el ledger y Reserved desde las
// asignaciones pendientes de reservas activas. El ledger manda si la proyección discrepa.
func (a *Aggregator) Rebuild(ctx context.Context, key entity.StockKey) (entity.StockLevel, error) {
	onHand, err := a.ledger.OnHand(ctx, key)
	if err != nil {
		return entity.StockLevel{}, fmt.Errorf("replay ledger %s: %w", key, err)
	}
	reserved, err := a.activeReserved(ctx, key)
	if err != nil {
		return entity.StockLevel{}, err
	}
	if reserved.GreaterThan(onHand) {
		a.log.Error().Str("key", key.String()).Str("on_hand", onHand.String()).Str("reserved", reserved.String()).
			Msg("reservas activas exceden el stock del ledger; se limita lo reservado")
		reserved = onHand
	}
	current, err := a.CurrentLevel(ctx, key)
	if err != nil {
		return entity.StockLevel{}, err
	}
	next := current
	next.QuantityOnHand = onHand
	next.QuantityReserved = reserved
	next.Version = current.Version + 1
	next.UpdatedAt = a.now()
	if err := a.levels.Save(ctx, next, current.Version); err != nil {
		return entity.StockLevel{}, fmt.Errorf("guardar nivel reconstruido %s: %w", key, err)
	}
	a.clearDirty(key)
	a.log.Warn().Str("key", key.String()).Str("on_hand", onHand.String()).Msg("nivel reconstruido desde el ledger")
	return next, nil
}

// EnsureClean reconstruye la clave si quedó marcada por un fallo anterior.
func (a *Aggregator) EnsureClean(ctx context.Context, keys ...entity.StockKey) error {
	for _, k := range keys {
		if !a.isDirty(k) {
			continue
		}
		if _, err := a.Rebuild(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// ActiveReserved suma de asignaciones pendientes en la clave.
func (a *Aggregator) activeReserved(ctx context.Context, key entity.StockKey) (decimal.Decimal, error) {
	total := decimal.Zero
	if a.reservations == nil {
		return total, nil
	}
	list, err := a.reservations.ListActiveByKey(ctx, key)
	if err != nil {
		return total, fmt.Errorf("reservas activas %s: %w", key, err)
	}
	for _, r := range list {
		for _, alloc := range r.Allocations {
			if alloc.Key.Equal(key) {
				total = total.Add(alloc.Outstanding())
			}
		}
	}
	return total, nil
}

func (a *Aggregator) markDirty(key entity.StockKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty[key.String()] = key
}

func (a *Aggregator) clearDirty(key entity.StockKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.dirty, key.String())
}

func (a *Aggregator) isDirty(key entity.StockKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.dirty[key.String()]
	return ok
}

// commitResult resultado de registrar un movimiento.
type commitResult struct {
	Level    entity.StockLevel
	Entry    entity.MovementEntry
	Applied  bool // false si el ID ya estaba en el ledger
	Appended bool // true si el asiento quedó en el ledger (aunque el apply haya fallado)
}

// commitMovement pre-valida entry contra before, lo agrega al ledger y lo aplica.
// Un ID repetido del mismo movimiento devuelve el nivel actual sin segundo efecto; si el
// ID ya pertenece a otro movimiento del tenant falla con domain.ErrInvalidInput.
func commitMovement(ctx context.Context, ledger *Ledger, agg *Aggregator, before entity.StockLevel, entry entity.MovementEntry) (commitResult, error) {
	existing, err := ledger.Get(ctx, entry.Key.TenantID, entry.ID)
	if err != nil {
		return commitResult{}, err
	}
	if existing != nil {
		if !sameMovement(*existing, entry) {
			return commitResult{}, reusedOperation(entry.ID)
		}
		return commitResult{Level: before, Entry: *existing}, nil
	}
	if err := dominv.CheckMovement(before, entry); err != nil {
		return commitResult{}, err
	}
	stored, err := ledger.Append(ctx, entry)
	if err != nil {
		if isDuplicate(err) {
			if !sameMovement(stored, entry) {
				return commitResult{}, reusedOperation(entry.ID)
			}
			current, cerr := agg.CurrentLevel(ctx, entry.Key)
			return commitResult{Level: current, Entry: stored}, cerr
		}
		return commitResult{}, err
	}
	level, err := agg.ApplyCommitted(ctx, stored)
	if err != nil {
		return commitResult{Entry: stored, Appended: true}, err
	}
	return commitResult{Level: level, Entry: stored, Applied: true, Appended: true}, nil
}

// isStockViolation errores que reflejan el estado real y nunca se reintentan.
func isStockViolation(err error) bool {
	return errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrNegativeStock)
}
