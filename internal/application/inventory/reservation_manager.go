package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	dominv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// ReserveInput solicitud de reserva para una línea de demanda.
type ReserveInput struct {
	ReservationID string // opcional; repetir el id devuelve la reserva existente
	TenantID      string
	ProductID     string
	Quantity      decimal.Decimal
	LocationID    string     // opcional: solo esa ubicación
	BatchNumber   string     // opcional: solo ese lote
	ExpiryDate    *time.Time // opcional con BatchNumber
	Reference     entity.Reference
	ExpiresAt     *time.Time // opcional; por defecto ahora + TTL configurado
}

// ReleaseInput liberación total (Quantity nil) o parcial de una reserva.
type ReleaseInput struct {
	TenantID      string
	ReservationID string
	Quantity      *decimal.Decimal
}

// ConsumeInput conversión de lo reservado en salida real.
type ConsumeInput struct {
	OperationID   string
	TenantID      string
	ReservationID string
	ProductID     string // opcional; si viene debe coincidir con la reserva
	Quantity      decimal.Decimal
	AllowShort    bool
	LocationID    string // opcional: solo asignaciones en esa ubicación
	BatchNumber   string // opcional: solo asignaciones de ese lote
}

// ConsumeResult resultado de consumir una reserva.
type ConsumeResult struct {
	Issued      decimal.Decimal
	Short       decimal.Decimal
	Released    decimal.Decimal
	Reservation *entity.Reservation
	Levels      []entity.StockLevel // niveles de las claves despachadas, en orden de asignación
}

// ReservationManager único escritor de QuantityReserved. Asigna por FEFO, todo-o-nada,
// y lleva el ciclo de vida Active -> PartiallyConsumed -> Consumed | Released.
type ReservationManager struct {
	ledger    *Ledger
	agg       *Aggregator
	coord     *KeyCoordinator
	repo      repository.ReservationRepository
	levels    repository.StockRepository
	catalog   repository.ProductCatalog
	locations repository.LocationDirectory
	events    *EventEmitter
	metrics   Metrics
	ttl       time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewReservationManager construye el gestor de reservas.
func NewReservationManager(c *Components) *ReservationManager {
	return &ReservationManager{
		ledger:    c.Ledger,
		agg:       c.Aggregator,
		coord:     c.Coordinator,
		repo:      c.Reservations,
		levels:    c.Levels,
		catalog:   c.Catalog,
		locations: c.Locations,
		events:    c.Events,
		metrics:   c.Metrics,
		ttl:       c.Config.ReservationTTL,
		log:       c.Log.With().Str("component", "reservation_manager").Logger(),
		now:       time.Now,
	}
}

func reservationLock(id string) string { return "reservation:" + id }

// Reserve asigna quantity del producto. Con lote (y ubicación) reserva solo de esas claves;
// sin filtros recorre las candidatas en orden FEFO. Si el disponible total no alcanza falla
// InsufficientStock y ninguna clave cambia.
func (m *ReservationManager) Reserve(ctx context.Context, in ReserveInput) (res *entity.Reservation, err error) {
	defer observe(m.metrics, "reserve", time.Now(), &err)

	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.ProductID) == "" {
		return nil, fmt.Errorf("%w: tenant y producto requeridos", domain.ErrInvalidInput)
	}
	if !in.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad a reservar debe ser positiva", domain.ErrInvalidInput)
	}
	var locs []string
	if in.LocationID != "" {
		locs = append(locs, in.LocationID)
	}
	if err := validateRefs(ctx, m.catalog, m.locations, in.TenantID, in.ProductID, locs...); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(in.ReservationID)
	if id == "" {
		id = uuid.NewString()
	} else if existing, err := m.repo.GetByID(ctx, in.TenantID, id); err != nil {
		return nil, fmt.Errorf("leer reserva %s: %w", id, err)
	} else if existing != nil {
		return existing, sameProduct(existing, in.ProductID)
	}

	candidates, err := m.candidateKeys(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.NewStockError("reserve", domain.ErrInsufficientStock, in.Quantity, decimal.Zero)
	}
	names := append(entity.KeyStrings(candidates...), reservationLock(id))

	err = m.coord.WithKeys(ctx, names, func() error {
		if existing, err := m.repo.GetByID(ctx, in.TenantID, id); err != nil {
			return err
		} else if existing != nil {
			res = existing
			return sameProduct(existing, in.ProductID)
		}
		if err := m.agg.EnsureClean(ctx, candidates...); err != nil {
			return err
		}
		current := make([]entity.StockLevel, 0, len(candidates))
		for _, k := range candidates {
			l, err := m.agg.CurrentLevel(ctx, k)
			if err != nil {
				return err
			}
			current = append(current, l)
		}
		codes, err := locationCodes(ctx, m.locations, in.TenantID, current)
		if err != nil {
			return err
		}
		plan, err := dominv.PlanFEFO(in.Quantity, current, codes)
		if err != nil {
			return err
		}
		if !plan.FullyCovered() {
			return domain.NewStockError("reserve", domain.ErrInsufficientStock, in.Quantity, plan.TotalAvailable, entity.KeyStrings(candidates...)...)
		}

		applied := make([]dominv.PlanLine, 0, len(plan.Lines))
		for _, line := range plan.Lines {
			if _, err := m.agg.ChangeReserved(ctx, line.Key, line.Quantity); err != nil {
				return m.undoReserved(ctx, applied, err)
			}
			applied = append(applied, line)
		}

		now := m.now().UTC()
		r := &entity.Reservation{
			ID:                id,
			TenantID:          in.TenantID,
			ProductID:         in.ProductID,
			RequestedQuantity: in.Quantity,
			Allocations:       make([]entity.Allocation, 0, len(plan.Lines)),
			Reference:         in.Reference,
			Status:            entity.ReservationActive,
			ExpiresAt:         m.expiresAt(in.ExpiresAt, now),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		for _, line := range plan.Lines {
			r.Allocations = append(r.Allocations, entity.Allocation{
				Key:      line.Key,
				Quantity: line.Quantity,
				Consumed: decimal.Zero,
				Released: decimal.Zero,
			})
		}
		if err := m.repo.Create(ctx, r); err != nil {
			return m.undoReserved(ctx, applied, fmt.Errorf("guardar reserva %s: %w", id, err))
		}
		res = r
		return nil
	})
	if err != nil {
		m.log.Warn().Err(err).Str("product_id", in.ProductID).Str("quantity", in.Quantity.String()).Msg("reserva rechazada")
		return nil, err
	}
	m.log.Debug().Str("reservation_id", res.ID).Int("allocations", len(res.Allocations)).
		Str("quantity", res.RequestedQuantity.String()).Msg("reserva creada")
	return res, nil
}

// candidateKeys claves del producto que cumplen los filtros de ubicación, lote y vencimiento.
func (m *ReservationManager) candidateKeys(ctx context.Context, in ReserveInput) ([]entity.StockKey, error) {
	levels, err := m.levels.ListByProduct(ctx, in.TenantID, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("candidatas de reserva: %w", err)
	}
	batch := strings.TrimSpace(in.BatchNumber)
	expiry := entity.NormalizeDate(in.ExpiryDate)
	keys := make([]entity.StockKey, 0, len(levels))
	for _, l := range levels {
		k := l.Key
		if in.LocationID != "" && k.LocationID != in.LocationID {
			continue
		}
		if batch != "" && k.BatchNumber != batch {
			continue
		}
		if expiry != nil && (k.ExpiryDate == nil || !k.ExpiryDate.Equal(*expiry)) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *ReservationManager) expiresAt(requested *time.Time, now time.Time) *time.Time {
	if requested != nil {
		t := requested.UTC()
		return &t
	}
	if m.ttl <= 0 {
		return nil
	}
	t := now.Add(m.ttl)
	return &t
}

// undoReserved revierte incrementos de reservado ya aplicados en esta operación.
func (m *ReservationManager) undoReserved(ctx context.Context, applied []dominv.PlanLine, cause error) error {
	err := cause
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		if _, uerr := m.agg.ChangeReserved(ctx, line.Key, line.Quantity.Neg()); uerr != nil {
			m.agg.markDirty(line.Key)
			err = multierr.Append(err, fmt.Errorf("revertir reservado %s: %w", line.Key, uerr))
		}
	}
	return err
}

// Release libera la reserva completa o una parte repartida en proporción a lo pendiente
// de cada asignación. Al quedar sin pendiente pasa a Released.
func (m *ReservationManager) Release(ctx context.Context, in ReleaseInput) (res *entity.Reservation, err error) {
	defer observe(m.metrics, "release", time.Now(), &err)

	r, err := m.load(ctx, in.TenantID, in.ReservationID)
	if err != nil {
		return nil, err
	}
	names := append(entity.KeyStrings(r.Keys()...), reservationLock(r.ID))
	err = m.coord.WithKeys(ctx, names, func() error {
		r, err = m.load(ctx, in.TenantID, in.ReservationID)
		if err != nil {
			return err
		}
		if r.Status.IsTerminal() {
			return fmt.Errorf("reserva %s (%s): %w", r.ID, r.Status, domain.ErrAlreadyTerminal)
		}
		outstanding := r.Outstanding()
		qty := outstanding
		if in.Quantity != nil {
			qty = *in.Quantity
		}
		if !qty.IsPositive() || qty.GreaterThan(outstanding) {
			return domain.NewStockError("release", domain.ErrInvalidInput, qty, outstanding, entity.KeyStrings(r.Keys()...)...)
		}
		if err := m.agg.EnsureClean(ctx, r.Keys()...); err != nil {
			return err
		}
		caps := make([]decimal.Decimal, len(r.Allocations))
		for i, a := range r.Allocations {
			caps[i] = a.Outstanding()
		}
		parts, err := dominv.SplitProportionally(qty, caps)
		if err != nil {
			return err
		}
		return m.releaseParts(ctx, r, parts)
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug().Str("reservation_id", r.ID).Str("status", string(r.Status)).Msg("reserva liberada")
	return r, nil
}

// releaseParts baja el reservado de cada asignación y persiste la reserva; ante un fallo
// revierte lo ya liberado. Se llama bajo el bloqueo de las claves de la reserva.
func (m *ReservationManager) releaseParts(ctx context.Context, r *entity.Reservation, parts []decimal.Decimal) error {
	now := m.now().UTC()
	done := make([]dominv.PlanLine, 0, len(parts))
	for i, part := range parts {
		if !part.IsPositive() {
			continue
		}
		key := r.Allocations[i].Key
		if _, err := m.agg.ChangeReserved(ctx, key, part.Neg()); err != nil {
			return m.undoReleased(ctx, done, err)
		}
		done = append(done, dominv.PlanLine{Key: key, Quantity: part})
		r.RecordRelease(i, part, now)
	}
	settle(r)
	if err := m.repo.Update(ctx, r); err != nil {
		return m.undoReleased(ctx, done, fmt.Errorf("guardar reserva %s: %w", r.ID, err))
	}
	return nil
}

func (m *ReservationManager) undoReleased(ctx context.Context, done []dominv.PlanLine, cause error) error {
	err := cause
	for i := len(done) - 1; i >= 0; i-- {
		if _, uerr := m.agg.ChangeReserved(ctx, done[i].Key, done[i].Quantity); uerr != nil {
			m.agg.markDirty(done[i].Key)
			err = multierr.Append(err, fmt.Errorf("revertir liberación %s: %w", done[i].Key, uerr))
		}
	}
	return err
}

// consumeLine salida planeada contra una asignación.
type consumeLine struct {
	index  int
	level  entity.StockLevel
	amount decimal.Decimal
}

// ConsumeForIssue convierte lo reservado en salidas reales contra las mismas claves, en orden
// de asignación. Sin AllowShort, si lo despachable no alcanza, falla InsufficientStock sin mutar
// nada. Con AllowShort despacha lo que hay, registra el faltante y libera esa parte de la reserva.
func (m *ReservationManager) ConsumeForIssue(ctx context.Context, in ConsumeInput) (out ConsumeResult, err error) {
	defer observe(m.metrics, "consume", time.Now(), &err)

	if !in.Quantity.IsPositive() {
		return ConsumeResult{}, fmt.Errorf("%w: la cantidad a consumir debe ser positiva", domain.ErrInvalidInput)
	}
	r, err := m.load(ctx, in.TenantID, in.ReservationID)
	if err != nil {
		return ConsumeResult{}, err
	}
	if err := sameProduct(r, in.ProductID); err != nil {
		return ConsumeResult{}, err
	}
	eligible := eligibleAllocations(r, in.LocationID, in.BatchNumber)
	if len(eligible) == 0 {
		if r.Status.IsTerminal() {
			return ConsumeResult{}, fmt.Errorf("reserva %s (%s): %w", r.ID, r.Status, domain.ErrAlreadyTerminal)
		}
		return ConsumeResult{}, fmt.Errorf("%w: la reserva %s no tiene asignaciones en la ubicación/lote indicados", domain.ErrInvalidInput, r.ID)
	}
	keys := make([]entity.StockKey, 0, len(eligible))
	for _, i := range eligible {
		keys = append(keys, r.Allocations[i].Key)
	}
	op := operationID(in.OperationID)
	names := append(entity.KeyStrings(keys...), reservationLock(r.ID))

	var (
		changes []stockChange
		totals  productTotals
	)
	err = m.coord.WithKeys(ctx, names, func() error {
		var terr error
		totals, terr = m.events.track(ctx, r.TenantID, r.ProductID, func() error {
			r, err = m.load(ctx, in.TenantID, in.ReservationID)
			if err != nil {
				return err
			}
			if done, err := m.alreadyConsumed(ctx, r, op); err != nil || done != nil {
				if done != nil {
					out = *done
				}
				return err
			}
			if r.Status.IsTerminal() {
				return fmt.Errorf("reserva %s (%s): %w", r.ID, r.Status, domain.ErrAlreadyTerminal)
			}
			if err := m.agg.EnsureClean(ctx, keys...); err != nil {
				return err
			}

			lines, issuable, err := m.planConsumption(ctx, r, eligible, in.Quantity)
			if err != nil {
				return err
			}
			short := in.Quantity.Sub(issuable)
			if short.IsPositive() && !in.AllowShort {
				return domain.NewStockError("consume", domain.ErrInsufficientStock, in.Quantity, issuable, entity.KeyStrings(keys...)...)
			}

			now := m.now().UTC()
			out = ConsumeResult{Issued: decimal.Zero, Short: decimal.Zero, Released: decimal.Zero}
			var cerr error
			for _, line := range lines {
				alloc := r.Allocations[line.index]
				entry := entity.MovementEntry{
					ID:             fmt.Sprintf("%s/%d", op, line.index),
					Key:            alloc.Key,
					Type:           entity.MovementIssue,
					Quantity:       line.amount.Neg(),
					FromLocationID: alloc.Key.LocationID,
					ReservationID:  r.ID,
					Reference:      r.Reference,
				}
				res, err := commitMovement(ctx, m.ledger, m.agg, line.level, entry)
				if err != nil && !res.Appended {
					cerr = err
					break
				}
				// Un asiento en el ledger cuenta como consumido aunque el apply haya fallado:
				// la reconstrucción de la clave lo refleja.
				r.RecordConsumption(line.index, line.amount, now)
				out.Issued = out.Issued.Add(line.amount)
				if err != nil {
					cerr = err
					break
				}
				out.Levels = append(out.Levels, res.Level)
				changes = append(changes, stockChange{Level: res.Level, Delta: entry.Quantity, MovementID: entry.ID})
			}

			if cerr == nil && in.AllowShort && short.IsPositive() {
				released, err := m.releaseShort(ctx, r, eligible, short, now)
				out.Released = released
				cerr = err
			}
			out.Short = in.Quantity.Sub(out.Issued)
			if cerr != nil {
				if out.Issued.IsZero() {
					return cerr
				}
				out.Short = decimal.Zero
			}
			settle(r)
			if err := m.repo.Update(ctx, r); err != nil {
				for _, k := range keys {
					m.agg.markDirty(k)
				}
				return multierr.Append(cerr, fmt.Errorf("guardar reserva %s: %w", r.ID, err))
			}
			out.Reservation = r
			return cerr
		})
		return terr
	})
	if len(changes) > 0 {
		m.events.emit(ctx, r.TenantID, r.ProductID, changes, totals)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("reservation_id", in.ReservationID).Str("quantity", in.Quantity.String()).Msg("consumo de reserva rechazado")
		return out, err
	}
	m.log.Debug().Str("reservation_id", r.ID).Str("issued", out.Issued.String()).Str("short", out.Short.String()).
		Str("status", string(r.Status)).Msg("reserva consumida")
	return out, nil
}

// planConsumption reparte qty sobre las asignaciones elegibles, limitado por lo pendiente
// y por las existencias reales de cada clave.
func (m *ReservationManager) planConsumption(ctx context.Context, r *entity.Reservation, eligible []int, qty decimal.Decimal) ([]consumeLine, decimal.Decimal, error) {
	remaining := qty
	issuable := decimal.Zero
	lines := make([]consumeLine, 0, len(eligible))
	for _, i := range eligible {
		if !remaining.IsPositive() {
			break
		}
		alloc := r.Allocations[i]
		level, err := m.agg.CurrentLevel(ctx, alloc.Key)
		if err != nil {
			return nil, decimal.Zero, err
		}
		take := decimal.Min(remaining, alloc.Outstanding(), level.QuantityOnHand, level.QuantityReserved)
		if !take.IsPositive() {
			continue
		}
		lines = append(lines, consumeLine{index: i, level: level, amount: take})
		issuable = issuable.Add(take)
		remaining = remaining.Sub(take)
	}
	return lines, issuable, nil
}

// releaseShort libera hasta short de lo que sigue pendiente en las asignaciones elegibles.
func (m *ReservationManager) releaseShort(ctx context.Context, r *entity.Reservation, eligible []int, short decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	released := decimal.Zero
	remaining := short
	for _, i := range eligible {
		if !remaining.IsPositive() {
			break
		}
		part := decimal.Min(remaining, r.Allocations[i].Outstanding())
		if !part.IsPositive() {
			continue
		}
		key := r.Allocations[i].Key
		if _, err := m.agg.ChangeReserved(ctx, key, part.Neg()); err != nil {
			m.agg.markDirty(key)
			return released, fmt.Errorf("liberar faltante %s: %w", key, err)
		}
		r.RecordRelease(i, part, now)
		released = released.Add(part)
		remaining = remaining.Sub(part)
	}
	return released, nil
}

// alreadyConsumed detecta un reintento de la misma operación de consumo. Devuelve nil si
// ningún asiento de la operación existe todavía.
func (m *ReservationManager) alreadyConsumed(ctx context.Context, r *entity.Reservation, op string) (*ConsumeResult, error) {
	issued := decimal.Zero
	var levels []entity.StockLevel
	for i, a := range r.Allocations {
		e, err := m.ledger.Get(ctx, r.TenantID, fmt.Sprintf("%s/%d", op, i))
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		if e.ReservationID != r.ID || e.Key.String() != a.Key.String() {
			return nil, reusedOperation(e.ID)
		}
		issued = issued.Add(e.Quantity.Neg())
		l, err := m.agg.CurrentLevel(ctx, a.Key)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	if len(levels) == 0 {
		return nil, nil
	}
	return &ConsumeResult{Issued: issued, Short: decimal.Zero, Released: decimal.Zero, Reservation: r, Levels: levels}, nil
}

// GetReservation devuelve la reserva o domain.ErrNotFound.
func (m *ReservationManager) GetReservation(ctx context.Context, tenantID, id string) (*entity.Reservation, error) {
	return m.load(ctx, tenantID, id)
}

// ListByReference reservas creadas para el documento externo indicado.
func (m *ReservationManager) ListByReference(ctx context.Context, tenantID string, ref entity.Reference) ([]*entity.Reservation, error) {
	if strings.TrimSpace(ref.Type) == "" || strings.TrimSpace(ref.ID) == "" {
		return nil, fmt.Errorf("%w: tipo e id de referencia requeridos", domain.ErrInvalidInput)
	}
	return m.repo.ListByReference(ctx, tenantID, ref)
}

func (m *ReservationManager) load(ctx context.Context, tenantID, id string) (*entity.Reservation, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: tenant e id de reserva requeridos", domain.ErrInvalidInput)
	}
	r, err := m.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("leer reserva %s: %w", id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("reserva %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func sameProduct(r *entity.Reservation, productID string) error {
	if productID != "" && r.ProductID != productID {
		return fmt.Errorf("%w: la reserva %s es del producto %s", domain.ErrInvalidInput, r.ID, r.ProductID)
	}
	return nil
}

// eligibleAllocations índices con pendiente que cumplen los filtros, en orden de asignación.
func eligibleAllocations(r *entity.Reservation, locationID, batch string) []int {
	batch = strings.TrimSpace(batch)
	idx := make([]int, 0, len(r.Allocations))
	for i, a := range r.Allocations {
		if locationID != "" && a.Key.LocationID != locationID {
			continue
		}
		if batch != "" && a.Key.BatchNumber != batch {
			continue
		}
		if a.Outstanding().IsPositive() {
			idx = append(idx, i)
		}
	}
	return idx
}

// settle estado final: con algo consumido sigue la rama de consumo, si no la de liberación.
func settle(r *entity.Reservation) {
	if r.ConsumedQuantity().IsPositive() {
		r.SettleAfterConsume()
		return
	}
	r.SettleAfterRelease()
}

// isTerminalErr atajo para el barrido de vencimientos.
func isTerminalErr(err error) bool { return errors.Is(err, domain.ErrAlreadyTerminal) }
