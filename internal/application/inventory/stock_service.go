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
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// ReasonTransferRollback motivo del asiento que compensa un débito de traslado.
const ReasonTransferRollback = "TRANSFER_ROLLBACK"

// ReceiveInput entrada de mercancía a una ubicación.
type ReceiveInput struct {
	OperationID string // opcional; reintentar con el mismo id no duplica la entrada
	TenantID    string
	ProductID   string
	LocationID  string
	Quantity    decimal.Decimal
	BatchNumber string
	ExpiryDate  *time.Time
	Reference   entity.Reference
}

// IssueInput salida de mercancía. Con ReservationID la salida consume esa reserva.
type IssueInput struct {
	OperationID   string
	TenantID      string
	ProductID     string
	LocationID    string
	Quantity      decimal.Decimal
	BatchNumber   string
	ExpiryDate    *time.Time // solo para desambiguar lotes con varios vencimientos
	ReservationID string
	Reference     entity.Reference
}

// TransferInput traslado entre dos ubicaciones del mismo producto/lote.
type TransferInput struct {
	OperationID    string
	TenantID       string
	ProductID      string
	FromLocationID string
	ToLocationID   string
	Quantity       decimal.Decimal
	BatchNumber    string
	ExpiryDate     *time.Time
	Reference      entity.Reference
}

// AdjustInput ajuste con signo (conteo físico, merma, corrección).
type AdjustInput struct {
	OperationID string
	TenantID    string
	ProductID   string
	LocationID  string
	Delta       decimal.Decimal
	BatchNumber string
	ExpiryDate  *time.Time
	ReasonCode  string
	Reference   entity.Reference
}

// TransferResult niveles de origen y destino después del traslado.
type TransferResult struct {
	From entity.StockLevel
	To   entity.StockLevel
}

// StockService operaciones que cambian existencias: entrada, salida, traslado y ajuste.
// Cada operación valida contra los colaboradores, obtiene sus claves del KeyCoordinator,
// agrega al ledger y aplica en el agregador; los eventos salen después de confirmar.
type StockService struct {
	ledger       *Ledger
	agg          *Aggregator
	coord        *KeyCoordinator
	levels       repository.StockRepository
	catalog      repository.ProductCatalog
	locations    repository.LocationDirectory
	reservations *ReservationManager
	events       *EventEmitter
	metrics      Metrics
	log          zerolog.Logger
}

// NewStockService construye el servicio a partir de los componentes del motor.
func NewStockService(c *Components, reservations *ReservationManager) *StockService {
	return &StockService{
		ledger:       c.Ledger,
		agg:          c.Aggregator,
		coord:        c.Coordinator,
		levels:       c.Levels,
		catalog:      c.Catalog,
		locations:    c.Locations,
		reservations: reservations,
		events:       c.Events,
		metrics:      c.Metrics,
		log:          c.Log.With().Str("component", "stock_service").Logger(),
	}
}

// ReceiveStock registra una entrada y devuelve el nivel resultante.
func (s *StockService) ReceiveStock(ctx context.Context, in ReceiveInput) (level entity.StockLevel, err error) {
	defer observe(s.metrics, "receive", time.Now(), &err)

	if err := requireIDs(in.TenantID, in.ProductID, in.LocationID); err != nil {
		return entity.StockLevel{}, err
	}
	if !in.Quantity.IsPositive() {
		return entity.StockLevel{}, fmt.Errorf("%w: la cantidad recibida debe ser positiva", domain.ErrInvalidInput)
	}
	if err := s.validateRefs(ctx, in.TenantID, in.ProductID, in.LocationID); err != nil {
		return entity.StockLevel{}, err
	}
	key := entity.NewStockKey(in.TenantID, in.ProductID, in.LocationID, in.BatchNumber, in.ExpiryDate)
	entry := entity.MovementEntry{
		ID:           operationID(in.OperationID),
		Key:          key,
		Type:         entity.MovementReceipt,
		Quantity:     in.Quantity,
		ToLocationID: in.LocationID,
		Reference:    in.Reference,
	}
	res, totals, err := s.commitSingle(ctx, entry)
	if err != nil {
		return entity.StockLevel{}, err
	}
	s.afterCommit(ctx, "receive", in.TenantID, in.ProductID, res, totals)
	return res.Level, nil
}

// IssueStock registra una salida. Sin reserva exige disponible >= cantidad; con reserva
// consume las asignaciones de esa reserva en la ubicación (y lote) indicados.
func (s *StockService) IssueStock(ctx context.Context, in IssueInput) (level entity.StockLevel, err error) {
	defer observe(s.metrics, "issue", time.Now(), &err)

	if err := requireIDs(in.TenantID, in.ProductID, in.LocationID); err != nil {
		return entity.StockLevel{}, err
	}
	if !in.Quantity.IsPositive() {
		return entity.StockLevel{}, fmt.Errorf("%w: la cantidad a despachar debe ser positiva", domain.ErrInvalidInput)
	}
	if err := s.validateRefs(ctx, in.TenantID, in.ProductID, in.LocationID); err != nil {
		return entity.StockLevel{}, err
	}
	if in.ReservationID != "" {
		return s.issueReserved(ctx, in)
	}

	key, err := s.resolveKey(ctx, in.TenantID, in.ProductID, in.LocationID, in.BatchNumber, in.ExpiryDate)
	if err != nil {
		return entity.StockLevel{}, err
	}
	entry := entity.MovementEntry{
		ID:             operationID(in.OperationID),
		Key:            key,
		Type:           entity.MovementIssue,
		Quantity:       in.Quantity.Neg(),
		FromLocationID: in.LocationID,
		Reference:      in.Reference,
	}
	var (
		res    commitResult
		totals productTotals
	)
	err = s.coord.WithKeys(ctx, []string{key.String()}, func() error {
		var terr error
		totals, terr = s.events.track(ctx, in.TenantID, in.ProductID, func() error {
			if err := s.agg.EnsureClean(ctx, key); err != nil {
				return err
			}
			before, err := s.agg.CurrentLevel(ctx, key)
			if err != nil {
				return err
			}
			exists, err := s.ledger.Exists(ctx, in.TenantID, entry.ID)
			if err != nil {
				return err
			}
			if !exists && before.QuantityAvailable().LessThan(in.Quantity) {
				return domain.NewStockError("issue", domain.ErrInsufficientStock, in.Quantity, before.QuantityAvailable(), key.String())
			}
			res, err = commitMovement(ctx, s.ledger, s.agg, before, entry)
			return err
		})
		return terr
	})
	if err != nil {
		s.logFailure("issue", key, in.Quantity, err)
		return entity.StockLevel{}, err
	}
	s.afterCommit(ctx, "issue", in.TenantID, in.ProductID, res, totals)
	return res.Level, nil
}

func (s *StockService) issueReserved(ctx context.Context, in IssueInput) (entity.StockLevel, error) {
	if s.reservations == nil {
		return entity.StockLevel{}, fmt.Errorf("%w: reservas no habilitadas", domain.ErrInvalidInput)
	}
	out, err := s.reservations.ConsumeForIssue(ctx, ConsumeInput{
		OperationID:   in.OperationID,
		TenantID:      in.TenantID,
		ReservationID: in.ReservationID,
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		LocationID:    in.LocationID,
		BatchNumber:   in.BatchNumber,
	})
	if err != nil {
		return entity.StockLevel{}, err
	}
	if len(out.Levels) == 0 {
		key := entity.NewStockKey(in.TenantID, in.ProductID, in.LocationID, in.BatchNumber, in.ExpiryDate)
		return s.agg.CurrentLevel(ctx, key)
	}
	return out.Levels[0], nil
}

// TransferStock mueve cantidad entre dos ubicaciones como una sola unidad: débito en origen
// y crédito en destino. Si el crédito no llega al ledger, el débito se compensa con un
// reingreso en origen; el total del producto nunca disminuye.
func (s *StockService) TransferStock(ctx context.Context, in TransferInput) (result TransferResult, err error) {
	defer observe(s.metrics, "transfer", time.Now(), &err)

	if err := requireIDs(in.TenantID, in.ProductID, in.FromLocationID); err != nil {
		return TransferResult{}, err
	}
	if strings.TrimSpace(in.ToLocationID) == "" || in.FromLocationID == in.ToLocationID {
		return TransferResult{}, fmt.Errorf("%w: origen y destino deben ser ubicaciones distintas", domain.ErrInvalidInput)
	}
	if !in.Quantity.IsPositive() {
		return TransferResult{}, fmt.Errorf("%w: la cantidad a trasladar debe ser positiva", domain.ErrInvalidInput)
	}
	if err := s.validateRefs(ctx, in.TenantID, in.ProductID, in.FromLocationID, in.ToLocationID); err != nil {
		return TransferResult{}, err
	}
	src, err := s.resolveKey(ctx, in.TenantID, in.ProductID, in.FromLocationID, in.BatchNumber, in.ExpiryDate)
	if err != nil {
		return TransferResult{}, err
	}
	dst := src.WithLocation(in.ToLocationID)

	op := operationID(in.OperationID)
	debit := entity.MovementEntry{
		ID:             op + "/out",
		Key:            src,
		Type:           entity.MovementTransfer,
		Quantity:       in.Quantity.Neg(),
		FromLocationID: in.FromLocationID,
		ToLocationID:   in.ToLocationID,
		Reference:      in.Reference,
	}
	credit := debit
	credit.ID = op + "/in"
	credit.Key = dst
	credit.Quantity = in.Quantity

	var (
		out, inn commitResult
		totals   productTotals
	)
	err = s.coord.WithKeys(ctx, []string{src.String(), dst.String()}, func() error {
		var terr error
		totals, terr = s.events.track(ctx, in.TenantID, in.ProductID, func() error {
			return s.transferLocked(ctx, op, in, src, dst, debit, credit, &out, &inn)
		})
		return terr
	})
	if err != nil {
		s.logFailure("transfer", src, in.Quantity, err)
		return TransferResult{}, err
	}

	changes := make([]stockChange, 0, 2)
	if out.Applied {
		changes = append(changes, stockChange{Level: out.Level, Delta: debit.Quantity, MovementID: debit.ID})
	}
	if inn.Applied {
		changes = append(changes, stockChange{Level: inn.Level, Delta: credit.Quantity, MovementID: credit.ID})
	}
	s.events.emit(ctx, in.TenantID, in.ProductID, changes, totals)
	s.log.Debug().Str("operation_id", op).Str("from", src.String()).Str("to", dst.String()).
		Str("quantity", in.Quantity.String()).Msg("traslado registrado")
	return TransferResult{From: out.Level, To: inn.Level}, nil
}

// transferLocked aplica débito y crédito del traslado; se llama bajo el bloqueo de ambas claves.
func (s *StockService) transferLocked(ctx context.Context, op string, in TransferInput, src, dst entity.StockKey, debit, credit entity.MovementEntry, out, inn *commitResult) error {
	if err := s.agg.EnsureClean(ctx, src, dst); err != nil {
		return err
	}
	rolledBack, err := s.ledger.Exists(ctx, in.TenantID, op+"/rollback")
	if err != nil {
		return err
	}
	if rolledBack {
		return fmt.Errorf("%w: el traslado %s fue revertido; reintente con un nuevo id de operación", domain.ErrInvalidInput, op)
	}
	srcBefore, err := s.agg.CurrentLevel(ctx, src)
	if err != nil {
		return err
	}
	debited, err := s.ledger.Exists(ctx, in.TenantID, debit.ID)
	if err != nil {
		return err
	}
	if !debited && srcBefore.QuantityAvailable().LessThan(in.Quantity) {
		return domain.NewStockError("transfer", domain.ErrInsufficientStock, in.Quantity, srcBefore.QuantityAvailable(), src.String(), dst.String())
	}
	*out, err = commitMovement(ctx, s.ledger, s.agg, srcBefore, debit)
	if err != nil {
		if out.Appended {
			return s.compensateTransfer(ctx, op, debit, err)
		}
		return err
	}
	dstBefore, err := s.agg.CurrentLevel(ctx, dst)
	if err != nil {
		return s.compensateTransfer(ctx, op, debit, err)
	}
	*inn, err = commitMovement(ctx, s.ledger, s.agg, dstBefore, credit)
	if err != nil {
		if inn.Appended {
			// El crédito ya está en el ledger: la reconstrucción del destino lo refleja.
			return err
		}
		return s.compensateTransfer(ctx, op, debit, err)
	}
	return nil
}

// compensateTransfer reingresa en origen el débito ya registrado. Se llama bajo el bloqueo
// de ambas claves.
func (s *StockService) compensateTransfer(ctx context.Context, op string, debit entity.MovementEntry, cause error) error {
	rollback := debit
	rollback.ID = op + "/rollback"
	rollback.Quantity = debit.Quantity.Neg()
	rollback.FromLocationID = debit.ToLocationID
	rollback.ToLocationID = debit.FromLocationID
	rollback.ReasonCode = ReasonTransferRollback
	rollback.OccurredAt = time.Time{}

	before, err := s.agg.CurrentLevel(ctx, debit.Key)
	if err == nil {
		_, err = commitMovement(ctx, s.ledger, s.agg, before, rollback)
	}
	if err != nil {
		s.log.Error().Err(err).AnErr("cause", cause).Str("operation_id", op).Str("key", debit.Key.String()).
			Msg("no se pudo compensar el débito del traslado; requiere reconciliación")
		s.agg.markDirty(debit.Key)
		return multierr.Append(cause, fmt.Errorf("compensar traslado %s: %w", op, err))
	}
	s.log.Warn().Err(cause).Str("operation_id", op).Str("key", debit.Key.String()).
		Msg("crédito del traslado fallido, débito compensado en origen")
	return cause
}

// AdjustStock aplica un ajuste con signo. Un ajuste negativo no puede dejar OnHand por debajo
// de lo reservado ni por debajo de cero.
func (s *StockService) AdjustStock(ctx context.Context, in AdjustInput) (level entity.StockLevel, err error) {
	defer observe(s.metrics, "adjust", time.Now(), &err)

	if err := requireIDs(in.TenantID, in.ProductID, in.LocationID); err != nil {
		return entity.StockLevel{}, err
	}
	if in.Delta.IsZero() {
		return entity.StockLevel{}, fmt.Errorf("%w: el ajuste no puede ser cero", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.ReasonCode) == "" {
		return entity.StockLevel{}, fmt.Errorf("%w: el ajuste requiere código de motivo", domain.ErrInvalidInput)
	}
	if err := s.validateRefs(ctx, in.TenantID, in.ProductID, in.LocationID); err != nil {
		return entity.StockLevel{}, err
	}
	var key entity.StockKey
	if in.Delta.IsPositive() && in.ExpiryDate != nil {
		key = entity.NewStockKey(in.TenantID, in.ProductID, in.LocationID, in.BatchNumber, in.ExpiryDate)
	} else {
		key, err = s.resolveKey(ctx, in.TenantID, in.ProductID, in.LocationID, in.BatchNumber, in.ExpiryDate)
		if err != nil {
			return entity.StockLevel{}, err
		}
	}
	entry := entity.MovementEntry{
		ID:         operationID(in.OperationID),
		Key:        key,
		Type:       entity.MovementAdjustment,
		Quantity:   in.Delta,
		ReasonCode: in.ReasonCode,
		Reference:  in.Reference,
	}
	res, totals, err := s.commitSingle(ctx, entry)
	if err != nil {
		return entity.StockLevel{}, err
	}
	s.afterCommit(ctx, "adjust", in.TenantID, in.ProductID, res, totals)
	return res.Level, nil
}

// commitSingle registra un movimiento de una sola clave bajo su bloqueo.
func (s *StockService) commitSingle(ctx context.Context, entry entity.MovementEntry) (commitResult, productTotals, error) {
	var (
		res    commitResult
		totals productTotals
	)
	err := s.coord.WithKeys(ctx, []string{entry.Key.String()}, func() error {
		var terr error
		totals, terr = s.events.track(ctx, entry.Key.TenantID, entry.Key.ProductID, func() error {
			if err := s.agg.EnsureClean(ctx, entry.Key); err != nil {
				return err
			}
			before, err := s.agg.CurrentLevel(ctx, entry.Key)
			if err != nil {
				return err
			}
			res, err = commitMovement(ctx, s.ledger, s.agg, before, entry)
			return err
		})
		return terr
	})
	if err != nil {
		s.logFailure(strings.ToLower(string(entry.Type)), entry.Key, entry.Quantity.Abs(), err)
	}
	return res, totals, err
}

func (s *StockService) afterCommit(ctx context.Context, op, tenantID, productID string, res commitResult, totals productTotals) {
	if !res.Applied {
		s.log.Debug().Str("op", op).Str("movement_id", res.Entry.ID).Msg("operación ya aplicada, sin efecto")
		return
	}
	s.log.Debug().Str("op", op).Str("movement_id", res.Entry.ID).Str("key", res.Entry.Key.String()).
		Str("quantity", res.Entry.Quantity.String()).Str("on_hand", res.Level.QuantityOnHand.String()).
		Msg("movimiento registrado")
	s.events.emit(ctx, tenantID, productID, []stockChange{{Level: res.Level, Delta: res.Entry.Quantity, MovementID: res.Entry.ID}}, totals)
}

func (s *StockService) logFailure(op string, key entity.StockKey, qty decimal.Decimal, err error) {
	ev := s.log.Warn()
	if !isStockViolation(err) && !errors.Is(err, domain.ErrContention) && !errors.Is(err, domain.ErrInvalidInput) {
		ev = s.log.Error()
	}
	ev.Err(err).Str("op", op).Str("key", key.String()).Str("quantity", qty.String()).Msg("operación de stock rechazada")
}

// validateRefs verifica producto y ubicaciones contra los colaboradores antes de mutar estado.
func (s *StockService) validateRefs(ctx context.Context, tenantID, productID string, locationIDs ...string) error {
	return validateRefs(ctx, s.catalog, s.locations, tenantID, productID, locationIDs...)
}

// resolveKey completa el vencimiento de la clave cuando el llamador no lo indica.
func (s *StockService) resolveKey(ctx context.Context, tenantID, productID, locationID, batch string, expiry *time.Time) (entity.StockKey, error) {
	return resolveKey(ctx, s.levels, tenantID, productID, locationID, batch, expiry)
}

func validateRefs(
	ctx context.Context,
	catalog repository.ProductCatalog,
	locations repository.LocationDirectory,
	tenantID, productID string,
	locationIDs ...string,
) error {
	if catalog != nil {
		ok, err := catalog.ProductExists(ctx, tenantID, productID)
		if err != nil {
			return fmt.Errorf("validar producto %s: %w", productID, err)
		}
		if !ok {
			return fmt.Errorf("%w: producto %s", domain.ErrInvalidReference, productID)
		}
	}
	if locations != nil {
		for _, loc := range locationIDs {
			ok, err := locations.LocationExists(ctx, tenantID, loc)
			if err != nil {
				return fmt.Errorf("validar ubicación %s: %w", loc, err)
			}
			if !ok {
				return fmt.Errorf("%w: ubicación %s", domain.ErrInvalidReference, loc)
			}
		}
	}
	return nil
}

// resolveKey sin vencimiento explícito busca la clave existente con ese lote en la ubicación:
// ninguna = clave sin vencimiento, una = esa, varias = ambiguo (el llamador debe indicar el vencimiento).
func resolveKey(
	ctx context.Context,
	levels repository.StockRepository,
	tenantID, productID, locationID, batch string,
	expiry *time.Time,
) (entity.StockKey, error) {
	key := entity.NewStockKey(tenantID, productID, locationID, batch, expiry)
	if expiry != nil {
		return key, nil
	}
	all, err := levels.ListByProduct(ctx, tenantID, productID)
	if err != nil {
		return entity.StockKey{}, fmt.Errorf("resolver clave: %w", err)
	}
	var matches []entity.StockKey
	for _, l := range all {
		if l.Key.LocationID == locationID && l.Key.BatchNumber == key.BatchNumber {
			matches = append(matches, l.Key)
		}
	}
	switch len(matches) {
	case 0:
		return key, nil
	case 1:
		return matches[0], nil
	default:
		return entity.StockKey{}, &domain.StockError{
			Op:   "resolve",
			Keys: entity.KeyStrings(matches...),
			Err:  fmt.Errorf("%w: el lote tiene varios vencimientos en la ubicación; indique el vencimiento", domain.ErrInvalidInput),
		}
	}
}

func requireIDs(tenantID, productID, locationID string) error {
	switch {
	case strings.TrimSpace(tenantID) == "":
		return fmt.Errorf("%w: tenant requerido", domain.ErrInvalidInput)
	case strings.TrimSpace(productID) == "":
		return fmt.Errorf("%w: producto requerido", domain.ErrInvalidInput)
	case strings.TrimSpace(locationID) == "":
		return fmt.Errorf("%w: ubicación requerida", domain.ErrInvalidInput)
	}
	return nil
}

// operationID id de la operación; si el llamador no lo indica se genera uno.
func operationID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

// observe registra duración y resultado de la operación.
func observe(m Metrics, op string, start time.Time, err *error) {
	m.ObserveOperation(op, resultLabel(*err), time.Since(start))
}
