package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// stockChange cambio confirmado de OnHand en una clave.
type stockChange struct {
	Level      entity.StockLevel
	Delta      decimal.Decimal
	MovementID string
}

// productTotals OnHand total del producto antes y después de una operación, leído bajo
// la compuerta del producto. tracked es false si el producto no tiene umbral.
type productTotals struct {
	tracked   bool
	sku       string
	threshold decimal.Decimal
	before    decimal.Decimal
	after     decimal.Decimal
}

// crossedDown indica si el total pasó de >= umbral a < umbral.
func (t productTotals) crossedDown() bool {
	return t.tracked && !t.before.LessThan(t.threshold) && t.after.LessThan(t.threshold)
}

// EventEmitter arma los eventos de dominio después de cada operación confirmada y los
// entrega al publicador. Un fallo del publicador se registra y nunca revierte la operación.
type EventEmitter struct {
	publisher repository.EventPublisher
	levels    repository.StockRepository
	catalog   repository.ProductCatalog
	log       zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	gates map[string]*sync.Mutex
}

// NewEventEmitter construye el emisor. publisher nil desactiva la emisión.
func NewEventEmitter(
	publisher repository.EventPublisher,
	levels repository.StockRepository,
	catalog repository.ProductCatalog,
	log zerolog.Logger,
) *EventEmitter {
	return &EventEmitter{
		publisher: publisher,
		levels:    levels,
		catalog:   catalog,
		log:       log.With().Str("component", "event_emitter").Logger(),
		now:       time.Now,
		gates:     make(map[string]*sync.Mutex),
	}
}

// track ejecuta fn, que cambia el OnHand de claves del producto, y devuelve el total del
// producto antes y después. Para productos con umbral las ejecuciones se serializan por
// producto, así cada cruce del umbral lo observa exactamente una operación. Se llama
// dentro de WithKeys; fn no adquiere otras claves.
func (e *EventEmitter) track(ctx context.Context, tenantID, productID string, fn func() error) (productTotals, error) {
	product := e.thresholdOf(ctx, tenantID, productID)
	if product == nil {
		return productTotals{}, fn()
	}
	gate := e.gate(tenantID + "/" + productID)
	gate.Lock()
	defer gate.Unlock()

	// Un fallo de fn puede llegar tras un consumo parcial: el total se mide igual.
	before, berr := e.productOnHand(ctx, tenantID, productID)
	ferr := fn()
	after, aerr := e.productOnHand(ctx, tenantID, productID)
	if berr != nil || aerr != nil {
		e.log.Warn().Err(multierr.Append(berr, aerr)).Str("product_id", productID).Msg("no se pudo sumar el stock del producto")
		return productTotals{}, ferr
	}
	return productTotals{
		tracked:   true,
		sku:       product.SKU,
		threshold: product.ReorderPoint,
		before:    before,
		after:     after,
	}, ferr
}

func (e *EventEmitter) thresholdOf(ctx context.Context, tenantID, productID string) *entity.ProductInfo {
	if e == nil || e.publisher == nil || e.catalog == nil {
		return nil
	}
	product, err := e.catalog.GetProduct(ctx, tenantID, productID)
	if err != nil {
		e.log.Warn().Err(err).Str("product_id", productID).Msg("no se pudo leer el umbral de stock bajo")
		return nil
	}
	if product == nil || !product.ReorderPoint.IsPositive() {
		return nil
	}
	return product
}

func (e *EventEmitter) gate(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.gates[name]
	if !ok {
		g = &sync.Mutex{}
		e.gates[name] = g
	}
	return g
}

func (e *EventEmitter) productOnHand(ctx context.Context, tenantID, productID string) (decimal.Decimal, error) {
	levels, err := e.levels.ListByProduct(ctx, tenantID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.QuantityOnHand)
	}
	return total, nil
}

// emit publica StockChanged por clave y LowStockCrossed si totals registra el paso del
// total del producto de >= umbral a < umbral.
func (e *EventEmitter) emit(ctx context.Context, tenantID, productID string, changes []stockChange, totals productTotals) {
	if e == nil || e.publisher == nil || len(changes) == 0 {
		return
	}
	at := e.now().UTC()
	events := make([]entity.DomainEvent, 0, len(changes)+1)
	for _, c := range changes {
		if c.Delta.IsZero() {
			continue
		}
		events = append(events, entity.StockChanged{
			TenantID:    tenantID,
			ProductID:   productID,
			LocationID:  c.Level.Key.LocationID,
			BatchNumber: c.Level.Key.BatchNumber,
			NewQuantity: c.Level.QuantityOnHand,
			Delta:       c.Delta,
			MovementID:  c.MovementID,
			At:          at,
		})
	}
	if totals.crossedDown() {
		events = append(events, entity.LowStockCrossed{
			TenantID:        tenantID,
			ProductID:       productID,
			SKU:             totals.sku,
			CurrentQuantity: totals.after,
			Threshold:       totals.threshold,
			At:              at,
		})
	}
	if len(events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		e.log.Warn().Err(err).Str("tenant_id", tenantID).Str("product_id", productID).
			Int("events", len(events)).Msg("no se pudieron publicar los eventos de stock")
	}
}
