package inventory

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	dominv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture compartida
// ──────────────────────────────────────────────────────────────────────────────

const (
	tenantA = "tenant-a"
	tenantB = "tenant-b"
	sku1    = "SKU-1"
	sku2    = "SKU-2"
	loc1    = "LOC-1"
	loc2    = "LOC-2"
	loc3    = "LOC-3"
	wh1     = "WH-1"
	wh2     = "WH-2"
)

type fixture struct {
	engine       *Engine
	movements    repository.InventoryMovementRepository
	levels       repository.StockRepository
	reservations *memory.ReservationStore
	publisher    *memory.RecordingPublisher
	catalog      *memory.Catalog
	locations    *memory.Locations
}

type fixtureOption func(*Stores)

func withMovements(repo repository.InventoryMovementRepository) fixtureOption {
	return func(s *Stores) { s.Movements = repo }
}

func withLevels(repo repository.StockRepository) fixtureOption {
	return func(s *Stores) { s.Levels = repo }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	catalog := memory.NewCatalog(
		entity.ProductInfo{ID: sku1, TenantID: tenantA, SKU: sku1, UnitMeasure: "UND", ReorderPoint: decimal.NewFromInt(10)},
		entity.ProductInfo{ID: sku2, TenantID: tenantA, SKU: sku2, UnitMeasure: "KG"},
		entity.ProductInfo{ID: sku1, TenantID: tenantB, SKU: sku1, UnitMeasure: "UND"},
	)
	locations := memory.NewLocations(
		entity.Location{ID: loc1, TenantID: tenantA, WarehouseID: wh1, Code: loc1},
		entity.Location{ID: loc2, TenantID: tenantA, WarehouseID: wh1, Code: loc2},
		entity.Location{ID: loc3, TenantID: tenantA, WarehouseID: wh2, Code: loc3},
		entity.Location{ID: loc1, TenantID: tenantB, WarehouseID: wh1, Code: loc1},
	)
	reservations := memory.NewReservationStore()
	publisher := memory.NewRecordingPublisher()
	stores := Stores{
		Movements:    memory.NewMovementStore(),
		Levels:       memory.NewStockStore(),
		Reservations: reservations,
		Catalog:      catalog,
		Locations:    locations,
		Publisher:    publisher,
	}
	for _, opt := range opts {
		opt(&stores)
	}
	cfg := EngineConfig{Coordinator: CoordinatorConfig{KeyTimeout: 2 * time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond}}
	return &fixture{
		engine:       NewEngine(stores, cfg, nil, zerolog.Nop()),
		movements:    stores.Movements,
		levels:       stores.Levels,
		reservations: reservations,
		publisher:    publisher,
		catalog:      catalog,
		locations:    locations,
	}
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func (f *fixture) receive(t *testing.T, loc, batch string, expiry *time.Time, n int64) entity.StockLevel {
	t.Helper()
	l, err := f.engine.Stock.ReceiveStock(context.Background(), ReceiveInput{
		TenantID: tenantA, ProductID: sku1, LocationID: loc, Quantity: qty(n),
		BatchNumber: batch, ExpiryDate: expiry, Reference: entity.Reference{Type: "PO", ID: "PO-1"},
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) level(t *testing.T, loc, batch string, expiry *time.Time) entity.StockLevel {
	t.Helper()
	l, err := f.engine.Components.Aggregator.CurrentLevel(context.Background(), entity.NewStockKey(tenantA, sku1, loc, batch, expiry))
	require.NoError(t, err)
	return l
}

func (f *fixture) available(t *testing.T) decimal.Decimal {
	t.Helper()
	v, err := f.engine.Query.GetAvailableQuantity(context.Background(), tenantA, sku1, "", "")
	require.NoError(t, err)
	return v
}

// assertConsistent verifica on-hand >= 0 y reserved <= on-hand en cada clave, la equivalencia con el ledger y que
// Reserved coincida con lo pendiente de las reservas activas.
func (f *fixture) assertConsistent(t *testing.T, tenantID string) {
	t.Helper()
	ctx := context.Background()
	levels, err := f.levels.ListByTenant(ctx, tenantID, "")
	require.NoError(t, err)
	for _, l := range levels {
		require.NoError(t, dominv.CheckInvariants(l), "invariantes en %s", l.Key)
	}
	drifts, err := f.engine.Reconciler.Verify(ctx, tenantID)
	require.NoError(t, err)
	require.Empty(t, drifts, "la proyección debe coincidir con el ledger y las reservas")
}

// ──────────────────────────────────────────────────────────────────────────────
// Dobles de prueba
// ──────────────────────────────────────────────────────────────────────────────

var errInjected = errors.New("fallo inyectado")

// failingMovements falla el Append de los ids con el sufijo indicado.
type failingMovements struct {
	*memory.MovementStore
	failSuffix string
}

func (f *failingMovements) Append(ctx context.Context, e entity.MovementEntry) (entity.MovementEntry, bool, error) {
	if f.failSuffix != "" && strings.HasSuffix(e.ID, f.failSuffix) {
		return entity.MovementEntry{}, false, errInjected
	}
	return f.MovementStore.Append(ctx, e)
}

// flakyLevels falla los próximos failSaves guardados.
type flakyLevels struct {
	*memory.StockStore
	failSaves atomic.Int32
}

func (f *flakyLevels) Save(ctx context.Context, level entity.StockLevel, expected int64) error {
	if f.failSaves.Load() > 0 {
		f.failSaves.Add(-1)
		return errInjected
	}
	return f.StockStore.Save(ctx, level, expected)
}

// slowLevels demora cada guardado para ensanchar la ventana entre operaciones concurrentes.
type slowLevels struct {
	*memory.StockStore
	delay time.Duration
}

func (s *slowLevels) Save(ctx context.Context, level entity.StockLevel, expected int64) error {
	time.Sleep(s.delay)
	return s.StockStore.Save(ctx, level, expected)
}
