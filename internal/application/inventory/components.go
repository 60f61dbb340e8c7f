package inventory

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Stores puertos de persistencia y colaboradores que consume el motor.
type Stores struct {
	Movements    repository.InventoryMovementRepository
	Levels       repository.StockRepository
	Reservations repository.ReservationRepository
	Catalog      repository.ProductCatalog
	Locations    repository.LocationDirectory
	Publisher    repository.EventPublisher // opcional
}

// EngineConfig parámetros del motor.
type EngineConfig struct {
	Coordinator    CoordinatorConfig
	ReservationTTL time.Duration // 0 = las reservas no vencen
}

// Components piezas compartidas por los servicios: ledger, agregador y coordinador
// son únicos por proceso.
type Components struct {
	Ledger       *Ledger
	Aggregator   *Aggregator
	Coordinator  *KeyCoordinator
	Levels       repository.StockRepository
	Reservations repository.ReservationRepository
	Catalog      repository.ProductCatalog
	Locations    repository.LocationDirectory
	Events       *EventEmitter
	Metrics      Metrics
	Log          zerolog.Logger
	Config       EngineConfig
}

// Engine servicios del motor de inventario ya cableados.
type Engine struct {
	Stock        *StockService
	Reservations *ReservationManager
	Query        *QueryService
	Reconciler   *Reconciler
	Components   *Components
}

// NewEngine cablea ledger, agregador, coordinador y servicios sobre los stores dados.
func NewEngine(stores Stores, cfg EngineConfig, metrics Metrics, log zerolog.Logger) *Engine {
	if metrics == nil {
		metrics = NopMetrics()
	}
	ledger := NewLedger(stores.Movements)
	c := &Components{
		Ledger:       ledger,
		Aggregator:   NewAggregator(stores.Levels, ledger, stores.Reservations, log),
		Coordinator:  NewKeyCoordinator(cfg.Coordinator, metrics, log),
		Levels:       stores.Levels,
		Reservations: stores.Reservations,
		Catalog:      stores.Catalog,
		Locations:    stores.Locations,
		Events:       NewEventEmitter(stores.Publisher, stores.Levels, stores.Catalog, log),
		Metrics:      metrics,
		Log:          log,
		Config:       cfg,
	}
	reservations := NewReservationManager(c)
	return &Engine{
		Stock:        NewStockService(c, reservations),
		Reservations: reservations,
		Query:        NewQueryService(c),
		Reconciler:   NewReconciler(c),
		Components:   c,
	}
}
