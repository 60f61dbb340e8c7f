// Package bootstrap arma los stores y el publicador del motor según la configuración,
// compartido por el servidor HTTP y la herramienta de reconciliación.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/events"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/stock-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

// Resources stores abiertos y las funciones para liberarlos.
type Resources struct {
	Stores  inventory.Stores
	closers []func()
}

// Close libera los recursos en orden inverso de apertura.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Open construye los stores del driver configurado y el publicador de eventos.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Resources, error) {
	res := &Resources{}
	switch cfg.Ledger.StorageDriver {
	case config.StoragePostgres:
		if err := res.openPostgres(ctx, cfg, log); err != nil {
			res.Close()
			return nil, err
		}
	default:
		if err := res.openMemory(cfg, log); err != nil {
			return nil, err
		}
	}
	pub, err := res.openPublisher(ctx, cfg, log)
	if err != nil {
		res.Close()
		return nil, err
	}
	res.Stores.Publisher = pub
	return res, nil
}

func (r *Resources) openMemory(cfg *config.Config, log zerolog.Logger) error {
	catalog := memory.NewCatalog()
	locations := memory.NewLocations()
	if cfg.Ledger.SeedFile != "" {
		f, err := os.Open(cfg.Ledger.SeedFile)
		if err != nil {
			return fmt.Errorf("abrir seed %s: %w", cfg.Ledger.SeedFile, err)
		}
		defer f.Close()
		products, locs, err := memory.LoadSeed(f, catalog, locations)
		if err != nil {
			return err
		}
		log.Info().Int("products", products).Int("locations", locs).Str("file", cfg.Ledger.SeedFile).
			Msg("datos de referencia cargados en memoria")
	} else {
		log.Warn().Msg("almacenamiento en memoria sin MEMORY_SEED_FILE: no hay productos ni ubicaciones")
	}
	r.Stores = inventory.Stores{
		Movements:    memory.NewMovementStore(),
		Levels:       memory.NewStockStore(),
		Reservations: memory.NewReservationStore(),
		Catalog:      catalog,
		Locations:    locations,
	}
	return nil
}

func (r *Resources) openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	r.closers = append(r.closers, pool.Close)
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("esquema PostgreSQL: %w", err)
	}
	log.Info().Int("max_conns", cfg.DB.MaxConns).Msg("almacenamiento PostgreSQL listo")
	r.Stores = inventory.Stores{
		Movements:    postgres.NewInventoryMovementRepository(pool),
		Levels:       postgres.NewStockRepository(pool),
		Reservations: postgres.NewReservationRepository(pool),
		Catalog:      postgres.NewProductRepository(pool),
		Locations:    postgres.NewLocationRepository(pool),
	}
	return nil
}

// openPublisher siempre registra los eventos en el log; con Redis además los publica en el stream.
func (r *Resources) openPublisher(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.EventPublisher, error) {
	fanout := events.Fanout{events.NewLogPublisher(log)}
	if !cfg.Redis.Enabled() {
		return fanout, nil
	}
	client, err := infraredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("conexión a Redis: %w", err)
	}
	r.closers = append(r.closers, func() { _ = client.Close() })
	log.Info().Str("stream", cfg.Redis.Stream).Msg("publicación de eventos en Redis Streams")
	return append(fanout, infraredis.NewStreamPublisher(client, cfg.Redis.Stream, cfg.Redis.MaxLen, log)), nil
}
