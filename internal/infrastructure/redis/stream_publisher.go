// Package redis publica los eventos de dominio del motor en un Redis Stream para que el
// colaborador de automatización (correo, webhooks, push) los consuma.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

var _ repository.EventPublisher = (*StreamPublisher)(nil)

// DefaultStream stream por defecto de los eventos de inventario.
const DefaultStream = "inventory.events"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	XAdd(context.Context, *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher EventPublisher sobre XADD. Cada evento es una entrada del stream con
// su tipo, tenant, instante y el cuerpo JSON.
type StreamPublisher struct {
	store  cmdable
	stream string
	maxLen int64
	log    zerolog.Logger
}

// NewClient abre la conexión con la configuración dada y verifica con PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return raw, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
		return opts, nil
	}
	return &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}, nil
}

// NewStreamPublisher construye el publicador. stream vacío usa DefaultStream; maxLen > 0
// recorta el stream de forma aproximada.
func NewStreamPublisher(client redis.Cmdable, stream string, maxLen int64, log zerolog.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{
		store:  client,
		stream: stream,
		maxLen: maxLen,
		log:    log.With().Str("component", "redis_publisher").Str("stream", stream).Logger(),
	}
}

// Publish agrega cada evento al stream. Un fallo no detiene los demás; los errores se combinan.
func (p *StreamPublisher) Publish(ctx context.Context, events ...entity.DomainEvent) error {
	var errs error
	for _, e := range events {
		values, err := streamValues(e)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		args := &redis.XAddArgs{Stream: p.stream, Values: values}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		id, err := p.store.XAdd(ctx, args).Result()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("xadd %s: %w", e.EventType(), err))
			continue
		}
		p.log.Debug().Str("event", e.EventType()).Str("tenant", e.Tenant()).Str("entry_id", id).Msg("evento publicado")
	}
	return errs
}

// Ping verifica la conexión (health check).
func (p *StreamPublisher) Ping(ctx context.Context) error {
	return p.store.Ping(ctx).Err()
}

func streamValues(e entity.DomainEvent) (map[string]any, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("serializar %s: %w", e.EventType(), err)
	}
	return map[string]any{
		"type":        e.EventType(),
		"tenant_id":   e.Tenant(),
		"occurred_at": e.OccurredAt().UTC().Format(time.RFC3339Nano),
		"payload":     string(payload),
	}, nil
}
