package events

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.EventPublisher = (*LogPublisher)(nil)
	_ repository.EventPublisher = Fanout(nil)
)

// LogPublisher escribe cada evento en el log. Se usa cuando no hay Redis configurado.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher construye el publicador de log.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "event_log").Logger()}
}

// Publish nunca falla.
func (p *LogPublisher) Publish(_ context.Context, events ...entity.DomainEvent) error {
	for _, e := range events {
		ev := p.log.Info().Str("event", e.EventType()).Str("tenant", e.Tenant()).Time("occurred_at", e.OccurredAt())
		switch v := e.(type) {
		case entity.StockChanged:
			ev = ev.Str("product_id", v.ProductID).Str("location_id", v.LocationID).
				Str("delta", v.Delta.String()).Str("new_quantity", v.NewQuantity.String()).Str("movement_id", v.MovementID)
		case entity.LowStockCrossed:
			ev = ev.Str("product_id", v.ProductID).Str("sku", v.SKU).
				Str("current", v.CurrentQuantity.String()).Str("threshold", v.Threshold.String())
		}
		ev.Msg("evento de inventario")
	}
	return nil
}

// Fanout entrega los eventos a todos los publicadores y combina sus errores.
type Fanout []repository.EventPublisher

// Publish publica en orden; un fallo no impide los demás.
func (f Fanout) Publish(ctx context.Context, events ...entity.DomainEvent) error {
	var errs error
	for _, p := range f {
		if p == nil {
			continue
		}
		errs = multierr.Append(errs, p.Publish(ctx, events...))
	}
	return errs
}
