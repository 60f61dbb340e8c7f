package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// EventPublisher puerto hacia el publicador de automatización. El motor emite;
// la entrega (correo, webhook, push) es responsabilidad del colaborador.
type EventPublisher interface {
	Publish(ctx context.Context, events ...entity.DomainEvent) error
}
