package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.EventPublisher = (*RecordingPublisher)(nil)

// RecordingPublisher guarda los eventos publicados; Err simula un publicador caído.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []entity.DomainEvent
	Err    error
}

// NewRecordingPublisher construye el publicador vacío.
func NewRecordingPublisher() *RecordingPublisher { return &RecordingPublisher{} }

// Publish registra los eventos (aunque Err esté definido) y devuelve Err.
func (p *RecordingPublisher) Publish(_ context.Context, events ...entity.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.Err
}

// Events copia de lo publicado.
func (p *RecordingPublisher) Events() []entity.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.DomainEvent(nil), p.events...)
}

// OfType eventos publicados con el tipo dado.
func (p *RecordingPublisher) OfType(eventType string) []entity.DomainEvent {
	out := make([]entity.DomainEvent, 0)
	for _, e := range p.Events() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}
