package inventory

import (
	"container/list"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// errLockTimeout la espera de un intento superó el timeout configurado.
var errLockTimeout = errors.New("timeout esperando bloqueo")

// CoordinatorConfig parámetros del coordinador de claves.
type CoordinatorConfig struct {
	KeyTimeout   time.Duration // espera máxima por intento para obtener todas las claves
	MaxRetries   int           // reintentos después del primer intento antes de fallar Contention
	RetryBackoff time.Duration // espera base entre intentos (lineal)
}

// DefaultCoordinatorConfig valores por defecto razonables para un solo proceso.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{KeyTimeout: 2 * time.Second, MaxRetries: 3, RetryBackoff: 25 * time.Millisecond}
}

// keyLock exclusión mutua FIFO para un nombre de clave.
// refs cuenta poseedor + esperas; la entrada se elimina del mapa cuando llega a cero.
type keyLock struct {
	held  bool
	queue list.List // chan struct{} por espera, en orden de llegada
	refs  int
}

// KeyCoordinator serializa las operaciones sobre la misma clave en orden de llegada y
// permite operaciones atómicas multi-clave adquiriendo siempre en orden lexicográfico global,
// lo que evita interbloqueos entre traslados en sentidos opuestos.
type KeyCoordinator struct {
	cfg     CoordinatorConfig
	metrics Metrics
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewKeyCoordinator construye el coordinador.
func NewKeyCoordinator(cfg CoordinatorConfig, metrics Metrics, log zerolog.Logger) *KeyCoordinator {
	if cfg.KeyTimeout <= 0 {
		cfg.KeyTimeout = DefaultCoordinatorConfig().KeyTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &KeyCoordinator{
		cfg:     cfg,
		metrics: metrics,
		log:     log.With().Str("component", "key_coordinator").Logger(),
		locks:   make(map[string]*keyLock),
	}
}

// WithKeys ejecuta fn con acceso exclusivo a todas las claves indicadas.
// Cancelar ctx antes de obtener las claves no tiene efectos. Si un intento excede KeyTimeout
// se libera lo obtenido, se espera con backoff y se reintenta hasta MaxRetries; luego falla ErrContention.
func (c *KeyCoordinator) WithKeys(ctx context.Context, names []string, fn func() error) error {
	ordered := sortedUnique(names)
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
				return err
			}
		}
		start := time.Now()
		held, err := c.acquireAll(ctx, ordered)
		c.metrics.ObserveKeyWait(time.Since(start))
		if err == nil {
			return c.run(held, fn)
		}
		if !errors.Is(err, errLockTimeout) {
			return err
		}
		c.metrics.IncContention()
		c.log.Warn().Strs("keys", ordered).Int("attempt", attempt+1).Msg("timeout esperando claves, reintentando")
	}
	return &domain.StockError{Op: "lock", Keys: ordered, Err: domain.ErrContention}
}

func (c *KeyCoordinator) run(held []string, fn func() error) error {
	defer c.releaseAll(held)
	return fn()
}

// acquireAll obtiene las claves en orden; ante cualquier fallo libera las ya obtenidas.
func (c *KeyCoordinator) acquireAll(ctx context.Context, ordered []string) ([]string, error) {
	timer := time.NewTimer(c.cfg.KeyTimeout)
	defer timer.Stop()

	held := make([]string, 0, len(ordered))
	for _, name := range ordered {
		if err := c.acquire(ctx, name, timer.C); err != nil {
			c.releaseAll(held)
			return nil, err
		}
		held = append(held, name)
	}
	return held, nil
}

func (c *KeyCoordinator) acquire(ctx context.Context, name string, expired <-chan time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	l, ok := c.locks[name]
	if !ok {
		l = &keyLock{}
		c.locks[name] = l
	}
	l.refs++
	if !l.held && l.queue.Len() == 0 {
		l.held = true
		c.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	elem := l.queue.PushBack(ready)
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return c.abandon(name, l, elem, ready, ctx.Err())
	case <-expired:
		return c.abandon(name, l, elem, ready, errLockTimeout)
	}
}

// abandon retira una espera. Si el bloqueo se concedió justo antes, se devuelve al siguiente.
func (c *KeyCoordinator) abandon(name string, l *keyLock, elem *list.Element, ready chan struct{}, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-ready:
		c.releaseLocked(name, l)
	default:
		l.queue.Remove(elem)
		l.refs--
		c.gcLocked(name, l)
	}
	return cause
}

func (c *KeyCoordinator) releaseAll(held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		c.release(held[i])
	}
}

func (c *KeyCoordinator) release(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[name]; ok {
		c.releaseLocked(name, l)
	}
}

// releaseLocked entrega el bloqueo a la primera espera o lo deja libre. Requiere c.mu.
func (c *KeyCoordinator) releaseLocked(name string, l *keyLock) {
	l.refs--
	if front := l.queue.Front(); front != nil {
		l.queue.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	l.held = false
	c.gcLocked(name, l)
}

func (c *KeyCoordinator) gcLocked(name string, l *keyLock) {
	if l.refs == 0 && !l.held {
		delete(c.locks, name)
	}
}

// activeLocks número de claves con poseedor o esperas (tests).
func (c *KeyCoordinator) activeLocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

func sortedUnique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
