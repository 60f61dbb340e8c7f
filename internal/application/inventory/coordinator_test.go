package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

func newTestCoordinator(timeout time.Duration, retries int) *KeyCoordinator {
	return NewKeyCoordinator(CoordinatorConfig{KeyTimeout: timeout, MaxRetries: retries, RetryBackoff: time.Millisecond}, nil, zerolog.Nop())
}

func TestKeyCoordinator_MismaClaveSeSerializa(t *testing.T) {
	c := newTestCoordinator(5*time.Second, 0)
	var inside, maxInside int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			return c.WithKeys(ctx, []string{"k1"}, func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside, "nunca dos operaciones a la vez sobre la misma clave")
	assert.Equal(t, 0, c.activeLocks(), "los bloqueos se liberan al terminar")
}

func TestKeyCoordinator_OrdenDeLlegadaFIFO(t *testing.T) {
	c := newTestCoordinator(5*time.Second, 0)
	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = c.WithKeys(context.Background(), []string{"k"}, func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.WithKeys(context.Background(), []string{"k"}, func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		// Espera a que la solicitud quede encolada antes de lanzar la siguiente.
		require.Eventually(t, func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.locks["k"].queue.Len() == i+1
		}, time.Second, time.Millisecond)
	}
	close(release)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestKeyCoordinator_TimeoutDevuelveContention(t *testing.T) {
	c := newTestCoordinator(20*time.Millisecond, 1)
	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = c.WithKeys(context.Background(), []string{"hot"}, func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	called := false
	err := c.WithKeys(context.Background(), []string{"hot"}, func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrContention))
	se, ok := domain.AsStockError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"hot"}, se.Keys)
	assert.False(t, called)
}

func TestKeyCoordinator_CancelarAntesDeObtenerNoTieneEfecto(t *testing.T) {
	c := newTestCoordinator(5*time.Second, 0)
	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = c.WithKeys(context.Background(), []string{"k"}, func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.WithKeys(ctx, []string{"k"}, func() error {
			t.Error("no debe ejecutarse tras cancelar")
			return nil
		})
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	close(release)

	require.Eventually(t, func() bool { return c.activeLocks() == 0 }, time.Second, time.Millisecond)
}

func TestKeyCoordinator_MultiClaveOrdenGlobalSinInterbloqueo(t *testing.T) {
	c := newTestCoordinator(5*time.Second, 0)
	g, ctx := errgroup.WithContext(context.Background())
	var count int32
	for i := 0; i < 50; i++ {
		keys := []string{"a", "b"}
		if i%2 == 1 {
			keys = []string{"b", "a"}
		}
		g.Go(func() error {
			return c.WithKeys(ctx, keys, func() error {
				atomic.AddInt32(&count, 1)
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(50), count)
	assert.Equal(t, 0, c.activeLocks())
}

func TestKeyCoordinator_ClavesDistintasEnParalelo(t *testing.T) {
	c := newTestCoordinator(time.Second, 0)
	inA := make(chan struct{})
	releaseA := make(chan struct{})
	go func() {
		_ = c.WithKeys(context.Background(), []string{"a"}, func() error {
			close(inA)
			<-releaseA
			return nil
		})
	}()
	<-inA
	defer close(releaseA)

	err := c.WithKeys(context.Background(), []string{"b"}, func() error { return nil })
	assert.NoError(t, err, "una clave ocupada no bloquea otra distinta")
}

func TestKeyCoordinator_PropagaErrorDeLaOperacion(t *testing.T) {
	c := newTestCoordinator(time.Second, 0)
	boom := errors.New("boom")
	err := c.WithKeys(context.Background(), []string{"x", "x"}, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.activeLocks())
}
