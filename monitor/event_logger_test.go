package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"warden/core"
	"warden/metrics"
	"warden/storage"
	"warden/util/goroutine"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingStore struct {
	storage.EventLogStore
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (s *blockingStore) Append(context.Context, *core.SecurityEvent) error {
	<-s.release
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func TestEventLogger_ConcurrentEmitters(t *testing.T) {
	env := newTestEnv(t)

	l := NewEventLogger(env.store, 1000, env.logger)

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Emit(core.NewSecurityEvent(testNow, core.CategoryAccess, core.EventTypeHTTPRequest, core.EventDetails{IP: "10.0.0.1"}))
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Close(ctx))

	n, err := env.store.CountAll(context.Background(), core.CategoryAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)
}

func TestEventLogger_FullQueueDrops(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	l := NewEventLogger(store, 1, zaptest.NewLogger(t).Sugar())

	dropped := metrics.EventsDropped.WithLabelValues("queue_full")
	before := testutil.ToFloat64(dropped)

	for i := 0; i < 5; i++ {
		l.Emit(core.NewSecurityEvent(testNow, core.CategoryAttack, core.EventTypeSQLInjection, core.EventDetails{}))
	}
	assert.GreaterOrEqual(t, testutil.ToFloat64(dropped)-before, float64(3))

	close(store.release)
	require.NoError(t, l.Close(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.LessOrEqual(t, store.count, 2)
	assert.GreaterOrEqual(t, store.count, 1)
}

func TestEventLogger_EmitAfterClose(t *testing.T) {
	e := newTestEnv(t)
	l := NewEventLogger(e.store, 10, e.logger)
	require.NoError(t, l.Close(context.Background()))
	require.NoError(t, l.Close(context.Background()))

	assert.NotPanics(t, func() {
		l.Emit(core.NewSecurityEvent(testNow, core.CategoryAttack, core.EventTypeSQLInjection, core.EventDetails{}))
		l.Emit(nil)
	})
}

func TestEventLogger_CloseHonorsContext(t *testing.T) {
	goroutine.AssertNoLeaks(t)
	store := &blockingStore{release: make(chan struct{})}
	l := NewEventLogger(store, 10, zaptest.NewLogger(t).Sugar())
	l.Emit(core.NewSecurityEvent(testNow, core.CategoryAccess, core.EventTypeHTTPRequest, core.EventDetails{}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Close(ctx), context.DeadlineExceeded)

	close(store.release)
	require.NoError(t, l.Close(context.Background()))
}
