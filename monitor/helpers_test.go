package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"warden/core"
	"warden/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	mr      *miniredis.Miniredis
	store   *storage.RedisStore
	alerts  *storage.RedisAlertStore
	rollups *storage.RedisRollupStore
	logger  *zap.SugaredLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	logger := zaptest.NewLogger(t).Sugar()
	client := storage.NewRedisClient(mr.Addr(), "", 0, 10)
	t.Cleanup(func() { _ = client.Close() })

	return &testEnv{
		mr:      mr,
		store:   storage.NewRedisStore(client, logger),
		alerts:  storage.NewRedisAlertStore(client, 0, logger),
		rollups: storage.NewRedisRollupStore(client, 0, logger),
		logger:  logger,
	}
}

func (e *testEnv) append(t *testing.T, category core.EventCategory, eventType string, ts time.Time, d core.EventDetails) {
	t.Helper()
	require.NoError(t, e.store.Append(context.Background(), core.NewSecurityEvent(ts, category, eventType, d)))
}

func (e *testEnv) attack(t *testing.T, ts time.Time, ip string, attackTypes ...string) {
	t.Helper()
	e.append(t, core.CategoryAttack, core.EventTypeSQLInjection, ts, core.EventDetails{
		IP:          ip,
		UserAgent:   "sqlmap/1.7",
		AttackTypes: attackTypes,
		Method:      "POST",
		URL:         "/api/search?q=x",
	})
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []core.SecurityAlert
}

func (n *captureNotifier) Notify(_ context.Context, alert *core.SecurityAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, *alert)
}

func (n *captureNotifier) all() []core.SecurityAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]core.SecurityAlert, len(n.alerts))
	copy(out, n.alerts)
	return out
}
