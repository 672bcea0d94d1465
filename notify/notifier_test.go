package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"warden/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu       sync.Mutex
	bodies   []map[string]interface{}
	headers  []http.Header
	status   int
	requests atomic.Int32
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	r.requests.Add(1)
	var body map[string]interface{}
	_ = json.NewDecoder(req.Body).Decode(&body)

	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.headers = append(r.headers, req.Header.Clone())
	status := r.status
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func criticalAlert() *core.SecurityAlert {
	return &core.SecurityAlert{
		ID:        "attack_critical_1700000000000",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Severity:  core.SeverityCritical,
		Type:      core.AlertTypeAttackDetected,
		Message:   "Critical attack volume",
		IP:        "198.51.100.7",
	}
}

func TestNotify_Webhook(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	n := NewNotifier([]ChannelConfig{{
		Name:    "ops",
		Type:    ChannelWebhook,
		Enabled: true,
		URL:     srv.URL,
		Headers: map[string]string{"X-Api-Key": "k"},
	}}, DefaultBreakerConfig(), zaptest.NewLogger(t).Sugar())

	n.Notify(context.Background(), criticalAlert())

	require.Equal(t, int32(1), rec.requests.Load())
	assert.Equal(t, "attack_critical_1700000000000", rec.bodies[0]["alert_id"])
	assert.Equal(t, "critical", rec.bodies[0]["severity"])
	assert.Equal(t, "198.51.100.7", rec.bodies[0]["ip"])
	assert.Equal(t, "k", rec.headers[0].Get("X-Api-Key"))
	assert.Equal(t, "application/json", rec.headers[0].Get("Content-Type"))
}

func TestNotify_Slack(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	n := NewNotifier([]ChannelConfig{{Name: "slack", Type: ChannelSlack, Enabled: true, URL: srv.URL}},
		DefaultBreakerConfig(), zaptest.NewLogger(t).Sugar())
	n.Notify(context.Background(), criticalAlert())

	require.Len(t, rec.bodies, 1)
	assert.Contains(t, rec.bodies[0]["text"], "critical security alert")
	attachments, ok := rec.bodies[0]["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, attachments, 1)
	assert.Equal(t, "#d32f2f", attachments[0].(map[string]interface{})["color"])
}

func TestNotify_SkipsDisabledAndBelowSeverity(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	n := NewNotifier([]ChannelConfig{
		{Name: "off", Type: ChannelWebhook, Enabled: false, URL: srv.URL},
		{Name: "critical-only", Type: ChannelWebhook, Enabled: true, URL: srv.URL, MinSeverity: core.SeverityCritical},
	}, DefaultBreakerConfig(), zaptest.NewLogger(t).Sugar())

	high := criticalAlert()
	high.Severity = core.SeverityHigh
	n.Notify(context.Background(), high)
	assert.Equal(t, int32(0), rec.requests.Load())

	n.Notify(context.Background(), criticalAlert())
	assert.Equal(t, int32(1), rec.requests.Load())
	assert.Equal(t, "", n.BreakerState("off"))
}

func TestNotify_FailuresAreContainedAndOpenBreaker(t *testing.T) {
	failing := &recorder{status: http.StatusInternalServerError}
	failSrv := httptest.NewServer(http.HandlerFunc(failing.handler))
	defer failSrv.Close()

	healthy := &recorder{}
	okSrv := httptest.NewServer(http.HandlerFunc(healthy.handler))
	defer okSrv.Close()

	n := NewNotifier([]ChannelConfig{
		{Name: "broken", Type: ChannelWebhook, Enabled: true, URL: failSrv.URL},
		{Name: "healthy", Type: ChannelWebhook, Enabled: true, URL: okSrv.URL},
	}, BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour}, zaptest.NewLogger(t).Sugar())

	for i := 0; i < 5; i++ {
		assert.NotPanics(t, func() { n.Notify(context.Background(), criticalAlert()) })
	}

	// the broken channel is skipped once its breaker opens
	assert.Equal(t, int32(2), failing.requests.Load())
	assert.Equal(t, "open", n.BreakerState("broken"))
	assert.Equal(t, int32(5), healthy.requests.Load())
	assert.Equal(t, "closed", n.BreakerState("healthy"))
}

func TestNotify_UnreachableChannel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	n := NewNotifier([]ChannelConfig{{Name: "gone", Type: ChannelWebhook, Enabled: true, URL: url}},
		DefaultBreakerConfig(), zaptest.NewLogger(t).Sugar())
	assert.NotPanics(t, func() { n.Notify(context.Background(), criticalAlert()) })
}
