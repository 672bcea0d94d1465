package validation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"warden/core"
	"warden/guard"
	"warden/metrics"
	"warden/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type panickingEvents struct {
	storage.EventLogStore
}

func (panickingEvents) CountAll(context.Context, core.EventCategory) (int64, error) {
	panic("stream exploded")
}

func hardenedHeaders() map[string]string {
	return map[string]string{
		"Content-Security-Policy":   "default-src 'self'",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Frame-Options":           "DENY",
		"x-content-type-options":    "nosniff",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
	}
}

func newTestOptions(t *testing.T) (Options, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	logger := zaptest.NewLogger(t).Sugar()
	client := storage.NewRedisClient(mr.Addr(), "", 0, 5)
	t.Cleanup(func() { _ = client.Close() })
	store := storage.NewRedisStore(client, logger)

	return Options{
		Events:          store,
		Counters:        store,
		Secrets:         mapSecrets{"jwt_secret": "s3cr3t", "webhook_token": "abc"},
		RequiredSecrets: []string{"jwt_secret", "webhook_token"},
		Headers:         hardenedHeaders(),
		CheckTimeout:    time.Second,
		Clock:           core.NewManualClock(testNow),
		Logger:          logger,
	}, mr
}

func checkByName(t *testing.T, result core.ValidationResult, name string) core.ValidationCheck {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return core.ValidationCheck{}
}

func TestRun_AllChecksPass(t *testing.T) {
	opts, mr := newTestOptions(t)
	require.NoError(t, opts.Events.Append(context.Background(),
		core.NewSecurityEvent(testNow, core.CategoryAttack, core.EventTypeSQLInjection, core.EventDetails{IP: "203.0.113.9"})))

	result := NewRunner(opts).Run(context.Background())

	assert.Equal(t, core.OverallPass, result.Overall)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, testNow, result.Timestamp)
	assert.Equal(t, core.ValidationSummary{Total: 6, Passed: 6}, result.Summary)
	assert.True(t, result.Passed())

	names := make([]string, len(result.Checks))
	for i, c := range result.Checks {
		names[i] = c.Name
	}
	assert.Equal(t, []string{
		CheckStoreConnectivity,
		CheckRequiredSecrets,
		CheckRateLimitRoundtrip,
		CheckSecurityHeaders,
		CheckAttackDetectionLiveness,
		CheckQueryGuardSelftest,
	}, names)
	assert.Contains(t, checkByName(t, result, CheckAttackDetectionLiveness).Message, "1 events")
	assert.Equal(t, float64(100), testutil.ToFloat64(metrics.ValidationScore))

	for _, key := range mr.Keys() {
		assert.False(t, strings.HasPrefix(key, "ratelimit:selftest:"), "self-test counter left behind: %s", key)
	}
	// the guard self-test records nothing
	n, err := opts.Events.CountAll(context.Background(), core.CategorySecurity)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_MissingSecretIsCriticalFailure(t *testing.T) {
	opts, _ := newTestOptions(t)
	opts.Secrets = mapSecrets{"jwt_secret": "s3cr3t", "webhook_token": "  "}

	result := NewRunner(opts).Run(context.Background())

	c := checkByName(t, result, CheckRequiredSecrets)
	assert.Equal(t, core.CheckFail, c.Status)
	assert.Equal(t, core.SeverityCritical, c.Severity)
	assert.Contains(t, c.Message, "webhook_token")
	assert.NotContains(t, c.Message, "s3cr3t")

	// 5 of 6 passed scores 83, but a critical failure still fails the run
	assert.Equal(t, 83, result.Score)
	assert.Equal(t, 1, result.Summary.CriticalFailures)
	assert.Equal(t, core.OverallFail, result.Overall)
}

func TestRun_MissingHeaderStillPasses(t *testing.T) {
	opts, _ := newTestOptions(t)
	delete(opts.Headers, "Referrer-Policy")

	result := NewRunner(opts).Run(context.Background())

	c := checkByName(t, result, CheckSecurityHeaders)
	assert.Equal(t, core.CheckFail, c.Status)
	assert.Equal(t, core.SeverityMedium, c.Severity)
	assert.Contains(t, c.Message, "Referrer-Policy")
	assert.Equal(t, 83, result.Score)
	assert.Equal(t, core.OverallPass, result.Overall)
}

func TestRun_StoreDown(t *testing.T) {
	opts, mr := newTestOptions(t)
	mr.Close()

	result := NewRunner(opts).Run(context.Background())

	assert.Equal(t, core.CheckFail, checkByName(t, result, CheckStoreConnectivity).Status)
	assert.Equal(t, core.CheckFail, checkByName(t, result, CheckRateLimitRoundtrip).Status)
	assert.Equal(t, core.CheckWarning, checkByName(t, result, CheckAttackDetectionLiveness).Status)
	assert.Equal(t, 1, result.Summary.Warnings)
	assert.Equal(t, core.OverallFail, result.Overall)
	assert.Equal(t, 50, result.Score)
}

func TestRun_DatabaseCheckOnlyWhenConfigured(t *testing.T) {
	opts, _ := newTestOptions(t)
	opts.Database = pingerFunc(func(context.Context) error { return errors.New("disk I/O error") })

	result := NewRunner(opts).Run(context.Background())

	require.Len(t, result.Checks, 7)
	assert.Equal(t, CheckDatabaseConnectivity, result.Checks[1].Name)
	assert.Equal(t, core.CheckFail, result.Checks[1].Status)
	assert.Equal(t, core.SeverityHigh, result.Checks[1].Severity)
	assert.Equal(t, 86, result.Score)
	assert.Equal(t, core.OverallPass, result.Overall)
}

func TestRun_PanickingCheckBecomesFailure(t *testing.T) {
	opts, _ := newTestOptions(t)
	opts.Events = panickingEvents{}

	var result core.ValidationResult
	require.NotPanics(t, func() { result = NewRunner(opts).Run(context.Background()) })

	c := checkByName(t, result, CheckAttackDetectionLiveness)
	assert.Equal(t, core.CheckFail, c.Status)
	assert.Contains(t, c.Message, core.ErrValidationCheckFailure.Error())
	assert.Contains(t, c.Message, "stream exploded")
}

func TestRun_GuardSelftestFailsWithoutSignatures(t *testing.T) {
	opts, _ := newTestOptions(t)
	patterns, err := inertPatterns()
	require.NoError(t, err)
	opts.Patterns = patterns

	result := NewRunner(opts).Run(context.Background())

	c := checkByName(t, result, CheckQueryGuardSelftest)
	assert.Equal(t, core.CheckFail, c.Status)
	assert.Contains(t, c.Message, "not rejected")
}

// inertPatterns returns a signature table that never matches
func inertPatterns() (*guard.PatternSet, error) {
	return guard.NewPatternSet([]guard.PatternSpec{
		{Name: "never", Category: "none", Expr: `\bneverpresentkeyword\b`},
	})
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0, score(core.ValidationSummary{}))
	assert.Equal(t, 67, score(core.ValidationSummary{Total: 3, Passed: 2}))
	assert.Equal(t, 80, score(core.ValidationSummary{Total: 5, Passed: 4}))
	assert.Equal(t, 100, score(core.ValidationSummary{Total: 7, Passed: 7}))
}
