package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"warden/core"
	"warden/guard"
	"warden/storage"

	"github.com/google/uuid"
)

// Check names, in run order
const (
	CheckStoreConnectivity       = "store_connectivity"
	CheckDatabaseConnectivity    = "database_connectivity"
	CheckRequiredSecrets         = "required_secrets"
	CheckRateLimitRoundtrip      = "rate_limit_roundtrip"
	CheckSecurityHeaders         = "security_headers"
	CheckAttackDetectionLiveness = "attack_detection_liveness"
	CheckQueryGuardSelftest      = "query_guard_selftest"
)

// RequiredHeaders must all be present in the configured response headers
var RequiredHeaders = []string{
	"Content-Security-Policy",
	"Strict-Transport-Security",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Referrer-Policy",
}

const selftestTTL = time.Minute

const (
	selftestTable     = "selftest_accounts"
	selftestMalicious = "SELECT name FROM selftest_accounts WHERE id = 1 UNION SELECT password FROM selftest_accounts"
	selftestBenign    = "SELECT id, name FROM selftest_accounts WHERE id = ?"
)

func pass(format string, args ...interface{}) (core.CheckStatus, string) {
	return core.CheckPass, fmt.Sprintf(format, args...)
}

func fail(format string, args ...interface{}) (core.CheckStatus, string) {
	return core.CheckFail, fmt.Sprintf(format, args...)
}

func (r *Runner) checkStoreConnectivity(ctx context.Context) (core.CheckStatus, string) {
	if r.opts.Counters == nil {
		return fail("event store not configured")
	}
	if err := r.opts.Counters.Ping(ctx); err != nil {
		return fail("event store unreachable: %v", err)
	}
	return pass("event store reachable")
}

func (r *Runner) checkDatabaseConnectivity(ctx context.Context) (core.CheckStatus, string) {
	if err := r.opts.Database.Ping(ctx); err != nil {
		return fail("database unreachable: %v", err)
	}
	return pass("database reachable")
}

func (r *Runner) checkRequiredSecrets(_ context.Context) (core.CheckStatus, string) {
	if len(r.opts.RequiredSecrets) == 0 {
		return pass("no required secrets configured")
	}
	if r.opts.Secrets == nil {
		return fail("secret manager not configured")
	}

	var missing []string
	for _, key := range r.opts.RequiredSecrets {
		value, err := r.opts.Secrets.GetSecret(key)
		if err != nil || strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fail("missing required secrets: %s", strings.Join(missing, ", "))
	}
	return pass("all %d required secrets present", len(r.opts.RequiredSecrets))
}

// checkRateLimitRoundtrip exercises INCR, EXPIRE, GET and DEL on a throwaway counter
func (r *Runner) checkRateLimitRoundtrip(ctx context.Context) (core.CheckStatus, string) {
	if r.opts.Counters == nil {
		return fail("counter store not configured")
	}
	key := storage.RateLimitKey("selftest:" + uuid.NewString())
	defer func() {
		// best effort; the TTL removes it otherwise
		_ = r.opts.Counters.Delete(context.WithoutCancel(ctx), key)
	}()

	if _, err := r.opts.Counters.Incr(ctx, key); err != nil {
		return fail("increment failed: %v", err)
	}
	if err := r.opts.Counters.Expire(ctx, key, selftestTTL); err != nil {
		return fail("expire failed: %v", err)
	}
	n, err := r.opts.Counters.GetCounter(ctx, key)
	if err != nil {
		return fail("read failed: %v", err)
	}
	if n != 1 {
		return fail("counter read %d, expected 1", n)
	}
	if err := r.opts.Counters.Delete(ctx, key); err != nil {
		return fail("cleanup failed: %v", err)
	}
	return pass("rate limit counter round-trip succeeded")
}

func (r *Runner) checkSecurityHeaders(_ context.Context) (core.CheckStatus, string) {
	configured := make(map[string]bool, len(r.opts.Headers))
	for name, value := range r.opts.Headers {
		if strings.TrimSpace(value) != "" {
			configured[http.CanonicalHeaderKey(name)] = true
		}
	}

	var missing []string
	for _, name := range RequiredHeaders {
		if !configured[http.CanonicalHeaderKey(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fail("missing security headers: %s", strings.Join(missing, ", "))
	}
	return pass("all %d security headers configured", len(RequiredHeaders))
}

func (r *Runner) checkAttackDetectionLiveness(ctx context.Context) (core.CheckStatus, string) {
	if r.opts.Events == nil {
		return core.CheckWarning, "event store not configured"
	}
	n, err := r.opts.Events.CountAll(ctx, core.CategoryAttack)
	if err != nil {
		return core.CheckWarning, fmt.Sprintf("attack stream unreadable: %v", err)
	}
	return pass("attack stream readable, %d events recorded", n)
}

// checkQueryGuardSelftest uses a guard without an event sink so no events are recorded
func (r *Runner) checkQueryGuardSelftest(ctx context.Context) (core.CheckStatus, string) {
	g, err := guard.New(guard.Options{
		Patterns:      r.opts.Patterns,
		AllowedTables: []string{selftestTable},
	})
	if err != nil {
		return fail("failed to build guard: %v", err)
	}

	err = g.Validate(ctx, selftestMalicious, nil)
	if !errors.Is(err, core.ErrInjectionDetected) {
		return fail("known injection was not rejected")
	}
	if err := g.Validate(ctx, selftestBenign, map[string]interface{}{"1": 1}); err != nil {
		return fail("known-good statement rejected: %v", err)
	}
	return pass("guard rejected %s and accepted a clean statement", guard.Category(err))
}
