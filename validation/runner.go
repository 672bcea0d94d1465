// Package validation runs the on-demand security self-test.
package validation

import (
	"context"
	"fmt"
	"math"
	"time"

	"warden/core"
	"warden/guard"
	"warden/metrics"
	"warden/storage"
	"warden/util/goroutine"

	"go.uber.org/zap"
)

const (
	// DefaultCheckTimeout bounds a single check
	DefaultCheckTimeout = 5 * time.Second
	// PassScore is the minimum score of a passing run
	PassScore = 80
)

// SecretResolver looks up a secret by key. config.SecretManager satisfies it.
type SecretResolver interface {
	GetSecret(key string) (string, error)
}

// Pinger checks connectivity of an optional SQL collaborator
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Runner
type Options struct {
	Events   storage.EventLogStore
	Counters storage.CounterStore
	// Database is pinged only when set
	Database Pinger

	Secrets         SecretResolver
	RequiredSecrets []string

	// Headers is the configured response header set
	Headers map[string]string

	// Patterns defaults to guard.DefaultPatterns()
	Patterns *guard.PatternSet

	CheckTimeout time.Duration
	Clock        core.Clock
	Logger       *zap.SugaredLogger
}

type check struct {
	name     string
	severity core.Severity
	run      func(ctx context.Context) (core.CheckStatus, string)
}

// Runner executes the fixed self-test sequence. It never mutates alert state.
type Runner struct {
	opts   Options
	checks []check
}

// NewRunner creates a Runner
func NewRunner(opts Options) *Runner {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Patterns == nil {
		opts.Patterns = guard.DefaultPatterns()
	}

	r := &Runner{opts: opts}
	r.checks = append(r.checks, check{CheckStoreConnectivity, core.SeverityCritical, r.checkStoreConnectivity})
	if opts.Database != nil {
		r.checks = append(r.checks, check{CheckDatabaseConnectivity, core.SeverityHigh, r.checkDatabaseConnectivity})
	}
	r.checks = append(r.checks,
		check{CheckRequiredSecrets, core.SeverityCritical, r.checkRequiredSecrets},
		check{CheckRateLimitRoundtrip, core.SeverityHigh, r.checkRateLimitRoundtrip},
		check{CheckSecurityHeaders, core.SeverityMedium, r.checkSecurityHeaders},
		check{CheckAttackDetectionLiveness, core.SeverityLow, r.checkAttackDetectionLiveness},
		check{CheckQueryGuardSelftest, core.SeverityHigh, r.checkQueryGuardSelftest},
	)
	return r
}

// Run executes every check in order and scores the result
func (r *Runner) Run(ctx context.Context) core.ValidationResult {
	result := core.ValidationResult{
		Timestamp: r.opts.Clock.Now().UTC(),
		Checks:    make([]core.ValidationCheck, 0, len(r.checks)),
	}

	for _, c := range r.checks {
		result.Checks = append(result.Checks, r.runCheck(ctx, c))
	}

	result.Summary = summarize(result.Checks)
	result.Score = score(result.Summary)
	result.Overall = core.OverallFail
	if result.Summary.CriticalFailures == 0 && result.Score >= PassScore {
		result.Overall = core.OverallPass
	}

	metrics.ValidationScore.Set(float64(result.Score))
	r.opts.Logger.Infow("Security self-test completed",
		"overall", result.Overall,
		"score", result.Score,
		"failed", result.Summary.Failed,
		"warnings", result.Summary.Warnings)
	return result
}

func (r *Runner) runCheck(ctx context.Context, c check) core.ValidationCheck {
	cctx, cancel := context.WithTimeout(ctx, r.opts.CheckTimeout)
	defer cancel()

	var status core.CheckStatus
	var message string
	err := goroutine.SafeCall(c.name, r.opts.Logger, func() error {
		status, message = c.run(cctx)
		return nil
	})
	if err != nil {
		status = core.CheckFail
		message = fmt.Errorf("%w: %v", core.ErrValidationCheckFailure, err).Error()
	}

	if status != core.CheckPass {
		r.opts.Logger.Warnw("Self-test check did not pass",
			"check", c.name,
			"status", status,
			"severity", c.severity,
			"message", message)
	}
	return core.ValidationCheck{
		Name:     c.name,
		Status:   status,
		Message:  message,
		Severity: c.severity,
	}
}

func summarize(checks []core.ValidationCheck) core.ValidationSummary {
	s := core.ValidationSummary{Total: len(checks)}
	for _, c := range checks {
		switch c.Status {
		case core.CheckPass:
			s.Passed++
		case core.CheckWarning:
			s.Warnings++
		default:
			s.Failed++
			if c.Severity == core.SeverityCritical {
				s.CriticalFailures++
			}
		}
	}
	return s
}

func score(s core.ValidationSummary) int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Passed) / float64(s.Total) * 100))
}
