package monitor

import (
	"context"
	"fmt"
	"time"

	"warden/core"
	"warden/metrics"
	"warden/storage"

	"go.uber.org/zap"
)

// MetricsWindow is the trailing window every snapshot covers
const MetricsWindow = 60 * time.Minute

// Top-N caps
const (
	MaxTopAttackTypes       = 10
	MaxTopAttackIPs         = 10
	MaxSuspiciousUserAgents = 5
	MaxEndpointStats        = 15
)

// Aggregator computes SecurityMetrics snapshots from the event streams
type Aggregator struct {
	events   storage.EventLogStore
	counters storage.CounterStore
	logger   *zap.SugaredLogger
}

// NewAggregator creates an Aggregator
func NewAggregator(events storage.EventLogStore, counters storage.CounterStore, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{
		events:   events,
		counters: counters,
		logger:   logger,
	}
}

// Collect returns the snapshot for the hour ending at now. It never fails:
// on any read error the zeroed snapshot is returned and the failure is logged.
func (a *Aggregator) Collect(ctx context.Context, now time.Time) core.SecurityMetrics {
	m, err := a.collect(ctx, now)
	if err != nil {
		metrics.AggregationFailuresTotal.Inc()
		a.logger.Errorw("Metrics collection failed, reporting zeroed snapshot",
			"error", fmt.Errorf("%w: %v", core.ErrAggregationFailure, err))
		return core.EmptyMetrics(now)
	}
	return m
}

func (a *Aggregator) collect(ctx context.Context, now time.Time) (core.SecurityMetrics, error) {
	since := now.Add(-MetricsWindow)

	attacks, err := a.events.Range(ctx, core.CategoryAttack, since)
	if err != nil {
		return core.SecurityMetrics{}, err
	}
	access, err := a.events.Range(ctx, core.CategoryAccess, since)
	if err != nil {
		return core.SecurityMetrics{}, err
	}
	security, err := a.events.Range(ctx, core.CategorySecurity, since)
	if err != nil {
		return core.SecurityMetrics{}, err
	}
	blacklisted, err := a.counters.CountKeys(ctx, storage.KeyBlacklistPrefix+"*")
	if err != nil {
		return core.SecurityMetrics{}, err
	}

	m := core.EmptyMetrics(now)
	m.TotalRequests = len(access)
	m.AttackAttempts = len(attacks)
	for i := range security {
		if security[i].Type == core.EventTypeRateLimitViolation {
			m.RateLimitViolations++
		}
	}
	m.BlockedRequests = m.AttackAttempts + m.RateLimitViolations
	m.BlacklistedIPCount = blacklisted

	types := newOrderedCounter()
	ips := newOrderedCounter()
	agents := newOrderedCounter()
	endpoints := newEndpointCounter()

	for i := range access {
		if access[i].URL != "" {
			endpoints.request(access[i].EndpointKey())
		}
	}
	for i := range attacks {
		e := &attacks[i]
		for _, t := range e.AttackTypes {
			types.add(t)
		}
		if e.IP != "" {
			ips.add(e.IP)
		}
		if e.UserAgent != "" {
			agents.add(e.UserAgent)
		}
		if e.URL != "" {
			endpoints.blocked(e.EndpointKey())
		}
	}

	m.TopAttackTypes = types.top(MaxTopAttackTypes)
	m.TopAttackIPs = ips.top(MaxTopAttackIPs)
	m.SuspiciousUserAgents = agents.top(MaxSuspiciousUserAgents)
	m.PerEndpointStats = endpoints.top(MaxEndpointStats)
	return m, nil
}
