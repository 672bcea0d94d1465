package monitor

import (
	"context"

	"warden/core"
	"warden/storage"

	"go.uber.org/zap"
)

// CycleResult is the outcome of one collect cycle
type CycleResult struct {
	Metrics      core.SecurityMetrics `json:"metrics"`
	Alerts       []core.SecurityAlert `json:"alerts"`
	StoredAlerts int                  `json:"stored_alerts"`
}

// Pipeline wires collection, detection, alerting, rollup and archival into
// the two scheduled cycles
type Pipeline struct {
	aggregator *Aggregator
	detector   *Detector
	alerts     *AlertManager
	rollups    storage.RollupStore
	archiver   *Archiver
	clock      core.Clock
	logger     *zap.SugaredLogger
}

// NewPipeline creates a Pipeline
func NewPipeline(aggregator *Aggregator, detector *Detector, alerts *AlertManager, rollups storage.RollupStore, archiver *Archiver, clock core.Clock, logger *zap.SugaredLogger) *Pipeline {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Pipeline{
		aggregator: aggregator,
		detector:   detector,
		alerts:     alerts,
		rollups:    rollups,
		archiver:   archiver,
		clock:      clock,
		logger:     logger,
	}
}

// Collect runs one collect cycle: snapshot, rollup, detect, alert
func (p *Pipeline) Collect(ctx context.Context) CycleResult {
	m := p.aggregator.Collect(ctx, p.clock.Now())

	if err := p.rollups.AppendSnapshot(ctx, m); err != nil {
		p.logger.Errorw("Failed to append daily rollup", "error", err)
	}

	alerts := p.detector.Detect(m)
	stored := p.alerts.Process(ctx, alerts)

	p.logger.Debugw("Collect cycle complete",
		"total_requests", m.TotalRequests,
		"attack_attempts", m.AttackAttempts,
		"alerts", len(alerts))

	return CycleResult{Metrics: m, Alerts: alerts, StoredAlerts: stored}
}

// Archive runs one archive cycle
func (p *Pipeline) Archive(ctx context.Context) ArchiveReport {
	return p.archiver.Archive(ctx, p.clock.Now())
}
