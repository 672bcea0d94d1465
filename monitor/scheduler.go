package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"warden/metrics"
	"warden/util/goroutine"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// Default job intervals
const (
	DefaultCollectInterval = 5 * time.Minute
	DefaultArchiveInterval = 60 * time.Minute
)

// Job runs fn on a fixed interval. A run never overlaps another run of the
// same job: a tick or Trigger that arrives mid-run is skipped.
type Job struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	running  atomic.Bool
	logger   *zap.SugaredLogger
}

// NewJob creates a Job
func NewJob(name string, interval time.Duration, fn func(ctx context.Context) error, logger *zap.SugaredLogger) *Job {
	return &Job{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Serve implements suture.Service
func (j *Job) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Infow("Scheduled job started", "job", j.name, "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			j.logger.Infow("Scheduled job stopping", "job", j.name)
			return ctx.Err()
		case <-ticker.C:
			j.Trigger(ctx)
		}
	}
}

// Trigger runs the job now unless a run is in flight. It reports whether the job ran.
func (j *Job) Trigger(ctx context.Context) bool {
	if !j.running.CompareAndSwap(false, true) {
		metrics.JobRunsTotal.WithLabelValues(j.name, "skipped").Inc()
		j.logger.Warnw("Previous run still in progress, skipping", "job", j.name)
		return false
	}
	defer j.running.Store(false)

	start := time.Now()
	err := goroutine.SafeCall(j.name, j.logger, func() error {
		return j.fn(ctx)
	})
	metrics.JobDuration.WithLabelValues(j.name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.JobRunsTotal.WithLabelValues(j.name, "failure").Inc()
		j.logger.Errorw("Scheduled job failed, waiting for next tick", "job", j.name, "error", err)
		return true
	}
	metrics.JobRunsTotal.WithLabelValues(j.name, "success").Inc()
	return true
}

// Running reports whether a run is in flight
func (j *Job) Running() bool {
	return j.running.Load()
}

// String names the service for the supervisor
func (j *Job) String() string {
	return j.name
}

// Scheduler supervises the collect and archive jobs
type Scheduler struct {
	supervisor *suture.Supervisor
	collect    *Job
	archive    *Job
	logger     *zap.SugaredLogger
}

// NewScheduler builds the collect and archive jobs for p. Non-positive
// intervals use the defaults.
func NewScheduler(p *Pipeline, collectInterval, archiveInterval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if collectInterval <= 0 {
		collectInterval = DefaultCollectInterval
	}
	if archiveInterval <= 0 {
		archiveInterval = DefaultArchiveInterval
	}

	sup := suture.New("warden-monitor", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warnw("Supervisor event", "event", e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	s := &Scheduler{
		supervisor: sup,
		collect: NewJob("collect", collectInterval, func(ctx context.Context) error {
			p.Collect(ctx)
			return nil
		}, logger),
		archive: NewJob("archive", archiveInterval, func(ctx context.Context) error {
			p.Archive(ctx)
			return nil
		}, logger),
		logger: logger,
	}
	sup.Add(s.collect)
	sup.Add(s.archive)
	return s
}

// Start runs the supervisor until ctx is cancelled. The returned channel
// receives the supervisor's exit error.
func (s *Scheduler) Start(ctx context.Context) <-chan error {
	s.logger.Infow("Starting monitor scheduler",
		"collect_interval", s.collect.interval,
		"archive_interval", s.archive.interval)
	return s.supervisor.ServeBackground(ctx)
}

// CollectJob returns the collect job for manual triggering
func (s *Scheduler) CollectJob() *Job {
	return s.collect
}

// ArchiveJob returns the archive job for manual triggering
func (s *Scheduler) ArchiveJob() *Job {
	return s.archive
}
