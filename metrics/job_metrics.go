package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Background job metrics.
//
// Labels:
//   - job: "collect" or "archive"
//   - result: "success", "failure" or "skipped"

var (
	// JobRunsTotal counts scheduled job executions.
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs",
		},
		[]string{"job", "result"},
	)

	// JobDuration measures how long a job run takes.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "warden",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Time spent in a scheduled job run",
			Buckets: []float64{
				0.001, // 1ms
				0.01,  // 10ms
				0.1,   // 100ms
				0.5,   // 500ms
				1.0,   // 1s
				5.0,   // 5s
				30.0,  // 30s
			},
		},
		[]string{"job"},
	)

	// EventsPrunedTotal counts events removed from a stream by archival.
	EventsPrunedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "archive",
			Name:      "events_pruned_total",
			Help:      "Total number of security events pruned by the archiver",
		},
		[]string{"category"},
	)

	// AggregationFailuresTotal counts collections that fell back to a zeroed snapshot.
	AggregationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "aggregator",
			Name:      "failures_total",
			Help:      "Total number of metrics collections that failed",
		},
	)

	// ValidationScore is the score of the latest self-test run.
	ValidationScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "validation",
			Name:      "score",
			Help:      "Score of the most recent security validation run",
		},
	)
)
