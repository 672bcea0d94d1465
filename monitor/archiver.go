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

// DefaultEventRetention is how long raw events are kept
const DefaultEventRetention = 7 * 24 * time.Hour

// ArchiveReport summarizes one archive cycle
type ArchiveReport struct {
	Cutoff  time.Time                     `json:"cutoff"`
	Removed map[core.EventCategory]int    `json:"removed"`
	Failed  map[core.EventCategory]string `json:"failed,omitempty"`
}

// Archiver prunes events older than the retention period from every stream
type Archiver struct {
	events    storage.EventLogStore
	retention time.Duration
	logger    *zap.SugaredLogger
}

// NewArchiver creates an Archiver; retention <= 0 uses DefaultEventRetention
func NewArchiver(events storage.EventLogStore, retention time.Duration, logger *zap.SugaredLogger) *Archiver {
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	return &Archiver{
		events:    events,
		retention: retention,
		logger:    logger,
	}
}

// Archive keeps only events with a timestamp strictly after now minus the
// retention period. A stream that cannot be read is left as it was and the
// remaining streams are still processed.
func (a *Archiver) Archive(ctx context.Context, now time.Time) ArchiveReport {
	report := ArchiveReport{
		Cutoff:  now.Add(-a.retention).UTC(),
		Removed: make(map[core.EventCategory]int, len(core.Categories)),
	}

	for _, stream := range core.Categories {
		removed, err := a.events.Prune(ctx, stream, report.Cutoff)
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", core.ErrArchivalFailure, stream, err)
			a.logger.Errorw("Failed to archive event stream",
				"stream", stream,
				"error", err)
			if report.Failed == nil {
				report.Failed = make(map[core.EventCategory]string)
			}
			report.Failed[stream] = err.Error()
			continue
		}

		report.Removed[stream] = removed
		if removed > 0 {
			metrics.EventsPrunedTotal.WithLabelValues(string(stream)).Add(float64(removed))
			a.logger.Infow("Archived event stream",
				"stream", stream,
				"removed", removed,
				"cutoff", report.Cutoff)
		}
	}
	return report
}
