package monitor

import (
	"context"
	"fmt"
	"time"

	"warden/core"
	"warden/storage"
)

// Dashboard read sizes
const (
	DashboardRecentAlerts = 10
	DashboardTrendDays    = 7
)

// DashboardService builds the operator dashboard read model
type DashboardService struct {
	aggregator *Aggregator
	alerts     storage.AlertStore
	rollups    storage.RollupStore
}

// NewDashboardService creates a DashboardService
func NewDashboardService(aggregator *Aggregator, alerts storage.AlertStore, rollups storage.RollupStore) *DashboardService {
	return &DashboardService{
		aggregator: aggregator,
		alerts:     alerts,
		rollups:    rollups,
	}
}

// Build returns live metrics, the latest alerts and the 7-day trend
func (s *DashboardService) Build(ctx context.Context, now time.Time) (*core.Dashboard, error) {
	current := s.aggregator.Collect(ctx, now)

	recent, err := s.alerts.Recent(ctx, DashboardRecentAlerts)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent alerts: %w", err)
	}

	trend, err := s.rollups.Trend(ctx, now, DashboardTrendDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load trend: %w", err)
	}

	return &core.Dashboard{
		CurrentMetrics: current,
		RecentAlerts:   recent,
		Trend:          trend,
	}, nil
}
