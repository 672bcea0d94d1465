package monitor

import (
	"context"

	"warden/core"
	"warden/metrics"
	"warden/storage"

	"go.uber.org/zap"
)

// Notifier delivers critical alerts. Implementations are best effort and
// report nothing back to the caller.
type Notifier interface {
	Notify(ctx context.Context, alert *core.SecurityAlert)
}

// AlertManager persists detected alerts and pages on critical ones
type AlertManager struct {
	store    storage.AlertStore
	notifier Notifier
	logger   *zap.SugaredLogger
}

// NewAlertManager creates an AlertManager; notifier may be nil
func NewAlertManager(store storage.AlertStore, notifier Notifier, logger *zap.SugaredLogger) *AlertManager {
	return &AlertManager{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Process stores every alert and notifies critical ones. It returns the number
// of alerts stored; failures are logged and do not stop the remaining alerts.
func (m *AlertManager) Process(ctx context.Context, alerts []core.SecurityAlert) int {
	stored := 0
	for i := range alerts {
		alert := &alerts[i]
		metrics.AlertsGenerated.WithLabelValues(alert.Severity.String()).Inc()

		if err := m.store.Append(ctx, alert); err != nil {
			m.logger.Errorw("Failed to store alert",
				"alert_id", alert.ID,
				"severity", alert.Severity,
				"error", err)
		} else {
			stored++
		}

		if alert.IsCritical() && m.notifier != nil {
			m.notifier.Notify(ctx, alert)
		}
	}
	return stored
}

// Recent returns up to n alerts, newest first
func (m *AlertManager) Recent(ctx context.Context, n int) ([]core.SecurityAlert, error) {
	return m.store.Recent(ctx, n)
}

// Acknowledge marks an alert as handled by an operator
func (m *AlertManager) Acknowledge(ctx context.Context, id string) error {
	if err := m.store.Acknowledge(ctx, id); err != nil {
		return err
	}
	m.logger.Infow("Alert acknowledged", "alert_id", id)
	return nil
}
