package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_guard_decisions_total",
			Help: "Total number of statements checked by the query guard",
		},
		[]string{"outcome", "category"},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_security_events_emitted_total",
			Help: "Total number of security events written to a stream",
		},
		[]string{"category"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_security_events_dropped_total",
			Help: "Total number of security events dropped before reaching the store",
		},
		[]string{"reason"},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"severity"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_notification_failures_total",
			Help: "Total number of failed alert notifications",
		},
		[]string{"channel"},
	)

	HTTPRequestsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_http_requests_rejected_total",
			Help: "Total number of HTTP requests rejected by the security middleware",
		},
		[]string{"reason"},
	)
)
