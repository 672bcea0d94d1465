package monitor

import (
	"fmt"

	"warden/core"

	"go.uber.org/zap"
)

// Thresholds are the strict upper bounds the detector compares against
type Thresholds struct {
	CriticalAttacks     int `mapstructure:"critical_attacks"`
	HighAttacks         int `mapstructure:"high_attacks"`
	BlacklistedIPs      int `mapstructure:"blacklisted_ips"`
	RateLimitViolations int `mapstructure:"rate_limit_violations"`
	AttacksPerIP        int `mapstructure:"attacks_per_ip"`
}

// DefaultThresholds returns the production thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalAttacks:     200,
		HighAttacks:         50,
		BlacklistedIPs:      10,
		RateLimitViolations: 100,
		AttacksPerIP:        20,
	}
}

// Alert id causes
const (
	causeAttackCritical = "attack_critical"
	causeAttackHigh     = "attack_high"
	causeBlacklist      = "blacklist"
	causeRateLimit      = "rate_limit"
	causeAttackIP       = "attack_ip"
)

// Detector turns a metrics snapshot into alerts. Every rule is evaluated on
// every call, so one snapshot can raise several alerts.
type Detector struct {
	thresholds Thresholds
	logger     *zap.SugaredLogger
}

// NewDetector creates a Detector
func NewDetector(thresholds Thresholds, logger *zap.SugaredLogger) *Detector {
	return &Detector{thresholds: thresholds, logger: logger}
}

// Detect returns the alerts raised by m, stamped with m's timestamp
func (d *Detector) Detect(m core.SecurityMetrics) []core.SecurityAlert {
	t := d.thresholds
	alerts := make([]core.SecurityAlert, 0)

	switch {
	case m.AttackAttempts > t.CriticalAttacks:
		alerts = append(alerts, d.alert(m, causeAttackCritical, "", core.SeverityCritical, core.AlertTypeAttackDetected,
			fmt.Sprintf("Critical attack volume: %d attack attempts in the last hour", m.AttackAttempts),
			map[string]interface{}{"attack_attempts": m.AttackAttempts, "threshold": t.CriticalAttacks}))
	case m.AttackAttempts > t.HighAttacks:
		alerts = append(alerts, d.alert(m, causeAttackHigh, "", core.SeverityHigh, core.AlertTypeAttackDetected,
			fmt.Sprintf("Elevated attack volume: %d attack attempts in the last hour", m.AttackAttempts),
			map[string]interface{}{"attack_attempts": m.AttackAttempts, "threshold": t.HighAttacks}))
	}

	if m.BlacklistedIPCount > t.BlacklistedIPs {
		alerts = append(alerts, d.alert(m, causeBlacklist, "", core.SeverityMedium, core.AlertTypeBlacklist,
			fmt.Sprintf("%d IP addresses are blacklisted", m.BlacklistedIPCount),
			map[string]interface{}{"blacklisted_ips": m.BlacklistedIPCount, "threshold": t.BlacklistedIPs}))
	}

	if m.RateLimitViolations > t.RateLimitViolations {
		alerts = append(alerts, d.alert(m, causeRateLimit, "", core.SeverityMedium, core.AlertTypeRateLimit,
			fmt.Sprintf("%d rate limit violations in the last hour", m.RateLimitViolations),
			map[string]interface{}{"rate_limit_violations": m.RateLimitViolations, "threshold": t.RateLimitViolations}))
	}

	for _, entry := range m.TopAttackIPs {
		if entry.Count <= t.AttacksPerIP {
			continue
		}
		alerts = append(alerts, d.alert(m, causeAttackIP, entry.Key, core.SeverityHigh, core.AlertTypeAttackDetected,
			fmt.Sprintf("IP %s made %d attack attempts in the last hour", entry.Key, entry.Count),
			map[string]interface{}{"attack_attempts": entry.Count, "threshold": t.AttacksPerIP}))
	}

	if len(alerts) > 0 {
		d.logger.Infow("Anomalies detected",
			"alerts", len(alerts),
			"attack_attempts", m.AttackAttempts,
			"blacklisted_ips", m.BlacklistedIPCount,
			"rate_limit_violations", m.RateLimitViolations)
	}
	return alerts
}

func (d *Detector) alert(m core.SecurityMetrics, cause, ip string, severity core.Severity, alertType core.AlertType, message string, metadata map[string]interface{}) core.SecurityAlert {
	return core.SecurityAlert{
		ID:        alertID(cause, m.Timestamp.UnixMilli(), ip),
		Timestamp: m.Timestamp,
		Severity:  severity,
		Type:      alertType,
		Message:   message,
		IP:        ip,
		Metadata:  metadata,
	}
}

// alertID formats "<cause>_<unixMillis>" with "_<ip>" appended for per-IP alerts
func alertID(cause string, unixMillis int64, ip string) string {
	if ip == "" {
		return fmt.Sprintf("%s_%d", cause, unixMillis)
	}
	return fmt.Sprintf("%s_%d_%s", cause, unixMillis, ip)
}
