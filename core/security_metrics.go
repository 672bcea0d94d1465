package core

import "time"

// CountEntry is one row of a top-N list
type CountEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// EndpointStat aggregates traffic for one "METHOD:path" endpoint
type EndpointStat struct {
	Endpoint string `json:"endpoint"`
	Requests int    `json:"requests"`
	Blocked  int    `json:"blocked"`
}

// SecurityMetrics is a point-in-time snapshot over the trailing metrics window
type SecurityMetrics struct {
	Timestamp            time.Time      `json:"timestamp"`
	TotalRequests        int            `json:"total_requests"`
	BlockedRequests      int            `json:"blocked_requests"`
	AttackAttempts       int            `json:"attack_attempts"`
	BlacklistedIPCount   int            `json:"blacklisted_ip_count"`
	RateLimitViolations  int            `json:"rate_limit_violations"`
	TopAttackTypes       []CountEntry   `json:"top_attack_types"`
	TopAttackIPs         []CountEntry   `json:"top_attack_ips"`
	SuspiciousUserAgents []CountEntry   `json:"suspicious_user_agents"`
	PerEndpointStats     []EndpointStat `json:"per_endpoint_stats"`
}

// EmptyMetrics returns a zeroed snapshot with non-nil lists
func EmptyMetrics(ts time.Time) SecurityMetrics {
	return SecurityMetrics{
		Timestamp:            ts.UTC(),
		TopAttackTypes:       []CountEntry{},
		TopAttackIPs:         []CountEntry{},
		SuspiciousUserAgents: []CountEntry{},
		PerEndpointStats:     []EndpointStat{},
	}
}

// TrendPoint is one day of the dashboard trend. Its counts are those of the
// latest hourly snapshot rolled up that day, not totals for the whole day.
type TrendPoint struct {
	Date            string `json:"date"`
	TotalRequests   int    `json:"total_requests"`
	AttackAttempts  int    `json:"attack_attempts"`
	BlockedRequests int    `json:"blocked_requests"`
}

// Dashboard is the read model served to operators
type Dashboard struct {
	CurrentMetrics SecurityMetrics `json:"current_metrics"`
	RecentAlerts   []SecurityAlert `json:"recent_alerts"`
	Trend          []TrendPoint    `json:"trend"`
}
