package core

// Severity represents the severity of an alert or a validation check
type Severity string

const (
	// SeverityLow is informational
	SeverityLow Severity = "low"
	// SeverityMedium needs review
	SeverityMedium Severity = "medium"
	// SeverityHigh needs prompt attention
	SeverityHigh Severity = "high"
	// SeverityCritical triggers immediate notification
	SeverityCritical Severity = "critical"
)

// String returns the string representation
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rank orders severities from low (1) to critical (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AlertType classifies the cause of a security alert
type AlertType string

const (
	AlertTypeRateLimit      AlertType = "rate_limit"
	AlertTypeAttackDetected AlertType = "attack_detected"
	AlertTypeBlacklist      AlertType = "blacklist"
	AlertTypeAnomaly        AlertType = "anomaly"
	AlertTypeSystem         AlertType = "system"
)

// String returns the string representation
func (t AlertType) String() string {
	return string(t)
}

// IsValid checks if the alert type is valid
func (t AlertType) IsValid() bool {
	switch t {
	case AlertTypeRateLimit, AlertTypeAttackDetected, AlertTypeBlacklist, AlertTypeAnomaly, AlertTypeSystem:
		return true
	default:
		return false
	}
}

// EventCategory names one of the three security event streams
type EventCategory string

const (
	// CategoryAttack holds guard rejections and other detected attacks
	CategoryAttack EventCategory = "attack"
	// CategoryAccess holds one record per HTTP request
	CategoryAccess EventCategory = "access"
	// CategorySecurity holds allowed statements and request-path enforcement
	CategorySecurity EventCategory = "security"
)

// Categories lists every event stream in archive order
var Categories = []EventCategory{CategoryAttack, CategoryAccess, CategorySecurity}

// String returns the string representation
func (c EventCategory) String() string {
	return string(c)
}

// IsValid checks if the category is valid
func (c EventCategory) IsValid() bool {
	switch c {
	case CategoryAttack, CategoryAccess, CategorySecurity:
		return true
	default:
		return false
	}
}

// Event types recorded in SecurityEvent.Type
const (
	EventTypeQueryAllowed       = "query_allowed"
	EventTypeSQLInjection       = "sql_injection"
	EventTypeUnauthorizedTable  = "unauthorized_table"
	EventTypeRateLimitViolation = "rate_limit_violation"
	EventTypeBlacklistedRequest = "blacklisted_request"
	EventTypeHTTPRequest        = "http_request"
	EventTypeAuthFailure        = "auth_failure"
)

// CheckStatus is the outcome of a single validation check
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckFail    CheckStatus = "fail"
	CheckWarning CheckStatus = "warning"
)

// OverallStatus is the aggregate outcome of a validation run
type OverallStatus string

const (
	OverallPass OverallStatus = "pass"
	OverallFail OverallStatus = "fail"
)

// Limits applied to security events before they are stored
const (
	// MaxPayloadLength bounds the redacted payload kept on an event
	MaxPayloadLength = 500
	// MaxUserAgentLength bounds the redacted user agent kept on an event
	MaxUserAgentLength = 512
)
