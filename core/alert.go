package core

import "time"

// SecurityAlert is raised by anomaly detection and kept in a capped, newest-first list
type SecurityAlert struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Severity     Severity               `json:"severity"`
	Type         AlertType              `json:"type"`
	Message      string                 `json:"message"`
	IP           string                 `json:"ip,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Acknowledged bool                   `json:"acknowledged"`
}

// IsCritical reports whether the alert requires immediate notification
func (a *SecurityAlert) IsCritical() bool {
	return a.Severity == SeverityCritical
}
