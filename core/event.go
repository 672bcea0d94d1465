package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"warden/util"

	"github.com/google/uuid"
)

// SecurityEvent is a single entry in one of the attack, access or security streams.
// Events are append-only: they are built once by NewSecurityEvent and never mutated.
type SecurityEvent struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Category    EventCategory `json:"category"`
	Type        string        `json:"type"`
	IP          string        `json:"ip,omitempty"`
	UserAgent   string        `json:"user_agent,omitempty"`
	Payload     string        `json:"payload,omitempty"`
	AttackTypes []string      `json:"attack_types,omitempty"`
	Method      string        `json:"method,omitempty"`
	URL         string        `json:"url,omitempty"`
	StatusCode  int           `json:"status_code,omitempty"`
}

// EventDetails carries the caller-supplied parts of a security event
type EventDetails struct {
	IP          string
	UserAgent   string
	Payload     string
	AttackTypes []string
	Method      string
	URL         string
	StatusCode  int
}

// NewSecurityEvent builds an event with secrets redacted from the user agent and
// payload. The payload is truncated to MaxPayloadLength characters after redaction.
func NewSecurityEvent(ts time.Time, category EventCategory, eventType string, d EventDetails) *SecurityEvent {
	var attackTypes []string
	if len(d.AttackTypes) > 0 {
		attackTypes = make([]string, len(d.AttackTypes))
		copy(attackTypes, d.AttackTypes)
	}

	return &SecurityEvent{
		ID:          uuid.New().String(),
		Timestamp:   ts.UTC(),
		Category:    category,
		Type:        eventType,
		IP:          d.IP,
		UserAgent:   truncateRunes(util.RedactSecrets(d.UserAgent), MaxUserAgentLength),
		Payload:     truncateRunes(util.RedactSecrets(d.Payload), MaxPayloadLength),
		AttackTypes: attackTypes,
		Method:      strings.ToUpper(d.Method),
		URL:         d.URL,
		StatusCode:  d.StatusCode,
	}
}

// EndpointKey returns "METHOD:path" with any query string removed
func (e *SecurityEvent) EndpointKey() string {
	path := e.URL
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return e.Method + ":" + path
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
