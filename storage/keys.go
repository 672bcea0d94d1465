package storage

import (
	"time"

	"warden/core"
)

// Redis key layout
const (
	KeyEventStreamPrefix = "security:events:"
	KeyAlerts            = "security:alerts"
	KeyDailyRollupPrefix = "security:metrics:daily:"
	KeyBlacklistPrefix   = "blacklist:"
	KeyRateLimitPrefix   = "ratelimit:"

	// RollupDateLayout names a daily rollup bucket; dates are UTC
	RollupDateLayout = "2006-01-02"
)

// EventStreamKey returns the list key for a category stream
func EventStreamKey(category core.EventCategory) string {
	return KeyEventStreamPrefix + string(category)
}

// BlacklistKey returns the marker key for a blacklisted IP
func BlacklistKey(ip string) string {
	return KeyBlacklistPrefix + ip
}

// RateLimitKey returns a counter key in the rate limit namespace
func RateLimitKey(name string) string {
	return KeyRateLimitPrefix + name
}

// DailyRollupKey returns the bucket for the UTC date of t
func DailyRollupKey(t time.Time) string {
	return KeyDailyRollupPrefix + t.UTC().Format(RollupDateLayout)
}
