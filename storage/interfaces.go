package storage

import (
	"context"
	"time"

	"warden/core"
)

// EventLogStore holds the attack, access and security streams. Entries are kept
// in append order. Range and ReadAll fail if any entry cannot be decoded.
type EventLogStore interface {
	Append(ctx context.Context, event *core.SecurityEvent) error
	// Range returns events of stream with a timestamp strictly after since
	Range(ctx context.Context, stream core.EventCategory, since time.Time) ([]core.SecurityEvent, error)
	ReadAll(ctx context.Context, stream core.EventCategory) ([]core.SecurityEvent, error)
	// Replace atomically swaps the stream contents for keep
	Replace(ctx context.Context, stream core.EventCategory, keep []core.SecurityEvent) error
	// Prune removes events at or before keepAfter and returns how many were removed.
	// The stream is left untouched when nothing is removed or on any error.
	Prune(ctx context.Context, stream core.EventCategory, keepAfter time.Time) (int, error)
	CountAll(ctx context.Context, stream core.EventCategory) (int64, error)
}

// CounterStore provides the counter, TTL and blacklist primitives
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	GetCounter(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
	CountKeys(ctx context.Context, pattern string) (int, error)
	Blacklist(ctx context.Context, ip string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, ip string) (bool, error)
	Ping(ctx context.Context) error
}

// AlertStore keeps a capped, newest-first list of alerts
type AlertStore interface {
	Append(ctx context.Context, alert *core.SecurityAlert) error
	Recent(ctx context.Context, n int) ([]core.SecurityAlert, error)
	Acknowledge(ctx context.Context, id string) error
	Len(ctx context.Context) (int64, error)
}

// RollupStore keeps date-keyed buckets of metrics snapshots
type RollupStore interface {
	AppendSnapshot(ctx context.Context, m core.SecurityMetrics) error
	Trend(ctx context.Context, now time.Time, days int) ([]core.TrendPoint, error)
}
