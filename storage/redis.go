package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warden/core"
	"warden/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxPruneAttempts bounds optimistic retries when appends race a prune
const maxPruneAttempts = 3

// RedisStore implements EventLogStore and CounterStore on Redis lists and keys
type RedisStore struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisClient creates a Redis client
func NewRedisClient(addr, password string, db, poolSize int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client *redis.Client, logger *zap.SugaredLogger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
	}
}

// Client returns the underlying client
func (rs *RedisStore) Client() *redis.Client {
	return rs.client
}

// Ping tests the Redis connection
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// Append pushes event onto the tail of its category stream
func (rs *RedisStore) Append(ctx context.Context, event *core.SecurityEvent) error {
	if !event.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStream, event.Category)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal security event: %w", err)
	}

	if err := rs.client.RPush(ctx, EventStreamKey(event.Category), data).Err(); err != nil {
		return fmt.Errorf("failed to append to %s stream: %w", event.Category, err)
	}
	metrics.EventsEmitted.WithLabelValues(string(event.Category)).Inc()
	return nil
}

// Range returns events with a timestamp strictly after since
func (rs *RedisStore) Range(ctx context.Context, stream core.EventCategory, since time.Time) ([]core.SecurityEvent, error) {
	all, err := rs.ReadAll(ctx, stream)
	if err != nil {
		return nil, err
	}

	out := make([]core.SecurityEvent, 0, len(all))
	for _, e := range all {
		if e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ReadAll returns every event in the stream, oldest first
func (rs *RedisStore) ReadAll(ctx context.Context, stream core.EventCategory) ([]core.SecurityEvent, error) {
	if !stream.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStream, stream)
	}

	raw, err := rs.client.LRange(ctx, EventStreamKey(stream), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s stream: %w", stream, err)
	}
	return decodeEvents(stream, raw)
}

// Replace atomically swaps the stream contents for keep
func (rs *RedisStore) Replace(ctx context.Context, stream core.EventCategory, keep []core.SecurityEvent) error {
	if !stream.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStream, stream)
	}

	values, err := encodeEvents(keep)
	if err != nil {
		return err
	}

	key := EventStreamKey(stream)
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s stream: %w", stream, err)
	}
	return nil
}

// Prune removes events at or before keepAfter. The read and the rewrite run
// under WATCH so an event appended in between aborts and retries the rewrite.
func (rs *RedisStore) Prune(ctx context.Context, stream core.EventCategory, keepAfter time.Time) (int, error) {
	if !stream.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStream, stream)
	}
	key := EventStreamKey(stream)

	for attempt := 0; attempt < maxPruneAttempts; attempt++ {
		removed := 0
		err := rs.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.LRange(ctx, key, 0, -1).Result()
			if err != nil {
				return fmt.Errorf("failed to read %s stream: %w", stream, err)
			}
			events, err := decodeEvents(stream, raw)
			if err != nil {
				return err
			}

			keep := make([]core.SecurityEvent, 0, len(events))
			for _, e := range events {
				if e.Timestamp.After(keepAfter) {
					keep = append(keep, e)
				}
			}
			removed = len(events) - len(keep)
			if removed == 0 {
				return nil
			}

			values, err := encodeEvents(keep)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				if len(values) > 0 {
					pipe.RPush(ctx, key, values...)
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			rs.logger.Debugw("Stream changed during prune, retrying",
				"stream", stream,
				"attempt", attempt+1)
			continue
		}
		if err != nil {
			return 0, err
		}
		return removed, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrConcurrentModification, stream)
}

// CountAll returns the stream length
func (rs *RedisStore) CountAll(ctx context.Context, stream core.EventCategory) (int64, error) {
	if !stream.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStream, stream)
	}
	return rs.client.LLen(ctx, EventStreamKey(stream)).Result()
}

// Incr increments a counter, creating it at 1
func (rs *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return rs.client.Incr(ctx, key).Result()
}

// Expire sets a TTL on key
func (rs *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return rs.client.Expire(ctx, key, ttl).Err()
}

// GetCounter reads a counter; a missing key reads as 0
func (rs *RedisStore) GetCounter(ctx context.Context, key string) (int64, error) {
	n, err := rs.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Delete removes keys
func (rs *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return rs.client.Del(ctx, keys...).Err()
}

// CountKeys counts keys matching a glob pattern using SCAN
func (rs *RedisStore) CountKeys(ctx context.Context, pattern string) (int, error) {
	count := 0
	var cursor uint64
	for {
		keys, next, err := rs.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan %q: %w", pattern, err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Blacklist marks ip as blacklisted for ttl; ttl 0 means no expiry
func (rs *RedisStore) Blacklist(ctx context.Context, ip string, ttl time.Duration) error {
	return rs.client.Set(ctx, BlacklistKey(ip), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

// IsBlacklisted reports whether a blacklist marker exists for ip
func (rs *RedisStore) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	n, err := rs.client.Exists(ctx, BlacklistKey(ip)).Result()
	return n > 0, err
}

func decodeEvents(stream core.EventCategory, raw []string) ([]core.SecurityEvent, error) {
	events := make([]core.SecurityEvent, 0, len(raw))
	for i, r := range raw {
		var e core.SecurityEvent
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("%w: %s stream entry %d: %v", ErrCorruptEntry, stream, i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func encodeEvents(events []core.SecurityEvent) ([]interface{}, error) {
	values := make([]interface{}, 0, len(events))
	for i := range events {
		data, err := json.Marshal(&events[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal security event: %w", err)
		}
		values = append(values, data)
	}
	return values, nil
}
