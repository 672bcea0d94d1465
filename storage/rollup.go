package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warden/core"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRollupRetention is how long a daily bucket lives after its last write
const DefaultRollupRetention = 30 * 24 * time.Hour

// RedisRollupStore appends one metrics snapshot per collection cycle to a
// date-keyed list
type RedisRollupStore struct {
	client    *redis.Client
	retention time.Duration
	logger    *zap.SugaredLogger
}

// NewRedisRollupStore creates a rollup store
func NewRedisRollupStore(client *redis.Client, retention time.Duration, logger *zap.SugaredLogger) *RedisRollupStore {
	if retention <= 0 {
		retention = DefaultRollupRetention
	}
	return &RedisRollupStore{
		client:    client,
		retention: retention,
		logger:    logger,
	}
}

// AppendSnapshot appends m to the bucket for m's UTC date and refreshes its TTL
func (s *RedisRollupStore) AppendSnapshot(ctx context.Context, m core.SecurityMetrics) error {
	data, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics snapshot: %w", err)
	}

	key := DailyRollupKey(m.Timestamp)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append rollup %s: %w", key, err)
	}
	return nil
}

// Trend returns one point per day for the last days days ending at now's UTC
// date, oldest first. Each point carries the day's latest snapshot totals; days
// without snapshots are zero.
func (s *RedisRollupStore) Trend(ctx context.Context, now time.Time, days int) ([]core.TrendPoint, error) {
	if days <= 0 {
		return []core.TrendPoint{}, nil
	}

	today := now.UTC()
	points := make([]core.TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		point := core.TrendPoint{Date: day.Format(RollupDateLayout)}

		raw, err := s.client.LIndex(ctx, DailyRollupKey(day), -1).Result()
		if errors.Is(err, redis.Nil) {
			points = append(points, point)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rollup for %s: %w", point.Date, err)
		}

		var m core.SecurityMetrics
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			s.logger.Warnw("Skipping undecodable rollup snapshot", "date", point.Date, "error", err)
			points = append(points, point)
			continue
		}
		point.TotalRequests = m.TotalRequests
		point.AttackAttempts = m.AttackAttempts
		point.BlockedRequests = m.BlockedRequests
		points = append(points, point)
	}
	return points, nil
}
