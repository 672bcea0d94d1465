package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"warden/core"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultMaxAlerts is the alert list capacity
const DefaultMaxAlerts = 1000

// RedisAlertStore keeps alerts newest first in a single capped list.
// The mutex serializes producers in this process; the Redis transaction makes
// each append+trim atomic for other processes.
type RedisAlertStore struct {
	mu     sync.Mutex
	client *redis.Client
	max    int64
	logger *zap.SugaredLogger
}

// NewRedisAlertStore creates an alert store holding at most max alerts.
// max is clamped to 1..DefaultMaxAlerts; zero selects DefaultMaxAlerts.
func NewRedisAlertStore(client *redis.Client, max int, logger *zap.SugaredLogger) *RedisAlertStore {
	if max <= 0 || max > DefaultMaxAlerts {
		max = DefaultMaxAlerts
	}
	return &RedisAlertStore{
		client: client,
		max:    int64(max),
		logger: logger,
	}
}

// Append prepends alert and evicts the oldest entries beyond capacity
func (s *RedisAlertStore) Append(ctx context.Context, alert *core.SecurityAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, KeyAlerts, data)
		pipe.LTrim(ctx, KeyAlerts, 0, s.max-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append alert %s: %w", alert.ID, err)
	}
	return nil
}

// Recent returns up to n alerts, newest first
func (s *RedisAlertStore) Recent(ctx context.Context, n int) ([]core.SecurityAlert, error) {
	if n <= 0 {
		return []core.SecurityAlert{}, nil
	}

	raw, err := s.client.LRange(ctx, KeyAlerts, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}

	alerts := make([]core.SecurityAlert, 0, len(raw))
	for _, r := range raw {
		var a core.SecurityAlert
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			s.logger.Warnw("Skipping undecodable alert", "error", err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// Acknowledge marks the alert with id as acknowledged in place
func (s *RedisAlertStore) Acknowledge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, KeyAlerts, 0, -1).Result()
		if err != nil {
			return err
		}

		for i, r := range raw {
			var a core.SecurityAlert
			if err := json.Unmarshal([]byte(r), &a); err != nil || a.ID != id {
				continue
			}
			if a.Acknowledged {
				return nil
			}
			a.Acknowledged = true
			data, err := json.Marshal(&a)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LSet(ctx, KeyAlerts, int64(i), data)
				return nil
			})
			return err
		}
		return ErrAlertNotFound
	}, KeyAlerts)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: alert list", ErrConcurrentModification)
	}
	return err
}

// Len returns the number of stored alerts
func (s *RedisAlertStore) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, KeyAlerts).Result()
}
