package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"warden/config"
	"warden/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StorageComponents holds all storage-related components.
type StorageComponents struct {
	Redis   *redis.Client
	Events  *storage.RedisStore
	Alerts  *storage.RedisAlertStore
	Rollups *storage.RedisRollupStore
	// SQLite is nil unless database.enabled is set
	SQLite *storage.SQLite
}

// retryDelays is overridden in tests
var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// InitRedis connects to Redis with retry logic.
func InitRedis(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*redis.Client, error) {
	maxRetries := len(retryDelays)

	client := storage.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sugar.Infow("Retrying Redis connection",
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", retryDelays[attempt-1])
			select {
			case <-time.After(retryDelays[attempt-1]):
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			}
		}

		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			break
		}

		sugar.Warnw("Redis connection attempt failed",
			"attempt", attempt+1,
			"error", lastErr)
	}

	if lastErr != nil {
		_ = client.Close()
		errMsg := ClassifyConnectionError(lastErr, cfg.Redis.Addr)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: Redis Connection Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries+1, lastErr)
	}

	sugar.Infow("Connected to Redis successfully", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return client, nil
}

// InitSQLite initializes the SQLite connection behind the guarded executor.
func InitSQLite(cfg *config.Config, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	if err := EnsureDataDirectory(cfg.Database.Path, sugar); err != nil {
		return nil, err
	}

	sqlite, err := storage.NewSQLite(cfg.Database.Path, sugar)
	if err != nil {
		errMsg := ClassifySQLiteError(err, cfg.Database.Path)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: SQLite Initialization Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	sugar.Info("SQLite initialized successfully")
	return sqlite, nil
}

// InitStorage connects every store the monitor and API depend on.
func InitStorage(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*StorageComponents, error) {
	client, err := InitRedis(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}

	components := &StorageComponents{
		Redis:   client,
		Events:  storage.NewRedisStore(client, sugar),
		Alerts:  storage.NewRedisAlertStore(client, cfg.Monitor.MaxAlerts, sugar),
		Rollups: storage.NewRedisRollupStore(client, cfg.Monitor.RollupRetention, sugar),
	}

	if cfg.Database.Enabled {
		sqlite, err := InitSQLite(cfg, sugar)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		components.SQLite = sqlite
	}

	return components, nil
}

// Close releases every open connection.
func (s *StorageComponents) Close(sugar *zap.SugaredLogger) {
	if s.SQLite != nil {
		if err := s.SQLite.Close(); err != nil {
			sugar.Errorw("Failed to close SQLite", "error", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			sugar.Errorw("Failed to close Redis connection", "error", err)
		}
	}
}
