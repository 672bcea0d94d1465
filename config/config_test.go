package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"warden/core"
	"warden/guard"
	"warden/notify"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadIsolated loads config with a fresh viper and an empty working directory
func loadIsolated(t *testing.T) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	chdir(t, t.TempDir())
	return LoadConfig()
}

func newTestConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := loadIsolated(t)
	require.NoError(t, err)
	return *cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadIsolated(t)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 4096, cfg.Guard.VerdictCacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.CollectInterval)
	assert.Equal(t, time.Hour, cfg.Monitor.ArchiveInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Monitor.EventRetention)
	assert.Equal(t, 30*24*time.Hour, cfg.Monitor.RollupRetention)
	assert.Equal(t, 1000, cfg.Monitor.MaxAlerts)
	assert.Equal(t, 200, cfg.Monitor.Thresholds.CriticalAttacks)
	assert.Equal(t, 50, cfg.Monitor.Thresholds.HighAttacks)
	assert.Equal(t, 10, cfg.Monitor.Thresholds.BlacklistedIPs)
	assert.Equal(t, 100, cfg.Monitor.Thresholds.RateLimitViolations)
	assert.Equal(t, 20, cfg.Monitor.Thresholds.AttacksPerIP)
	assert.Equal(t, uint32(3), cfg.Notify.Breaker.FailureThreshold)
	assert.Equal(t, 8090, cfg.API.Port)
	assert.Equal(t, "env", cfg.Secrets.Provider)

	ps, err := cfg.PatternSet()
	require.NoError(t, err)
	assert.Equal(t, 9, ps.Len())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("WARDEN_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("WARDEN_API_PORT", "9443")
	t.Setenv("WARDEN_MONITOR_THRESHOLDS_CRITICAL_ATTACKS", "500")

	cfg, err := loadIsolated(t)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 9443, cfg.API.Port)
	assert.Equal(t, 500, cfg.Monitor.Thresholds.CriticalAttacks)
}

func TestLoadConfig_RejectsAlertCapAboveLimit(t *testing.T) {
	t.Setenv("WARDEN_MONITOR_MAX_ALERTS", "5000")

	_, err := loadIsolated(t)
	assert.ErrorContains(t, err, "MaxAlerts")
}

func TestLoadConfig_File(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	chdir(t, dir)

	yaml := `
guard:
  allowed_tables: [Users, " Projects ", proposals]
  patterns:
    - name: union select
      category: union-based
      expr: '\bunion\s+select\b'
monitor:
  collect_interval: 1m
  thresholds:
    high_attacks: 10
notify:
  channels:
    - name: ops
      type: slack
      enabled: true
      url: https://hooks.slack.com/services/T000/B000/XXXX
      min_severity: high
security:
  headers:
    X-Frame-Options: DENY
  required_secrets: [jwt_secret]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "projects", "proposals"}, cfg.Guard.AllowedTables)
	assert.Equal(t, time.Minute, cfg.Monitor.CollectInterval)
	assert.Equal(t, 10, cfg.Monitor.Thresholds.HighAttacks)
	assert.Equal(t, 200, cfg.Monitor.Thresholds.CriticalAttacks)
	require.Len(t, cfg.Notify.Channels, 1)
	assert.Equal(t, notify.ChannelSlack, cfg.Notify.Channels[0].Type)
	assert.Equal(t, core.SeverityHigh, cfg.Notify.Channels[0].MinSeverity)
	assert.Equal(t, []string{"jwt_secret"}, cfg.Security.RequiredSecrets)
	// viper lower-cases map keys
	assert.Equal(t, "DENY", cfg.Security.Headers["x-frame-options"])

	ps, err := cfg.PatternSet()
	require.NoError(t, err)
	assert.Equal(t, []string{"union-based"}, ps.Categories())
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("redis: [unclosed"), 0o600))

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "bad redis addr", mutate: func(c *Config) { c.Redis.Addr = "no-port" }, wantErr: "Addr"},
		{name: "port out of range", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "Port"},
		{name: "zero rate", mutate: func(c *Config) { c.API.RateLimit.RequestsPerSecond = 0 }, wantErr: "RequestsPerSecond"},
		{name: "collect interval too short", mutate: func(c *Config) { c.Monitor.CollectInterval = time.Millisecond }, wantErr: "collect_interval"},
		{name: "retention too short", mutate: func(c *Config) { c.Monitor.EventRetention = time.Minute }, wantErr: "event_retention"},
		{name: "high above critical", mutate: func(c *Config) { c.Monitor.Thresholds.HighAttacks = 300 }, wantErr: "high_attacks"},
		{name: "non-positive threshold", mutate: func(c *Config) { c.Monitor.Thresholds.AttacksPerIP = 0 }, wantErr: "positive"},
		{name: "database without path", mutate: func(c *Config) {
			c.Database.Enabled = true
			c.Database.Path = ""
		}, wantErr: "database.path"},
		{name: "bad pattern", mutate: func(c *Config) {
			c.Guard.Patterns = []guard.PatternSpec{{Name: "x", Category: "y", Expr: "(unclosed"}}
		}, wantErr: "guard.patterns"},
		{name: "oversized pattern repetition", mutate: func(c *Config) {
			c.Guard.Patterns = []guard.PatternSpec{{Name: "x", Category: "y", Expr: `a{5000}`}}
		}, wantErr: "excessive repetition"},
		{name: "channel type", mutate: func(c *Config) {
			c.Notify.Channels = []notify.ChannelConfig{{Name: "x", Type: "email", URL: "https://example.com"}}
		}, wantErr: "Type"},
		{name: "duplicate channel", mutate: func(c *Config) {
			ch := notify.ChannelConfig{Name: "x", Type: notify.ChannelWebhook, URL: "https://example.com/hook"}
			c.Notify.Channels = []notify.ChannelConfig{ch, ch}
		}, wantErr: "duplicate"},
		{name: "short jwt secret", mutate: func(c *Config) {
			c.API.Auth.Enabled = true
			c.API.Auth.JWTSecret = "short"
		}, wantErr: "jwt_secret"},
		{name: "alert cap above 1000", mutate: func(c *Config) { c.Monitor.MaxAlerts = 1001 }, wantErr: "MaxAlerts"},
		{name: "alert cap at 1000", mutate: func(c *Config) { c.Monitor.MaxAlerts = 1000 }},
		{name: "vault without address", mutate: func(c *Config) { c.Secrets.Provider = "vault" }, wantErr: "vault.address"},
		{name: "unknown provider", mutate: func(c *Config) { c.Secrets.Provider = "gcp" }, wantErr: "Provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConfig(t)
			tt.mutate(&c)

			err := validateConfig(&c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig_ProductionRequiresHTTPS(t *testing.T) {
	c := newTestConfig(t)
	c.Notify.Channels = []notify.ChannelConfig{{Name: "ops", Type: notify.ChannelWebhook, URL: "http://alerts.internal/hook"}}
	require.NoError(t, validateConfig(&c))

	t.Setenv("WARDEN_ENV", "production")
	assert.ErrorContains(t, validateConfig(&c), "https is required")
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24)
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
