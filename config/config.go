package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"warden/guard"
	"warden/monitor"
	"warden/notify"
	"warden/storage"
	"warden/util"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WARDEN_REDIS_ADDR
const EnvPrefix = "WARDEN"

// minJWTSecretLength is the shortest accepted HS256 signing secret
const minJWTSecretLength = 32

// Config holds all configuration for the warden service
type Config struct {
	Redis struct {
		Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db" validate:"gte=0,lte=15"`
		PoolSize int    `mapstructure:"pool_size" validate:"gte=1"`
	} `mapstructure:"redis"`

	// Database is the SQLite data-access collaborator behind the guarded executor
	Database struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"database"`

	Guard struct {
		AllowedTables    []string `mapstructure:"allowed_tables" validate:"dive,required"`
		VerdictCacheSize int      `mapstructure:"verdict_cache_size" validate:"gte=0"`
		// Patterns replaces the built-in signature table when non-empty
		Patterns []guard.PatternSpec `mapstructure:"patterns"`
	} `mapstructure:"guard"`

	Monitor struct {
		CollectInterval time.Duration      `mapstructure:"collect_interval"`
		ArchiveInterval time.Duration      `mapstructure:"archive_interval"`
		EventRetention  time.Duration      `mapstructure:"event_retention"`
		RollupRetention time.Duration      `mapstructure:"rollup_retention"`
		MaxAlerts       int                `mapstructure:"max_alerts" validate:"gte=1,lte=1000"`
		EventBufferSize int                `mapstructure:"event_buffer_size" validate:"gte=1"`
		Thresholds      monitor.Thresholds `mapstructure:"thresholds"`
	} `mapstructure:"monitor"`

	Notify struct {
		Channels []notify.ChannelConfig `mapstructure:"channels" validate:"dive"`
		Breaker  struct {
			FailureThreshold uint32        `mapstructure:"failure_threshold" validate:"gte=1"`
			OpenTimeout      time.Duration `mapstructure:"open_timeout"`
		} `mapstructure:"breaker"`
	} `mapstructure:"notify"`

	API struct {
		Port                 int      `mapstructure:"port" validate:"gte=1,lte=65535"`
		TrustProxy           bool     `mapstructure:"trust_proxy"`
		TrustedProxyNetworks []string `mapstructure:"trusted_proxy_networks" validate:"dive,cidr|ip"`
		RateLimit            struct {
			RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
			Burst             int     `mapstructure:"burst" validate:"gte=1"`
		} `mapstructure:"rate_limit"`
		// BlacklistTTL is how long an IP stays blocked after repeated rate limit violations
		BlacklistTTL time.Duration `mapstructure:"blacklist_ttl"`
		// BlacklistAfter is the number of violations within a minute that blacklists an IP; 0 disables
		BlacklistAfter int `mapstructure:"blacklist_after" validate:"gte=0"`
		// Auth guards the /api/security routes with HS256 bearer tokens
		Auth struct {
			Enabled   bool   `mapstructure:"enabled"`
			JWTSecret string `mapstructure:"jwt_secret"`
			Issuer    string `mapstructure:"issuer"`
		} `mapstructure:"auth"`
	} `mapstructure:"api"`

	Security struct {
		// Headers is the response header set asserted by the self-test
		Headers         map[string]string `mapstructure:"headers"`
		RequiredSecrets []string          `mapstructure:"required_secrets"`
	} `mapstructure:"security"`

	Secrets struct {
		Provider string `mapstructure:"provider" validate:"omitempty,oneof=env vault aws"`
		Vault    struct {
			Address string `mapstructure:"address"`
			Token   string `mapstructure:"token"`
			Path    string `mapstructure:"path"`
		} `mapstructure:"vault"`
		AWS struct {
			Region    string `mapstructure:"region"`
			SecretID  string `mapstructure:"secret_id"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
		} `mapstructure:"aws"`
	} `mapstructure:"secrets"`
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("redis.addr", "127.0.0.1:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.path", "./data/warden.db")

	viper.SetDefault("guard.allowed_tables", []string{})
	viper.SetDefault("guard.verdict_cache_size", 4096)

	viper.SetDefault("monitor.collect_interval", monitor.DefaultCollectInterval)
	viper.SetDefault("monitor.archive_interval", monitor.DefaultArchiveInterval)
	viper.SetDefault("monitor.event_retention", monitor.DefaultEventRetention)
	viper.SetDefault("monitor.rollup_retention", storage.DefaultRollupRetention)
	viper.SetDefault("monitor.max_alerts", storage.DefaultMaxAlerts)
	viper.SetDefault("monitor.event_buffer_size", 1024)
	defaults := monitor.DefaultThresholds()
	viper.SetDefault("monitor.thresholds.critical_attacks", defaults.CriticalAttacks)
	viper.SetDefault("monitor.thresholds.high_attacks", defaults.HighAttacks)
	viper.SetDefault("monitor.thresholds.blacklisted_ips", defaults.BlacklistedIPs)
	viper.SetDefault("monitor.thresholds.rate_limit_violations", defaults.RateLimitViolations)
	viper.SetDefault("monitor.thresholds.attacks_per_ip", defaults.AttacksPerIP)

	breaker := notify.DefaultBreakerConfig()
	viper.SetDefault("notify.breaker.failure_threshold", breaker.FailureThreshold)
	viper.SetDefault("notify.breaker.open_timeout", breaker.OpenTimeout)

	viper.SetDefault("api.port", 8090)
	viper.SetDefault("api.trust_proxy", false)
	viper.SetDefault("api.trusted_proxy_networks", []string{})
	viper.SetDefault("api.rate_limit.requests_per_second", 20)
	viper.SetDefault("api.rate_limit.burst", 40)
	viper.SetDefault("api.blacklist_ttl", time.Hour)
	viper.SetDefault("api.blacklist_after", 100)
	viper.SetDefault("api.auth.enabled", false)
	viper.SetDefault("api.auth.jwt_secret", "")
	viper.SetDefault("api.auth.issuer", "warden")

	viper.SetDefault("security.headers", map[string]string{})
	viper.SetDefault("security.required_secrets", []string{})

	viper.SetDefault("secrets.provider", "env")
	viper.SetDefault("secrets.vault.path", "secret/warden")
	viper.SetDefault("secrets.aws.secret_id", "warden/secrets")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Unmarshal only sees env values for keys viper already knows about
	_ = viper.BindEnv("redis.addr", "WARDEN_REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "WARDEN_REDIS_PASSWORD")
	_ = viper.BindEnv("database.path", "WARDEN_DATABASE_PATH")
	_ = viper.BindEnv("api.auth.jwt_secret", "WARDEN_API_AUTH_JWT_SECRET")
	_ = viper.BindEnv("secrets.vault.token", "WARDEN_VAULT_TOKEN")
	_ = viper.BindEnv("secrets.aws.access_key", "WARDEN_AWS_ACCESS_KEY")
	_ = viper.BindEnv("secrets.aws.secret_key", "WARDEN_AWS_SECRET_KEY")
}

// LoadConfig loads configuration from file and environment variables. A file
// set with viper.SetConfigFile takes precedence over the search paths.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.normalize()
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// normalize lower-cases the whitelist and cleans the database path
func (c *Config) normalize() {
	for i, t := range c.Guard.AllowedTables {
		c.Guard.AllowedTables[i] = strings.ToLower(strings.TrimSpace(t))
	}
	if c.Database.Path != "" && c.Database.Path != ":memory:" {
		c.Database.Path = filepath.Clean(c.Database.Path)
	}
}

// PatternSet compiles the configured signature table, or returns the built-in one
func (c *Config) PatternSet() (*guard.PatternSet, error) {
	if len(c.Guard.Patterns) == 0 {
		return guard.DefaultPatterns(), nil
	}
	rv := util.NewRegexValidator()
	for _, p := range c.Guard.Patterns {
		if err := rv.ValidatePattern(p.Expr); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Name, err)
		}
	}
	return guard.NewPatternSet(c.Guard.Patterns)
}

// BreakerConfig returns the notifier circuit breaker settings
func (c *Config) BreakerConfig() notify.BreakerConfig {
	return notify.BreakerConfig{
		FailureThreshold: c.Notify.Breaker.FailureThreshold,
		OpenTimeout:      c.Notify.Breaker.OpenTimeout,
	}
}

// validateConfig validates the configuration for security and correctness
func validateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	if config.Monitor.CollectInterval < time.Second {
		return fmt.Errorf("monitor.collect_interval must be at least 1s, got %v", config.Monitor.CollectInterval)
	}
	if config.Monitor.ArchiveInterval < time.Second {
		return fmt.Errorf("monitor.archive_interval must be at least 1s, got %v", config.Monitor.ArchiveInterval)
	}
	if config.Monitor.EventRetention < time.Hour {
		return fmt.Errorf("monitor.event_retention must be at least 1h, got %v", config.Monitor.EventRetention)
	}
	if config.Monitor.RollupRetention < 24*time.Hour {
		return fmt.Errorf("monitor.rollup_retention must be at least 24h, got %v", config.Monitor.RollupRetention)
	}

	t := config.Monitor.Thresholds
	if t.CriticalAttacks <= 0 || t.HighAttacks <= 0 || t.BlacklistedIPs <= 0 || t.RateLimitViolations <= 0 || t.AttacksPerIP <= 0 {
		return fmt.Errorf("monitor.thresholds must all be positive")
	}
	if t.HighAttacks >= t.CriticalAttacks {
		return fmt.Errorf("monitor.thresholds.high_attacks (%d) must be below critical_attacks (%d)", t.HighAttacks, t.CriticalAttacks)
	}

	if s := config.API.Auth.JWTSecret; s != "" && len(s) < minJWTSecretLength {
		return fmt.Errorf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}

	if config.Database.Enabled && config.Database.Path == "" {
		return fmt.Errorf("database.path is required when database is enabled")
	}

	if _, err := config.PatternSet(); err != nil {
		return fmt.Errorf("invalid guard.patterns: %w", err)
	}

	names := make(map[string]bool, len(config.Notify.Channels))
	for _, ch := range config.Notify.Channels {
		if names[ch.Name] {
			return fmt.Errorf("duplicate notify channel name: %s", ch.Name)
		}
		names[ch.Name] = true

		parsed, err := url.Parse(ch.URL)
		if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") {
			return fmt.Errorf("notify channel %s: url must be http or https", ch.Name)
		}
		// SECURITY: alert payloads carry attacker IPs, keep them off plaintext links in production
		if os.Getenv("WARDEN_ENV") == "production" && parsed.Scheme != "https" {
			return fmt.Errorf("notify channel %s: https is required in production", ch.Name)
		}
	}

	switch config.Secrets.Provider {
	case "vault":
		if config.Secrets.Vault.Address == "" {
			return fmt.Errorf("secrets.vault.address is required for the vault provider")
		}
	case "aws":
		if config.Secrets.AWS.Region == "" {
			return fmt.Errorf("secrets.aws.region is required for the aws provider")
		}
	}

	return nil
}
