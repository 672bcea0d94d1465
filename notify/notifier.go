package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"warden/core"
	"warden/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ChannelType represents the type of notification channel
type ChannelType string

const (
	// ChannelWebhook posts the alert as JSON
	ChannelWebhook ChannelType = "webhook"
	// ChannelSlack posts to a Slack incoming webhook
	ChannelSlack ChannelType = "slack"
)

// DefaultTimeout bounds a single delivery attempt
const DefaultTimeout = 10 * time.Second

// ChannelConfig holds configuration for one notification channel
type ChannelConfig struct {
	Name    string            `mapstructure:"name" validate:"required"`
	Type    ChannelType       `mapstructure:"type" validate:"required,oneof=webhook slack"`
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url" validate:"required,url"`
	Method  string            `mapstructure:"method" validate:"omitempty,oneof=POST PUT"`
	Headers map[string]string `mapstructure:"headers"`

	// MinSeverity filters out alerts below it; empty sends everything
	MinSeverity core.Severity `mapstructure:"min_severity" validate:"omitempty,oneof=low medium high critical"`
}

// BreakerConfig controls the per-channel circuit breaker
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before a trial delivery
	OpenTimeout time.Duration
}

// DefaultBreakerConfig opens after 3 consecutive failures for one minute
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		OpenTimeout:      60 * time.Second,
	}
}

type channel struct {
	config  ChannelConfig
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// Notifier delivers alerts to the configured channels. Delivery is best
// effort: failures are logged and counted, never retried or returned.
type Notifier struct {
	channels []*channel
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewNotifier creates a notifier with one circuit breaker per channel
func NewNotifier(configs []ChannelConfig, breakerCfg BreakerConfig, logger *zap.SugaredLogger) *Notifier {
	if breakerCfg.FailureThreshold == 0 {
		breakerCfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if breakerCfg.OpenTimeout <= 0 {
		breakerCfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	n := &Notifier{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		logger: logger,
	}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		n.channels = append(n.channels, &channel{
			config:  cfg,
			breaker: newBreaker(cfg.Name, breakerCfg, logger),
		})
	}
	return n
}

func newBreaker(name string, cfg BreakerConfig, logger *zap.SugaredLogger) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("Notification channel breaker changed state",
				"channel", name,
				"from", from.String(),
				"to", to.String())
		},
	})
}

// Notify sends alert to every enabled channel whose severity filter it passes
func (n *Notifier) Notify(ctx context.Context, alert *core.SecurityAlert) {
	for _, ch := range n.channels {
		if ch.config.MinSeverity != "" && alert.Severity.Rank() < ch.config.MinSeverity.Rank() {
			continue
		}

		_, err := ch.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, n.send(ctx, ch.config, alert)
		})
		if err == nil {
			n.logger.Infow("Sent alert notification",
				"channel", ch.config.Name,
				"alert_id", alert.ID)
			continue
		}

		metrics.NotificationFailures.WithLabelValues(ch.config.Name).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			n.logger.Warnw("Notification channel breaker open, skipping",
				"channel", ch.config.Name,
				"alert_id", alert.ID)
			continue
		}
		n.logger.Errorw("Failed to send alert notification",
			"channel", ch.config.Name,
			"alert_id", alert.ID,
			"error", fmt.Errorf("%w: %v", core.ErrNotificationFailure, err))
	}
}

// BreakerState returns the breaker state of a channel, or "" if unknown
func (n *Notifier) BreakerState(name string) string {
	for _, ch := range n.channels {
		if ch.config.Name == name {
			return ch.breaker.State().String()
		}
	}
	return ""
}

func (n *Notifier) send(ctx context.Context, cfg ChannelConfig, alert *core.SecurityAlert) error {
	var payload interface{}
	switch cfg.Type {
	case ChannelSlack:
		payload = slackPayload(alert)
	default:
		payload = webhookPayload(alert)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", cfg.Type, err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", cfg.Type, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Warden/1.0")
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s notification: %w", cfg.Type, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			n.logger.Debugw("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned non-2xx status: %d", cfg.Type, resp.StatusCode)
	}
	return nil
}
