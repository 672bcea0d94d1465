// Package api serves the operational security surface and the request-path
// middleware that records access, blacklist and rate limit events.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"warden/core"
	"warden/guard"
	"warden/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SelfTester runs the security self-test
type SelfTester interface {
	Run(ctx context.Context) core.ValidationResult
}

// DashboardBuilder assembles the operator dashboard
type DashboardBuilder interface {
	Build(ctx context.Context, now time.Time) (*core.Dashboard, error)
}

// AlertService reads and acknowledges stored alerts
type AlertService interface {
	Recent(ctx context.Context, n int) ([]core.SecurityAlert, error)
	Acknowledge(ctx context.Context, id string) error
}

// Options configures the API
type Options struct {
	Port                 int
	TrustProxy           bool
	TrustedProxyNetworks []string

	// RequestsPerSecond and Burst size the per-IP token bucket
	RequestsPerSecond float64
	Burst             int
	// BlacklistAfter violations within a minute blacklist the IP for BlacklistTTL; 0 disables
	BlacklistAfter int
	BlacklistTTL   time.Duration

	// JWTSecret enables bearer token auth on /api/security routes when non-empty
	JWTSecret []byte
	// JWTIssuer is checked against the iss claim when set
	JWTIssuer string
}

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// API holds the API server
type API struct {
	router    *mux.Router
	server    *http.Server
	serverMu  sync.Mutex
	opts      Options
	selfTest  SelfTester
	dashboard DashboardBuilder
	alerts    AlertService
	counters  storage.CounterStore
	events    guard.EventSink
	clock     core.Clock
	logger    *zap.SugaredLogger

	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// NewAPI creates a new API server
func NewAPI(opts Options, selfTest SelfTester, dashboard DashboardBuilder, alerts AlertService, counters storage.CounterStore, events guard.EventSink, clock core.Clock, logger *zap.SugaredLogger) *API {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if opts.BlacklistTTL <= 0 {
		opts.BlacklistTTL = time.Hour
	}
	a := &API{
		router:       mux.NewRouter(),
		opts:         opts,
		selfTest:     selfTest,
		dashboard:    dashboard,
		alerts:       alerts,
		counters:     counters,
		events:       events,
		clock:        clock,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	a.setupRoutes()
	go a.cleanupRateLimiters()
	return a
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.HandleFunc("/health/security", a.getSecurityHealth).Methods("GET")
	a.router.HandleFunc("/health/security/report", a.getSecurityReport).Methods("GET")

	ops := a.router.PathPrefix("/api/security").Subrouter()
	ops.Use(a.jwtAuthMiddleware)
	ops.HandleFunc("/dashboard", a.getDashboard).Methods("GET")
	ops.HandleFunc("/alerts", a.getAlerts).Methods("GET")
	ops.HandleFunc("/alerts/{id}/acknowledge", a.acknowledgeAlert).Methods("POST")

	a.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the router wrapped in the request-path middleware. The
// chain wraps the router rather than using mux.Use so that unmatched paths
// are recorded too.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.rateLimitMiddleware(h)
	h = a.blacklistMiddleware(h)
	h = a.accessLogMiddleware(h)
	return a.requestInfoMiddleware(h)
}

// Start starts the API server
func (a *API) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	a.serverMu.Lock()
	a.server = server
	a.serverMu.Unlock()

	a.logger.Infow("Starting API server", "addr", addr)
	return server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.serverMu.Lock()
	server := a.server
	a.serverMu.Unlock()
	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}
