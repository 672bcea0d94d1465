package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"warden/api"
	"warden/config"
	"warden/core"
	"warden/guard"
	"warden/monitor"
	"warden/notify"
	"warden/util/goroutine"
	"warden/validation"

	"go.uber.org/zap"
)

// App represents the warden service with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	Storage *StorageComponents

	// Guard
	EventLogger *monitor.EventLogger
	Guard       *guard.Guard
	// Executor is nil unless database.enabled is set
	Executor *guard.Executor

	// Monitoring
	Notifier  *notify.Notifier
	Alerts    *monitor.AlertManager
	Pipeline  *monitor.Pipeline
	Scheduler *monitor.Scheduler
	Dashboard *monitor.DashboardService

	// Services
	Validator *validation.Runner
	APIServer *api.API

	// Lifecycle
	serviceWg    *sync.WaitGroup
	cancel       context.CancelFunc
	schedulerErr <-chan error
	shutdownOnce sync.Once
}

// AppOptions controls how NewApp initializes logging.
type AppOptions struct {
	// CLI routes logs to stderr at warn level
	CLI bool
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context, opts AppOptions) (*App, error) {
	initLogger := InitLogger
	if opts.CLI {
		initLogger = InitCLILogger
	}
	logger, sugar, err := initLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sugar.Info("warden starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}

	return NewAppWithConfig(ctx, cfg, logger)
}

// NewAppWithConfig wires every component from an already loaded configuration.
func NewAppWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sugar := logger.Sugar()
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Sugar:     sugar,
		serviceWg: &sync.WaitGroup{},
	}

	stores, err := InitStorage(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Storage = stores

	patterns, err := cfg.PatternSet()
	if err != nil {
		app.closeStorage()
		return nil, fmt.Errorf("failed to compile guard patterns: %w", err)
	}

	if err := app.initGuard(patterns); err != nil {
		app.closeStorage()
		return nil, err
	}

	app.initMonitor()

	if err := app.initServices(patterns); err != nil {
		app.closeEventLogger()
		app.closeStorage()
		return nil, err
	}

	sugar.Info("All components initialized")
	return app, nil
}

func (a *App) initGuard(patterns *guard.PatternSet) error {
	a.EventLogger = monitor.NewEventLogger(a.Storage.Events, a.Config.Monitor.EventBufferSize, a.Sugar)

	var err error
	a.Guard, err = guard.New(guard.Options{
		Patterns:      patterns,
		AllowedTables: a.Config.Guard.AllowedTables,
		Sink:          a.EventLogger,
		CacheSize:     a.Config.Guard.VerdictCacheSize,
		Logger:        a.Sugar,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize query guard: %w", err)
	}

	if a.Storage.SQLite != nil {
		a.Executor = guard.NewExecutor(a.Guard, a.Storage.SQLite.DB)
		a.Sugar.Info("Guarded executor attached to SQLite")
	}

	a.Sugar.Infow("Query guard initialized",
		"patterns", patterns.Len(),
		"allowed_tables", a.Guard.DefaultWhitelist().Len())
	return nil
}

// WithGuardedTx runs fn inside a SQLite transaction with a guarded executor bound
// to it. A statement rejected by the guard, or any other error from fn, rolls
// back everything fn executed.
func (a *App) WithGuardedTx(ctx context.Context, fn func(*guard.Executor) error) error {
	if a.Storage == nil || a.Storage.SQLite == nil {
		return errors.New("guarded transactions need database.enabled")
	}
	return a.Storage.SQLite.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(guard.NewExecutor(a.Guard, tx))
	})
}

func (a *App) initMonitor() {
	cfg := a.Config

	a.Notifier = notify.NewNotifier(cfg.Notify.Channels, cfg.BreakerConfig(), a.Sugar)
	a.Alerts = monitor.NewAlertManager(a.Storage.Alerts, a.Notifier, a.Sugar)

	aggregator := monitor.NewAggregator(a.Storage.Events, a.Storage.Events, a.Sugar)
	detector := monitor.NewDetector(cfg.Monitor.Thresholds, a.Sugar)
	archiver := monitor.NewArchiver(a.Storage.Events, cfg.Monitor.EventRetention, a.Sugar)

	a.Pipeline = monitor.NewPipeline(aggregator, detector, a.Alerts, a.Storage.Rollups, archiver, core.SystemClock{}, a.Sugar)
	a.Scheduler = monitor.NewScheduler(a.Pipeline, cfg.Monitor.CollectInterval, cfg.Monitor.ArchiveInterval, a.Sugar)
	a.Dashboard = monitor.NewDashboardService(aggregator, a.Storage.Alerts, a.Storage.Rollups)
}

func (a *App) initServices(patterns *guard.PatternSet) error {
	cfg := a.Config

	secrets, err := config.NewSecretManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize secret manager: %w", err)
	}

	opts := validation.Options{
		Events:          a.Storage.Events,
		Counters:        a.Storage.Events,
		Secrets:         secrets,
		RequiredSecrets: cfg.Security.RequiredSecrets,
		Headers:         cfg.Security.Headers,
		Patterns:        patterns,
		Logger:          a.Sugar,
	}
	if a.Storage.SQLite != nil {
		opts.Database = a.Storage.SQLite
	}
	a.Validator = validation.NewRunner(opts)

	apiOpts := api.Options{
		Port:                 cfg.API.Port,
		TrustProxy:           cfg.API.TrustProxy,
		TrustedProxyNetworks: cfg.API.TrustedProxyNetworks,
		RequestsPerSecond:    cfg.API.RateLimit.RequestsPerSecond,
		Burst:                cfg.API.RateLimit.Burst,
		BlacklistAfter:       cfg.API.BlacklistAfter,
		BlacklistTTL:         cfg.API.BlacklistTTL,
	}
	if apiOpts.JWTSecret, err = cfg.ResolveJWTSecret(secrets); err != nil {
		return err
	}
	if apiOpts.JWTSecret != nil {
		apiOpts.JWTIssuer = cfg.API.Auth.Issuer
		a.Sugar.Infow("Operator API authentication enabled", "issuer", cfg.API.Auth.Issuer)
	}
	a.APIServer = api.NewAPI(apiOpts, a.Validator, a.Dashboard, a.Alerts, a.Storage.Events, a.EventLogger, core.SystemClock{}, a.Sugar)

	return nil
}

// Start launches the monitor scheduler and the API server.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.schedulerErr = a.Scheduler.Start(ctx)

	addr := fmt.Sprintf(":%d", a.Config.API.Port)
	a.serviceWg.Add(1)
	goroutine.Go("api-server", a.Sugar, func() {
		defer a.serviceWg.Done()
		if err := a.APIServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorw("API server stopped unexpectedly", "error", err)
		}
	})

	a.Sugar.Infow("warden started", "api_addr", addr)
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components. It is safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	a.Sugar.Info("Phase 1: Stopping API server...")
	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
		cancel()
	}

	a.Sugar.Info("Phase 2: Stopping monitor scheduler...")
	if a.cancel != nil {
		a.cancel()
	}
	if a.schedulerErr != nil {
		select {
		case err := <-a.schedulerErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.Sugar.Warnw("Monitor scheduler exited with error", "error", err)
			}
		case <-time.After(15 * time.Second):
			a.Sugar.Warn("Monitor scheduler shutdown timed out")
		}
	}

	a.Sugar.Info("Phase 3: Waiting for service goroutines to complete...")
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped successfully")
	case <-time.After(10 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	a.Sugar.Info("Phase 4: Flushing security events...")
	a.closeEventLogger()

	a.Sugar.Info("Phase 5: Closing database connections...")
	a.closeStorage()

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}

func (a *App) closeEventLogger() {
	if a.EventLogger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.EventLogger.Close(ctx); err != nil {
		a.Sugar.Errorw("Security event flush incomplete", "error", err)
	}
}

func (a *App) closeStorage() {
	if a.Storage != nil {
		a.Storage.Close(a.Sugar)
	}
}
