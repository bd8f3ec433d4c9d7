// Package bootstrap wires configuration into the services shared by the HTTP
// server and the operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/cache"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/config"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/fetch"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/logger"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/persistence"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/scheduler"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/telemetry"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/trello"
)

// Version is set at build time with -ldflags "-X .../bootstrap.Version=..."
var Version = "dev"

// App holds the wired services. Close releases everything New opened.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *persistence.Database
	Registry *prometheus.Registry
	Tracer   *telemetry.TracerProvider

	Operator *appintegration.OperatorService
	Webhooks *appintegration.WebhookService
	Configs  *persistence.GormSyncConfigRepository

	deliveries integration.DeliveryStore
}

// New opens the database, builds the board adapter and the reconciliation
// services. SQLite databases are migrated from the persistence models.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}
	app.Tracer = tracer

	dbOpts := []persistence.DatabaseOption{
		persistence.WithZapLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracing := telemetry.DefaultDBTracingConfig()
		tracing.Enabled = true
		tracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if cfg.Database.Driver == config.DriverSQLite {
			tracing.DBSystem = "sqlite"
		}
		dbOpts = append(dbOpts, persistence.WithTracing(tracing))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		app.shutdownTracer()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	app.DB = db
	if sqlDB, err := db.DB.DB(); err == nil {
		app.Registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, cfg.Database.DBName))
	}
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = app.Close(ctx)
			return nil, fmt.Errorf("migrating sqlite schema: %w", err)
		}
	}

	if err := app.wireServices(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) wireServices(ctx context.Context) error {
	cfg := a.Config

	client, err := fetch.NewClient(fetch.Config{
		Retry: fetch.RetryConfig{
			MaxRetries: cfg.Sync.MaxRetries,
			BaseDelay:  cfg.Sync.BaseDelay,
			MaxDelay:   cfg.Sync.MaxDelay,
			Multiplier: 2.0,
		},
		RequestTimeout:  cfg.Sync.RequestTimeout,
		RateLimit:       cfg.Sync.RateLimit,
		RateBurst:       cfg.Sync.RateBurst,
		MaxResponseSize: fetch.DefaultConfig().MaxResponseSize,
		UserAgent:       cfg.App.Name + "/" + Version,
	},
		fetch.WithMetrics(fetch.NewMetrics(a.Registry)),
		fetch.WithLogger(a.Logger),
	)
	if err != nil {
		return fmt.Errorf("creating board API client: %w", err)
	}

	trelloCfg := trello.NewTrelloConfig()
	trelloCfg.APIBaseURL = cfg.Board.APIBaseURL
	trelloCfg.CardActionsLimit = cfg.Board.CardActionsLimit
	board, err := trello.NewTrelloAdapter(trelloCfg, client, a.Logger)
	if err != nil {
		return fmt.Errorf("creating board adapter: %w", err)
	}

	deliveries, err := cache.NewDeliveryStoreFactory(cfg.Redis,
		cache.WithLogger(a.Logger),
		cache.WithInMemoryFallback(true),
	).CreateStore(ctx)
	if err != nil {
		return fmt.Errorf("creating webhook delivery store: %w", err)
	}
	a.deliveries = deliveries

	leads := persistence.NewGormLeadRepository(a.DB.DB)
	a.Configs = persistence.NewGormSyncConfigRepository(a.DB.DB)
	users := persistence.NewGormUserRepository(a.DB.DB)

	members := appintegration.NewMemberDirectory(users, board, cfg.Sync.MemberCacheSize, cfg.Sync.MemberCacheTTL, a.Logger)
	syncer := appintegration.NewCardSynchronizer(leads, members, a.Logger)
	syncMetrics := telemetry.NewSyncMetrics(a.Registry)

	driver := appintegration.NewReconciliationDriver(a.Configs, board, leads, syncer, appintegration.DriverConfig{
		PageSize:   cfg.Sync.PageSize,
		Workers:    cfg.Sync.Workers,
		CardDelay:  cfg.Sync.CardDelay,
		BatchSize:  cfg.Sync.BatchSize,
		BatchPause: cfg.Sync.BatchPause,
	}, a.Logger)
	driver.SetSyncMetrics(syncMetrics)

	a.Webhooks = appintegration.NewWebhookService(a.Configs, board, leads, syncer, deliveries, cfg.Sync.WebhookDedupTTL, a.Logger)
	a.Webhooks.SetSyncMetrics(syncMetrics)

	a.Operator = appintegration.NewOperatorService(
		driver,
		a.Webhooks,
		a.Configs,
		leads,
		board,
		appintegration.NewRunHistory(cfg.Sync.RunHistorySize),
		cfg.Board.WebhookCallbackBase,
		a.Logger,
	)
	return nil
}

// SeedTenant stores the [board] credentials as the configuration of the seed
// tenant when it has none yet. It is a no-op without a seed tenant.
func (a *App) SeedTenant(ctx context.Context) error {
	board := a.Config.Board
	if board.SeedTenantID == "" {
		return nil
	}
	tenantID, err := uuid.Parse(board.SeedTenantID)
	if err != nil {
		return fmt.Errorf("invalid seed tenant id: %w", err)
	}

	seed := &integration.SyncConfiguration{
		ID:         uuid.New(),
		TenantID:   tenantID,
		APIKey:     board.APIKey,
		APIToken:   board.APIToken,
		BoardID:    board.BoardID,
		ListStatus: make(map[string]integration.LeadStatus, len(board.ListStatus)),
		ListRegion: make(map[string]integration.Region, len(board.ListRegion)),
		Enabled:    true,
	}
	for listID, status := range board.ListStatus {
		s := integration.LeadStatus(status)
		if !s.IsValid() {
			return fmt.Errorf("board.list_status[%s]: unknown lead status %q", listID, status)
		}
		seed.ListStatus[listID] = s
	}
	for listID, region := range board.ListRegion {
		seed.ListRegion[listID] = integration.Region(region)
	}

	stored, err := a.Operator.SeedConfiguration(ctx, seed)
	if err != nil {
		return err
	}
	if stored {
		a.Logger.Info("Seeded board sync configuration",
			zap.String("tenant_id", tenantID.String()),
			zap.String("board_id", board.BoardID),
		)
	}
	return nil
}

// EnsureWebhooks registers board webhooks for enabled tenants when
// auto-registration is on and a callback base is configured.
func (a *App) EnsureWebhooks(ctx context.Context) {
	board := a.Config.Board
	if !board.AutoRegisterWebhook || board.WebhookCallbackBase == "" {
		return
	}
	failed, err := a.Operator.EnsureWebhooks(ctx)
	if err != nil {
		a.Logger.Warn("Webhook auto-registration skipped", zap.Error(err))
		return
	}
	if failed > 0 {
		a.Logger.Warn("Some tenants have no board webhook", zap.Int("failed", failed))
	}
}

// Scheduling is the periodic reconciliation pipeline
type Scheduling struct {
	Scheduler *scheduler.ReconcileScheduler
	Trigger   *scheduler.ReconcileTrigger
}

// StartScheduling starts the worker pool and the periodic trigger.
// It returns nil when scheduling is disabled.
func (a *App) StartScheduling(ctx context.Context) (*Scheduling, error) {
	sc := a.Config.Scheduler
	if !sc.Enabled {
		a.Logger.Info("Scheduled reconciliation disabled")
		return nil, nil
	}

	schedCfg := scheduler.DefaultReconcileSchedulerConfig()
	schedCfg.MaxConcurrentJobs = sc.MaxConcurrentJobs
	schedCfg.JobTimeout = sc.JobTimeout
	schedCfg.RetryAttempts = sc.RetryAttempts
	schedCfg.RetryDelay = sc.RetryDelay
	schedCfg.MaxRetryDelay = sc.MaxRetryDelay

	executor := scheduler.NewReconcileExecutor(a.Operator, a.Logger)
	sched, err := scheduler.NewReconcileScheduler(schedCfg, executor, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating reconcile scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting reconcile scheduler: %w", err)
	}

	triggerCfg := scheduler.DefaultReconcileTriggerConfig()
	triggerCfg.Interval = sc.Interval
	trigger := scheduler.NewReconcileTrigger(triggerCfg, sched, a.Configs, a.Logger)
	if err := trigger.Start(ctx); err != nil {
		_ = sched.Stop(ctx)
		return nil, fmt.Errorf("starting reconcile trigger: %w", err)
	}
	return &Scheduling{Scheduler: sched, Trigger: trigger}, nil
}

// Stop stops the trigger first so no job is queued while the pool drains
func (s *Scheduling) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return errors.Join(s.Trigger.Stop(ctx), s.Scheduler.Stop(ctx))
}

// Close releases the delivery store, the database and the tracer
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.deliveries != nil {
		errs = append(errs, a.deliveries.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		errs = append(errs, a.Tracer.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}

func (a *App) shutdownTracer() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.Tracer.Shutdown(ctx)
}
