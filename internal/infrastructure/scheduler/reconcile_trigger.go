package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// EnabledConfigSource lists the tenants with scheduled sync enabled
type EnabledConfigSource interface {
	FindAllEnabled(ctx context.Context) ([]integration.SyncConfiguration, error)
}

// ReconcileTriggerConfig holds configuration for the periodic trigger
type ReconcileTriggerConfig struct {
	// CheckInterval is how often enabled tenants are checked
	CheckInterval time.Duration
	// Interval is the minimum time between two scheduled runs of a tenant
	Interval time.Duration
}

// DefaultReconcileTriggerConfig returns default configuration
func DefaultReconcileTriggerConfig() ReconcileTriggerConfig {
	return ReconcileTriggerConfig{
		CheckInterval: time.Minute,
		Interval:      15 * time.Minute,
	}
}

// ReconcileTrigger periodically schedules incremental runs for every enabled tenant
type ReconcileTrigger struct {
	config    ReconcileTriggerConfig
	scheduler *ReconcileScheduler
	configs   EnabledConfigSource
	logger    *zap.Logger
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastScheduledMu sync.RWMutex
	lastScheduled   map[uuid.UUID]time.Time
}

// NewReconcileTrigger creates a new trigger
func NewReconcileTrigger(
	config ReconcileTriggerConfig,
	scheduler *ReconcileScheduler,
	configs EnabledConfigSource,
	logger *zap.Logger,
) *ReconcileTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileTrigger{
		config:        config,
		scheduler:     scheduler,
		configs:       configs,
		logger:        logger,
		now:           time.Now,
		lastScheduled: make(map[uuid.UUID]time.Time),
	}
}

// Start starts the trigger loop. The first check runs immediately.
func (c *ReconcileTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Reconcile trigger started",
		zap.Duration("check_interval", c.config.CheckInterval),
		zap.Duration("interval", c.config.Interval),
	)
	return nil
}

// Stop stops the trigger loop
func (c *ReconcileTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Reconcile trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ReconcileTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	c.CheckAndSchedule(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckAndSchedule(ctx)
		}
	}
}

// CheckAndSchedule schedules an incremental run for every enabled tenant
// whose last scheduled run is older than the interval. It returns the number
// of jobs submitted.
func (c *ReconcileTrigger) CheckAndSchedule(ctx context.Context) int {
	configs, err := c.configs.FindAllEnabled(ctx)
	if err != nil {
		c.logger.Error("Failed to get enabled sync configurations", zap.Error(err))
		return 0
	}

	now := c.now()
	scheduled := 0
	for _, cfg := range configs {
		if !cfg.Enabled || !c.due(cfg.TenantID, now) {
			continue
		}

		job, err := c.scheduler.ScheduleRun(cfg.TenantID, integration.RunModeIncremental)
		switch {
		case errors.Is(err, ErrReconcileInProgress):
			c.logger.Debug("Reconciliation still in flight, skipping tenant",
				zap.String("tenant_id", cfg.TenantID.String()),
			)
			continue
		case err != nil:
			c.logger.Error("Failed to schedule reconciliation",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.Error(err),
			)
			continue
		}

		c.logger.Info("Scheduled reconciliation",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("job_id", job.ID.String()),
		)
		c.markScheduled(cfg.TenantID, now)
		scheduled++
	}
	return scheduled
}

func (c *ReconcileTrigger) due(tenantID uuid.UUID, now time.Time) bool {
	c.lastScheduledMu.RLock()
	last, ok := c.lastScheduled[tenantID]
	c.lastScheduledMu.RUnlock()
	return !ok || now.Sub(last) >= c.config.Interval
}

func (c *ReconcileTrigger) markScheduled(tenantID uuid.UUID, t time.Time) {
	c.lastScheduledMu.Lock()
	c.lastScheduled[tenantID] = t
	c.lastScheduledMu.Unlock()
}
