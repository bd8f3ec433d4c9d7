package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// ReconcileExecutor Interface
// ---------------------------------------------------------------------------

// ReconcileExecutor runs one reconcile job
type ReconcileExecutor interface {
	Execute(ctx context.Context, job *ReconcileJob) error
}

// ---------------------------------------------------------------------------
// ReconcileSchedulerConfig
// ---------------------------------------------------------------------------

// ReconcileSchedulerConfig holds configuration for the reconcile scheduler
type ReconcileSchedulerConfig struct {
	// MaxConcurrentJobs is the number of tenants reconciled in parallel
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a run can take
	JobTimeout time.Duration
	// RetryAttempts is the number of retries for a failed run
	RetryAttempts int
	// RetryDelay is the base retry delay, doubled per attempt
	RetryDelay time.Duration
	// MaxRetryDelay caps the retry delay
	MaxRetryDelay time.Duration
	// QueueSize is the capacity of the job queue
	QueueSize int
	// MaxHistory is the number of finished jobs kept for monitoring
	MaxHistory int
}

// DefaultReconcileSchedulerConfig returns default configuration
func DefaultReconcileSchedulerConfig() ReconcileSchedulerConfig {
	return ReconcileSchedulerConfig{
		MaxConcurrentJobs: 3,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
		MaxRetryDelay:     10 * time.Minute,
		QueueSize:         100,
		MaxHistory:        100,
	}
}

// Validate validates the configuration
func (c *ReconcileSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("%w: max concurrent jobs must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry attempts must be non-negative", ErrInvalidConfig)
	}
	if c.RetryAttempts > 0 && c.RetryDelay <= 0 {
		return fmt.Errorf("%w: retry delay must be positive when retrying", ErrInvalidConfig)
	}
	if c.MaxRetryDelay > 0 && c.MaxRetryDelay < c.RetryDelay {
		return fmt.Errorf("%w: max retry delay must be >= retry delay", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// ReconcileScheduler
// ---------------------------------------------------------------------------

// ReconcileScheduler runs reconcile jobs on a worker pool. A tenant has at
// most one job queued, running or waiting for retry at any time.
type ReconcileScheduler struct {
	config   ReconcileSchedulerConfig
	executor ReconcileExecutor
	logger   *zap.Logger

	jobs      chan *ReconcileJob
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  map[uuid.UUID]uuid.UUID

	historyMu sync.RWMutex
	history   []ReconcileJob
}

// NewReconcileScheduler creates a new reconcile scheduler
func NewReconcileScheduler(config ReconcileSchedulerConfig, executor ReconcileExecutor, logger *zap.Logger) (*ReconcileScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxHistory <= 0 {
		config.MaxHistory = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconcileScheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *ReconcileJob, config.QueueSize),
		inFlight: make(map[uuid.UUID]uuid.UUID),
		history:  make([]ReconcileJob, 0, config.MaxHistory),
	}, nil
}

// Start starts the worker pool
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(s.ctx, i)
	}

	s.logger.Info("Reconcile scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *ReconcileScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()
	// no submit can happen once isRunning is false
	close(s.jobs)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reconcile scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reconcile scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns true between Start and Stop
func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// ScheduleRun submits a reconcile job for the tenant
func (s *ReconcileScheduler) ScheduleRun(tenantID uuid.UUID, mode integration.RunMode) (*ReconcileJob, error) {
	if !mode.IsValid() {
		return nil, integration.ErrInvalidRunMode
	}
	job := NewReconcileJob(tenantID, mode, s.config.RetryAttempts)
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// SubmitJob queues a job. It fails when the tenant already has a job in
// flight or the queue is full.
func (s *ReconcileScheduler) SubmitJob(job *ReconcileJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if owner, busy := s.inFlight[job.TenantID]; busy && owner != job.ID {
		return ErrReconcileInProgress
	}

	select {
	case s.jobs <- job:
		s.inFlight[job.TenantID] = job.ID
		s.logger.Debug("Reconcile job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("mode", job.Mode.String()),
			zap.Int("retry_count", job.RetryCount),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// InFlight reports whether the tenant has a job queued, running or awaiting retry
func (s *ReconcileScheduler) InFlight(tenantID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[tenantID]
	return ok
}

func (s *ReconcileScheduler) release(job *ReconcileJob) {
	s.mu.Lock()
	if s.inFlight[job.TenantID] == job.ID {
		delete(s.inFlight, job.TenantID)
	}
	s.mu.Unlock()
}

// worker processes jobs from the queue
func (s *ReconcileScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job and schedules its retry on failure
func (s *ReconcileScheduler) processJob(ctx context.Context, job *ReconcileJob, workerID int) {
	job.Start()
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("mode", job.Mode.String()),
	)
	log.Info("Processing reconcile job", zap.Int("retry_count", job.RetryCount))

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.executor.Execute(jobCtx, job)
	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		err = errors.Join(ErrReconcileTimeout, err)
	}
	cancel()

	if err == nil {
		job.Complete()
		log.Info("Reconcile job completed",
			zap.Int("created", job.Counters.Created),
			zap.Int("updated", job.Counters.Updated),
			zap.Int("errored", job.Counters.Errored),
			zap.Int("deleted", job.Counters.Deleted),
		)
		s.finish(job)
		return
	}

	job.Fail(err.Error())
	log.Error("Reconcile job failed", zap.Error(err))

	if ctx.Err() != nil || !job.ShouldRetry() {
		s.finish(job)
		return
	}

	delay := job.ScheduleRetry(s.config.RetryDelay, s.config.MaxRetryDelay)
	log.Info("Reconcile job scheduled for retry",
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("delay", delay),
	)
	s.addToHistory(job)
	s.wg.Add(1)
	go s.retryAfter(ctx, job, delay)
}

// retryAfter resubmits job once delay elapsed, unless the scheduler stopped
func (s *ReconcileScheduler) retryAfter(ctx context.Context, job *ReconcileJob, delay time.Duration) {
	defer s.wg.Done()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.release(job)
		return
	case <-timer.C:
	}
	if err := s.SubmitJob(job); err != nil {
		s.logger.Warn("Failed to re-queue reconcile job for retry",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		s.release(job)
	}
}

func (s *ReconcileScheduler) finish(job *ReconcileJob) {
	s.release(job)
	s.addToHistory(job)
}

// addToHistory records a snapshot of the job's latest attempt
func (s *ReconcileScheduler) addToHistory(job *ReconcileJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]ReconcileJob{job.snapshot()}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// GetJobHistory returns recent job attempts, newest first. A zero tenantID
// returns every tenant's jobs.
func (s *ReconcileScheduler) GetJobHistory(tenantID uuid.UUID, limit int) []ReconcileJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]ReconcileJob, 0, limit)
	for _, job := range s.history {
		if tenantID != uuid.Nil && job.TenantID != tenantID {
			continue
		}
		result = append(result, job)
		if len(result) >= limit {
			break
		}
	}
	return result
}
