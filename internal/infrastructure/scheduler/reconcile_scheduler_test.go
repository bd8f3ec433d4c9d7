package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func testSchedulerConfig() ReconcileSchedulerConfig {
	return ReconcileSchedulerConfig{
		MaxConcurrentJobs: 2,
		JobTimeout:        time.Second,
		RetryAttempts:     2,
		RetryDelay:        5 * time.Millisecond,
		MaxRetryDelay:     10 * time.Millisecond,
		QueueSize:         10,
		MaxHistory:        20,
	}
}

// mockReconcileExecutor implements ReconcileExecutor for testing
type mockReconcileExecutor struct {
	executeFunc func(ctx context.Context, job *ReconcileJob) error
	execCount   int32
}

func (m *mockReconcileExecutor) Execute(ctx context.Context, job *ReconcileJob) error {
	atomic.AddInt32(&m.execCount, 1)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, job)
	}
	job.Counters = integration.RunCounters{Fetched: 3, Created: 3}
	return nil
}

func (m *mockReconcileExecutor) count() int {
	return int(atomic.LoadInt32(&m.execCount))
}

func startScheduler(t *testing.T, config ReconcileSchedulerConfig, executor ReconcileExecutor) *ReconcileScheduler {
	t.Helper()
	s, err := NewReconcileScheduler(config, executor, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

// ---------------------------------------------------------------------------
// ReconcileJob Tests
// ---------------------------------------------------------------------------

func TestReconcileJob_Lifecycle(t *testing.T) {
	tenantID := uuid.New()
	job := NewReconcileJob(tenantID, integration.RunModeIncremental, 3)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, tenantID, job.TenantID)
	assert.Equal(t, ReconcileJobStatusPending, job.Status)
	assert.Nil(t, job.StartedAt)

	job.Start()
	assert.Equal(t, ReconcileJobStatusRunning, job.Status)
	assert.NotNil(t, job.StartedAt)

	job.Fail("board unavailable")
	assert.Equal(t, ReconcileJobStatusFailed, job.Status)
	assert.Equal(t, "board unavailable", job.Error)
	assert.True(t, job.ShouldRetry())

	job.Start()
	assert.Empty(t, job.Error)
	job.Complete()
	assert.Equal(t, ReconcileJobStatusSuccess, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.False(t, job.ShouldRetry())
}

func TestReconcileJob_ShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     ReconcileJobStatus
		retryCount int
		maxRetries int
		expected   bool
	}{
		{"Failed with retries available", ReconcileJobStatusFailed, 0, 3, true},
		{"Failed max retries reached", ReconcileJobStatusFailed, 3, 3, false},
		{"Success should not retry", ReconcileJobStatusSuccess, 0, 3, false},
		{"Running should not retry", ReconcileJobStatusRunning, 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &ReconcileJob{Status: tt.status, RetryCount: tt.retryCount, MaxRetries: tt.maxRetries}
			assert.Equal(t, tt.expected, job.ShouldRetry())
		})
	}
}

func TestReconcileJob_ScheduleRetry_CappedBackoff(t *testing.T) {
	job := NewReconcileJob(uuid.New(), integration.RunModeIncremental, 5)

	var delays []time.Duration
	for i := 0; i < 4; i++ {
		job.Status = ReconcileJobStatusFailed
		delays = append(delays, job.ScheduleRetry(time.Minute, 3*time.Minute))
		assert.Equal(t, ReconcileJobStatusPending, job.Status)
		require.NotNil(t, job.NextRetryAt)
	}
	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute, 3 * time.Minute}, delays)
	assert.Equal(t, 4, job.RetryCount)
}

// ---------------------------------------------------------------------------
// ReconcileSchedulerConfig Tests
// ---------------------------------------------------------------------------

func TestReconcileSchedulerConfig_Validate(t *testing.T) {
	valid := DefaultReconcileSchedulerConfig()
	tests := []struct {
		name    string
		mutate  func(*ReconcileSchedulerConfig)
		wantErr bool
	}{
		{"Valid default config", func(*ReconcileSchedulerConfig) {}, false},
		{"Invalid max concurrent jobs", func(c *ReconcileSchedulerConfig) { c.MaxConcurrentJobs = 0 }, true},
		{"Invalid job timeout", func(c *ReconcileSchedulerConfig) { c.JobTimeout = 0 }, true},
		{"Negative retry attempts", func(c *ReconcileSchedulerConfig) { c.RetryAttempts = -1 }, true},
		{"Retries without delay", func(c *ReconcileSchedulerConfig) { c.RetryDelay = 0 }, true},
		{"Cap below base delay", func(c *ReconcileSchedulerConfig) { c.MaxRetryDelay = time.Second }, true},
		{"No queue", func(c *ReconcileSchedulerConfig) { c.QueueSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ReconcileScheduler Tests
// ---------------------------------------------------------------------------

func TestNewReconcileScheduler_InvalidConfig(t *testing.T) {
	s, err := NewReconcileScheduler(ReconcileSchedulerConfig{}, &mockReconcileExecutor{}, newTestLogger())
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestReconcileScheduler_StartStop(t *testing.T) {
	s, err := NewReconcileScheduler(testSchedulerConfig(), &mockReconcileExecutor{}, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())

	_, err = s.ScheduleRun(uuid.New(), integration.RunModeIncremental)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestReconcileScheduler_SubmitJob_NotRunning(t *testing.T) {
	s, err := NewReconcileScheduler(testSchedulerConfig(), &mockReconcileExecutor{}, newTestLogger())
	require.NoError(t, err)

	err = s.SubmitJob(NewReconcileJob(uuid.New(), integration.RunModeFull, 0))
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestReconcileScheduler_InvalidMode(t *testing.T) {
	s := startScheduler(t, testSchedulerConfig(), &mockReconcileExecutor{})
	_, err := s.ScheduleRun(uuid.New(), integration.RunMode("WEEKLY"))
	assert.ErrorIs(t, err, integration.ErrInvalidRunMode)
}

func TestReconcileScheduler_RunsJob(t *testing.T) {
	executor := &mockReconcileExecutor{}
	s := startScheduler(t, testSchedulerConfig(), executor)
	tenantID := uuid.New()

	job, err := s.ScheduleRun(tenantID, integration.RunModeIncremental)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !s.InFlight(tenantID) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, executor.count())

	history := s.GetJobHistory(tenantID, 10)
	require.Len(t, history, 1)
	assert.Equal(t, job.ID, history[0].ID)
	assert.Equal(t, ReconcileJobStatusSuccess, history[0].Status)
	assert.Equal(t, 3, history[0].Counters.Created)
	assert.Empty(t, s.GetJobHistory(uuid.New(), 10))
}

func TestReconcileScheduler_NoOverlapPerTenant(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			started <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}
	s := startScheduler(t, testSchedulerConfig(), executor)
	tenantID := uuid.New()

	_, err := s.ScheduleRun(tenantID, integration.RunModeIncremental)
	require.NoError(t, err)
	<-started

	_, err = s.ScheduleRun(tenantID, integration.RunModeFull)
	assert.ErrorIs(t, err, ErrReconcileInProgress)

	_, err = s.ScheduleRun(uuid.New(), integration.RunModeIncremental)
	require.NoError(t, err)
	<-started

	close(release)
	require.Eventually(t, func() bool { return !s.InFlight(tenantID) }, 2*time.Second, 5*time.Millisecond)

	_, err = s.ScheduleRun(tenantID, integration.RunModeFull)
	assert.NoError(t, err)
}

func TestReconcileScheduler_RetriesUntilSuccess(t *testing.T) {
	var attempts int32
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return fmt.Errorf("%w: list page 1", integration.ErrRunAborted)
			}
			return nil
		},
	}
	s := startScheduler(t, testSchedulerConfig(), executor)
	tenantID := uuid.New()

	_, err := s.ScheduleRun(tenantID, integration.RunModeIncremental)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		history := s.GetJobHistory(tenantID, 1)
		return len(history) == 1 && history[0].Status == ReconcileJobStatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, executor.count())
	assert.False(t, s.InFlight(tenantID))

	history := s.GetJobHistory(tenantID, 10)
	require.Len(t, history, 3)
	assert.Equal(t, 2, history[0].RetryCount)
	assert.Equal(t, ReconcileJobStatusPending, history[1].Status)
}

func TestReconcileScheduler_GivesUpAfterRetries(t *testing.T) {
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			return integration.ErrFatalConfiguration
		},
	}
	config := testSchedulerConfig()
	config.RetryAttempts = 1
	s := startScheduler(t, config, executor)
	tenantID := uuid.New()

	_, err := s.ScheduleRun(tenantID, integration.RunModeIncremental)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		history := s.GetJobHistory(tenantID, 1)
		return len(history) == 1 && history[0].Status == ReconcileJobStatusFailed
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.InFlight(tenantID) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, executor.count())
}

func TestReconcileScheduler_JobTimeout(t *testing.T) {
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	config := testSchedulerConfig()
	config.JobTimeout = 20 * time.Millisecond
	config.RetryAttempts = 0
	s := startScheduler(t, config, executor)
	tenantID := uuid.New()

	_, err := s.ScheduleRun(tenantID, integration.RunModeFull)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(s.GetJobHistory(tenantID, 1)) == 1 }, 2*time.Second, 5*time.Millisecond)
	job := s.GetJobHistory(tenantID, 1)[0]
	assert.Equal(t, ReconcileJobStatusFailed, job.Status)
	assert.Contains(t, job.Error, ErrReconcileTimeout.Error())
}

func TestReconcileScheduler_QueueFull(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{}, 1)
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			select {
			case started <- struct{}{}:
			default:
			}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}
	config := testSchedulerConfig()
	config.MaxConcurrentJobs = 1
	config.QueueSize = 1
	s := startScheduler(t, config, executor)

	_, err := s.ScheduleRun(uuid.New(), integration.RunModeIncremental)
	require.NoError(t, err)
	<-started
	_, err = s.ScheduleRun(uuid.New(), integration.RunModeIncremental)
	require.NoError(t, err)

	queued := uuid.New()
	_, err = s.ScheduleRun(queued, integration.RunModeIncremental)
	assert.ErrorIs(t, err, ErrJobQueueFull)
	assert.False(t, s.InFlight(queued))
}

// ---------------------------------------------------------------------------
// ReconcileExecutor Tests
// ---------------------------------------------------------------------------

// MockReconciler is a mock implementation of Reconciler
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) RunReconciliation(ctx context.Context, tenantID uuid.UUID, mode integration.RunMode) (*appintegration.RunSummary, error) {
	args := m.Called(ctx, tenantID, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.RunSummary), args.Error(1)
}

func TestReconcileExecutor_CopiesSummary(t *testing.T) {
	reconciler := new(MockReconciler)
	tenantID := uuid.New()
	summary := &appintegration.RunSummary{
		RunID:    uuid.New(),
		TenantID: tenantID,
		State:    integration.RunStateDone,
		Counters: integration.RunCounters{Fetched: 4, Created: 1, Updated: 3},
	}
	reconciler.On("RunReconciliation", mock.Anything, tenantID, integration.RunModeIncremental).Return(summary, nil)

	job := NewReconcileJob(tenantID, integration.RunModeIncremental, 0)
	err := NewReconcileExecutor(reconciler, newTestLogger()).Execute(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, summary.RunID, job.RunID)
	assert.Equal(t, summary.Counters, job.Counters)
	reconciler.AssertExpectations(t)
}

func TestReconcileExecutor_ReturnsRunError(t *testing.T) {
	tests := []struct {
		name    string
		summary *appintegration.RunSummary
		err     error
	}{
		{"aborted run", &appintegration.RunSummary{State: integration.RunStateAborted, Counters: integration.RunCounters{Created: 2}}, integration.ErrRunAborted},
		{"fatal configuration", nil, fmt.Errorf("%w: %w", integration.ErrFatalConfiguration, integration.ErrMissingBoardID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconciler := new(MockReconciler)
			reconciler.On("RunReconciliation", mock.Anything, mock.Anything, mock.Anything).Return(tt.summary, tt.err)

			job := NewReconcileJob(uuid.New(), integration.RunModeFull, 0)
			err := NewReconcileExecutor(reconciler, nil).Execute(context.Background(), job)
			assert.True(t, errors.Is(err, tt.err))
			if tt.summary != nil {
				assert.Equal(t, 2, job.Counters.Created)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ReconcileTrigger Tests
// ---------------------------------------------------------------------------

type staticConfigSource struct {
	mu      sync.Mutex
	configs []integration.SyncConfiguration
	err     error
}

func (s *staticConfigSource) FindAllEnabled(_ context.Context) ([]integration.SyncConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs, s.err
}

func TestReconcileTrigger_SchedulesDueTenants(t *testing.T) {
	executor := &mockReconcileExecutor{}
	s := startScheduler(t, testSchedulerConfig(), executor)
	a, b := uuid.New(), uuid.New()
	source := &staticConfigSource{configs: []integration.SyncConfiguration{
		{TenantID: a, Enabled: true},
		{TenantID: b, Enabled: true},
		{TenantID: uuid.New(), Enabled: false},
	}}

	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	trigger := NewReconcileTrigger(ReconcileTriggerConfig{CheckInterval: time.Hour, Interval: 15 * time.Minute}, s, source, newTestLogger())
	trigger.now = func() time.Time { return now }

	assert.Equal(t, 2, trigger.CheckAndSchedule(context.Background()))
	require.Eventually(t, func() bool { return !s.InFlight(a) && !s.InFlight(b) }, 2*time.Second, 5*time.Millisecond)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 0, trigger.CheckAndSchedule(context.Background()))

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 2, trigger.CheckAndSchedule(context.Background()))
	require.Eventually(t, func() bool { return executor.count() == 4 }, 2*time.Second, 5*time.Millisecond)

	for _, job := range s.GetJobHistory(uuid.Nil, 0) {
		assert.Equal(t, integration.RunModeIncremental, job.Mode)
	}
}

func TestReconcileTrigger_SkipsTenantInFlight(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	executor := &mockReconcileExecutor{
		executeFunc: func(ctx context.Context, job *ReconcileJob) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}
	s := startScheduler(t, testSchedulerConfig(), executor)
	tenantID := uuid.New()
	_, err := s.ScheduleRun(tenantID, integration.RunModeFull)
	require.NoError(t, err)

	source := &staticConfigSource{configs: []integration.SyncConfiguration{{TenantID: tenantID, Enabled: true}}}
	trigger := NewReconcileTrigger(DefaultReconcileTriggerConfig(), s, source, newTestLogger())

	assert.Equal(t, 0, trigger.CheckAndSchedule(context.Background()))
	assert.True(t, trigger.due(tenantID, time.Now()))
}

func TestReconcileTrigger_SourceError(t *testing.T) {
	s := startScheduler(t, testSchedulerConfig(), &mockReconcileExecutor{})
	source := &staticConfigSource{err: errors.New("database down")}
	trigger := NewReconcileTrigger(DefaultReconcileTriggerConfig(), s, source, newTestLogger())

	assert.Equal(t, 0, trigger.CheckAndSchedule(context.Background()))
}

func TestReconcileTrigger_StartStop(t *testing.T) {
	executor := &mockReconcileExecutor{}
	s := startScheduler(t, testSchedulerConfig(), executor)
	source := &staticConfigSource{configs: []integration.SyncConfiguration{{TenantID: uuid.New(), Enabled: true}}}
	trigger := NewReconcileTrigger(ReconcileTriggerConfig{CheckInterval: time.Hour, Interval: time.Hour}, s, source, newTestLogger())

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))
	require.Eventually(t, func() bool { return executor.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx))
}
