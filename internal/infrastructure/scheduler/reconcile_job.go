package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// ReconcileJobStatus represents the status of a reconcile job
type ReconcileJobStatus string

const (
	ReconcileJobStatusPending ReconcileJobStatus = "PENDING"
	ReconcileJobStatusRunning ReconcileJobStatus = "RUNNING"
	ReconcileJobStatusSuccess ReconcileJobStatus = "SUCCESS"
	ReconcileJobStatusFailed  ReconcileJobStatus = "FAILED"
)

// ReconcileJob is one scheduled reconciliation of a tenant's board
type ReconcileJob struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Mode        integration.RunMode
	Status      ReconcileJobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	// Result of the last attempt
	RunID    uuid.UUID
	Counters integration.RunCounters
}

// NewReconcileJob creates a pending job
func NewReconcileJob(tenantID uuid.UUID, mode integration.RunMode, maxRetries int) *ReconcileJob {
	return &ReconcileJob{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Mode:       mode,
		Status:     ReconcileJobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *ReconcileJob) Start() {
	now := time.Now()
	j.Status = ReconcileJobStatusRunning
	j.StartedAt = &now
	j.CompletedAt = nil
	j.Error = ""
}

// Complete marks the job as successful
func (j *ReconcileJob) Complete() {
	now := time.Now()
	j.Status = ReconcileJobStatusSuccess
	j.CompletedAt = &now
	j.NextRetryAt = nil
}

// Fail marks the job as failed
func (j *ReconcileJob) Fail(err string) {
	now := time.Now()
	j.Status = ReconcileJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job failed and has retries left
func (j *ReconcileJob) ShouldRetry() bool {
	return j.Status == ReconcileJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts the job back to pending and returns the backoff delay:
// baseDelay * 2^(retryCount-1), capped at maxDelay.
func (j *ReconcileJob) ScheduleRetry(baseDelay, maxDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = ReconcileJobStatusPending
	delay := baseDelay
	for i := 1; i < j.RetryCount && delay < maxDelay; i++ {
		delay *= 2
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	return delay
}

// snapshot returns a copy safe to hand out while the job may still be retried
func (j *ReconcileJob) snapshot() ReconcileJob {
	out := *j
	return out
}
