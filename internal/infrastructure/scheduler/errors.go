package scheduler

import "errors"

// Scheduler errors. Submit callers branch on them with errors.Is.
var (
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	ErrJobQueueFull        = errors.New("scheduler: job queue full")
	ErrInvalidConfig       = errors.New("scheduler: invalid configuration")

	// ErrReconcileInProgress means the tenant already has a job queued,
	// running or waiting to retry
	ErrReconcileInProgress = errors.New("scheduler: reconciliation already in progress for tenant")
	ErrReconcileTimeout    = errors.New("scheduler: reconciliation exceeded job timeout")
)
