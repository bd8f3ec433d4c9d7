package scheduler

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// Reconciler runs a reconciliation for a tenant. OperatorService implements it.
type Reconciler interface {
	RunReconciliation(ctx context.Context, tenantID uuid.UUID, mode integration.RunMode) (*appintegration.RunSummary, error)
}

// ReconcileExecutorImpl executes jobs through a Reconciler
type ReconcileExecutorImpl struct {
	reconciler Reconciler
	logger     *zap.Logger
}

// NewReconcileExecutor creates a new reconcile executor
func NewReconcileExecutor(reconciler Reconciler, logger *zap.Logger) *ReconcileExecutorImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileExecutorImpl{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Execute runs the job's reconciliation and copies the run result onto it.
// Aborted and fatal runs return their error so the scheduler retries them.
func (e *ReconcileExecutorImpl) Execute(ctx context.Context, job *ReconcileJob) error {
	summary, err := e.reconciler.RunReconciliation(ctx, job.TenantID, job.Mode)
	if summary != nil {
		job.RunID = summary.RunID
		job.Counters = summary.Counters
	}
	if err != nil {
		if integration.IsFatal(err) {
			e.logger.Warn("Scheduled reconciliation has an unusable configuration",
				zap.String("tenant_id", job.TenantID.String()),
				zap.Error(err),
			)
		}
		return err
	}
	return nil
}

var _ ReconcileExecutor = (*ReconcileExecutorImpl)(nil)
