package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Card outcomes used as metric labels
const (
	CardCreated = "created"
	CardUpdated = "updated"
	CardSkipped = "skipped"
	CardErrored = "errored"
	CardDeleted = "deleted"
)

// SyncMetrics holds the reconciliation and webhook collectors.
// A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	runs        *prometheus.CounterVec
	cards       *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	checkpoint  *prometheus.GaugeVec
	webhooks    *prometheus.CounterVec
	inFlight    prometheus.Gauge
}

// NewSyncMetrics registers the sync collectors on reg.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	factory := promauto.With(reg)
	return &SyncMetrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardsync",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconciliation runs by mode and final state.",
		}, []string{"mode", "state"}),
		cards: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardsync",
			Subsystem: "reconcile",
			Name:      "cards_total",
			Help:      "Cards processed by outcome.",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "boardsync",
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Wall time of reconciliation runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"mode"}),
		checkpoint: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "boardsync",
			Subsystem: "reconcile",
			Name:      "checkpoint_timestamp_seconds",
			Help:      "Unix time of the last committed checkpoint per tenant.",
		}, []string{"tenant_id"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardsync",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "boardsync",
			Subsystem: "reconcile",
			Name:      "runs_in_flight",
			Help:      "Reconciliation runs currently executing.",
		}),
	}
}

// RunStarted marks a run as executing
func (m *SyncMetrics) RunStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// RunFinished records a run's final state and duration
func (m *SyncMetrics) RunFinished(mode, state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.runs.WithLabelValues(mode, state).Inc()
	m.runDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// CardProcessed counts one card outcome
func (m *SyncMetrics) CardProcessed(outcome string) {
	if m == nil {
		return
	}
	m.cards.WithLabelValues(outcome).Inc()
}

// CheckpointCommitted records the new checkpoint for a tenant
func (m *SyncMetrics) CheckpointCommitted(tenantID string, at time.Time) {
	if m == nil {
		return
	}
	m.checkpoint.WithLabelValues(tenantID).Set(float64(at.Unix()))
}

// WebhookDelivered counts a webhook delivery outcome
func (m *SyncMetrics) WebhookDelivered(outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}
