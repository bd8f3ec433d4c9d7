package fetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes used as metric labels.
const (
	OutcomeSuccess        = "success"
	OutcomeClientError    = "client_error"
	OutcomeRateLimited    = "rate_limited"
	OutcomeServerError    = "server_error"
	OutcomeTransportError = "transport_error"
)

// Metrics holds the fetch client collectors. A nil *Metrics records nothing.
type Metrics struct {
	attempts  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	exhausted prometheus.Counter
	duration  prometheus.Histogram
	waits     prometheus.Histogram
}

// NewMetrics registers the fetch collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardsync",
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Outbound board API attempts by outcome.",
		}, []string{"outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardsync",
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Retries scheduled by reason.",
		}, []string{"reason"}),
		exhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "boardsync",
			Subsystem: "fetch",
			Name:      "exhausted_total",
			Help:      "Requests that failed after exhausting retries.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "boardsync",
			Subsystem: "fetch",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of individual attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		waits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "boardsync",
			Subsystem: "fetch",
			Name:      "backoff_wait_seconds",
			Help:      "Backoff waits between attempts.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 30, 60},
		}),
	}
}

func (m *Metrics) observeAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observeRetry(reason string, wait time.Duration) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(reason).Inc()
	m.waits.Observe(wait.Seconds())
}

func (m *Metrics) observeExhausted() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}
