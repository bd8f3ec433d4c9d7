package fetch

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateBudget is the request budget shared by every goroutine using a client.
// A nil *RateBudget never blocks.
//
// Thread Safety: Safe for concurrent use.
type RateBudget struct {
	limiter *rate.Limiter

	totalAcquired atomic.Int64
	totalWaitTime atomic.Int64 // in nanoseconds
}

// RateBudgetStats contains statistics about budget usage.
type RateBudgetStats struct {
	TotalAcquired int64
	AvgWaitTime   time.Duration
	Limit         float64
}

// NewRateBudget creates a token bucket of burst tokens refilled at rps per second.
// If burst is 0, it defaults to max(1, int(rps)).
func NewRateBudget(rps float64, burst int) *RateBudget {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	return &RateBudget{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Acquire blocks until a token is available or ctx is done.
func (b *RateBudget) Acquire(ctx context.Context) error {
	if b == nil {
		return nil
	}
	start := time.Now()
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	b.totalAcquired.Add(1)
	b.totalWaitTime.Add(int64(time.Since(start)))
	return nil
}

// Stats returns current statistics about the budget.
func (b *RateBudget) Stats() RateBudgetStats {
	if b == nil {
		return RateBudgetStats{}
	}
	acquired := b.totalAcquired.Load()
	var avg time.Duration
	if acquired > 0 {
		avg = time.Duration(b.totalWaitTime.Load() / acquired)
	}
	return RateBudgetStats{
		TotalAcquired: acquired,
		AvgWaitTime:   avg,
		Limit:         float64(b.limiter.Limit()),
	}
}
