package fetch

import (
	"fmt"
	"math"
	"time"
)

// RetryConfig configures the backoff policy shared by every caller.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BaseDelay is the wait before the first retry
	BaseDelay time.Duration
	// MaxDelay caps every wait, including server Retry-After hints
	MaxDelay time.Duration
	// Multiplier grows the wait per attempt
	Multiplier float64
}

// DefaultRetryConfig returns 1s doubling waits capped at 30s, four retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 4,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Validate validates the retry configuration
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be non-negative", ErrInvalidConfig)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive", ErrInvalidConfig)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max delay must be >= base delay", ErrInvalidConfig)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("%w: multiplier must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// Backoff returns min(BaseDelay * Multiplier^attempt, MaxDelay), attempt starting at 0.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) || math.IsInf(delay, 1) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// Config holds the fetch client configuration.
type Config struct {
	Retry RetryConfig
	// RequestTimeout bounds each attempt independently of the caller's context
	RequestTimeout time.Duration
	// RateLimit is the shared request budget in requests per second; 0 disables it
	RateLimit float64
	// RateBurst is the token bucket size
	RateBurst int
	// MaxResponseSize bounds the body read per response
	MaxResponseSize int64
	// UserAgent is sent on every request
	UserAgent string
}

// DefaultConfig returns the default client configuration.
// The board API allows 100 requests per 10s per token, so the budget stays below that.
func DefaultConfig() Config {
	return Config{
		Retry:           DefaultRetryConfig(),
		RequestTimeout:  15 * time.Second,
		RateLimit:       8,
		RateBurst:       8,
		MaxResponseSize: 10 * 1024 * 1024,
		UserAgent:       "board-lead-sync/1.0",
	}
}

// Validate validates the client configuration
func (c Config) Validate() error {
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must be non-negative", ErrInvalidConfig)
	}
	if c.MaxResponseSize <= 0 {
		return fmt.Errorf("%w: max response size must be positive", ErrInvalidConfig)
	}
	return nil
}
