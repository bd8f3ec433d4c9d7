// Package fetch provides the rate-limited HTTP client used for every call to
// the board API. It owns the retry policy: callers never loop on their own.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Request is an outbound request. Body is a byte slice so it can be replayed.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Attempts is the number of attempts it took to obtain this response
	Attempts int
}

// IsSuccess returns true for 2xx responses
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client wraps outbound HTTP calls with exponential backoff and 429 handling.
//
// Status codes are returned, not raised: only exhausted retries on 429, 5xx
// or transport failures produce an error (*TransientFetchFailure). Other 4xx
// come back on the first attempt for the caller to classify.
//
// Thread Safety: Safe for concurrent use. The only shared mutable state is
// the optional RateBudget.
type Client struct {
	httpClient *http.Client
	config     Config
	budget     *RateBudget
	sleep      Sleeper
	now        func() time.Time
	metrics    *Metrics
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithClock sets the time source used to read Retry-After dates
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithRateBudget shares a budget between clients
func WithRateBudget(b *RateBudget) Option {
	return func(c *Client) {
		c.budget = b
	}
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client. A rate budget is created from the config
// unless one is passed with WithRateBudget.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		httpClient: &http.Client{},
		config:     cfg,
		sleep:      SleepContext,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		c.budget = NewRateBudget(cfg.RateLimit, cfg.RateBurst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Budget returns the client's rate budget (nil when unlimited)
func (c *Client) Budget() *RateBudget {
	return c.budget
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL})
}

// PostForm performs a form-encoded POST request
func (c *Client) PostForm(ctx context.Context, rawURL string, values url.Values) (*Response, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Header: header,
		Body:   []byte(values.Encode()),
	})
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, URL: rawURL})
}

// Do executes req with the retry policy.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	safeURL := RedactURL(req.URL)

	for attempt := 0; ; attempt++ {
		if err := c.budget.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("fetch: waiting for rate budget: %w", err)
		}

		start := time.Now()
		resp, err := c.attempt(ctx, req)
		outcome := classify(resp, err)
		c.metrics.observeAttempt(outcome, time.Since(start))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch: %s %s: %w", req.Method, safeURL, ctxErr)
		}
		if resp != nil {
			resp.Attempts = attempt + 1
		}
		if outcome == OutcomeSuccess || outcome == OutcomeClientError {
			return resp, nil
		}

		if attempt >= c.config.Retry.MaxRetries {
			c.metrics.observeExhausted()
			failure := &TransientFetchFailure{
				Method:   req.Method,
				URL:      safeURL,
				Attempts: attempt + 1,
				Err:      err,
			}
			if resp != nil {
				failure.LastStatus = resp.StatusCode
			}
			c.logger.Warn("Board API request failed after retries",
				zap.String("method", req.Method),
				zap.String("url", safeURL),
				zap.Int("attempts", failure.Attempts),
				zap.Int("last_status", failure.LastStatus),
				zap.Error(err),
			)
			return resp, failure
		}

		wait := c.retryWait(resp, attempt)
		c.metrics.observeRetry(outcome, wait)
		c.logger.Debug("Retrying board API request",
			zap.String("method", req.Method),
			zap.String("url", safeURL),
			zap.String("reason", outcome),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("fetch: %s %s: %w", req.Method, safeURL, err)
		}
	}
}

// attempt performs one request under its own timeout and reads the body.
func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, c.config.MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

// retryWait honours Retry-After on 429 and otherwise backs off exponentially.
// Both are capped at MaxDelay.
func (c *Client) retryWait(resp *Response, attempt int) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After"), c.now()); ok {
			return min(d, c.config.Retry.MaxDelay)
		}
	}
	return c.config.Retry.Backoff(attempt)
}

func classify(resp *Response, err error) string {
	switch {
	case err != nil || resp == nil:
		return OutcomeTransportError
	case resp.StatusCode == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case resp.StatusCode >= 500:
		return OutcomeServerError
	case resp.StatusCode >= 400:
		return OutcomeClientError
	default:
		return OutcomeSuccess
	}
}

// parseRetryAfter reads delay-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// credentialParams are query parameters that must never reach logs or errors.
var credentialParams = []string{"key", "token"}

// RedactURL masks credential query parameters.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	changed := false
	for _, p := range credentialParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
