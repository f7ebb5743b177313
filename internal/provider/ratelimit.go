package provider

import (
	"context"
	"sync"
	"time"

	"remedia/internal/platform/metrics"
)

// RateLimiter is a token bucket shared by every provider client in the
// process. The external contracts allow roughly 50 calls a minute; the bucket
// refills in full at each window boundary, matching how the providers meter.
type RateLimiter struct {
	mu       sync.Mutex
	capacity int
	tokens   int
	window   time.Duration
	lastFill time.Time
	clock    func() time.Time
	metrics  *metrics.Metrics
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterClock injects the time source for tests.
func WithRateLimiterClock(clock func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) { r.clock = clock }
}

func WithRateLimiterMetrics(m *metrics.Metrics) RateLimiterOption {
	return func(r *RateLimiter) { r.metrics = m }
}

func NewRateLimiter(capacity int, window time.Duration, opts ...RateLimiterOption) *RateLimiter {
	if capacity <= 0 {
		capacity = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	r := &RateLimiter{
		capacity: capacity,
		tokens:   capacity,
		window:   window,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastFill = r.clock()
	return r
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := r.take()
		if ok {
			return nil
		}
		if r.metrics != nil {
			r.metrics.RateLimitWaits.Inc()
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow takes a token without blocking.
func (r *RateLimiter) Allow() bool {
	_, ok := r.take()
	return ok
}

// LimiterStatus is a point-in-time view of the bucket.
type LimiterStatus struct {
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// Status reports remaining tokens and the next refill boundary.
func (r *RateLimiter) Status() LimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	if elapsed := now.Sub(r.lastFill); elapsed >= r.window {
		r.tokens = r.capacity
		r.lastFill = now
	}
	return LimiterStatus{
		Capacity:  r.capacity,
		Remaining: r.tokens,
		ResetsAt:  r.lastFill.Add(r.window),
	}
}

// Reset refills the bucket immediately.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = r.capacity
	r.lastFill = r.clock()
}

// take returns either a token or the duration until the next refill.
func (r *RateLimiter) take() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	if elapsed := now.Sub(r.lastFill); elapsed >= r.window {
		r.tokens = r.capacity
		r.lastFill = now
	}
	if r.tokens > 0 {
		r.tokens--
		return 0, true
	}
	return r.window - now.Sub(r.lastFill), false
}
