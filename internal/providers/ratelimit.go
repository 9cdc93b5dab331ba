package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. One bucket guards one upstream LLM
// provider; the translation chain calls Wait before each request, and
// the server's per-client HTTP limiter reuses the same bucket through
// TryConsume.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int

	tokens     float64
	lastRefill time.Time

	totalConsumed int64
	totalWaited   time.Duration
	last429       time.Time
}

// RateLimiterStatus is a snapshot of one bucket, surfaced for
// diagnostics.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	Utilization     float64       `json:"utilization"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a bucket that refills at requestsPerMinute,
// starting full.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 150
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokens:            float64(requestsPerMinute),
		lastRefill:        time.Now(),
	}
}

// perSecond is the bucket's refill rate.
func (r *RateLimiter) perSecond() float64 {
	return float64(r.requestsPerMinute) / 60.0
}

// untilNextToken says how long until one whole token has accrued.
// Caller holds the lock.
func (r *RateLimiter) untilNextToken() time.Duration {
	if r.tokens >= 1.0 {
		return 0
	}
	missing := 1.0 - r.tokens
	return time.Duration(missing / r.perSecond() * float64(time.Second))
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilNextToken()
		r.mu.Unlock()

		// Sleep outside the lock so other callers can consume.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token if one is available, without blocking.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens < 1.0 {
		return false
	}
	r.tokens--
	r.totalConsumed++
	return true
}

// Record429 notes an upstream 429. When the provider gave a
// Retry-After, the bucket is drained so nothing else fires into the
// same rejection window.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last429 = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
	}
}

// Status snapshots the bucket.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	utilization := 1.0 - (r.tokens / float64(r.requestsPerMinute))
	if utilization < 0 {
		utilization = 0
	}

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		Utilization:     utilization,
		TimeUntilToken:  r.untilNextToken(),
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     r.last429,
	}
}

// refill accrues tokens for the time since the last refill, capped at
// the bucket size. Caller holds the lock.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now

	r.tokens += elapsed * r.perSecond()
	if r.tokens > float64(r.requestsPerMinute) {
		r.tokens = float64(r.requestsPerMinute)
	}
}
