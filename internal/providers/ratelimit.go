package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at perMinute tokens
// per minute, with a burst of perMinute. A 429 drains the bucket and holds
// it empty until the provider's Retry-After has passed.
type RateLimiter struct {
	mu sync.Mutex

	perMinute  int
	tokens     float64
	lastRefill time.Time
	pausedTill time.Time

	consumed int64
	waited   time.Duration
	last429  time.Time

	now func() time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429         time.Time     `json:"last_429,omitempty"`
}

// NewRateLimiter creates a limiter allowing perMinute requests per minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	r := &RateLimiter{perMinute: perMinute, tokens: float64(perMinute), now: time.Now}
	r.lastRefill = r.now()
	return r
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		delay := r.reserveLocked()
		r.mu.Unlock()
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += delay
			r.mu.Unlock()
		}
	}
}

// TryAcquire takes a token without blocking and reports whether it got one.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reserveLocked() == 0
}

// Record429 notes a rate-limit response. With a positive retryAfter the
// bucket is drained and no tokens are handed out until it elapses.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.last429 = now
	if retryAfter > 0 {
		r.tokens = 0
		if until := now.Add(retryAfter); until.After(r.pausedTill) {
			r.pausedTill = until
		}
	}
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refillLocked(now)
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		TimeUntilToken:  r.delayLocked(now),
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		Last429:         r.last429,
	}
}

// reserveLocked consumes a token and returns 0, or returns how long to wait
// before one is available.
func (r *RateLimiter) reserveLocked() time.Duration {
	now := r.now()
	r.refillLocked(now)
	if d := r.delayLocked(now); d > 0 {
		return d
	}
	r.tokens--
	r.consumed++
	return 0
}

func (r *RateLimiter) delayLocked(now time.Time) time.Duration {
	if now.Before(r.pausedTill) {
		return r.pausedTill.Sub(now)
	}
	if r.tokens >= 1 {
		return 0
	}
	perSecond := float64(r.perMinute) / 60.0
	d := time.Duration((1 - r.tokens) / perSecond * float64(time.Second))
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

func (r *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(r.lastRefill)
	r.lastRefill = now
	if elapsed <= 0 || now.Before(r.pausedTill) {
		return
	}
	r.tokens += elapsed.Seconds() * float64(r.perMinute) / 60.0
	if limit := float64(r.perMinute); r.tokens > limit {
		r.tokens = limit
	}
}
