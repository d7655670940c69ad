package infra

import (
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter guarding one class of venue endpoints.
// Thread-safe.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a limiter with the given burst size and refill rate.
func NewRateLimiter(burst int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: perSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available.
func (r *RateLimiter) Wait() {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
		time.Sleep(time.Duration(float64(time.Second) / r.refillRate))
	}
}

// TryAcquire takes a token without blocking. Returns false when exhausted.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill must be called with the mutex held.
func (r *RateLimiter) refill() {
	now := time.Now()
	r.tokens += now.Sub(r.lastRefill).Seconds() * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now
}

// VenueLimiters groups the per-endpoint-class limiters one venue session
// uses. Order and account endpoints are tighter than market data.
type VenueLimiters struct {
	Order   *RateLimiter
	Account *RateLimiter
	Market  *RateLimiter
}

// NewVenueLimiters returns conservative defaults for a single REST session.
func NewVenueLimiters() *VenueLimiters {
	return &VenueLimiters{
		Order:   NewRateLimiter(5, 10),
		Account: NewRateLimiter(5, 10),
		Market:  NewRateLimiter(10, 20),
	}
}
