package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// Limiter defines the interface for request pacing
type Limiter interface {
	// Allow checks if a request is allowed right now
	Allow() bool
	// Wait blocks until the limiter allows another request
	Wait()
	// Reset resets the limiter state
	Reset()
}

// TokenBucket implements a token bucket rate limiter. It bounds the
// number of API calls per refill period regardless of the fixed pacing
// interval.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.mu.Lock()
		timeUntilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if timeUntilRefill > 0 {
			time.Sleep(timeUntilRefill)
		} else {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// IntervalPacer enforces a fixed delay between consecutive requests, with
// an optional random jitter fraction added on top. This is the politeness
// delay applied between page fetches and between media downloads; it is a
// backpressure control against the remote API, not a correctness
// mechanism.
type IntervalPacer struct {
	interval time.Duration
	jitter   float64 // fraction of interval, 0..1
	last     time.Time
	mu       sync.Mutex
}

// NewIntervalPacer creates a pacer with the given base interval and
// jitter fraction. A zero interval disables pacing.
func NewIntervalPacer(interval time.Duration, jitter float64) *IntervalPacer {
	if jitter < 0 {
		jitter = 0
	}
	return &IntervalPacer{interval: interval, jitter: jitter}
}

// Allow reports whether the interval since the last request has elapsed,
// consuming the slot when it has.
func (p *IntervalPacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval <= 0 || p.last.IsZero() || time.Since(p.last) >= p.interval {
		p.last = time.Now()
		return true
	}
	return false
}

// Wait sleeps until the interval (plus jitter) since the previous request
// has passed, then consumes the slot. The first call never blocks.
func (p *IntervalPacer) Wait() {
	p.mu.Lock()
	if p.interval <= 0 || p.last.IsZero() {
		p.last = time.Now()
		p.mu.Unlock()
		return
	}

	wait := p.interval - time.Since(p.last)
	if p.jitter > 0 {
		wait += time.Duration(rand.Float64() * p.jitter * float64(p.interval))
	}
	p.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
}

// Reset clears the pacer so the next request proceeds immediately.
func (p *IntervalPacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = time.Time{}
}
