// Package clients provides HTTP client infrastructure: connection
// management, token bucket rate limiting and circuit breaking.
package clients

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// NewRateLimiter creates a token bucket rate limiter with the given rate
// (requests per second) and burst capacity.
func NewRateLimiter(rate int, burst int) RateLimiter {
	return NewTokenBucketRateLimiter(float64(rate), burst)
}

// RateLimiter supports immediate checks, blocking waits and future
// reservations.
type RateLimiter interface {
	// Allow checks if a request is allowed
	Allow() bool

	// Wait blocks until a request is allowed
	Wait(ctx context.Context) error

	// Reserve reserves a future request
	Reserve() Reservation

	// SetRate updates the rate limit
	SetRate(rate float64)

	// SetBurst updates the burst size
	SetBurst(burst int)

	// GetStats returns rate limiter statistics
	GetStats() RateLimiterStats
}

// Reservation represents a rate limiter reservation for future use.
type Reservation interface {
	// OK returns whether the reservation is valid
	OK() bool

	// Delay returns the delay before the request can proceed
	Delay() time.Duration

	// Cancel cancels the reservation
	Cancel()
}

// RateLimiterStats describes rate limiter state for monitoring.
type RateLimiterStats struct {
	Rate            float64       `json:"rate"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	BlockedRequests int64         `json:"blocked_requests"`
	CurrentTokens   float64       `json:"current_tokens"`
	LastRefill      time.Time     `json:"last_refill"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
}

// TokenBucketRateLimiter implements the token bucket algorithm. Tokens
// accrue at a constant rate and each request consumes one.
type TokenBucketRateLimiter struct {
	rate     float64
	burst    int
	tokens   float64
	lastTime time.Time

	allowedRequests int64
	blockedRequests int64
	totalWaitTime   int64

	mu sync.Mutex
}

// NewTokenBucketRateLimiter creates a limiter with the given rate
// (tokens per second) and burst capacity. The bucket starts full.
func NewTokenBucketRateLimiter(rate float64, burst int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastTime: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1.0 {
		tb.tokens--
		atomic.AddInt64(&tb.allowedRequests, 1)
		return true
	}

	atomic.AddInt64(&tb.blockedRequests, 1)
	return false
}

// Wait blocks until a token is available or the context is done.
func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	start := time.Now()

	for {
		tb.mu.Lock()
		tb.refill()

		if tb.tokens >= 1.0 {
			tb.tokens--
			atomic.AddInt64(&tb.allowedRequests, 1)
			atomic.AddInt64(&tb.totalWaitTime, time.Since(start).Nanoseconds())
			tb.mu.Unlock()
			return nil
		}

		deficit := 1.0 - tb.tokens
		waitTime := time.Duration(deficit / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
			continue
		case <-ctx.Done():
			timer.Stop()
			atomic.AddInt64(&tb.blockedRequests, 1)
			return ctx.Err()
		}
	}
}

// Reserve reserves a future request, returning the delay until it may run.
func (tb *TokenBucketRateLimiter) Reserve() Reservation {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	now := time.Now()

	if tb.tokens >= 1.0 {
		tb.tokens--
		atomic.AddInt64(&tb.allowedRequests, 1)
		return &tokenReservation{
			ok: true,
			at: now,
		}
	}

	deficit := 1.0 - tb.tokens
	delay := time.Duration(deficit / tb.rate * float64(time.Second))
	tb.tokens = 0

	return &tokenReservation{
		ok:      true,
		delay:   delay,
		at:      now.Add(delay),
		limiter: tb,
	}
}

// refill adds tokens for the time elapsed since the last refill.
func (tb *TokenBucketRateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastTime).Seconds()

	tb.tokens += elapsed * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}

	tb.lastTime = now
}

// SetRate updates the rate limit.
func (tb *TokenBucketRateLimiter) SetRate(rate float64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.rate = rate
}

// SetBurst updates the burst size, dropping excess tokens.
func (tb *TokenBucketRateLimiter) SetBurst(burst int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.burst = burst
	if tb.tokens > float64(burst) {
		tb.tokens = float64(burst)
	}
}

// GetStats returns rate limiter statistics.
func (tb *TokenBucketRateLimiter) GetStats() RateLimiterStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	allowed := atomic.LoadInt64(&tb.allowedRequests)
	blocked := atomic.LoadInt64(&tb.blockedRequests)
	totalWait := atomic.LoadInt64(&tb.totalWaitTime)

	avgWait := time.Duration(0)
	if allowed > 0 {
		avgWait = time.Duration(totalWait / allowed)
	}

	return RateLimiterStats{
		Rate:            tb.rate,
		Burst:           tb.burst,
		AllowedRequests: allowed,
		BlockedRequests: blocked,
		CurrentTokens:   tb.tokens,
		LastRefill:      tb.lastTime,
		AverageWaitTime: avgWait,
	}
}

type tokenReservation struct {
	ok       bool
	delay    time.Duration
	at       time.Time
	limiter  *TokenBucketRateLimiter
	canceled bool
	mu       sync.Mutex
}

func (r *tokenReservation) OK() bool {
	return r.ok && !r.canceled
}

func (r *tokenReservation) Delay() time.Duration {
	return r.delay
}

func (r *tokenReservation) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.canceled && r.delay > 0 {
		r.canceled = true
		if r.limiter != nil {
			r.limiter.mu.Lock()
			r.limiter.tokens++
			r.limiter.mu.Unlock()
		}
	}
}
