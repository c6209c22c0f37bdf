// Package ratelimit throttles requests to embedding and LLM providers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration for a provider.
type Config struct {
	// RequestsPerSecond is the sustained rate limit. Zero or less disables limiting.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// defaultBackoff applies when a 429 carries no Retry-After header.
const defaultBackoff = 10 * time.Second

// Limiter is a token bucket with a backoff window set by 429 responses.
// A nil *Limiter never blocks.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a limiter. It returns nil when cfg disables limiting.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Wait blocks until a request may be sent, honouring any backoff window.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Backoff delays all requests for d. A non-positive d uses a default window.
func (l *Limiter) Backoff(d time.Duration) {
	if l == nil {
		return
	}
	if d <= 0 {
		d = defaultBackoff
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if at := time.Now().Add(d); at.After(l.retryAt) {
		l.retryAt = at
	}
}

// Allow reports whether a request may be sent right now without blocking.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return l.limiter.Allow()
}
