package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// retryPolicy runs a backend call under a per-call timeout and retries
// transient failures with exponential backoff.
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	timeout        time.Duration

	// sleep waits between attempts. Tests replace it to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(s domain.RetrySettings) retryPolicy {
	p := retryPolicy{
		maxAttempts:    s.MaxAttempts,
		initialBackoff: s.InitialBackoff,
		maxBackoff:     s.MaxBackoff,
		timeout:        s.Timeout,
		sleep:          sleepContext,
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = domain.DefaultMaxAttempts
	}
	if p.initialBackoff <= 0 {
		p.initialBackoff = domain.DefaultInitialBackoff
	}
	if p.maxBackoff < p.initialBackoff {
		p.maxBackoff = max(domain.DefaultMaxBackoff, p.initialBackoff)
	}
	return p
}

// do calls fn until it succeeds, fails permanently or runs out of attempts.
// Exhausting the attempts yields a *domain.BackendUnavailableError.
// Permanent failures, such as rejected credentials, are returned unchanged.
func (p retryPolicy) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	backoff := p.initialBackoff

	for attempt := 1; ; attempt++ {
		err := p.call(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= p.maxAttempts {
			return &domain.BackendUnavailableError{Operation: operation, Attempts: attempt, Err: err}
		}

		wait := withJitter(backoff)
		logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v",
			operation, attempt, p.maxAttempts, wait.Round(time.Millisecond), err)
		if err := p.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
		backoff = min(backoff*2, p.maxBackoff)
	}
}

func (p retryPolicy) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return fn(callCtx)
}

// isRetryable reports whether err is worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrAuthInvalid) {
		return false
	}
	if errors.Is(err, domain.ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// withJitter spreads d by up to a quarter in either direction.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 4
	if spread == 0 {
		return d
	}
	return d + time.Duration(rand.Int64N(2*spread+1)-spread)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
