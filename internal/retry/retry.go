// Package retry wraps a single remote call in policy-driven exponential
// backoff. Which errors are worth retrying is decided by the caller's
// classifier, not here; client errors and circuit-open conditions must fail
// fast.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy configures the executor.
type Policy struct {
	MaxAttempts    int           // Total attempts, including the first
	InitialBackoff time.Duration // Doubles after each failed attempt
	MaxBackoff     time.Duration // Backoff cap
	// Retryable classifies an error as transient. A nil classifier retries
	// everything except context cancellation.
	Retryable func(error) bool
	// OnRetry is invoked before each sleep, after attempt attempts have
	// failed. Used to feed the global retry counter.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns sensible retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Executor retries operations according to one policy.
type Executor struct {
	policy Policy
	logger *zap.Logger
}

// New creates an executor with the given policy.
func New(policy Policy, logger *zap.Logger) *Executor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = 1 * time.Second
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{policy: policy, logger: logger}
}

// Do runs op up to MaxAttempts times, sleeping min(initial*2^n, cap)
// between attempts. The last error is returned after exhaustion. Context
// cancellation aborts the wait immediately.
func (e *Executor) Do(ctx context.Context, operation string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.Debug("retry succeeded",
					zap.String("operation", operation),
					zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		if e.policy.Retryable != nil && !e.policy.Retryable(err) {
			return err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		backoff := e.backoff(attempt - 1)
		e.logger.Debug("attempt failed, backing off",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.policy.MaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if e.policy.OnRetry != nil {
			e.policy.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

// backoff computes initial*2^attempt capped at MaxBackoff.
func (e *Executor) backoff(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	backoff := e.policy.InitialBackoff << uint(attempt)
	if backoff > e.policy.MaxBackoff || backoff <= 0 {
		backoff = e.policy.MaxBackoff
	}
	return backoff
}
