// Package resilience provides the bounded retry loop used for provider calls
// and helpers that classify network failures.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Backoff returns the pause after the given failed attempt (1-based).
type Backoff func(attempt int) time.Duration

// RetryConfig bounds a retry loop.
type RetryConfig struct {
	// MaxAttempts counts every call including the first. Values below 1
	// mean a single call.
	MaxAttempts int

	// Backoff is the pause after a failed attempt. Nil retries immediately.
	Backoff Backoff

	// ShouldRetry rejects errors not worth another attempt. Nil retries
	// every error.
	ShouldRetry func(err error) bool

	// OnRetry is called before each pause with the failed attempt number.
	OnRetry func(attempt int, err error)
}

// LinearBackoff waits step × attempt after each failed attempt.
func LinearBackoff(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

// DoVal calls fn until it succeeds, the attempts run out, ShouldRetry
// rejects the error or ctx is done. Attempts are numbered from 1. On failure
// it returns the last error from fn.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	attempts := max(cfg.MaxAttempts, 1)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		val, err := fn(ctx, attempt)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt == attempts || ctx.Err() != nil {
			break
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		var pause time.Duration
		if cfg.Backoff != nil {
			pause = cfg.Backoff(attempt)
		}
		if !wait(ctx, pause) {
			break
		}
	}
	return zero, lastErr
}

// wait pauses for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RetryLogger returns an OnRetry callback that logs each failed attempt.
func RetryLogger(provider, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying provider call",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
