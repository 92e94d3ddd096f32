// Package resilience provides bounded retry with backoff for calls to
// non-deterministic collaborators such as the extraction model.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds a retry loop.
type RetryConfig struct {
	// Attempts is the total number of calls, first try included.
	Attempts int
	// Backoff is the delay before the first retry; it doubles per retry up
	// to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Jitter is the random spread as a fraction of the delay.
	Jitter float64
	// Retryable decides which errors are retried. Defaults to IsTransient.
	Retryable func(err error) bool
	// OnRetry runs before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns three attempts with a 500ms base delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:   3,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		Jitter:     0.25,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// attempts, or ctx is done.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withDefaults(cfg)

	var zero T
	var err error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !cfg.Retryable(err) || attempt == cfg.Attempts {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}

func withDefaults(cfg RetryConfig) RetryConfig {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsTransient
	}
	return cfg
}

// backoff returns the delay after the given (1-based) failed attempt.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := min(float64(cfg.Backoff)*math.Pow(2, float64(attempt-1)), float64(cfg.MaxBackoff))
	if cfg.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * cfg.Jitter
	}
	return time.Duration(max(d, 0))
}

// RetryLogger returns an OnRetry callback that logs each retry at Warn.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
