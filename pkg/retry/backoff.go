// Package retry provides a small capped-exponential-backoff-with-jitter
// helper shared by callers that retry transient store, bus, and
// orchestrator failures.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Config tunes a backoff sequence.
type Config struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// DefaultConfig is the transient-failure policy used around store, bus, and
// orchestrator calls: 100ms doubling per attempt, plus jitter, capped well
// below any caller's request deadline.
func DefaultConfig() Config {
	return Config{Base: 100 * time.Millisecond, Max: 2 * time.Second, Jitter: 50 * time.Millisecond}
}

// Delay returns the backoff duration for the given zero-based attempt
// number, doubling Base each attempt up to Max and adding up to ±Jitter.
func (c Config) Delay(attempt int) time.Duration {
	d := c.Base
	for i := 0; i < attempt && d < c.Max; i++ {
		d *= 2
	}
	if d > c.Max {
		d = c.Max
	}
	if c.Jitter <= 0 {
		return d
	}
	offset := time.Duration(rand.Int64N(int64(2 * c.Jitter)))
	d = d - c.Jitter + offset
	if d < 0 {
		d = 0
	}
	return d
}

// Do calls fn until it succeeds, ctx is cancelled, or maxAttempts is
// exhausted (0 means unlimited), sleeping Delay(attempt) between tries.
func Do(ctx context.Context, cfg Config, maxAttempts int, fn func(ctx context.Context) error) error {
	return DoIf(ctx, cfg, maxAttempts, func(error) bool { return true }, fn)
}

// DoIf behaves like Do but consults shouldRetry on every failure: an error
// it rejects is returned to the caller immediately, so business-rule
// rejections pass through while transient failures burn retry attempts.
func DoIf(ctx context.Context, cfg Config, maxAttempts int, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; maxAttempts == 0 || attempt < maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}
	return lastErr
}
