// Package backoff provides exponential backoff calculation and a context-aware retry loop.
package backoff

import (
	"context"
	"math"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 100 * time.Millisecond
	maxBackoff := 5 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	backoff := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, it reports the error as permanent, or
// retries are exhausted. fn is called at most retries+1 times and waits
// Exponential(attempt) between calls. The last error is returned.
func Retry(ctx context.Context, retries int, cfg *Config, fn func(attempt int) (retryable bool, err error)) error {
	var err error
	for attempt := 0; ; attempt++ {
		var retryable bool
		retryable, err = fn(attempt)
		if err == nil || !retryable || attempt >= retries {
			return err
		}
		if sleepErr := Sleep(ctx, Exponential(attempt+1, cfg)); sleepErr != nil {
			return err
		}
	}
}
