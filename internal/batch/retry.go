package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"docparse/internal/metrics"
)

// RetryConfig controls per-item retries.
type RetryConfig struct {
	MaxAttempts int
	// Base is the delay before the second attempt; it doubles after each failure.
	Base time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries
	// everything except context cancellation and panics.
	Retryable func(error) bool
}

// Delay returns the wait before attempt n+1 after attempt n (1-based) failed.
func (c RetryConfig) Delay(attempt int) time.Duration {
	return c.Base << (attempt - 1)
}

func (c RetryConfig) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return false
	}
	if c.Retryable == nil {
		return true
	}
	return c.Retryable(err)
}

// do runs op until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx ends. It returns the number of attempts made.
func do(ctx context.Context, cfg RetryConfig, log zerolog.Logger, op func(ctx context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Item succeeded after retry")
			}
			return attempt, nil
		}
		lastErr = err

		if !cfg.retryable(err) {
			log.Debug().Err(err).Int("attempt", attempt).Msg("Error not retryable")
			return attempt, err
		}
		if attempt == cfg.MaxAttempts {
			return attempt, err
		}

		delay := cfg.Delay(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("delay", delay).
			Msg("Item failed, retrying")
		metrics.BatchRetries.Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return cfg.MaxAttempts, lastErr
}
