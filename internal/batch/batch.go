// Package batch runs one operation over many inputs with bounded concurrency
// and per-item retries. Results keep the input order.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"docparse/internal/logger"
	"docparse/internal/metrics"
)

const (
	// DefaultConcurrency applies when Config.MaxConcurrent is not positive.
	DefaultConcurrency = 3
	// MaxConcurrency is the hard upper bound on parallel items.
	MaxConcurrency = 5
	// DefaultAttempts applies when Config.Retry.MaxAttempts is not positive.
	DefaultAttempts = 3
	// DefaultRetryBase is the delay before the first retry.
	DefaultRetryBase = time.Second
)

// Config controls a batch run.
type Config struct {
	MaxConcurrent int
	Retry         RetryConfig
}

// DefaultConfig returns three workers and three attempts with a one second base delay.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultConcurrency,
		Retry: RetryConfig{
			MaxAttempts: DefaultAttempts,
			Base:        DefaultRetryBase,
		},
	}
}

func (c Config) normalized() Config {
	switch {
	case c.MaxConcurrent <= 0:
		c.MaxConcurrent = DefaultConcurrency
	case c.MaxConcurrent > MaxConcurrency:
		c.MaxConcurrent = MaxConcurrency
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultAttempts
	}
	if c.Retry.Base <= 0 {
		c.Retry.Base = DefaultRetryBase
	}
	return c
}

// Func processes one input.
type Func[T any] func(ctx context.Context, index int, input string) (T, error)

// Result is the outcome for the input at Index.
type Result[T any] struct {
	Index    int
	Input    string
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// Report collects the results of a run in input order.
type Report[T any] struct {
	BatchID   string
	Results   []Result[T]
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Run calls fn for every input, at most cfg.MaxConcurrent at a time.
// Items that fail after all attempts are reported in their Result; Run
// itself does not fail.
func Run[T any](ctx context.Context, cfg Config, inputs []string, fn Func[T]) *Report[T] {
	cfg = cfg.normalized()
	batchID := uuid.NewString()
	log := logger.WithBatchID(logger.WithComponent("batch"), batchID)

	log.Info().
		Int("items", len(inputs)).
		Int("max_concurrent", cfg.MaxConcurrent).
		Int("max_attempts", cfg.Retry.MaxAttempts).
		Msg("Starting batch")

	start := time.Now()
	results := make([]Result[T], len(inputs))
	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrent))

	var wg sync.WaitGroup
	for i, input := range inputs {
		results[i] = Result[T]{Index: i, Input: input}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Context ended; the remaining items are not started.
			for j := i; j < len(inputs); j++ {
				results[j] = Result[T]{Index: j, Input: inputs[j], Err: err}
			}
			break
		}

		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			defer sem.Release(1)

			metrics.BatchInFlight.Inc()
			defer metrics.BatchInFlight.Dec()

			itemLog := log.With().Int("index", i).Str("input", input).Logger()
			results[i] = runItem(ctx, cfg.Retry, itemLog, i, input, fn)
		}(i, input)
	}
	wg.Wait()

	report := &Report[T]{
		BatchID:  batchID,
		Results:  results,
		Duration: time.Since(start),
	}
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}

	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Batch completed")

	return report
}

func runItem[T any](ctx context.Context, retry RetryConfig, log zerolog.Logger, index int, input string, fn Func[T]) Result[T] {
	start := time.Now()
	res := Result[T]{Index: index, Input: input}

	var value T
	attempts, err := do(ctx, retry, log, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		value, err = fn(ctx, index, input)
		return err
	})

	res.Attempts = attempts
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		log.Error().Err(err).Int("attempts", attempts).Msg("Item failed")
		return res
	}
	res.Value = value
	return res
}
