// Package retry runs operations with exponential backoff. Each retried
// failure is logged with the trace id of the calling request, so the retries
// of one request can be found next to its other log lines.
//
// Example usage:
//
//	err := retry.Do(ctx, retry.Config{MaxAttempts: 5}, func() error {
//		return pool.Ping(ctx)
//	})
package retry

import (
	"context"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/cenkalti/backoff/v5"
)

// Policy selects which errors are retried.
type Policy int

const (
	// PolicyTemporary retries errors classified as temporary.
	PolicyTemporary Policy = iota
	// PolicyAll retries every error.
	PolicyAll
	// PolicyNone runs the operation once.
	PolicyNone
)

// Config controls the backoff. Zero fields take the defaults noted below.
type Config struct {
	// MaxAttempts counts the first call. Default 10.
	MaxAttempts uint
	// InitialDelay defaults to 100ms.
	InitialDelay time.Duration
	// MaxDelay defaults to 5s.
	MaxDelay time.Duration
	// Multiplier defaults to 2.
	Multiplier float64
	// Jitter is the randomization factor, default 0.25.
	Jitter float64
	// MaxElapsedTime bounds all attempts together. Zero means no bound.
	MaxElapsedTime time.Duration

	Policy Policy
	// Retryable overrides Policy when set.
	Retryable func(error) bool

	// Logger receives a WARNING per retried failure. Nil means the logger
	// carried by the context.
	Logger *logging.Logger
	// Operation names the operation in retry log lines.
	Operation string
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 10
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2
	}
	if c.Jitter == 0 {
		c.Jitter = 0.25
	}
	return c
}

func (c Config) retryable(err error) bool {
	if c.Retryable != nil {
		return c.Retryable(err)
	}
	switch c.Policy {
	case PolicyAll:
		return true
	case PolicyNone:
		return false
	default:
		return errors.IsTemporary(err)
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, attempts
// run out or ctx is done. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithData(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithData is Do for operations returning a value.
func DoWithData[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.Jitter

	logger := cfg.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	attempt := 0

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.LogContext(ctx, logging.SeverityWarning, "retrying "+operationName(cfg), map[string]interface{}{
				"attempt": attempt,
				"error":   err,
				"waitMs":  wait.Milliseconds(),
			})
		}),
	}
	if cfg.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}

	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !cfg.retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}

func operationName(cfg Config) string {
	if cfg.Operation == "" {
		return "operation"
	}
	return cfg.Operation
}
