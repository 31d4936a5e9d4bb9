package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/logger"
)

// ErrNotAdmitted is wrapped by errors returned from a BeforeAttempt refusal
var ErrNotAdmitted = errors.New("attempt not admitted")

// Operation performs one attempt
type Operation func(ctx context.Context, attempt int) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, at least one
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf reports whether an error is worth another attempt
	RetryIf func(error) bool
	// BeforeAttempt runs before every attempt after the first; a non-nil
	// error stops retrying and is returned wrapped with ErrNotAdmitted
	BeforeAttempt func(ctx context.Context, attempt int) error
	// OnRetry is called before waiting for the next attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig makes a single attempt
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 1,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// DefaultRetryIf retries transient upstream errors only
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errs.IsQuotaExceeded(err) {
		return false
	}
	if upstream, ok := errs.AsUpstream(err); ok {
		return upstream.Retryable()
	}
	return false
}

// Do runs op until it succeeds, fails permanently, or attempts run out
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && cfg.BeforeAttempt != nil {
			if err := cfg.BeforeAttempt(ctx, attempt); err != nil {
				log.DebugWithFields("retry not admitted", map[string]interface{}{
					"attempt": attempt,
					"reason":  err.Error(),
				})
				return fmt.Errorf("%w: %v (last error: %w)", ErrNotAdmitted, err, lastErr)
			}
		}

		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) || attempt == maxAttempts {
			break
		}

		delay := nextDelay(cfg.Backoff, attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return lastErr
}

func nextDelay(backoff BackoffStrategy, attempt int, err error) time.Duration {
	if backoff == nil {
		return 0
	}
	if typed, ok := backoff.(*ErrorTypeBackoff); ok {
		return typed.For(err).NextDelay(attempt)
	}
	return backoff.NextDelay(attempt)
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		var opErr error
		result, opErr = op(ctx, attempt)
		return opErr
	})
	return result, err
}
