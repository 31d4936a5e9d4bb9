package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "prompthunter/pkg/errors"
)

// BackoffStrategy computes the delay before the next attempt
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically with optional jitter
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    2 * time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay returns the delay after the given (1-based) failed attempt
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff waits the same delay every time
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ErrorTypeBackoff picks a strategy by upstream error type
type ErrorTypeBackoff struct {
	RateLimit BackoffStrategy
	Default   BackoffStrategy
}

// NewErrorTypeBackoff backs off rate limits from 30s and everything else from base
func NewErrorTypeBackoff(base time.Duration) *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		RateLimit: &ExponentialBackoff{
			BaseDelay:    30 * time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		Default: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     time.Minute,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
	}
}

// For returns the strategy to use after err
func (b *ErrorTypeBackoff) For(err error) BackoffStrategy {
	if upstream, ok := errs.AsUpstream(err); ok && upstream.Type == errs.ErrorTypeRateLimit {
		return b.RateLimit
	}
	return b.Default
}

// NextDelay uses the default strategy when no error is known
func (b *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return b.Default.NextDelay(attempt)
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
