// Package ratelimit paces outbound calls.
//
// A Pacer enforces a fixed minimum gap between successive calls, the way
// the scanner spaces source API requests and classification calls. The
// first call never waits.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until a call may proceed or ctx is done
	Wait(ctx context.Context) error
}

// Pacer spaces calls by a fixed interval
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewPacer creates a pacer allowing one call per interval.
// A zero or negative interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Wait blocks until the next call may proceed
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Interval returns the configured spacing, zero when pacing is disabled
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Unlimited never blocks
type Unlimited struct{}

// Wait returns immediately unless ctx is already done
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}
