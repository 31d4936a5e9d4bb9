// Package paginator assembles multi-page timeline results under three
// independent limits: an item target, a per-pass request cap and the
// monthly source quota. Every request, retries included, must pass both the
// request cap and the quota check before it is sent.
package paginator

import (
	"context"
	"errors"
	"fmt"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
	"prompthunter/pkg/ratelimit"
	"prompthunter/pkg/retry"
	"prompthunter/pkg/twitter"
)

// Fetcher requests a single page
type Fetcher interface {
	FetchPage(ctx context.Context, req twitter.PageRequest) (*twitter.Page, error)
}

// Budget gates and records source API requests
type Budget interface {
	CanSpend(ctx context.Context, n int) (bool, error)
	Charge(ctx context.Context, n int) error
}

// StopReason says why a pass ended
type StopReason string

const (
	StopTarget     StopReason = "target"
	StopRequestCap StopReason = "request_cap"
	StopQuota      StopReason = "quota"
	StopNaturalEnd StopReason = "natural_end"
	StopError      StopReason = "error"
)

// Request describes one pass over a user's timeline
type Request struct {
	UserID          string
	Target          int
	MaxRequests     int
	SinceID         string
	ExcludeReplies  bool
	ExcludeRetweets bool
}

// Result is what a pass collected. It is returned even when the pass fails.
type Result struct {
	Items        []models.RawItem
	RequestsUsed int
	Pages        int
	NaturalEnd   bool
	StopReason   StopReason
	NextToken    string
}

// Paginator walks timeline pages
type Paginator struct {
	fetcher Fetcher
	budget  Budget
	pacer   ratelimit.Limiter
	retry   retry.Config
	pageCap int
	logger  logger.Logger
}

// Option configures a Paginator
type Option func(*Paginator)

// WithPacer spaces successive requests. The pacer may be shared between
// paginators so requests stay spaced across sources.
func WithPacer(p ratelimit.Limiter) Option {
	return func(pg *Paginator) { pg.pacer = p }
}

// WithRetry retries transient failures; each retry is a request of its own
func WithRetry(attempts int, backoff retry.BackoffStrategy) Option {
	return func(pg *Paginator) {
		pg.retry.MaxAttempts = attempts
		pg.retry.Backoff = backoff
	}
}

// WithPageCap sets the provider's per-page maximum
func WithPageCap(n int) Option {
	return func(pg *Paginator) { pg.pageCap = n }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(pg *Paginator) { pg.logger = l }
}

// New creates a Paginator over fetcher, charging every request to budget
func New(fetcher Fetcher, budget Budget, opts ...Option) *Paginator {
	p := &Paginator{
		fetcher: fetcher,
		budget:  budget,
		pacer:   ratelimit.Unlimited{},
		retry:   retry.Config{MaxAttempts: 1},
		pageCap: twitter.MaxPageSize,
		logger:  logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retry.Logger = p.logger
	return p
}

// Collect pages through the timeline until the target is met, the request
// cap or quota is exhausted, or the upstream runs out of data. A page with
// no items is treated as the end of data even if it carries a token.
func (p *Paginator) Collect(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Items: make([]models.RawItem, 0)}
	token := ""

	for {
		if len(res.Items) >= req.Target {
			res.StopReason = StopTarget
			break
		}
		if res.RequestsUsed >= req.MaxRequests {
			res.StopReason = StopRequestCap
			break
		}
		ok, err := p.budget.CanSpend(ctx, 1)
		if err != nil {
			res.StopReason = StopError
			return res, err
		}
		if !ok {
			res.StopReason = StopQuota
			p.logger.WarnWithFields("monthly quota reached mid-pass", map[string]interface{}{
				"user_id":  req.UserID,
				"requests": res.RequestsUsed,
				"items":    len(res.Items),
			})
			break
		}

		if err := p.pacer.Wait(ctx); err != nil {
			res.StopReason = StopError
			return res, err
		}

		pageReq := twitter.PageRequest{
			UserID:          req.UserID,
			PaginationToken: token,
			MaxResults:      min(p.pageCap, req.Target-len(res.Items)),
			SinceID:         req.SinceID,
			ExcludeReplies:  req.ExcludeReplies,
			ExcludeRetweets: req.ExcludeRetweets,
		}

		page, err := p.fetch(ctx, req, pageReq, res)
		if err != nil {
			res.StopReason = StopError
			res.NextToken = token
			return res, fmt.Errorf("page %d for user %s: %w", res.Pages+1, req.UserID, err)
		}

		res.Pages++
		res.Items = append(res.Items, page.Items...)
		// the provider's minimum page size can overshoot the target
		if len(res.Items) > req.Target {
			res.Items = res.Items[:req.Target]
		}
		token = page.NextToken
		logger.LogPageFetch(p.logger, req.UserID, res.RequestsUsed, len(page.Items), token)

		if len(page.Items) == 0 || token == "" {
			res.NaturalEnd = true
			res.StopReason = StopNaturalEnd
			token = ""
			break
		}
	}

	res.NextToken = token
	return res, nil
}

// fetch performs one page request with retries. Every attempt that reached
// the upstream is counted and charged, failed or not.
func (p *Paginator) fetch(ctx context.Context, req Request, pageReq twitter.PageRequest, res *Result) (*twitter.Page, error) {
	cfg := p.retry
	cfg.BeforeAttempt = func(ctx context.Context, attempt int) error {
		if res.RequestsUsed >= req.MaxRequests {
			return errors.New("per-pass request cap reached")
		}
		ok, err := p.budget.CanSpend(ctx, 1)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrQuotaExceeded
		}
		return nil
	}

	return retry.DoWithResult(ctx, &cfg, func(ctx context.Context, attempt int) (*twitter.Page, error) {
		page, err := p.fetcher.FetchPage(ctx, pageReq)
		if !reachedUpstream(err) {
			return nil, err
		}

		res.RequestsUsed++
		if chargeErr := p.budget.Charge(ctx, 1); chargeErr != nil {
			return nil, fmt.Errorf("failed to record request: %w", chargeErr)
		}
		return page, err
	})
}

// reachedUpstream reports whether a fetch produced an HTTP response
func reachedUpstream(err error) bool {
	if err == nil {
		return true
	}
	upstream, ok := errs.AsUpstream(err)
	return ok && upstream.Responded()
}
