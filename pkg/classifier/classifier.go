// Package classifier decides which fetched items are AI prompts.
//
// Every item that passes the length filter costs one classification call,
// charged to the classification quota before the call is made. A failed or
// malformed call never aborts a batch: the item is recorded as a non-match
// with zero confidence.
package classifier

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"prompthunter/internal/workpool"
	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
	"prompthunter/pkg/ratelimit"
)

// Defaults for an ItemClassifier
const (
	DefaultMinLength = 20
	DefaultThreshold = 0.7
)

// Budget admits classification calls. Implementations must be safe for concurrent use.
type Budget interface {
	TrySpend(ctx context.Context, n int) (bool, error)
}

// Status is the outcome for one item
type Status string

const (
	StatusAccepted        Status = "accepted"
	StatusRejected        Status = "rejected"
	StatusFailed          Status = "failed"
	StatusBudgetExhausted Status = "budget_exhausted"
)

// Verdict pairs an item with its classification
type Verdict struct {
	Item           models.RawItem
	Classification models.Classification
	Status         Status
}

// BatchResult summarizes a ClassifyBatch call
type BatchResult struct {
	// Qualifying holds accepted items in input order
	Qualifying []Verdict
	// Verdicts holds every item that passed the length filter, in input order
	Verdicts        []Verdict
	Analyzed        int
	Filtered        int
	Rejected        int
	Failed          int
	BudgetExhausted int
	CallsUsed       int
}

// ItemClassifier filters, classifies and thresholds items
type ItemClassifier struct {
	service     Service
	budget      Budget
	minLength   int
	threshold   float64
	concurrency int
	pacer       ratelimit.Limiter
	logger      logger.Logger
}

// Option configures an ItemClassifier
type Option func(*ItemClassifier)

// WithBudget charges every call to b
func WithBudget(b Budget) Option {
	return func(c *ItemClassifier) { c.budget = b }
}

// WithMinLength drops items shorter than n characters before classification
func WithMinLength(n int) Option {
	return func(c *ItemClassifier) { c.minLength = n }
}

// WithThreshold sets the minimum confidence for acceptance
func WithThreshold(t float64) Option {
	return func(c *ItemClassifier) { c.threshold = t }
}

// WithConcurrency classifies up to n items at once
func WithConcurrency(n int) Option {
	return func(c *ItemClassifier) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithPacer spaces classification calls
func WithPacer(p ratelimit.Limiter) Option {
	return func(c *ItemClassifier) { c.pacer = p }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *ItemClassifier) { c.logger = l }
}

// New creates an ItemClassifier over service
func New(service Service, opts ...Option) *ItemClassifier {
	c := &ItemClassifier{
		service:     service,
		minLength:   DefaultMinLength,
		threshold:   DefaultThreshold,
		concurrency: 1,
		pacer:       ratelimit.Unlimited{},
		logger:      logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Eligible reports whether text is long enough to be classified
func (c *ItemClassifier) Eligible(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= c.minLength
}

// Accepts applies the acceptance rule to a classification
func (c *ItemClassifier) Accepts(cl models.Classification) bool {
	return cl.IsMatch && cl.Confidence >= c.threshold
}

// ClassifyBatch classifies items and returns the qualifying ones in input order.
// The only error returned is the context's; the partial result is still valid.
func (c *ItemClassifier) ClassifyBatch(ctx context.Context, items []models.RawItem) (*BatchResult, error) {
	res := &BatchResult{}

	eligible := make([]models.RawItem, 0, len(items))
	for _, item := range items {
		if !c.Eligible(item.Text) {
			res.Filtered++
			continue
		}
		eligible = append(eligible, item)
	}
	if len(eligible) == 0 {
		return res, nil
	}

	var exhausted atomic.Bool
	handler := func(ctx context.Context, item models.RawItem) (Verdict, error) {
		return c.classifyOne(ctx, item, &exhausted)
	}
	results := workpool.Run(ctx, c.concurrency, eligible, handler, nil, c.logger)

	for _, r := range results {
		if r.Err != nil {
			// only cancellation reaches here
			continue
		}
		v := r.Value
		res.Verdicts = append(res.Verdicts, v)
		switch v.Status {
		case StatusAccepted:
			res.Analyzed++
			res.CallsUsed++
			res.Qualifying = append(res.Qualifying, v)
		case StatusRejected:
			res.Analyzed++
			res.CallsUsed++
			res.Rejected++
		case StatusFailed:
			res.Analyzed++
			res.CallsUsed++
			res.Failed++
		case StatusBudgetExhausted:
			res.BudgetExhausted++
		}
	}

	if res.BudgetExhausted > 0 {
		c.logger.WarnWithFields("classification budget exhausted", map[string]interface{}{
			"skipped":  res.BudgetExhausted,
			"analyzed": res.Analyzed,
		})
	}

	return res, ctx.Err()
}

func (c *ItemClassifier) classifyOne(ctx context.Context, item models.RawItem, exhausted *atomic.Bool) (Verdict, error) {
	v := Verdict{Item: item}

	if exhausted.Load() {
		v.Status = StatusBudgetExhausted
		v.Classification = Degraded(errs.ErrQuotaExceeded)
		return v, nil
	}
	if c.budget != nil {
		ok, err := c.budget.TrySpend(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return v, ctx.Err()
			}
			// usage could not be recorded, so the call is not made
			v.Status = StatusBudgetExhausted
			v.Classification = Degraded(err)
			c.logger.WithError(err).WarnWithFields("failed to charge classification budget", map[string]interface{}{
				"item_id": item.ID,
			})
			return v, nil
		}
		if !ok {
			exhausted.Store(true)
			v.Status = StatusBudgetExhausted
			v.Classification = Degraded(errs.ErrQuotaExceeded)
			return v, nil
		}
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return v, err
	}

	cl, err := c.service.Classify(ctx, item.Text)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return v, err
		}
		c.logger.WithError(err).WarnWithFields("classification failed, treating item as non-match", map[string]interface{}{
			"item_id": item.ID,
		})
		v.Status = StatusFailed
		v.Classification = Degraded(err)
		return v, nil
	}

	v.Classification = cl
	if c.Accepts(cl) {
		v.Status = StatusAccepted
	} else {
		v.Status = StatusRejected
	}
	c.logger.DebugWithFields("item classified", map[string]interface{}{
		"item_id":    item.ID,
		"is_match":   cl.IsMatch,
		"category":   string(cl.Category),
		"confidence": cl.Confidence,
		"status":     string(v.Status),
	})
	return v, nil
}
