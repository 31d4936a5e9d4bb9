// Package quota tracks monthly request budgets against a hard ceiling.
//
// A Tracker owns one dimension (source API requests, classification calls)
// of a shared UsageStore. Usage is keyed by calendar month in UTC, so the
// first operation observed in a new month starts from a fresh window while
// earlier windows stay in the store untouched.
package quota

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
)

// Dimensions tracked by prompthunter
const (
	DimensionSourceAPI      = "source_api"
	DimensionClassification = "classification"
)

// UsageStore persists monthly counters
type UsageStore interface {
	GetMonthlyUsage(ctx context.Context, key string) (int, error)
	IncrementMonthlyUsage(ctx context.Context, key string, n int) (int, error)
}

// Window is a snapshot of one dimension's monthly usage
type Window struct {
	Dimension string `json:"dimension"`
	Month     string `json:"month"`
	Used      int    `json:"used"`
	Ceiling   int    `json:"ceiling"`
}

// Remaining never goes below zero
func (w Window) Remaining() int {
	if w.Used >= w.Ceiling {
		return 0
	}
	return w.Ceiling - w.Used
}

// Percent is the share of the ceiling already used
func (w Window) Percent() float64 {
	if w.Ceiling <= 0 {
		return 100
	}
	return float64(w.Used) / float64(w.Ceiling) * 100
}

// MonthKey formats the window key for t
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// StoreKey is the UsageStore key for a dimension and month
func StoreKey(dimension, month string) string {
	return dimension + ":" + month
}

// Tracker enforces a monthly ceiling for one dimension. It is safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	dimension  string
	ceiling    int
	store      UsageStore
	now        func() time.Time
	logger     logger.Logger
	sink       feed.Sink
	thresholds []int

	window Window
	loaded bool
	fired  map[int]bool
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock injects the time source used to pick the month window
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithAlerts records a warning event the first time usage crosses each percentage
func WithAlerts(sink feed.Sink, thresholds ...int) Option {
	return func(t *Tracker) {
		t.sink = sink
		t.thresholds = append([]int(nil), thresholds...)
		sort.Ints(t.thresholds)
	}
}

// NewTracker creates a tracker for dimension with the given monthly ceiling
func NewTracker(dimension string, ceiling int, store UsageStore, opts ...Option) *Tracker {
	t := &Tracker{
		dimension: dimension,
		ceiling:   ceiling,
		store:     store,
		now:       time.Now,
		logger:    logger.NewNopLogger(),
		fired:     make(map[int]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dimension returns the tracked dimension name
func (t *Tracker) Dimension() string {
	return t.dimension
}

// current loads the window for the current month, rolling over when the month changed.
// Callers must hold t.mu.
func (t *Tracker) current(ctx context.Context) error {
	month := MonthKey(t.now())
	if t.loaded && t.window.Month == month {
		return nil
	}

	used, err := t.store.GetMonthlyUsage(ctx, StoreKey(t.dimension, month))
	if err != nil {
		return fmt.Errorf("failed to load %s usage for %s: %w", t.dimension, month, err)
	}

	if t.loaded {
		t.logger.InfoWithFields("quota window rolled over", map[string]interface{}{
			"dimension": t.dimension,
			"previous":  t.window.Month,
			"month":     month,
		})
	}

	t.window = Window{Dimension: t.dimension, Month: month, Used: used, Ceiling: t.ceiling}
	t.loaded = true
	t.fired = make(map[int]bool)
	for _, threshold := range t.thresholds {
		if t.window.Percent() >= float64(threshold) {
			t.fired[threshold] = true
		}
	}
	return nil
}

// Window returns the current month's usage
func (t *Tracker) Window(ctx context.Context) (Window, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.current(ctx); err != nil {
		return Window{}, err
	}
	return t.window, nil
}

// Remaining returns how many units may still be spent this month
func (t *Tracker) Remaining(ctx context.Context) (int, error) {
	w, err := t.Window(ctx)
	if err != nil {
		return 0, err
	}
	return w.Remaining(), nil
}

// CanSpend reports whether n more units fit under the ceiling
func (t *Tracker) CanSpend(ctx context.Context, n int) (bool, error) {
	w, err := t.Window(ctx)
	if err != nil {
		return false, err
	}
	return w.Used+n <= w.Ceiling, nil
}

// Spend records n units. It returns a *errors.QuotaError without recording
// anything when n does not fit; callers are expected to check CanSpend first.
func (t *Tracker) Spend(ctx context.Context, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.current(ctx); err != nil {
		return err
	}
	if t.window.Used+n > t.window.Ceiling {
		return &errs.QuotaError{
			Dimension: t.dimension,
			Month:     t.window.Month,
			Used:      t.window.Used,
			Ceiling:   t.window.Ceiling,
			Requested: n,
		}
	}
	return t.record(ctx, n)
}

// TrySpend atomically checks and records n units, for callers that race
// each other for the same budget.
func (t *Tracker) TrySpend(ctx context.Context, n int) (bool, error) {
	err := t.Spend(ctx, n)
	if errs.IsQuotaExceeded(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Charge records n units that were already consumed upstream, even past the
// ceiling. It covers a request that was admitted and then answered.
func (t *Tracker) Charge(ctx context.Context, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.current(ctx); err != nil {
		return err
	}
	return t.record(ctx, n)
}

// record persists n units. Callers must hold t.mu.
func (t *Tracker) record(ctx context.Context, n int) error {
	used, err := t.store.IncrementMonthlyUsage(ctx, StoreKey(t.dimension, t.window.Month), n)
	if err != nil {
		return fmt.Errorf("failed to record %s usage: %w", t.dimension, err)
	}
	t.window.Used = used
	t.checkThresholds(ctx)
	return nil
}

func (t *Tracker) checkThresholds(ctx context.Context) {
	percent := t.window.Percent()
	for _, threshold := range t.thresholds {
		if t.fired[threshold] || percent < float64(threshold) {
			continue
		}
		t.fired[threshold] = true

		details := map[string]interface{}{
			"dimension": t.dimension,
			"month":     t.window.Month,
			"used":      t.window.Used,
			"ceiling":   t.window.Ceiling,
			"threshold": threshold,
		}
		t.logger.WarnWithFields("quota threshold reached", details)
		if t.sink != nil {
			t.sink.Record(ctx, models.EventWarning,
				fmt.Sprintf("%s quota at %d%% (%d/%d used)", t.dimension, threshold, t.window.Used, t.window.Ceiling),
				details)
		}
	}
}
