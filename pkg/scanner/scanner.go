// Package scanner runs one pass over every active source: plan, paginate,
// classify, deduplicate and persist, then advance the source's cursor.
//
// Sources are scanned sequentially. A failing source is recorded in the run
// summary and the run moves on; only a failure to list sources aborts a run.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"prompthunter/pkg/classifier"
	"prompthunter/pkg/dedup"
	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/metrics"
	"prompthunter/pkg/models"
	"prompthunter/pkg/paginator"
	"prompthunter/pkg/planner"
	"prompthunter/pkg/quota"
	"prompthunter/pkg/retry"
	"prompthunter/pkg/twitter"
)

// SourceStore is the source bookkeeping the orchestrator needs
type SourceStore interface {
	ListActiveSources(ctx context.Context) ([]models.Source, error)
	SetSourceUserID(ctx context.Context, id int64, userID, displayName string) error
	UpdateSourceScan(ctx context.Context, id int64, scannedAt time.Time, lastSeenID string) error
}

// UserResolver maps a handle to an upstream user
type UserResolver interface {
	LookupUser(ctx context.Context, handle string) (*twitter.User, error)
}

// Collector runs a paginated pass
type Collector interface {
	Collect(ctx context.Context, req paginator.Request) (*paginator.Result, error)
}

// Classifier picks qualifying items out of a batch
type Classifier interface {
	ClassifyBatch(ctx context.Context, items []models.RawItem) (*classifier.BatchResult, error)
}

// Ingester stores items unless they are already known
type Ingester interface {
	IngestAll(ctx context.Context, items []*models.Item) (dedup.Counts, error)
}

// Budget is the source API quota
type Budget interface {
	Window(ctx context.Context) (quota.Window, error)
	CanSpend(ctx context.Context, n int) (bool, error)
	Charge(ctx context.Context, n int) error
}

// WindowReader exposes a quota window for reporting
type WindowReader interface {
	Window(ctx context.Context) (quota.Window, error)
}

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Sources    SourceStore
	Users      UserResolver
	Planner    *planner.Planner
	Collector  Collector
	Classifier Classifier
	Ingester   Ingester
	Budget     Budget
}

// Config tunes run-level behavior
type Config struct {
	// MinRemainingToStart skips the whole run when less source quota is left
	MinRemainingToStart int
	// MinRemainingPerSource ends the run early when less source quota is left
	MinRemainingPerSource int
	SourceDelay           time.Duration
	ExcludeReplies        bool
	ExcludeRetweets       bool
}

// DefaultConfig returns the standard run guards
func DefaultConfig() Config {
	return Config{
		MinRemainingToStart:   5,
		MinRemainingPerSource: 2,
		ExcludeReplies:        true,
		ExcludeRetweets:       true,
	}
}

// Orchestrator drives scan runs
type Orchestrator struct {
	deps       Deps
	cfg        Config
	classQuota WindowReader
	sink       feed.Sink
	metrics    *metrics.Metrics
	logger     logger.Logger
	now        func() time.Time
	newRunID   func() string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSink sets where operator events go
func WithSink(s feed.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithMetrics records run counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClassificationQuota includes the classification window in summaries
func WithClassificationQuota(w WindowReader) Option {
	return func(o *Orchestrator) { o.classQuota = w }
}

// New creates an Orchestrator
func New(deps Deps, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		sink:     feed.Discard{},
		logger:   logger.NewNopLogger(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run scans every active source once. The summary is returned even when the
// run stops early; the error is non-nil only when no source could be visited.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     o.newRunID(),
		StartedAt: o.now(),
	}
	log := o.logger.WithField("run_id", summary.RunID)

	sources, err := o.deps.Sources.ListActiveSources(ctx)
	if err != nil {
		o.sink.Record(ctx, models.EventError, "failed to load sources", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	summary.TotalSources = len(sources)

	window, err := o.deps.Budget.Window(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read source quota: %w", err)
	}
	logger.LogQuota(log, window.Dimension, window.Used, window.Ceiling)

	o.sink.Record(ctx, models.EventScan, fmt.Sprintf("scan run started for %d sources", len(sources)), map[string]interface{}{
		"run_id":    summary.RunID,
		"sources":   len(sources),
		"remaining": window.Remaining(),
	})

	if window.Remaining() < o.cfg.MinRemainingToStart {
		summary.StoppedReason = models.StoppedQuotaLow
		log.WarnWithFields("not enough source quota to start a run", map[string]interface{}{
			"remaining": window.Remaining(),
			"required":  o.cfg.MinRemainingToStart,
		})
		o.sink.Record(ctx, models.EventWarning,
			fmt.Sprintf("run skipped: only %d source requests left this month", window.Remaining()),
			map[string]interface{}{"remaining": window.Remaining(), "required": o.cfg.MinRemainingToStart})
		return o.finish(ctx, summary), nil
	}

	for i := range sources {
		if ctx.Err() != nil {
			summary.StoppedReason = models.StoppedCancelled
			break
		}

		remaining, err := o.remaining(ctx)
		if err != nil {
			summary.Add(o.failed(ctx, models.SourceResult{Handle: sources[i].Handle}, time.Now(), err))
			continue
		}
		if remaining < o.cfg.MinRemainingPerSource {
			summary.StoppedReason = models.StoppedQuotaLow
			log.WarnWithFields("source quota low, ending run early", map[string]interface{}{
				"remaining": remaining,
				"visited":   i,
			})
			o.sink.Record(ctx, models.EventWarning,
				fmt.Sprintf("run stopped early: %d source requests left", remaining),
				map[string]interface{}{"remaining": remaining, "visited": i})
			break
		}

		res := o.scanSource(ctx, &sources[i], remaining)
		summary.Add(res)
		o.metrics.ObserveSource(string(res.Status), res.RequestsUsed, res.ClassificationCalls, res.Inserted, res.Duplicates)
		logger.LogSourceResult(log, res.Handle, string(res.Status), res.RequestsUsed, res.Inserted, res.Duplicates, res.Duration)

		if o.cfg.SourceDelay > 0 && i < len(sources)-1 && res.Status != models.SourceSkipped {
			if err := retry.Wait(ctx, o.cfg.SourceDelay); err != nil {
				summary.StoppedReason = models.StoppedCancelled
				break
			}
		}
	}

	return o.finish(ctx, summary), nil
}

func (o *Orchestrator) remaining(ctx context.Context) (int, error) {
	w, err := o.deps.Budget.Window(ctx)
	if err != nil {
		return 0, err
	}
	return w.Remaining(), nil
}

func (o *Orchestrator) finish(ctx context.Context, summary *models.RunSummary) *models.RunSummary {
	summary.FinishedAt = o.now()

	// reporting must survive a cancelled run context
	rctx := context.WithoutCancel(ctx)
	readers := []WindowReader{o.deps.Budget}
	if o.classQuota != nil {
		readers = append(readers, o.classQuota)
	}
	for _, r := range readers {
		w, err := r.Window(rctx)
		if err != nil {
			o.logger.WithError(err).Warn("failed to read quota window for summary")
			continue
		}
		summary.Quotas = append(summary.Quotas, models.QuotaStatus{
			Dimension: w.Dimension,
			Month:     w.Month,
			Used:      w.Used,
			Ceiling:   w.Ceiling,
		})
		o.metrics.SetQuota(w.Dimension, w.Used, w.Remaining())
	}
	o.metrics.ObserveRun(summary.Duration(), summary.FinishedAt)

	details := map[string]interface{}{
		"run_id":               summary.RunID,
		"total_sources":        summary.TotalSources,
		"scanned":              summary.Scanned,
		"skipped":              summary.Skipped,
		"failed":               summary.Failed,
		"items_ingested":       summary.ItemsIngested,
		"duplicates":           summary.Duplicates,
		"requests_used":        summary.RequestsUsed,
		"classification_calls": summary.ClassificationCalls,
	}
	if summary.StoppedReason != "" {
		details["stopped_reason"] = summary.StoppedReason
	}
	o.logger.InfoWithFields("scan run finished", details)
	o.sink.Record(rctx, models.EventSuccess,
		fmt.Sprintf("scan run finished: %d new prompts from %d sources", summary.ItemsIngested, summary.Scanned),
		details)
	return summary
}

// scanSource runs one source pass. It never returns an error; failures are
// recorded in the result.
func (o *Orchestrator) scanSource(ctx context.Context, src *models.Source, remaining int) models.SourceResult {
	started := time.Now()
	now := o.now()
	res := models.SourceResult{Handle: src.Handle}
	log := o.logger.WithField("source", src.Handle)

	decision := o.deps.Planner.Plan(src, now, remaining)
	log.DebugWithFields("source planned", map[string]interface{}{"decision": decision.String()})
	if decision.IsSkip() {
		res.Status = models.SourceSkipped
		res.SkipReason = string(decision.Skip.Reason)
		res.Duration = time.Since(started)
		o.sink.Record(ctx, models.EventInfo, fmt.Sprintf("skipping @%s: %s", src.Handle, decision), map[string]interface{}{
			"source": src.Handle,
			"reason": res.SkipReason,
		})
		return res
	}
	res.Mode = string(decision.Cursor.Mode)

	if src.UserID == "" {
		if err := o.resolveUser(ctx, src, &res); err != nil {
			return o.failed(ctx, res, started, err)
		}
	}

	o.sink.Record(ctx, models.EventScan, fmt.Sprintf("scanning @%s (%s)", src.Handle, decision), map[string]interface{}{
		"source":       src.Handle,
		"mode":         res.Mode,
		"max_requests": decision.Cursor.MaxRequests,
		"target":       decision.Cursor.Target,
	})

	page, collectErr := o.deps.Collector.Collect(ctx, paginator.Request{
		UserID:          src.UserID,
		Target:          decision.Cursor.Target,
		MaxRequests:     decision.Cursor.MaxRequests,
		SinceID:         decision.Cursor.SinceID,
		ExcludeReplies:  o.cfg.ExcludeReplies,
		ExcludeRetweets: o.cfg.ExcludeRetweets,
	})
	if page == nil {
		page = &paginator.Result{}
	}
	res.RequestsUsed += page.RequestsUsed
	res.ItemsFetched = len(page.Items)
	res.StopReason = string(page.StopReason)
	o.sink.Record(ctx, models.EventAPI, fmt.Sprintf("fetched %d items from @%s in %d requests", len(page.Items), src.Handle, page.RequestsUsed), map[string]interface{}{
		"source":      src.Handle,
		"items":       len(page.Items),
		"requests":    page.RequestsUsed,
		"stop_reason": res.StopReason,
	})

	// items fetched before a failure are still classified and kept
	if err := o.ingest(ctx, src, page.Items, &res); err != nil {
		return o.failed(ctx, res, started, err)
	}
	if collectErr != nil {
		return o.failed(ctx, res, started, collectErr)
	}

	lastSeen := ""
	if len(page.Items) > 0 {
		lastSeen = page.Items[0].ID
	}
	if err := o.deps.Sources.UpdateSourceScan(ctx, src.ID, now, lastSeen); err != nil {
		return o.failed(ctx, res, started, err)
	}

	res.Status = models.SourceScanned
	res.LastSeenItemID = lastSeen
	if lastSeen == "" {
		res.LastSeenItemID = src.LastSeenItemID
	}
	res.Duration = time.Since(started)

	o.sink.Record(ctx, models.EventSuccess, fmt.Sprintf("found %d new prompts from @%s", res.Inserted, src.Handle), map[string]interface{}{
		"source":     src.Handle,
		"inserted":   res.Inserted,
		"duplicates": res.Duplicates,
		"analyzed":   res.Analyzed,
		"requests":   res.RequestsUsed,
	})
	return res
}

// resolveUser looks up and caches the upstream user id. The lookup is a
// source API request and is charged like one.
func (o *Orchestrator) resolveUser(ctx context.Context, src *models.Source, res *models.SourceResult) error {
	ok, err := o.deps.Budget.CanSpend(ctx, 1)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrQuotaExceeded
	}

	user, err := o.deps.Users.LookupUser(ctx, src.Handle)
	if err == nil || respondedUpstream(err) {
		res.RequestsUsed++
		if chargeErr := o.deps.Budget.Charge(ctx, 1); chargeErr != nil {
			return fmt.Errorf("failed to record request: %w", chargeErr)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to resolve @%s: %w", src.Handle, err)
	}

	if err := o.deps.Sources.SetSourceUserID(ctx, src.ID, user.ID, user.Name); err != nil {
		return err
	}
	src.UserID = user.ID
	if user.Name != "" {
		src.DisplayName = user.Name
	}
	return nil
}

func (o *Orchestrator) ingest(ctx context.Context, src *models.Source, items []models.RawItem, res *models.SourceResult) error {
	if len(items) == 0 {
		return nil
	}

	batch, err := o.deps.Classifier.ClassifyBatch(ctx, items)
	if batch != nil {
		res.Filtered = batch.Filtered
		res.Analyzed = batch.Analyzed
		res.Qualifying = len(batch.Qualifying)
		res.ClassificationCalls = batch.CallsUsed
	}
	if err != nil {
		return fmt.Errorf("classification interrupted: %w", err)
	}
	if batch.BudgetExhausted > 0 {
		o.sink.Record(ctx, models.EventWarning,
			fmt.Sprintf("classification budget exhausted, %d items from @%s not analyzed", batch.BudgetExhausted, src.Handle),
			map[string]interface{}{"source": src.Handle, "skipped": batch.BudgetExhausted})
	}

	stored := make([]*models.Item, 0, len(batch.Qualifying))
	for _, v := range batch.Qualifying {
		stored = append(stored, &models.Item{
			ExternalID:        v.Item.ID,
			SourceHandle:      src.Handle,
			Content:           v.Item.Text,
			URL:               models.ItemURL(src.Handle, v.Item.ID),
			CreatedAtUpstream: v.Item.CreatedAt,
			Classification:    v.Classification,
			IngestedAt:        o.now(),
		})
	}
	counts, err := o.deps.Ingester.IngestAll(ctx, stored)
	res.Inserted += counts.Inserted
	res.Duplicates += counts.Duplicates
	return err
}

func (o *Orchestrator) failed(ctx context.Context, res models.SourceResult, started time.Time, err error) models.SourceResult {
	res.Status = models.SourceFailed
	res.Error = err.Error()
	res.Duration = time.Since(started)
	o.logger.WithError(err).WarnWithFields("source pass failed", map[string]interface{}{
		"source": res.Handle,
	})
	o.sink.Record(context.WithoutCancel(ctx), models.EventError, fmt.Sprintf("scan of @%s failed: %v", res.Handle, err), map[string]interface{}{
		"source":   res.Handle,
		"requests": res.RequestsUsed,
		"inserted": res.Inserted,
	})
	return res
}

func respondedUpstream(err error) bool {
	upstream, ok := errs.AsUpstream(err)
	return ok && upstream.Responded()
}
