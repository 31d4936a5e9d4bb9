// Package pipeline assembles a scan orchestrator from configuration
package pipeline

import (
	"fmt"
	"time"

	"prompthunter/pkg/classifier"
	"prompthunter/pkg/config"
	"prompthunter/pkg/dedup"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/metrics"
	"prompthunter/pkg/models"
	"prompthunter/pkg/paginator"
	"prompthunter/pkg/planner"
	"prompthunter/pkg/quota"
	"prompthunter/pkg/ratelimit"
	"prompthunter/pkg/retry"
	"prompthunter/pkg/scanner"
	"prompthunter/pkg/twitter"
)

// Store is everything a scan persists to
type Store interface {
	scanner.SourceStore
	dedup.ItemStore
	quota.UsageStore
}

// Pipeline is a wired orchestrator plus the budgets it spends
type Pipeline struct {
	Orchestrator        *scanner.Orchestrator
	SourceQuota         *quota.Tracker
	ClassificationQuota *quota.Tracker
	Client              *twitter.Client
}

// Options override collaborators, mostly in tests
type Options struct {
	Service classifier.Service
	Twitter []twitter.Option
	Scanner []scanner.Option
}

// Build wires the full scan pipeline from cfg
func Build(cfg *config.Config, st Store, sink feed.Sink, m *metrics.Metrics, log logger.Logger, opts Options) (*Pipeline, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if sink == nil {
		sink = feed.Discard{}
	}

	service := opts.Service
	if service == nil {
		var err error
		service, err = NewService(cfg.Classifier, log)
		if err != nil {
			return nil, err
		}
	}

	sourceQuota := NewSourceQuota(cfg, st, sink, log)
	classQuota := NewClassificationQuota(cfg, st, sink, log)

	client := NewClient(cfg, log, opts.Twitter...)

	pages := paginator.New(client, sourceQuota,
		paginator.WithPacer(ratelimit.NewPacer(cfg.Scan.RequestDelay)),
		paginator.WithRetry(cfg.Scan.RetryAttempts, retry.NewErrorTypeBackoff(cfg.Scan.RetryDelay)),
		paginator.WithPageCap(cfg.Scan.PageSize),
		paginator.WithLogger(log),
	)

	items := classifier.New(service,
		classifier.WithBudget(classQuota),
		classifier.WithMinLength(cfg.Classifier.MinTextLength),
		classifier.WithThreshold(cfg.Classifier.Threshold),
		classifier.WithConcurrency(cfg.Classifier.Concurrency),
		classifier.WithPacer(ratelimit.NewPacer(cfg.Classifier.RequestDelay)),
		classifier.WithLogger(log),
	)

	scanOpts := append([]scanner.Option{
		scanner.WithLogger(log),
		scanner.WithSink(sink),
		scanner.WithMetrics(m),
		scanner.WithClassificationQuota(classQuota),
	}, opts.Scanner...)

	orch := scanner.New(scanner.Deps{
		Sources:    st,
		Users:      client,
		Planner:    planner.New(PlannerConfig(cfg)),
		Collector:  pages,
		Classifier: items,
		Ingester:   dedup.New(st, log),
		Budget:     sourceQuota,
	}, ScannerConfig(cfg), scanOpts...)

	logger.LogComponentStart(log, "pipeline", map[string]interface{}{
		"monthly_limit":       cfg.Quota.MonthlyLimit,
		"classifier_limit":    cfg.Classifier.MonthlyLimit,
		"classifier_provider": cfg.Classifier.Provider,
		"page_size":           cfg.Scan.PageSize,
	})

	return &Pipeline{
		Orchestrator:        orch,
		SourceQuota:         sourceQuota,
		ClassificationQuota: classQuota,
		Client:              client,
	}, nil
}

// NewClient creates the source API client
func NewClient(cfg *config.Config, log logger.Logger, opts ...twitter.Option) *twitter.Client {
	base := []twitter.Option{
		twitter.WithBaseURL(cfg.Twitter.BaseURL),
		twitter.WithUserAgent(cfg.Twitter.UserAgent),
	}
	return twitter.NewClient(cfg.Twitter.BearerToken, cfg.Twitter.Timeout, log, append(base, opts...)...)
}

// NewService picks the classification backend
func NewService(cfg config.ClassifierConfig, log logger.Logger) (classifier.Service, error) {
	switch cfg.Provider {
	case "anthropic":
		return classifier.NewAnthropicService(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature, log), nil
	case "http":
		return classifier.NewHTTPService(cfg.Endpoint, cfg.APIKey, cfg.Timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// NewSourceQuota is the monthly source API budget
func NewSourceQuota(cfg *config.Config, st quota.UsageStore, sink feed.Sink, log logger.Logger) *quota.Tracker {
	return quota.NewTracker(quota.DimensionSourceAPI, cfg.Quota.MonthlyLimit, st,
		quota.WithLogger(log),
		quota.WithAlerts(sink, cfg.Quota.AlertThresholds...),
	)
}

// NewClassificationQuota is the monthly classification budget
func NewClassificationQuota(cfg *config.Config, st quota.UsageStore, sink feed.Sink, log logger.Logger) *quota.Tracker {
	return quota.NewTracker(quota.DimensionClassification, cfg.Classifier.MonthlyLimit, st,
		quota.WithLogger(log),
		quota.WithAlerts(sink, cfg.Quota.AlertThresholds...),
	)
}

// PlannerConfig converts the scan settings
func PlannerConfig(cfg *config.Config) planner.Config {
	cooldowns := make(map[models.Priority]time.Duration, len(cfg.Scan.PriorityCooldowns))
	for name, d := range cfg.Scan.PriorityCooldowns {
		cooldowns[models.Priority(name)] = d
	}
	return planner.Config{
		FirstScan:         planner.Budget{MaxRequests: cfg.Scan.FirstScanMaxRequests, Target: cfg.Scan.FirstScanTarget},
		Update:            planner.Budget{MaxRequests: cfg.Scan.UpdateMaxRequests, Target: cfg.Scan.UpdateTarget},
		Cooldown:          cfg.Scan.Cooldown,
		PriorityCooldowns: cooldowns,
	}
}

// ScannerConfig converts the run guards
func ScannerConfig(cfg *config.Config) scanner.Config {
	return scanner.Config{
		MinRemainingToStart:   cfg.Quota.MinRemainingToStart,
		MinRemainingPerSource: cfg.Quota.MinRemainingPerSource,
		SourceDelay:           cfg.Scan.SourceDelay,
		ExcludeReplies:        cfg.Twitter.ExcludeReplies,
		ExcludeRetweets:       cfg.Twitter.ExcludeRetweets,
	}
}
