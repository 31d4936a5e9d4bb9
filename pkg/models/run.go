package models

import "time"

// SourceStatus is the outcome of one source pass
type SourceStatus string

const (
	SourceScanned SourceStatus = "scanned"
	SourceSkipped SourceStatus = "skipped"
	SourceFailed  SourceStatus = "failed"
)

// SourceResult reports what a run did with one source
type SourceResult struct {
	Handle              string        `json:"handle"`
	Status              SourceStatus  `json:"status"`
	Mode                string        `json:"mode,omitempty"`
	SkipReason          string        `json:"skip_reason,omitempty"`
	StopReason          string        `json:"stop_reason,omitempty"`
	RequestsUsed        int           `json:"requests_used"`
	ItemsFetched        int           `json:"items_fetched"`
	Filtered            int           `json:"filtered"`
	Analyzed            int           `json:"analyzed"`
	Qualifying          int           `json:"qualifying"`
	Inserted            int           `json:"inserted"`
	Duplicates          int           `json:"duplicates"`
	ClassificationCalls int           `json:"classification_calls"`
	LastSeenItemID      string        `json:"last_seen_item_id,omitempty"`
	Error               string        `json:"error,omitempty"`
	Duration            time.Duration `json:"duration"`
}

// QuotaStatus is a point-in-time view of one quota dimension
type QuotaStatus struct {
	Dimension string `json:"dimension"`
	Month     string `json:"month"`
	Used      int    `json:"used"`
	Ceiling   int    `json:"ceiling"`
}

// Remaining never goes below zero
func (q QuotaStatus) Remaining() int {
	return max(q.Ceiling-q.Used, 0)
}

// Stop reasons for a run that ended before visiting every source
const (
	StoppedQuotaLow  = "quota_low"
	StoppedCancelled = "cancelled"
)

// RunSummary aggregates one scan run
type RunSummary struct {
	RunID               string         `json:"run_id"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	Sources             []SourceResult `json:"sources"`
	TotalSources        int            `json:"total_sources"`
	Scanned             int            `json:"scanned"`
	Skipped             int            `json:"skipped"`
	Failed              int            `json:"failed"`
	ItemsIngested       int            `json:"items_ingested"`
	Duplicates          int            `json:"duplicates"`
	RequestsUsed        int            `json:"requests_used"`
	ClassificationCalls int            `json:"classification_calls"`
	StoppedReason       string         `json:"stopped_reason,omitempty"`
	Quotas              []QuotaStatus  `json:"quotas,omitempty"`
}

// Duration is the run's wall time
func (r *RunSummary) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Add folds a source result into the totals
func (r *RunSummary) Add(res SourceResult) {
	r.Sources = append(r.Sources, res)
	switch res.Status {
	case SourceScanned:
		r.Scanned++
	case SourceSkipped:
		r.Skipped++
	case SourceFailed:
		r.Failed++
	}
	r.ItemsIngested += res.Inserted
	r.Duplicates += res.Duplicates
	r.RequestsUsed += res.RequestsUsed
	r.ClassificationCalls += res.ClassificationCalls
}
