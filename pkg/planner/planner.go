// Package planner decides, per source, whether to scan and with what budget.
// It never talks to the network.
package planner

import (
	"fmt"
	"time"

	"prompthunter/pkg/models"
)

// Mode distinguishes a backfill from an incremental pass
type Mode string

const (
	// ModeFull backfills a never-scanned source
	ModeFull Mode = "full"
	// ModeIncremental fetches only items newer than the last one seen
	ModeIncremental Mode = "incremental"
)

// Kind tags a Decision
type Kind string

const (
	KindScan Kind = "scan"
	KindSkip Kind = "skip"
)

// SkipReason says why a source is not scanned
type SkipReason string

const (
	SkipTooRecent SkipReason = "too_recent"
	SkipQuota     SkipReason = "quota"
	SkipInactive  SkipReason = "inactive"
)

// Cursor is the budget handed to the paginator
type Cursor struct {
	Mode        Mode
	MaxRequests int
	Target      int
	SinceID     string
}

// Skip explains a skip decision
type Skip struct {
	Reason   SkipReason
	Elapsed  time.Duration
	Cooldown time.Duration
}

// Decision is either a scan with a Cursor or a skip
type Decision struct {
	Kind   Kind
	Cursor Cursor
	Skip   Skip
}

// IsSkip reports whether no request should be made
func (d Decision) IsSkip() bool {
	return d.Kind == KindSkip
}

// String renders the decision for logs
func (d Decision) String() string {
	if d.IsSkip() {
		if d.Skip.Reason == SkipTooRecent {
			return fmt.Sprintf("skip (%s, %s of %s elapsed)", d.Skip.Reason, d.Skip.Elapsed.Round(time.Minute), d.Skip.Cooldown)
		}
		return fmt.Sprintf("skip (%s)", d.Skip.Reason)
	}
	return fmt.Sprintf("%s scan (up to %d requests, target %d)", d.Cursor.Mode, d.Cursor.MaxRequests, d.Cursor.Target)
}

// Budget holds the request cap and item target for one mode
type Budget struct {
	MaxRequests int
	Target      int
}

// Config tunes the planner
type Config struct {
	FirstScan Budget
	Update    Budget
	// Cooldown applies to priorities missing from PriorityCooldowns
	Cooldown          time.Duration
	PriorityCooldowns map[models.Priority]time.Duration
}

// DefaultConfig mirrors the documented defaults
func DefaultConfig() Config {
	return Config{
		FirstScan: Budget{MaxRequests: 10, Target: 1000},
		Update:    Budget{MaxRequests: 1, Target: 200},
		Cooldown:  23 * time.Hour,
		PriorityCooldowns: map[models.Priority]time.Duration{
			models.PriorityHigh:   23 * time.Hour,
			models.PriorityNormal: 47 * time.Hour,
			models.PriorityLow:    71 * time.Hour,
		},
	}
}

// Planner turns source state into decisions
type Planner struct {
	cfg Config
}

// New creates a Planner
func New(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// CooldownFor returns the minimum gap between scans for a priority
func (p *Planner) CooldownFor(priority models.Priority) time.Duration {
	if d, ok := p.cfg.PriorityCooldowns[priority]; ok {
		return d
	}
	return p.cfg.Cooldown
}

// Plan decides what to do with source at now, given the remaining monthly quota.
// The request cap is clamped to remainingQuota.
func (p *Planner) Plan(source *models.Source, now time.Time, remainingQuota int) Decision {
	if !source.IsActive {
		return Decision{Kind: KindSkip, Skip: Skip{Reason: SkipInactive}}
	}

	var cursor Cursor
	if source.NeverScanned() {
		cursor = Cursor{
			Mode:        ModeFull,
			MaxRequests: p.cfg.FirstScan.MaxRequests,
			Target:      p.cfg.FirstScan.Target,
		}
	} else {
		cooldown := p.CooldownFor(source.Priority)
		elapsed := now.Sub(*source.LastScanAt)
		if elapsed < cooldown {
			return Decision{Kind: KindSkip, Skip: Skip{Reason: SkipTooRecent, Elapsed: elapsed, Cooldown: cooldown}}
		}
		cursor = Cursor{
			Mode:        ModeIncremental,
			MaxRequests: p.cfg.Update.MaxRequests,
			Target:      p.cfg.Update.Target,
			SinceID:     source.LastSeenItemID,
		}
	}

	if remainingQuota < 1 {
		return Decision{Kind: KindSkip, Skip: Skip{Reason: SkipQuota}}
	}
	cursor.MaxRequests = min(cursor.MaxRequests, remainingQuota)

	return Decision{Kind: KindScan, Cursor: cursor}
}
