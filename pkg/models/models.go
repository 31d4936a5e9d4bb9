package models

import (
	"fmt"
	"time"
)

// Priority orders sources within a run and selects their cooldown
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// ParsePriority validates a priority name, defaulting empty input to normal
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case "":
		return PriorityNormal, nil
	case PriorityHigh, PriorityNormal, PriorityLow:
		return Priority(s), nil
	default:
		return "", fmt.Errorf("unknown priority %q (want high, normal or low)", s)
	}
}

// Source is a tracked upstream account
type Source struct {
	ID             int64      `json:"id"`
	Handle         string     `json:"handle"`
	UserID         string     `json:"user_id,omitempty"`
	DisplayName    string     `json:"display_name,omitempty"`
	IsActive       bool       `json:"is_active"`
	Priority       Priority   `json:"priority"`
	LastScanAt     *time.Time `json:"last_scan_at,omitempty"`
	LastSeenItemID string     `json:"last_seen_item_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NeverScanned reports whether the source has no completed scan
func (s *Source) NeverScanned() bool {
	return s.LastScanAt == nil
}

// RawItem is one post as returned by the source API, newest first within a page
type RawItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Category names the generator a detected prompt targets
type Category string

const (
	CategoryChatGPT         Category = "ChatGPT"
	CategoryClaude          Category = "Claude"
	CategoryMidjourney      Category = "Midjourney"
	CategoryDALLE           Category = "DALL-E"
	CategoryStableDiffusion Category = "Stable Diffusion"
	CategoryOther           Category = "Other"
)

// Categories lists the known categories in display order
var Categories = []Category{
	CategoryChatGPT,
	CategoryClaude,
	CategoryMidjourney,
	CategoryDALLE,
	CategoryStableDiffusion,
	CategoryOther,
}

// NormalizeCategory maps free-form service output onto a known category
func NormalizeCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// Classification is the verdict for one item
type Classification struct {
	IsMatch    bool     `json:"isMatch"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Item is a persisted qualifying post. Items are immutable once stored.
type Item struct {
	ExternalID        string         `json:"external_id"`
	SourceHandle      string         `json:"source_handle"`
	Content           string         `json:"content"`
	URL               string         `json:"url"`
	CreatedAtUpstream time.Time      `json:"created_at_upstream"`
	Classification    Classification `json:"classification"`
	IngestedAt        time.Time      `json:"ingested_at"`
}

// ItemURL builds the public permalink of a post
func ItemURL(handle, id string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", handle, id)
}

// EventKind groups operator-visible feed entries
type EventKind string

const (
	EventInfo    EventKind = "info"
	EventSuccess EventKind = "success"
	EventWarning EventKind = "warning"
	EventError   EventKind = "error"
	EventScan    EventKind = "scan"
	EventAPI     EventKind = "api"
)

// Event is one entry of the operator log feed
type Event struct {
	ID        string                 `json:"id"`
	Kind      EventKind              `json:"kind"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
