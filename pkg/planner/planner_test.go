package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"prompthunter/pkg/models"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func scannedAgo(d time.Duration, priority models.Priority) *models.Source {
	last := now.Add(-d)
	return &models.Source{
		Handle:         "alpha",
		IsActive:       true,
		Priority:       priority,
		LastScanAt:     &last,
		LastSeenItemID: "1900",
	}
}

func TestPlanFirstScan(t *testing.T) {
	p := New(DefaultConfig())
	d := p.Plan(&models.Source{Handle: "alpha", IsActive: true, Priority: models.PriorityNormal}, now, 95)

	assert.Equal(t, KindScan, d.Kind)
	assert.Equal(t, ModeFull, d.Cursor.Mode)
	assert.Equal(t, 10, d.Cursor.MaxRequests)
	assert.Equal(t, 1000, d.Cursor.Target)
	assert.Empty(t, d.Cursor.SinceID)
}

func TestPlanWithinCooldownSkips(t *testing.T) {
	p := New(DefaultConfig())
	d := p.Plan(scannedAgo(2*time.Hour, models.PriorityHigh), now, 95)

	assert.True(t, d.IsSkip())
	assert.Equal(t, SkipTooRecent, d.Skip.Reason)
	assert.Equal(t, 2*time.Hour, d.Skip.Elapsed)
	assert.Equal(t, 23*time.Hour, d.Skip.Cooldown)
	assert.Contains(t, d.String(), "too_recent")
}

func TestPlanUpdateAfterCooldown(t *testing.T) {
	p := New(DefaultConfig())
	d := p.Plan(scannedAgo(24*time.Hour, models.PriorityHigh), now, 95)

	assert.Equal(t, KindScan, d.Kind)
	assert.Equal(t, ModeIncremental, d.Cursor.Mode)
	assert.Equal(t, 1, d.Cursor.MaxRequests)
	assert.Equal(t, 200, d.Cursor.Target)
	assert.Equal(t, "1900", d.Cursor.SinceID)
}

func TestPlanPriorityCooldowns(t *testing.T) {
	p := New(DefaultConfig())

	tests := []struct {
		priority models.Priority
		elapsed  time.Duration
		skip     bool
	}{
		{models.PriorityHigh, 23 * time.Hour, false},
		{models.PriorityNormal, 30 * time.Hour, true},
		{models.PriorityNormal, 47 * time.Hour, false},
		{models.PriorityLow, 70 * time.Hour, true},
		{models.PriorityLow, 72 * time.Hour, false},
		{models.Priority("custom"), 23 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority)+"_"+tt.elapsed.String(), func(t *testing.T) {
			d := p.Plan(scannedAgo(tt.elapsed, tt.priority), now, 95)
			assert.Equal(t, tt.skip, d.IsSkip())
		})
	}
}

func TestPlanClampsToRemainingQuota(t *testing.T) {
	p := New(DefaultConfig())
	d := p.Plan(&models.Source{Handle: "alpha", IsActive: true}, now, 3)

	assert.Equal(t, KindScan, d.Kind)
	assert.Equal(t, 3, d.Cursor.MaxRequests)
}

func TestPlanNoQuotaSkips(t *testing.T) {
	p := New(DefaultConfig())

	d := p.Plan(&models.Source{Handle: "alpha", IsActive: true}, now, 0)
	assert.True(t, d.IsSkip())
	assert.Equal(t, SkipQuota, d.Skip.Reason)

	// cooldown is reported before quota
	d = p.Plan(scannedAgo(time.Hour, models.PriorityHigh), now, 0)
	assert.Equal(t, SkipTooRecent, d.Skip.Reason)
}

func TestPlanInactiveSource(t *testing.T) {
	p := New(DefaultConfig())
	d := p.Plan(&models.Source{Handle: "alpha", IsActive: false}, now, 95)

	assert.True(t, d.IsSkip())
	assert.Equal(t, SkipInactive, d.Skip.Reason)
}

func TestDecisionString(t *testing.T) {
	d := Decision{Kind: KindScan, Cursor: Cursor{Mode: ModeFull, MaxRequests: 10, Target: 1000}}
	assert.Equal(t, "full scan (up to 10 requests, target 1000)", d.String())
}
