package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/models"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return OpenMemory(t, WithClock(func() time.Time { return fixedNow }))
}

func testItem(id string) *models.Item {
	return &models.Item{
		ExternalID:        id,
		SourceHandle:      "alpha",
		Content:           "midjourney prompt: lighthouse at dusk --v 6",
		URL:               models.ItemURL("alpha", id),
		CreatedAtUpstream: fixedNow.Add(-time.Hour),
		Classification: models.Classification{
			IsMatch:    true,
			Category:   models.CategoryMidjourney,
			Confidence: 0.92,
			Reasoning:  "image prompt",
		},
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prompthunter.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(context.Background(), testItem("1")))

	require.NoError(t, s.Close())
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testItem("1001")))

	got, err := s.FindByID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.SourceHandle)
	assert.Equal(t, models.CategoryMidjourney, got.Classification.Category)
	assert.True(t, got.Classification.IsMatch)
	assert.InDelta(t, 0.92, got.Classification.Confidence, 1e-9)
	assert.True(t, got.CreatedAtUpstream.Equal(fixedNow.Add(-time.Hour)))
	assert.True(t, got.IngestedAt.Equal(fixedNow))

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestInsertDuplicateKeepsOriginal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testItem("1001")))

	changed := testItem("1001")
	changed.Content = "something else"
	err := s.Insert(ctx, changed)
	assert.ErrorIs(t, err, errs.ErrDuplicate)

	got, err := s.FindByID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, testItem("1001").Content, got.Content)

	n, err := s.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecentItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		item := testItem(fmt.Sprintf("%d", 100+i))
		item.IngestedAt = fixedNow.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			item.Classification.Category = models.CategoryClaude
		}
		require.NoError(t, s.Insert(ctx, item))
	}

	items, err := s.RecentItems(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "104", items[0].ExternalID)
	assert.Equal(t, "103", items[1].ExternalID)

	items, err = s.RecentItems(ctx, 10, models.CategoryClaude)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src, err := s.AddSource(ctx, "alpha", "Alpha", models.PriorityNormal)
	require.NoError(t, err)
	assert.True(t, src.IsActive)
	assert.True(t, src.NeverScanned())
	assert.Equal(t, models.PriorityNormal, src.Priority)

	_, err = s.AddSource(ctx, "ALPHA", "", models.PriorityHigh)
	assert.ErrorIs(t, err, errs.ErrDuplicate)

	got, err := s.GetSource(ctx, "@Alpha")
	require.NoError(t, err)
	assert.Equal(t, src.ID, got.ID)

	_, err = s.GetSource(ctx, "ghost")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListActiveSourcesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd := func(handle string, p models.Priority) *models.Source {
		src, err := s.AddSource(ctx, handle, "", p)
		require.NoError(t, err)
		return src
	}

	lowNew := mustAdd("low_new", models.PriorityLow)
	normalOld := mustAdd("normal_old", models.PriorityNormal)
	normalRecent := mustAdd("normal_recent", models.PriorityNormal)
	normalNew := mustAdd("normal_new", models.PriorityNormal)
	high := mustAdd("high", models.PriorityHigh)
	inactive := mustAdd("inactive", models.PriorityHigh)

	require.NoError(t, s.UpdateSourceScan(ctx, normalOld.ID, fixedNow.Add(-72*time.Hour), "1"))
	require.NoError(t, s.UpdateSourceScan(ctx, normalRecent.ID, fixedNow.Add(-time.Hour), "2"))
	require.NoError(t, s.SetSourceActive(ctx, "inactive", false))

	sources, err := s.ListActiveSources(ctx)
	require.NoError(t, err)

	var handles []string
	for _, src := range sources {
		handles = append(handles, src.Handle)
	}
	assert.Equal(t, []string{high.Handle, normalNew.Handle, normalOld.Handle, normalRecent.Handle, lowNew.Handle}, handles)

	all, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, high.Handle, all[0].Handle)
	assert.Equal(t, inactive.Handle, all[1].Handle)
	assert.False(t, all[1].IsActive)

	assert.ErrorIs(t, s.SetSourceActive(ctx, "ghost", true), errs.ErrNotFound)
}

func TestUpdateSourceScanKeepsCursorWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src, err := s.AddSource(ctx, "alpha", "", models.PriorityNormal)
	require.NoError(t, err)

	require.NoError(t, s.SetSourceUserID(ctx, src.ID, "42", "Alpha Prompts"))
	require.NoError(t, s.UpdateSourceScan(ctx, src.ID, fixedNow, "1900"))
	require.NoError(t, s.UpdateSourceScan(ctx, src.ID, fixedNow.Add(time.Hour), ""))

	got, err := s.GetSource(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "42", got.UserID)
	assert.Equal(t, "Alpha Prompts", got.DisplayName)
	assert.Equal(t, "1900", got.LastSeenItemID)
	require.NotNil(t, got.LastScanAt)
	assert.True(t, got.LastScanAt.Equal(fixedNow.Add(time.Hour)))
}

func TestMonthlyUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	used, err := s.GetMonthlyUsage(ctx, "source_api:2026-10")
	require.NoError(t, err)
	assert.Zero(t, used)

	used, err = s.IncrementMonthlyUsage(ctx, "source_api:2026-10", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, used)

	used, err = s.IncrementMonthlyUsage(ctx, "source_api:2026-10", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, used)

	_, err = s.IncrementMonthlyUsage(ctx, "classification:2026-09", 7)
	require.NoError(t, err)

	rows, err := s.ListUsage(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "source_api", rows[0].Dimension)
	assert.Equal(t, "2026-10", rows[0].Month)
	assert.Equal(t, 3, rows[0].Used)
	assert.Equal(t, "classification", rows[1].Dimension)
}

func TestEventsAreTrimmed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.RecordEvent(ctx, models.Event{
			ID:      fmt.Sprintf("e%d", i),
			Kind:    models.EventInfo,
			Message: fmt.Sprintf("event %d", i),
			Details: map[string]interface{}{"n": i},
		}, 3)
		require.NoError(t, err)
	}

	events, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e4", events[0].ID)
	assert.Equal(t, "e2", events[2].ID)
	assert.Equal(t, float64(4), events[0].Details["n"])
	assert.True(t, events[0].CreatedAt.Equal(fixedNow))
}
