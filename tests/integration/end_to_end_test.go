package integration

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/models"
	"prompthunter/pkg/planner"
	"prompthunter/pkg/report"
)

func TestFirstScanThenIncrementalUpdates(t *testing.T) {
	h := NewTestHelper(t)
	h.Twitter.AddUser("alpha", "42", 1000, 250)
	h.Twitter.AddUser("beta", "77", 5000, 30)
	h.AddSource("alpha", models.PriorityHigh)
	h.AddSource("beta", models.PriorityNormal)

	// first run backfills both sources
	summary := h.Run(nil)
	assert.Equal(t, 2, summary.Scanned)
	assert.Empty(t, summary.StoppedReason)

	alpha := Result(t, summary, "alpha")
	assert.Equal(t, string(planner.ModeFull), alpha.Mode)
	assert.Equal(t, 4, alpha.RequestsUsed, "user lookup plus three pages")
	assert.Equal(t, 250, alpha.ItemsFetched)
	assert.Equal(t, 125, alpha.Inserted)
	assert.Equal(t, "1249", alpha.LastSeenItemID)

	beta := Result(t, summary, "beta")
	assert.Equal(t, 2, beta.RequestsUsed)
	assert.Equal(t, 15, beta.Inserted)
	assert.Equal(t, "5029", beta.LastSeenItemID)

	assert.Equal(t, 6, summary.RequestsUsed)
	assert.Equal(t, 6, h.Twitter.RequestCount())
	assert.Equal(t, 280, h.Classifier.Calls())

	count, err := h.Store.CountItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 140, count)

	// a day later only the high priority source is due
	h.Advance(24 * time.Hour)
	h.Twitter.Publish("42", 1250, true, false, true)

	summary = h.Run(nil)
	alpha = Result(t, summary, "alpha")
	assert.Equal(t, models.SourceScanned, alpha.Status)
	assert.Equal(t, string(planner.ModeIncremental), alpha.Mode)
	assert.Equal(t, 1, alpha.RequestsUsed)
	assert.Equal(t, 3, alpha.ItemsFetched)
	assert.Equal(t, 2, alpha.Inserted)
	assert.Equal(t, "1252", alpha.LastSeenItemID)

	beta = Result(t, summary, "beta")
	assert.Equal(t, models.SourceSkipped, beta.Status)
	assert.Equal(t, string(planner.SkipTooRecent), beta.SkipReason)

	queries := h.Twitter.Queries()
	last := queries[len(queries)-1]
	assert.Equal(t, "42", last.UserID)
	assert.Equal(t, "1249", last.SinceID)
	assert.Empty(t, last.PaginationToken)

	// two days in, both are due and nothing new has been posted
	h.Advance(24 * time.Hour)
	summary = h.Run(nil)
	assert.Equal(t, 2, summary.Scanned)
	assert.Zero(t, summary.ItemsIngested)
	assert.Equal(t, 2, summary.RequestsUsed)
	assert.Equal(t, "1252", h.Source("alpha").LastSeenItemID, "an empty pass keeps the cursor")
	assert.Equal(t, "5029", h.Source("beta").LastSeenItemID)

	p := h.Build(nil)
	w, err := p.SourceQuota.Window(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, w.Used)
}

func TestFailedPassKeepsItemsButNotCursor(t *testing.T) {
	h := NewTestHelper(t)
	h.Twitter.AddUser("gamma", "55", 2000, 150)
	h.Twitter.FailPage("55", 2, http.StatusUnauthorized)
	h.AddSource("gamma", models.PriorityHigh)

	summary := h.Run(nil)
	gamma := Result(t, summary, "gamma")
	assert.Equal(t, models.SourceFailed, gamma.Status)
	assert.Equal(t, 3, gamma.RequestsUsed, "the rejected page is still charged")
	assert.Equal(t, 50, gamma.Inserted)
	assert.Contains(t, gamma.Error, "401")
	assert.Equal(t, 1, summary.Failed)

	src := h.Source("gamma")
	assert.True(t, src.NeverScanned())
	assert.Empty(t, src.LastSeenItemID)
	assert.Equal(t, "55", src.UserID, "the resolved user id is kept")

	// the retry backfills again; already stored items are duplicates
	summary = h.Run(nil)
	gamma = Result(t, summary, "gamma")
	assert.Equal(t, models.SourceScanned, gamma.Status)
	assert.Equal(t, string(planner.ModeFull), gamma.Mode)
	assert.Equal(t, 2, gamma.RequestsUsed)
	assert.Equal(t, 25, gamma.Inserted)
	assert.Equal(t, 50, gamma.Duplicates)
	assert.Equal(t, "2149", h.Source("gamma").LastSeenItemID)

	count, err := h.Store.CountItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75, count)
}

func TestUnknownHandleFailsOnlyThatSource(t *testing.T) {
	h := NewTestHelper(t)
	h.Twitter.AddUser("alpha", "42", 1000, 10)
	h.AddSource("ghost", models.PriorityHigh)
	h.AddSource("alpha", models.PriorityNormal)

	summary := h.Run(nil)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Scanned)

	ghost := Result(t, summary, "ghost")
	assert.Equal(t, models.SourceFailed, ghost.Status)
	assert.Equal(t, 1, ghost.RequestsUsed, "a failed lookup that got a response is charged")
	assert.Contains(t, ghost.Error, "Could not find user")

	assert.Equal(t, 5, Result(t, summary, "alpha").Inserted)
}

func TestClassifierOutageDegradesItems(t *testing.T) {
	h := NewTestHelper(t)
	h.Twitter.AddUser("alpha", "42", 1000, 30)
	h.AddSource("alpha", models.PriorityHigh)
	h.Classifier.FailAll(true)

	summary := h.Run(nil)
	alpha := Result(t, summary, "alpha")
	assert.Equal(t, models.SourceScanned, alpha.Status)
	assert.Equal(t, 30, alpha.Analyzed)
	assert.Zero(t, alpha.Qualifying)
	assert.Zero(t, alpha.Inserted)
	assert.Equal(t, "1029", h.Source("alpha").LastSeenItemID)
	assert.True(t, h.Logger.HasMessage("classification failed, treating item as non-match"))
}

func TestRunArtifacts(t *testing.T) {
	h := NewTestHelper(t)
	h.Twitter.AddUser("alpha", "42", 1000, 20)
	h.AddSource("alpha", models.PriorityHigh)

	rec := &feed.Recorder{}
	summary := h.Run(rec)
	require.Equal(t, 10, summary.ItemsIngested)

	dataDir, err := h.Config.DataDirectory()
	require.NoError(t, err)
	reports, err := report.NewManager(dataDir, h.Logger)
	require.NoError(t, err)
	require.NoError(t, reports.Save(summary))

	loaded, err := reports.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, summary.RunID, loaded.RunID)
	assert.Equal(t, 10, loaded.ItemsIngested)
	require.Len(t, loaded.Quotas, 2)

	require.NoError(t, h.Metrics.WriteTextfile(h.Config.Metrics.TextfilePath))
	data, err := os.ReadFile(h.Config.Metrics.TextfilePath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "prompthunter_items_ingested_total 10")
	assert.Contains(t, text, "prompthunter_source_requests_total 2")
	assert.Contains(t, text, `prompthunter_source_passes_total{status="scanned"} 1`)
	assert.Contains(t, text, `prompthunter_quota_used{dimension="source_api"} 2`)

	events, err := h.Store.RecentEvents(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, len(rec.Events))
	assert.Equal(t, models.EventSuccess, events[0].Kind)
	assert.True(t, strings.HasPrefix(events[0].Message, "scan run finished"))

	items, err := h.Store.RecentItems(context.Background(), 5, models.CategoryMidjourney)
	require.NoError(t, err)
	require.Len(t, items, 5)
	for _, item := range items {
		assert.Equal(t, "alpha", item.SourceHandle)
		assert.True(t, item.Classification.IsMatch)
		assert.Contains(t, item.URL, "/alpha/status/"+item.ExternalID)
	}
}
