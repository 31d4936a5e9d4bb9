package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prompthunter/pkg/classifier"
	"prompthunter/pkg/config"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/metrics"
	"prompthunter/pkg/models"
	"prompthunter/pkg/planner"
	"prompthunter/pkg/quota"
	"prompthunter/pkg/store"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Twitter.BearerToken = "test-token"
	cfg.Twitter.BaseURL = baseURL
	cfg.Twitter.Timeout = 5 * time.Second
	cfg.Scan.RequestDelay = 0
	cfg.Scan.RetryDelay = time.Millisecond
	cfg.Classifier.RequestDelay = 0
	return cfg
}

// fakeTimeline serves one user with a single page of posts
func fakeTimeline(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/2/users/by/username/alpha":
			fmt.Fprint(w, `{"data": {"id": "42", "name": "Alpha", "username": "alpha"}}`)
		case "/2/users/42/tweets":
			fmt.Fprint(w, `{
				"data": [
					{"id": "1003", "text": "prompt: a lighthouse at dusk, oil painting", "author_id": "42", "created_at": "2026-10-18T10:00:00.000Z"},
					{"id": "1002", "text": "just had the best coffee of my life honestly", "author_id": "42", "created_at": "2026-10-17T10:00:00.000Z"},
					{"id": "1001", "text": "prompt: you are a senior reviewer, list the risks", "author_id": "42", "created_at": "2026-10-16T10:00:00.000Z"}
				],
				"meta": {"result_count": 3, "newest_id": "1003", "oldest_id": "1001"}
			}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"title": "Not Found"}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func keywordService(calls *atomic.Int32) classifier.Service {
	return classifier.ServiceFunc(func(_ context.Context, text string) (models.Classification, error) {
		calls.Add(1)
		if strings.HasPrefix(text, "prompt:") {
			return models.Classification{IsMatch: true, Category: models.CategoryMidjourney, Confidence: 0.9, Reasoning: "explicit prompt"}, nil
		}
		return models.Classification{IsMatch: false, Category: models.CategoryOther, Confidence: 0.2, Reasoning: "chatter"}, nil
	})
}

func TestBuildRunsFirstScanThenCoolsDown(t *testing.T) {
	var requests, calls atomic.Int32
	server := fakeTimeline(t, &requests)
	cfg := testConfig(server.URL)

	ctx := context.Background()
	st := store.OpenMemory(t)
	_, err := st.AddSource(ctx, "alpha", "", models.PriorityHigh)
	require.NoError(t, err)

	rec := &feed.Recorder{}
	tl := logger.NewTestLogger()
	p, err := Build(cfg, st, rec, metrics.New(), tl, Options{Service: keywordService(&calls)})
	require.NoError(t, err)
	assert.True(t, tl.HasMessage("component started"))

	summary, err := p.Orchestrator.Run(ctx)
	require.NoError(t, err)

	require.Len(t, summary.Sources, 1)
	res := summary.Sources[0]
	assert.Equal(t, models.SourceScanned, res.Status)
	assert.Equal(t, string(planner.ModeFull), res.Mode)
	assert.Equal(t, 2, res.RequestsUsed, "user lookup plus one page")
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, "1003", res.LastSeenItemID)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, int32(3), calls.Load())

	w, err := p.SourceQuota.Window(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Used)

	w, err = p.ClassificationQuota.Window(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Used)

	src, err := st.GetSource(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "42", src.UserID)
	assert.Equal(t, "1003", src.LastSeenItemID)
	require.NotNil(t, src.LastScanAt)

	items, err := st.RecentItems(ctx, 10, "")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// a second run inside the cooldown makes no requests
	summary, err = p.Orchestrator.Run(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Sources, 1)
	assert.Equal(t, models.SourceSkipped, summary.Sources[0].Status)
	assert.Equal(t, string(planner.SkipTooRecent), summary.Sources[0].SkipReason)
	assert.Equal(t, int32(2), requests.Load())

	assert.Contains(t, rec.Kinds(), models.EventAPI)
	assert.Contains(t, rec.Kinds(), models.EventSuccess)
}

func TestBuildRespectsStartGuard(t *testing.T) {
	var requests, calls atomic.Int32
	server := fakeTimeline(t, &requests)
	cfg := testConfig(server.URL)

	ctx := context.Background()
	st := store.OpenMemory(t)
	_, err := st.AddSource(ctx, "alpha", "", models.PriorityHigh)
	require.NoError(t, err)

	month := quota.MonthKey(time.Now())
	_, err = st.IncrementMonthlyUsage(ctx, quota.StoreKey(quota.DimensionSourceAPI, month), 91)
	require.NoError(t, err)

	p, err := Build(cfg, st, nil, metrics.New(), nil, Options{Service: keywordService(&calls)})
	require.NoError(t, err)

	summary, err := p.Orchestrator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StoppedQuotaLow, summary.StoppedReason)
	assert.Empty(t, summary.Sources)
	assert.Zero(t, requests.Load())
}

func TestBuildUnknownProvider(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Classifier.Provider = "oracle"

	_, err := Build(cfg, store.OpenMemory(t), nil, metrics.New(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestNewService(t *testing.T) {
	cfg := config.DefaultConfig().Classifier

	cfg.Provider = "anthropic"
	svc, err := NewService(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &classifier.AnthropicService{}, svc)

	cfg.Provider = "http"
	cfg.Endpoint = "http://localhost:9000/classify"
	svc, err = NewService(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &classifier.HTTPService{}, svc)
}

func TestPlannerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scan.PriorityCooldowns["weekly"] = 7 * 24 * time.Hour

	pc := PlannerConfig(cfg)
	assert.Equal(t, planner.Budget{MaxRequests: 10, Target: 1000}, pc.FirstScan)
	assert.Equal(t, planner.Budget{MaxRequests: 1, Target: 200}, pc.Update)

	p := planner.New(pc)
	assert.Equal(t, 23*time.Hour, p.CooldownFor(models.PriorityHigh))
	assert.Equal(t, 47*time.Hour, p.CooldownFor(models.PriorityNormal))
	assert.Equal(t, 71*time.Hour, p.CooldownFor(models.PriorityLow))
	assert.Equal(t, 7*24*time.Hour, p.CooldownFor(models.Priority("weekly")))
	assert.Equal(t, 23*time.Hour, p.CooldownFor(models.Priority("unknown")))
}

func TestScannerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scan.SourceDelay = 3 * time.Second

	sc := ScannerConfig(cfg)
	assert.Equal(t, 5, sc.MinRemainingToStart)
	assert.Equal(t, 2, sc.MinRemainingPerSource)
	assert.Equal(t, 3*time.Second, sc.SourceDelay)
	assert.True(t, sc.ExcludeReplies)
	assert.True(t, sc.ExcludeRetweets)
}
