package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"prompthunter/internal/pipeline"
	"prompthunter/pkg/config"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/metrics"
	"prompthunter/pkg/models"
	"prompthunter/pkg/scanner"
	"prompthunter/pkg/store"
)

// TestHelper wires a pipeline against mock upstreams and a SQLite file
type TestHelper struct {
	t          *testing.T
	Twitter    *MockTwitterServer
	Classifier *MockClassifierServer
	Config     *config.Config
	Store      *store.Store
	Logger     *logger.TestLogger
	Metrics    *metrics.Metrics
	tempDir    string
	clock      time.Time
}

// NewTestHelper starts both mock servers and opens a fresh database
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()

	h := &TestHelper{
		t:          t,
		Twitter:    NewMockTwitterServer(),
		Classifier: NewMockClassifierServer(),
		Logger:     logger.NewTestLogger(),
		Metrics:    metrics.New(),
		tempDir:    t.TempDir(),
		clock:      time.Now(),
	}
	t.Cleanup(h.Twitter.Close)
	t.Cleanup(h.Classifier.Close)

	h.Config = h.CreateTestConfig()

	dbPath, err := h.Config.DatabaseFile()
	require.NoError(t, err)
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	h.Store = st

	return h
}

// CreateTestConfig points every upstream at the mock servers with no pacing
func (h *TestHelper) CreateTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Twitter.BearerToken = "integration-token"
	cfg.Twitter.BaseURL = h.Twitter.URL()
	cfg.Twitter.Timeout = 5 * time.Second
	cfg.Scan.RequestDelay = 0
	cfg.Scan.RetryDelay = time.Millisecond
	cfg.Classifier.Provider = "http"
	cfg.Classifier.Endpoint = h.Classifier.Endpoint()
	cfg.Classifier.APIKey = "classifier-token"
	cfg.Classifier.Timeout = 5 * time.Second
	cfg.Classifier.RequestDelay = 0
	cfg.Storage.DatabasePath = filepath.Join(h.tempDir, "prompthunter.db")
	cfg.Storage.DataDir = filepath.Join(h.tempDir, "data")
	cfg.Metrics.TextfilePath = filepath.Join(h.tempDir, "metrics", "prompthunter.prom")
	return cfg
}

// Advance moves the scan clock forward
func (h *TestHelper) Advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

// AddSource registers a tracked handle
func (h *TestHelper) AddSource(handle string, priority models.Priority) *models.Source {
	h.t.Helper()
	src, err := h.Store.AddSource(context.Background(), handle, "", priority)
	require.NoError(h.t, err)
	return src
}

// Source reloads a source from the store
func (h *TestHelper) Source(handle string) *models.Source {
	h.t.Helper()
	src, err := h.Store.GetSource(context.Background(), handle)
	require.NoError(h.t, err)
	return src
}

// Build wires a pipeline that records events to the store and to rec
func (h *TestHelper) Build(rec *feed.Recorder) *pipeline.Pipeline {
	h.t.Helper()

	sink := feed.Multi{feed.NewStoreSink(h.Store, h.Config.Storage.FeedLimit, h.Logger)}
	if rec != nil {
		sink = append(sink, rec)
	}
	clock := h.clock
	p, err := pipeline.Build(h.Config, h.Store, sink, h.Metrics, h.Logger, pipeline.Options{
		Scanner: []scanner.Option{scanner.WithClock(func() time.Time { return clock })},
	})
	require.NoError(h.t, err)
	return p
}

// Run builds a pipeline at the current clock and runs it once
func (h *TestHelper) Run(rec *feed.Recorder) *models.RunSummary {
	h.t.Helper()
	summary, err := h.Build(rec).Orchestrator.Run(context.Background())
	require.NoError(h.t, err)
	require.NotNil(h.t, summary)
	return summary
}

// Result finds the result for handle in summary
func Result(t *testing.T, summary *models.RunSummary, handle string) models.SourceResult {
	t.Helper()
	for _, r := range summary.Sources {
		if r.Handle == handle {
			return r
		}
	}
	t.Fatalf("no result for @%s in run %s", handle, summary.RunID)
	return models.SourceResult{}
}
