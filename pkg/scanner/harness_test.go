package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"prompthunter/pkg/classifier"
	"prompthunter/pkg/dedup"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
	"prompthunter/pkg/paginator"
	"prompthunter/pkg/planner"
	"prompthunter/pkg/quota"
	"prompthunter/pkg/store"
	"prompthunter/pkg/twitter"
)

var runStart = time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

// fakePage is one timeline response; a status other than 200 returns an error body
type fakePage struct {
	items  []models.RawItem
	next   string
	status int
}

// fakeAPI serves timelines keyed by user id and pagination token ("" for the first page)
type fakeAPI struct {
	mu        sync.Mutex
	timelines map[string]map[string]fakePage
	users     map[string]string
	requests  []*http.Request
	server    *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	api := &fakeAPI{
		timelines: make(map[string]map[string]fakePage),
		users:     make(map[string]string),
	}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) setPages(userID string, pages map[string]fakePage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timelines[userID] = pages
}

func (a *fakeAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, r)
	w.Header().Set("Content-Type", "application/json")

	if handle, ok := strings.CutPrefix(r.URL.Path, "/2/users/by/username/"); ok {
		id, found := a.users[handle]
		if !found {
			fmt.Fprintf(w, `{"errors": [{"title": "Not Found Error", "detail": "Could not find user with username: [%s]."}]}`, handle)
			return
		}
		fmt.Fprintf(w, `{"data": {"id": %q, "name": %q, "username": %q}}`, id, strings.ToUpper(handle), handle)
		return
	}

	userID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/2/users/"), "/tweets")
	page, ok := a.timelines[userID][r.URL.Query().Get("pagination_token")]
	if !ok {
		fmt.Fprint(w, `{"meta": {"result_count": 0}}`)
		return
	}
	if page.status != 0 && page.status != http.StatusOK {
		w.WriteHeader(page.status)
		fmt.Fprint(w, `{"title": "Service Unavailable"}`)
		return
	}

	type tweet struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
	}
	body := struct {
		Data []tweet `json:"data,omitempty"`
		Meta struct {
			ResultCount int    `json:"result_count"`
			NextToken   string `json:"next_token,omitempty"`
		} `json:"meta"`
	}{}
	for _, it := range page.items {
		body.Data = append(body.Data, tweet{ID: it.ID, Text: it.Text, AuthorID: userID, CreatedAt: it.CreatedAt.Format(time.RFC3339)})
	}
	body.Meta.ResultCount = len(page.items)
	body.Meta.NextToken = page.next
	json.NewEncoder(w).Encode(body)
}

// makeItems builds n items with descending numeric ids starting at top.
// Every item whose id is in prompts gets prompt-like text.
func makeItems(top, n int, prompts ...int) []models.RawItem {
	isPrompt := make(map[int]bool)
	for _, p := range prompts {
		isPrompt[p] = true
	}
	items := make([]models.RawItem, n)
	for i := range items {
		id := top - i
		text := fmt.Sprintf("just an ordinary update number %d about my day", id)
		if isPrompt[id] {
			text = fmt.Sprintf("PROMPT %d: /imagine a lighthouse at dusk, volumetric light --ar 16:9", id)
		}
		items[i] = models.RawItem{ID: fmt.Sprintf("%d", id), Text: text, CreatedAt: runStart.Add(-time.Duration(i) * time.Minute)}
	}
	return items
}

// promptService accepts texts starting with PROMPT
type promptService struct {
	mu    sync.Mutex
	calls int
}

func (p *promptService) Classify(_ context.Context, text string) (models.Classification, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if strings.HasPrefix(text, "PROMPT") {
		return models.Classification{IsMatch: true, Category: models.CategoryMidjourney, Confidence: 0.9, Reasoning: "image prompt"}, nil
	}
	return models.Classification{IsMatch: false, Category: models.CategoryOther, Confidence: 0.95}, nil
}

type harness struct {
	t        *testing.T
	api      *fakeAPI
	store    *store.Store
	budget   *quota.Tracker
	service  *promptService
	recorder *feed.Recorder
	log      *logger.TestLogger
	now      time.Time
	cfg      Config
}

func newHarness(t *testing.T, ceiling int) *harness {
	h := &harness{
		t:        t,
		api:      newFakeAPI(t),
		service:  &promptService{},
		recorder: &feed.Recorder{},
		log:      logger.NewTestLogger(),
		now:      runStart,
		cfg:      DefaultConfig(),
	}
	h.store = store.OpenMemory(t, store.WithClock(h.clock))
	h.budget = quota.NewTracker(quota.DimensionSourceAPI, ceiling, h.store, quota.WithClock(h.clock))
	return h
}

func (h *harness) clock() time.Time {
	return h.now
}

func (h *harness) addSource(handle, userID string, priority models.Priority) *models.Source {
	h.t.Helper()
	ctx := context.Background()
	src, err := h.store.AddSource(ctx, handle, "", priority)
	require.NoError(h.t, err)
	if userID != "" {
		require.NoError(h.t, h.store.SetSourceUserID(ctx, src.ID, userID, ""))
	}
	return src
}

func (h *harness) source(handle string) *models.Source {
	h.t.Helper()
	src, err := h.store.GetSource(context.Background(), handle)
	require.NoError(h.t, err)
	return src
}

func (h *harness) used() int {
	h.t.Helper()
	w, err := h.budget.Window(context.Background())
	require.NoError(h.t, err)
	return w.Used
}

func (h *harness) orchestrator() *Orchestrator {
	client := twitter.NewClient("token", 5*time.Second, logger.NewNopLogger(), twitter.WithBaseURL(h.api.server.URL))
	classBudget := quota.NewTracker(quota.DimensionClassification, 1000, h.store, quota.WithClock(h.clock))
	return New(Deps{
		Sources:    h.store,
		Users:      client,
		Planner:    planner.New(planner.DefaultConfig()),
		Collector:  paginator.New(client, h.budget),
		Classifier: classifier.New(h.service, classifier.WithBudget(classBudget)),
		Ingester:   dedup.New(h.store, nil),
		Budget:     h.budget,
	}, h.cfg,
		WithClock(h.clock),
		WithLogger(h.log),
		WithSink(h.recorder),
		WithClassificationQuota(classBudget),
	)
}

func (h *harness) run() *models.RunSummary {
	h.t.Helper()
	summary, err := h.orchestrator().Run(context.Background())
	require.NoError(h.t, err)
	return summary
}
