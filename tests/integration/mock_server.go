package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MockTwitterServer serves the user lookup and timeline endpoints from memory
type MockTwitterServer struct {
	server *httptest.Server

	mu        sync.Mutex
	users     map[string]mockUser // by lowercase username
	timelines map[string][]mockTweet
	failures  map[string]int // "userID#page" -> status
	pages     map[string]int // pages served per user id
	queries   []TimelineQuery

	requestCount atomic.Int32
}

type mockUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type mockTweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

// TimelineQuery is what a timeline request asked for
type TimelineQuery struct {
	UserID          string
	MaxResults      int
	SinceID         string
	PaginationToken string
}

// NewMockTwitterServer starts an empty server
func NewMockTwitterServer() *MockTwitterServer {
	m := &MockTwitterServer{
		users:     make(map[string]mockUser),
		timelines: make(map[string][]mockTweet),
		failures:  make(map[string]int),
		pages:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/", m.handleLookup)
	mux.HandleFunc("/2/users/", m.handleTimeline)
	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the server base URL
func (m *MockTwitterServer) URL() string {
	return m.server.URL
}

// Close shuts the server down
func (m *MockTwitterServer) Close() {
	m.server.Close()
}

// RequestCount returns how many requests reached the server
func (m *MockTwitterServer) RequestCount() int {
	return int(m.requestCount.Load())
}

// Queries returns the timeline requests seen so far
func (m *MockTwitterServer) Queries() []TimelineQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TimelineQuery(nil), m.queries...)
}

// AddUser registers a user with count posts. Post ids descend from
// firstID+count-1 so the newest post comes first. Every even post is a prompt.
func (m *MockTwitterServer) AddUser(username, userID string, firstID, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[strings.ToLower(username)] = mockUser{ID: userID, Name: strings.ToUpper(username[:1]) + username[1:], Username: username}
	tweets := make([]mockTweet, 0, count)
	for i := count - 1; i >= 0; i-- {
		tweets = append(tweets, newMockTweet(userID, firstID+i, i%2 == 0))
	}
	m.timelines[userID] = tweets
}

// Publish prepends newer posts to a user's timeline
func (m *MockTwitterServer) Publish(userID string, firstID int, prompts ...bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := make([]mockTweet, 0, len(prompts))
	for i := len(prompts) - 1; i >= 0; i-- {
		fresh = append(fresh, newMockTweet(userID, firstID+i, prompts[i]))
	}
	m.timelines[userID] = append(fresh, m.timelines[userID]...)
}

// FailPage makes the n-th timeline page (1-based, counted per user) return status
func (m *MockTwitterServer) FailPage(userID string, page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[fmt.Sprintf("%s#%d", userID, page)] = status
}

func newMockTweet(userID string, id int, prompt bool) mockTweet {
	text := fmt.Sprintf("post %d: nothing to see here, just the daily update", id)
	if prompt {
		text = fmt.Sprintf("prompt: a cinematic still of lighthouse number %d at dusk", id)
	}
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute)
	return mockTweet{
		ID:        strconv.Itoa(id),
		Text:      text,
		AuthorID:  userID,
		CreatedAt: created.Format("2006-01-02T15:04:05.000Z"),
	}
}

func (m *MockTwitterServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	m.requestCount.Add(1)
	username := strings.TrimPrefix(r.URL.Path, "/2/users/by/username/")

	m.mu.Lock()
	user, ok := m.users[strings.ToLower(username)]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]string{{
				"title":  "Not Found Error",
				"detail": fmt.Sprintf("Could not find user with username: [%s].", username),
			}},
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": user})
}

func (m *MockTwitterServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	m.requestCount.Add(1)

	userID, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/2/users/"), "/tweets")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	query := TimelineQuery{
		UserID:          userID,
		SinceID:         q.Get("since_id"),
		PaginationToken: q.Get("pagination_token"),
	}
	query.MaxResults, _ = strconv.Atoi(q.Get("max_results"))

	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.pages[userID]++
	status := m.failures[fmt.Sprintf("%s#%d", userID, m.pages[userID])]
	timeline := m.timelines[userID]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"title": "injected failure", "status": %d}`, status)
		return
	}

	// continuation requests omit since_id, so the token carries it
	offset := 0
	if query.PaginationToken != "" {
		pos, since, _ := strings.Cut(strings.TrimPrefix(query.PaginationToken, "p"), "s")
		offset, _ = strconv.Atoi(pos)
		query.SinceID = since
	}

	visible := timeline
	if query.SinceID != "" {
		since, _ := strconv.Atoi(query.SinceID)
		visible = nil
		for _, t := range timeline {
			if id, _ := strconv.Atoi(t.ID); id > since {
				visible = append(visible, t)
			}
		}
	}

	offset = min(offset, len(visible))
	end := min(offset+query.MaxResults, len(visible))
	page := visible[offset:end]

	meta := map[string]interface{}{"result_count": len(page)}
	if len(page) > 0 {
		meta["newest_id"] = page[0].ID
		meta["oldest_id"] = page[len(page)-1].ID
	}
	if end < len(visible) {
		meta["next_token"] = fmt.Sprintf("p%ds%s", end, query.SinceID)
	}

	body := map[string]interface{}{"meta": meta}
	if len(page) > 0 {
		body["data"] = page
	}
	json.NewEncoder(w).Encode(body)
}

// MockClassifierServer answers classification requests: a post starting with
// "prompt:" is a Midjourney prompt, anything else is not a match
type MockClassifierServer struct {
	server  *httptest.Server
	calls   atomic.Int32
	failAll atomic.Bool
}

// NewMockClassifierServer starts the classification endpoint
func NewMockClassifierServer() *MockClassifierServer {
	m := &MockClassifierServer{}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Endpoint is the URL to post to
func (m *MockClassifierServer) Endpoint() string {
	return m.server.URL + "/classify"
}

// Close shuts the server down
func (m *MockClassifierServer) Close() {
	m.server.Close()
}

// Calls returns how many classifications were requested
func (m *MockClassifierServer) Calls() int {
	return int(m.calls.Load())
}

// FailAll makes every request return 503
func (m *MockClassifierServer) FailAll(fail bool) {
	m.failAll.Store(fail)
}

func (m *MockClassifierServer) handle(w http.ResponseWriter, r *http.Request) {
	m.calls.Add(1)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if m.failAll.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": "overloaded"}`)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	verdict := map[string]interface{}{
		"isMatch":    false,
		"category":   "Other",
		"confidence": 0.1,
		"reasoning":  "no prompt structure",
	}
	if strings.HasPrefix(req.Text, "prompt:") {
		verdict = map[string]interface{}{
			"isMatch":    true,
			"category":   "Midjourney",
			"confidence": 0.92,
			"reasoning":  "image generation prompt",
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}
