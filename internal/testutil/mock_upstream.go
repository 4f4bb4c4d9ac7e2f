// Package testutil provides testing utilities for the event gateway.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Default paths and parameter names served by MockUpstream.
const (
	ListPath   = "/events/"
	ItemPrefix = "/events/"
	SkipParam  = "offset"
	LimitParam = "limit"
)

// MockResponse defines the behavior for a canned mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is an offset-paginated event API backed by an in-memory list.
// The list endpoint answers {"count": N, "results": [...]}; the item endpoint
// answers the bare object or 404.
type MockUpstream struct {
	server *httptest.Server
	mu     sync.RWMutex
	items  []map[string]any

	// Injected failures are served before normal responses, in order.
	failures []MockResponse

	// Headers added to every response (e.g., rate limit budget).
	headers map[string]string

	// Tracking
	RequestCount int
	ListQueries  []url.Values
	LastHeader   http.Header
}

// NewMockUpstream creates a mock upstream serving items.
func NewMockUpstream(items []map[string]any) *MockUpstream {
	mock := &MockUpstream{
		items:   items,
		headers: map[string]string{},
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and pending failures.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ListQueries = nil
	m.LastHeader = nil
	m.failures = nil
}

// FailNext queues resp to be served for the next request.
func (m *MockUpstream) FailNext(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, resp)
}

// SetHeader adds a header to every subsequent response.
func (m *MockUpstream) SetHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetListQueries returns the query strings of all list requests.
func (m *MockUpstream) GetListQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.ListQueries))
	copy(out, m.ListQueries)
	return out
}

func (m *MockUpstream) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastHeader = r.Header.Clone()
	var failure *MockResponse
	if len(m.failures) > 0 {
		failure = &m.failures[0]
		m.failures = m.failures[1:]
	}
	for k, v := range m.headers {
		w.Header().Set(k, v)
	}
	if r.URL.Path == ListPath {
		m.ListQueries = append(m.ListQueries, r.URL.Query())
	}
	m.mu.Unlock()

	if failure != nil {
		writeResponse(w, *failure)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.URL.Path == ListPath {
		m.serveList(w, r)
		return
	}
	if id, ok := strings.CutPrefix(r.URL.Path, ItemPrefix); ok && id != "" {
		m.serveItem(w, strings.TrimSuffix(id, "/"))
		return
	}
	http.NotFound(w, r)
}

func (m *MockUpstream) serveList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := strconv.Atoi(q.Get(SkipParam))
	if err != nil || skip < 0 {
		skip = 0
	}
	limit, err := strconv.Atoi(q.Get(LimitParam))
	if err != nil || limit < 0 {
		limit = 20
	}

	m.mu.RLock()
	total := len(m.items)
	end := min(skip+limit, total)
	page := []map[string]any{}
	if skip < total {
		page = m.items[skip:end]
	}
	body, _ := json.Marshal(map[string]any{"count": total, "results": page})
	m.mu.RUnlock()

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (m *MockUpstream) serveItem(w http.ResponseWriter, id string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if fmt.Sprint(item["id"]) == id {
			body, _ := json.Marshal(item)
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"detail": "not found"}`))
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewEvents builds n items with ids "<prefix>-1".."<prefix>-n" whose start
// times are one hour apart from base.
func NewEvents(prefix string, n int, base time.Time) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"id":    fmt.Sprintf("%s-%d", prefix, i+1),
			"title": fmt.Sprintf("%s event %d", prefix, i+1),
			"start": base.Add(time.Duration(i) * time.Hour).UTC().Format(time.RFC3339),
		}
	}
	return items
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "bad filter"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
