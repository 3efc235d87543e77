// Package testutil provides testing utilities for the user feed client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockSourceResponse overrides the generated response for one page.
type MockSourceResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockSource is a configurable mock of the paged user listing.
// By default every page returns `results` deterministic records whose
// login.uuid depends on seed, page and position.
type MockSource struct {
	server    *httptest.Server
	mu        sync.RWMutex
	overrides map[int]MockSourceResponse
	failures  map[int][]MockSourceResponse
	delay     time.Duration

	// Tracking
	RequestCount int
	PageRequests map[int]int
	LastQuery    map[string]string
}

// NewMockSource creates a new mock listing server.
func NewMockSource() *MockSource {
	mock := &MockSource{
		overrides:    make(map[int]MockSourceResponse),
		failures:     make(map[int][]MockSourceResponse),
		PageRequests: make(map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))

	return mock
}

// URL returns the mock server URL.
func (m *MockSource) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSource) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PageRequests = make(map[int]int)
	m.LastQuery = nil
}

// SetDelay delays every response.
func (m *MockSource) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetPageResponse replaces the response for a page until cleared.
func (m *MockSource) SetPageResponse(page int, resp MockSourceResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[page] = resp
}

// ClearPageResponse restores generated responses for a page.
func (m *MockSource) ClearPageResponse(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, page)
}

// FailNext queues one-shot responses for a page; each request consumes one
// before falling back to the override or generated response.
func (m *MockSource) FailNext(page int, resps ...MockSourceResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[page] = append(m.failures[page], resps...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSource) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPageRequestCount returns the number of requests made for one page.
func (m *MockSource) GetPageRequestCount(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PageRequests[page]
}

func (m *MockSource) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	results, err := strconv.Atoi(q.Get("results"))
	if err != nil || results < 1 {
		results = 1
	}
	seed := q.Get("seed")

	m.mu.Lock()
	m.RequestCount++
	m.PageRequests[page]++
	m.LastQuery = map[string]string{
		"page":    q.Get("page"),
		"results": q.Get("results"),
		"seed":    seed,
	}
	delay := m.delay
	resp, override := m.overrides[page]
	if queued := m.failures[page]; len(queued) > 0 {
		resp, override = queued[0], true
		m.failures[page] = queued[1:]
	}
	m.mu.Unlock()

	if override && resp.Delay > 0 {
		delay = resp.Delay
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if override {
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(GeneratePage(seed, page, results))
}

// GeneratePage builds a deterministic listing body.
func GeneratePage(seed string, page, results int) map[string]any {
	records := make([]map[string]any, 0, results)
	for i := 0; i < results; i++ {
		records = append(records, GenerateRecord(seed, page, i))
	}
	return map[string]any{
		"results": records,
		"info": map[string]any{
			"seed":    seed,
			"results": results,
			"page":    page,
			"version": "1.4",
		},
	}
}

// GenerateRecord builds one deterministic raw record.
func GenerateRecord(seed string, page, index int) map[string]any {
	uuid := fmt.Sprintf("%s-%04d-%04d", seed, page, index)
	gender := "female"
	if index%2 == 1 {
		gender = "male"
	}
	return map[string]any{
		"gender": gender,
		"name": map[string]any{
			"title": "Mx",
			"first": fmt.Sprintf("First%d", index),
			"last":  fmt.Sprintf("Last%d", page),
		},
		"location": map[string]any{
			"city":     fmt.Sprintf("City%d", index),
			"state":    "State",
			"country":  "Country",
			"postcode": 1000 + index,
		},
		"email": fmt.Sprintf("user%d.%d@example.com", page, index),
		"login": map[string]any{
			"uuid":     uuid,
			"username": fmt.Sprintf("user%d_%d", page, index),
		},
		"dob": map[string]any{
			"date": "1990-01-01T00:00:00.000Z",
			"age":  20 + index,
		},
		"picture": map[string]any{
			"large":     fmt.Sprintf("https://example.com/%d/%d/large.jpg", page, index),
			"medium":    fmt.Sprintf("https://example.com/%d/%d/medium.jpg", page, index),
			"thumbnail": fmt.Sprintf("https://example.com/%d/%d/thumb.jpg", page, index),
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockSourceResponse {
	return MockSourceResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockSourceResponse {
	return MockSourceResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Not found"}`,
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockSourceResponse {
	return MockSourceResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
	}
}
