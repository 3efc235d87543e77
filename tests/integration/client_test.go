package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/user-feed-client/internal/testutil"
	"github.com/Sternrassler/user-feed-client/pkg/cache"
	"github.com/Sternrassler/user-feed-client/pkg/client"
)

// setup wires a cache manager to a real page client talking to a mock source.
func setup(t *testing.T, timeout time.Duration) (*cache.Manager, *testutil.MockSource) {
	t.Helper()

	mock := testutil.NewMockSource()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL() + "/api/"
	cfg.Timeout = timeout

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Retry = client.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	m := cache.New(c, cacheCfg)
	t.Cleanup(func() { m.Close() })

	return m, mock
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// TestFullScrollFlow tests Query → LoadMore × 4 → end of feed against the source.
func TestFullScrollFlow(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	ctx := context.Background()

	snap, err := m.Query(ctx, cache.UsersKey)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if snap.Total() != 21 || !snap.HasMore {
		t.Fatalf("Page 1: total=%d has_more=%v, want 21 true", snap.Total(), snap.HasMore)
	}

	for i := 0; i < 4; i++ {
		if err := m.LoadMore(ctx, cache.UsersKey); err != nil {
			t.Fatalf("LoadMore %d failed: %v", i+1, err)
		}
	}

	snap, _ = m.State(cache.UsersKey)
	if snap.PageCount != 5 || snap.Total() != 105 || snap.HasMore {
		t.Errorf("Final: pages=%d total=%d has_more=%v, want 5 105 false", snap.PageCount, snap.Total(), snap.HasMore)
	}

	// Users arrive in page order with page-qualified ids.
	seen := make(map[string]bool, snap.Total())
	for i, u := range snap.Users {
		if seen[u.ID] {
			t.Fatalf("Duplicate id %s", u.ID)
		}
		seen[u.ID] = true
		wantPage := i/21 + 1
		if u.Email == "" || u.Name == "" {
			t.Errorf("User %d has empty fields: %+v", i, u)
		}
		if u.ID[len(u.ID)-1] != byte('0'+wantPage) {
			t.Errorf("User %d id %s not from page %d", i, u.ID, wantPage)
		}
	}

	if err := m.LoadMore(ctx, cache.UsersKey); err != nil {
		t.Errorf("LoadMore past the end should be a no-op, got %v", err)
	}
	if mock.GetRequestCount() != 5 {
		t.Errorf("Source requests = %d, want 5", mock.GetRequestCount())
	}
}

// TestLoadMoreDedup tests that concurrent load-more calls issue one request.
func TestLoadMoreDedup(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	ctx := context.Background()

	if _, err := m.Query(ctx, cache.UsersKey); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	mock.SetDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.LoadMore(ctx, cache.UsersKey)
		}()
	}
	waitFor(t, "page 2 request", func() bool { return mock.GetPageRequestCount(2) == 1 })
	wg.Wait()

	if n := mock.GetPageRequestCount(2); n != 1 {
		t.Errorf("Page 2 requested %d times, want 1", n)
	}
	snap, _ := m.State(cache.UsersKey)
	if snap.PageCount < 2 {
		t.Errorf("PageCount = %d, want >= 2", snap.PageCount)
	}
}

// TestTimeoutKeepsPages tests that a timed-out page leaves held pages intact.
func TestTimeoutKeepsPages(t *testing.T) {
	m, mock := setup(t, 100*time.Millisecond)
	ctx := context.Background()

	if _, err := m.Query(ctx, cache.UsersKey); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if err := m.LoadMore(ctx, cache.UsersKey); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	before, _ := m.State(cache.UsersKey)

	mock.SetDelay(300 * time.Millisecond)

	err := m.LoadMore(ctx, cache.UsersKey)
	var timeoutErr *client.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected TimeoutError, got %v", err)
	}
	if timeoutErr.Page != 3 {
		t.Errorf("TimeoutError.Page = %d, want 3", timeoutErr.Page)
	}

	after, _ := m.State(cache.UsersKey)
	if after.Status != cache.StatusError {
		t.Errorf("Status = %s, want error", after.Status)
	}
	if after.Err == nil || after.Err.Message != "request timed out, try again" {
		t.Errorf("Unexpected failure: %+v", after.Err)
	}
	if after.PageCount != before.PageCount || after.Total() != before.Total() {
		t.Fatalf("Pages changed: %d/%d -> %d/%d", before.PageCount, before.Total(), after.PageCount, after.Total())
	}
	for i := range before.Users {
		if before.Users[i] != after.Users[i] {
			t.Fatalf("User %d changed after timeout", i)
		}
	}
}

// TestRetry5xxErrors tests that server errors are retried.
func TestRetry5xxErrors(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	ctx := context.Background()

	m.Query(ctx, cache.UsersKey)
	mock.FailNext(2, testutil.NewServerErrorResponse(), testutil.NewServerErrorResponse())

	if err := m.LoadMore(ctx, cache.UsersKey); err != nil {
		t.Fatalf("LoadMore should succeed after retries: %v", err)
	}
	if n := mock.GetPageRequestCount(2); n != 3 {
		t.Errorf("Page 2 requested %d times, want 3", n)
	}
	snap, _ := m.State(cache.UsersKey)
	if snap.PageCount != 2 || snap.Status != cache.StatusSuccess {
		t.Errorf("Expected 2 pages and success, got %d %s", snap.PageCount, snap.Status)
	}
}

// TestNoRetry4xxErrors tests that client errors fail without retries.
func TestNoRetry4xxErrors(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	ctx := context.Background()

	m.Query(ctx, cache.UsersKey)
	mock.SetPageResponse(2, testutil.NewNotFoundResponse())

	err := m.LoadMore(ctx, cache.UsersKey)
	var statusErr *client.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 404 {
		t.Fatalf("Expected HTTPStatusError 404, got %v", err)
	}
	if n := mock.GetPageRequestCount(2); n != 1 {
		t.Errorf("Page 2 requested %d times, want 1", n)
	}
}

// TestMalformedResponse tests that an unparseable page is a generic failure.
func TestMalformedResponse(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	mock.SetPageResponse(1, testutil.NewMalformedResponse())

	_, err := m.Query(context.Background(), cache.UsersKey)
	var parseErr *client.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}

	snap, _ := m.State(cache.UsersKey)
	if snap.Err == nil || snap.Err.Category != client.CategoryGeneric {
		t.Errorf("Expected generic failure, got %+v", snap.Err)
	}
	if mock.GetPageRequestCount(1) != 1 {
		t.Errorf("Parse errors should not be retried, got %d requests", mock.GetPageRequestCount(1))
	}
}

// TestNetworkError tests the network category when the source is unreachable.
func TestNetworkError(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	ctx := context.Background()

	m.Query(ctx, cache.UsersKey)
	mock.Close()

	err := m.LoadMore(ctx, cache.UsersKey)
	var netErr *client.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if !errors.Is(err, client.ErrRetryExhausted) {
		t.Errorf("Expected retries to be exhausted, got %v", err)
	}

	snap, _ := m.State(cache.UsersKey)
	if snap.Err == nil || snap.Err.Message != "network error, check connection" {
		t.Errorf("Unexpected failure: %+v", snap.Err)
	}
	if snap.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", snap.PageCount)
	}
}

// TestResetDiscardsLateCompletion tests that a page arriving after a reset is dropped.
func TestResetDiscardsLateCompletion(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	ctx := context.Background()

	m.Query(ctx, cache.UsersKey)
	mock.SetDelay(150 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- m.LoadMore(ctx, cache.UsersKey) }()

	waitFor(t, "page 2 request", func() bool { return mock.GetPageRequestCount(2) == 1 })
	m.Reset(cache.UsersKey)

	if err := <-done; err != nil {
		t.Errorf("Discarded completion should not report an error, got %v", err)
	}

	snap, _ := m.State(cache.UsersKey)
	if snap.PageCount != 0 || snap.Status != cache.StatusIdle {
		t.Errorf("Expected empty idle entry, got pages=%d status=%s", snap.PageCount, snap.Status)
	}
}

// TestRefetchNeverEmpty tests that subscribers never see an empty entry during a refetch.
func TestRefetchNeverEmpty(t *testing.T) {
	m, mock := setup(t, 2*time.Second)
	ctx := context.Background()

	m.Query(ctx, cache.UsersKey)
	m.LoadMore(ctx, cache.UsersKey)
	m.LoadMore(ctx, cache.UsersKey)

	var (
		mu       sync.Mutex
		observed []int
	)
	unsubscribe := m.Subscribe(cache.UsersKey, func(snap cache.Snapshot) {
		mu.Lock()
		observed = append(observed, snap.PageCount)
		mu.Unlock()
	})
	defer unsubscribe()

	mock.SetDelay(50 * time.Millisecond)
	if err := m.Refetch(ctx, cache.UsersKey); err != nil {
		t.Fatalf("Refetch failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 2 {
		t.Fatalf("Expected 2 notifications (loading, success), got %v", observed)
	}
	if observed[0] != 3 || observed[1] != 1 {
		t.Errorf("Observed page counts %v, want [3 1]", observed)
	}
}
