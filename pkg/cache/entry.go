package cache

import (
	"time"

	"github.com/Sternrassler/user-feed-client/pkg/client"
	"github.com/Sternrassler/user-feed-client/pkg/users"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	// StatusIdle is a fresh or reset entry with nothing loaded.
	StatusIdle Status = "idle"

	// StatusLoading means page 1 is being (re)fetched.
	StatusLoading Status = "loading"

	// StatusLoadingMore means the next page is being fetched.
	StatusLoadingMore Status = "loading_more"

	// StatusSuccess means the last fetch succeeded.
	StatusSuccess Status = "success"

	// StatusError means the last fetch failed after retries.
	StatusError Status = "error"
)

// fetchKind tells a settling fetch how to apply its page.
type fetchKind int

const (
	fetchRefetch fetchKind = iota
	fetchNextPage
)

// Failure is the classified, user-facing form of a failed fetch.
type Failure struct {
	Category client.Category `json:"category"`
	Message  string          `json:"message"`
}

func newFailure(err error) *Failure {
	category := client.CategoryOf(err)
	return &Failure{Category: category, Message: category.Message()}
}

// entry holds the state of one query key. Guarded by Manager.mu.
type entry struct {
	pages         []*users.Page
	status        Status
	lastFetchedAt time.Time
	lastError     *Failure

	inFlight  bool
	fetchKind fetchKind

	// generation changes on reset; completions carrying another value are
	// dropped. Values are unique across entries of one Manager.
	generation uint64

	// createdAt anchors GC for entries that never completed a fetch.
	createdAt time.Time

	listeners    map[int]func(Snapshot)
	nextListener int
}

func newEntry(now time.Time, generation uint64) *entry {
	return &entry{
		status:     StatusIdle,
		generation: generation,
		createdAt:  now,
		listeners:  make(map[int]func(Snapshot)),
	}
}

// hasMore reports whether the last held page announces a successor.
func (e *entry) hasMore() bool {
	if len(e.pages) == 0 {
		return false
	}
	return e.pages[len(e.pages)-1].HasMore
}

// begin marks a fetch in flight and returns the generation it belongs to.
func (e *entry) begin(kind fetchKind, status Status) uint64 {
	e.inFlight = true
	e.fetchKind = kind
	e.status = status
	return e.generation
}

// reset clears the entry and moves it to generation, invalidating any
// fetch in flight.
func (e *entry) reset(now time.Time, generation uint64) {
	e.generation = generation
	e.pages = nil
	e.status = StatusIdle
	e.lastFetchedAt = time.Time{}
	e.lastError = nil
	e.inFlight = false
	e.createdAt = now
}

// isStale reports whether loaded data is older than staleTime.
func (e *entry) isStale(now time.Time, staleTime time.Duration) bool {
	if e.lastFetchedAt.IsZero() {
		return false
	}
	return now.Sub(e.lastFetchedAt) >= staleTime
}

// gcAnchor is the instant the GC window is measured from.
func (e *entry) gcAnchor() time.Time {
	if e.lastFetchedAt.IsZero() {
		return e.createdAt
	}
	return e.lastFetchedAt
}

func (e *entry) userCount() int {
	n := 0
	for _, p := range e.pages {
		n += p.Len()
	}
	return n
}

// Snapshot is a read-only view of an entry.
type Snapshot struct {
	Key QueryKey `json:"key"`

	// Users of all pages, flattened in page order.
	Users []users.User `json:"users"`

	PageCount int    `json:"page_count"`
	Status    Status `json:"status"`

	// HasMore reports whether the last page announces a successor.
	HasMore bool `json:"has_more"`

	// LoadingMore is set while the next page is in flight.
	LoadingMore bool `json:"loading_more"`

	// Refetching is set while page 1 is reloaded over existing pages.
	Refetching bool `json:"refetching"`

	Err           *Failure  `json:"error,omitempty"`
	LastFetchedAt time.Time `json:"last_fetched_at"`
	Stale         bool      `json:"stale"`
	Generation    uint64    `json:"generation"`
}

// Total returns the number of users in the snapshot.
func (s Snapshot) Total() int {
	return len(s.Users)
}

func (e *entry) snapshot(key QueryKey, now time.Time, staleTime time.Duration) Snapshot {
	flat := make([]users.User, 0, e.userCount())
	for _, p := range e.pages {
		flat = append(flat, p.Users...)
	}

	var failure *Failure
	if e.lastError != nil {
		f := *e.lastError
		failure = &f
	}

	return Snapshot{
		Key:           key,
		Users:         flat,
		PageCount:     len(e.pages),
		Status:        e.status,
		HasMore:       e.hasMore(),
		LoadingMore:   e.inFlight && e.fetchKind == fetchNextPage,
		Refetching:    e.inFlight && e.fetchKind == fetchRefetch && len(e.pages) > 0,
		Err:           failure,
		LastFetchedAt: e.lastFetchedAt,
		Stale:         e.isStale(now, staleTime),
		Generation:    e.generation,
	}
}
