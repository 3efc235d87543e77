package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/user-feed-client/pkg/client"
	"github.com/Sternrassler/user-feed-client/pkg/logging"
	"github.com/Sternrassler/user-feed-client/pkg/users"
	"github.com/rs/zerolog"
)

// errDiscarded stops retries of a fetch whose entry was reset meanwhile.
var errDiscarded = errors.New("fetch discarded after reset")

// PageFetcher fetches a single page. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageNumber, pageSize int) (*users.Page, error)
}

// Config holds the cache policy.
type Config struct {
	// PageSize is the number of users requested per page.
	PageSize int

	// StaleTime is how long a successful entry stays fresh.
	StaleTime time.Duration

	// GCTime is how long an entry without subscribers is retained after
	// its last successful fetch.
	GCTime time.Duration

	// SweepInterval is how often Run looks for collectable entries.
	SweepInterval time.Duration

	// Retry policy applied to every fetch.
	Retry client.RetryConfig
}

// DefaultConfig returns the default cache policy.
func DefaultConfig() Config {
	return Config{
		PageSize:      21,
		StaleTime:     5 * time.Minute,
		GCTime:        10 * time.Minute,
		SweepInterval: 1 * time.Minute,
		Retry:         client.DefaultRetryConfig(),
	}
}

// Manager owns the paginated entries of every query key.
type Manager struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[QueryKey]*entry
	epoch   uint64

	background sync.WaitGroup
}

// New creates a cache manager backed by fetcher.
func New(fetcher PageFetcher, cfg Config) *Manager {
	if fetcher == nil {
		panic("page fetcher cannot be nil")
	}

	defaults := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.StaleTime < 0 {
		cfg.StaleTime = 0
	}
	if cfg.GCTime <= 0 {
		cfg.GCTime = defaults.GCTime
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = defaults.Retry
	}

	return &Manager{
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger(logging.ComponentCache),
		now:     time.Now,
		entries: make(map[QueryKey]*entry),
	}
}

// Query returns the current view of key, creating the entry on first use.
// A cold entry loads page 1 before returning. A stale entry returns its
// current data immediately and is revalidated in the background.
func (m *Manager) Query(ctx context.Context, key QueryKey) (Snapshot, error) {
	m.mu.Lock()
	e := m.entryLocked(key)
	now := m.now()

	switch {
	case len(e.pages) == 0 && !e.inFlight:
		gen := e.begin(fetchRefetch, StatusLoading)
		m.mu.Unlock()
		m.notify(key)

		err := m.run(ctx, key, gen, fetchRefetch, 1)
		snap, _ := m.State(key)
		return snap, err

	case len(e.pages) > 0 && !e.inFlight && e.isStale(now, m.config.StaleTime):
		gen := e.begin(fetchRefetch, StatusLoading)
		snap := e.snapshot(key, now, m.config.StaleTime)
		m.mu.Unlock()
		m.notify(key)
		m.revalidate(ctx, key, gen)
		return snap, nil
	}

	snap := e.snapshot(key, now, m.config.StaleTime)
	m.mu.Unlock()
	return snap, nil
}

// State returns the current view of key without triggering any fetch.
func (m *Manager) State(key QueryKey) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusIdle, Users: []users.User{}}, false
	}
	return e.snapshot(key, m.now(), m.config.StaleTime), true
}

// Subscribe registers fn to receive a snapshot after every state change of
// key and counts as an active consumer for garbage collection until the
// returned function is called. fn runs without the manager lock held.
func (m *Manager) Subscribe(key QueryKey, fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		fn = func(Snapshot) {}
	}

	m.mu.Lock()
	e := m.entryLocked(key)
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(e.listeners, id)
			m.mu.Unlock()
		})
	}
}

// LoadMore fetches the page after the last held one. It does nothing when
// the entry is absent or empty, the last page has no successor, or a fetch
// is already in flight. On failure held pages are kept and the entry moves
// to StatusError.
func (m *Manager) LoadMore(ctx context.Context, key QueryKey) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || !e.hasMore() {
		m.mu.Unlock()
		return nil
	}
	if e.inFlight {
		m.mu.Unlock()
		DedupedLoads.Inc()
		m.logger.Debug().Str("key", key.String()).Msg("Load more skipped, fetch in flight")
		return nil
	}

	pageNumber := len(e.pages) + 1
	gen := e.begin(fetchNextPage, StatusLoadingMore)
	m.mu.Unlock()
	m.notify(key)

	return m.run(ctx, key, gen, fetchNextPage, pageNumber)
}

// Refetch reloads page 1 and, on success, replaces all held pages with it
// in one step. Held pages stay visible until then and survive a failure.
// It does nothing while another fetch for key is in flight.
func (m *Manager) Refetch(ctx context.Context, key QueryKey) error {
	m.mu.Lock()
	e := m.entryLocked(key)
	if e.inFlight {
		m.mu.Unlock()
		m.logger.Debug().Str("key", key.String()).Msg("Refetch skipped, fetch in flight")
		return nil
	}

	gen := e.begin(fetchRefetch, StatusLoading)
	m.mu.Unlock()
	m.notify(key)

	return m.run(ctx, key, gen, fetchRefetch, 1)
}

// Reset clears key to its initial empty state. A fetch in flight is not
// cancelled but its result will be discarded when it arrives.
func (m *Manager) Reset(key QueryKey) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return
	}

	wasInFlight := e.inFlight
	e.reset(m.now(), m.nextGenerationLocked())
	gen := e.generation
	m.mu.Unlock()

	m.logger.Info().
		Str("key", key.String()).
		Uint64("generation", gen).
		Bool("fetch_abandoned", wasInFlight).
		Msg("Entry reset")

	m.notify(key)
}

// Len returns the number of live entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close waits for background revalidations to finish.
func (m *Manager) Close() error {
	m.background.Wait()
	return nil
}

// SetClock replaces the time source (for testing).
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// entryLocked returns the entry for key, creating it if needed.
func (m *Manager) entryLocked(key QueryKey) *entry {
	e, ok := m.entries[key]
	if !ok {
		e = newEntry(m.now(), m.nextGenerationLocked())
		m.entries[key] = e
		CacheEntries.Inc()
	}
	return e
}

// nextGenerationLocked hands out generations that are never reused, even
// after an entry is collected and recreated.
func (m *Manager) nextGenerationLocked() uint64 {
	m.epoch++
	return m.epoch
}

// revalidate refetches key in the background for a fetch already begun.
func (m *Manager) revalidate(ctx context.Context, key QueryKey, gen uint64) {
	BackgroundRefetches.Inc()
	m.logger.Info().Str("key", key.String()).Msg("Revalidating stale entry")

	bgCtx := context.WithoutCancel(ctx)
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		if err := m.run(bgCtx, key, gen, fetchRefetch, 1); err != nil {
			m.logger.Warn().Err(err).Str("key", key.String()).Msg("Background revalidation failed")
		}
	}()
}

// run performs one fetch with retries and applies its result.
func (m *Manager) run(ctx context.Context, key QueryKey, gen uint64, kind fetchKind, pageNumber int) error {
	var page *users.Page
	err := client.Retry(ctx, m.config.Retry, func(attempt int) error {
		if attempt > 1 && !m.isCurrent(key, gen) {
			return errDiscarded
		}
		p, err := m.fetcher.FetchPage(ctx, pageNumber, m.config.PageSize)
		if err != nil {
			return err
		}
		page = p
		return nil
	})

	return m.settle(key, gen, kind, page, err)
}

// isCurrent reports whether a fetch of generation gen may still apply.
func (m *Manager) isCurrent(key QueryKey, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return ok && e.inFlight && e.generation == gen
}

// settle applies a finished fetch unless the entry moved to another
// generation meanwhile, in which case the result is dropped silently.
func (m *Manager) settle(key QueryKey, gen uint64, kind fetchKind, page *users.Page, fetchErr error) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || !e.inFlight || e.generation != gen {
		m.mu.Unlock()
		DiscardedCompletions.Inc()
		m.logger.Debug().
			Str("key", key.String()).
			Uint64("generation", gen).
			Msg("Discarding completion of superseded fetch")
		return nil
	}

	e.inFlight = false

	if fetchErr != nil {
		e.status = StatusError
		e.lastError = newFailure(fetchErr)
		category := e.lastError.Category
		m.mu.Unlock()

		FetchFailures.WithLabelValues(string(category)).Inc()
		m.logger.Warn().
			Err(fetchErr).
			Str("key", key.String()).
			Str("error_class", string(client.ClassOf(fetchErr))).
			Msg("Fetch failed, keeping held pages")

		m.notify(key)
		return fetchErr
	}

	label := "refetch"
	switch kind {
	case fetchRefetch:
		e.pages = []*users.Page{page}
	case fetchNextPage:
		pages := make([]*users.Page, len(e.pages), len(e.pages)+1)
		copy(pages, e.pages)
		e.pages = append(pages, page)
		label = "load_more"
	}
	e.status = StatusSuccess
	e.lastError = nil
	e.lastFetchedAt = m.now()
	pageCount := len(e.pages)
	m.mu.Unlock()

	PagesLoaded.WithLabelValues(label).Inc()
	m.logger.Debug().
		Str("key", key.String()).
		Int("page", page.Number).
		Int("pages", pageCount).
		Msg("Page applied")

	m.notify(key)
	return nil
}

// notify delivers the current snapshot of key to its subscribers.
func (m *Manager) notify(key QueryKey) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || len(e.listeners) == 0 {
		m.mu.Unlock()
		return
	}
	snap := e.snapshot(key, m.now(), m.config.StaleTime)
	listeners := make([]func(Snapshot), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
