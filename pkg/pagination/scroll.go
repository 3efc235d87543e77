package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/user-feed-client/pkg/cache"
	"github.com/rs/zerolog/log"
)

// ErrNoProgress is returned when a load settled without adding a page,
// because another caller owned the fetch or the entry was reset.
var ErrNoProgress = errors.New("load settled without a new page")

// Loader is the part of *cache.Manager the scroller drives.
type Loader interface {
	Query(ctx context.Context, key cache.QueryKey) (cache.Snapshot, error)
	LoadMore(ctx context.Context, key cache.QueryKey) error
	State(key cache.QueryKey) (cache.Snapshot, bool)
	Subscribe(key cache.QueryKey, fn func(cache.Snapshot)) (unsubscribe func())
}

// Config holds configuration for scrolling several keys at once.
type Config struct {
	// MaxConcurrency is the maximum number of keys scrolled in parallel.
	// Pages of one key are always loaded one after another.
	MaxConcurrency int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
	}
}

// ScrollTo loads pages of key one at a time until the entry holds at least
// pages pages or the source has no more. On failure the pages loaded so
// far stay in the cache and the returned snapshot shows them.
//
// A fetch owned by someone else, such as the background revalidation a
// Query on a stale entry starts, is waited for before scrolling on. When
// it replaces the held pages with a fresh page 1, scrolling restarts from
// there.
func ScrollTo(ctx context.Context, loader Loader, key cache.QueryKey, pages int) (cache.Snapshot, error) {
	start := time.Now()

	snap, err := loader.Query(ctx, key)
	if err != nil {
		return snap, fmt.Errorf("failed to load first page: %w", err)
	}
	if snap.PageCount == 0 && inFlight(snap) {
		if err := waitSettled(ctx, loader, key); err != nil {
			return snap, err
		}
		snap, _ = loader.State(key)
	}
	if snap.PageCount == 0 {
		return snap, fmt.Errorf("first page of %s: %w", key, ErrNoProgress)
	}

	for snap.PageCount < pages && snap.HasMore {
		if err := ctx.Err(); err != nil {
			return snap, err
		}

		before := snap.PageCount
		err := loader.LoadMore(ctx, key)
		snap, _ = loader.State(key)
		if err != nil {
			log.Warn().
				Err(err).
				Str("key", key.String()).
				Int("page", before+1).
				Int("pages", snap.PageCount).
				Msg("Scroll stopped, keeping loaded pages")
			return snap, fmt.Errorf("page %d (partial data: %d pages): %w", before+1, snap.PageCount, err)
		}
		if snap.PageCount <= before {
			if !inFlight(snap) {
				return snap, fmt.Errorf("page %d of %s: %w", before+1, key, ErrNoProgress)
			}

			log.Debug().
				Str("key", key.String()).
				Bool("refetching", snap.Refetching).
				Msg("Fetch in flight, waiting before scrolling on")
			if err := waitSettled(ctx, loader, key); err != nil {
				return snap, err
			}
			snap, _ = loader.State(key)
			continue
		}

		log.Debug().
			Str("key", key.String()).
			Int("pages", snap.PageCount).
			Int("target", pages).
			Int("users", snap.Total()).
			Msg("Scroll progress")
	}

	log.Info().
		Str("key", key.String()).
		Int("pages", snap.PageCount).
		Int("users", snap.Total()).
		Bool("has_more", snap.HasMore).
		Dur("duration", time.Since(start)).
		Msg("Scroll complete")

	return snap, nil
}

// inFlight reports whether snap shows a fetch that has not settled yet.
func inFlight(snap cache.Snapshot) bool {
	return snap.LoadingMore || snap.Refetching ||
		snap.Status == cache.StatusLoading || snap.Status == cache.StatusLoadingMore
}

// waitSettled blocks until no fetch for key is in flight or ctx is done.
func waitSettled(ctx context.Context, loader Loader, key cache.QueryKey) error {
	settled := make(chan struct{}, 1)
	unsubscribe := loader.Subscribe(key, func(snap cache.Snapshot) {
		if !inFlight(snap) {
			select {
			case settled <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	// The fetch may have settled before the subscription was registered.
	if snap, _ := loader.State(key); !inFlight(snap) {
		return nil
	}

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScrollAll scrolls every key to pages using a worker pool. Keys are
// independent, so one failing key does not stop the others. The snapshots
// of all keys are returned together with the first error seen.
func ScrollAll(ctx context.Context, loader Loader, keys []cache.QueryKey, pages int, config Config) (map[cache.QueryKey]cache.Snapshot, error) {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}

	queue := make(chan cache.QueryKey, len(keys))
	for _, key := range keys {
		queue <- key
	}
	close(queue)

	var (
		mu       sync.Mutex
		results  = make(map[cache.QueryKey]cache.Snapshot, len(keys))
		firstErr error
		wg       sync.WaitGroup
	)

	workers := min(config.MaxConcurrency, len(keys))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for key := range queue {
				if ctx.Err() != nil {
					log.Debug().Int("worker_id", workerID).Msg("Worker stopping (context cancelled)")
					return
				}

				snap, err := ScrollTo(ctx, loader, key, pages)

				mu.Lock()
				results[key] = snap
				if err != nil && firstErr == nil {
					firstErr = fmt.Errorf("scroll %s: %w", key, err)
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return results, firstErr
}
