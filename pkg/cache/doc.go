// Package cache provides the paginated fetch-and-cache layer for infinite
// scrolling.
//
// A Manager keeps one entry per QueryKey. An entry holds the pages loaded
// so far (contiguous from page 1), a status, the time of the last successful
// fetch and the classified last error. At most one fetch per entry is in
// flight at any time; concurrent LoadMore calls while a fetch is running are
// no-ops.
//
// # Basic Usage
//
//	pageClient, err := client.New(client.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	manager := cache.New(pageClient, cache.DefaultConfig())
//	defer manager.Close()
//
//	// Load page 1
//	snap, err := manager.Query(ctx, cache.UsersKey)
//
//	// Scroll
//	if snap.HasMore {
//		err = manager.LoadMore(ctx, cache.UsersKey)
//	}
//
//	// Read the accumulated users
//	snap, _ = manager.State(cache.UsersKey)
//
// # Subscriptions
//
// Subscribe delivers a Snapshot after every state change and keeps the entry
// alive for garbage collection until the returned function is called:
//
//	unsubscribe := manager.Subscribe(cache.UsersKey, func(s cache.Snapshot) {
//		render(s.Users)
//	})
//	defer unsubscribe()
//
// # Reset and Generations
//
// Reset clears an entry immediately. Every fetch records the entry's
// generation when it is dispatched; a fetch that completes after a reset
// carries an old generation and its result is dropped. Retries of such a
// fetch stop as well.
//
// # Staleness and Garbage Collection
//
// A successful entry is fresh for StaleTime. A Query on a stale entry
// returns the held data at once and refetches page 1 in the background.
// Entries without subscribers are removed by Sweep (or Run) once GCTime has
// passed since their last successful fetch.
//
// # Metrics
//
//   - userfeed_cache_entries - Live entries
//   - userfeed_cache_pages_loaded_total{kind} - Pages applied
//   - userfeed_cache_fetch_failures_total{category} - Failed fetches
//   - userfeed_cache_deduped_loads_total - LoadMore calls skipped
//   - userfeed_cache_discarded_completions_total - Results dropped after reset
//   - userfeed_cache_background_refetches_total - Stale revalidations
//   - userfeed_cache_evictions_total - Entries garbage-collected
package cache
