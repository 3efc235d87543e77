// Package pagination drives the page cache the way an infinite-scroll
// consumer does.
//
// The cache loads one page per LoadMore call and ignores calls while a fetch
// for the key is in flight. ScrollTo issues those calls one after another
// until a target page count is reached or the source reports no more pages:
//
//	snap, err := pagination.ScrollTo(ctx, manager, cache.UsersKey, 5)
//
// ScrollAll does the same for several keys with a small worker pool. Pages
// of one key are never fetched in parallel.
//
// A failed page stops the scroll of its key. Pages loaded before the
// failure stay in the cache and are part of the returned snapshot.
package pagination
