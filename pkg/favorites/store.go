// Package favorites holds the favorite-membership set and the single
// selected user of a browsing session.
//
// Users are referenced by id only. The store never validates ids against
// the page cache and never fails: every operation is total over arbitrary
// strings.
package favorites

import (
	"sort"
	"sync"

	"github.com/Sternrassler/user-feed-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	favorites map[string]struct{}
	selected  string
	hasSel    bool
	logger    zerolog.Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		favorites: make(map[string]struct{}),
		logger:    logging.NewLogger(logging.ComponentFavorites),
	}
}

// ToggleFavorite adds id if absent and removes it if present. It returns
// whether id is a favorite afterwards.
func (s *Store) ToggleFavorite(id string) bool {
	s.mu.Lock()
	_, present := s.favorites[id]
	if present {
		delete(s.favorites, id)
	} else {
		s.favorites[id] = struct{}{}
	}
	count := len(s.favorites)
	s.mu.Unlock()

	s.logger.Debug().
		Str("user_id", id).
		Bool("favorite", !present).
		Int("count", count).
		Msg("Favorite toggled")

	return !present
}

// IsFavorite reports whether id is in the favorite set.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favorites[id]
	return ok
}

// Favorites returns the favorite ids in ascending order.
func (s *Store) Favorites() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.favorites))
	for id := range s.favorites {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Count returns the number of favorites.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.favorites)
}

// ClearFavorites empties the favorite set. The selection is kept.
func (s *Store) ClearFavorites() {
	s.mu.Lock()
	cleared := len(s.favorites)
	s.favorites = make(map[string]struct{})
	s.mu.Unlock()

	s.logger.Debug().Int("cleared", cleared).Msg("Favorites cleared")
}

// Select makes id the selected user, replacing any previous selection.
func (s *Store) Select(id string) {
	s.mu.Lock()
	s.selected = id
	s.hasSel = true
	s.mu.Unlock()
}

// SelectedID returns the selected id and whether there is a selection.
func (s *Store) SelectedID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.hasSel
}

// ClearSelection removes the selection, if any.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.hasSel = false
	s.mu.Unlock()
}
