package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/user-feed-client/internal/config"
	"github.com/Sternrassler/user-feed-client/pkg/cache"
	"github.com/Sternrassler/user-feed-client/pkg/client"
	"github.com/Sternrassler/user-feed-client/pkg/favorites"
	"github.com/Sternrassler/user-feed-client/pkg/logging"
	"github.com/Sternrassler/user-feed-client/pkg/metrics"
	"github.com/Sternrassler/user-feed-client/pkg/pagination"
	"github.com/Sternrassler/user-feed-client/pkg/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	var (
		addr string
		warm int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the user feed and favorites over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if warm > 0 {
				if _, err := pagination.ScrollTo(ctx, a.cache, cache.UsersKey, warm); err != nil {
					log.Warn().Err(err).Int("pages", warm).Msg("Warm-up incomplete, continuing")
				}
			}

			return runServer(ctx, cfg.Server, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&warm, "warm", 0, "pages to load before accepting requests")

	return cmd
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, cfg config.Server, a *app) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newServer(a.cache, a.favorites).routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go a.cache.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("source", a.client.Config().BaseURL).
			Msg("Starting user feed server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down user feed server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// server exposes the cache and favorites operations as a JSON API.
type server struct {
	cache     *cache.Manager
	favorites *favorites.Store
	logger    zerolog.Logger
}

func newServer(m *cache.Manager, store *favorites.Store) *server {
	return &server{
		cache:     m,
		favorites: store,
		logger:    logging.NewLogger(logging.ComponentAPI),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(pattern, h))
	}

	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	handle("GET /users", s.handleUsers)
	handle("POST /users/more", s.handleLoadMore)
	handle("POST /users/refresh", s.handleRefresh)
	handle("POST /users/reset", s.handleReset)

	handle("GET /favorites", s.handleFavorites)
	handle("DELETE /favorites", s.handleClearFavorites)
	handle("POST /favorites/{id}", s.handleToggleFavorite)

	handle("GET /selection", s.handleSelection)
	handle("PUT /selection", s.handleSelect)
	handle("DELETE /selection", s.handleClearSelection)

	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// userView is a user annotated with the session's favorites and selection.
type userView struct {
	users.User
	Favorite bool `json:"favorite"`
	Selected bool `json:"selected"`
}

type usersResponse struct {
	Status        cache.Status   `json:"status"`
	Users         []userView     `json:"users"`
	Total         int            `json:"total"`
	PageCount     int            `json:"page_count"`
	HasMore       bool           `json:"has_more"`
	LoadingMore   bool           `json:"loading_more"`
	Refetching    bool           `json:"refetching"`
	Stale         bool           `json:"stale"`
	Error         *cache.Failure `json:"error,omitempty"`
	LastFetchedAt *time.Time     `json:"last_fetched_at,omitempty"`
}

type favoritesResponse struct {
	Favorites []string `json:"favorites"`
	Count     int      `json:"count"`
}

type toggleResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

type selectionResponse struct {
	ID       string `json:"id,omitempty"`
	Selected bool   `json:"selected"`
}

type selectRequest struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error    string          `json:"error"`
	Category client.Category `json:"category,omitempty"`
}

func (s *server) handleUsers(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cache.Query(r.Context(), cache.UsersKey)
	if err != nil && snap.PageCount == 0 {
		s.writeFetchError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(snap))
}

func (s *server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	err := s.cache.LoadMore(r.Context(), cache.UsersKey)
	s.writeSettled(w, err)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.cache.Refetch(r.Context(), cache.UsersKey)
	s.writeSettled(w, err)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.cache.Reset(cache.UsersKey)
	s.writeSettled(w, nil)
}

func (s *server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, favoritesResponse{
		Favorites: s.favorites.Favorites(),
		Count:     s.favorites.Count(),
	})
}

func (s *server) handleClearFavorites(w http.ResponseWriter, r *http.Request) {
	s.favorites.ClearFavorites()
	s.handleFavorites(w, r)
}

func (s *server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.writeJSON(w, http.StatusOK, toggleResponse{
		ID:       id,
		Favorite: s.favorites.ToggleFavorite(id),
	})
}

func (s *server) handleSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.favorites.SelectedID()
	s.writeJSON(w, http.StatusOK, selectionResponse{ID: id, Selected: ok})
}

func (s *server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id is required"})
		return
	}

	s.favorites.Select(req.ID)
	s.handleSelection(w, r)
}

func (s *server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.favorites.ClearSelection()
	s.handleSelection(w, r)
}

// writeSettled responds with the entry after a mutating call. Held pages
// are returned even when the call failed.
func (s *server) writeSettled(w http.ResponseWriter, err error) {
	snap, _ := s.cache.State(cache.UsersKey)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, s.view(snap))
}

func (s *server) writeFetchError(w http.ResponseWriter, err error) {
	category := client.CategoryOf(err)
	s.writeJSON(w, http.StatusBadGateway, errorResponse{
		Error:    category.Message(),
		Category: category,
	})
}

func (s *server) view(snap cache.Snapshot) usersResponse {
	selected, hasSelection := s.favorites.SelectedID()

	views := make([]userView, len(snap.Users))
	for i, u := range snap.Users {
		views[i] = userView{
			User:     u,
			Favorite: s.favorites.IsFavorite(u.ID),
			Selected: hasSelection && u.ID == selected,
		}
	}

	resp := usersResponse{
		Status:      snap.Status,
		Users:       views,
		Total:       snap.Total(),
		PageCount:   snap.PageCount,
		HasMore:     snap.HasMore,
		LoadingMore: snap.LoadingMore,
		Refetching:  snap.Refetching,
		Stale:       snap.Stale,
		Error:       snap.Err,
	}
	if !snap.LastFetchedAt.IsZero() {
		t := snap.LastFetchedAt
		resp.LastFetchedAt = &t
	}
	return resp
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
