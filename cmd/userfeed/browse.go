package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/Sternrassler/user-feed-client/internal/config"
	"github.com/Sternrassler/user-feed-client/pkg/cache"
	"github.com/Sternrassler/user-feed-client/pkg/favorites"
	"github.com/Sternrassler/user-feed-client/pkg/pagination"
	"github.com/spf13/cobra"
)

func newBrowseCommand(cfg *config.Config) *cobra.Command {
	var (
		pages    int
		favorite []string
		selectID string
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Load pages of users and print them",
		Long:  `Load up to --pages pages of users the way an infinite-scroll view does
and print them as a table. Ids passed with --favorite are marked with '*',
the id passed with --select with '>'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be >= 1 (got %d)", pages)
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range favorite {
				if !a.favorites.IsFavorite(id) {
					a.favorites.ToggleFavorite(id)
				}
			}
			if selectID != "" {
				a.favorites.Select(selectID)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return browse(ctx, cmd.OutOrStdout(), a.cache, a.favorites, pages)
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to load")
	cmd.Flags().StringSliceVarP(&favorite, "favorite", "f", nil, "user ids to mark as favorite")
	cmd.Flags().StringVarP(&selectID, "select", "s", "", "user id to select")

	return cmd
}

// browse scrolls to pages pages and prints whatever was loaded, including
// partial results when a page fails.
func browse(ctx context.Context, out io.Writer, loader pagination.Loader, store *favorites.Store, pages int) error {
	snap, scrollErr := pagination.ScrollTo(ctx, loader, cache.UsersKey, pages)

	printUsers(out, snap, store)

	if scrollErr != nil {
		if snap.Err != nil {
			fmt.Fprintf(out, "\n%s\n", snap.Err.Message)
		}
		return fmt.Errorf("browse stopped after %d pages: %w", snap.PageCount, scrollErr)
	}
	return nil
}

func printUsers(out io.Writer, snap cache.Snapshot, store *favorites.Store) {
	selected, _ := store.SelectedID()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tAGE\tGENDER\tEMAIL\tLOCATION")
	for _, u := range snap.Users {
		mark := ""
		if u.ID == selected {
			mark += ">"
		}
		if store.IsFavorite(u.ID) {
			mark += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s, %s\n",
			mark, u.ID, u.Name, u.Age, u.Gender, u.Email, u.City, u.Country)
	}
	tw.Flush()

	fmt.Fprintf(out, "\n%d users on %d pages, more available: %t, favorites: %d\n",
		snap.Total(), snap.PageCount, snap.HasMore, store.Count())
}
