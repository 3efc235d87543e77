package main

import (
	"fmt"

	"github.com/Sternrassler/user-feed-client/internal/config"
	"github.com/Sternrassler/user-feed-client/pkg/cache"
	"github.com/Sternrassler/user-feed-client/pkg/client"
	"github.com/Sternrassler/user-feed-client/pkg/favorites"
	"github.com/Sternrassler/user-feed-client/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds the components shared by all commands. They are built once per
// invocation and passed to the handlers that need them.
type app struct {
	config    *config.Config
	client    *client.Client
	cache     *cache.Manager
	favorites *favorites.Store
}

func newApp(cfg *config.Config) (*app, error) {
	c, err := client.New(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to create page client: %w", err)
	}

	return &app{
		config:    cfg,
		client:    c,
		cache:     cache.New(c, cfg.Cache),
		favorites: favorites.NewStore(),
	}, nil
}

func (a *app) Close() error {
	return a.cache.Close()
}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		logLevel   string
		pretty     bool
	)
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:          "userfeed",
		Short:        "Browse a paged user listing with caching and favorites",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				loaded.Logging.Level = logging.LogLevel(logLevel)
			}
			if cmd.Flags().Changed("pretty") {
				loaded.Logging.Pretty = pretty
			}
			loaded.Logging.Output = cmd.ErrOrStderr()

			logging.Setup(loaded.Logging)
			if loaded.File != "" {
				log.Debug().Str("file", loaded.File).Msg("Config loaded")
			}

			*cfg = *loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: ./userfeed.yaml if present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")

	cmd.AddCommand(
		newBrowseCommand(cfg),
		newServeCommand(cfg),
	)

	return cmd
}
