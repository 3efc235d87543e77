// Package config loads the configuration of the userfeed binary.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional YAML file, and USERFEED_* environment variables. Nested keys map
// to variables with dots replaced by underscores, e.g. source.timeout is
// USERFEED_SOURCE_TIMEOUT.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/user-feed-client/pkg/cache"
	"github.com/Sternrassler/user-feed-client/pkg/client"
	"github.com/Sternrassler/user-feed-client/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "USERFEED"

// Config is the complete configuration of the binary.
type Config struct {
	Logging logging.Config
	Client  client.Config
	Cache   cache.Config
	Server  Server

	// File is the config file that was read, empty if none.
	File string
}

// Server holds the settings of the serve command.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration. An empty path searches for userfeed.yaml
// in the working directory and $HOME/.userfeed and tolerates its absence;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("userfeed")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.userfeed")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Logging: getLoggingConfig(v),
		Client:  getClientConfig(v),
		Cache:   getCacheConfig(v),
		Server:  getServerConfig(v),
		File:    v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that the library constructors would silently
// replace with defaults.
func (c *Config) Validate() error {
	if !c.Logging.Level.Valid() {
		return fmt.Errorf("logger.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Cache.PageSize < 1 {
		return fmt.Errorf("cache.page_size must be >= 1 (got %d)", c.Cache.PageSize)
	}
	if c.Cache.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1 (got %d)", c.Cache.Retry.MaxAttempts)
	}
	if c.Cache.StaleTime > c.Cache.GCTime {
		return fmt.Errorf("cache.stale_time (%s) must not exceed cache.gc_time (%s)", c.Cache.StaleTime, c.Cache.GCTime)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultConfig()
	v.SetDefault("logger.level", string(logDefaults.Level))
	v.SetDefault("logger.pretty", logDefaults.Pretty)

	clientDefaults := client.DefaultConfig()
	v.SetDefault("source.base_url", clientDefaults.BaseURL)
	v.SetDefault("source.seed", clientDefaults.Seed)
	v.SetDefault("source.max_pages", clientDefaults.MaxPages)
	v.SetDefault("source.timeout", clientDefaults.Timeout)
	v.SetDefault("source.user_agent", clientDefaults.UserAgent)

	cacheDefaults := cache.DefaultConfig()
	v.SetDefault("cache.page_size", cacheDefaults.PageSize)
	v.SetDefault("cache.stale_time", cacheDefaults.StaleTime)
	v.SetDefault("cache.gc_time", cacheDefaults.GCTime)
	v.SetDefault("cache.sweep_interval", cacheDefaults.SweepInterval)

	v.SetDefault("retry.max_attempts", cacheDefaults.Retry.MaxAttempts)
	v.SetDefault("retry.initial_backoff", cacheDefaults.Retry.InitialBackoff)
	v.SetDefault("retry.max_backoff", cacheDefaults.Retry.MaxBackoff)
	v.SetDefault("retry.multiplier", cacheDefaults.Retry.BackoffMultiplier)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

func getLoggingConfig(v *viper.Viper) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(v.GetString("logger.level"))
	cfg.Pretty = v.GetBool("logger.pretty")
	return cfg
}

func getClientConfig(v *viper.Viper) client.Config {
	return client.Config{
		BaseURL:   v.GetString("source.base_url"),
		Seed:      v.GetString("source.seed"),
		MaxPages:  v.GetInt("source.max_pages"),
		Timeout:   v.GetDuration("source.timeout"),
		UserAgent: v.GetString("source.user_agent"),
	}
}

func getCacheConfig(v *viper.Viper) cache.Config {
	return cache.Config{
		PageSize:      v.GetInt("cache.page_size"),
		StaleTime:     v.GetDuration("cache.stale_time"),
		GCTime:        v.GetDuration("cache.gc_time"),
		SweepInterval: v.GetDuration("cache.sweep_interval"),
		Retry: client.RetryConfig{
			MaxAttempts:       v.GetInt("retry.max_attempts"),
			InitialBackoff:    v.GetDuration("retry.initial_backoff"),
			MaxBackoff:        v.GetDuration("retry.max_backoff"),
			BackoffMultiplier: v.GetFloat64("retry.multiplier"),
		},
	}
}

func getServerConfig(v *viper.Viper) Server {
	return Server{
		Addr:            v.GetString("server.addr"),
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
	}
}
