package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/user-feed-client/pkg/logging"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.File != "" {
		t.Errorf("Expected no config file, got %q", cfg.File)
	}
	if cfg.Logging.Level != logging.LevelInfo {
		t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
	}
	if cfg.Client.BaseURL != "https://randomuser.me/api/" {
		t.Errorf("Client.BaseURL = %q", cfg.Client.BaseURL)
	}
	if cfg.Client.Seed != "userapp" || cfg.Client.MaxPages != 5 || cfg.Client.Timeout != 10*time.Second {
		t.Errorf("Unexpected client defaults: %+v", cfg.Client)
	}
	if cfg.Cache.PageSize != 21 || cfg.Cache.StaleTime != 5*time.Minute || cfg.Cache.GCTime != 10*time.Minute {
		t.Errorf("Unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Cache.Retry.MaxAttempts != 3 || cfg.Cache.Retry.BackoffMultiplier != 2.0 {
		t.Errorf("Unexpected retry defaults: %+v", cfg.Cache.Retry)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "userfeed.yaml")
	content := `
logger:
  level: debug
  pretty: true
source:
  base_url: http://localhost:9999/api/
  max_pages: 3
  timeout: 2s
cache:
  page_size: 10
  stale_time: 30s
retry:
  max_attempts: 5
server:
  addr: 127.0.0.1:9000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}
	if cfg.Logging.Level != logging.LevelDebug || !cfg.Logging.Pretty {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Client.BaseURL != "http://localhost:9999/api/" || cfg.Client.MaxPages != 3 || cfg.Client.Timeout != 2*time.Second {
		t.Errorf("Unexpected client config: %+v", cfg.Client)
	}
	// Unset keys keep their defaults.
	if cfg.Client.Seed != "userapp" {
		t.Errorf("Client.Seed = %q, want userapp", cfg.Client.Seed)
	}
	if cfg.Cache.PageSize != 10 || cfg.Cache.StaleTime != 30*time.Second || cfg.Cache.GCTime != 10*time.Minute {
		t.Errorf("Unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Cache.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", cfg.Cache.Retry.MaxAttempts)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("USERFEED_SOURCE_SEED", "other")
	t.Setenv("USERFEED_CACHE_PAGE_SIZE", "50")
	t.Setenv("USERFEED_SOURCE_TIMEOUT", "250ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.Seed != "other" {
		t.Errorf("Client.Seed = %q, want other", cfg.Client.Seed)
	}
	if cfg.Cache.PageSize != 50 {
		t.Errorf("Cache.PageSize = %d, want 50", cfg.Cache.PageSize)
	}
	if cfg.Client.Timeout != 250*time.Millisecond {
		t.Errorf("Client.Timeout = %s, want 250ms", cfg.Client.Timeout)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"page size", func(c *Config) { c.Cache.PageSize = 0 }},
		{"retry attempts", func(c *Config) { c.Cache.Retry.MaxAttempts = 0 }},
		{"stale exceeds gc", func(c *Config) { c.Cache.StaleTime = time.Hour }},
		{"server addr", func(c *Config) { c.Server.Addr = "" }},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
