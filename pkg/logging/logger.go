// Package logging sets up the zerolog logger shared by the user feed
// packages. Each package logs through NewLogger with one of the component
// names below so lines can be filtered by emitter.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as read from config or flags.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentClient    = "page-client"
	ComponentCache     = "page-cache"
	ComponentFavorites = "favorites"
	ComponentAPI       = "api"
)

// Valid reports whether l names a level ParseLevel understands. The empty
// level is valid and means info.
func (l LogLevel) Valid() bool {
	_, ok := levelOf(l)
	return ok
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs a logger built from cfg as the global zerolog logger and
// returns it. Loggers from NewLogger created afterwards inherit it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	log.Logger = zerolog.New(cfg.writer()).With().Timestamp().Logger()
	return log.Logger
}

func (c Config) writer() io.Writer {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	if c.Pretty {
		return zerolog.ConsoleWriter{Out: out}
	}
	return out
}

// ParseLevel maps level to a zerolog level, falling back to info.
func ParseLevel(level LogLevel) zerolog.Level {
	if lvl, ok := levelOf(level); ok {
		return lvl
	}
	return zerolog.InfoLevel
}

func levelOf(level LogLevel) (zerolog.Level, bool) {
	name := strings.ToLower(strings.TrimSpace(string(level)))
	switch name {
	case "":
		return zerolog.InfoLevel, true
	case "warning":
		return zerolog.WarnLevel, true
	case string(LevelDebug), string(LevelInfo), string(LevelWarn), string(LevelError):
		lvl, err := zerolog.ParseLevel(name)
		return lvl, err == nil
	}
	return zerolog.NoLevel, false
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Fields shared across components: key (cache query key), page, generation
// (entry epoch of a fetch), error_class and attempt. Fetch failures that
// keep held pages log at warn; dedup and discarded completions at debug.
