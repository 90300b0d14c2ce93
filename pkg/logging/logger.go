// Package logging configures the process-wide zerolog logger and hands out
// component-scoped children of it.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel names a minimum severity. Values mirror zerolog's level strings.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. A nil Output
// falls back to stderr so a zero-value Config stays usable.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// zerologLevel maps a LogLevel onto zerolog's scale. Unknown or empty values
// fall back to info; a misspelled LOG_LEVEL must not take the process down.
func (l LogLevel) zerologLevel() zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(string(l)))
	if s == "warning" {
		return zerolog.WarnLevel
	}
	lv, err := zerolog.ParseLevel(s)
	if err != nil || lv == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lv
}

// NewLogger derives a component-scoped child of the global logger. Every line
// it emits carries the component name, keeping per-package loggers
// distinguishable in aggregated output.
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Limiter waits (permit acquisition, spacing delays)
//   - Cache operations (hit/miss, hotel id, TTL)
//   - Per-identifier fetch results inside a chunk
//
// Info: Normal operation events
//   - Session start/completion with resolved counts
//   - Chunk dispatch and completion
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Per-identifier provider failures (partial results)
//   - Retry attempts (when a retry policy is configured)
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Region search failure (total search failure)
//   - Malformed search criteria
//   - Configuration errors
//
// Context Fields:
//   - endpoint: provider endpoint path
//   - hotel_id: hotel identifier
//   - session_id: search session identity
//   - chunk: chunk index within a batch
//   - status_code: HTTP status code
//   - duration: request duration
//   - error_class: error classification (client, server, network, timeout)
//   - resolved/expected: accumulator progress counts
