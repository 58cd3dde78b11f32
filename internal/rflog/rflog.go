// Package rflog wraps zerolog with the handful of helpers RenderFleet's
// components need: a global logger initialized once at startup and
// component-scoped child loggers so a log line from the dispatcher reads
// differently from one out of the executor.
package rflog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger, set by Init.
var Logger zerolog.Logger

// Config controls Init.
type Config struct {
	Level  string // debug|info|warn|error
	JSON   bool
	Output io.Writer
}

// Init configures the global Logger. Call once at startup, before any
// component logger is derived from it.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	if cfg.JSON {
		Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagging every line with component.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithWorker returns a child logger tagging every line with worker_id.
func WithWorker(workerID string) zerolog.Logger {
	return Logger.With().Str("worker_id", workerID).Logger()
}
