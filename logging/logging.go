// Package logging configures the process-wide zerolog logger and exposes
// leveled event constructors so packages don't each carry a logger handle.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// Level is the minimum level to emit: debug, info, warn, or error.
	Level string

	// Format selects the output encoding: "json" or "console".
	Format string

	// Output defaults to stderr.
	Output io.Writer
}

var logger = newLogger(Config{Level: "info", Format: "console"})

// Init replaces the process logger. Call it once, early, before any
// goroutines start logging.
func Init(cfg Config) {
	logger = newLogger(cfg)
}

func newLogger(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Logger returns the process logger for callers that want to attach
// persistent fields of their own.
func Logger() zerolog.Logger { return logger }

func Debug() *zerolog.Event { return logger.Debug() }
func Info() *zerolog.Event  { return logger.Info() }
func Warn() *zerolog.Event  { return logger.Warn() }
func Error() *zerolog.Event { return logger.Error() }
