// Package observability provides the process-wide structured logger.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/example/switchboard/internal/ctxutil"
)

// default logger: text to stderr so it stays out of command output.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Options selects the handler used by Configure.
type Options struct {
	Format string // "json" or "text"
	Level  string // debug, info, warn, error
	Output io.Writer
}

// Configure replaces the global logger.
func Configure(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}
	logger = slog.New(h)
	return logger
}

// ParseLevel maps a config string onto a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the global logger.
func Logger() *slog.Logger {
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LoggerFromContext adds the actor, if present, to the given logger.
func LoggerFromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = logger
	}
	if actor := ctxutil.ActorFromContext(ctx); actor != "" {
		return base.With("actor", actor)
	}
	return base
}
