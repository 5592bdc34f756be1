package config

import (
	"context"
	"io"
	"log/slog"
)

// LevelCritical sits above slog's built-in levels; quiet mode logs nothing
// below it.
const LevelCritical = slog.LevelError + 4

// loggerKey is used to store logger in context.
type loggerKey struct{}

// LogLevel maps the verbosity settings to a level: warnings by default,
// info when verbose, critical only when quiet. Quiet wins.
func (c *Config) LogLevel() slog.Level {
	switch {
	case c.Quiet:
		return LevelCritical
	case c.Verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// NewLogger builds the process logger writing text records to w.
func NewLogger(w io.Writer, cfg *Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// Name the custom level instead of printing "ERROR+4".
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	}))
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
