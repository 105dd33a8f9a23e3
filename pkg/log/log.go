// Package log configures the process-wide slog default used by every
// component. Components derive their own logger via WithModule so log lines
// are attributable to one subsystem.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on the default logger at the requested level.
// Unknown level names fall back to info.
func Setup(logLevel string) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a logger tagged with the subsystem name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
