// Package logging builds the stderr logger used by the CLI.
package logging

import (
	"io"
	"log/slog"
)

// LevelSilent is above every standard level.
const LevelSilent = slog.Level(100)

// Level converts CLI verbosity flags to a slog.Level: warn by default, info
// at -v, debug at -vv and beyond. quiet wins over verbosity.
func Level(verbosity int, quiet bool) slog.Level {
	if quiet {
		return LevelSilent
	}
	switch verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// New returns a text logger writing to w at the level implied by the flags.
func New(w io.Writer, verbosity int, quiet bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level(verbosity, quiet),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Timestamps only add noise to a one-shot CLI run.
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelSilent}))
}
