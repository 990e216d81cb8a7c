// Package logging builds the zerolog.Logger the rest of the engine logs
// through (forward.Engine.Logger, and any caller wiring a backward/
// streaming session). Grounded on the teacher's use of rs/zerolog
// throughout _examples/smilemakc-mbflow's config/executor code (global
// log.Info().Str(...).Msg(...) style); this package just centralizes
// constructing the Logger instance instead of relying on the package-
// global logger, since an embeddable engine shouldn't mutate global
// logging state.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how New builds a Logger.
type Config struct {
	// Level is one of zerolog's level names: "debug", "info", "warn",
	// "error", "disabled". Empty defaults to "info".
	Level string
	// Pretty selects zerolog.ConsoleWriter (human-readable, for local
	// development) instead of the default structured JSON output.
	Pretty bool
	// Output overrides the destination writer; defaults to os.Stderr.
	Output io.Writer
}

// New builds a configured zerolog.Logger. Debug mode (spec §6
// debug_mode) should map to Config{Level: "debug"}.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Default returns an info-level JSON logger writing to stderr.
func Default() zerolog.Logger {
	return New(Config{Level: "info"})
}

// ForRule returns a child logger with the rule name and, when debug is
// true, the engine's per-cycle debug fields attached (spec §6
// debug_mode: "emits additional per-cycle trace information").
func ForRule(base zerolog.Logger, ruleName string, debug bool) zerolog.Logger {
	ctx := base.With().Str("rule", ruleName)
	if debug {
		ctx = ctx.Bool("debug", true)
	}
	return ctx.Logger()
}
