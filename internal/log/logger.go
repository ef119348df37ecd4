// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the process logger.
type Config struct {
	Level   string
	Output  io.Writer // defaults to os.Stdout
	Service string    // defaults to "camd"
	Version string
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure installs the process logger. Only the first call has effect;
// later level changes go through SetLevel. An unparseable level means info.
func Configure(cfg Config) {
	once.Do(func() {
		level, err := zerolog.ParseLevel(cfg.Level)
		if err != nil || cfg.Level == "" {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339Nano
		zerolog.DurationFieldUnit = time.Millisecond

		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		service := cfg.Service
		if service == "" {
			service = "camd"
		}
		ctx := zerolog.New(out).With().Timestamp().Str("service", service)
		if cfg.Version != "" {
			ctx = ctx.Str("version", cfg.Version)
		}
		base = ctx.Logger()
	})
}

// SetLevel changes the global level at runtime. Unparseable levels are rejected.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

// Base returns the process logger, configuring defaults on first use.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}
