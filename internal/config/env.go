// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/log"
)

// EnvPrefix starts every environment variable the loader reads.
const EnvPrefix = "CAMD_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// envReader resolves typed values from the environment and logs their source.
// Invalid values fall back to the current value with a warning.
type envReader struct {
	lookup   LookupFunc
	logger   zerolog.Logger
	consumed map[string]struct{}
}

func newEnvReader(lookup LookupFunc) *envReader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &envReader{
		lookup:   lookup,
		logger:   log.WithComponent("config"),
		consumed: make(map[string]struct{}),
	}
}

func (r *envReader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	r.consumed[key] = struct{}{}
	v = strings.TrimSpace(v)
	if v == "" {
		r.logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return "", false
	}
	return v, true
}

func (r *envReader) String(key, cur string) string {
	v, ok := r.raw(key)
	if !ok {
		return cur
	}
	r.logger.Debug().
		Str("key", key).
		Str("value", v).
		Str("source", "environment").
		Msg("using environment variable")
	return v
}

func (r *envReader) Int(key string, cur int) int {
	v, ok := r.raw(key)
	if !ok {
		return cur
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", cur).
			Msg("invalid integer in environment variable, using default")
		return cur
	}
	return i
}

func (r *envReader) Duration(key string, cur time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return cur
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", cur).
			Msg("invalid duration in environment variable, using default")
		return cur
	}
	return d
}

func (r *envReader) Bool(key string, cur bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return cur
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	r.logger.Warn().
		Str("key", key).
		Str("value", v).
		Bool("default", cur).
		Msg("invalid boolean in environment variable, using default")
	return cur
}

func (r *envReader) Float(key string, cur float64) float64 {
	v, ok := r.raw(key)
	if !ok {
		return cur
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", cur).
			Msg("invalid float in environment variable, using default")
		return cur
	}
	return f
}

// applyEnv overlays CAMD_* variables onto cfg.
func applyEnv(cfg *Config, r *envReader) {
	cfg.Log.Level = r.String("CAMD_LOG_LEVEL", cfg.Log.Level)

	cam := &cfg.Camera
	cam.PreferredFacing = r.String("CAMD_CAMERA_FACING", cam.PreferredFacing)
	cam.DisplayWidth = r.Int("CAMD_DISPLAY_WIDTH", cam.DisplayWidth)
	cam.DisplayHeight = r.Int("CAMD_DISPLAY_HEIGHT", cam.DisplayHeight)
	cam.NegotiationPolicy = r.String("CAMD_NEGOTIATION_POLICY", cam.NegotiationPolicy)
	cam.FallbackWidth = r.Int("CAMD_FALLBACK_WIDTH", cam.FallbackWidth)
	cam.FallbackHeight = r.Int("CAMD_FALLBACK_HEIGHT", cam.FallbackHeight)
	cam.StartPreview = r.Bool("CAMD_START_PREVIEW", cam.StartPreview)
	cam.RecreateOnEvict = r.Bool("CAMD_RECREATE_ON_EVICTION", cam.RecreateOnEvict)

	cfg.Photos.Dir = r.String("CAMD_PHOTOS_DIR", cfg.Photos.Dir)
	cfg.Photos.Prefix = r.String("CAMD_PHOTOS_PREFIX", cfg.Photos.Prefix)
	cfg.Photos.CatalogPath = r.String("CAMD_CATALOG_PATH", cfg.Photos.CatalogPath)
	cfg.Photos.QueueSize = r.Int("CAMD_PHOTOS_QUEUE_SIZE", cfg.Photos.QueueSize)

	cfg.API.ListenAddr = r.String("CAMD_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.CaptureRateLimit = r.Int("CAMD_CAPTURE_RATE_LIMIT", cfg.API.CaptureRateLimit)
	cfg.API.CaptureRateWindow = r.Duration("CAMD_CAPTURE_RATE_WINDOW", cfg.API.CaptureRateWindow)
	cfg.API.ShutdownTimeout = r.Duration("CAMD_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	tel := &cfg.Telemetry
	tel.Enabled = r.Bool("CAMD_TELEMETRY_ENABLED", tel.Enabled)
	tel.Exporter = r.String("CAMD_TELEMETRY_EXPORTER", tel.Exporter)
	tel.Endpoint = r.String("CAMD_TELEMETRY_ENDPOINT", tel.Endpoint)
	tel.SamplingRate = r.Float("CAMD_TELEMETRY_SAMPLING_RATE", tel.SamplingRate)
	tel.Environment = r.String("CAMD_TELEMETRY_ENVIRONMENT", tel.Environment)

	cfg.Simulator.NotificationDelay = r.Duration("CAMD_SIM_NOTIFICATION_DELAY", cfg.Simulator.NotificationDelay)
	cfg.Simulator.FrameRate = r.Int("CAMD_SIM_FRAME_RATE", cfg.Simulator.FrameRate)
}
