// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/negotiate"
)

// FieldError is one rejected configuration value.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

func (e FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationError collects every FieldError found in one pass.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

type validator struct {
	errs []FieldError
}

func (v *validator) add(field, msg string, value any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: msg, Value: value})
}

func (v *validator) positive(field string, n int) {
	if n <= 0 {
		v.add(field, "must be positive", n)
	}
}

func (v *validator) nonEmpty(field, s string) {
	if strings.TrimSpace(s) == "" {
		v.add(field, "must not be empty", nil)
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errs}
}

// Validate checks cfg and returns a *ValidationError listing every problem.
func Validate(cfg Config) error {
	v := &validator{}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil || cfg.Log.Level == "" {
		v.add("log.level", "unknown level", cfg.Log.Level)
	}

	switch model.Facing(cfg.Camera.PreferredFacing) {
	case model.FacingFront, model.FacingBack, model.FacingExternal:
	default:
		v.add("camera.preferred_facing", "must be front, back or external", cfg.Camera.PreferredFacing)
	}
	v.positive("camera.display_width", cfg.Camera.DisplayWidth)
	v.positive("camera.display_height", cfg.Camera.DisplayHeight)
	v.positive("camera.fallback_width", cfg.Camera.FallbackWidth)
	v.positive("camera.fallback_height", cfg.Camera.FallbackHeight)
	if _, err := negotiate.ParsePolicy(cfg.Camera.NegotiationPolicy); err != nil {
		v.add("camera.negotiation_policy", "must be smallest or largest", cfg.Camera.NegotiationPolicy)
	}

	v.nonEmpty("photos.dir", cfg.Photos.Dir)
	if strings.ContainsAny(cfg.Photos.Prefix, `/\`) {
		v.add("photos.prefix", "must not contain path separators", cfg.Photos.Prefix)
	}
	if cfg.Photos.QueueSize < 0 {
		v.add("photos.queue_size", "must not be negative", cfg.Photos.QueueSize)
	}

	if _, _, err := net.SplitHostPort(cfg.API.ListenAddr); err != nil {
		v.add("api.listen_addr", "must be host:port", cfg.API.ListenAddr)
	}
	if cfg.API.CaptureRateLimit < 0 {
		v.add("api.capture_rate_limit", "must not be negative", cfg.API.CaptureRateLimit)
	}
	if cfg.API.CaptureRateLimit > 0 && cfg.API.CaptureRateWindow <= 0 {
		v.add("api.capture_rate_window", "must be positive when a rate limit is set", cfg.API.CaptureRateWindow)
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			v.add("telemetry.exporter", "must be grpc or http", cfg.Telemetry.Exporter)
		}
		v.nonEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.add("telemetry.sampling_rate", "must be within [0, 1]", cfg.Telemetry.SamplingRate)
	}

	if cfg.Simulator.NotificationDelay < 0 {
		v.add("simulator.notification_delay", "must not be negative", cfg.Simulator.NotificationDelay)
	}
	if cfg.Simulator.FrameRate < 0 {
		v.add("simulator.frame_rate", "must not be negative", cfg.Simulator.FrameRate)
	}
	seen := make(map[string]struct{}, len(cfg.Simulator.Devices))
	for i, d := range cfg.Simulator.Devices {
		field := fmt.Sprintf("simulator.devices[%d]", i)
		if d.ID == "" {
			v.add(field+".id", "must not be empty", nil)
		} else if _, dup := seen[d.ID]; dup {
			v.add(field+".id", "duplicate device id", d.ID)
		}
		seen[d.ID] = struct{}{}
		for j, sc := range d.Configs {
			if sc.Width <= 0 || sc.Height <= 0 {
				v.add(fmt.Sprintf("%s.configs[%d]", field, j), "width and height must be positive", fmt.Sprintf("%dx%d", sc.Width, sc.Height))
			}
		}
		if d.Exposure.Max < d.Exposure.Min {
			v.add(field+".exposure_range", "max below min", d.Exposure)
		}
		if d.Sensitivity.Max < d.Sensitivity.Min {
			v.add(field+".sensitivity_range", "max below min", d.Sensitivity)
		}
	}

	return v.err()
}
