// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads camd configuration from YAML and CAMD_* environment
// variables and supports hot reload of the file.
package config

import (
	"time"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/negotiate"
)

// Config is the complete runtime configuration.
type Config struct {
	Version   string          `yaml:"version,omitempty"`
	Log       LogConfig       `yaml:"log"`
	Camera    CameraConfig    `yaml:"camera"`
	Photos    PhotosConfig    `yaml:"photos"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// CameraConfig selects the device and drives resolution negotiation.
type CameraConfig struct {
	PreferredFacing   string `yaml:"preferred_facing"`
	DisplayWidth      int    `yaml:"display_width"`
	DisplayHeight     int    `yaml:"display_height"`
	NegotiationPolicy string `yaml:"negotiation_policy"`
	FallbackWidth     int    `yaml:"fallback_width"`
	FallbackHeight    int    `yaml:"fallback_height"`
	StartPreview      bool   `yaml:"start_preview"`
	RecreateOnEvict   bool   `yaml:"recreate_on_eviction"`
}

// Negotiation converts the camera section into negotiator options. Call it
// on validated configuration only.
func (c CameraConfig) Negotiation() negotiate.Options {
	opts := negotiate.DefaultOptions()
	if p, err := negotiate.ParsePolicy(c.NegotiationPolicy); err == nil {
		opts.Policy = p
	}
	if c.FallbackWidth > 0 && c.FallbackHeight > 0 {
		opts.Fallback = model.Resolution{Width: c.FallbackWidth, Height: c.FallbackHeight}
	}
	return opts
}

// PhotosConfig configures the photo writer and catalog.
type PhotosConfig struct {
	Dir         string `yaml:"dir"`
	Prefix      string `yaml:"prefix"`
	CatalogPath string `yaml:"catalog_path"`
	QueueSize   int    `yaml:"queue_size"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	CaptureRateLimit  int           `yaml:"capture_rate_limit"`
	CaptureRateWindow time.Duration `yaml:"capture_rate_window"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig configures OTLP tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// SimulatorConfig configures the in-process platform adapter.
type SimulatorConfig struct {
	NotificationDelay time.Duration  `yaml:"notification_delay"`
	FrameRate         int            `yaml:"frame_rate"`
	Devices           []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one simulated capture device.
type DeviceConfig struct {
	ID          string                      `yaml:"id"`
	Facing      string                      `yaml:"facing"`
	Orientation int                         `yaml:"orientation"`
	Configs     []model.StreamConfiguration `yaml:"configs"`
	Exposure    model.Range                 `yaml:"exposure_range"`
	Sensitivity model.Range                 `yaml:"sensitivity_range"`
}

// Descriptor converts the entry into a camera descriptor.
func (d DeviceConfig) Descriptor() model.CameraDescriptor {
	return model.CameraDescriptor{
		ID:                d.ID,
		Facing:            model.ParseFacing(d.Facing),
		SensorOrientation: d.Orientation,
		Configurations:    append([]model.StreamConfiguration(nil), d.Configs...),
		ExposureRange:     d.Exposure,
		SensitivityRange:  d.Sensitivity,
	}
}

// Descriptors converts every configured device.
func (s SimulatorConfig) Descriptors() []model.CameraDescriptor {
	out := make([]model.CameraDescriptor, 0, len(s.Devices))
	for _, d := range s.Devices {
		out = append(out, d.Descriptor())
	}
	return out
}
