// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"

	"github.com/ManuGH/camsession/internal/camera/model"
)

// Default returns the configuration used when no file or environment
// overrides a value.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Camera: CameraConfig{
			PreferredFacing:   string(model.FacingBack),
			DisplayWidth:      1920,
			DisplayHeight:     1080,
			NegotiationPolicy: "smallest",
			FallbackWidth:     640,
			FallbackHeight:    480,
			StartPreview:      true,
			RecreateOnEvict:   true,
		},
		Photos: PhotosConfig{
			Dir:         "photos",
			Prefix:      "IMG",
			CatalogPath: "photos/catalog.db",
			QueueSize:   8,
		},
		API: APIConfig{
			ListenAddr:        ":8088",
			CaptureRateLimit:  5,
			CaptureRateWindow: time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		Simulator: SimulatorConfig{
			NotificationDelay: 5 * time.Millisecond,
			FrameRate:         15,
			Devices:           defaultDevices(),
		},
	}
}

func defaultDevices() []DeviceConfig {
	return []DeviceConfig{
		{
			ID:          "0",
			Facing:      string(model.FacingBack),
			Orientation: 90,
			Configs: []model.StreamConfiguration{
				{Format: model.FormatYUV420, Width: 1920, Height: 1080},
				{Format: model.FormatYUV420, Width: 1280, Height: 720},
				{Format: model.FormatYUV420, Width: 640, Height: 480},
				{Format: model.FormatJPEG, Width: 3840, Height: 2160},
				{Format: model.FormatJPEG, Width: 1920, Height: 1080},
				{Format: model.FormatJPEG, Width: 640, Height: 480},
			},
			Exposure:    model.Range{Min: 100_000, Max: 100_000_000},
			Sensitivity: model.Range{Min: 100, Max: 3200},
		},
		{
			ID:          "1",
			Facing:      string(model.FacingFront),
			Orientation: 270,
			Configs: []model.StreamConfiguration{
				{Format: model.FormatYUV420, Width: 1280, Height: 720},
				{Format: model.FormatYUV420, Width: 640, Height: 480},
				{Format: model.FormatJPEG, Width: 1280, Height: 720},
			},
		},
	}
}
