// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/negotiate"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "camd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").WithLookup(noEnv).Load()
	require.NoError(t, err)

	want := Default()
	want.Version = "v1.2.3"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, Validate(Default()))
}

func TestLoad_ExampleMatchesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("..", "..", "config.example.yaml"), "").WithLookup(noEnv).Load()
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config.example.yaml drifted from defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
log:
  level: debug
camera:
  preferred_facing: front
  display_width: 1280
  display_height: 720
  negotiation_policy: largest
api:
  listen_addr: "127.0.0.1:9000"
  capture_rate_window: 2s
simulator:
  notification_delay: 1ms
  devices:
    - id: cam0
      facing: front
      orientation: 270
      configs:
        - {format: YUV_420_888, width: 640, height: 360}
        - {format: JPEG, width: 1280, height: 720}
      exposure_range: {min: 10, max: 20}
`)
	cfg, err := NewLoader(path, "").WithLookup(noEnv).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "front", cfg.Camera.PreferredFacing)
	assert.Equal(t, 1280, cfg.Camera.DisplayWidth)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.API.CaptureRateWindow)
	assert.Equal(t, time.Millisecond, cfg.Simulator.NotificationDelay)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Photos, cfg.Photos)
	assert.Equal(t, Default().Camera.FallbackWidth, cfg.Camera.FallbackWidth)

	descs := cfg.Simulator.Descriptors()
	want := []model.CameraDescriptor{{
		ID:                "cam0",
		Facing:            model.FacingFront,
		SensorOrientation: 270,
		Configurations: []model.StreamConfiguration{
			{Format: model.FormatYUV420, Width: 640, Height: 360},
			{Format: model.FormatJPEG, Width: 1280, Height: 720},
		},
		ExposureRange: model.Range{Min: 10, Max: 20},
	}}
	if diff := cmp.Diff(want, descs); diff != "" {
		t.Errorf("descriptors mismatch (-want +got):\n%s", diff)
	}

	opts := cfg.Camera.Negotiation()
	assert.Equal(t, negotiate.PolicyLargest, opts.Policy)
	assert.Equal(t, model.Resolution{Width: 640, Height: 480}, opts.Fallback)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "log:\n  level: debug\n")
	l := NewLoader(path, "").WithLookup(envMap(map[string]string{
		"CAMD_LOG_LEVEL":               "warn",
		"CAMD_DISPLAY_WIDTH":           "800",
		"CAMD_TELEMETRY_SAMPLING_RATE": "0.25",
		"CAMD_START_PREVIEW":           "no",
		"CAMD_CAPTURE_RATE_WINDOW":     "250ms",
		"CAMD_SIM_FRAME_RATE":          "not-a-number",
		"CAMD_PHOTOS_DIR":              "  ",
	}))
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 800, cfg.Camera.DisplayWidth)
	assert.InDelta(t, 0.25, cfg.Telemetry.SamplingRate, 1e-9)
	assert.False(t, cfg.Camera.StartPreview)
	assert.Equal(t, 250*time.Millisecond, cfg.API.CaptureRateWindow)
	// Invalid and blank values fall back.
	assert.Equal(t, Default().Simulator.FrameRate, cfg.Simulator.FrameRate)
	assert.Equal(t, Default().Photos.Dir, cfg.Photos.Dir)

	assert.Contains(t, l.ConsumedEnvKeys, "CAMD_LOG_LEVEL")
	assert.Contains(t, l.ConsumedEnvKeys, "CAMD_PHOTOS_DIR")
	assert.NotContains(t, l.ConsumedEnvKeys, "CAMD_LISTEN_ADDR")
}

func TestLoad_StrictFile(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "unknown key", body: "camera:\n  zoom: 3\n", want: "strict config parse error"},
		{name: "multiple documents", body: "log:\n  level: info\n---\nlog:\n  level: debug\n", want: "multiple documents"},
		{name: "bad type", body: "camera:\n  display_width: wide\n", want: "strict config parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := NewLoader(path, "").WithLookup(noEnv).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	cfg, err := NewLoader(path, "").WithLookup(noEnv).Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Camera, cfg.Camera)
}

func TestLoad_RejectsExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camd.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").WithLookup(noEnv).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Camera.PreferredFacing = "sideways"
	cfg.Camera.DisplayWidth = 0
	cfg.Camera.NegotiationPolicy = "median"
	cfg.API.ListenAddr = "nope"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "zipkin"
	cfg.Telemetry.SamplingRate = 2
	cfg.Simulator.Devices = append(cfg.Simulator.Devices, DeviceConfig{ID: "0"})

	err := Validate(cfg)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"log.level",
		"camera.preferred_facing",
		"camera.display_width",
		"camera.negotiation_policy",
		"api.listen_addr",
		"telemetry.exporter",
		"telemetry.sampling_rate",
		"simulator.devices[2].id",
	}, fields)
}

func TestHolder_ReloadKeepsOldOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "api:\n  capture_rate_limit: 3\n")
	l := NewLoader(path, "").WithLookup(noEnv)
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	updates := make(chan Config, 1)
	h.RegisterListener(updates)

	writeConfig(t, dir, "api:\n  capture_rate_limit: 7\n")
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, 7, h.Get().API.CaptureRateLimit)
	assert.Equal(t, 7, (<-updates).API.CaptureRateLimit)

	writeConfig(t, dir, "api:\n  capture_rate_limit: -1\n")
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 7, h.Get().API.CaptureRateLimit)
	assert.Empty(t, updates)
}

func TestHolder_WatcherReloads(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := writeConfig(t, dir, "api:\n  capture_rate_limit: 1\n")
	l := NewLoader(path, "").WithLookup(noEnv)
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	h.Debounce = 20 * time.Millisecond
	updates := make(chan Config, 4)
	h.RegisterListener(updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))
	require.Error(t, h.StartWatcher(ctx))

	writeConfig(t, dir, "api:\n  capture_rate_limit: 9\n")
	select {
	case cfg := <-updates:
		assert.Equal(t, 9, cfg.API.CaptureRateLimit)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after file change")
	}
	assert.Equal(t, 9, h.Get().API.CaptureRateLimit)

	h.Stop()
	h.Stop()
}

func TestHolder_WatcherDisabledWithoutPath(t *testing.T) {
	h := NewHolder(Default(), NewLoader("", "").WithLookup(noEnv))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
