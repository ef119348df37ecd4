// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/sim"
)

func devices() []model.CameraDescriptor {
	return []model.CameraDescriptor{
		{
			ID:     "front",
			Facing: model.FacingFront,
			Configurations: []model.StreamConfiguration{
				{Format: model.FormatYUV420, Width: 640, Height: 480},
			},
		},
		{
			ID:     "back",
			Facing: model.FacingBack,
			Configurations: []model.StreamConfiguration{
				{Format: model.FormatYUV420, Width: 1280, Height: 720},
				{Format: model.FormatYUV420, Width: 640, Height: 360},
				{Format: model.FormatJPEG, Width: 1280, Height: 720},
				{Format: model.FormatJPEG, Width: 320, Height: 180},
			},
			ExposureRange:    model.Range{Min: 0, Max: 1000},
			SensitivityRange: model.Range{Min: 100, Max: 1600},
		},
	}
}

type sink struct {
	mu     sync.Mutex
	photos []model.Photo
}

func (s *sink) HandlePhoto(p model.Photo) {
	s.mu.Lock()
	s.photos = append(s.photos, p)
	s.mu.Unlock()
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

type fixture struct {
	platform *sim.Platform
	surfaces *sim.SurfaceFactory
	sink     *sink
	engine   *Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	p := sim.New(sim.Options{}, devices()...)
	f := &fixture{platform: p, surfaces: &sim.SurfaceFactory{}, sink: &sink{}}
	if opts.PreferredFacing == "" {
		opts.PreferredFacing = model.FacingBack
	}
	if opts.DisplayWidth == 0 {
		opts.DisplayWidth, opts.DisplayHeight = 1280, 720
	}
	f.engine = New(p, f.surfaces, f.sink, opts)
	t.Cleanup(func() {
		_ = f.engine.Close()
		p.Close()
	})
	return f
}

func (f *fixture) eventually(t *testing.T, cond func(s Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.engine.Flush(ctx)
		return cond(f.engine.Snapshot())
	}, 2*time.Second, 2*time.Millisecond)
}

func TestStart_NegotiatesAndPreviews(t *testing.T) {
	f := newFixture(t, Options{StartPreview: true})
	require.NoError(t, f.engine.Start(context.Background()))

	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionActive) })
	s := f.engine.Snapshot()
	assert.Equal(t, "back", s.DeviceID)
	assert.True(t, s.ExactMatch)
	assert.Equal(t, model.Resolution{Width: 640, Height: 360}, s.Preview.Resolution)
	assert.Equal(t, model.Resolution{Width: 1280, Height: 720}, s.Still.Resolution)
	assert.True(t, s.Dispatch.Repeating)

	window, reader := f.surfaces.Last()
	require.NotNil(t, window)
	assert.Equal(t, model.Resolution{Width: 640, Height: 360}, window.Resolution())
	assert.Equal(t, model.Resolution{Width: 1280, Height: 720}, reader.Resolution())

	if diff := cmp.Diff(devices(), f.engine.Cameras()); diff != "" {
		t.Errorf("cameras mismatch (-want +got):\n%s", diff)
	}
}

func TestStart_Errors(t *testing.T) {
	p := sim.New(sim.Options{})
	defer p.Close()
	e := New(p, &sim.SurfaceFactory{}, nil, Options{})
	defer e.Close()

	assert.ErrorIs(t, e.Start(context.Background()), model.ErrDeviceEnumeration)

	_, err := e.TakePhoto(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = e.TogglePreview()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStart_RetryAfterOpenFailure(t *testing.T) {
	p := sim.New(sim.Options{}, devices()...)
	defer p.Close()
	e := New(p, &sim.SurfaceFactory{}, nil, Options{PreferredFacing: model.FacingBack, DisplayWidth: 1280, DisplayHeight: 720})

	p.SetAvailable("back", false)
	require.Eventually(t, p.Idle, time.Second, time.Millisecond)
	require.ErrorIs(t, e.Start(context.Background()), model.ErrDeviceOpen)
	assert.Equal(t, 1, p.AvailabilityListeners())

	p.SetAvailable("back", true)
	require.Eventually(t, p.Idle, time.Second, time.Millisecond)
	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, 1, p.AvailabilityListeners())

	require.NoError(t, e.Close())
	assert.Zero(t, p.AvailabilityListeners())

	p.SetAvailable("back", false)
	require.Eventually(t, p.Idle, time.Second, time.Millisecond)
	assert.True(t, e.registry.Available("back"), "closed engine still observes the platform")
}

func TestStart_Twice(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(context.Background()))
	assert.ErrorIs(t, f.engine.Start(context.Background()), ErrAlreadyStarted)
}

func TestTogglePreview(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(context.Background()))
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionReady) })

	on, err := f.engine.TogglePreview()
	require.NoError(t, err)
	assert.True(t, on)
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionActive) })

	on, err = f.engine.TogglePreview()
	require.NoError(t, err)
	assert.False(t, on)
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionReady) })
}

func TestTakePhoto(t *testing.T) {
	f := newFixture(t, Options{StartPreview: true})
	require.NoError(t, f.engine.Start(context.Background()))
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionActive) })

	seq, err := f.engine.TakePhoto(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.sink.count() == 1 }, 2*time.Second, 2*time.Millisecond)

	f.sink.mu.Lock()
	ph := f.sink.photos[0]
	f.sink.mu.Unlock()
	assert.Equal(t, seq, ph.SequenceID)
	assert.Equal(t, "back", ph.DeviceID)
	assert.Equal(t, 1280, ph.Width)
	assert.Equal(t, 720, ph.Height)

	f.eventually(t, func(s Snapshot) bool { return s.Dispatch.Repeating && !s.Dispatch.StillInFlight })
	assert.Zero(t, f.platform.Stats().Overlaps)
}

func TestRecreateAfterEviction(t *testing.T) {
	f := newFixture(t, Options{StartPreview: true, RecreateOnEviction: true})
	require.NoError(t, f.engine.Start(context.Background()))
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionActive) })
	first := f.engine.Snapshot().Session.SessionID

	f.platform.EvictSession("back")
	f.eventually(t, func(s Snapshot) bool {
		return s.Recreated == 1 && s.Session.State.Is(model.SessionActive)
	})
	assert.NotEqual(t, first, f.engine.Snapshot().Session.SessionID)

	// Only one automatic re-create.
	f.platform.EvictSession("back")
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionClosed) })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.engine.Snapshot().Recreated)
	assert.Empty(t, f.engine.Snapshot().Session.SessionID)
}

func TestNoRecreateWithoutPreview(t *testing.T) {
	f := newFixture(t, Options{RecreateOnEviction: true})
	require.NoError(t, f.engine.Start(context.Background()))
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionReady) })

	f.platform.EvictSession("back")
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionClosed) })
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, f.engine.Snapshot().Recreated)
}

func TestExposurePercent(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(context.Background()))
	f.eventually(t, func(s Snapshot) bool { return s.Session.State.Is(model.SessionReady) })

	assert.NoError(t, f.engine.SetExposurePercent(50))
	assert.NoError(t, f.engine.SetSensitivityPercent(100))
	assert.ErrorIs(t, f.engine.SetExposurePercent(101), model.ErrParameterOutOfRange)
	assert.ErrorIs(t, f.engine.SetSensitivityPercent(-1), model.ErrParameterOutOfRange)
}

func TestExposurePercent_Unsupported(t *testing.T) {
	f := newFixture(t, Options{PreferredFacing: model.FacingFront})
	require.NoError(t, f.engine.Start(context.Background()))
	assert.ErrorIs(t, f.engine.SetExposurePercent(10), model.ErrParameterUnsupported)
}

func TestClose_Idempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := sim.New(sim.Options{}, devices()...)
	e := New(p, &sim.SurfaceFactory{}, nil, Options{PreferredFacing: model.FacingBack, DisplayWidth: 1280, DisplayHeight: 720, StartPreview: true})
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	p.Close()

	assert.Equal(t, int64(1), p.Stats().DeviceCloses)
	assert.True(t, e.Snapshot().Session.State.Is(model.SessionClosed))
	assert.ErrorIs(t, e.Start(context.Background()), ErrEngineClosed)
	_, err := e.TakePhoto(context.Background())
	assert.ErrorIs(t, err, ErrEngineClosed)
}
