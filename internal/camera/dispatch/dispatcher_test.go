// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/registry"
	"github.com/ManuGH/camsession/internal/camera/session"
	"github.com/ManuGH/camsession/internal/camera/sim"
	"github.com/ManuGH/camsession/internal/telemetry"
)

func camera() model.CameraDescriptor {
	return model.CameraDescriptor{
		ID:                "0",
		Facing:            model.FacingBack,
		SensorOrientation: 90,
		Configurations: []model.StreamConfiguration{
			{Format: model.FormatYUV420, Width: 640, Height: 480},
			{Format: model.FormatJPEG, Width: 640, Height: 480},
		},
		ExposureRange:    model.Range{Min: 1000, Max: 1_000_000},
		SensitivityRange: model.Range{Min: 100, Max: 800},
	}
}

type photos struct {
	mu  sync.Mutex
	got []model.Photo
}

func (p *photos) HandlePhoto(ph model.Photo) {
	p.mu.Lock()
	p.got = append(p.got, ph)
	p.mu.Unlock()
}

func (p *photos) list() []model.Photo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Photo(nil), p.got...)
}

type harness struct {
	platform *sim.Platform
	exec     *session.Executor
	ctrl     *session.Controller
	disp     *Dispatcher
	photos   *photos
	spans    *tracetest.SpanRecorder
}

func newHarness(t *testing.T, opts sim.Options, desc model.CameraDescriptor) *harness {
	t.Helper()
	p := sim.New(opts, desc)
	reg := registry.New(p)
	_, err := reg.Enumerate(context.Background())
	require.NoError(t, err)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	exec := session.NewExecutor()
	ctrl := session.New(p, reg, exec)
	ph := &photos{}
	disp := New(ctrl, ph, WithTracer(tp.Tracer("test")))

	t.Cleanup(func() {
		_ = ctrl.Close()
		p.Close()
		exec.Close()
		_ = tp.Shutdown(context.Background())
	})

	dev, err := ctrl.Open(desc)
	require.NoError(t, err)
	_, err = ctrl.CreateSession(
		sim.NewWindow("preview"),
		sim.NewImageReader("still", model.Resolution{Width: 640, Height: 480}, model.FormatJPEG),
		dev,
	)
	require.NoError(t, err)
	return &harness{platform: p, exec: exec, ctrl: ctrl, disp: disp, photos: ph, spans: rec}
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.exec.Flush(ctx))
}

func (h *harness) waitState(t *testing.T, want model.SessionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.flush(t)
		return h.ctrl.State().Is(want)
	}, 2*time.Second, 2*time.Millisecond)
}

func (h *harness) waitIdleStill(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.flush(t)
		s := h.disp.Snapshot()
		return !s.StillInFlight && s.Repeating
	}, 2*time.Second, 2*time.Millisecond)
	// Let trailing callbacks of the sequence drain.
	time.Sleep(20 * time.Millisecond)
	h.flush(t)
}

func TestCapturePhoto_StopsPreviewAndResumesOnce(t *testing.T) {
	h := newHarness(t, sim.Options{}, camera())
	h.waitState(t, model.SessionReady)

	require.NoError(t, h.disp.StartPreview())
	h.waitState(t, model.SessionActive)

	seq, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	assert.Positive(t, seq)

	require.Eventually(t, func() bool { return len(h.photos.list()) == 1 }, 2*time.Second, 2*time.Millisecond)
	h.waitIdleStill(t)

	stats := h.platform.Stats()
	assert.Zero(t, stats.Overlaps, "still submitted while preview was repeating")
	assert.Equal(t, int64(1), stats.StopRepeats)
	assert.Equal(t, int64(2), stats.RepeatingSubmits)
	assert.Equal(t, 1, h.disp.Snapshot().Resumes)

	ph := h.photos.list()[0]
	assert.Equal(t, seq, ph.SequenceID)
	assert.Equal(t, "0", ph.DeviceID)
	assert.Equal(t, 90, ph.Orientation)
	assert.Equal(t, 640, ph.Width)
	assert.NotEmpty(t, ph.Data)
}

func TestCapturePhoto_ResumesPreviewEvenIfNotRunning(t *testing.T) {
	h := newHarness(t, sim.Options{}, camera())
	h.waitState(t, model.SessionReady)

	_, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	h.waitIdleStill(t)

	assert.Equal(t, int64(1), h.platform.Stats().RepeatingSubmits)
	assert.Zero(t, h.platform.Stats().Overlaps)
}

func TestCapturePhoto_Busy(t *testing.T) {
	h := newHarness(t, sim.Options{NotificationDelay: 20 * time.Millisecond}, camera())
	h.waitState(t, model.SessionReady)

	_, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	_, err = h.disp.CapturePhoto(context.Background())
	assert.ErrorIs(t, err, model.ErrCaptureBusy)

	h.waitIdleStill(t)
	_, err = h.disp.CapturePhoto(context.Background())
	assert.NoError(t, err)
}

func TestCapturePhoto_FailureResumesPreview(t *testing.T) {
	h := newHarness(t, sim.Options{}, camera())
	h.waitState(t, model.SessionReady)
	require.NoError(t, h.disp.StartPreview())
	h.waitState(t, model.SessionActive)

	h.platform.FailNextCapture(1)
	_, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	h.waitIdleStill(t)

	assert.Empty(t, h.photos.list())
	assert.Equal(t, 1, h.disp.Snapshot().Resumes)
	assert.Equal(t, int64(2), h.platform.Stats().RepeatingSubmits)

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String(telemetry.CameraOutcomeKey, "failed"))
}

func TestCapturePhoto_AbortResumesPreview(t *testing.T) {
	h := newHarness(t, sim.Options{}, camera())
	h.waitState(t, model.SessionReady)
	require.NoError(t, h.disp.StartPreview())
	h.waitState(t, model.SessionActive)

	h.platform.AbortNextCapture(1)
	_, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	h.waitIdleStill(t)

	assert.Empty(t, h.photos.list())
	assert.Equal(t, 1, h.disp.Snapshot().Resumes)
}

func TestCapturePhoto_ImageAfterSequenceEnd(t *testing.T) {
	h := newHarness(t, sim.Options{ImageAfterSequenceEnd: true}, camera())
	h.waitState(t, model.SessionReady)

	seq, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(h.photos.list()) == 1 }, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, seq, h.photos.list()[0].SequenceID)
	h.waitIdleStill(t)
	assert.Equal(t, 1, h.disp.Snapshot().Resumes)
}

func TestCapturePhoto_Span(t *testing.T) {
	h := newHarness(t, sim.Options{}, camera())
	h.waitState(t, model.SessionReady)

	seq, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(h.spans.Ended()) == 1 }, 2*time.Second, 2*time.Millisecond)

	span := h.spans.Ended()[0]
	assert.Equal(t, "camera.capture_photo", span.Name())
	assert.NotEqual(t, codes.Error, span.Status().Code)
	attrs := span.Attributes()
	assert.Contains(t, attrs, attribute.String(telemetry.CameraDeviceKey, "0"))
	assert.Contains(t, attrs, attribute.Int(telemetry.CameraSequenceKey, seq))
	assert.Contains(t, attrs, attribute.String(telemetry.CameraOutcomeKey, "completed"))
}

func TestCapturePhoto_NotReady(t *testing.T) {
	h := newHarness(t, sim.Options{NotificationDelay: 30 * time.Millisecond}, camera())

	_, err := h.disp.CapturePhoto(context.Background())
	assert.ErrorIs(t, err, model.ErrSessionNotReady)
}

func TestStartPreview_DeferredUntilReady(t *testing.T) {
	h := newHarness(t, sim.Options{NotificationDelay: 30 * time.Millisecond}, camera())

	require.NoError(t, h.disp.StartPreview())
	s := h.disp.Snapshot()
	assert.True(t, s.PreviewDeferred)
	assert.False(t, s.Repeating)

	h.waitState(t, model.SessionActive)
	s = h.disp.Snapshot()
	assert.False(t, s.PreviewDeferred)
	assert.True(t, s.Repeating)
	assert.Equal(t, int64(1), h.platform.Stats().RepeatingSubmits)
}

func TestStartPreview_Idempotent(t *testing.T) {
	h := newHarness(t, sim.Options{}, camera())
	h.waitState(t, model.SessionReady)

	require.NoError(t, h.disp.StartPreview())
	require.NoError(t, h.disp.StartPreview())
	h.waitState(t, model.SessionActive)
	require.NoError(t, h.disp.StartPreview())
	assert.Equal(t, int64(1), h.platform.Stats().RepeatingSubmits)

	require.NoError(t, h.disp.StopPreview())
	h.waitState(t, model.SessionReady)
	require.NoError(t, h.disp.StopPreview())
	assert.Equal(t, int64(1), h.platform.Stats().StopRepeats)
	assert.False(t, h.disp.Snapshot().PreviewWanted)
}

func TestAfterClose(t *testing.T) {
	h := newHarness(t, sim.Options{}, camera())
	h.waitState(t, model.SessionReady)
	require.NoError(t, h.ctrl.Close())

	_, err := h.disp.CapturePhoto(context.Background())
	assert.ErrorIs(t, err, model.ErrSessionClosed)
	assert.ErrorIs(t, h.disp.StartPreview(), model.ErrSessionClosed)
	assert.ErrorIs(t, h.disp.UpdateParameter(model.KeySensitivity, 200), model.ErrSessionClosed)
	assert.NoError(t, h.disp.StopPreview())
}

func TestCloseWithStillInFlight(t *testing.T) {
	h := newHarness(t, sim.Options{NotificationDelay: 20 * time.Millisecond}, camera())
	h.waitState(t, model.SessionReady)

	_, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Close())

	s := h.disp.Snapshot()
	assert.False(t, s.StillInFlight)

	time.Sleep(100 * time.Millisecond)
	h.flush(t)
	assert.Empty(t, h.photos.list())
	assert.Zero(t, h.disp.Snapshot().Resumes)

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "session closed", spans[0].Status().Description)
}

func TestCloseEndsSpanOfStillWithoutImage(t *testing.T) {
	h := newHarness(t, sim.Options{NotificationDelay: 20 * time.Millisecond}, camera())
	h.waitState(t, model.SessionReady)

	seq, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.ctrl.WithHandle(func(hd *session.Handle) error {
		h.disp.CaptureEvent(hd, session.CaptureEvent{Kind: session.CaptureSequenceEnd, SequenceID: seq})
		return nil
	}))
	assert.False(t, h.disp.Snapshot().StillInFlight)
	assert.Empty(t, h.spans.Ended())

	require.NoError(t, h.ctrl.Close())
	time.Sleep(100 * time.Millisecond)
	h.flush(t)

	assert.Empty(t, h.photos.list())
	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "image not delivered", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String(telemetry.CameraOutcomeKey, "no_image"))
}

func TestCaptureEvent_IgnoresOtherSequences(t *testing.T) {
	h := newHarness(t, sim.Options{NotificationDelay: 20 * time.Millisecond}, camera())
	h.waitState(t, model.SessionReady)

	seq, err := h.disp.CapturePhoto(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ctrl.WithHandle(func(hd *session.Handle) error {
		h.disp.CaptureEvent(hd, session.CaptureEvent{Kind: session.CaptureSequenceEnd, SequenceID: seq + 100})
		h.disp.CaptureEvent(hd, session.CaptureEvent{Kind: session.CaptureFailed, SequenceID: seq - 1})
		return nil
	}))
	s := h.disp.Snapshot()
	assert.True(t, s.StillInFlight)
	assert.Equal(t, seq, s.InflightSequence)
	assert.Zero(t, s.Resumes)
}

func TestUpdateParameter(t *testing.T) {
	desc := camera()
	desc.ExposureRange = model.Range{}
	h := newHarness(t, sim.Options{}, desc)
	h.waitState(t, model.SessionReady)

	assert.ErrorIs(t, h.disp.UpdateParameter(model.KeyExposureTime, 5000), model.ErrParameterUnsupported)
	assert.ErrorIs(t, h.disp.UpdateParameter(model.KeySensitivity, 5000), model.ErrParameterOutOfRange)
	require.NoError(t, h.disp.UpdateParameter(model.KeySensitivity, 400))
	assert.Zero(t, h.platform.Stats().RepeatingSubmits)

	require.NoError(t, h.disp.StartPreview())
	require.NoError(t, h.disp.UpdateParameter(model.KeySensitivity, 800))
	assert.Equal(t, int64(2), h.platform.Stats().RepeatingSubmits)
}
