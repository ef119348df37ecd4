// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"bytes"
	"context"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
)

func testCamera() model.CameraDescriptor {
	return model.CameraDescriptor{
		ID:     "0",
		Facing: model.FacingBack,
		Configurations: []model.StreamConfiguration{
			{Format: model.FormatYUV420, Width: 320, Height: 240},
			{Format: model.FormatJPEG, Width: 320, Height: 240},
		},
	}
}

// journal records callbacks in delivery order.
type journal struct {
	mu     sync.Mutex
	events []string
	images []model.StillImage
}

func (j *journal) add(ev string) {
	j.mu.Lock()
	j.events = append(j.events, ev)
	j.mu.Unlock()
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func (j *journal) OnReady()                     { j.add("ready") }
func (j *journal) OnActive()                    { j.add("active") }
func (j *journal) OnClosed()                    { j.add("closed") }
func (j *journal) OnCaptureSequenceEnd(int)     { j.add("end") }
func (j *journal) OnCaptureSequenceAborted(int) { j.add("aborted") }
func (j *journal) OnCaptureFailed(int)          { j.add("failed") }
func (j *journal) OnDisconnected(string)        { j.add("disconnected") }

func (j *journal) OnError(string, model.DeviceErrorCode) {
	j.add("error")
}

func (j *journal) OnImageAvailable(img model.StillImage) {
	j.mu.Lock()
	j.images = append(j.images, img)
	j.mu.Unlock()
	j.add("image")
}

type fixture struct {
	p       *Platform
	dev     ports.Device
	sess    ports.Session
	preview ports.CaptureRequest
	still   ports.CaptureRequest
	j       *journal
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	p := New(opts, testCamera())
	t.Cleanup(p.Close)

	j := &journal{}
	dev, err := p.OpenDevice("0", j)
	require.NoError(t, err)

	window := NewWindow("preview")
	reader := NewImageReader("still", model.Resolution{Width: 320, Height: 240}, model.FormatJPEG)

	c, err := p.NewOutputContainer()
	require.NoError(t, err)
	f := &fixture{p: p, dev: dev, j: j}
	for i, s := range []*Surface{window, reader} {
		out, err := p.NewOutput(s)
		require.NoError(t, err)
		require.NoError(t, c.Add(out))
		tgt, err := p.NewTarget(s)
		require.NoError(t, err)
		tmpl := model.TemplatePreview
		if i == 1 {
			tmpl = model.TemplateStillCapture
		}
		req, err := dev.CreateRequest(tmpl)
		require.NoError(t, err)
		require.NoError(t, req.AddTarget(tgt))
		if i == 0 {
			f.preview = req
		} else {
			f.still = req
		}
	}
	f.sess, err = dev.CreateSession(c, j)
	require.NoError(t, err)
	return f
}

func (f *fixture) waitEvents(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.j.snapshot()) >= n }, 2*time.Second, 2*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	return f.j.snapshot()
}

func TestSession_CallbackOrder(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.sess.SetRepeatingRequest(f.preview)
	require.NoError(t, err)
	require.NoError(t, f.sess.StopRepeating())
	f.waitEvents(t, 4)
	_, err = f.sess.Capture(f.still)
	require.NoError(t, err)

	got := f.waitEvents(t, 8)
	assert.Equal(t, []string{"ready", "active", "end", "ready", "active", "image", "end", "ready"}, got)
	assert.Zero(t, f.p.Stats().Overlaps)
}

func TestSession_ImageAfterSequenceEnd(t *testing.T) {
	f := newFixture(t, Options{ImageAfterSequenceEnd: true})

	_, err := f.sess.Capture(f.still)
	require.NoError(t, err)
	got := f.waitEvents(t, 5)
	assert.Equal(t, []string{"ready", "active", "end", "image", "ready"}, got)
}

func TestSession_OverlapCounted(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.sess.SetRepeatingRequest(f.preview)
	require.NoError(t, err)
	_, err = f.sess.Capture(f.still)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.p.Stats().Overlaps)
}

func TestSession_InjectedFaults(t *testing.T) {
	f := newFixture(t, Options{})
	f.p.FailNextCapture(1)
	f.p.AbortNextCapture(1)

	_, err := f.sess.Capture(f.still)
	require.NoError(t, err)
	f.waitEvents(t, 5)
	_, err = f.sess.Capture(f.still)
	require.NoError(t, err)

	got := f.waitEvents(t, 8)
	assert.Equal(t, []string{"ready", "active", "failed", "end", "ready", "active", "aborted", "ready"}, got)
}

func TestSession_StillIsJPEG(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.still.Set(model.KeyJPEGOrientation, 270))
	seq, err := f.sess.Capture(f.still)
	require.NoError(t, err)
	f.waitEvents(t, 5)

	f.j.mu.Lock()
	defer f.j.mu.Unlock()
	require.Len(t, f.j.images, 1)
	img := f.j.images[0]
	assert.Equal(t, seq, img.SequenceID)
	assert.Equal(t, 270, img.Orientation)
	assert.Equal(t, model.FormatJPEG, img.Format)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
}

func TestSession_Frames(t *testing.T) {
	p := New(Options{FrameRate: 200}, testCamera())
	defer p.Close()
	dev, err := p.OpenDevice("0", &journal{})
	require.NoError(t, err)

	window := NewWindow("preview")
	c, _ := p.NewOutputContainer()
	out, _ := p.NewOutput(window)
	require.NoError(t, c.Add(out))
	tgt, _ := p.NewTarget(window)
	req, _ := dev.CreateRequest(model.TemplatePreview)
	require.NoError(t, req.AddTarget(tgt))
	sess, err := dev.CreateSession(c, &journal{})
	require.NoError(t, err)

	_, err = sess.SetRepeatingRequest(req)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return window.Frames() > 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, sess.StopRepeating())
}

func TestOpenDevice_Exclusive(t *testing.T) {
	p := New(Options{}, testCamera())
	defer p.Close()

	_, err := p.OpenDevice("0", &journal{})
	require.NoError(t, err)
	_, err = p.OpenDevice("0", &journal{})
	assert.ErrorIs(t, err, ErrCameraInUse)
	_, err = p.OpenDevice("9", &journal{})
	assert.ErrorIs(t, err, ErrUnknownCamera)

	p.SetAvailable("0", false)
	ids, err := p.CameraIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, ids)
}

func TestRelease_CountedOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.preview.Release()
	f.preview.Release()
	assert.Equal(t, int64(1), f.p.Stats().Releases)

	_, err := f.sess.SetRepeatingRequest(f.preview)
	assert.ErrorIs(t, err, errReleased)
}

func TestDisconnect_EvictsAndNotifies(t *testing.T) {
	f := newFixture(t, Options{})
	f.p.Disconnect("0")

	got := f.waitEvents(t, 3)
	assert.Equal(t, []string{"ready", "closed", "disconnected"}, got)
	ids, err := f.p.CameraIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestClose_NoLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Options{FrameRate: 100, NotificationDelay: time.Millisecond}, testCamera())
	j := &journal{}
	dev, err := p.OpenDevice("0", j)
	require.NoError(t, err)
	window := NewWindow("w")
	c, _ := p.NewOutputContainer()
	out, _ := p.NewOutput(window)
	require.NoError(t, c.Add(out))
	tgt, _ := p.NewTarget(window)
	req, _ := dev.CreateRequest(model.TemplatePreview)
	require.NoError(t, req.AddTarget(tgt))
	sess, err := dev.CreateSession(c, j)
	require.NoError(t, err)
	_, err = sess.SetRepeatingRequest(req)
	require.NoError(t, err)

	p.Close()
	p.Close()
}
