// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"github.com/ManuGH/camsession/internal/camera/lifecycle"
	"github.com/ManuGH/camsession/internal/camera/model"
	xglog "github.com/ManuGH/camsession/internal/log"
)

// sessionListener forwards platform callbacks to the executor. It never blocks
// the platform thread and never touches controller state directly.
type sessionListener struct {
	c   *Controller
	gen uint64
}

func (l sessionListener) post(fn func()) {
	if !l.c.exec.Post(fn) {
		l.c.logger.Debug().
			Str(xglog.FieldEvent, "session.notification_dropped").
			Msg("executor closed, notification dropped")
	}
}

func (l sessionListener) state(ev lifecycle.EventKind) {
	l.post(func() { l.c.onSessionEvent(l.gen, ev) })
}

func (l sessionListener) capture(ev CaptureEvent) {
	l.post(func() { l.c.onCaptureEvent(l.gen, ev) })
}

func (l sessionListener) OnReady()  { l.state(lifecycle.EvSessionReady) }
func (l sessionListener) OnActive() { l.state(lifecycle.EvSessionActive) }
func (l sessionListener) OnClosed() { l.state(lifecycle.EvSessionClosed) }

func (l sessionListener) OnCaptureSequenceEnd(seq int) {
	l.capture(CaptureEvent{Kind: CaptureSequenceEnd, SequenceID: seq})
}

func (l sessionListener) OnCaptureSequenceAborted(seq int) {
	l.capture(CaptureEvent{Kind: CaptureSequenceAborted, SequenceID: seq})
}

func (l sessionListener) OnCaptureFailed(seq int) {
	l.capture(CaptureEvent{Kind: CaptureFailed, SequenceID: seq})
}

func (l sessionListener) OnImageAvailable(img model.StillImage) {
	l.capture(CaptureEvent{Kind: CaptureImage, SequenceID: img.SequenceID, Image: &img})
}

type deviceListener struct {
	c *Controller
}

func (l deviceListener) OnDisconnected(deviceID string) {
	l.c.exec.Post(func() {
		// The registry observer tears the device down; fall back to a direct
		// teardown when the registry no longer knew the id.
		if !l.c.registry.Disconnected(deviceID) {
			l.c.deviceGone(deviceID)
		}
	})
}

func (l deviceListener) OnError(deviceID string, code model.DeviceErrorCode) {
	l.c.exec.Post(func() { l.c.onDeviceError(deviceID, code) })
}
