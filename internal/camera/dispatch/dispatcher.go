// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dispatch drives preview and still-capture requests through a bound
// session so that the two never overlap.
//
// All dispatcher state lives under the session controller's lock: application
// calls reach it through Controller.WithHandle and platform notifications
// through the session.Observer methods, which the controller invokes with the
// lock held.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/camsession/internal/camera/lifecycle"
	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/session"
	xglog "github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/metrics"
	"github.com/ManuGH/camsession/internal/telemetry"
)

// PhotoSink receives completed stills. HandlePhoto is called with the
// controller lock held and must not block.
type PhotoSink interface {
	HandlePhoto(p model.Photo)
}

// PhotoSinkFunc adapts a function to PhotoSink.
type PhotoSinkFunc func(model.Photo)

func (f PhotoSinkFunc) HandlePhoto(p model.Photo) { f(p) }

// Snapshot is a read-only view of the dispatcher.
type Snapshot struct {
	PreviewWanted    bool `json:"preview_wanted"`
	PreviewDeferred  bool `json:"preview_deferred"`
	Repeating        bool `json:"repeating"`
	InflightSequence int  `json:"inflight_sequence,omitempty"`
	StillInFlight    bool `json:"still_in_flight"`
	Resumes          int  `json:"preview_resumes"`
}

type stillCapture struct {
	seq     int
	span    trace.Span
	image   *model.StillImage
	session string
	device  string
}

// Dispatcher is the CaptureDispatcher.
type Dispatcher struct {
	ctrl   *session.Controller
	sink   PhotoSink
	tracer trace.Tracer
	logger zerolog.Logger

	// guarded by the controller lock
	previewWanted bool
	deferred      bool
	inflight      *stillCapture
	lastCompleted *stillCapture
	resumes       int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTracer overrides the tracer used for capture spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// New creates a dispatcher and installs it as the controller's observer.
func New(ctrl *session.Controller, sink PhotoSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ctrl:   ctrl,
		sink:   sink,
		tracer: telemetry.Tracer("github.com/ManuGH/camsession/internal/camera/dispatch"),
		logger: xglog.WithComponent("dispatch"),
	}
	for _, o := range opts {
		o(d)
	}
	ctrl.SetObserver(d)
	return d
}

// StartPreview submits the preview request as the repeating request. It is a
// no-op while preview is already repeating or a still is in flight, and is
// deferred until READY when the session has not confirmed yet.
func (d *Dispatcher) StartPreview() error {
	return d.ctrl.WithHandle(func(h *session.Handle) error {
		if !h.Bound() || h.State().Is(model.SessionClosed) {
			return model.ErrSessionClosed
		}
		d.previewWanted = true
		if !h.State().IsSet() {
			d.deferred = true
			d.logger.Debug().
				Str(xglog.FieldEvent, "dispatch.preview_deferred").
				Str(xglog.FieldSessionID, h.SessionID()).
				Msg("preview start deferred until session ready")
			return nil
		}
		if h.Repeating() || d.inflight != nil {
			return nil
		}
		return d.submitPreviewLocked(h)
	})
}

// StopPreview stops the repeating request. READY is confirmed asynchronously.
func (d *Dispatcher) StopPreview() error {
	return d.ctrl.WithHandle(func(h *session.Handle) error {
		d.previewWanted = false
		d.deferred = false
		if !h.Repeating() {
			return nil
		}
		if err := h.StopRepeating(); err != nil {
			return err
		}
		d.logger.Info().
			Str(xglog.FieldEvent, "dispatch.preview_stopped").
			Str(xglog.FieldSessionID, h.SessionID()).
			Msg("preview stopped")
		return nil
	})
}

// CapturePhoto stops a repeating preview, then submits one still capture and
// records its sequence id as in flight. It returns ErrCaptureBusy while a
// previous still has not completed.
func (d *Dispatcher) CapturePhoto(ctx context.Context) (int, error) {
	var seq int
	err := d.ctrl.WithHandle(func(h *session.Handle) error {
		if err := h.Err(); err != nil {
			return err
		}
		if d.inflight != nil {
			metrics.IncCapture("busy")
			return model.ErrCaptureBusy
		}

		if h.Repeating() {
			if err := h.StopRepeating(); err != nil {
				return err
			}
		}

		desc := h.Descriptor()
		_, span := d.tracer.Start(ctx, "camera.capture_photo",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(telemetry.CaptureAttributes(desc.ID, h.SessionID(), 0)...),
		)

		s, err := h.Capture(model.RoleStillCapture)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submit failed")
			span.End()
			d.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "dispatch.capture_submit_failed").
				Msg("still capture submission failed")
			d.resumePreviewLocked(h)
			return err
		}

		span.SetAttributes(telemetry.CaptureAttributes("", "", s)...)
		d.dropLastCompletedLocked()
		d.inflight = &stillCapture{seq: s, span: span, session: h.SessionID(), device: desc.ID}
		seq = s
		metrics.IncCapture("submitted")
		logger := xglog.WithContext(xglog.ContextWithCapture(ctx, desc.ID, h.SessionID(), s), d.logger)
		logger.Info().
			Str(xglog.FieldEvent, "dispatch.capture_submitted").
			Msg("still capture submitted")
		return nil
	})
	return seq, err
}

// UpdateParameter validates value against the device range and applies it to
// both role requests. A running preview is re-submitted so the value takes
// effect.
func (d *Dispatcher) UpdateParameter(key model.RequestKey, value int64) error {
	return d.ctrl.WithHandle(func(h *session.Handle) error {
		if !h.Bound() {
			return model.ErrSessionClosed
		}
		rng, ok := h.Descriptor().Range(key)
		if !ok {
			return model.ErrParameterUnsupported
		}
		if !rng.Contains(value) {
			return model.ErrParameterOutOfRange
		}
		if err := h.SetParameter(key, value); err != nil {
			return err
		}
		d.logger.Debug().
			Str(xglog.FieldEvent, "dispatch.parameter_set").
			Str("key", string(key)).
			Int64("value", value).
			Msg("capture parameter updated")
		if h.Repeating() {
			_, err := h.SetRepeating(model.RolePreview)
			return err
		}
		return nil
	})
}

// Snapshot returns a read-only view.
func (d *Dispatcher) Snapshot() Snapshot {
	var s Snapshot
	_ = d.ctrl.WithHandle(func(h *session.Handle) error {
		s = Snapshot{
			PreviewWanted:   d.previewWanted,
			PreviewDeferred: d.deferred,
			Repeating:       h.Repeating(),
			StillInFlight:   d.inflight != nil,
			Resumes:         d.resumes,
		}
		if d.inflight != nil {
			s.InflightSequence = d.inflight.seq
		}
		return nil
	})
	return s
}

// SessionStateChanged implements session.Observer.
func (d *Dispatcher) SessionStateChanged(h *session.Handle, tr lifecycle.Transition) {
	switch tr.To {
	case model.SessionReady:
		if d.deferred {
			d.deferred = false
			if !h.Repeating() && d.inflight == nil {
				if err := d.submitPreviewLocked(h); err != nil {
					d.logger.Warn().Err(err).
						Str(xglog.FieldEvent, "dispatch.deferred_preview_failed").
						Msg("deferred preview start failed")
				}
			}
		}
	case model.SessionClosed:
		d.deferred = false
		if c := d.inflight; c != nil {
			c.span.SetStatus(codes.Error, "session closed")
			c.span.End()
			d.logger.Info().
				Str(xglog.FieldEvent, "dispatch.capture_discarded").
				Int(xglog.FieldSequenceID, c.seq).
				Msg("in-flight still discarded on close")
		}
		d.inflight = nil
		d.dropLastCompletedLocked()
	}
}

// dropLastCompletedLocked ends the span of a completed still whose image
// never arrived.
func (d *Dispatcher) dropLastCompletedLocked() {
	c := d.lastCompleted
	if c == nil {
		return
	}
	d.lastCompleted = nil
	c.span.SetAttributes(attributeOutcome("no_image"))
	c.span.SetStatus(codes.Error, "image not delivered")
	c.span.End()
	metrics.IncCapture("no_image")
	d.logger.Warn().
		Str(xglog.FieldEvent, "dispatch.capture_image_missing").
		Int(xglog.FieldSequenceID, c.seq).
		Msg("still completed without an image")
}

// CaptureEvent implements session.Observer. Only events for the in-flight
// still, or a late image for the most recently completed one, are acted on.
func (d *Dispatcher) CaptureEvent(h *session.Handle, ev session.CaptureEvent) {
	if c := d.inflight; c != nil && c.seq == ev.SequenceID {
		switch ev.Kind {
		case session.CaptureImage:
			c.image = ev.Image
		case session.CaptureSequenceEnd:
			d.inflight = nil
			d.resumePreviewLocked(h)
			metrics.IncCapture("completed")
			if c.image != nil {
				d.emitLocked(c)
				return
			}
			d.lastCompleted = c
		case session.CaptureSequenceAborted, session.CaptureFailed:
			d.inflight = nil
			outcome := "aborted"
			if ev.Kind == session.CaptureFailed {
				outcome = "failed"
			}
			d.resumePreviewLocked(h)
			metrics.IncCapture(outcome)
			c.span.SetAttributes(attributeOutcome(outcome))
			c.span.SetStatus(codes.Error, "capture "+outcome)
			c.span.End()
			d.logger.Warn().
				Str(xglog.FieldEvent, "dispatch.capture_"+outcome).
				Int(xglog.FieldSequenceID, c.seq).
				Msg("still capture did not complete, preview resumed")
		}
		return
	}

	if c := d.lastCompleted; c != nil && c.seq == ev.SequenceID && ev.Kind == session.CaptureImage {
		c.image = ev.Image
		d.lastCompleted = nil
		d.emitLocked(c)
		return
	}

	if ev.Kind != session.CaptureImage && ev.Kind != session.CaptureSequenceEnd {
		d.logger.Debug().
			Str(xglog.FieldEvent, "dispatch.capture_event_ignored").
			Int(xglog.FieldSequenceID, ev.SequenceID).
			Msg("capture event for another sequence")
	}
}

func (d *Dispatcher) submitPreviewLocked(h *session.Handle) error {
	seq, err := h.SetRepeating(model.RolePreview)
	if err != nil {
		return err
	}
	d.previewWanted = true
	d.logger.Info().
		Str(xglog.FieldEvent, "dispatch.preview_started").
		Str(xglog.FieldSessionID, h.SessionID()).
		Int(xglog.FieldSequenceID, seq).
		Msg("preview repeating request submitted")
	return nil
}

// resumePreviewLocked re-submits the preview once a still has finished.
func (d *Dispatcher) resumePreviewLocked(h *session.Handle) {
	if !h.Bound() || h.State().Is(model.SessionClosed) || h.Repeating() {
		return
	}
	if err := d.submitPreviewLocked(h); err != nil {
		d.logger.Error().Err(err).
			Str(xglog.FieldEvent, "dispatch.preview_resume_failed").
			Msg("preview resume failed")
		return
	}
	d.resumes++
	metrics.PreviewResumesTotal.Inc()
}

func (d *Dispatcher) emitLocked(c *stillCapture) {
	img := c.image
	res := model.Resolution{Width: img.Width, Height: img.Height}
	c.span.SetAttributes(attributeOutcome("completed"))
	c.span.SetAttributes(telemetry.ImageAttributes(string(img.Format), res.String(), len(img.Data))...)
	c.span.End()

	d.logger.Info().
		Str(xglog.FieldEvent, "dispatch.photo_captured").
		Str(xglog.FieldSessionID, c.session).
		Int(xglog.FieldSequenceID, c.seq).
		Str(xglog.FieldResolution, res.String()).
		Int(xglog.FieldOrientation, img.Orientation).
		Int("bytes", len(img.Data)).
		Msg("still captured")

	if d.sink == nil {
		return
	}
	d.sink.HandlePhoto(model.Photo{
		DeviceID:    c.device,
		SessionID:   c.session,
		SequenceID:  c.seq,
		Format:      img.Format,
		Width:       img.Width,
		Height:      img.Height,
		Orientation: img.Orientation,
		CapturedAt:  img.Timestamp,
		Data:        img.Data,
	})
}

func attributeOutcome(outcome string) attribute.KeyValue {
	return attribute.String(telemetry.CameraOutcomeKey, outcome)
}
