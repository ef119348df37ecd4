// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine is the camera context object. One Engine is constructed by
// the owner before any platform callback is registered and is passed to every
// caller; callbacks may then arrive on any goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/camera/dispatch"
	"github.com/ManuGH/camsession/internal/camera/lifecycle"
	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/negotiate"
	"github.com/ManuGH/camsession/internal/camera/ports"
	"github.com/ManuGH/camsession/internal/camera/registry"
	"github.com/ManuGH/camsession/internal/camera/session"
	xglog "github.com/ManuGH/camsession/internal/log"
)

var (
	ErrNotStarted     = errors.New("engine not started")
	ErrAlreadyStarted = errors.New("engine already started")
	ErrEngineClosed   = errors.New("engine closed")
)

// SurfaceProvider creates output surfaces sized for the negotiated resolutions.
type SurfaceProvider interface {
	Surfaces(preview, still model.CapturedResolution) (ports.Surface, ports.Surface, error)
}

// Options configure an Engine.
type Options struct {
	PreferredFacing model.Facing
	DisplayWidth    int
	DisplayHeight   int
	Negotiation     negotiate.Options
	// StartPreview requests preview as soon as the session is ready.
	StartPreview bool
	// RecreateOnEviction re-creates the session, at most once per engine, after
	// the platform closes it while the device stays open and preview was wanted.
	RecreateOnEviction bool
	Dispatch           []dispatch.Option
}

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	DeviceID   string                   `json:"device_id,omitempty"`
	Facing     model.Facing             `json:"facing,omitempty"`
	Session    session.Snapshot         `json:"session"`
	Dispatch   dispatch.Snapshot        `json:"dispatch"`
	Preview    model.CapturedResolution `json:"preview"`
	Still      model.CapturedResolution `json:"still"`
	ExactMatch bool                     `json:"exact_match"`
	Recreated  int                      `json:"sessions_recreated"`
}

// Engine wires registry, negotiator, controller and dispatcher.
type Engine struct {
	opts     Options
	platform ports.Platform
	surfaces SurfaceProvider
	logger   zerolog.Logger

	registry   *registry.Registry
	negotiator *negotiate.Negotiator
	exec       *session.Executor
	ctrl       *session.Controller
	disp       *dispatch.Dispatcher

	mu        sync.Mutex
	started   bool
	closed    bool
	device    ports.Device
	desc      model.CameraDescriptor
	result    negotiate.Result
	stopWatch func()
	recreated int
}

// New builds an engine. Nothing touches the platform until Start.
func New(platform ports.Platform, surfaces SurfaceProvider, sink dispatch.PhotoSink, opts Options) *Engine {
	reg := registry.New(platform)
	exec := session.NewExecutor()
	ctrl := session.New(platform, reg, exec)
	e := &Engine{
		opts:       opts,
		platform:   platform,
		surfaces:   surfaces,
		logger:     xglog.WithComponent("engine"),
		registry:   reg,
		negotiator: negotiate.New(opts.Negotiation),
		exec:       exec,
		ctrl:       ctrl,
	}
	e.disp = dispatch.New(ctrl, sink, opts.Dispatch...)
	ctrl.OnTransition(e.onTransition)
	return e
}

// Start enumerates devices, selects and opens one, negotiates resolutions and
// requests a capture session. It returns before the session is ready.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}

	if _, err := e.registry.Enumerate(ctx); err != nil {
		return err
	}
	// Registered once; a Start retried after a failed open reuses it.
	if e.stopWatch == nil {
		e.stopWatch = e.registry.Watch()
	}

	desc, err := e.registry.SelectDefault(e.opts.PreferredFacing)
	if err != nil {
		return err
	}
	e.result = e.negotiator.Negotiate(e.opts.DisplayWidth, e.opts.DisplayHeight, desc)
	logEv := e.logger.Info()
	if !e.result.ExactMatch {
		logEv = e.logger.Warn()
	}
	logEv.
		Str(xglog.FieldEvent, "engine.negotiated").
		Str(xglog.FieldDeviceID, desc.ID).
		Str("preview", e.result.Preview.Resolution.String()).
		Str("still", e.result.Still.Resolution.String()).
		Bool("exact_match", e.result.ExactMatch).
		Msg("resolutions negotiated")

	dev, err := e.ctrl.Open(desc)
	if err != nil {
		return err
	}
	e.device = dev
	e.desc = desc

	if err := e.createSessionLocked(); err != nil {
		_ = e.ctrl.Close()
		e.device = nil
		return err
	}
	e.started = true

	if e.opts.StartPreview {
		if err := e.disp.StartPreview(); err != nil {
			return fmt.Errorf("start preview: %w", err)
		}
	}
	return nil
}

func (e *Engine) createSessionLocked() error {
	preview, still, err := e.surfaces.Surfaces(e.result.Preview, e.result.Still)
	if err != nil {
		return &model.SessionCreateError{Err: err}
	}
	id, err := e.ctrl.CreateSession(preview, still, e.device)
	if err != nil {
		return err
	}
	e.logger.Info().
		Str(xglog.FieldEvent, "engine.session_requested").
		Str(xglog.FieldSessionID, id).
		Str(xglog.FieldDeviceID, e.desc.ID).
		Msg("capture session requested")
	return nil
}

// onTransition runs on the executor after each applied transition.
func (e *Engine) onTransition(tr lifecycle.Transition) {
	if tr.To != model.SessionClosed || !e.opts.RecreateOnEviction {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.started || e.recreated > 0 {
		return
	}
	// Device still held means the platform evicted only the session.
	if !e.ctrl.DeviceOpen() || !e.disp.Snapshot().PreviewWanted {
		return
	}
	if err := e.createSessionLocked(); err != nil {
		e.logger.Error().Err(err).
			Str(xglog.FieldEvent, "engine.recreate_failed").
			Msg("session re-create after eviction failed")
		return
	}
	e.recreated++
	if err := e.disp.StartPreview(); err != nil {
		e.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "engine.recreate_preview_failed").
			Msg("preview request after re-create failed")
	}
}

// TogglePreview starts preview when it is off and stops it when it is on.
// It reports whether preview is now wanted.
func (e *Engine) TogglePreview() (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	s := e.disp.Snapshot()
	if s.PreviewWanted || s.Repeating {
		return false, e.disp.StopPreview()
	}
	return true, e.disp.StartPreview()
}

// StartPreview forwards to the dispatcher.
func (e *Engine) StartPreview() error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.disp.StartPreview()
}

// StopPreview forwards to the dispatcher.
func (e *Engine) StopPreview() error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.disp.StopPreview()
}

// TakePhoto submits a still capture and returns its sequence id.
func (e *Engine) TakePhoto(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.disp.CapturePhoto(ctx)
}

// SetExposurePercent maps pct (0..100) onto the device exposure range.
func (e *Engine) SetExposurePercent(pct int) error {
	return e.setPercent(model.KeyExposureTime, pct)
}

// SetSensitivityPercent maps pct (0..100) onto the device sensitivity range.
func (e *Engine) SetSensitivityPercent(pct int) error {
	return e.setPercent(model.KeySensitivity, pct)
}

func (e *Engine) setPercent(key model.RequestKey, pct int) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	rng, ok := e.desc.Range(key)
	e.mu.Unlock()
	if !ok {
		return model.ErrParameterUnsupported
	}
	if pct < 0 || pct > 100 {
		return model.ErrParameterOutOfRange
	}
	return e.disp.UpdateParameter(key, rng.AtPercent(pct))
}

func (e *Engine) ready() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return ErrEngineClosed
	case !e.started:
		return ErrNotStarted
	}
	return nil
}

// Cameras returns the known descriptors.
func (e *Engine) Cameras() []model.CameraDescriptor {
	return e.registry.Descriptors()
}

// Available reports whether the registry considers a device available.
func (e *Engine) Available(id string) bool {
	return e.registry.Available(id)
}

// Snapshot returns a read-only view of the whole engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	s := Snapshot{
		DeviceID:   e.desc.ID,
		Facing:     e.desc.Facing,
		Preview:    e.result.Preview,
		Still:      e.result.Still,
		ExactMatch: e.result.ExactMatch,
		Recreated:  e.recreated,
	}
	e.mu.Unlock()
	s.Session = e.ctrl.Snapshot()
	s.Dispatch = e.disp.Snapshot()
	return s
}

// Flush waits until every platform notification received so far is applied.
func (e *Engine) Flush(ctx context.Context) error {
	return e.exec.Flush(ctx)
}

// Close releases the session and device and stops the worker. It is safe to
// call more than once and must not be called from a transition hook.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	stop := e.stopWatch
	e.mu.Unlock()

	err := e.ctrl.Close()
	if stop != nil {
		stop()
	}
	e.exec.Close()
	e.logger.Info().Str(xglog.FieldEvent, "engine.closed").Msg("camera engine closed")
	return err
}
