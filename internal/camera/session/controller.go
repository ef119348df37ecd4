// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session owns an open capture device and its capture session.
//
// Application calls (Open, CreateSession, Close and the dispatcher's requests)
// act directly under the controller lock and never wait for the platform.
// Platform notifications are posted to a single-worker Executor and applied
// there under the same lock, so per-session callback order is preserved and
// every state change is serialized.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/camera/lifecycle"
	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
	"github.com/ManuGH/camsession/internal/camera/registry"
	xglog "github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/metrics"
)

var (
	ErrSessionExists = errors.New("capture session already bound")
	ErrNoDevice      = errors.New("no device open")
	ErrForeignDevice = errors.New("device handle not owned by this controller")
	errNilSurface    = errors.New("nil surface")
)

// CaptureEventKind classifies capture-scoped notifications.
type CaptureEventKind int

const (
	CaptureSequenceEnd CaptureEventKind = iota
	CaptureSequenceAborted
	CaptureFailed
	CaptureImage
)

// CaptureEvent is a capture notification routed to the Observer.
type CaptureEvent struct {
	Kind       CaptureEventKind
	SequenceID int
	Image      *model.StillImage
}

// Observer reacts to confirmed transitions and capture notifications.
// Both methods run on the executor with the controller lock held; they may use
// the Handle but must not call back into the Controller.
type Observer interface {
	SessionStateChanged(h *Handle, tr lifecycle.Transition)
	CaptureEvent(h *Handle, ev CaptureEvent)
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	DeviceID  string              `json:"device_id,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	State     model.OptionalState `json:"-"`
	StateName string              `json:"state"`
	Owned     bool                `json:"owned"`
	Repeating bool                `json:"repeating"`
}

// Controller is the SessionController.
type Controller struct {
	platform ports.Platform
	registry *registry.Registry
	exec     *Executor
	logger   zerolog.Logger

	mu       sync.Mutex
	device   ports.Device
	desc     model.CameraDescriptor
	owned    bool
	sess     *binding
	state    model.OptionalState
	gen      uint64
	observer Observer
	hooks    []func(lifecycle.Transition)
}

// New creates a controller. The registry's disconnect notifications are wired
// so that losing the open device forces the session closed.
func New(platform ports.Platform, reg *registry.Registry, exec *Executor) *Controller {
	c := &Controller{
		platform: platform,
		registry: reg,
		exec:     exec,
		logger:   xglog.WithComponent("session"),
	}
	reg.OnDisconnect(c.deviceGone)
	return c
}

// SetObserver installs the capture observer. Call before CreateSession.
func (c *Controller) SetObserver(o Observer) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// OnTransition registers fn to run on the executor, without the lock held,
// after each applied transition.
func (c *Controller) OnTransition(fn func(lifecycle.Transition)) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Open requests exclusive access to the described device.
func (c *Controller) Open(desc model.CameraDescriptor) (ports.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil, &model.OpenError{DeviceID: desc.ID, Reason: model.OpenInUse}
	}
	if _, known := c.registry.Get(desc.ID); !known {
		return nil, &model.OpenError{DeviceID: desc.ID, Reason: model.OpenUnknown, Err: model.ErrUnknownDevice}
	}
	if !c.registry.Available(desc.ID) {
		return nil, &model.OpenError{DeviceID: desc.ID, Reason: model.OpenUnavailable}
	}

	dev, err := c.platform.OpenDevice(desc.ID, deviceListener{c: c})
	if err != nil {
		c.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "session.open_failed").
			Str(xglog.FieldDeviceID, desc.ID).
			Msg("device open failed")
		return nil, &model.OpenError{DeviceID: desc.ID, Reason: model.OpenPlatform, Err: err}
	}

	c.device = dev
	c.desc = desc.Clone()
	c.owned = true
	c.logger.Info().
		Str(xglog.FieldEvent, "session.device_opened").
		Str(xglog.FieldDeviceID, desc.ID).
		Str(xglog.FieldFacing, string(desc.Facing)).
		Int(xglog.FieldOrientation, desc.SensorOrientation).
		Msg("device opened")
	return dev, nil
}

// CreateSession builds one output container holding both roles, one request per
// role, and asks the platform for a session. It returns before the session is
// ready; READY is observable only after the platform confirms it.
func (c *Controller) CreateSession(preview, still ports.Surface, dev ports.Device) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return "", &model.SessionCreateError{Err: ErrNoDevice}
	}
	if dev != c.device {
		return "", &model.SessionCreateError{Err: ErrForeignDevice}
	}
	if c.sess != nil && !c.sess.released {
		return "", &model.SessionCreateError{Err: ErrSessionExists}
	}

	b := newBinding()
	if err := c.buildLocked(b, preview, still); err != nil {
		b.release()
		return "", err
	}

	c.gen++
	b.gen = c.gen
	b.id = uuid.NewString()
	sess, err := c.device.CreateSession(b.container, sessionListener{c: c, gen: b.gen})
	if err != nil {
		b.release()
		return "", &model.SessionCreateError{Err: err}
	}
	b.session = sess
	c.sess = b
	c.state = model.OptionalState{}

	c.logger.Info().
		Str(xglog.FieldEvent, "session.created").
		Str(xglog.FieldDeviceID, c.desc.ID).
		Str(xglog.FieldSessionID, b.id).
		Msg("capture session requested")
	return b.id, nil
}

func (c *Controller) buildLocked(b *binding, preview, still ports.Surface) error {
	container, err := c.platform.NewOutputContainer()
	if err != nil {
		return &model.SessionCreateError{Err: err}
	}
	b.container = container

	roles := []struct {
		role    model.OutputRole
		surface ports.Surface
	}{
		{model.RolePreview, preview},
		{model.RoleStillCapture, still},
	}
	for _, r := range roles {
		if r.surface == nil {
			return &model.SessionCreateError{Role: r.role, Err: errNilSurface}
		}
		out, err := c.platform.NewOutput(r.surface)
		if err != nil {
			return &model.SessionCreateError{Role: r.role, Err: err}
		}
		b.outputs = append(b.outputs, out)
		if err := container.Add(out); err != nil {
			return &model.SessionCreateError{Role: r.role, Err: err}
		}

		tgt, err := c.platform.NewTarget(r.surface)
		if err != nil {
			return &model.SessionCreateError{Role: r.role, Err: err}
		}
		b.targets = append(b.targets, tgt)

		req, err := c.device.CreateRequest(model.TemplateFor(r.role))
		if err != nil {
			return &model.SessionCreateError{Role: r.role, Err: err}
		}
		b.requests[r.role] = req
		if err := req.AddTarget(tgt); err != nil {
			return &model.SessionCreateError{Role: r.role, Err: err}
		}
	}

	if err := b.requests[model.RoleStillCapture].Set(model.KeyJPEGOrientation, int64(c.desc.JPEGOrientation())); err != nil {
		return &model.SessionCreateError{Role: model.RoleStillCapture, Err: err}
	}
	return nil
}

// Close stops any repeating request and releases everything in reverse order
// of acquisition. Calling it again is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil && (c.sess == nil || c.sess.released) {
		c.logger.Debug().Str(xglog.FieldEvent, "session.close_noop").Msg("controller already closed")
		return nil
	}
	c.teardownLocked(lifecycle.EvCloseRequested, true)
	return nil
}

// teardownLocked moves to CLOSED and releases session and device resources.
func (c *Controller) teardownLocked(ev lifecycle.EventKind, stopRepeating bool) {
	if b := c.sess; b != nil && !b.released {
		if stopRepeating && (c.state.Is(model.SessionActive) || b.repeating) {
			if err := b.session.StopRepeating(); err != nil {
				c.logger.Debug().Err(err).Str(xglog.FieldEvent, "session.stop_repeating_failed").Msg("stop repeating on close")
			}
			b.repeating = false
		}
		c.applyLocked(ev)
		freed := b.release()
		c.logger.Debug().
			Str(xglog.FieldEvent, "session.released").
			Str(xglog.FieldSessionID, b.id).
			Int("resources", freed).
			Msg("session resources released")
	}
	if c.device != nil {
		id := c.device.ID()
		if err := c.device.Close(); err != nil {
			c.logger.Warn().Err(err).Str(xglog.FieldEvent, "session.device_close_failed").Msg("device close failed")
		}
		c.device = nil
		c.owned = false
		c.logger.Info().
			Str(xglog.FieldEvent, "session.device_closed").
			Str(xglog.FieldDeviceID, id).
			Msg("device closed")
	}
}

// applyLocked resolves ev against the table, applies it, and informs the
// observer. Forbidden events are logged and discarded.
func (c *Controller) applyLocked(ev lifecycle.EventKind) bool {
	tr, reason, ok := lifecycle.Next(c.state, ev)
	if !ok {
		metrics.IncDiscarded(reason)
		c.logger.Warn().
			Str(xglog.FieldEvent, "session.notification_discarded").
			Str(xglog.FieldReason, reason).
			Str("notification", ev.String()).
			Str(xglog.FieldOldState, c.state.String()).
			Msg("session notification discarded")
		return false
	}

	from := c.state
	c.state = model.StateOf(tr.To)
	fromLabel, _ := from.Get()
	metrics.IncTransition(string(fromLabel), string(tr.To))
	c.logger.Info().
		Str(xglog.FieldEvent, "session.transition").
		Str(xglog.FieldOldState, from.String()).
		Str(xglog.FieldNewState, string(tr.To)).
		Str("trigger", ev.String()).
		Msg("session state changed")

	if c.observer != nil {
		c.observer.SessionStateChanged(&Handle{c: c, b: c.sess}, tr)
	}
	if len(c.hooks) > 0 {
		hooks := slices.Clone(c.hooks)
		c.exec.Post(func() {
			for _, fn := range hooks {
				fn(tr)
			}
		})
	}
	return true
}

// onSessionEvent runs on the executor.
func (c *Controller) onSessionEvent(gen uint64, ev lifecycle.EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A released binding already applied its terminal state; the platform's
	// own OnClosed for it is expected and not a duplicate.
	if c.sess == nil || c.sess.gen != gen || c.sess.released {
		metrics.IncDiscarded("stale_session")
		c.logger.Debug().
			Str(xglog.FieldEvent, "session.notification_discarded").
			Str(xglog.FieldReason, "stale_session").
			Str("notification", ev.String()).
			Msg("notification for a previous session")
		return
	}
	if !c.applyLocked(ev) {
		return
	}
	if ev == lifecycle.EvSessionClosed && !c.sess.released {
		// The platform evicted the session; the device stays open.
		c.sess.release()
		c.logger.Warn().
			Str(xglog.FieldEvent, "session.evicted").
			Str(xglog.FieldSessionID, c.sess.id).
			Msg("capture session closed by platform")
	}
}

// onCaptureEvent runs on the executor.
func (c *Controller) onCaptureEvent(gen uint64, ev CaptureEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || c.sess.gen != gen || c.sess.released {
		metrics.IncDiscarded("stale_session")
		return
	}
	if c.observer != nil {
		c.observer.CaptureEvent(&Handle{c: c, b: c.sess}, ev)
	}
}

// deviceGone runs after the registry drops a disconnected device.
func (c *Controller) deviceGone(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil || c.device.ID() != deviceID {
		return
	}
	c.logger.Warn().
		Str(xglog.FieldEvent, "session.device_disconnected").
		Str(xglog.FieldDeviceID, deviceID).
		Msg("open device disconnected")
	c.teardownLocked(lifecycle.EvDeviceDisconnected, false)
}

// onDeviceError marks the device unavailable and drops ownership. An open
// session stays bound.
func (c *Controller) onDeviceError(deviceID string, code model.DeviceErrorCode) {
	metrics.IncDeviceError(string(code))
	c.registry.SetAvailable(deviceID, false)

	c.mu.Lock()
	if c.device != nil && c.device.ID() == deviceID {
		c.owned = false
	}
	c.mu.Unlock()

	c.logger.Error().
		Err(&model.DeviceError{DeviceID: deviceID, Code: code}).
		Str(xglog.FieldEvent, "session.device_error").
		Str(xglog.FieldDeviceID, deviceID).
		Str("code", string(code)).
		Msg("device reported an error")
}

// WithHandle runs fn under the controller lock.
func (c *Controller) WithHandle(fn func(h *Handle) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(&Handle{c: c, b: c.sess})
}

// State returns the confirmed session state.
func (c *Controller) State() model.OptionalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Descriptor returns the cached descriptor of the open device.
func (c *Controller) Descriptor() (model.CameraDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return model.CameraDescriptor{}, false
	}
	return c.desc.Clone(), true
}

// DeviceOpen reports whether a device handle is held.
func (c *Controller) DeviceOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}

// Snapshot returns a read-only view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{State: c.state, StateName: c.state.String(), Owned: c.owned}
	if c.device != nil {
		s.DeviceID = c.device.ID()
	}
	if c.sess != nil && !c.sess.released {
		s.SessionID = c.sess.id
		s.Repeating = c.sess.repeating
	}
	return s
}

// Handle exposes the bound session to code running under the controller lock.
// It must not be retained past the call it was passed to.
type Handle struct {
	c *Controller
	b *binding
}

// Err reports why requests cannot be issued, or nil.
func (h *Handle) Err() error {
	if h.b == nil || h.b.released || h.c.state.Is(model.SessionClosed) {
		return model.ErrSessionClosed
	}
	if !h.c.state.IsSet() {
		return model.ErrSessionNotReady
	}
	return nil
}

// Bound reports whether a live session is bound, confirmed or not.
func (h *Handle) Bound() bool {
	return h.b != nil && !h.b.released
}

func (h *Handle) State() model.OptionalState { return h.c.state }

func (h *Handle) SessionID() string {
	if h.b == nil {
		return ""
	}
	return h.b.id
}

func (h *Handle) Descriptor() model.CameraDescriptor { return h.c.desc }

// Repeating reports whether the preview repeating request is live.
func (h *Handle) Repeating() bool {
	return h.Bound() && h.b.repeating
}

// SetRepeating submits the role's request as the repeating request.
func (h *Handle) SetRepeating(role model.OutputRole) (int, error) {
	req, err := h.request(role)
	if err != nil {
		return 0, err
	}
	seq, err := h.b.session.SetRepeatingRequest(req)
	if err != nil {
		return 0, fmt.Errorf("set repeating %s: %w", role, err)
	}
	h.b.repeating = true
	return seq, nil
}

// StopRepeating stops the repeating request. READY is confirmed later.
func (h *Handle) StopRepeating() error {
	if !h.Bound() {
		return model.ErrSessionClosed
	}
	if err := h.b.session.StopRepeating(); err != nil {
		return fmt.Errorf("stop repeating: %w", err)
	}
	h.b.repeating = false
	return nil
}

// Capture submits the role's request once and returns its sequence id.
func (h *Handle) Capture(role model.OutputRole) (int, error) {
	req, err := h.request(role)
	if err != nil {
		return 0, err
	}
	seq, err := h.b.session.Capture(req)
	if err != nil {
		return 0, fmt.Errorf("capture %s: %w", role, err)
	}
	return seq, nil
}

// SetParameter sets key on every role's request.
func (h *Handle) SetParameter(key model.RequestKey, value int64) error {
	if !h.Bound() {
		return model.ErrSessionClosed
	}
	for _, role := range []model.OutputRole{model.RolePreview, model.RoleStillCapture} {
		if err := h.b.requests[role].Set(key, value); err != nil {
			return fmt.Errorf("set %s on %s: %w", key, role, err)
		}
	}
	return nil
}

func (h *Handle) request(role model.OutputRole) (ports.CaptureRequest, error) {
	if !h.Bound() {
		return nil, model.ErrSessionClosed
	}
	req, ok := h.b.requests[role]
	if !ok {
		return nil, fmt.Errorf("no request for role %s", role)
	}
	return req, nil
}
