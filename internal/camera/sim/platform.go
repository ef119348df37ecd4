// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sim is an in-process camera stack. It honours the ordering contract
// of a real stack: every callback is delivered on one notification goroutine,
// and callbacks of one session arrive in the order their requests were queued.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
)

var (
	ErrUnknownCamera = errors.New("sim: unknown camera")
	ErrCameraInUse   = errors.New("sim: camera in use")
	ErrUnavailable   = errors.New("sim: camera unavailable")
	ErrClosed        = errors.New("sim: closed")
	ErrInjected      = errors.New("sim: injected failure")
)

// Options tune the simulated stack.
type Options struct {
	// NotificationDelay is slept before each callback is delivered.
	NotificationDelay time.Duration
	// FrameRate paces preview frames on window targets. Zero disables frames.
	FrameRate int
	// ImageAfterSequenceEnd delivers stills after the sequence-end callback.
	ImageAfterSequenceEnd bool
}

// Stats counts calls the core made into the stack.
type Stats struct {
	RepeatingSubmits int64
	Captures         int64
	StopRepeats      int64
	// Overlaps counts still captures submitted while a repeating request was live.
	Overlaps      int64
	Releases      int64
	SessionCloses int64
	DeviceCloses  int64
}

type cameraEntry struct {
	desc      model.CameraDescriptor
	available bool
	device    *device
}

// Platform implements ports.Platform.
type Platform struct {
	opts     Options
	notifier *notifier

	mu        sync.Mutex
	order     []string
	cameras   map[string]*cameraEntry
	listeners map[int]ports.AvailabilityListener
	nextLID   int
	nextSeq   int
	failNext  int
	abortNext int
	closed    bool

	frameWG sync.WaitGroup

	releases         atomic.Int64
	repeatingSubmits atomic.Int64
	captures         atomic.Int64
	stopRepeats      atomic.Int64
	overlaps         atomic.Int64
	sessionCloses    atomic.Int64
	deviceCloses     atomic.Int64
}

// New creates a platform exposing the given devices.
func New(opts Options, devices ...model.CameraDescriptor) *Platform {
	p := &Platform{
		opts:      opts,
		notifier:  newNotifier(opts.NotificationDelay),
		cameras:   make(map[string]*cameraEntry, len(devices)),
		listeners: make(map[int]ports.AvailabilityListener),
	}
	for _, d := range devices {
		p.order = append(p.order, d.ID)
		p.cameras[d.ID] = &cameraEntry{desc: d.Clone(), available: true}
	}
	return p
}

func (p *Platform) CameraIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	return append([]string(nil), p.order...), nil
}

func (p *Platform) Characteristics(_ context.Context, id string) (model.CameraDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cameras[id]
	if !ok {
		return model.CameraDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownCamera, id)
	}
	return c.desc.Clone(), nil
}

func (p *Platform) RegisterAvailability(l ports.AvailabilityListener) func() {
	p.mu.Lock()
	id := p.nextLID
	p.nextLID++
	p.listeners[id] = l
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Platform) OpenDevice(id string, l ports.DeviceListener) (ports.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	c, ok := p.cameras[id]
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCamera, id)
	case !c.available:
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, id)
	case c.device != nil:
		return nil, fmt.Errorf("%w: %s", ErrCameraInUse, id)
	}
	d := &device{platform: p, id: id, listener: l}
	c.device = d
	return d, nil
}

func (p *Platform) NewOutputContainer() (ports.OutputContainer, error) {
	return &container{releaser: releaser{count: &p.releases}}, nil
}

func (p *Platform) NewOutput(s ports.Surface) (ports.Output, error) {
	surf, err := asSurface(s)
	if err != nil {
		return nil, err
	}
	return &output{releaser: releaser{count: &p.releases}, surface: surf}, nil
}

func (p *Platform) NewTarget(s ports.Surface) (ports.Target, error) {
	surf, err := asSurface(s)
	if err != nil {
		return nil, err
	}
	return &target{releaser: releaser{count: &p.releases}, surface: surf}, nil
}

func asSurface(s ports.Surface) (*Surface, error) {
	if s == nil {
		return nil, errNilSurface
	}
	surf, ok := s.(*Surface)
	if !ok || surf == nil {
		return nil, errNilSurface
	}
	return surf, nil
}

// Stats returns a snapshot of call counters.
func (p *Platform) Stats() Stats {
	return Stats{
		RepeatingSubmits: p.repeatingSubmits.Load(),
		Captures:         p.captures.Load(),
		StopRepeats:      p.stopRepeats.Load(),
		Overlaps:         p.overlaps.Load(),
		Releases:         p.releases.Load(),
		SessionCloses:    p.sessionCloses.Load(),
		DeviceCloses:     p.deviceCloses.Load(),
	}
}

// AvailabilityListeners returns the number of registered availability listeners.
func (p *Platform) AvailabilityListeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Idle reports whether all queued callbacks have been delivered.
func (p *Platform) Idle() bool {
	return p.notifier.idle()
}

// Close stops preview frames and the notification goroutine.
func (p *Platform) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, c := range p.cameras {
		if c.device != nil {
			c.device.stopFramesLocked()
		}
	}
	p.mu.Unlock()
	p.frameWG.Wait()
	p.notifier.stop()
}

// FailNextCapture makes the next n still captures report failure.
func (p *Platform) FailNextCapture(n int) {
	p.mu.Lock()
	p.failNext += n
	p.mu.Unlock()
}

// AbortNextCapture makes the next n still captures abort.
func (p *Platform) AbortNextCapture(n int) {
	p.mu.Lock()
	p.abortNext += n
	p.mu.Unlock()
}

// SetAvailable flips availability and notifies availability listeners.
func (p *Platform) SetAvailable(id string, available bool) {
	p.mu.Lock()
	c, ok := p.cameras[id]
	if ok {
		c.available = available
	}
	listeners := p.availabilityListenersLocked()
	p.mu.Unlock()
	if !ok {
		return
	}
	p.notifier.post(func() {
		for _, l := range listeners {
			if available {
				l.OnCameraAvailable(id)
			} else {
				l.OnCameraUnavailable(id)
			}
		}
	})
}

// Disconnect removes a camera. An open device gets OnDisconnected and its
// session is closed.
func (p *Platform) Disconnect(id string) {
	p.mu.Lock()
	c, ok := p.cameras[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.cameras, id)
	order := p.order[:0]
	for _, o := range p.order {
		if o != id {
			order = append(order, o)
		}
	}
	p.order = order
	listeners := p.availabilityListenersLocked()
	d := c.device
	if d != nil {
		d.evictLocked()
		l := d.listener
		p.notifier.post(func() { l.OnDisconnected(id) })
	}
	p.mu.Unlock()

	p.notifier.post(func() {
		for _, l := range listeners {
			l.OnCameraUnavailable(id)
		}
	})
}

// InjectDeviceError reports an asynchronous fault on an open device.
func (p *Platform) InjectDeviceError(id string, code model.DeviceErrorCode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cameras[id]
	if !ok || c.device == nil {
		return
	}
	l := c.device.listener
	p.notifier.post(func() { l.OnError(id, code) })
}

// EvictSession closes the current session of an open device, as when another
// client takes over the pipeline.
func (p *Platform) EvictSession(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cameras[id]
	if !ok || c.device == nil {
		return
	}
	c.device.evictLocked()
}

// Request exposes a request's parameters for assertions.
func (p *Platform) Request(r ports.CaptureRequest) (map[model.RequestKey]int64, bool) {
	req, ok := r.(*request)
	if !ok {
		return nil, false
	}
	req.mu.Lock()
	defer req.mu.Unlock()
	out := make(map[model.RequestKey]int64, len(req.params))
	for k, v := range req.params {
		out[k] = v
	}
	return out, true
}

func (p *Platform) availabilityListenersLocked() []ports.AvailabilityListener {
	out := make([]ports.AvailabilityListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		out = append(out, l)
	}
	return out
}

func (p *Platform) nextSequenceLocked() int {
	p.nextSeq++
	return p.nextSeq
}
