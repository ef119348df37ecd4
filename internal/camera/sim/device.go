// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
)

var errEmptyContainer = errors.New("sim: output container has no outputs")

type device struct {
	platform *Platform
	id       string
	listener ports.DeviceListener

	// guarded by platform.mu
	closed  bool
	session *session
}

func (d *device) ID() string { return d.id }

func (d *device) CreateRequest(tmpl model.RequestTemplate) (ports.CaptureRequest, error) {
	p := d.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return &request{
		releaser: releaser{count: &p.releases},
		template: tmpl,
		params:   make(map[model.RequestKey]int64),
	}, nil
}

func (d *device) CreateSession(outputs ports.OutputContainer, l ports.SessionListener) (ports.Session, error) {
	p := d.platform
	c, ok := outputs.(*container)
	if !ok {
		return nil, errForeignValue
	}
	c.mu.Lock()
	n := len(c.outputs)
	c.mu.Unlock()
	if n == 0 {
		return nil, errEmptyContainer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.session != nil {
		d.session.closeLocked()
	}
	s := &session{device: d, container: c, listener: l}
	d.session = s
	p.notifier.post(l.OnReady)
	return s, nil
}

func (d *device) Close() error {
	p := d.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	p.deviceCloses.Add(1)
	if d.session != nil {
		d.session.closeLocked()
	}
	if c, ok := p.cameras[d.id]; ok && c.device == d {
		c.device = nil
	}
	return nil
}

func (d *device) evictLocked() {
	if d.session != nil {
		d.session.closeLocked()
	}
}

func (d *device) stopFramesLocked() {
	if d.session != nil {
		d.session.stopFramesLocked()
	}
}

type session struct {
	device    *device
	container *container
	listener  ports.SessionListener

	// guarded by platform.mu
	closed        bool
	active        bool
	repeating     *request
	repeatingSeq  int
	pendingStills int
	frameCancel   context.CancelFunc
}

func (s *session) SetRepeatingRequest(r ports.CaptureRequest) (int, error) {
	req, ok := r.(*request)
	if !ok {
		return 0, errForeignValue
	}
	if req.released.Load() {
		return 0, errReleased
	}
	p := s.device.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	p.repeatingSubmits.Add(1)
	seq := p.nextSequenceLocked()
	if s.repeating != nil {
		prev := s.repeatingSeq
		s.stopFramesLocked()
		p.notifier.post(func() { s.listener.OnCaptureSequenceEnd(prev) })
	}
	s.repeating = req
	s.repeatingSeq = seq
	s.startFramesLocked(req)
	if !s.active {
		s.active = true
		p.notifier.post(s.listener.OnActive)
	}
	return seq, nil
}

func (s *session) StopRepeating() error {
	p := s.device.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	p.stopRepeats.Add(1)
	if s.repeating == nil {
		return nil
	}
	seq := s.repeatingSeq
	s.stopFramesLocked()
	s.repeating = nil
	p.notifier.post(func() {
		s.listener.OnCaptureSequenceEnd(seq)
		s.settle()
	})
	return nil
}

type captureOutcome int

const (
	outcomeComplete captureOutcome = iota
	outcomeFail
	outcomeAbort
)

func (s *session) Capture(r ports.CaptureRequest) (int, error) {
	req, ok := r.(*request)
	if !ok {
		return 0, errForeignValue
	}
	if req.released.Load() {
		return 0, errReleased
	}
	p := s.device.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	p.captures.Add(1)
	if s.repeating != nil {
		p.overlaps.Add(1)
	}
	seq := p.nextSequenceLocked()
	outcome := outcomeComplete
	switch {
	case p.failNext > 0:
		p.failNext--
		outcome = outcomeFail
	case p.abortNext > 0:
		p.abortNext--
		outcome = outcomeAbort
	}
	s.pendingStills++
	if !s.active {
		s.active = true
		p.notifier.post(s.listener.OnActive)
	}

	orientation, _ := req.Param(model.KeyJPEGOrientation)
	reader := stillReader(req)
	imageAfter := p.opts.ImageAfterSequenceEnd
	p.notifier.post(func() {
		p.mu.Lock()
		closed := s.closed
		p.mu.Unlock()

		l := s.listener
		switch {
		case closed || outcome == outcomeAbort:
			l.OnCaptureSequenceAborted(seq)
		case outcome == outcomeFail:
			l.OnCaptureFailed(seq)
			l.OnCaptureSequenceEnd(seq)
		default:
			var img *model.StillImage
			if reader != nil {
				img = encodeStill(reader, seq, int(orientation), time.Now())
			}
			if img != nil && !imageAfter {
				l.OnImageAvailable(*img)
			}
			l.OnCaptureSequenceEnd(seq)
			if img != nil && imageAfter {
				l.OnImageAvailable(*img)
			}
		}

		p.mu.Lock()
		s.pendingStills--
		p.mu.Unlock()
		s.settle()
	})
	return seq, nil
}

// settle reports READY once nothing is in flight. Runs on the notifier.
func (s *session) settle() {
	p := s.device.platform
	p.mu.Lock()
	ready := !s.closed && s.active && s.repeating == nil && s.pendingStills == 0
	if ready {
		s.active = false
	}
	p.mu.Unlock()
	if ready {
		s.listener.OnReady()
	}
}

func (s *session) Close() error {
	p := s.device.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *session) closeLocked() {
	if s.closed {
		return
	}
	p := s.device.platform
	s.closed = true
	s.active = false
	s.stopFramesLocked()
	s.repeating = nil
	if s.device.session == s {
		s.device.session = nil
	}
	p.sessionCloses.Add(1)
	p.notifier.post(s.listener.OnClosed)
}

func (s *session) startFramesLocked(req *request) {
	p := s.device.platform
	if p.opts.FrameRate <= 0 || p.closed {
		return
	}
	var windows []*Surface
	for _, surf := range req.surfaces() {
		if surf.kind == KindWindow {
			windows = append(windows, surf)
		}
	}
	if len(windows) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.frameCancel = cancel
	lim := rate.NewLimiter(rate.Limit(p.opts.FrameRate), 1)
	p.frameWG.Add(1)
	go func() {
		defer p.frameWG.Done()
		for {
			if err := lim.Wait(ctx); err != nil {
				return
			}
			for _, w := range windows {
				w.frames.Add(1)
			}
		}
	}()
}

func (s *session) stopFramesLocked() {
	if s.frameCancel != nil {
		s.frameCancel()
		s.frameCancel = nil
	}
}

func stillReader(req *request) *Surface {
	for _, surf := range req.surfaces() {
		if surf.kind == KindImageReader {
			return surf
		}
	}
	return nil
}
