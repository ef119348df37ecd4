// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
)

var (
	errReleased     = errors.New("sim: object already released")
	errNilSurface   = errors.New("sim: nil surface")
	errForeignValue = errors.New("sim: object not created by this platform")
)

// SurfaceKind distinguishes display windows from image readers.
type SurfaceKind int

const (
	KindWindow SurfaceKind = iota
	KindImageReader
)

// Surface is a simulated output destination. Windows count delivered preview
// frames; image readers encode stills at their configured size.
type Surface struct {
	id     string
	kind   SurfaceKind
	format model.PixelFormat

	mu  sync.Mutex
	res model.Resolution

	frames atomic.Int64
}

// NewWindow creates a display surface.
func NewWindow(id string) *Surface {
	return &Surface{id: id, kind: KindWindow, format: model.FormatYUV420}
}

// NewImageReader creates a still-capture surface producing images of the given size.
func NewImageReader(id string, res model.Resolution, format model.PixelFormat) *Surface {
	return &Surface{id: id, kind: KindImageReader, format: format, res: res}
}

func (s *Surface) SurfaceID() string { return s.id }

// SetBuffersGeometry resizes the surface buffers.
func (s *Surface) SetBuffersGeometry(res model.Resolution) {
	s.mu.Lock()
	s.res = res
	s.mu.Unlock()
}

// Resolution returns the current buffer size.
func (s *Surface) Resolution() model.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res
}

// Frames returns the number of preview frames delivered to a window.
func (s *Surface) Frames() int64 {
	return s.frames.Load()
}

type releaser struct {
	released atomic.Bool
	count    *atomic.Int64
}

func (r *releaser) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.count.Add(1)
	}
}

type output struct {
	releaser
	surface *Surface
}

type target struct {
	releaser
	surface *Surface
}

type container struct {
	releaser
	mu      sync.Mutex
	outputs []*output
}

func (c *container) Add(o ports.Output) error {
	out, ok := o.(*output)
	if !ok {
		return errForeignValue
	}
	if c.released.Load() {
		return errReleased
	}
	c.mu.Lock()
	c.outputs = append(c.outputs, out)
	c.mu.Unlock()
	return nil
}

type request struct {
	releaser
	template model.RequestTemplate

	mu      sync.Mutex
	targets []*target
	params  map[model.RequestKey]int64
}

func (r *request) AddTarget(t ports.Target) error {
	tg, ok := t.(*target)
	if !ok {
		return errForeignValue
	}
	if r.released.Load() {
		return errReleased
	}
	r.mu.Lock()
	r.targets = append(r.targets, tg)
	r.mu.Unlock()
	return nil
}

func (r *request) Set(key model.RequestKey, value int64) error {
	if r.released.Load() {
		return errReleased
	}
	r.mu.Lock()
	r.params[key] = value
	r.mu.Unlock()
	return nil
}

// Param returns a request parameter as last set.
func (r *request) Param(key model.RequestKey) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.params[key]
	return v, ok
}

func (r *request) surfaces() []*Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Surface, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t.surface)
	}
	return out
}
