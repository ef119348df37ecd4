// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
)

// binding is everything acquired for one capture session, in acquisition order.
type binding struct {
	id  string
	gen uint64

	container ports.OutputContainer
	outputs   []ports.Output
	targets   []ports.Target
	requests  map[model.OutputRole]ports.CaptureRequest
	session   ports.Session

	// repeating is true between a successful SetRepeatingRequest and StopRepeating.
	repeating bool
	released  bool
}

func newBinding() *binding {
	return &binding{requests: make(map[model.OutputRole]ports.CaptureRequest, 2)}
}

// release frees session resources: the session, then requests and targets,
// then outputs and the container. It runs at most once.
func (b *binding) release() (freed int) {
	if b.released {
		return 0
	}
	b.released = true
	b.repeating = false
	if b.session != nil {
		_ = b.session.Close()
		freed++
	}
	for _, role := range []model.OutputRole{model.RolePreview, model.RoleStillCapture} {
		if req, ok := b.requests[role]; ok {
			req.Release()
			freed++
		}
	}
	for _, t := range b.targets {
		t.Release()
		freed++
	}
	for _, o := range b.outputs {
		o.Release()
		freed++
	}
	if b.container != nil {
		b.container.Release()
		freed++
	}
	return freed
}
