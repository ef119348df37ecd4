// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"fmt"
	"sync/atomic"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
)

// SurfaceFactory creates a window and an image reader sized for negotiated
// resolutions. The most recent pair stays reachable for inspection.
type SurfaceFactory struct {
	n    atomic.Int64
	last atomic.Pointer[[2]*Surface]
}

// Surfaces returns a fresh preview window and still reader.
func (f *SurfaceFactory) Surfaces(preview, still model.CapturedResolution) (ports.Surface, ports.Surface, error) {
	if still.IsZero() {
		return nil, nil, fmt.Errorf("sim: zero still resolution %s", still.Resolution)
	}
	n := f.n.Add(1)
	w := NewWindow(fmt.Sprintf("preview-%d", n))
	w.SetBuffersGeometry(preview.Resolution)
	r := NewImageReader(fmt.Sprintf("still-%d", n), still.Resolution, still.Format)
	f.last.Store(&[2]*Surface{w, r})
	return w, r, nil
}

// Last returns the most recently created window and reader.
func (f *SurfaceFactory) Last() (window, reader *Surface) {
	p := f.last.Load()
	if p == nil {
		return nil, nil
	}
	return p[0], p[1]
}
