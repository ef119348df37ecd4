// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package negotiate picks preview and still output sizes that match the
// aspect ratio of the display surface.
package negotiate

import (
	"fmt"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/metrics"
)

// Policy selects among same-aspect streaming configurations.
type Policy string

const (
	// PolicySmallest keeps the fewest pixels to minimise per-frame conversion cost.
	PolicySmallest Policy = "smallest"
	// PolicyLargest keeps the most pixels.
	PolicyLargest Policy = "largest"
)

// ParsePolicy validates a policy name. Empty selects PolicySmallest.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySmallest:
		return PolicySmallest, nil
	case PolicyLargest:
		return PolicyLargest, nil
	}
	return "", fmt.Errorf("unknown negotiation policy %q", s)
}

// Options configure a Negotiator.
type Options struct {
	StreamingFormat model.PixelFormat
	StillFormat     model.PixelFormat
	Policy          Policy
	// Fallback is used in landscape form when no same-aspect streaming entry exists.
	Fallback model.Resolution
}

// DefaultOptions returns YUV preview, JPEG still, smallest preview, 640x480 fallback.
func DefaultOptions() Options {
	return Options{
		StreamingFormat: model.FormatYUV420,
		StillFormat:     model.FormatJPEG,
		Policy:          PolicySmallest,
		Fallback:        model.Resolution{Width: 640, Height: 480},
	}
}

// Result is the outcome of one negotiation.
type Result struct {
	Preview model.CapturedResolution
	Still   model.CapturedResolution
	// ExactMatch is false when the fallback size was used.
	ExactMatch bool
}

// Negotiator is stateless apart from its options and safe for concurrent use.
type Negotiator struct {
	opts Options
}

// New creates a negotiator. Zero-valued option fields take their defaults.
func New(opts Options) *Negotiator {
	def := DefaultOptions()
	if opts.StreamingFormat == "" {
		opts.StreamingFormat = def.StreamingFormat
	}
	if opts.StillFormat == "" {
		opts.StillFormat = def.StillFormat
	}
	if opts.Policy == "" {
		opts.Policy = def.Policy
	}
	if opts.Fallback.IsZero() {
		opts.Fallback = def.Fallback
	}
	opts.Fallback = landscape(opts.Fallback)
	return &Negotiator{opts: opts}
}

// Options returns the effective options.
func (n *Negotiator) Options() Options {
	return n.opts
}

// Negotiate never fails; ExactMatch=false signals the degraded fallback path.
func (n *Negotiator) Negotiate(displayWidth, displayHeight int, device model.CameraDescriptor) Result {
	disp, portrait := normalize(model.Resolution{Width: displayWidth, Height: displayHeight})
	if rot := ((device.SensorOrientation % 360) + 360) % 360; rot == 90 || rot == 270 {
		portrait = !portrait
	}

	var (
		preview, still model.Resolution
		found          bool
		foundStill     bool
	)
	if !disp.IsZero() {
		for _, cfg := range device.Configurations {
			if cfg.Input {
				continue
			}
			res, _ := normalize(model.Resolution{Width: cfg.Width, Height: cfg.Height})
			if res.IsZero() || !disp.SameAspect(res) {
				continue
			}
			switch cfg.Format {
			case n.opts.StreamingFormat:
				if !found || n.better(res, preview) {
					preview = res
					found = true
				}
			case n.opts.StillFormat:
				if !foundStill || res.Pixels() > still.Pixels() {
					still = res
					foundStill = true
				}
			}
		}
	}

	metrics.IncNegotiation(found)
	if !found {
		preview = n.opts.Fallback
		still = n.opts.Fallback
	} else if !foundStill {
		still = preview
	}

	return Result{
		Preview: model.CapturedResolution{
			Role:       model.RolePreview,
			Format:     n.opts.StreamingFormat,
			Resolution: orient(preview, portrait),
		},
		Still: model.CapturedResolution{
			Role:       model.RoleStillCapture,
			Format:     n.opts.StillFormat,
			Resolution: orient(still, portrait),
		},
		ExactMatch: found,
	}
}

func (n *Negotiator) better(candidate, current model.Resolution) bool {
	if n.opts.Policy == PolicyLargest {
		return candidate.Pixels() > current.Pixels()
	}
	return candidate.Pixels() < current.Pixels()
}

// normalize returns r with the larger dimension first and whether it was swapped.
func normalize(r model.Resolution) (model.Resolution, bool) {
	if r.Height > r.Width {
		return model.Resolution{Width: r.Height, Height: r.Width}, true
	}
	return r, false
}

func landscape(r model.Resolution) model.Resolution {
	out, _ := normalize(r)
	return out
}

func orient(r model.Resolution, portrait bool) model.Resolution {
	if portrait {
		return model.Resolution{Width: r.Height, Height: r.Width}
	}
	return r
}
