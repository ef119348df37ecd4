// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ports defines the boundary between the capture-session core and the
// platform camera stack. Adapters translate native callbacks into the listener
// interfaces declared here; the core never sees native handles.
package ports

import (
	"context"

	"github.com/ManuGH/camsession/internal/camera/model"
)

// Surface is an opaque output destination (a display window or an image reader).
type Surface interface {
	SurfaceID() string
}

// Platform is the camera manager of the underlying stack.
type Platform interface {
	// CameraIDs lists the identifiers of all devices currently known to the stack.
	CameraIDs(ctx context.Context) ([]string, error)

	// Characteristics returns the static properties of one device.
	Characteristics(ctx context.Context, id string) (model.CameraDescriptor, error)

	// RegisterAvailability installs availability callbacks. The returned func removes them.
	RegisterAvailability(l AvailabilityListener) (unregister func())

	// OpenDevice requests exclusive access. Device faults are reported on l.
	OpenDevice(id string, l DeviceListener) (Device, error)

	NewOutputContainer() (OutputContainer, error)
	NewOutput(s Surface) (Output, error)
	NewTarget(s Surface) (Target, error)
}

// Device is an open capture device.
type Device interface {
	ID() string
	CreateRequest(tmpl model.RequestTemplate) (CaptureRequest, error)
	// CreateSession returns before the session is usable; readiness arrives on l.
	CreateSession(outputs OutputContainer, l SessionListener) (Session, error)
	Close() error
}

// Session is a capture session bound to an output container.
// Submission calls enqueue work and return the sequence id assigned by the stack.
type Session interface {
	SetRepeatingRequest(req CaptureRequest) (sequenceID int, err error)
	Capture(req CaptureRequest) (sequenceID int, err error)
	StopRepeating() error
	Close() error
}

// CaptureRequest is a mutable request object built from a template.
type CaptureRequest interface {
	AddTarget(t Target) error
	Set(key model.RequestKey, value int64) error
	Release()
}

// OutputContainer groups the outputs a session is created against.
type OutputContainer interface {
	Add(o Output) error
	Release()
}

// Output wraps a surface for inclusion in an OutputContainer.
type Output interface {
	Release()
}

// Target wraps a surface as the destination of a CaptureRequest.
type Target interface {
	Release()
}
