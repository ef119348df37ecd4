// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package registry discovers capture devices and tracks their availability.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/ports"
	xglog "github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/metrics"
)

// Registry owns the descriptor set. Readers may run concurrently; mutation is
// limited to Enumerate and the availability/disconnect paths, all under mu.
type Registry struct {
	platform ports.Platform
	logger   zerolog.Logger

	mu          sync.RWMutex
	order       []string
	devices     map[string]model.CameraDescriptor
	unavailable map[string]bool
	observers   []func(deviceID string)
}

// New creates a registry backed by the given platform.
func New(platform ports.Platform) *Registry {
	return &Registry{
		platform:    platform,
		logger:      xglog.WithComponent("registry"),
		devices:     make(map[string]model.CameraDescriptor),
		unavailable: make(map[string]bool),
	}
}

// Enumerate queries the platform and replaces the descriptor set.
// It fails with ErrDeviceEnumeration when no device could be described.
func (r *Registry) Enumerate(ctx context.Context) ([]model.CameraDescriptor, error) {
	ids, err := r.platform.CameraIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list ids: %v", model.ErrDeviceEnumeration, err)
	}

	order := make([]string, 0, len(ids))
	devices := make(map[string]model.CameraDescriptor, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := devices[id]; dup {
			continue
		}
		desc, err := r.platform.Characteristics(ctx, id)
		if err != nil {
			r.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "registry.characteristics_failed").
				Str(xglog.FieldDeviceID, id).
				Msg("skipping device without readable characteristics")
			continue
		}
		desc.ID = id
		devices[id] = desc.Clone()
		order = append(order, id)
	}

	if len(order) == 0 {
		return nil, model.ErrDeviceEnumeration
	}

	r.mu.Lock()
	r.order = order
	r.devices = devices
	for id := range r.unavailable {
		if _, ok := devices[id]; !ok {
			delete(r.unavailable, id)
		}
	}
	out := r.snapshotLocked()
	r.mu.Unlock()

	metrics.DevicesKnown.Set(float64(len(out)))
	r.logger.Info().
		Str(xglog.FieldEvent, "registry.enumerated").
		Int("devices", len(out)).
		Msg("capture devices enumerated")
	return out, nil
}

// SelectDefault returns the first descriptor facing preferred, or any descriptor
// when none matches. It only fails when the registry holds no devices.
func (r *Registry) SelectDefault(preferred model.Facing) (model.CameraDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return model.CameraDescriptor{}, model.ErrDeviceEnumeration
	}
	for _, id := range r.order {
		if d := r.devices[id]; d.Facing == preferred {
			return d.Clone(), nil
		}
	}
	return r.devices[r.order[0]].Clone(), nil
}

// Descriptors returns copies of all known descriptors in enumeration order.
func (r *Registry) Descriptors() []model.CameraDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []model.CameraDescriptor {
	out := make([]model.CameraDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id].Clone())
	}
	return out
}

// Get returns a copy of one descriptor.
func (r *Registry) Get(id string) (model.CameraDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return model.CameraDescriptor{}, false
	}
	return d.Clone(), true
}

// Available reports whether a known device is currently acquirable.
func (r *Registry) Available(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, known := r.devices[id]
	return known && !r.unavailable[id]
}

// SetAvailable flips the availability flag of a known device.
// Unknown ids are ignored.
func (r *Registry) SetAvailable(id string, available bool) {
	r.mu.Lock()
	_, known := r.devices[id]
	if known {
		if available {
			delete(r.unavailable, id)
		} else {
			r.unavailable[id] = true
		}
	}
	r.mu.Unlock()

	if !known {
		return
	}
	r.logger.Debug().
		Str(xglog.FieldEvent, "registry.availability").
		Str(xglog.FieldDeviceID, id).
		Bool("available", available).
		Msg("device availability changed")
}

// OnDisconnect registers fn to run after a device is removed.
func (r *Registry) OnDisconnect(fn func(deviceID string)) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Disconnected removes a device and notifies observers. It reports whether the
// device was known.
func (r *Registry) Disconnected(id string) bool {
	r.mu.Lock()
	_, known := r.devices[id]
	if known {
		delete(r.devices, id)
		delete(r.unavailable, id)
		order := r.order[:0]
		for _, o := range r.order {
			if o != id {
				order = append(order, o)
			}
		}
		r.order = order
	}
	observers := slices.Clone(r.observers)
	remaining := len(r.order)
	r.mu.Unlock()

	if !known {
		return false
	}
	metrics.DevicesKnown.Set(float64(remaining))
	r.logger.Warn().
		Str(xglog.FieldEvent, "registry.disconnected").
		Str(xglog.FieldDeviceID, id).
		Msg("device disconnected")
	for _, fn := range observers {
		fn(id)
	}
	return true
}

// Watch subscribes the registry to platform availability callbacks.
func (r *Registry) Watch() (stop func()) {
	return r.platform.RegisterAvailability(availability{r})
}

type availability struct{ r *Registry }

func (a availability) OnCameraAvailable(id string)   { a.r.SetAvailable(id, true) }
func (a availability) OnCameraUnavailable(id string) { a.r.SetAvailable(id, false) }
