// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// StreamConfiguration is one supported (format, width, height, direction) entry
// of a device. Input entries describe reprocessing inputs and are never used as outputs.
type StreamConfiguration struct {
	Format PixelFormat `json:"format" yaml:"format"`
	Width  int         `json:"width" yaml:"width"`
	Height int         `json:"height" yaml:"height"`
	Input  bool        `json:"input,omitempty" yaml:"input,omitempty"`
}

// Range is an inclusive [Min, Max] interval of a tunable sensor parameter.
type Range struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

// Valid reports whether the range was populated by the device.
func (r Range) Valid() bool {
	return r.Max > r.Min
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v int64) bool {
	return v >= r.Min && v <= r.Max
}

// AtPercent maps 0..100 onto the range, clamping out-of-bounds input.
func (r Range) AtPercent(pct int) int64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return r.Min + (r.Max-r.Min)*int64(pct)/100
}

// CameraDescriptor is the static description of one capture device.
// Descriptors are immutable once enumerated; availability is tracked by the registry.
type CameraDescriptor struct {
	ID                string                `json:"id"`
	Facing            Facing                `json:"facing"`
	SensorOrientation int                   `json:"sensor_orientation"`
	Configurations    []StreamConfiguration `json:"configurations"`
	ExposureRange     Range                 `json:"exposure_range"`
	SensitivityRange  Range                 `json:"sensitivity_range"`
}

// Clone returns a deep copy so callers can never alias registry-owned slices.
func (d CameraDescriptor) Clone() CameraDescriptor {
	out := d
	out.Configurations = append([]StreamConfiguration(nil), d.Configurations...)
	return out
}

// Range returns the descriptor's range for a tunable request key.
func (d CameraDescriptor) Range(key RequestKey) (Range, bool) {
	switch key {
	case KeyExposureTime:
		return d.ExposureRange, d.ExposureRange.Valid()
	case KeySensitivity:
		return d.SensitivityRange, d.SensitivityRange.Valid()
	}
	return Range{}, false
}

// JPEGOrientation returns the clockwise rotation tagged on stills so they display
// upright with the device in its natural orientation.
func (d CameraDescriptor) JPEGOrientation() int {
	return ((d.SensorOrientation % 360) + 360) % 360
}
