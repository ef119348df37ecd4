// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "fmt"

// Resolution is a width/height pair in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Pixels returns the pixel count.
func (r Resolution) Pixels() int {
	return r.Width * r.Height
}

// IsZero reports whether either dimension is unset.
func (r Resolution) IsZero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// SameAspect compares aspect ratios exactly on integers.
func (r Resolution) SameAspect(o Resolution) bool {
	return r.Width*o.Height == r.Height*o.Width
}

// CapturedResolution is the negotiated output for one role.
type CapturedResolution struct {
	Role   OutputRole  `json:"role"`
	Format PixelFormat `json:"format"`
	Resolution
}
