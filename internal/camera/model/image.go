// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// StillImage is an encoded still delivered on the still-capture surface.
type StillImage struct {
	SequenceID  int
	Format      PixelFormat
	Width       int
	Height      int
	Orientation int
	Timestamp   time.Time
	Data        []byte
}

// Photo is a completed still handed to the persistence collaborator.
type Photo struct {
	DeviceID    string
	SessionID   string
	SequenceID  int
	Format      PixelFormat
	Width       int
	Height      int
	Orientation int
	CapturedAt  time.Time
	Data        []byte
}
