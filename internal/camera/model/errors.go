// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceEnumeration    = errors.New("no capture devices available")
	ErrDeviceOpen           = errors.New("device open failed")
	ErrSessionCreate        = errors.New("session create failed")
	ErrCaptureBusy          = errors.New("still capture already in flight")
	ErrSessionClosed        = errors.New("session closed")
	ErrSessionNotReady      = errors.New("session not ready")
	ErrUnknownDevice        = errors.New("unknown device")
	ErrParameterOutOfRange  = errors.New("parameter out of range")
	ErrParameterUnsupported = errors.New("parameter unsupported by device")
)

// OpenReason classifies why a device could not be opened.
type OpenReason string

const (
	OpenUnavailable OpenReason = "unavailable"
	OpenInUse       OpenReason = "in_use"
	OpenUnknown     OpenReason = "unknown_device"
	OpenPlatform    OpenReason = "platform"
)

// OpenError is returned by Open. It unwraps to ErrDeviceOpen and the platform cause.
type OpenError struct {
	DeviceID string
	Reason   OpenReason
	Err      error
}

func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open device %s (%s): %v", e.DeviceID, e.Reason, e.Err)
	}
	return fmt.Sprintf("open device %s: %s", e.DeviceID, e.Reason)
}

func (e *OpenError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDeviceOpen}
	}
	return []error{ErrDeviceOpen, e.Err}
}

// SessionCreateError is returned when output or request construction fails synchronously.
type SessionCreateError struct {
	Role OutputRole
	Err  error
}

func (e *SessionCreateError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("create session: %v", e.Err)
	}
	return fmt.Sprintf("create session (%s): %v", e.Role, e.Err)
}

func (e *SessionCreateError) Unwrap() []error {
	return []error{ErrSessionCreate, e.Err}
}

// DeviceError describes an asynchronous device fault reported by the platform.
type DeviceError struct {
	DeviceID string
	Code     DeviceErrorCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s error: %s", e.DeviceID, e.Code)
}
