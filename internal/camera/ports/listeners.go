// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "github.com/ManuGH/camsession/internal/camera/model"

// SessionListener receives session-scoped notifications from the
// platform's notification thread. Implementations must not block.
type SessionListener interface {
	OnReady()
	OnActive()
	OnClosed()
	// OnCaptureSequenceEnd reports that every request of the sequence completed.
	OnCaptureSequenceEnd(sequenceID int)
	// OnCaptureSequenceAborted reports that the sequence was dropped before completion.
	OnCaptureSequenceAborted(sequenceID int)
	OnCaptureFailed(sequenceID int)
	// OnImageAvailable delivers an encoded still produced by the sequence.
	OnImageAvailable(img model.StillImage)
}

// DeviceListener receives device-scoped faults.
type DeviceListener interface {
	OnDisconnected(deviceID string)
	OnError(deviceID string, code model.DeviceErrorCode)
}

// AvailabilityListener receives camera-manager availability changes.
type AvailabilityListener interface {
	OnCameraAvailable(deviceID string)
	OnCameraUnavailable(deviceID string)
}
