// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldRequestID  = "request_id"
	FieldDeviceID   = "device_id"
	FieldSequenceID = "sequence_id"
	FieldPhotoID    = "photo_id"

	FieldEvent     = "event"
	FieldComponent = "component"
	FieldReason    = "reason"

	// Media fields
	FieldResolution  = "resolution"
	FieldOrientation = "orientation"
	FieldFacing      = "facing"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	FieldPath = "path"
)
