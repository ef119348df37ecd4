// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by camera spans.
const (
	CameraDeviceKey     = "camera.device_id"
	CameraSessionKey    = "camera.session_id"
	CameraSequenceKey   = "camera.sequence_id"
	CameraOutcomeKey    = "camera.capture.outcome"
	CameraResolutionKey = "camera.resolution"
	CameraFormatKey     = "camera.format"

	PhotoIDKey    = "photo.id"
	PhotoBytesKey = "photo.bytes"
)

// CaptureAttributes describes a still-capture submission.
func CaptureAttributes(deviceID, sessionID string, sequenceID int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if deviceID != "" {
		attrs = append(attrs, attribute.String(CameraDeviceKey, deviceID))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(CameraSessionKey, sessionID))
	}
	return append(attrs, attribute.Int(CameraSequenceKey, sequenceID))
}

// ImageAttributes describes an emitted still.
func ImageAttributes(format, resolution string, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CameraFormatKey, format),
		attribute.String(CameraResolutionKey, resolution),
		attribute.Int(PhotoBytesKey, size),
	}
}
