// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// Facing is the lens direction of a capture device.
type Facing string

const (
	FacingFront    Facing = "front"
	FacingBack     Facing = "back"
	FacingExternal Facing = "external"
)

// ParseFacing maps a config value onto a Facing. Unknown values resolve to back.
func ParseFacing(s string) Facing {
	switch Facing(s) {
	case FacingFront, FacingExternal:
		return Facing(s)
	default:
		return FacingBack
	}
}

// PixelFormat identifies the buffer layout of an output stream.
type PixelFormat string

const (
	FormatYUV420  PixelFormat = "YUV_420_888"
	FormatJPEG    PixelFormat = "JPEG"
	FormatPrivate PixelFormat = "PRIVATE"
	FormatRAW16   PixelFormat = "RAW16"
)

// OutputRole tags a capture target with the purpose it serves.
type OutputRole string

const (
	RolePreview      OutputRole = "PREVIEW"
	RoleStillCapture OutputRole = "STILL_CAPTURE"
)

// RequestTemplate selects the platform defaults a capture request starts from.
type RequestTemplate string

const (
	TemplatePreview      RequestTemplate = "TEMPLATE_PREVIEW"
	TemplateStillCapture RequestTemplate = "TEMPLATE_STILL_CAPTURE"
)

// TemplateFor returns the request template used for an output role.
func TemplateFor(role OutputRole) RequestTemplate {
	if role == RoleStillCapture {
		return TemplateStillCapture
	}
	return TemplatePreview
}

// RequestKey names a tunable capture request parameter.
type RequestKey string

const (
	KeyExposureTime    RequestKey = "sensor.exposure_time"
	KeySensitivity     RequestKey = "sensor.sensitivity"
	KeyJPEGOrientation RequestKey = "jpeg.orientation"
	KeyAEMode          RequestKey = "control.ae_mode"
)

// DeviceErrorCode is the platform-reported reason for an asynchronous device fault.
// Keep these stable: metrics labels depend on them.
type DeviceErrorCode string

const (
	DeviceErrInUse        DeviceErrorCode = "IN_USE"
	DeviceErrDisabled     DeviceErrorCode = "DISABLED"
	DeviceErrTooManyInUse DeviceErrorCode = "TOO_MANY_IN_USE"
	DeviceErrService      DeviceErrorCode = "SERVICE_ERROR"
	DeviceErrDevice       DeviceErrorCode = "DEVICE_ERROR"
	DeviceErrUnknown      DeviceErrorCode = "UNKNOWN"
)
