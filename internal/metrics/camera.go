// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camd_session_transitions_total",
		Help: "Capture session state transitions applied",
	}, []string{"state_from", "state_to"})

	NotificationsDiscardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camd_session_notifications_discarded_total",
		Help: "Session notifications logged and discarded instead of applied",
	}, []string{"reason"})

	ExecutorQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camd_executor_queue_depth",
		Help: "Pending platform notifications waiting for the session worker",
	})

	// Capture
	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camd_still_captures_total",
		Help: "Still capture sequences by outcome",
	}, []string{"outcome"}) // outcome=submitted|completed|aborted|failed|busy

	PreviewResumesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camd_preview_resumes_total",
		Help: "Preview repeating requests re-submitted after a still capture sequence ended",
	})

	// Devices
	NegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camd_resolution_negotiations_total",
		Help: "Resolution negotiations by whether an exact aspect match was found",
	}, []string{"exact"})

	DeviceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camd_device_errors_total",
		Help: "Asynchronous device faults reported by the platform",
	}, []string{"code"})

	DevicesKnown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camd_devices_known",
		Help: "Capture devices currently held in the registry",
	})

	// Photos
	PhotosWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camd_photos_written_total",
		Help: "Photos handed to the writer by outcome",
	}, []string{"outcome"}) // outcome=success|failure|dropped
)

// IncTransition records an applied session transition.
func IncTransition(from, to string) {
	if from == "" {
		from = "UNSET"
	}
	SessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncDiscarded records a discarded session notification.
func IncDiscarded(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	NotificationsDiscardedTotal.WithLabelValues(reason).Inc()
}

// IncCapture records a still capture outcome.
func IncCapture(outcome string) {
	CapturesTotal.WithLabelValues(outcome).Inc()
}

// IncNegotiation records a resolution negotiation result.
func IncNegotiation(exact bool) {
	label := "false"
	if exact {
		label = "true"
	}
	NegotiationsTotal.WithLabelValues(label).Inc()
}

// IncDeviceError records an asynchronous device fault.
func IncDeviceError(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	DeviceErrorsTotal.WithLabelValues(code).Inc()
}

// IncPhotoWrite records a photo persistence outcome.
func IncPhotoWrite(outcome string) {
	PhotosWrittenTotal.WithLabelValues(outcome).Inc()
}
