// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lifecycle holds the capture-session state machine as data: an
// explicit decision for every state×event pair plus the edges it allows.
package lifecycle

// EventKind is a notification or command that may move the session state.
type EventKind int

const (
	EvUnknown EventKind = iota
	// Platform session notifications
	EvSessionReady
	EvSessionActive
	EvSessionClosed
	// Controller-originated
	EvCloseRequested
	EvDeviceDisconnected
)

func (e EventKind) String() string {
	switch e {
	case EvSessionReady:
		return "session_ready"
	case EvSessionActive:
		return "session_active"
	case EvSessionClosed:
		return "session_closed"
	case EvCloseRequested:
		return "close_requested"
	case EvDeviceDisconnected:
		return "device_disconnected"
	default:
		return "unknown"
	}
}

// Events lists every defined event kind.
func Events() []EventKind {
	return []EventKind{EvSessionReady, EvSessionActive, EvSessionClosed, EvCloseRequested, EvDeviceDisconnected}
}
