// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// SessionState is the confirmed state of a capture session.
type SessionState string

const (
	SessionReady  SessionState = "READY"
	SessionActive SessionState = "ACTIVE"
	SessionClosed SessionState = "CLOSED"
)

// IsTerminal returns true if no further requests may be issued.
func (s SessionState) IsTerminal() bool {
	return s == SessionClosed
}

// OptionalState holds a SessionState that may not have been confirmed yet.
// The zero value means the platform has not reported any state.
type OptionalState struct {
	state SessionState
	set   bool
}

// StateOf wraps a confirmed state.
func StateOf(s SessionState) OptionalState {
	return OptionalState{state: s, set: true}
}

// Get returns the state and whether it is set.
func (o OptionalState) Get() (SessionState, bool) {
	return o.state, o.set
}

// IsSet reports whether a state has been confirmed.
func (o OptionalState) IsSet() bool {
	return o.set
}

// Is reports whether the state is set and equal to s.
func (o OptionalState) Is(s SessionState) bool {
	return o.set && o.state == s
}

func (o OptionalState) String() string {
	if !o.set {
		return "UNSET"
	}
	return string(o.state)
}
