// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/camsession/internal/camera/model"

const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenOutOfOrder        = "out_of_order"
	ForbiddenAlreadyInState    = "already_in_state"
)

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From  model.OptionalState
	To    model.SessionState
	Event EventKind
}

// Decision records whether an event applies in a state and why it is forbidden.
type Decision struct {
	Allowed bool
	To      model.SessionState
	Reason  string
}

func to(s model.SessionState) Decision { return Decision{Allowed: true, To: s} }
func forbid(r string) Decision         { return Decision{Allowed: false, Reason: r} }

var (
	unset  = model.OptionalState{}
	ready  = model.StateOf(model.SessionReady)
	active = model.StateOf(model.SessionActive)
	closed = model.StateOf(model.SessionClosed)
)

// States lists every value the controller can hold, unset included.
func States() []model.OptionalState {
	return []model.OptionalState{unset, ready, active, closed}
}

// decisionTable defines an explicit decision for every state×event combination.
var decisionTable = map[model.OptionalState]map[EventKind]Decision{
	unset: {
		EvSessionReady:       to(model.SessionReady),
		EvSessionActive:      forbid(ForbiddenOutOfOrder),
		EvSessionClosed:      to(model.SessionClosed),
		EvCloseRequested:     to(model.SessionClosed),
		EvDeviceDisconnected: to(model.SessionClosed),
	},
	ready: {
		EvSessionReady:       forbid(ForbiddenAlreadyInState),
		EvSessionActive:      to(model.SessionActive),
		EvSessionClosed:      to(model.SessionClosed),
		EvCloseRequested:     to(model.SessionClosed),
		EvDeviceDisconnected: to(model.SessionClosed),
	},
	active: {
		EvSessionReady:       to(model.SessionReady),
		EvSessionActive:      forbid(ForbiddenAlreadyInState),
		EvSessionClosed:      to(model.SessionClosed),
		EvCloseRequested:     to(model.SessionClosed),
		EvDeviceDisconnected: to(model.SessionClosed),
	},
	closed: {
		EvSessionReady:       forbid(ForbiddenTerminalAbsorbing),
		EvSessionActive:      forbid(ForbiddenTerminalAbsorbing),
		EvSessionClosed:      forbid(ForbiddenAlreadyInState),
		EvCloseRequested:     forbid(ForbiddenAlreadyInState),
		EvDeviceDisconnected: forbid(ForbiddenAlreadyInState),
	},
}

// DecisionFor returns the decision for a given state+event.
func DecisionFor(from model.OptionalState, ev EventKind) (Decision, bool) {
	row, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := row[ev]
	return d, ok
}

// Next resolves an event against the current state. A forbidden or undefined
// pair returns ok=false with the reason to log.
func Next(from model.OptionalState, ev EventKind) (Transition, string, bool) {
	d, ok := DecisionFor(from, ev)
	if !ok {
		return Transition{}, ForbiddenOutOfOrder, false
	}
	if !d.Allowed {
		return Transition{}, d.Reason, false
	}
	return Transition{From: from, To: d.To, Event: ev}, "", true
}
