// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log provides structured logging for camd.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

// Scope carries the identifiers that tie a log line to an HTTP request and a
// capture. Zero values are omitted.
type Scope struct {
	RequestID  string
	DeviceID   string
	SessionID  string
	SequenceID int
}

type scopeKey struct{}

// ScopeFromContext returns the scope stored in ctx.
func ScopeFromContext(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

func withScope(ctx context.Context, fn func(*Scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := ScopeFromContext(ctx)
	fn(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// ContextWithRequestID stores the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *Scope) { s.RequestID = id })
}

// ContextWithCapture stores the device, session and still sequence of a
// capture. Empty arguments keep what the context already holds.
func ContextWithCapture(ctx context.Context, deviceID, sessionID string, seq int) context.Context {
	return withScope(ctx, func(s *Scope) {
		if deviceID != "" {
			s.DeviceID = deviceID
		}
		if sessionID != "" {
			s.SessionID = sessionID
		}
		if seq != 0 {
			s.SequenceID = seq
		}
	})
}

// RequestIDFromContext extracts the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return ScopeFromContext(ctx).RequestID
}

// WithContext adds the scope fields of ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	s := ScopeFromContext(ctx)
	if s == (Scope{}) {
		return logger
	}
	b := logger.With()
	if s.RequestID != "" {
		b = b.Str(FieldRequestID, s.RequestID)
	}
	if s.DeviceID != "" {
		b = b.Str(FieldDeviceID, s.DeviceID)
	}
	if s.SessionID != "" {
		b = b.Str(FieldSessionID, s.SessionID)
	}
	if s.SequenceID != 0 {
		b = b.Int(FieldSequenceID, s.SequenceID)
	}
	return b.Logger()
}

// WithComponentFromContext is WithComponent enriched with the scope of ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
