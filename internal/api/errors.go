// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/camsession/internal/camera/engine"
	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/log"
)

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps core errors onto a status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrCaptureBusy):
		return http.StatusConflict, "capture_busy"
	case errors.Is(err, model.ErrSessionNotReady):
		return http.StatusConflict, "session_not_ready"
	case errors.Is(err, model.ErrSessionClosed), errors.Is(err, engine.ErrEngineClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, model.ErrParameterOutOfRange):
		return http.StatusBadRequest, "parameter_out_of_range"
	case errors.Is(err, model.ErrParameterUnsupported):
		return http.StatusUnprocessableEntity, "parameter_unsupported"
	case errors.Is(err, model.ErrUnknownDevice):
		return http.StatusNotFound, "unknown_device"
	case errors.Is(err, engine.ErrNotStarted):
		return http.StatusServiceUnavailable, "engine_not_started"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, name := classify(err)
	resp := errorResponse{Error: name, Detail: err.Error(), RequestID: log.RequestIDFromContext(r.Context())}
	if code == http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "api.request_failed").Str(log.FieldPath, r.URL.Path).Msg("request failed")
		resp.Detail = ""
	}
	writeJSON(w, code, resp)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     "bad_request",
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
