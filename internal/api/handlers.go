// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/photo"
)

const maxPhotoListLimit = 1000

type cameraView struct {
	model.CameraDescriptor
	Available bool `json:"available"`
}

type previewResponse struct {
	Preview bool `json:"preview"`
}

type photoResponse struct {
	SequenceID int    `json:"sequence_id"`
	Status     string `json:"status"`
}

type exposureRequest struct {
	ExposurePercent    *int `json:"exposure_percent"`
	SensitivityPercent *int `json:"sensitivity_percent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.camera.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.cfg.Version,
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"session_state": snap.Session.StateName,
	})
}

func (s *Server) handleCameras(w http.ResponseWriter, _ *http.Request) {
	descs := s.camera.Cameras()
	out := make([]cameraView, 0, len(descs))
	for _, d := range descs {
		out = append(out, cameraView{CameraDescriptor: d, Available: s.camera.Available(d.ID)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, d := range s.camera.Cameras() {
		if d.ID == id {
			writeJSON(w, http.StatusOK, cameraView{CameraDescriptor: d, Available: s.camera.Available(id)})
			return
		}
	}
	writeError(w, r, fmt.Errorf("camera %q: %w", id, model.ErrUnknownDevice))
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.camera.Snapshot())
}

func (s *Server) handleTogglePreview(w http.ResponseWriter, r *http.Request) {
	on, err := s.camera.TogglePreview()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Preview: on})
}

func (s *Server) handleStartPreview(w http.ResponseWriter, r *http.Request) {
	if err := s.camera.StartPreview(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Preview: true})
}

func (s *Server) handleStopPreview(w http.ResponseWriter, r *http.Request) {
	if err := s.camera.StopPreview(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Preview: false})
}

func (s *Server) handleTakePhoto(w http.ResponseWriter, r *http.Request) {
	seq, err := s.camera.TakePhoto(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(log.ContextWithCapture(r.Context(), "", "", seq), "api")
	logger.Info().
		Str(log.FieldEvent, "api.photo_requested").
		Msg("still capture submitted")
	writeJSON(w, http.StatusAccepted, photoResponse{SequenceID: seq, Status: "submitted"})
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxPhotoListLimit {
			writeBadRequest(w, r, fmt.Sprintf("limit must be within 1..%d", maxPhotoListLimit))
			return
		}
		limit = n
	}
	if s.photos == nil {
		writeJSON(w, http.StatusOK, []photo.Record{})
		return
	}
	recs, err := s.photos.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []photo.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request) {
	var req exposureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid JSON body")
		return
	}
	if req.ExposurePercent == nil && req.SensitivityPercent == nil {
		writeBadRequest(w, r, "exposure_percent or sensitivity_percent required")
		return
	}
	if req.ExposurePercent != nil {
		if err := s.camera.SetExposurePercent(*req.ExposurePercent); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.SensitivityPercent != nil {
		if err := s.camera.SetSensitivityPercent(*req.SensitivityPercent); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
