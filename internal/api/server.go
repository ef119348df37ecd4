// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the HTTP control surface used by the camd UI.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/api/middleware"
	"github.com/ManuGH/camsession/internal/camera/engine"
	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/health"
	"github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/photo"
)

// Camera is the part of the engine the API drives.
type Camera interface {
	Cameras() []model.CameraDescriptor
	Available(id string) bool
	Snapshot() engine.Snapshot
	TogglePreview() (bool, error)
	StartPreview() error
	StopPreview() error
	TakePhoto(ctx context.Context) (int, error)
	SetExposurePercent(pct int) error
	SetSensitivityPercent(pct int) error
}

// PhotoLister reads the photo catalog.
type PhotoLister interface {
	List(ctx context.Context, limit int) ([]photo.Record, error)
}

// Config configures the server.
type Config struct {
	CaptureRateLimit  int
	CaptureRateWindow time.Duration
	// TracingService enables otelhttp spans when set.
	TracingService string
	Version        string
}

// Server serves the camd HTTP API.
type Server struct {
	cfg     Config
	camera  Camera
	photos  PhotoLister
	logger  zerolog.Logger
	started time.Time
	health  *health.Manager

	capture atomic.Pointer[http.Handler]
}

// New creates a server. photos may be nil when no catalog is configured.
func New(camera Camera, photos PhotoLister, cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		camera:  camera,
		photos:  photos,
		logger:  log.WithComponent("api"),
		started: time.Now(),
		health:  health.NewManager(cfg.Version),
	}
	s.health.RegisterChecker(health.NewSessionChecker(func() model.OptionalState {
		return camera.Snapshot().Session.State
	}))
	s.SetCaptureRateLimit(cfg.CaptureRateLimit, cfg.CaptureRateWindow)
	return s
}

// Health returns the readiness manager so callers can add component checks.
func (s *Server) Health() *health.Manager {
	return s.health
}

// SetCaptureRateLimit replaces the limiter on POST /api/v1/photo. Counters
// restart with the new limiter.
func (s *Server) SetCaptureRateLimit(limit int, window time.Duration) {
	h := middleware.RateLimit(middleware.RateLimitConfig{
		RequestLimit: limit,
		WindowSize:   window,
	})(http.HandlerFunc(s.handleTakePhoto))
	s.capture.Store(&h)
	s.logger.Info().
		Str(log.FieldEvent, "api.capture_limit_set").
		Int("limit", limit).
		Dur("window", window).
		Msg("capture rate limit applied")
}

// Handler builds the routed handler with the middleware stack.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cameras", s.handleCameras)
		r.Get("/cameras/{id}", s.handleCamera)
		r.Get("/session", s.handleSession)
		r.Post("/preview/toggle", s.handleTogglePreview)
		r.Post("/preview/start", s.handleStartPreview)
		r.Post("/preview/stop", s.handleStopPreview)
		r.Post("/photo", func(w http.ResponseWriter, r *http.Request) {
			(*s.capture.Load()).ServeHTTP(w, r)
		})
		r.Get("/photos", s.handlePhotos)
		r.Put("/exposure", s.handleExposure)
	})
	return r
}
