// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the camera engine, photo writer and HTTP API into
// one long-lived process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsession/internal/api"
	"github.com/ManuGH/camsession/internal/camera/dispatch"
	"github.com/ManuGH/camsession/internal/camera/engine"
	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/sim"
	"github.com/ManuGH/camsession/internal/config"
	"github.com/ManuGH/camsession/internal/health"
	"github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/photo"
	"github.com/ManuGH/camsession/internal/telemetry"
)

const serviceName = "camd"

// Runtime holds every component built from one configuration.
type Runtime struct {
	Platform  *sim.Platform
	Engine    *engine.Engine
	Writer    *photo.Writer
	Catalog   *photo.Catalog
	API       *api.Server
	Telemetry *telemetry.Provider

	logger        zerolog.Logger
	writerRunning atomic.Bool
	closeOnce     sync.Once
	closeErr      error
	written       chan string
}

// Build constructs the runtime. Nothing touches the simulated devices until
// the engine is started.
func Build(ctx context.Context, cfg config.Config, version string) (*Runtime, error) {
	rt := &Runtime{
		logger:  log.WithComponent("daemon"),
		written: make(chan string, 16),
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.Telemetry = tp

	if cfg.Photos.CatalogPath != "" {
		catalogPath := cfg.Photos.CatalogPath
		if !filepath.IsAbs(catalogPath) && filepath.Dir(catalogPath) == "." {
			catalogPath = filepath.Join(cfg.Photos.Dir, catalogPath)
		}
		cat, err := photo.OpenCatalog(ctx, catalogPath)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		rt.Catalog = cat
	}

	w, err := photo.NewWriter(photo.Options{
		Dir:       cfg.Photos.Dir,
		Prefix:    cfg.Photos.Prefix,
		QueueSize: cfg.Photos.QueueSize,
	}, rt.Catalog, rt.onPhotoWritten)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Writer = w

	rt.Platform = sim.New(sim.Options{
		NotificationDelay: cfg.Simulator.NotificationDelay,
		FrameRate:         cfg.Simulator.FrameRate,
	}, cfg.Simulator.Descriptors()...)

	rt.Engine = engine.New(rt.Platform, &sim.SurfaceFactory{}, w, engine.Options{
		PreferredFacing:    model.ParseFacing(cfg.Camera.PreferredFacing),
		DisplayWidth:       cfg.Camera.DisplayWidth,
		DisplayHeight:      cfg.Camera.DisplayHeight,
		Negotiation:        cfg.Camera.Negotiation(),
		StartPreview:       cfg.Camera.StartPreview,
		RecreateOnEviction: cfg.Camera.RecreateOnEvict,
		Dispatch: []dispatch.Option{
			dispatch.WithTracer(telemetry.Tracer("github.com/ManuGH/camsession/internal/camera/dispatch")),
		},
	})

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = serviceName
	}
	var lister api.PhotoLister
	if rt.Catalog != nil {
		lister = rt.Catalog
	}
	rt.API = api.New(rt.Engine, lister, api.Config{
		CaptureRateLimit:  cfg.API.CaptureRateLimit,
		CaptureRateWindow: cfg.API.CaptureRateWindow,
		TracingService:    tracing,
		Version:           version,
	})
	rt.API.Health().RegisterChecker(health.NewDirChecker("photos_dir", cfg.Photos.Dir))
	if rt.Catalog != nil {
		cat := rt.Catalog
		rt.API.Health().RegisterChecker(health.NewCheckerFunc("photo_catalog", func(ctx context.Context) error {
			_, err := cat.Count(ctx)
			return err
		}))
	}
	return rt, nil
}

// onPhotoWritten is the writer's completion callback.
func (rt *Runtime) onPhotoWritten(identifier string) {
	rt.logger.Info().
		Str(log.FieldEvent, "photo.available").
		Str("identifier", identifier).
		Msg("photo ready for display")
	select {
	case rt.written <- identifier:
	default:
	}
}

// Written delivers identifiers of written photos. Slow readers miss some.
func (rt *Runtime) Written() <-chan string {
	return rt.written
}

// RunWriter runs the photo writer until Close drains it.
func (rt *Runtime) RunWriter(ctx context.Context) error {
	rt.writerRunning.Store(true)
	return rt.Writer.Run(ctx)
}

// Close stops the engine first so no photo is emitted after the writer
// closes, then drains the writer and releases storage and telemetry.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.closeOnce.Do(func() {
		var errs []error
		if rt.Engine != nil {
			if err := rt.Engine.Close(); err != nil {
				errs = append(errs, fmt.Errorf("engine: %w", err))
			}
		}
		if rt.Platform != nil {
			rt.Platform.Close()
		}
		if rt.Writer != nil {
			rt.Writer.Close(rt.writerRunning.Load())
		}
		if rt.Catalog != nil {
			if err := rt.Catalog.Close(); err != nil {
				errs = append(errs, fmt.Errorf("catalog: %w", err))
			}
		}
		if rt.Telemetry != nil {
			if err := rt.Telemetry.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("telemetry: %w", err))
			}
		}
		rt.closeErr = errors.Join(errs...)
		rt.logger.Info().Str(log.FieldEvent, "daemon.runtime_closed").Msg("runtime closed")
	})
	return rt.closeErr
}
