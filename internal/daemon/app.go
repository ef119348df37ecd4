// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/camsession/internal/config"
)

// App owns the long-lived runtime lifecycle (writer, engine, watchers,
// reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	rt           *Runtime
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, rt *Runtime) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		rt:           rt,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts the writer and the camera engine, then serves until ctx is
// cancelled or a fatal error occurs. The runtime is closed on return.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.rt == nil {
		return ErrMissingRuntime
	}

	g, ctx := errgroup.WithContext(ctx)

	// The writer outlives ctx so queued photos are flushed by Close.
	g.Go(func() error {
		return a.rt.RunWriter(context.WithoutCancel(ctx))
	})

	if err := a.rt.Engine.Start(ctx); err != nil {
		_ = a.rt.Close(context.WithoutCancel(ctx))
		_ = g.Wait()
		return fmt.Errorf("start camera engine: %w", err)
	}
	a.manager.RegisterShutdownHook("runtime", a.rt.Close)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		a.manager.RegisterShutdownHook("config-watcher", func(context.Context) error {
			a.cfgHolder.Stop()
			return nil
		})

		applyCh := make(chan config.Config, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.rt.API.SetCaptureRateLimit(cfg.API.CaptureRateLimit, cfg.API.CaptureRateWindow)
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}
