// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/camsession/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Holder holds configuration with atomic reloading capability.
type Holder struct {
	mu      sync.RWMutex
	current Config
	loader  *Loader
	logger  zerolog.Logger

	// Debounce coalesces bursts of file events. Set before StartWatcher.
	Debounce time.Duration

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}

	reloadMu        sync.RWMutex
	reloadListeners []chan<- Config
}

// NewHolder creates a holder serving initial until the first reload.
func NewHolder(initial Config, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   xglog.WithComponent("config"),
		Debounce: defaultDebounce,
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the file again. On failure the old
// configuration stays in place and the error is returned.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.reload_failed").
			Msg("new configuration rejected, keeping current")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	if oldCfg.Log.Level != newCfg.Log.Level {
		if err := xglog.SetLevel(newCfg.Log.Level); err != nil {
			h.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.level_rejected").Msg("log level not applied")
		}
	}
	h.logChanges(oldCfg, newCfg)
	h.notifyListeners(newCfg)

	h.logger.Info().
		Str(xglog.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the config file until ctx is done or Stop is called.
// Without a config path this is a no-op.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().
			Str(xglog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (environment-only configuration)")
		return nil
	}

	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.watcher != nil {
		return errors.New("config watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// The directory is watched so atomic replace-by-rename is seen.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = watcher
	h.done = make(chan struct{})

	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str(xglog.FieldPath, path).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, watcher, path, h.done)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, w *fsnotify.Watcher, path string, done chan struct{}) {
	defer close(done)

	debounce := h.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				h.logger.Debug().
					Str(xglog.FieldEvent, "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")
				timer.Reset(debounce)
			}

		case <-timer.C:
			if err := h.Reload(ctx); err != nil {
				h.logger.Error().
					Err(err).
					Str(xglog.FieldEvent, "config.auto_reload_failed").
					Msg("automatic config reload failed")
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop closes the watcher and waits for its goroutine.
func (h *Holder) Stop() {
	h.watchMu.Lock()
	w, done := h.watcher, h.done
	h.watcher, h.done = nil, nil
	h.watchMu.Unlock()
	if w == nil {
		return
	}
	_ = w.Close()
	<-done
}

// RegisterListener registers a channel that receives each successfully
// reloaded config. Sends never block; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *Holder) notifyListeners(newCfg Config) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str(xglog.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *Holder) logChanges(old, newCfg Config) {
	if old.Log.Level != newCfg.Log.Level {
		h.logger.Info().Str("old", old.Log.Level).Str("new", newCfg.Log.Level).Msg("config changed: log.level")
	}
	if old.API.CaptureRateLimit != newCfg.API.CaptureRateLimit {
		h.logger.Info().
			Int("old", old.API.CaptureRateLimit).
			Int("new", newCfg.API.CaptureRateLimit).
			Msg("config changed: api.capture_rate_limit")
	}
	if old.Camera != newCfg.Camera {
		h.logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Msg("config changed: camera section applies on next start")
	}
	if old.API.ListenAddr != newCfg.API.ListenAddr {
		h.logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Str("old", old.API.ListenAddr).
			Str("new", newCfg.API.ListenAddr).
			Msg("config changed: api.listen_addr applies on next start")
	}
}
