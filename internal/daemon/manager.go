// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the HTTP server lifecycle and shutdown hooks.
type Manager interface {
	// Start serves until ctx is cancelled or the server fails, then shuts down.
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
	// Addr blocks until Start has tried to listen and returns the bound
	// address, or "" when listening failed.
	Addr() string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps are the collaborators of a manager.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler
}

type namedHook struct {
	name string
	hook ShutdownHook
}

type manager struct {
	serverCfg ServerConfig
	deps      Deps
	logger    zerolog.Logger

	server *http.Server
	ready  chan struct{}

	mu            sync.Mutex
	started       bool
	stopping      bool
	addr          string
	shutdownHooks []namedHook
}

// NewManager creates a new daemon manager.
func NewManager(serverCfg ServerConfig, deps Deps) (Manager, error) {
	if deps.APIHandler == nil {
		return nil, ErrMissingAPIHandler
	}
	if serverCfg.ShutdownTimeout <= 0 {
		serverCfg.ShutdownTimeout = 10 * time.Second
	}
	return &manager{
		serverCfg: serverCfg,
		deps:      deps,
		logger:    deps.Logger.With().Str("component", "manager").Logger(),
		ready:     make(chan struct{}),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	ln, err := net.Listen("tcp", m.serverCfg.ListenAddr)
	if err != nil {
		close(m.ready)
		shutdownErr := m.Shutdown(context.WithoutCancel(ctx))
		return errors.Join(fmt.Errorf("listen %s: %w", m.serverCfg.ListenAddr, err), shutdownErr)
	}

	m.mu.Lock()
	m.addr = ln.Addr().String()
	m.server = &http.Server{
		Handler:           m.deps.APIHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       m.serverCfg.ReadTimeout,
		WriteTimeout:      m.serverCfg.WriteTimeout,
		IdleTimeout:       m.serverCfg.IdleTimeout,
	}
	srv := m.server
	m.mu.Unlock()
	close(m.ready)

	m.logger.Info().
		Str("event", "server.listening").
		Str("listen", m.addr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Msg("API server listening")

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Str("event", "server.failed").Msg("server error, initiating shutdown")
		if shutdownErr := m.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str("event", "server.shutdown_signal").Msg("shutdown signal received")
		return m.Shutdown(context.WithoutCancel(ctx))
	}
}

func (m *manager) Addr() string {
	<-m.ready
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	srv := m.server
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Str("event", "server.shutdown").Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", hook.name).
			Dur("duration", time.Since(hookStart)).
			Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Str("event", "server.stopped").Msg("daemon manager stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}
