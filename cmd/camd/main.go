// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command camd runs the camera capture-session daemon against the simulated
// platform and exposes it over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/camsession/internal/config"
	"github.com/ManuGH/camsession/internal/daemon"
	xglog "github.com/ManuGH/camsession/internal/log"
	"github.com/ManuGH/camsession/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("camd", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	checkOnly := fs.Bool("check", false, "validate configuration and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	loader := config.NewLoader(*configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "camd: %v\n", err)
		return 1
	}
	if *checkOnly {
		fmt.Println("configuration ok")
		return 0
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Output:  os.Stdout,
		Service: "camd",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")
	logger.Info().
		Str("event", "camd.starting").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("config", *configPath).
		Strs("env_keys", loader.ConsumedEnvKeys).
		Msg("starting camd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := daemon.Build(ctx, cfg, version.Version)
	if err != nil {
		logger.Error().Err(err).Str("event", "camd.build_failed").Msg("failed to build runtime")
		return 1
	}

	mgr, err := daemon.NewManager(daemon.ServerConfig{
		ListenAddr:      cfg.API.ListenAddr,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}, daemon.Deps{
		Logger:     xglog.Base(),
		APIHandler: rt.API.Handler(),
	})
	if err != nil {
		_ = rt.Close(context.Background())
		logger.Error().Err(err).Str("event", "camd.manager_failed").Msg("failed to create manager")
		return 1
	}

	app := daemon.NewApp(xglog.WithComponent("daemon"), mgr, config.NewHolder(cfg, loader), rt)
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "camd.exit_error").Msg("camd stopped with error")
		return 1
	}
	logger.Info().Str("event", "camd.stopped").Msg("camd stopped")
	return 0
}
