// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package main is the entry point for the MountGate server.
//
// MountGate sits next to a streaming media server and delegates its
// listener authentication to external HTTP backends. The streaming server
// reports lifecycle events (listener connect/disconnect, source start/end)
// to MountGate's event API; MountGate translates them into form-encoded
// callouts against the auth backends configured per mountpoint and returns
// the admission decision.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file,
//     MOUNTGATE_* environment variables), validated before use
//  2. Logging: zerolog, JSON or console format
//  3. Mount registry: one authorization handle per protected mountpoint
//  4. Event API: Chi router with per-IP rate limiting, /healthz, /metrics
//  5. Supervision: suture tree running the HTTP server and the SIGHUP
//     configuration reloader
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests within the configured timeout, then every remaining
// client is detached and all authorization handles are released. SIGHUP
// reloads the mount configuration without dropping connected clients.
//
// # Example Usage
//
//	./mountgate -config /etc/mountgate/config.yaml
//
// Minimal configuration:
//
//	server:
//	  hostname: stream.example.com
//	mounts:
//	  - path: /live
//	    auth:
//	      - name: add
//	        value: http://auth.example.com/listener
//	      - name: remove
//	        value: http://auth.example.com/listener
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/mountgate/internal/api"
	"github.com/tomtom215/mountgate/internal/config"
	"github.com/tomtom215/mountgate/internal/logging"
	"github.com/tomtom215/mountgate/internal/registry"
	"github.com/tomtom215/mountgate/internal/supervisor"
	"github.com/tomtom215/mountgate/internal/urlauth"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mountgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to configuration file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("mountgate", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	logging.Info().
		Str("version", version).
		Str("hostname", cfg.Server.Hostname).
		Int("mounts", len(cfg.Mounts)).
		Msg("MountGate starting")

	reg, err := registry.New(cfg, urlauth.Config{
		Timeout:   cfg.Callout.Timeout,
		Breaker:   cfg.Callout.Breaker,
		RateLimit: cfg.Callout.RateLimit,
		RateBurst: cfg.Callout.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("building mount registry: %w", err)
	}
	defer reg.Close()

	server := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           api.NewRouter(cfg.API, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slogger := slog.New(logging.NewSlogHandler())
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.API.ShutdownTimeout
	tree := supervisor.NewTree(slogger, treeCfg)
	tree.Add(supervisor.NewHTTPServerService(server, cfg.API.ShutdownTimeout))
	tree.Add(supervisor.NewReloadService(*configPath, reg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("listen", cfg.API.Listen).Msg("Event API listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("MountGate stopped")
	return nil
}
