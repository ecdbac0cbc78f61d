// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/mountgate/internal/config"
	"github.com/tomtom215/mountgate/internal/logging"
)

// Reloader applies a freshly parsed configuration. Implemented by the
// mount registry.
type Reloader interface {
	Reload(cfg *config.Config) error
}

// ReloadService watches for SIGHUP and reloads the mount configuration.
// A configuration that fails to parse or validate is rejected and the
// running table stays untouched.
type ReloadService struct {
	path     string
	reloader Reloader
	signals  chan os.Signal
}

// NewReloadService creates the SIGHUP reload watcher. path is the config
// file path given at startup; empty means the default search paths.
func NewReloadService(path string, reloader Reloader) *ReloadService {
	return &ReloadService{
		path:     path,
		reloader: reloader,
		signals:  make(chan os.Signal, 1),
	}
}

// Serve implements suture.Service.
func (s *ReloadService) Serve(ctx context.Context) error {
	signal.Notify(s.signals, syscall.SIGHUP)
	defer signal.Stop(s.signals)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.signals:
			s.reload()
		}
	}
}

func (s *ReloadService) reload() {
	cfg, err := config.Load(s.path)
	if err != nil {
		logging.Error().Err(err).Msg("Configuration reload rejected")
		return
	}
	if err := s.reloader.Reload(cfg); err != nil {
		logging.Error().Err(err).Msg("Applying reloaded configuration failed")
		return
	}
	logging.Info().Int("mounts", len(cfg.Mounts)).Msg("Configuration reloaded")
}

// String implements fmt.Stringer; suture uses it in event logs.
func (s *ReloadService) String() string {
	return "config-reload"
}
