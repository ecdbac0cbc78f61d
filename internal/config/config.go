// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package config loads and validates MountGate configuration with layered
// sources: built-in defaults, an optional YAML file, then MOUNTGATE_*
// environment variables, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	API     APIConfig     `koanf:"api"`
	Callout CalloutConfig `koanf:"callout"`
	Mounts  []MountConfig `koanf:"mounts" validate:"dive"`
}

// ServerConfig identifies the streaming server this subsystem guards.
type ServerConfig struct {
	// Hostname is reported to auth backends in the server= body field.
	Hostname string `koanf:"hostname" validate:"required"`
}

// LogConfig mirrors logging.Config for the file/env surface.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// APIConfig configures the inbound event API.
type APIConfig struct {
	// Listen is the host:port the event API binds to.
	Listen string `koanf:"listen" validate:"required,hostname_port"`

	// RateLimit is the per-IP request budget per minute. Zero disables it.
	RateLimit int `koanf:"ratelimit" validate:"min=0"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout" validate:"min=0"`
}

// CalloutConfig tunes the outbound callout engine shared by all handles.
type CalloutConfig struct {
	// Timeout bounds each callout. Zero keeps the engine default (15s).
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`

	// Breaker enables the per-handle circuit breaker.
	Breaker bool `koanf:"breaker"`

	// RateLimit caps outbound callouts per second per handle. Zero is
	// unlimited. RateBurst defaults to 1 when a limit is set.
	RateLimit float64 `koanf:"ratelimit" validate:"min=0"`
	RateBurst int     `koanf:"rateburst" validate:"min=0"`
}

// MountConfig is one protected mountpoint and its auth options.
type MountConfig struct {
	// Path is the mountpoint, always beginning with a slash.
	Path string `koanf:"path" validate:"required,startswith=/"`

	// Auth is the ordered option list handed to the auth backend kind
	// (username, password, add, remove, start, end, header). Order matters:
	// a repeated name keeps its last value.
	Auth []AuthOption `koanf:"auth" validate:"dive"`
}

// AuthOption is one named option inside a mount's auth block.
type AuthOption struct {
	Name  string `koanf:"name" validate:"required"`
	Value string `koanf:"value"`
}

// defaultConfig returns the built-in defaults applied before file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Hostname: "localhost",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		API: APIConfig{
			Listen:          "127.0.0.1:8065",
			RateLimit:       600,
			ShutdownTimeout: 10 * time.Second,
		},
		Callout: CalloutConfig{
			Timeout:   15 * time.Second,
			Breaker:   false,
			RateLimit: 0,
			RateBurst: 0,
		},
	}
}

// singleton validator instance; validator caches struct metadata and is
// safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its struct tags plus the rules
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Mounts))
	for _, m := range c.Mounts {
		if _, dup := seen[m.Path]; dup {
			return fmt.Errorf("config: duplicate mount path %q", m.Path)
		}
		seen[m.Path] = struct{}{}
	}

	return nil
}
