// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package logging provides centralized zerolog-based logging for MountGate.
//
// All packages log through the global logger configured here. Initialize it
// once at startup:
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("mount", "/live").Msg("Stream started")
//	logging.Warn().Err(err).Str("url", u).Msg("Auth callout failed")
//
// Always terminate log chains with .Msg() or .Send(), and prefer structured
// fields over string formatting.
package logging
