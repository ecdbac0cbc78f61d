// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package api exposes the inbound event API the streaming server calls into:
// client connect/disconnect and source start/end notifications, plus health
// and Prometheus endpoints. Authentication decisions come back synchronously
// in the connect response.
package api
