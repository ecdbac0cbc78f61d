// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package supervisor provides Suture-based process supervision: a small
// tree holding the event API server and the SIGHUP configuration reloader,
// with restart backoff and event logging through sutureslog.
package supervisor
