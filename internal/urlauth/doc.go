// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package urlauth implements URL-based client authentication for stream
// mountpoints. Access decisions are delegated to a remote HTTP backend via
// form-encoded POST callouts.
//
// When a client connects, the backend receives:
//
//	action=auth&server=myserver.com&client=1&mount=/live&user=fred&pass=mypass&ip=127.0.0.1&agent=-
//
// and accepts the client by returning the response header:
//
//	icecast-auth-user: 1
//
// On disconnect the same backend is notified with action=remove and the
// connection duration in seconds. When a source stream starts or ends, the
// backend can be notified so it can clear per-stream state after abnormal
// outages:
//
//	action=start&mount=/live&server=myserver.com
//	action=end&mount=/live&server=myserver.com
//
// A Handle owns the configured URLs, the accept marker and the network
// executor for one mountpoint backend. Handles are reference counted:
// the owning configuration holds one reference, and every in-flight callout
// that must survive a configuration reload holds another. The handle is
// destroyed when the last reference is released, never while a callout is
// running against it.
//
// The remove, start and end callouts are best effort: a transport failure is
// logged and local bookkeeping proceeds. Only the auth callout gates access.
package urlauth
