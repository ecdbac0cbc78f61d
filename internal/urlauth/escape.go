// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import (
	"net/url"
	"strings"
)

// EscapeField percent-encodes a value for inclusion in a form-encoded
// callout body. Every variable field (username, password, mount, IP,
// user agent, server name) passes through here; literal key names and
// the action value do not.
//
// The encoding round-trips through any standard URL decoder: '&', '=',
// '%', whitespace and control bytes are all escaped.
func EscapeField(s string) string {
	return url.QueryEscape(s)
}

// writeField appends "&key=<escaped value>" to a body under construction.
func writeField(b *strings.Builder, key, value string) {
	b.WriteByte('&')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(EscapeField(value))
}
