// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import "strings"

// DefaultAcceptMarker is the response header line the backend must return
// for a client to be accepted. The "header" option overrides it verbatim.
const DefaultAcceptMarker = "icecast-auth-user: 1\r\n"

// markerMatches reports whether a response header line starts with the
// configured accept marker, compared case-insensitively.
//
// It is called once per header line and must tolerate malformed or binary
// input; anything that does not compare cleanly is simply no match.
func markerMatches(line, marker string) bool {
	if marker == "" || len(line) < len(marker) {
		return false
	}
	return strings.EqualFold(line[:len(marker)], marker)
}
