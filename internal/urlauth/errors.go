// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import "errors"

var (
	// ErrSetup indicates a handle could not be created from its options.
	// Configuration loading must reject the mountpoint's authentication
	// block when it sees this error; no partial handle is left behind.
	ErrSetup = errors.New("url auth setup failed")

	// ErrUnsupported is returned by the user management operations.
	// URL authentication delegates all account state to the remote backend,
	// so there is no local user list to manage.
	ErrUnsupported = errors.New("user management not supported by url auth")

	// errBodyTooLarge rejects pathological callout bodies instead of
	// silently truncating them. The limit is far above anything a real
	// mount path, username or user agent produces.
	errBodyTooLarge = errors.New("callout body exceeds maximum size")
)
