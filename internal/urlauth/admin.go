// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

// AddUser always fails: URL authentication keeps no local user list.
func (h *Handle) AddUser(username, password string) error {
	return ErrUnsupported
}

// DeleteUser always fails: URL authentication keeps no local user list.
func (h *Handle) DeleteUser(username string) error {
	return ErrUnsupported
}

// ListUsers always fails: URL authentication keeps no local user list.
func (h *Handle) ListUsers() ([]string, error) {
	return nil, ErrUnsupported
}
