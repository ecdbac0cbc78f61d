// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import (
	"sync"
	"sync/atomic"
	"time"
)

// Result is the outcome of a callout operation as seen by the caller.
type Result int

const (
	// ResultOK admits the client or acknowledges a notification.
	ResultOK Result = iota

	// ResultFailed denies the client. For the notification callouts
	// (remove, start, end) it is never returned; those are best effort.
	ResultFailed
)

// String implements fmt.Stringer.
func (r Result) String() string {
	if r == ResultOK {
		return "ok"
	}
	return "failed"
}

// Client describes one connected listener as reported by the server core.
type Client struct {
	// ID is the server's client identification token.
	ID string

	// Username and Password are the credentials presented on connect.
	Username string
	Password string

	// IP is the client's remote address.
	IP string

	// UserAgent is the client's User-Agent header, empty if absent.
	// An absent agent is reported to the backend as "-".
	UserAgent string

	// ConnectedAt is when the connection was admitted. The remove callout
	// reports seconds elapsed since this time.
	ConnectedAt time.Time

	mu   sync.Mutex
	auth *Handle
}

// Attach records the handle governing this client. The caller must already
// hold a reference on the handle for the client; Detach releases it.
func (c *Client) Attach(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = h
}

// Detach clears the client's handle reference and reports whether the client
// was attached. It is idempotent so a disconnecting client can never release
// the admission reference twice or be re-queued for further processing.
func (c *Client) Detach() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth == nil {
		return false
	}
	c.auth = nil
	return true
}

// Job is one callout invocation. It is created per event, consumed by exactly
// one operation and discarded afterwards.
type Job struct {
	// Client is the originating client; nil for stream-start and stream-end.
	Client *Client

	// Mount is the mountpoint path the event concerns.
	Mount string

	// Server is the server hostname reported to the backend, captured from
	// the configuration at event time.
	Server string

	accepted atomic.Bool
}

// Accepted reports whether the backend returned the accept marker for this
// job. It is meaningful only for the auth callout.
func (j *Job) Accepted() bool {
	return j.accepted.Load()
}

// accept sets the job's accepted flag. Write-once: there is no way to clear
// it, matching the header matcher's one-way contract.
func (j *Job) accept() {
	j.accepted.Store(true)
}
