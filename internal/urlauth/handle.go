// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/mountgate/internal/logging"
	"github.com/tomtom215/mountgate/internal/metrics"
)

// Option is one named configuration option from a mountpoint's
// authentication block. Options are applied in order; a repeated name
// overwrites the earlier value, preserving legacy config behavior.
type Option struct {
	Name  string
	Value string
}

// Config carries engine-level settings shared by the handles of one server.
type Config struct {
	// Timeout bounds each callout. Zero means DefaultTimeout.
	Timeout time.Duration

	// Breaker wraps the executor in a circuit breaker that sheds callouts
	// after repeated backend failures. It never retries.
	Breaker bool

	// RateLimit caps outbound callouts per second for the handle.
	// Zero means unlimited. RateBurst defaults to 1 when a limit is set.
	RateLimit float64
	RateBurst int

	// PostProcess runs after an accepted auth callout, before the client is
	// finally admitted (session accounting, listener counting). A non-nil
	// error rejects the client exactly like a backend rejection.
	PostProcess func(*Job) error

	// Executor overrides the network executor. Tests use this; production
	// leaves it nil and gets the HTTP executor.
	Executor Executor
}

// Handle is one configured URL-authentication backend.
//
// All fields are fixed at creation, so a handle reached through a mountpoint
// lookup stays internally consistent for as long as a reference is held, even
// if the configuration is reloaded and the mountpoint re-created meanwhile.
//
// The reference count starts at 1, owned by the configuration. Callouts that
// must outlive a possible reload (stream start/end) take an extra reference
// before the configuration lock is dropped and release it when they finish.
// The handle is destroyed exactly once, when the count reaches zero.
type Handle struct {
	name string

	addURL    string
	removeURL string
	startURL  string
	endURL    string

	// Stored for future use; the callout bodies carry the client's own
	// credentials, not these.
	username string
	password string

	acceptMarker string

	exec        Executor
	postProcess func(*Job) error

	// mu serializes callouts: the executor is a single reusable network
	// context and must never run two calls at once.
	mu   sync.Mutex
	refs atomic.Int64

	now func() time.Time
}

// New creates a handle for one mountpoint from its named options:
//
//	username, password  stored, reserved
//	add                 URL for the auth callout
//	remove              URL for the disconnect callout
//	start               URL for the stream-start callout
//	end                 URL for the stream-end callout
//	header              accept marker override
//
// Unset URLs disable the corresponding callout. Errors wrap ErrSetup and
// leave nothing registered.
func New(name string, cfg Config, options []Option) (*Handle, error) {
	h := &Handle{
		name:         name,
		acceptMarker: DefaultAcceptMarker,
		postProcess:  cfg.PostProcess,
		now:          time.Now,
	}

	for _, opt := range options {
		switch opt.Name {
		case "username":
			h.username = opt.Value
		case "password":
			h.password = opt.Value
		case "add":
			h.addURL = opt.Value
		case "remove":
			h.removeURL = opt.Value
		case "start":
			h.startURL = opt.Value
		case "end":
			h.endURL = opt.Value
		case "header":
			h.acceptMarker = opt.Value
		default:
			logging.Debug().Str("option", opt.Name).Str("handle", name).Msg("Ignoring unknown auth option")
		}
	}

	for _, u := range []struct{ name, value string }{
		{"add", h.addURL},
		{"remove", h.removeURL},
		{"start", h.startURL},
		{"end", h.endURL},
	} {
		if u.value == "" {
			continue
		}
		parsed, err := url.Parse(u.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s URL: %v", ErrSetup, u.name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("%w: %s URL %q: scheme must be http or https", ErrSetup, u.name, u.value)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout %v", ErrSetup, timeout)
	}

	exec := cfg.Executor
	if exec == nil {
		exec = newHTTPExecutor(timeout)
	}
	if cfg.RateLimit > 0 {
		exec = newLimitedExecutor(exec, cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.Breaker {
		exec = newBreakerExecutor(exec, name)
	}
	h.exec = exec

	h.refs.Store(1)
	metrics.AuthHandlesActive.Inc()
	logging.Debug().Str("handle", name).Msg("URL authentication configured")

	return h, nil
}

// Acquire takes an additional reference. The caller must already hold one,
// typically by calling under the registry's lock.
func (h *Handle) Acquire() {
	if h.refs.Add(1) <= 1 {
		panic("urlauth: Acquire on destroyed handle")
	}
}

// Release drops one reference and destroys the handle when the last one is
// gone. Destruction releases the network executor.
func (h *Handle) Release() {
	n := h.refs.Add(-1)
	switch {
	case n == 0:
		h.exec.Close()
		metrics.AuthHandlesActive.Dec()
		logging.Debug().Str("handle", h.name).Msg("URL authentication handle destroyed")
	case n < 0:
		panic("urlauth: Release on destroyed handle")
	}
}

// Refs reports the current reference count. Diagnostic only.
func (h *Handle) Refs() int64 {
	return h.refs.Load()
}

// Name reports the handle's configured name (its mountpoint path).
func (h *Handle) Name() string {
	return h.name
}

// perform runs one serialized callout, feeding response header lines to the
// accept matcher.
func (h *Handle) perform(ctx context.Context, calloutURL, body string, job *Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exec.Do(ctx, calloutURL, body, func(line string) {
		if markerMatches(line, h.acceptMarker) {
			job.accept()
		}
	})
}
