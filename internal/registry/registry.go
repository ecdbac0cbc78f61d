// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package registry maps mountpoints to their authorization handles and owns
// the locking discipline around configuration reloads.
//
// The rule that keeps in-flight callouts safe: a handle is only ever reached
// through the registry lock, and any callout that outlives the lock takes a
// handle reference before the lock is released. A concurrent Reload may swap
// the mount table at any time; replaced handles survive until their last
// reference (an in-flight stream callout, or a still-connected client) is
// released.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/mountgate/internal/config"
	"github.com/tomtom215/mountgate/internal/logging"
	"github.com/tomtom215/mountgate/internal/urlauth"
)

type clientKey struct {
	mount string
	id    string
}

// clientEntry remembers which handle admitted a client, which can differ
// from the mount's current handle after a reload. The disconnect callout
// always goes to the admitting backend.
type clientEntry struct {
	client *urlauth.Client
	handle *urlauth.Handle
}

// Registry is the live mount table. All methods are safe for concurrent use.
type Registry struct {
	engine urlauth.Config

	mu       sync.RWMutex
	hostname string
	mounts   map[string]*urlauth.Handle
	clients  map[clientKey]*clientEntry
}

// New builds a registry from configuration. A mount whose auth block fails
// setup rejects the whole configuration; nothing is left registered.
func New(cfg *config.Config, engine urlauth.Config) (*Registry, error) {
	mounts, err := buildMounts(cfg, engine)
	if err != nil {
		return nil, err
	}
	return &Registry{
		engine:   engine,
		hostname: cfg.Server.Hostname,
		mounts:   mounts,
		clients:  make(map[clientKey]*clientEntry),
	}, nil
}

func buildMounts(cfg *config.Config, engine urlauth.Config) (map[string]*urlauth.Handle, error) {
	mounts := make(map[string]*urlauth.Handle, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		if len(m.Auth) == 0 {
			continue
		}
		options := make([]urlauth.Option, len(m.Auth))
		for i, o := range m.Auth {
			options[i] = urlauth.Option{Name: o.Name, Value: o.Value}
		}
		h, err := urlauth.New(m.Path, engine, options)
		if err != nil {
			for _, created := range mounts {
				created.Release()
			}
			return nil, fmt.Errorf("mount %s: %w", m.Path, err)
		}
		mounts[m.Path] = h
	}
	return mounts, nil
}

// Reload swaps in a freshly parsed mount table. It is all-or-nothing: a
// setup failure leaves the current table untouched. Handles replaced by the
// swap lose their configuration reference immediately, but stay alive while
// connected clients or in-flight callouts still hold references.
func (r *Registry) Reload(cfg *config.Config) error {
	mounts, err := buildMounts(cfg, r.engine)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := r.mounts
	r.mounts = mounts
	r.hostname = cfg.Server.Hostname
	r.mu.Unlock()

	for path, h := range old {
		logging.Debug().Str("mount", path).Msg("Releasing replaced auth handle")
		h.Release()
	}
	return nil
}

// lookup finds the handle for a mount and, if one exists, takes a reference
// on it while still under the lock. The caller owns that reference.
func (r *Registry) lookup(mount string) (*urlauth.Handle, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.mounts[mount]
	if h != nil {
		h.Acquire()
	}
	return h, r.hostname
}

// Connect runs the auth callout for a connecting client. An unprotected
// mount admits trivially. On admission the client stays attached to the
// handle, holding the reference that Disconnect later releases.
func (r *Registry) Connect(ctx context.Context, c *urlauth.Client, mount string) urlauth.Result {
	h, hostname := r.lookup(mount)
	if h == nil {
		return urlauth.ResultOK
	}

	job := &urlauth.Job{Client: c, Mount: mount, Server: hostname}
	if res := h.AuthenticateClient(ctx, job); res != urlauth.ResultOK {
		h.Release()
		return res
	}

	c.Attach(h)
	r.mu.Lock()
	r.clients[clientKey{mount: mount, id: c.ID}] = &clientEntry{client: c, handle: h}
	r.mu.Unlock()
	return urlauth.ResultOK
}

// Disconnect runs the remove callout for a departing client and detaches it.
// Unknown clients (unprotected mount, or already disconnected) are a no-op.
func (r *Registry) Disconnect(ctx context.Context, mount, clientID string) urlauth.Result {
	r.mu.Lock()
	key := clientKey{mount: mount, id: clientID}
	entry, ok := r.clients[key]
	delete(r.clients, key)
	hostname := r.hostname
	r.mu.Unlock()

	if !ok {
		return urlauth.ResultOK
	}

	job := &urlauth.Job{Client: entry.client, Mount: mount, Server: hostname}
	return entry.handle.ReleaseClient(ctx, job)
}

// SourceStart notifies the mount's backend that its source went live. The
// reference taken under the lock keeps the handle valid across the blocking
// callout even if a reload removes the mount meanwhile.
func (r *Registry) SourceStart(ctx context.Context, mount string) urlauth.Result {
	h, hostname := r.lookup(mount)
	if h == nil {
		return urlauth.ResultOK
	}
	defer h.Release()
	return h.StreamStart(ctx, &urlauth.Job{Mount: mount, Server: hostname})
}

// SourceEnd notifies the mount's backend that its source went off-air.
// Same lifetime contract as SourceStart.
func (r *Registry) SourceEnd(ctx context.Context, mount string) urlauth.Result {
	h, hostname := r.lookup(mount)
	if h == nil {
		return urlauth.ResultOK
	}
	defer h.Release()
	return h.StreamEnd(ctx, &urlauth.Job{Mount: mount, Server: hostname})
}

// Handle returns the current handle for a mount without taking a reference.
// Diagnostic and admin use only (user management pass-through).
func (r *Registry) Handle(mount string) *urlauth.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mounts[mount]
}

// Close detaches every remaining client and releases every configuration
// reference. Handles with in-flight callouts survive until those complete.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	mounts := r.mounts
	r.clients = make(map[clientKey]*clientEntry)
	r.mounts = make(map[string]*urlauth.Handle)
	r.mu.Unlock()

	for _, entry := range clients {
		if entry.client.Detach() {
			entry.handle.Release()
		}
	}
	for _, h := range mounts {
		h.Release()
	}
}
