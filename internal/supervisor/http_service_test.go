// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// mockServer is a controllable HTTPServer.
type mockServer struct {
	serveErr    error
	release     chan struct{}
	shutdowns   atomic.Int32
	shutdownErr error
}

func (m *mockServer) ListenAndServe() error {
	if m.release != nil {
		<-m.release
	}
	if m.serveErr != nil {
		return m.serveErr
	}
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(_ context.Context) error {
	m.shutdowns.Add(1)
	if m.release != nil {
		close(m.release)
	}
	return m.shutdownErr
}

// TestHTTPServerService_GracefulShutdown verifies context cancellation
// drives Shutdown and returns the context error.
func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	srv := &mockServer{release: make(chan struct{})}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", srv.shutdowns.Load())
	}
}

// TestHTTPServerService_ServerFailure verifies a listen failure surfaces
// as an error so the supervisor restarts the service.
func TestHTTPServerService_ServerFailure(t *testing.T) {
	srv := &mockServer{serveErr: errors.New("bind: address already in use")}
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.serveErr) {
		t.Errorf("Serve = %v, want wrapped bind failure", err)
	}
}

// TestHTTPServerService_DefaultTimeout verifies the fallback shutdown
// timeout is applied.
func TestHTTPServerService_DefaultTimeout(t *testing.T) {
	svc := NewHTTPServerService(&mockServer{}, 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s", svc.shutdownTimeout)
	}
	if svc.String() != "event-api" {
		t.Errorf("String = %q", svc.String())
	}
}
