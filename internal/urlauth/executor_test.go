// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// TestHTTPExecutor_StreamsHeaderLines verifies response headers arrive as
// CRLF-terminated wire-style lines.
func TestHTTPExecutor_StreamsHeaderLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Icecast-Auth-User", "1")
		w.Header().Set("Icecast-Auth-Message", "welcome")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := newHTTPExecutor(DefaultTimeout)
	defer exec.Close()

	var lines []string
	err := exec.Do(context.Background(), srv.URL, "action=auth", func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	var sawAuth, sawMessage bool
	for _, line := range lines {
		if !strings.HasSuffix(line, "\r\n") {
			t.Errorf("Header line %q not CRLF terminated", line)
		}
		if strings.EqualFold(strings.TrimSuffix(line, "\r\n"), "icecast-auth-user: 1") {
			sawAuth = true
		}
		if strings.HasPrefix(strings.ToLower(line), "icecast-auth-message:") {
			sawMessage = true
		}
	}
	if !sawAuth || !sawMessage {
		t.Errorf("Missing expected header lines in %q", lines)
	}
}

// TestHTTPExecutor_NonOKStatusIsNotAnError verifies HTTP status is not
// interpreted; only headers matter.
func TestHTTPExecutor_NonOKStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	exec := newHTTPExecutor(DefaultTimeout)
	defer exec.Close()

	if err := exec.Do(context.Background(), srv.URL, "action=auth", nil); err != nil {
		t.Errorf("Do returned %v for HTTP 403, want nil (status is not transport failure)", err)
	}
}

// TestBreakerExecutor_OpensAfterConsecutiveFailures verifies the breaker
// sheds callouts once the backend fails repeatedly.
func TestBreakerExecutor_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("connection refused")
	inner := executorFunc(func(context.Context, string, string, func(string)) error {
		return boom
	})
	exec := newBreakerExecutor(inner, "breaker-test-open")

	for i := 0; i < 5; i++ {
		if err := exec.Do(context.Background(), "http://auth.example.com", "", nil); !errors.Is(err, boom) {
			t.Fatalf("Call %d: err = %v, want inner failure", i, err)
		}
	}

	err := exec.Do(context.Background(), "http://auth.example.com", "", nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("After 5 consecutive failures err = %v, want ErrOpenState", err)
	}
}

// TestBreakerExecutor_StaysClosedOnSuccess verifies successes keep the
// circuit closed.
func TestBreakerExecutor_StaysClosedOnSuccess(t *testing.T) {
	inner := executorFunc(func(context.Context, string, string, func(string)) error {
		return nil
	})
	exec := newBreakerExecutor(inner, "breaker-test-closed")

	for i := 0; i < 20; i++ {
		if err := exec.Do(context.Background(), "http://auth.example.com", "", nil); err != nil {
			t.Fatalf("Call %d failed: %v", i, err)
		}
	}
}

// TestLimitedExecutor_CanceledWaitIsTransportFailure verifies an aborted
// limiter wait surfaces as an error, not a hang.
func TestLimitedExecutor_CanceledWaitIsTransportFailure(t *testing.T) {
	var calls int
	inner := executorFunc(func(context.Context, string, string, func(string)) error {
		calls++
		return nil
	})
	// 1 req/s with burst 1: the second immediate call must wait a second.
	exec := newLimitedExecutor(inner, 1, 1)

	if err := exec.Do(context.Background(), "http://auth.example.com", "", nil); err != nil {
		t.Fatalf("First call failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := exec.Do(ctx, "http://auth.example.com", "", nil)
	if err == nil {
		t.Fatal("Second call succeeded, want rate limit wait failure")
	}
	if calls != 1 {
		t.Errorf("Inner executor ran %d times, want 1", calls)
	}
}
