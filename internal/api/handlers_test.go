// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mountgate/internal/config"
	"github.com/tomtom215/mountgate/internal/urlauth"
)

// fakeSink records event calls and returns scripted results.
type fakeSink struct {
	mu            sync.Mutex
	connectRes    urlauth.Result
	connects      []*urlauth.Client
	connectMounts []string
	disconnects   []string
	starts        []string
	ends          []string
}

func (f *fakeSink) Connect(_ context.Context, c *urlauth.Client, mount string) urlauth.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, c)
	f.connectMounts = append(f.connectMounts, mount)
	return f.connectRes
}

func (f *fakeSink) Disconnect(_ context.Context, mount, clientID string) urlauth.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, mount+"|"+clientID)
	return urlauth.ResultOK
}

func (f *fakeSink) SourceStart(_ context.Context, mount string) urlauth.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, mount)
	return urlauth.ResultOK
}

func (f *fakeSink) SourceEnd(_ context.Context, mount string) urlauth.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, mount)
	return urlauth.ResultOK
}

func newTestRouter(sink *fakeSink, rateLimit int) http.Handler {
	return NewRouter(config.APIConfig{Listen: "127.0.0.1:0", RateLimit: rateLimit}, sink)
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestConnect_Allowed verifies an admitted client gets a 200 with its ID.
func TestConnect_Allowed(t *testing.T) {
	sink := &fakeSink{connectRes: urlauth.ResultOK}
	router := newTestRouter(sink, 0)

	rec := postJSON(t, router, "/v1/events/connect",
		`{"mount":"/live","client_id":"42","username":"fred","password":"mypass","ip":"10.0.0.9","user_agent":"icy-player"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Allowed  bool   `json:"allowed"`
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if !resp.Allowed || resp.ClientID != "42" {
		t.Errorf("Response = %+v", resp)
	}

	if len(sink.connects) != 1 {
		t.Fatalf("Connect calls = %d, want 1", len(sink.connects))
	}
	c := sink.connects[0]
	if c.ID != "42" || c.Username != "fred" || c.IP != "10.0.0.9" || c.UserAgent != "icy-player" {
		t.Errorf("Client = %+v", c)
	}
	if c.ConnectedAt.IsZero() {
		t.Error("ConnectedAt not stamped")
	}
	if sink.connectMounts[0] != "/live" {
		t.Errorf("Mount = %q", sink.connectMounts[0])
	}
}

// TestConnect_Denied verifies a rejected client gets a 403.
func TestConnect_Denied(t *testing.T) {
	sink := &fakeSink{connectRes: urlauth.ResultFailed}
	router := newTestRouter(sink, 0)

	rec := postJSON(t, router, "/v1/events/connect", `{"mount":"/live","client_id":"42"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"allowed":false`) {
		t.Errorf("Body = %s", rec.Body.String())
	}
}

// TestConnect_AssignsClientID verifies a missing client_id is generated and
// returned so the caller can use it for the disconnect event.
func TestConnect_AssignsClientID(t *testing.T) {
	sink := &fakeSink{connectRes: urlauth.ResultOK}
	router := newTestRouter(sink, 0)

	rec := postJSON(t, router, "/v1/events/connect", `{"mount":"/live","username":"fred"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	var resp struct {
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if resp.ClientID == "" {
		t.Error("No client_id assigned")
	}
	if sink.connects[0].ID != resp.ClientID {
		t.Errorf("Sink saw ID %q, response carried %q", sink.connects[0].ID, resp.ClientID)
	}
}

// TestConnect_BadRequests rejects malformed payloads before the sink runs.
func TestConnect_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{"mount":`},
		{"missing mount", `{"client_id":"42"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &fakeSink{connectRes: urlauth.ResultOK}
			router := newTestRouter(sink, 0)
			rec := postJSON(t, router, "/v1/events/connect", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", rec.Code)
			}
			if len(sink.connects) != 0 {
				t.Error("Sink reached despite bad request")
			}
		})
	}
}

// TestDisconnect_RoutesToSink verifies the disconnect event and its 204.
func TestDisconnect_RoutesToSink(t *testing.T) {
	sink := &fakeSink{}
	router := newTestRouter(sink, 0)

	rec := postJSON(t, router, "/v1/events/disconnect", `{"mount":"/live","client_id":"42"}`)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Status = %d, want 204", rec.Code)
	}
	if len(sink.disconnects) != 1 || sink.disconnects[0] != "/live|42" {
		t.Errorf("Disconnects = %v", sink.disconnects)
	}

	rec = postJSON(t, router, "/v1/events/disconnect", `{"mount":"/live"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status without client_id = %d, want 400", rec.Code)
	}
}

// TestSourceEvents_Accepted verifies start/end notifications return 202.
func TestSourceEvents_Accepted(t *testing.T) {
	sink := &fakeSink{}
	router := newTestRouter(sink, 0)

	if rec := postJSON(t, router, "/v1/events/source-start", `{"mount":"/live"}`); rec.Code != http.StatusAccepted {
		t.Errorf("source-start status = %d, want 202", rec.Code)
	}
	if rec := postJSON(t, router, "/v1/events/source-end", `{"mount":"/live"}`); rec.Code != http.StatusAccepted {
		t.Errorf("source-end status = %d, want 202", rec.Code)
	}
	if len(sink.starts) != 1 || sink.starts[0] != "/live" {
		t.Errorf("Starts = %v", sink.starts)
	}
	if len(sink.ends) != 1 || sink.ends[0] != "/live" {
		t.Errorf("Ends = %v", sink.ends)
	}
}

// TestHealthAndMetrics verifies the observability endpoints respond.
func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(&fakeSink{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

// TestRateLimit_AppliesToEvents verifies the per-IP budget throttles event
// endpoints but leaves health alone.
func TestRateLimit_AppliesToEvents(t *testing.T) {
	sink := &fakeSink{}
	router := newTestRouter(sink, 2)

	var last int
	for i := 0; i < 3; i++ {
		rec := postJSON(t, router, "/v1/events/source-start", `{"mount":"/live"}`)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("Third request status = %d, want 429", last)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz throttled: status = %d", rec.Code)
	}
}
