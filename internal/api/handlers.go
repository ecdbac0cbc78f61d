// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/mountgate/internal/logging"
	"github.com/tomtom215/mountgate/internal/metrics"
	"github.com/tomtom215/mountgate/internal/urlauth"
)

// maxEventBody bounds inbound event payloads.
const maxEventBody = 16 * 1024

// EventSink receives the streaming server's lifecycle events. Implemented
// by the mount registry; narrowed to an interface so handlers are testable
// without live auth backends.
type EventSink interface {
	Connect(ctx context.Context, c *urlauth.Client, mount string) urlauth.Result
	Disconnect(ctx context.Context, mount, clientID string) urlauth.Result
	SourceStart(ctx context.Context, mount string) urlauth.Result
	SourceEnd(ctx context.Context, mount string) urlauth.Result
}

// Handler holds the event API handlers.
type Handler struct {
	sink EventSink
}

// NewHandler creates the event API handler set.
func NewHandler(sink EventSink) *Handler {
	return &Handler{sink: sink}
}

// connectRequest is the payload for a listener connect event.
type connectRequest struct {
	Mount     string `json:"mount"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// disconnectRequest is the payload for a listener disconnect event.
type disconnectRequest struct {
	Mount    string `json:"mount"`
	ClientID string `json:"client_id"`
}

// sourceRequest is the payload for source start/end notifications.
type sourceRequest struct {
	Mount string `json:"mount"`
}

// connectResponse reports the authentication decision.
type connectResponse struct {
	Allowed  bool   `json:"allowed"`
	ClientID string `json:"client_id"`
}

// Connect handles POST /v1/events/connect. The decision is synchronous: the
// auth callout runs before the response is written. A missing client_id is
// assigned server-side so the disconnect event can reference it.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	metrics.EventsReceived.WithLabelValues("connect").Inc()

	var req connectRequest
	if !decodeEvent(w, r, &req) {
		return
	}
	if req.Mount == "" {
		respondError(w, http.StatusBadRequest, "mount is required")
		return
	}
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	client := &urlauth.Client{
		ID:          req.ClientID,
		Username:    req.Username,
		Password:    req.Password,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		ConnectedAt: time.Now(),
	}
	if client.IP == "" {
		client.IP = remoteIP(r)
	}

	res := h.sink.Connect(r.Context(), client, req.Mount)
	resp := connectResponse{Allowed: res == urlauth.ResultOK, ClientID: req.ClientID}

	status := http.StatusOK
	if !resp.Allowed {
		status = http.StatusForbidden
		logging.Info().
			Str("mount", req.Mount).
			Str("client", req.ClientID).
			Str("user", req.Username).
			Msg("Client denied")
	}
	respondJSON(w, status, resp)
}

// Disconnect handles POST /v1/events/disconnect. Always succeeds from the
// caller's point of view; the remove callout is best effort.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	metrics.EventsReceived.WithLabelValues("disconnect").Inc()

	var req disconnectRequest
	if !decodeEvent(w, r, &req) {
		return
	}
	if req.Mount == "" || req.ClientID == "" {
		respondError(w, http.StatusBadRequest, "mount and client_id are required")
		return
	}

	h.sink.Disconnect(r.Context(), req.Mount, req.ClientID)
	w.WriteHeader(http.StatusNoContent)
}

// SourceStart handles POST /v1/events/source-start.
func (h *Handler) SourceStart(w http.ResponseWriter, r *http.Request) {
	metrics.EventsReceived.WithLabelValues("source_start").Inc()
	h.sourceEvent(w, r, h.sink.SourceStart)
}

// SourceEnd handles POST /v1/events/source-end.
func (h *Handler) SourceEnd(w http.ResponseWriter, r *http.Request) {
	metrics.EventsReceived.WithLabelValues("source_end").Inc()
	h.sourceEvent(w, r, h.sink.SourceEnd)
}

func (h *Handler) sourceEvent(w http.ResponseWriter, r *http.Request, notify func(context.Context, string) urlauth.Result) {
	var req sourceRequest
	if !decodeEvent(w, r, &req) {
		return
	}
	if req.Mount == "" {
		respondError(w, http.StatusBadRequest, "mount is required")
		return
	}

	notify(r.Context(), req.Mount)
	w.WriteHeader(http.StatusAccepted)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeEvent reads and decodes a JSON event payload. On failure it writes
// the error response and returns false.
func decodeEvent(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("Writing response failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// remoteIP strips the port from RemoteAddr. RealIP middleware has already
// substituted X-Forwarded-For when present.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
