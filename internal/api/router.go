// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/mountgate/internal/config"
	"github.com/tomtom215/mountgate/internal/logging"
)

// NewRouter assembles the event API. Rate limiting applies per source IP
// to the event endpoints only; health and metrics stay unthrottled for
// monitoring.
func NewRouter(cfg config.APIConfig, sink EventSink) http.Handler {
	h := NewHandler(sink)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging())

	r.Route("/v1/events", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.Limit(cfg.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			))
		}
		r.Post("/connect", h.Connect)
		r.Post("/disconnect", h.Disconnect)
		r.Post("/source-start", h.SourceStart)
		r.Post("/source-end", h.SourceEnd)
	})

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// statusResponseWriter captures the status code for access logging.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// requestLogging logs each request at debug level with method, path,
// status, and duration.
func requestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logging.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
