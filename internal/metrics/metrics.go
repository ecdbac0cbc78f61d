// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

// Package metrics provides Prometheus instrumentation for MountGate:
//   - Authentication callout throughput, outcomes and latency
//   - Live authorization handle count
//   - Circuit breaker state for the callout executors
//   - Inbound event API traffic
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Callout outcome label values.
const (
	OutcomeOK             = "ok"
	OutcomeRejected       = "rejected"
	OutcomeTransportError = "transport_error"
	OutcomeSkipped        = "skipped"
)

var (
	// CalloutsTotal counts outbound authentication callouts by action and outcome.
	CalloutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mountgate_callouts_total",
			Help: "Total number of authentication callouts by action (auth, remove, start, end) and outcome",
		},
		[]string{"action", "outcome"},
	)

	// CalloutDuration observes wall-clock time of outbound callouts.
	CalloutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mountgate_callout_duration_seconds",
			Help:    "Duration of authentication callouts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// AuthHandlesActive tracks authorization handles that have been created
	// and not yet destroyed (refcount still above zero).
	AuthHandlesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mountgate_auth_handles_active",
			Help: "Current number of live authorization handles",
		},
	)

	// BreakerState reports circuit breaker state per handle executor
	// (0 = closed, 1 = half-open, 2 = open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mountgate_callout_breaker_state",
			Help: "Circuit breaker state for callout executors (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// BreakerTransitions counts circuit breaker state transitions.
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mountgate_callout_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// EventsReceived counts inbound events from the streaming server core.
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mountgate_events_received_total",
			Help: "Total number of inbound access-control events by type",
		},
		[]string{"event"},
	)
)

// RecordCallout records one completed callout attempt.
// Skipped callouts (unset URL) are counted but not timed, since no network
// call took place.
func RecordCallout(action, outcome string, duration time.Duration) {
	CalloutsTotal.WithLabelValues(action, outcome).Inc()
	if outcome != OutcomeSkipped {
		CalloutDuration.WithLabelValues(action).Observe(duration.Seconds())
	}
}

