// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mountgate/internal/logging"
	"github.com/tomtom215/mountgate/internal/metrics"
)

// DefaultTimeout bounds every callout so a wedged backend cannot stall a
// worker indefinitely.
const DefaultTimeout = 15 * time.Second

// maxResponseDiscard caps how much response body is drained before the
// connection is released. The body carries no protocol meaning.
const maxResponseDiscard = 1 << 20

// Executor performs one blocking POST against the authentication backend.
//
// Do returns an error only for transport-level failures (DNS, TLS, timeout,
// refused connection). An HTTP response of any status is a successful
// execution; acceptance is signaled exclusively through the response headers,
// which are streamed line by line to onHeaderLine. The response body is read
// and discarded.
//
// An Executor is not safe for concurrent Do calls; the owning Handle
// serializes access.
type Executor interface {
	Do(ctx context.Context, calloutURL, body string, onHeaderLine func(line string)) error
	Close()
}

// httpExecutor is the production Executor backed by net/http.
type httpExecutor struct {
	client *http.Client
}

func newHTTPExecutor(timeout time.Duration) *httpExecutor {
	return &httpExecutor{
		client: &http.Client{Timeout: timeout},
	}
}

// Do implements Executor.
func (e *httpExecutor) Do(ctx context.Context, calloutURL, body string, onHeaderLine func(string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, calloutURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if onHeaderLine != nil {
		// Reconstruct wire-style header lines so markers that include the
		// CRLF terminator (the default does) can match as a prefix.
		for name, values := range resp.Header {
			for _, value := range values {
				onHeaderLine(name + ": " + value + "\r\n")
			}
		}
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDiscard))
	return nil
}

// Close implements Executor.
func (e *httpExecutor) Close() {
	e.client.CloseIdleConnections()
}

// limitedExecutor applies a shared outbound rate limit before delegating.
// It protects the backend from callout storms; a limiter wait aborted by
// context cancellation surfaces as a transport failure.
type limitedExecutor struct {
	next    Executor
	limiter *rate.Limiter
}

func newLimitedExecutor(next Executor, limit float64, burst int) *limitedExecutor {
	if burst < 1 {
		burst = 1
	}
	return &limitedExecutor{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
	}
}

// Do implements Executor.
func (e *limitedExecutor) Do(ctx context.Context, calloutURL, body string, onHeaderLine func(string)) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return e.next.Do(ctx, calloutURL, body, onHeaderLine)
}

// Close implements Executor.
func (e *limitedExecutor) Close() {
	e.next.Close()
}

// breakerExecutor sheds load when the backend fails repeatedly. It never
// retries a callout; a rejected call is reported as a transport failure and
// the event's local bookkeeping proceeds as usual.
type breakerExecutor struct {
	next Executor
	cb   *gobreaker.CircuitBreaker[struct{}]
	name string
}

func newBreakerExecutor(next Executor, name string) *breakerExecutor {
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		// Open after 5 consecutive failures. Callouts are cheap and rare
		// compared to an analytics API, so a ratio-based trip would take
		// too long to accumulate significance.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("Callout circuit breaker state transition")
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.BreakerTransitions.WithLabelValues(name, breakerStateString(from), breakerStateString(to)).Inc()
		},
	})

	return &breakerExecutor{next: next, cb: cb, name: name}
}

// Do implements Executor.
func (e *breakerExecutor) Do(ctx context.Context, calloutURL, body string, onHeaderLine func(string)) error {
	_, err := e.cb.Execute(func() (struct{}, error) {
		return struct{}{}, e.next.Do(ctx, calloutURL, body, onHeaderLine)
	})
	return err
}

// Close implements Executor.
func (e *breakerExecutor) Close() {
	e.next.Close()
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
