// MountGate - External Authentication Callouts for Streaming Media Servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mountgate

package urlauth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/mountgate/internal/logging"
	"github.com/tomtom215/mountgate/internal/metrics"
)

// Action label values for metrics and logs.
const (
	actionAuth   = "auth"
	actionRemove = "remove"
	actionStart  = "start"
	actionEnd    = "end"
)

// maxBodyBytes rejects runaway bodies instead of truncating them silently.
// Field values are unbounded in principle, so the guard is explicit.
const maxBodyBytes = 64 * 1024

// AuthenticateClient asks the backend whether job.Client may connect.
//
// With no add URL configured the client is admitted trivially. Otherwise one
// POST is issued; the client is admitted only if the response headers carry
// the accept marker and post-processing (if configured) succeeds. A transport
// failure is logged and denies the client.
//
// The caller must hold a live reference on the handle for the duration of
// the call.
func (h *Handle) AuthenticateClient(ctx context.Context, job *Job) Result {
	if h.addURL == "" {
		metrics.RecordCallout(actionAuth, metrics.OutcomeSkipped, 0)
		return ResultOK
	}

	c := job.Client
	agent := c.UserAgent
	if agent == "" {
		agent = "-"
	}

	var b strings.Builder
	b.WriteString("action=auth")
	writeField(&b, "server", job.Server)
	writeField(&b, "client", c.ID)
	writeField(&b, "mount", job.Mount)
	writeField(&b, "user", c.Username)
	writeField(&b, "pass", c.Password)
	writeField(&b, "ip", c.IP)
	writeField(&b, "agent", agent)

	started := time.Now()
	if err := h.checkedPerform(ctx, h.addURL, b.String(), job); err != nil {
		logging.Warn().Err(err).Str("url", h.addURL).Str("mount", job.Mount).Msg("Auth callout failed")
		metrics.RecordCallout(actionAuth, metrics.OutcomeTransportError, time.Since(started))
		return ResultFailed
	}

	if !job.Accepted() {
		metrics.RecordCallout(actionAuth, metrics.OutcomeRejected, time.Since(started))
		return ResultFailed
	}

	if h.postProcess != nil {
		if err := h.postProcess(job); err != nil {
			logging.Warn().Err(err).Str("mount", job.Mount).Msg("Auth post-processing rejected client")
			metrics.RecordCallout(actionAuth, metrics.OutcomeRejected, time.Since(started))
			return ResultFailed
		}
	}

	metrics.RecordCallout(actionAuth, metrics.OutcomeOK, time.Since(started))
	return ResultOK
}

// ReleaseClient notifies the backend that job.Client disconnected, reporting
// the connection duration in whole seconds.
//
// The client is detached from the handle after the callout attempt no matter
// what happened on the wire, releasing the admission reference, so a
// disconnecting client can never be re-queued for authentication and the
// refcount stays balanced. A transport failure is logged and otherwise
// ignored.
func (h *Handle) ReleaseClient(ctx context.Context, job *Job) Result {
	c := job.Client
	defer func() {
		if c != nil && c.Detach() {
			h.Release()
		}
	}()

	if h.removeURL == "" {
		metrics.RecordCallout(actionRemove, metrics.OutcomeSkipped, 0)
		return ResultOK
	}

	seconds := int64(h.now().Sub(c.ConnectedAt) / time.Second)
	if seconds < 0 {
		seconds = 0
	}

	var b strings.Builder
	b.WriteString("action=remove")
	writeField(&b, "server", job.Server)
	writeField(&b, "client", c.ID)
	writeField(&b, "mount", job.Mount)
	writeField(&b, "user", c.Username)
	writeField(&b, "pass", c.Password)
	b.WriteString("&duration=")
	b.WriteString(strconv.FormatInt(seconds, 10))

	started := time.Now()
	if err := h.checkedPerform(ctx, h.removeURL, b.String(), job); err != nil {
		logging.Warn().Err(err).Str("url", h.removeURL).Str("mount", job.Mount).Msg("Remove callout failed")
		metrics.RecordCallout(actionRemove, metrics.OutcomeTransportError, time.Since(started))
		return ResultOK
	}

	metrics.RecordCallout(actionRemove, metrics.OutcomeOK, time.Since(started))
	return ResultOK
}

// StreamStart notifies the backend that the source for job.Mount went live.
// Best effort: transport failures are logged and ignored. The caller holds a
// reference taken under the registry lock and releases it afterwards.
func (h *Handle) StreamStart(ctx context.Context, job *Job) Result {
	return h.notifyStream(ctx, actionStart, h.startURL, job)
}

// StreamEnd notifies the backend that the source for job.Mount went off-air.
// Best effort, same contract as StreamStart.
func (h *Handle) StreamEnd(ctx context.Context, job *Job) Result {
	return h.notifyStream(ctx, actionEnd, h.endURL, job)
}

func (h *Handle) notifyStream(ctx context.Context, action, calloutURL string, job *Job) Result {
	if calloutURL == "" {
		metrics.RecordCallout(action, metrics.OutcomeSkipped, 0)
		return ResultOK
	}

	var b strings.Builder
	b.WriteString("action=")
	b.WriteString(action)
	writeField(&b, "mount", job.Mount)
	writeField(&b, "server", job.Server)

	started := time.Now()
	if err := h.checkedPerform(ctx, calloutURL, b.String(), job); err != nil {
		logging.Warn().Err(err).Str("url", calloutURL).Str("mount", job.Mount).Msg("Stream callout failed")
		metrics.RecordCallout(action, metrics.OutcomeTransportError, time.Since(started))
		return ResultOK
	}

	metrics.RecordCallout(action, metrics.OutcomeOK, time.Since(started))
	return ResultOK
}

// checkedPerform applies the body size guard before handing off to the
// serialized executor.
func (h *Handle) checkedPerform(ctx context.Context, calloutURL, body string, job *Job) error {
	if len(body) > maxBodyBytes {
		return errBodyTooLarge
	}
	return h.perform(ctx, calloutURL, body, job)
}
