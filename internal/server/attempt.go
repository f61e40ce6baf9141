// Package server exposes the client-facing HTTP surface of SPEC_FULL.md
// §6 and drives the retry/account-rotation loop of §4.5 that every
// dialect handler shares. Grounded on 2a1758dd_...adapter.go.go's
// Execute retry loop (dual-endpoint iteration, retriedWithoutThinking)
// and the teacher's cmd/gateway wiring style for server composition.
package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fpt/klein-cli/internal/ratelimit"
	"github.com/fpt/klein-cli/internal/retry"
	"github.com/fpt/klein-cli/internal/tokenpool"
	"github.com/fpt/klein-cli/internal/upstream"
	"github.com/fpt/klein-cli/pkg/logger"
)

var tracer = otel.Tracer("internal/server")

// attemptResult is what a single successful upstream POST yields to the
// caller, which is responsible for streaming or buffering the body.
type attemptResult struct {
	resp      *http.Response
	accountID string
	email     string
}

// UpstreamError is returned when every attempt is exhausted or a
// non-retryable status came back verbatim (SPEC_FULL.md §4.5 "Terminal
// behaviors").
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream: status %d", e.Status)
}

// runAttempts drives up to min(retry.MaxAttempts, pool size) attempts
// against Upstream, selecting accounts, sanitizing the envelope on the
// first thinking-signature 400, and recording rate-limit lockouts.
// sessionID may be empty for non-sticky request types (e.g. image_gen).
func (s *Server) runAttempts(ctx context.Context, quotaGroup, sessionID string, env upstream.Envelope, stream bool) (*attemptResult, error) {
	ctx, span := tracer.Start(ctx, "retry.attempts")
	defer span.End()

	excluded := map[string]bool{}
	retriedWithoutThinking := false
	var lastErr error
	var lastBody []byte
	var lastStatus int

	maxAttempts := retry.MaxAttempts
	if n := s.pool.Size(); n > 0 && n < maxAttempts {
		maxAttempts = n
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		sel, err := s.pool.GetToken(ctx, sessionID, attempt > 0, excluded)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		// Project id is per-account, resolved only once a token has been
		// selected, so it is stamped onto the envelope per attempt rather
		// than baked in at transform time.
		env.Project = sel.ProjectID

		resp, sendErr := s.sendToUpstream(ctx, sel.AccessToken, env, stream)
		if sendErr != nil {
			lastErr = sendErr
			excluded[sel.AccountID] = true
			if sleepErr := retry.Sleep(ctx, time.Duration(attempt+1)*200*time.Millisecond); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.tracker.MarkSuccess(sel.AccountID)
			s.log.InfoWithIntention(logger.IntentionSuccess, "upstream attempt succeeded", "account", sel.Email, "attempt", attempt)
			return &attemptResult{resp: resp, accountID: sel.AccountID, email: sel.Email}, nil
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastStatus = resp.StatusCode
		lastBody = body

		decision := retry.Decide(resp.StatusCode, string(body), resp.Header.Get("Retry-After"), attempt, retriedWithoutThinking)
		span.SetAttributes(
			attribute.Int("attempt", attempt),
			attribute.Int("http.status_code", resp.StatusCode),
			attribute.Int("retry.strategy", int(decision.Strategy)),
		)

		if decision.Strategy == retry.StrategyNoRetry {
			return nil, &UpstreamError{Status: lastStatus, Body: lastBody}
		}

		if isLockoutStatus(resp.StatusCode) {
			s.recordLockout(sel.AccountID, resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
			if resp.StatusCode == 429 {
				s.pool.DropSession(sessionID)
			}
		}

		if decision.Sanitize {
			retriedWithoutThinking = true
			sanitized, sanitizedModel := retry.SanitizeForRetry(env.Request, env.Model)
			env.Request = sanitized
			env.Model = sanitizedModel
		}

		if decision.RotateAccount {
			excluded[sel.AccountID] = true
		}

		if sleepErr := retry.Sleep(ctx, decision.Delay); sleepErr != nil {
			return nil, sleepErr
		}
	}

	if lastBody != nil {
		return nil, &UpstreamError{Status: lastStatus, Body: lastBody}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, tokenpool.ErrPoolExhausted
}

func isLockoutStatus(status int) bool {
	switch status {
	case 429, 500, 503, 529:
		return true
	default:
		return false
	}
}

// recordLockout extracts whatever precision tier is available from the
// failed response and records it in the rate-limit ledger (SPEC_FULL.md
// §4.6): tier 1 (Retry-After header or quotaResetDelay), falling back to
// an absolute quotaResetTimeStamp in the same error body, passed as the
// ledger's ResetAt signal, when no explicit delay is present. Neither the
// live quota API nor the cached account file is consulted here; the ledger
// falls straight through to tier 4 (exponential backoff) when neither
// delay nor timestamp is present.
func (s *Server) recordLockout(accountID string, status int, retryAfterHeader, body string) {
	reason := ratelimit.ReasonUnknown
	switch {
	case status == 429 && bytesContainsAny(body, "RESOURCE_EXHAUSTED", "QUOTA_EXCEEDED", "quota"):
		reason = ratelimit.ReasonQuotaExhausted
	case status == 503 || status == 529:
		reason = ratelimit.ReasonModelCapacityExhausted
	}

	var sig ratelimit.QuotaSignal
	if delay, ok := retry.ParseRetryDelay(retryAfterHeader, body); ok {
		sig.RetryAfter = delay
	} else if resetAt, ok := retry.ParseQuotaResetTimestamp(body); ok {
		sig.ResetAt = resetAt
	}
	wait := s.tracker.Lock(accountID, reason, sig)
	s.log.WarnWithIntention(logger.IntentionRetry, "account rate-limited", "account", accountID, "status", status, "wait", wait)
}

func bytesContainsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if bytes.Contains([]byte(s), []byte(sub)) {
			return true
		}
	}
	return false
}

// sendToUpstream tries each configured base URL in order, per request,
// falling back to the next endpoint on a connection-level error or a
// retryable status (retry.IsRetryableStatus); the last endpoint's response
// is returned whatever its status (the dual-endpoint iteration the
// grounding adapter performs independent of account rotation).
func (s *Server) sendToUpstream(ctx context.Context, accessToken string, env upstream.Envelope, stream bool) (*http.Response, error) {
	var lastErr error
	endpoints := s.upstream.Endpoints()
	for i, base := range endpoints {
		resp, err := s.upstream.Send(ctx, base, stream, accessToken, env)
		if err == nil {
			if i < len(endpoints)-1 && retry.IsRetryableStatus(resp.StatusCode) {
				resp.Body.Close()
				continue
			}
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// startRequestSpan opens a request-scoped span for a dialect handler,
// returning the derived context the rest of the request should use.
func startRequestSpan(ctx context.Context, dialect, model string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "request."+dialect)
	span.SetAttributes(attribute.String("model", model))
	return ctx, span
}
