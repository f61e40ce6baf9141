package server

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/fpt/klein-cli/internal/sse"
	"github.com/fpt/klein-cli/internal/transform/anthropic"
	"github.com/fpt/klein-cli/pkg/logger"
)

// handleAnthropicMessages implements POST /v1/messages (SPEC_FULL.md §6):
// transform, retry loop, then either stream an Anthropic SSE response or
// buffer and translate one non-streaming response.
func (s *Server) handleAnthropicMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	sessionID := sessionFingerprint(body, "messages")
	stream := requestWantsStream(body)

	result, err := anthropic.Transform(body, anthropic.Params{
		SessionID:       sessionID,
		Stream:          stream,
		Signatures:      s.signatures,
		SafetyThreshold: s.safetyThreshold,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "transform error: "+err.Error())
		return
	}

	ctx, span := startRequestSpan(r.Context(), "anthropic.messages", result.EffectiveModel)
	defer span.End()

	att, err := s.runAttempts(ctx, quotaGroupFor(result.EffectiveModel), sessionID, result.Envelope, stream)
	if err != nil {
		classifyFailure(w, err)
		return
	}
	defer att.resp.Body.Close()

	w.Header().Set("X-Account-Email", att.email)
	w.Header().Set("X-Mapped-Model", result.EffectiveModel)

	if stream {
		s.streamAnthropic(w, att, result, sessionID)
		return
	}
	s.nonStreamAnthropic(w, att, result, sessionID)
}

func (s *Server) streamAnthropic(w http.ResponseWriter, att *attemptResult, result anthropic.Result, sessionID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	msgID := "msg_" + uuid.NewString()
	state := sse.NewAnthropicStreamState(msgID, sessionID, result.EffectiveModel, s.signatures)
	if err := sse.Pump(att.resp.Request.Context(), att.resp.Body, w, flush, state); err != nil {
		s.log.WarnWithIntention(logger.IntentionRetry, "anthropic stream pump ended with error", "err", err)
	}
}

func (s *Server) nonStreamAnthropic(w http.ResponseWriter, att *attemptResult, result anthropic.Result, sessionID string) {
	body, err := io.ReadAll(att.resp.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "failed to read upstream response")
		return
	}
	out, err := sse.BuildAnthropicResponse(body, result.EffectiveModel, "msg_"+uuid.NewString(), sessionID, s.signatures)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "failed to translate upstream response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleAnthropicCountTokens implements POST /v1/messages/count_tokens. The
// proxy has no local tokenizer; it estimates by the common heuristic of
// ~4 bytes per token over the whole raw request body, which gives a
// plausible integer, not an exact match to Upstream's own tokenizer.
func (s *Server) handleAnthropicCountTokens(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	count := estimateTokenCount(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"input_tokens":` + itoa(count) + `}`))
}

func quotaGroupFor(model string) string {
	return "agent"
}
