package server

import (
	"io"
	"net/http"

	"github.com/fpt/klein-cli/internal/sse"
	"github.com/fpt/klein-cli/internal/transform/openai"
	"github.com/fpt/klein-cli/pkg/logger"
)

// handleOpenAIChat implements POST /v1/chat/completions (SPEC_FULL.md §6,
// §4.2).
func (s *Server) handleOpenAIChat(w http.ResponseWriter, r *http.Request) {
	s.handleOpenAIDialect(w, r, "openai.chat", func(model string, created int64) sse.LineRenderer {
		return sse.NewOpenAIChatStreamState(model, created)
	})
}

// handleOpenAILegacy implements POST /v1/completions (the "prompt"-shaped
// legacy completion dialect).
func (s *Server) handleOpenAILegacy(w http.ResponseWriter, r *http.Request) {
	s.handleOpenAIDialect(w, r, "openai.legacy", func(model string, created int64) sse.LineRenderer {
		return sse.NewOpenAILegacyStreamState(model, created)
	})
}

// handleOpenAIResponses implements POST /v1/responses (the Codex "input"
// array dialect), always streaming the Responses event sequence.
func (s *Server) handleOpenAIResponses(w http.ResponseWriter, r *http.Request) {
	s.handleOpenAIDialect(w, r, "openai.responses", func(model string, created int64) sse.LineRenderer {
		return sse.NewOpenAICodexStreamState(model, created)
	})
}

// handleOpenAIDialect is the shared transform/retry/stream path for all
// three OpenAI-family endpoints; only the streaming renderer constructor
// differs per dialect.
func (s *Server) handleOpenAIDialect(w http.ResponseWriter, r *http.Request, label string, newRenderer func(model string, created int64) sse.LineRenderer) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	sessionID := sessionFingerprint(body, "messages")
	stream := requestWantsStream(body) || label == "openai.responses"

	result, err := openai.Transform(body, openai.Params{
		SessionID:       sessionID,
		MappedModel:     "",
		Signatures:      s.signatures,
		SafetyThreshold: s.safetyThreshold,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "transform error: "+err.Error())
		return
	}

	ctx, span := startRequestSpan(r.Context(), label, result.EffectiveModel)
	defer span.End()

	att, err := s.runAttempts(ctx, quotaGroupFor(result.EffectiveModel), sessionID, result.Envelope, stream)
	if err != nil {
		classifyFailure(w, err)
		return
	}
	defer att.resp.Body.Close()

	w.Header().Set("X-Account-Email", att.email)
	w.Header().Set("X-Mapped-Model", result.EffectiveModel)

	if !stream {
		s.nonStreamOpenAIChat(w, att, result.EffectiveModel, label)
		return
	}

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

	renderer := newRenderer(result.EffectiveModel, nowUnixSeconds())
	if err := sse.Pump(att.resp.Request.Context(), att.resp.Body, w, flush, renderer); err != nil {
		s.log.WarnWithIntention(logger.IntentionRetry, "openai stream pump ended with error", "label", label, "err", err)
	}
}

// nonStreamOpenAIChat covers the non-streaming Chat Completions response
// shape. Responses/Codex requests never reach it (the handler always
// streams them); a non-streaming legacy completions request is answered
// in this chat shape, not the legacy completion shape.
func (s *Server) nonStreamOpenAIChat(w http.ResponseWriter, att *attemptResult, model, label string) {
	body, err := io.ReadAll(att.resp.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "failed to read upstream response")
		return
	}
	out, err := sse.BuildOpenAIChatResponse(body, model, nowUnixSeconds())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "failed to translate upstream response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
