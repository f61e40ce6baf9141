package server

import (
	"io"
	"net/http"

	"github.com/fpt/klein-cli/internal/sse"
	"github.com/fpt/klein-cli/internal/transform/gemini"
	"github.com/fpt/klein-cli/pkg/logger"
)

// handleGeminiGenerate implements the native Gemini non-streaming
// generateContent endpoint (SPEC_FULL.md §6).
func (s *Server) handleGeminiGenerate(w http.ResponseWriter, r *http.Request) {
	s.handleGemini(w, r, false)
}

// handleGeminiStream implements the native Gemini streamGenerateContent
// endpoint.
func (s *Server) handleGeminiStream(w http.ResponseWriter, r *http.Request) {
	s.handleGemini(w, r, true)
}

func (s *Server) handleGemini(w http.ResponseWriter, r *http.Request, stream bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	model := r.PathValue("model")
	sessionID := sessionFingerprint(body, "contents")

	result, err := gemini.Transform(body, gemini.Params{MappedModel: model})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "transform error: "+err.Error())
		return
	}

	ctx, span := startRequestSpan(r.Context(), "gemini.generate", result.EffectiveModel)
	defer span.End()

	att, err := s.runAttempts(ctx, quotaGroupFor(result.EffectiveModel), sessionID, result.Envelope, stream)
	if err != nil {
		classifyFailure(w, err)
		return
	}
	defer att.resp.Body.Close()

	w.Header().Set("X-Account-Email", att.email)

	if !stream {
		body, err := io.ReadAll(att.resp.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "failed to read upstream response")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
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

	renderer := newGeminiPassthroughRenderer()
	if err := sse.Pump(att.resp.Request.Context(), att.resp.Body, w, flush, renderer); err != nil {
		s.log.WarnWithIntention(logger.IntentionRetry, "gemini stream pump ended with error", "err", err)
	}
}
