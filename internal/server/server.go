package server

import (
	"net/http"

	"google.golang.org/genai"

	"github.com/fpt/klein-cli/internal/ratelimit"
	"github.com/fpt/klein-cli/internal/signature"
	"github.com/fpt/klein-cli/internal/tokenpool"
	"github.com/fpt/klein-cli/internal/upstream"
	"github.com/fpt/klein-cli/pkg/logger"
)

// Server wires the four core subsystems (token pool, rate-limit tracker,
// signature store, upstream client) behind the client-facing HTTP surface
// of SPEC_FULL.md §6. Grounded on the teacher's cmd/gateway main.go
// composition style, generalized from a Discord gateway to an HTTP proxy.
type Server struct {
	pool       *tokenpool.Pool
	tracker    *ratelimit.Tracker
	signatures *signature.Store
	upstream   *upstream.Client

	safetyThreshold genai.HarmBlockThreshold
	log             *logger.Logger
}

// New constructs a Server ready to be mounted with Routes.
func New(pool *tokenpool.Pool, tracker *ratelimit.Tracker, signatures *signature.Store, client *upstream.Client, safetyThreshold genai.HarmBlockThreshold) *Server {
	return &Server{
		pool:            pool,
		tracker:         tracker,
		signatures:      signatures,
		upstream:        client,
		safetyThreshold: safetyThreshold,
		log:             logger.NewComponentLogger("server"),
	}
}

// Routes returns the mux carrying every client surface route of
// SPEC_FULL.md §6.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/messages", s.handleAnthropicMessages)
	mux.HandleFunc("POST /v1/messages/count_tokens", s.handleAnthropicCountTokens)

	mux.HandleFunc("POST /v1/chat/completions", s.handleOpenAIChat)
	mux.HandleFunc("POST /v1/completions", s.handleOpenAILegacy)
	mux.HandleFunc("POST /v1/responses", s.handleOpenAIResponses)

	mux.HandleFunc("GET /v1/models", s.handleModels)

	mux.HandleFunc("POST /v1/models/{model}:generateContent", s.handleGeminiGenerate)
	mux.HandleFunc("POST /v1/models/{model}:streamGenerateContent", s.handleGeminiStream)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"message":"` + jsonEscape(message) + `","type":"proxy_error"}}`))
}

func jsonEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

// writeUpstreamErrorBody forwards Upstream's own error payload verbatim
// for client (4xx) errors, per SPEC_FULL.md §7 ("surfaced unchanged").
// Account emails are never present in these bodies (they only ever reach
// X-Account-Email on success).
func writeUpstreamErrorBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// classifyFailure maps a runAttempts error onto the client-visible status
// and body described in SPEC_FULL.md §7.
func classifyFailure(w http.ResponseWriter, err error) {
	if ue, ok := err.(*UpstreamError); ok {
		if ue.Status >= 400 && ue.Status < 500 {
			writeUpstreamErrorBody(w, ue.Status, ue.Body)
			return
		}
		writeJSONError(w, http.StatusServiceUnavailable, "all retry attempts failed")
		return
	}
	if err == tokenpool.ErrPoolExhausted {
		writeJSONError(w, http.StatusServiceUnavailable, "no available accounts")
		return
	}
	if err == tokenpool.ErrTokenTimeout {
		writeJSONError(w, http.StatusServiceUnavailable, "no available accounts")
		return
	}
	writeJSONError(w, http.StatusServiceUnavailable, "all attempts failed")
}
