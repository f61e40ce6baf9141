package server

import "net/http"

// knownModels is the static catalog GET /v1/models advertises. Upstream
// has no public model-listing call this proxy can forward to, so the list
// mirrors the model families the transform pipelines actually recognize
// (SPEC_FULL.md §4.1 step 4, §4.8).
var knownModels = []string{
	"claude-sonnet-4-5",
	"claude-opus-4-5",
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gpt-5",
	"gpt-5-codex",
}

// handleModels implements GET /v1/models for both the Anthropic and
// OpenAI dialects; both document a data-array shape that differs only in
// field set, so the intersection below satisfies either client.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	var b []byte
	b = append(b, `{"object":"list","data":[`...)
	for i, m := range knownModels {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, `{"id":"`...)
		b = append(b, m...)
		b = append(b, `","object":"model","owned_by":"antigravity-proxy"}`...)
	}
	b = append(b, `]}`...)
	_, _ = w.Write(b)
}
