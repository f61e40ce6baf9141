// Package upstream builds and sends the v1internal request envelope that
// every client dialect is ultimately transformed into, and unwraps its
// response envelope. Grounded on
// original_source/mappers/gemini/wrapper.rs (wrap_request/unwrap_response)
// and the Go adapter's wrapV1InternalRequest call shape.
package upstream

import (
	"strings"

	"github.com/google/uuid"
)

// antigravityIdentity is injected as the first systemInstruction part unless
// the request already carries it (idempotency check), per wrapper.rs.
const antigravityIdentity = "You are Antigravity, a powerful agentic AI coding assistant designed by the Google Deepmind team working on Advanced Agentic Coding.\n" +
	"You are pair programming with a USER to solve their coding task. The task may require creating a new codebase, modifying or debugging an existing codebase, or simply answering a question.\n" +
	"**Absolute paths only**\n" +
	"**Proactiveness**"

// RequestIDPrefix distinguishes the client dialect that originated a
// request, for operator-facing logs only; Upstream does not interpret it.
type RequestIDPrefix string

const (
	RequestIDAgent  RequestIDPrefix = "agent"
	RequestIDOpenAI RequestIDPrefix = "openai"
)

// NewRequestID returns a fresh Upstream requestId of the form
// "<prefix>-<uuid>" (SPEC_FULL.md §6).
func NewRequestID(prefix RequestIDPrefix) string {
	return string(prefix) + "-" + uuid.NewString()
}

// Envelope is the outer v1internal request shape.
type Envelope struct {
	Project     string         `json:"project"`
	RequestID   string         `json:"requestId"`
	Request     map[string]any `json:"request"`
	Model       string         `json:"model"`
	UserAgent   string         `json:"userAgent"`
	RequestType string         `json:"requestType"`
}

// Wrap builds the v1internal envelope around an already-assembled inner
// request (contents/tools/generationConfig/etc.), injecting the Antigravity
// system identity unless one is already present.
func Wrap(inner map[string]any, projectID, finalModel string, idPrefix RequestIDPrefix, requestType string) Envelope {
	injectIdentity(inner)
	return Envelope{
		Project:     projectID,
		RequestID:   NewRequestID(idPrefix),
		Request:     inner,
		Model:       finalModel,
		UserAgent:   "antigravity",
		RequestType: requestType,
	}
}

// injectIdentity mutates inner in place, adding or extending
// systemInstruction with the Antigravity identity text as its first part,
// unless a part already contains it (wrapper.rs's duplicate-prevention
// check).
func injectIdentity(inner map[string]any) {
	existing, _ := inner["systemInstruction"].(map[string]any)
	if existing == nil {
		inner["systemInstruction"] = map[string]any{
			"role":  "user",
			"parts": []any{map[string]any{"text": antigravityIdentity}},
		}
		return
	}
	if _, ok := existing["role"]; !ok {
		existing["role"] = "user"
	}
	parts, _ := existing["parts"].([]any)
	if hasAntigravityIdentity(parts) {
		return
	}
	existing["parts"] = append([]any{map[string]any{"text": antigravityIdentity}}, parts...)
}

func hasAntigravityIdentity(parts []any) bool {
	if len(parts) == 0 {
		return false
	}
	first, ok := parts[0].(map[string]any)
	if !ok {
		return false
	}
	text, _ := first["text"].(string)
	return strings.Contains(text, "You are Antigravity")
}

// Unwrap extracts the inner "response" field from an Upstream response
// envelope, falling back to the envelope itself if absent (wrapper.rs's
// unwrap_response).
func Unwrap(response map[string]any) map[string]any {
	if inner, ok := response["response"].(map[string]any); ok {
		return inner
	}
	return response
}
