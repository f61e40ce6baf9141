package retry

import (
	"regexp"
	"strings"
)

// canonicalThinkingModel strips a trailing qualifier from a thinking-capable
// model name so the non-thinking canonical form can be requested instead
// (e.g. "claude-sonnet-4-5-20250929" -> "claude-sonnet-4-5").
var canonicalThinkingModel = regexp.MustCompile(`^(claude-[a-z]+-\d+-\d+)(-.*)?$`)

// CanonicalNonThinkingModel rewrites model to its canonical non-thinking
// form per SPEC_FULL.md §4.5's sanitization step. Models that don't match
// the recognized pattern are returned unchanged.
func CanonicalNonThinkingModel(model string) string {
	if m := canonicalThinkingModel.FindStringSubmatch(model); m != nil {
		return m[1]
	}
	return model
}

// SanitizeForRetry implements "sanitization on first 400-retry": clear
// request.thinking, strip every Thinking/RedactedThinking content block
// from message history, and rewrite the model name to its canonical
// non-thinking form. body is the Upstream-shaped inner request object
// (the "request" field of the v1internal envelope); model is the
// client-facing model name the caller is about to re-request with.
func SanitizeForRetry(body map[string]any, model string) (sanitizedBody map[string]any, sanitizedModel string) {
	delete(body, "thinking")

	if gc, ok := body["generationConfig"].(map[string]any); ok {
		delete(gc, "thinkingConfig")
	}

	if contents, ok := body["contents"].([]any); ok {
		for _, c := range contents {
			entry, ok := c.(map[string]any)
			if !ok {
				continue
			}
			parts, ok := entry["parts"].([]any)
			if !ok {
				continue
			}
			kept := make([]any, 0, len(parts))
			for _, p := range parts {
				part, ok := p.(map[string]any)
				if !ok {
					kept = append(kept, p)
					continue
				}
				if thought, _ := part["thought"].(bool); thought {
					continue
				}
				// RedactedThinking blocks reach Upstream as plain text parts.
				if text, _ := part["text"].(string); strings.HasPrefix(text, "[Redacted Thinking: ") {
					continue
				}
				kept = append(kept, part)
			}
			entry["parts"] = kept
		}
	}

	return body, CanonicalNonThinkingModel(model)
}
