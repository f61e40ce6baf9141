// Package sse translates Upstream's v1internal streaming (and buffered
// non-streaming) JSON into each client dialect's own event format:
// Anthropic Messages SSE, OpenAI chat-completion chunks, OpenAI legacy
// completion chunks, and OpenAI Responses (Codex) events. Grounded on
// 2a1758dd_...adapter.go.go's handleStreamResponse (byte-buffer
// line-accumulation, per-line v1internal envelope unwrap) and
// original_source/handlers/openai.rs's Codex event sequencing.
package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one extracted candidates[0] update, already unwrapped from the
// v1internal response envelope — the shared extraction core every
// dialect's renderer consumes (SPEC_FULL.md §4.3's "common pipeline").
type Event struct {
	TextDelta         string
	ThinkingDelta     string
	ThinkingSignature string
	ImageMarkdown     string
	ToolCalls         []ToolCall
	FinishReason      string
	GroundingQueries  []string
	GroundingLinks    []string
	Usage             *Usage
}

type ToolCall struct {
	Name      string
	Args      map[string]any
	Signature string
	Raw       string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

// UnwrapEnvelope returns obj's "response" field if present, else obj
// itself, mirroring wrapper.rs's unwrap_response applied per SSE chunk.
func UnwrapEnvelope(obj map[string]any) map[string]any {
	if inner, ok := obj["response"].(map[string]any); ok {
		return inner
	}
	return obj
}

// ParseDataLine parses one raw SSE line. ok is false for blank lines,
// comments, or non-"data:" frames, and for a "[DONE]" sentinel.
func ParseDataLine(line string) (map[string]any, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return nil, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" || payload == "[DONE]" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil, false
	}
	return UnwrapEnvelope(obj), true
}

// ExtractEvent pulls candidates[0].content.parts[], finishReason,
// groundingMetadata, and usageMetadata out of one unwrapped Upstream JSON
// object. seen deduplicates functionCall parts Upstream occasionally
// repeats verbatim within a stream; pass nil to disable deduplication
// (the non-streaming callers only ever see one object).
func ExtractEvent(obj map[string]any, seen map[string]bool) Event {
	var ev Event
	if um, ok := obj["usageMetadata"].(map[string]any); ok {
		ev.Usage = extractUsage(um)
	}

	candidates, _ := obj["candidates"].([]any)
	if len(candidates) == 0 {
		return ev
	}
	cand, _ := candidates[0].(map[string]any)

	if reason, ok := cand["finishReason"].(string); ok {
		ev.FinishReason = MapFinishReason(reason)
	}

	content, _ := cand["content"].(map[string]any)
	parts, _ := content["parts"].([]any)
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if thought, _ := part["thought"].(bool); thought {
			if text, ok := part["text"].(string); ok {
				ev.ThinkingDelta += text
			}
			if sig, ok := part["thoughtSignature"].(string); ok && sig != "" {
				ev.ThinkingSignature = sig
			}
			continue
		}
		if text, ok := part["text"].(string); ok && text != "" {
			ev.TextDelta += text
			continue
		}
		if inline, ok := part["inlineData"].(map[string]any); ok {
			mime, _ := inline["mimeType"].(string)
			data, _ := inline["data"].(string)
			ev.ImageMarkdown += fmt.Sprintf("![image](data:%s;base64,%s)", mime, data)
			continue
		}
		if fc, ok := part["functionCall"].(map[string]any); ok {
			raw, _ := json.Marshal(fc)
			key := string(raw)
			if seen != nil {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			name, _ := fc["name"].(string)
			args, _ := fc["args"].(map[string]any)
			sig, _ := part["thoughtSignature"].(string)
			ev.ToolCalls = append(ev.ToolCalls, ToolCall{Name: name, Args: args, Signature: sig, Raw: key})
		}
	}

	if gm, ok := cand["groundingMetadata"].(map[string]any); ok {
		ev.GroundingQueries, ev.GroundingLinks = extractGrounding(gm)
	}

	return ev
}

func extractUsage(um map[string]any) *Usage {
	u := &Usage{}
	if v, ok := um["promptTokenCount"].(float64); ok {
		u.InputTokens = int(v)
	}
	if v, ok := um["candidatesTokenCount"].(float64); ok {
		u.OutputTokens = int(v)
	}
	return u
}

func extractGrounding(gm map[string]any) (queries, links []string) {
	if wsq, ok := gm["webSearchQueries"].([]any); ok {
		for _, q := range wsq {
			if s, ok := q.(string); ok {
				queries = append(queries, s)
			}
		}
	}
	if chunks, ok := gm["groundingChunks"].([]any); ok {
		for _, c := range chunks {
			chunk, ok := c.(map[string]any)
			if !ok {
				continue
			}
			web, ok := chunk["web"].(map[string]any)
			if !ok {
				continue
			}
			uri, _ := web["uri"].(string)
			title, _ := web["title"].(string)
			if uri != "" {
				links = append(links, title+": "+uri)
			}
		}
	}
	return
}

// MapFinishReason implements SPEC_FULL.md §4.3's finish-reason mapping.
func MapFinishReason(geminiReason string) string {
	switch geminiReason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY":
		return "content_filter"
	case "":
		return ""
	default:
		return strings.ToLower(geminiReason)
	}
}

// BuildGroundingFooter renders numbered source links and the search
// queries that produced them, appended after the model's own text
// (SPEC_FULL.md §4.3 "Grounding metadata").
func BuildGroundingFooter(queries, links []string) string {
	if len(queries) == 0 && len(links) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n---\n")
	if len(queries) > 0 {
		b.WriteString("**Searched:** " + strings.Join(queries, ", ") + "\n")
	}
	for i, l := range links {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l)
	}
	return b.String()
}
