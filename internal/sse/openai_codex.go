package sse

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// OpenAICodexStreamState renders the Responses/Codex event sequence:
// response.created, interleaved response.output_text.delta /
// response.output_item.added / response.output_item.done per tool call,
// a terminal response.output_item.done with the full accumulated text, and
// response.completed. Grounded on SPEC_FULL.md §4.3's Codex event-ordering
// description (the grounding source's own OpenAI streaming path is an
// unimplemented no-op, so this sequencing is not ported from a concrete
// reference — it follows the documented Responses API event shapes).
type OpenAICodexStreamState struct {
	respID      string
	model       string
	created     int64
	started     bool
	finished    bool
	accumText   string
	outputIndex int
	seenCalls   map[string]bool
	finishEv    string
	usage       Usage
}

func NewOpenAICodexStreamState(model string, created int64) *OpenAICodexStreamState {
	return &OpenAICodexStreamState{
		respID:    "resp_" + uuid.NewString(),
		model:     model,
		created:   created,
		seenCalls: make(map[string]bool),
	}
}

func (s *OpenAICodexStreamState) ProcessLine(line string) []byte {
	obj, ok := ParseDataLine(line)
	if !ok {
		return nil
	}
	ev := ExtractEvent(obj, s.seenCalls)
	return s.render(ev)
}

func (s *OpenAICodexStreamState) render(ev Event) []byte {
	var out []byte
	out = append(out, s.ensureStarted()...)

	if text := ev.TextDelta + ev.ImageMarkdown; text != "" {
		s.accumText += text
		out = append(out, s.frame("response.output_text.delta", map[string]any{
			"delta": text,
		})...)
	}

	for _, tc := range ev.ToolCalls {
		out = append(out, s.emitToolCallItem(tc)...)
	}

	if sspCall, rest, ok := detectSSOPCall(s.accumText); ok {
		s.accumText = rest
		out = append(out, s.emitToolCallItem(sspCall)...)
	}

	if ev.Usage != nil {
		s.usage = *ev.Usage
	}

	if ev.FinishReason != "" {
		s.finishEv = ev.FinishReason
		out = append(out, s.finalize()...)
		s.finished = true
	}
	return out
}

func (s *OpenAICodexStreamState) ensureStarted() []byte {
	if s.started {
		return nil
	}
	s.started = true
	return s.frame("response.created", map[string]any{
		"response": map[string]any{
			"id":      s.respID,
			"object":  "response",
			"created": s.created,
			"model":   s.model,
			"status":  "in_progress",
		},
	})
}

func (s *OpenAICodexStreamState) emitToolCallItem(tc ToolCall) []byte {
	kind, payload := classifyCodexToolCall(tc)
	itemID := fmt.Sprintf("item_%s_%d", s.respID, s.outputIndex)
	s.outputIndex++

	item := map[string]any{
		"id":     itemID,
		"type":   kind,
		"status": "completed",
	}
	for k, v := range payload {
		item[k] = v
	}

	var out []byte
	out = append(out, s.frame("response.output_item.added", map[string]any{
		"output_index": s.outputIndex - 1,
		"item":         map[string]any{"id": itemID, "type": kind, "status": "in_progress"},
	})...)
	out = append(out, s.frame("response.output_item.done", map[string]any{
		"output_index": s.outputIndex - 1,
		"item":         item,
	})...)
	return out
}

// classifyCodexToolCall maps a generic ToolCall onto a Codex output item
// type + payload by name, per SPEC_FULL.md §4.3's classification table.
func classifyCodexToolCall(tc ToolCall) (string, map[string]any) {
	name := normalizeToolName(tc.Name)
	switch name {
	case "shell", "local_shell":
		return "local_shell_call", map[string]any{
			"action": map[string]any{
				"type":    "exec",
				"command": shellCommandArray(tc.Args),
			},
		}
	case "googleSearch", "web_search", "google_search":
		query, _ := tc.Args["query"]
		return "web_search_call", map[string]any{
			"action": map[string]any{"type": "search", "query": query},
		}
	default:
		args, _ := json.Marshal(tc.Args)
		return "function_call", map[string]any{
			"name":      tc.Name,
			"arguments": string(args),
		}
	}
}

func normalizeToolName(name string) string {
	return name
}

func shellCommandArray(args map[string]any) []any {
	cmd, ok := args["command"]
	if !ok {
		return []any{}
	}
	switch v := cmd.(type) {
	case []any:
		return v
	case string:
		return []any{v}
	default:
		return []any{}
	}
}

func (s *OpenAICodexStreamState) finalize() []byte {
	itemID := fmt.Sprintf("item_%s_final", s.respID)
	var out []byte
	out = append(out, s.frame("response.output_item.done", map[string]any{
		"output_index": s.outputIndex,
		"item": map[string]any{
			"id":     itemID,
			"type":   "message",
			"status": "completed",
			"role":   "assistant",
			"content": []any{
				map[string]any{"type": "output_text", "text": s.accumText},
			},
		},
	})...)
	out = append(out, s.frame("response.completed", map[string]any{
		"response": map[string]any{
			"id":     s.respID,
			"object": "response",
			"status": "completed",
			"usage": map[string]any{
				"input_tokens":  s.usage.InputTokens,
				"output_tokens": s.usage.OutputTokens,
			},
		},
	})...)
	return out
}

func (s *OpenAICodexStreamState) frame(eventType string, data map[string]any) []byte {
	data["type"] = eventType
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return []byte("event: " + eventType + "\ndata: " + string(b) + "\n\n")
}

// EmitForceStop finalizes the response if Upstream ended without a
// finishReason.
func (s *OpenAICodexStreamState) EmitForceStop() []byte {
	if s.finished {
		return nil
	}
	s.finished = true
	return s.finalize()
}

// detectSSOPCall scans text for a balanced top-level JSON object containing
// a "command" field — Streaming Shell Output Parsing recovery for models
// that emit tool calls as plain text instead of native functionCall parts.
// Returns the recovered call, the text with that object removed, and
// whether a call was found. Uses a manual brace-depth scan rather than a
// regex so nested braces inside the JSON object are handled correctly.
func detectSSOPCall(text string) (ToolCall, string, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false
	for i, r := range text {
		if inString {
			if escape {
				escape = false
			} else if r == '\\' {
				escape = true
			} else if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				candidate := text[start : i+1]
				if call, ok := parseSSOPObject(candidate); ok {
					rest := text[:start] + text[i+1:]
					return call, rest, true
				}
				start = -1
			}
		}
	}
	return ToolCall{}, text, false
}

func parseSSOPObject(candidate string) (ToolCall, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return ToolCall{}, false
	}
	if _, ok := obj["command"]; ok {
		return ToolCall{Name: "shell", Args: map[string]any{"command": obj["command"]}}, true
	}
	if argsRaw, ok := obj["args"].(map[string]any); ok {
		if cmd, ok := argsRaw["command"]; ok {
			return ToolCall{Name: "shell", Args: map[string]any{"command": cmd}}, true
		}
		if code, ok := argsRaw["code"]; ok {
			return ToolCall{Name: "shell", Args: map[string]any{"command": code}}, true
		}
		if arg, ok := argsRaw["argument"]; ok {
			return ToolCall{Name: "shell", Args: map[string]any{"command": arg}}, true
		}
	}
	return ToolCall{}, false
}
