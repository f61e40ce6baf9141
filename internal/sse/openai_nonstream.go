package sse

import (
	"encoding/json"

	"github.com/google/uuid"
)

// BuildOpenAIChatResponse renders one fully-buffered Upstream JSON response
// as an OpenAI chat.completion response body. Scoped to the chat format
// only: the grounding source itself leaves OpenAI non-streaming
// transformation as an unimplemented TODO, so Codex/legacy non-stream
// builders are a deliberately time-boxed gap rather than a ported omission.
func BuildOpenAIChatResponse(body []byte, model string, created int64) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	obj = UnwrapEnvelope(obj)
	ev := ExtractEvent(obj, nil)

	message := map[string]any{"role": "assistant"}
	if text := ev.TextDelta + ev.ImageMarkdown + BuildGroundingFooter(ev.GroundingQueries, ev.GroundingLinks); text != "" {
		message["content"] = text
	} else {
		message["content"] = nil
	}
	if len(ev.ToolCalls) > 0 {
		calls := make([]any, 0, len(ev.ToolCalls))
		for i, tc := range ev.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			calls = append(calls, map[string]any{
				"id":   "call_" + uuid.NewString(),
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": string(args),
				},
				"index": i,
			})
		}
		message["tool_calls"] = calls
	}

	finishReason := ev.FinishReason
	if finishReason == "" {
		finishReason = "stop"
	}
	if len(ev.ToolCalls) > 0 {
		finishReason = "tool_calls"
	}

	resp := map[string]any{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": created,
		"model":   model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       message,
				"finish_reason": finishReason,
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     usageInput(ev.Usage),
			"completion_tokens": usageOutput(ev.Usage),
			"total_tokens":      usageInput(ev.Usage) + usageOutput(ev.Usage),
		},
	}
	return json.Marshal(resp)
}
