package sse

import (
	"encoding/json"
	"fmt"

	"github.com/fpt/klein-cli/internal/signature"
)

// BuildAnthropicResponse renders one fully-buffered Upstream JSON response
// as an Anthropic Messages API response body. Shares ExtractEvent with the
// streaming path; grounded on handleNonStreamResponse's
// convertGeminiToClaudeResponse dispatch.
func BuildAnthropicResponse(body []byte, model, msgID, sessionID string, store *signature.Store) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	obj = UnwrapEnvelope(obj)
	ev := ExtractEvent(obj, nil)

	content := []any{}
	if ev.ThinkingDelta != "" || ev.ThinkingSignature != "" {
		block := map[string]any{"type": "thinking", "thinking": ev.ThinkingDelta}
		if ev.ThinkingSignature != "" {
			store.Observe(sessionID, "", model, ev.ThinkingSignature)
			block["signature"] = ev.ThinkingSignature
		}
		content = append(content, block)
	}
	if text := ev.TextDelta + ev.ImageMarkdown; text != "" {
		content = append(content, map[string]any{"type": "text", "text": text})
	}
	for i, tc := range ev.ToolCalls {
		toolUseID := fmt.Sprintf("toolu_%s_%d", msgID, i)
		if tc.Signature != "" {
			store.Observe(sessionID, toolUseID, model, tc.Signature)
		}
		content = append(content, map[string]any{
			"type":  "tool_use",
			"id":    toolUseID,
			"name":  tc.Name,
			"input": tc.Args,
		})
	}

	resp := map[string]any{
		"id":            msgID,
		"type":          "message",
		"role":          "assistant",
		"content":       content,
		"model":         model,
		"stop_reason":   mapAnthropicStopReason(ev.FinishReason, len(ev.ToolCalls) > 0),
		"stop_sequence": nil,
		"usage": map[string]any{
			"input_tokens":  usageInput(ev.Usage),
			"output_tokens": usageOutput(ev.Usage),
		},
	}
	return json.Marshal(resp)
}

func mapAnthropicStopReason(finishReason string, sawToolUse bool) string {
	if sawToolUse {
		return "tool_use"
	}
	switch finishReason {
	case "length":
		return "max_tokens"
	case "content_filter":
		return "stop_sequence"
	default:
		return "end_turn"
	}
}

func usageInput(u *Usage) int {
	if u == nil {
		return 0
	}
	return u.InputTokens
}

func usageOutput(u *Usage) int {
	if u == nil {
		return 0
	}
	return u.OutputTokens
}
