package sse

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fpt/klein-cli/internal/signature"
)

func TestBuildAnthropicResponseTextOnly(t *testing.T) {
	body := []byte(`{"candidates":[{"finishReason":"STOP","content":{"parts":[{"text":"hello there"}]}}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":3}}`)
	out, err := BuildAnthropicResponse(body, "claude-3-7-sonnet", "msg_123", "sess-1", signature.New())
	if err != nil {
		t.Fatalf("BuildAnthropicResponse: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if resp["stop_reason"] != "end_turn" {
		t.Errorf("stop_reason = %v, want end_turn", resp["stop_reason"])
	}
	content := resp["content"].([]any)
	if len(content) != 1 || content[0].(map[string]any)["text"] != "hello there" {
		t.Errorf("unexpected content: %v", content)
	}
}

func TestBuildAnthropicResponseToolUse(t *testing.T) {
	body := []byte(`{"candidates":[{"finishReason":"STOP","content":{"parts":[{"functionCall":{"name":"read_file","args":{"path":"a.go"}}}]}}]}`)
	out, err := BuildAnthropicResponse(body, "claude-3-7-sonnet", "msg_456", "sess-1", signature.New())
	if err != nil {
		t.Fatalf("BuildAnthropicResponse: %v", err)
	}
	if !strings.Contains(string(out), `"stop_reason":"tool_use"`) {
		t.Errorf("expected tool_use stop reason, got:\n%s", out)
	}
}

func TestBuildOpenAIChatResponseTextOnly(t *testing.T) {
	body := []byte(`{"candidates":[{"finishReason":"STOP","content":{"parts":[{"text":"hi"}]}}]}`)
	out, err := BuildOpenAIChatResponse(body, "gpt-4o", 1700000000)
	if err != nil {
		t.Fatalf("BuildOpenAIChatResponse: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	choices := resp["choices"].([]any)
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	if msg["content"] != "hi" {
		t.Errorf("content = %v, want hi", msg["content"])
	}
	if choices[0].(map[string]any)["finish_reason"] != "stop" {
		t.Errorf("finish_reason = %v, want stop", choices[0].(map[string]any)["finish_reason"])
	}
}

func TestBuildOpenAIChatResponseToolCalls(t *testing.T) {
	body := []byte(`{"candidates":[{"finishReason":"STOP","content":{"parts":[{"functionCall":{"name":"lookup","args":{"q":"x"}}}]}}]}`)
	out, err := BuildOpenAIChatResponse(body, "gpt-4o", 1700000000)
	if err != nil {
		t.Fatalf("BuildOpenAIChatResponse: %v", err)
	}
	if !strings.Contains(string(out), `"finish_reason":"tool_calls"`) {
		t.Errorf("expected tool_calls finish reason, got:\n%s", out)
	}
}
