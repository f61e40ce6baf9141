package sse

import (
	"strings"
	"testing"
)

func TestOpenAIChatStreamDeltaAndDone(t *testing.T) {
	s := NewOpenAIChatStreamState("gpt-4o", 1700000000)
	var out strings.Builder

	out.Write(s.ProcessLine(`data: {"response":{"candidates":[{"content":{"parts":[{"text":"Hi"}]}}]}}`))
	out.Write(s.ProcessLine(`data: {"response":{"candidates":[{"finishReason":"STOP","content":{"parts":[{"text":" there"}]}}]}}`))

	got := out.String()
	if !strings.Contains(got, `"role":"assistant"`) {
		t.Errorf("expected role in first delta, got:\n%s", got)
	}
	if !strings.Contains(got, `"content":"Hi"`) {
		t.Errorf("expected content delta, got:\n%s", got)
	}
	if !strings.Contains(got, `"finish_reason":"stop"`) {
		t.Errorf("expected finish_reason stop, got:\n%s", got)
	}
	if !strings.HasSuffix(strings.TrimRight(got, "\n"), "data: [DONE]") {
		t.Errorf("expected stream to terminate with [DONE], got:\n%s", got)
	}
}

func TestOpenAIChatStreamForceStop(t *testing.T) {
	s := NewOpenAIChatStreamState("gpt-4o", 1700000000)
	s.ProcessLine(`data: {"response":{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}}`)

	out := s.EmitForceStop()
	if !strings.Contains(string(out), `"finish_reason":"stop"`) {
		t.Errorf("expected forced stop finish_reason, got:\n%s", out)
	}
	if !strings.Contains(string(out), "[DONE]") {
		t.Errorf("expected [DONE] terminator on force stop, got:\n%s", out)
	}
	if s.EmitForceStop() != nil {
		t.Error("expected second EmitForceStop to be a no-op")
	}
}
