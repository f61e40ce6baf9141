package upstream

import "testing"

func TestWrapInjectsIdentity(t *testing.T) {
	inner := map[string]any{"contents": []any{}}
	env := Wrap(inner, "test-project", "gemini-2.5-flash", RequestIDAgent, "GenerateContent")

	if env.Project != "test-project" {
		t.Errorf("Project = %q, want test-project", env.Project)
	}
	if env.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q, want gemini-2.5-flash", env.Model)
	}
	if env.UserAgent != "antigravity" {
		t.Errorf("UserAgent = %q, want antigravity", env.UserAgent)
	}
	sys, _ := env.Request["systemInstruction"].(map[string]any)
	if sys == nil {
		t.Fatal("expected systemInstruction to be injected")
	}
	parts, _ := sys["parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
}

func TestWrapPreservesUserInstructionOrder(t *testing.T) {
	inner := map[string]any{
		"systemInstruction": map[string]any{
			"role":  "user",
			"parts": []any{map[string]any{"text": "User custom prompt"}},
		},
	}
	env := Wrap(inner, "p", "m", RequestIDAgent, "GenerateContent")
	sys := env.Request["systemInstruction"].(map[string]any)
	parts := sys["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	first := parts[0].(map[string]any)["text"].(string)
	second := parts[1].(map[string]any)["text"].(string)
	if second != "User custom prompt" {
		t.Errorf("second part = %q, want User custom prompt", second)
	}
	if first == second {
		t.Errorf("expected antigravity identity prepended, got duplicate")
	}
}

func TestWrapDuplicatePrevention(t *testing.T) {
	inner := map[string]any{
		"systemInstruction": map[string]any{
			"parts": []any{map[string]any{"text": "You are Antigravity, already here..."}},
		},
	}
	env := Wrap(inner, "p", "m", RequestIDAgent, "GenerateContent")
	sys := env.Request["systemInstruction"].(map[string]any)
	parts := sys["parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected no duplicate injection, got %d parts", len(parts))
	}
}

func TestUnwrapFallsBackToEnvelope(t *testing.T) {
	wrapped := map[string]any{"response": map[string]any{"candidates": []any{"x"}}}
	got := Unwrap(wrapped)
	if _, ok := got["candidates"]; !ok {
		t.Fatal("expected candidates to be unwrapped")
	}

	bare := map[string]any{"candidates": []any{"y"}}
	got2 := Unwrap(bare)
	if _, ok := got2["candidates"]; !ok {
		t.Fatal("expected fallback to bare response")
	}
}

func TestNewRequestIDHasPrefix(t *testing.T) {
	id := NewRequestID(RequestIDOpenAI)
	if len(id) < len("openai-") || id[:7] != "openai-" {
		t.Errorf("NewRequestID(openai) = %q, want openai-<uuid>", id)
	}
}
