package openai

import (
	"testing"

	"google.golang.org/genai"

	"github.com/fpt/klein-cli/internal/signature"
)

func params() Params {
	return Params{
		SessionID:       "sess-1",
		MappedModel:     "gemini-2.5-pro",
		ProjectID:       "test-project",
		Signatures:      signature.New(),
		SafetyThreshold: genai.HarmBlockThresholdOff,
	}
}

func TestTransformBasicChatMessage(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hello"}]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	contents := res.Envelope.Request["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("expected 1 content entry, got %d", len(contents))
	}
	entry := contents[0].(map[string]any)
	if entry["role"] != "user" {
		t.Errorf("role = %v, want user", entry["role"])
	}
}

func TestTransformSystemMessageExtracted(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[
		{"role":"system","content":"be terse"},
		{"role":"user","content":"hi"}
	]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	sys, ok := res.Envelope.Request["systemInstruction"].(map[string]any)
	if !ok {
		t.Fatal("expected systemInstruction to be present")
	}
	parts := sys["parts"].([]any)
	if parts[1].(map[string]any)["text"] != "be terse" {
		t.Errorf("unexpected systemInstruction text: %v", parts[1])
	}
	contents := res.Envelope.Request["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("expected system message filtered from contents, got %d entries", len(contents))
	}
}

func TestTransformMultimodalDataURI(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":[
		{"type":"text","text":"what is this"},
		{"type":"image_url","image_url":{"url":"data:image/png;base64,iVBORw0KGgo="}}
	]}]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	contents := res.Envelope.Request["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	img := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if img["mimeType"] != "image/png" {
		t.Errorf("mimeType = %v, want image/png", img["mimeType"])
	}
}

func TestTransformToolCallAndResponseRoundTrip(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[
		{"role":"assistant","tool_calls":[{"id":"call-1","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"a.go\"}"}}]},
		{"role":"tool","tool_call_id":"call-1","content":"file contents"}
	]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.ToolIDToName["call-1"] != "read_file" {
		t.Errorf("ToolIDToName[call-1] = %q, want read_file", res.ToolIDToName["call-1"])
	}
	contents := res.Envelope.Request["contents"].([]any)
	if len(contents) != 2 {
		t.Fatalf("expected 2 content entries, got %d", len(contents))
	}
	parts := contents[1].(map[string]any)["parts"].([]any)
	fr := parts[0].(map[string]any)["functionResponse"].(map[string]any)
	if fr["name"] != "read_file" {
		t.Errorf("functionResponse.name = %v, want read_file", fr["name"])
	}
}

func TestTransformCodexInputLowering(t *testing.T) {
	body := []byte(`{
		"model":"gpt-5-codex",
		"instructions":"you are codex",
		"input":[
			{"type":"message","role":"user","content":[{"type":"input_text","text":"list files"}]},
			{"type":"local_shell_call","id":"shell-1","action":{"exec":{"command":"ls","workdir":"/tmp"}}},
			{"type":"function_call_output","call_id":"shell-1","output":"a.go\nb.go"}
		]
	}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	sys := res.Envelope.Request["systemInstruction"].(map[string]any)
	parts := sys["parts"].([]any)
	if parts[1].(map[string]any)["text"] != "you are codex" {
		t.Errorf("unexpected systemInstruction: %v", parts[1])
	}
	contents := res.Envelope.Request["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("expected 3 content entries (user, model tool-call, user tool-result), got %d", len(contents))
	}
}

func TestTransformLegacyPrompt(t *testing.T) {
	body := []byte(`{"model":"gpt-3.5-turbo-instruct","prompt":"once upon a time"}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	contents := res.Envelope.Request["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if parts[0].(map[string]any)["text"] != "once upon a time" {
		t.Errorf("unexpected prompt text: %v", parts[0])
	}
}

func TestTransformOmitsGoogleSearchWhenFunctionDeclsRemain(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"tools":[
		{"type":"function","function":{"name":"web_search","description":"Search the web"}},
		{"type":"function","function":{"name":"read_file","description":"Read a file"}}
	]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	tools, ok := res.Envelope.Request["tools"].([]any)
	if !ok {
		t.Fatal("expected tools to be present")
	}
	for _, tool := range tools {
		if _, ok := tool.(map[string]any)["googleSearch"]; ok {
			t.Fatalf("googleSearch should be omitted when function declarations remain, got %v", tools)
		}
	}
	decls := tools[0].(map[string]any)["functionDeclarations"].([]any)
	if len(decls) != 1 {
		t.Fatalf("expected 1 surviving function declaration (web_search stripped), got %d", len(decls))
	}
	if decls[0].(map[string]any)["name"] != "read_file" {
		t.Errorf("surviving declaration name = %v, want read_file", decls[0].(map[string]any)["name"])
	}
}

func TestTransformInjectsGoogleSearchWhenNoDeclsRemain(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"tools":[
		{"type":"function","function":{"name":"web_search","description":"Search the web"}}
	]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	tools, ok := res.Envelope.Request["tools"].([]any)
	if !ok {
		t.Fatal("expected tools to be present")
	}
	found := false
	for _, tool := range tools {
		if _, ok := tool.(map[string]any)["googleSearch"]; ok {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected googleSearch to be injected once web_search is stripped and no decls remain, got %v", tools)
	}
}

func TestTransformEmptyMessagesSafetyInjection(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	contents := res.Envelope.Request["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("expected safety-injected single message, got %d", len(contents))
	}
}
