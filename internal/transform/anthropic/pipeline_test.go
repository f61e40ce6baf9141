package anthropic

import (
	"encoding/json"
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

func TestTransformBasicTextMessage(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"hello"}]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.EffectiveModel != "gemini-2.5-pro" {
		t.Errorf("EffectiveModel = %q, want gemini-2.5-pro", res.EffectiveModel)
	}
	contents, _ := res.Envelope.Request["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("expected 1 content entry, got %d", len(contents))
	}
	entry := contents[0].(map[string]any)
	if entry["role"] != "user" {
		t.Errorf("role = %v, want user", entry["role"])
	}
}

func TestTransformRoleMerging(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[
		{"role":"user","content":"first"},
		{"role":"user","content":"second"}
	]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	contents := res.Envelope.Request["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("expected adjacent same-role messages merged into 1, got %d", len(contents))
	}
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts after merge, got %d", len(parts))
	}
}

func TestTransformBackgroundTaskDowngrade(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[
		{"role":"user","content":"Please write a 5-10 word title for this conversation"}
	]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !res.BackgroundTask {
		t.Error("expected BackgroundTask = true")
	}
	if res.EffectiveModel != "gemini-2.5-flash" {
		t.Errorf("EffectiveModel = %q, want gemini-2.5-flash", res.EffectiveModel)
	}
}

func TestTransformIdentityInjected(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"hi"}]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	sys, ok := res.Envelope.Request["systemInstruction"].(map[string]any)
	if !ok {
		t.Fatal("expected systemInstruction to be present")
	}
	if _, ok := sys["parts"]; !ok {
		t.Fatal("expected systemInstruction parts")
	}
}

func TestTransformToolUseAndResultRoundTrip(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[
		{"role":"assistant","content":[{"type":"tool_use","id":"tool-1","name":"read_file","input":{"path":"a.go"}}]},
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"tool-1","content":"file contents"}]}
	]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.ToolIDToName["tool-1"] != "read_file" {
		t.Errorf("ToolIDToName[tool-1] = %q, want read_file", res.ToolIDToName["tool-1"])
	}
	contents := res.Envelope.Request["contents"].([]any)
	if len(contents) != 2 {
		t.Fatalf("expected 2 content entries, got %d", len(contents))
	}
	userParts := contents[1].(map[string]any)["parts"].([]any)
	fr := userParts[0].(map[string]any)["functionResponse"].(map[string]any)
	if fr["name"] != "read_file" {
		t.Errorf("functionResponse.name = %v, want read_file", fr["name"])
	}
}

func TestTransformOmitsGoogleSearchWhenFunctionDeclsRemain(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"hi"}],"tools":[
		{"name":"web_search","description":"Search the web","input_schema":{"type":"object"}},
		{"name":"read_file","description":"Read a file","input_schema":{"type":"object"}}
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
		entry := tool.(map[string]any)
		if _, ok := entry["googleSearch"]; ok {
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
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"hi"}],"tools":[
		{"name":"web_search","description":"Search the web","input_schema":{"type":"object"}}
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

func TestTransformEnvelopeShape(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"hi"}]}`)
	res, err := Transform(body, params())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	raw, err := json.Marshal(res.Envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	for _, field := range []string{"project", "requestId", "request", "model", "userAgent", "requestType"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("envelope missing field %q", field)
		}
	}
}
