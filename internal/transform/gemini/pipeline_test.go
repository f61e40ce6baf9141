package gemini

import "testing"

func TestTransformWrapsEnvelope(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-flash","contents":[{"role":"user","parts":[{"text":"Hi"}]}]}`)
	res, err := Transform(body, Params{ProjectID: "test-project", MappedModel: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Envelope.Project != "test-project" {
		t.Errorf("Project = %q, want test-project", res.Envelope.Project)
	}
	if res.Envelope.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q, want gemini-2.5-flash", res.Envelope.Model)
	}
	if res.Envelope.RequestID[:6] != "agent-" {
		t.Errorf("RequestID = %q, want agent- prefix", res.Envelope.RequestID)
	}
}

func TestTransformIdentityInjectedWithRole(t *testing.T) {
	body := []byte(`{"model":"gemini-pro","contents":[]}`)
	res, err := Transform(body, Params{ProjectID: "test-proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	sys := res.Envelope.Request["systemInstruction"].(map[string]any)
	if sys["role"] != "user" {
		t.Errorf("role = %v, want user", sys["role"])
	}
	parts := sys["parts"].([]any)
	text := parts[0].(map[string]any)["text"].(string)
	if text == "" {
		t.Fatal("expected identity text in first part")
	}
}

func TestTransformUserInstructionPreserved(t *testing.T) {
	body := []byte(`{"model":"gemini-pro","systemInstruction":{"role":"user","parts":[{"text":"User custom prompt"}]}}`)
	res, err := Transform(body, Params{ProjectID: "test-proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	sys := res.Envelope.Request["systemInstruction"].(map[string]any)
	parts := sys["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts (identity + user), got %d", len(parts))
	}
	if parts[1].(map[string]any)["text"] != "User custom prompt" {
		t.Errorf("unexpected second part: %v", parts[1])
	}
}

func TestTransformDuplicatePrevention(t *testing.T) {
	body := []byte(`{"model":"gemini-pro","systemInstruction":{"parts":[{"text":"You are Antigravity..."}]}}`)
	res, err := Transform(body, Params{ProjectID: "test-proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	sys := res.Envelope.Request["systemInstruction"].(map[string]any)
	parts := sys["parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected no duplicate identity injection, got %d parts", len(parts))
	}
}

func TestTransformOmitsGoogleSearchWhenFunctionDeclsRemain(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-pro","tools":[{"functionDeclarations":[
		{"name":"web_search","parameters":{"type":"object"}},
		{"name":"read_file","parameters":{"type":"object","properties":{"path":{"type":"string"}}}}
	]}]}`)
	res, err := Transform(body, Params{ProjectID: "test-proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	tools := res.Envelope.Request["tools"].([]any)
	for _, tool := range tools {
		if _, ok := tool.(map[string]any)["googleSearch"]; ok {
			t.Fatalf("googleSearch should be omitted when function declarations remain, got %v", tools)
		}
	}
}

func TestTransformInjectsGoogleSearchWhenNoDeclsRemain(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-pro","tools":[{"functionDeclarations":[
		{"name":"web_search","parameters":{"type":"object"}}
	]}]}`)
	res, err := Transform(body, Params{ProjectID: "test-proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	tools := res.Envelope.Request["tools"].([]any)
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

func TestTransformToolCleaningStripsWebSearch(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-pro","tools":[{"functionDeclarations":[
		{"name":"web_search","parameters":{"type":"object"}},
		{"name":"read_file","parameters":{"type":"object","properties":{"path":{"type":"string"}}}}
	]}]}`)
	res, err := Transform(body, Params{ProjectID: "test-proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	tools := res.Envelope.Request["tools"].([]any)
	decls := tools[0].(map[string]any)["functionDeclarations"].([]any)
	if len(decls) != 1 {
		t.Fatalf("expected web_search stripped, 1 decl left, got %d", len(decls))
	}
	if decls[0].(map[string]any)["name"] != "read_file" {
		t.Errorf("unexpected remaining decl: %v", decls[0])
	}
}
