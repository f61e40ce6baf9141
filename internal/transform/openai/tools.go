package openai

import "github.com/fpt/klein-cli/internal/transform/common"

// buildTools implements request.rs's tool-cleaning pass: unwrap the Chat
// Completions {type:"function", function:{...}} envelope if present, else
// treat the tool as already flat (Responses/local-shell tools); skip the
// built-in web-search names since Upstream's native grounding tool
// replaces them; rewrite local_shell_call -> shell; strip the fields
// Upstream's FunctionDeclaration rejects at the root.
func buildTools(tools []wireTool) []any {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]any, 0, len(tools))
	for _, t := range tools {
		var decl map[string]any
		if fn, ok := t["function"].(map[string]any); ok {
			decl = cloneMap(fn)
		} else {
			decl = cloneMap(map[string]any(t))
			delete(decl, "type")
			delete(decl, "strict")
			delete(decl, "additionalProperties")
		}

		name, _ := decl["name"].(string)
		if name == "web_search" || name == "google_search" || name == "web_search_20250305" {
			continue
		}
		if name == "local_shell_call" {
			decl["name"] = "shell"
		}

		delete(decl, "format")
		delete(decl, "strict")
		delete(decl, "additionalProperties")
		delete(decl, "type")

		if params, ok := decl["parameters"].(map[string]any); ok {
			decl["parameters"] = common.CleanJSONSchema(params)
		}

		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return nil
	}
	return []any{map[string]any{"functionDeclarations": decls}}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
