package openai

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"
)

// buildContents implements the Chat-style half of request.rs's
// transform_openai_request: system messages are skipped here (the caller
// lifts them into systemInstruction), assistant -> model, tool/function ->
// user with the message content carried only in the functionResponse.
func buildContents(messages []wireMessage, toolIDToName map[string]string, globalSig string) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		role := m.Role
		switch m.Role {
		case "assistant":
			role = "model"
		case "tool", "function":
			role = "user"
		}

		parts := make([]any, 0)

		for _, block := range contentBlocks(m.Content) {
			if m.Role == "tool" || m.Role == "function" {
				break
			}
			if block.Type == "text" || block.Type == "" {
				if block.Text != "" {
					parts = append(parts, map[string]any{"text": block.Text})
				}
				continue
			}
			if block.ImageURL != nil {
				if part, ok := buildImagePart(block.ImageURL.URL); ok {
					parts = append(parts, part)
				}
			}
		}

		for _, tc := range m.ToolCalls {
			name := tc.Function.Name
			if name == "local_shell_call" {
				name = "shell"
			}
			var args map[string]any
			if tc.Function.Arguments != "" {
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			}
			if args == nil {
				args = map[string]any{}
			}
			part := map[string]any{"functionCall": map[string]any{"name": name, "args": args}}
			if globalSig != "" {
				part["thoughtSignature"] = globalSig
			}
			parts = append(parts, part)
		}

		if m.Role == "tool" || m.Role == "function" {
			name := m.Name
			if name == "" {
				name = "unknown"
			}
			if name == "local_shell_call" {
				name = "shell"
			} else if m.ToolCallID != "" {
				if resolved, ok := toolIDToName[m.ToolCallID]; ok {
					name = resolved
				}
			}
			parts = append(parts, map[string]any{
				"functionResponse": map[string]any{
					"name":     name,
					"response": map[string]any{"result": contentText(m.Content)},
				},
			})
		}

		out = append(out, map[string]any{"role": role, "parts": parts})
	}
	return out
}

// buildImagePart handles the three URL shapes OpenAI clients send: data
// URIs become inlineData, http(s) URLs become fileData, anything else is
// treated as a local path and read + base64-encoded. Returns ok=false if a
// local file could not be read, matching request.rs's silent skip.
func buildImagePart(url string) (any, bool) {
	switch {
	case strings.HasPrefix(url, "data:"):
		return dataURIPart(url), true
	case strings.HasPrefix(url, "http"):
		return map[string]any{"fileData": map[string]any{"fileUri": url, "mimeType": "image/jpeg"}}, true
	default:
		return localFilePart(url)
	}
}

func dataURIPart(url string) any {
	comma := strings.IndexByte(url, ',')
	if comma < 0 || len(url) < 5 {
		return map[string]any{"inlineData": map[string]any{"mimeType": "image/jpeg", "data": ""}}
	}
	mimePart := url[5:comma]
	mimeType := mimePart
	if semi := strings.IndexByte(mimePart, ';'); semi >= 0 {
		mimeType = mimePart[:semi]
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return map[string]any{"inlineData": map[string]any{"mimeType": mimeType, "data": url[comma+1:]}}
}

func localFilePart(url string) (any, bool) {
	path := strings.TrimPrefix(url, "file://")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	lower := strings.ToLower(path)
	mimeType := "image/jpeg"
	switch {
	case strings.HasSuffix(lower, ".png"):
		mimeType = "image/png"
	case strings.HasSuffix(lower, ".gif"):
		mimeType = "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		mimeType = "image/webp"
	}
	data := base64.StdEncoding.EncodeToString(raw)
	return map[string]any{"inlineData": map[string]any{"mimeType": mimeType, "data": data}}, true
}

func mergeAdjacentRoles(contents []any) []any {
	out := make([]any, 0, len(contents))
	for _, c := range contents {
		entry := c.(map[string]any)
		if len(out) > 0 {
			last := out[len(out)-1].(map[string]any)
			if last["role"] == entry["role"] {
				lastParts := last["parts"].([]any)
				newParts := entry["parts"].([]any)
				last["parts"] = append(lastParts, newParts...)
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

func extractSystemText(messages []wireMessage) string {
	var parts []string
	for _, m := range messages {
		if m.Role != "system" {
			continue
		}
		if t := contentText(m.Content); t != "" {
			parts = append(parts, t)
		}
	}
	return joinLines(parts, "\n\n")
}

// prescanToolCallNames builds the call_id -> name map request.rs uses to
// resolve a tool-response message's name when the message itself only
// carries a tool_call_id.
func prescanToolCallNames(messages []wireMessage) map[string]string {
	out := map[string]string{}
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			name := tc.Function.Name
			if name == "local_shell_call" {
				name = "shell"
			}
			out[tc.ID] = name
		}
	}
	return out
}

func toolNamesAndDescs(tools []wireTool) ([]string, []string) {
	names := make([]string, 0, len(tools))
	descs := make([]string, 0, len(tools))
	for _, t := range tools {
		name, _ := t["name"].(string)
		desc, _ := t["description"].(string)
		if fn, ok := t["function"].(map[string]any); ok {
			if n, ok := fn["name"].(string); ok {
				name = n
			}
			if d, ok := fn["description"].(string); ok {
				desc = d
			}
		}
		names = append(names, name)
		descs = append(descs, desc)
	}
	return names, descs
}
