package openai

import "encoding/json"

// lowerCodexInput detects a Responses/Codex-style payload (an "input"
// array paired with "instructions") and rewrites it into the same
// Chat-style messages array the rest of this package expects, including
// the call_id -> name pre-scan function_call_output items need. Grounded
// on handlers/openai.rs's handle_completions Codex branch.
func lowerCodexInput(raw map[string]any) ([]wireMessage, bool) {
	inputRaw, hasInput := raw["input"]
	instructionsRaw, hasInstructions := raw["instructions"]
	if !hasInput || !hasInstructions {
		return nil, false
	}
	instructions, _ := instructionsRaw.(string)
	items, _ := inputRaw.([]any)

	var messages []wireMessage
	if instructions != "" {
		messages = append(messages, wireMessage{Role: "system", Content: rawString(instructions)})
	}

	callIDToName := map[string]string{}
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		itemType, _ := item["type"].(string)
		switch itemType {
		case "function_call", "local_shell_call", "web_search_call":
			callID := stringField(item, "call_id")
			if callID == "" {
				callID = stringField(item, "id")
			}
			if callID == "" {
				continue
			}
			name := stringField(item, "name")
			switch itemType {
			case "local_shell_call":
				name = "shell"
			case "web_search_call":
				name = "google_search"
			}
			if name == "" {
				name = "unknown"
			}
			callIDToName[callID] = name
		}
	}

	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		switch item["type"] {
		case "message":
			messages = append(messages, lowerCodexMessage(item))
		case "function_call", "local_shell_call", "web_search_call":
			messages = append(messages, lowerCodexToolCall(item, item["type"].(string)))
		case "function_call_output", "custom_tool_call_output":
			messages = append(messages, lowerCodexToolOutput(item, callIDToName))
		}
	}

	return messages, true
}

func lowerCodexMessage(item map[string]any) wireMessage {
	role := stringField(item, "role")
	if role == "" {
		role = "user"
	}
	parts, _ := item["content"].([]any)

	var textParts []string
	var imageParts []any
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := part["text"].(string); ok {
			textParts = append(textParts, text)
			continue
		}
		switch part["type"] {
		case "input_image":
			if url, ok := part["image_url"].(string); ok {
				imageParts = append(imageParts, map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": url},
				})
			}
		case "image_url":
			if urlObj, ok := part["image_url"]; ok {
				imageParts = append(imageParts, map[string]any{
					"type":      "image_url",
					"image_url": urlObj,
				})
			}
		}
	}

	joined := joinLines(textParts, "\n")
	if len(imageParts) == 0 {
		return wireMessage{Role: role, Content: rawString(joined)}
	}
	blocks := make([]any, 0, len(imageParts)+1)
	if joined != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": joined})
	}
	blocks = append(blocks, imageParts...)
	return wireMessage{Role: role, Content: rawJSON(blocks)}
}

func lowerCodexToolCall(item map[string]any, itemType string) wireMessage {
	name := stringField(item, "name")
	if name == "" {
		name = "unknown"
	}
	argsStr := stringField(item, "arguments")
	if argsStr == "" {
		argsStr = "{}"
	}
	callID := stringField(item, "call_id")
	if callID == "" {
		callID = stringField(item, "id")
	}
	if callID == "" {
		callID = "unknown"
	}

	switch itemType {
	case "local_shell_call":
		name = "shell"
		if action, ok := item["action"].(map[string]any); ok {
			if exec, ok := action["exec"].(map[string]any); ok {
				argsObj := map[string]any{}
				if cmd, ok := exec["command"]; ok {
					if s, ok := cmd.(string); ok {
						argsObj["command"] = []any{s}
					} else {
						argsObj["command"] = cmd
					}
				}
				wd := exec["working_directory"]
				if wd == nil {
					wd = exec["workdir"]
				}
				if wd != nil {
					argsObj["workdir"] = wd
				}
				if b, err := json.Marshal(argsObj); err == nil {
					argsStr = string(b)
				}
			}
		}
	case "web_search_call":
		name = "google_search"
		if action, ok := item["action"].(map[string]any); ok {
			argsObj := map[string]any{}
			if q, ok := action["query"]; ok {
				argsObj["query"] = q
			}
			if b, err := json.Marshal(argsObj); err == nil {
				argsStr = string(b)
			}
		}
	}

	return wireMessage{
		Role: "assistant",
		ToolCalls: []wireToolCall{{
			ID:       callID,
			Type:     "function",
			Function: wireToolCallFn{Name: name, Arguments: argsStr},
		}},
	}
}

func lowerCodexToolOutput(item map[string]any, callIDToName map[string]string) wireMessage {
	callID := stringField(item, "call_id")
	if callID == "" {
		callID = "unknown"
	}
	var outputStr string
	switch out := item["output"].(type) {
	case string:
		outputStr = out
	case map[string]any:
		if content, ok := out["content"].(string); ok {
			outputStr = content
		} else if b, err := json.Marshal(out); err == nil {
			outputStr = string(b)
		}
	case nil:
		outputStr = ""
	default:
		if b, err := json.Marshal(out); err == nil {
			outputStr = string(b)
		}
	}

	// Fallback mirrors request.rs: an unmapped call_id most often means a
	// bare shell tool round trip.
	name, ok := callIDToName[callID]
	if !ok {
		name = "shell"
	}

	return wireMessage{
		Role:       "tool",
		ToolCallID: callID,
		Name:       name,
		Content:    rawString(outputStr),
	}
}

func stringField(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return s
}

func joinLines(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func rawString(s string) json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return b
}

func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
