// Package openai transforms OpenAI Chat Completions, Legacy Completions,
// and Responses (Codex) API requests into the Upstream v1internal
// envelope (SPEC_FULL.md §4.2). Grounded on
// original_source/mappers/openai/request.rs's transform_openai_request.
package openai

import "encoding/json"

type wireRequest struct {
	Model            string          `json:"model"`
	Messages         []wireMessage   `json:"messages,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	Stop             json.RawMessage `json:"stop,omitempty"`
	ResponseFormat   *wireRespFormat `json:"response_format,omitempty"`
	Tools            []wireTool      `json:"tools,omitempty"`
	Instructions     string          `json:"instructions,omitempty"`
	Input            json.RawMessage `json:"input,omitempty"`
	Prompt           string          `json:"prompt,omitempty"`
}

type wireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

type wireToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function wireToolCallFn  `json:"function"`
}

type wireToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// wireTool is decoded loosely (as a raw map) because Chat Completions tools
// are wrapped `{type:"function", function:{...}}` while Responses/local
// shell tools are flat — request.rs handles both the same way.
type wireTool map[string]any

type wireRespFormat struct {
	Type string `json:"type"`
}

type wireContentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *wireImageURL   `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

func decodeRequest(body []byte) (wireRequest, error) {
	var req wireRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return wireRequest{}, err
	}
	return req, nil
}

// contentText extracts the text portions of a message's content field
// (string, or array of {type:"text"} blocks), used for system-message
// concatenation and tool-response bodies.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var blocks []wireContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	merged := ""
	for _, b := range blocks {
		if b.Type == "text" || b.Type == "" {
			merged += b.Text
		}
	}
	return merged
}

func contentBlocks(raw json.RawMessage) []wireContentBlock {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil
		}
		return []wireContentBlock{{Type: "text", Text: asString}}
	}
	var blocks []wireContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}
