// Package anthropic transforms an Anthropic Messages API request into the
// Upstream v1internal envelope, and carries the pieces of that envelope a
// client-facing handler needs to build its own response (SPEC_FULL.md
// §4.1). Grounded on
// _examples/other_examples/69c035dd_..._transform_request.go.go's
// TransformClaudeToGemini pipeline and ClaudeRequest/ContentBlock wire
// shapes, adapted onto this repository's internal/contentblock model.
package anthropic

import (
	"encoding/json"

	"github.com/fpt/klein-cli/internal/contentblock"
)

type wireRequest struct {
	Model        string            `json:"model"`
	MaxTokens    int               `json:"max_tokens,omitempty"`
	Messages     []wireMessage     `json:"messages"`
	System       json.RawMessage   `json:"system,omitempty"`
	Tools        []wireTool        `json:"tools,omitempty"`
	Temperature  *float64          `json:"temperature,omitempty"`
	TopP         *float64          `json:"top_p,omitempty"`
	TopK         *int              `json:"top_k,omitempty"`
	Stream       bool              `json:"stream,omitempty"`
	Thinking     *wireThinking     `json:"thinking,omitempty"`
	OutputConfig *wireOutputConfig `json:"output_config,omitempty"`
	Metadata     *wireMetadata     `json:"metadata,omitempty"`
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wireBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text,omitempty"`
	Thinking     string          `json:"thinking,omitempty"`
	Data         string          `json:"data,omitempty"`
	Signature    string          `json:"signature,omitempty"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Input        map[string]any  `json:"input,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
	IsError      *bool           `json:"is_error,omitempty"`
	Source       *wireSource     `json:"source,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type wireThinking struct {
	Type         string `json:"type"`
	BudgetTokens *int   `json:"budget_tokens,omitempty"`
}

type wireOutputConfig struct {
	Effort string `json:"effort,omitempty"`
}

type wireMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

func decodeRequest(body []byte) (wireRequest, error) {
	var req wireRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return wireRequest{}, err
	}
	return req, nil
}

// parseContentBlocks turns a message's raw `content` field (string or
// array of blocks) into the internal Block representation. cache_control
// is intentionally not modeled on any internal Block type, so decoding
// through this path is itself the "deep cache-control strip" of
// SPEC_FULL.md §4.1 step 1.
func parseContentBlocks(raw json.RawMessage) []contentblock.Block {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []contentblock.Block{contentblock.Text{Text: asString}}
	}
	var wireBlocks []wireBlock
	if err := json.Unmarshal(raw, &wireBlocks); err != nil {
		return nil
	}
	out := make([]contentblock.Block, 0, len(wireBlocks))
	for _, b := range wireBlocks {
		if block, ok := toInternalBlock(b); ok {
			out = append(out, block)
		}
	}
	return out
}

func toInternalBlock(b wireBlock) (contentblock.Block, bool) {
	switch b.Type {
	case "text":
		return contentblock.Text{Text: b.Text}, true
	case "thinking":
		return contentblock.Thinking{Thinking: b.Thinking, Signature: b.Signature}, true
	case "redacted_thinking":
		return contentblock.RedactedThinking{Data: b.Data}, true
	case "image":
		if b.Source == nil {
			return nil, false
		}
		return contentblock.Image{MediaType: b.Source.MediaType, Data: b.Source.Data}, true
	case "document":
		if b.Source == nil {
			return nil, false
		}
		return contentblock.Document{MediaType: b.Source.MediaType, Data: b.Source.Data}, true
	case "tool_use":
		return contentblock.ToolUse{ID: b.ID, Name: b.Name, Input: b.Input}, true
	case "tool_result":
		isErr := b.IsError != nil && *b.IsError
		return contentblock.ToolResult{ToolUseID: b.ToolUseID, Content: mergeToolResultContent(b.Content), IsError: isErr}, true
	default:
		return nil, false
	}
}

// mergeToolResultContent flattens a tool_result's content (string, or
// array of text/other blocks) into a single string, since Upstream's
// functionResponse carries a single `result` string.
func mergeToolResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	merged := ""
	for _, b := range blocks {
		if b.Type == "text" {
			merged += b.Text
		}
	}
	return merged
}

func extractSystemText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	merged := ""
	for i, b := range blocks {
		if i > 0 {
			merged += "\n"
		}
		merged += b.Text
	}
	return merged
}
