package anthropic

import (
	"github.com/fpt/klein-cli/internal/contentblock"
	"github.com/fpt/klein-cli/internal/signature"
)

// buildContents implements SPEC_FULL.md §4.1 step 7: map internal messages
// to Upstream's {role, parts[]} shape, with role "assistant" rewritten to
// "model". toolIDToName is populated as a side effect, tracking id -> name
// for every ToolUse seen, for later functionResponse name resolution.
func buildContents(messages []contentblock.Message, hasThinking bool, targetModel, sessionID string, store *signature.Store, toolIDToName map[string]string) ([]any, error) {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == contentblock.RoleAssistant {
			role = "model"
		}
		parts := buildParts(m.Content, hasThinking, targetModel, sessionID, store, toolIDToName)
		if len(parts) == 0 {
			continue
		}
		out = append(out, map[string]any{"role": role, "parts": parts})
	}
	return out, nil
}

func buildParts(blocks []contentblock.Block, hasThinking bool, targetModel, sessionID string, store *signature.Store, toolIDToName map[string]string) []any {
	parts := make([]any, 0, len(blocks))
	lastSeenSignature := ""
	for i, b := range blocks {
		switch block := b.(type) {
		case contentblock.Text:
			if block.Text == "(no content)" {
				continue
			}
			parts = append(parts, map[string]any{"text": block.Text})

		case contentblock.Thinking:
			if !hasThinking {
				parts = append(parts, map[string]any{"text": block.Thinking})
				continue
			}
			if block.Thinking == "" {
				parts = append(parts, map[string]any{"text": "..."})
				continue
			}
			if i != 0 {
				parts = append(parts, map[string]any{"text": block.Thinking})
				continue
			}
			sig := block.Signature
			if sig != "" {
				lastSeenSignature = sig
				store.Observe(sessionID, "", targetModel, sig)
				parts = append(parts, map[string]any{"text": block.Thinking, "thought": true, "thoughtSignature": sig})
			} else {
				parts = append(parts, map[string]any{"text": block.Thinking, "thought": true})
			}

		case contentblock.RedactedThinking:
			parts = append(parts, map[string]any{"text": "[Redacted Thinking: " + block.Data + "]"})

		case contentblock.Image:
			parts = append(parts, map[string]any{"inlineData": map[string]any{"mimeType": block.MediaType, "data": block.Data}})

		case contentblock.Document:
			parts = append(parts, map[string]any{"inlineData": map[string]any{"mimeType": block.MediaType, "data": block.Data}})

		case contentblock.ToolUse:
			if block.Name != "" {
				toolIDToName[block.ID] = block.Name
			}
			sig := block.Signature
			if sig == "" {
				sig = lastSeenSignature
			}
			if sig == "" {
				sig = store.Resolve(sessionID, block.ID, targetModel)
			}
			if sig != "" {
				store.Observe(sessionID, block.ID, targetModel, sig)
			}
			entry := map[string]any{
				"functionCall": map[string]any{
					"name": block.Name,
					"args": block.Input,
					"id":   block.ID,
				},
			}
			if sig != "" {
				entry["thoughtSignature"] = sig
			}
			parts = append(parts, entry)

		case contentblock.ToolResult:
			name := toolIDToName[block.ToolUseID]
			if name == "" {
				name = block.ToolUseID
			}
			result := block.Content
			if result == "" {
				if block.IsError {
					result = "Tool execution failed with no output."
				} else {
					result = "Command executed successfully."
				}
			}
			parts = append(parts, map[string]any{
				"functionResponse": map[string]any{
					"name":     name,
					"response": map[string]any{"result": result},
					"id":       block.ToolUseID,
				},
			})
		}
	}
	return parts
}
