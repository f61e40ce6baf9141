package anthropic

import "github.com/fpt/klein-cli/internal/transform/common"

// buildTools implements SPEC_FULL.md §4.1 step 10: collect function
// declarations from the client's tool list, cleaning each input schema.
// Networking-tool stripping and google-search injection happen in the
// caller, since they require visibility into the whole tools array at
// once (Upstream rejects a request mixing function tools with its native
// search tool).
func buildTools(tools []wireTool, hasNetworking bool) []any {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]any, 0, len(tools))
	for _, t := range tools {
		schema := common.CleanJSONSchema(t.InputSchema)
		decls = append(decls, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  schema,
		})
	}
	return []any{map[string]any{"functionDeclarations": decls}}
}
