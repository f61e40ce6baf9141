package common

import "strings"

// networkingToolNames are the recognized web-search/grounding tool names
// across client dialects (SPEC_FULL.md §4.1 step 5, §12 "Background-task
// model-family web-search override"), grounded on the to_ir translator's
// networkingToolNames map.
var networkingToolNames = map[string]bool{
	"web_search":             true,
	"websearch":              true,
	"google_search":          true,
	"googlesearch":           true,
	"google_search_retrieval": true,
	"googlesearchretrieval":  true,
	"web_search_20250305":    true,
}

var networkingDescriptionKeywords = []string{"web search", "google search", "internet search"}

// IsNetworkingToolName reports whether name (case-insensitively, with
// underscores ignored) is a recognized web-search tool.
func IsNetworkingToolName(name string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	return networkingToolNames[strings.ToLower(name)] || networkingToolNames[normalized]
}

// DetectsNetworkingTool reports whether any of the given tool names or
// descriptions indicate a web-search capability.
func DetectsNetworkingTool(names, descriptions []string) bool {
	for _, n := range names {
		if IsNetworkingToolName(n) {
			return true
		}
	}
	lowerDescs := make([]string, len(descriptions))
	for i, d := range descriptions {
		lowerDescs[i] = strings.ToLower(d)
	}
	for _, d := range lowerDescs {
		for _, kw := range networkingDescriptionKeywords {
			if strings.Contains(d, kw) {
				return true
			}
		}
	}
	return false
}

// maxFunctionNameLength is Gemini's function-name length limit.
const maxFunctionNameLength = 64

// NormalizeFunctionName rewrites name to satisfy Upstream's function-name
// constraints: non-empty, starts with a letter or underscore, contains
// only [a-zA-Z0-9_.-], and is at most 64 characters (SPEC_FULL.md §12,
// grounded on the to_ir translator's NormalizeFunctionName).
func NormalizeFunctionName(name string) string {
	if name == "" {
		return "_unnamed_function"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	first := out[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || first == '_') {
		out = "_" + out
	}
	if len(out) > maxFunctionNameLength {
		out = out[:maxFunctionNameLength]
	}
	return out
}
