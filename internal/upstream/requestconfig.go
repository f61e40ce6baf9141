package upstream

import "strings"

// RequestType values Upstream's v1internal endpoint recognizes.
const (
	RequestTypeGenerateContent = "GenerateContent"
	RequestTypeCountTokens     = "CountTokens"
)

// RequestConfig is what ResolveRequestConfig decides about one request
// before the envelope is assembled: which model it actually targets, what
// requestType to declare, and whether grounding (Google Search) should be
// injected because the caller's own search tool was stripped out in favor
// of Upstream's native grounding (SPEC_FULL.md §4.1 step 5).
type RequestConfig struct {
	FinalModel         string
	RequestType        string
	InjectGoogleSearch bool
}

// ResolveRequestConfig decides the final model/request type for a request.
// hasNetworkingTool indicates the caller declared a web-search-shaped tool
// the proxy is about to strip in favor of Upstream's native grounding.
func ResolveRequestConfig(originalModel, mappedModel string, hasNetworkingTool, countTokensOnly bool) RequestConfig {
	final := mappedModel
	if final == "" {
		final = originalModel
	}
	requestType := RequestTypeGenerateContent
	if countTokensOnly {
		requestType = RequestTypeCountTokens
	}
	return RequestConfig{
		FinalModel:         final,
		RequestType:        requestType,
		InjectGoogleSearch: hasNetworkingTool,
	}
}

// modelFamilyOverride forces background/title-generation traffic onto a
// cheaper, search-capable model (SPEC_FULL.md §12).
const modelFamilyOverride = "gemini-2.5-flash"

// BackgroundTaskModel returns the model that background/title-generation
// requests should be downgraded to, regardless of what the client asked for.
func BackgroundTaskModel() string {
	return modelFamilyOverride
}

// StripNetworkingToolDecls removes function declarations whose name matches
// a recognized web-search tool, since Upstream's native grounding tool
// replaces them (SPEC_FULL.md §4.1 step 5). tools is the Upstream-shaped
// `tools` array (each entry carrying a `functionDeclarations` list).
func StripNetworkingToolDecls(tools []any, isNetworkingName func(string) bool) []any {
	out := make([]any, 0, len(tools))
	for _, t := range tools {
		entry, ok := t.(map[string]any)
		if !ok {
			out = append(out, t)
			continue
		}
		decls, ok := entry["functionDeclarations"].([]any)
		if !ok {
			out = append(out, t)
			continue
		}
		kept := make([]any, 0, len(decls))
		for _, d := range decls {
			decl, ok := d.(map[string]any)
			if !ok {
				kept = append(kept, d)
				continue
			}
			name, _ := decl["name"].(string)
			if isNetworkingName(strings.ToLower(name)) {
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) == 0 {
			continue
		}
		entry["functionDeclarations"] = kept
		out = append(out, entry)
	}
	return out
}

// InjectGoogleSearchTool appends Upstream's native grounding tool entry to
// tools, used in place of a client-declared web-search function when
// InjectGoogleSearch is set.
func InjectGoogleSearchTool(tools []any) []any {
	return append(tools, map[string]any{"googleSearch": map[string]any{}})
}

// HasFunctionDeclarations reports whether tools still carries any entry with
// a non-empty functionDeclarations list, used to guard InjectGoogleSearchTool:
// Upstream rejects a tools array that mixes functionDeclarations with
// googleSearch (SPEC_FULL.md §4.1 step 10), so callers must only inject
// native grounding when no function declarations remain after
// StripNetworkingToolDecls.
func HasFunctionDeclarations(tools []any) bool {
	for _, t := range tools {
		entry, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if decls, ok := entry["functionDeclarations"].([]any); ok && len(decls) > 0 {
			return true
		}
	}
	return false
}
