// Package gemini passes native Gemini generateContent requests through to
// Upstream near-unmodified: tool-schema cleaning, web-search detection,
// and identity injection are still applied, but content and role shapes
// are untouched since the client is already speaking Upstream's own
// dialect. Grounded on
// original_source/mappers/gemini/wrapper.rs's wrap_request/unwrap_response.
package gemini

import (
	"encoding/json"

	"github.com/fpt/klein-cli/internal/transform/common"
	"github.com/fpt/klein-cli/internal/upstream"
	pkgLogger "github.com/fpt/klein-cli/pkg/logger"
)

var log = pkgLogger.NewComponentLogger("transform.gemini")

type Params struct {
	ProjectID   string
	MappedModel string
}

type Result struct {
	Envelope       upstream.Envelope
	EffectiveModel string
}

func Transform(body []byte, p Params) (Result, error) {
	var inner map[string]any
	if err := json.Unmarshal(body, &inner); err != nil {
		return Result{}, err
	}

	originalModel, _ := inner["model"].(string)

	mappedModel := p.MappedModel
	if mappedModel == "" {
		mappedModel = originalModel
	}

	inner = common.DeepCleanUndefined(inner).(map[string]any)

	hasNetworking := false
	if tools, ok := inner["tools"].([]any); ok {
		names, descs := declNamesAndDescs(tools)
		hasNetworking = common.DetectsNetworkingTool(names, descs)
		inner["tools"] = cleanTools(tools)
	}

	config := upstream.ResolveRequestConfig(originalModel, mappedModel, hasNetworking, false)

	if config.InjectGoogleSearch {
		tools, _ := inner["tools"].([]any)
		if upstream.HasFunctionDeclarations(tools) {
			log.WarnWithIntention(pkgLogger.IntentionConfig, "omitting google_search: mixed tool kinds would be rejected by upstream", "model", mappedModel)
		} else {
			inner["tools"] = upstream.InjectGoogleSearchTool(tools)
		}
	}

	env := upstream.Wrap(inner, p.ProjectID, config.FinalModel, upstream.RequestIDAgent, config.RequestType)

	return Result{Envelope: env, EffectiveModel: config.FinalModel}, nil
}

func declNamesAndDescs(tools []any) ([]string, []string) {
	var names, descs []string
	for _, t := range tools {
		entry, ok := t.(map[string]any)
		if !ok {
			continue
		}
		decls, ok := entry["functionDeclarations"].([]any)
		if !ok {
			continue
		}
		for _, d := range decls {
			decl, ok := d.(map[string]any)
			if !ok {
				continue
			}
			name, _ := decl["name"].(string)
			desc, _ := decl["description"].(string)
			names = append(names, name)
			descs = append(descs, desc)
		}
	}
	return names, descs
}

// cleanTools strips the two names Upstream's native grounding replaces and
// cleans each remaining declaration's parameter schema in place.
func cleanTools(tools []any) []any {
	out := make([]any, 0, len(tools))
	for _, t := range tools {
		entry, ok := t.(map[string]any)
		if !ok {
			out = append(out, t)
			continue
		}
		decls, ok := entry["functionDeclarations"].([]any)
		if !ok {
			out = append(out, entry)
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
			if name == "web_search" || name == "google_search" {
				continue
			}
			if params, ok := decl["parameters"].(map[string]any); ok {
				decl["parameters"] = common.CleanJSONSchema(params)
			}
			kept = append(kept, decl)
		}
		if len(kept) == 0 {
			continue
		}
		entry["functionDeclarations"] = kept
		out = append(out, entry)
	}
	return out
}
