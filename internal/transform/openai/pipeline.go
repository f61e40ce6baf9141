package openai

import (
	"encoding/json"

	"google.golang.org/genai"

	"github.com/fpt/klein-cli/internal/signature"
	"github.com/fpt/klein-cli/internal/transform/common"
	"github.com/fpt/klein-cli/internal/upstream"
	pkgLogger "github.com/fpt/klein-cli/pkg/logger"
)

var log = pkgLogger.NewComponentLogger("transform.openai")

type Params struct {
	SessionID       string
	MappedModel     string
	ProjectID       string
	Signatures      *signature.Store
	SafetyThreshold genai.HarmBlockThreshold
}

type Result struct {
	Envelope       upstream.Envelope
	EffectiveModel string
	ToolIDToName   map[string]string
}

// Transform implements SPEC_FULL.md §4.2: Chat Completions, Legacy
// Completions (prompt), and Responses/Codex requests all land here, with
// the latter two lowered to the Chat-style shape first.
func Transform(body []byte, p Params) (Result, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, err
	}

	req, err := decodeRequest(body)
	if err != nil {
		return Result{}, err
	}

	if messages, ok := lowerCodexInput(raw); ok {
		req.Messages = messages
	} else if req.Prompt != "" {
		req.Messages = []wireMessage{{Role: "user", Content: rawString(req.Prompt)}}
	}
	if len(req.Messages) == 0 {
		req.Messages = []wireMessage{{Role: "user", Content: rawString(" ")}}
	}

	mappedModel := p.MappedModel
	if mappedModel == "" {
		mappedModel = req.Model
	}

	toolNames, toolDescs := toolNamesAndDescs(req.Tools)
	hasNetworking := common.DetectsNetworkingTool(toolNames, toolDescs)

	systemText := extractSystemText(req.Messages)
	toolIDToName := prescanToolCallNames(req.Messages)

	// The global thought-signature slot (PR #93/#114 in the grounding
	// source): every functionCall part in the request gets the same
	// cached signature, unlike Anthropic's per-block signatures.
	globalSig := p.Signatures.Resolve(p.SessionID, "", mappedModel)

	contents := buildContents(req.Messages, toolIDToName, globalSig)
	contents = mergeAdjacentRoles(contents)

	inner := map[string]any{
		"contents":         contents,
		"generationConfig": buildGenerationConfig(req),
		"safetySettings":   common.BuildSafetySettings(p.SafetyThreshold),
	}
	inner = common.DeepCleanUndefined(inner).(map[string]any)

	tools := upstream.StripNetworkingToolDecls(buildTools(req.Tools), common.IsNetworkingToolName)
	if hasNetworking {
		if upstream.HasFunctionDeclarations(tools) {
			log.WarnWithIntention(pkgLogger.IntentionConfig, "omitting google_search: mixed tool kinds would be rejected by upstream", "session", p.SessionID)
		} else {
			tools = upstream.InjectGoogleSearchTool(tools)
		}
	}
	if len(tools) > 0 {
		inner["tools"] = tools
	}

	if systemText != "" {
		inner["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": systemText}},
		}
	}

	config := upstream.ResolveRequestConfig(req.Model, mappedModel, hasNetworking, false)
	env := upstream.Wrap(inner, p.ProjectID, config.FinalModel, upstream.RequestIDOpenAI, config.RequestType)

	return Result{
		Envelope:       env,
		EffectiveModel: config.FinalModel,
		ToolIDToName:   toolIDToName,
	}, nil
}
