package anthropic

import (
	"strings"

	"google.golang.org/genai"

	"github.com/fpt/klein-cli/internal/contentblock"
	"github.com/fpt/klein-cli/internal/signature"
	"github.com/fpt/klein-cli/internal/transform/common"
	"github.com/fpt/klein-cli/internal/upstream"
	pkgLogger "github.com/fpt/klein-cli/pkg/logger"
)

var log = pkgLogger.NewComponentLogger("transform.anthropic")

// Params carries everything the transformer needs beyond the raw request
// body: the model name already resolved through the mapping tables, the
// pieces of account/session state the pipeline must consult, and the
// safety threshold to stamp on every request.
type Params struct {
	SessionID       string
	Stream          bool
	MappedModel     string
	ProjectID       string
	Signatures      *signature.Store
	SafetyThreshold genai.HarmBlockThreshold
}

// Result is what the caller (internal/server) needs after transformation:
// the ready-to-send envelope plus metadata for response shaping and
// telemetry.
type Result struct {
	Envelope       upstream.Envelope
	EffectiveModel string
	HasThinking    bool
	BackgroundTask bool
	ToolIDToName   map[string]string
}

// Transform runs the fourteen-step Anthropic-to-Upstream pipeline of
// SPEC_FULL.md §4.1.
func Transform(body []byte, p Params) (Result, error) {
	req, err := decodeRequest(body)
	if err != nil {
		return Result{}, err
	}

	messages := make([]contentblock.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := contentblock.RoleUser
		if m.Role == "assistant" {
			role = contentblock.RoleAssistant
		}
		messages = append(messages, contentblock.Message{
			Role:    role,
			Content: parseContentBlocks(m.Content),
		})
	}

	// Step 2: thinking filter.
	for i := range messages {
		if messages[i].Role != contentblock.RoleAssistant {
			continue
		}
		messages[i].Content = contentblock.FilterInvalidThinking(messages[i].Content, signature.MinParseableLength)
	}

	// Step 3: trailing-unsigned-thinking trim.
	for i := range messages {
		if messages[i].Role != contentblock.RoleAssistant {
			continue
		}
		messages[i].Content = contentblock.TrimTrailingUnsignedThinking(messages[i].Content, signature.MinParseableLength)
	}

	mappedModel := p.MappedModel
	if mappedModel == "" {
		mappedModel = req.Model
	}

	// Step 5: background-task detection.
	background := false
	if latest := lastUserText(messages); latest != "" && common.IsBackgroundTask(latest) {
		background = true
		mappedModel = upstream.BackgroundTaskModel()
		req.Tools = nil
		req.Thinking = nil
		messages = stripThinkingHistory(messages)
	}

	toolNames := make([]string, 0, len(req.Tools))
	toolDescs := make([]string, 0, len(req.Tools))
	for _, t := range req.Tools {
		toolNames = append(toolNames, t.Name)
		toolDescs = append(toolDescs, t.Description)
	}
	hasNetworking := common.DetectsNetworkingTool(toolNames, toolDescs)

	// Step 6: thinking-mode gating.
	hasThinking := resolveThinkingState(req, mappedModel, messages, p.Signatures, p.SessionID)

	// Step 7: contents build.
	toolIDToName := map[string]string{}
	contents, err := buildContents(messages, hasThinking, mappedModel, p.SessionID, p.Signatures, toolIDToName)
	if err != nil {
		return Result{}, err
	}

	// Step 8: role merging.
	contents = mergeAdjacentRoles(contents)

	inner := map[string]any{"contents": contents}

	// Step 10: tools build.
	if tools := buildTools(req.Tools, hasNetworking); tools != nil {
		tools = upstream.StripNetworkingToolDecls(tools, common.IsNetworkingToolName)
		if hasNetworking {
			if upstream.HasFunctionDeclarations(tools) {
				log.WarnWithIntention(pkgLogger.IntentionConfig, "omitting google_search: mixed tool kinds would be rejected by upstream", "session", p.SessionID)
			} else {
				tools = upstream.InjectGoogleSearchTool(tools)
			}
		}
		if len(tools) > 0 {
			inner["tools"] = tools
			inner["toolConfig"] = map[string]any{
				"functionCallingConfig": map[string]any{"mode": "VALIDATED"},
			}
		}
	}

	// Step 11: system instruction (identity injection deferred to
	// upstream.Wrap; here we only fold the client's own system prompt in).
	if sysText := extractSystemText(req.System); sysText != "" {
		inner["systemInstruction"] = map[string]any{
			"role":  "user",
			"parts": []any{map[string]any{"text": sysText}},
		}
	}

	// Step 12: generation config.
	inner["generationConfig"] = buildGenerationConfig(req, mappedModel, hasThinking)

	// Step 9: deep thought-field cleanup.
	if !hasThinking {
		stripThoughtFields(inner)
	}

	// Step 13: safety settings.
	inner["safetySettings"] = common.BuildSafetySettings(p.SafetyThreshold)

	// Step 14: undefined scrub.
	inner = common.DeepCleanUndefined(inner).(map[string]any)

	requestType := upstream.RequestTypeGenerateContent
	env := upstream.Wrap(inner, p.ProjectID, mappedModel, upstream.RequestIDAgent, requestType)

	return Result{
		Envelope:       env,
		EffectiveModel: mappedModel,
		HasThinking:    hasThinking,
		BackgroundTask: background,
		ToolIDToName:   toolIDToName,
	}, nil
}

func lastUserText(messages []contentblock.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != contentblock.RoleUser {
			continue
		}
		var b strings.Builder
		for _, c := range messages[i].Content {
			if t, ok := c.(contentblock.Text); ok {
				b.WriteString(t.Text)
			}
		}
		return b.String()
	}
	return ""
}

func stripThinkingHistory(messages []contentblock.Message) []contentblock.Message {
	out := make([]contentblock.Message, len(messages))
	for i, m := range messages {
		kept := make([]contentblock.Block, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.(type) {
			case contentblock.Thinking, contentblock.RedactedThinking:
				continue
			default:
				kept = append(kept, b)
			}
		}
		out[i] = contentblock.Message{Role: m.Role, Content: kept}
	}
	return out
}

// resolveThinkingState implements step 6's three-part gate.
func resolveThinkingState(req wireRequest, mappedModel string, messages []contentblock.Message, store *signature.Store, sessionID string) bool {
	requested := req.Thinking != nil && req.Thinking.Type == "enabled"
	if !requested && strings.Contains(mappedModel, "opus-4-5") && req.Thinking == nil {
		requested = true
	}
	if !requested && strings.Contains(mappedModel, "-thinking") {
		requested = true
	}
	if !requested {
		return false
	}
	if !targetModelSupportsThinking(mappedModel) {
		return false
	}
	for _, m := range messages {
		if m.Role == contentblock.RoleAssistant && m.HasUnresolvedToolUse() {
			return false
		}
	}
	if hasFunctionCalls(messages) {
		if store.Resolve(sessionID, "", mappedModel) == "" && !anyValidSignature(messages) {
			return false
		}
	}
	return true
}

func targetModelSupportsThinking(model string) bool {
	return !strings.Contains(model, "flash-lite") && model != ""
}

func hasFunctionCalls(messages []contentblock.Message) bool {
	for _, m := range messages {
		for _, b := range m.Content {
			if _, ok := b.(contentblock.ToolUse); ok {
				return true
			}
		}
	}
	return false
}

func anyValidSignature(messages []contentblock.Message) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != contentblock.RoleAssistant {
			continue
		}
		if messages[i].HasValidThinking(signature.MinValidLength) {
			return true
		}
	}
	return false
}

func mergeAdjacentRoles(contents []any) []any {
	out := make([]any, 0, len(contents))
	for _, c := range contents {
		entry := c.(map[string]any)
		if len(out) > 0 {
			prev := out[len(out)-1].(map[string]any)
			if prev["role"] == entry["role"] {
				prevParts := prev["parts"].([]any)
				newParts := entry["parts"].([]any)
				prev["parts"] = append(prevParts, newParts...)
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

func stripThoughtFields(node any) {
	switch v := node.(type) {
	case map[string]any:
		delete(v, "thought")
		delete(v, "thoughtSignature")
		for _, child := range v {
			stripThoughtFields(child)
		}
	case []any:
		for _, child := range v {
			stripThoughtFields(child)
		}
	}
}
