package anthropic

import "strings"

// maxOutputTokens is the fixed ceiling SPEC_FULL.md §4.1 step 12 mandates
// regardless of what the client requested.
const maxOutputTokens = 64000

// flashThinkingBudgetCap bounds the thinking budget for flash-class models.
const flashThinkingBudgetCap = 24576

var terminatorStopSequences = []string{
	"<|user|>", "<|endoftext|>", "<|end_of_turn|>", "[DONE]", "\n\nHuman:",
}

// buildGenerationConfig implements SPEC_FULL.md §4.1 step 12.
func buildGenerationConfig(req wireRequest, mappedModel string, hasThinking bool) map[string]any {
	cfg := map[string]any{
		"maxOutputTokens": maxOutputTokens,
		"stopSequences":   stopSequencesAsAny(),
	}
	if req.Temperature != nil {
		cfg["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		cfg["topP"] = *req.TopP
	}
	if req.TopK != nil {
		cfg["topK"] = *req.TopK
	}
	if hasThinking {
		budget := 8192
		if req.Thinking != nil && req.Thinking.BudgetTokens != nil {
			budget = *req.Thinking.BudgetTokens
		}
		if strings.Contains(mappedModel, "flash") && budget > flashThinkingBudgetCap {
			budget = flashThinkingBudgetCap
		}
		cfg["thinkingConfig"] = map[string]any{
			"includeThoughts": true,
			"thinkingBudget":  budget,
		}
	}
	if req.OutputConfig != nil {
		switch req.OutputConfig.Effort {
		case "low", "medium", "high":
			cfg["effortLevel"] = req.OutputConfig.Effort
		}
	}
	return cfg
}

func stopSequencesAsAny() []any {
	out := make([]any, len(terminatorStopSequences))
	for i, s := range terminatorStopSequences {
		out[i] = s
	}
	return out
}
