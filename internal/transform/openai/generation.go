package openai

import "encoding/json"

// buildGenerationConfig implements request.rs's generationConfig
// defaults: max_tokens defaults to 64000, temperature/top_p default to
// 1.0 (unlike Anthropic, which leaves them unset when absent).
func buildGenerationConfig(req wireRequest) map[string]any {
	maxTokens := 64000
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	temperature := 1.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	topP := 1.0
	if req.TopP != nil {
		topP = *req.TopP
	}
	cfg := map[string]any{
		"maxOutputTokens": maxTokens,
		"temperature":     temperature,
		"topP":            topP,
	}
	if stop := stopSequences(req.Stop); stop != nil {
		cfg["stopSequences"] = stop
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		cfg["responseMimeType"] = "application/json"
	}
	return cfg
}

func stopSequences(raw json.RawMessage) []any {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []any{s}
	}
	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	return nil
}
