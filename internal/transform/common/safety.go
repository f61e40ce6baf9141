package common

import (
	"os"

	"google.golang.org/genai"
)

// harmCategories are the five categories SPEC_FULL.md §4.1 step 13
// requires every request to carry a threshold for.
var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
	genai.HarmCategoryCivicIntegrity,
}

// SafetyThresholdFromEnv reads GEMINI_SAFETY_THRESHOLD (SPEC_FULL.md §6),
// defaulting to "OFF", and maps it onto genai's HarmBlockThreshold enum.
func SafetyThresholdFromEnv() genai.HarmBlockThreshold {
	v := os.Getenv("GEMINI_SAFETY_THRESHOLD")
	return mapThreshold(v)
}

func mapThreshold(v string) genai.HarmBlockThreshold {
	switch v {
	case "LOW":
		return genai.HarmBlockThresholdBlockLowAndAbove
	case "MEDIUM":
		return genai.HarmBlockThresholdBlockMediumAndAbove
	case "HIGH":
		return genai.HarmBlockThresholdBlockOnlyHigh
	case "NONE":
		return genai.HarmBlockThresholdBlockNone
	case "OFF", "":
		return genai.HarmBlockThresholdOff
	default:
		return genai.HarmBlockThresholdOff
	}
}

// BuildSafetySettings returns the Upstream-ready safety settings array
// (one entry per harm category, all at the same threshold), as plain
// maps matching the v1internal wire shape the rest of this package's
// transformers build against.
func BuildSafetySettings(threshold genai.HarmBlockThreshold) []any {
	out := make([]any, 0, len(harmCategories))
	for _, cat := range harmCategories {
		out = append(out, map[string]any{
			"category":  string(cat),
			"threshold": string(threshold),
		})
	}
	return out
}
