package common

import "strings"

// backgroundTaskMaxLen bounds how long a message can be and still qualify
// for the lightweight-tier downgrade (SPEC_FULL.md §4.1 step 5).
const backgroundTaskMaxLen = 800

// backgroundTaskKeywords classify a user message as a background,
// non-agentic task. Matching is a simple case-insensitive substring check,
// adequate for the short, formulaic prompts these clients send for titles,
// summaries, and the like.
var backgroundTaskKeywords = []string{
	"generate a title", "write a title", "short title", "conversation title",
	"title for this conversation",
	"summarize this conversation", "brief summary", "tl;dr",
	"compress the following context", "compress this context",
	"suggest a follow-up", "suggested prompts", "suggest next",
	"system message for this", "you are a helpful assistant that",
	"what operating system", "which shell", "environment probe",
}

// IsBackgroundTask reports whether msg looks like one of the lightweight,
// non-agentic background tasks clients periodically send (title
// generation, summarization, context compression, prompt suggestion,
// system-message synthesis, environment probing) per SPEC_FULL.md §4.1
// step 5 and §12.
func IsBackgroundTask(msg string) bool {
	if len(msg) > backgroundTaskMaxLen {
		return false
	}
	lower := strings.ToLower(msg)
	for _, kw := range backgroundTaskKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
