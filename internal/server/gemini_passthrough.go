package server

import "github.com/fpt/klein-cli/internal/sse"

// geminiPassthroughRenderer re-emits Upstream's own streamGenerateContent
// lines to a native Gemini client after unwrapping the v1internal
// "response" envelope, since a Gemini-dialect client already expects
// Upstream's own candidate shape and needs none of the other dialects'
// reshaping.
type geminiPassthroughRenderer struct{}

func newGeminiPassthroughRenderer() *geminiPassthroughRenderer {
	return &geminiPassthroughRenderer{}
}

func (g *geminiPassthroughRenderer) ProcessLine(line string) []byte {
	obj, ok := sse.ParseDataLine(line)
	if !ok {
		return nil
	}
	inner := sse.UnwrapEnvelope(obj)
	data, err := marshalCompact(inner)
	if err != nil {
		return nil
	}
	return []byte("data: " + string(data) + "\n\n")
}
