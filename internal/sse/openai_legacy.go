package sse

import (
	"crypto/rand"
	"encoding/json"
)

const legacyIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewLegacyCompletionID returns a "cmpl-<28 chars>" id in OpenAI's legacy
// completion id alphabet.
func NewLegacyCompletionID() string {
	buf := make([]byte, 28)
	if _, err := rand.Read(buf); err != nil {
		return "cmpl-0000000000000000000000000000"
	}
	out := make([]byte, 28)
	for i, b := range buf {
		out[i] = legacyIDAlphabet[int(b)%len(legacyIDAlphabet)]
	}
	return "cmpl-" + string(out)
}

// OpenAILegacyStreamState renders /v1/completions (legacy) streaming
// chunks: same per-stream id, "text" field instead of "delta".
type OpenAILegacyStreamState struct {
	id        string
	model     string
	created   int64
	seenCalls map[string]bool
	finished  bool
}

func NewOpenAILegacyStreamState(model string, created int64) *OpenAILegacyStreamState {
	return &OpenAILegacyStreamState{
		id:        NewLegacyCompletionID(),
		model:     model,
		created:   created,
		seenCalls: make(map[string]bool),
	}
}

func (s *OpenAILegacyStreamState) ProcessLine(line string) []byte {
	obj, ok := ParseDataLine(line)
	if !ok {
		return nil
	}
	ev := ExtractEvent(obj, s.seenCalls)
	return s.render(ev)
}

func (s *OpenAILegacyStreamState) render(ev Event) []byte {
	var out []byte
	text := ev.TextDelta + ev.ImageMarkdown
	if text != "" || ev.FinishReason == "" {
		out = append(out, s.frame(text, nil)...)
	}
	if ev.FinishReason != "" {
		s.finished = true
		out = append(out, s.frame("", &ev.FinishReason)...)
		out = append(out, []byte("data: [DONE]\n\n")...)
	}
	return out
}

func (s *OpenAILegacyStreamState) frame(text string, finishReason *string) []byte {
	chunk := map[string]any{
		"id":      s.id,
		"object":  "text_completion",
		"created": s.created,
		"model":   s.model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"text":          text,
				"finish_reason": finishReasonValue(finishReason),
			},
		},
	}
	b, err := json.Marshal(chunk)
	if err != nil {
		return nil
	}
	return []byte("data: " + string(b) + "\n\n")
}

func (s *OpenAILegacyStreamState) EmitForceStop() []byte {
	if s.finished {
		return nil
	}
	s.finished = true
	stop := "stop"
	out := s.frame("", &stop)
	out = append(out, []byte("data: [DONE]\n\n")...)
	return out
}
