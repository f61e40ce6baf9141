package sse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OpenAIChatStreamState renders one Upstream stream as OpenAI
// chat.completion.chunk SSE events, terminated with "data: [DONE]\n\n".
type OpenAIChatStreamState struct {
	id         string
	model      string
	created    int64
	seenCalls  map[string]bool
	sentRole   bool
	toolIndex  int
	finished   bool
}

func NewOpenAIChatStreamState(model string, created int64) *OpenAIChatStreamState {
	return &OpenAIChatStreamState{
		id:        "chatcmpl-" + uuid.NewString(),
		model:     model,
		created:   created,
		seenCalls: make(map[string]bool),
	}
}

func (s *OpenAIChatStreamState) ProcessLine(line string) []byte {
	obj, ok := ParseDataLine(line)
	if !ok {
		return nil
	}
	ev := ExtractEvent(obj, s.seenCalls)
	return s.render(ev)
}

func (s *OpenAIChatStreamState) render(ev Event) []byte {
	var out []byte

	delta := map[string]any{}
	if !s.sentRole {
		delta["role"] = "assistant"
		s.sentRole = true
	}
	if text := ev.TextDelta + ev.ImageMarkdown; text != "" {
		delta["content"] = text
	}
	if len(ev.ToolCalls) > 0 {
		calls := make([]any, 0, len(ev.ToolCalls))
		for _, tc := range ev.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			calls = append(calls, map[string]any{
				"index": s.toolIndex,
				"id":    fmt.Sprintf("call_%s_%d", s.id, s.toolIndex),
				"type":  "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": string(args),
				},
			})
			s.toolIndex++
		}
		delta["tool_calls"] = calls
	}

	if len(delta) > 0 || ev.FinishReason == "" {
		out = append(out, s.frame(delta, nil)...)
	}

	if ev.FinishReason != "" {
		s.finished = true
		out = append(out, s.frame(map[string]any{}, &ev.FinishReason)...)
		out = append(out, []byte("data: [DONE]\n\n")...)
	}
	return out
}

func (s *OpenAIChatStreamState) frame(delta map[string]any, finishReason *string) []byte {
	chunk := map[string]any{
		"id":      s.id,
		"object":  "chat.completion.chunk",
		"created": s.created,
		"model":   s.model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"delta":         delta,
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

func finishReasonValue(fr *string) any {
	if fr == nil {
		return nil
	}
	return *fr
}

// EmitForceStop closes the stream with a finish_reason of "stop" if
// Upstream ended without ever sending one.
func (s *OpenAIChatStreamState) EmitForceStop() []byte {
	if s.finished {
		return nil
	}
	s.finished = true
	stop := "stop"
	out := s.frame(map[string]any{}, &stop)
	out = append(out, []byte("data: [DONE]\n\n")...)
	return out
}

func nowUnix() int64 {
	return time.Now().Unix()
}
