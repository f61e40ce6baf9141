package sse

import (
	"encoding/json"
	"fmt"

	"github.com/fpt/klein-cli/internal/signature"
)

type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockThinking
	blockToolUse
)

// AnthropicStreamState renders one Upstream stream as a sequence of
// Anthropic Messages SSE events (message_start, content_block_start/delta/
// stop, message_delta, message_stop). There is no reference implementation
// of this state machine in the example pack (ClaudeStreamingState is only
// referenced, never defined, in 2a1758dd_...adapter.go.go) — it is built
// from SPEC_FULL.md §4.3 against the documented Anthropic event shapes.
type AnthropicStreamState struct {
	store       *signature.Store
	sessionID   string
	model       string
	msgID       string
	started     bool
	finished    bool
	blockIdx    int
	curBlock    blockKind
	sawToolUse  bool
	seenCalls   map[string]bool
	stopReason  string
	usage       Usage
}

func NewAnthropicStreamState(msgID, sessionID, model string, store *signature.Store) *AnthropicStreamState {
	return &AnthropicStreamState{
		store:     store,
		sessionID: sessionID,
		model:     model,
		msgID:     msgID,
		seenCalls: make(map[string]bool),
		blockIdx:  -1,
	}
}

// ProcessLine consumes one raw "data: {...}" SSE line from Upstream and
// returns the rendered Anthropic SSE frames it produces, if any.
func (s *AnthropicStreamState) ProcessLine(line string) []byte {
	obj, ok := ParseDataLine(line)
	if !ok {
		return nil
	}
	ev := ExtractEvent(obj, s.seenCalls)
	return s.render(ev)
}

func (s *AnthropicStreamState) render(ev Event) []byte {
	var out []byte
	out = append(out, s.ensureStarted()...)

	if ev.ThinkingDelta != "" || ev.ThinkingSignature != "" {
		out = append(out, s.emitThinking(ev.ThinkingDelta, ev.ThinkingSignature)...)
	}
	if ev.TextDelta != "" {
		out = append(out, s.emitText(ev.TextDelta)...)
	}
	if ev.ImageMarkdown != "" {
		out = append(out, s.emitText(ev.ImageMarkdown)...)
	}
	for _, tc := range ev.ToolCalls {
		out = append(out, s.emitToolUse(tc)...)
	}
	if ev.Usage != nil {
		s.usage = *ev.Usage
	}
	if ev.FinishReason != "" {
		s.stopReason = ev.FinishReason
		out = append(out, s.closeCurrentBlock()...)
		out = append(out, s.emitMessageDelta()...)
		out = append(out, s.emitMessageStop()...)
		s.finished = true
	}
	return out
}

func (s *AnthropicStreamState) ensureStarted() []byte {
	if s.started {
		return nil
	}
	s.started = true
	msg := map[string]any{
		"id":            s.msgID,
		"type":          "message",
		"role":          "assistant",
		"content":       []any{},
		"model":         s.model,
		"stop_reason":   nil,
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
	}
	return sseFrame("message_start", map[string]any{"type": "message_start", "message": msg})
}

func (s *AnthropicStreamState) openBlock(kind blockKind, start map[string]any) []byte {
	if s.curBlock == kind {
		return nil
	}
	var out []byte
	out = append(out, s.closeCurrentBlock()...)
	s.blockIdx++
	s.curBlock = kind
	out = append(out, sseFrame("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         s.blockIdx,
		"content_block": start,
	})...)
	return out
}

func (s *AnthropicStreamState) closeCurrentBlock() []byte {
	if s.curBlock == blockNone {
		return nil
	}
	s.curBlock = blockNone
	return sseFrame("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": s.blockIdx,
	})
}

func (s *AnthropicStreamState) emitText(delta string) []byte {
	out := s.openBlock(blockText, map[string]any{"type": "text", "text": ""})
	out = append(out, sseFrame("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": s.blockIdx,
		"delta": map[string]any{"type": "text_delta", "text": delta},
	})...)
	return out
}

func (s *AnthropicStreamState) emitThinking(delta, sig string) []byte {
	out := s.openBlock(blockThinking, map[string]any{"type": "thinking", "thinking": ""})
	if delta != "" {
		out = append(out, sseFrame("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": s.blockIdx,
			"delta": map[string]any{"type": "thinking_delta", "thinking": delta},
		})...)
	}
	if sig != "" {
		s.store.Observe(s.sessionID, "", s.model, sig)
		out = append(out, sseFrame("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": s.blockIdx,
			"delta": map[string]any{"type": "signature_delta", "signature": sig},
		})...)
	}
	return out
}

func (s *AnthropicStreamState) emitToolUse(tc ToolCall) []byte {
	s.sawToolUse = true
	toolUseID := fmt.Sprintf("toolu_%s_%d", s.msgID, s.blockIdx+1)
	out := s.openBlock(blockToolUse, map[string]any{
		"type":  "tool_use",
		"id":    toolUseID,
		"name":  tc.Name,
		"input": map[string]any{},
	})
	if tc.Signature != "" {
		s.store.Observe(s.sessionID, toolUseID, s.model, tc.Signature)
	}
	args, _ := json.Marshal(tc.Args)
	out = append(out, sseFrame("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": s.blockIdx,
		"delta": map[string]any{"type": "input_json_delta", "partial_json": string(args)},
	})...)
	return out
}

func (s *AnthropicStreamState) emitMessageDelta() []byte {
	return sseFrame("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": s.mapStopReason(), "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": s.usage.OutputTokens},
	})
}

func (s *AnthropicStreamState) emitMessageStop() []byte {
	return sseFrame("message_stop", map[string]any{"type": "message_stop"})
}

// mapStopReason translates the already-mapped Upstream finish reason into
// Anthropic's stop_reason vocabulary, preferring "tool_use" whenever a tool
// call was emitted regardless of the upstream reason (Upstream reports
// "stop" even when the turn ended on a function call).
func (s *AnthropicStreamState) mapStopReason() string {
	if s.sawToolUse {
		return "tool_use"
	}
	switch s.stopReason {
	case "length":
		return "max_tokens"
	case "content_filter":
		return "stop_sequence"
	case "stop", "":
		return "end_turn"
	default:
		return "end_turn"
	}
}

// EmitForceStop closes any still-open block and emits message_delta/
// message_stop if Upstream's stream ended (EOF or cancellation) without a
// finishReason ever arriving. Idempotent: a no-op once the stream has
// already finished normally. Grounded on handleStreamResponse's
// EmitForceStop call on io.EOF.
func (s *AnthropicStreamState) EmitForceStop() []byte {
	if s.finished {
		return nil
	}
	s.finished = true
	var out []byte
	out = append(out, s.ensureStarted()...)
	out = append(out, s.closeCurrentBlock()...)
	if s.stopReason == "" {
		s.stopReason = "stop"
	}
	out = append(out, s.emitMessageDelta()...)
	out = append(out, s.emitMessageStop()...)
	return out
}

func sseFrame(eventType string, data any) []byte {
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, b))
}
