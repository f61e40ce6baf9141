// Package contentblock defines the internal, dialect-neutral representation
// of message content that every protocol transformer reads from and writes
// to. It is a closed sum type: the set of variants below is exhaustive and
// new variants must update every switch in this package and its callers.
package contentblock

// Block is implemented by exactly the variants declared in this file. The
// unexported marker method keeps the set closed to this package.
type Block interface {
	isBlock()
}

// Text is plain text content.
type Text struct {
	Text string
}

func (Text) isBlock() {}

// Thinking is a model-generated reasoning block. Signature is opaque and, if
// present, must be forwarded back to Upstream verbatim on continuation turns.
type Thinking struct {
	Thinking     string
	Signature    string
	CacheControl bool
}

func (Thinking) isBlock() {}

// RedactedThinking is a thinking block whose content the model withheld;
// only the opaque Data survives.
type RedactedThinking struct {
	Data string
}

func (RedactedThinking) isBlock() {}

// Image is inline base64 image content.
type Image struct {
	MediaType string
	Data      string
}

func (Image) isBlock() {}

// Document is inline base64 document content (e.g. PDF).
type Document struct {
	MediaType string
	Data      string
}

func (Document) isBlock() {}

// ToolUse is a model-issued function/tool call.
type ToolUse struct {
	ID        string
	Name      string
	Input     map[string]any
	Signature string
}

func (ToolUse) isBlock() {}

// ToolResult is the client-supplied result of a prior ToolUse.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (ToolResult) isBlock() {}

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content []Block
}

// Role identifies the speaker of a Message in the internal model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HasValidThinking reports whether msg's first content block, if any, is a
// Thinking block with a signature judged valid by isValidSignature.
func (m Message) HasValidThinking(minLen int) bool {
	if len(m.Content) == 0 {
		return false
	}
	th, ok := m.Content[0].(Thinking)
	if !ok {
		return false
	}
	return isValidSignature(th, minLen)
}

// HasUnresolvedToolUse reports whether msg (expected to be the last
// assistant message) ends a turn with a ToolUse but no Thinking block ahead
// of it — the "tool loop without thinking" state that forces thinking off
// for any continuation (SPEC_FULL.md §4.1 step 6(b)).
func (m Message) HasUnresolvedToolUse() bool {
	sawToolUse := false
	sawThinking := false
	for _, b := range m.Content {
		switch b.(type) {
		case ToolUse:
			sawToolUse = true
		case Thinking, RedactedThinking:
			sawThinking = true
		}
	}
	return sawToolUse && !sawThinking
}

// isValidSignature classifies a thinking block's signature per
// SPEC_FULL.md §4.1 step 2: valid iff (empty thinking AND signature
// present) OR signature length >= minLen.
func isValidSignature(th Thinking, minLen int) bool {
	if th.Thinking == "" {
		return th.Signature != ""
	}
	return len(th.Signature) >= minLen
}

// FilterInvalidThinking drops or downgrades Thinking blocks whose signature
// does not pass isValidSignature, and guarantees the message never ends up
// with zero content blocks (invariant 1, SPEC_FULL.md §8).
func FilterInvalidThinking(content []Block, minLen int) []Block {
	out := make([]Block, 0, len(content))
	for _, b := range content {
		th, ok := b.(Thinking)
		if !ok {
			out = append(out, b)
			continue
		}
		if isValidSignature(th, minLen) {
			out = append(out, b)
			continue
		}
		if th.Thinking != "" {
			out = append(out, Text{Text: th.Thinking})
		}
		// invalid and empty: dropped entirely
	}
	if len(out) == 0 {
		out = append(out, Text{Text: ""})
	}
	return out
}

// TrimTrailingUnsignedThinking removes contiguous Thinking blocks lacking a
// valid signature from the tail of content (SPEC_FULL.md §4.1 step 3).
func TrimTrailingUnsignedThinking(content []Block, minLen int) []Block {
	end := len(content)
	for end > 0 {
		th, ok := content[end-1].(Thinking)
		if !ok {
			break
		}
		if isValidSignature(th, minLen) {
			break
		}
		end--
	}
	return content[:end]
}

// StripCacheControl recursively clears CacheControl on every Thinking block;
// other block kinds never carried cache_control in the internal model.
func StripCacheControl(content []Block) []Block {
	out := make([]Block, len(content))
	for i, b := range content {
		if th, ok := b.(Thinking); ok {
			th.CacheControl = false
			out[i] = th
			continue
		}
		out[i] = b
	}
	return out
}
