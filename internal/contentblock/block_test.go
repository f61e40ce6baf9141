package contentblock

import "testing"

func TestFilterInvalidThinking(t *testing.T) {
	tests := []struct {
		name    string
		content []Block
		minLen  int
		want    []Block
	}{
		{
			name: "empty thinking no signature dropped",
			content: []Block{
				Thinking{Thinking: "", Signature: ""},
				Text{Text: "Hi"},
			},
			minLen: 50,
			want:   []Block{Text{Text: "Hi"}},
		},
		{
			name: "valid signature preserved",
			content: []Block{
				Thinking{Thinking: "reasoning", Signature: "0123456789012345678901234567890123456789012345678901234567890"},
				Text{Text: "answer"},
			},
			minLen: 50,
			want: []Block{
				Thinking{Thinking: "reasoning", Signature: "0123456789012345678901234567890123456789012345678901234567890"},
				Text{Text: "answer"},
			},
		},
		{
			name: "invalid with content downgraded to text",
			content: []Block{
				Thinking{Thinking: "short reasoning", Signature: "tooshort"},
			},
			minLen: 50,
			want:   []Block{Text{Text: "short reasoning"}},
		},
		{
			name:    "all dropped yields empty text sentinel",
			content: []Block{Thinking{Thinking: "", Signature: ""}},
			minLen:  50,
			want:    []Block{Text{Text: ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterInvalidThinking(tt.content, tt.minLen)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterInvalidThinking() = %#v, want %#v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("block %d = %#v, want %#v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTrimTrailingUnsignedThinking(t *testing.T) {
	tests := []struct {
		name    string
		content []Block
		wantLen int
	}{
		{
			name: "trailing unsigned thinking removed",
			content: []Block{
				Text{Text: "answer"},
				Thinking{Thinking: "trailing", Signature: ""},
			},
			wantLen: 1,
		},
		{
			name: "signed trailing thinking kept",
			content: []Block{
				Text{Text: "answer"},
				Thinking{Thinking: "trailing", Signature: "0123456789012345678901234567890123456789012345678901234567890"},
			},
			wantLen: 2,
		},
		{
			name:    "no trailing thinking is a no-op",
			content: []Block{Text{Text: "a"}, Text{Text: "b"}},
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimTrailingUnsignedThinking(tt.content, 50)
			if len(got) != tt.wantLen {
				t.Errorf("TrimTrailingUnsignedThinking() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestMessageHasUnresolvedToolUse(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{
			name: "tool use without thinking is unresolved",
			msg:  Message{Role: RoleAssistant, Content: []Block{ToolUse{ID: "t1", Name: "foo"}}},
			want: true,
		},
		{
			name: "tool use with thinking is resolved",
			msg: Message{Role: RoleAssistant, Content: []Block{
				Thinking{Thinking: "x", Signature: "0123456789012345678901234567890123456789012345678901234567890"},
				ToolUse{ID: "t1", Name: "foo"},
			}},
			want: false,
		},
		{
			name: "no tool use at all",
			msg:  Message{Role: RoleAssistant, Content: []Block{Text{Text: "hi"}}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.HasUnresolvedToolUse(); got != tt.want {
				t.Errorf("HasUnresolvedToolUse() = %v, want %v", got, tt.want)
			}
		})
	}
}
