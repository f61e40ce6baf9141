package common

import "testing"

func TestIsBackgroundTask(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{"title generation", "Please write a 5-10 word title for this conversation", true},
		{"summary request", "Give me a brief summary of what we discussed", true},
		{"real coding question", "Please fix the bug in auth.go where the token isn't refreshed", false},
		{"too long to be background despite keyword", makeLong("write a title") + " write a title", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBackgroundTask(tt.msg); got != tt.want {
				t.Errorf("IsBackgroundTask(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func makeLong(seed string) string {
	out := ""
	for len(out) < 900 {
		out += seed + " "
	}
	return out
}
