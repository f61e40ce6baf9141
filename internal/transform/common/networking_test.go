package common

import "testing"

func TestIsNetworkingToolName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"web_search", true},
		{"google_search", true},
		{"googleSearchRetrieval", true},
		{"get_weather", false},
		{"read_file", false},
	}
	for _, tt := range tests {
		if got := IsNetworkingToolName(tt.name); got != tt.want {
			t.Errorf("IsNetworkingToolName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeFunctionName(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"empty falls back", "", "_unnamed_function"},
		{"colons replaced, dots kept", "server.tool:action", "server.tool_action"},
		{"leading digit gets prefixed", "123tool", "_123tool"},
		{"hyphens preserved", "tool-name", "tool-name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFunctionName(tt.input); got != tt.want {
				t.Errorf("NormalizeFunctionName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeFunctionNameTruncatesTo64(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	got := NormalizeFunctionName(long)
	if len(got) != maxFunctionNameLength {
		t.Errorf("len(NormalizeFunctionName(long)) = %d, want %d", len(got), maxFunctionNameLength)
	}
}

func TestDetectsNetworkingTool(t *testing.T) {
	if !DetectsNetworkingTool([]string{"read_file", "web_search"}, nil) {
		t.Error("expected DetectsNetworkingTool to match by name")
	}
	if !DetectsNetworkingTool(nil, []string{"Performs a Google Search for recent results"}) {
		t.Error("expected DetectsNetworkingTool to match by description keyword")
	}
	if DetectsNetworkingTool([]string{"read_file"}, []string{"reads a file from disk"}) {
		t.Error("expected DetectsNetworkingTool to return false for unrelated tool")
	}
}
