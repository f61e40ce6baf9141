package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadModelMapMissingFileIsEmpty(t *testing.T) {
	m, err := LoadModelMap(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadModelMap() error = %v, want nil for missing file", err)
	}
	if got := m.Resolve("openai", "gpt-4o"); got != "gpt-4o" {
		t.Errorf("Resolve() = %q, want identity fallback %q", got, "gpt-4o")
	}
}

func TestLoadModelMapResolvesPerDialect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	content := "openai:\n  gpt-4o: gemini-2.5-pro\nanthropic:\n  claude-opus-4-5: gemini-2.5-pro\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadModelMap(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		dialect, requested, want string
	}{
		{"openai", "gpt-4o", "gemini-2.5-pro"},
		{"anthropic", "claude-opus-4-5", "gemini-2.5-pro"},
		{"anthropic", "unmapped-model", "unmapped-model"},
	}
	for _, tt := range tests {
		if got := m.Resolve(tt.dialect, tt.requested); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.dialect, tt.requested, got, tt.want)
		}
	}
}
