package tasks

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfiles(t *testing.T) {
	content := `profiles:
  researcher:
    model: claude
    temperature: 0.2
    max_tokens: 8192
    workspace: ~/research
    prompt: |
      Cite every source you use.
    tools: [web_search, web_fetch, read_file]
  coder:
    model: gpt
`

	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}

	if len(profiles) != 2 {
		t.Fatalf("len = %d, want 2", len(profiles))
	}

	r, ok := profiles["researcher"]
	if !ok {
		t.Fatal("researcher profile missing")
	}
	if r.Name != "researcher" {
		t.Errorf("name not injected: %q", r.Name)
	}
	if r.Model != "claude" {
		t.Errorf("model = %q", r.Model)
	}
	if r.Temperature == nil || *r.Temperature != 0.2 {
		t.Errorf("temperature = %v", r.Temperature)
	}
	if r.MaxTokens != 8192 {
		t.Errorf("max_tokens = %d", r.MaxTokens)
	}
	if len(r.Tools) != 3 || r.Tools[0] != "web_search" {
		t.Errorf("tools = %v", r.Tools)
	}

	c := profiles["coder"]
	if c.Temperature != nil {
		t.Errorf("unset temperature should stay nil, got %v", *c.Temperature)
	}
}

func TestLoadProfiles_Missing(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected empty set, got %d", len(profiles))
	}
}

func TestProfileMerge(t *testing.T) {
	temp := float32(0.7)
	base := Profile{
		Name:        "researcher",
		Model:       "claude",
		Temperature: &temp,
		MaxTokens:   8192,
		Workspace:   "~/research",
		Prompt:      "Cite every source.",
		Tools:       []string{"web_search"},
	}

	override := float32(0.1)
	merged := base.Merge(Profile{Model: "gemini", Temperature: &override})

	if merged.Model != "gemini" {
		t.Errorf("model = %q, want gemini", merged.Model)
	}
	if merged.Temperature == nil || *merged.Temperature != 0.1 {
		t.Errorf("temperature = %v", merged.Temperature)
	}
	if merged.MaxTokens != 8192 {
		t.Errorf("unset max_tokens should keep base, got %d", merged.MaxTokens)
	}
	if merged.Workspace != "~/research" || merged.Prompt != "Cite every source." {
		t.Errorf("unset fields changed: %+v", merged)
	}
	if merged.Name != "researcher" {
		t.Errorf("name = %q, want researcher", merged.Name)
	}

	// The merged temperature must not alias the override's pointer.
	override = 0.9
	if *merged.Temperature != 0.1 {
		t.Errorf("temperature aliased: %v", *merged.Temperature)
	}
}

func TestProfileMergeEmptyBase(t *testing.T) {
	merged := Profile{}.Merge(Profile{Model: "ollama", MaxTokens: 512})
	if merged.Model != "ollama" || merged.MaxTokens != 512 {
		t.Errorf("merged = %+v", merged)
	}
	if merged.Name != "" {
		t.Errorf("empty base should stay unnamed, got %q", merged.Name)
	}
}

func TestLoadProfiles_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	if err := os.WriteFile(path, []byte("profiles: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadProfiles(path); err == nil {
		t.Error("expected parse error")
	}
}
