package models

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/secrets"
)

func TestResolveAuth_DirectAPIKey(t *testing.T) {
	cfg := config.ProviderConfig{
		Driver: "anthropic",
		Auth:   config.AuthConfig{APIKey: "sk-ant-test-123"},
	}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Kind != AuthAPIKey {
		t.Fatalf("expected AuthAPIKey, got %d", auth.Kind)
	}
	if auth.Value != "sk-ant-test-123" {
		t.Fatalf("expected value %q, got %q", "sk-ant-test-123", auth.Value)
	}
}

func TestResolveAuth_DirectBearerToken(t *testing.T) {
	cfg := config.ProviderConfig{
		Driver: "anthropic",
		Auth: config.AuthConfig{
			APIKey: "sk-ant-test-123",
			Token:  "bearer-token-xyz",
		},
	}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	// Bearer token takes priority over API key
	if auth.Kind != AuthBearerToken {
		t.Fatalf("expected AuthBearerToken, got %d", auth.Kind)
	}
	if auth.Value != "bearer-token-xyz" {
		t.Fatalf("expected value %q, got %q", "bearer-token-xyz", auth.Value)
	}
}

func TestResolveAuth_EnvVarSyntax(t *testing.T) {
	t.Setenv("MY_CUSTOM_KEY", "custom-api-key-value")

	cfg := config.ProviderConfig{
		Driver: "anthropic",
		Auth:   config.AuthConfig{APIKey: "${MY_CUSTOM_KEY}"},
	}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Kind != AuthAPIKey {
		t.Fatalf("expected AuthAPIKey, got %d", auth.Kind)
	}
	if auth.Value != "custom-api-key-value" {
		t.Fatalf("expected value %q, got %q", "custom-api-key-value", auth.Value)
	}
}

func TestResolveAuth_EncryptedAPIKey(t *testing.T) {
	t.Setenv("CREW_PATH", t.TempDir())

	if err := secrets.GenerateIdentity(secrets.KeyPath()); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	identity, err := secrets.LoadIdentity(secrets.KeyPath())
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	blob, err := secrets.Encrypt("sk-secret-key", identity.Recipient())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	cfg := config.ProviderConfig{
		Driver: "anthropic",
		Auth:   config.AuthConfig{APIKey: blob},
	}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Value != "sk-secret-key" {
		t.Fatalf("expected decrypted key, got %q", auth.Value)
	}
}

func TestResolveAuth_FallbackAnthropicEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic-key")

	cfg := config.ProviderConfig{Driver: "anthropic"}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Kind != AuthAPIKey {
		t.Fatalf("expected AuthAPIKey, got %d", auth.Kind)
	}
	if auth.Value != "env-anthropic-key" {
		t.Fatalf("expected value %q, got %q", "env-anthropic-key", auth.Value)
	}
}

func TestResolveAuth_FallbackGeminiEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")

	cfg := config.ProviderConfig{Driver: "gemini"}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Value != "env-gemini-key" {
		t.Fatalf("expected value %q, got %q", "env-gemini-key", auth.Value)
	}
}

func TestResolveAuth_UnknownDriver(t *testing.T) {
	cfg := config.ProviderConfig{Driver: "groq"}
	_, err := ResolveAuth(cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected 'unknown driver' error, got %v", err)
	}
}

func TestResolveAuth_NothingSet(t *testing.T) {
	// Clear all env vars
	t.Setenv("ANTHROPIC_API_KEY", "")
	os.Unsetenv("ANTHROPIC_API_KEY")

	cfg := config.ProviderConfig{Driver: "anthropic"}
	_, err := ResolveAuth(cfg)
	if err == nil {
		t.Fatal("expected error when no auth is available")
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY not set") {
		t.Fatalf("expected 'ANTHROPIC_API_KEY not set' error, got %v", err)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	cfg := config.ModelsConfig{
		Default:   "main",
		Providers: map[string]config.ProviderConfig{},
	}
	reg := NewRegistry(cfg)

	_, err := reg.Get(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected 'not found' error, got %v", err)
	}
}

func TestRegistry_DefaultName(t *testing.T) {
	cfg := config.ModelsConfig{
		Default: "claude-main",
		Providers: map[string]config.ProviderConfig{
			"claude-main": {Driver: "anthropic"},
		},
	}
	reg := NewRegistry(cfg)

	if reg.DefaultName() != "claude-main" {
		t.Fatalf("expected default name %q, got %q", "claude-main", reg.DefaultName())
	}
}

func TestRegistry_ResolveEmptyWithoutDefault(t *testing.T) {
	reg := NewRegistry(config.ModelsConfig{
		Providers: map[string]config.ProviderConfig{},
	})

	_, _, err := reg.Resolve(context.Background(), "")
	if err == nil {
		t.Fatal("expected error when no default is configured")
	}
	if !strings.Contains(err.Error(), "no default model") {
		t.Fatalf("expected 'no default model' error, got %v", err)
	}
}

func TestRegistry_Describe(t *testing.T) {
	cfg := config.ModelsConfig{
		Default: "main",
		Providers: map[string]config.ProviderConfig{
			"main":  {Driver: "anthropic", Model: "claude-sonnet-4-6", Tags: []string{"smart"}},
			"local": {Driver: "ollama", Model: "qwen3"},
		},
	}
	reg := NewRegistry(cfg)

	infos := reg.Describe()
	if len(infos) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(infos))
	}
	// Sorted by name: local, main
	if infos[0].Name != "local" || infos[1].Name != "main" {
		t.Fatalf("expected sorted names [local main], got [%s %s]", infos[0].Name, infos[1].Name)
	}
	if infos[0].Default {
		t.Error("local should not be the default")
	}
	if !infos[1].Default {
		t.Error("main should be the default")
	}
	if infos[1].Driver != "anthropic" || infos[1].Model != "claude-sonnet-4-6" {
		t.Errorf("unexpected main info: %+v", infos[1])
	}
	if len(infos[1].Tags) != 1 || infos[1].Tags[0] != "smart" {
		t.Errorf("expected tags [smart], got %v", infos[1].Tags)
	}
}

func TestCreateModel_UnknownDriver(t *testing.T) {
	cfg := config.ProviderConfig{Driver: "unknown-driver"}
	_, err := CreateModel(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected 'unknown driver' error, got %v", err)
	}
}
