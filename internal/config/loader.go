package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before stripping, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	// Strip JSONC comments and trailing commas, then unmarshal
	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with all defaults applied, for commands that
// run before any config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18720
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Events.LogLevel == "" {
		cfg.Events.LogLevel = "info"
	}
	if cfg.Orchestrator.MaxIterations == 0 {
		cfg.Orchestrator.MaxIterations = 15
	}
	if cfg.Orchestrator.Retention == 0 {
		cfg.Orchestrator.Retention = Duration(time.Hour)
	}
	if cfg.Orchestrator.Workspace == "" {
		cfg.Orchestrator.Workspace = filepath.Join(CrewPath(), "workspace")
	}
	if cfg.Tools.Exec.Timeout == 0 {
		cfg.Tools.Exec.Timeout = Duration(60 * time.Second)
	}
	if cfg.Tools.Web.Provider == "" {
		cfg.Tools.Web.Provider = "duckduckgo"
	}
	if cfg.Tools.Web.MaxResults == 0 {
		cfg.Tools.Web.MaxResults = 5
	}
	if cfg.Storage.UsageDB == "" {
		cfg.Storage.UsageDB = filepath.Join(CrewPath(), "usage.db")
	}
	if cfg.Storage.TaskLogDir == "" {
		cfg.Storage.TaskLogDir = filepath.Join(CrewPath(), "logs", "tasks")
	}
	// Auth resolution is deferred to models.ResolveAuth() at model init time.
}
