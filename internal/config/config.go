package config

import "time"

// Config is the root configuration for Crew.
type Config struct {
	Gateway      GatewayConfig      `json:"gateway"`
	Models       ModelsConfig       `json:"models"`
	Events       EventsConfig       `json:"events"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Tools        ToolsConfig        `json:"tools"`
	Storage      StorageConfig      `json:"storage"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "anthropic", "openai", "mistral", "gemini", "ollama"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct key, ${{ .Env.VAR }} template, or ENC[age:...] blob
	Token  string `json:"token,omitempty"`   // OAuth/Bearer token
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogLevel   string `json:"log_level,omitempty"`
}

// OrchestratorConfig holds worker execution settings.
type OrchestratorConfig struct {
	MaxIterations int      `json:"max_iterations,omitempty"` // iteration cap per worker (default 15)
	Retention     Duration `json:"retention,omitempty"`      // how long terminal tasks stay listed (default 1h)
	Workspace     string   `json:"workspace,omitempty"`      // default worker workspace dir
	SystemPrompt  string   `json:"system_prompt,omitempty"`  // extra instructions appended to the worker prompt
}

// ToolsConfig configures the built-in worker tools.
type ToolsConfig struct {
	Exec ExecToolConfig `json:"exec"`
	Web  WebToolConfig  `json:"web"`
}

// ExecToolConfig configures the shell execution tool.
type ExecToolConfig struct {
	Disabled bool     `json:"disabled,omitempty"`
	Timeout  Duration `json:"timeout,omitempty"` // per-command wall clock (default 60s)
}

// WebToolConfig configures web search and fetch.
type WebToolConfig struct {
	Provider       string   `json:"provider,omitempty"` // "duckduckgo", "google", "bing"
	APIKey         string   `json:"api_key,omitempty"`
	SearchEngineID string   `json:"search_engine_id,omitempty"` // google custom search engine
	MaxResults     int      `json:"max_results,omitempty"`
	FetchTimeout   Duration `json:"fetch_timeout,omitempty"` // per-fetch wall clock (default 30s)
	FetchMaxKB     int      `json:"fetch_max_kb,omitempty"`  // body size cap (default 512)
	UserAgent      string   `json:"user_agent,omitempty"`
}

// StorageConfig holds paths for persisted artifacts.
type StorageConfig struct {
	UsageDB    string `json:"usage_db,omitempty"`     // sqlite ledger (default $CREW_PATH/usage.db)
	TaskLogDir string `json:"task_log_dir,omitempty"` // JSONL task event logs (default $CREW_PATH/logs/tasks)
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
