package models

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/crew/internal/config"
)

// ProviderEntry holds a lazily-initialized model instance.
type ProviderEntry struct {
	Config config.ProviderConfig
	model  model.ToolCallingChatModel
	once   sync.Once
	err    error
}

// ProviderInfo describes a configured provider without exposing credentials.
type ProviderInfo struct {
	Name    string   `json:"name"`
	Driver  string   `json:"driver"`
	Model   string   `json:"model"`
	Tags    []string `json:"tags,omitempty"`
	Default bool     `json:"default"`
}

// Registry manages named model providers with lazy initialization.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]*ProviderEntry
	defaultName string
}

// NewRegistry creates a model registry from config.
func NewRegistry(cfg config.ModelsConfig) *Registry {
	r := &Registry{
		providers:   make(map[string]*ProviderEntry),
		defaultName: cfg.Default,
	}

	for name, provCfg := range cfg.Providers {
		r.providers[name] = &ProviderEntry{Config: provCfg}
	}

	return r
}

// Get returns the named model, initializing it lazily.
func (r *Registry) Get(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	r.mu.RLock()
	entry, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model provider %q not found", name)
	}

	entry.once.Do(func() {
		entry.model, entry.err = CreateModel(ctx, entry.Config)
	})

	return entry.model, entry.err
}

// Resolve returns the model for the named provider, falling back to the
// default when name is empty. The returned info identifies which provider
// actually served the request.
func (r *Registry) Resolve(ctx context.Context, name string) (model.ToolCallingChatModel, ProviderInfo, error) {
	if name == "" {
		name = r.defaultName
	}
	if name == "" {
		return nil, ProviderInfo{}, fmt.Errorf("no default model configured")
	}

	m, err := r.Get(ctx, name)
	if err != nil {
		return nil, ProviderInfo{}, err
	}
	return m, r.info(name), nil
}

// Default returns the default model.
func (r *Registry) Default(ctx context.Context) (model.ToolCallingChatModel, error) {
	if r.defaultName == "" {
		return nil, fmt.Errorf("no default model configured")
	}
	return r.Get(ctx, r.defaultName)
}

// DefaultName returns the name of the default provider.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names returns the configured provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns provider metadata for every configured provider,
// sorted by name.
func (r *Registry) Describe() []ProviderInfo {
	infos := make([]ProviderInfo, 0)
	for _, name := range r.Names() {
		infos = append(infos, r.info(name))
	}
	return infos
}

func (r *Registry) info(name string) ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.providers[name]
	if !ok {
		return ProviderInfo{Name: name}
	}
	return ProviderInfo{
		Name:    name,
		Driver:  entry.Config.Driver,
		Model:   entry.Config.Model,
		Tags:    entry.Config.Tags,
		Default: name == r.defaultName,
	}
}
