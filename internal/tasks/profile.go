package tasks

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

type profilesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads worker profile definitions from a YAML file.
// A missing file yields an empty set, not an error.
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Profile{}, nil
		}
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	if f.Profiles == nil {
		return map[string]Profile{}, nil
	}
	for name, p := range f.Profiles {
		p.Name = name
		f.Profiles[name] = p
	}
	return f.Profiles, nil
}

// Merge returns a copy of p with every field set in o replacing p's value.
// Zero-valued fields in o keep p's. Name is never merged.
func (p Profile) Merge(o Profile) Profile {
	out := p
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.Temperature != nil {
		t := *o.Temperature
		out.Temperature = &t
	}
	if o.MaxTokens > 0 {
		out.MaxTokens = o.MaxTokens
	}
	if o.Workspace != "" {
		out.Workspace = o.Workspace
	}
	if o.Prompt != "" {
		out.Prompt = o.Prompt
	}
	if len(o.Tools) > 0 {
		out.Tools = slices.Clone(o.Tools)
	}
	return out
}
