package config

import (
	"os"
	"path/filepath"
)

// CrewPath returns the root directory for Crew data.
// It uses $CREW_PATH if set, otherwise defaults to ~/.crew.
func CrewPath() string {
	if v := os.Getenv("CREW_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".crew")
	}
	return filepath.Join(home, ".crew")
}

// ConfigPath returns the path to the Crew config file.
func ConfigPath() string {
	return filepath.Join(CrewPath(), "config.jsonc")
}

// DotenvPath returns the path to the Crew .env file.
func DotenvPath() string {
	return filepath.Join(CrewPath(), ".env")
}

// ProfilesPath returns the path to the worker profile definitions.
func ProfilesPath() string {
	return filepath.Join(CrewPath(), "profiles.yaml")
}

// StatusPath returns the path to the task status snapshot.
func StatusPath() string {
	return filepath.Join(CrewPath(), "status.json")
}
