package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCrewPath_Default(t *testing.T) {
	t.Setenv("CREW_PATH", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	got := CrewPath()
	want := filepath.Join(home, ".crew")
	if got != want {
		t.Errorf("CrewPath() = %q, want %q", got, want)
	}
}

func TestCrewPath_EnvOverride(t *testing.T) {
	t.Setenv("CREW_PATH", "/tmp/custom-crew")

	got := CrewPath()
	want := "/tmp/custom-crew"
	if got != want {
		t.Errorf("CrewPath() = %q, want %q", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("CREW_PATH", "/tmp/test-crew")

	got := ConfigPath()
	want := "/tmp/test-crew/config.jsonc"
	if got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestStatusPath(t *testing.T) {
	t.Setenv("CREW_PATH", "/tmp/test-crew")

	got := StatusPath()
	want := "/tmp/test-crew/status.json"
	if got != want {
		t.Errorf("StatusPath() = %q, want %q", got, want)
	}
}
