package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetEntry_NewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	if err := SetEntry(path, "API_KEY", "abc123"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "API_KEY=abc123\n" {
		t.Errorf("content = %q", data)
	}
}

func TestSetEntry_UpdatesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	initial := "# keys\nFIRST=1\nAPI_KEY=old\nLAST=9\n"
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := SetEntry(path, "API_KEY", "new"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}

	data, _ := os.ReadFile(path)
	content := string(data)
	if !strings.Contains(content, "API_KEY=new") {
		t.Errorf("value not updated: %q", content)
	}
	if strings.Contains(content, "API_KEY=old") {
		t.Errorf("old value still present: %q", content)
	}
	// Comments and other entries are preserved in order.
	wantOrder := []string{"# keys", "FIRST=1", "API_KEY=new", "LAST=9"}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i, want := range wantOrder {
		if lines[i] != want {
			t.Errorf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestSetEntry_QuotesSpecialChars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	if err := SetEntry(path, "SECRET", `pa ss"word`); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}

	data, _ := os.ReadFile(path)
	if want := `SECRET="pa ss\"word"` + "\n"; string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestGetEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	initial := "# keys\nPLAIN=abc123\nQUOTED=\"pa ss\\\"word\"\n"
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		t.Fatal(err)
	}

	value, ok, err := GetEntry(path, "PLAIN")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !ok || value != "abc123" {
		t.Errorf("PLAIN = %q, ok = %v", value, ok)
	}

	value, ok, err = GetEntry(path, "QUOTED")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !ok || value != `pa ss"word` {
		t.Errorf("QUOTED = %q, ok = %v", value, ok)
	}

	_, ok, err = GetEntry(path, "MISSING")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if ok {
		t.Error("expected MISSING to be absent")
	}
}

func TestGetEntry_MissingFile(t *testing.T) {
	_, ok, err := GetEntry(filepath.Join(t.TempDir(), "nope.env"), "KEY")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if ok {
		t.Error("expected no entry from a missing file")
	}
}

func TestSetEntryGetEntry_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	secret := `s3cr3t with "quotes" and \backslashes\`
	if err := SetEntry(path, "TOKEN", secret); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}

	value, ok, err := GetEntry(path, "TOKEN")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !ok {
		t.Fatal("expected TOKEN to exist")
	}
	if value != secret {
		t.Errorf("round trip = %q, want %q", value, secret)
	}
}
