package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Caps applied to snapshot fields so the file stays small enough to read
// at a glance.
const (
	snapshotTaskCap   = 100
	snapshotResultCap = 200
)

// SnapshotEntry is the monitoring view of a single task.
type SnapshotEntry struct {
	Label        string     `json:"label"`
	Task         string     `json:"task"`
	Status       Status     `json:"status"`
	Profile      string     `json:"profile,omitempty"`
	Iteration    int        `json:"iteration"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Result       string     `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Snapshot is the full status file contents.
type Snapshot struct {
	Timestamp    time.Time                `json:"timestamp"`
	RunningCount int                      `json:"running_count"`
	Workers      map[string]SnapshotEntry `json:"workers"`
}

// SnapshotWriter persists registry state to a JSON status file for
// monitoring. Writes are atomic (temp file + rename) and best-effort:
// orchestration never depends on them.
type SnapshotWriter struct {
	mu   sync.Mutex
	path string
	reg  *Registry
}

// NewSnapshotWriter creates a writer that snapshots reg to path.
func NewSnapshotWriter(path string, reg *Registry) *SnapshotWriter {
	return &SnapshotWriter{path: path, reg: reg}
}

// Write serializes the registry to the status file.
func (w *SnapshotWriter) Write() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Timestamp:    time.Now(),
		RunningCount: w.reg.RunningCount(),
		Workers:      make(map[string]SnapshotEntry),
	}
	for _, t := range w.reg.List() {
		entry := SnapshotEntry{
			Label:        t.Label,
			Task:         Truncate(t.Description, snapshotTaskCap),
			Status:       t.Status,
			Iteration:    t.Iteration,
			CreatedAt:    t.CreatedAt,
			LastActivity: t.LastActivityAt,
			CompletedAt:  t.CompletedAt,
			Result:       Truncate(t.Result, snapshotResultCap),
			Error:        Truncate(t.Error, snapshotResultCap),
		}
		if t.Profile != nil {
			entry.Profile = t.Profile.Name
		}
		snap.Workers[t.ID] = entry
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a status file written by SnapshotWriter.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
