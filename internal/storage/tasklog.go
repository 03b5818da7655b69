package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dohr-michael/crew/internal/events"
)

// TaskLogger persists bus events to JSONL files organized by task.
type TaskLogger struct {
	dir         string
	bus         *events.Bus
	unsubscribe func()
}

// NewTaskLogger creates a TaskLogger that subscribes to all bus events
// and writes them as JSONL to dir, one file per task.
func NewTaskLogger(dir string, bus *events.Bus) *TaskLogger {
	tl := &TaskLogger{
		dir: dir,
		bus: bus,
	}
	tl.unsubscribe = bus.Subscribe(tl.handleEvent)
	return tl
}

// Close unsubscribes the logger from the event bus.
func (tl *TaskLogger) Close() {
	if tl.unsubscribe != nil {
		tl.unsubscribe()
	}
}

func (tl *TaskLogger) handleEvent(e events.Event) {
	// Model calls feed the usage ledger and outgoing messages the chat
	// surface; neither belongs in the audit trail.
	if e.Type == events.EventModelCall || e.Type == events.EventOutgoingMessage {
		return
	}
	_ = tl.writeEvent(e)
}

func (tl *TaskLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := tl.logPath(e.TaskID)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// logPath picks the file for an event. Group and chain events carry no
// task id and land in the shared file.
func (tl *TaskLogger) logPath(taskID string) string {
	if taskID == "" {
		return filepath.Join(tl.dir, "_global.jsonl")
	}
	return filepath.Join(tl.dir, taskID+".jsonl")
}
