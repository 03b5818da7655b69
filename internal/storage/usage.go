// Package storage persists task telemetry: a sqlite ledger of model token
// usage and a JSONL audit trail of task lifecycle events.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dohr-michael/crew/internal/events"
)

const createTaskUsage = `
CREATE TABLE IF NOT EXISTS task_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_task_usage_task ON task_usage(task_id);
`

// Usage is an accumulated token count.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	Calls            int64
}

// TaskUsage is one task's accumulated usage.
type TaskUsage struct {
	TaskID string
	Usage
}

// UsageLedger accumulates per-task token usage in sqlite, fed by model
// call events.
type UsageLedger struct {
	mu          sync.Mutex
	db          *sql.DB
	unsubscribe func()
}

// OpenUsageLedger opens the ledger database at path, creating the schema
// if needed, and subscribes to model call events. A nil bus gives a
// query-only ledger for CLI use.
func OpenUsageLedger(path string, bus *events.Bus) (*UsageLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("usage ledger: open %s: %w", path, err)
	}
	if _, err := db.Exec(createTaskUsage); err != nil {
		db.Close()
		return nil, fmt.Errorf("usage ledger: migrate: %w", err)
	}

	l := &UsageLedger{db: db}
	if bus != nil {
		l.unsubscribe = bus.Subscribe(l.handleEvent, events.EventModelCall)
	}
	return l, nil
}

// Close unsubscribes from the bus and closes the database.
func (l *UsageLedger) Close() error {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
	return l.db.Close()
}

func (l *UsageLedger) handleEvent(e events.Event) {
	if e.TaskID == "" {
		return
	}
	payload, ok := events.GetModelCallPayload(e)
	if !ok {
		return
	}
	// Only completed calls carry response usage.
	if payload.Phase != "completed" {
		return
	}
	if payload.TokensInput == 0 && payload.TokensOutput == 0 {
		return
	}
	if err := l.Record(e.TaskID, payload.Provider, payload.Model, payload.TokensInput, payload.TokensOutput); err != nil {
		slog.Error("usage ledger: record", "task_id", e.TaskID, "error", err)
	}
}

// Record inserts one usage row for a task.
func (l *UsageLedger) Record(taskID, provider, model string, promptTokens, completionTokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO task_usage (task_id, provider, model, prompt_tokens, completion_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, provider, model, promptTokens, completionTokens, time.Now().UTC(),
	)
	return err
}

// Totals returns the accumulated usage for one task.
func (l *UsageLedger) Totals(taskID string) (Usage, error) {
	var u Usage
	err := l.db.QueryRow(
		`SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COUNT(*)
		 FROM task_usage WHERE task_id = ?`,
		taskID,
	).Scan(&u.PromptTokens, &u.CompletionTokens, &u.Calls)
	if err != nil {
		return Usage{}, fmt.Errorf("usage ledger: totals: %w", err)
	}
	return u, nil
}

// GrandTotal returns the accumulated usage across every task.
func (l *UsageLedger) GrandTotal() (Usage, error) {
	var u Usage
	err := l.db.QueryRow(
		`SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COUNT(*)
		 FROM task_usage`,
	).Scan(&u.PromptTokens, &u.CompletionTokens, &u.Calls)
	if err != nil {
		return Usage{}, fmt.Errorf("usage ledger: grand total: %w", err)
	}
	return u, nil
}

// PerTask returns usage grouped by task, most recently active first.
func (l *UsageLedger) PerTask() ([]TaskUsage, error) {
	rows, err := l.db.Query(
		`SELECT task_id, SUM(prompt_tokens), SUM(completion_tokens), COUNT(*)
		 FROM task_usage GROUP BY task_id ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("usage ledger: per task: %w", err)
	}
	defer rows.Close()

	var result []TaskUsage
	for rows.Next() {
		var tu TaskUsage
		if err := rows.Scan(&tu.TaskID, &tu.PromptTokens, &tu.CompletionTokens, &tu.Calls); err != nil {
			return nil, fmt.Errorf("usage ledger: per task: %w", err)
		}
		result = append(result, tu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("usage ledger: per task: %w", err)
	}
	return result, nil
}
