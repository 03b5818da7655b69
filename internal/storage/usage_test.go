package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dohr-michael/crew/internal/events"
)

func publishModelEvent(bus *events.Bus, taskID, phase string, tokensIn, tokensOut int) {
	payload := events.ModelCallPayload{
		Phase:        phase,
		Provider:     "openai",
		Model:        "test-model",
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
	}
	bus.Publish(events.NewTypedEventForTask(events.SourceModel, payload, taskID))
}

func openTestLedger(t *testing.T, bus *events.Bus) *UsageLedger {
	t.Helper()
	l, err := OpenUsageLedger(filepath.Join(t.TempDir(), "usage.db"), bus)
	if err != nil {
		t.Fatalf("OpenUsageLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestUsageLedger_Accumulation(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	l := openTestLedger(t, bus)

	publishModelEvent(bus, "task_a", "completed", 100, 50)
	publishModelEvent(bus, "task_a", "completed", 200, 80)
	publishModelEvent(bus, "task_b", "completed", 10, 5)

	time.Sleep(200 * time.Millisecond)

	got, err := l.Totals("task_a")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if got.PromptTokens != 300 {
		t.Errorf("prompt tokens: got %d, want 300", got.PromptTokens)
	}
	if got.CompletionTokens != 130 {
		t.Errorf("completion tokens: got %d, want 130", got.CompletionTokens)
	}
	if got.Calls != 2 {
		t.Errorf("calls: got %d, want 2", got.Calls)
	}

	grand, err := l.GrandTotal()
	if err != nil {
		t.Fatalf("GrandTotal: %v", err)
	}
	if grand.PromptTokens != 310 {
		t.Errorf("grand prompt tokens: got %d, want 310", grand.PromptTokens)
	}
	if grand.Calls != 3 {
		t.Errorf("grand calls: got %d, want 3", grand.Calls)
	}
}

func TestUsageLedger_PhaseFiltering(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	l := openTestLedger(t, bus)

	publishModelEvent(bus, "task_a", "started", 0, 0)
	publishModelEvent(bus, "task_a", "failed", 0, 0)

	time.Sleep(150 * time.Millisecond)

	got, err := l.Totals("task_a")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if got.Calls != 0 {
		t.Errorf("calls: got %d, want 0", got.Calls)
	}
}

func TestUsageLedger_NoTaskID(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	l := openTestLedger(t, bus)

	publishModelEvent(bus, "", "completed", 100, 50)

	time.Sleep(150 * time.Millisecond)

	grand, err := l.GrandTotal()
	if err != nil {
		t.Fatalf("GrandTotal: %v", err)
	}
	if grand.Calls != 0 {
		t.Errorf("calls: got %d, want 0", grand.Calls)
	}
}

func TestUsageLedger_ZeroTokens(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	l := openTestLedger(t, bus)

	publishModelEvent(bus, "task_a", "completed", 0, 0)

	time.Sleep(150 * time.Millisecond)

	got, err := l.Totals("task_a")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if got.Calls != 0 {
		t.Errorf("calls: got %d, want 0", got.Calls)
	}
}

func TestUsageLedger_PerTask(t *testing.T) {
	l := openTestLedger(t, nil)

	if err := l.Record("task_a", "openai", "gpt", 100, 20); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record("task_b", "anthropic", "claude", 50, 10); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record("task_a", "openai", "gpt", 30, 5); err != nil {
		t.Fatalf("Record: %v", err)
	}

	per, err := l.PerTask()
	if err != nil {
		t.Fatalf("PerTask: %v", err)
	}
	if len(per) != 2 {
		t.Fatalf("PerTask returned %d tasks, want 2", len(per))
	}

	byID := map[string]TaskUsage{}
	for _, tu := range per {
		byID[tu.TaskID] = tu
	}
	if byID["task_a"].PromptTokens != 130 || byID["task_a"].Calls != 2 {
		t.Errorf("task_a usage = %+v", byID["task_a"])
	}
	if byID["task_b"].CompletionTokens != 10 {
		t.Errorf("task_b usage = %+v", byID["task_b"])
	}
}

func TestUsageLedger_QueryOnlyReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")

	l, err := OpenUsageLedger(path, nil)
	if err != nil {
		t.Fatalf("OpenUsageLedger: %v", err)
	}
	if err := l.Record("task_a", "openai", "gpt", 42, 7); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenUsageLedger(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Totals("task_a")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if got.PromptTokens != 42 {
		t.Errorf("prompt tokens after reopen: got %d, want 42", got.PromptTokens)
	}
}
