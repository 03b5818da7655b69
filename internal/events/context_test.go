package events

import (
	"context"
	"testing"
)

func TestContextWithTaskID(t *testing.T) {
	ctx := ContextWithTaskID(context.Background(), "task_9f8e7d6c")

	if got := TaskIDFromContext(ctx); got != "task_9f8e7d6c" {
		t.Errorf("TaskIDFromContext = %q, want task_9f8e7d6c", got)
	}
}

func TestTaskIDFromContext_Absent(t *testing.T) {
	if got := TaskIDFromContext(context.Background()); got != "" {
		t.Errorf("TaskIDFromContext on empty context = %q, want empty", got)
	}
}

func TestContextWithWorkspace(t *testing.T) {
	ctx := ContextWithWorkspace(context.Background(), "/srv/crew/workspace")

	if got := WorkspaceFromContext(ctx); got != "/srv/crew/workspace" {
		t.Errorf("WorkspaceFromContext = %q, want /srv/crew/workspace", got)
	}
}

func TestWorkspaceFromContext_Absent(t *testing.T) {
	if got := WorkspaceFromContext(context.Background()); got != "" {
		t.Errorf("WorkspaceFromContext on empty context = %q, want empty", got)
	}
}

func TestContextWithWorkspace_EmptyNoOp(t *testing.T) {
	bg := context.Background()
	if ctx := ContextWithWorkspace(bg, ""); ctx != bg {
		t.Error("expected same context when dir is empty")
	}
}
