package events

import "context"

type taskIDKey struct{}

// ContextWithTaskID returns a new context carrying the task ID.
func ContextWithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskIDFromContext extracts the task ID from the context, or "" if absent.
func TaskIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(taskIDKey{}).(string); ok {
		return id
	}
	return ""
}

type workspaceKey struct{}

// ContextWithWorkspace returns a new context carrying the worker's workspace
// directory. An empty dir returns ctx unchanged.
func ContextWithWorkspace(ctx context.Context, dir string) context.Context {
	if dir == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey{}, dir)
}

// WorkspaceFromContext extracts the workspace directory, or "" if absent.
// File and exec tools resolve relative paths against it.
func WorkspaceFromContext(ctx context.Context) string {
	if dir, ok := ctx.Value(workspaceKey{}).(string); ok {
		return dir
	}
	return ""
}
