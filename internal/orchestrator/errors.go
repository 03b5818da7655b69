package orchestrator

import "errors"

var (
	// ErrNotStarted is returned by Spawn before Start has been called.
	ErrNotStarted = errors.New("orchestrator not started")

	// ErrProfileNotFound is returned when a spawn request names a profile
	// that is not configured.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrGroupExists is returned by CreateGroup when the group id is
	// already in use. No tasks are spawned in that case.
	ErrGroupExists = errors.New("group id already in use")

	// ErrGroupNotFound is returned by AwaitGroup for an unknown group id.
	ErrGroupNotFound = errors.New("group not found")

	// ErrInvalidMode is returned by WaitAll before any blocking happens
	// when the mode is neither "all" nor "any".
	ErrInvalidMode = errors.New("invalid wait mode")

	// ErrWaitTimeout is returned by the await operations when the
	// deadline expires. The partial state map is still returned.
	ErrWaitTimeout = errors.New("wait timed out")
)
