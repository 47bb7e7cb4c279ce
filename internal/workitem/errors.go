package workitem

import "errors"

// Sentinel errors shared by the store and the orchestrator.
var (
	// ErrNotFound indicates the referenced work item does not exist.
	ErrNotFound = errors.New("work item not found")

	// ErrConflict indicates a conditional update lost a race: the persisted
	// status no longer matches the status the caller read.
	ErrConflict = errors.New("work item status changed concurrently")

	// ErrExists indicates a create collided with an existing identifier.
	ErrExists = errors.New("work item already exists")
)
