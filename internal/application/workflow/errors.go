package workflow

import "errors"

var (
	// ErrNotAuthorized is returned when the actor is not a member of the assigned group
	ErrNotAuthorized = errors.New("actor is not a member of the assigned approval group")

	// ErrReasonRequired is returned when a decline has no reason
	ErrReasonRequired = errors.New("a reason is required to decline")

	// ErrLevelNotFound is returned when the assigned group is not part of the approval levels
	ErrLevelNotFound = errors.New("assigned group is not an approval level for this request")

	// ErrActionInFlight is returned when another action on the request is still running
	ErrActionInFlight = errors.New("another action is in progress for this request")

	// ErrStatusTampered is returned when an out-of-band status change was reverted
	ErrStatusTampered = errors.New("status change reverted")

	// ErrEngineClosed is returned after the engine has been closed
	ErrEngineClosed = errors.New("workflow engine is closed")
)
