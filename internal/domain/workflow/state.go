package workflow

import "time"

// State is the tracked workflow state of a single request.
// It is owned by the controller for that request; callers receive copies.
type State struct {
	RequestID string

	// CurrentGroupID is empty when no group is assigned
	CurrentGroupID string
	CurrentStatus  Status

	// AutoAssignProcessed prevents duplicate routing on repeated save events.
	// It resets only when the request leaves Declined.
	AutoAssignProcessed bool

	// IsProcessingAction is set while a multi-step mutation is in flight
	IsProcessingAction bool

	// HasBeenSubmitted is durable: once true it survives reloads
	HasBeenSubmitted bool

	UpdatedAt time.Time
}

// NewState returns the initial state for a request seen for the first time
func NewState(requestID string) State {
	return State{
		RequestID:     requestID,
		CurrentStatus: StatusPreSubmission,
	}
}

// Observe records a status and group read from the host platform.
// Leaving Declined re-arms auto assignment for the resubmission.
func (s *State) Observe(status Status, groupID string) {
	if s.CurrentStatus == StatusDeclined && status != StatusDeclined {
		s.AutoAssignProcessed = false
	}
	if status != StatusPreSubmission {
		s.HasBeenSubmitted = true
	}
	s.CurrentStatus = status
	s.CurrentGroupID = groupID
}

// HasGroup reports whether a group is currently assigned
func (s State) HasGroup() bool {
	return s.CurrentGroupID != ""
}
