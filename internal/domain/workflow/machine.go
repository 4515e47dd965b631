package workflow

import "context"

// StateMachine tracks the current status of one request and validates transitions
type StateMachine interface {
	// Status returns the current status
	Status() Status

	// CanFire returns true if the trigger has a transition from the current status
	CanFire(trigger Trigger) bool

	// Target returns the status a trigger would move to, ignoring guards
	Target(trigger Trigger) (Status, bool)

	// Fire attempts to execute the trigger, moving to the new status if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current status, sorted
	PermittedTriggers() []Trigger
}
