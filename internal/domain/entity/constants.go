package entity

// Action types recorded in TransitionHistory
const (
	ActionAutoApprove   = "AUTO_APPROVE"
	ActionRoute         = "ROUTE"
	ActionApprove       = "APPROVE"
	ActionFinalApprove  = "FINAL_APPROVE"
	ActionDecline       = "DECLINE"
	ActionReassign      = "REASSIGN"
	ActionRevert        = "REVERT"
	ActionResubmit      = "RESUBMIT"
	ActionObserveSubmit = "SUBMIT"
)

// SystemActorID is recorded for transitions made by the service itself
const SystemActorID = "system"

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)
