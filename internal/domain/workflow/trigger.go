package workflow

// Trigger is an event that moves a request between statuses
type Trigger string

const (
	// TriggerSubmit is the requester moving the ticket into Submit for Approval
	TriggerSubmit Trigger = "submit"
	// TriggerAutoApprove applies an all auto-approve evaluation
	TriggerAutoApprove Trigger = "auto_approve"
	// TriggerRoute assigns the first approval level
	TriggerRoute Trigger = "route"
	// TriggerAdvance approves the current level and hands over to the next one
	TriggerAdvance       Trigger = "advance"
	TriggerFinalApprove  Trigger = "final_approve"
	TriggerDecline       Trigger = "decline"
	TriggerResubmit      Trigger = "resubmit"
	TriggerReassignLevel Trigger = "reassign_level"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
