package workflow

// Status is the approval status of a credit memo request
type Status string

const (
	StatusPreSubmission     Status = "pre_submission"
	StatusSubmitForApproval Status = "submit_for_approval"
	StatusPendingApproval   Status = "pending_approval"
	StatusApproved          Status = "approved"
	StatusDeclined          Status = "declined"
)

var statusLabels = map[Status]string{
	StatusPreSubmission:     "Pre-Submission",
	StatusSubmitForApproval: "Submit for Approval",
	StatusPendingApproval:   "Pending Approval",
	StatusApproved:          "Approved",
	StatusDeclined:          "Declined",
}

// AllStatuses returns every status in lifecycle order
func AllStatuses() []Status {
	return []Status{
		StatusPreSubmission,
		StatusSubmitForApproval,
		StatusPendingApproval,
		StatusApproved,
		StatusDeclined,
	}
}

// IsTerminal reports whether no further approval work happens in this status.
// Declined is not terminal: the requester may resubmit.
func (s Status) IsTerminal() bool {
	return s == StatusApproved
}

// IsValid returns true if the status is one of the known statuses
func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the agent-facing label of the status
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a stored value into a Status.
// Unknown or empty values map to StatusPreSubmission.
func ParseStatus(v string) Status {
	s := Status(v)
	if s.IsValid() {
		return s
	}
	return StatusPreSubmission
}
