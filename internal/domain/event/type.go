package event

// Type identifies the type of domain event
type Type string

const (
	// TypeRecordSaved is delivered by the host platform when a ticket is saved
	TypeRecordSaved Type = "record.saved"
	// TypeStatusChanged is published after the service applies a transition
	TypeStatusChanged Type = "request.status_changed"
	// TypeStatusReverted is published when an out-of-band status edit was undone
	TypeStatusReverted Type = "request.status_reverted"
	TypeRulesChanged   Type = "rules.changed"
)

// Payload keys
const (
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeyGroupID        = "group_id"
	KeyGroupName      = "group_name"
	KeyLevel          = "level"
	KeyActorID        = "actor_id"
	KeyActorName      = "actor_name"
	KeyAction         = "action"
	KeyComment        = "comment"
	KeyRuleID         = "rule_id"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRecordSaved,
		TypeStatusChanged,
		TypeStatusReverted,
		TypeRulesChanged:
		return true
	default:
		return false
	}
}
