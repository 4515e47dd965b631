package entity

import (
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/garyjia/credit-approvals/internal/domain/workflow"
)

// Ticket is the current view of a credit memo request on the host platform
type Ticket struct {
	ID          string          `json:"id"`
	Subject     string          `json:"subject"`
	Status      workflow.Status `json:"status"`
	GroupID     string          `json:"group_id"`
	RequesterID string          `json:"requester_id"`
	// CreatorID is the agent who opened the ticket, if known
	CreatorID string `json:"creator_id"`
	FormName  string `json:"form_name,omitempty"`

	// Fields is the evaluation snapshot including discovered custom fields
	Fields rule.Record `json:"fields"`
	// ScopeField is the field name holding the credit type, empty when not found
	ScopeField string `json:"scope_field"`
}

// Owner returns the user a declined request is handed back to
func (t Ticket) Owner() string {
	if t.CreatorID != "" {
		return t.CreatorID
	}
	return t.RequesterID
}

// Actor is the user performing an approve or decline action.
// GroupIDs come from the host platform and are trusted as-is.
type Actor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	GroupIDs []string `json:"group_ids"`
}

// MemberOf reports whether the actor belongs to groupID
func (a Actor) MemberOf(groupID string) bool {
	if groupID == "" {
		return false
	}
	for _, id := range a.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// Mutation is a set of side effects to apply to a ticket.
// Nil fields are left unchanged; a non-nil empty GroupID clears the group.
type Mutation struct {
	Status     *workflow.Status `json:"status,omitempty"`
	GroupID    *string          `json:"group_id,omitempty"`
	AssigneeID *string          `json:"assignee_id,omitempty"`
	Comment    string           `json:"comment,omitempty"`
}

// StatusPtr returns a pointer for use in Mutation
func StatusPtr(s workflow.Status) *workflow.Status {
	return &s
}

// StringPtr returns a pointer for use in Mutation
func StringPtr(s string) *string {
	return &s
}
