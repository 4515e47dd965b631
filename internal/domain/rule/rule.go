package rule

import (
	"strings"
	"time"
)

// UnknownGroupName is used when an approval level names a group the directory does not know
const UnknownGroupName = "Unknown Group"

// Criterion is one field comparison of a rule
type Criterion struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// IsComplete reports whether the criterion can be evaluated
func (c Criterion) IsComplete() bool {
	return c.Field != "" && c.Operator != ""
}

// Rule is a stored approval policy.
// Both criteria must hold for the rule to trigger.
type Rule struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ScopeValue string    `json:"scope_value"`
	Criterion1 Criterion `json:"criterion1"`
	Criterion2 Criterion `json:"criterion2"`

	AutoApprove bool `json:"auto_approve"`
	// ApprovalLevel and GroupID only matter when AutoApprove is false
	ApprovalLevel string `json:"approval_level"`
	GroupID       string `json:"group_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsComplete reports whether both criteria have a field and an operator
func (r Rule) IsComplete() bool {
	return r.Criterion1.IsComplete() && r.Criterion2.IsComplete()
}

// AppliesTo reports whether the rule's scope matches the record.
// An empty ScopeValue matches every record; a missing or null scope value
// matches no scoped rule. Non-string values compare in their string form.
func (r Rule) AppliesTo(record Record, scopeField string) bool {
	if r.ScopeValue == "" {
		return true
	}
	if scopeField == "" {
		return false
	}
	v, ok := record[scopeField]
	if !ok || v == nil {
		return false
	}
	return stringify(v) == r.ScopeValue
}

// Level returns the numeric approval level using leading-integer parsing.
// ok is false when the rule carries no usable level.
func (r Rule) Level() (int, bool) {
	return parseLeadingInt(r.ApprovalLevel)
}

// HasRouting reports whether the rule can contribute an approval level
func (r Rule) HasRouting() bool {
	if r.AutoApprove || strings.TrimSpace(r.GroupID) == "" {
		return false
	}
	_, ok := r.Level()
	return ok
}

// Group is an approving group from the group directory
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is a snapshot of a request's field values keyed by field name
type Record map[string]any

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
