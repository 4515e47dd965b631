package rule

// ApprovalLevel is one step of the approval sequence
type ApprovalLevel struct {
	Level     int    `json:"level"`
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
}

// EvaluationResult is the outcome of evaluating a rule set against a record
type EvaluationResult struct {
	TriggeredRules   []Rule          `json:"triggered_rules"`
	ApprovalLevels   []ApprovalLevel `json:"approval_levels"`
	RequiresApproval bool            `json:"requires_approval"`
	IsAutoApproved   bool            `json:"is_auto_approved"`
}

// LevelIndex returns the index of the first level assigned to groupID, or -1
func (r EvaluationResult) LevelIndex(groupID string) int {
	if groupID == "" {
		return -1
	}
	for i, lvl := range r.ApprovalLevels {
		if lvl.GroupID == groupID {
			return i
		}
	}
	return -1
}

// IsLast reports whether index is the final approval level
func (r EvaluationResult) IsLast(index int) bool {
	return index >= 0 && index == len(r.ApprovalLevels)-1
}

// Next returns the level following index
func (r EvaluationResult) Next(index int) (ApprovalLevel, bool) {
	if index < 0 || index+1 >= len(r.ApprovalLevels) {
		return ApprovalLevel{}, false
	}
	return r.ApprovalLevels[index+1], true
}

// First returns the first approval level
func (r EvaluationResult) First() (ApprovalLevel, bool) {
	if len(r.ApprovalLevels) == 0 {
		return ApprovalLevel{}, false
	}
	return r.ApprovalLevels[0], true
}
