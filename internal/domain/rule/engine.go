package rule

import (
	"sort"
	"strings"
)

// Evaluate runs every complete, in-scope rule against the record and collects the
// triggered rules and the approval levels they route to.
//
// Evaluate has no side effects and never fails: incomplete rules and rules with an
// unusable level are skipped.
func Evaluate(record Record, rules []Rule, groups []Group, scopeField string) EvaluationResult {
	groupNames := make(map[string]string, len(groups))
	for _, g := range groups {
		if _, seen := groupNames[g.ID]; !seen {
			groupNames[g.ID] = g.Name
		}
	}

	triggered := make([]Rule, 0)
	levels := make(map[int]ApprovalLevel)

	for _, r := range rules {
		if !r.AppliesTo(record, scopeField) {
			continue
		}
		if !r.IsComplete() {
			continue
		}
		if !Matches(record, r) {
			continue
		}

		triggered = append(triggered, r)

		if !r.HasRouting() {
			continue
		}
		level, _ := r.Level()
		if _, exists := levels[level]; exists {
			// first rule wins for a level
			continue
		}
		groupID := strings.TrimSpace(r.GroupID)
		name, ok := groupNames[groupID]
		if !ok {
			name = UnknownGroupName
		}
		levels[level] = ApprovalLevel{Level: level, GroupID: groupID, GroupName: name}
	}

	ordered := make([]ApprovalLevel, 0, len(levels))
	for _, lvl := range levels {
		ordered = append(ordered, lvl)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Level < ordered[j].Level })

	allAuto := len(triggered) > 0
	for _, r := range triggered {
		if !r.AutoApprove {
			allAuto = false
			break
		}
	}

	return EvaluationResult{
		TriggeredRules:   triggered,
		ApprovalLevels:   ordered,
		RequiresApproval: len(ordered) > 0,
		IsAutoApproved:   allAuto,
	}
}

// Matches reports whether both criteria of the rule hold for the record
func Matches(record Record, r Rule) bool {
	return EvaluateCriterion(record[r.Criterion1.Field], r.Criterion1.Operator, r.Criterion1.Value) &&
		EvaluateCriterion(record[r.Criterion2.Field], r.Criterion2.Operator, r.Criterion2.Value)
}

// EvaluateCriterion applies op to a field value and a stored threshold
func EvaluateCriterion(value any, op Operator, threshold string) bool {
	switch op {
	case OperatorIsEmpty:
		return isEmpty(value)
	case OperatorIsNotEmpty:
		return !isEmpty(value)
	case OperatorGreaterThan, OperatorLessThan, OperatorEqualTo, OperatorNotEqualTo,
		OperatorContains, OperatorNotContains:
		return CompareValues(stringify(value), op, threshold)
	default:
		return false
	}
}

// CompareValues compares a stringified field value with a threshold.
// Numeric-looking input is normalized so "$1,200.00" compares as 1200.
func CompareValues(value string, op Operator, threshold string) bool {
	a, aNum := parseNumber(value)
	b, bNum := parseNumber(threshold)

	switch op {
	case OperatorGreaterThan:
		return aNum && bNum && a > b
	case OperatorLessThan:
		return aNum && bNum && a < b
	case OperatorEqualTo:
		return equalValues(value, a, aNum, threshold, b, bNum)
	case OperatorNotEqualTo:
		return !equalValues(value, a, aNum, threshold, b, bNum)
	case OperatorContains:
		return containsValue(value, aNum, threshold, bNum)
	case OperatorNotContains:
		return !containsValue(value, aNum, threshold, bNum)
	case OperatorIsEmpty:
		return value == ""
	case OperatorIsNotEmpty:
		return value != ""
	default:
		return false
	}
}

func equalValues(value string, a float64, aNum bool, threshold string, b float64, bNum bool) bool {
	if aNum && bNum {
		return a == b
	}
	return strings.EqualFold(value, threshold)
}

func containsValue(value string, aNum bool, threshold string, bNum bool) bool {
	if aNum && bNum {
		nv, nt := normalizeNumeric(value), normalizeNumeric(threshold)
		return strings.Contains(nv, nt) || strings.Contains(nt, nv)
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(threshold))
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}
