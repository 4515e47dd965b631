package rule

// Operator is the comparison applied by a criterion
type Operator string

const (
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorEqualTo     Operator = "equal_to"
	OperatorNotEqualTo  Operator = "not_equal_to"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorIsEmpty     Operator = "is_empty"
	OperatorIsNotEmpty  Operator = "is_not_empty"
)

var operatorLabels = map[Operator]string{
	OperatorGreaterThan: "Greater Than",
	OperatorLessThan:    "Less Than",
	OperatorEqualTo:     "Equal To",
	OperatorNotEqualTo:  "Not Equal To",
	OperatorContains:    "Contains",
	OperatorNotContains: "Does Not Contain",
	OperatorIsEmpty:     "Is Empty",
	OperatorIsNotEmpty:  "Is Not Empty",
}

// AllOperators returns the supported operators in display order
func AllOperators() []Operator {
	return []Operator{
		OperatorGreaterThan,
		OperatorLessThan,
		OperatorEqualTo,
		OperatorNotEqualTo,
		OperatorContains,
		OperatorNotContains,
		OperatorIsEmpty,
		OperatorIsNotEmpty,
	}
}

// IsValid returns true if the operator is supported
func (o Operator) IsValid() bool {
	_, ok := operatorLabels[o]
	return ok
}

// NeedsValue reports whether the operator compares against a threshold
func (o Operator) NeedsValue() bool {
	return o != OperatorIsEmpty && o != OperatorIsNotEmpty
}

// Label returns the display name of the operator
func (o Operator) Label() string {
	return operatorLabels[o]
}

// String returns the string representation of the operator
func (o Operator) String() string {
	return string(o)
}
