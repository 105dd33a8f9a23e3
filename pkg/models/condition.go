// Package models provides condition evaluation for flow branching.
package models

import "strings"

// ConditionOperator names a comparison applied to a captured user input.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorStartsWith  ConditionOperator = "starts_with"
	OperatorEndsWith    ConditionOperator = "ends_with"
)

// Condition describes the branch taken by a condition node. Field names a
// variable captured by an input node earlier in the same execution.
type Condition struct {
	Field     string            `json:"field"    validate:"required"`
	Operator  ConditionOperator `json:"operator" validate:"required"`
	Value     string            `json:"value"`
	TrueNode  string            `json:"true_node,omitempty"`
	FalseNode string            `json:"false_node,omitempty"`
}

// Evaluate compares a bound value against the condition. Comparison is
// case-insensitive on both sides: subscribers type free text and flow authors
// should not have to anticipate capitalization. Unknown operators evaluate to
// false. Pure function, safe to re-run.
func (c *Condition) Evaluate(value string) bool {
	left := strings.ToLower(value)
	right := strings.ToLower(c.Value)

	switch c.Operator {
	case OperatorEquals:
		return left == right
	case OperatorNotEquals:
		return left != right
	case OperatorContains:
		return strings.Contains(left, right)
	case OperatorNotContains:
		return !strings.Contains(left, right)
	case OperatorStartsWith:
		return strings.HasPrefix(left, right)
	case OperatorEndsWith:
		return strings.HasSuffix(left, right)
	default:
		return false
	}
}
