package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCondition_Evaluate_Operators(t *testing.T) {
	tests := []struct {
		name     string
		operator ConditionOperator
		value    string
		compare  string
		expected bool
	}{
		{"equals match", OperatorEquals, "yes", "yes", true},
		{"equals mismatch", OperatorEquals, "yes", "no", false},
		{"not_equals match", OperatorNotEquals, "yes", "no", true},
		{"not_equals mismatch", OperatorNotEquals, "yes", "yes", false},
		{"contains match", OperatorContains, "I want a refund", "refund", true},
		{"contains mismatch", OperatorContains, "hello", "refund", false},
		{"not_contains match", OperatorNotContains, "hello", "refund", true},
		{"not_contains mismatch", OperatorNotContains, "refund please", "refund", false},
		{"starts_with match", OperatorStartsWith, "order-1234", "order-", true},
		{"starts_with mismatch", OperatorStartsWith, "1234-order", "order-", false},
		{"ends_with match", OperatorEndsWith, "photo.png", ".png", true},
		{"ends_with mismatch", OperatorEndsWith, "photo.png", ".jpg", false},
		{"unknown operator", ConditionOperator("matches_regex"), "anything", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			condition := &Condition{Field: "answer", Operator: tt.operator, Value: tt.compare}
			assert.Equal(t, tt.expected, condition.Evaluate(tt.value))
		})
	}
}

func TestCondition_Evaluate_CaseInsensitive(t *testing.T) {
	condition := &Condition{Field: "answer", Operator: OperatorEquals, Value: "YES"}

	assert.True(t, condition.Evaluate("yes"))
	assert.True(t, condition.Evaluate("Yes"))
	assert.True(t, condition.Evaluate("YES"))

	contains := &Condition{Field: "answer", Operator: OperatorContains, Value: "Refund"}
	assert.True(t, contains.Evaluate("I want a REFUND now"))
}

func TestCondition_Evaluate_Pure(t *testing.T) {
	// Same inputs must produce the same result on every call.
	condition := &Condition{Field: "age", Operator: OperatorEquals, Value: "17"}

	for range 10 {
		assert.True(t, condition.Evaluate("17"))
		assert.False(t, condition.Evaluate("18"))
	}
}
