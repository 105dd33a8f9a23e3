// Package persistence provides standardized error types for ledger operations.
package persistence

import "errors"

var (
	// ErrFlowNotFound indicates no flow definition exists for the given id.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrExecutionNotFound indicates no execution exists for the given id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrNodeExecutionNotFound indicates an execution has no ledger rows,
	// e.g. a resume attempt against an execution that never suspended.
	ErrNodeExecutionNotFound = errors.New("node execution not found")

	// ErrUserInputNotFound indicates no binding exists for the variable in
	// the given execution. Condition evaluation treats this as false.
	ErrUserInputNotFound = errors.New("user input not found")
)

// IsFlowNotFound checks if an error indicates a missing flow definition.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsNodeExecutionNotFound checks if an error indicates a missing ledger row.
func IsNodeExecutionNotFound(err error) bool {
	return errors.Is(err, ErrNodeExecutionNotFound)
}

// IsUserInputNotFound checks if an error indicates a missing variable binding.
func IsUserInputNotFound(err error) bool {
	return errors.Is(err, ErrUserInputNotFound)
}
