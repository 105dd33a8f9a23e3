package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of a FlowExecution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting" // suspended, awaiting a human reply
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// FlowExecution is one run of a flow for one subscriber, created per inbound
// trigger. It is never deleted by the engine; the row is the audit record and,
// while waiting, the persisted continuation.
type FlowExecution struct {
	ID           string          `json:"id"`
	FlowID       string          `json:"flow_id"`
	SubscriberID string          `json:"subscriber_id"`
	Channel      string          `json:"channel"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NewFlowExecution creates a running execution for the given trigger.
func NewFlowExecution(flowID, subscriberID, channelName string) *FlowExecution {
	return &FlowExecution{
		ID:           "exec-" + uuid.New().String(),
		FlowID:       flowID,
		SubscriberID: subscriberID,
		Channel:      channelName,
		Status:       ExecutionStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
}

// Terminal reports whether the execution has reached a final state.
// No transition leaves a terminal state.
func (e *FlowExecution) Terminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// MarkWaiting suspends the execution. No-op on a terminal execution.
func (e *FlowExecution) MarkWaiting() {
	if e.Terminal() {
		return
	}

	e.Status = ExecutionStatusWaiting
}

// MarkRunning re-enters the running state on resume. No-op on a terminal
// execution.
func (e *FlowExecution) MarkRunning() {
	if e.Terminal() {
		return
	}

	e.Status = ExecutionStatusRunning
}

// MarkCompleted terminates the execution successfully. No-op if already
// terminal: an execution terminates exactly once.
func (e *FlowExecution) MarkCompleted() {
	if e.Terminal() {
		return
	}

	now := time.Now().UTC()
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
}

// MarkFailed terminates the execution with a reason. No-op if already terminal.
func (e *FlowExecution) MarkFailed(reason string) {
	if e.Terminal() {
		return
	}

	now := time.Now().UTC()
	e.Status = ExecutionStatusFailed
	e.CompletedAt = &now
	e.ErrorMessage = reason
}

// NodeExecutionStatus is the state of a single node visit.
type NodeExecutionStatus string

const (
	NodeExecutionStatusRunning NodeExecutionStatus = "running"
	NodeExecutionStatusSuccess NodeExecutionStatus = "success"
	NodeExecutionStatusFailed  NodeExecutionStatus = "failed"
)

// NodeExecution is one row of the execution ledger: a single visit of a single
// node. Rows are append-only and ordered by insertion; the last row of a
// waiting execution identifies the suspended node on resume. The engine holds
// no suspended state in process memory.
type NodeExecution struct {
	ID              string              `json:"id"`
	FlowExecutionID string              `json:"flow_execution_id"`
	NodeID          string              `json:"node_id"`
	NodeType        NodeType            `json:"node_type"`
	Status          NodeExecutionStatus `json:"status"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// NewNodeExecution creates a running ledger row for a node visit.
func NewNodeExecution(flowExecutionID string, node *FlowNode) *NodeExecution {
	return &NodeExecution{
		ID:              "nexec-" + uuid.New().String(),
		FlowExecutionID: flowExecutionID,
		NodeID:          node.ID,
		NodeType:        node.Type,
		Status:          NodeExecutionStatusRunning,
		CreatedAt:       time.Now().UTC(),
	}
}

// UserInput is a variable binding captured from a subscriber reply at an input
// node, scoped to the owning execution. Condition nodes read bindings by
// variable name.
type UserInput struct {
	FlowExecutionID string    `json:"flow_execution_id"`
	InputNodeID     string    `json:"input_node_id"`
	VariableName    string    `json:"variable_name"`
	Value           string    `json:"value"`
	CreatedAt       time.Time `json:"created_at"`
}
