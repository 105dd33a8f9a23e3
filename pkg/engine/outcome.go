// Package engine walks flow definitions node by node, sending messages
// through channel adapters and recording every visit in the execution ledger.
package engine

// OutcomeKind classifies how an interpreter run ended.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeSuspended OutcomeKind = "suspended"
)

// Outcome is the result of one interpreter run. A run either walks to the end
// of the graph, fails at a node, or parks at a node awaiting a subscriber
// reply. A suspended run holds no in-process state; the ledger row of the
// suspension node is the continuation.
type Outcome struct {
	Kind   OutcomeKind
	NodeID string
	Reason string
}

func CompletedOutcome() Outcome {
	return Outcome{Kind: OutcomeCompleted}
}

func FailedOutcome(nodeID, reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, NodeID: nodeID, Reason: reason}
}

func SuspendedOutcome(nodeID string) Outcome {
	return Outcome{Kind: OutcomeSuspended, NodeID: nodeID}
}
