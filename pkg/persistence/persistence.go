// Package persistence provides the data storage abstraction for flow
// definitions and the execution ledger.
package persistence

import (
	"context"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
)

// Persistence is the durable store behind the engine. Any backend with
// per-row upsert and indexed lookup suffices; file and PostgreSQL
// implementations are provided.
type Persistence interface {
	Flows() FlowRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores flow definitions authored by the editor subsystem.
// The engine reads definitions; the single write path is the editor's upsert.
type FlowRepository interface {
	FlowByID(ctx context.Context, id string) (*models.FlowDefinition, error)
	SaveFlow(ctx context.Context, flow *models.FlowDefinition) error
	Flows(ctx context.Context) ([]*models.FlowDefinition, error)
}

// ExecutionRepository is the execution ledger: FlowExecution rows (upserted on
// every status transition), append-only NodeExecution rows in visitation
// order, and UserInput bindings scoped to an execution.
type ExecutionRepository interface {
	// SaveExecution upserts an execution row by id.
	SaveExecution(ctx context.Context, execution *models.FlowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.FlowExecution, error)
	// ExecutionsByStatus lists executions in a given state, oldest first.
	// Used by the reaper to find stale waiting executions.
	ExecutionsByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.FlowExecution, error)

	// AppendNodeExecution adds a ledger row. Rows are never reordered and,
	// once marked success or failed, never rewritten.
	AppendNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error
	// UpdateNodeExecution finalizes a row's status, timing and error text.
	UpdateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error
	// LatestNodeExecution returns the most recently appended row for the
	// execution. For a waiting execution this identifies the suspended node.
	LatestNodeExecution(ctx context.Context, flowExecutionID string) (*models.NodeExecution, error)
	// NodeExecutions returns all rows for the execution in visitation order.
	NodeExecutions(ctx context.Context, flowExecutionID string) ([]*models.NodeExecution, error)

	// SaveUserInput upserts a binding keyed by execution id + variable name.
	SaveUserInput(ctx context.Context, input *models.UserInput) error
	UserInputByVariable(ctx context.Context, flowExecutionID, variableName string) (*models.UserInput, error)
}
