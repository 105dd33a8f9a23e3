package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

// ExecutionRepository handles the execution ledger tables.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.FlowExecution) error {
	query := `
		INSERT INTO flow_executions (id, flow_id, subscriber_id, channel, status, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		execution.SubscriberID,
		execution.Channel,
		execution.Status,
		execution.ErrorMessage,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.FlowExecution, error) {
	query := `
		SELECT id, flow_id, subscriber_id, channel, status, error_message, started_at, completed_at
		FROM flow_executions
		WHERE id = $1
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution %s: %w", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ExecutionsByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.FlowExecution, error) {
	query := `
		SELECT id, flow_id, subscriber_id, channel, status, error_message, started_at, completed_at
		FROM flow_executions
		WHERE status = $1
		ORDER BY started_at
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.FlowExecution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) AppendNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	query := `
		INSERT INTO node_executions (id, flow_execution_id, node_id, node_type, status, execution_time_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		nodeExecution.ID,
		nodeExecution.FlowExecutionID,
		nodeExecution.NodeID,
		nodeExecution.NodeType,
		nodeExecution.Status,
		nodeExecution.ExecutionTimeMs,
		nodeExecution.ErrorMessage,
		nodeExecution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append node execution %s: %w", nodeExecution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) UpdateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	query := `
		UPDATE node_executions
		SET status = $2, execution_time_ms = $3, error_message = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		nodeExecution.ID,
		nodeExecution.Status,
		nodeExecution.ExecutionTimeMs,
		nodeExecution.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update node execution %s: %w", nodeExecution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("node execution %s: %w", nodeExecution.ID, persistence.ErrNodeExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) LatestNodeExecution(ctx context.Context, flowExecutionID string) (*models.NodeExecution, error) {
	query := `
		SELECT id, flow_execution_id, node_id, node_type, status, execution_time_ms, error_message, created_at
		FROM node_executions
		WHERE flow_execution_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	nodeExecution, err := scanNodeExecution(r.db.QueryRowContext(ctx, query, flowExecutionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", flowExecutionID, persistence.ErrNodeExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan node execution: %w", err)
	}

	return nodeExecution, nil
}

func (r *ExecutionRepository) NodeExecutions(ctx context.Context, flowExecutionID string) ([]*models.NodeExecution, error) {
	query := `
		SELECT id, flow_execution_id, node_id, node_type, status, execution_time_ms, error_message, created_at
		FROM node_executions
		WHERE flow_execution_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, flowExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var nodeExecutions []*models.NodeExecution

	for rows.Next() {
		nodeExecution, err := scanNodeExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}

		nodeExecutions = append(nodeExecutions, nodeExecution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node executions: %w", err)
	}

	return nodeExecutions, nil
}

func (r *ExecutionRepository) SaveUserInput(ctx context.Context, input *models.UserInput) error {
	query := `
		INSERT INTO user_inputs (flow_execution_id, input_node_id, variable_name, value, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (flow_execution_id, variable_name) DO UPDATE SET
			input_node_id = EXCLUDED.input_node_id,
			value = EXCLUDED.value,
			created_at = EXCLUDED.created_at
	`

	_, err := r.db.ExecContext(ctx, query,
		input.FlowExecutionID,
		input.InputNodeID,
		input.VariableName,
		input.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to save user input %s/%s: %w", input.FlowExecutionID, input.VariableName, err)
	}

	return nil
}

func (r *ExecutionRepository) UserInputByVariable(ctx context.Context, flowExecutionID, variableName string) (*models.UserInput, error) {
	query := `
		SELECT flow_execution_id, input_node_id, variable_name, value, created_at
		FROM user_inputs
		WHERE flow_execution_id = $1 AND variable_name = $2
	`

	var input models.UserInput

	err := r.db.QueryRowContext(ctx, query, flowExecutionID, variableName).Scan(
		&input.FlowExecutionID,
		&input.InputNodeID,
		&input.VariableName,
		&input.Value,
		&input.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("variable %q in execution %s: %w", variableName, flowExecutionID, persistence.ErrUserInputNotFound)
		}

		return nil, fmt.Errorf("failed to scan user input: %w", err)
	}

	return &input, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(scanner rowScanner) (*models.FlowExecution, error) {
	var (
		execution   models.FlowExecution
		completedAt sql.NullTime
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.FlowID,
		&execution.SubscriberID,
		&execution.Channel,
		&execution.Status,
		&execution.ErrorMessage,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return &execution, nil
}

func scanNodeExecution(scanner rowScanner) (*models.NodeExecution, error) {
	var nodeExecution models.NodeExecution

	err := scanner.Scan(
		&nodeExecution.ID,
		&nodeExecution.FlowExecutionID,
		&nodeExecution.NodeID,
		&nodeExecution.NodeType,
		&nodeExecution.Status,
		&nodeExecution.ExecutionTimeMs,
		&nodeExecution.ErrorMessage,
		&nodeExecution.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &nodeExecution, nil
}
