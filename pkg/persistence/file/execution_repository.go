package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

// ExecutionRepository stores the ledger as JSON files: one file per execution
// plus one append-only list of node executions and one list of user inputs per
// execution. A process-wide lock serializes writes against reads so a reader
// never sees a partially written file.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (r *ExecutionRepository) executionPath(id string) string {
	return filepath.Join(r.root, "executions", id+".json")
}

func (r *ExecutionRepository) nodeExecutionsPath(executionID string) string {
	return filepath.Join(r.root, "node_executions", executionID+".json")
}

func (r *ExecutionRepository) userInputsPath(executionID string) string {
	return filepath.Join(r.root, "user_inputs", executionID+".json")
}

func writeJSON(path string, value any) error {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	err = os.WriteFile(path, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- paths are built from validated ids
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.FlowExecution) error {
	if err := validateID(execution.ID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.executionPath(execution.ID), execution)
}

func (r *ExecutionRepository) readExecution(id string) (*models.FlowExecution, error) {
	var execution models.FlowExecution

	found, err := readJSON(r.executionPath(id), &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.FlowExecution, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.readExecution(id)
}

func (r *ExecutionRepository) ExecutionsByStatus(_ context.Context, status models.ExecutionStatus) ([]*models.FlowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(r.root, "executions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	var executions []*models.FlowExecution

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		execution, err := r.readExecution(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		if execution.Status == status {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

func (r *ExecutionRepository) AppendNodeExecution(_ context.Context, nodeExecution *models.NodeExecution) error {
	if err := validateID(nodeExecution.FlowExecutionID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.nodeExecutionsPath(nodeExecution.FlowExecutionID)

	var rows []*models.NodeExecution

	_, err := readJSON(path, &rows)
	if err != nil {
		return err
	}

	rows = append(rows, nodeExecution)

	return writeJSON(path, rows)
}

func (r *ExecutionRepository) UpdateNodeExecution(_ context.Context, nodeExecution *models.NodeExecution) error {
	if err := validateID(nodeExecution.FlowExecutionID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.nodeExecutionsPath(nodeExecution.FlowExecutionID)

	var rows []*models.NodeExecution

	found, err := readJSON(path, &rows)
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("node execution %s: %w", nodeExecution.ID, persistence.ErrNodeExecutionNotFound)
	}

	for i, row := range rows {
		if row.ID == nodeExecution.ID {
			rows[i] = nodeExecution

			return writeJSON(path, rows)
		}
	}

	return fmt.Errorf("node execution %s: %w", nodeExecution.ID, persistence.ErrNodeExecutionNotFound)
}

func (r *ExecutionRepository) LatestNodeExecution(_ context.Context, flowExecutionID string) (*models.NodeExecution, error) {
	if err := validateID(flowExecutionID); err != nil {
		return nil, fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*models.NodeExecution

	_, err := readJSON(r.nodeExecutionsPath(flowExecutionID), &rows)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("execution %s: %w", flowExecutionID, persistence.ErrNodeExecutionNotFound)
	}

	return rows[len(rows)-1], nil
}

func (r *ExecutionRepository) NodeExecutions(_ context.Context, flowExecutionID string) ([]*models.NodeExecution, error) {
	if err := validateID(flowExecutionID); err != nil {
		return nil, fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*models.NodeExecution

	_, err := readJSON(r.nodeExecutionsPath(flowExecutionID), &rows)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *ExecutionRepository) SaveUserInput(_ context.Context, input *models.UserInput) error {
	if err := validateID(input.FlowExecutionID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.userInputsPath(input.FlowExecutionID)

	var inputs []*models.UserInput

	_, err := readJSON(path, &inputs)
	if err != nil {
		return err
	}

	// Upsert by variable name: a later reply to the same input node wins.
	for i, existing := range inputs {
		if existing.VariableName == input.VariableName {
			inputs[i] = input

			return writeJSON(path, inputs)
		}
	}

	inputs = append(inputs, input)

	return writeJSON(path, inputs)
}

func (r *ExecutionRepository) UserInputByVariable(_ context.Context, flowExecutionID, variableName string) (*models.UserInput, error) {
	if err := validateID(flowExecutionID); err != nil {
		return nil, fmt.Errorf("invalid execution ID: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var inputs []*models.UserInput

	_, err := readJSON(r.userInputsPath(flowExecutionID), &inputs)
	if err != nil {
		return nil, err
	}

	for _, input := range inputs {
		if input.VariableName == variableName {
			return input, nil
		}
	}

	return nil, fmt.Errorf("variable %q in execution %s: %w", variableName, flowExecutionID, persistence.ErrUserInputNotFound)
}
