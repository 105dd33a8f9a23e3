package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mdrealofficial/node-bot-sub005/pkg/channel"
	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

// maxSequenceDelay caps a sequence node's configured delay so a mistyped
// definition cannot park a worker goroutine for hours.
const maxSequenceDelay = 5 * time.Minute

// sleepFunc waits for the given duration or until the context is done.
// Injected so tests run without real delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interpreter walks a flow graph iteratively from a given node. Each visited
// node appends a ledger row before its side effect runs, so a crash leaves a
// visible running row rather than silence. The walk loop is flat; suspension
// is a return value, never a blocked goroutine.
type Interpreter struct {
	executions persistence.ExecutionRepository
	logger     *slog.Logger
	sleep      sleepFunc
}

func NewInterpreter(executions persistence.ExecutionRepository, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		executions: executions,
		logger:     logger,
		sleep:      defaultSleep,
	}
}

// Run executes the flow from startNodeID until it completes, fails or
// suspends, persisting execution state transitions along the way. An empty
// startNodeID completes immediately: the previous node had no outgoing edge.
func (i *Interpreter) Run(
	ctx context.Context,
	adapter channel.Adapter,
	cc channel.Context,
	flow *models.FlowDefinition,
	execution *models.FlowExecution,
	startNodeID string,
) (Outcome, error) {
	logger := i.logger.With("execution_id", execution.ID, "flow_id", flow.ID)

	current := startNodeID

	for current != "" {
		node, found := flow.NodeByID(current)
		if !found {
			return i.fail(ctx, execution, current, fmt.Sprintf("node %s not found in flow definition", current))
		}

		logger.InfoContext(ctx, "Executing node", "node_id", node.ID, "node_type", node.Type)

		row := models.NewNodeExecution(execution.ID, node)

		err := i.executions.AppendNodeExecution(ctx, row)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to append node execution: %w", err)
		}

		next, suspend, nodeErr := i.executeNode(ctx, adapter, cc, flow, execution, node)
		if nodeErr != nil {
			i.finishRow(ctx, row, models.NodeExecutionStatusFailed, nodeErr.Error())

			if channel.IsProviderError(nodeErr) {
				logger.ErrorContext(ctx, "Provider rejected message", "node_id", node.ID, "error", nodeErr)
			} else {
				logger.ErrorContext(ctx, "Node execution failed", "node_id", node.ID, "error", nodeErr)
			}

			return i.fail(ctx, execution, node.ID, nodeErr.Error())
		}

		i.finishRow(ctx, row, models.NodeExecutionStatusSuccess, "")

		if suspend {
			execution.MarkWaiting()

			err := i.executions.SaveExecution(ctx, execution)
			if err != nil {
				return Outcome{}, fmt.Errorf("failed to save waiting execution: %w", err)
			}

			logger.InfoContext(ctx, "Execution suspended", "node_id", node.ID)

			return SuspendedOutcome(node.ID), nil
		}

		current = next
	}

	execution.MarkCompleted()

	err := i.executions.SaveExecution(ctx, execution)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to save completed execution: %w", err)
	}

	logger.InfoContext(ctx, "Execution completed")

	return CompletedOutcome(), nil
}

// executeNode runs one node's side effect and returns the next node id and
// whether the walk must suspend afterwards.
func (i *Interpreter) executeNode(
	ctx context.Context,
	adapter channel.Adapter,
	cc channel.Context,
	flow *models.FlowDefinition,
	execution *models.FlowExecution,
	node *models.FlowNode,
) (string, bool, error) {
	switch node.Type {
	case models.NodeTypeStart:
		next, _ := flow.DefaultNext(node.ID)

		return next, false, nil

	case models.NodeTypeText:
		err := adapter.Send(ctx, cc, channel.Message{Text: node.Data.Text})
		if err != nil {
			return "", false, err
		}

		next, _ := flow.DefaultNext(node.ID)

		return next, false, nil

	case models.NodeTypeImage, models.NodeTypeVideo:
		attachmentType := channel.AttachmentImage
		if node.Type == models.NodeTypeVideo {
			attachmentType = channel.AttachmentVideo
		}

		err := adapter.Send(ctx, cc, channel.Message{
			Text:       node.Data.Text,
			Attachment: &channel.Attachment{Type: attachmentType, URL: node.Data.MediaURL},
		})
		if err != nil {
			return "", false, err
		}

		next, _ := flow.DefaultNext(node.ID)

		return next, false, nil

	case models.NodeTypeButton:
		err := adapter.Send(ctx, cc, channel.Message{Text: node.Data.Text, Buttons: node.Data.Buttons})
		if err != nil {
			return "", false, err
		}

		return "", true, nil

	case models.NodeTypeInput:
		if node.Data.Text != "" {
			err := adapter.Send(ctx, cc, channel.Message{Text: node.Data.Text})
			if err != nil {
				return "", false, err
			}
		}

		return "", true, nil

	case models.NodeTypeSequence:
		delay := time.Duration(node.Data.DelaySeconds) * time.Second
		if delay > maxSequenceDelay {
			i.logger.WarnContext(ctx, "Capping sequence delay",
				"node_id", node.ID, "configured", delay, "cap", maxSequenceDelay)

			delay = maxSequenceDelay
		}

		if delay > 0 {
			err := i.sleep(ctx, delay)
			if err != nil {
				return "", false, err
			}
		}

		if node.Data.Text != "" {
			err := adapter.Send(ctx, cc, channel.Message{Text: node.Data.Text})
			if err != nil {
				return "", false, err
			}
		}

		next, _ := flow.DefaultNext(node.ID)

		return next, false, nil

	case models.NodeTypeCondition:
		return i.evaluateCondition(ctx, flow, execution, node)

	default:
		i.logger.WarnContext(ctx, "Unknown node type, passing through",
			"node_id", node.ID, "node_type", node.Type)

		next, _ := flow.DefaultNext(node.ID)

		return next, false, nil
	}
}

// evaluateCondition resolves the branch of a condition node against the
// execution's captured inputs. A binding that was never captured evaluates to
// false rather than failing: flows commonly branch on optional answers.
func (i *Interpreter) evaluateCondition(
	ctx context.Context,
	flow *models.FlowDefinition,
	execution *models.FlowExecution,
	node *models.FlowNode,
) (string, bool, error) {
	cond := node.Data.Condition
	if cond == nil {
		return "", false, fmt.Errorf("condition node %s has no condition configured", node.ID)
	}

	result := false

	input, err := i.executions.UserInputByVariable(ctx, execution.ID, cond.Field)
	if err != nil {
		if !persistence.IsUserInputNotFound(err) {
			return "", false, fmt.Errorf("failed to look up variable %q: %w", cond.Field, err)
		}
	} else {
		result = cond.Evaluate(input.Value)
	}

	i.logger.DebugContext(ctx, "Condition evaluated",
		"node_id", node.ID, "field", cond.Field, "result", result)

	target := cond.FalseNode
	if result {
		target = cond.TrueNode
	}

	if target == "" {
		target, _ = flow.DefaultNext(node.ID)
	}

	return target, false, nil
}

// finishRow finalizes a ledger row with its status and wall-clock timing.
// Persistence failures here are logged, not fatal: the walk already moved on
// and the row keeps its running status as evidence.
func (i *Interpreter) finishRow(ctx context.Context, row *models.NodeExecution, status models.NodeExecutionStatus, errorMessage string) {
	row.Status = status
	row.ErrorMessage = errorMessage
	row.ExecutionTimeMs = time.Since(row.CreatedAt).Milliseconds()

	err := i.executions.UpdateNodeExecution(ctx, row)
	if err != nil {
		i.logger.ErrorContext(ctx, "failed to finalize node execution row", "node_execution_id", row.ID, "error", err)
	}
}

func (i *Interpreter) fail(ctx context.Context, execution *models.FlowExecution, nodeID, reason string) (Outcome, error) {
	execution.MarkFailed(reason)

	err := i.executions.SaveExecution(ctx, execution)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to save failed execution: %w", err)
	}

	return FailedOutcome(nodeID, reason), nil
}
