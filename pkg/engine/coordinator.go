package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

// Coordinator turns a subscriber reply into the continuation of a waiting
// execution. The reply is matched against the suspended node recorded in the
// ledger; the coordinator decides the next node and hands the walk back to
// the interpreter.
type Coordinator struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewCoordinator(p persistence.Persistence, logger *slog.Logger) *Coordinator {
	return &Coordinator{persistence: p, logger: logger}
}

// NextNode resolves the reply against the suspended node and returns the node
// to continue from. An empty next node means the flow is done. The input
// binding of an input node is persisted here, before the walk restarts, so a
// condition node downstream always sees it.
func (c *Coordinator) NextNode(
	ctx context.Context,
	flow *models.FlowDefinition,
	execution *models.FlowExecution,
	suspendedNode *models.FlowNode,
	reply string,
) (string, error) {
	switch suspendedNode.Type {
	case models.NodeTypeButton:
		return c.nextAfterButton(ctx, flow, suspendedNode, reply), nil

	case models.NodeTypeInput:
		if suspendedNode.Data.VariableName != "" {
			input := &models.UserInput{
				FlowExecutionID: execution.ID,
				InputNodeID:     suspendedNode.ID,
				VariableName:    suspendedNode.Data.VariableName,
				Value:           reply,
				CreatedAt:       time.Now().UTC(),
			}

			err := c.persistence.Executions().SaveUserInput(ctx, input)
			if err != nil {
				return "", fmt.Errorf("failed to save user input: %w", err)
			}
		}

		next, _ := flow.DefaultNext(suspendedNode.ID)

		return next, nil

	default:
		// The ledger says this execution suspended at a node that cannot
		// suspend. Treat the reply as a plain continuation.
		c.logger.WarnContext(ctx, "Resume against non-suspending node",
			"node_id", suspendedNode.ID, "node_type", suspendedNode.Type)

		next, _ := flow.DefaultNext(suspendedNode.ID)

		return next, nil
	}
}

// nextAfterButton maps a reply to a button option. Replies are 1-based option
// indexes as rendered in the prompt. Anything that does not resolve to an
// option with an explicit target falls through to the node's default edge;
// with no default edge the flow completes.
func (c *Coordinator) nextAfterButton(ctx context.Context, flow *models.FlowDefinition, node *models.FlowNode, reply string) string {
	index, err := strconv.Atoi(strings.TrimSpace(reply))
	if err == nil && index >= 1 && index <= len(node.Data.Buttons) {
		option := node.Data.Buttons[index-1]
		if option.NextNode != "" {
			return option.NextNode
		}
	} else {
		c.logger.InfoContext(ctx, "Button reply did not match an option, using default edge",
			"node_id", node.ID, "reply", reply)
	}

	next, _ := flow.DefaultNext(node.ID)

	return next
}
