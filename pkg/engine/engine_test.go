package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mdrealofficial/node-bot-sub005/pkg/channel"
	"github.com/mdrealofficial/node-bot-sub005/pkg/engine"
	"github.com/mdrealofficial/node-bot-sub005/pkg/mocks"
	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupEngine(t *testing.T, adapter channel.Adapter, opts ...engine.Option) (*engine.Engine, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	adapters := map[string]channel.Adapter{channel.Messenger: adapter}

	return engine.NewEngine(p, adapters, testLogger(), opts...), p
}

func saveFlow(t *testing.T, p persistence.Persistence, flow *models.FlowDefinition) {
	t.Helper()

	require.NoError(t, p.Flows().SaveFlow(context.Background(), flow))
}

func triggerRequest(flowID string) engine.TriggerRequest {
	return engine.TriggerRequest{
		FlowID:       flowID,
		SubscriberID: "subscriber-1",
		Channel:      channel.Messenger,
		RecipientID:  "psid-1",
		AccessToken:  "token",
	}
}

func linearFlow() *models.FlowDefinition {
	return &models.FlowDefinition{
		ID: "linear",
		Nodes: []*models.FlowNode{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "text-1", Type: models.NodeTypeText, Data: models.NodeData{Text: "Welcome!"}},
			{ID: "image-1", Type: models.NodeTypeImage, Data: models.NodeData{MediaURL: "https://cdn.example.com/a.png"}},
		},
		Edges: []*models.FlowEdge{
			{Source: "start-1", Target: "text-1"},
			{Source: "text-1", Target: "image-1"},
		},
	}
}

func buttonFlow() *models.FlowDefinition {
	return &models.FlowDefinition{
		ID: "menu",
		Nodes: []*models.FlowNode{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "button-1", Type: models.NodeTypeButton, Data: models.NodeData{
				Text: "Pick one:",
				Buttons: []models.ButtonOption{
					{Title: "Pricing", NextNode: "text-pricing"},
					{Title: "Support", NextNode: "text-support"},
				},
			}},
			{ID: "text-pricing", Type: models.NodeTypeText, Data: models.NodeData{Text: "Our pricing..."}},
			{ID: "text-support", Type: models.NodeTypeText, Data: models.NodeData{Text: "Support here."}},
			{ID: "text-fallback", Type: models.NodeTypeText, Data: models.NodeData{Text: "Did not catch that."}},
		},
		Edges: []*models.FlowEdge{
			{Source: "start-1", Target: "button-1"},
			{Source: "button-1", Target: "text-fallback"},
		},
	}
}

func inputConditionFlow() *models.FlowDefinition {
	return &models.FlowDefinition{
		ID: "signup",
		Nodes: []*models.FlowNode{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "input-1", Type: models.NodeTypeInput, Data: models.NodeData{
				Text:         "What is your email?",
				VariableName: "email",
			}},
			{ID: "cond-1", Type: models.NodeTypeCondition, Data: models.NodeData{
				Condition: &models.Condition{
					Field:     "email",
					Operator:  models.OperatorContains,
					Value:     "@",
					TrueNode:  "text-ok",
					FalseNode: "text-bad",
				},
			}},
			{ID: "text-ok", Type: models.NodeTypeText, Data: models.NodeData{Text: "Thanks!"}},
			{ID: "text-bad", Type: models.NodeTypeText, Data: models.NodeData{Text: "That is not an email."}},
		},
		Edges: []*models.FlowEdge{
			{Source: "start-1", Target: "input-1"},
			{Source: "input-1", Target: "cond-1"},
		},
	}
}

func TestEngine_Trigger_LinearFlowCompletes(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, linearFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("linear"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.False(t, result.WaitingForInput)

	require.Len(t, adapter.Sent, 2)
	assert.Equal(t, "Welcome!", adapter.Sent[0].Text)
	require.NotNil(t, adapter.Sent[1].Attachment)
	assert.Equal(t, channel.AttachmentImage, adapter.Sent[1].Attachment.Type)

	ledger, err := p.Executions().NodeExecutions(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, ledger, 3)
	assert.Equal(t, "start-1", ledger[0].NodeID)
	assert.Equal(t, "text-1", ledger[1].NodeID)
	assert.Equal(t, "image-1", ledger[2].NodeID)

	for _, row := range ledger {
		assert.Equal(t, models.NodeExecutionStatusSuccess, row.Status)
	}
}

func TestEngine_Trigger_ButtonSuspends(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, buttonFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("menu"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, result.Status)
	assert.True(t, result.WaitingForInput)
	assert.Equal(t, "button-1", result.InputNodeID)

	execution, err := p.Executions().ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)

	latest, err := p.Executions().LatestNodeExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "button-1", latest.NodeID)
	assert.Equal(t, models.NodeExecutionStatusSuccess, latest.Status)
}

func TestEngine_Resume_ButtonChoice(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, buttonFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("menu"))
	require.NoError(t, err)
	require.True(t, result.WaitingForInput)

	resumed, err := eng.Resume(context.Background(), engine.ResumeRequest{
		ExecutionID: result.ExecutionID,
		Reply:       "2",
		AccessToken: "token",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	last := adapter.Sent[len(adapter.Sent)-1]
	assert.Equal(t, "Support here.", last.Text)
}

func TestEngine_Resume_ButtonOutOfRangeFallsThrough(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, buttonFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("menu"))
	require.NoError(t, err)

	resumed, err := eng.Resume(context.Background(), engine.ResumeRequest{
		ExecutionID: result.ExecutionID,
		Reply:       "9",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	last := adapter.Sent[len(adapter.Sent)-1]
	assert.Equal(t, "Did not catch that.", last.Text)
}

func TestEngine_Resume_InputBindsVariableForCondition(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, inputConditionFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("signup"))
	require.NoError(t, err)
	require.True(t, result.WaitingForInput)
	assert.Equal(t, "input-1", result.InputNodeID)

	resumed, err := eng.Resume(context.Background(), engine.ResumeRequest{
		ExecutionID: result.ExecutionID,
		Reply:       "user@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	last := adapter.Sent[len(adapter.Sent)-1]
	assert.Equal(t, "Thanks!", last.Text)

	input, err := p.Executions().UserInputByVariable(context.Background(), result.ExecutionID, "email")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", input.Value)
	assert.Equal(t, "input-1", input.InputNodeID)
}

func TestEngine_Resume_ConditionFalseBranch(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, inputConditionFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("signup"))
	require.NoError(t, err)

	resumed, err := eng.Resume(context.Background(), engine.ResumeRequest{
		ExecutionID: result.ExecutionID,
		Reply:       "no thanks",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	last := adapter.Sent[len(adapter.Sent)-1]
	assert.Equal(t, "That is not an email.", last.Text)
}

func TestEngine_Trigger_ConditionWithoutBindingIsFalse(t *testing.T) {
	flow := &models.FlowDefinition{
		ID: "cond-only",
		Nodes: []*models.FlowNode{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "cond-1", Type: models.NodeTypeCondition, Data: models.NodeData{
				Condition: &models.Condition{
					Field:     "never_captured",
					Operator:  models.OperatorEquals,
					Value:     "yes",
					TrueNode:  "text-yes",
					FalseNode: "text-no",
				},
			}},
			{ID: "text-yes", Type: models.NodeTypeText, Data: models.NodeData{Text: "yes"}},
			{ID: "text-no", Type: models.NodeTypeText, Data: models.NodeData{Text: "no"}},
		},
		Edges: []*models.FlowEdge{
			{Source: "start-1", Target: "cond-1"},
		},
	}

	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, flow)

	result, err := eng.Trigger(context.Background(), triggerRequest("cond-only"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)

	require.Len(t, adapter.Sent, 1)
	assert.Equal(t, "no", adapter.Sent[0].Text)
}

func TestEngine_Trigger_TransportFailureFailsExecution(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(&channel.ProviderError{
		Channel:    channel.Messenger,
		StatusCode: 400,
		Code:       190,
		Message:    "Invalid OAuth access token",
	})

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, linearFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("linear"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error, "Invalid OAuth access token")

	execution, err := p.Executions().ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.CompletedAt)

	ledger, err := p.Executions().NodeExecutions(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, models.NodeExecutionStatusSuccess, ledger[0].Status)
	assert.Equal(t, models.NodeExecutionStatusFailed, ledger[1].Status)
	assert.Contains(t, ledger[1].ErrorMessage, "Invalid OAuth access token")
}

func TestEngine_Resume_UnknownExecutionWritesNothing(t *testing.T) {
	p := mocks.NewMockPersistence()
	p.ExecutionRepo.On("ExecutionByID", mock.Anything, "exec-missing").
		Return(nil, persistence.ErrExecutionNotFound)

	adapter := &mocks.MockAdapter{}
	eng := engine.NewEngine(p, map[string]channel.Adapter{channel.Messenger: adapter}, testLogger())

	_, err := eng.Resume(context.Background(), engine.ResumeRequest{ExecutionID: "exec-missing", Reply: "1"})
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	p.ExecutionRepo.AssertNotCalled(t, "SaveExecution", mock.Anything, mock.Anything)
	p.ExecutionRepo.AssertNotCalled(t, "AppendNodeExecution", mock.Anything, mock.Anything)
	p.ExecutionRepo.AssertNotCalled(t, "SaveUserInput", mock.Anything, mock.Anything)
}

func TestEngine_Resume_MissingSuspendedNodeLeavesWaiting(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, buttonFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("menu"))
	require.NoError(t, err)
	require.True(t, result.WaitingForInput)

	// The editor rewrites the flow and drops the button node before the
	// subscriber replies.
	rewritten := &models.FlowDefinition{
		ID: "menu",
		Nodes: []*models.FlowNode{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "text-fallback", Type: models.NodeTypeText, Data: models.NodeData{Text: "Did not catch that."}},
		},
		Edges: []*models.FlowEdge{
			{Source: "start-1", Target: "text-fallback"},
		},
	}
	saveFlow(t, p, rewritten)

	resumed, err := eng.Resume(context.Background(), engine.ResumeRequest{
		ExecutionID: result.ExecutionID,
		Reply:       "1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, resumed.Status)
	assert.Contains(t, resumed.Error, "no longer in flow definition")

	// The stored execution is untouched; the reply can be retried once the
	// definition is corrected.
	execution, err := p.Executions().ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	assert.Nil(t, execution.CompletedAt)
	assert.Empty(t, execution.ErrorMessage)

	saveFlow(t, p, buttonFlow())

	retried, err := eng.Resume(context.Background(), engine.ResumeRequest{
		ExecutionID: result.ExecutionID,
		Reply:       "1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, retried.Status)

	last := adapter.Sent[len(adapter.Sent)-1]
	assert.Equal(t, "Our pricing...", last.Text)
}

func TestEngine_Trigger_PromptlessInputSuspendsWithoutSend(t *testing.T) {
	flow := &models.FlowDefinition{
		ID: "quiet",
		Nodes: []*models.FlowNode{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "input-1", Type: models.NodeTypeInput, Data: models.NodeData{VariableName: "answer"}},
			{ID: "text-1", Type: models.NodeTypeText, Data: models.NodeData{Text: "Got it."}},
		},
		Edges: []*models.FlowEdge{
			{Source: "start-1", Target: "input-1"},
			{Source: "input-1", Target: "text-1"},
		},
	}

	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, flow)

	result, err := eng.Trigger(context.Background(), triggerRequest("quiet"))
	require.NoError(t, err)
	require.True(t, result.WaitingForInput)
	assert.Equal(t, "input-1", result.InputNodeID)
	assert.Empty(t, adapter.Sent)

	resumed, err := eng.Resume(context.Background(), engine.ResumeRequest{
		ExecutionID: result.ExecutionID,
		Reply:       "42",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	input, err := p.Executions().UserInputByVariable(context.Background(), result.ExecutionID, "answer")
	require.NoError(t, err)
	assert.Equal(t, "42", input.Value)
}

func TestEngine_Resume_NotWaiting(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, linearFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("linear"))
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, result.Status)

	_, err = eng.Resume(context.Background(), engine.ResumeRequest{ExecutionID: result.ExecutionID, Reply: "1"})
	assert.ErrorIs(t, err, engine.ErrNotWaiting)
}

type fakeDeduper struct {
	first bool
	err   error
}

func (f *fakeDeduper) FirstSeen(_ context.Context, _ string) (bool, error) {
	return f.first, f.err
}

func TestEngine_Trigger_DuplicateEventRejected(t *testing.T) {
	adapter := &mocks.MockAdapter{}

	eng, p := setupEngine(t, adapter, engine.WithDeduper(&fakeDeduper{first: false}))
	saveFlow(t, p, linearFlow())

	req := triggerRequest("linear")
	req.EventID = "evt-1"

	_, err := eng.Trigger(context.Background(), req)
	assert.ErrorIs(t, err, engine.ErrDuplicateTrigger)

	running, err := p.Executions().ExecutionsByStatus(context.Background(), models.ExecutionStatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)

	adapter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

type claimingDeduper struct {
	seen map[string]bool
}

func (d *claimingDeduper) FirstSeen(_ context.Context, eventID string) (bool, error) {
	if d.seen[eventID] {
		return false, nil
	}

	d.seen[eventID] = true

	return true, nil
}

func TestEngine_Trigger_EventNotClaimedWhenFlowMissing(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	deduper := &claimingDeduper{seen: map[string]bool{}}
	eng, p := setupEngine(t, adapter, engine.WithDeduper(deduper))

	req := triggerRequest("linear")
	req.EventID = "evt-7"

	// The delivery arrives before the flow exists. The event id must stay
	// unclaimed so a redelivery runs once the flow is in place.
	_, err := eng.Trigger(context.Background(), req)
	require.ErrorIs(t, err, persistence.ErrFlowNotFound)

	saveFlow(t, p, linearFlow())

	result, err := eng.Trigger(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)

	_, err = eng.Trigger(context.Background(), req)
	assert.ErrorIs(t, err, engine.ErrDuplicateTrigger)
}

func TestEngine_Trigger_UnknownChannel(t *testing.T) {
	adapter := &mocks.MockAdapter{}

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, linearFlow())

	req := triggerRequest("linear")
	req.Channel = "telegram"

	_, err := eng.Trigger(context.Background(), req)
	assert.ErrorIs(t, err, engine.ErrUnknownChannel)
}

func TestEngine_Trigger_FlowNotFound(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	eng, _ := setupEngine(t, adapter)

	_, err := eng.Trigger(context.Background(), triggerRequest("missing"))
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestEngine_Trigger_NoStartNodeFails(t *testing.T) {
	flow := &models.FlowDefinition{
		ID: "broken",
		Nodes: []*models.FlowNode{
			{ID: "text-1", Type: models.NodeTypeText, Data: models.NodeData{Text: "orphan"}},
		},
	}

	adapter := &mocks.MockAdapter{}

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, flow)

	result, err := eng.Trigger(context.Background(), triggerRequest("broken"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error, "no start node")

	adapter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_ExecutionState(t *testing.T) {
	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, linearFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("linear"))
	require.NoError(t, err)

	execution, ledger, err := eng.ExecutionState(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Len(t, ledger, 3)

	_, _, err = eng.ExecutionState(context.Background(), "exec-missing")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestEngine_Trigger_NetworkErrorIsNotProviderError(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")

	adapter := &mocks.MockAdapter{}
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(netErr)

	eng, p := setupEngine(t, adapter)
	saveFlow(t, p, linearFlow())

	result, err := eng.Trigger(context.Background(), triggerRequest("linear"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.False(t, channel.IsProviderError(netErr))
}
