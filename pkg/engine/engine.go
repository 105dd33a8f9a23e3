package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mdrealofficial/node-bot-sub005/pkg/channel"
	"github.com/mdrealofficial/node-bot-sub005/pkg/eventbus"
	"github.com/mdrealofficial/node-bot-sub005/pkg/events"
	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/otelhelper"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

var (
	// ErrDuplicateTrigger indicates the trigger event id was already claimed
	// by an earlier delivery and no execution was started.
	ErrDuplicateTrigger = errors.New("duplicate trigger event")

	// ErrUnknownChannel indicates no adapter is registered for the channel.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrNotWaiting indicates a resume attempt on an execution that is not
	// suspended.
	ErrNotWaiting = errors.New("execution is not waiting for input")
)

// TriggerRequest starts a new execution of a flow for one subscriber.
type TriggerRequest struct {
	FlowID         string
	SubscriberID   string
	Channel        string
	RecipientID    string
	ConversationID string
	AccessToken    string
	// EventID identifies the inbound trigger delivery for deduplication.
	// Empty means the caller does not need dedupe.
	EventID string
}

// ResumeRequest continues a waiting execution with a subscriber reply.
type ResumeRequest struct {
	ExecutionID string
	Reply       string
	AccessToken string
}

// Result describes where an execution ended up after a trigger or resume.
type Result struct {
	ExecutionID     string
	Status          models.ExecutionStatus
	WaitingForInput bool
	InputNodeID     string
	Error           string
}

// Engine is the entry point for starting and resuming flow executions. It
// owns the adapter registry and composes the interpreter with the resumption
// coordinator.
type Engine struct {
	persistence persistence.Persistence
	adapters    map[string]channel.Adapter
	logger      *slog.Logger
	interpreter *Interpreter
	coordinator *Coordinator
	eventBus    eventbus.EventBus
	deduper     Deduper
	tracer      trace.Tracer
}

type Option func(*Engine)

// WithEventBus enables execution lifecycle event publishing.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(e *Engine) {
		e.eventBus = bus
	}
}

// WithDeduper enables trigger deduplication for requests carrying an event id.
func WithDeduper(d Deduper) Option {
	return func(e *Engine) {
		e.deduper = d
	}
}

// WithTracer enables tracing of trigger and resume operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func NewEngine(p persistence.Persistence, adapters map[string]channel.Adapter, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		persistence: p,
		adapters:    adapters,
		logger:      logger,
		interpreter: NewInterpreter(p.Executions(), logger),
		coordinator: NewCoordinator(p, logger),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Trigger starts one execution of the requested flow. Exactly one execution
// row is created per accepted trigger; a duplicate event id is rejected
// before any row is written.
func (e *Engine) Trigger(ctx context.Context, req TriggerRequest) (*Result, error) {
	ctx, span := e.startSpan(ctx, "engine.trigger",
		attribute.String(otelhelper.FlowIDKey, req.FlowID),
		attribute.String(otelhelper.SubscriberIDKey, req.SubscriberID),
		attribute.String(otelhelper.ChannelKey, req.Channel),
	)
	defer span.End()

	adapter, err := e.adapterFor(req.Channel)
	if err != nil {
		return nil, err
	}

	flow, err := e.persistence.Flows().FlowByID(ctx, req.FlowID)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.FlowIDKey, req.FlowID))

		return nil, err
	}

	// The event id is claimed only once the trigger is known to be runnable,
	// so a delivery rejected for a missing flow or channel can be retried
	// after the problem is corrected.
	if e.deduper != nil && req.EventID != "" {
		first, err := e.deduper.FirstSeen(ctx, req.EventID)
		if err != nil {
			return nil, err
		}

		if !first {
			e.logger.InfoContext(ctx, "Ignoring duplicate trigger", "event_id", req.EventID, "flow_id", req.FlowID)

			return nil, ErrDuplicateTrigger
		}
	}

	execution := models.NewFlowExecution(flow.ID, req.SubscriberID, req.Channel)
	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))

	err = e.persistence.Executions().SaveExecution(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, flow.ID),
		ExecutionID:  execution.ID,
		SubscriberID: req.SubscriberID,
		Channel:      req.Channel,
	})

	startNode, found := flow.StartNode()
	if !found {
		reason := "flow has no start node"
		execution.MarkFailed(reason)

		err := e.persistence.Executions().SaveExecution(ctx, execution)
		if err != nil {
			return nil, fmt.Errorf("failed to save failed execution: %w", err)
		}

		e.publishTerminal(ctx, flow, execution, FailedOutcome("", reason))

		return resultFor(execution, FailedOutcome("", reason)), nil
	}

	cc := channel.Context{
		Channel:        req.Channel,
		AccessToken:    req.AccessToken,
		RecipientID:    req.RecipientID,
		ConversationID: req.ConversationID,
	}

	outcome, err := e.interpreter.Run(ctx, adapter, cc, flow, execution, startNode.ID)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, execution.ID))

		return nil, err
	}

	e.publishTerminal(ctx, flow, execution, outcome)

	return resultFor(execution, outcome), nil
}

// Resume continues a waiting execution with the subscriber's reply. A resume
// against an unknown execution writes nothing; a resume against an execution
// in any state but waiting is rejected.
func (e *Engine) Resume(ctx context.Context, req ResumeRequest) (*Result, error) {
	ctx, span := e.startSpan(ctx, "engine.resume",
		attribute.String(otelhelper.ExecutionIDKey, req.ExecutionID),
	)
	defer span.End()

	execution, err := e.persistence.Executions().ExecutionByID(ctx, req.ExecutionID)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, req.ExecutionID))

		return nil, err
	}

	if execution.Status != models.ExecutionStatusWaiting {
		return nil, fmt.Errorf("execution %s has status %s: %w", execution.ID, execution.Status, ErrNotWaiting)
	}

	adapter, err := e.adapterFor(execution.Channel)
	if err != nil {
		return nil, err
	}

	latest, err := e.persistence.Executions().LatestNodeExecution(ctx, execution.ID)
	if err != nil {
		return nil, err
	}

	// The definition is re-fetched on resume; a definition changed between
	// suspension and resume is an accepted race.
	flow, err := e.persistence.Flows().FlowByID(ctx, execution.FlowID)
	if err != nil {
		return nil, err
	}

	suspendedNode, found := flow.NodeByID(latest.NodeID)
	if !found {
		// The resumption target vanished from the re-fetched definition.
		// Nothing is written: the execution stays waiting so the caller can
		// retry once the definition is corrected.
		reason := fmt.Sprintf("suspended node %s no longer in flow definition", latest.NodeID)

		e.logger.WarnContext(ctx, "Resume target missing from definition",
			"execution_id", execution.ID, "node_id", latest.NodeID)

		return resultFor(execution, FailedOutcome(latest.NodeID, reason)), nil
	}

	next, err := e.coordinator.NextNode(ctx, flow, execution, suspendedNode, req.Reply)
	if err != nil {
		return nil, err
	}

	execution.MarkRunning()

	err = e.persistence.Executions().SaveExecution(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to save resumed execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, flow.ID),
		ExecutionID: execution.ID,
		NodeID:      suspendedNode.ID,
	})

	cc := channel.Context{
		Channel:     execution.Channel,
		AccessToken: req.AccessToken,
		RecipientID: execution.SubscriberID,
	}

	outcome, err := e.interpreter.Run(ctx, adapter, cc, flow, execution, next)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, execution.ID))

		return nil, err
	}

	e.publishTerminal(ctx, flow, execution, outcome)

	return resultFor(execution, outcome), nil
}

// ExecutionState returns an execution with its full ledger for inspection.
func (e *Engine) ExecutionState(ctx context.Context, executionID string) (*models.FlowExecution, []*models.NodeExecution, error) {
	execution, err := e.persistence.Executions().ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}

	ledger, err := e.persistence.Executions().NodeExecutions(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}

	return execution, ledger, nil
}

func (e *Engine) adapterFor(channelName string) (channel.Adapter, error) {
	adapter, exists := e.adapters[channelName]
	if !exists {
		return nil, fmt.Errorf("channel %q: %w", channelName, ErrUnknownChannel)
	}

	return adapter, nil
}

// publish sends a lifecycle event when a bus is configured. Event delivery is
// best effort; a bus failure never fails the execution.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	err := e.eventBus.Publish(ctx, key, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) publishTerminal(ctx context.Context, flow *models.FlowDefinition, execution *models.FlowExecution, outcome Outcome) {
	if e.eventBus == nil {
		return
	}

	switch outcome.Kind {
	case OutcomeCompleted:
		durationMs := int64(0)
		if execution.CompletedAt != nil {
			durationMs = execution.CompletedAt.Sub(execution.StartedAt).Milliseconds()
		}

		nodesExecuted := 0
		if ledger, err := e.persistence.Executions().NodeExecutions(ctx, execution.ID); err == nil {
			nodesExecuted = len(ledger)
		}

		e.publish(ctx, execution.ID, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, flow.ID),
			ExecutionID:   execution.ID,
			DurationMs:    durationMs,
			NodesExecuted: nodesExecuted,
		})
	case OutcomeFailed:
		e.publish(ctx, execution.ID, events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, flow.ID),
			ExecutionID: execution.ID,
			NodeID:      outcome.NodeID,
			Error:       outcome.Reason,
		})
	case OutcomeSuspended:
		nodeType := ""
		if node, found := flow.NodeByID(outcome.NodeID); found {
			nodeType = string(node.Type)
		}

		e.publish(ctx, execution.ID, events.ExecutionSuspended{
			BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, flow.ID),
			ExecutionID: execution.ID,
			NodeID:      outcome.NodeID,
			NodeType:    nodeType,
		})
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return otelhelper.StartSpan(ctx, e.tracer, name, attrs...)
}

func resultFor(execution *models.FlowExecution, outcome Outcome) *Result {
	result := &Result{
		ExecutionID: execution.ID,
		Status:      execution.Status,
		Error:       outcome.Reason,
	}

	if outcome.Kind == OutcomeSuspended {
		result.WaitingForInput = true
		result.InputNodeID = outcome.NodeID
	}

	return result
}
