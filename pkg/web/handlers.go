// Package web provides HTTP handlers and REST API endpoints for flow
// execution management.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/mdrealofficial/node-bot-sub005/pkg/engine"
	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

type APIHandlers struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(eng *engine.Engine, p persistence.Persistence, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		persistence: p,
		validator:   validator,
	}
}

// TriggerExecution starts a new flow execution. A run that fails inside the
// flow still returns the execution id; the failure is data, not a transport
// error.
func (h *APIHandlers) TriggerExecution(c fiber.Ctx) error {
	var req TriggerExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.Trigger(c.Context(), engine.TriggerRequest{
		FlowID:         req.FlowID,
		SubscriberID:   req.SubscriberID,
		Channel:        req.Channel,
		RecipientID:    req.RecipientID,
		ConversationID: req.ConversationID,
		AccessToken:    req.AccessToken,
		EventID:        req.EventID,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	status := fiber.StatusOK
	if result.Status == models.ExecutionStatusFailed {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(transformResult(result))
}

// ResumeExecution continues a waiting execution with a subscriber reply.
func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ResumeExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.Resume(c.Context(), engine.ResumeRequest{
		ExecutionID: id,
		Reply:       req.Reply,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	status := fiber.StatusOK
	if result.Status == models.ExecutionStatusFailed {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(transformResult(result))
}

// GetExecution returns an execution with its full ledger.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, ledger, err := h.engine.ExecutionState(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(TransformExecutionDetail(execution, ledger))
}

// UpsertFlow validates a flow definition against the editor schema and stores
// it under the path id. The body id, when present, must match the path.
func (h *APIHandlers) UpsertFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	body := c.Body()

	if err := models.ValidateFlowDefinition(body); err != nil {
		return badRequest(c, err.Error())
	}

	var flow models.FlowDefinition
	if err := json.Unmarshal(body, &flow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if flow.ID != "" && flow.ID != id {
		return badRequest(c, "Flow ID in body does not match URL")
	}

	flow.ID = id

	if err := h.persistence.Flows().SaveFlow(c.Context(), &flow); err != nil {
		return internalError(c, err)
	}

	return c.JSON(flow)
}

// GetFlow returns a stored flow definition.
func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.persistence.Flows().FlowByID(c.Context(), id)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(flow)
}

// GetFlows lists all stored flow definitions.
func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.persistence.Flows().Flows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	if flows == nil {
		flows = []*models.FlowDefinition{}
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func transformResult(result *engine.Result) ExecutionResponse {
	return ExecutionResponse{
		Success:         result.Status != models.ExecutionStatusFailed,
		ExecutionID:     result.ExecutionID,
		Status:          string(result.Status),
		WaitingForInput: result.WaitingForInput,
		InputNodeID:     result.InputNodeID,
		Error:           result.Error,
	}
}
