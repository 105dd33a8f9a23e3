// Package web provides HTTP request and response types for the execution API.
package web

import (
	"time"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
)

// TriggerExecutionRequest represents the request body for starting a flow
// execution.
type TriggerExecutionRequest struct {
	FlowID         string `json:"flow_id"                   validate:"required"`
	SubscriberID   string `json:"subscriber_id"             validate:"required"`
	Channel        string `json:"channel"                   validate:"required,oneof=messenger instagram whatsapp"`
	RecipientID    string `json:"recipient_id"              validate:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
	AccessToken    string `json:"access_token"              validate:"required"`
	EventID        string `json:"event_id,omitempty"`
}

// ResumeExecutionRequest represents the request body for continuing a waiting
// execution with a subscriber reply. The access token is supplied per request;
// credentials are never stored with the execution.
type ResumeExecutionRequest struct {
	Reply       string `json:"reply"        validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
}

// ExecutionResponse represents the outcome of a trigger or resume call.
// Success reports whether the run reached a non-failed state; Error carries
// the failure reason otherwise.
type ExecutionResponse struct {
	Success         bool   `json:"success"`
	ExecutionID     string `json:"execution_id"`
	Status          string `json:"status"`
	WaitingForInput bool   `json:"waiting_for_input"`
	InputNodeID     string `json:"input_node_id,omitempty"`
	Error           string `json:"error,omitempty"`
}

// NodeExecutionResponse is one ledger row in an execution detail response.
type NodeExecutionResponse struct {
	NodeID          string    `json:"node_id"`
	NodeType        string    `json:"node_type"`
	Status          string    `json:"status"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExecutionDetailResponse represents an execution with its full ledger.
type ExecutionDetailResponse struct {
	ID           string                  `json:"id"`
	FlowID       string                  `json:"flow_id"`
	SubscriberID string                  `json:"subscriber_id"`
	Channel      string                  `json:"channel"`
	Status       string                  `json:"status"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	Nodes        []NodeExecutionResponse `json:"nodes"`
}

// TransformExecutionDetail assembles the detail response from an execution and
// its ledger rows.
func TransformExecutionDetail(execution *models.FlowExecution, ledger []*models.NodeExecution) ExecutionDetailResponse {
	response := ExecutionDetailResponse{
		ID:           execution.ID,
		FlowID:       execution.FlowID,
		SubscriberID: execution.SubscriberID,
		Channel:      execution.Channel,
		Status:       string(execution.Status),
		ErrorMessage: execution.ErrorMessage,
		StartedAt:    execution.StartedAt,
		CompletedAt:  execution.CompletedAt,
		Nodes:        make([]NodeExecutionResponse, 0, len(ledger)),
	}

	for _, row := range ledger {
		response.Nodes = append(response.Nodes, NodeExecutionResponse{
			NodeID:          row.NodeID,
			NodeType:        string(row.NodeType),
			Status:          string(row.Status),
			ExecutionTimeMs: row.ExecutionTimeMs,
			ErrorMessage:    row.ErrorMessage,
			CreatedAt:       row.CreatedAt,
		})
	}

	return response
}
