package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

// MockFlowRepository is a mock implementation of persistence.FlowRepository interface.
type MockFlowRepository struct {
	mock.Mock
}

func (m *MockFlowRepository) FlowByID(ctx context.Context, id string) (*models.FlowDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.FlowDefinition), args.Error(1)
}

func (m *MockFlowRepository) SaveFlow(ctx context.Context, flow *models.FlowDefinition) error {
	args := m.Called(ctx, flow)

	return args.Error(0)
}

func (m *MockFlowRepository) Flows(ctx context.Context) ([]*models.FlowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.FlowDefinition), args.Error(1)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) SaveExecution(ctx context.Context, execution *models.FlowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.FlowExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.FlowExecution), args.Error(1)
}

func (m *MockExecutionRepository) ExecutionsByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.FlowExecution, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.FlowExecution), args.Error(1)
}

func (m *MockExecutionRepository) AppendNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	args := m.Called(ctx, nodeExecution)

	return args.Error(0)
}

func (m *MockExecutionRepository) UpdateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecution) error {
	args := m.Called(ctx, nodeExecution)

	return args.Error(0)
}

func (m *MockExecutionRepository) LatestNodeExecution(ctx context.Context, flowExecutionID string) (*models.NodeExecution, error) {
	args := m.Called(ctx, flowExecutionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.NodeExecution), args.Error(1)
}

func (m *MockExecutionRepository) NodeExecutions(ctx context.Context, flowExecutionID string) ([]*models.NodeExecution, error) {
	args := m.Called(ctx, flowExecutionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.NodeExecution), args.Error(1)
}

func (m *MockExecutionRepository) SaveUserInput(ctx context.Context, input *models.UserInput) error {
	args := m.Called(ctx, input)

	return args.Error(0)
}

func (m *MockExecutionRepository) UserInputByVariable(ctx context.Context, flowExecutionID, variableName string) (*models.UserInput, error) {
	args := m.Called(ctx, flowExecutionID, variableName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.UserInput), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	FlowRepo      *MockFlowRepository
	ExecutionRepo *MockExecutionRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		FlowRepo:      &MockFlowRepository{},
		ExecutionRepo: &MockExecutionRepository{},
	}
}

func (m *MockPersistence) Flows() persistence.FlowRepository {
	return m.FlowRepo
}

func (m *MockPersistence) Executions() persistence.ExecutionRepository {
	return m.ExecutionRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
