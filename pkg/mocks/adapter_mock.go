package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mdrealofficial/node-bot-sub005/pkg/channel"
)

// MockAdapter is a mock implementation of channel.Adapter interface.
type MockAdapter struct {
	mock.Mock

	// Sent records every message in call order for assertions on sequencing.
	Sent []channel.Message
}

func (m *MockAdapter) Send(ctx context.Context, cc channel.Context, msg channel.Message) error {
	args := m.Called(ctx, cc, msg)

	if args.Error(0) == nil {
		m.Sent = append(m.Sent, msg)
	}

	return args.Error(0)
}
