package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Broadcast(ctx context.Context, scope string, message []byte) error {
	args := m.Called(ctx, scope, message)
	return args.Error(0)
}
