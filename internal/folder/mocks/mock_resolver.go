package mocks

import (
	"context"

	"docingest/internal/folder"
	"docingest/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, identifier string, by folder.LookupKey) (*model.Folder, error) {
	args := m.Called(ctx, identifier, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Folder), args.Error(1)
}
