package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docingest/internal/model"
	"docingest/internal/service"
)

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) ProcessUpload(ctx context.Context, body []byte, boundary string, base64Encoded bool) (*model.Document, error) {
	args := m.Called(ctx, body, boundary, base64Encoded)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockUploadService) ProcessBatch(ctx context.Context, items []service.BatchItem) []service.BatchResult {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]service.BatchResult)
}

func (m *MockUploadService) CreateUploadURL(ctx context.Context, req service.UploadURLRequest) (*service.UploadURLResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadURLResult), args.Error(1)
}

func (m *MockUploadService) ConfirmUpload(ctx context.Context, fileID string) (*model.Document, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockUploadService) UpdateStatus(ctx context.Context, id, status, explanation string) (*model.Document, error) {
	args := m.Called(ctx, id, status, explanation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockUploadService) Get(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockUploadService) List(ctx context.Context, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockUploadService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
