package storage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of the Store interface for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateEvent(ctx context.Context, tx DBTX, event *EventRecord) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockStore) FetchPendingEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]EventRecord), args.Error(1)
}

func (m *MockStore) FetchRetryableEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]EventRecord), args.Error(1)
}

func (m *MockStore) FetchStuckEvents(ctx context.Context, limit int, olderThan time.Duration) ([]EventRecord, error) {
	args := m.Called(ctx, limit, olderThan)
	return args.Get(0).([]EventRecord), args.Error(1)
}

func (m *MockStore) FetchDeadEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]EventRecord), args.Error(1)
}

func (m *MockStore) MarkProcessing(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockStore) MarkCompleted(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockStore) MarkFailed(ctx context.Context, eventID string, errorMessage string, incrementRetry bool) error {
	args := m.Called(ctx, eventID, errorMessage, incrementRetry)
	return args.Error(0)
}

func (m *MockStore) ResetStuckEvents(ctx context.Context, eventIDs []string, errorMessage string) error {
	args := m.Called(ctx, eventIDs, errorMessage)
	return args.Error(0)
}

func (m *MockStore) RequeueEvent(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockStore) DeleteCompletedEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) EnsureTables(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
