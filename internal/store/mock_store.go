package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) RecordGap(ctx context.Context, token, normalized, sample string, seenAt time.Time) error {
	args := m.Called(ctx, token, normalized, sample, seenAt)
	return args.Error(0)
}

func (m *MockStore) TopGaps(ctx context.Context, limit int) ([]Gap, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Gap), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
