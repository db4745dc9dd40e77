package gaps

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, gap Gap) error {
	args := m.Called(ctx, gap)
	return args.Error(0)
}
