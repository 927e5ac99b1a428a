package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock for the Client interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Classify(ctx context.Context, prompt string) (ClassificationResponse, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(ClassificationResponse), args.Error(1)
}
