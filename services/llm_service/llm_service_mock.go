package llm_service

import (
	"context"
)

type MockCompletionService struct {
	CompleteFunc func(ctx context.Context, req CompletionRequest) CompletionResult
}

func (m *MockCompletionService) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return CompletionResult{Success: true, Content: "mock response"}
}
