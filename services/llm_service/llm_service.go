package llm_service

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Stable error kinds surfaced to callers. These strings are part of the API
// contract and must not change between releases.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "validation_error"
	ErrorKindConfiguration ErrorKind = "configuration_error"
	ErrorKindRateLimit     ErrorKind = "rate_limit_error"
	ErrorKindTimeout       ErrorKind = "timeout_error"
	ErrorKindConnection    ErrorKind = "connection_error"
	ErrorKindAPI           ErrorKind = "api_error"
	ErrorKindUnexpected    ErrorKind = "unexpected_error"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"

	DefaultMaxRetries  = 3
	DefaultTimeout     = 30 * time.Second
	DefaultTemperature = 0.7
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is only populated when the provider reports token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionRequest carries everything needed for a single completion
// exchange. Zero values for MaxTokens, Timeout and MaxRetries mean
// "provider default", DefaultTimeout and DefaultMaxRetries respectively.
type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature float64
	Model       string
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

func (r CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	for i, m := range r.Messages {
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d (%s) must have non-empty content", i, m.Role)
		}
	}
	if r.Temperature < 0.0 || r.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %v", r.Temperature)
	}
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// CompletionResult is the tagged outcome of a completion call. Content holds
// the model output on success and a user-facing message on failure; raw
// provider errors never cross this boundary.
type CompletionResult struct {
	Success   bool      `json:"success"`
	Content   string    `json:"content"`
	Usage     *Usage    `json:"usage,omitempty"`
	ErrorKind ErrorKind `json:"error_type,omitempty"`
}

func Failure(kind ErrorKind, message string) CompletionResult {
	return CompletionResult{Success: false, Content: message, ErrorKind: kind}
}

type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) CompletionResult
}
