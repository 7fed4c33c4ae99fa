package llm_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

const openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// Substituted when the provider returns a success with an empty body, so
// emptiness never masquerades as a real answer.
const noContentSentinel = "No content generated"

// OpenAIService issues chat completion requests against the OpenAI API with
// bounded retries. A single underlying http.Client is created at construction
// and reused across calls; the service is safe for concurrent use.
type OpenAIService struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	logger     *slog.Logger

	// sleep is swapped out in tests so backoff waits don't slow the suite.
	sleep func(time.Duration)
}

func NewOpenAIService(apiURL, apiKey string, logger *slog.Logger) *OpenAIService {
	if apiURL == "" {
		apiURL = openAIChatCompletionsURL
	}
	return &OpenAIService{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		apiKey:     apiKey,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Complete runs a completion request through the retry policy and always
// returns a tagged result; it never panics and never surfaces raw provider
// errors. Rate limits back off exponentially (2^attempt seconds), timeouts
// and connection failures retry immediately, every other failure is terminal.
func (s *OpenAIService) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	if err := req.Validate(); err != nil {
		s.logger.Warn("Rejected invalid completion request",
			slog.String("error", err.Error()))
		return Failure(ErrorKindValidation, fmt.Sprintf("Invalid request: %v", err))
	}

	if s.apiKey == "" {
		s.logger.Error("OpenAI API key is not configured")
		return Failure(ErrorKindConfiguration, "Configuration error: OpenAI API key is not set")
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		s.logger.Info("Attempting completion",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			slog.String("model", req.Model))

		content, usage, err := s.callOpenAI(ctx, req, timeout)
		if err == nil {
			if strings.TrimSpace(content) == "" {
				content = noContentSentinel
			}
			s.logger.Info("Completion successful", slog.String("model", req.Model))
			return CompletionResult{Success: true, Content: content, Usage: usage}
		}

		kind := classifyError(err)
		switch kind {
		case ErrorKindRateLimit:
			s.logger.Warn("Rate limit exceeded",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.String("error", err.Error()))
			if attempt < maxRetries-1 {
				wait := time.Duration(1<<uint(attempt)) * time.Second
				s.logger.Info("Waiting before retry", slog.Duration("wait", wait))
				s.sleep(wait)
				continue
			}
			return Failure(ErrorKindRateLimit, "Request failed due to rate limiting. Please try again later.")

		case ErrorKindTimeout:
			s.logger.Warn("Request timed out",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.String("error", err.Error()))
			if attempt < maxRetries-1 {
				continue
			}
			return Failure(ErrorKindTimeout, "Request timed out. Please try again.")

		case ErrorKindConnection:
			s.logger.Warn("Connection error",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.String("error", err.Error()))
			if attempt < maxRetries-1 {
				continue
			}
			return Failure(ErrorKindConnection, "Unable to connect to the OpenAI API. Please check your connection.")

		case ErrorKindAPI:
			s.logger.Error("OpenAI API rejected the request",
				slog.String("model", req.Model),
				slog.String("error", err.Error()))
			return Failure(ErrorKindAPI, "An error occurred with the OpenAI API. Please try again.")

		default:
			s.logger.Error("Unexpected error calling OpenAI API",
				slog.String("model", req.Model),
				slog.String("error", err.Error()))
			return Failure(ErrorKindUnexpected, "An unexpected error occurred while processing your request.")
		}
	}

	return Failure(ErrorKindUnexpected, "Request failed after multiple attempts. Please try again later.")
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (s *OpenAIService) callOpenAI(ctx context.Context, req CompletionRequest, timeout time.Duration) (string, *Usage, error) {
	requestBody, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, "POST", s.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rawBody, openAIErr := extractOpenAIErrorDetails(resp)
		httpErr := &OpenAIHttpError{
			StatusCode: resp.StatusCode,
			RawBody:    rawBody,
		}

		if openAIErr != nil {
			httpErr.Message = openAIErr.Error.Message
			httpErr.ErrorType = openAIErr.Error.Type
		} else {
			httpErr.Message = "Unknown error"
			httpErr.ErrorType = "unknown"
		}

		return "", nil, httpErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("error reading response body: %w", err)
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", nil, fmt.Errorf("unexpected response format from OpenAI API: no choices")
	}

	var usage *Usage
	if result.Usage != nil {
		usage = &Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		}
	}

	return result.Choices[0].Message.Content, usage, nil
}
