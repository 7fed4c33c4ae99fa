package rag_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"log/slog"
)

const openAIEmbeddingsURL = "https://api.openai.com/v1/embeddings"

// Embedder converts text into fixed-dimension vectors using a named model.
type Embedder interface {
	// EmbedBatch embeds texts in order and reports total token usage.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error)
	ModelName() string
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Object string `json:"object"`
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint with a shared
// http.Client. Safe for concurrent use.
type OpenAIEmbedder struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
	logger     *slog.Logger
}

func NewOpenAIEmbedder(apiURL, apiKey, model string, logger *slog.Logger) *OpenAIEmbedder {
	if apiURL == "" {
		apiURL = openAIEmbeddingsURL
	}
	return &OpenAIEmbedder{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		logger:     logger,
	}
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	if e.apiKey == "" {
		return nil, 0, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if len(texts) == 0 {
		return nil, 0, fmt.Errorf("no input texts to embed")
	}

	jsonData, err := json.Marshal(embeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, 0, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("expected %d embeddings, received %d", len(texts), len(embeddingResp.Data))
	}

	// The API may return entries out of order; place each by its index.
	vectors := make([][]float32, len(texts))
	for _, d := range embeddingResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, 0, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, 0, fmt.Errorf("no embedding data received for input %d", i)
		}
	}

	e.logger.Debug("Embedded text batch",
		slog.Int("inputs", len(texts)),
		slog.Int("total_tokens", embeddingResp.Usage.TotalTokens),
		slog.String("model", e.model))

	return vectors, embeddingResp.Usage.TotalTokens, nil
}
