package rag_service

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/franckEinstein90/union-steward-api/services/llm_service"
)

const defaultTopK = 4

const groundedSystemPrompt = "You are a union steward assistant. Answer the question using only the " +
	"provided excerpts from the collective bargaining agreement. If the excerpts do not contain the " +
	"answer, say so plainly instead of guessing."

// QueryEngine answers natural-language questions against one document's
// vector index: it retrieves the most relevant chunks and delegates to the
// completion service with a grounded prompt. It adds no retry policy of its
// own on top of the completion client's.
type QueryEngine struct {
	embedder Embedder
	llm      llm_service.CompletionService
	model    string
	topK     int
	logger   *slog.Logger
}

func NewQueryEngine(embedder Embedder, llm llm_service.CompletionService, completionModel string, logger *slog.Logger) *QueryEngine {
	return &QueryEngine{
		embedder: embedder,
		llm:      llm,
		model:    completionModel,
		topK:     defaultTopK,
		logger:   logger,
	}
}

// Answer runs a retrieval-augmented query against the index at indexPath.
func (q *QueryEngine) Answer(ctx context.Context, query, indexPath string) llm_service.CompletionResult {
	if strings.TrimSpace(query) == "" {
		return llm_service.Failure(llm_service.ErrorKindValidation, "Query must not be empty")
	}

	index, err := OpenIndex(indexPath)
	if err != nil {
		q.logger.Error("Failed to open vector index",
			slog.String("path", indexPath),
			slog.String("error", err.Error()))
		return llm_service.Failure(llm_service.ErrorKindValidation,
			fmt.Sprintf("Unable to open vector index at %s", indexPath))
	}

	// A query embedded with a different model than the index was built with
	// would rank garbage; treat it as a caller error.
	if index.EmbeddingModel() != q.embedder.ModelName() {
		q.logger.Error("Embedding model mismatch",
			slog.String("index_model", index.EmbeddingModel()),
			slog.String("engine_model", q.embedder.ModelName()),
			slog.String("path", indexPath))
		return llm_service.Failure(llm_service.ErrorKindValidation,
			fmt.Sprintf("Embedding model mismatch: index was built with %q but queries are embedded with %q",
				index.EmbeddingModel(), q.embedder.ModelName()))
	}

	vectors, _, err := q.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		q.logger.Error("Failed to embed query",
			slog.String("error", err.Error()))
		return llm_service.Failure(llm_service.ErrorKindUnexpected, "Failed to embed the query. Please try again.")
	}

	hits := index.Nearest(vectors[0], q.topK)

	var contextBuilder strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&contextBuilder, "Excerpt %d:\n%s\n\n", i+1, hit.Content)
	}

	userPrompt := fmt.Sprintf("Question: %s\n\nAgreement excerpts:\n%s", query, contextBuilder.String())

	return q.llm.Complete(ctx, llm_service.CompletionRequest{
		Messages: []llm_service.ChatMessage{
			{Role: llm_service.RoleSystem, Content: groundedSystemPrompt},
			{Role: llm_service.RoleUser, Content: userPrompt},
		},
		Temperature: llm_service.DefaultTemperature,
		Model:       q.model,
	})
}
