package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/franckEinstein90/union-steward-api/services/rag_service"
)

// SearchHandler ranks registered documents against a free-text query using
// their description embeddings.
type SearchHandler struct {
	embedder rag_service.Embedder
	store    DocumentStore
	logger   *slog.Logger
}

func NewSearchHandler(embedder rag_service.Embedder, store DocumentStore, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "Search query cannot be empty", http.StatusBadRequest)
		return
	}
	if req.MaxResults < 0 || req.MaxResults > 50 {
		writeJSONError(w, "max_results must be between 0 and 50", http.StatusBadRequest)
		return
	}

	vectors, _, err := h.embedder.EmbedBatch(r.Context(), []string{req.Query})
	if err != nil {
		h.logger.Error("Failed to embed search query", slog.String("error", err.Error()))
		writeJSONError(w, "Failed to process search query", http.StatusInternalServerError)
		return
	}

	results, err := h.store.SearchByDescription(r.Context(), pgvector.NewVector(vectors[0]), req.MaxResults)
	if err != nil {
		h.logger.Error("Document search failed", slog.String("error", err.Error()))
		writeJSONError(w, "Document search failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": results,
		"count":     len(results),
	})
}
