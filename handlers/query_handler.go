package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/franckEinstein90/union-steward-api/services/document_store"
)

// QueryHandler answers a question against one previously ingested agreement.
type QueryHandler struct {
	engine QueryEngine
	store  DocumentStore
	logger *slog.Logger
}

func NewQueryHandler(engine QueryEngine, store DocumentStore, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		engine: engine,
		store:  store,
		logger: logger,
	}
}

type queryRequest struct {
	Prompt   string `json:"prompt"`
	Document struct {
		ID int `json:"id"`
	} `json:"document"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, "No prompt provided", http.StatusBadRequest)
		return
	}

	doc, err := h.store.GetDocumentByID(r.Context(), req.Document.ID)
	if err != nil {
		if errors.Is(err, document_store.ErrNotFound) {
			writeJSONError(w, "Document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to fetch document",
			slog.Int("document_id", req.Document.ID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to fetch document", http.StatusInternalServerError)
		return
	}

	result := h.engine.Answer(r.Context(), req.Prompt, doc.VectorstorePath)
	if !result.Success {
		writeJSON(w, completionStatus(result.ErrorKind), map[string]string{
			"error":      result.Content,
			"error_type": string(result.ErrorKind),
		})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Answer: result.Content})
}
