package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/gorilla/mux"

	"github.com/franckEinstein90/union-steward-api/services/document_store"
)

type CollectionHandler struct {
	store  DocumentStore
	logger *slog.Logger
}

func NewCollectionHandler(store DocumentStore, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{
		store:  store,
		logger: logger,
	}
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSONError(w, "Collection name is required", http.StatusBadRequest)
		return
	}
	if len(name) > 255 {
		writeJSONError(w, "Collection name too long (max 255 characters)", http.StatusBadRequest)
		return
	}

	id, err := h.store.CreateCollection(r.Context(), name, strings.TrimSpace(req.Description))
	if err != nil {
		h.logger.Error("Failed to create collection",
			slog.String("name", name),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to create collection", http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Collection created successfully",
		"collection": map[string]interface{}{
			"id":          id,
			"name":        name,
			"description": req.Description,
		},
	})
}

// Deactivate soft-deletes a collection. Documents keep their records and
// indexes; the collection just stops showing up in active listings.
func (h *CollectionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "Invalid collection id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeactivateCollection(r.Context(), id); err != nil {
		if errors.Is(err, document_store.ErrNotFound) {
			writeJSONError(w, "Collection not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to deactivate collection",
			slog.Int("collection_id", id),
			slog.String("error", err.Error()))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Collection deactivated successfully"})
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := strings.EqualFold(r.URL.Query().Get("include_inactive"), "true")

	collections, err := h.store.ListCollections(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("Failed to list collections", slog.String("error", err.Error()))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collections": collections,
		"count":       len(collections),
	})
}
