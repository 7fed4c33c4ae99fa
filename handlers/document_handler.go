package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"log/slog"

	"github.com/gorilla/mux"

	"github.com/franckEinstein90/union-steward-api/services/document_store"
)

// DocumentHandler serves document listing and deletion plus the raw
// vectorstore directory listing.
type DocumentHandler struct {
	store           DocumentStore
	vectorstoreRoot string
	logger          *slog.Logger
}

func NewDocumentHandler(store DocumentStore, vectorstoreRoot string, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:           store,
		vectorstoreRoot: vectorstoreRoot,
		logger:          logger,
	}
}

// List rolls documents up by collection name, with documents belonging to no
// collection under "unassigned".
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := strings.EqualFold(r.URL.Query().Get("include_inactive"), "true")

	collections, err := h.store.ListCollections(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("Failed to list collections", slog.String("error", err.Error()))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rolledUp := make(map[string][]document_store.DocumentRecord)
	for _, collection := range collections {
		docs, err := h.store.DocumentsByCollection(r.Context(), collection.ID)
		if err != nil {
			h.logger.Error("Failed to list documents",
				slog.Int("collection_id", collection.ID),
				slog.String("error", err.Error()))
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		rolledUp[collection.Name] = docs
	}

	unassigned, err := h.store.UnassignedDocuments(r.Context())
	if err != nil {
		h.logger.Error("Failed to list unassigned documents", slog.String("error", err.Error()))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(unassigned) > 0 {
		rolledUp["unassigned"] = unassigned
	}

	writeJSON(w, http.StatusOK, rolledUp)
}

// Delete removes a document record and its on-disk vector index.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "Invalid document id", http.StatusBadRequest)
		return
	}

	path, err := h.store.DeleteDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, document_store.ErrNotFound) {
			writeJSONError(w, "Document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete document",
			slog.Int("document_id", id),
			slog.String("error", err.Error()))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Only remove paths inside the vectorstore root; a corrupt record must
	// not be able to delete arbitrary directories.
	if h.pathWithinRoot(path) {
		if err := os.RemoveAll(path); err != nil {
			h.logger.Error("Failed to remove vector index",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	} else {
		h.logger.Warn("Refusing to remove index outside vectorstore root",
			slog.String("path", path))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}

// ListAgreements lists the vector index directories under the root.
func (h *DocumentHandler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.vectorstoreRoot)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"agreements": []string{}})
			return
		}
		h.logger.Error("Failed to read vectorstore root", slog.String("error", err.Error()))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	agreements := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			agreements = append(agreements, map[string]string{"name": e.Name()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agreements": agreements})
}

func (h *DocumentHandler) pathWithinRoot(path string) bool {
	root, err := filepath.Abs(h.vectorstoreRoot)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
