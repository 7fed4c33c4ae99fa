package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/franckEinstein90/union-steward-api/services/document_store"
	"github.com/franckEinstein90/union-steward-api/services/rag_service"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadHandler ingests an uploaded agreement: vectorizes it, auto-describes
// it and registers the result with the metadata store.
type UploadHandler struct {
	ingestor Ingestor
	embedder rag_service.Embedder
	store    DocumentStore
	logger   *slog.Logger
}

func NewUploadHandler(ingestor Ingestor, embedder rag_service.Embedder, store DocumentStore, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		ingestor: ingestor,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

type uploadResults struct {
	Chunks           int      `json:"chunks"`
	VectorstorePath  string   `json:"vectorstore_path"`
	Description      string   `json:"description"`
	DescriptionError string   `json:"description_error,omitempty"`
	ProcessingSteps  []string `json:"processing_steps"`
	DocumentID       int      `json:"document_id"`
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received file upload request")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	var params rag_service.VectorizationParams
	if raw := r.FormValue("vectorization_params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			writeJSONError(w, "Invalid vectorization_params", http.StatusBadRequest)
			return
		}
	}

	collectionID := 0
	if raw := r.FormValue("collection_id"); raw != "" {
		collectionID, err = strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, "Invalid collection_id", http.StatusBadRequest)
			return
		}
	}

	h.logger.Debug("Starting ingestion",
		slog.String("filename", header.Filename),
		slog.String("content_type", header.Header.Get("Content-Type")),
		slog.Int64("size", header.Size))

	result, err := h.ingestor.Ingest(r.Context(), header.Filename, buf.Bytes(), params)
	if err != nil {
		var ingErr *rag_service.IngestionError
		if errors.As(err, &ingErr) {
			writeJSON(w, ingestionStatus(ingErr.Kind), map[string]string{
				"error":      ingErr.Message,
				"error_type": ingErr.Kind,
			})
			return
		}
		writeJSONError(w, "Ingestion failed", http.StatusInternalServerError)
		return
	}

	// The description embedding feeds cross-document search. It is optional:
	// a failure here must not undo a completed ingestion.
	var descEmbedding *pgvector.Vector
	if result.Description != "" {
		vectors, _, embErr := h.embedder.EmbedBatch(r.Context(), []string{result.Description})
		if embErr != nil {
			h.logger.Warn("Failed to embed document description",
				slog.String("filename", header.Filename),
				slog.String("error", embErr.Error()))
		} else {
			v := pgvector.NewVector(vectors[0])
			descEmbedding = &v
		}
	}

	meta := document_store.DocumentMetadata{
		FileName:     header.Filename,
		FileType:     header.Header.Get("Content-Type"),
		CollectionID: collectionID,
	}
	documentID, err := h.store.CreateDocument(r.Context(), meta, result.Description,
		result.VectorstorePath, descEmbedding, result.ChunkSize, result.ChunkOverlap,
		h.embedder.ModelName())
	if err != nil {
		h.logger.Error("Failed to register document",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to register document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "File uploaded and vectorized successfully",
		"results": uploadResults{
			Chunks:           result.ChunkCount,
			VectorstorePath:  result.VectorstorePath,
			Description:      result.Description,
			DescriptionError: result.DescriptionErr,
			ProcessingSteps:  result.ProcessingSteps,
			DocumentID:       documentID,
		},
	})
}
