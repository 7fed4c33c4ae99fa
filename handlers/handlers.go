package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pgvector/pgvector-go"

	"github.com/franckEinstein90/union-steward-api/services/document_store"
	"github.com/franckEinstein90/union-steward-api/services/llm_service"
	"github.com/franckEinstein90/union-steward-api/services/rag_service"
)

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, fileName string, data []byte, params rag_service.VectorizationParams) (*rag_service.IngestionResult, error)
}

// QueryEngine answers questions against an ingested document's index.
type QueryEngine interface {
	Answer(ctx context.Context, query, indexPath string) llm_service.CompletionResult
}

// DocumentStore is the metadata-store boundary the handlers depend on.
type DocumentStore interface {
	CreateDocument(ctx context.Context, meta document_store.DocumentMetadata, description, vectorstorePath string, descEmbedding *pgvector.Vector, chunkSize, chunkOverlap int, embeddingModel string) (int, error)
	GetDocumentByID(ctx context.Context, id int) (*document_store.DocumentRecord, error)
	DeleteDocument(ctx context.Context, id int) (string, error)
	CreateCollection(ctx context.Context, name, description string) (int, error)
	DeactivateCollection(ctx context.Context, id int) error
	ListCollections(ctx context.Context, includeInactive bool) ([]document_store.Collection, error)
	DocumentsByCollection(ctx context.Context, collectionID int) ([]document_store.DocumentRecord, error)
	UnassignedDocuments(ctx context.Context) ([]document_store.DocumentRecord, error)
	SearchByDescription(ctx context.Context, embedding pgvector.Vector, limit int) ([]document_store.DocumentSearchResult, error)
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// ingestionStatus maps an ingestion failure kind onto an HTTP status.
func ingestionStatus(kind string) int {
	switch kind {
	case rag_service.IngestErrUnsupportedFormat, rag_service.IngestErrValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// completionStatus maps a completion failure kind onto an HTTP status.
func completionStatus(kind llm_service.ErrorKind) int {
	switch kind {
	case llm_service.ErrorKindValidation:
		return http.StatusBadRequest
	case llm_service.ErrorKindRateLimit:
		return http.StatusTooManyRequests
	case llm_service.ErrorKindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
