package rag_service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franckEinstein90/union-steward-api/services/llm_service"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func newTestIngestor(t *testing.T, extractor TextExtractor, embedder Embedder, llm llm_service.CompletionService) *Ingestor {
	t.Helper()
	engine := NewQueryEngine(embedder, llm, "gpt-4o", testLogger())
	ing := NewIngestor(extractor, embedder, engine, t.TempDir(), testLogger())
	ing.tmpRoot = t.TempDir()
	return ing
}

func overlapOf(n int) *int {
	return &n
}

func describeOK() *llm_service.MockCompletionService {
	return &llm_service.MockCompletionService{
		CompleteFunc: func(ctx context.Context, req llm_service.CompletionRequest) llm_service.CompletionResult {
			return llm_service.CompletionResult{Success: true, Content: "A collective bargaining agreement between parties."}
		},
	}
}

func assertNoTempFiles(t *testing.T, ing *Ingestor) {
	t.Helper()
	entries, err := os.ReadDir(ing.tmpRoot)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no leftover temp files, found %d entries", len(entries))
	}
}

func sampleText() string {
	var b strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&b, "Article %d. The employer and the union agree on the terms of section %d.\n\n", i, i)
	}
	return b.String()
}

func TestIngest_RejectsNonPDF(t *testing.T) {
	embedder := &fakeEmbedder{model: "m"}
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, embedder, describeOK())

	_, err := ing.Ingest(context.Background(), "notes.txt", []byte("hello"), VectorizationParams{})
	if err == nil {
		t.Fatalf("Expected an error for non-PDF input")
	}

	var ingErr *IngestionError
	if !errors.As(err, &ingErr) {
		t.Fatalf("Expected *IngestionError, got %T", err)
	}
	if ingErr.Kind != IngestErrUnsupportedFormat {
		t.Errorf("Expected kind %q, got %q", IngestErrUnsupportedFormat, ingErr.Kind)
	}
	if embedder.calls != 0 {
		t.Errorf("Embedder must not be called for rejected input")
	}
	assertNoTempFiles(t, ing)

	entries, _ := os.ReadDir(ing.vectorstoreRoot)
	if len(entries) != 0 {
		t.Errorf("Expected no index artifacts for rejected input")
	}
}

func TestIngest_Success(t *testing.T) {
	embedder := &fakeEmbedder{model: "text-embedding-ada-002"}
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, embedder, describeOK())

	result, err := ing.Ingest(context.Background(), "local-814-agreement.pdf", []byte("%PDF-stub"),
		VectorizationParams{ChunkSize: 500, ChunkOverlap: overlapOf(50)})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if result.ChunkCount <= 0 {
		t.Errorf("Expected a positive chunk count, got %d", result.ChunkCount)
	}
	if result.Description == "" {
		t.Errorf("Expected a non-empty description")
	}
	if result.DescriptionErr != "" {
		t.Errorf("Unexpected description error: %s", result.DescriptionErr)
	}

	wantPath := filepath.Join(ing.vectorstoreRoot, "local-814-agreement")
	if result.VectorstorePath != wantPath {
		t.Errorf("Expected index at %s, got %s", wantPath, result.VectorstorePath)
	}
	opened, err := OpenIndex(result.VectorstorePath)
	if err != nil {
		t.Fatalf("Persisted index cannot be opened: %v", err)
	}
	if opened.ChunkCount() != result.ChunkCount {
		t.Errorf("Index chunk count %d does not match result %d", opened.ChunkCount(), result.ChunkCount)
	}
	assertNoTempFiles(t, ing)
}

func TestIngest_ExtractionFailureCleansUp(t *testing.T) {
	ing := newTestIngestor(t, &fakeExtractor{err: errors.New("broken xref table")},
		&fakeEmbedder{model: "m"}, describeOK())

	_, err := ing.Ingest(context.Background(), "broken.pdf", []byte("%PDF-stub"), VectorizationParams{})
	var ingErr *IngestionError
	if !errors.As(err, &ingErr) || ingErr.Kind != IngestErrExtraction {
		t.Fatalf("Expected extraction failure, got %v", err)
	}
	assertNoTempFiles(t, ing)

	entries, _ := os.ReadDir(ing.vectorstoreRoot)
	if len(entries) != 0 {
		t.Errorf("Expected no index artifacts after extraction failure")
	}
}

func TestIngest_EmbeddingFailureLeavesNoIndex(t *testing.T) {
	embedder := &fakeEmbedder{model: "m", err: errors.New("embedding service down")}
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, embedder, describeOK())

	_, err := ing.Ingest(context.Background(), "agreement.pdf", []byte("%PDF-stub"), VectorizationParams{})
	var ingErr *IngestionError
	if !errors.As(err, &ingErr) || ingErr.Kind != IngestErrEmbedding {
		t.Fatalf("Expected embedding failure, got %v", err)
	}
	assertNoTempFiles(t, ing)

	entries, _ := os.ReadDir(ing.vectorstoreRoot)
	if len(entries) != 0 {
		t.Errorf("Expected no index artifacts after embedding failure, found %d", len(entries))
	}
}

func TestIngest_DescriptionFailureKeepsIndex(t *testing.T) {
	embedder := &fakeEmbedder{model: "m"}
	llm := &llm_service.MockCompletionService{
		CompleteFunc: func(ctx context.Context, req llm_service.CompletionRequest) llm_service.CompletionResult {
			return llm_service.Failure(llm_service.ErrorKindRateLimit, "Request failed due to rate limiting.")
		},
	}
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, embedder, llm)

	result, err := ing.Ingest(context.Background(), "agreement.pdf", []byte("%PDF-stub"), VectorizationParams{})
	if err != nil {
		t.Fatalf("Ingestion should succeed despite a description failure, got %v", err)
	}
	if result.Description != "" {
		t.Errorf("Expected empty description, got %q", result.Description)
	}
	if result.DescriptionErr != string(llm_service.ErrorKindRateLimit) {
		t.Errorf("Expected description error %q, got %q", llm_service.ErrorKindRateLimit, result.DescriptionErr)
	}
	if _, err := OpenIndex(result.VectorstorePath); err != nil {
		t.Errorf("Index must survive a description failure: %v", err)
	}
}

func TestIngest_CollidingNamesAreUniquified(t *testing.T) {
	embedder := &fakeEmbedder{model: "m"}
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, embedder, describeOK())

	first, err := ing.Ingest(context.Background(), "agreement.pdf", []byte("%PDF-stub"), VectorizationParams{})
	if err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}
	second, err := ing.Ingest(context.Background(), "agreement.pdf", []byte("%PDF-stub"), VectorizationParams{})
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}

	if first.VectorstorePath == second.VectorstorePath {
		t.Fatalf("Colliding base names must not share an index path")
	}
	if !strings.HasSuffix(second.VectorstorePath, "agreement-2") {
		t.Errorf("Expected uniquified path ending in agreement-2, got %s", second.VectorstorePath)
	}
	if _, err := OpenIndex(first.VectorstorePath); err != nil {
		t.Errorf("First index must remain intact: %v", err)
	}
}

func TestIngest_EmbeddingModelMismatchRejected(t *testing.T) {
	embedder := &fakeEmbedder{model: "text-embedding-ada-002"}
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, embedder, describeOK())

	_, err := ing.Ingest(context.Background(), "agreement.pdf", []byte("%PDF-stub"),
		VectorizationParams{EmbeddingModel: "some-other-model"})
	var ingErr *IngestionError
	if !errors.As(err, &ingErr) || ingErr.Kind != IngestErrValidation {
		t.Fatalf("Expected validation failure for mismatched embedding model, got %v", err)
	}
}

func TestIngest_InvalidChunkParams(t *testing.T) {
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, &fakeEmbedder{model: "m"}, describeOK())

	_, err := ing.Ingest(context.Background(), "agreement.pdf", []byte("%PDF-stub"),
		VectorizationParams{ChunkSize: 100, ChunkOverlap: overlapOf(100)})
	var ingErr *IngestionError
	if !errors.As(err, &ingErr) || ingErr.Kind != IngestErrValidation {
		t.Fatalf("Expected validation failure for overlap >= chunk size, got %v", err)
	}
}

func TestIngest_ExplicitZeroOverlapHonored(t *testing.T) {
	embedder := &fakeEmbedder{model: "m"}
	ing := newTestIngestor(t, &fakeExtractor{text: sampleText()}, embedder, describeOK())

	result, err := ing.Ingest(context.Background(), "agreement.pdf", []byte("%PDF-stub"),
		VectorizationParams{ChunkSize: 200, ChunkOverlap: overlapOf(0)})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.ChunkOverlap != 0 {
		t.Errorf("Explicit zero overlap must not be replaced by the default, got %d", result.ChunkOverlap)
	}

	opened, err := OpenIndex(result.VectorstorePath)
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	if opened.meta.ChunkOverlap != 0 {
		t.Errorf("Persisted index should record overlap 0, got %d", opened.meta.ChunkOverlap)
	}

	defaulted, err := ing.Ingest(context.Background(), "other.pdf", []byte("%PDF-stub"), VectorizationParams{})
	if err != nil {
		t.Fatalf("Ingest with defaults failed: %v", err)
	}
	if defaulted.ChunkOverlap != defaultChunkOverlap {
		t.Errorf("Omitted overlap should fall back to %d, got %d", defaultChunkOverlap, defaulted.ChunkOverlap)
	}
}
