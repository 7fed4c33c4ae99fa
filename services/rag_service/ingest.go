package rag_service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/google/uuid"
)

// Ingestion job states. A job advances strictly left to right and drops to
// stateFailed from any non-terminal state.
type jobState string

const (
	stateReceived  jobState = "received"
	stateExtracted jobState = "extracted"
	stateChunked   jobState = "chunked"
	stateIndexed   jobState = "indexed"
	stateDescribed jobState = "described"
	stateFinalized jobState = "finalized"
	stateFailed    jobState = "failed"
)

// Ingestion failure kinds, in addition to the completion client's taxonomy.
const (
	IngestErrUnsupportedFormat = "unsupported_format"
	IngestErrValidation        = "validation_error"
	IngestErrExtraction        = "extraction_error"
	IngestErrEmbedding         = "embedding_error"
	IngestErrIndex             = "index_error"
)

const descriptionPrompt = "Provide a description of what this document is and what it does in less than " +
	"200 words. Who are the parties concerned? In the description, include the period of time it covers, " +
	"when it begins application and when it ends if applicable"

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

// IngestionError is a tagged ingestion failure with a stable kind string.
type IngestionError struct {
	Kind    string
	State   jobState
	Message string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed in state %s (%s): %s", e.State, e.Kind, e.Message)
}

// VectorizationParams are the caller-tunable knobs for one ingestion.
// A zero ChunkSize falls back to the service default. ChunkOverlap is a
// pointer because zero is a valid overlap; nil means "use the default".
type VectorizationParams struct {
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   *int   `json:"chunk_overlap"`
	EmbeddingModel string `json:"embedding_model"`
}

type IngestionResult struct {
	ChunkCount      int      `json:"chunks"`
	ChunkSize       int      `json:"chunk_size"`
	ChunkOverlap    int      `json:"chunk_overlap"`
	VectorstorePath string   `json:"vectorstore_path"`
	Description     string   `json:"description"`
	DescriptionErr  string   `json:"description_error,omitempty"`
	ProcessingSteps []string `json:"processing_steps"`
}

// Ingestor drives one document through extraction, chunking, embedding,
// index persistence and auto-description. Each call is synchronous and
// request-scoped; concurrent ingestions get distinct temp workspaces and
// distinct index directories, so they never contend.
type Ingestor struct {
	extractor       TextExtractor
	embedder        Embedder
	engine          *QueryEngine
	vectorstoreRoot string
	tmpRoot         string
	logger          *slog.Logger
}

func NewIngestor(extractor TextExtractor, embedder Embedder, engine *QueryEngine, vectorstoreRoot string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		extractor:       extractor,
		embedder:        embedder,
		engine:          engine,
		vectorstoreRoot: vectorstoreRoot,
		tmpRoot:         os.TempDir(),
		logger:          logger,
	}
}

type ingestionJob struct {
	fileName string
	state    jobState
	logger   *slog.Logger
}

func (j *ingestionJob) advance(next jobState) {
	j.logger.Debug("Ingestion state transition",
		slog.String("file", j.fileName),
		slog.String("from", string(j.state)),
		slog.String("to", string(next)))
	j.state = next
}

func (j *ingestionJob) fail(kind, format string, args ...interface{}) *IngestionError {
	err := &IngestionError{
		Kind:    kind,
		State:   j.state,
		Message: fmt.Sprintf(format, args...),
	}
	j.logger.Error("Ingestion failed",
		slog.String("file", j.fileName),
		slog.String("state", string(j.state)),
		slog.String("kind", kind),
		slog.String("error", err.Message))
	j.state = stateFailed
	return err
}

// Ingest runs the full pipeline for one uploaded document. On any failure
// before the index is committed, all temporary files and partial index
// artifacts are removed. A description failure after the index is committed
// does not roll the index back: the index is independently useful, so the
// result carries it along with the description error kind.
func (ing *Ingestor) Ingest(ctx context.Context, fileName string, data []byte, params VectorizationParams) (*IngestionResult, error) {
	job := &ingestionJob{fileName: fileName, state: stateReceived, logger: ing.logger}

	if strings.ToLower(filepath.Ext(fileName)) != ".pdf" {
		return nil, job.fail(IngestErrUnsupportedFormat, "only PDF files are supported, got %q", filepath.Ext(fileName))
	}
	if len(data) == 0 {
		return nil, job.fail(IngestErrValidation, "uploaded file is empty")
	}

	chunkSize := params.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}
	chunkOverlap := defaultChunkOverlap
	if params.ChunkOverlap != nil {
		chunkOverlap = *params.ChunkOverlap
	}
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, job.fail(IngestErrValidation, "invalid chunk parameters: size=%d overlap=%d", chunkSize, chunkOverlap)
	}
	if params.EmbeddingModel != "" && params.EmbeddingModel != ing.embedder.ModelName() {
		return nil, job.fail(IngestErrValidation,
			"requested embedding model %q does not match the configured embedder %q",
			params.EmbeddingModel, ing.embedder.ModelName())
	}

	// Unique workspace per job so concurrent ingestions cannot collide.
	workDir := filepath.Join(ing.tmpRoot, "steward-ingest-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0700); err != nil {
		return nil, job.fail(IngestErrValidation, "failed to create temp workspace: %v", err)
	}
	defer os.RemoveAll(workDir)

	tempPath := filepath.Join(workDir, filepath.Base(fileName))
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return nil, job.fail(IngestErrValidation, "failed to write temp file: %v", err)
	}

	raw, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, job.fail(IngestErrExtraction, "failed to read temp file: %v", err)
	}
	text, err := ing.extractor.ExtractText(raw)
	if err != nil {
		return nil, job.fail(IngestErrExtraction, "text extraction failed: %v", err)
	}
	job.advance(stateExtracted)

	chunks, err := SplitText(text, chunkSize, chunkOverlap)
	if err != nil {
		return nil, job.fail(IngestErrValidation, "chunking failed: %v", err)
	}
	if len(chunks) == 0 {
		return nil, job.fail(IngestErrExtraction, "document produced no text chunks")
	}
	job.advance(stateChunked)

	result := &IngestionResult{
		ChunkCount:   len(chunks),
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		ProcessingSteps: []string{
			fmt.Sprintf("Created %d text chunks", len(chunks)),
		},
	}

	vectors, tokens, err := ing.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, job.fail(IngestErrEmbedding, "embedding failed: %v", err)
	}
	result.ProcessingSteps = append(result.ProcessingSteps,
		fmt.Sprintf("Embedded %d chunks (%d tokens)", len(chunks), tokens))

	destPath, err := ing.nextIndexPath(fileName)
	if err != nil {
		return nil, job.fail(IngestErrIndex, "failed to derive index path: %v", err)
	}
	if _, err := BuildIndex(destPath, ing.embedder.ModelName(), chunkSize, chunkOverlap, chunks, vectors); err != nil {
		return nil, job.fail(IngestErrIndex, "failed to persist vector index: %v", err)
	}
	job.advance(stateIndexed)
	result.VectorstorePath = destPath
	result.ProcessingSteps = append(result.ProcessingSteps,
		fmt.Sprintf("Persisted vector index at %s", destPath))

	// Index persistence is deliberately not rolled back if the description
	// fails; the caller gets the index plus the failure kind.
	desc := ing.engine.Answer(ctx, descriptionPrompt, destPath)
	if desc.Success {
		result.Description = desc.Content
		job.advance(stateDescribed)
	} else {
		result.DescriptionErr = string(desc.ErrorKind)
		ing.logger.Warn("Auto-description failed; keeping index",
			slog.String("file", fileName),
			slog.String("error_type", string(desc.ErrorKind)),
			slog.String("path", destPath))
	}

	job.advance(stateFinalized)
	return result, nil
}

// nextIndexPath derives the index directory from the document's base name,
// uniquifying with a numeric suffix when a previous document already claimed
// the name.
func (ing *Ingestor) nextIndexPath(fileName string) (string, error) {
	if err := os.MkdirAll(ing.vectorstoreRoot, 0755); err != nil {
		return "", err
	}

	base := sanitizeBaseName(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)))
	if base == "" {
		base = "document"
	}

	candidate := filepath.Join(ing.vectorstoreRoot, base)
	for i := 2; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		candidate = filepath.Join(ing.vectorstoreRoot, fmt.Sprintf("%s-%d", base, i))
	}
}

func sanitizeBaseName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
