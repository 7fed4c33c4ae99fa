package rag_service

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	metaFileName   = "meta.json"
	chunksFileName = "chunks.json"
)

// IndexedChunk pairs a chunk's text with its embedding vector.
type IndexedChunk struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

type indexMeta struct {
	EmbeddingModel string    `json:"embedding_model"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	ChunkCount     int       `json:"chunk_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// VectorIndex is a self-contained on-disk directory holding the chunks and
// embeddings of one ingested document. Write-once: built atomically at
// ingestion time, read-only afterwards.
type VectorIndex struct {
	path   string
	meta   indexMeta
	chunks []IndexedChunk
}

func (ix *VectorIndex) Path() string           { return ix.path }
func (ix *VectorIndex) EmbeddingModel() string { return ix.meta.EmbeddingModel }
func (ix *VectorIndex) ChunkCount() int        { return len(ix.chunks) }

// BuildIndex persists chunks and their vectors under path. The index is
// written to a partial sibling directory and renamed into place, so a failed
// build leaves nothing behind and a crash cannot produce a half-written
// index. Refuses to replace an existing index.
func BuildIndex(path, embeddingModel string, chunkSize, chunkOverlap int, chunks []string, vectors [][]float32) (*VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("cannot build an empty index")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk and vector counts differ: %d vs %d", len(chunks), len(vectors))
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("vector index already exists at %s", path)
	}

	indexed := make([]IndexedChunk, len(chunks))
	for i := range chunks {
		indexed[i] = IndexedChunk{Content: chunks[i], Embedding: vectors[i]}
	}

	meta := indexMeta{
		EmbeddingModel: embeddingModel,
		ChunkSize:      chunkSize,
		ChunkOverlap:   chunkOverlap,
		ChunkCount:     len(indexed),
		CreatedAt:      time.Now().UTC(),
	}

	partial := fmt.Sprintf("%s.partial-%s", path, uuid.NewString())
	if err := os.MkdirAll(partial, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(partial)
		}
	}()

	if err := writeJSONFile(filepath.Join(partial, metaFileName), meta); err != nil {
		return nil, err
	}
	if err := writeJSONFile(filepath.Join(partial, chunksFileName), indexed); err != nil {
		return nil, err
	}

	// Rename fails if path appeared in the meantime, so two concurrent
	// builds can never silently merge or overwrite.
	if err := os.Rename(partial, path); err != nil {
		return nil, fmt.Errorf("failed to move index into place: %w", err)
	}
	committed = true

	return &VectorIndex{path: path, meta: meta, chunks: indexed}, nil
}

// OpenIndex re-opens a persisted index directory.
func OpenIndex(path string) (*VectorIndex, error) {
	var meta indexMeta
	if err := readJSONFile(filepath.Join(path, metaFileName), &meta); err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}

	var chunks []IndexedChunk
	if err := readJSONFile(filepath.Join(path, chunksFileName), &chunks); err != nil {
		return nil, fmt.Errorf("failed to read index chunks: %w", err)
	}

	if len(chunks) != meta.ChunkCount {
		return nil, fmt.Errorf("index at %s is corrupt: metadata reports %d chunks, found %d", path, meta.ChunkCount, len(chunks))
	}

	return &VectorIndex{path: path, meta: meta, chunks: chunks}, nil
}

// ScoredChunk is one retrieval hit: chunk text plus its relevance score.
type ScoredChunk struct {
	Content string
	Score   float64
}

// Nearest returns the k chunks most similar to the query vector, best first.
// Ties keep original chunk order, so retrieval is reproducible.
func (ix *VectorIndex) Nearest(query []float32, k int) []ScoredChunk {
	results := make([]ScoredChunk, 0, len(ix.chunks))
	for _, ch := range ix.chunks {
		results = append(results, ScoredChunk{
			Content: ch.Content,
			Score:   cosineSimilarity(query, ch.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	if k < 0 {
		k = 0
	}
	return results[:k]
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
