package rag_service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func buildTestIndex(t *testing.T, path string) *VectorIndex {
	t.Helper()
	chunks := []string{"first chunk", "second chunk", "third chunk"}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	ix, err := BuildIndex(path, "text-embedding-ada-002", 500, 50, chunks, vectors)
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	return ix
}

func TestBuildIndex_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agreement-2024")
	built := buildTestIndex(t, path)

	if built.ChunkCount() != 3 {
		t.Errorf("Expected 3 chunks, got %d", built.ChunkCount())
	}

	opened, err := OpenIndex(path)
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	if opened.EmbeddingModel() != "text-embedding-ada-002" {
		t.Errorf("Embedding model not preserved, got %q", opened.EmbeddingModel())
	}
	if opened.ChunkCount() != 3 {
		t.Errorf("Expected 3 chunks after reopen, got %d", opened.ChunkCount())
	}
	if opened.meta.ChunkSize != 500 || opened.meta.ChunkOverlap != 50 {
		t.Errorf("Chunk parameters not preserved: %+v", opened.meta)
	}
}

func TestBuildIndex_RefusesExistingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agreement")
	buildTestIndex(t, path)

	_, err := BuildIndex(path, "text-embedding-ada-002", 500, 50,
		[]string{"other"}, [][]float32{{1}})
	if err == nil {
		t.Fatalf("Expected an error when the index path already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestBuildIndex_FailureLeavesNoArtifacts(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "agreement")

	_, err := BuildIndex(path, "text-embedding-ada-002", 500, 50,
		[]string{"one", "two"}, [][]float32{{1, 0}})
	if err == nil {
		t.Fatalf("Expected an error for mismatched chunk and vector counts")
	}

	entries, readErr := os.ReadDir(root)
	if readErr != nil {
		t.Fatalf("ReadDir failed: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no artifacts after failed build, found %d entries", len(entries))
	}
}

func TestBuildIndex_RejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agreement")
	if _, err := BuildIndex(path, "m", 500, 50, nil, nil); err == nil {
		t.Fatalf("Expected an error for an empty index")
	}
}

func TestOpenIndex_MissingPath(t *testing.T) {
	if _, err := OpenIndex(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatalf("Expected an error opening a missing index")
	}
}

func TestNearest_OrderingAndDeterminism(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agreement")
	ix := buildTestIndex(t, path)

	query := []float32{0.9, 0.1, 0}

	first := ix.Nearest(query, 2)
	if len(first) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(first))
	}
	if first[0].Content != "first chunk" {
		t.Errorf("Expected best hit %q, got %q", "first chunk", first[0].Content)
	}
	if first[0].Score < first[1].Score {
		t.Errorf("Results not ordered best first: %v then %v", first[0].Score, first[1].Score)
	}

	second := ix.Nearest(query, 2)
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Retrieval not deterministic at position %d", i)
		}
	}
}

func TestNearest_StableTieBreakByChunkOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agreement")
	chunks := []string{"earlier duplicate", "unrelated", "later duplicate"}
	vectors := [][]float32{
		{1, 1},
		{-1, 1},
		{1, 1}, // identical direction to the first chunk
	}
	ix, err := BuildIndex(path, "m", 500, 50, chunks, vectors)
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	results := ix.Nearest([]float32{1, 1}, 3)
	if results[0].Content != "earlier duplicate" || results[1].Content != "later duplicate" {
		t.Errorf("Tied scores must keep original chunk order, got %q then %q",
			results[0].Content, results[1].Content)
	}
}

func TestNearest_ClampsK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agreement")
	ix := buildTestIndex(t, path)

	if got := len(ix.Nearest([]float32{1, 0, 0}, 10)); got != 3 {
		t.Errorf("Expected k clamped to 3, got %d", got)
	}
	if got := len(ix.Nearest([]float32{1, 0, 0}, 0)); got != 0 {
		t.Errorf("Expected no results for k=0, got %d", got)
	}
}
