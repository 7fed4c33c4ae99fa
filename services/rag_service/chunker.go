package rag_service

import (
	"fmt"
)

// SplitText splits text into ordered chunks of at most chunkSize runes, with
// overlap runes shared between neighbours. Cuts prefer paragraph breaks, then
// line breaks, then word breaks, falling back to a raw character cut when the
// window holds none. The same input and parameters always produce the same
// chunk sequence.
func SplitText(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk_overlap must be non-negative and less than chunk_size, got %d", overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := findCut(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			// Chunk shorter than the overlap; move past it rather than stall.
			next = cut
		}
		start = next
	}

	return chunks, nil
}

// findCut picks the rightmost semantic boundary inside runes[start:end].
// The boundary character stays with the left chunk.
func findCut(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > start; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return end
}
