// Package retrieval implements C4: given a query document and the current
// bucket set, select the most relevant reference chunks and assemble the
// ContextBlock handed to the LLM classifier.
package retrieval

import (
	"strings"
	"unicode"
)

// ChunkText splits text into overlapping chunks of approximately
// chunkSize characters with approximately overlap characters of overlap,
// breaking at the nearest preceding word boundary when one exists within
// the chunk's last half. Deterministic given the same text and sizes.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 50
	}
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= chunkSize {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + chunkSize
		if end > n {
			end = n
		}
		if end < n {
			if boundary := lastWordBoundary(runes, start+chunkSize/2, end); boundary > start {
				end = boundary
			}
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastWordBoundary returns the index of the last whitespace rune in
// runes[from:to), or -1 if none exists in that span.
func lastWordBoundary(runes []rune, from, to int) int {
	if from < 0 {
		from = 0
	}
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
