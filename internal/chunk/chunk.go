// Package chunk splits long source text into bounded pieces an AI completion
// call can handle and merges the rewritten pieces back into one document.
package chunk

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// boundaryWindow is how far back from a candidate cut point Split looks for
// a natural break before giving up and cutting hard.
const boundaryWindow = 500

// delimiters, best break first. Paragraph breaks beat sentence ends beat
// line breaks beat punctuation beat plain spaces.
var delimiters = [][]string{
	{"\n\n\n"},
	{"\n\n"},
	{".\n", "!\n", "?\n"},
	{". ", "! ", "? "},
	{"\n"},
	{","},
	{" "},
}

// Chunk is one bounded piece of the source text. Chunks live only for the
// duration of a single pipeline run and are never shared between tasks.
type Chunk struct {
	Content          string
	Index            int
	Total            int
	StartOffset      int
	EndOffset        int
	ProcessedContent string
}

// Split cuts text into chunks of at most maxSize bytes, snapping each cut to
// the best delimiter found within the trailing window and overlapping
// consecutive chunks by up to overlap bytes. A text that already fits is
// returned as a single chunk with no overlap applied.
func Split(text string, maxSize, overlap int) ([]Chunk, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunk: max size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("chunk: overlap must satisfy 0 <= overlap < max size, got overlap=%d max=%d", overlap, maxSize)
	}

	if len(text) <= maxSize {
		return []Chunk{{
			Content:     strings.TrimSpace(text),
			Index:       0,
			Total:       1,
			StartOffset: 0,
			EndOffset:   len(text),
		}}, nil
	}

	var chunks []Chunk
	offset := 0
	for offset < len(text) {
		end := offset + maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = snapBoundary(text, offset, end)
		}

		chunks = append(chunks, Chunk{
			Content:     strings.TrimSpace(text[offset:end]),
			Index:       len(chunks),
			StartOffset: offset,
			EndOffset:   end,
		})

		if end >= len(text) {
			break
		}

		// Overlap must never stall the scan: always move at least one byte.
		next := end - overlap
		if next < offset+1 {
			next = offset + 1
		}
		offset = next
	}

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks, nil
}

// snapBoundary looks backward from the candidate cut point for the best
// delimiter within the window and returns the position just past it. With no
// delimiter in sight it cuts at the candidate, aligned to a rune start.
func snapBoundary(text string, offset, candidate int) int {
	winStart := candidate - boundaryWindow
	if winStart < offset {
		winStart = offset
	}
	window := text[winStart:candidate]

	for _, group := range delimiters {
		best := -1
		for _, d := range group {
			if idx := strings.LastIndex(window, d); idx >= 0 {
				after := winStart + idx + len(d)
				if after > best {
					best = after
				}
			}
		}
		if best > offset {
			return best
		}
	}

	for candidate > offset+1 && !utf8.RuneStart(text[candidate]) {
		candidate--
	}
	return candidate
}

// Merge reassembles processed chunks into one document. Chunks are sorted by
// index first since results may arrive out of order; a chunk without a
// processed result falls back to its raw content.
func Merge(chunks []Chunk) string {
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	parts := make([]string, 0, len(sorted))
	for _, c := range sorted {
		content := c.ProcessedContent
		if content == "" {
			content = c.Content
		}
		if content == "" {
			continue
		}
		parts = append(parts, content)
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
