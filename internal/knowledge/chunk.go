package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Chunking defaults.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 150
)

// Chunk splits text into pieces of at most size bytes, preferring paragraph
// then line then word boundaries. Consecutive chunks share up to overlap
// bytes of context.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= size {
			chunks = append(chunks, text)
			break
		}
		cut := runeBoundary(text, splitPoint(text[:size]))
		if cut <= 0 {
			cut = size
		}
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := runeBoundary(text, cut-overlap)
		if next <= 0 {
			next = cut
		}
		// do not restart in the middle of a word
		if sp := strings.IndexAny(text[next:cut], " \n"); sp >= 0 && next != cut {
			next += sp + 1
		}
		text = strings.TrimSpace(text[next:])
	}
	return chunks
}

func splitPoint(window string) int {
	for _, sep := range []string{"\n\n", "\n", ". ", " "} {
		if i := strings.LastIndex(window, sep); i > len(window)/2 {
			return i + len(sep)
		}
	}
	return len(window)
}

func runeBoundary(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
