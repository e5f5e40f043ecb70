// Package chunker splits extracted document text into overlapping,
// word-bounded segments.
package chunker

import "strings"

const (
	DefaultSize    = 2000
	DefaultOverlap = 300
)

// Chunk greedily packs whitespace-separated words into chunks whose running
// length (each word plus one separator) stays within size. When the next word
// would overflow a non-empty chunk, the chunk is closed and the next one starts
// with the closed chunk's last overlap words followed by that word. A single
// word longer than size still forms a chunk. Empty input yields nil.
//
// If overlap is at least the closed chunk's word count, the whole chunk is
// carried forward.
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	for _, w := range words {
		wl := len(w) + 1
		if length+wl > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			carry := current
			if overlap < len(current) {
				carry = current[len(current)-overlap:]
			}
			next := make([]string, 0, len(carry)+1)
			next = append(next, carry...)
			next = append(next, w)

			current = next
			length = wordsLen(current)
			continue
		}
		current = append(current, w)
		length += wl
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

func wordsLen(ws []string) int {
	n := 0
	for _, w := range ws {
		n += len(w) + 1
	}
	return n
}

// Chunker binds size and overlap for callers that chunk repeatedly.
type Chunker struct {
	Size    int
	Overlap int
}

func New(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return Chunker{Size: size, Overlap: overlap}
}

func (c Chunker) Split(text string) []string {
	return Chunk(text, c.Size, c.Overlap)
}
