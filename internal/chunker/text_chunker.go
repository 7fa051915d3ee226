package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"edurag/internal/domain"
)

// Namespace for deterministic chunk ids. A chunk id is a SHA1 UUID of the
// content block id and ordinal, so re-indexing the same block always
// produces the same ids.
var chunkNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// TextChunker splits cleaned block text into bounded, overlapping chunks.
// Cut points prefer paragraph breaks, then sentence ends, then word
// boundaries within the budget. Concatenating chunk texts with each
// chunk's leading Overlap bytes removed reconstructs the input exactly.
type TextChunker struct {
	maxChars int
	overlap  int
}

func NewTextChunker(maxChars, overlap int) (*TextChunker, error) {
	if maxChars <= 0 {
		maxChars = 1200
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		return nil, fmt.Errorf("overlap %d must be smaller than max chunk size %d", overlap, maxChars)
	}
	return &TextChunker{maxChars: maxChars, overlap: overlap}, nil
}

func (c *TextChunker) Chunk(block domain.ContentBlock) ([]domain.Chunk, error) {
	text := block.Text
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	stride := c.maxChars - c.overlap
	cuts := []int{0}
	for pos := 0; pos+stride < len(text); {
		cut := findBreak(text, pos, pos+stride)
		if cut <= pos {
			cut = pos + stride
		}
		cuts = append(cuts, cut)
		pos = cut
	}
	cuts = append(cuts, len(text))

	chunks := make([]domain.Chunk, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		start := cuts[i]
		overlap := 0
		if i > 0 && c.overlap > 0 {
			start = runeCeil(text, cuts[i]-c.overlap)
			overlap = cuts[i] - start
		}
		chunks = append(chunks, domain.Chunk{
			ID:          ChunkID(block.ID, i),
			BlockID:     block.ID,
			CourseID:    block.CourseID,
			BlockType:   block.BlockType,
			DisplayName: block.DisplayName,
			SourcePath:  block.SourcePath,
			Text:        text[start:cuts[i+1]],
			Ordinal:     i,
			Overlap:     overlap,
		})
	}
	return chunks, nil
}

// ChunkID returns the deterministic id for a block's nth chunk.
func ChunkID(blockID string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%s:%d", blockID, ordinal)).String()
}

// findBreak picks a cut point in (pos, limit], preferring the last
// paragraph break, then the last sentence end, then the last space. A
// rune-safe hard cut at limit is the fallback.
func findBreak(text string, pos, limit int) int {
	window := text[pos:limit]
	if i := strings.LastIndexByte(window, '\n'); i > 0 {
		return pos + i + 1
	}
	if i := lastSentenceEnd(window); i > 0 {
		return pos + i
	}
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return pos + i + 1
	}
	return runeStart(text, limit)
}

func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i > 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if i+1 < len(s) && s[i+1] != ' ' && s[i+1] != '\n' {
				continue
			}
			return i + 1
		}
	}
	return -1
}

// runeCeil moves i forwards to the next rune start when it falls inside
// a rune. Rounding the overlap start forward shrinks the overlap instead
// of growing the chunk past its size budget.
func runeCeil(s string, i int) int {
	if i <= 0 {
		return 0
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// runeStart moves i backwards to the start of the rune it falls inside.
func runeStart(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
