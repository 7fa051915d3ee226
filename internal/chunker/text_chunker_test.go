package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"edurag/internal/domain"
)

func block(text string) domain.ContentBlock {
	return domain.ContentBlock{
		ID:       "blk1",
		CourseID: "course-v1:MIT+8.01+2024",
		Text:     text,
	}
}

func TestNewTextChunkerRejectsOverlap(t *testing.T) {
	if _, err := NewTextChunker(100, 100); err == nil {
		t.Fatal("expected error for overlap equal to max size")
	}
	if _, err := NewTextChunker(100, 150); err == nil {
		t.Fatal("expected error for overlap larger than max size")
	}
}

func TestChunkEmptyText(t *testing.T) {
	c, err := NewTextChunker(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Chunk(block("   \n  "))
	if err != nil {
		t.Fatal(err)
	}
	if chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkShortText(t *testing.T) {
	c, err := NewTextChunker(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Chunk(block("short text"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0]
	if got.Text != "short text" || got.Ordinal != 0 || got.Overlap != 0 {
		t.Fatalf("unexpected chunk: %+v", got)
	}
	if got.ID != ChunkID("blk1", 0) {
		t.Fatalf("chunk id %q not deterministic", got.ID)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This is a sentence about kinematics and forces. ")
		if i%7 == 0 {
			b.WriteString("\n")
		}
	}
	text := b.String()

	c, err := NewTextChunker(200, 40)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Chunk(block(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Text[ch.Overlap:])
	}
	if rebuilt.String() != text {
		t.Fatal("stripping each chunk's leading overlap does not reconstruct the input")
	}
}

func TestChunkRespectsMaxSize(t *testing.T) {
	text := strings.Repeat("word and another word here. ", 100)
	c, err := NewTextChunker(150, 30)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Chunk(block(text))
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range chunks {
		if len(ch.Text) > 150 {
			t.Fatalf("chunk %d has %d chars, max is 150", ch.Ordinal, len(ch.Text))
		}
	}
}

func TestChunkOrdinalsAndIDs(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 50)
	c, err := NewTextChunker(120, 20)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Chunk(block(text))
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]struct{}{}
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Fatalf("chunk %d has ordinal %d", i, ch.Ordinal)
		}
		if ch.ID != ChunkID("blk1", i) {
			t.Fatalf("chunk %d id %q is not the deterministic id", i, ch.ID)
		}
		if _, dup := seen[ch.ID]; dup {
			t.Fatalf("duplicate chunk id %q", ch.ID)
		}
		seen[ch.ID] = struct{}{}
	}
}

func TestChunkMultibyteSafety(t *testing.T) {
	text := strings.Repeat("наука движения и силы ", 60)
	c, err := NewTextChunker(100, 25)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Chunk(block(text))
	if err != nil {
		t.Fatal(err)
	}
	var rebuilt strings.Builder
	for i, ch := range chunks {
		if !utf8.ValidString(ch.Text) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
		if len(ch.Text) > 100 {
			t.Fatalf("chunk %d is %d bytes, want at most 100", i, len(ch.Text))
		}
		rebuilt.WriteString(ch.Text[ch.Overlap:])
	}
	if rebuilt.String() != text {
		t.Fatal("multibyte text does not round-trip")
	}
}

func TestChunkIDDistinctBlocks(t *testing.T) {
	if ChunkID("blk1", 0) == ChunkID("blk2", 0) {
		t.Fatal("chunk ids for distinct blocks must differ")
	}
	if ChunkID("blk1", 0) == ChunkID("blk1", 1) {
		t.Fatal("chunk ids for distinct ordinals must differ")
	}
}
