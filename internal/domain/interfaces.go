package domain

import "context"

// Embedder converts text into fixed-dimension numeric vectors. Batched calls
// return vectors in input order; identical input and model configuration
// produce identical vectors.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits a content block into ordered, bounded-size chunks.
type Chunker interface {
	Chunk(block ContentBlock) ([]Chunk, error)
}

// Generator produces answer text from a fully composed prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
