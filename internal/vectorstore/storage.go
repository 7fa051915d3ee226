package vectorstore

import (
	"context"

	"edurag/internal/domain"
)

// Storage persists chunk embeddings and supports similarity search.
// Init creates the backing collection if absent and fails on a
// dimensionality mismatch. Upsert is idempotent per chunk id. Search
// returns results sorted by descending score with chunk id as tie-break;
// an empty or missing collection yields an empty result, not an error.
// Implementations live in the qdrant and memory subpackages.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []domain.VectorRecord) error
	Search(ctx context.Context, vector []float32, topK int, courseID string) ([]domain.SearchResult, error)
}
