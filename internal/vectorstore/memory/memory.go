// Package memory is an in-memory vector store using brute-force cosine
// similarity. It mirrors the qdrant store's semantics, including
// idempotent upserts keyed by chunk id, and backs tests and local runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"edurag/internal/domain"
)

type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]domain.VectorRecord
}

func NewStorage() *Storage {
	return &Storage{records: map[string]domain.VectorRecord{}}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("memory: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.records) > 0 {
		return fmt.Errorf("memory: dimension mismatch: expected %d, found %d", dimension, s.dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("memory: vector %q dimension mismatch: expected %d got %d",
				r.Chunk.ID, s.dimension, len(r.Vector))
		}
	}
	for _, r := range records {
		s.records[r.Chunk.ID] = r
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int, courseID string) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 10
	}
	results := make([]domain.SearchResult, 0, len(s.records))
	for _, r := range s.records {
		if courseID != "" && r.Chunk.CourseID != courseID {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: r.Chunk, Score: cosine(r.Vector, vector)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Chunk.ID < results[j].Chunk.ID
		}
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Len reports the number of stored records. Used by tests.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Record returns the stored record for a chunk id. Used by tests.
func (s *Storage) Record(chunkID string) (domain.VectorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[chunkID]
	return r, ok
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
