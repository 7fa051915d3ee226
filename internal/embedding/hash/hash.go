// Package hash implements a local, dependency-free embedder using feature
// hashing. It exists for offline indexing runs and tests: vectors are
// deterministic, fixed-dimension and L2-normalized, so cosine scores
// behave like token-overlap similarity.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

type Embedder struct {
	dimension int
}

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string   { return "hash" }
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		// One hash bit decides the sign so collisions tend to cancel.
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
