package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// HashProvider produces deterministic pseudo-random unit vectors from a
// text hash. It needs no model or network and is the default provider:
// good enough for exercising decay and retrieval locally, not a semantic
// embedding.
type HashProvider struct {
	dims int
}

// NewHashProvider creates a hash-based provider. Zero or negative dims
// falls back to 384, matching the all-MiniLM-L6-v2 layout.
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = 384
	}
	return &HashProvider{dims: dims}
}

// Embed derives a unit vector from the FNV hash of text, expanded through
// a linear congruential generator.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, p.dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

func (p *HashProvider) Dimensions() int { return p.dims }

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
