// Package embeddings turns text into fixed-length vectors.
//
// Providers are assumed deterministic: the same text always yields the
// same vector, which is what makes the ristretto cache in cache.go safe.
package embeddings

import (
	"context"
	"fmt"

	"github.com/xiy/decay-mcp/internal/config"
)

// Provider converts text to an embedding vector of fixed dimensionality.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NewFromConfig builds the configured provider, wrapped in a cache when
// cache_size is non-zero.
func NewFromConfig(cfg config.EmbeddingConfig) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "hash":
		p = NewHashProvider(cfg.Dimensions)
	case "ollama":
		p = NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "openai":
		p = NewOpenAIProvider(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		return NewCachedProvider(p, cfg.CacheSize)
	}
	return p, nil
}
