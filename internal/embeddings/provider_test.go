package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/xiy/decay-mcp/internal/config"
)

func TestHashProvider_Deterministic(t *testing.T) {
	t.Parallel()
	p := NewHashProvider(384)

	a, err := p.Embed(context.Background(), "the sky is blue")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := p.Embed(context.Background(), "the sky is blue")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(a) != 384 {
		t.Fatalf("expected 384 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashProvider_UnitVector(t *testing.T) {
	t.Parallel()
	p := NewHashProvider(64)
	vec, err := p.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-4 {
		t.Fatalf("expected unit vector, squared norm = %v", norm)
	}
}

type countingProvider struct {
	inner Provider
	calls int
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingProvider) Dimensions() int { return c.inner.Dimensions() }

func TestCachedProvider_AvoidsRepeatEmbeds(t *testing.T) {
	t.Parallel()
	counting := &countingProvider{inner: NewHashProvider(32)}
	cached, err := NewCachedProvider(counting, 128)
	if err != nil {
		t.Fatalf("NewCachedProvider() error = %v", err)
	}

	if _, err := cached.Embed(context.Background(), "repeated text"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	cached.cache.Wait()
	for i := 0; i < 5; i++ {
		if _, err := cached.Embed(context.Background(), "repeated text"); err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
	}
	if counting.calls != 1 {
		t.Fatalf("expected 1 underlying embed call, got %d", counting.calls)
	}
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	t.Parallel()
	_, err := NewFromConfig(config.EmbeddingConfig{Provider: "quantum"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
