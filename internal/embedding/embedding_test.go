package embedding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/memorix-dev/memorix-core/internal/idgen"
)

func TestNullProviderReturnsNilFromEveryAccessor(t *testing.T) {
	v, err := Null.Embed(context.Background(), "hello")
	if err != nil || v != nil {
		t.Errorf("expected nil, nil; got %v, %v", v, err)
	}
}

func TestEmbedBatchEmptyInputSkipsProvider(t *testing.T) {
	c, err := NewCache(Null, filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	out, err := c.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}

func TestCacheHitsAvoidRecompute(t *testing.T) {
	provider := NewDeterministicTestProvider(8)
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := NewCache(provider, path)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	v1, err := c.Embed(context.Background(), "auth flow")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := c.Embed(context.Background(), "auth flow")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v1) != len(v2) {
		t.Fatalf("expected equal-length vectors")
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected identical cached vector at %d: %v vs %v", i, v1, v2)
		}
	}
}

func TestCacheFlushAndReload(t *testing.T) {
	provider := NewDeterministicTestProvider(4)
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := NewCache(provider, path)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	want, err := c.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded, err := NewCache(provider, path)
	if err != nil {
		t.Fatalf("NewCache reload: %v", err)
	}
	got, ok := reloaded.get(idgen.CacheKey("hello world"))
	if !ok {
		t.Fatal("expected reload to find the cached entry")
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("reloaded vector mismatch at %d", i)
		}
	}
}

func TestDimensionMismatchIsFatal(t *testing.T) {
	provider := &fixedVectorProvider{dims: 4, returnLen: 3}
	c, err := NewCache(provider, filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

type fixedVectorProvider struct {
	dims      int
	returnLen int
}

func (p *fixedVectorProvider) Name() string    { return "fixed" }
func (p *fixedVectorProvider) Dimensions() int { return p.dims }
func (p *fixedVectorProvider) Embed(context.Context, string) ([]float32, error) {
	return make([]float32, p.returnLen), nil
}
func (p *fixedVectorProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.returnLen)
	}
	return out, nil
}
