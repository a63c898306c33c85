package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

type countingEmbedder struct {
	*HashingEmbedder
	calls int
	texts int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.texts++
	return c.HashingEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	return c.HashingEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashingEmbedder: NewHashingEmbedder(8)}
	e := WithCache(inner, 10)
	ctx := context.Background()

	first, err := e.Embed(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := e.Embed(ctx, "alpha")
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached vector differs")
		}
	}

	vecs, err := e.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("len=%d", len(vecs))
	}
	if inner.texts != 3 {
		t.Errorf("only the two misses should reach the inner embedder, texts=%d", inner.texts)
	}
	if WithCache(inner, 0) != Embedder(inner) {
		t.Error("zero capacity should return the embedder unchanged")
	}
}
