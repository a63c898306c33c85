package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/pdfqa/internal/vector"
)

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "Alpha causes Beta.")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "Alpha causes Beta.")
	if len(a) != 64 {
		t.Fatalf("len=%d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding is not deterministic")
		}
	}
	if n := vector.L2Norm(a); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm=%v, want 1", n)
	}
}

func TestHashingEmbedder_SharedWordsScoreHigher(t *testing.T) {
	e := NewHashingEmbedder(384)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "what causes gamma")
	near, _ := e.Embed(ctx, "Beta causes Gamma.")
	far, _ := e.Embed(ctx, "The weather in Lisbon is mild.")
	if vector.InnerProduct(q, near) <= vector.InnerProduct(q, far) {
		t.Error("text sharing words with the query should be nearer")
	}
}

func TestHashingEmbedder_Defaults(t *testing.T) {
	e := NewHashingEmbedder(0)
	if e.Dimensions() != 384 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
	v, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 384 {
		t.Errorf("len=%d", len(v))
	}
}

func TestWords(t *testing.T) {
	got := Words("Hello, World! 42 times")
	want := []string{"hello", "world", "42", "times"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
