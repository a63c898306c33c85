package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/vector"
)

type plainText struct{}

func (plainText) Extract(b []byte) string { return string(b) }

func sampleText(paragraphs int) string {
	var b strings.Builder
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "Paragraph %d discusses retrieval, embeddings and chunk overlap in some detail. ", i)
		b.WriteString("Each sentence adds a few more words so the chunker has boundaries to find.\n\n")
	}
	return b.String()
}

func BenchmarkChunkerSplit(b *testing.B) {
	c := indexer.NewChunker(indexer.DefaultChunkSize, indexer.DefaultChunkOverlap)
	text := sampleText(500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Split(text)
	}
}

func BenchmarkIndexSearch(b *testing.B) {
	const dims, n = 384, 1000
	entries := make([]vector.Entry, n)
	for i := range entries {
		v := make([]float32, dims)
		v[i%dims] = 1
		entries[i] = vector.Entry{Chunk: models.Chunk{ID: fmt.Sprint(i)}, Vector: v}
	}
	idx, err := vector.Restore(dims, entries)
	if err != nil {
		b.Fatal(err)
	}
	query := make([]float32, dims)
	query[7] = 1
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(query, 3)
	}
}

func BenchmarkHashingEmbedder_Embed(b *testing.B) {
	e := embedding.NewHashingEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkIndexerProcess(b *testing.B) {
	idx := indexer.NewIndexer(embedding.NewHashingEmbedder(384), nil, indexer.WithExtractor(plainText{}))
	uploads := []models.Upload{{Name: "bench.pdf", Data: []byte(sampleText(200))}}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Process(ctx, uploads, nil); err != nil {
			b.Fatal(err)
		}
	}
}
