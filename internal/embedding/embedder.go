// Package embedding turns text into fixed-dimension vectors. Every implementation is
// deterministic for a fixed model: identical input yields an identical vector.
package embedding

import "context"

// Embedder produces L2-normalized vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
