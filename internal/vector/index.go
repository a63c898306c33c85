// Package vector provides an in-memory chunk index with brute-force cosine similarity search.
package vector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/pdfqa/internal/models"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyVector is returned when a chunk is added without an embedding.
	ErrEmptyVector = errors.New("empty vector")
)

// Entry is one indexed chunk with its embedding.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Hit is a single search result.
type Hit struct {
	Chunk models.Chunk
	Score float64 // inner product; cosine similarity for normalized vectors
}

// Index is an embedding-addressable collection of chunks. Vectors are expected to be
// L2-normalized so that inner product equals cosine similarity. Entries are only ever
// appended; a changed document set means building a new Index.
type Index struct {
	dimensions int
	entries    []Entry
	mu         sync.RWMutex
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Index{dimensions: dimensions}, nil
}

// Restore rebuilds an index from previously exported entries without re-embedding.
func Restore(dimensions int, entries []Entry) (*Index, error) {
	idx, err := NewIndex(dimensions)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		chunks[i] = e.Chunk
		vectors[i] = e.Vector
	}
	if err := idx.Add(chunks, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add appends chunks with their vectors in order. Either all are added or none.
func (m *Index) Add(chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	added := make([]Entry, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) == 0 {
			return fmt.Errorf("chunk %s: %w", ch.ID, ErrEmptyVector)
		}
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("chunk %s: %w: got %d, expected %d", ch.ID, ErrDimensionMismatch, len(vectors[i]), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		added[i] = Entry{Chunk: ch, Vector: vec}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, added...)
	return nil
}

// Search returns up to k chunks nearest to query, nearest first. Equal scores keep insertion order.
func (m *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query: %w: got %d, expected %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(m.entries))
	for i, e := range m.entries {
		hits[i] = Hit{Chunk: e.Chunk, Score: InnerProduct(query, e.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Entries returns a copy of the indexed entries in insertion order.
func (m *Index) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Chunks returns the indexed chunks in insertion order.
func (m *Index) Chunks() []models.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Chunk, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Chunk
	}
	return out
}

// Dimensions returns the vector dimension.
func (m *Index) Dimensions() int {
	return m.dimensions
}

// Size returns the number of indexed chunks.
func (m *Index) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
