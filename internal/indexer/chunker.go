// Package indexer turns uploaded documents into a searchable vector index:
// normalize, chunk, embed, index.
package indexer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/pdfqa/internal/models"
)

// Default chunking parameters, in characters (Unicode code points).
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// separators in decreasing granularity; a chunk boundary is placed just after one of them.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Chunker splits text into overlapping character windows, breaking on the coarsest
// separator available inside each window.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// Non-positive size falls back to the default; overlap that does not fit in a chunk is reduced to size/4.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Size returns the maximum chunk length.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of characters shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split splits text into chunks in document order. Empty text yields nil.
// Text no longer than the chunk size yields exactly one chunk equal to the text.
func (c *Chunker) Split(text string) []models.Chunk {
	return c.SplitWithMetadata(text, nil)
}

// SplitWithMetadata is Split with a copy of metadata attached to every chunk.
func (c *Chunker) SplitWithMetadata(text string, metadata map[string]string) []models.Chunk {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	prefix := chunkIDPrefix(metadata)
	chunks := make([]models.Chunk, 0, len(runes)/(c.chunkSize-c.chunkOverlap)+1)
	start := 0
	for {
		end := start + c.chunkSize
		last := end >= len(runes)
		if last {
			end = len(runes)
		} else {
			end = c.breakPoint(runes, start, end)
		}
		chunks = append(chunks, models.Chunk{
			ID:       fmt.Sprintf("%s%s", prefix, uuid.New().String()[:8]),
			Content:  string(runes[start:end]),
			Index:    len(chunks),
			Metadata: copyMetadata(metadata),
		})
		if last {
			return chunks
		}
		start = end - c.chunkOverlap
	}
}

// breakPoint returns the end of the chunk starting at start with hard limit limit. The end is
// placed right after the coarsest separator found in (start+overlap, limit], so that the next
// chunk (starting at end-overlap) always advances.
func (c *Chunker) breakPoint(runes []rune, start, limit int) int {
	window := string(runes[start+c.chunkOverlap+1 : limit])
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		// Convert the byte offset of the separator end back to a rune offset.
		return start + c.chunkOverlap + 1 + len([]rune(window[:idx+len(sep)]))
	}
	return limit
}

func chunkIDPrefix(metadata map[string]string) string {
	if src := metadata[models.MetaSource]; src != "" {
		return src + "_"
	}
	return ""
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
