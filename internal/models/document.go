// Package models defines core data structures for uploaded documents and their chunks.
package models

// MetaSource is the chunk metadata key holding the originating document name.
const MetaSource = "source"

// Upload is one file received from a front-end before any processing.
type Upload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// Document is an uploaded PDF whose text has been extracted.
// Name is unique within a session.
type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Chunk is a contiguous text segment of a document, the unit of retrieval.
// Chunks are immutable once created.
type Chunk struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Index    int               `json:"index"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the document name the chunk was cut from, or "" when untagged.
func (c Chunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetaSource]
}

// Sources returns the distinct source names of chunks in first-seen order.
// Untagged chunks are skipped.
func Sources(chunks []Chunk) []string {
	seen := make(map[string]bool, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		src := ch.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}
