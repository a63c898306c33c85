package session

import (
	"fmt"
	"time"

	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/vector"
)

// record is the serialized form of a Session. Vectors are little-endian float32 bytes.
type record struct {
	ID         string            `json:"id"`
	Status     Status            `json:"status"`
	Pending    []string          `json:"pending,omitempty"`
	Documents  []models.Document `json:"documents,omitempty"`
	CharCount  int               `json:"char_count"`
	ChunkCount int               `json:"chunk_count"`
	Dimensions int               `json:"dimensions,omitempty"`
	Entries    []entryRecord     `json:"entries,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type entryRecord struct {
	Chunk  models.Chunk `json:"chunk"`
	Vector []byte       `json:"vector"`
}

func toRecord(s *Session) record {
	r := record{
		ID:         s.ID,
		Status:     s.Status,
		Pending:    s.Pending,
		Documents:  s.Documents,
		CharCount:  s.CharCount,
		ChunkCount: s.ChunkCount,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.Index != nil {
		r.Dimensions = s.Index.Dimensions()
		for _, e := range s.Index.Entries() {
			r.Entries = append(r.Entries, entryRecord{Chunk: e.Chunk, Vector: vector.EncodeVector(e.Vector)})
		}
	}
	return r
}

func fromRecord(r record) (*Session, error) {
	s := &Session{
		ID:         r.ID,
		Status:     r.Status,
		Pending:    r.Pending,
		Documents:  r.Documents,
		CharCount:  r.CharCount,
		ChunkCount: r.ChunkCount,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Dimensions > 0 {
		entries := make([]vector.Entry, len(r.Entries))
		for i, e := range r.Entries {
			vec, err := vector.DecodeVector(e.Vector)
			if err != nil {
				return nil, fmt.Errorf("chunk %s: %w", e.Chunk.ID, err)
			}
			entries[i] = vector.Entry{Chunk: e.Chunk, Vector: vec}
		}
		idx, err := vector.Restore(r.Dimensions, entries)
		if err != nil {
			return nil, fmt.Errorf("restore index: %w", err)
		}
		s.Index = idx
	}
	if s.Status == StatusReady && !s.Ready() {
		// A partially written record must not present as ready.
		s.Reset()
	}
	return s, nil
}
