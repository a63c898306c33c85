// Package session holds the per-user pipeline state: processing status, extracted documents
// and the built vector index, behind a repository interface with pluggable backends.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/vector"
)

// Status is the session state.
type Status string

const (
	StatusNew           Status = "new"
	StatusWaitingForPDF Status = "waiting_for_pdf"
	StatusProcessing    Status = "processing"
	StatusReady         Status = "ready"
)

// ErrIncomplete is returned by MarkReady when documents or index are missing.
var ErrIncomplete = errors.New("session: ready requires documents and an index")

// Session is one user's state. Documents and Index are both set only in StatusReady.
type Session struct {
	ID         string
	Status     Status
	Pending    []string // names of documents being processed
	Documents  []models.Document
	Index      *vector.Index
	CharCount  int
	ChunkCount int
	UpdatedAt  time.Time
}

// New returns a session in StatusNew.
func New(id string) *Session {
	return &Session{ID: id, Status: StatusNew}
}

// Reset drops documents and index and waits for a new upload.
func (s *Session) Reset() {
	id := s.ID
	*s = Session{ID: id, Status: StatusWaitingForPDF}
}

// BeginProcessing replaces whatever the session held with an in-flight upload of names.
func (s *Session) BeginProcessing(names []string) {
	id := s.ID
	*s = Session{ID: id, Status: StatusProcessing, Pending: append([]string(nil), names...)}
}

// Fail returns a processing session to StatusWaitingForPDF.
func (s *Session) Fail() {
	s.Reset()
}

// MarkReady installs the processed document set. On error the session is left unchanged.
func (s *Session) MarkReady(docs []models.Document, index *vector.Index, charCount, chunkCount int) error {
	if index == nil || len(docs) == 0 {
		return ErrIncomplete
	}
	s.Status = StatusReady
	s.Pending = nil
	s.Documents = append([]models.Document(nil), docs...)
	s.Index = index
	s.CharCount = charCount
	s.ChunkCount = chunkCount
	return nil
}

// Ready reports whether questions and summaries may be served.
func (s *Session) Ready() bool {
	return s.Status == StatusReady && s.Index != nil && len(s.Documents) > 0
}

// DocumentNames returns document names in upload order; while processing, the pending names.
func (s *Session) DocumentNames() []string {
	if s.Status == StatusProcessing {
		return append([]string(nil), s.Pending...)
	}
	names := make([]string, len(s.Documents))
	for i, d := range s.Documents {
		names[i] = d.Name
	}
	return names
}

// Document returns the named document.
func (s *Session) Document(name string) (models.Document, bool) {
	for _, d := range s.Documents {
		if d.Name == name {
			return d, true
		}
	}
	return models.Document{}, false
}

// FullText joins all document texts in upload order, separated by a paragraph break.
func (s *Session) FullText() string {
	texts := make([]string, len(s.Documents))
	for i, d := range s.Documents {
		texts[i] = d.Text
	}
	return strings.Join(texts, "\n\n")
}

// Clone returns a copy that shares only the immutable index.
func (s *Session) Clone() *Session {
	c := *s
	c.Pending = append([]string(nil), s.Pending...)
	c.Documents = append([]models.Document(nil), s.Documents...)
	return &c
}
