// Package rag answers questions and writes summaries over a ready session: retrieval-grounded
// answers from the session's index, and tone-prefixed summaries from the raw document text.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/pdfqa/internal/completion"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/session"
	"github.com/hyperjump/pdfqa/internal/vector"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrNotReady is returned when the session has no processed documents.
	ErrNotReady = errors.New("no document is ready; upload a PDF first")
	// ErrUnknownDocument is returned when a summary names a document the session does not hold.
	ErrUnknownDocument = errors.New("unknown document")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Retriever finds the chunks of index nearest to query.
type Retriever interface {
	Search(ctx context.Context, index *vector.Index, query string, k int) ([]models.Chunk, error)
}

// Answer is a grounded answer with its provenance.
type Answer struct {
	Question string
	Text     string // generated text, or the completion failure message
	Result   completion.Result
	Sources  []string // distinct source documents, first-seen order
	Chunks   []models.Chunk
	Prompt   string
}

// Summary is a generated summary.
type Summary struct {
	Document  string // "" when all documents were summarized
	Tone      Tone
	Text      string
	Result    completion.Result
	Truncated bool
	Prompt    string
}

// Service is the retrieval-QA orchestrator and summarizer.
type Service struct {
	retriever Retriever
	completer completion.Completer
	topK      int
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTopK sets how many chunks ground an answer.
func WithTopK(k int) Option {
	return func(s *Service) { s.topK = k }
}

// NewService creates a Service.
func NewService(retriever Retriever, completer completion.Completer, opts ...Option) *Service {
	s := &Service{retriever: retriever, completer: completer, topK: 3}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	if s.topK <= 0 {
		s.topK = 3
	}
	return s
}

// Answer retrieves the top-k chunks for question from the session's current index, stuffs them
// into one prompt and calls the completion backend once. Completion failures are not errors:
// they come back as Answer.Text with Answer.Result carrying the kind.
func (s *Service) Answer(ctx context.Context, sess *session.Session, question string) (*Answer, error) {
	if sess == nil || !sess.Ready() {
		return nil, ErrNotReady
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	chunks, err := s.retriever.Search(ctx, sess.Index, question, s.topK)
	if err != nil {
		s.logger.Error("retrieval failed", zap.String("session", sess.ID), zap.Error(err))
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := BuildAnswerPrompt(question, chunks)
	res := s.completer.Complete(ctx, prompt)
	s.logger.Debug("question answered",
		zap.String("session", sess.ID),
		zap.Int("chunks", len(chunks)),
		zap.Bool("failed", res.Failed()))

	return &Answer{
		Question: question,
		Text:     res.String(),
		Result:   res,
		Sources:  models.Sources(chunks),
		Chunks:   chunks,
		Prompt:   prompt,
	}, nil
}

// Summarize summarizes the named document, or all documents in upload order when name is "".
// maxChars > 0 truncates the document text first. The completion result is returned verbatim.
func (s *Service) Summarize(ctx context.Context, sess *session.Session, name string, tone Tone, maxChars int) (*Summary, error) {
	if sess == nil || !sess.Ready() {
		return nil, ErrNotReady
	}
	tone = ParseTone(string(tone))

	var text string
	if name == "" {
		text = sess.FullText()
	} else {
		doc, ok := sess.Document(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, name)
		}
		text = doc.Text
	}

	truncated := false
	if maxChars > 0 {
		cut := utils.Truncate(text, maxChars)
		truncated = cut != text
		text = cut
	}

	prompt := BuildSummaryPrompt(tone, text)
	res := s.completer.Complete(ctx, prompt)
	s.logger.Debug("summary generated",
		zap.String("session", sess.ID),
		zap.String("tone", string(tone)),
		zap.Bool("truncated", truncated),
		zap.Bool("failed", res.Failed()))

	return &Summary{
		Document:  name,
		Tone:      tone,
		Text:      res.String(),
		Result:    res,
		Truncated: truncated,
		Prompt:    prompt,
	}, nil
}

// WantsSummary reports whether free text is really a summary request.
func WantsSummary(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range []string{"summary", "summarize", "sum up"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
