// Package extract provides plain-text extraction from PDF documents.
package extract

import (
	"bytes"
	"fmt"

	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// Extractor turns raw document bytes into plain text.
type Extractor struct {
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report extraction failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Extract returns the text of all pages of a PDF in document order. Any failure (non-PDF input,
// malformed or encrypted content, zero pages) is logged and yields "". It never panics.
func (e *Extractor) Extract(content []byte) string {
	text, err := e.ExtractPDF(content)
	if err != nil {
		e.logger.Error("PDF extraction error", zap.Int("bytes", len(content)), zap.Error(err))
		return ""
	}
	return text
}

// ExtractPDF is Extract with the failure reason exposed.
func (e *Extractor) ExtractPDF(content []byte) (text string, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(content, "\x00\t\r\n "), pdfMagic) {
		return "", fmt.Errorf("not a PDF document")
	}
	// The PDF reader panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	return extractPDF(content)
}
