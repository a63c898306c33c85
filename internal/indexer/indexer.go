package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/extract"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/vector"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

var (
	// ErrNoText means no uploaded document yielded any text.
	ErrNoText = errors.New("could not extract text from the document")
	// ErrNoChunks means Build was called with nothing to index.
	ErrNoChunks = errors.New("no chunks to index")
	// ErrIndexUnavailable means the embedding backend failed while building the index.
	ErrIndexUnavailable = errors.New("could not build index")
)

// Stage names a step of Process, reported through the progress callback.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageChunking   Stage = "chunking"
	StageIndexing   Stage = "indexing"
)

// Result is the outcome of processing an upload set.
type Result struct {
	Documents []models.Document
	Index     *vector.Index
	Chunks    int
	Chars     int
	Skipped   []string // uploads whose text could not be extracted
}

// TextExtractor turns raw document bytes into text; "" means extraction failed.
type TextExtractor interface {
	Extract(content []byte) string
}

// Indexer builds and queries per-session vector indices.
type Indexer struct {
	embedder  embedding.Embedder
	chunker   *Chunker
	extractor TextExtractor
	topK      int
	logger    *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger for build and extraction failures.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithTopK sets the default number of chunks returned by Search.
func WithTopK(k int) Option {
	return func(idx *Indexer) { idx.topK = k }
}

// WithExtractor replaces the default PDF extractor.
func WithExtractor(e TextExtractor) Option {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer. A nil chunker uses the default size and overlap.
func NewIndexer(embedder embedding.Embedder, chunker *Chunker, opts ...Option) *Indexer {
	idx := &Indexer{
		embedder: embedder,
		chunker:  chunker,
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	if idx.chunker == nil {
		idx.chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	if idx.extractor == nil {
		idx.extractor = extract.NewExtractor(extract.WithLogger(idx.logger))
	}
	if idx.topK <= 0 {
		idx.topK = DefaultTopK
	}
	return idx
}

// Chunker returns the chunker used by Process.
func (idx *Indexer) Chunker() *Chunker {
	return idx.chunker
}

// Dimensions returns the embedding dimension of built indices.
func (idx *Indexer) Dimensions() int {
	return idx.embedder.Dimensions()
}

// Build embeds every chunk and returns a new index. An empty chunk set is ErrNoChunks;
// any embedding failure is logged and reported as ErrIndexUnavailable.
func (idx *Indexer) Build(ctx context.Context, chunks []models.Chunk) (*vector.Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		idx.logger.Error("Error creating vector store", zap.Int("chunks", len(chunks)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	index, err := vector.NewIndex(idx.embedder.Dimensions())
	if err == nil {
		err = index.Add(chunks, vectors)
	}
	if err != nil {
		idx.logger.Error("Error creating vector store", zap.Int("chunks", len(chunks)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	idx.logger.Debug("vector index built", zap.Int("chunks", index.Size()))
	return index, nil
}

// Search returns up to k chunks of index nearest to query, nearest first.
// A non-positive k uses the configured top-k.
func (idx *Indexer) Search(ctx context.Context, index *vector.Index, query string, k int) ([]models.Chunk, error) {
	if index == nil {
		return nil, errors.New("search on nil index")
	}
	if k <= 0 {
		k = idx.topK
	}
	q, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := index.Search(q, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk
	}
	return out, nil
}

// Process runs extract, normalize, chunk and build strictly in sequence over an upload set.
// Uploads without extractable text are skipped; if none remain the result is ErrNoText.
// progress, when non-nil, is called as each stage begins.
func (idx *Indexer) Process(ctx context.Context, uploads []models.Upload, progress func(Stage)) (*Result, error) {
	report := func(s Stage) {
		if progress != nil {
			progress(s)
		}
	}

	report(StageExtracting)
	res := &Result{}
	names := make(map[string]bool, len(uploads))
	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := Normalize(idx.extractor.Extract(up.Data))
		if text == "" {
			idx.logger.Warn("no text extracted", zap.String("document", up.Name))
			res.Skipped = append(res.Skipped, up.Name)
			continue
		}
		name := uniqueName(up.Name, names)
		res.Documents = append(res.Documents, models.Document{Name: name, Text: text})
		res.Chars += utf8.RuneCountInString(text)
	}
	if len(res.Documents) == 0 {
		return nil, ErrNoText
	}

	report(StageChunking)
	var chunks []models.Chunk
	for _, doc := range res.Documents {
		chunks = append(chunks, idx.chunker.SplitWithMetadata(doc.Text, map[string]string{models.MetaSource: doc.Name})...)
	}
	res.Chunks = len(chunks)

	report(StageIndexing)
	index, err := idx.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	res.Index = index

	idx.logger.Info("documents processed",
		zap.Int("documents", len(res.Documents)),
		zap.Int("chunks", res.Chunks),
		zap.Int("chars", res.Chars),
		zap.Strings("skipped", res.Skipped))
	return res, nil
}

// uniqueName returns name, suffixed " (n)" when already taken, and records it.
func uniqueName(name string, taken map[string]bool) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "document.pdf"
	}
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = name + " (" + strconv.Itoa(n) + ")"
	}
	taken[candidate] = true
	return candidate
}
