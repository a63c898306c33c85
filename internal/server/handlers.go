package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
	"go.uber.org/zap"
)

//go:embed web/index.html
var indexHTML []byte

const (
	multipartMemory   = 32 << 20
	maxUploadFiles    = 20
	multipartOverhead = 1 << 20
)

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	Documents  []string `json:"documents"`
	CharCount  int      `json:"char_count"`
	ChunkCount int      `json:"chunk_count"`
	Skipped    []string `json:"skipped,omitempty"`
}

func newSessionView(sess *session.Session) sessionView {
	return sessionView{
		ID:         sess.ID,
		Status:     string(sess.Status),
		Documents:  sess.DocumentNames(),
		CharCount:  sess.CharCount,
		ChunkCount: sess.ChunkCount,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type chunkView struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

type askResponse struct {
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Failed    bool        `json:"failed"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Sources   []string    `json:"sources"`
	Chunks    []chunkView `json:"chunks"`
}

type summarizeRequest struct {
	Document string `json:"document"`
	Tone     string `json:"tone"`
}

type summarizeResponse struct {
	Document  string `json:"document,omitempty"`
	Tone      string `json:"tone"`
	Label     string `json:"label"`
	Summary   string `json:"summary"`
	Failed    bool   `json:"failed"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Load(r.Context(), s.store, sessionID(r))
	if err != nil {
		s.logger.Error("load session failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Update(r.Context(), s.store, s.locker, sessionID(r), func(sess *session.Session) error {
		sess.Reset()
		return nil
	})
	if err != nil {
		s.logger.Error("clear session failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if limit := s.uploadBodyLimit(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload is too large (limit %d bytes)", tooLarge.Limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	for _, fh := range headers {
		if !isPDF(fh) {
			s.respondError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("%s is not a PDF", fh.Filename))
			return
		}
		if s.config.MaxUploadBytes > 0 && fh.Size > s.config.MaxUploadBytes {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("%s is too large (limit %d bytes)", fh.Filename, s.config.MaxUploadBytes))
			return
		}
	}

	uploads := make([]models.Upload, 0, len(headers))
	names := make([]string, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		uploads = append(uploads, up)
		names = append(names, up.Name)
	}

	if _, err := session.Update(r.Context(), s.store, s.locker, id, func(sess *session.Session) error {
		sess.BeginProcessing(names)
		return nil
	}); err != nil {
		s.logger.Error("save session failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Debug("processing upload", zap.String("session", id), zap.Strings("files", names))
	res, procErr := s.indexer.Process(r.Context(), uploads, nil)

	// The session must leave processing even when the client has gone away.
	sess, err := session.Update(context.WithoutCancel(r.Context()), s.store, s.locker, id, func(sess *session.Session) error {
		if procErr != nil {
			sess.Fail()
			return nil
		}
		return sess.MarkReady(res.Documents, res.Index, res.Chars, res.Chunks)
	})
	if err != nil {
		s.logger.Error("save session failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch {
	case errors.Is(procErr, indexer.ErrNoText):
		s.respondError(w, http.StatusUnprocessableEntity,
			"Could not extract text from PDF. Make sure your PDF contains readable text (not just images).")
		return
	case errors.Is(procErr, indexer.ErrIndexUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, "Could not create vector database. Please try again.")
		return
	case procErr != nil:
		s.logger.Error("document processing failed", zap.Error(procErr))
		s.respondError(w, http.StatusInternalServerError, procErr.Error())
		return
	}

	view := newSessionView(sess)
	view.Skipped = res.Skipped
	s.respondJSON(w, http.StatusOK, view)
}

// uploadBodyLimit bounds a whole multipart request: maxUploadFiles files at the
// per-file ceiling plus room for part headers and boundaries.
func (s *Server) uploadBodyLimit() int64 {
	if s.config.MaxUploadBytes <= 0 {
		return 0
	}
	return s.config.MaxUploadBytes*maxUploadFiles + multipartOverhead
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := session.Load(r.Context(), s.store, sessionID(r))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.String("session", sess.ID), zap.String("question", req.Question))

	ans, err := s.rag.Answer(r.Context(), sess, req.Question)
	if err != nil {
		s.respondRAGError(w, err)
		return
	}
	resp := askResponse{
		Question:  ans.Question,
		Answer:    ans.Text,
		Failed:    ans.Result.Failed(),
		ErrorKind: string(ans.Result.Kind),
		Sources:   ans.Sources,
		Chunks:    make([]chunkView, len(ans.Chunks)),
	}
	for i, ch := range ans.Chunks {
		resp.Chunks[i] = chunkView{Source: ch.Source(), Content: ch.Content}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := session.Load(r.Context(), s.store, sessionID(r))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sum, err := s.rag.Summarize(r.Context(), sess, req.Document, rag.ParseTone(req.Tone), 0)
	if err != nil {
		s.respondRAGError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summarizeResponse{
		Document:  sum.Document,
		Tone:      string(sum.Tone),
		Label:     sum.Tone.Label(),
		Summary:   sum.Text,
		Failed:    sum.Result.Failed(),
		ErrorKind: string(sum.Result.Kind),
	})
}

func (s *Server) respondRAGError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rag.ErrNotReady):
		s.respondError(w, http.StatusConflict, "Please upload and process a PDF first.")
	case errors.Is(err, rag.ErrEmptyQuestion):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rag.ErrUnknownDocument):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// isPDF accepts a file by declared content type or by extension.
func isPDF(fh *multipart.FileHeader) bool {
	if strings.HasPrefix(fh.Header.Get("Content-Type"), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(fh.Filename), ".pdf")
}

func readUpload(fh *multipart.FileHeader) (models.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return models.Upload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return models.Upload{
		Name:        filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
