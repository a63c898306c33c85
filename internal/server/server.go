// Package server provides the web front-end and JSON API for pdfqa.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// requestTimeout covers one upload (extract, embed) or one completion round trip.
const requestTimeout = 3 * time.Minute

// Server is the HTTP server for the web front-end.
type Server struct {
	indexer *indexer.Indexer
	rag     *rag.Service
	store   session.Store
	locker  *session.Locker
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	idx *indexer.Indexer,
	svc *rag.Service,
	store session.Store,
	locker *session.Locker,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if locker == nil {
		locker = session.NewLocker()
	}
	return &Server{
		indexer: idx,
		rag:     svc,
		store:   store,
		locker:  locker,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionCookie)
		r.Get("/session", s.handleGetSession)
		r.Delete("/session", s.handleClearSession)
		r.Post("/documents", s.handleUpload)
		r.Post("/ask", s.handleAsk)
		r.Post("/summarize", s.handleSummarize)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
