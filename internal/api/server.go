// Package api serves the covenant pipeline over HTTP in server mode.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/a3tai/mcp-pdf-covenants/internal/config"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	service *pdf.Service
	mcp     http.Handler
	log     *slog.Logger
	cfg     *config.Config
}

// NewServer creates and configures the HTTP server. mcpHandler is mounted
// at /mcp when non-nil.
func NewServer(svc *pdf.Service, mcpHandler http.Handler, log *slog.Logger, cfg *config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		service: svc,
		mcp:     mcpHandler,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/documents", s.handleListDocuments)
		r.Post("/structure", s.handleStructure)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/bundle", s.handleBundle)
		r.Get("/bundles/{bundleID}", s.handleGetBundle)
		r.Post("/bookmarks/processed", s.handleMarkBookmarked)
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}

	s.router = r
}

// Run listens on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.cfg.ExtractorTimeout + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", ln.Addr().String(), "directory", s.cfg.PDFDirectory)
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
