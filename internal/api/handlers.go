package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-covenants/internal/bundle"
	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-covenants/internal/store"
)

const maxRequestBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	req := pdf.PDFSearchDirectoryRequest{
		Directory: r.URL.Query().Get("directory"),
		Query:     r.URL.Query().Get("query"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Limit = n
		}
	}

	res, err := s.service.PDFSearchDirectory(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	var req pdf.PDFAnalyzeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.service.PDFStructureFile(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req pdf.PDFAnalyzeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.service.PDFExtractCovenants(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	var req pdf.PDFBundleRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.service.PDFBundleFile(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type bundleRecord struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	CreatedAt time.Time      `json:"created_at"`
	Bundle    *bundle.Bundle `json:"bundle"`
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bundleID"))
	if err != nil {
		jsonError(w, "invalid bundle id", http.StatusBadRequest)
		return
	}
	rec, err := s.service.LoadBundle(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bundleRecord{
		ID:        rec.ID.String(),
		Path:      rec.Path,
		CreatedAt: rec.CreatedAt,
		Bundle:    rec.Bundle,
	})
}

func (s *Server) handleMarkBookmarked(w http.ResponseWriter, r *http.Request) {
	var req pdf.PDFMarkBookmarksRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.service.PDFMarkBookmarked(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps service errors to HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	jsonError(w, err.Error(), code)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, security.ErrOutsideRoot):
		return http.StatusForbidden
	case errors.Is(err, extract.ErrUnknownClassification):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, pdf.ErrArchiveDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case pdferrors.TypeOf(err) == pdferrors.ErrorTypeInvalidDocument:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
