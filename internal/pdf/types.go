package pdf

import (
	"time"

	"github.com/a3tai/mcp-pdf-covenants/internal/bookmarks"
	"github.com/a3tai/mcp-pdf-covenants/internal/bundle"
	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
	"github.com/a3tai/mcp-pdf-covenants/internal/intelligence"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request types

// PDFValidateFileRequest represents a request to validate a PDF file
type PDFValidateFileRequest struct {
	Path string `json:"path"`
}

// PDFSearchDirectoryRequest represents a request to search for PDF files
type PDFSearchDirectoryRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
}

// PDFAnalyzeRequest asks for the structure and covenant extraction of one
// document. An empty Classification uses the configured default.
type PDFAnalyzeRequest struct {
	Path           string `json:"path"`
	Classification string `json:"classification,omitempty"`
}

// PDFBundleRequest asks for a bundle and optionally a review report.
type PDFBundleRequest struct {
	Path           string   `json:"path"`
	Classification string   `json:"classification,omitempty"`
	Notes          string   `json:"notes,omitempty"` // markdown
	PinnedTerms    []string `json:"pinned_terms,omitempty"`
	ReportPath     string   `json:"report_path,omitempty"`

	OmitDocumentData bool `json:"omit_document_data,omitempty"`
}

// PDFMarkBookmarksRequest records that a document's bookmarks were processed
type PDFMarkBookmarksRequest struct {
	Path string `json:"path"`
}

// Result types

// PDFValidateFileResult represents the result of validating a PDF file
type PDFValidateFileResult struct {
	Valid   bool   `json:"valid"`
	Path    string `json:"path"`
	Message string `json:"message,omitempty"`
}

// PDFSearchDirectoryResult represents the result of searching for PDF files
type PDFSearchDirectoryResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
	Truncated   bool       `json:"truncated,omitempty"`
}

// Analysis is the in-memory outcome of the pipeline for one document.
// Document and Outcome hold the frozen trees and are not serialized.
type Analysis struct {
	Path           string
	Title          string
	Properties     map[string]string
	Document       *structure.Document
	Bookmarks      bookmarks.Report
	BookmarkState  bookmarks.State
	Classification intelligence.Classification
	Outcome        *extract.Outcome
	Anomalies      []*pdferrors.StructureError
	Elapsed        time.Duration
}

// DefinitionInfo is one defined term
type DefinitionInfo struct {
	Term       string `json:"term"`
	PageNumber int    `json:"page_number"`
	Section    string `json:"section,omitempty"`
}

// AnomalyInfo is a recoverable problem found while structuring
type AnomalyInfo struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Context    string `json:"context,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Extractor  string `json:"extractor,omitempty"`
}

// PDFStructureResult is the logical outline of a document
type PDFStructureResult struct {
	Path          string               `json:"path"`
	Title         string               `json:"title"`
	Pages         int                  `json:"pages"`
	SkippedPages  []int                `json:"skipped_pages,omitempty"`
	TOC           []structure.TOCEntry `json:"toc"`
	Definitions   []DefinitionInfo     `json:"definitions"`
	BookmarkState bookmarks.State      `json:"bookmark_state"`
	Bookmarks     bookmarks.Report     `json:"bookmarks"`
	Anomalies     []AnomalyInfo        `json:"anomalies"`
}

// CovenantInfo is one extracted clause
type CovenantInfo struct {
	Type       extract.ClauseType `json:"type"`
	Key        string             `json:"key"`
	Value      string             `json:"value"`
	Section    string             `json:"section,omitempty"`
	PageNumber int                `json:"page_number"`
	Extractor  string             `json:"extractor"`
	Text       string             `json:"text"`
}

// FailureInfo is an extractor that did not complete
type FailureInfo struct {
	Extractor string             `json:"extractor"`
	Type      extract.ClauseType `json:"clause_type"`
	Kind      string             `json:"kind"`
	Message   string             `json:"message"`
}

// PDFCovenantsResult is the extraction outcome of a document
type PDFCovenantsResult struct {
	Path           string                      `json:"path"`
	Classification intelligence.Classification `json:"classification"`
	Results        []CovenantInfo              `json:"results"`
	Failures       []FailureInfo               `json:"failures"`
	PerExtractor   map[string]int              `json:"per_extractor"`
	Elapsed        string                      `json:"elapsed"`
}

// PDFBundleResult carries a built bundle
type PDFBundleResult struct {
	Path       string         `json:"path"`
	BundleID   string         `json:"bundle_id"`
	Archived   bool           `json:"archived"`
	ReportPath string         `json:"report_path,omitempty"`
	Bundle     *bundle.Bundle `json:"bundle"`
}

// PDFMarkBookmarksResult is the state after marking
type PDFMarkBookmarksResult struct {
	Path      string          `json:"path"`
	State     bookmarks.State `json:"bookmark_state"`
	Persisted bool            `json:"persisted"`
}

// PDFServerInfoResult represents server information and available tools
type PDFServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	Workers           int        `json:"workers"`
	ExtractorTimeout  string     `json:"extractor_timeout"`
	Classification    string     `json:"default_classification"`
	Classifications   []string   `json:"classifications"`
	Rules             []string   `json:"classification_rules"`
	ArchiveEnabled    bool       `json:"archive_enabled"`
	DocumentCache     CacheStats `json:"document_cache"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	UsageGuidance     string     `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"`
}
