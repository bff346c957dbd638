package pdf

import (
	"context"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-covenants/internal/descriptions"
	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
)

const (
	// directoryListingLimit caps the files listed by server info
	directoryListingLimit = 100
	directoryCacheTTL     = 5 * time.Minute
)

// directoryCache holds the last listing of the configured directory
type directoryCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	files      []FileInfo
	lastUpdate time.Time
}

func (c *directoryCache) get(now time.Time) ([]FileInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastUpdate.IsZero() || now.Sub(c.lastUpdate) > c.ttl {
		return nil, false
	}
	return c.files, true
}

func (c *directoryCache) set(files []FileInfo, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files, c.lastUpdate = files, now
}

// serverInfo assembles the server description with a cached listing
type serverInfo struct {
	service *Service
	cache   *directoryCache
}

func newServerInfo(s *Service) *serverInfo {
	return &serverInfo{service: s, cache: &directoryCache{ttl: directoryCacheTTL}}
}

func (p *serverInfo) get(ctx context.Context) (*PDFServerInfoResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := p.service

	files, ok := p.cache.get(time.Now())
	if !ok {
		res, err := s.search.SearchDirectory(PDFSearchDirectoryRequest{Limit: directoryListingLimit})
		if err != nil {
			// a missing directory is reported as empty
			s.log.Warn("directory listing failed", "error", err)
			files = []FileInfo{}
		} else {
			files = res.Files
		}
		p.cache.set(files, time.Now())
	}

	classes := []string{string(extract.ClassAuto)}
	for _, c := range extract.Classifications() {
		classes = append(classes, string(c))
	}

	return &PDFServerInfoResult{
		ServerName:        s.cfg.ServerName,
		Version:           s.cfg.Version,
		DefaultDirectory:  s.pathValidator.Root(),
		MaxFileSize:       s.cfg.MaxFileSize,
		Workers:           s.cfg.Workers,
		ExtractorTimeout:  s.cfg.ExtractorTimeout.String(),
		Classification:    string(s.defaultClass),
		Classifications:   classes,
		Rules:             s.classifier.Rules(),
		ArchiveEnabled:    s.archive != nil,
		DocumentCache:     s.documents.stats(),
		AvailableTools:    availableTools(),
		DirectoryContents: files,
		UsageGuidance:     usageGuidance,
	}, nil
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "pdf_validate_file",
			Description: descriptions.GetToolDescription("pdf_validate_file"),
			Parameters:  "path (required): PDF path, relative to the configured directory or absolute inside it",
		},
		{
			Name:        "pdf_search_directory",
			Description: descriptions.GetToolDescription("pdf_search_directory"),
			Parameters:  "directory (optional): subdirectory to search; query (optional): words of the file name",
		},
		{
			Name:        "pdf_server_info",
			Description: descriptions.GetToolDescription("pdf_server_info"),
			Parameters:  "none",
		},
		{
			Name:        "pdf_structure_file",
			Description: descriptions.GetToolDescription("pdf_structure_file"),
			Parameters:  "path (required): PDF path",
		},
		{
			Name:        "pdf_extract_covenants",
			Description: descriptions.GetToolDescription("pdf_extract_covenants"),
			Parameters:  "path (required): PDF path; classification (optional): auto, credit_agreement, indenture, loan_agreement or unknown",
		},
		{
			Name:        "pdf_bundle_file",
			Description: descriptions.GetToolDescription("pdf_bundle_file"),
			Parameters:  "path (required); classification, notes, pinned_terms, report_path, include_document_data (optional)",
		},
		{
			Name:        "pdf_mark_bookmarked",
			Description: descriptions.GetToolDescription("pdf_mark_bookmarked"),
			Parameters:  "path (required): PDF path",
		},
	}
}

const usageGuidance = `Start with pdf_search_directory to find an agreement, then pdf_structure_file to see its sections and defined terms. ` +
	`pdf_extract_covenants returns the covenant clauses with their pages; pdf_bundle_file packages everything for a viewer and can write an HTML review report. ` +
	`After adding bookmarks, call pdf_mark_bookmarked so the document is not offered bookmarking again.`
