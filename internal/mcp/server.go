package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-covenants/internal/config"
	"github.com/a3tai/mcp-pdf-covenants/internal/descriptions"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	log        *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		log:        logger,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	pathArg := mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path to the PDF file, relative to the configured directory or absolute inside it"),
	)
	classificationArg := mcp.WithString("classification",
		mcp.Description("Document type selecting the extractors"),
		mcp.Enum("auto", "credit_agreement", "indenture", "loan_agreement", "unknown"),
	)

	s.mcpServer.AddTool(mcp.NewTool("pdf_validate_file",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_validate_file")),
		pathArg,
	), s.handlePDFValidateFile)

	s.mcpServer.AddTool(mcp.NewTool("pdf_search_directory",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_search_directory")),
		mcp.WithString("directory", mcp.Description("Subdirectory to search (the configured directory if empty)")),
		mcp.WithString("query", mcp.Description("Words of the file name")),
	), s.handlePDFSearchDirectory)

	s.mcpServer.AddTool(mcp.NewTool("pdf_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_server_info")),
	), s.handlePDFServerInfo)

	s.mcpServer.AddTool(mcp.NewTool("pdf_structure_file",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_structure_file")),
		pathArg,
	), s.handlePDFStructureFile)

	s.mcpServer.AddTool(mcp.NewTool("pdf_extract_covenants",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_extract_covenants")),
		pathArg,
		classificationArg,
	), s.handlePDFExtractCovenants)

	s.mcpServer.AddTool(mcp.NewTool("pdf_bundle_file",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_bundle_file")),
		pathArg,
		classificationArg,
		mcp.WithString("notes", mcp.Description("Reviewer notes in markdown")),
		mcp.WithArray("pinned_terms", mcp.Description("Defined terms to pin"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("report_path", mcp.Description("Where to write the HTML review report")),
		mcp.WithBoolean("include_document_data", mcp.Description("Include page geometry (default true)")),
	), s.handlePDFBundleFile)

	s.mcpServer.AddTool(mcp.NewTool("pdf_mark_bookmarked",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_mark_bookmarked")),
		pathArg,
	), s.handlePDFMarkBookmarked)
}

// Handler functions
func (s *Server) handlePDFValidateFile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFValidateFile(pdf.PDFValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("PDF file is valid: %s", result.Path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("PDF file is invalid: %s\nReason: %s", result.Path, result.Message)), nil
}

func (s *Server) handlePDFSearchDirectory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	req := pdf.PDFSearchDirectoryRequest{
		Directory: stringArg(args, "directory"),
		Query:     stringArg(args, "query"),
	}

	result, err := s.pdfService.PDFSearchDirectory(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSearchResult(result)), nil
}

func (s *Server) handlePDFServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.PDFServerInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatServerInfo(result)), nil
}

func (s *Server) handlePDFStructureFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFStructureFile(ctx, pdf.PDFAnalyzeRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handlePDFExtractCovenants(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := pdf.PDFAnalyzeRequest{Path: path, Classification: stringArg(request.GetArguments(), "classification")}

	result, err := s.pdfService.PDFExtractCovenants(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handlePDFBundleFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	req := pdf.PDFBundleRequest{
		Path:           path,
		Classification: stringArg(args, "classification"),
		Notes:          stringArg(args, "notes"),
		PinnedTerms:    stringsArg(args, "pinned_terms"),
		ReportPath:     stringArg(args, "report_path"),
	}
	if include, ok := args["include_document_data"].(bool); ok {
		req.OmitDocumentData = !include
	}

	result, err := s.pdfService.PDFBundleFile(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handlePDFMarkBookmarked(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFMarkBookmarked(ctx, pdf.PDFMarkBookmarksRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("Bookmarks marked as processed: %s\n", result.Path)
	if result.Persisted {
		text += "The flags were written into the document metadata.\n"
	} else {
		text += "The flags were not written into the document (persistence is disabled).\n"
	}
	return mcp.NewToolResultText(text), nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// stringsArg accepts a JSON array of strings or a comma separated string.
func stringsArg(args map[string]any, key string) []string {
	var out []string
	switch v := args[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func formatSearchResult(result *pdf.PDFSearchDirectoryResult) string {
	text := fmt.Sprintf("Found %d PDF file(s) in %s", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		text += fmt.Sprintf(" matching %q", result.SearchQuery)
	}
	text += "\n"
	for i, file := range result.Files {
		text += fmt.Sprintf("%d. %s\n   Path: %s\n   Size: %d bytes\n   Modified: %s\n",
			i+1, file.Name, file.Path, file.Size, file.ModifiedTime)
	}
	if result.Truncated {
		text += "(results truncated; narrow the query)\n"
	}
	return text
}

func formatServerInfo(result *pdf.PDFServerInfoResult) string {
	text := fmt.Sprintf("%s v%s\n", result.ServerName, result.Version)
	text += fmt.Sprintf("Default directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("Max file size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Extractor timeout: %s, workers: %d\n", result.ExtractorTimeout, result.Workers)
	text += fmt.Sprintf("Default classification: %s (one of %s)\n", result.Classification, strings.Join(result.Classifications, ", "))
	text += fmt.Sprintf("Bundle archive: %t\n", result.ArchiveEnabled)
	text += fmt.Sprintf("Document cache: %d/%d (%d hits, %d misses)\n\n",
		result.DocumentCache.Size, result.DocumentCache.Capacity, result.DocumentCache.Hits, result.DocumentCache.Misses)

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("Directory contents (%d PDF files):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 {
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
	} else {
		text += "Directory contents: no PDF files found\n"
	}

	text += "\nAvailable tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("• %s: %s\n", tool.Name, tool.Parameters)
	}
	return text + "\n" + result.UsageGuidance
}

// HTTPHandler serves the tools over the streamable HTTP transport
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// Run serves the tools over stdio until ctx is done or stdin closes
func (s *Server) Run(ctx context.Context) error {
	return s.serveStdio(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Debug("starting stdio transport", "directory", s.config.PDFDirectory)

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
