package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/config"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure/structuretest"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	cfg.Workers = 2

	docs := map[string]*wrapper.MemoryDocument{
		"credit.pdf": structuretest.Document(structuretest.CreditAgreementPages, nil, map[string]string{"Title": "Acme Credit Agreement"}),
	}
	open := func(path string) (wrapper.Document, error) {
		doc, ok := docs[filepath.Base(path)]
		if !ok {
			return nil, os.ErrNotExist
		}
		return doc, nil
	}

	svc, err := pdf.NewService(context.Background(), cfg, nil, pdf.WithOpener(open))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	s, err := NewServer(cfg, svc, nil)
	require.NoError(t, err)
	return s, cfg
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestNewServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	svc, err := pdf.NewService(context.Background(), cfg, nil)
	require.NoError(t, err)

	tests := []struct {
		name        string
		config      *config.Config
		service     *pdf.Service
		expectError bool
	}{
		{name: "valid config", config: cfg, service: svc},
		{name: "nil config", config: nil, service: svc, expectError: true},
		{name: "nil service", config: cfg, service: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config, tt.service, nil)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.config, server.config)
			assert.NotNil(t, server.mcpServer)
			assert.NotNil(t, server.log)
		})
	}
}

func TestServer_HandlePDFValidateFile(t *testing.T) {
	s, cfg := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PDFDirectory, "notes.pdf"), []byte("not a pdf"), 0o600))

	res, err := s.handlePDFValidateFile(context.Background(), callRequest(map[string]interface{}{"path": "notes.pdf"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "PDF file is invalid: notes.pdf")

	res, err = s.handlePDFValidateFile(context.Background(), callRequest(map[string]interface{}{"path": "../escape.pdf"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "security validation failed")

	res, err = s.handlePDFValidateFile(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_HandlePDFSearchDirectory(t *testing.T) {
	s, cfg := newTestServer(t)
	for _, name := range []string{"acme-credit-agreement.pdf", "acme-indenture.pdf", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.PDFDirectory, name), []byte("%PDF-1.7"), 0o600))
	}

	res, err := s.handlePDFSearchDirectory(context.Background(), callRequest(map[string]interface{}{"query": "indenture"}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Found 1 PDF file(s)")
	assert.Contains(t, text, "acme-indenture.pdf")
	assert.NotContains(t, text, "readme.txt")

	res, err = s.handlePDFSearchDirectory(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Found 2 PDF file(s)")
}

func TestServer_HandlePDFServerInfo(t *testing.T) {
	s, cfg := newTestServer(t)

	res, err := s.handlePDFServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, cfg.ServerName)
	assert.Contains(t, text, "no PDF files found")
	assert.Contains(t, text, "pdf_extract_covenants")
	assert.Contains(t, text, "credit_agreement")
}

func TestServer_HandlePDFStructureFile(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handlePDFStructureFile(context.Background(), callRequest(map[string]interface{}{"path": "credit.pdf"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var got pdf.PDFStructureResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, "Acme Credit Agreement", got.Title)
	assert.NotEmpty(t, got.TOC)
	assert.NotEmpty(t, got.Definitions)

	res, err = s.handlePDFStructureFile(context.Background(), callRequest(map[string]interface{}{"path": "missing.pdf"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_HandlePDFExtractCovenants(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handlePDFExtractCovenants(context.Background(), callRequest(map[string]interface{}{
		"path":           "credit.pdf",
		"classification": "credit_agreement",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var got pdf.PDFCovenantsResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, "credit.pdf", got.Path)
	assert.NotEmpty(t, got.Results)
	assert.Empty(t, got.Failures)

	res, err = s.handlePDFExtractCovenants(context.Background(), callRequest(map[string]interface{}{
		"path":           "credit.pdf",
		"classification": "lease",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_HandlePDFBundleFile(t *testing.T) {
	s, cfg := newTestServer(t)

	res, err := s.handlePDFBundleFile(context.Background(), callRequest(map[string]interface{}{
		"path":                  "credit.pdf",
		"notes":                 "check the **step-down**",
		"pinned_terms":          []interface{}{"Consolidated EBITDA", " "},
		"report_path":           "out/credit.html",
		"include_document_data": false,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.NotEmpty(t, got["bundle_id"])
	assert.Equal(t, false, got["archived"])
	assert.FileExists(t, filepath.Join(cfg.PDFDirectory, "out", "credit.html"))

	b, ok := got["bundle"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Consolidated EBITDA", b["pinnedTermsNames"])
	assert.Nil(t, b["documentData"])
}

func TestServer_HandlePDFMarkBookmarked(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handlePDFMarkBookmarked(context.Background(), callRequest(map[string]interface{}{"path": "credit.pdf"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "persistence is disabled")
}

func TestStringsArg(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want []string
	}{
		{name: "missing", args: map[string]any{}, want: nil},
		{name: "array", args: map[string]any{"k": []any{"a", 1, " b "}}, want: []string{"a", "b"}},
		{name: "string slice", args: map[string]any{"k": []string{"a", ""}}, want: []string{"a"}},
		{name: "comma separated", args: map[string]any{"k": "Borrower, Lender,,"}, want: []string{"Borrower", "Lender"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stringsArg(tt.args, "k"))
		})
	}
}
