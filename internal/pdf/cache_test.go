package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
)

func TestDocumentCache_Eviction(t *testing.T) {
	c := newDocumentCache(2)
	a, b, d := &staged{path: "a"}, &staged{path: "b"}, &staged{path: "d"}

	c.put("a", "1", a)
	c.put("b", "1", b)

	got, ok := c.get("a", "1")
	require.True(t, ok)
	assert.Same(t, a, got)

	// b is now least recently used
	c.put("d", "1", d)
	_, ok = c.get("b", "1")
	assert.False(t, ok)
	_, ok = c.get("a", "1")
	assert.True(t, ok)
	_, ok = c.get("d", "1")
	assert.True(t, ok)

	assert.Equal(t, CacheStats{Hits: 3, Misses: 1, Size: 2, Capacity: 2}, c.stats())
}

func TestDocumentCache_VersionMismatch(t *testing.T) {
	c := newDocumentCache(0)
	assert.Equal(t, documentCacheSize, c.stats().Capacity)

	c.put("a", "1", &staged{})
	_, ok := c.get("a", "2")
	assert.False(t, ok)

	replacement := &staged{title: "new"}
	c.put("a", "2", replacement)
	got, ok := c.get("a", "2")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 1, c.stats().Size)

	c.remove("a")
	c.remove("missing")
	assert.Equal(t, 0, c.stats().Size)
}

func TestFileVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")

	_, ok := fileVersion(path)
	assert.False(t, ok)
	_, ok = fileVersion(dir)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("one"), 0o600))
	v1, ok := fileVersion(path)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("longer"), 0o600))
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(time.Hour)))
	v2, ok := fileVersion(path)
	require.True(t, ok)
	assert.NotEqual(t, v1, v2)
}

func TestService_StagesUnchangedFileOnce(t *testing.T) {
	docs := creditDocs()
	opens := 0
	counting := func(path string) (wrapper.Document, error) {
		opens++
		return docs.open(path)
	}
	s, cfg := newTestService(t, docs, WithOpener(counting))

	path := filepath.Join(cfg.PDFDirectory, "credit.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o600))

	_, err := s.PDFStructureFile(context.Background(), PDFAnalyzeRequest{Path: "credit.pdf"})
	require.NoError(t, err)
	_, err = s.PDFExtractCovenants(context.Background(), PDFAnalyzeRequest{Path: "credit.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, opens)

	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(time.Hour)))
	_, err = s.PDFStructureFile(context.Background(), PDFAnalyzeRequest{Path: "credit.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 2, opens)
}
