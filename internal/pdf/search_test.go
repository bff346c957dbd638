package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/security"
)

func newTestSearch(t *testing.T, files map[string]int) (*Search, string) {
	t.Helper()
	root := t.TempDir()
	for name, size := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, make([]byte, size), 0o600))
	}
	paths, err := security.NewPathValidator(root)
	require.NoError(t, err)
	return NewSearch(paths, NewValidator(1000)), root
}

func TestSearch_SearchDirectory(t *testing.T) {
	s, root := newTestSearch(t, map[string]int{
		"acme-credit-agreement-2024.pdf": 10,
		"deals/globex_indenture.pdf":     10,
		"deals/notes.txt":                10,
		".hidden/secret-credit.pdf":      10,
		"empty-credit.pdf":               0,
		"huge-credit.pdf":                2000,
	})

	tests := []struct {
		name  string
		req   PDFSearchDirectoryRequest
		names []string
	}{
		{"all", PDFSearchDirectoryRequest{}, []string{"acme-credit-agreement-2024.pdf", "globex_indenture.pdf"}},
		{"substring", PDFSearchDirectoryRequest{Query: "indenture"}, []string{"globex_indenture.pdf"}},
		{"words in any order", PDFSearchDirectoryRequest{Query: "2024 Acme"}, []string{"acme-credit-agreement-2024.pdf"}},
		{"no match", PDFSearchDirectoryRequest{Query: "lease"}, nil},
		{"subdirectory", PDFSearchDirectoryRequest{Directory: "deals"}, []string{"globex_indenture.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.SearchDirectory(tt.req)
			require.NoError(t, err)
			var names []string
			for _, f := range res.Files {
				names = append(names, f.Name)
			}
			assert.ElementsMatch(t, tt.names, names)
			assert.Equal(t, len(tt.names), res.TotalCount)
			assert.False(t, res.Truncated)
		})
	}

	res, err := s.SearchDirectory(PDFSearchDirectoryRequest{})
	require.NoError(t, err)
	assert.Equal(t, s.paths.Root(), res.Directory)
	assert.Equal(t, filepath.Join(root, "acme-credit-agreement-2024.pdf"), res.Files[0].Path)
}

func TestSearch_Limit(t *testing.T) {
	s, _ := newTestSearch(t, map[string]int{"a.pdf": 1, "b.pdf": 1, "c.pdf": 1})
	res, err := s.SearchDirectory(PDFSearchDirectoryRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	assert.True(t, res.Truncated)
}

func TestSearch_RejectsOutsideDirectory(t *testing.T) {
	s, _ := newTestSearch(t, nil)
	_, err := s.SearchDirectory(PDFSearchDirectoryRequest{Directory: "/"})
	assert.ErrorIs(t, err, security.ErrOutsideRoot)

	_, err = s.SearchDirectory(PDFSearchDirectoryRequest{Directory: "missing"})
	assert.Error(t, err)
}

func TestSearch_SkipsEscapingSymlinks(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "other.pdf"), []byte("x"), 0o600))
	s, root := newTestSearch(t, map[string]int{"inside.pdf": 1})
	require.NoError(t, os.Symlink(filepath.Join(outside, "other.pdf"), filepath.Join(root, "link.pdf")))

	res, err := s.SearchDirectory(PDFSearchDirectoryRequest{})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "inside.pdf", res.Files[0].Name)
}

func TestSearch_matchesQuery(t *testing.T) {
	tests := []struct {
		filename string
		query    string
		want     bool
	}{
		{"Credit_Agreement.pdf", "credit", true},
		{"Credit_Agreement.pdf", "agreement credit", true},
		{"Credit_Agreement.pdf", "agree", true},
		{"Credit_Agreement.pdf", "indenture", false},
		{"notes-2029 (final).pdf", "final 2029", true},
		{"notes-2029 (final).pdf", "draft", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesQuery(tt.filename, tt.query), "%s / %s", tt.filename, tt.query)
	}
}

func TestSearch_splitIntoWords(t *testing.T) {
	assert.Equal(t, []string{"acme", "credit", "v2", "final"}, splitIntoWords("ACME_credit-v2 (final)"))
	assert.Empty(t, splitIntoWords("__--"))
}
