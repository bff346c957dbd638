package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/security"
)

// DefaultSearchLimit caps directory searches that do not set a limit.
const DefaultSearchLimit = 500

// Search finds agreement PDFs below the configured directory
type Search struct {
	paths     *security.PathValidator
	validator *Validator
}

// NewSearch creates a search handler confined to paths' root
func NewSearch(paths *security.PathValidator, validator *Validator) *Search {
	return &Search{paths: paths, validator: validator}
}

// SearchDirectory walks req.Directory (the configured root when empty)
// and returns PDFs whose names match the query. Hidden directories,
// unreadable entries and files failing the size checks are skipped.
func (s *Search) SearchDirectory(req PDFSearchDirectoryRequest) (*PDFSearchDirectoryResult, error) {
	root, err := s.paths.ValidateDirectory(req.Directory)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", root)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	query := strings.ToLower(strings.TrimSpace(req.Query))

	result := &PDFSearchDirectoryResult{
		Files:       []FileInfo{},
		Directory:   root,
		SearchQuery: req.Query,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // keep walking past unreadable entries
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPDFName(d.Name()) || (query != "" && !matchesQuery(d.Name(), query)) {
			return nil
		}
		// symlinks may point outside the root
		if d.Type()&fs.ModeSymlink != 0 {
			if err := s.paths.ValidatePath(path); err != nil {
				return nil //nolint:nilerr // skip escaping links
			}
		}
		info, err := os.Stat(path)
		if err != nil || s.validator.CheckInfo(path, info) != nil {
			return nil //nolint:nilerr // skip files that cannot be structured
		}

		if len(result.Files) >= limit {
			result.Truncated = true
			return filepath.SkipAll
		}
		result.Files = append(result.Files, FileInfo{
			Path:         path,
			Name:         info.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	result.TotalCount = len(result.Files)
	return result, nil
}

// matchesQuery matches a lower-cased query against a file name: as a
// substring, or word by word in any order.
func matchesQuery(filename, query string) bool {
	name := strings.TrimSuffix(strings.ToLower(filename), ".pdf")
	if strings.Contains(name, query) {
		return true
	}

	words := splitIntoWords(name)
	for _, q := range splitIntoWords(query) {
		found := false
		for _, w := range words {
			if strings.Contains(w, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// splitIntoWords splits on the separators common in file names
func splitIntoWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return strings.ContainsRune(" _-.()[]", r)
	})
}
