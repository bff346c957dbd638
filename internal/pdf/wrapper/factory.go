package wrapper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
)

// FactoryConfig contains configuration options for the factory
type FactoryConfig struct {
	// MaxFileSize limits the size of files the factory will open (in bytes)
	MaxFileSize int64 `json:"max_file_size"`
}

// Factory opens documents backed by the file system.
type Factory struct {
	config FactoryConfig
}

// NewFactory creates a factory with the given configuration
func NewFactory(config FactoryConfig) *Factory {
	return &Factory{config: config}
}

// Open returns a document that reads geometry, outline and metadata
// through pdfcpu and text runs through ledongthuc.
func (f *Factory) Open(path string) (*FileDocument, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, &WrapperError{Library: LibraryComposite, Op: "open", Err: fmt.Errorf("not a PDF file: %s", path)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &WrapperError{Library: LibraryComposite, Op: "open", Err: err}
	}
	if f.config.MaxFileSize > 0 && info.Size() > f.config.MaxFileSize {
		return nil, &WrapperError{
			Library: LibraryComposite,
			Op:      "open",
			Err:     fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), f.config.MaxFileSize),
		}
	}

	structure, err := OpenPDFCPU(path)
	if err != nil {
		return nil, err
	}
	text, err := OpenLedongthuc(path)
	if err != nil {
		_ = structure.Close()
		return nil, err
	}
	if structure.PageCount() != text.PageCount() {
		_ = structure.Close()
		_ = text.Close()
		return nil, &WrapperError{
			Library: LibraryComposite,
			Op:      "open",
			Err:     fmt.Errorf("page count mismatch: pdfcpu %d, ledongthuc %d", structure.PageCount(), text.PageCount()),
		}
	}
	return &FileDocument{Path: path, structure: structure, text: text}, nil
}

// FileDocument combines the two libraries behind Document.
type FileDocument struct {
	Path      string
	structure *PDFCPUDocument
	text      *LedongthucText
}

// PageCount returns the number of pages
func (d *FileDocument) PageCount() int {
	return d.structure.PageCount()
}

// PageGeometry returns the page's media and trim boxes
func (d *FileDocument) PageGeometry(page int) (geometry.PageGeometry, error) {
	return d.structure.PageGeometry(page)
}

// TextRuns returns the page's raw text runs
func (d *FileDocument) TextRuns(page int) ([]TextRun, error) {
	return d.text.TextRuns(page)
}

// Outline returns the bookmark tree
func (d *FileDocument) Outline() ([]OutlineItem, error) {
	return d.structure.Outline()
}

// Properties returns the Info dictionary entries
func (d *FileDocument) Properties() (map[string]string, error) {
	return d.structure.Properties()
}

// SetProperties writes Info entries back to the file
func (d *FileDocument) SetProperties(props map[string]string) error {
	return d.structure.SetProperties(props)
}

// Close closes both underlying readers
func (d *FileDocument) Close() error {
	return errors.Join(d.text.Close(), d.structure.Close())
}
