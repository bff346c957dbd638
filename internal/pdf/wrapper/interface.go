package wrapper

import (
	"errors"
	"fmt"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
)

// Document is the read side of a PDF as seen by the structuring pipeline.
// Page indexes are 0-based.
type Document interface {
	// Core operations
	PageCount() int
	PageGeometry(page int) (geometry.PageGeometry, error)
	TextRuns(page int) ([]TextRun, error)
	Close() error

	// Navigation and metadata
	Outline() ([]OutlineItem, error)
	Properties() (map[string]string, error)
}

// PropertyWriter persists custom document metadata entries.
type PropertyWriter interface {
	SetProperties(props map[string]string) error
}

// LibraryType represents the underlying PDF library being used
type LibraryType string

const (
	LibraryPDFCPU     LibraryType = "pdfcpu"
	LibraryLedongthuc LibraryType = "ledongthuc"
	LibraryComposite  LibraryType = "composite"
	LibraryMemory     LibraryType = "memory"
)

// TextRun is a positioned run of glyphs as emitted by the content stream.
// X and Y are the baseline origin in PDF user space.
type TextRun struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	FontSize float64 `json:"font_size"`
	Font     string  `json:"font,omitempty"`
}

// OutlineItem is one bookmark entry. Top is nil when the destination has no
// explicit top coordinate. Err records a destination that could not be
// resolved; such items are still returned so their children are reachable.
type OutlineItem struct {
	Title string        `json:"title"`
	Page  int           `json:"page"`
	Top   *float64      `json:"top,omitempty"`
	Err   error         `json:"-"`
	Kids  []OutlineItem `json:"kids,omitempty"`
}

// Explicit reports whether the item points at a concrete page position.
func (o OutlineItem) Explicit() bool {
	return o.Err == nil && o.Top != nil && o.Page >= 0
}

// CountOutline returns the number of items in the tree.
func CountOutline(items []OutlineItem) int {
	n := 0
	for _, it := range items {
		n += 1 + CountOutline(it.Kids)
	}
	return n
}

// Error types for wrapper operations
type WrapperError struct {
	Library LibraryType `json:"library"`
	Op      string      `json:"operation"`
	Page    int         `json:"page,omitempty"`
	Err     error       `json:"error"`
}

func (e *WrapperError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("PDF %s library error in %s (page %d): %v", e.Library, e.Op, e.Page, e.Err)
	}
	return fmt.Sprintf("PDF %s library error in %s: %v", e.Library, e.Op, e.Err)
}

func (e *WrapperError) Unwrap() error {
	return e.Err
}

// Common error variables
var (
	ErrDocumentClosed         = errors.New("document is closed")
	ErrInvalidPage            = errors.New("invalid page number")
	ErrMissingMediaBox        = errors.New("page has no media box")
	ErrNonExplicitDestination = errors.New("outline destination is not explicit")
	ErrReadOnly               = errors.New("document does not support metadata updates")
)
