// Package bundle packages a structured, extracted document into the
// versioned JSON export consumed by review clients.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-covenants/internal/bookmarks"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
)

// FormatVersion is the export format written by this package.
const FormatVersion = 7

// Keys are the top-level keys present in every bundle.
var Keys = []string{
	"title", "toc", "defs", "overlays", "bookmarkState",
	"version", "notepad", "anomalies", "pinnedTermsNames", "documentData",
}

var (
	ErrMissingKey = errors.New("bundle: missing top-level key")
	ErrVersion    = errors.New("bundle: unsupported format version")
)

// Bundle is the write-once export record. Optional members are pointers
// without omitempty so that they serialize as null.
type Bundle struct {
	Title            string          `json:"title"`
	TOC              string          `json:"toc"`
	Defs             string          `json:"defs"`
	Overlays         []string        `json:"overlays"`
	BookmarkState    bookmarks.State `json:"bookmarkState"`
	Version          int             `json:"version"`
	Notepad          *string         `json:"notepad"`
	Anomalies        []Anomaly       `json:"anomalies"`
	PinnedTermsNames *string         `json:"pinnedTermsNames"`
	DocumentData     *DocumentData   `json:"documentData"`

	id uuid.UUID
}

// Anomaly is a recoverable problem met while processing the document.
type Anomaly struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	Page      int    `json:"page,omitempty"` // 1-based
	Extractor string `json:"extractor,omitempty"`
}

// DocumentData is the geometry tree clients use to re-render text.
type DocumentData struct {
	Pages []PageData `json:"pages"`
}

// PageData is one page of DocumentData. Skipped pages have no boxes.
type PageData struct {
	Index     int       `json:"index"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	TextBoxes []BoxData `json:"textBoxes"`
}

// BoxData is one text box (a visual line).
type BoxData struct {
	Top    float64     `json:"top"`
	Height float64     `json:"height"`
	Tokens []TokenData `json:"tokens"`
}

// TokenData is one token
type TokenData struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ID identifies a built bundle; decoded bundles have uuid.Nil.
func (b *Bundle) ID() uuid.UUID {
	return b.id
}

// Marshal returns the JSON export.
func (b *Bundle) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle: %w", err)
	}
	return data, nil
}

// Decode parses an export, requiring every top-level key and the current
// format version.
func Decode(data []byte) (*Bundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	for _, k := range Keys {
		if _, ok := raw[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, k)
		}
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	if b.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, b.Version)
	}
	return &b, nil
}

func anomalyOf(e *pdferrors.StructureError) Anomaly {
	return Anomaly{
		Type:      e.Type.String(),
		Message:   e.Message,
		Context:   e.Context,
		Page:      e.Page,
		Extractor: e.Extractor,
	}
}
