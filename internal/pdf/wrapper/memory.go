package wrapper

import (
	"sync"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
)

// MemoryPage is one page of a MemoryDocument. A non-nil GeometryErr or
// TextErr is returned from the matching accessor.
type MemoryPage struct {
	Geometry    geometry.PageGeometry
	Runs        []TextRun
	GeometryErr error
	TextErr     error
}

// MemoryDocument is an in-memory Document, used for tests and for callers
// that already hold parsed page data.
type MemoryDocument struct {
	Pages []MemoryPage
	Items []OutlineItem

	mu    sync.Mutex
	props map[string]string
}

// NewMemoryDocument creates a document with the given pages and metadata
func NewMemoryDocument(pages []MemoryPage, outline []OutlineItem, props map[string]string) *MemoryDocument {
	d := &MemoryDocument{Pages: pages, Items: outline, props: make(map[string]string, len(props))}
	for k, v := range props {
		d.props[k] = v
	}
	return d
}

// LetterPage returns a US letter page with no separate trim box.
func LetterPage(index int, runs ...TextRun) MemoryPage {
	media := geometry.NewBox(0, 0, 612, 792)
	return MemoryPage{Geometry: geometry.NewPageGeometry(index, media, nil), Runs: runs}
}

func (d *MemoryDocument) PageCount() int {
	return len(d.Pages)
}

func (d *MemoryDocument) PageGeometry(page int) (geometry.PageGeometry, error) {
	if page < 0 || page >= len(d.Pages) {
		return geometry.PageGeometry{}, &WrapperError{Library: LibraryMemory, Op: "page_geometry", Page: page + 1, Err: ErrInvalidPage}
	}
	p := d.Pages[page]
	if p.GeometryErr != nil {
		return geometry.PageGeometry{}, &WrapperError{Library: LibraryMemory, Op: "page_geometry", Page: page + 1, Err: p.GeometryErr}
	}
	return p.Geometry, nil
}

func (d *MemoryDocument) TextRuns(page int) ([]TextRun, error) {
	if page < 0 || page >= len(d.Pages) {
		return nil, &WrapperError{Library: LibraryMemory, Op: "text_runs", Page: page + 1, Err: ErrInvalidPage}
	}
	p := d.Pages[page]
	if p.TextErr != nil {
		return nil, &WrapperError{Library: LibraryMemory, Op: "text_runs", Page: page + 1, Err: p.TextErr}
	}
	return p.Runs, nil
}

func (d *MemoryDocument) Outline() ([]OutlineItem, error) {
	return d.Items, nil
}

func (d *MemoryDocument) Properties() (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.props))
	for k, v := range d.props {
		out[k] = v
	}
	return out, nil
}

func (d *MemoryDocument) SetProperties(props map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.props == nil {
		d.props = make(map[string]string, len(props))
	}
	for k, v := range props {
		d.props[k] = v
	}
	return nil
}

func (d *MemoryDocument) Close() error {
	return nil
}

// LinePage lays out each line as one text run at the left margin of a
// letter page, 14 units apart from the top, at font size 10.
func LinePage(index int, lines ...string) MemoryPage {
	runs := make([]TextRun, 0, len(lines))
	y := 720.0
	for _, line := range lines {
		if line != "" {
			runs = append(runs, TextRun{
				Text:     line,
				X:        72,
				Y:        y,
				Width:    float64(len([]rune(line))) * 5,
				FontSize: 10,
			})
		}
		y -= 14
	}
	return LetterPage(index, runs...)
}
