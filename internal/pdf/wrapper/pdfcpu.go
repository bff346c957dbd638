package wrapper

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
)

// maxOutlineDepth bounds recursion on malformed outline trees.
const maxOutlineDepth = 64

// PDFCPUDocument provides page boxes, the outline tree and the Info
// dictionary through pdfcpu. It has no text extraction. Calls are
// serialized on mu since the pdfcpu context is not safe for concurrent use.
type PDFCPUDocument struct {
	mu     sync.Mutex
	path   string
	ctx    *model.Context
	pages  map[int]int // page object number -> 0-based index
	closed bool
}

// OpenPDFCPU reads a PDF with relaxed validation.
func OpenPDFCPU(path string) (*PDFCPUDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      "open_file",
			Err:     fmt.Errorf("failed to open file: %w", err),
		}
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      "open_file",
			Err:     fmt.Errorf("failed to read PDF context: %w", err),
		}
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      "open_file",
			Err:     fmt.Errorf("failed to ensure page count: %w", err),
		}
	}

	d := &PDFCPUDocument{path: path, ctx: ctx, pages: make(map[int]int, ctx.PageCount)}
	for i := 1; i <= ctx.PageCount; i++ {
		_, ref, _, err := ctx.PageDict(i, false)
		if err != nil || ref == nil {
			continue
		}
		d.pages[ref.ObjectNumber.Value()] = i - 1
	}
	return d, nil
}

// PageCount returns the number of pages
func (d *PDFCPUDocument) PageCount() int {
	return d.ctx.PageCount
}

// PageGeometry returns the media box and the visible box. TrimBox is
// preferred, then CropBox.
func (d *PDFCPUDocument) PageGeometry(page int) (geometry.PageGeometry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return geometry.PageGeometry{}, &WrapperError{Library: LibraryPDFCPU, Op: "page_geometry", Err: ErrDocumentClosed}
	}
	if page < 0 || page >= d.ctx.PageCount {
		return geometry.PageGeometry{}, &WrapperError{Library: LibraryPDFCPU, Op: "page_geometry", Page: page + 1, Err: ErrInvalidPage}
	}

	dict, _, inherited, err := d.ctx.PageDict(page+1, false)
	if err != nil {
		return geometry.PageGeometry{}, &WrapperError{Library: LibraryPDFCPU, Op: "page_geometry", Page: page + 1, Err: err}
	}

	media, ok := d.boxEntry(dict, "MediaBox")
	if !ok && inherited != nil && inherited.MediaBox != nil {
		media, ok = rectangleBox(inherited.MediaBox), true
	}
	if !ok || !media.Valid() {
		return geometry.PageGeometry{}, &WrapperError{Library: LibraryPDFCPU, Op: "page_geometry", Page: page + 1, Err: ErrMissingMediaBox}
	}

	var trim *geometry.Box
	if b, ok := d.boxEntry(dict, "TrimBox"); ok {
		trim = &b
	} else if b, ok := d.boxEntry(dict, "CropBox"); ok {
		trim = &b
	} else if inherited != nil && inherited.CropBox != nil {
		b := rectangleBox(inherited.CropBox)
		trim = &b
	}
	return geometry.NewPageGeometry(page, media, trim), nil
}

// TextRuns is not provided by pdfcpu.
func (d *PDFCPUDocument) TextRuns(page int) ([]TextRun, error) {
	return nil, &WrapperError{Library: LibraryPDFCPU, Op: "text_runs", Page: page + 1, Err: fmt.Errorf("not supported")}
}

// Outline walks /Outlines. Items whose destination cannot be resolved carry
// Err and keep their children.
func (d *PDFCPUDocument) Outline() ([]OutlineItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, &WrapperError{Library: LibraryPDFCPU, Op: "outline", Err: ErrDocumentClosed}
	}
	if d.ctx.RootDict == nil {
		return nil, nil
	}
	obj, found := d.ctx.RootDict.Find("Outlines")
	if !found {
		return nil, nil
	}
	outlines, err := d.ctx.DereferenceDict(obj)
	if err != nil || outlines == nil {
		return nil, &WrapperError{Library: LibraryPDFCPU, Op: "outline", Err: fmt.Errorf("invalid outline root: %v", err)}
	}
	first, found := outlines.Find("First")
	if !found {
		return nil, nil
	}
	return d.outlineSiblings(first, map[int]bool{}, 0), nil
}

func (d *PDFCPUDocument) outlineSiblings(obj types.Object, seen map[int]bool, depth int) []OutlineItem {
	var items []OutlineItem
	for obj != nil && depth < maxOutlineDepth {
		if ref, ok := obj.(types.IndirectRef); ok {
			n := ref.ObjectNumber.Value()
			if seen[n] {
				break
			}
			seen[n] = true
		}
		dict, err := d.ctx.DereferenceDict(obj)
		if err != nil || dict == nil {
			break
		}

		item := OutlineItem{Title: d.decodeString(dict, "Title"), Page: -1}
		item.Page, item.Top, item.Err = d.resolveDestination(dict)
		if kids, ok := dict.Find("First"); ok {
			item.Kids = d.outlineSiblings(kids, seen, depth+1)
		}
		items = append(items, item)

		next, ok := dict.Find("Next")
		if !ok {
			break
		}
		obj = next
	}
	return items
}

// resolveDestination reads /Dest or a GoTo action's /D. Malformed objects
// can make pdfcpu panic; that is reported as an error on the item.
func (d *PDFCPUDocument) resolveDestination(item types.Dict) (page int, top *float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			page, top, err = -1, nil, fmt.Errorf("destination resolution panicked: %v", r)
		}
	}()

	dest, found := item.Find("Dest")
	if !found {
		action, ok := item.Find("A")
		if !ok {
			return -1, nil, ErrNonExplicitDestination
		}
		actionDict, derr := d.ctx.DereferenceDict(action)
		if derr != nil || actionDict == nil {
			return -1, nil, fmt.Errorf("invalid outline action: %v", derr)
		}
		if s := actionDict.NameEntry("S"); s == nil || *s != "GoTo" {
			return -1, nil, ErrNonExplicitDestination
		}
		if dest, found = actionDict.Find("D"); !found {
			return -1, nil, ErrNonExplicitDestination
		}
	}

	obj, derr := d.ctx.Dereference(dest)
	if derr != nil {
		return -1, nil, derr
	}
	arr, ok := obj.(types.Array)
	if !ok || len(arr) < 2 {
		// Named destinations are not followed.
		return -1, nil, ErrNonExplicitDestination
	}

	switch p := arr[0].(type) {
	case types.IndirectRef:
		idx, known := d.pages[p.ObjectNumber.Value()]
		if !known {
			return -1, nil, fmt.Errorf("destination references unknown page object %d", p.ObjectNumber.Value())
		}
		page = idx
	case types.Integer:
		page = p.Value()
	default:
		return -1, nil, ErrNonExplicitDestination
	}

	kind, _ := arr[1].(types.Name)
	var topIdx int
	switch kind {
	case "XYZ":
		topIdx = 3
	case "FitH", "FitBH":
		topIdx = 2
	case "FitR":
		topIdx = 5
	default:
		return page, nil, nil
	}
	if topIdx >= len(arr) {
		return page, nil, nil
	}
	v, isNum := d.number(arr[topIdx])
	if !isNum {
		return page, nil, nil
	}
	return page, &v, nil
}

// Properties returns the Info dictionary's string entries.
func (d *PDFCPUDocument) Properties() (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	props := make(map[string]string)
	if d.ctx.Info == nil {
		return props, nil
	}
	info, err := d.ctx.DereferenceDict(*d.ctx.Info)
	if err != nil {
		return nil, &WrapperError{Library: LibraryPDFCPU, Op: "properties", Err: err}
	}
	for key := range info {
		if s := d.decodeString(info, key); s != "" {
			props[key] = s
		}
	}
	return props, nil
}

// SetProperties rewrites the file in place with the given Info entries.
func (d *PDFCPUDocument) SetProperties(props map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return &WrapperError{Library: LibraryPDFCPU, Op: "set_properties", Err: ErrDocumentClosed}
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.AddPropertiesFile(d.path, "", props, conf); err != nil {
		return &WrapperError{Library: LibraryPDFCPU, Op: "set_properties", Err: err}
	}
	return nil
}

// Close releases the context
func (d *PDFCPUDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *PDFCPUDocument) boxEntry(dict types.Dict, key string) (geometry.Box, bool) {
	obj, found := dict.Find(key)
	if !found {
		return geometry.Box{}, false
	}
	obj, err := d.ctx.Dereference(obj)
	if err != nil {
		return geometry.Box{}, false
	}
	arr, ok := obj.(types.Array)
	if !ok || len(arr) < 4 {
		return geometry.Box{}, false
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		f, ok := d.number(arr[i])
		if !ok {
			return geometry.Box{}, false
		}
		v[i] = f
	}
	return geometry.NewBox(v[0], v[1], v[2], v[3]), true
}

func (d *PDFCPUDocument) number(obj types.Object) (float64, bool) {
	obj, err := d.ctx.Dereference(obj)
	if err != nil {
		return 0, false
	}
	switch v := obj.(type) {
	case types.Float:
		return v.Value(), true
	case types.Integer:
		return float64(v.Value()), true
	default:
		return 0, false
	}
}

func (d *PDFCPUDocument) decodeString(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	obj, err := d.ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	var s string
	switch v := obj.(type) {
	case types.StringLiteral:
		s, err = types.StringLiteralToString(v)
	case types.HexLiteral:
		s, err = types.HexLiteralToString(v)
	case types.Name:
		s = string(v)
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func rectangleBox(r *types.Rectangle) geometry.Box {
	return geometry.NewBox(r.LL.X, r.LL.Y, r.UR.X, r.UR.Y)
}
