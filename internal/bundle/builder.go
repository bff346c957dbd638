package bundle

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-pdf-covenants/internal/bookmarks"
	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/markup"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// Input is everything a bundle is assembled from.
type Input struct {
	Title         string
	Document      *structure.Document
	Results       []*extract.Result
	Failures      []extract.Failure
	BookmarkState bookmarks.State
	Anomalies     []*pdferrors.StructureError
	Notes         string
	PinnedTerms   []string

	// OmitDocumentData leaves documentData null.
	OmitDocumentData bool
}

// Builder assembles bundles.
type Builder struct {
	log *slog.Logger
}

// NewBuilder creates a builder; a nil logger discards output.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Builder{log: log}
}

// Build renders the document's markup and geometry into a new bundle.
func (b *Builder) Build(in Input) (*Bundle, error) {
	if in.Document == nil || in.Document.Layout == nil {
		return nil, errors.New("bundle: input has no document")
	}
	doc := in.Document

	out := &Bundle{
		Title:         in.Title,
		TOC:           doc.RenderTOC(),
		Defs:          doc.RenderDefinitions(),
		BookmarkState: in.BookmarkState,
		Version:       FormatVersion,
		Anomalies:     make([]Anomaly, 0, len(in.Anomalies)+len(in.Failures)),
		id:            uuid.New(),
	}

	ov, err := overlays(doc.Layout, in.Results)
	if err != nil {
		return nil, err
	}
	out.Overlays = ov

	if notes := strings.TrimSpace(in.Notes); notes != "" {
		out.Notepad = &notes
	}
	if names := pinnedNames(in.PinnedTerms); names != "" {
		out.PinnedTermsNames = &names
	}

	for _, a := range in.Anomalies {
		if a != nil {
			out.Anomalies = append(out.Anomalies, anomalyOf(a))
		}
	}
	for _, f := range in.Failures {
		if f.Err != nil {
			out.Anomalies = append(out.Anomalies, anomalyOf(f.Err))
		}
	}

	if !in.OmitDocumentData {
		out.DocumentData = documentData(doc.Layout)
	}

	b.log.Debug("bundle built",
		"id", out.id.String(),
		"pages", len(out.Overlays),
		"results", len(in.Results),
		"anomalies", len(out.Anomalies))
	return out, nil
}

// overlays renders one string per page, empty for pages without results.
// A result spanning pages gets one box on each page.
func overlays(l *layout.Layout, results []*extract.Result) ([]string, error) {
	perPage := make([][]*html.Node, l.PageCount())
	for _, r := range results {
		byPage := make(map[int][]*layout.Component)
		var order []int
		for _, s := range r.Sources {
			if _, seen := byPage[s.Page()]; !seen {
				order = append(order, s.Page())
			}
			byPage[s.Page()] = append(byPage[s.Page()], s)
		}
		for _, p := range order {
			geo, ok := l.PageGeometry(p)
			if !ok || p >= len(perPage) {
				continue
			}
			perPage[p] = append(perPage[p], overlayBox(geo, r, byPage[p]))
		}
	}

	out := make([]string, len(perPage))
	for i, boxes := range perPage {
		if len(boxes) == 0 {
			continue
		}
		div := markup.El(atom.Div, markup.Attrs("class", "overlay", "data-page", strconv.Itoa(i)), boxes...)
		s, err := markup.Render(div)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func overlayBox(geo geometry.PageGeometry, r *extract.Result, sources []*layout.Component) *html.Node {
	x, y, w, h := layout.Bounds(sources)
	left, top := geometry.Percent(geo.Media, geo.Trim, x, y)
	right, bottom := geometry.Percent(geo.Media, geo.Trim, x+w, y+h)

	style := "left:" + pct(left) + ";top:" + pct(top) + ";width:" + pct(right-left) + ";height:" + pct(bottom-top)
	return markup.El(atom.Div, markup.Attrs(
		"class", "result "+r.Type.String(),
		"data-section", r.Type.SectionID(),
		"data-extractor", r.Extractor,
		"title", r.Key,
		"style", style,
	))
}

func pct(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}

func pinnedNames(terms []string) string {
	var names []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			names = append(names, t)
		}
	}
	return strings.Join(names, ", ")
}

func documentData(l *layout.Layout) *DocumentData {
	data := &DocumentData{Pages: make([]PageData, 0, l.PageCount())}
	for i := 0; i < l.PageCount(); i++ {
		pd := PageData{Index: i, TextBoxes: []BoxData{}}
		if geo, ok := l.PageGeometry(i); ok {
			pd.Width, pd.Height = geo.Media.Width(), geo.Media.Height()
		}
		if page := l.Page(i); page != nil {
			for _, box := range page.TextBoxes() {
				bd := BoxData{Top: box.Y(), Height: box.Height()}
				for _, t := range box.Tokens() {
					bd.Tokens = append(bd.Tokens, TokenData{
						Text:   t.Text(),
						X:      t.X(),
						Top:    t.Y(),
						Width:  t.Width(),
						Height: t.Height(),
					})
				}
				pd.TextBoxes = append(pd.TextBoxes, bd)
			}
		}
		data.Pages = append(data.Pages, pd)
	}
	return data
}
