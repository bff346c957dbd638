// Package report renders the HTML review report for an extraction run.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

const (
	// ExcerptTokens is the length of the title page excerpt.
	ExcerptTokens = 200

	// ExcerptSkip is the fraction of the first page, from the top, whose
	// tokens are left out of the excerpt (running headers).
	ExcerptSkip = 0.125
)

//go:embed report.html.tmpl
var reportTemplate string

// Preview references an image of the first page.
type Preview struct {
	Src    string
	Width  int
	Height int
	Format string
}

// Input is the data of one report.
type Input struct {
	Title     string
	Version   string
	Generated time.Time
	Document  *structure.Document
	Results   []*extract.Result
	Failures  []extract.Failure
	Notes     string // markdown
	Preview   *Preview
}

// Group is the table of one clause type.
type Group struct {
	ID   string
	Name string
	Rows []Row
}

// Row is one result.
type Row struct {
	Page      int
	Section   string
	Key       string
	Value     template.HTML
	Extractor string
}

type view struct {
	Title     string
	Version   string
	Generated time.Time
	Excerpt   string
	Preview   *Preview
	Groups    []Group
	Failures  []string
	Notes     template.HTML
}

// Renderer holds the parsed report template.
type Renderer struct {
	tmpl *template.Template
	md   goldmark.Markdown
}

// NewRenderer parses the embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Renderer{
		tmpl: tmpl,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// Render writes the report for in to w.
func (r *Renderer) Render(w io.Writer, in Input) error {
	v := view{
		Title:     in.Title,
		Version:   in.Version,
		Generated: in.Generated,
		Preview:   in.Preview,
		Groups:    GroupResults(in.Results),
	}
	if v.Generated.IsZero() {
		v.Generated = time.Now()
	}
	if in.Document != nil && in.Document.Layout != nil {
		v.Excerpt = TitleExcerpt(in.Document.Layout, ExcerptTokens)
	}
	for _, f := range in.Failures {
		if f.Err != nil {
			v.Failures = append(v.Failures, f.Err.Error())
		}
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(notes), &buf); err != nil {
			return fmt.Errorf("failed to render notes: %w", err)
		}
		// goldmark drops raw HTML unless WithUnsafe is set
		v.Notes = template.HTML(buf.String())
	}
	if err := r.tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// RenderFile writes the report to path, creating its directory.
func (r *Renderer) RenderFile(path string, in Input) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, in); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// GroupResults buckets results by clause type in AllClauseTypes order,
// keeping the input order within a bucket. Empty buckets are left out.
func GroupResults(results []*extract.Result) []Group {
	byID := make(map[string][]Row)
	for _, res := range results {
		id := res.Type.SectionID()
		byID[id] = append(byID[id], rowOf(res))
	}
	var groups []Group
	for _, ct := range extract.AllClauseTypes() {
		rows := byID[ct.SectionID()]
		if len(rows) == 0 {
			continue
		}
		groups = append(groups, Group{ID: ct.SectionID(), Name: ct.DisplayName(), Rows: rows})
	}
	return groups
}

func rowOf(res *extract.Result) Row {
	row := Row{
		Page:      res.PageNo() + 1,
		Key:       res.Key,
		Value:     template.HTML(res.Value), // built by the markup package
		Extractor: res.Extractor,
	}
	if s := res.Section; s != nil {
		row.Section = sectionLabel(s)
	}
	return row
}

// sectionLabel is the display title, prefixed with the numbering when a
// bookmark title leaves it out.
func sectionLabel(s *structure.Section) string {
	title := s.DisplayTitle()
	if s.Numbering == "" || strings.HasPrefix(title, s.Numbering) {
		return title
	}
	return strings.TrimSpace(s.Numbering + " " + title)
}

// TitleExcerpt joins up to limit tokens of the first page, skipping those
// whose top lies in the first ExcerptSkip of the page height.
func TitleExcerpt(l *layout.Layout, limit int) string {
	page := l.Page(0)
	geo, ok := l.PageGeometry(0)
	if page == nil || !ok {
		return ""
	}
	cutoff := geo.Height() * ExcerptSkip

	var words []string
	for _, t := range page.Tokens() {
		if t.Y() < cutoff {
			continue
		}
		words = append(words, t.Text())
		if len(words) == limit {
			break
		}
	}
	return strings.Join(words, " ")
}
