package structure

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/markup"
)

// TOCEntry is one line of the table of contents
type TOCEntry struct {
	Level      int    `json:"level"`
	Numbering  string `json:"numbering"`
	Title      string `json:"title"`
	PageNumber int    `json:"page_number"`
	Bookmarked bool   `json:"bookmarked"`
}

// TableOfContents lists every section in reading order. Page numbers are
// 1-based.
func (d *Document) TableOfContents() []TOCEntry {
	toc := make([]TOCEntry, 0, len(d.all))
	for _, s := range d.all {
		toc = append(toc, TOCEntry{
			Level:      s.Level,
			Numbering:  s.Numbering,
			Title:      s.DisplayTitle(),
			PageNumber: s.StartPage + 1,
			Bookmarked: s.Bookmarked,
		})
	}
	return toc
}

// RenderTOC renders the section tree as nested lists.
func (d *Document) RenderTOC() string {
	if len(d.Sections) == 0 {
		return ""
	}
	return markup.MustRender(tocList(d.Sections))
}

func tocList(sections []*Section) *html.Node {
	ul := markup.El(atom.Ul, markup.Attrs("class", "toc"))
	for _, s := range sections {
		attrs := markup.Attrs("data-page", strconv.Itoa(s.StartPage), "data-section", s.Numbering)
		if s.Bookmarked {
			attrs = append(attrs, markup.A("class", "bookmarked"))
		}
		li := markup.El(atom.Li, attrs,
			markup.El(atom.Span, markup.Attrs("class", "num"), markup.Text(s.Numbering)),
			markup.Text(" "),
			markup.El(atom.Span, markup.Attrs("class", "title"), markup.Text(tocTitle(s))),
		)
		if len(s.Children) > 0 {
			li.AppendChild(tocList(s.Children))
		}
		ul.AppendChild(li)
	}
	return ul
}

func tocTitle(s *Section) string {
	if s.Bookmarked && s.BookmarkTitle != "" {
		return s.BookmarkTitle
	}
	return s.TitleText()
}

// Render returns the definition as an HTML fragment: the term in a <dfn>
// followed by the rest of the defining text.
func (d *Definition) Render() string {
	return markup.MustRender(d.node())
}

func (d *Definition) node() *html.Node {
	term := make(map[*layout.Component]bool, len(d.Term))
	for _, t := range d.Term {
		term[t] = true
	}
	var rest []string
	for _, b := range d.Body {
		for _, t := range b.Tokens() {
			if !term[t] {
				rest = append(rest, t.Text())
			}
		}
	}
	p := markup.El(atom.P, markup.Attrs("class", "definition", "data-page", strconv.Itoa(d.Page())),
		markup.El(atom.Dfn, nil, markup.Text(d.TermText())),
	)
	if len(rest) > 0 {
		p.AppendChild(markup.Text(" " + strings.Join(rest, " ")))
	}
	return p
}

// RenderDefinitions renders every definition as a description list.
func (d *Document) RenderDefinitions() string {
	if len(d.Definitions) == 0 {
		return ""
	}
	dl := markup.El(atom.Dl, markup.Attrs("class", "definitions"))
	for _, def := range d.Definitions {
		dl.AppendChild(markup.El(atom.Dt, markup.Attrs("data-page", strconv.Itoa(def.Page())), markup.Text(def.TermText())))
		dl.AppendChild(markup.El(atom.Dd, nil, def.node()))
	}
	return markup.MustRender(dl)
}
