// Package structure derives the logical document (sections and defined
// terms) from a frozen physical layout.
package structure

import (
	"strings"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
)

// Section is a numbered unit of the document. Number and Title are token
// anchors claimed by the section; Body holds the text boxes from the
// heading line up to the next section start. Bookmarked and BookmarkTitle
// are set by bookmark reconciliation and are the only fields written after
// detection.
type Section struct {
	ID        layout.Handle
	StartPage int
	Number    *layout.Component
	Title     []*layout.Component
	Body      []*layout.Component
	Children  []*Section
	Parent    *Section
	Numbering string
	Level     int

	Bookmarked    bool
	BookmarkTitle string
}

// TitleText returns the heading text without the number, trimmed of the
// closing period.
func (s *Section) TitleText() string {
	return strings.TrimRight(joinTokens(s.Title), ". ")
}

// Heading returns the numbering and title as printed.
func (s *Section) Heading() string {
	t := s.TitleText()
	switch {
	case s.Numbering == "":
		return t
	case t == "":
		return s.Numbering
	default:
		return s.Numbering + " " + t
	}
}

// DisplayTitle prefers the resolved bookmark title.
func (s *Section) DisplayTitle() string {
	if s.Bookmarked && s.BookmarkTitle != "" {
		return s.BookmarkTitle
	}
	return s.Heading()
}

// PlainText returns the body text, one line per text box.
func (s *Section) PlainText() string {
	lines := make([]string, 0, len(s.Body))
	for _, b := range s.Body {
		lines = append(lines, b.Text())
	}
	return strings.Join(lines, "\n")
}

// AnchorY is the vertical position of the number anchor, else the first
// title token, else 0.
func (s *Section) AnchorY() float64 {
	switch {
	case s.Number != nil:
		return s.Number.Y()
	case len(s.Title) > 0:
		return s.Title[0].Y()
	default:
		return 0
	}
}

// IsAnchor reports whether tok is the section's number or title token.
func (s *Section) IsAnchor(tok *layout.Component) bool {
	if tok == s.Number {
		return true
	}
	for _, t := range s.Title {
		if t == tok {
			return true
		}
	}
	return false
}

// BodyTokens returns the body tokens in reading order, without the
// heading anchors.
func (s *Section) BodyTokens() []*layout.Component {
	var out []*layout.Component
	for _, b := range s.Body {
		for _, t := range b.Tokens() {
			if !s.IsAnchor(t) {
				out = append(out, t)
			}
		}
	}
	return out
}

// Walk visits s and its subsections depth-first.
func (s *Section) Walk(fn func(*Section)) {
	fn(s)
	for _, c := range s.Children {
		c.Walk(fn)
	}
}

// Definition is a defined term and the text boxes that define it.
type Definition struct {
	ID      layout.Handle
	Term    []*layout.Component
	Body    []*layout.Component
	Section *Section
}

// TermText returns the term without its quotation marks.
func (d *Definition) TermText() string {
	return strings.Trim(joinTokens(d.Term), quoteChars+" ")
}

// PlainText returns the full definition text on one line.
func (d *Definition) PlainText() string {
	parts := make([]string, 0, len(d.Body))
	for _, b := range d.Body {
		parts = append(parts, b.Text())
	}
	return strings.Join(parts, " ")
}

// Page is the page of the term anchor.
func (d *Definition) Page() int {
	if len(d.Term) == 0 {
		return 0
	}
	return d.Term[0].Page()
}

// Document is the logical tree over one layout.
type Document struct {
	Layout      *layout.Layout
	Sections    []*Section
	Definitions []*Definition

	all      []*Section
	byNumber map[string]*Section
	byTerm   map[string]*Definition
	handles  map[layout.Handle]any
	owners   *layout.Ownership
}

// All returns every section in reading order.
func (d *Document) All() []*Section {
	return d.all
}

// SectionByNumber finds a section by numbering ("7.11"), ignoring a
// trailing period. Later occurrences win over table-of-contents entries.
func (d *Document) SectionByNumber(n string) *Section {
	return d.byNumber[normalizeNumber(n)]
}

// DefinitionFor matches a term case-insensitively, trimmed.
func (d *Document) DefinitionFor(term string) *Definition {
	return d.byTerm[termKey(term)]
}

// Lookup resolves an owner handle to a *Section or *Definition.
func (d *Document) Lookup(h layout.Handle) any {
	return d.handles[h]
}

// Owner returns the handle that claimed c, 0 if unclaimed.
func (d *Document) Owner(c *layout.Component) layout.Handle {
	return d.owners.Owner(c)
}

// OwnerOf returns the section or definition that claimed c, if any.
func (d *Document) OwnerOf(c *layout.Component) any {
	if h := d.owners.Owner(c); h != 0 {
		return d.handles[h]
	}
	return nil
}

// SectionAt returns the innermost section whose body contains box.
func (d *Document) SectionAt(box *layout.Component) *Section {
	var found *Section
	for _, s := range d.all {
		for _, b := range s.Body {
			if b == box {
				found = s
			}
		}
	}
	return found
}

const quoteChars = "\"“”'‘’"

func joinTokens(tokens []*layout.Component) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, t.Text())
	}
	return strings.Join(parts, " ")
}

func termKey(term string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(term), quoteChars+" .:"))
}

func normalizeNumber(n string) string {
	n = strings.TrimSpace(n)
	n = strings.TrimPrefix(n, "§")
	for _, p := range []string{"Section ", "SECTION ", "section "} {
		n = strings.TrimPrefix(n, p)
	}
	return strings.TrimRight(strings.TrimSpace(n), ".")
}
