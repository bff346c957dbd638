package extract

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/markup"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// MinTableCandidates is the number of numeric tokens on one page that
// triggers table reconstruction.
const MinTableCandidates = 3

var (
	ratioFloat   = regexp.MustCompile(`^\d{1,3}\.\d{1,3}$`)
	ratioLiteral = regexp.MustCompile(`^(\d{1,3}\.\d{1,3}):(\d{1,3}\.\d{1,3})$`)
	leadingColon = regexp.MustCompile(`^:(\d{1,3}\.\d{1,3})$`)
	trailColon   = regexp.MustCompile(`^(\d{1,3}\.\d{1,3}):$`)
	sectionRef   = regexp.MustCompile(`^(?:Section|Sections|SECTION|§)$`)

	leverageTitle = regexp.MustCompile(`(?i)leverage`)
	coverageTitle = regexp.MustCompile(`(?i)coverage|interest|fixed[ -]charge|debt service`)
)

// RatioExtractor reports financial ratio levels from sections whose title
// contains the word "ratio".
type RatioExtractor struct{}

// NewRatioExtractor creates the ratio extractor
func NewRatioExtractor() Extractor {
	return &RatioExtractor{}
}

func (e *RatioExtractor) Name() string { return "ratio" }

func (e *RatioExtractor) Type() ClauseType { return ClauseLeverageRatio }

// Run scans every ratio section. A section with neither a ratio literal
// nor a reconstructable table yields nothing.
func (e *RatioExtractor) Run(ctx context.Context, run *Run) error {
	for _, s := range run.Doc.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !titleHasWord(s, "ratio") {
			continue
		}
		if r := e.extract(run.Doc, s); r != nil {
			run.Emit(r)
		}
	}
	return nil
}

func (e *RatioExtractor) extract(doc *structure.Document, s *structure.Section) *Result {
	scan := scanRatios(s.BodyTokens())

	var tableNode *html.Node
	var tableBoxes []*layout.Component
	if page, cands := scan.densestPage(); len(cands) >= MinTableCandidates {
		tableNode, tableBoxes = reconstructTable(s, page, cands)
	}
	if len(scan.literals) == 0 && tableNode == nil {
		return nil
	}

	key := strings.Join(scan.literals, "; ")
	if key == "" {
		key = s.Heading()
	}

	body := markup.El(atom.Div, markup.Attrs("class", "clause ratio", "data-section", s.Numbering))
	if len(scan.literals) > 0 {
		body.AppendChild(markup.El(atom.P, markup.Attrs("class", "literals"), markup.Text(key)))
	}
	if tableNode != nil {
		body.AppendChild(tableNode)
	}
	if def := doc.DefinitionFor(s.TitleText()); def != nil {
		if n, err := markup.Wrap(atom.Div, markup.Attrs("class", "defined-term"), def.Render()); err == nil {
			body.AppendChild(n)
		}
	} else {
		body.AppendChild(markup.El(atom.P, markup.Attrs("class", "section-text"), markup.Text(s.PlainText())))
	}

	sources := append(scan.evidence, tableBoxes...)
	r, err := NewResult(ratioType(s), key, markup.MustRender(body), s, sources...)
	if err != nil {
		return nil
	}
	return r
}

func ratioType(s *structure.Section) ClauseType {
	title := s.TitleText()
	switch {
	case leverageTitle.MatchString(title):
		return ClauseLeverageRatio
	case coverageTitle.MatchString(title):
		return ClauseCoverageRatio
	default:
		return ClauseOther
	}
}

type ratioState int

const (
	stateIdle ratioState = iota
	stateNumber
	stateConnector
	stateReference
)

// ratioScan is the outcome of feeding a token stream through the ratio
// state machine.
type ratioScan struct {
	literals   []string
	evidence   []*layout.Component
	candidates map[int][]*layout.Component
	pages      []int
}

// scanRatios walks tokens in reading order. "a:b" is a literal on its
// own; a number then ":" or "to" then a number is one literal, and the
// connector may be glued to either number. A second number without a
// connector replaces the pending one. Any other word resets the machine.
// The number after "Section" is a reference and is ignored.
func scanRatios(tokens []*layout.Component) *ratioScan {
	sc := &ratioScan{candidates: make(map[int][]*layout.Component)}
	var (
		state   = stateIdle
		pending string
		from    *layout.Component
	)
	emit := func(a, b string, toks ...*layout.Component) {
		sc.literals = append(sc.literals, a+" to "+b)
		for _, t := range toks {
			if t != nil && t.Parent() != nil {
				sc.evidence = append(sc.evidence, t.Parent())
			}
		}
		state, pending, from = stateIdle, "", nil
	}

	for _, tok := range tokens {
		text := trimToken(tok.Text())
		if state == stateReference {
			state = stateIdle
			if ratioFloat.MatchString(text) {
				continue
			}
		}

		switch {
		case sectionRef.MatchString(text):
			state, pending, from = stateReference, "", nil

		case ratioLiteral.MatchString(text):
			sc.candidate(tok)
			m := ratioLiteral.FindStringSubmatch(text)
			emit(m[1], m[2], tok)

		case trailColon.MatchString(text):
			sc.candidate(tok)
			state, pending, from = stateConnector, trailColon.FindStringSubmatch(text)[1], tok

		case leadingColon.MatchString(text):
			sc.candidate(tok)
			b := leadingColon.FindStringSubmatch(text)[1]
			if state == stateNumber {
				emit(pending, b, from, tok)
			} else {
				state, pending, from = stateNumber, b, tok
			}

		case ratioFloat.MatchString(text):
			sc.candidate(tok)
			if state == stateConnector {
				emit(pending, text, from, tok)
			} else {
				state, pending, from = stateNumber, text, tok
			}

		case text == ":" || strings.EqualFold(text, "to"):
			if state == stateNumber {
				state = stateConnector
			}

		default:
			state, pending, from = stateIdle, "", nil
		}
	}
	return sc
}

func (sc *ratioScan) candidate(tok *layout.Component) {
	p := tok.Page()
	if _, ok := sc.candidates[p]; !ok {
		sc.pages = append(sc.pages, p)
	}
	sc.candidates[p] = append(sc.candidates[p], tok)
}

// densestPage returns the first page holding the most candidates.
func (sc *ratioScan) densestPage() (int, []*layout.Component) {
	best := -1
	for _, p := range sc.pages {
		if best < 0 || len(sc.candidates[p]) > len(sc.candidates[best]) {
			best = p
		}
	}
	if best < 0 {
		return 0, nil
	}
	return best, sc.candidates[best]
}

// trimToken strips surrounding punctuation that is never part of a ratio.
func trimToken(s string) string {
	s = strings.TrimLeft(s, "(")
	s = strings.TrimRight(s, ",;)")
	if strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "..") {
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

func titleHasWord(s *structure.Section, word string) bool {
	for _, t := range s.Title {
		if strings.EqualFold(strings.Trim(t.Text(), ".,;:()\"“”"), word) {
			return true
		}
	}
	return false
}
