package structure

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
)

// DetectionConfig configures structure detection behavior
type DetectionConfig struct {
	MarginTolerance float64 // Max distance of a section number from the page's left text margin
	MaxTitleTokens  int     // Title runs longer than this are cut at the line end
	CapsTitleLookup bool    // Take an all-caps next line as the title of an untitled ARTICLE
}

// DefaultDetectionConfig returns default configuration
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		MarginTolerance: 36,
		MaxTitleTokens:  24,
		CapsTitleLookup: true,
	}
}

var (
	sectionWord    = regexp.MustCompile(`^(?:Section|SECTION|Sec\.|SEC\.|§)$`)
	articleWord    = regexp.MustCompile(`^(?:ARTICLE|Article)$`)
	sectionNumber  = regexp.MustCompile(`^§?(\d{1,3}(?:\.\d{1,3}){0,3})\.?$`)
	dottedNumber   = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){0,3}\.$|^\d{1,3}(?:\.\d{1,3}){1,3}$`)
	articleNumber  = regexp.MustCompile(`^([IVXLC]{1,7}|\d{1,2})[.:]?$`)
	leaderDots     = regexp.MustCompile(`\.{4,}|…{2,}|(?:\. ){3,}`)
	definitionVerb = regexp.MustCompile(`^(?:means|mean|shall mean|has the meaning|have the meaning|shall have the meaning|includes|shall include)\b`)
)

// Detector builds a Document from a Layout.
type Detector struct {
	config DetectionConfig
	log    *slog.Logger
}

// NewDetector creates a detector; a nil logger discards output.
func NewDetector(config DetectionConfig, log *slog.Logger) *Detector {
	if config.MaxTitleTokens <= 0 {
		config.MaxTitleTokens = DefaultDetectionConfig().MaxTitleTokens
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Detector{config: config, log: log}
}

type heading struct {
	number    *layout.Component
	title     []*layout.Component
	numbering string
	level     int
	skipNext  bool
}

// Detect walks the text boxes of every page in reading order, opening a
// section at each numbered heading and a definition at each quoted term
// followed by a defining verb. Sections nest by numbering depth.
func (d *Detector) Detect(l *layout.Layout) (*Document, error) {
	doc := &Document{
		Layout:   l,
		byNumber: make(map[string]*Section),
		byTerm:   make(map[string]*Definition),
		handles:  make(map[layout.Handle]any),
		owners:   layout.NewOwnership(),
	}

	var (
		next     layout.Handle = 1
		stack    []*Section
		current  *Section
		defn     *Definition
		skipNext bool
	)

	for _, page := range l.Pages() {
		boxes := page.TextBoxes()
		margin := leftMargin(boxes)

		for i, box := range boxes {
			if skipNext {
				skipNext = false
				if current != nil {
					current.Body = append(current.Body, box)
				}
				continue
			}

			if h, ok := d.matchHeading(box, margin, boxes, i); ok {
				s := &Section{
					ID:        next,
					StartPage: page.Page(),
					Number:    h.number,
					Title:     h.title,
					Body:      []*layout.Component{box},
					Numbering: h.numbering,
					Level:     h.level,
				}
				next++
				if err := claimAll(doc.owners, s.ID, append([]*layout.Component{s.Number}, s.Title...)); err != nil {
					return nil, fmt.Errorf("section %s: %w", s.Numbering, err)
				}

				for len(stack) > 0 && stack[len(stack)-1].Level >= s.Level {
					stack = stack[:len(stack)-1]
				}
				if len(stack) > 0 {
					parent := stack[len(stack)-1]
					s.Parent = parent
					parent.Children = append(parent.Children, s)
				} else {
					doc.Sections = append(doc.Sections, s)
				}
				stack = append(stack, s)

				doc.all = append(doc.all, s)
				doc.byNumber[normalizeNumber(s.Numbering)] = s
				doc.handles[s.ID] = s
				current = s
				defn = nil
				skipNext = h.skipNext
				continue
			}

			if current != nil {
				current.Body = append(current.Body, box)
			}

			if term := matchDefinition(box); term != nil {
				defn = &Definition{ID: next, Term: term, Body: []*layout.Component{box}, Section: current}
				next++
				if err := claimAll(doc.owners, defn.ID, term); err != nil {
					return nil, fmt.Errorf("definition %q: %w", defn.TermText(), err)
				}
				doc.Definitions = append(doc.Definitions, defn)
				doc.handles[defn.ID] = defn
				if key := termKey(defn.TermText()); key != "" {
					if _, dup := doc.byTerm[key]; !dup {
						doc.byTerm[key] = defn
					}
				}
				continue
			}
			if defn != nil {
				defn.Body = append(defn.Body, box)
			}
		}
	}

	d.log.Debug("structure detected", "sections", len(doc.all), "definitions", len(doc.Definitions))
	return doc, nil
}

// matchHeading recognizes "Section 7.11 Title.", "7.11 Title." and
// "ARTICLE VII" lines. Numeric headings must start at the left margin.
func (d *Detector) matchHeading(box *layout.Component, margin float64, boxes []*layout.Component, idx int) (heading, bool) {
	tokens := box.Tokens()
	if len(tokens) == 0 || leaderDots.MatchString(box.Text()) {
		return heading{}, false
	}

	var h heading
	first := tokens[0].Text()
	rest := tokens[1:]

	switch {
	case articleWord.MatchString(first) && len(rest) > 0 && articleNumber.MatchString(rest[0].Text()):
		h.number = rest[0]
		h.numbering = strings.TrimRight(rest[0].Text(), ".:")
		h.level = 1
		rest = rest[1:]
		if len(rest) == 0 && d.config.CapsTitleLookup && idx+1 < len(boxes) && isCapsLine(boxes[idx+1]) {
			h.title = boxes[idx+1].Tokens()
			h.skipNext = true
			return h, true
		}
		h.title = titleRun(rest, d.config.MaxTitleTokens)
		return h, true

	case sectionWord.MatchString(first) && len(rest) > 0:
		m := sectionNumber.FindStringSubmatch(rest[0].Text())
		if m == nil {
			return heading{}, false
		}
		h.number = rest[0]
		h.numbering = m[1]
		rest = rest[1:]

	case dottedNumber.MatchString(first):
		h.number = tokens[0]
		h.numbering = strings.TrimRight(strings.TrimPrefix(first, "§"), ".")

	default:
		return heading{}, false
	}

	if box.X()-margin > d.config.MarginTolerance {
		return heading{}, false
	}
	if len(rest) > 0 && !startsTitle(rest[0].Text()) {
		return heading{}, false
	}
	if len(rest) == 0 && h.number == tokens[0] {
		// a bare number on its own line is more often a page number
		return heading{}, false
	}
	h.level = 1 + strings.Count(h.numbering, ".") + 1
	h.title = titleRun(rest, d.config.MaxTitleTokens)
	return h, true
}

// titleRun takes tokens up to and including the first one ending in a
// period; without one the whole remainder of the line is the title.
func titleRun(tokens []*layout.Component, limit int) []*layout.Component {
	for i, t := range tokens {
		if strings.HasSuffix(t.Text(), ".") && !isAbbreviation(t.Text()) {
			return tokens[:i+1]
		}
	}
	if len(tokens) > limit {
		return nil
	}
	return tokens
}

// matchDefinition returns the quoted term tokens when the box opens with
// a quoted term followed by a defining verb.
func matchDefinition(box *layout.Component) []*layout.Component {
	tokens := box.Tokens()
	if len(tokens) < 2 || !strings.ContainsAny(firstRune(tokens[0].Text()), "\"“") {
		return nil
	}
	for i, t := range tokens {
		text := strings.TrimRight(t.Text(), ",;:")
		if !(strings.HasSuffix(text, "\"") || strings.HasSuffix(text, "”")) {
			continue
		}
		if i == 0 && len([]rune(text)) < 3 {
			continue
		}
		var after []string
		for _, rt := range tokens[i+1:] {
			after = append(after, rt.Text())
			if len(after) == 4 {
				break
			}
		}
		if definitionVerb.MatchString(strings.Join(after, " ")) {
			return tokens[:i+1]
		}
		return nil
	}
	return nil
}

func claimAll(owners *layout.Ownership, h layout.Handle, comps []*layout.Component) error {
	for _, c := range comps {
		if c == nil {
			continue
		}
		if err := owners.Claim(c, h); err != nil {
			return err
		}
	}
	return nil
}

func leftMargin(boxes []*layout.Component) float64 {
	m := math.Inf(1)
	for _, b := range boxes {
		m = math.Min(m, b.X())
	}
	if math.IsInf(m, 1) {
		return 0
	}
	return m
}

func startsTitle(s string) bool {
	r := []rune(strings.TrimLeft(s, quoteChars+"("))
	return len(r) > 0 && !unicode.IsLower(r[0]) && !unicode.IsDigit(r[0])
}

func isCapsLine(box *layout.Component) bool {
	text := box.Text()
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}

func isAbbreviation(s string) bool {
	switch strings.ToLower(s) {
	case "inc.", "co.", "corp.", "ltd.", "no.", "u.s.", "n.a.", "l.p.", "e.g.", "i.e.":
		return true
	}
	return false
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
