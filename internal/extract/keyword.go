package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/markup"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// The English punkt model is loaded once and shared; tokenizing does not
// modify it.
var englishTokenizer = sync.OnceValues(func() (*sentences.DefaultSentenceTokenizer, error) {
	return english.NewSentenceTokenizer(nil)
})

// KeywordExtractor reports the sentences of matching sections that
// mention its keyword.
type KeywordExtractor struct {
	name    string
	typ     ClauseType
	title   *regexp.Regexp
	keyword *regexp.Regexp
}

// NewKeywordExtractor creates an extractor for sections whose title
// matches title, keeping body sentences that match keyword.
func NewKeywordExtractor(name string, typ ClauseType, title, keyword *regexp.Regexp) *KeywordExtractor {
	return &KeywordExtractor{name: name, typ: typ, title: title, keyword: keyword}
}

// NewLiensExtractor creates the liens extractor
func NewLiensExtractor() Extractor {
	return NewKeywordExtractor("liens", ClauseLiens,
		regexp.MustCompile(`(?i)\blien`),
		regexp.MustCompile(`(?i)\blien|\bencumbrance|\bsecurity interest`))
}

// NewIndebtednessExtractor creates the indebtedness extractor
func NewIndebtednessExtractor() Extractor {
	return NewKeywordExtractor("indebtedness", ClauseIndebtedness,
		regexp.MustCompile(`(?i)indebtedness|\bdebt\b`),
		regexp.MustCompile(`(?i)indebtedness|\bdebt\b|\bborrow`))
}

// NewRestrictedPaymentsExtractor creates the restricted payments extractor
func NewRestrictedPaymentsExtractor() Extractor {
	return NewKeywordExtractor("restricted_payments", ClauseRestrictedPayment,
		regexp.MustCompile(`(?i)restricted payment|dividend`),
		regexp.MustCompile(`(?i)restricted payment|dividend|distribution|repurchase|redeem`))
}

func (e *KeywordExtractor) Name() string { return e.name }

func (e *KeywordExtractor) Type() ClauseType { return e.typ }

func (e *KeywordExtractor) Run(ctx context.Context, run *Run) error {
	tok, err := englishTokenizer()
	if err != nil {
		return fmt.Errorf("load sentence model: %w", err)
	}
	for _, s := range run.Doc.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.title.MatchString(s.TitleText()) {
			continue
		}
		if r := e.extract(tok, s); r != nil {
			run.Emit(r)
		}
	}
	return nil
}

// boxSpan is a text box's byte range in the joined body text.
type boxSpan struct {
	box        *layout.Component
	start, end int
}

func (e *KeywordExtractor) extract(tok *sentences.DefaultSentenceTokenizer, s *structure.Section) *Result {
	text, spans := bodyText(s)

	var kept []string
	evidence := append([]*layout.Component{}, s.Title...)
	if s.Number != nil {
		evidence = append(evidence, s.Number)
	}

	cursor := 0
	for _, sent := range tok.Tokenize(text) {
		st := strings.TrimSpace(sent.Text)
		if st == "" {
			continue
		}
		start := strings.Index(text[cursor:], st)
		if start < 0 {
			continue
		}
		start += cursor
		end := start + len(st)
		cursor = end

		if !e.keyword.MatchString(st) {
			continue
		}
		kept = append(kept, st)
		for _, sp := range spans {
			if sp.start < end && start < sp.end {
				evidence = append(evidence, sp.box)
			}
		}
	}

	var value string
	if len(kept) == 0 {
		value = markup.MustRender(markup.El(atom.P, markup.Attrs("class", "section-text"), markup.Text(s.PlainText())))
		evidence = append(evidence, s.Body...)
	} else {
		ul := markup.El(atom.Ul, markup.Attrs("class", "clause "+e.name, "data-section", s.Numbering))
		for _, k := range kept {
			ul.AppendChild(markup.El(atom.Li, nil, markup.Text(k)))
		}
		value = markup.MustRender(ul)
	}

	r, err := NewResult(e.typ, s.Heading(), value, s, evidence...)
	if err != nil {
		return nil
	}
	return r
}

// bodyText joins the section's body text boxes, recording where each box
// lands. The heading line contributes only what follows the title.
func bodyText(s *structure.Section) (string, []boxSpan) {
	var sb strings.Builder
	var spans []boxSpan
	for i, b := range s.Body {
		text := b.Text()
		if i == 0 {
			text = headingRemainder(s, b)
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		start := sb.Len()
		sb.WriteString(text)
		spans = append(spans, boxSpan{box: b, start: start, end: sb.Len()})
	}
	return sb.String(), spans
}

func headingRemainder(s *structure.Section, heading *layout.Component) string {
	var parts []string
	for i, t := range heading.Tokens() {
		if s.IsAnchor(t) || (i == 0 && sectionRef.MatchString(t.Text())) {
			continue
		}
		parts = append(parts, t.Text())
	}
	return strings.Join(parts, " ")
}
