package extract

import (
	"context"
	"regexp"
	"strconv"

	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-pdf-covenants/internal/markup"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

var referencedNumber = regexp.MustCompile(`^\(?(\d{1,3}(?:\.\d{1,3}){0,3})`)

// CrossReferenceExtractor links "Section N" mentions in a section body to
// the section they name.
type CrossReferenceExtractor struct{}

// NewCrossReferenceExtractor creates the cross reference extractor
func NewCrossReferenceExtractor() Extractor {
	return &CrossReferenceExtractor{}
}

func (e *CrossReferenceExtractor) Name() string { return "cross_reference" }

func (e *CrossReferenceExtractor) Type() ClauseType { return ClauseCrossReference }

// Run emits one result per distinct (from, to) pair. References to
// unknown sections and to the section itself are ignored.
func (e *CrossReferenceExtractor) Run(ctx context.Context, run *Run) error {
	for _, s := range run.Doc.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen := make(map[*structure.Section]bool)
		for _, box := range s.Body {
			tokens := box.Tokens()
			for i := 0; i+1 < len(tokens); i++ {
				if !sectionRef.MatchString(tokens[i].Text()) || s.IsAnchor(tokens[i+1]) {
					continue
				}
				m := referencedNumber.FindStringSubmatch(tokens[i+1].Text())
				if m == nil {
					continue
				}
				target := run.Doc.SectionByNumber(m[1])
				if target == nil || target == s || seen[target] {
					continue
				}
				seen[target] = true

				value := markup.MustRender(markup.El(atom.P, markup.Attrs("class", "xref"),
					markup.El(atom.A, markup.Attrs("href", "#section-"+target.Numbering, "data-page", strconv.Itoa(target.StartPage)),
						markup.Text("Section "+target.Numbering)),
					markup.Text(" "+target.TitleText()),
				))
				r, err := NewResult(ClauseCrossReference, s.Numbering+" → "+target.Numbering, value, s, box)
				if err != nil {
					continue
				}
				run.Emit(r)
			}
		}
	}
	return nil
}
