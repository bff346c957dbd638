package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/markup"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure/structuretest"
)

// tokens attaches texts to one text box so that evidence resolves.
func tokens(texts ...string) []*layout.Component {
	box := layout.NewComponent(layout.KindTextBox, 0, 0, 100, 600, 12)
	out := make([]*layout.Component, 0, len(texts))
	for i, s := range texts {
		tok := layout.NewToken(0, float64(10+i*40), 100, 30, 12, s, 10)
		if err := box.AddChild(tok); err != nil {
			panic(err)
		}
		out = append(out, tok)
	}
	return out
}

func TestScanRatios(t *testing.T) {
	tests := []struct {
		name       string
		tokens     []string
		literals   []string
		candidates int
	}{
		{"single literal token", []string{"1.95:1.00"}, []string{"1.95 to 1.00"}, 1},
		{"colon between numbers", []string{"1.95", ":", "1.00"}, []string{"1.95 to 1.00"}, 2},
		{"word connector", []string{"exceed", "4.00", "to", "1.00."}, []string{"4.00 to 1.00"}, 2},
		{"glued trailing colon", []string{"1.95:", "1.00"}, []string{"1.95 to 1.00"}, 2},
		{"glued leading colon", []string{"1.95", ":1.00"}, []string{"1.95 to 1.00"}, 2},
		{"three numbers no connector", []string{"1.95", "2.00", "3.00"}, nil, 3},
		{"second number replaces pending", []string{"1.95", "2.00", "to", "1.00"}, []string{"2.00 to 1.00"}, 3},
		{"word resets", []string{"1.95", "and", "to", "1.00"}, nil, 2},
		{"section reference ignored", []string{"Section", "7.11", "to", "1.00"}, nil, 1},
		{"two literals", []string{"(4.50:1.00)", "then", "4.25", "to", "1.00;"}, []string{"4.50 to 1.00", "4.25 to 1.00"}, 3},
		{"integer literal is not a ratio", []string{"2:1"}, nil, 0},
		{"integer operands are not a ratio", []string{"2", "to", "1"}, nil, 0},
		{"integer denominator resets", []string{"4.00", "to", "1"}, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := scanRatios(tokens(tt.tokens...))
			assert.Equal(t, tt.literals, sc.literals)
			_, cands := sc.densestPage()
			assert.Len(t, cands, tt.candidates)
			if len(tt.literals) > 0 {
				assert.NotEmpty(t, sc.evidence)
			}
		})
	}
}

func TestRatioExtractor_Fixture(t *testing.T) {
	doc := structuretest.CreditAgreement(t)
	run := newRun(doc, ClassCreditAgreement, "ratio", NewSink())

	require.NoError(t, NewRatioExtractor().Run(context.Background(), run))

	results := run.Results()
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "4.50 to 1.00; 4.00 to 1.00", r.Key)
	assert.Equal(t, ClauseLeverageRatio, r.Type)
	assert.Equal(t, "ratio", r.Extractor)
	assert.Equal(t, "7.11", r.Section.Numbering)
	assert.Equal(t, 0, r.PageNo())
	require.Len(t, r.Sources, 2)
	assert.Same(t, r.Section.Body[1], r.Sources[0])

	// the section title is a defined term, so its definition is embedded
	dfn := markup.Find(r.Value, atom.Dfn)
	require.NotNil(t, dfn)
	assert.Contains(t, markup.TextContent(r.Value), "means the ratio of Debt to EBITDA")
	// prose lines do not form a table
	assert.Nil(t, markup.Find(r.Value, atom.Table))
}

func TestRatioExtractor_TableAndFallbackText(t *testing.T) {
	row := func(label, value string, y float64) []wrapper.TextRun {
		return []wrapper.TextRun{
			{Text: label, X: 72, Y: y, Width: float64(len(label)) * 5, FontSize: 10},
			{Text: value, X: 320, Y: y, Width: 45, FontSize: 10},
		}
	}
	runs := []wrapper.TextRun{{Text: "Section 6.01 Fixed Charge Coverage Ratio.", X: 72, Y: 720, Width: 205, FontSize: 10}}
	runs = append(runs, row("March 31, 2025", "1.25:1.00", 700)...)
	runs = append(runs, row("June 30, 2025", "1.30:1.00", 686)...)
	runs = append(runs, row("September 30, 2025", "1.35:1.00", 672)...)

	doc := structuretest.Build(t, wrapper.NewMemoryDocument([]wrapper.MemoryPage{wrapper.LetterPage(0, runs...)}, nil, nil))
	run := newRun(doc, ClassCreditAgreement, "ratio", NewSink())
	require.NoError(t, NewRatioExtractor().Run(context.Background(), run))

	results := run.Results()
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, ClauseCoverageRatio, r.Type)
	assert.Equal(t, "1.25 to 1.00; 1.30 to 1.00; 1.35 to 1.00", r.Key)
	assert.Len(t, r.Sources, 6)

	require.NotNil(t, markup.Find(r.Value, atom.Table))
	assert.Equal(t, 3, markup.Count(r.Value, atom.Tr))
	assert.Equal(t, 6, markup.Count(r.Value, atom.Td))
	assert.Contains(t, r.Value, "<td>September 30, 2025</td><td>1.35:1.00</td>")

	// no definition of the title: the section text is used
	assert.NotNil(t, markup.Find(r.Value, atom.P))
	assert.Contains(t, r.Value, `class="section-text"`)
}

func TestRatioExtractor_NoRatioNoResult(t *testing.T) {
	doc := structuretest.Build(t, structuretest.Document([][]string{{
		"Section 6.02 Interest Coverage Ratio.",
		"The ratio shall be tested quarterly.",
		"Section 6.03 Reports.",
		"Deliver 1.50:1.00 certificates.",
	}}, nil, nil))
	run := newRun(doc, ClassUnknown, "ratio", NewSink())
	require.NoError(t, NewRatioExtractor().Run(context.Background(), run))
	assert.Empty(t, run.Results())
}

func TestRatioExtractor_StopsOnCanceledContext(t *testing.T) {
	doc := structuretest.CreditAgreement(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := newRun(doc, ClassCreditAgreement, "ratio", NewSink())
	assert.ErrorIs(t, NewRatioExtractor().Run(ctx, run), context.Canceled)
}
