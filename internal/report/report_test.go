package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure/structuretest"
)

func results(t *testing.T, doc *structure.Document) []*extract.Result {
	t.Helper()
	s711, s712 := doc.SectionByNumber("7.11"), doc.SectionByNumber("7.12")
	liens, err := extract.NewResult(extract.ClauseLiens, "Section 7.12 Liens.", "<ul><li>No Liens.</li></ul>", s712, s712.Number)
	require.NoError(t, err)
	liens.Extractor = "liens"
	ratio, err := extract.NewResult(extract.ClauseLeverageRatio, "4.50 to 1.00", `<p class="literals">4.50 to 1.00</p>`, s711, s711.Number)
	require.NoError(t, err)
	ratio.Extractor = "ratio"
	return []*extract.Result{liens, ratio}
}

func TestTitleExcerpt(t *testing.T) {
	doc := structuretest.CreditAgreement(t)

	assert.Equal(t, `"Consolidated Total Net Leverage Ratio"`, TitleExcerpt(doc.Layout, 5))

	full := TitleExcerpt(doc.Layout, ExcerptTokens)
	assert.NotContains(t, full, "ARTICLE I ")
	assert.NotContains(t, full, "Defined Terms")
	assert.True(t, strings.HasSuffix(full, "thereafter."))
}

func TestGroupResults(t *testing.T) {
	doc := structuretest.CreditAgreement(t)

	groups := GroupResults(results(t, doc))
	require.Len(t, groups, 2)
	assert.Equal(t, "clause-leverage-ratio", groups[0].ID)
	assert.Equal(t, "clause-liens", groups[1].ID)

	row := groups[1].Rows[0]
	assert.Equal(t, 2, row.Page)
	assert.Equal(t, "7.12 Liens", row.Section)
	assert.Equal(t, "liens", row.Extractor)
}

func TestSectionLabel(t *testing.T) {
	tests := []struct {
		name    string
		section *structure.Section
		want    string
	}{
		{"heading", &structure.Section{Numbering: "7.12"}, "7.12"},
		{"bookmark with number", &structure.Section{Numbering: "7.12", Bookmarked: true, BookmarkTitle: "7.12 Liens"}, "7.12 Liens"},
		{"bookmark without number", &structure.Section{Numbering: "7.12", Bookmarked: true, BookmarkTitle: "Liens"}, "7.12 Liens"},
		{"unnumbered", &structure.Section{Bookmarked: true, BookmarkTitle: "Schedules"}, "Schedules"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sectionLabel(tt.section))
		})
	}
}

func TestRenderer_Render(t *testing.T) {
	doc := structuretest.CreditAgreement(t)
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.Render(&buf, Input{
		Title:     "Acme <Credit> Agreement",
		Version:   "1.2.0",
		Generated: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Document:  doc,
		Results:   results(t, doc),
		Failures: []extract.Failure{{
			Extractor: "indebtedness",
			Err:       pdferrors.New(pdferrors.ErrorTypeTimeout, "deadline exceeded").WithExtractor("indebtedness"),
		}},
		Notes:   "**check** the step-down <script>alert(1)</script>",
		Preview: &Preview{Src: "page-1.png", Width: 612, Height: 792},
	})
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "Acme &lt;Credit&gt; Agreement")
	assert.Contains(t, out, "Generated 2024-03-01 12:00 UTC by version 1.2.0")
	assert.Contains(t, out, `<img src="page-1.png" alt="first page preview" width="612" height="792">`)
	assert.Contains(t, out, `<p class="excerpt">&#34;Consolidated Total Net Leverage Ratio&#34; means`)
	assert.Contains(t, out, `<section id="clause-leverage-ratio">`)
	assert.Contains(t, out, `<td><p class="literals">4.50 to 1.00</p></td>`)
	assert.Less(t, strings.Index(out, "clause-leverage-ratio"), strings.Index(out, "clause-liens"))
	assert.Contains(t, out, "indebtedness: deadline exceeded")
	assert.Contains(t, out, "<strong>check</strong>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "No covenant clauses were found")
}

func TestRenderer_Empty(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, Input{Title: "Empty"}))
	out := buf.String()
	assert.Contains(t, out, "No covenant clauses were found")
	assert.NotContains(t, out, `id="notes"`)
	assert.NotContains(t, out, "<figure")
}

func TestRenderer_RenderFile(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "report.html")

	require.NoError(t, r.RenderFile(path, Input{Title: "File"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>File</h1>")
}
