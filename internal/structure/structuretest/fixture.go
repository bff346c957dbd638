// Package structuretest provides small documents for tests of packages
// that consume the logical structure.
package structuretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// CreditAgreementPages is a two page credit agreement excerpt. Lines are
// 14 units apart starting at baseline 720 (top 62 in layout coordinates).
var CreditAgreementPages = [][]string{
	{
		"ARTICLE I",
		"DEFINITIONS",
		"Section 1.01 Defined Terms.",
		"\"Consolidated Total Net Leverage Ratio\" means the ratio of Debt to EBITDA",
		"for the most recent Test Period.",
		"\"Debt\" means all indebtedness for borrowed money.",
		"ARTICLE VII",
		"NEGATIVE COVENANTS",
		"Section 7.11 Consolidated Total Net Leverage Ratio.",
		"The Borrower shall not permit the ratio to exceed 4.50:1.00 as of the",
		"last day of any Test Period, stepping down to 4.00 to 1.00 thereafter.",
	},
	{
		"Section 7.12 Liens.",
		"The Borrower shall not create any Lien on its property. Permitted Liens",
		"are described in Section 7.11. Taxes are not Liens.",
		"Section 7.13 Indebtedness.",
		"No Loan Party shall incur Indebtedness except as set forth in Section 9.99.",
	},
}

// Document builds the memory document for pages of lines.
func Document(pages [][]string, outline []wrapper.OutlineItem, props map[string]string) *wrapper.MemoryDocument {
	mp := make([]wrapper.MemoryPage, len(pages))
	for i, lines := range pages {
		mp[i] = wrapper.LinePage(i, lines...)
	}
	return wrapper.NewMemoryDocument(mp, outline, props)
}

// Build runs the layout builder and the detector over doc.
func Build(t testing.TB, doc wrapper.Document) *structure.Document {
	t.Helper()
	l, err := layout.NewBuilder(layout.DefaultBuilderConfig(), nil).Build(context.Background(), doc)
	require.NoError(t, err)
	d, err := structure.NewDetector(structure.DefaultDetectionConfig(), nil).Detect(l)
	require.NoError(t, err)
	return d
}

// CreditAgreement builds the structure of CreditAgreementPages.
func CreditAgreement(t testing.TB) *structure.Document {
	t.Helper()
	return Build(t, Document(CreditAgreementPages, nil, nil))
}
