package intelligence

import "github.com/a3tai/mcp-pdf-covenants/internal/extract"

// defaultRules returns the built-in rules, two per tag.
func defaultRules() []Rule {
	return []Rule{
		// Credit agreements
		{
			Name: "credit_agreement_keywords",
			Tag:  extract.ClassCreditAgreement,
			Keywords: []string{
				"credit agreement", "revolving", "administrative agent", "lenders",
				"letter of credit", "term loan", "swingline", "commitments",
			},
			KeywordPatterns: []string{
				`credit\s+agreement`,
				`administrative\s+agent`,
				`(?:revolving|term)\s+(?:credit|loan)\s+facilit`,
			},
			Weight:        0.9,
			MinConfidence: 0.3,
			Enabled:       true,
			Description:   "Syndicated credit facility terminology",
		},
		{
			Name: "credit_agreement_structure",
			Tag:  extract.ClassCreditAgreement,
			StructureRules: []StructureRule{
				{Element: "ratio_sections", MinCount: 1, Confidence: 0.4},
				{Element: "definitions", MinCount: 2, Confidence: 0.2},
			},
			Weight:        0.5,
			MinConfidence: 0.4,
			Enabled:       true,
			Description:   "Maintenance covenants and a definitions article",
		},

		// Indentures
		{
			Name: "indenture_keywords",
			Tag:  extract.ClassIndenture,
			Keywords: []string{
				"indenture", "trustee", "holders", "notes", "noteholders",
				"supplemental indenture", "redemption", "paying agent",
			},
			KeywordPatterns: []string{
				`\bindenture\b`,
				`\d+(?:\.\d+)?%\s+senior\s+(?:secured\s+)?notes`,
				`trustee`,
			},
			Weight:        0.9,
			MinConfidence: 0.3,
			Enabled:       true,
			Description:   "Bond indenture terminology",
		},
		{
			Name: "indenture_structure",
			Tag:  extract.ClassIndenture,
			StructureRules: []StructureRule{
				{Element: "articles", MinCount: 3, Confidence: 0.2},
				{Element: "definitions", MinCount: 2, Confidence: 0.1},
			},
			Weight:        0.4,
			MinConfidence: 0.2,
			Enabled:       true,
			Description:   "Many articles and a definitions section",
		},

		// Bilateral loan agreements
		{
			Name: "loan_agreement_keywords",
			Tag:  extract.ClassLoanAgreement,
			Keywords: []string{
				"loan agreement", "lender", "borrower", "promissory note", "the loan",
			},
			KeywordPatterns: []string{
				`\bloan\s+agreement\b`,
				`promissory\s+note`,
			},
			Weight:        0.8,
			MinConfidence: 0.3,
			Enabled:       true,
			Description:   "Single lender loan terminology",
		},
		{
			Name: "loan_agreement_structure",
			Tag:  extract.ClassLoanAgreement,
			StructureRules: []StructureRule{
				{Element: "sections", MinCount: 1, MaxCount: 40, Confidence: 0.2},
			},
			Weight:        0.3,
			MinConfidence: 0.2,
			Enabled:       true,
			Description:   "Short agreements with few sections",
		},
	}
}
