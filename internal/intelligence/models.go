package intelligence

import (
	"time"

	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
)

// Classification is the outcome of classifying one document
type Classification struct {
	// Primary classification
	Tag        extract.Classification `json:"tag"`
	Confidence float64                `json:"confidence"` // 0.0 to 1.0

	// Alternative classifications
	Alternatives []Alternative `json:"alternatives,omitempty"`

	// Classification reasoning
	Reasons []Reason `json:"reasons"`

	RulesApplied []string      `json:"rules_applied"`
	Features     Features      `json:"features"`
	ElapsedTime  time.Duration `json:"elapsed"`
}

// Alternative is a runner-up tag
type Alternative struct {
	Tag        extract.Classification `json:"tag"`
	Confidence float64                `json:"confidence"`
}

// Reason explains a contribution to a tag's score
type Reason struct {
	Rule       string  `json:"rule"`     // Name of the rule that triggered
	Category   string  `json:"category"` // keyword, pattern, structure
	Evidence   string  `json:"evidence"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// Rule scores one classification tag
type Rule struct {
	Name string                 `json:"name"`
	Tag  extract.Classification `json:"tag"`

	Keywords        []string        `json:"keywords,omitempty"`
	KeywordPatterns []string        `json:"keyword_patterns,omitempty"` // regex patterns
	StructureRules  []StructureRule `json:"structure_rules,omitempty"`

	Weight        float64 `json:"weight"`         // Importance weight (0.0 to 1.0)
	MinConfidence float64 `json:"min_confidence"` // Minimum confidence to trigger
	Enabled       bool    `json:"enabled"`
	Description   string  `json:"description"`
}

// StructureRule requires a count of a structural element
type StructureRule struct {
	Element    string  `json:"element"` // sections, definitions, ratio_sections, articles
	MinCount   int     `json:"min_count"`
	MaxCount   int     `json:"max_count"`
	Confidence float64 `json:"confidence"`
}

// Features are the structural counts rules can test
type Features struct {
	Pages         int `json:"pages"`
	Sections      int `json:"sections"`
	Articles      int `json:"articles"`
	Definitions   int `json:"definitions"`
	RatioSections int `json:"ratio_sections"`
	Words         int `json:"words"`
}

// Count returns the named feature
func (f Features) Count(element string) int {
	switch element {
	case "pages":
		return f.Pages
	case "sections":
		return f.Sections
	case "articles":
		return f.Articles
	case "definitions":
		return f.Definitions
	case "ratio_sections":
		return f.RatioSections
	case "words":
		return f.Words
	default:
		return 0
	}
}

// Config tunes the classifier
type Config struct {
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"` // below this the tag is unknown
	MaxAlternatives        int     `json:"max_alternatives"`
	MaxContentLength       int     `json:"max_content_length"` // bytes of text scanned by keyword rules
	CacheClassifications   bool    `json:"cache_classifications"`
}

// DefaultConfig returns the default classifier configuration
func DefaultConfig() Config {
	return Config{
		MinConfidenceThreshold: 0.35,
		MaxAlternatives:        2,
		MaxContentLength:       200000,
		CacheClassifications:   true,
	}
}
