// Package extract runs covenant clause extractors over a detected document
// structure and collects their evidenced results.
package extract

import (
	"errors"
	"sort"
	"sync"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// ClauseType classifies a result
type ClauseType string

const (
	ClauseLeverageRatio     ClauseType = "leverage-ratio"
	ClauseCoverageRatio     ClauseType = "coverage-ratio"
	ClauseLiens             ClauseType = "liens"
	ClauseIndebtedness      ClauseType = "indebtedness"
	ClauseRestrictedPayment ClauseType = "restricted-payment"
	ClauseCrossReference    ClauseType = "cross-reference"
	ClauseOther             ClauseType = "other"
)

// AllClauseTypes returns every clause type in report order.
func AllClauseTypes() []ClauseType {
	return []ClauseType{
		ClauseLeverageRatio,
		ClauseCoverageRatio,
		ClauseLiens,
		ClauseIndebtedness,
		ClauseRestrictedPayment,
		ClauseCrossReference,
		ClauseOther,
	}
}

func (c ClauseType) String() string {
	return string(c)
}

// IsValid reports whether c is one of the known clause types.
func (c ClauseType) IsValid() bool {
	for _, t := range AllClauseTypes() {
		if t == c {
			return true
		}
	}
	return false
}

// DisplayName is the heading used in reports
func (c ClauseType) DisplayName() string {
	switch c {
	case ClauseLeverageRatio:
		return "Leverage Ratio"
	case ClauseCoverageRatio:
		return "Coverage Ratio"
	case ClauseLiens:
		return "Liens"
	case ClauseIndebtedness:
		return "Indebtedness"
	case ClauseRestrictedPayment:
		return "Restricted Payments"
	case ClauseCrossReference:
		return "Cross References"
	default:
		return "Other"
	}
}

// SectionID is the report anchor grouping results of this type.
func (c ClauseType) SectionID() string {
	if !c.IsValid() {
		return "clause-other"
	}
	return "clause-" + string(c)
}

// ErrNoSources is returned when a result has no evidence.
var ErrNoSources = errors.New("extract: result needs at least one source")

// Result is one evidenced extraction. Sources are kept in reading order
// and never empty.
type Result struct {
	Sources   []*layout.Component
	Key       string
	Value     string
	Section   *structure.Section
	Type      ClauseType
	Extractor string
}

// NewResult orders and de-duplicates sources.
func NewResult(typ ClauseType, key, value string, section *structure.Section, sources ...*layout.Component) (*Result, error) {
	seen := make(map[*layout.Component]bool, len(sources))
	uniq := make([]*layout.Component, 0, len(sources))
	for _, s := range sources {
		if s == nil || seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	if len(uniq) == 0 {
		return nil, ErrNoSources
	}
	layout.SortComponents(uniq)
	return &Result{Sources: uniq, Key: key, Value: value, Section: section, Type: typ}, nil
}

// First returns the earliest source.
func (r *Result) First() *layout.Component {
	if len(r.Sources) == 0 {
		return nil
	}
	return r.Sources[0]
}

// PageNo is the page of the earliest source, 0 without sources.
func (r *Result) PageNo() int {
	if f := r.First(); f != nil {
		return f.Page()
	}
	return 0
}

// Compare orders results by their first source.
func Compare(a, b *Result) int {
	fa, fb := a.First(), b.First()
	switch {
	case fa == nil && fb == nil:
		return 0
	case fa == nil:
		return -1
	case fb == nil:
		return 1
	}
	return layout.Compare(fa, fb)
}

// Sink collects results from concurrent extractors.
type Sink struct {
	mu      sync.Mutex
	results []*Result
}

// NewSink creates an empty sink
func NewSink() *Sink {
	return &Sink{}
}

// Add appends r. Safe for concurrent use.
func (s *Sink) Add(r *Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

// Len returns the number of results
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Sorted returns a copy of the results in natural order. Results sharing a
// first source are ordered by extractor name, then key, so the output does
// not depend on worker scheduling.
func (s *Sink) Sorted() []*Result {
	s.mu.Lock()
	out := make([]*Result, len(s.results))
	copy(out, s.results)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if c := Compare(out[i], out[j]); c != 0 && out[i].First() != out[j].First() {
			return c < 0
		}
		if out[i].Extractor != out[j].Extractor {
			return out[i].Extractor < out[j].Extractor
		}
		return out[i].Key < out[j].Key
	})
	return out
}
