package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// Extractor scans a frozen document for one family of clauses. Run must
// not modify the document and should return promptly once ctx is done.
type Extractor interface {
	Name() string
	Type() ClauseType
	Run(ctx context.Context, run *Run) error
}

// Run is the state of one extractor invocation: the read-only document,
// the extractor's own results and the shared sink.
type Run struct {
	Doc            *structure.Document
	Classification Classification

	name string
	sink *Sink

	mu      sync.Mutex
	results []*Result
	sealed  bool
}

func newRun(doc *structure.Document, class Classification, name string, sink *Sink) *Run {
	return &Run{Doc: doc, Classification: class, name: name, sink: sink}
}

// Emit records r locally and in the shared sink. Results emitted after the
// run has been abandoned (timeout or cancel) are dropped.
func (r *Run) Emit(res *Result) {
	if res == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	res.Extractor = r.name
	r.results = append(r.results, res)
	r.sink.Add(res)
}

// Results returns the run's own results in natural order.
func (r *Run) Results() []*Result {
	r.mu.Lock()
	out := make([]*Result, len(r.results))
	copy(out, r.results)
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out
}

func (r *Run) seal() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	return len(r.results)
}

// Classification tags a document family; each maps to a fixed extractor
// set.
type Classification string

const (
	ClassCreditAgreement Classification = "credit_agreement"
	ClassIndenture       Classification = "indenture"
	ClassLoanAgreement   Classification = "loan_agreement"
	ClassUnknown         Classification = "unknown"

	// ClassAuto asks the caller to classify the document first.
	ClassAuto Classification = "auto"
)

// Classifications returns the tags with a registered extractor set.
func Classifications() []Classification {
	return []Classification{ClassCreditAgreement, ClassIndenture, ClassLoanAgreement, ClassUnknown}
}

// ParseClassification accepts a known tag or "auto".
func ParseClassification(s string) (Classification, error) {
	c := Classification(s)
	if c == ClassAuto {
		return c, nil
	}
	for _, known := range Classifications() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownClassification, s)
}

// ErrUnknownClassification is returned for an unrecognized document type
var ErrUnknownClassification = errors.New("unknown classification")

// Factory creates a fresh extractor for one dispatch.
type Factory func() Extractor

// Registry maps classifications to extractor factories.
type Registry struct {
	mu   sync.RWMutex
	sets map[Classification][]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sets: make(map[Classification][]Factory)}
}

// DefaultRegistry returns the standard extractor sets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ClassCreditAgreement, NewRatioExtractor, NewLiensExtractor, NewIndebtednessExtractor, NewRestrictedPaymentsExtractor, NewCrossReferenceExtractor)
	r.Register(ClassIndenture, NewLiensExtractor, NewIndebtednessExtractor, NewRestrictedPaymentsExtractor, NewCrossReferenceExtractor)
	r.Register(ClassLoanAgreement, NewRatioExtractor, NewIndebtednessExtractor, NewCrossReferenceExtractor)
	r.Register(ClassUnknown, NewRatioExtractor, NewCrossReferenceExtractor)
	return r
}

// Register appends factories to a classification's set.
func (r *Registry) Register(c Classification, factories ...Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[c] = append(r.sets[c], factories...)
}

// ExtractorsFor instantiates the set for c.
func (r *Registry) ExtractorsFor(c Classification) ([]Extractor, error) {
	r.mu.RLock()
	factories, ok := r.sets[c]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no extractors registered for classification %q", c)
	}
	out := make([]Extractor, 0, len(factories))
	for _, f := range factories {
		out = append(out, f())
	}
	return out, nil
}
