package extract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure/structuretest"
)

type stubExtractor struct {
	name string
	run  func(ctx context.Context, run *Run) error
}

func (s *stubExtractor) Name() string                            { return s.name }
func (s *stubExtractor) Type() ClauseType                        { return ClauseOther }
func (s *stubExtractor) Run(ctx context.Context, run *Run) error { return s.run(ctx, run) }

func stub(name string, fn func(ctx context.Context, run *Run) error) Factory {
	return func() Extractor { return &stubExtractor{name: name, run: fn} }
}

func TestDispatcher_CreditAgreement(t *testing.T) {
	doc := structuretest.CreditAgreement(t)
	d := NewDispatcher(NewPool(2), nil, time.Minute, nil)

	out, err := d.Dispatch(context.Background(), doc, ClassCreditAgreement)
	require.NoError(t, err)
	assert.Empty(t, out.Failures)
	assert.Equal(t, ClassCreditAgreement, out.Classification)

	byType := map[ClauseType]int{}
	for _, r := range out.Results {
		byType[r.Type]++
	}
	assert.Equal(t, 1, byType[ClauseLeverageRatio])
	assert.Equal(t, 1, byType[ClauseLiens])
	assert.Equal(t, 1, byType[ClauseIndebtedness])
	assert.Equal(t, 1, byType[ClauseCrossReference])
	assert.Equal(t, 0, byType[ClauseRestrictedPayment])

	assert.Equal(t, map[string]int{
		"ratio": 1, "liens": 1, "indebtedness": 1, "restricted_payments": 0, "cross_reference": 1,
	}, out.PerExtractor)

	for i := 1; i < len(out.Results); i++ {
		assert.LessOrEqual(t, out.Results[i-1].PageNo(), out.Results[i].PageNo())
	}
}

func TestDispatcher_UnknownClassification(t *testing.T) {
	d := NewDispatcher(NewPool(1), nil, time.Second, nil)
	_, err := d.Dispatch(context.Background(), structuretest.CreditAgreement(t), Classification("lease"))
	assert.Error(t, err)
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	doc := structuretest.CreditAgreement(t)
	reg := NewRegistry()
	reg.Register(ClassUnknown,
		NewRatioExtractor,
		stub("boom", func(context.Context, *Run) error { panic("index out of range") }),
		stub("broken", func(context.Context, *Run) error { return errors.New("bad pattern") }),
		NewCrossReferenceExtractor,
	)

	out, err := NewDispatcher(NewPool(4), reg, time.Minute, nil).Dispatch(context.Background(), doc, ClassUnknown)
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	require.Len(t, out.Failures, 2)
	types := map[string]pdferrors.ErrorType{}
	for _, f := range out.Failures {
		types[f.Extractor] = f.Err.Type
		assert.Equal(t, f.Extractor, f.Err.Extractor)
	}
	assert.Equal(t, pdferrors.ErrorTypeExtractorFailed, types["boom"])
	assert.Equal(t, pdferrors.ErrorTypeExtractorFailed, types["broken"])
	assert.Contains(t, out.PerExtractor, "boom")
}

func TestDispatcher_TimeoutKeepsPartialResults(t *testing.T) {
	doc := structuretest.CreditAgreement(t)
	release := make(chan struct{})
	defer close(release)

	reg := NewRegistry()
	reg.Register(ClassUnknown,
		NewRatioExtractor,
		stub("slow", func(ctx context.Context, run *Run) error {
			s := run.Doc.SectionByNumber("7.12")
			r, err := NewResult(ClauseOther, "before", "", s, s.Body[0])
			if err != nil {
				return err
			}
			run.Emit(r)
			<-release // ignores ctx on purpose
			late, _ := NewResult(ClauseOther, "after", "", s, s.Body[1])
			run.Emit(late)
			return nil
		}),
	)

	out, err := NewDispatcher(NewPool(2), reg, 50*time.Millisecond, nil).Dispatch(context.Background(), doc, ClassUnknown)
	require.NoError(t, err)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "slow", out.Failures[0].Extractor)
	assert.Equal(t, pdferrors.ErrorTypeTimeout, out.Failures[0].Err.Type)

	var keys []string
	for _, r := range out.Results {
		keys = append(keys, r.Key)
	}
	assert.Contains(t, keys, "before")
	assert.NotContains(t, keys, "after")
	assert.Equal(t, 1, out.PerExtractor["slow"])
}

func TestDispatcher_TimedOutExtractorsHoldTheirSlot(t *testing.T) {
	doc := structuretest.CreditAgreement(t)

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	sleeper := func(context.Context, *Run) error {
		defer wg.Done()
		mu.Lock()
		active++
		maxSeen = max(maxSeen, active)
		mu.Unlock()
		time.Sleep(60 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	reg := NewRegistry()
	names := []string{"a", "b", "c", "d"}
	for _, name := range names {
		reg.Register(ClassUnknown, stub(name, sleeper))
	}
	wg.Add(len(names))

	out, err := NewDispatcher(NewPool(1), reg, 20*time.Millisecond, nil).Dispatch(context.Background(), doc, ClassUnknown)
	require.NoError(t, err)
	wg.Wait()

	require.Len(t, out.Failures, len(names))
	for _, f := range out.Failures {
		assert.Equal(t, pdferrors.ErrorTypeTimeout, f.Err.Type)
	}
	assert.Equal(t, 1, maxSeen)
}

func TestDispatcher_CanceledParent(t *testing.T) {
	doc := structuretest.CreditAgreement(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewDispatcher(NewPool(1), nil, time.Second, nil).Dispatch(ctx, doc, ClassLoanAgreement)
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	require.Len(t, out.Failures, 3)
	for _, f := range out.Failures {
		assert.Equal(t, pdferrors.ErrorTypeCanceled, f.Err.Type)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	assert.Equal(t, 2, p.Size())

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, p.Go(context.Background(), func() {
			defer wg.Done()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}))
	}
	wg.Wait()
	assert.LessOrEqual(t, maxSeen, 2)
	assert.Positive(t, NewPool(0).Size())
}

func TestSink_ConcurrentAdd(t *testing.T) {
	sink := NewSink()
	tok := layout.NewToken(0, 1, 1, 1, 1, "x", 10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _ := NewResult(ClauseOther, "k", "", nil, tok)
			sink.Add(r)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, sink.Len())
	assert.Len(t, sink.Sorted(), 50)
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	for _, c := range Classifications() {
		exs, err := reg.ExtractorsFor(c)
		require.NoError(t, err, c)
		assert.NotEmpty(t, exs)
	}
	exs, err := reg.ExtractorsFor(ClassIndenture)
	require.NoError(t, err)
	var names []string
	for _, e := range exs {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"liens", "indebtedness", "restricted_payments", "cross_reference"}, names)

	_, err = ParseClassification("auto")
	assert.NoError(t, err)
	_, err = ParseClassification("lease")
	assert.ErrorIs(t, err, ErrUnknownClassification)
}
