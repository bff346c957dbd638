package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// DefaultTimeout is the per-extractor deadline when none is configured.
const DefaultTimeout = 30 * time.Second

// Failure records an extractor that did not complete.
type Failure struct {
	Extractor string                    `json:"extractor"`
	Type      ClauseType                `json:"clause_type"`
	Err       *pdferrors.StructureError `json:"error"`
}

// Outcome is the result of one dispatch.
type Outcome struct {
	Classification Classification `json:"classification"`
	Results        []*Result      `json:"-"`
	Failures       []Failure      `json:"failures"`
	PerExtractor   map[string]int `json:"per_extractor"`
	Elapsed        time.Duration  `json:"elapsed"`
}

// Dispatcher runs a classification's extractors through a shared pool.
// A failing, panicking or slow extractor is recorded and the others
// continue.
type Dispatcher struct {
	pool     *Pool
	registry *Registry
	timeout  time.Duration
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil registry uses
// DefaultRegistry, a zero timeout DefaultTimeout and a nil logger
// discards output.
func NewDispatcher(pool *Pool, registry *Registry, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if pool == nil {
		pool = NewPool(0)
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{pool: pool, registry: registry, timeout: timeout, log: log}
}

type runResult struct {
	name    string
	typ     ClauseType
	emitted int
	err     *pdferrors.StructureError
}

// Dispatch runs every extractor registered for class against doc and
// waits for all of them to finish or be abandoned. The returned error is
// non-nil only when class has no extractor set.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *structure.Document, class Classification) (*Outcome, error) {
	extractors, err := d.registry.ExtractorsFor(class)
	if err != nil {
		return nil, err
	}
	log := d.log.With("classification", string(class), "extractors", len(extractors))
	start := time.Now()

	sink := NewSink()
	results := make(chan runResult, len(extractors))

	for i, ex := range extractors {
		run := newRun(doc, class, ex.Name(), sink)
		if err := d.execute(ctx, ex, run, results); err != nil {
			// ctx is done; everything not yet submitted is reported as canceled
			for _, rest := range extractors[i:] {
				results <- runResult{
					name: rest.Name(),
					typ:  rest.Type(),
					err: pdferrors.Wrap(pdferrors.ErrorTypeCanceled, err).
						WithExtractor(rest.Name()).
						WithContext("not started"),
				}
			}
			break
		}
	}

	out := &Outcome{Classification: class, PerExtractor: make(map[string]int, len(extractors))}
	for range extractors {
		r := <-results
		out.PerExtractor[r.name] = r.emitted
		if r.err != nil {
			log.Warn("extractor failed", "extractor", r.name, "error", r.err)
			out.Failures = append(out.Failures, Failure{Extractor: r.name, Type: r.typ, Err: r.err})
		}
	}
	out.Results = sink.Sorted()
	out.Elapsed = time.Since(start)

	log.Info("extraction complete", "results", len(out.Results), "failures", len(out.Failures), "elapsed", out.Elapsed)
	return out, nil
}

type deadline struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// execute starts ex in a pool slot and reports its runResult on results.
// The deadline starts once the slot is acquired. An extractor that
// outlives it is abandoned: its later emits are dropped, but it keeps the
// slot until it returns. The error is non-nil only when parent is done
// before a slot frees.
func (d *Dispatcher) execute(parent context.Context, ex Extractor, run *Run, results chan<- runResult) error {
	started := make(chan deadline, 1)
	done := make(chan error, 1)
	err := d.pool.Go(parent, func() {
		ctx, cancel := context.WithTimeout(parent, d.timeout)
		started <- deadline{ctx: ctx, cancel: cancel}
		done <- d.safeRun(ctx, ex, run)
	})
	if err != nil {
		return err
	}

	go func() {
		dl := <-started
		defer dl.cancel()

		var err error
		select {
		case err = <-done:
		case <-dl.ctx.Done():
			err = dl.ctx.Err()
		}
		res := runResult{name: ex.Name(), typ: ex.Type(), emitted: run.seal()}
		if err != nil {
			res.err = classify(err).WithExtractor(ex.Name())
		}
		results <- res
	}()
	return nil
}

func (d *Dispatcher) safeRun(ctx context.Context, ex Extractor, run *Run) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("extractor panicked", "extractor", ex.Name(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ex.Run(ctx, run)
}

func classify(err error) *pdferrors.StructureError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return pdferrors.Wrap(pdferrors.ErrorTypeTimeout, err)
	case errors.Is(err, context.Canceled):
		return pdferrors.Wrap(pdferrors.ErrorTypeCanceled, err)
	default:
		return pdferrors.Wrap(pdferrors.ErrorTypeExtractorFailed, err)
	}
}
