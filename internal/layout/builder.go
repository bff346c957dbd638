package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
)

// BuilderConfig tunes how raw text runs are merged.
type BuilderConfig struct {
	// Workers bounds the pages built concurrently; 0 means runtime.NumCPU().
	Workers int

	// TokenGap is the largest horizontal gap, as a fraction of the font
	// size, between two runs that still belong to one token.
	TokenGap float64

	// BoxGap is the largest gap, as a fraction of the font size, between
	// two tokens of one text box. Wider gaps start a new box on the line.
	BoxGap float64

	// LineHeight is the token height as a multiple of the font size.
	LineHeight float64
}

// DefaultBuilderConfig returns the settings used for born-digital documents
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		TokenGap:   0.15,
		BoxGap:     2.5,
		LineHeight: 1.2,
	}
}

// Layout is the frozen physical tree of a document.
type Layout struct {
	Root      *Component
	Geometry  []geometry.PageGeometry // indexed by page; zero for skipped pages
	Skipped   []int
	Anomalies *pdferrors.ErrorCollection

	pages map[int]*Component
}

// Pages returns the page components in page order.
func (l *Layout) Pages() []*Component {
	return l.Root.Children()
}

// Page returns the page component with the given index, or nil.
func (l *Layout) Page(index int) *Component {
	return l.pages[index]
}

// PageCount is the number of pages in the source document, including
// skipped ones.
func (l *Layout) PageCount() int {
	return len(l.Geometry)
}

// PageGeometry returns the frames of a built page.
func (l *Layout) PageGeometry(index int) (geometry.PageGeometry, bool) {
	if index < 0 || index >= len(l.Geometry) || l.pages[index] == nil {
		return geometry.PageGeometry{}, false
	}
	return l.Geometry[index], true
}

// Builder turns a wrapper.Document into a Layout.
type Builder struct {
	config BuilderConfig
	log    *slog.Logger
}

// NewBuilder creates a builder; a nil logger discards output.
func NewBuilder(config BuilderConfig, log *slog.Logger) *Builder {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.TokenGap <= 0 {
		config.TokenGap = DefaultBuilderConfig().TokenGap
	}
	if config.BoxGap <= 0 {
		config.BoxGap = DefaultBuilderConfig().BoxGap
	}
	if config.LineHeight <= 0 {
		config.LineHeight = DefaultBuilderConfig().LineHeight
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Builder{config: config, log: log}
}

// Build constructs every page concurrently and attaches it to a shared
// root. A page whose geometry or text cannot be read is skipped and
// recorded as an anomaly. The returned layout is frozen.
func (b *Builder) Build(ctx context.Context, doc wrapper.Document) (*Layout, error) {
	n := doc.PageCount()
	l := &Layout{
		Root:      NewComponent(KindDocument, -1, 0, 0, 0, 0),
		Geometry:  make([]geometry.PageGeometry, n),
		Anomalies: pdferrors.NewErrorCollection(),
		pages:     make(map[int]*Component, n),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, geo, err := b.buildPage(doc, i, l.Anomalies)
			if err != nil {
				b.log.Warn("skipping page", "page", i+1, "error", err)
				l.Anomalies.Add(pdferrors.Wrap(pdferrors.ErrorTypeMalformedPage, err).WithPage(i))
				mu.Lock()
				l.Skipped = append(l.Skipped, i)
				mu.Unlock()
				return nil
			}
			if geo.TrimFallback {
				l.Anomalies.Add(pdferrors.New(pdferrors.ErrorTypeMissingGeometry, "trim box unusable, using media box").WithPage(i))
			}
			if err := l.Root.AddChild(page); err != nil {
				return fmt.Errorf("attach page %d: %w", i+1, err)
			}
			mu.Lock()
			l.Geometry[i] = geo
			l.pages[i] = page
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.Root.Freeze(0)
	b.log.Debug("layout built", "pages", n, "skipped", len(l.Skipped))
	return l, nil
}

// buildPage is run per page without shared state besides the tree locks
// and the anomaly collection. A component at the exact position of an
// earlier one is dropped and recorded.
func (b *Builder) buildPage(doc wrapper.Document, index int, anomalies *pdferrors.ErrorCollection) (*Component, geometry.PageGeometry, error) {
	geo, err := doc.PageGeometry(index)
	if err != nil {
		return nil, geo, err
	}
	if !geo.Media.Valid() {
		return nil, geo, errors.New("empty media box")
	}
	runs, err := doc.TextRuns(index)
	if err != nil {
		return nil, geo, err
	}

	page := NewComponent(KindPage, index, 0, 0, geo.Media.Width(), geo.Media.Height())
	tokens := b.tokenize(index, geo.Media, runs)
	SortComponents(tokens)

	attach := func(parent, child *Component) error {
		err := parent.AddChild(child)
		if errors.Is(err, ErrDuplicate) {
			anomalies.Add(pdferrors.Wrap(pdferrors.ErrorTypeMalformedPage, err).
				WithPage(index).
				WithContext(fmt.Sprintf("dropped %s %q at (%.1f, %.1f)", child.Kind(), child.Text(), child.X(), child.Y())))
			return nil
		}
		return err
	}
	for _, line := range b.groupBoxes(tokens) {
		x, y, w, h := Bounds(line)
		box := NewComponent(KindTextBox, index, x, y, w, h)
		for _, t := range line {
			if err := attach(box, t); err != nil {
				return nil, geo, err
			}
		}
		if err := attach(page, box); err != nil {
			return nil, geo, err
		}
	}
	return page, geo, nil
}

// tokenize merges glyph runs into whitespace-separated tokens in layout
// coordinates. Overstruck duplicates (fake bold) are dropped.
func (b *Builder) tokenize(page int, media geometry.Box, runs []wrapper.TextRun) []*Component {
	var (
		tokens []*Component
		cur    *pendingToken
	)
	flush := func() {
		if cur == nil || cur.text.Len() == 0 {
			cur = nil
			return
		}
		t := cur.component(page, b.config.LineHeight)
		if !isOverstrike(tokens, t) {
			tokens = append(tokens, t)
		}
		cur = nil
	}

	for _, run := range runs {
		text := norm.NFKC.String(run.Text)
		fs := run.FontSize
		if fs <= 0 {
			fs = 10
		}
		width := run.Width
		if width <= 0 {
			width = float64(utf8.RuneCountInString(text)) * fs * 0.5
		}
		x := run.X - media.Left
		top := geometry.FlipY(media, run.Y+fs)

		for _, piece := range splitRun(text, x, width) {
			if piece.space {
				flush()
				continue
			}
			if cur != nil && !cur.accepts(piece.x, top, fs, b.config.TokenGap) {
				flush()
			}
			if cur == nil {
				cur = &pendingToken{x: piece.x, top: top, fontSize: fs}
			}
			cur.text.WriteString(piece.text)
			cur.right = math.Max(cur.right, piece.x+piece.width)
		}
	}
	flush()
	return tokens
}

// groupBoxes splits reading-ordered tokens into text boxes: a new box
// starts on a new line or after a wide horizontal gap.
func (b *Builder) groupBoxes(tokens []*Component) [][]*Component {
	var boxes [][]*Component
	var cur []*Component
	for _, t := range tokens {
		if len(cur) > 0 {
			last := cur[len(cur)-1]
			gap := t.x - last.Right()
			limit := b.config.BoxGap * math.Max(last.fontSize, t.fontSize)
			if !SameLine(last, t) || gap > limit {
				boxes = append(boxes, cur)
				cur = nil
			}
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		boxes = append(boxes, cur)
	}
	return boxes
}

type pendingToken struct {
	text     strings.Builder
	x, right float64
	top      float64
	fontSize float64
}

func (p *pendingToken) accepts(x, top, fontSize, gapRatio float64) bool {
	if math.Abs(p.top-top) >= LineTolerance {
		return false
	}
	gap := x - p.right
	return gap <= gapRatio*math.Max(p.fontSize, fontSize) && gap >= -p.fontSize
}

func (p *pendingToken) component(page int, lineHeight float64) *Component {
	return NewToken(page, p.x, p.top, p.right-p.x, p.fontSize*lineHeight, p.text.String(), p.fontSize)
}

// isOverstrike reports whether t repeats a token drawn at nearly the same
// place on the current line.
func isOverstrike(tokens []*Component, t *Component) bool {
	for i := len(tokens) - 1; i >= 0; i-- {
		prev := tokens[i]
		if !SameLine(prev, t) {
			break
		}
		if prev.text == t.text && math.Abs(prev.x-t.x) < 1.5 && prev.OverlapsDefault(t) {
			return true
		}
	}
	return false
}

type runPiece struct {
	text     string
	x, width float64
	space    bool
}

// splitRun cuts a run at whitespace, sharing the width out by rune count.
func splitRun(text string, x, width float64) []runPiece {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return nil
	}
	per := width / float64(n)
	var pieces []runPiece
	var sb strings.Builder
	start, pos := x, x
	for _, r := range text {
		if unicode.IsSpace(r) {
			if sb.Len() > 0 {
				pieces = append(pieces, runPiece{text: sb.String(), x: start, width: pos - start})
				sb.Reset()
			}
			pieces = append(pieces, runPiece{space: true, x: pos, width: per})
			pos += per
			start = pos
			continue
		}
		sb.WriteRune(r)
		pos += per
	}
	if sb.Len() > 0 {
		pieces = append(pieces, runPiece{text: sb.String(), x: start, width: pos - start})
	}
	return pieces
}
