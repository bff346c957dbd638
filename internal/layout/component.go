// Package layout builds the physical component tree of a document: pages,
// text boxes (one visual line each) and tokens, positioned in top-down page
// coordinates.
package layout

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
)

const (
	// LineTolerance is the maximum distance between vertical centers for
	// two components to be treated as one visual line.
	LineTolerance = 3.0

	// DropTolerance is the default vertical tolerance used by Overlaps.
	DropTolerance = -5.5

	// ContainmentRatio is the share of a component's area that must lie in
	// a region for IsContainedBy to hold.
	ContainmentRatio = 0.3
)

// Kind identifies the layer a component lives on
type Kind int

const (
	KindDocument Kind = iota
	KindPage
	KindTextBox
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindPage:
		return "page"
	case KindTextBox:
		return "textbox"
	case KindToken:
		return "token"
	default:
		return "unknown"
	}
}

// Handle identifies the logical component that claimed a physical one.
// The zero Handle means unclaimed.
type Handle int

var (
	ErrFrozen    = errors.New("layout: component tree is frozen")
	ErrLeaf      = errors.New("layout: component does not accept children")
	ErrDuplicate = errors.New("layout: an equal component is already attached")
	ErrAttached  = errors.New("layout: component already has a parent")
	ErrCrossPage = errors.New("layout: child is on a different page")
	ErrClaimed   = errors.New("layout: component already claimed by another owner")
)

// Component is a positioned node of the physical tree. Geometry is fixed at
// construction. Children are kept ordered by Compare and are guarded by mu
// until Freeze; afterwards the tree is read-only and needs no locking.
type Component struct {
	kind     Kind
	page     int
	x, y     float64
	w, h     float64
	text     string
	fontSize float64
	leaf     bool

	id int

	mu       sync.Mutex
	frozen   bool
	parent   *Component
	children []*Component
}

// NewComponent creates a detached component. Tokens are leaves.
func NewComponent(kind Kind, page int, x, y, w, h float64) *Component {
	return &Component{
		kind: kind,
		page: page,
		x:    x,
		y:    y,
		w:    w,
		h:    h,
		leaf: kind == KindToken,
	}
}

// NewToken creates a leaf token carrying text.
func NewToken(page int, x, y, w, h float64, text string, fontSize float64) *Component {
	c := NewComponent(KindToken, page, x, y, w, h)
	c.text = text
	c.fontSize = fontSize
	return c
}

func (c *Component) Kind() Kind        { return c.kind }
func (c *Component) Page() int         { return c.page }
func (c *Component) X() float64        { return c.x }
func (c *Component) Y() float64        { return c.y }
func (c *Component) Width() float64    { return c.w }
func (c *Component) Height() float64   { return c.h }
func (c *Component) FontSize() float64 { return c.fontSize }
func (c *Component) IsLeaf() bool      { return c.leaf }
func (c *Component) ID() int           { return c.id }
func (c *Component) Right() float64    { return c.x + c.w }
func (c *Component) Bottom() float64   { return c.y + c.h }
func (c *Component) CenterY() float64  { return c.y + c.h/2 }
func (c *Component) Area() float64     { return c.w * c.h }

// Parent returns the attached parent, nil for a detached component.
func (c *Component) Parent() *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// Children returns the ordered children. Callers must not modify the slice.
func (c *Component) Children() []*Component {
	return c.children
}

// Text returns the token text, or the space-joined text of all tokens
// below c in order.
func (c *Component) Text() string {
	if c.kind == KindToken {
		return c.text
	}
	var sb strings.Builder
	for _, t := range c.Tokens() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.text)
	}
	return sb.String()
}

// Tokens returns the token leaves below c in tree order.
func (c *Component) Tokens() []*Component {
	var out []*Component
	c.Walk(func(n *Component) bool {
		if n.kind == KindToken {
			out = append(out, n)
		}
		return true
	})
	return out
}

// TextBoxes returns the text boxes below c in tree order.
func (c *Component) TextBoxes() []*Component {
	var out []*Component
	c.Walk(func(n *Component) bool {
		if n.kind == KindTextBox {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// Walk visits c and its descendants depth-first. Returning false from fn
// skips the node's children.
func (c *Component) Walk(fn func(*Component) bool) {
	if !fn(c) {
		return
	}
	for _, child := range c.children {
		child.Walk(fn)
	}
}

// Compare orders components in reading order. Page decides first. On one
// page, components whose vertical centers are closer than LineTolerance
// are on the same line and ordered by x; otherwise by y. Identical
// coordinates compare equal and every other case reports "after". The
// relation is not transitive across line-band boundaries.
func Compare(a, b *Component) int {
	if a.page != b.page {
		if a.page < b.page {
			return -1
		}
		return 1
	}
	if a.x == b.x && a.y == b.y {
		return 0
	}
	if math.Abs(a.CenterY()-b.CenterY()) < LineTolerance {
		if a.x < b.x {
			return -1
		}
		return 1
	}
	if a.y < b.y {
		return -1
	}
	return 1
}

// SameLine reports whether a and b share a visual line.
func SameLine(a, b *Component) bool {
	return a.page == b.page && math.Abs(a.CenterY()-b.CenterY()) < LineTolerance
}

// Contains is a half-open point test: (x, y) is inside, (x+w, y+h) is not.
func (c *Component) Contains(px, py float64) bool {
	return c.x <= px && px < c.x+c.w && c.y <= py && py < c.y+c.h
}

// Overlaps reports whether the horizontal ranges intersect and the
// vertical ranges intersect once each is grown by tol on both edges. A
// negative tol shrinks the ranges so that only the line cores must meet.
func (c *Component) Overlaps(other *Component, tol float64) bool {
	if c.page != other.page {
		return false
	}
	if !(c.x < other.x+other.w && other.x < c.x+c.w) {
		return false
	}
	aTop, aBottom := c.y-tol, c.y+c.h+tol
	bTop, bBottom := other.y-tol, other.y+other.h+tol
	return aTop < bBottom && bTop < aBottom
}

// OverlapsDefault is Overlaps with DropTolerance.
func (c *Component) OverlapsDefault(other *Component) bool {
	return c.Overlaps(other, DropTolerance)
}

// IsContainedBy reports whether more than ContainmentRatio of c's area
// lies inside the bounding region of corners.
func (c *Component) IsContainedBy(corners ...geometry.Point) bool {
	if len(corners) == 0 || c.Area() <= 0 {
		return false
	}
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, p := range corners[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	ix := math.Min(c.Right(), maxX) - math.Max(c.x, minX)
	iy := math.Min(c.Bottom(), maxY) - math.Max(c.y, minY)
	if ix <= 0 || iy <= 0 {
		return false
	}
	return ix*iy/c.Area() > ContainmentRatio
}

// AddChild attaches child in Compare order. A child equal to an existing
// one is rejected with ErrDuplicate.
func (c *Component) AddChild(child *Component) error {
	if c.leaf {
		return ErrLeaf
	}
	if c.kind != KindDocument && child.page != c.page {
		return ErrCrossPage
	}

	// reserve the child first so two parents cannot both take it
	child.mu.Lock()
	if child.parent != nil && child.parent != c {
		child.mu.Unlock()
		return ErrAttached
	}
	reserved := child.parent == nil
	child.parent = c
	child.mu.Unlock()

	if err := c.insert(child); err != nil {
		if reserved {
			child.mu.Lock()
			child.parent = nil
			child.mu.Unlock()
		}
		return err
	}
	return nil
}

func (c *Component) insert(child *Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrFrozen
	}
	i := sort.Search(len(c.children), func(i int) bool {
		return Compare(c.children[i], child) >= 0
	})
	if i < len(c.children) && Compare(c.children[i], child) == 0 {
		return ErrDuplicate
	}
	for _, existing := range c.children {
		if existing == child {
			return ErrDuplicate
		}
	}
	c.children = append(c.children, nil)
	copy(c.children[i+1:], c.children[i:])
	c.children[i] = child
	return nil
}

// SetParent attaches c below parent.
func (c *Component) SetParent(parent *Component) error {
	return parent.AddChild(c)
}

// Freeze makes the subtree read-only and numbers its nodes in walk order
// starting at next. It returns the next free id.
func (c *Component) Freeze(next int) int {
	c.mu.Lock()
	c.frozen = true
	c.id = next
	c.mu.Unlock()
	next++
	for _, child := range c.children {
		next = child.Freeze(next)
	}
	return next
}

// Frozen reports whether Freeze has run.
func (c *Component) Frozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen
}

// Bounds returns the smallest component-space rectangle covering comps as
// x, y, w, h.
func Bounds(comps []*Component) (x, y, w, h float64) {
	if len(comps) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := comps[0].x, comps[0].y
	maxX, maxY := comps[0].Right(), comps[0].Bottom()
	for _, c := range comps[1:] {
		minX, minY = math.Min(minX, c.x), math.Min(minY, c.y)
		maxX, maxY = math.Max(maxX, c.Right()), math.Max(maxY, c.Bottom())
	}
	return minX, minY, maxX - minX, maxY - minY
}

// SortComponents orders comps in place by Compare.
func SortComponents(comps []*Component) {
	sort.SliceStable(comps, func(i, j int) bool {
		return Compare(comps[i], comps[j]) < 0
	})
}
