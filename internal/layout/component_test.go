package layout

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
)

func box(page int, x, y, w, h float64) *Component {
	return NewComponent(KindTextBox, page, x, y, w, h)
}

func TestCompare_PageIsPrimaryKey(t *testing.T) {
	tests := []struct {
		name string
		a, b *Component
		want int
	}{
		{"earlier page far below", box(0, 500, 700, 10, 10), box(1, 0, 0, 10, 10), -1},
		{"later page far above", box(2, 0, 0, 10, 10), box(1, 500, 700, 10, 10), 1},
		{"same coordinates other page", box(3, 10, 10, 5, 5), box(1, 10, 10, 5, 5), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestCompare_SameLineOrdersByX(t *testing.T) {
	left := box(0, 10, 100, 20, 10)
	right := box(0, 50, 102, 20, 10) // centers 2 apart

	assert.Equal(t, -1, Compare(left, right))
	assert.Equal(t, 1, Compare(right, left))
}

func TestCompare_DifferentLinesOrderByY(t *testing.T) {
	upper := box(0, 300, 100, 20, 10)
	lower := box(0, 10, 103, 20, 10) // centers exactly 3 apart

	assert.Equal(t, -1, Compare(upper, lower))
	assert.Equal(t, 1, Compare(lower, upper))
}

func TestCompare_EqualAndDefaultAfter(t *testing.T) {
	a := box(0, 10, 10, 20, 10)
	b := box(0, 10, 10, 40, 12)
	assert.Equal(t, 0, Compare(a, b))

	// same x, same line band, different y: neither is "less"
	c := box(0, 10, 11, 20, 10)
	assert.Equal(t, 1, Compare(a, c))
	assert.Equal(t, 1, Compare(c, a))
}

func TestCompare_NotTransitiveAcrossBands(t *testing.T) {
	// a and b share a line, b and c share a line, a and c do not.
	a := box(0, 50, 100, 10, 10)
	b := box(0, 30, 102.5, 10, 10)
	c := box(0, 10, 105, 10, 10)

	assert.Equal(t, 1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, c))
	assert.Equal(t, -1, Compare(a, c))
}

func TestContains_HalfOpen(t *testing.T) {
	c := box(0, 10, 20, 30, 40)

	assert.True(t, c.Contains(10, 20))
	assert.True(t, c.Contains(39.999, 59.999))
	assert.False(t, c.Contains(40, 60))
	assert.False(t, c.Contains(40, 30))
	assert.False(t, c.Contains(20, 60))
	assert.False(t, c.Contains(9.999, 30))
}

func TestOverlaps_Symmetric(t *testing.T) {
	comps := []*Component{
		box(0, 0, 0, 50, 14),
		box(0, 40, 2, 30, 14),
		box(0, 40, 12, 30, 14),
		box(0, 100, 0, 10, 14),
		box(0, 0, 30, 50, 14),
		box(1, 0, 0, 50, 14),
	}
	for _, tol := range []float64{DropTolerance, 0, 3, -1} {
		for _, a := range comps {
			for _, b := range comps {
				assert.Equal(t, a.Overlaps(b, tol), b.Overlaps(a, tol), "tol %v", tol)
			}
		}
	}
}

func TestOverlaps_Tolerance(t *testing.T) {
	a := box(0, 0, 0, 50, 14)
	drifted := box(0, 30, 2, 50, 14)
	nextLine := box(0, 30, 14, 50, 14)
	apart := box(0, 60, 0, 10, 14)

	assert.True(t, a.OverlapsDefault(drifted))
	assert.False(t, a.OverlapsDefault(nextLine))
	assert.True(t, a.Overlaps(nextLine, 1))
	assert.False(t, a.Overlaps(apart, 100), "horizontal ranges must intersect")
}

func TestIsContainedBy_AreaRatio(t *testing.T) {
	c := box(0, 0, 0, 10, 10)

	assert.True(t, c.IsContainedBy(geometry.Point{X: -5, Y: -5}, geometry.Point{X: 5, Y: 20})) // half
	assert.False(t, c.IsContainedBy(geometry.Point{X: 7, Y: 0}, geometry.Point{X: 20, Y: 10})) // 0.3 exactly
	assert.True(t, c.IsContainedBy(geometry.Point{X: 20, Y: 20}, geometry.Point{X: 6, Y: -1})) // 0.4, any corner order
	assert.False(t, c.IsContainedBy())
	assert.False(t, c.IsContainedBy(geometry.Point{X: 50, Y: 50}, geometry.Point{X: 60, Y: 60}))
}

func TestAddChild_OrderedAndDeduplicated(t *testing.T) {
	page := NewComponent(KindPage, 0, 0, 0, 612, 792)
	second := box(0, 10, 200, 100, 12)
	first := box(0, 10, 100, 100, 12)
	third := box(0, 10, 300, 100, 12)

	require.NoError(t, page.AddChild(second))
	require.NoError(t, page.AddChild(third))
	require.NoError(t, page.AddChild(first))
	assert.Equal(t, []*Component{first, second, third}, page.Children())
	assert.Same(t, page, first.Parent())

	err := page.AddChild(box(0, 10, 100, 5, 5))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, page.Children(), 3)
}

func TestAddChild_Invariants(t *testing.T) {
	page := NewComponent(KindPage, 0, 0, 0, 612, 792)
	other := NewComponent(KindPage, 1, 0, 0, 612, 792)
	tok := NewToken(0, 10, 10, 20, 12, "Section", 10)

	assert.ErrorIs(t, tok.AddChild(box(0, 0, 0, 1, 1)), ErrLeaf)
	assert.ErrorIs(t, other.AddChild(box(0, 0, 0, 1, 1)), ErrCrossPage)

	b := box(0, 10, 10, 50, 12)
	require.NoError(t, page.AddChild(b))
	alt := NewComponent(KindPage, 0, 0, 0, 612, 792)
	assert.ErrorIs(t, alt.AddChild(b), ErrAttached)

	page.Freeze(0)
	assert.True(t, page.Frozen())
	assert.True(t, b.Frozen())
	assert.ErrorIs(t, page.AddChild(box(0, 10, 400, 5, 5)), ErrFrozen)
	assert.ErrorIs(t, box(0, 1, 1, 1, 1).SetParent(page), ErrFrozen)
}

func TestAddChild_ConcurrentPages(t *testing.T) {
	root := NewComponent(KindDocument, -1, 0, 0, 0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, root.AddChild(NewComponent(KindPage, i, 0, 0, 612, 792)))
		}()
	}
	wg.Wait()

	children := root.Children()
	require.Len(t, children, 64)
	for i, c := range children {
		assert.Equal(t, i, c.Page())
	}
}

func TestFreeze_AssignsIDsInWalkOrder(t *testing.T) {
	page := NewComponent(KindPage, 0, 0, 0, 612, 792)
	b := box(0, 10, 10, 50, 12)
	require.NoError(t, page.AddChild(b))
	tok := NewToken(0, 10, 10, 20, 12, "Hello", 10)
	require.NoError(t, b.AddChild(tok))

	next := page.Freeze(1)
	assert.Equal(t, 4, next)
	assert.Equal(t, 1, page.ID())
	assert.Equal(t, 2, b.ID())
	assert.Equal(t, 3, tok.ID())
}

func TestOwnership_SingleOwner(t *testing.T) {
	page := NewComponent(KindPage, 0, 0, 0, 612, 792)
	tok := NewToken(0, 10, 10, 20, 12, "7.11", 10)
	require.NoError(t, page.AddChild(tok))
	page.Freeze(1)

	owners := NewOwnership()
	assert.Equal(t, Handle(0), owners.Owner(tok))

	require.NoError(t, owners.Claim(tok, 3))
	require.NoError(t, owners.Claim(tok, 3))
	err := owners.Claim(tok, 4)
	assert.True(t, errors.Is(err, ErrClaimed))
	assert.Equal(t, Handle(3), owners.Owner(tok))
	assert.Equal(t, 1, owners.Len())
	assert.True(t, tok.Frozen())
}

func TestAddChild_ConcurrentParents(t *testing.T) {
	for range 50 {
		a := box(0, 10, 10, 100, 12)
		b := box(0, 10, 40, 100, 12)
		tok := NewToken(0, 10, 10, 20, 12, "Liens", 10)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, parent := range []*Component{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = parent.AddChild(tok)
			}()
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, ErrAttached)
				failed++
			}
		}
		require.Equal(t, 1, failed)
		assert.Equal(t, 1, len(a.Children())+len(b.Children()))
		assert.True(t, tok.Parent() == a || tok.Parent() == b)
	}
}

func TestAddChild_FailedInsertDetaches(t *testing.T) {
	b := box(0, 10, 10, 100, 12)
	require.NoError(t, b.AddChild(NewToken(0, 10, 10, 20, 12, "Liens", 10)))

	twin := NewToken(0, 10, 10, 20, 12, "Liens", 10)
	assert.ErrorIs(t, b.AddChild(twin), ErrDuplicate)
	assert.Nil(t, twin.Parent())

	other := box(0, 10, 40, 100, 12)
	require.NoError(t, other.AddChild(twin))
	assert.Same(t, other, twin.Parent())
}

func TestText_JoinsTokens(t *testing.T) {
	b := box(0, 10, 10, 100, 12)
	require.NoError(t, b.AddChild(NewToken(0, 40, 10, 20, 12, "Leverage", 10)))
	require.NoError(t, b.AddChild(NewToken(0, 10, 10, 20, 12, "Consolidated", 10)))
	assert.Equal(t, "Consolidated Leverage", b.Text())
	assert.Len(t, b.Tokens(), 2)
}
