package extract

import (
	"math"
	"sort"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	"github.com/a3tai/mcp-pdf-covenants/internal/markup"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// ColumnTolerance is the largest distance between left edges of text
// boxes placed in one column.
const ColumnTolerance = 12.0

// reconstructTable lays out the section's text boxes that share a line
// with a candidate token as a grid. Rows are visual lines and columns are
// clusters of left edges. A grid with fewer than two columns or two rows
// is not a table and yields nil.
func reconstructTable(s *structure.Section, page int, candidates []*layout.Component) (*html.Node, []*layout.Component) {
	var anchors []*layout.Component
	for _, c := range candidates {
		if p := c.Parent(); p != nil {
			anchors = append(anchors, p)
		}
	}

	var boxes []*layout.Component
	for _, b := range s.Body {
		if b.Page() != page {
			continue
		}
		for _, a := range anchors {
			if layout.SameLine(a, b) {
				boxes = append(boxes, b)
				break
			}
		}
	}
	if len(boxes) == 0 {
		return nil, nil
	}
	layout.SortComponents(boxes)

	rows := groupRows(boxes)
	xs := make([]float64, 0, len(boxes))
	for _, b := range boxes {
		xs = append(xs, b.X())
	}
	sort.Float64s(xs)
	cols := clusterValues(xs, ColumnTolerance)
	if len(rows) < 2 || len(cols) < 2 {
		return nil, nil
	}

	table := markup.El(atom.Table, markup.Attrs("class", "ratio-table", "data-page", strconv.Itoa(page)))
	tbody := markup.El(atom.Tbody, nil)
	table.AppendChild(tbody)
	for _, row := range rows {
		cells := make([]string, len(cols))
		for _, b := range row {
			i := nearest(cols, b.X())
			if cells[i] != "" {
				cells[i] += " "
			}
			cells[i] += b.Text()
		}
		tr := markup.El(atom.Tr, nil)
		for _, c := range cells {
			tr.AppendChild(markup.El(atom.Td, nil, markup.Text(c)))
		}
		tbody.AppendChild(tr)
	}
	return table, boxes
}

// groupRows splits reading-ordered boxes into visual lines.
func groupRows(boxes []*layout.Component) [][]*layout.Component {
	var rows [][]*layout.Component
	for _, b := range boxes {
		if n := len(rows); n > 0 && layout.SameLine(rows[n-1][0], b) {
			rows[n-1] = append(rows[n-1], b)
			continue
		}
		rows = append(rows, []*layout.Component{b})
	}
	return rows
}

// clusterValues merges sorted values closer than tolerance to the running
// cluster center, averaging them.
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	clustered := []float64{values[0]}
	for _, v := range values[1:] {
		last := clustered[len(clustered)-1]
		if v-last > tolerance {
			clustered = append(clustered, v)
		} else {
			clustered[len(clustered)-1] = (last + v) / 2
		}
	}
	return clustered
}

func nearest(centers []float64, v float64) int {
	best, dist := 0, math.Inf(1)
	for i, c := range centers {
		if d := math.Abs(c - v); d < dist {
			best, dist = i, d
		}
	}
	return best
}
