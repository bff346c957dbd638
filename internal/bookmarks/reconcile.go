// Package bookmarks matches a PDF outline against detected sections and
// tracks whether a document has been offered bookmarking.
package bookmarks

import (
	"fmt"
	"log/slog"
	"math"

	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// PointTolerance is the largest distance, in PDF units, between an outline
// destination top and a section's anchor for the two to match.
const PointTolerance = 1.0

// Candidate is an outline item with an explicit destination.
type Candidate struct {
	Title string
	Page  int
	Top   float64
}

// Report summarizes a reconciliation pass.
type Report struct {
	Candidates int `json:"candidates"`
	Matched    int `json:"matched"`
	Unmatched  int `json:"unmatched"`
	Skipped    int `json:"skipped"`

	Anomalies []*pdferrors.StructureError `json:"-"`
}

// Reconciler annotates sections with their outline entries.
type Reconciler struct {
	log *slog.Logger
}

// NewReconciler creates a reconciler; a nil logger discards output.
func NewReconciler(log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{log: log}
}

// Reconcile sets Bookmarked and BookmarkTitle on every section of doc.
// A section matches an outline candidate on its start page when
// |candidate.Top - (pageHeight - AnchorY)| <= PointTolerance. The first
// matching candidate with a title names the bookmark; a match without any
// titled candidate still marks the section. Unmatched sections are set to
// not bookmarked.
func (r *Reconciler) Reconcile(doc *structure.Document, outline []wrapper.OutlineItem) Report {
	var rep Report
	byPage := make(map[int][]Candidate)
	collect(outline, byPage, &rep)
	for _, c := range byPage {
		rep.Candidates += len(c)
	}

	for _, s := range doc.All() {
		s.Bookmarked, s.BookmarkTitle = false, ""

		geo, ok := doc.Layout.PageGeometry(s.StartPage)
		if !ok {
			rep.Unmatched++
			continue
		}
		calculatedTop := geo.Media.Top - s.AnchorY()

		for _, c := range byPage[s.StartPage] {
			if math.Abs(c.Top-calculatedTop) > PointTolerance {
				continue
			}
			s.Bookmarked = true
			if c.Title != "" {
				s.BookmarkTitle = c.Title
				break
			}
		}
		if s.Bookmarked {
			rep.Matched++
		} else {
			rep.Unmatched++
		}
	}

	r.log.Debug("bookmarks reconciled",
		"candidates", rep.Candidates, "matched", rep.Matched, "skipped", rep.Skipped)
	return rep
}

// collect gathers explicit destinations per page, depth-first in outline
// order. Items that cannot be used are recorded and their children are
// still visited.
func collect(items []wrapper.OutlineItem, byPage map[int][]Candidate, rep *Report) {
	for _, it := range items {
		if it.Explicit() {
			byPage[it.Page] = append(byPage[it.Page], Candidate{Title: it.Title, Page: it.Page, Top: *it.Top})
		} else {
			rep.Skipped++
			rep.Anomalies = append(rep.Anomalies, outlineAnomaly(it))
		}
		collect(it.Kids, byPage, rep)
	}
}

func outlineAnomaly(it wrapper.OutlineItem) *pdferrors.StructureError {
	var e *pdferrors.StructureError
	if it.Err != nil {
		e = pdferrors.Wrap(pdferrors.ErrorTypeMalformedOutline, it.Err)
	} else {
		e = pdferrors.New(pdferrors.ErrorTypeMalformedOutline, "destination has no explicit top")
	}
	e = e.WithContext(fmt.Sprintf("outline item %q", it.Title))
	if it.Page >= 0 {
		e = e.WithPage(it.Page)
	}
	return e
}
