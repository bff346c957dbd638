// Package geometry holds the page coordinate primitives shared by the
// layout, bundle and wrapper packages.
package geometry

import "math"

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Box is an axis-aligned rectangle in PDF user space (origin bottom-left).
type Box struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// NewBox builds a box from two opposite corners in any order.
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{
		Left:   math.Min(x1, x2),
		Bottom: math.Min(y1, y2),
		Right:  math.Max(x1, x2),
		Top:    math.Max(y1, y2),
	}
}

// Width returns the horizontal extent
func (b Box) Width() float64 {
	return b.Right - b.Left
}

// Height returns the vertical extent
func (b Box) Height() float64 {
	return b.Top - b.Bottom
}

// Valid reports whether the box has a positive area.
func (b Box) Valid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// Within reports whether b lies entirely inside outer.
func (b Box) Within(outer Box) bool {
	return b.Left >= outer.Left && b.Right <= outer.Right &&
		b.Bottom >= outer.Bottom && b.Top <= outer.Top
}

// PageGeometry describes one page's coordinate frames. Trim is the visible
// region and always lies inside Media; when the document omits a usable
// trim box it equals Media and TrimFallback is set.
type PageGeometry struct {
	Index        int  `json:"index"`
	Media        Box  `json:"media"`
	Trim         Box  `json:"trim"`
	TrimFallback bool `json:"trimFallback,omitempty"`
}

// NewPageGeometry pairs the two frames, substituting the media box for a
// missing, degenerate or out-of-bounds trim box.
func NewPageGeometry(index int, media Box, trim *Box) PageGeometry {
	g := PageGeometry{Index: index, Media: media, Trim: media}
	if trim == nil || !trim.Valid() || !trim.Within(media) {
		g.TrimFallback = trim != nil || !media.Valid()
		return g
	}
	g.Trim = *trim
	return g
}

// Height is the media height; layout y coordinates run from 0 at the media
// top edge to Height at the bottom edge.
func (g PageGeometry) Height() float64 {
	return g.Media.Height()
}

// Normalize maps a fractional position inside the trim box to absolute
// coordinates relative to the media origin. yPct is measured top-down.
func Normalize(media, trim Box, xPct, yPct float64) Point {
	return Point{
		X: (trim.Left - media.Left) + trim.Width()*xPct,
		Y: (trim.Bottom - media.Bottom) + trim.Height()*(1-yPct),
	}
}

// Percent is the inverse of Normalize for layout coordinates: x relative to
// the media left edge and yTop measured down from the media top edge.
func Percent(media, trim Box, x, yTop float64) (xPct, yPct float64) {
	if trim.Width() <= 0 || trim.Height() <= 0 {
		return 0, 0
	}
	up := media.Height() - yTop
	xPct = (x - (trim.Left - media.Left)) / trim.Width()
	yPct = 1 - (up-(trim.Bottom-media.Bottom))/trim.Height()
	return xPct, yPct
}

// FlipY converts a bottom-up user space y into a top-down layout y.
func FlipY(media Box, y float64) float64 {
	return media.Top - y
}
