// Package rect holds the axis-aligned rectangles shared by layout boxes and
// draw commands.
package rect

import (
	"fmt"
	"image"
	"math"
)

// Rect is an axis-aligned rectangle in CSS pixels. It is empty unless its
// right edge lies past its left edge and its bottom past its top.
type Rect struct {
	Left, Top, Right, Bottom float64
}

func NewRect(left, top, right, bottom float64) *Rect {
	return &Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// NewRectXYWH builds a rect from an origin and a size, the way layout boxes
// store their geometry.
func NewRectXYWH(x, y, width, height float64) *Rect {
	return NewRect(x, y, x+width, y+height)
}

func NewRectEmpty() *Rect {
	return new(Rect)
}

// Union returns a new rect covering both. Empty rects do not contribute.
func (r *Rect) Union(other *Rect) *Rect {
	if other.IsEmpty() {
		out := *r
		return &out
	}
	if r.IsEmpty() {
		out := *other
		return &out
	}
	return NewRect(
		min(r.Left, other.Left), min(r.Top, other.Top),
		max(r.Right, other.Right), max(r.Bottom, other.Bottom),
	)
}

// Bounds folds Union over rects. With no non-empty input the result is
// empty.
func Bounds(rects ...*Rect) *Rect {
	out := NewRectEmpty()
	for _, r := range rects {
		out = out.Union(r)
	}
	return out
}

// Translate returns a copy moved by (dx, dy).
func (r *Rect) Translate(dx, dy float64) *Rect {
	return NewRect(r.Left+dx, r.Top+dy, r.Right+dx, r.Bottom+dy)
}

func (r *Rect) IsEmpty() bool {
	return !(r.Right > r.Left && r.Bottom > r.Top)
}

func (r *Rect) Width() float64  { return r.Right - r.Left }
func (r *Rect) Height() float64 { return r.Bottom - r.Top }

// RoundOutToInt returns the smallest integer rectangle containing r.
func (r *Rect) RoundOutToInt() image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(int(math.Floor(r.Left)), int(math.Floor(r.Top))),
		Max: image.Pt(int(math.Ceil(r.Right)), int(math.Ceil(r.Bottom))),
	}
}

// ContainsPoint is half-open: the left and top edges are inside, the right
// and bottom edges are not.
func (r *Rect) ContainsPoint(x, y float64) bool {
	return r.Left <= x && x < r.Right && r.Top <= y && y < r.Bottom
}

func (r *Rect) String() string {
	return fmt.Sprintf("Rect(%g, %g, %g, %g)", r.Left, r.Top, r.Right, r.Bottom)
}
