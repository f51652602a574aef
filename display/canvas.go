// Package display holds the draw operations a paint pass produces and
// executes them onto raster canvases.
package display

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// Allocator creates offscreen layers for composites that cannot draw
// straight onto their parent canvas.
type Allocator interface {
	Allocate(width, height int) *gg.Context
}

type AllocatorFunc func(width, height int) *gg.Context

func (f AllocatorFunc) Allocate(width, height int) *gg.Context {
	return f(width, height)
}

// DefaultAllocator allocates plain RGBA layers.
var DefaultAllocator Allocator = AllocatorFunc(gg.NewContext)

// Canvas is a raster target plus the vertical scroll offset leaf operations
// subtract from their page coordinates. Offscreen layers are canvases too;
// origin is where pixel (0, 0) of the layer sits on the page's viewport.
type Canvas struct {
	ctx    *gg.Context
	origin image.Point
	scroll float64
	alloc  Allocator
	depth  int
}

func NewCanvas(ctx *gg.Context, scroll float64, alloc Allocator) *Canvas {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	return &Canvas{ctx: ctx, scroll: scroll, alloc: alloc}
}

func (c *Canvas) Context() *gg.Context {
	return c.ctx
}

func (c *Canvas) Scroll() float64 {
	return c.scroll
}

// Image returns the pixels drawn so far.
func (c *Canvas) Image() *image.RGBA {
	return c.ctx.Image().(*image.RGBA)
}

// Depth reports how many saves are outstanding. Every composite restores
// what it saved, so it is zero between top-level commands.
func (c *Canvas) Depth() int {
	return c.depth
}

func (c *Canvas) save() {
	c.ctx.Push()
	c.depth++
}

func (c *Canvas) restore() {
	c.ctx.Pop()
	c.depth--
}

// offscreen allocates a transparent layer covering bounds, given in
// viewport pixels. Children drawn on it use the same coordinates they
// would on c.
func (c *Canvas) offscreen(bounds image.Rectangle) *Canvas {
	ctx := c.alloc.Allocate(bounds.Dx(), bounds.Dy())
	ctx.SetColor(color.Transparent)
	ctx.Clear()
	ctx.Translate(-float64(bounds.Min.X), -float64(bounds.Min.Y))
	return &Canvas{ctx: ctx, origin: bounds.Min, scroll: c.scroll, alloc: c.alloc}
}

// local maps viewport pixels to this canvas' pixels, clipped to its bounds.
func (c *Canvas) local(bounds image.Rectangle) image.Rectangle {
	return bounds.Sub(c.origin).Intersect(c.Image().Bounds())
}

// Clear fills the whole canvas with col.
func (c *Canvas) Clear(col color.Color) {
	c.ctx.Push()
	c.ctx.Identity()
	c.ctx.SetColor(col)
	c.ctx.Clear()
	c.ctx.Pop()
}
