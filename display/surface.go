package display

import (
	"errors"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/fogleman/gg"
)

// ErrContentsLost is returned by Redraw when the surface kept losing its
// contents for every attempt.
var ErrContentsLost = errors.New("surface contents lost")

const maxRedrawAttempts = 3

// Surface is a raster target that can lose its contents, for instance when
// the viewport is resized from another goroutine. Draw into it through
// Redraw, which validates the surface first and repeats the pass if the
// contents were lost while drawing.
type Surface struct {
	width, height int
	ctx           *gg.Context
	alloc         Allocator
	lost          atomic.Bool
	pendingSize   atomic.Pointer[image.Point]
	recreated     int
}

func NewSurface(width, height int, alloc Allocator) *Surface {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	s := &Surface{width: width, height: height, alloc: alloc}
	s.lost.Store(true)
	return s
}

// Resize is safe to call from any goroutine; it takes effect on the next
// validation.
func (s *Surface) Resize(width, height int) {
	s.pendingSize.Store(&image.Point{X: width, Y: height})
	s.lost.Store(true)
}

// Invalidate marks the current contents as lost.
func (s *Surface) Invalidate() {
	s.lost.Store(true)
}

// Validate recreates the backing store if its contents were lost. It
// reports whether the surface was still valid.
func (s *Surface) Validate() bool {
	if !s.lost.Swap(false) && s.ctx != nil {
		return true
	}
	if size := s.pendingSize.Swap(nil); size != nil {
		s.width, s.height = size.X, size.Y
	}
	s.ctx = s.alloc.Allocate(max(s.width, 1), max(s.height, 1))
	s.recreated++
	return false
}

// Redraw clears the surface to background and runs draw on it until a
// pass completes without the contents being lost.
func (s *Surface) Redraw(background color.Color, scroll float64, draw func(c *Canvas)) error {
	for range maxRedrawAttempts {
		s.Validate()
		canvas := NewCanvas(s.ctx, scroll, s.alloc)
		canvas.Clear(background)
		draw(canvas)
		if !s.lost.Load() {
			return nil
		}
	}
	return ErrContentsLost
}

func (s *Surface) Image() *image.RGBA {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Image().(*image.RGBA)
}

func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Recreated counts how many backing stores have been allocated.
func (s *Surface) Recreated() int {
	return s.recreated
}
