package display

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/blend"
	xdraw "golang.org/x/image/draw"

	"rendercore/rect"
)

type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendDifference
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendSoftLight
	BlendExclusion
)

var blendModeNames = map[string]BlendMode{
	"normal":      BlendNormal,
	"source-over": BlendNormal,
	"multiply":    BlendMultiply,
	"difference":  BlendDifference,
	"screen":      BlendScreen,
	"overlay":     BlendOverlay,
	"darken":      BlendDarken,
	"lighten":     BlendLighten,
	"color-dodge": BlendColorDodge,
	"color-burn":  BlendColorBurn,
	"soft-light":  BlendSoftLight,
	"exclusion":   BlendExclusion,
}

var blendFuncs = map[BlendMode]func(bg, fg image.Image) *image.RGBA{
	BlendMultiply:   blend.Multiply,
	BlendDifference: blend.Difference,
	BlendScreen:     blend.Screen,
	BlendOverlay:    blend.Overlay,
	BlendDarken:     blend.Darken,
	BlendLighten:    blend.Lighten,
	BlendColorDodge: blend.ColorDodge,
	BlendColorBurn:  blend.ColorBurn,
	BlendSoftLight:  blend.SoftLight,
	BlendExclusion:  blend.Exclusion,
}

// ParseBlendMode maps a mix-blend-mode value to a mode. Unknown names,
// including the empty string, are normal.
func ParseBlendMode(name string) BlendMode {
	return blendModeNames[strings.ToLower(strings.TrimSpace(name))]
}

func (m BlendMode) String() string {
	for name, mode := range blendModeNames {
		if mode == m && name != "source-over" {
			return name
		}
	}
	return "normal"
}

// Opacity draws its children at a uniform alpha. Its rect is the union of
// its children's rects, fixed when it is built.
type Opacity struct {
	opacity  float64
	children []Command
	rect     *rect.Rect
}

func NewOpacity(opacity float64, children []Command) *Opacity {
	return &Opacity{opacity: opacity, children: children, rect: unionRect(children)}
}

func (o *Opacity) Value() float64 {
	return o.opacity
}

func (o *Opacity) Rect() *rect.Rect {
	return o.rect
}

func (o *Opacity) Children() []Command {
	return o.children
}

func (*Opacity) isCommand() {}

// NeedsLayer reports whether Execute will allocate an offscreen layer.
func (o *Opacity) NeedsLayer() bool {
	return !o.rect.IsEmpty() && o.opacity < 1
}

func (o *Opacity) Execute(c *Canvas) {
	if !o.NeedsLayer() {
		Execute(c, o.children)
		return
	}
	c.save()
	defer c.restore()

	bounds := o.rect.Translate(0, -c.scroll).RoundOutToInt()
	layer := c.offscreen(bounds)
	Execute(layer, o.children)

	dr := c.local(bounds)
	if dr.Empty() {
		return
	}
	sp := dr.Min.Add(c.origin).Sub(bounds.Min)
	alpha := uint8(math.Round(math.Max(o.opacity, 0) * 255))
	mask := image.NewUniform(color.Alpha{A: alpha})
	xdraw.DrawMask(c.Image(), dr, layer.Image(), sp, mask, image.Point{}, xdraw.Over)
}

func (o *Opacity) String() string {
	return fmt.Sprintf("Opacity(opacity=%v, rect=%v)", o.opacity, o.rect)
}

// Blend composites its children onto what is already drawn with a named
// blend mode.
type Blend struct {
	mode     BlendMode
	children []Command
	rect     *rect.Rect
}

func NewBlend(mode BlendMode, children []Command) *Blend {
	return &Blend{mode: mode, children: children, rect: unionRect(children)}
}

func (b *Blend) Mode() BlendMode {
	return b.mode
}

func (b *Blend) Rect() *rect.Rect {
	return b.rect
}

func (b *Blend) Children() []Command {
	return b.children
}

func (*Blend) isCommand() {}

func (b *Blend) NeedsLayer() bool {
	return !b.rect.IsEmpty() && b.mode != BlendNormal
}

func (b *Blend) Execute(c *Canvas) {
	fn, ok := blendFuncs[b.mode]
	if !ok || !b.NeedsLayer() {
		Execute(c, b.children)
		return
	}
	c.save()
	defer c.restore()

	bounds := b.rect.Translate(0, -c.scroll).RoundOutToInt()
	layer := c.offscreen(bounds)
	Execute(layer, b.children)

	dr := c.local(bounds)
	if dr.Empty() {
		return
	}
	sr := dr.Add(c.origin).Sub(bounds.Min)
	dst := c.Image()
	blended := fn(dst.SubImage(dr), layer.Image().SubImage(sr))
	xdraw.Draw(dst, dr, blended, blended.Bounds().Min, xdraw.Src)
}

func (b *Blend) String() string {
	return fmt.Sprintf("Blend(mode=%v, rect=%v)", b.mode, b.rect)
}
