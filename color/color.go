package color

import (
	"fmt"
	col "image/color"

	"github.com/mazznoer/csscolorparser"
)

// Parse converts a CSS color string ("red", "#0f08", "rgb(1 2 3 / 50%)",
// "transparent", ...) into a non-premultiplied color.
func Parse(color string) (col.NRGBA, error) {
	c, err := csscolorparser.Parse(color)
	if err != nil {
		return col.NRGBA{}, fmt.Errorf("parse color %q: %w", color, err)
	}
	r, g, b, a := c.RGBA255()
	return col.NRGBA{R: r, G: g, B: b, A: a}, nil
}

// ParseColor is Parse for drawing code: an unknown color paints black.
func ParseColor(color string) col.Color {
	c, err := Parse(color)
	if err != nil {
		return col.Black
	}
	return c
}

// HasAlpha reports whether a color would leave any mark at all. Unparseable
// values count as invisible.
func HasAlpha(color string) bool {
	c, err := Parse(color)
	return err == nil && c.A > 0
}
