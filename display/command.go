package display

import (
	"fmt"
	"io"
	"math"
	"strings"

	col "rendercore/color"
	"rendercore/font"
	"rendercore/rect"
)

// Command is one entry of a display list. Leaves draw directly; composites
// own their children and may route them through an offscreen layer.
type Command interface {
	Execute(c *Canvas)
	// Rect is the bounding rect in page coordinates. Composites compute it
	// once from their children.
	Rect() *rect.Rect
	Children() []Command
	String() string
	isCommand()
}

type leaf struct {
	rect *rect.Rect
}

func (l *leaf) Rect() *rect.Rect {
	return l.rect
}

func (l *leaf) Children() []Command {
	return nil
}

func (*leaf) isCommand() {}

type DrawText struct {
	leaf
	Text  string
	Face  *font.Face
	Color string
}

func NewDrawText(x, y float64, text string, face *font.Face, color string) *DrawText {
	r := rect.NewRect(x, y, x+face.Measure(text), y+face.Ascent()+face.Descent())
	return &DrawText{leaf: leaf{rect: r}, Text: text, Face: face, Color: color}
}

func (d *DrawText) Execute(c *Canvas) {
	c.ctx.SetColor(col.ParseColor(d.Color))
	c.ctx.SetFontFace(d.Face)
	c.ctx.DrawString(d.Text, d.rect.Left, d.rect.Top+d.Face.Ascent()-c.scroll)
}

func (d *DrawText) String() string {
	return fmt.Sprint("DrawText(rect=", d.rect, ", text='", d.Text, "', color='", d.Color, "')")
}

type DrawRect struct {
	leaf
	Color string
}

func NewDrawRect(r *rect.Rect, color string) *DrawRect {
	return &DrawRect{leaf: leaf{rect: r}, Color: color}
}

func (d *DrawRect) Execute(c *Canvas) {
	c.ctx.SetColor(col.ParseColor(d.Color))
	c.ctx.DrawRectangle(d.rect.Left, d.rect.Top-c.scroll, d.rect.Width(), d.rect.Height())
	c.ctx.Fill()
}

func (d *DrawRect) String() string {
	return fmt.Sprint("DrawRect(rect=", d.rect, ", color='", d.Color, "')")
}

type DrawRRect struct {
	leaf
	Radius float64
	Color  string
}

func NewDrawRRect(r *rect.Rect, radius float64, color string) *DrawRRect {
	return &DrawRRect{leaf: leaf{rect: r}, Radius: radius, Color: color}
}

func (d *DrawRRect) Execute(c *Canvas) {
	c.ctx.SetColor(col.ParseColor(d.Color))
	if d.Radius > 0 {
		c.ctx.DrawRoundedRectangle(d.rect.Left, d.rect.Top-c.scroll, d.rect.Width(), d.rect.Height(), d.Radius)
	} else {
		c.ctx.DrawRectangle(d.rect.Left, d.rect.Top-c.scroll, d.rect.Width(), d.rect.Height())
	}
	c.ctx.Fill()
}

func (d *DrawRRect) String() string {
	return fmt.Sprint("DrawRRect(rect=", d.rect, ", radius=", d.Radius, ", color='", d.Color, "')")
}

type DrawOutline struct {
	leaf
	Color     string
	Thickness float64
}

func NewDrawOutline(r *rect.Rect, color string, thickness float64) *DrawOutline {
	return &DrawOutline{leaf: leaf{rect: r}, Color: color, Thickness: thickness}
}

func (d *DrawOutline) Execute(c *Canvas) {
	c.ctx.SetColor(col.ParseColor(d.Color))
	c.ctx.SetLineWidth(d.Thickness)
	c.ctx.DrawRectangle(d.rect.Left, d.rect.Top-c.scroll, d.rect.Width(), d.rect.Height())
	c.ctx.Stroke()
}

func (d *DrawOutline) String() string {
	return fmt.Sprint("DrawOutline(rect=", d.rect, ", color='", d.Color, "', thickness=", d.Thickness, ")")
}

// DrawLine keeps its end points separately; its rect is widened by the
// line thickness so a vertical or horizontal line still has an area.
type DrawLine struct {
	leaf
	X1, Y1, X2, Y2 float64
	Color          string
	Thickness      float64
}

func NewDrawLine(x1, y1, x2, y2 float64, color string, thickness float64) *DrawLine {
	half := math.Max(thickness, 1) / 2
	r := rect.NewRect(math.Min(x1, x2)-half, math.Min(y1, y2)-half, math.Max(x1, x2)+half, math.Max(y1, y2)+half)
	return &DrawLine{leaf: leaf{rect: r}, X1: x1, Y1: y1, X2: x2, Y2: y2, Color: color, Thickness: thickness}
}

func (d *DrawLine) Execute(c *Canvas) {
	c.ctx.SetColor(col.ParseColor(d.Color))
	c.ctx.SetLineWidth(d.Thickness)
	c.ctx.DrawLine(d.X1, d.Y1-c.scroll, d.X2, d.Y2-c.scroll)
	c.ctx.Stroke()
}

func (d *DrawLine) String() string {
	return fmt.Sprintf("DrawLine(%.2f, %.2f, %.2f, %.2f, color='%s', thickness=%v)", d.X1, d.Y1, d.X2, d.Y2, d.Color, d.Thickness)
}

// Execute runs a display list in order.
func Execute(c *Canvas, list []Command) {
	for _, cmd := range list {
		cmd.Execute(c)
	}
}

func PrintCommands(w io.Writer, list []Command, indent int) {
	for _, cmd := range list {
		fmt.Fprintln(w, strings.Repeat(" ", indent)+cmd.String())
		PrintCommands(w, cmd.Children(), indent+2)
	}
}

func CommandTreeToList(tree Command) []Command {
	list := []Command{tree}
	for _, child := range tree.Children() {
		list = append(list, CommandTreeToList(child)...)
	}
	return list
}

func unionRect(children []Command) *rect.Rect {
	rects := make([]*rect.Rect, len(children))
	for i, child := range children {
		rects[i] = child.Rect()
	}
	return rect.Bounds(rects...)
}
