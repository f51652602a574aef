// Package layout turns a styled node tree into positioned boxes and paints
// those boxes into a display list.
package layout

import (
	"fmt"
	"io"
	"strings"

	"rendercore/font"
	"rendercore/html"
	"rendercore/rect"
)

type Kind int

const (
	KindDocument Kind = iota
	KindBlock
	KindLine
	KindText
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "DocumentLayout"
	case KindBlock:
		return "BlockLayout"
	case KindLine:
		return "LineLayout"
	case KindText:
		return "TextLayout"
	case KindInput:
		return "InputLayout"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Box is one node of the box tree. The tree is rebuilt from scratch on
// every layout pass and never shared with the presentation thread.
type Box struct {
	Kind     Kind
	Node     *html.Node
	Parent   *Box
	Previous *Box
	Children []*Box

	X, Y, Width, Height float64
	Ascent, Descent     float64

	// Face and Word are set on text and input boxes only.
	Face *font.Face
	Word string
}

func newBox(kind Kind, node *html.Node, parent, previous *Box) *Box {
	return &Box{Kind: kind, Node: node, Parent: parent, Previous: previous}
}

func (b *Box) SelfRect() *rect.Rect {
	return rect.NewRectXYWH(b.X, b.Y, b.Width, b.Height)
}

func (b *Box) String() string {
	switch b.Kind {
	case KindText:
		return fmt.Sprintf("%v(x=%.2f, y=%.2f, width=%.2f, height=%.2f, word='%s')", b.Kind, b.X, b.Y, b.Width, b.Height, b.Word)
	case KindBlock:
		return fmt.Sprintf("%v(mode=%s, x=%.2f, y=%.2f, width=%.2f, height=%.2f, node=%v)", b.Kind, blockMode(b.Node), b.X, b.Y, b.Width, b.Height, b.Node)
	}
	return fmt.Sprintf("%v(x=%.2f, y=%.2f, width=%.2f, height=%.2f)", b.Kind, b.X, b.Y, b.Width, b.Height)
}

func TreeToList(tree *Box) []*Box {
	list := []*Box{tree}
	for _, child := range tree.Children {
		list = append(list, TreeToList(child)...)
	}
	return list
}

func PrintTree(w io.Writer, b *Box, indent int) {
	fmt.Fprintln(w, strings.Repeat(" ", indent)+b.String())
	for _, child := range b.Children {
		PrintTree(w, child, indent+2)
	}
}
