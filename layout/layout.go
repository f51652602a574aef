package layout

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"rendercore/css"
	"rendercore/font"
	"rendercore/html"
)

const (
	HSTEP          = 13.
	VSTEP          = 18.
	INPUT_WIDTH_PX = 200.
	LINE_SPACING   = 1.25
)

var BLOCK_ELEMENTS = []string{
	"html", "body", "article", "section", "nav", "aside",
	"h1", "h2", "h3", "h4", "h5", "h6", "hgroup", "header",
	"footer", "address", "p", "hr", "pre", "blockquote",
	"ol", "ul", "menu", "li", "dl", "dt", "dd", "figure",
	"figcaption", "main", "div", "table", "form", "fieldset",
	"legend", "details", "summary",
}

// ErrBadStyle marks a resolved style layout cannot use, such as a
// non-numeric font-size.
var ErrBadStyle = errors.New("bad style")

// Engine lays out documents for one viewport width.
type Engine struct {
	fonts *font.Cache
	width float64
	log   *zap.Logger
}

func NewEngine(fonts *font.Cache, viewportWidth float64, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if fonts == nil {
		fonts = font.NewCache(log)
	}
	return &Engine{fonts: fonts, width: viewportWidth, log: log.Named("layout")}
}

func (e *Engine) SetViewportWidth(width float64) {
	e.width = width
}

// Layout builds a fresh box tree for a styled document. On error no tree is
// returned.
func (e *Engine) Layout(root *html.Node) (*Box, error) {
	doc := newBox(KindDocument, root, nil, nil)
	doc.X = HSTEP
	doc.Y = VSTEP
	doc.Width = e.width - 2*HSTEP

	child := newBox(KindBlock, root, doc, nil)
	doc.Children = []*Box{child}
	if err := e.layoutBlock(child); err != nil {
		return nil, err
	}
	doc.Height = child.Height
	return doc, nil
}

// blockMode is "block" when any child is a block-level element. Everything
// else, including an element with no children, lays out as inline content
// and gets at least one (possibly empty) line.
func blockMode(node *html.Node) string {
	for _, child := range node.Children {
		if slices.Contains(BLOCK_ELEMENTS, child.Tag()) {
			return "block"
		}
	}
	return "inline"
}

func (e *Engine) layoutBlock(b *Box) error {
	if b.Previous != nil {
		b.Y = b.Previous.Y + b.Previous.Height
	} else {
		b.Y = b.Parent.Y
	}
	b.X = b.Parent.X
	b.Width = b.Parent.Width
	if _, err := parseOpacity(b.Node); err != nil {
		return err
	}

	if blockMode(b.Node) == "block" {
		var previous *Box
		for _, child := range b.Node.Children {
			next := newBox(KindBlock, child, b, previous)
			b.Children = append(b.Children, next)
			previous = next
		}
		for _, child := range b.Children {
			if err := e.layoutBlock(child); err != nil {
				return err
			}
		}
	} else {
		in := &inline{engine: e, block: b}
		in.newLine()
		if err := in.recurse(b.Node); err != nil {
			return err
		}
		for _, line := range b.Children {
			if err := e.layoutLine(line); err != nil {
				return err
			}
		}
	}

	b.Height = 0
	for _, child := range b.Children {
		b.Height += child.Height
	}
	return nil
}

// inline places words and atomic inputs onto the lines of one block.
type inline struct {
	engine  *Engine
	block   *Box
	cursorX float64
}

func (in *inline) recurse(node *html.Node) error {
	if text, ok := node.Token.(*html.TextToken); ok {
		for _, word := range strings.Fields(text.Text) {
			if err := in.word(node, word); err != nil {
				return err
			}
		}
		return nil
	}
	switch node.Tag() {
	case "br":
		in.newLine()
	case "input", "button":
		return in.input(node)
	default:
		for _, child := range node.Children {
			if err := in.recurse(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (in *inline) word(node *html.Node, word string) error {
	face, err := in.engine.face(node)
	if err != nil {
		return err
	}
	child := in.place(KindText, node, face.Measure(word), face.SpaceWidth())
	child.Word = word
	return nil
}

func (in *inline) input(node *html.Node) error {
	face, err := in.engine.face(node)
	if err != nil {
		return err
	}
	in.place(KindInput, node, INPUT_WIDTH_PX, face.SpaceWidth())
	return nil
}

// place appends a box of width w to the current line, starting a new line
// first if it does not fit. A box always fits on an empty line.
func (in *inline) place(kind Kind, node *html.Node, w, space float64) *Box {
	line := in.block.Children[len(in.block.Children)-1]
	if in.cursorX+w > in.block.Width && len(line.Children) > 0 {
		line = in.newLine()
	}
	var previous *Box
	if len(line.Children) > 0 {
		previous = line.Children[len(line.Children)-1]
	}
	child := newBox(kind, node, line, previous)
	line.Children = append(line.Children, child)
	in.cursorX += w + space
	return child
}

func (in *inline) newLine() *Box {
	in.cursorX = 0
	var last *Box
	if len(in.block.Children) > 0 {
		last = in.block.Children[len(in.block.Children)-1]
	}
	line := newBox(KindLine, in.block.Node, in.block, last)
	in.block.Children = append(in.block.Children, line)
	return line
}

func (e *Engine) layoutLine(l *Box) error {
	l.Width = l.Parent.Width
	l.X = l.Parent.X
	if l.Previous != nil {
		l.Y = l.Previous.Y + l.Previous.Height
	} else {
		l.Y = l.Parent.Y
	}

	for _, child := range l.Children {
		var err error
		switch child.Kind {
		case KindText:
			err = e.layoutText(child)
		case KindInput:
			err = e.layoutInput(child)
		default:
			err = fmt.Errorf("unexpected %v inside a line", child.Kind)
		}
		if err != nil {
			return err
		}
	}

	var maxAscent, maxDescent float64
	for _, child := range l.Children {
		maxAscent = max(maxAscent, child.Ascent)
		maxDescent = max(maxDescent, child.Descent)
	}
	baseline := l.Y + LINE_SPACING*maxAscent
	for _, child := range l.Children {
		child.Y = baseline - child.Ascent
	}
	l.Height = LINE_SPACING * (maxAscent + maxDescent)
	return nil
}

func (e *Engine) layoutText(t *Box) error {
	face, err := e.face(t.Node)
	if err != nil {
		return err
	}
	t.Face = face
	t.Width = face.Measure(t.Word)
	t.X = inlineX(t)
	t.Height = face.Linespace()
	t.Ascent = face.Ascent()
	t.Descent = face.Descent()
	return nil
}

func (e *Engine) layoutInput(t *Box) error {
	face, err := e.face(t.Node)
	if err != nil {
		return err
	}
	t.Face = face
	t.Width = INPUT_WIDTH_PX
	t.X = inlineX(t)
	t.Height = face.Linespace()
	t.Ascent = face.Ascent()
	t.Descent = face.Descent()
	return nil
}

func inlineX(b *Box) float64 {
	if b.Previous == nil {
		return b.Parent.X
	}
	return b.Previous.X + b.Previous.Width + b.Previous.Face.SpaceWidth()
}

// face resolves a node's font from its computed style.
func (e *Engine) face(node *html.Node) (*font.Face, error) {
	size, err := css.ParsePx(node.Style["font-size"])
	if err != nil || size <= 0 {
		return nil, fmt.Errorf("%w: font-size %q on %v", ErrBadStyle, node.Style["font-size"], node)
	}
	weight := node.Style["font-weight"]
	if !validWeight(weight) {
		return nil, fmt.Errorf("%w: font-weight %q on %v", ErrBadStyle, weight, node)
	}
	if _, err := parseOpacity(node); err != nil {
		return nil, err
	}
	face, err := e.fonts.Get(size, weight, node.Style["font-style"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStyle, err)
	}
	return face, nil
}

// parseOpacity reads the opacity property clamped to [0, 1]. A missing
// property is fully opaque.
func parseOpacity(node *html.Node) (float64, error) {
	value, ok := node.Style["opacity"]
	if !ok {
		return 1, nil
	}
	op, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: opacity %q on %v", ErrBadStyle, value, node)
	}
	return min(max(op, 0), 1), nil
}

func validWeight(weight string) bool {
	switch weight {
	case "", "normal", "bold", "bolder", "lighter":
		return true
	}
	_, err := strconv.Atoi(weight)
	return err == nil
}
