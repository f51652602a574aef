package layout

import (
	"rendercore/color"
	"rendercore/css"
	"rendercore/display"
	"rendercore/html"
	"rendercore/rect"
)

// Paint walks the box tree in post order and returns its display list.
// Each box contributes its own operations, then its children's, and then
// wraps the lot in its visual effects.
func Paint(box *Box) []display.Command {
	var list []display.Command
	paintTree(box, &list)
	return list
}

func paintTree(b *Box, list *[]display.Command) {
	var cmds []display.Command
	if shouldPaint(b) {
		cmds = paintSelf(b)
	}
	for _, child := range b.Children {
		paintTree(child, &cmds)
	}
	if shouldPaint(b) {
		cmds = paintEffects(b, cmds)
	}
	*list = append(*list, cmds...)
}

func shouldPaint(b *Box) bool {
	if b.Kind != KindBlock || b.Node.IsText() {
		return true
	}
	tag := b.Node.Tag()
	return tag != "input" && tag != "button"
}

func paintSelf(b *Box) []display.Command {
	var cmds []display.Command
	switch b.Kind {
	case KindBlock:
		if bg := b.Node.Style["background-color"]; color.HasAlpha(bg) {
			cmds = append(cmds, display.NewDrawRRect(b.SelfRect(), radius(b, 0), bg))
		}

	case KindText:
		cmds = append(cmds, display.NewDrawText(b.X, b.Y, b.Word, b.Face, b.Node.Style["color"]))

	case KindInput:
		if bg := b.Node.Style["background-color"]; color.HasAlpha(bg) {
			cmds = append(cmds, display.NewDrawRRect(b.SelfRect(), radius(b, 2), bg))
		}
		text := inputText(b)
		cmds = append(cmds, display.NewDrawText(b.X, b.Y, text, b.Face, b.Node.Style["color"]))
		if b.Node.IsFocused() {
			x := b.X + b.Face.Measure(text)
			cmds = append(cmds, display.NewDrawLine(x, b.Y, x, b.Y+b.Height, "black", 1))
		}
	}
	return cmds
}

func inputText(b *Box) string {
	switch b.Node.Tag() {
	case "input":
		value, _ := b.Node.Attribute("value")
		return value
	case "button":
		if len(b.Node.Children) == 1 && b.Node.Children[0].IsText() {
			return b.Node.Children[0].Token.(*html.TextToken).Text
		}
	}
	return ""
}

func radius(b *Box, fallback float64) float64 {
	value, ok := b.Node.Style["border-radius"]
	if !ok {
		return fallback
	}
	r, err := css.ParsePx(value)
	if err != nil {
		return fallback
	}
	return r
}

func paintEffects(b *Box, cmds []display.Command) []display.Command {
	switch b.Kind {
	case KindDocument:
		return []display.Command{display.NewOpacity(opacity(b), cmds)}

	case KindBlock:
		op := opacity(b)
		if b.Parent != nil && b.Parent.Kind == KindDocument {
			// The document box already applied the root's opacity.
			op = 1
		}
		return visualEffects(b, op, cmds)

	case KindText:
		return visualEffects(b, opacity(b), cmds)

	case KindInput:
		cmds = visualEffects(b, opacity(b), cmds)
		return appendOutline(cmds, b.Node.Style["outline"], b.SelfRect())

	case KindLine:
		return paintLineOutline(b, cmds)
	}
	return cmds
}

func visualEffects(b *Box, op float64, cmds []display.Command) []display.Command {
	mode := display.ParseBlendMode(b.Node.Style["mix-blend-mode"])
	return []display.Command{
		display.NewBlend(mode, []display.Command{display.NewOpacity(op, cmds)}),
	}
}

// opacity of a laid-out box. Layout has already rejected malformed values.
func opacity(b *Box) float64 {
	op, err := parseOpacity(b.Node)
	if err != nil {
		return 1
	}
	return op
}

// paintLineOutline outlines the words of a line whose parent element has
// an outline, as one rect around all of them.
func paintLineOutline(l *Box, cmds []display.Command) []display.Command {
	outlineRect := rect.NewRectEmpty()
	outline := ""
	for _, child := range l.Children {
		parent := child.Node.Parent
		if parent == nil {
			continue
		}
		if thickness, _ := css.ParseOutline(parent.Style["outline"]); thickness > 0 {
			outlineRect = outlineRect.Union(child.SelfRect())
			outline = parent.Style["outline"]
		}
	}
	if outline == "" {
		return cmds
	}
	return appendOutline(cmds, outline, outlineRect)
}

func appendOutline(cmds []display.Command, outline string, r *rect.Rect) []display.Command {
	thickness, col := css.ParseOutline(outline)
	if thickness == 0 || col == "" {
		return cmds
	}
	return append(cmds, display.NewDrawOutline(r, col, thickness))
}
