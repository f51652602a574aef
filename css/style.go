package css

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"rendercore/animate"
	"rendercore/html"

	"go.uber.org/zap"
)

var (
	// ErrMalformedValue marks a style value that cannot be normalized.
	ErrMalformedValue = errors.New("malformed style value")
	// ErrMissingProperty marks a parent without a resolved inherited
	// property, which means resolution did not run in tree order.
	ErrMissingProperty = errors.New("missing inherited property")
)

// INHERITED_PROPERTIES lists the inheritable properties with their root
// defaults.
var INHERITED_PROPERTIES = map[string]string{
	"font-size":   "16px",
	"font-style":  "normal",
	"font-weight": "normal",
	"color":       "black",
}

// Resolver runs the cascade. It is not safe for concurrent use; a document
// resolves its style on its content thread only.
type Resolver struct {
	parser   *Parser
	log      *zap.Logger
	darkMode bool

	frame           time.Duration
	onTransitionRun func(node *html.Node, property string)
}

type ResolverOption func(*Resolver)

// WithDarkMode makes the root default color white and selects
// prefers-color-scheme: dark rules.
func WithDarkMode(dark bool) ResolverOption {
	return func(r *Resolver) { r.darkMode = dark }
}

// WithTransitions enables opacity transitions declared with the transition
// property. frame is the animation frame interval; started is called for
// each transition that begins.
func WithTransitions(frame time.Duration, started func(node *html.Node, property string)) ResolverOption {
	return func(r *Resolver) {
		r.frame = frame
		r.onTransitionRun = started
	}
}

func NewResolver(parser *Parser, log *zap.Logger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	if parser == nil {
		parser = NewParser(log)
	}
	r := &Resolver{parser: parser, log: log.Named("style")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) SetDarkMode(dark bool) {
	r.darkMode = dark
}

// Resolve recomputes the style of node and its whole subtree. Parents are
// resolved before their children because children inherit from the
// parent's finished mapping.
func (r *Resolver) Resolve(node *html.Node, rules []Rule) error {
	return r.style(node, SortRules(rules))
}

func (r *Resolver) style(node *html.Node, rules []Rule) error {
	oldStyle := node.Style
	newStyle := map[string]string{}

	for property, defaultValue := range INHERITED_PROPERTIES {
		if node.Parent == nil {
			if property == "color" && r.darkMode {
				defaultValue = "white"
			}
			newStyle[property] = defaultValue
			continue
		}
		value, ok := node.Parent.Style[property]
		if !ok {
			return fmt.Errorf("%w: %s on parent of %v", ErrMissingProperty, property, node)
		}
		newStyle[property] = value
	}

	for _, rule := range rules {
		if rule.Media != "" && (rule.Media == "dark") != r.darkMode {
			continue
		}
		if !rule.Selector.Matches(node) {
			continue
		}
		maps.Copy(newStyle, rule.Body)
	}

	if style, ok := node.Attribute("style"); ok {
		maps.Copy(newStyle, r.parser.ParseDeclarations(style))
	}

	if fontSize := newStyle["font-size"]; strings.HasSuffix(fontSize, "%") {
		parentFontSize := INHERITED_PROPERTIES["font-size"]
		if node.Parent != nil {
			parentFontSize = node.Parent.Style["font-size"]
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(fontSize, "%"), 64)
		if err != nil {
			return fmt.Errorf("%w: font-size %q on %v", ErrMalformedValue, fontSize, node)
		}
		parentPx, err := ParsePx(parentFontSize)
		if err != nil {
			return fmt.Errorf("parent font-size of %v: %w", node, err)
		}
		newStyle["font-size"] = formatPx(pct / 100 * parentPx)
	}

	if r.frame > 0 && len(oldStyle) != 0 {
		r.startTransitions(node, oldStyle, newStyle)
	}

	node.Style = newStyle

	for _, child := range node.Children {
		if err := r.style(child, rules); err != nil {
			return err
		}
	}
	return nil
}

// startTransitions replaces a changed, transitioned property with the first
// frame of an animation. A running animation towards the same target keeps
// its current frame value.
func (r *Resolver) startTransitions(node *html.Node, oldStyle, newStyle map[string]string) {
	for property, numFrames := range ParseTransition(newStyle["transition"], r.frame) {
		if property != "opacity" {
			continue
		}
		oldValue, okOld := oldStyle[property]
		newValue, okNew := newStyle[property]
		if !okOld || !okNew || oldValue == newValue {
			continue
		}
		oldF, err1 := strconv.ParseFloat(oldValue, 64)
		newF, err2 := strconv.ParseFloat(newValue, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if running, ok := node.Animations[property]; ok && running.Target() == newF {
			newStyle[property] = oldValue
			continue
		}
		if node.Animations == nil {
			node.Animations = map[string]animate.Animation{}
		}
		animation := animate.NewNumericAnimation(oldF, newF, numFrames)
		node.Animations[property] = animation
		newStyle[property] = animation.Start()
		r.log.Debug("Starting transition", zap.Stringer("node", node), zap.String("property", property),
			zap.String("from", oldValue), zap.String("to", newValue), zap.Int("frames", numFrames))
		if r.onTransitionRun != nil {
			r.onTransitionRun(node, property)
		}
	}
}
