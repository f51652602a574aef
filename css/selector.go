package css

import (
	"fmt"
	"slices"
	"strings"

	"rendercore/html"
)

// Selector decides whether a rule applies to a node. Matching never fails;
// not matching is the common case.
type Selector interface {
	Matches(node *html.Node) bool
	Priority() int
	String() string
}

type TagSelector struct {
	Tag      string
	priority int
}

func NewTagSelector(tag string) *TagSelector {
	return &TagSelector{Tag: strings.ToLower(tag), priority: 1}
}

func (s *TagSelector) Matches(node *html.Node) bool {
	return node.Tag() == s.Tag
}

func (s *TagSelector) Priority() int {
	return s.priority
}

func (s *TagSelector) String() string {
	return s.Tag
}

// ClassSelector matches one entry of the class attribute. Class is stored
// without the leading dot.
type ClassSelector struct {
	Class    string
	priority int
}

func NewClassSelector(class string) *ClassSelector {
	return &ClassSelector{Class: strings.TrimPrefix(class, "."), priority: 10}
}

func (s *ClassSelector) Matches(node *html.Node) bool {
	classes, ok := node.Attribute("class")
	return ok && slices.Contains(strings.Fields(classes), s.Class)
}

func (s *ClassSelector) Priority() int {
	return s.priority
}

func (s *ClassSelector) String() string {
	return "." + s.Class
}

// DescendantSelector matches when Descendant matches the node and Ancestor
// matches any node above it. Its priority is the sum of both parts.
type DescendantSelector struct {
	Ancestor   Selector
	Descendant Selector
	priority   int
}

func NewDescendantSelector(ancestor Selector, descendant Selector) *DescendantSelector {
	return &DescendantSelector{
		Ancestor:   ancestor,
		Descendant: descendant,
		priority:   ancestor.Priority() + descendant.Priority(),
	}
}

func (s *DescendantSelector) Matches(node *html.Node) bool {
	if !s.Descendant.Matches(node) {
		return false
	}
	for node.Parent != nil {
		if s.Ancestor.Matches(node.Parent) {
			return true
		}
		node = node.Parent
	}
	return false
}

func (s *DescendantSelector) Priority() int {
	return s.priority
}

func (s *DescendantSelector) String() string {
	return s.Ancestor.String() + " " + s.Descendant.String()
}

// PseudoclassSelector supports :focus only; any other pseudo-class never
// matches.
type PseudoclassSelector struct {
	Pseudoclass string
	Base        Selector
	priority    int
}

func NewPseudoclassSelector(pseudoclass string, base Selector) *PseudoclassSelector {
	return &PseudoclassSelector{
		Pseudoclass: strings.ToLower(pseudoclass),
		Base:        base,
		priority:    base.Priority(),
	}
}

func (s *PseudoclassSelector) Matches(node *html.Node) bool {
	if !s.Base.Matches(node) {
		return false
	}
	if s.Pseudoclass == "focus" {
		return node.IsFocused()
	}
	return false
}

func (s *PseudoclassSelector) Priority() int {
	return s.priority
}

func (s *PseudoclassSelector) String() string {
	return s.Base.String() + ":" + s.Pseudoclass
}

// ParseSelector reads a whitespace-separated chain of simple selectors
// (tag, .class, either followed by :pseudo). Other combinators are rejected.
func ParseSelector(text string) (Selector, error) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty selector", ErrUnsupportedSelector)
	}
	var out Selector
	for _, part := range parts {
		sel, err := parseSimpleSelector(part)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = sel
		} else {
			out = NewDescendantSelector(out, sel)
		}
	}
	return out, nil
}

func parseSimpleSelector(part string) (Selector, error) {
	if strings.ContainsAny(part, ">+~[]*#") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSelector, part)
	}
	base, pseudo, hasPseudo := strings.Cut(part, ":")
	var sel Selector
	switch {
	case base == "":
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSelector, part)
	case strings.HasPrefix(base, "."):
		if len(base) == 1 || strings.Contains(base[1:], ".") {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedSelector, part)
		}
		sel = NewClassSelector(base)
	default:
		if strings.Contains(base, ".") {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedSelector, part)
		}
		sel = NewTagSelector(base)
	}
	if hasPseudo {
		if pseudo == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedSelector, part)
		}
		sel = NewPseudoclassSelector(pseudo, sel)
	}
	return sel, nil
}
