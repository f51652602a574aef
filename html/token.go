package html

import (
	"strconv"
)

// Token is the payload of a Node: exactly one of *TextToken or
// *ElementToken.
type Token interface {
	String() string
	isToken()
}

type TextToken struct {
	Text string
}

func NewTextToken(text string) *TextToken {
	return &TextToken{
		Text: text,
	}
}

func (t *TextToken) String() string {
	return strconv.Quote(t.Text)
}

func (*TextToken) isToken() {}

type ElementToken struct {
	Tag        string
	Attributes map[string]string
	IsFocused  bool
}

func NewElementToken(tag string, attributes map[string]string) *ElementToken {
	if attributes == nil {
		attributes = map[string]string{}
	}
	return &ElementToken{
		Tag:        tag,
		Attributes: attributes,
	}
}

func (e *ElementToken) String() string {
	return "<" + e.Tag + ">"
}

func (*ElementToken) isToken() {}
