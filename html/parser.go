package html

import (
	"errors"
	"fmt"
	"io"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoRoot = errors.New("html: document has no <html> element")

// Parse builds a node tree rooted at the <html> element. Comments, doctype
// and whitespace-only text are dropped, as is any text inside <head>.
func Parse(r io.Reader) (*Node, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode && c.DataAtom == atom.Html {
			return convert(c, false), nil
		}
	}
	return nil, ErrNoRoot
}

// ParseFragment parses markup as the new content of context, the way an
// innerHTML assignment does.
func ParseFragment(context *Node, markup string) ([]*Node, error) {
	tag := context.Tag()
	if tag == "" {
		return nil, fmt.Errorf("parse fragment: context %v is not an element", context)
	}
	ctx := &xhtml.Node{Type: xhtml.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	parsed, err := xhtml.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	nodes := make([]*Node, 0, len(parsed))
	for _, p := range parsed {
		if n := convertChild(p, false); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func convert(src *xhtml.Node, inHead bool) *Node {
	attributes := make(map[string]string, len(src.Attr))
	for _, a := range src.Attr {
		attributes[strings.ToLower(a.Key)] = a.Val
	}
	node := NewNode(NewElementToken(strings.ToLower(src.Data), attributes), nil)
	inHead = inHead || src.DataAtom == atom.Head
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if child := convertChild(c, inHead); child != nil {
			node.AppendChild(child)
		}
	}
	return node
}

func convertChild(src *xhtml.Node, inHead bool) *Node {
	switch src.Type {
	case xhtml.ElementNode:
		return convert(src, inHead)
	case xhtml.TextNode:
		if inHead || strings.TrimSpace(src.Data) == "" {
			return nil
		}
		return NewText(src.Data)
	default:
		return nil
	}
}
