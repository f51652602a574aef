// Package html holds the document tree the renderer styles and lays out,
// plus the adapter that builds it from markup.
package html

import (
	"fmt"
	"io"
	"strings"

	"rendercore/animate"
)

// Node is an element or text node. Children are owned; Parent is a back
// reference kept consistent by AppendChild and ReplaceChildren.
type Node struct {
	Token    Token
	Parent   *Node
	Children []*Node

	// Style is the resolved property mapping, rewritten on every style pass.
	Style map[string]string

	// Animations holds running property transitions keyed by property name.
	Animations map[string]animate.Animation
}

func NewNode(token Token, parent *Node) *Node {
	return &Node{
		Token:      token,
		Parent:     parent,
		Children:   []*Node{},
		Style:      map[string]string{},
		Animations: map[string]animate.Animation{},
	}
}

// NewElement is a shorthand used by tests and the markup adapter.
func NewElement(tag string, attributes map[string]string, children ...*Node) *Node {
	n := NewNode(NewElementToken(tag, attributes), nil)
	for _, child := range children {
		n.AppendChild(child)
	}
	return n
}

func NewText(text string) *Node {
	return NewNode(NewTextToken(text), nil)
}

func (n *Node) AppendChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// ReplaceChildren swaps the whole subtree below n. The old children are
// detached.
func (n *Node) ReplaceChildren(children []*Node) {
	for _, old := range n.Children {
		old.Parent = nil
	}
	n.Children = make([]*Node, 0, len(children))
	for _, child := range children {
		n.AppendChild(child)
	}
}

// Element returns the element token, or false for text nodes.
func (n *Node) Element() (*ElementToken, bool) {
	e, ok := n.Token.(*ElementToken)
	return e, ok
}

// Tag is empty for text nodes.
func (n *Node) Tag() string {
	if e, ok := n.Element(); ok {
		return e.Tag
	}
	return ""
}

func (n *Node) IsText() bool {
	_, ok := n.Token.(*TextToken)
	return ok
}

// Attribute returns an element attribute; text nodes have none.
func (n *Node) Attribute(name string) (string, bool) {
	e, ok := n.Element()
	if !ok {
		return "", false
	}
	v, ok := e.Attributes[name]
	return v, ok
}

func (n *Node) IsFocused() bool {
	e, ok := n.Element()
	return ok && e.IsFocused
}

func (n *Node) String() string {
	return n.Token.String()
}

// TreeToList flattens the tree in pre-order.
func TreeToList(tree *Node) []*Node {
	list := []*Node{tree}
	for _, child := range tree.Children {
		list = append(list, TreeToList(child)...)
	}
	return list
}

func (n *Node) PrintTree(w io.Writer, indent int) {
	fmt.Fprintln(w, strings.Repeat(" ", indent)+n.Token.String())
	for _, child := range n.Children {
		child.PrintTree(w, indent+2)
	}
}
