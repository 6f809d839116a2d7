package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node of the kind it is registered for.
// Returning true stops the walker from descending into the node's children.
type NodeHandler func(node *sitter.Node) bool

// Walker is a depth-first, document-order visitor dispatching on node kind.
type Walker struct {
	handlers map[string]NodeHandler
}

func NewWalker(handlers map[string]NodeHandler) *Walker {
	return &Walker{handlers: handlers}
}

func (w *Walker) Walk(node *sitter.Node) {
	if node == nil {
		return
	}

	stop := false
	if handler, ok := w.handlers[node.Kind()]; ok {
		stop = handler(node)
	}
	if stop {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		w.Walk(node.Child(i))
	}
}

// NamedArgs returns the named, non-comment children of node.
func NamedArgs(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// Unparenthesize strips any number of wrapping parenthesized_expression nodes.
func Unparenthesize(node *sitter.Node) *sitter.Node {
	for node != nil && node.Kind() == "parenthesized_expression" {
		inner := NamedArgs(node)
		if len(inner) != 1 {
			return node
		}
		node = inner[0]
	}
	return node
}
