package jsparse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Walk visits every named descendant of node in source order.
func Walk(node *sitter.Node, visit func(*sitter.Node)) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		visit(child)
		Walk(child, visit)
	}
}

// WalkLeaves visits every token of node, named or not, in source order.
func WalkLeaves(node *sitter.Node, visit func(*sitter.Node)) {
	count := int(node.ChildCount())
	if count == 0 {
		visit(node)
		return
	}
	for i := 0; i < count; i++ {
		WalkLeaves(node.Child(i), visit)
	}
}

func Text(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

func StringLiteral(node *sitter.Node, content []byte) (string, bool) {
	if node == nil || node.Type() != "string" {
		return "", false
	}

	text := Text(node, content)
	if len(text) >= 2 {
		quote := text[0]
		if (quote == '"' || quote == '\'') && text[len(text)-1] == quote {
			return text[1 : len(text)-1], true
		}
	}
	return "", false
}

func FirstNamedChildOfType(node *sitter.Node, types ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		for _, typ := range types {
			if child.Type() == typ {
				return child
			}
		}
	}
	return nil
}

// HasChildToken reports whether node has a direct anonymous child whose text
// is token, e.g. the `type` in `import type { A } from "a"`.
func HasChildToken(node *sitter.Node, content []byte, token string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.IsNamed() {
			continue
		}
		if strings.TrimSpace(Text(child, content)) == token {
			return true
		}
	}
	return false
}

// NodeKey identifies a node within one tree by its span and type.
type NodeKey struct {
	Start uint32
	End   uint32
	Type  string
}

func Key(node *sitter.Node) NodeKey {
	return NodeKey{Start: node.StartByte(), End: node.EndByte(), Type: node.Type()}
}

func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return Key(a) == Key(b)
}
