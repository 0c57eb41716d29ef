package verify

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ben-ranford/stripgate/internal/jsparse"
	"github.com/ben-ranford/stripgate/internal/sourcemap"
)

// Reference is the first use of an undeclared name in a chunk. Line is
// 1-based, Column is 0-based in UTF-16 code units as source maps count.
type Reference struct {
	Name   string
	Line   int
	Column int
}

var functionScopeTypes = map[string]bool{
	"program":                        true,
	"function_declaration":           true,
	"function_expression":            true,
	"function":                       true,
	"generator_function_declaration": true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
	"class_static_block":             true,
}

var blockScopeTypes = map[string]bool{
	"statement_block":  true,
	"for_statement":    true,
	"for_in_statement": true,
	"catch_clause":     true,
	"switch_body":      true,
	"class":            true,
	"class_body":       true,
}

type scopeAnalysis struct {
	content   []byte
	scopes    map[jsparse.NodeKey]map[string]struct{}
	declSites map[jsparse.NodeKey]struct{}
}

// UndeclaredReferences parses compiled JavaScript and returns the first
// occurrence of every identifier that no enclosing scope declares and that
// is not a known global.
func UndeclaredReferences(ctx context.Context, parser *jsparse.Parser, code []byte) ([]Reference, error) {
	tree, err := parser.ParseJS(ctx, code)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	analysis := &scopeAnalysis{
		content:   code,
		scopes:    make(map[jsparse.NodeKey]map[string]struct{}),
		declSites: make(map[jsparse.NodeKey]struct{}),
	}
	root := tree.RootNode()
	analysis.declare(root)
	return analysis.references(root), nil
}

func (a *scopeAnalysis) declare(root *sitter.Node) {
	visit := func(node *sitter.Node) {
		switch node.Type() {
		case "variable_declaration":
			a.declareDeclarators(node, functionScopeOf(node))
		case "lexical_declaration":
			a.declareDeclarators(node, blockScopeOf(node))
		case "function_declaration", "generator_function_declaration", "class_declaration":
			a.declarePattern(node.ChildByFieldName("name"), blockScopeOf(node))
			a.declarePattern(node.ChildByFieldName("parameters"), node)
		case "function_expression", "function", "generator_function", "class":
			a.declarePattern(node.ChildByFieldName("name"), node)
			a.declarePattern(node.ChildByFieldName("parameters"), node)
		case "arrow_function":
			a.declarePattern(node.ChildByFieldName("parameter"), node)
			a.declarePattern(node.ChildByFieldName("parameters"), node)
		case "method_definition":
			a.declarePattern(node.ChildByFieldName("parameters"), node)
		case "catch_clause":
			a.declarePattern(node.ChildByFieldName("parameter"), node)
		case "for_in_statement":
			a.declareForInLeft(node)
		case "import_statement":
			a.declareImport(node, root)
		}
	}
	visit(root)
	jsparse.Walk(root, visit)
}

func (a *scopeAnalysis) declareDeclarators(decl *sitter.Node, scope *sitter.Node) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		a.declarePattern(child.ChildByFieldName("name"), scope)
	}
}

func (a *scopeAnalysis) declareForInLeft(node *sitter.Node) {
	var scope *sitter.Node
	switch {
	case jsparse.HasChildToken(node, a.content, "var"):
		scope = functionScopeOf(node)
	case jsparse.HasChildToken(node, a.content, "let"), jsparse.HasChildToken(node, a.content, "const"):
		scope = node
	default:
		return
	}
	a.declarePattern(node.ChildByFieldName("left"), scope)
}

func (a *scopeAnalysis) declareImport(node *sitter.Node, root *sitter.Node) {
	jsparse.Walk(node, func(child *sitter.Node) {
		if child.Type() != "identifier" {
			return
		}
		a.declSites[jsparse.Key(child)] = struct{}{}
		parent := child.Parent()
		if parent != nil && parent.Type() == "import_specifier" {
			alias := parent.ChildByFieldName("alias")
			if alias != nil && !jsparse.SameNode(alias, child) {
				return
			}
		}
		a.add(root, a.name(child))
	})
}

func (a *scopeAnalysis) declarePattern(node *sitter.Node, scope *sitter.Node) {
	if node == nil || scope == nil {
		return
	}
	switch node.Type() {
	case "identifier":
		a.declSites[jsparse.Key(node)] = struct{}{}
		a.add(scope, a.name(node))
	case "shorthand_property_identifier_pattern":
		a.add(scope, a.name(node))
	case "assignment_pattern", "object_assignment_pattern":
		a.declarePattern(node.ChildByFieldName("left"), scope)
	case "pair_pattern":
		a.declarePattern(node.ChildByFieldName("value"), scope)
	case "formal_parameters", "object_pattern", "array_pattern", "rest_pattern":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			a.declarePattern(node.NamedChild(i), scope)
		}
	}
}

func (a *scopeAnalysis) name(node *sitter.Node) string {
	return jsparse.DecodeIdentifier(jsparse.Text(node, a.content))
}

func (a *scopeAnalysis) add(scope *sitter.Node, name string) {
	if name == "" {
		return
	}
	names, ok := a.scopes[jsparse.Key(scope)]
	if !ok {
		names = make(map[string]struct{})
		a.scopes[jsparse.Key(scope)] = names
	}
	names[name] = struct{}{}
}

func (a *scopeAnalysis) references(root *sitter.Node) []Reference {
	refs := make([]Reference, 0)
	seen := make(map[string]struct{})
	jsparse.Walk(root, func(node *sitter.Node) {
		switch node.Type() {
		case "identifier", "shorthand_property_identifier":
		default:
			return
		}
		if _, ok := a.declSites[jsparse.Key(node)]; ok {
			return
		}
		if !isReference(node, a.content) {
			return
		}
		name := a.name(node)
		if name == "" || isKnownGlobal(name) {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		if a.isDeclared(node, name) {
			return
		}
		seen[name] = struct{}{}
		point := node.StartPoint()
		start := int(node.StartByte())
		column := sourcemap.UTF16Len(a.content[start-int(point.Column) : start])
		refs = append(refs, Reference{Name: name, Line: int(point.Row) + 1, Column: column})
	})
	return refs
}

func (a *scopeAnalysis) isDeclared(node *sitter.Node, name string) bool {
	for current := node.Parent(); current != nil; current = current.Parent() {
		if names, ok := a.scopes[jsparse.Key(current)]; ok {
			if _, declared := names[name]; declared {
				return true
			}
		}
	}
	return false
}

func isReference(node *sitter.Node, content []byte) bool {
	parent := node.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "meta_property":
		return false
	case "unary_expression":
		operator := parent.ChildByFieldName("operator")
		return operator == nil || jsparse.Text(operator, content) != "typeof"
	case "export_specifier":
		if alias := parent.ChildByFieldName("alias"); jsparse.SameNode(alias, node) {
			return false
		}
		return !isReexport(parent)
	default:
		return true
	}
}

func isReexport(specifier *sitter.Node) bool {
	for current := specifier.Parent(); current != nil; current = current.Parent() {
		if current.Type() == "export_statement" {
			return current.ChildByFieldName("source") != nil
		}
	}
	return false
}

func functionScopeOf(node *sitter.Node) *sitter.Node {
	for current := node.Parent(); current != nil; current = current.Parent() {
		if functionScopeTypes[current.Type()] {
			return current
		}
	}
	return nil
}

func blockScopeOf(node *sitter.Node) *sitter.Node {
	for current := node.Parent(); current != nil; current = current.Parent() {
		if functionScopeTypes[current.Type()] || blockScopeTypes[current.Type()] {
			return current
		}
	}
	return nil
}
