package strip

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ben-ranford/stripgate/internal/jsparse"
)

// ImportRecord describes one runtime import statement of a file.
type ImportRecord struct {
	Target     string
	Attributes Attributes
	BoundNames []string
	SourceFile string
}

type statementKind int

const (
	stmtOther statementKind = iota
	stmtImport
	stmtTypeImport
)

// statement is a top-level node. end is its byte end, which for imports
// also covers a legacy assert clause the grammar could not attach.
type statement struct {
	kind   statementKind
	node   *sitter.Node
	end    int
	record *ImportRecord
}

func collectStatements(ctx context.Context, parser *jsparse.Parser, root *sitter.Node, content []byte, fileID string) ([]statement, error) {
	statements := make([]statement, 0, root.NamedChildCount())
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt, err := classifyStatement(ctx, parser, root.NamedChild(i), content, fileID)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

func classifyStatement(ctx context.Context, parser *jsparse.Parser, node *sitter.Node, content []byte, fileID string) (statement, error) {
	other := statement{kind: stmtOther, node: node, end: int(node.EndByte())}
	if node.Type() != "import_statement" {
		return other, nil
	}
	target, ok := jsparse.StringLiteral(node.ChildByFieldName("source"), content)
	if !ok {
		// `import x = require("y")` and other forms without a static source.
		return other, nil
	}
	if isTypeOnlyImport(node, content) {
		return statement{kind: stmtTypeImport, node: node, end: int(node.EndByte())}, nil
	}
	attrs, end, err := extractAttributes(ctx, parser, node, content)
	if err != nil {
		return statement{}, err
	}
	return statement{
		kind: stmtImport,
		node: node,
		end:  end,
		record: &ImportRecord{
			Target:     target,
			Attributes: attrs,
			BoundNames: boundNames(node, content),
			SourceFile: fileID,
		},
	}, nil
}

// isTypeOnlyImport reports `import type ...` and imports whose every named
// specifier carries the `type` modifier. Both are erased by the compiler.
func isTypeOnlyImport(stmt *sitter.Node, content []byte) bool {
	if jsparse.HasChildToken(stmt, content, "type") || jsparse.HasChildToken(stmt, content, "typeof") {
		return true
	}
	clause := jsparse.FirstNamedChildOfType(stmt, "import_clause")
	if clause == nil || clause.NamedChildCount() != 1 {
		return false
	}
	named := clause.NamedChild(0)
	if named.Type() != "named_imports" {
		return false
	}
	specifiers := 0
	for i := 0; i < int(named.NamedChildCount()); i++ {
		spec := named.NamedChild(i)
		if spec.Type() != "import_specifier" {
			continue
		}
		if !jsparse.HasChildToken(spec, content, "type") {
			return false
		}
		specifiers++
	}
	return specifiers > 0
}

func boundNames(stmt *sitter.Node, content []byte) []string {
	clause := jsparse.FirstNamedChildOfType(stmt, "import_clause")
	if clause == nil {
		return nil
	}

	names := make([]string, 0, 2)
	seen := make(map[string]struct{})
	add := func(name string) {
		name = jsparse.DecodeIdentifier(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "identifier":
			add(jsparse.Text(child, content))
		case "namespace_import":
			add(jsparse.Text(jsparse.FirstNamedChildOfType(child, "identifier"), content))
		case "named_imports":
			for _, name := range namedImportLocals(child, content) {
				add(name)
			}
		}
	}
	return names
}

func namedImportLocals(node *sitter.Node, content []byte) []string {
	locals := make([]string, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec.Type() != "import_specifier" {
			continue
		}
		if jsparse.HasChildToken(spec, content, "type") {
			continue
		}
		local := spec.ChildByFieldName("alias")
		if local == nil {
			local = spec.ChildByFieldName("name")
		}
		if local == nil {
			local = jsparse.FirstNamedChildOfType(spec, "identifier")
		}
		locals = append(locals, jsparse.Text(local, content))
	}
	return locals
}
