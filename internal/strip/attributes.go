package strip

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ben-ranford/stripgate/internal/jsparse"
)

type ValueKind int

const (
	ValueString ValueKind = iota + 1
	ValueBool
	ValueNumber
)

// Value is a scalar literal taken from an import attribute clause.
type Value struct {
	Kind ValueKind
	Str  string
	Bool bool
	Num  float64
}

func StringValue(value string) Value {
	return Value{Kind: ValueString, Str: value}
}

func BoolValue(value bool) Value {
	return Value{Kind: ValueBool, Bool: value}
}

func NumberValue(value float64) Value {
	return Value{Kind: ValueNumber, Num: value}
}

func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueString:
		return v.Str == other.Str
	case ValueBool:
		return v.Bool == other.Bool
	case ValueNumber:
		return v.Num == other.Num
	default:
		return false
	}
}

// Interface returns the Go scalar behind the value.
func (v Value) Interface() any {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueBool:
		return v.Bool
	case ValueNumber:
		return v.Num
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

type Attribute struct {
	Key   string
	Value Value
}

// Attributes keeps clause entries in source order.
type Attributes []Attribute

func (a Attributes) Get(key string) (Value, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return Value{}, false
}

func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a))
	for _, attr := range a {
		out[attr.Key] = attr.Value.Interface()
	}
	return out
}

const (
	clauseWith   = "with"
	clauseAssert = "assert"
)

// extractAttributes reads the `with { ... }` clause of an import statement,
// falling back to the legacy `assert { ... }` spelling. The grammars have no
// assert node, so that clause is located in the raw text after the source
// and parsed on its own. The returned offset is the end of the statement
// including any trailing assert clause.
func extractAttributes(ctx context.Context, parser *jsparse.Parser, stmt *sitter.Node, content []byte) (Attributes, int, error) {
	end := int(stmt.EndByte())
	scanFrom := end
	if source := stmt.ChildByFieldName("source"); source != nil {
		scanFrom = int(source.EndByte())
	}

	var withClause, assertClause *sitter.Node
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		switch child.Type() {
		case "import_attribute", "import_assertion":
		default:
			continue
		}
		scanFrom = max(scanFrom, int(child.EndByte()))
		object := jsparse.FirstNamedChildOfType(child, "object")
		if object == nil {
			continue
		}
		if clauseKeyword(child, content) == clauseAssert {
			if assertClause == nil {
				assertClause = object
			}
			continue
		}
		if withClause == nil {
			withClause = object
		}
	}

	var legacy Attributes
	if open, closeEnd, ok := legacyAssertClause(content, scanFrom); ok {
		end = max(end, statementEnd(content, closeEnd))
		if withClause == nil && assertClause == nil {
			parsed, err := parseDetachedObject(ctx, parser, content[open:closeEnd])
			if err != nil {
				return nil, 0, err
			}
			legacy = parsed
		}
	}

	switch {
	case withClause != nil:
		return parseAttributeObject(withClause, content), end, nil
	case assertClause != nil:
		return parseAttributeObject(assertClause, content), end, nil
	case legacy != nil:
		return legacy, end, nil
	default:
		return Attributes{}, end, nil
	}
}

// legacyAssertClause returns the brace span of an `assert { ... }` clause
// that starts at offset, on the same line.
func legacyAssertClause(content []byte, offset int) (int, int, bool) {
	i, ok := skipInlineTrivia(content, offset)
	if !ok || !bytes.HasPrefix(content[i:], []byte(clauseAssert)) {
		return 0, 0, false
	}
	i += len(clauseAssert)
	if i < len(content) && isIdentifierByte(content[i]) {
		return 0, 0, false
	}
	i, _ = skipInlineTrivia(content, i)
	if i >= len(content) || content[i] != '{' {
		return 0, 0, false
	}
	closeAt := matchingBrace(content, i)
	if closeAt < 0 {
		return 0, 0, false
	}
	return i, closeAt + 1, true
}

// skipInlineTrivia skips blanks and comments. It reports false when a line
// break is crossed.
func skipInlineTrivia(content []byte, i int) (int, bool) {
	for i < len(content) {
		switch {
		case content[i] == ' ' || content[i] == '\t':
			i++
		case content[i] == '\n' || content[i] == '\r':
			return i, false
		case bytes.HasPrefix(content[i:], []byte("/*")):
			closeAt := bytes.Index(content[i+2:], []byte("*/"))
			if closeAt < 0 {
				return len(content), false
			}
			if bytes.ContainsAny(content[i:i+2+closeAt], "\r\n") {
				return i, false
			}
			i += closeAt + 4
		default:
			return i, true
		}
	}
	return i, true
}

func matchingBrace(content []byte, open int) int {
	depth := 0
	for i := open; i < len(content); i++ {
		switch ch := content[i]; ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'', '`':
			for i++; i < len(content) && content[i] != ch; i++ {
				if content[i] == '\\' {
					i++
				}
			}
		}
	}
	return -1
}

func statementEnd(content []byte, i int) int {
	j, _ := skipInlineTrivia(content, i)
	if j < len(content) && content[j] == ';' {
		return j + 1
	}
	return i
}

func isIdentifierByte(ch byte) bool {
	return ch == '_' || ch == '$' || ch >= 0x80 ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func parseDetachedObject(ctx context.Context, parser *jsparse.Parser, span []byte) (Attributes, error) {
	wrapped := make([]byte, 0, len(span)+2)
	wrapped = append(wrapped, '(')
	wrapped = append(wrapped, span...)
	wrapped = append(wrapped, ')')

	tree, err := parser.ParseJS(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("parse assert clause: %w", err)
	}
	defer tree.Close()

	var object *sitter.Node
	jsparse.Walk(tree.RootNode(), func(node *sitter.Node) {
		if object == nil && node.Type() == "object" {
			object = node
		}
	})
	if object == nil {
		return Attributes{}, nil
	}
	return parseAttributeObject(object, wrapped), nil
}

func clauseKeyword(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.IsNamed() {
			continue
		}
		switch text := jsparse.Text(child, content); text {
		case clauseWith, clauseAssert:
			return text
		}
	}
	return clauseWith
}

func parseAttributeObject(object *sitter.Node, content []byte) Attributes {
	attrs := make(Attributes, 0, object.NamedChildCount())
	for i := 0; i < int(object.NamedChildCount()); i++ {
		pair := object.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		key, ok := attributeKey(pair.ChildByFieldName("key"), content)
		if !ok {
			continue
		}
		value, ok := literalValue(pair.ChildByFieldName("value"), content)
		if !ok {
			continue
		}
		attrs = append(attrs, Attribute{Key: key, Value: value})
	}
	return attrs
}

func attributeKey(node *sitter.Node, content []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "property_identifier", "identifier", "number":
		key := jsparse.Text(node, content)
		return key, key != ""
	case "string":
		return jsparse.StringLiteral(node, content)
	default:
		return "", false
	}
}

func literalValue(node *sitter.Node, content []byte) (Value, bool) {
	if node == nil {
		return Value{}, false
	}
	switch node.Type() {
	case "string":
		text, ok := jsparse.StringLiteral(node, content)
		if !ok {
			return Value{}, false
		}
		return StringValue(unescapeJSString(text)), true
	case "true":
		return BoolValue(true), true
	case "false":
		return BoolValue(false), true
	case "number":
		num, ok := parseNumber(jsparse.Text(node, content))
		if !ok {
			return Value{}, false
		}
		return NumberValue(num), true
	default:
		return Value{}, false
	}
}

func parseNumber(text string) (float64, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	if text == "" {
		return 0, false
	}
	if value, err := strconv.ParseFloat(text, 64); err == nil {
		return value, true
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0b") {
		if value, err := strconv.ParseInt(lower, 0, 64); err == nil {
			return float64(value), true
		}
	}
	return 0, false
}

func unescapeJSString(text string) string {
	if !strings.Contains(text, `\`) {
		return text
	}
	var out strings.Builder
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '\\' || i+1 == len(text) {
			out.WriteByte(ch)
			continue
		}
		i++
		switch text[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		default:
			out.WriteByte(text[i])
		}
	}
	return out.String()
}
