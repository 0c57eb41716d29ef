package strip

import (
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ben-ranford/stripgate/internal/jsparse"
	"github.com/ben-ranford/stripgate/internal/sourcemap"
)

// copied is a run of original bytes carried into the output unchanged.
type copied struct {
	inStart  int
	inEnd    int
	outStart int
}

func emit(root *sitter.Node, content []byte, statements []statement, drop []bool, fileID string) (string, *sourcemap.Map) {
	var out strings.Builder
	runs := make([]copied, 0, len(statements))
	cursor := 0

	for i, stmt := range statements {
		if !drop[i] {
			continue
		}
		start := max(int(stmt.node.StartByte()), cursor)
		end := consumeLineEnd(content, stmt.end)
		if start > cursor {
			runs = append(runs, copied{inStart: cursor, inEnd: start, outStart: out.Len()})
			out.Write(content[cursor:start])
		}
		cursor = max(cursor, end)
	}
	if cursor < len(content) {
		runs = append(runs, copied{inStart: cursor, inEnd: len(content), outStart: out.Len()})
		out.Write(content[cursor:])
	}

	code := out.String()
	return code, buildMap(root, content, code, runs, fileID)
}

// consumeLineEnd extends a removed range over trailing blanks and one line
// break so removed imports do not leave empty lines behind.
func consumeLineEnd(content []byte, end int) int {
	i := end
	for i < len(content) && (content[i] == ' ' || content[i] == '\t') {
		i++
	}
	if i < len(content) && content[i] == '\r' {
		i++
	}
	if i < len(content) && content[i] == '\n' {
		return i + 1
	}
	if i == len(content) {
		return i
	}
	return end
}

func buildMap(root *sitter.Node, content []byte, code string, runs []copied, fileID string) *sourcemap.Map {
	builder := sourcemap.NewBuilder(fileID)
	source := builder.AddSource(path.Base(fileID), string(content))
	lineStarts := computeLineStarts(code)

	jsparse.WalkLeaves(root, func(leaf *sitter.Node) {
		if leaf.StartByte() == leaf.EndByte() {
			return
		}
		outOffset, ok := translateOffset(runs, int(leaf.StartByte()))
		if !ok {
			return
		}
		genLine, genLineStart := lineOf(lineStarts, outOffset)
		point := leaf.StartPoint()
		start := int(leaf.StartByte())
		builder.Add(sourcemap.Mapping{
			GenLine:     genLine,
			GenColumn:   sourcemap.UTF16Len([]byte(code[genLineStart:outOffset])),
			SourceIndex: source,
			OrigLine:    int(point.Row),
			OrigColumn:  sourcemap.UTF16Len(content[start-int(point.Column) : start]),
		})
	})
	return builder.Build()
}

func translateOffset(runs []copied, offset int) (int, bool) {
	idx := sort.Search(len(runs), func(i int) bool {
		return runs[i].inEnd > offset
	})
	if idx == len(runs) || runs[idx].inStart > offset {
		return 0, false
	}
	run := runs[idx]
	return run.outStart + (offset - run.inStart), true
}

func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the zero-based line holding offset and that line's start.
func lineOf(lineStarts []int, offset int) (int, int) {
	line := sort.Search(len(lineStarts), func(i int) bool {
		return lineStarts[i] > offset
	}) - 1
	return line, lineStarts[line]
}
