package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf16"
)

const (
	Version         = 3
	dataURLPrefix   = "data:application/json;charset=utf-8;base64,"
	mappingURLToken = "//# sourceMappingURL="
)

// Map is a version 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Mapping ties a generated position to an original one. Lines and columns
// are zero-based; columns count UTF-16 code units.
type Mapping struct {
	GenLine     int
	GenColumn   int
	SourceIndex int
	OrigLine    int
	OrigColumn  int
}

type Builder struct {
	file     string
	sources  []string
	contents []string
	mappings []Mapping
}

// UTF16Len is the column width of text in UTF-16 code units.
func UTF16Len(text []byte) int {
	n := 0
	for _, r := range string(text) {
		n += utf16.RuneLen(r)
	}
	return n
}

func NewBuilder(file string) *Builder {
	return &Builder{file: file}
}

func (b *Builder) AddSource(name, content string) int {
	b.sources = append(b.sources, name)
	b.contents = append(b.contents, content)
	return len(b.sources) - 1
}

func (b *Builder) Add(mapping Mapping) {
	b.mappings = append(b.mappings, mapping)
}

func (b *Builder) Len() int {
	return len(b.mappings)
}

func (b *Builder) Build() *Map {
	mappings := append([]Mapping(nil), b.mappings...)
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].GenLine != mappings[j].GenLine {
			return mappings[i].GenLine < mappings[j].GenLine
		}
		return mappings[i].GenColumn < mappings[j].GenColumn
	})

	sources := append([]string{}, b.sources...)
	contents := append([]string(nil), b.contents...)
	return &Map{
		Version:        Version,
		File:           b.file,
		Sources:        sources,
		SourcesContent: contents,
		Names:          []string{},
		Mappings:       encodeMappings(mappings),
	}
}

func encodeMappings(mappings []Mapping) string {
	var out strings.Builder
	line := 0
	prevGenColumn := 0
	prevSource := 0
	prevOrigLine := 0
	prevOrigColumn := 0
	firstInLine := true

	for _, m := range mappings {
		for line < m.GenLine {
			out.WriteByte(';')
			line++
			prevGenColumn = 0
			firstInLine = true
		}
		if !firstInLine {
			out.WriteByte(',')
		}
		writeVLQ(&out, m.GenColumn-prevGenColumn)
		writeVLQ(&out, m.SourceIndex-prevSource)
		writeVLQ(&out, m.OrigLine-prevOrigLine)
		writeVLQ(&out, m.OrigColumn-prevOrigColumn)

		prevGenColumn = m.GenColumn
		prevSource = m.SourceIndex
		prevOrigLine = m.OrigLine
		prevOrigColumn = m.OrigColumn
		firstInLine = false
	}
	return out.String()
}

func (m *Map) JSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Map) DataURL() (string, error) {
	payload, err := m.JSON()
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// InlineComment renders the map as a trailing sourceMappingURL comment.
func (m *Map) InlineComment() (string, error) {
	url, err := m.DataURL()
	if err != nil {
		return "", err
	}
	return mappingURLToken + url, nil
}

// LinkComment points at an external map file.
func LinkComment(mapFileName string) string {
	return mappingURLToken + mapFileName
}
