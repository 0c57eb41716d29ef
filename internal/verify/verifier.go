package verify

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"

	gosourcemap "github.com/go-sourcemap/sourcemap"
	"go.uber.org/zap"

	"github.com/ben-ranford/stripgate/internal/jsparse"
	"github.com/ben-ranford/stripgate/internal/registry"
)

type ChunkKind string

const (
	ChunkCode  ChunkKind = "chunk"
	ChunkAsset ChunkKind = "asset"
)

// Chunk is one compiled output file.
type Chunk struct {
	FileName    string
	Kind        ChunkKind
	Code        string
	Modules     map[string]struct{}
	Map         []byte
	MapFileName string
}

func (c Chunk) HasModule(id string) bool {
	_, ok := c.Modules[id]
	return ok
}

type Options struct {
	// Root is the project root. Absolute origins and mapped sources are
	// shown relative to it.
	Root   string
	Parser *jsparse.Parser
	Logger *zap.Logger
}

type Verifier struct {
	root   string
	parser *jsparse.Parser
	logger *zap.Logger
}

// Error aggregates every dangling reference found in one verification pass.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, "\n")
}

func New(opts Options) *Verifier {
	parser := opts.Parser
	if parser == nil {
		parser = jsparse.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{root: opts.Root, parser: parser, logger: logger}
}

// Check runs Verify and folds a non-empty message list into one *Error.
func (v *Verifier) Check(ctx context.Context, chunks []Chunk, reg *registry.Registry) error {
	messages, err := v.Verify(ctx, chunks, reg)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	return &Error{Messages: messages}
}

func (v *Verifier) Verify(ctx context.Context, chunks []Chunk, reg *registry.Registry) ([]string, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, nil
	}

	messages := make([]string, 0)
	for _, chunk := range chunks {
		if chunk.Kind != ChunkCode {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunkMessages, err := v.verifyChunk(ctx, chunk, reg)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", chunk.FileName, err)
		}
		messages = append(messages, chunkMessages...)
	}
	return messages, nil
}

func (v *Verifier) verifyChunk(ctx context.Context, chunk Chunk, reg *registry.Registry) ([]string, error) {
	refs, err := UndeclaredReferences(ctx, v.parser, []byte(chunk.Code))
	if err != nil {
		return nil, err
	}

	index := &mapIndex{chunk: chunk}
	messages := make([]string, 0)
	for _, ref := range refs {
		origins, ok := reg.Origins(ref.Name)
		if !ok {
			continue
		}
		contributing := make([]string, 0, len(origins))
		for _, origin := range origins {
			if chunk.HasModule(origin) {
				contributing = append(contributing, origin)
			}
		}
		if len(contributing) == 0 {
			continue
		}

		shown := v.localize(index, ref)
		if shown == nil {
			shown = v.displayOrigins(contributing)
		}
		v.logger.Debug("dangling stripped binding",
			zap.String("chunk", chunk.FileName),
			zap.String("name", ref.Name),
			zap.Int("line", ref.Line),
			zap.Int("column", ref.Column))
		messages = append(messages, fmt.Sprintf("Stripped conditional import binding '%s' still in output (%s)", ref.Name, strings.Join(shown, ", ")))
	}
	return messages, nil
}

func (v *Verifier) localize(index *mapIndex, ref Reference) []string {
	consumer := index.consumer()
	if consumer == nil {
		return nil
	}
	source, _, _, _, ok := consumer.Source(ref.Line, ref.Column)
	if !ok || source == "" {
		return nil
	}
	return []string{v.displayMapped(index.chunk, source)}
}

func (v *Verifier) displayOrigins(origins []string) []string {
	seen := make(map[string]struct{}, len(origins))
	shown := make([]string, 0, len(origins))
	for _, origin := range origins {
		display := v.relativeToRoot(origin)
		if _, ok := seen[display]; ok {
			continue
		}
		seen[display] = struct{}{}
		shown = append(shown, display)
	}
	sort.Strings(shown)
	return shown
}

func (v *Verifier) relativeToRoot(id string) string {
	if v.root == "" || !filepath.IsAbs(id) {
		return id
	}
	rel, err := filepath.Rel(v.root, id)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return id
	}
	return filepath.ToSlash(rel)
}

// displayMapped turns a source-map source entry, which is relative to the
// map file, into a root-relative path.
func (v *Verifier) displayMapped(chunk Chunk, source string) string {
	if parsed, err := url.Parse(source); err == nil && parsed.Scheme == "file" {
		return v.relativeToRoot(filepath.FromSlash(parsed.Path))
	}
	if filepath.IsAbs(source) {
		return v.relativeToRoot(source)
	}
	mapFile := chunk.MapFileName
	if mapFile == "" {
		mapFile = chunk.FileName
	}
	joined := path.Join(path.Dir(filepath.ToSlash(mapFile)), source)
	return v.relativeToRoot(filepath.FromSlash(joined))
}

// mapIndex parses a chunk's source map at most once.
type mapIndex struct {
	chunk  Chunk
	parsed bool
	index  *gosourcemap.Consumer
}

func (m *mapIndex) consumer() *gosourcemap.Consumer {
	if m.parsed {
		return m.index
	}
	m.parsed = true
	if len(m.chunk.Map) == 0 {
		return nil
	}
	consumer, err := gosourcemap.Parse("", m.chunk.Map)
	if err != nil {
		return nil
	}
	m.index = consumer
	return m.index
}
