package bundle

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"

	"github.com/ben-ranford/stripgate/internal/jsparse"
	"github.com/ben-ranford/stripgate/internal/registry"
	"github.com/ben-ranford/stripgate/internal/safeio"
	"github.com/ben-ranford/stripgate/internal/strip"
)

const (
	pluginName    = "stripgate"
	fileNamespace = "file"
	loadFilter    = `\.[cm]?[jt]sx?$`
)

// StrippedFile lists what the strip phase removed from one source file.
type StrippedFile struct {
	Path       string
	Specifiers []string
	Names      []string
}

type stripPlugin struct {
	ctx       context.Context
	root      string
	predicate strip.Predicate
	registry  *registry.Registry
	config    strip.BuildConfig
	env       map[string]string
	logger    *zap.Logger
	parser    *jsparse.Parser

	ready atomic.Bool

	mu    sync.Mutex
	files []StrippedFile
}

func (p *stripPlugin) plugin() api.Plugin {
	return api.Plugin{Name: pluginName, Setup: p.setup}
}

func (p *stripPlugin) setup(build api.PluginBuild) {
	engine := strip.NewEngine(strip.Options{
		Predicate: p.predicate,
		Registry:  p.registry,
		Resolver:  p.resolver(build),
		Config:    p.config,
		Env:       p.env,
		Logger:    p.logger,
		Parser:    p.parser,
	})

	build.OnStart(func() (api.OnStartResult, error) {
		p.registry.Reset()
		p.mu.Lock()
		p.files = nil
		p.mu.Unlock()
		p.ready.Store(true)
		return api.OnStartResult{}, nil
	})

	build.OnLoad(api.OnLoadOptions{Filter: loadFilter, Namespace: fileNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		return p.load(engine, args)
	})
}

func (p *stripPlugin) load(engine *strip.Engine, args api.OnLoadArgs) (api.OnLoadResult, error) {
	if !p.ready.Load() {
		return api.OnLoadResult{}, fmt.Errorf("%w: %s loaded before build start", strip.ErrNotReady, args.Path)
	}
	fileID, err := safeio.RelID(p.root, args.Path)
	if err != nil {
		// Outside the project root: esbuild loads it unchanged.
		return api.OnLoadResult{}, nil
	}
	content, err := safeio.ReadFileUnder(p.root, args.Path)
	if err != nil {
		return api.OnLoadResult{}, fmt.Errorf("read %s: %w", fileID, err)
	}

	result, err := engine.Transform(p.ctx, content, fileID)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	if result.Unchanged {
		return api.OnLoadResult{}, nil
	}

	comment, err := result.Map.InlineComment()
	if err != nil {
		return api.OnLoadResult{}, fmt.Errorf("encode source map for %s: %w", fileID, err)
	}
	code := result.Code
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	code += comment + "\n"

	p.mu.Lock()
	p.files = append(p.files, StrippedFile{Path: fileID, Specifiers: result.StrippedTargets, Names: result.StrippedNames})
	p.mu.Unlock()

	return api.OnLoadResult{
		PluginName: pluginName,
		Contents:   &code,
		ResolveDir: filepath.Dir(args.Path),
		Loader:     loaderFor(args.Path),
	}, nil
}

// resolver asks esbuild to resolve a specifier as a static import from the
// importing file. Anything unresolvable reports ok=false.
func (p *stripPlugin) resolver(build api.PluginBuild) strip.ResolverFunc {
	return func(ctx context.Context, specifier, importer string) (string, bool, error) {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		importerPath := filepath.Join(p.root, filepath.FromSlash(importer))
		resolved := build.Resolve(specifier, api.ResolveOptions{
			PluginName: pluginName,
			Importer:   importerPath,
			Namespace:  fileNamespace,
			ResolveDir: filepath.Dir(importerPath),
			Kind:       api.ResolveJSImportStatement,
		})
		if len(resolved.Errors) > 0 || resolved.Path == "" {
			return "", false, nil
		}
		if resolved.External || resolved.Namespace != fileNamespace {
			return resolved.Path, true, nil
		}
		id, err := safeio.RelID(p.root, resolved.Path)
		if err != nil {
			return filepath.ToSlash(resolved.Path), true, nil
		}
		return id, true, nil
	}
}

func (p *stripPlugin) strippedFiles() []StrippedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StrippedFile(nil), p.files...)
}

func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}
