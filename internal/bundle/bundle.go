// Package bundle runs an esbuild build with the strip phase as a plugin and
// verifies the compiled chunks once esbuild is done.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"

	"github.com/ben-ranford/stripgate/internal/config"
	"github.com/ben-ranford/stripgate/internal/jsparse"
	"github.com/ben-ranford/stripgate/internal/registry"
	"github.com/ben-ranford/stripgate/internal/rules"
	"github.com/ben-ranford/stripgate/internal/safeio"
	"github.com/ben-ranford/stripgate/internal/strip"
	"github.com/ben-ranford/stripgate/internal/verify"
)

const nodeEnvDefine = "process.env.NODE_ENV"

var ErrNoEntryPoints = errors.New("no entry points configured")

type Options struct {
	Root   string
	Values config.Values
	// Predicate overrides the rules in Values when set.
	Predicate strip.Predicate
	Registry  *registry.Registry
	Logger    *zap.Logger
	Parser    *jsparse.Parser
	// Write puts outputs on disk once the build and verification succeed.
	Write bool
}

type Result struct {
	Chunks      []verify.Chunk
	Stripped    []StrippedFile
	Written     []string
	Warnings    []string
	StripActive bool
}

// Build bundles the configured entry points. A failed verification returns
// the chunks together with a *verify.Error; nothing is written in that case.
func Build(ctx context.Context, opts Options) (Result, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return Result{}, fmt.Errorf("resolve root path: %w", err)
	}
	values := opts.Values
	if err := values.Validate(); err != nil {
		return Result{}, err
	}
	if len(values.EntryPoints) == 0 {
		return Result{}, ErrNoEntryPoints
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := opts.Parser
	if parser == nil {
		parser = jsparse.New()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New()
	}

	buildOptions := esbuildOptions(root, values)
	var plugin *stripPlugin
	if values.StripActive() {
		predicate := opts.Predicate
		if predicate == nil {
			predicate, err = rules.Compile(values.Rules)
			if err != nil {
				return Result{}, err
			}
		}
		plugin = &stripPlugin{
			ctx:       ctx,
			root:      root,
			predicate: predicate,
			registry:  reg,
			config:    strip.BuildConfig{Mode: values.Mode, Root: root, OutDir: values.OutDir},
			env:       values.Env,
			logger:    logger,
			parser:    parser,
		}
		buildOptions.Plugins = []api.Plugin{plugin.plugin()}
	}

	built, err := run(ctx, buildOptions)
	if err != nil {
		return Result{}, err
	}

	meta, err := parseMetafile(built.Metafile)
	if err != nil {
		return Result{}, err
	}
	chunks, err := collectChunks(root, built.OutputFiles, meta)
	if err != nil {
		return Result{}, err
	}
	result := Result{
		Chunks:      chunks,
		Warnings:    formatMessages(built.Warnings),
		StripActive: plugin != nil,
	}
	logger.Debug("esbuild finished", zap.Int("outputs", len(built.OutputFiles)), zap.Int("chunks", len(chunks)))

	if plugin != nil {
		result.Stripped = plugin.strippedFiles()
		reg.Seal()
		verifier := verify.New(verify.Options{Root: root, Parser: parser, Logger: logger})
		if err := verifier.Check(ctx, chunks, reg); err != nil {
			return result, err
		}
	}

	if opts.Write {
		written, err := writeOutputs(root, built.OutputFiles, values)
		if err != nil {
			return result, err
		}
		result.Written = written
	}
	return result, nil
}

func esbuildOptions(root string, values config.Values) api.BuildOptions {
	options := api.BuildOptions{
		EntryPoints:   append([]string(nil), values.EntryPoints...),
		AbsWorkingDir: root,
		Outdir:        filepath.Join(root, filepath.FromSlash(values.OutDir)),
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		LogLevel:      api.LogLevelSilent,
		Format:        formatFor(values.Format),
		Platform:      platformFor(values.Platform),
		MinifySyntax:  values.Production() || values.Minify,
		Define:        defineFor(values),
	}
	if values.Minify {
		options.MinifyWhitespace = true
		options.MinifyIdentifiers = true
	}
	if values.Format == "esm" && len(values.EntryPoints) > 1 {
		options.Splitting = true
	}
	switch {
	case values.Sourcemap:
		options.Sourcemap = api.SourceMapLinked
	case values.MapsForVerifier():
		// Maps only the verifier reads: no link comment in the chunk.
		options.Sourcemap = api.SourceMapExternal
	}
	return options
}

// run drives one esbuild rebuild and cancels it when ctx is done.
func run(ctx context.Context, options api.BuildOptions) (api.BuildResult, error) {
	buildCtx, ctxErr := api.Context(options)
	if ctxErr != nil {
		return api.BuildResult{}, fmt.Errorf("esbuild setup failed: %s", strings.Join(formatMessages(ctxErr.Errors), "; "))
	}
	defer buildCtx.Dispose()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			buildCtx.Cancel()
		case <-done:
		}
	}()

	built := buildCtx.Rebuild()
	if err := ctx.Err(); err != nil {
		return api.BuildResult{}, err
	}
	if len(built.Errors) > 0 {
		return api.BuildResult{}, fmt.Errorf("build failed:\n%s", strings.Join(formatMessages(built.Errors), "\n"))
	}
	return built, nil
}

func writeOutputs(root string, outputs []api.OutputFile, values config.Values) ([]string, error) {
	written := make([]string, 0, len(outputs))
	for _, output := range outputs {
		if !values.Sourcemap && strings.HasSuffix(output.Path, ".map") {
			continue
		}
		if err := safeio.WriteFileUnder(root, output.Path, output.Contents); err != nil {
			return written, fmt.Errorf("write %s: %w", output.Path, err)
		}
		id, err := safeio.RelID(root, output.Path)
		if err != nil {
			return written, err
		}
		written = append(written, id)
	}
	sort.Strings(written)
	return written, nil
}

func defineFor(values config.Values) map[string]string {
	define := make(map[string]string, len(values.Define)+1)
	for key, value := range values.Define {
		define[key] = value
	}
	if _, ok := define[nodeEnvDefine]; !ok {
		define[nodeEnvDefine] = strconv.Quote(values.Mode)
	}
	return define
}

func formatFor(format string) api.Format {
	switch format {
	case "cjs":
		return api.FormatCommonJS
	case "iife":
		return api.FormatIIFE
	default:
		return api.FormatESModule
	}
}

func platformFor(platform string) api.Platform {
	switch platform {
	case "node":
		return api.PlatformNode
	case "neutral":
		return api.PlatformNeutral
	default:
		return api.PlatformBrowser
	}
}

func formatMessages(messages []api.Message) []string {
	out := make([]string, 0, len(messages))
	for _, message := range messages {
		if message.Location == nil {
			out = append(out, message.Text)
			continue
		}
		loc := message.Location
		out = append(out, fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, message.Text))
	}
	return out
}
