package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ben-ranford/stripgate/internal/bundle"
	"github.com/ben-ranford/stripgate/internal/jsparse"
	"github.com/ben-ranford/stripgate/internal/registry"
	"github.com/ben-ranford/stripgate/internal/report"
	"github.com/ben-ranford/stripgate/internal/rules"
	"github.com/ben-ranford/stripgate/internal/safeio"
	"github.com/ben-ranford/stripgate/internal/strip"
	"github.com/ben-ranford/stripgate/internal/verify"
)

var (
	ErrUnknownMode        = errors.New("unknown mode")
	ErrVerificationFailed = errors.New("verification failed")
	ErrUnsupportedFile    = errors.New("unsupported source file")
)

// BuildFunc runs one bundle build.
type BuildFunc func(ctx context.Context, opts bundle.Options) (bundle.Result, error)

type App struct {
	Build     BuildFunc
	Formatter report.Formatter
	Parser    *jsparse.Parser
	ErrOut    io.Writer
	Now       func() time.Time
}

func New(errOut io.Writer) *App {
	return &App{
		Build:     bundle.Build,
		Formatter: report.NewFormatter(),
		Parser:    jsparse.New(),
		ErrOut:    errOut,
		Now:       time.Now,
	}
}

func (a *App) Execute(ctx context.Context, req Request) (string, error) {
	logger := a.newLogger(req.Verbose)
	defer func() { _ = logger.Sync() }()

	switch req.Mode {
	case ModeBuild:
		return a.executeBuild(ctx, req, logger)
	case ModeStrip:
		return a.executeStrip(ctx, req, logger)
	default:
		return "", ErrUnknownMode
	}
}

func (a *App) executeBuild(ctx context.Context, req Request, logger *zap.Logger) (string, error) {
	logger.Debug("starting build",
		zap.String("root", req.Root),
		zap.String("mode", req.Values.Mode),
		zap.Strings("config_sources", req.Sources))

	result, err := a.Build(ctx, bundle.Options{
		Root:   req.Root,
		Values: req.Values,
		Logger: logger,
		Parser: a.Parser,
		Write:  req.Build.Write,
	})
	var verr *verify.Error
	if err != nil && !errors.As(err, &verr) {
		return "", err
	}

	reportData := a.buildReport(req, result)
	if verr != nil {
		reportData.Errors = append([]string(nil), verr.Messages...)
	}
	output, formatErr := a.Formatter.Format(reportData, req.Build.Format)
	if formatErr != nil {
		return "", formatErr
	}
	if verr != nil {
		return output, fmt.Errorf("%w:\n%s", ErrVerificationFailed, verr.Error())
	}
	return output, nil
}

func (a *App) buildReport(req Request, result bundle.Result) report.Report {
	root, err := filepath.Abs(req.Root)
	if err != nil {
		root = req.Root
	}
	reportData := report.Report{
		SchemaVersion: report.SchemaVersion,
		GeneratedAt:   a.now(),
		Root:          root,
		Mode:          req.Values.Mode,
		StripActive:   result.StripActive,
		Written:       result.Written,
		Warnings:      result.Warnings,
	}

	files := append([]bundle.StrippedFile(nil), result.Stripped...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	for _, file := range files {
		reportData.Files = append(reportData.Files, report.FileResult{
			Path:               file.Path,
			StrippedSpecifiers: file.Specifiers,
			StrippedNames:      file.Names,
		})
	}
	for _, chunk := range result.Chunks {
		modules := make([]string, 0, len(chunk.Modules))
		for module := range chunk.Modules {
			modules = append(modules, module)
		}
		sort.Strings(modules)
		reportData.Chunks = append(reportData.Chunks, report.ChunkResult{
			File:    chunk.FileName,
			Kind:    string(chunk.Kind),
			Modules: modules,
		})
	}
	return reportData
}

// executeStrip runs the strip phase on one file and returns the rewritten
// source. Without a bundler there is no resolution service, so resolved-path
// rules see the raw specifier.
func (a *App) executeStrip(ctx context.Context, req Request, logger *zap.Logger) (string, error) {
	target := req.Strip.File
	if !filepath.IsAbs(target) {
		target = filepath.Join(req.Root, target)
	}
	if !jsparse.IsSupportedFile(target) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, req.Strip.File)
	}
	fileID, err := safeio.RelID(req.Root, target)
	if err != nil {
		return "", err
	}
	content, err := safeio.ReadFileUnder(req.Root, target)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", fileID, err)
	}
	if !req.Values.StripActive() {
		logger.Debug("strip phase inactive for mode", zap.String("mode", req.Values.Mode))
		return string(content), nil
	}

	predicate, err := rules.Compile(req.Values.Rules)
	if err != nil {
		return "", err
	}
	engine := strip.NewEngine(strip.Options{
		Predicate: predicate,
		Registry:  registry.New(),
		Config:    strip.BuildConfig{Mode: req.Values.Mode, Root: req.Root, OutDir: req.Values.OutDir},
		Env:       req.Values.Env,
		Logger:    logger,
		Parser:    a.Parser,
	})
	result, err := engine.Transform(ctx, content, fileID)
	if err != nil {
		return "", err
	}
	if result.Unchanged {
		return string(content), nil
	}

	code := result.Code
	if req.Strip.InlineMap {
		comment, err := result.Map.InlineComment()
		if err != nil {
			return "", err
		}
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		code += comment + "\n"
	}
	return code, nil
}

// newLogger is silent unless verbose output was requested.
func (a *App) newLogger(verbose bool) *zap.Logger {
	if !verbose || a.ErrOut == nil {
		return zap.NewNop()
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(a.ErrOut), zapcore.DebugLevel)
	return zap.New(core)
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}
