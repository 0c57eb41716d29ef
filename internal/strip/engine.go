package strip

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ben-ranford/stripgate/internal/jsparse"
	"github.com/ben-ranford/stripgate/internal/registry"
	"github.com/ben-ranford/stripgate/internal/sourcemap"
)

var ErrNotReady = errors.New("strip engine is not ready")

// Predicate decides whether an import is stripped. It may block; every
// import of a file is decided on its own goroutine.
type Predicate func(ctx context.Context, decision *DecisionContext) (bool, error)

type Options struct {
	Predicate Predicate
	Registry  *registry.Registry
	Resolver  Resolver
	Config    BuildConfig
	Env       map[string]string
	Logger    *zap.Logger
	Parser    *jsparse.Parser
}

type Engine struct {
	predicate Predicate
	registry  *registry.Registry
	resolver  Resolver
	config    BuildConfig
	env       map[string]string
	logger    *zap.Logger
	parser    *jsparse.Parser
}

// Result is the outcome of one file transform. When Unchanged is set the
// caller keeps the original source and no other field is populated.
type Result struct {
	Unchanged       bool
	Code            string
	Map             *sourcemap.Map
	StrippedTargets []string
	StrippedNames   []string
}

func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := opts.Parser
	if parser == nil {
		parser = jsparse.New()
	}
	return &Engine{
		predicate: opts.Predicate,
		registry:  opts.Registry,
		resolver:  opts.Resolver,
		config:    opts.Config,
		env:       opts.Env,
		logger:    logger,
		parser:    parser,
	}
}

func (e *Engine) Transform(ctx context.Context, content []byte, fileID string) (Result, error) {
	if e == nil || e.predicate == nil || e.registry == nil {
		return Result{}, ErrNotReady
	}
	if e.registry.Sealed() {
		return Result{}, fmt.Errorf("%w: transform of %s after verification started", ErrNotReady, fileID)
	}

	tree, err := e.parser.Parse(ctx, fileID, content)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", fileID, err)
	}
	defer tree.Close()

	statements, err := collectStatements(ctx, e.parser, tree.RootNode(), content, fileID)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", fileID, err)
	}
	drop, err := e.decide(ctx, statements, fileID)
	if err != nil {
		return Result{}, fmt.Errorf("strip %s: %w", fileID, err)
	}

	stripped := make([]*ImportRecord, 0)
	for i, stmt := range statements {
		if drop[i] {
			stripped = append(stripped, stmt.record)
		}
	}
	if len(stripped) == 0 {
		return Result{Unchanged: true}, nil
	}

	code, sourceMap := emit(tree.RootNode(), content, statements, drop, fileID)

	result := Result{Code: code, Map: sourceMap}
	for _, record := range stripped {
		if err := e.registry.AddAll(record.BoundNames, fileID); err != nil {
			return Result{}, err
		}
		result.StrippedTargets = append(result.StrippedTargets, record.Target)
		result.StrippedNames = append(result.StrippedNames, record.BoundNames...)
		e.logger.Info("stripped conditional import",
			zap.String("file", fileID),
			zap.String("specifier", record.Target),
			zap.Strings("bindings", record.BoundNames))
	}
	return result, nil
}

// decide runs the predicate for every runtime import concurrently and
// returns, per statement index, whether it is stripped.
func (e *Engine) decide(ctx context.Context, statements []statement, fileID string) ([]bool, error) {
	drop := make([]bool, len(statements))
	cache := newResolveCache(e.resolver, fileID)

	group, groupCtx := errgroup.WithContext(ctx)
	for i, stmt := range statements {
		if stmt.kind != stmtImport {
			continue
		}
		decision := &DecisionContext{
			Target:     stmt.record.Target,
			Source:     fileID,
			Attributes: stmt.record.Attributes,
			Config:     e.config,
			Env:        e.env,
			cache:      cache,
		}
		group.Go(func() error {
			strip, err := e.invoke(groupCtx, decision)
			if err != nil {
				return fmt.Errorf("predicate for %q: %w", decision.Target, err)
			}
			drop[i] = strip
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return drop, nil
}

func (e *Engine) invoke(ctx context.Context, decision *DecisionContext) (strip bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("predicate panicked: %v", recovered)
		}
	}()
	return e.predicate(ctx, decision)
}
