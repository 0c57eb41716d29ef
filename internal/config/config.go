package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ben-ranford/stripgate/internal/safeio"
)

const (
	readConfigFileErrFmt = "read config file %s: %w"
	parseConfigErrFmt    = "parse config file %s: %w"
	defaultSource        = "defaults"
)

var discoveredNames = []string{".stripgate.yml", ".stripgate.yaml", "stripgate.json", "stripgate.toml"}

type LoadResult struct {
	Overrides  Overrides
	Resolved   Values
	ConfigPath string
	Sources    []string
}

func Load(rootPath, explicitPath string) (LoadResult, error) {
	rootAbs, err := filepath.Abs(rootPath)
	if err != nil {
		return LoadResult{}, fmt.Errorf("resolve root path: %w", err)
	}
	explicitProvided := strings.TrimSpace(explicitPath) != ""

	configPath, found, err := resolveConfigPath(rootAbs, strings.TrimSpace(explicitPath))
	if err != nil {
		return LoadResult{}, err
	}
	if !found {
		return LoadResult{Resolved: Defaults(), Sources: []string{defaultSource}}, nil
	}

	resolver := newChainResolver(rootAbs)
	merged, err := resolver.resolveFile(configPath, explicitProvided)
	if err != nil {
		return LoadResult{}, err
	}

	resolved := merged.overrides.Apply(Defaults())
	if err := resolved.Validate(); err != nil {
		return LoadResult{}, fmt.Errorf(parseConfigErrFmt, configPath, err)
	}

	return LoadResult{
		Overrides:  merged.overrides,
		Resolved:   resolved,
		ConfigPath: configPath,
		Sources:    merged.sourcesHighToLow(),
	}, nil
}

func resolveConfigPath(rootPath, explicitPath string) (string, bool, error) {
	if explicitPath != "" {
		candidate := explicitPath
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(rootPath, candidate)
		}
		candidate = filepath.Clean(candidate)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file not found: %s", candidate)
			}
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
		return candidate, true, nil
	}

	for _, name := range discoveredNames {
		candidate := filepath.Join(rootPath, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !os.IsNotExist(err) {
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
	}
	return "", false, nil
}

type rawConfig struct {
	Extends        []string          `yaml:"extends" json:"extends" toml:"extends"`
	EntryPoints    []string          `yaml:"entry_points" json:"entry_points" toml:"entry_points"`
	OutDir         *string           `yaml:"outdir" json:"outdir" toml:"outdir"`
	Mode           *string           `yaml:"mode" json:"mode" toml:"mode"`
	Format         *string           `yaml:"format" json:"format" toml:"format"`
	Platform       *string           `yaml:"platform" json:"platform" toml:"platform"`
	Sourcemap      *bool             `yaml:"sourcemap" json:"sourcemap" toml:"sourcemap"`
	ForceSourcemap *bool             `yaml:"force_sourcemap" json:"force_sourcemap" toml:"force_sourcemap"`
	ApplyInDev     *bool             `yaml:"apply_in_dev" json:"apply_in_dev" toml:"apply_in_dev"`
	Minify         *bool             `yaml:"minify" json:"minify" toml:"minify"`
	Define         map[string]string `yaml:"define" json:"define" toml:"define"`
	Env            map[string]string `yaml:"env" json:"env" toml:"env"`
	Rules          []RuleSpec        `yaml:"rules" json:"rules" toml:"rules"`
}

func (c rawConfig) toOverrides() Overrides {
	return Overrides{
		EntryPoints:    c.EntryPoints,
		OutDir:         c.OutDir,
		Mode:           c.Mode,
		Format:         c.Format,
		Platform:       c.Platform,
		Sourcemap:      c.Sourcemap,
		ForceSourcemap: c.ForceSourcemap,
		ApplyInDev:     c.ApplyInDev,
		Minify:         c.Minify,
		Define:         c.Define,
		Env:            c.Env,
		Rules:          c.Rules,
	}
}

func parseConfig(path string, data []byte) (rawConfig, error) {
	var cfg rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid JSON config: %w", err)
		}
		if decoder.More() {
			return rawConfig{}, fmt.Errorf("invalid JSON config: multiple JSON values")
		}
	case ".toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strictErr *toml.StrictMissingError
			if errors.As(err, &strictErr) {
				return rawConfig{}, fmt.Errorf("invalid TOML config: unknown field(s): %s", strictKeys(strictErr))
			}
			return rawConfig{}, fmt.Errorf("invalid TOML config: %w", err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return rawConfig{}, fmt.Errorf("invalid YAML config: %w", err)
		}
	}
	return cfg, nil
}

func strictKeys(strictErr *toml.StrictMissingError) string {
	keys := make([]string, 0, len(strictErr.Errors))
	for i := range strictErr.Errors {
		keys = append(keys, strings.Join(strictErr.Errors[i].Key(), "."))
	}
	return strings.Join(keys, ", ")
}

func mergeOverrides(base, higher Overrides) Overrides {
	merged := base
	if len(higher.EntryPoints) > 0 {
		merged.EntryPoints = higher.EntryPoints
	}
	if higher.OutDir != nil {
		merged.OutDir = higher.OutDir
	}
	if higher.Mode != nil {
		merged.Mode = higher.Mode
	}
	if higher.Format != nil {
		merged.Format = higher.Format
	}
	if higher.Platform != nil {
		merged.Platform = higher.Platform
	}
	if higher.Sourcemap != nil {
		merged.Sourcemap = higher.Sourcemap
	}
	if higher.ForceSourcemap != nil {
		merged.ForceSourcemap = higher.ForceSourcemap
	}
	if higher.ApplyInDev != nil {
		merged.ApplyInDev = higher.ApplyInDev
	}
	if higher.Minify != nil {
		merged.Minify = higher.Minify
	}
	merged.Define = mergeStringMaps(base.Define, higher.Define)
	merged.Env = mergeStringMaps(base.Env, higher.Env)
	merged.Rules = append(append([]RuleSpec{}, base.Rules...), higher.Rules...)
	return merged
}

// chainResolver follows `extends` references depth first, base files before
// the file that extends them.
type chainResolver struct {
	rootPath string
	stack    []string
}

type chainResult struct {
	overrides         Overrides
	appliedSourcesLow []string
}

func newChainResolver(rootPath string) *chainResolver {
	return &chainResolver{rootPath: rootPath, stack: make([]string, 0, 4)}
}

func (r *chainResult) sourcesHighToLow() []string {
	sources := make([]string, 0, len(r.appliedSourcesLow)+1)
	seen := map[string]struct{}{defaultSource: {}}
	for i := len(r.appliedSourcesLow) - 1; i >= 0; i-- {
		source := r.appliedSourcesLow[i]
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return append(sources, defaultSource)
}

func (r *chainResolver) resolveFile(path string, explicitProvided bool) (chainResult, error) {
	canonical, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return chainResult{}, fmt.Errorf("resolve config path: %w", err)
	}
	if err := r.push(canonical); err != nil {
		return chainResult{}, err
	}
	defer r.pop()

	data, err := r.read(canonical, explicitProvided)
	if err != nil {
		return chainResult{}, fmt.Errorf(readConfigFileErrFmt, canonical, err)
	}
	cfg, err := parseConfig(canonical, data)
	if err != nil {
		return chainResult{}, fmt.Errorf(parseConfigErrFmt, canonical, err)
	}

	merged := Overrides{}
	sources := make([]string, 0, len(cfg.Extends)+1)
	for idx, ref := range cfg.Extends {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" {
			return chainResult{}, fmt.Errorf("parse config file %s: extends[%d] must not be empty", canonical, idx)
		}
		if !filepath.IsAbs(trimmed) {
			trimmed = filepath.Join(filepath.Dir(canonical), trimmed)
		}
		base, err := r.resolveFile(trimmed, true)
		if err != nil {
			return chainResult{}, err
		}
		merged = mergeOverrides(merged, base.overrides)
		sources = append(sources, base.appliedSourcesLow...)
	}
	merged = mergeOverrides(merged, cfg.toOverrides())
	sources = append(sources, canonical)
	return chainResult{overrides: merged, appliedSourcesLow: sources}, nil
}

func (r *chainResolver) read(path string, explicitProvided bool) ([]byte, error) {
	if !explicitProvided || safeio.IsUnder(r.rootPath, path) {
		return safeio.ReadFileUnder(r.rootPath, path)
	}
	return safeio.ReadFile(path)
}

func (r *chainResolver) push(path string) error {
	for _, current := range r.stack {
		if current == path {
			chain := append(append([]string{}, r.stack...), path)
			return fmt.Errorf("config extends cycle detected: %s", strings.Join(chain, " -> "))
		}
	}
	r.stack = append(r.stack, path)
	return nil
}

func (r *chainResolver) pop() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}
