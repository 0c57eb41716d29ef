package config

import (
	"fmt"
	"strings"
)

const (
	ModeProduction  = "production"
	ModeDevelopment = "development"

	DefaultMode           = ModeProduction
	DefaultOutDir         = "dist"
	DefaultFormat         = "esm"
	DefaultPlatform       = "browser"
	DefaultForceSourcemap = true
	DefaultApplyInDev     = false
)

var validFormats = map[string]struct{}{
	"esm":  {},
	"cjs":  {},
	"iife": {},
}

var validPlatforms = map[string]struct{}{
	"browser": {},
	"node":    {},
	"neutral": {},
}

// RuleSpec is one strip rule as written in a config file. Every set field
// must match for the rule to match.
type RuleSpec struct {
	Attributes map[string]any    `yaml:"attributes" json:"attributes" toml:"attributes"`
	Specifier  string            `yaml:"specifier" json:"specifier" toml:"specifier"`
	Resolved   string            `yaml:"resolved" json:"resolved" toml:"resolved"`
	Modes      []string          `yaml:"modes" json:"modes" toml:"modes"`
	Env        map[string]string `yaml:"env" json:"env" toml:"env"`
}

type Values struct {
	EntryPoints    []string
	OutDir         string
	Mode           string
	Format         string
	Platform       string
	Sourcemap      bool
	ForceSourcemap bool
	ApplyInDev     bool
	Minify         bool
	Define         map[string]string
	Env            map[string]string
	Rules          []RuleSpec
}

type Overrides struct {
	EntryPoints    []string
	OutDir         *string
	Mode           *string
	Format         *string
	Platform       *string
	Sourcemap      *bool
	ForceSourcemap *bool
	ApplyInDev     *bool
	Minify         *bool
	Define         map[string]string
	Env            map[string]string
	Rules          []RuleSpec
}

func Defaults() Values {
	return Values{
		OutDir:         DefaultOutDir,
		Mode:           DefaultMode,
		Format:         DefaultFormat,
		Platform:       DefaultPlatform,
		ForceSourcemap: DefaultForceSourcemap,
		ApplyInDev:     DefaultApplyInDev,
	}
}

// Production reports whether the mode is production-style.
func (v Values) Production() bool {
	return v.Mode == ModeProduction
}

// StripActive reports whether conditional stripping and verification run
// for this build.
func (v Values) StripActive() bool {
	return v.Production() || v.ApplyInDev
}

// MapsForVerifier reports whether source maps are generated, either because
// the user asked for them or because verification forces them on.
func (v Values) MapsForVerifier() bool {
	return v.Sourcemap || (v.ForceSourcemap && v.StripActive())
}

func (v *Values) Validate() error {
	if strings.TrimSpace(v.Mode) == "" {
		return fmt.Errorf("mode must not be empty")
	}
	if strings.TrimSpace(v.OutDir) == "" {
		return fmt.Errorf("outdir must not be empty")
	}
	if _, ok := validFormats[v.Format]; !ok {
		return fmt.Errorf("invalid format %q: expected one of esm, cjs, iife", v.Format)
	}
	if _, ok := validPlatforms[v.Platform]; !ok {
		return fmt.Errorf("invalid platform %q: expected one of browser, node, neutral", v.Platform)
	}
	for i, entry := range v.EntryPoints {
		if strings.TrimSpace(entry) == "" {
			return fmt.Errorf("entry_points[%d] must not be empty", i)
		}
	}
	return nil
}

func (o Overrides) Apply(base Values) Values {
	out := base
	if len(o.EntryPoints) > 0 {
		out.EntryPoints = append([]string{}, o.EntryPoints...)
	}
	if o.OutDir != nil {
		out.OutDir = *o.OutDir
	}
	if o.Mode != nil {
		out.Mode = *o.Mode
	}
	if o.Format != nil {
		out.Format = *o.Format
	}
	if o.Platform != nil {
		out.Platform = *o.Platform
	}
	if o.Sourcemap != nil {
		out.Sourcemap = *o.Sourcemap
	}
	if o.ForceSourcemap != nil {
		out.ForceSourcemap = *o.ForceSourcemap
	}
	if o.ApplyInDev != nil {
		out.ApplyInDev = *o.ApplyInDev
	}
	if o.Minify != nil {
		out.Minify = *o.Minify
	}
	out.Define = mergeStringMaps(out.Define, o.Define)
	out.Env = mergeStringMaps(out.Env, o.Env)
	if len(o.Rules) > 0 {
		out.Rules = append(append([]RuleSpec{}, out.Rules...), o.Rules...)
	}
	return out
}

func mergeStringMaps(base, higher map[string]string) map[string]string {
	if len(higher) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(higher))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range higher {
		merged[key] = value
	}
	return merged
}
