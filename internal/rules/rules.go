// Package rules turns the declarative strip rules of a config file into a
// strip.Predicate.
package rules

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ben-ranford/stripgate/internal/config"
	"github.com/ben-ranford/stripgate/internal/strip"
)

type attributeMatcher struct {
	key   string
	value strip.Value
}

type rule struct {
	index      int
	attributes []attributeMatcher
	specifier  string
	resolved   string
	modes      map[string]struct{}
	env        map[string]string
}

// Compile validates specs and returns a predicate that strips an import when
// any rule matches it. A nil or empty spec list never strips.
func Compile(specs []config.RuleSpec) (strip.Predicate, error) {
	compiled := make([]rule, 0, len(specs))
	for i, spec := range specs {
		r, err := compileRule(i, spec)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}
	return func(ctx context.Context, decision *strip.DecisionContext) (bool, error) {
		for _, r := range compiled {
			ok, err := r.match(ctx, decision)
			if err != nil {
				return false, fmt.Errorf("rules[%d]: %w", r.index, err)
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func compileRule(index int, spec config.RuleSpec) (rule, error) {
	r := rule{
		index:     index,
		specifier: strings.TrimSpace(spec.Specifier),
		resolved:  strings.TrimSpace(spec.Resolved),
		env:       spec.Env,
	}
	if len(spec.Attributes) == 0 && r.specifier == "" && r.resolved == "" && len(spec.Modes) == 0 && len(spec.Env) == 0 {
		return rule{}, fmt.Errorf("rules[%d]: rule has no conditions", index)
	}

	keys := make([]string, 0, len(spec.Attributes))
	for key := range spec.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, err := toValue(spec.Attributes[key])
		if err != nil {
			return rule{}, fmt.Errorf("rules[%d]: attribute %q: %w", index, key, err)
		}
		r.attributes = append(r.attributes, attributeMatcher{key: key, value: value})
	}

	for _, pattern := range []string{r.specifier, r.resolved} {
		if pattern == "" {
			continue
		}
		if err := validatePattern(pattern); err != nil {
			return rule{}, fmt.Errorf("rules[%d]: %w", index, err)
		}
	}

	if len(spec.Modes) > 0 {
		r.modes = make(map[string]struct{}, len(spec.Modes))
		for _, mode := range spec.Modes {
			r.modes[strings.TrimSpace(mode)] = struct{}{}
		}
	}
	return r, nil
}

// match checks the cheap conditions first so resolution only happens when
// everything else already matched.
func (r rule) match(ctx context.Context, decision *strip.DecisionContext) (bool, error) {
	if r.modes != nil {
		if _, ok := r.modes[decision.Config.Mode]; !ok {
			return false, nil
		}
	}
	for key, want := range r.env {
		if got, ok := decision.Env[key]; !ok || got != want {
			return false, nil
		}
	}
	for _, attr := range r.attributes {
		got, ok := decision.Attributes.Get(attr.key)
		if !ok || !got.Equal(attr.value) {
			return false, nil
		}
	}
	if r.specifier != "" && !matchPattern(r.specifier, decision.Target) {
		return false, nil
	}
	if r.resolved == "" {
		return true, nil
	}
	resolved, err := decision.ResolvedTarget(ctx)
	if err != nil {
		return false, err
	}
	return matchPattern(r.resolved, resolved), nil
}

func toValue(raw any) (strip.Value, error) {
	switch v := raw.(type) {
	case string:
		return strip.StringValue(v), nil
	case bool:
		return strip.BoolValue(v), nil
	case int:
		return strip.NumberValue(float64(v)), nil
	case int64:
		return strip.NumberValue(float64(v)), nil
	case uint64:
		return strip.NumberValue(float64(v)), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return strip.Value{}, fmt.Errorf("number must be finite")
		}
		return strip.NumberValue(v), nil
	default:
		return strip.Value{}, fmt.Errorf("unsupported value type %T: expected string, bool or number", raw)
	}
}
