package strip

import (
	"context"
	"strings"
	"sync"
)

// Resolver turns a specifier into a root-relative path. ok is false when the
// specifier could not be resolved.
type Resolver interface {
	Resolve(ctx context.Context, specifier, importer string) (resolved string, ok bool, err error)
}

type ResolverFunc func(ctx context.Context, specifier, importer string) (string, bool, error)

func (f ResolverFunc) Resolve(ctx context.Context, specifier, importer string) (string, bool, error) {
	return f(ctx, specifier, importer)
}

// BuildConfig is the ambient build configuration handed to predicates.
type BuildConfig struct {
	Mode   string
	Root   string
	OutDir string
}

// DecisionContext is what a Predicate sees for one import statement.
type DecisionContext struct {
	Target     string
	Source     string
	Attributes Attributes
	Config     BuildConfig
	Env        map[string]string

	cache *resolveCache
}

// ResolvedTarget resolves Target on first use. Every import of the same file
// that names the same specifier shares one resolution. Failed resolutions
// fall back to the raw specifier.
func (d *DecisionContext) ResolvedTarget(ctx context.Context) (string, error) {
	if d.cache == nil {
		return d.Target, nil
	}
	return d.cache.get(ctx, d.Target)
}

type resolution struct {
	done  chan struct{}
	value string
}

type resolveCache struct {
	resolver Resolver
	importer string

	mu      sync.Mutex
	entries map[string]*resolution
}

func newResolveCache(resolver Resolver, importer string) *resolveCache {
	if resolver == nil {
		return nil
	}
	return &resolveCache{
		resolver: resolver,
		importer: importer,
		entries:  make(map[string]*resolution),
	}
}

func (c *resolveCache) get(ctx context.Context, specifier string) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[specifier]
	if ok {
		c.mu.Unlock()
		select {
		case <-entry.done:
			return entry.value, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	entry = &resolution{done: make(chan struct{})}
	c.entries[specifier] = entry
	c.mu.Unlock()

	entry.value = c.resolve(ctx, specifier)
	close(entry.done)
	return entry.value, nil
}

func (c *resolveCache) resolve(ctx context.Context, specifier string) string {
	resolved, ok, err := c.resolver.Resolve(ctx, specifier, c.importer)
	if err != nil || !ok || strings.TrimSpace(resolved) == "" {
		return specifier
	}
	return resolved
}

func (c *resolveCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
