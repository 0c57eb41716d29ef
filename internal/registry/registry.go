package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrSealed = errors.New("origin registry is sealed")

// Registry records, per stripped binding name, the files it was removed
// from. It is written during the strip phase and read after Seal.
type Registry struct {
	mu      sync.Mutex
	origins map[string][]string
	sealed  bool
}

func New() *Registry {
	return &Registry{origins: make(map[string][]string)}
}

// Reset clears the registry for a new build.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origins = make(map[string][]string)
	r.sealed = false
}

func (r *Registry) Add(name, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot record %q from %s", ErrSealed, name, fileID)
	}
	r.origins[name] = append(r.origins[name], fileID)
	return nil
}

// AddAll appends fileID under every name in one step.
func (r *Registry) AddAll(names []string, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot record bindings from %s", ErrSealed, fileID)
	}
	for _, name := range names {
		r.origins[name] = append(r.origins[name], fileID)
	}
	return nil
}

func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

func (r *Registry) Origins(name string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	origins, ok := r.origins[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), origins...), true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.origins)
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.origins))
	for name := range r.origins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
