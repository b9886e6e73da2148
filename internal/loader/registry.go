package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"diffkit/internal/domain"
)

// Loader reads one file format into a Signal
type Loader interface {
	Format() Format
	Load(ctx context.Context, path string) (*domain.Signal, error)
}

// Registry maps formats to loaders
type Registry struct {
	mu      sync.RWMutex
	loaders map[Format]Loader
}

// NewRegistry creates a registry holding the given loaders.
func NewRegistry(loaders ...Loader) *Registry {
	r := &Registry{loaders: make(map[Format]Loader)}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// DefaultRegistry returns a registry with the HSPY, BLO and MIB loaders.
func DefaultRegistry() *Registry {
	return NewRegistry(&HSPYLoader{}, &BLOLoader{}, &MIBLoader{})
}

// Register adds or replaces the loader for l.Format().
func (r *Registry) Register(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[l.Format()] = l
}

// Lookup returns the loader registered for f.
func (r *Registry) Lookup(f Format) (Loader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[f]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for %s", ErrUnsupportedFormat, f)
	}
	return l, nil
}

// Formats lists the registered formats in enum order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]Format, 0, len(r.loaders))
	for f := range r.loaders {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
