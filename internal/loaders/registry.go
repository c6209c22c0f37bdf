package loaders

import (
	"sort"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.LoaderRegistry = (*Registry)(nil)

// Registry maps file extensions to loaders.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]driven.Loader
}

// NewRegistry creates a registry holding the given loaders.
func NewRegistry(loaders ...driven.Loader) *Registry {
	r := &Registry{loaders: make(map[string]driven.Loader)}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// Register adds a loader for all of its extensions.
func (r *Registry) Register(loader driven.Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range loader.Extensions() {
		r.loaders[ext] = loader
	}
}

// Lookup returns the loader for path's extension.
func (r *Registry) Lookup(path string) (driven.Loader, error) {
	ext := domain.Extension(path)

	r.mu.RLock()
	defer r.mu.RUnlock()
	loader, ok := r.loaders[ext]
	if !ok {
		return nil, &domain.UnsupportedFormatError{Path: path, Extension: ext}
	}
	return loader, nil
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, err := r.Lookup(path)
	return err == nil
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
