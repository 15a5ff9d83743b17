// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kiln-build/kiln/pkg/resolve"
)

// DefaultMemoSize is the number of descriptors and version listings kept by
// the repository returned from Open.
const DefaultMemoSize = 1024

// ErrUnknownKind is returned by Open for a kind nobody registered.
var ErrUnknownKind = errors.New("unknown repository kind")

// DefaultRegistry holds the repository kinds compiled into the binary.
// Kinds are registered during package initialization.
var DefaultRegistry = NewRegistry()

type (
	// Spec configures one repository.
	Spec struct {
		Name string
		Kind string
		Path string
		// CacheDir is where artifacts are materialized.
		CacheDir string
	}

	// Factory builds a repository from its Spec.
	Factory func(ctx context.Context, spec Spec) (resolve.Repository, error)

	// Registry maps repository kinds to factories. It is safe for concurrent
	// use.
	Registry struct {
		mu        sync.RWMutex
		factories map[string]Factory
	}
)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for kind.
// Panics if kind is empty or already registered.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind == "" {
		panic("repository: cannot register an empty kind")
	}
	if _, exists := r.factories[kind]; exists {
		panic(fmt.Sprintf("repository: kind %q already registered", kind))
	}
	r.factories[kind] = f
}

// Lookup returns the factory registered for kind.
func (r *Registry) Lookup(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[kind]
	return f, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Open builds every configured repository and returns them chained in
// order behind a memo of DefaultMemoSize entries.
func (r *Registry) Open(ctx context.Context, specs []Spec) (resolve.Repository, error) {
	if len(specs) == 0 {
		return nil, errors.New("no repository configured")
	}
	repos := make([]resolve.Repository, 0, len(specs))
	for _, spec := range specs {
		f, ok := r.Lookup(spec.Kind)
		if !ok {
			return nil, fmt.Errorf("repository %q: %w %q (known: %v)", spec.Name, ErrUnknownKind, spec.Kind, r.Kinds())
		}
		repo, err := f(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("repository %q: %w", spec.Name, err)
		}
		repos = append(repos, repo)
	}
	var repo resolve.Repository = NewChain(repos...)
	if len(repos) == 1 {
		repo = repos[0]
	}
	return NewMemoized(repo, DefaultMemoSize)
}

// Register adds a factory to DefaultRegistry.
func Register(kind string, f Factory) { DefaultRegistry.Register(kind, f) }

// Open opens specs with DefaultRegistry.
func Open(ctx context.Context, specs []Spec) (resolve.Repository, error) {
	return DefaultRegistry.Open(ctx, specs)
}
