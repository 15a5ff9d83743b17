// SPDX-License-Identifier: MPL-2.0

package scope

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kiln-build/kiln/internal/dag"
)

type (
	// Declaration describes one scope. Transitive scopes propagate to the
	// dependencies of dependencies; non-transitive ones (test, provided) only
	// apply to direct declarations.
	Declaration struct {
		Name       Scope
		Extends    []Scope
		Transitive bool
	}

	// Hierarchy is a validated, acyclic set of scope declarations.
	Hierarchy struct {
		decls map[Scope]Declaration
		order []Scope
	}
)

// standard is built once; its declarations are known to be valid.
var standard = sync.OnceValue(func() *Hierarchy {
	h, err := NewHierarchy(
		Declaration{Name: Compile, Transitive: true},
		Declaration{Name: Runtime, Extends: []Scope{Compile}, Transitive: true},
		Declaration{Name: Provided},
		Declaration{Name: Test, Extends: []Scope{Runtime, Provided}},
	)
	if err != nil {
		panic(err)
	}
	return h
})

// Standard returns the built-in hierarchy: runtime extends compile, test
// extends runtime and provided.
func Standard() *Hierarchy { return standard() }

// DefaultScopes is the policy applied to dependencies declared without scope.
func DefaultScopes() []Scope { return []Scope{Compile, Runtime} }

// NewHierarchy validates declarations and rejects unknown parents, duplicate
// names and cycles.
func NewHierarchy(decls ...Declaration) (*Hierarchy, error) {
	h := &Hierarchy{decls: make(map[Scope]Declaration, len(decls))}
	for _, d := range decls {
		if err := d.Name.Validate(); err != nil {
			return nil, err
		}
		if _, dup := h.decls[d.Name]; dup {
			return nil, fmt.Errorf("scope %q declared twice: %w", d.Name, ErrInvalidScope)
		}
		d.Extends = slices.Clone(d.Extends)
		h.decls[d.Name] = d
		h.order = append(h.order, d.Name)
	}

	g := dag.New()
	for _, name := range h.order {
		g.AddNode(string(name))
		for _, parent := range h.decls[name].Extends {
			if _, ok := h.decls[parent]; !ok {
				return nil, &UnknownScopeError{Value: parent}
			}
			g.AddEdge(string(parent), string(name))
		}
	}
	if _, err := g.TopologicalSort(); err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			cycle := make([]Scope, len(cycleErr.Cycle))
			for i, n := range cycleErr.Cycle {
				cycle[len(cycle)-1-i] = Scope(n)
			}
			return nil, &CycleError{Cycle: cycle}
		}
		return nil, err
	}
	return h, nil
}

// Extend returns a new hierarchy holding h's declarations plus decls.
func (h *Hierarchy) Extend(decls ...Declaration) (*Hierarchy, error) {
	all := make([]Declaration, 0, len(h.order)+len(decls))
	for _, name := range h.order {
		all = append(all, h.decls[name])
	}
	return NewHierarchy(append(all, decls...)...)
}

// Scopes returns the declared scope names in declaration order.
func (h *Hierarchy) Scopes() []Scope { return slices.Clone(h.order) }

// Lookup returns the declaration of s.
func (h *Hierarchy) Lookup(s Scope) (Declaration, bool) {
	d, ok := h.decls[s]
	return d, ok
}

// Validate checks that every scope is declared.
func (h *Hierarchy) Validate(scopes ...Scope) error {
	for _, s := range scopes {
		if _, ok := h.decls[s]; !ok {
			return &UnknownScopeError{Value: s}
		}
	}
	return nil
}

// InheritedBy returns the reflexive-transitive closure of "extends" edges
// starting at s.
func (h *Hierarchy) InheritedBy(s Scope) (Set, error) {
	return h.Closure(s)
}

// Closure returns every scope reachable from the requested ones, including
// themselves, in breadth-first order.
func (h *Hierarchy) Closure(requested ...Scope) (Set, error) {
	if err := h.Validate(requested...); err != nil {
		return Set{}, err
	}
	var out Set
	visited := make(map[Scope]bool, len(h.decls))
	queue := slices.Clone(requested)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if visited[s] {
			continue
		}
		visited[s] = true
		out = out.With(s)
		queue = append(queue, h.decls[s].Extends...)
	}
	return out, nil
}

// TransitiveClosure is Closure restricted to transitive scopes. It selects
// which declarations of an indirect dependency take part in a request.
func (h *Hierarchy) TransitiveClosure(requested ...Scope) (Set, error) {
	all, err := h.Closure(requested...)
	if err != nil {
		return Set{}, err
	}
	var out Set
	for _, s := range all.items {
		if h.decls[s].Transitive {
			out = out.With(s)
		}
	}
	return out, nil
}

// Includes reports whether a dependency declared in the given scopes is part
// of a request for requested.
func (h *Hierarchy) Includes(declared []Scope, requested ...Scope) (bool, error) {
	closure, err := h.Closure(requested...)
	if err != nil {
		return false, err
	}
	return closure.Intersects(declared), nil
}
