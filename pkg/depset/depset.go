// SPDX-License-Identifier: MPL-2.0

// Package depset holds immutable collections of declared dependencies.
//
// A DependencySet keeps its declarations in insertion order and never
// deduplicates them. Every And/With method returns a new set; the receiver is
// never modified.
package depset

import (
	"slices"
	"strings"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/scope"
)

// DependencySet is an ordered list of dependencies plus a version override
// table and a default-scopes policy for unscoped declarations.
type DependencySet struct {
	entries       []Dependency
	versions      VersionProvider
	defaultScopes []scope.Scope
}

// Of builds a set from dependencies.
func Of(deps ...Dependency) DependencySet {
	return DependencySet{entries: slices.Clone(deps)}
}

// And appends dependencies.
func (s DependencySet) And(deps ...Dependency) DependencySet {
	s.entries = slices.Concat(s.entries, deps)
	return s
}

// AndSet appends the dependencies of o. Version overrides are merged with the
// receiver's entries winning; o's default scopes are used only when the
// receiver has none.
func (s DependencySet) AndSet(o DependencySet) DependencySet {
	s.entries = slices.Concat(s.entries, o.entries)
	s.versions = s.versions.And(o.versions)
	if len(s.defaultScopes) == 0 {
		s.defaultScopes = slices.Clone(o.defaultScopes)
	}
	return s
}

// AndModule parses a textual coordinate and appends it.
func (s DependencySet) AndModule(text string, scopes ...scope.Scope) (DependencySet, error) {
	c, err := coordinate.Parse(text)
	if err != nil {
		return s, err
	}
	return s.AndCoordinate(c, scopes...), nil
}

// AndCoordinate appends a module dependency.
func (s DependencySet) AndCoordinate(c coordinate.Coordinate, scopes ...scope.Scope) DependencySet {
	return s.And(ModuleDependency{Coordinate: c, Scopes: slices.Clone(scopes)})
}

// AndFiles appends a file dependency.
func (s DependencySet) AndFiles(paths []string, scopes ...scope.Scope) DependencySet {
	return s.And(FileDependency{Paths: slices.Clone(paths), Scopes: slices.Clone(scopes)})
}

// AndProject appends a project dependency.
func (s DependencySet) AndProject(p Project, scopes ...scope.Scope) DependencySet {
	return s.And(ProjectDependency{Project: p, Scopes: slices.Clone(scopes)})
}

// WithVersionProvider replaces the version override table.
func (s DependencySet) WithVersionProvider(p VersionProvider) DependencySet {
	s.entries = slices.Clone(s.entries)
	s.versions = p
	return s
}

// WithDefaultScopes records the scopes given to unscoped dependencies. The
// declarations themselves are left untouched; see ScopeDefaulted.
func (s DependencySet) WithDefaultScopes(scopes ...scope.Scope) DependencySet {
	s.entries = slices.Clone(s.entries)
	s.defaultScopes = slices.Clone(scopes)
	return s
}

// WithoutDependencies drops module dependencies on the given modules.
func (s DependencySet) WithoutDependencies(ids ...coordinate.ModuleID) DependencySet {
	s.entries = slices.DeleteFunc(slices.Clone(s.entries), func(d Dependency) bool {
		md, ok := d.(ModuleDependency)
		return ok && slices.Contains(ids, md.Coordinate.Module())
	})
	return s
}

// Entries returns the declarations as written.
func (s DependencySet) Entries() []Dependency { return slices.Clone(s.entries) }

// Len returns the number of declarations.
func (s DependencySet) Len() int { return len(s.entries) }

// IsEmpty reports whether the set has no declarations.
func (s DependencySet) IsEmpty() bool { return len(s.entries) == 0 }

// VersionProvider returns the override table.
func (s DependencySet) VersionProvider() VersionProvider { return s.versions }

// DefaultScopes returns the default-scopes policy.
func (s DependencySet) DefaultScopes() []scope.Scope { return slices.Clone(s.defaultScopes) }

// ScopeDefaulted returns the declarations with the default scopes applied to
// those declared without scope. A set without a policy uses
// scope.DefaultScopes. Scoped declarations are returned unchanged.
func (s DependencySet) ScopeDefaulted() []Dependency {
	defaults := s.defaultScopes
	if len(defaults) == 0 {
		defaults = scope.DefaultScopes()
	}
	out := make([]Dependency, len(s.entries))
	for i, d := range s.entries {
		if len(d.DeclaredScopes()) == 0 {
			d = d.withScopes(defaults)
		}
		out[i] = d
	}
	return out
}

// Filter returns the scope-defaulted declarations that a request for the
// given scopes includes.
func (s DependencySet) Filter(h *scope.Hierarchy, requested ...scope.Scope) ([]Dependency, error) {
	closure, err := h.Closure(requested...)
	if err != nil {
		return nil, err
	}
	return s.FilterClosure(closure), nil
}

// FilterClosure is Filter for a precomputed scope closure.
func (s DependencySet) FilterClosure(closure scope.Set) []Dependency {
	var out []Dependency
	for _, d := range s.ScopeDefaulted() {
		if closure.Intersects(d.DeclaredScopes()) {
			out = append(out, d)
		}
	}
	return out
}

// Modules returns the module dependencies in declaration order.
func (s DependencySet) Modules() []ModuleDependency {
	var out []ModuleDependency
	for _, d := range s.entries {
		if md, ok := d.(ModuleDependency); ok {
			out = append(out, md)
		}
	}
	return out
}

func (s DependencySet) String() string {
	lines := make([]string, len(s.entries))
	for i, d := range s.entries {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
