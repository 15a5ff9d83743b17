// SPDX-License-Identifier: MPL-2.0

package buildfile

import (
	"slices"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

var _ depset.Project = (*Project)(nil)

type (
	// Project is one loaded kiln.cue. It implements depset.Project so other
	// projects of the build can depend on it.
	Project struct {
		name      string
		dir       string
		buildFile string
		module    coordinate.Coordinate
		hasModule bool
		deps      depset.DependencySet
		outputs   []string
	}

	// Workspace is the set of projects reachable from a root build file.
	Workspace struct {
		// Root is the project Load was called for.
		Root *Project
		// Order lists every project after the projects it depends on; Root
		// is last.
		Order []*Project
		// Hierarchy holds the built-in scopes plus those declared by any
		// build file of the workspace.
		Hierarchy *scope.Hierarchy
	}
)

// Name returns the project directory relative to the workspace root, using
// forward slashes. The root project is named ".".
func (p *Project) Name() string { return p.name }

// Dir returns the absolute project directory.
func (p *Project) Dir() string { return p.dir }

// BuildFile returns the absolute path of the project's kiln.cue.
func (p *Project) BuildFile() string { return p.buildFile }

// Module returns the coordinate declared by the module field.
func (p *Project) Module() (coordinate.Coordinate, bool) { return p.module, p.hasModule }

// Outputs returns the declared outputs relative to the workspace root.
func (p *Project) Outputs() []string { return slices.Clone(p.outputs) }

// Dependencies returns the declared dependencies, version overrides and
// default scopes.
func (p *Project) Dependencies() depset.DependencySet { return p.deps }

// ExportedDependencies implements depset.Project. A project exports
// everything it declares; the resolver keeps what its consumer's scopes
// include.
func (p *Project) ExportedDependencies() depset.DependencySet { return p.deps }

// Project returns the project with the given name.
func (w *Workspace) Project(name string) (*Project, bool) {
	i := slices.IndexFunc(w.Order, func(p *Project) bool { return p.name == name })
	if i < 0 {
		return nil, false
	}
	return w.Order[i], true
}

// BuildFiles returns the build file of every project, in load order.
func (w *Workspace) BuildFiles() []string {
	out := make([]string, len(w.Order))
	for i, p := range w.Order {
		out[i] = p.buildFile
	}
	return out
}

// EngineOptions returns the resolver options implied by the root build
// file: the workspace scope hierarchy and the root module, whose
// appearances in the graph are ignored.
func (w *Workspace) EngineOptions() []resolve.Option {
	opts := []resolve.Option{resolve.WithHierarchy(w.Hierarchy)}
	if c, ok := w.Root.Module(); ok {
		opts = append(opts, resolve.WithRootModule(c.Module()))
	}
	return opts
}
