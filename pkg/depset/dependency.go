// SPDX-License-Identifier: MPL-2.0

package depset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/scope"
)

type (
	// Dependency is one declaration in a DependencySet. The set of
	// implementations is closed: ModuleDependency, FileDependency and
	// ProjectDependency.
	Dependency interface {
		// DeclaredScopes returns the scopes the dependency was declared in.
		// An empty result means "unscoped".
		DeclaredScopes() []scope.Scope
		String() string

		withScopes(scopes []scope.Scope) Dependency
	}

	// ModuleDependency is a dependency on a module resolved through a
	// repository.
	ModuleDependency struct {
		Coordinate coordinate.Coordinate
		Scopes     []scope.Scope
		// Exclusions prune these modules from the subtree beneath this
		// dependency.
		Exclusions []coordinate.ModuleID
	}

	// FileDependency is a dependency on local files.
	FileDependency struct {
		Paths  []string
		Scopes []scope.Scope
	}

	// ProjectDependency is a dependency on another project of the same build.
	// Its exported dependencies are used directly instead of querying a
	// repository.
	ProjectDependency struct {
		Project Project
		Scopes  []scope.Scope
	}

	// Project is a sub-project that can be depended upon.
	Project interface {
		Name() string
		// Outputs lists the files the project produces for its consumers.
		Outputs() []string
		ExportedDependencies() DependencySet
	}

	// StaticProject is a Project with fixed content.
	StaticProject struct {
		ProjectName string
		Files       []string
		Exports     DependencySet
	}
)

// DeclaredScopes implements Dependency.
func (d ModuleDependency) DeclaredScopes() []scope.Scope { return slices.Clone(d.Scopes) }

func (d ModuleDependency) withScopes(scopes []scope.Scope) Dependency {
	d.Scopes = slices.Clone(scopes)
	return d
}

func (d ModuleDependency) String() string {
	var sb strings.Builder
	sb.WriteString(d.Coordinate.String())
	writeScopes(&sb, d.Scopes)
	if len(d.Exclusions) > 0 {
		ex := make([]string, len(d.Exclusions))
		for i, id := range d.Exclusions {
			ex[i] = id.String()
		}
		fmt.Fprintf(&sb, " excluding %s", strings.Join(ex, ", "))
	}
	return sb.String()
}

// Excludes reports whether id is excluded beneath this dependency.
func (d ModuleDependency) Excludes(id coordinate.ModuleID) bool {
	return slices.Contains(d.Exclusions, id)
}

// DeclaredScopes implements Dependency.
func (d FileDependency) DeclaredScopes() []scope.Scope { return slices.Clone(d.Scopes) }

func (d FileDependency) withScopes(scopes []scope.Scope) Dependency {
	d.Scopes = slices.Clone(scopes)
	return d
}

func (d FileDependency) String() string {
	var sb strings.Builder
	sb.WriteString("files(")
	sb.WriteString(strings.Join(d.Paths, ", "))
	sb.WriteString(")")
	writeScopes(&sb, d.Scopes)
	return sb.String()
}

// DeclaredScopes implements Dependency.
func (d ProjectDependency) DeclaredScopes() []scope.Scope { return slices.Clone(d.Scopes) }

func (d ProjectDependency) withScopes(scopes []scope.Scope) Dependency {
	d.Scopes = slices.Clone(scopes)
	return d
}

func (d ProjectDependency) String() string {
	var sb strings.Builder
	sb.WriteString("project(")
	if d.Project != nil {
		sb.WriteString(d.Project.Name())
	}
	sb.WriteString(")")
	writeScopes(&sb, d.Scopes)
	return sb.String()
}

// Name implements Project.
func (p *StaticProject) Name() string { return p.ProjectName }

// Outputs implements Project.
func (p *StaticProject) Outputs() []string { return slices.Clone(p.Files) }

// ExportedDependencies implements Project.
func (p *StaticProject) ExportedDependencies() DependencySet { return p.Exports }

func writeScopes(sb *strings.Builder, scopes []scope.Scope) {
	if len(scopes) == 0 {
		return
	}
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}
	fmt.Fprintf(sb, " [%s]", strings.Join(names, ", "))
}
