// SPDX-License-Identifier: MPL-2.0

package buildfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/kiln-build/kiln/internal/dag"
	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/scope"
	"github.com/kiln-build/kiln/pkg/version"
)

type (
	// discovered is a parsed build file waiting to become a Project.
	discovered struct {
		dir  string
		path string
		name string
		file *buildFile
	}

	loader struct {
		root     string
		files    map[string]*discovered
		order    []*discovered
		graph    *dag.Graph
		projects map[string]*Project
	}
)

// Load reads dir/kiln.cue and every project it references, directly or
// not. Loading happens in three phases: discovery parses each build file
// once, scope declarations of all files are merged into one hierarchy, and
// projects are then built in dependency order so that a project dependency
// always points at a finished Project.
func Load(ctx context.Context, dir string) (*Workspace, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}
	l := &loader{
		root:     root,
		files:    make(map[string]*discovered),
		graph:    dag.New(),
		projects: make(map[string]*Project),
	}

	if err := l.discover(ctx); err != nil {
		return nil, err
	}
	h, err := l.hierarchy()
	if err != nil {
		return nil, err
	}
	order, err := l.graph.TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, l.cycleError(cycleErr)
		}
		return nil, err
	}

	ws := &Workspace{Hierarchy: h}
	for _, key := range order {
		p, err := l.build(l.files[key], h)
		if err != nil {
			return nil, err
		}
		l.projects[key] = p
		ws.Order = append(ws.Order, p)
	}
	ws.Root = l.projects[root]
	return ws, nil
}

// discover walks project references breadth-first from the root. Edges of
// the graph run from a project to the projects depending on it.
func (l *loader) discover(ctx context.Context) error {
	referencedBy := map[string]string{l.root: ""}
	queue := []string{l.root}
	l.graph.AddNode(l.root)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := queue[0]
		queue = queue[1:]

		path := filepath.Join(dir, FileName)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &NotFoundError{Dir: dir, ReferencedBy: referencedBy[dir]}
			}
			return fmt.Errorf("read build file: %w", err)
		}
		bf, err := parse(data, path)
		if err != nil {
			return err
		}
		d := &discovered{dir: dir, path: path, name: l.name(dir), file: bf}
		l.files[dir] = d
		l.order = append(l.order, d)

		for _, dep := range bf.Dependencies {
			if dep.Project == "" {
				continue
			}
			target := l.projectDir(dir, dep.Project)
			l.graph.AddEdge(target, dir)
			if _, seen := referencedBy[target]; !seen {
				referencedBy[target] = path
				queue = append(queue, target)
			}
		}
	}
	return nil
}

// hierarchy extends the built-in scopes with the declarations of every
// build file. A scope declared by several files must be declared the same
// way each time.
func (l *loader) hierarchy() (*scope.Hierarchy, error) {
	std := scope.Standard()
	declaredIn := make(map[scope.Scope]*discovered)
	declared := make(map[scope.Scope]scope.Declaration)
	var decls []scope.Declaration

	for _, d := range l.order {
		for i, se := range d.file.Scopes {
			extends, err := scope.ParseAll(se.Extends)
			if err != nil {
				return nil, &InvalidBuildFileError{Path: d.path, Err: fmt.Errorf("scopes[%d]: %w", i, err)}
			}
			decl := scope.Declaration{Name: scope.Scope(se.Name), Extends: extends, Transitive: se.Transitive}
			if _, builtin := std.Lookup(decl.Name); builtin {
				return nil, &InvalidBuildFileError{Path: d.path, Err: fmt.Errorf("scopes[%d]: %q is a built-in scope", i, decl.Name)}
			}
			if prev, ok := declared[decl.Name]; ok {
				if !sameDeclaration(prev, decl) {
					return nil, &InvalidBuildFileError{
						Path: d.path,
						Err:  fmt.Errorf("scopes[%d]: %q is declared differently in %s", i, decl.Name, declaredIn[decl.Name].path),
					}
				}
				continue
			}
			declared[decl.Name] = decl
			declaredIn[decl.Name] = d
			decls = append(decls, decl)
		}
	}
	if len(decls) == 0 {
		return std, nil
	}

	h, err := std.Extend(decls...)
	if err != nil {
		var unknown *scope.UnknownScopeError
		if errors.As(err, &unknown) {
			return nil, fmt.Errorf("declare scopes: %q extends an undeclared scope: %w", unknownParent(decls, unknown.Value), err)
		}
		return nil, fmt.Errorf("declare scopes: %w", err)
	}
	return h, nil
}

func (l *loader) build(d *discovered, h *scope.Hierarchy) (*Project, error) {
	fail := func(err error) error { return &InvalidBuildFileError{Path: d.path, Err: err} }

	p := &Project{name: d.name, dir: d.dir, buildFile: d.path}
	if d.file.Module != "" {
		c, err := coordinate.Parse(d.file.Module)
		if err != nil {
			return nil, fail(fmt.Errorf("module: %w", err))
		}
		p.module, p.hasModule = c, true
	}

	defaults := scope.DefaultScopes()
	if len(d.file.DefaultScopes) > 0 {
		parsed, err := l.scopes(h, d.file.DefaultScopes)
		if err != nil {
			return nil, fail(fmt.Errorf("default_scopes: %w", err))
		}
		defaults = parsed
	}

	var set depset.DependencySet
	for i, entry := range d.file.Dependencies {
		scopes, err := l.scopes(h, entry.Scopes)
		if err != nil {
			return nil, fail(fmt.Errorf("dependencies[%d]: %w", i, err))
		}
		switch {
		case entry.Module != "":
			md, err := moduleDependency(entry, scopes)
			if err != nil {
				return nil, fail(fmt.Errorf("dependencies[%d]: %w", i, err))
			}
			set = set.And(md)
		case len(entry.Files) > 0:
			set = set.AndFiles(l.paths(d.dir, entry.Files), scopes...)
		case entry.Project != "":
			target, ok := l.projects[l.projectDir(d.dir, entry.Project)]
			if !ok {
				return nil, fail(fmt.Errorf("dependencies[%d]: project %q was not loaded", i, entry.Project))
			}
			set = set.AndProject(target, scopes...)
		}
	}

	if len(d.file.Versions) > 0 {
		overrides := make(map[coordinate.ModuleID]version.Version, len(d.file.Versions))
		for text, v := range d.file.Versions {
			id, err := coordinate.ParseModuleID(text)
			if err != nil {
				return nil, fail(fmt.Errorf("versions: %w", err))
			}
			overrides[id] = version.Of(v)
		}
		set = set.WithVersionProvider(depset.NewVersionProvider(overrides))
	}

	p.deps = set.WithDefaultScopes(defaults...)
	p.outputs = l.paths(d.dir, d.file.Outputs)
	return p, nil
}

func moduleDependency(entry dependencyEntry, scopes []scope.Scope) (depset.ModuleDependency, error) {
	c, err := coordinate.Parse(entry.Module)
	if err != nil {
		return depset.ModuleDependency{}, err
	}
	md := depset.ModuleDependency{Coordinate: c, Scopes: scopes}
	for _, text := range entry.Exclusions {
		id, err := coordinate.ParseModuleID(text)
		if err != nil {
			return depset.ModuleDependency{}, fmt.Errorf("exclusions: %w", err)
		}
		md.Exclusions = append(md.Exclusions, id)
	}
	return md, nil
}

// scopes parses names and checks that the hierarchy declares them.
func (l *loader) scopes(h *scope.Hierarchy, names []string) ([]scope.Scope, error) {
	scopes, err := scope.ParseAll(names)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(scopes...); err != nil {
		return nil, err
	}
	return scopes, nil
}

// paths makes paths relative to the workspace root. Absolute paths are kept.
func (l *loader) paths(dir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			out = append(out, filepath.Clean(p))
			continue
		}
		out = append(out, l.name(filepath.Join(dir, p)))
	}
	return out
}

func (l *loader) projectDir(from, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(from, ref)
}

// name returns dir relative to the workspace root with forward slashes.
func (l *loader) name(dir string) string {
	rel, err := filepath.Rel(l.root, dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	return filepath.ToSlash(rel)
}

// cycleError converts a graph cycle, which follows "is needed by" edges,
// into project names along "depends on" edges.
func (l *loader) cycleError(err *dag.CycleError) *ProjectCycleError {
	names := make([]string, len(err.Cycle))
	for i, dir := range err.Cycle {
		names[i] = l.name(dir)
	}
	slices.Reverse(names)
	return &ProjectCycleError{Cycle: names}
}

func sameDeclaration(a, b scope.Declaration) bool {
	return a.Name == b.Name && a.Transitive == b.Transitive && slices.Equal(a.Extends, b.Extends)
}

func unknownParent(decls []scope.Declaration, parent scope.Scope) scope.Scope {
	for _, d := range decls {
		if slices.Contains(d.Extends, parent) {
			return d.Name
		}
	}
	return parent
}
