// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/scope"
	"github.com/kiln-build/kiln/pkg/version"
)

const rootKey = ""

type (
	// Engine resolves dependency sets against a Repository. An Engine holds
	// no per-resolution state and may be shared.
	Engine struct {
		repo           Repository
		strategy       coordinate.ConflictStrategy
		hierarchy      *scope.Hierarchy
		parallelism    int
		logger         *log.Logger
		root           coordinate.ModuleID
		failOnConflict bool
		maxPasses      int
	}

	// resolution is the state of one Resolve call. Repository answers are
	// memoized here so that later passes never query twice.
	resolution struct {
		*Engine

		set        depset.DependencySet
		overrides  depset.VersionProvider
		requested  scope.Set
		closure    scope.Set
		transitive scope.Set

		mu          sync.Mutex
		descriptors map[string]describeResult
		listings    map[coordinate.ModuleID]listResult
	}

	describeResult struct {
		desc Descriptor
		err  error
	}

	listResult struct {
		versions []version.Version
		err      error
	}

	// caller is one request for a module, made by the node keyed parent.
	caller struct {
		parent     string
		requested  version.Version
		effective  version.Version
		declared   []scope.Scope
		specs      []coordinate.ArtifactSpec
		exclusions []coordinate.ModuleID
		note       error
	}

	// incoming is an edge into a project node.
	incoming struct {
		parent   string
		declared []scope.Scope
	}

	// edge is an entry of the parent -> children adjacency map.
	edge struct {
		kind     NodeKind
		module   coordinate.ModuleID
		callers  []int
		files    []string
		project  depset.Project
		declared []scope.Scope
	}

	// expansion is a node whose own dependencies are collected.
	expansion struct {
		key        string
		module     coordinate.ModuleID
		version    version.Version
		project    depset.Project
		exclusions []coordinate.ModuleID
		note       error
		deps       []depset.Dependency
		failed     bool
	}

	// pass holds the caller edges collected for one candidate selection.
	pass struct {
		order       []coordinate.ModuleID
		callers     map[coordinate.ModuleID][]caller
		projects    map[string][]incoming
		edges       map[string][]edge
		expanded    map[coordinate.ModuleID]version.Version
		expandedEx  map[coordinate.ModuleID][]coordinate.ModuleID
		descriptors map[coordinate.ModuleID]Descriptor
		unresolved  map[coordinate.ModuleID]Problem
		selection   map[coordinate.ModuleID]version.Version
		exclusions  map[coordinate.ModuleID][]coordinate.ModuleID
		problems    []Problem
	}
)

// New creates an Engine querying repo.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		strategy:    coordinate.TakeHighest,
		hierarchy:   scope.Standard(),
		parallelism: DefaultParallelism,
		logger:      defaultLogger(),
		maxPasses:   DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hierarchy returns the scope hierarchy used by the engine.
func (e *Engine) Hierarchy() *scope.Hierarchy { return e.hierarchy }

// Strategy returns the conflict strategy used by the engine.
func (e *Engine) Strategy() coordinate.ConflictStrategy { return e.strategy }

// Resolve computes the dependency tree of set for the requested scopes.
//
// Modules that cannot be resolved are reported in the result, not returned
// as errors. The error is reserved for misuse (no repository, unknown scope,
// malformed module id), a canceled context, and version conflicts when the
// engine was built with WithFailOnConflict.
func (e *Engine) Resolve(ctx context.Context, set depset.DependencySet, scopes ...scope.Scope) (*Result, error) {
	start := time.Now()
	res, err := e.resolve(ctx, set, scopes)
	resolveDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		resolveTotal.WithLabelValues(outcomeError).Inc()
	case len(res.problems) > 0:
		resolveTotal.WithLabelValues(outcomeProblems).Inc()
	default:
		resolveTotal.WithLabelValues(outcomeOK).Inc()
	}
	return res, err
}

func (e *Engine) resolve(ctx context.Context, set depset.DependencySet, scopes []scope.Scope) (*Result, error) {
	if e.repo == nil {
		return nil, ErrNilRepository
	}
	if err := e.strategy.Validate(); err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		scopes = set.DefaultScopes()
		if len(scopes) == 0 {
			scopes = scope.DefaultScopes()
		}
	}
	closure, err := e.hierarchy.Closure(scopes...)
	if err != nil {
		return nil, err
	}
	transitive, err := e.hierarchy.TransitiveClosure(scopes...)
	if err != nil {
		return nil, err
	}
	for i, md := range set.Modules() {
		if err := md.Coordinate.Module().Validate(); err != nil {
			return nil, fmt.Errorf("dependency #%d: %w", i+1, err)
		}
	}

	r := &resolution{
		Engine:      e,
		set:         set,
		overrides:   set.VersionProvider(),
		requested:   scope.NewSet(scopes...),
		closure:     closure,
		transitive:  transitive,
		descriptors: make(map[string]describeResult),
		listings:    make(map[coordinate.ModuleID]listResult),
	}
	return r.run(ctx)
}

func (r *resolution) run(ctx context.Context) (*Result, error) {
	var final *pass
	passes := 0
	for {
		passes++
		cur, err := r.collect(ctx, final)
		if err != nil {
			return nil, err
		}
		if err := r.settle(cur); err != nil {
			return nil, err
		}
		final = cur
		unstable := cur.unstable()
		if len(unstable) == 0 {
			break
		}
		r.logger.Debug("selection changed, collecting again", "pass", passes, "modules", len(unstable))
		if passes >= r.maxPasses {
			for _, id := range unstable {
				cur.problems = append(cur.problems, Problem{
					Module:           id,
					RequestedVersion: cur.selection[id],
					Kind:             ProblemNotConverged,
					Message:          fmt.Sprintf("selected version still changing after %d passes", passes),
				})
			}
			break
		}
	}

	rootScopes := r.rootScopes(final)
	artifacts, artifactProblems, err := r.materialize(ctx, final)
	if err != nil {
		return nil, err
	}

	b := &builder{
		p:                final,
		closure:          r.closure,
		rootScopes:       rootScopes,
		artifacts:        artifacts,
		artifactProblems: artifactProblems,
		onPath:           make(map[string]bool),
	}
	root := &Node{Kind: RootNode, DeclaredScopes: r.requested.Slice(), RootScopes: r.closure.Slice()}
	root.Children = b.children(rootKey, root.RootScopes)

	versions := make(map[coordinate.ModuleID]version.Version, len(final.order))
	for _, id := range final.order {
		if _, bad := final.unresolved[id]; bad {
			continue
		}
		if v := final.selection[id]; !v.IsUnspecified() {
			versions[id] = v
		}
	}

	var problems []Problem
	for _, id := range final.order {
		if p, ok := final.unresolved[id]; ok {
			problems = append(problems, p)
		}
	}
	problems = append(problems, final.problems...)
	for _, id := range final.order {
		if p, ok := artifactProblems[id]; ok {
			problems = append(problems, *p)
		}
	}
	problems = dedupeProblems(problems)

	for _, p := range problems {
		resolveProblemsTotal.WithLabelValues(string(p.Kind)).Inc()
	}
	resolveEvictionsTotal.Add(float64(b.evictions))

	r.logger.Debug("resolved dependencies",
		"scopes", r.requested.String(),
		"modules", len(versions),
		"evictions", b.evictions,
		"problems", len(problems),
		"passes", passes,
	)

	return &Result{
		root:      root,
		versions:  versions,
		problems:  problems,
		requested: r.requested,
		hierarchy: r.hierarchy,
	}, nil
}

// collect walks the graph breadth-first from the root and records every
// caller edge. Modules are expanded at the version selected by the previous
// pass, or at the version asked by their first caller.
func (r *resolution) collect(ctx context.Context, prev *pass) (*pass, error) {
	p := &pass{
		callers:     make(map[coordinate.ModuleID][]caller),
		projects:    make(map[string][]incoming),
		edges:       make(map[string][]edge),
		expanded:    make(map[coordinate.ModuleID]version.Version),
		expandedEx:  make(map[coordinate.ModuleID][]coordinate.ModuleID),
		descriptors: make(map[coordinate.ModuleID]Descriptor),
		unresolved:  make(map[coordinate.ModuleID]Problem),
		selection:   make(map[coordinate.ModuleID]version.Version),
		exclusions:  make(map[coordinate.ModuleID][]coordinate.ModuleID),
	}

	level := []expansion{{key: rootKey, deps: r.set.FilterClosure(r.closure)}}
	for len(level) > 0 {
		var pending []expansion
		for _, x := range level {
			next, err := r.visit(ctx, p, prev, x)
			if err != nil {
				return nil, err
			}
			pending = append(pending, next...)
		}
		var err error
		if level, err = r.expand(ctx, p, pending); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// visit records the dependencies of x and returns the nodes seen for the
// first time in this pass.
func (r *resolution) visit(ctx context.Context, p *pass, prev *pass, x expansion) ([]expansion, error) {
	var next []expansion
	for _, dep := range x.deps {
		switch d := dep.(type) {
		case depset.ModuleDependency:
			id := d.Coordinate.Module()
			if id == r.root || slices.Contains(x.exclusions, id) {
				continue
			}
			if err := id.Validate(); err != nil {
				p.problems = append(p.problems, Problem{Module: id, Kind: ProblemUnresolved, Message: err.Error()})
				continue
			}
			c := r.overrides.Apply(d.Coordinate)
			cl := caller{
				parent:     x.key,
				requested:  c.Version(),
				effective:  c.Version(),
				declared:   d.DeclaredScopes(),
				specs:      c.ArtifactSpecs(),
				exclusions: unionIDs(x.exclusions, d.Exclusions),
			}
			if cl.requested.IsDynamic() {
				v, err := r.selectVersion(ctx, id, cl.requested)
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				if err != nil {
					cl.effective = version.Unspecified
					cl.note = err
					p.problems = append(p.problems, Problem{
						Module:           id,
						RequestedVersion: cl.requested,
						Kind:             ProblemUnresolved,
						Message:          err.Error(),
					})
				} else {
					cl.effective = v
				}
			}

			first := len(p.callers[id]) == 0
			if first {
				p.order = append(p.order, id)
			}
			p.callers[id] = append(p.callers[id], cl)
			p.addModuleEdge(x.key, id, len(p.callers[id])-1, cl.declared)

			if first {
				v, ex := cl.effective, cl.exclusions
				if prev != nil {
					if sv, ok := prev.selection[id]; ok {
						v = sv
					}
					if pe, ok := prev.exclusions[id]; ok {
						ex = pe
					}
				}
				next = append(next, expansion{key: id.String(), module: id, version: v, exclusions: ex, note: cl.note})
			}

		case depset.FileDependency:
			p.edges[x.key] = append(p.edges[x.key], edge{
				kind:     FileNode,
				files:    slices.Clone(d.Paths),
				declared: d.DeclaredScopes(),
			})

		case depset.ProjectDependency:
			if d.Project == nil {
				continue
			}
			key := projectKey(d.Project)
			_, seen := p.projects[key]
			p.projects[key] = append(p.projects[key], incoming{parent: x.key, declared: d.DeclaredScopes()})
			if !slices.ContainsFunc(p.edges[x.key], func(e edge) bool {
				return e.kind == ProjectNode && projectKey(e.project) == key
			}) {
				p.edges[x.key] = append(p.edges[x.key], edge{kind: ProjectNode, project: d.Project, declared: d.DeclaredScopes()})
			}
			if !seen {
				next = append(next, expansion{key: key, project: d.Project, exclusions: slices.Clone(x.exclusions)})
			}
		}
	}
	return next, nil
}

// expand fetches the declared dependencies of the pending nodes. Descriptor
// queries run concurrently; results are consumed in order.
func (r *resolution) expand(ctx context.Context, p *pass, pending []expansion) ([]expansion, error) {
	var fetch []coordinate.Coordinate
	for i := range pending {
		x := &pending[i]
		if x.project != nil {
			continue
		}
		v, err := r.pickVersion(ctx, x.module, x.version, x.note)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.expanded[x.module] = v
		p.expandedEx[x.module] = x.exclusions
		if err != nil {
			p.unresolved[x.module] = Problem{Module: x.module, RequestedVersion: x.version, Kind: ProblemUnresolved, Message: err.Error()}
			x.failed = true
			continue
		}
		x.version = v
		fetch = append(fetch, coordinate.New(x.module, v))
	}
	if err := r.prefetch(ctx, fetch); err != nil {
		return nil, err
	}

	out := make([]expansion, 0, len(pending))
	for _, x := range pending {
		if x.failed {
			continue
		}
		if x.project != nil {
			x.deps = x.project.ExportedDependencies().FilterClosure(r.transitive)
			out = append(out, x)
			continue
		}
		desc, err := r.describe(ctx, coordinate.New(x.module, x.version))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.unresolved[x.module] = Problem{Module: x.module, RequestedVersion: x.version, Kind: ProblemUnresolved, Message: err.Error()}
			continue
		}
		p.descriptors[x.module] = desc
		x.deps = desc.Dependencies.FilterClosure(r.transitive)
		out = append(out, x)
	}
	return out, nil
}

// settle folds the callers of every module through the conflict strategy,
// in traversal order.
func (r *resolution) settle(p *pass) error {
	for _, id := range p.order {
		callers := p.callers[id]
		selected := callers[0].effective
		for _, c := range callers[1:] {
			v, err := coordinate.ResolveVersionConflict(id, selected, c.effective, r.strategy)
			if err != nil {
				if r.failOnConflict {
					return err
				}
				p.problems = append(p.problems, Problem{
					Module:           id,
					RequestedVersion: c.requested,
					Kind:             ProblemConflict,
					Message:          err.Error(),
				})
				continue
			}
			selected = v
		}
		if selected.IsUnspecified() {
			selected = p.expanded[id]
		}
		p.selection[id] = selected

		ex := slices.Clone(callers[0].exclusions)
		for _, c := range callers[1:] {
			ex = slices.DeleteFunc(ex, func(m coordinate.ModuleID) bool { return !slices.Contains(c.exclusions, m) })
		}
		p.exclusions[id] = ex
	}
	return nil
}

// unstable returns the modules whose expansion does not match the settled
// selection.
func (p *pass) unstable() []coordinate.ModuleID {
	var out []coordinate.ModuleID
	for _, id := range p.order {
		if p.selection[id] != p.expanded[id] || !sameIDs(p.exclusions[id], p.expandedEx[id]) {
			out = append(out, id)
		}
	}
	return out
}

func (p *pass) addModuleEdge(parent string, id coordinate.ModuleID, callerIdx int, declared []scope.Scope) {
	edges := p.edges[parent]
	for i := range edges {
		if edges[i].kind == ModuleNode && edges[i].module == id {
			edges[i].callers = append(edges[i].callers, callerIdx)
			return
		}
	}
	p.edges[parent] = append(edges, edge{kind: ModuleNode, module: id, callers: []int{callerIdx}, declared: declared})
}

// rootScopes computes, for every module and project, the scopes of the root
// declarations it is reached through.
func (r *resolution) rootScopes(p *pass) map[string]scope.Set {
	out := make(map[string]scope.Set)
	edgeScopes := func(parent string, declared []scope.Scope) scope.Set {
		if parent != rootKey {
			return out[parent]
		}
		if len(declared) == 0 {
			return r.closure
		}
		return scope.NewSet(declared...)
	}
	for changed := true; changed; {
		changed = false
		for _, id := range p.order {
			key := id.String()
			acc := out[key]
			for _, c := range p.callers[id] {
				acc = acc.Union(edgeScopes(c.parent, c.declared))
			}
			if !acc.Equal(out[key]) {
				out[key] = acc
				changed = true
			}
		}
		for key, in := range p.projects {
			acc := out[key]
			for _, c := range in {
				acc = acc.Union(edgeScopes(c.parent, c.declared))
			}
			if !acc.Equal(out[key]) {
				out[key] = acc
				changed = true
			}
		}
	}
	return out
}

// materialize fetches the artifacts of every resolved module concurrently.
func (r *resolution) materialize(ctx context.Context, p *pass) (map[coordinate.ModuleID][]string, map[coordinate.ModuleID]*Problem, error) {
	type job struct {
		id    coordinate.ModuleID
		coord coordinate.Coordinate
		specs []coordinate.ArtifactSpec
		paths []string
		err   error
	}
	var jobs []*job
	for _, id := range p.order {
		if _, bad := p.unresolved[id]; bad {
			continue
		}
		sel := p.selection[id]
		if sel.IsUnspecified() {
			continue
		}
		var specs []coordinate.ArtifactSpec
		for _, c := range p.callers[id] {
			for _, s := range c.specs {
				if !slices.Contains(specs, s) {
					specs = append(specs, s)
				}
			}
		}
		if len(specs) == 0 {
			specs = p.descriptors[id].mainArtifacts()
		}
		jobs = append(jobs, &job{id: id, coord: coordinate.New(id, sel), specs: specs})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, j := range jobs {
		g.Go(func() error {
			for _, spec := range j.specs {
				path, err := r.repo.Materialize(gctx, j.coord, spec)
				if err != nil {
					j.err = fmt.Errorf("%s: %w", spec, err)
					return ctx.Err()
				}
				j.paths = append(j.paths, path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	paths := make(map[coordinate.ModuleID][]string, len(jobs))
	problems := make(map[coordinate.ModuleID]*Problem)
	for _, j := range jobs {
		paths[j.id] = j.paths
		if j.err != nil {
			problems[j.id] = &Problem{
				Module:           j.id,
				RequestedVersion: j.coord.Version(),
				Kind:             ProblemArtifact,
				Message:          j.err.Error(),
			}
		}
	}
	return paths, problems, nil
}

func (r *resolution) pickVersion(ctx context.Context, id coordinate.ModuleID, v version.Version, note error) (version.Version, error) {
	if !v.IsUnspecified() {
		return v, nil
	}
	if note != nil {
		return version.Unspecified, note
	}
	return r.selectVersion(ctx, id, version.Highest)
}

func (r *resolution) selectVersion(ctx context.Context, id coordinate.ModuleID, requested version.Version) (version.Version, error) {
	versions, err := r.listVersions(ctx, id)
	if err != nil {
		return version.Unspecified, err
	}
	return version.Select(requested, versions)
}

func (r *resolution) listVersions(ctx context.Context, id coordinate.ModuleID) ([]version.Version, error) {
	r.mu.Lock()
	res, ok := r.listings[id]
	r.mu.Unlock()
	if ok {
		return res.versions, res.err
	}
	versions, err := r.repo.ListVersions(ctx, id)
	if ctx.Err() == nil {
		r.mu.Lock()
		r.listings[id] = listResult{versions: versions, err: err}
		r.mu.Unlock()
	}
	return versions, err
}

func (r *resolution) describe(ctx context.Context, c coordinate.Coordinate) (Descriptor, error) {
	key := c.Key()
	r.mu.Lock()
	res, ok := r.descriptors[key]
	r.mu.Unlock()
	if ok {
		return res.desc, res.err
	}
	desc, err := r.repo.Describe(ctx, c)
	if ctx.Err() == nil {
		r.mu.Lock()
		r.descriptors[key] = describeResult{desc: desc, err: err}
		r.mu.Unlock()
	}
	return desc, err
}

// prefetch warms the descriptor memo for distinct coordinates using at most
// parallelism concurrent queries.
func (r *resolution) prefetch(ctx context.Context, coords []coordinate.Coordinate) error {
	if len(coords) < 2 || r.parallelism < 2 {
		return ctx.Err()
	}
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	seen := make(map[string]bool, len(coords))
	for _, c := range coords {
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		g.Go(func() error {
			_, _ = r.describe(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func projectKey(p depset.Project) string { return "project " + p.Name() }

func unionIDs(a, b []coordinate.ModuleID) []coordinate.ModuleID {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func sameIDs(a, b []coordinate.ModuleID) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !slices.Contains(b, id) {
			return false
		}
	}
	return true
}

func dedupeProblems(in []Problem) []Problem {
	type key struct {
		id   coordinate.ModuleID
		kind ProblemKind
	}
	seen := make(map[key]bool, len(in))
	out := in[:0]
	for _, p := range in {
		k := key{p.Module, p.Kind}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}
