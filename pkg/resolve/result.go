// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"io"
	"maps"
	"slices"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/scope"
	"github.com/kiln-build/kiln/pkg/version"
)

// Result is the outcome of one resolution. It is immutable; accessors return
// copies.
type Result struct {
	root      *Node
	versions  map[coordinate.ModuleID]version.Version
	problems  []Problem
	requested scope.Set
	hierarchy *scope.Hierarchy
}

// Tree returns a copy of the resolved tree. Its root is a RootNode.
func (r *Result) Tree() *Node { return r.root.Clone() }

// Requested returns the scopes the resolution was made for.
func (r *Result) Requested() scope.Set { return r.requested }

// Versions returns the resolved version of every module that resolved.
func (r *Result) Versions() map[coordinate.ModuleID]version.Version {
	return maps.Clone(r.versions)
}

// ModuleIDs returns the resolved modules, sorted.
func (r *Result) ModuleIDs() []coordinate.ModuleID {
	return slices.SortedFunc(maps.Keys(r.versions), coordinate.ModuleID.Compare)
}

// Contains reports whether id resolved.
func (r *Result) Contains(id coordinate.ModuleID) bool {
	_, ok := r.versions[id]
	return ok
}

// VersionOf returns the resolved version of id.
func (r *Result) VersionOf(id coordinate.ModuleID) (version.Version, bool) {
	v, ok := r.versions[id]
	return v, ok
}

// Report returns the error report.
func (r *Result) Report() ErrorReport {
	return ErrorReport{Problems: slices.Clone(r.problems)}
}

// AssertNoError returns a *ReportError when the report is not empty.
func (r *Result) AssertNoError() error {
	if rep := r.Report(); rep.HasErrors() {
		return &ReportError{Report: rep}
	}
	return nil
}

// Files returns the local paths needed by scope s, in tree order without
// duplicates. Evicted and failed nodes contribute nothing; the winning
// occurrence of an evicted module contributes its files.
func (r *Result) Files(s scope.Scope) ([]string, error) {
	closure, err := r.hierarchy.Closure(s)
	if err != nil {
		return nil, err
	}
	return r.collectFiles(func(n *Node) bool { return n.InScope(closure) }), nil
}

// AllFiles returns the local paths of the whole tree.
func (r *Result) AllFiles() []string {
	return r.collectFiles(func(*Node) bool { return true })
}

func (r *Result) collectFiles(keep func(*Node) bool) []string {
	var out []string
	seen := make(map[string]bool)
	r.root.Walk(func(n *Node) bool {
		if n.Kind == RootNode {
			return true
		}
		if n.Evicted || (n.Problem != nil && n.Problem.Kind != ProblemArtifact) || !keep(n) {
			return false
		}
		for _, p := range n.Artifacts {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
		return true
	})
	return out
}

// Modules returns the resolved coordinates needed by scope s, in tree order,
// one per module.
func (r *Result) Modules(s scope.Scope) ([]coordinate.Coordinate, error) {
	closure, err := r.hierarchy.Closure(s)
	if err != nil {
		return nil, err
	}
	var out []coordinate.Coordinate
	seen := make(map[coordinate.ModuleID]bool)
	r.root.Walk(func(n *Node) bool {
		if n.Kind == RootNode {
			return true
		}
		if n.Evicted || !n.InScope(closure) {
			return false
		}
		if n.Kind == ModuleNode && r.Contains(n.Module) && !seen[n.Module] {
			seen[n.Module] = true
			out = append(out, n.Coordinate)
		}
		return true
	})
	return out, nil
}

// RenderTree writes the resolved tree.
func (r *Result) RenderTree(w io.Writer) error { return r.root.Render(w) }
