// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"slices"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/scope"
)

// builder instantiates the output tree from the adjacency map of a settled
// pass. A module already on the current path is emitted as a leaf.
type builder struct {
	p                *pass
	closure          scope.Set
	rootScopes       map[string]scope.Set
	artifacts        map[coordinate.ModuleID][]string
	artifactProblems map[coordinate.ModuleID]*Problem
	onPath           map[string]bool
	evictions        int
}

func (b *builder) children(parent string, parentScopes []scope.Scope) []*Node {
	edges := b.p.edges[parent]
	out := make([]*Node, 0, len(edges))
	for _, e := range edges {
		switch e.kind {
		case FileNode:
			out = append(out, &Node{
				Kind:           FileNode,
				DeclaredScopes: slices.Clone(e.declared),
				RootScopes:     b.fileScopes(parent, e.declared, parentScopes),
				Artifacts:      slices.Clone(e.files),
			})
		case ProjectNode:
			key := projectKey(e.project)
			n := &Node{
				Kind:           ProjectNode,
				Project:        e.project.Name(),
				DeclaredScopes: slices.Clone(e.declared),
				RootScopes:     b.rootScopes[key].Slice(),
				Artifacts:      e.project.Outputs(),
			}
			if !b.onPath[key] {
				b.onPath[key] = true
				n.Children = b.children(key, n.RootScopes)
				delete(b.onPath, key)
			}
			out = append(out, n)
		case ModuleNode:
			out = append(out, b.module(e))
		}
	}
	return out
}

func (b *builder) module(e edge) *Node {
	id := e.module
	callers := b.p.callers[id]
	first := callers[e.callers[0]]
	key := id.String()
	n := &Node{
		Kind:           ModuleNode,
		Module:         id,
		Requested:      first.requested,
		DeclaredScopes: slices.Clone(first.declared),
		RootScopes:     b.rootScopes[key].Slice(),
	}
	if p, ok := b.p.unresolved[id]; ok {
		n.Coordinate = coordinate.New(id, first.requested, first.specs...)
		n.Problem = &p
		return n
	}

	selected := b.p.selection[id]
	n.Resolved = selected
	n.Coordinate = coordinate.New(id, selected, first.specs...)

	// A parent may declare the same module more than once; the reference
	// survives when any of its declarations admits the selected version.
	admitted := false
	for _, i := range e.callers {
		if callers[i].requested.Admits(selected) {
			admitted = true
			n.Requested = callers[i].requested
			n.DeclaredScopes = slices.Clone(callers[i].declared)
			n.Coordinate = coordinate.New(id, selected, callers[i].specs...)
			break
		}
	}
	if !admitted {
		n.Evicted = true
		b.evictions++
		return n
	}

	n.Artifacts = slices.Clone(b.artifacts[id])
	if p := b.artifactProblems[id]; p != nil {
		cp := *p
		n.Problem = &cp
	}
	if b.onPath[key] {
		return n
	}
	b.onPath[key] = true
	n.Children = b.children(key, n.RootScopes)
	delete(b.onPath, key)
	return n
}

func (b *builder) fileScopes(parent string, declared, parentScopes []scope.Scope) []scope.Scope {
	if parent != rootKey {
		return slices.Clone(parentScopes)
	}
	if len(declared) == 0 {
		return b.closure.Slice()
	}
	return slices.Clone(declared)
}
