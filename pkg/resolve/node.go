// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/scope"
	"github.com/kiln-build/kiln/pkg/version"
)

const (
	// RootNode is the synthetic node standing for the dependency set.
	RootNode NodeKind = iota
	// ModuleNode is a module resolved through a repository.
	ModuleNode
	// FileNode holds local files.
	FileNode
	// ProjectNode is another project of the same build.
	ProjectNode
)

type (
	// NodeKind tells what a Node stands for.
	NodeKind int

	// Node is one element of the resolved tree. The same module may appear
	// under several parents; each occurrence is its own Node.
	Node struct {
		Kind NodeKind

		// Module, Coordinate, Requested and Resolved are set for module
		// nodes. Coordinate carries the resolved version.
		Module     coordinate.ModuleID
		Coordinate coordinate.Coordinate
		Requested  version.Version
		Resolved   version.Version

		// Project is the project name for project nodes.
		Project string

		DeclaredScopes []scope.Scope
		// RootScopes are the scopes of the root declarations through which
		// this node is reached.
		RootScopes []scope.Scope

		// Artifacts are local paths: materialized artifacts for modules,
		// declared paths for files, outputs for projects.
		Artifacts []string
		Children  []*Node

		// Evicted is set when the requested version lost conflict
		// resolution. Evicted nodes have no children.
		Evicted bool
		Problem *Problem
	}
)

func (k NodeKind) String() string {
	switch k {
	case RootNode:
		return "root"
	case ModuleNode:
		return "module"
	case FileNode:
		return "file"
	case ProjectNode:
		return "project"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// InScope reports whether the node takes part in a request whose scope
// closure is closure.
func (n *Node) InScope(closure scope.Set) bool {
	return len(n.RootScopes) == 0 || closure.Intersects(n.RootScopes)
}

// Label returns the one-line description used by Render.
func (n *Node) Label() string {
	var sb strings.Builder
	switch n.Kind {
	case RootNode:
		sb.WriteString("dependencies")
	case ModuleNode:
		sb.WriteString(n.Module.String())
		switch {
		case n.Requested.IsUnspecified() && !n.Resolved.IsUnspecified():
			sb.WriteString(" -> " + n.Resolved.String())
		case n.Requested.IsUnspecified():
		case n.Resolved.IsUnspecified() || n.Resolved == n.Requested:
			sb.WriteString(":" + n.Requested.String())
		default:
			sb.WriteString(":" + n.Requested.String() + " -> " + n.Resolved.String())
		}
	case FileNode:
		sb.WriteString("files " + strings.Join(n.Artifacts, ", "))
	case ProjectNode:
		sb.WriteString("project " + n.Project)
	}
	if len(n.DeclaredScopes) > 0 && n.Kind != RootNode {
		names := make([]string, len(n.DeclaredScopes))
		for i, s := range n.DeclaredScopes {
			names[i] = s.String()
		}
		sb.WriteString(" [" + strings.Join(names, ", ") + "]")
	}
	if n.Evicted {
		sb.WriteString(" (evicted)")
	}
	if n.Problem != nil {
		fmt.Fprintf(&sb, " (%s: %s)", n.Problem.Kind, n.Problem.Message)
	}
	return sb.String()
}

// Render writes the subtree rooted at n.
func (n *Node) Render(w io.Writer) error {
	if _, err := fmt.Fprintln(w, n.Label()); err != nil {
		return err
	}
	return renderChildren(w, n.Children, "")
}

func renderChildren(w io.Writer, children []*Node, prefix string) error {
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		if _, err := fmt.Fprintln(w, prefix+branch+c.Label()); err != nil {
			return err
		}
		if err := renderChildren(w, c.Children, prefix+next); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.DeclaredScopes = slices.Clone(n.DeclaredScopes)
	cp.RootScopes = slices.Clone(n.RootScopes)
	cp.Artifacts = slices.Clone(n.Artifacts)
	if n.Problem != nil {
		p := *n.Problem
		cp.Problem = &p
	}
	cp.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = c.Clone()
	}
	return &cp
}
