// SPDX-License-Identifier: MPL-2.0

package resolve_test

import (
	"testing"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

func TestNodeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node resolve.Node
		want string
	}{
		{"root", resolve.Node{Kind: resolve.RootNode, DeclaredScopes: []scope.Scope{scope.Compile}}, "dependencies"},
		{
			"same version",
			resolve.Node{Kind: resolve.ModuleNode, Module: id("org.a:a"), Requested: "1", Resolved: "1"},
			"org.a:a:1",
		},
		{
			"unspecified request",
			resolve.Node{Kind: resolve.ModuleNode, Module: id("org.a:a"), Resolved: "2"},
			"org.a:a -> 2",
		},
		{
			"evicted",
			resolve.Node{
				Kind: resolve.ModuleNode, Module: id("org.a:a"), Requested: "1", Resolved: "2",
				DeclaredScopes: []scope.Scope{scope.Runtime, scope.Test}, Evicted: true,
			},
			"org.a:a:1 -> 2 [runtime, test] (evicted)",
		},
		{
			"problem",
			resolve.Node{
				Kind: resolve.ModuleNode, Module: id("org.a:a"), Requested: "1",
				Problem: &resolve.Problem{Kind: resolve.ProblemUnresolved, Message: "not found"},
			},
			"org.a:a:1 (unresolved: not found)",
		},
		{"files", resolve.Node{Kind: resolve.FileNode, Artifacts: []string{"a.jar", "b.jar"}}, "files a.jar, b.jar"},
		{"project", resolve.Node{Kind: resolve.ProjectNode, Project: "core"}, "project core"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.node.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNodeCloneIsDeep(t *testing.T) {
	t.Parallel()

	child := &resolve.Node{Kind: resolve.ModuleNode, Module: id("org.a:b"), Artifacts: []string{"b.jar"}}
	n := &resolve.Node{Kind: resolve.RootNode, Children: []*resolve.Node{child}}

	cp := n.Clone()
	cp.Children[0].Artifacts[0] = "changed"
	cp.Children = append(cp.Children, &resolve.Node{})

	if child.Artifacts[0] != "b.jar" || len(n.Children) != 1 {
		t.Error("Clone() shares state with the original")
	}
}

func TestNodeWalkSkipsChildren(t *testing.T) {
	t.Parallel()

	leaf := &resolve.Node{Kind: resolve.ModuleNode, Module: id("org.a:c")}
	mid := &resolve.Node{Kind: resolve.ModuleNode, Module: id("org.a:b"), Children: []*resolve.Node{leaf}}
	root := &resolve.Node{Kind: resolve.RootNode, Children: []*resolve.Node{mid}}

	var seen []coordinate.ModuleID
	root.Walk(func(n *resolve.Node) bool {
		if n.Kind == resolve.ModuleNode {
			seen = append(seen, n.Module)
		}
		return n.Module != id("org.a:b")
	})
	if len(seen) != 1 {
		t.Errorf("Walk() visited %v, want only org.a:b", seen)
	}
}

func TestErrorReportString(t *testing.T) {
	t.Parallel()

	rep := resolve.ErrorReport{Problems: []resolve.Problem{
		{Module: id("org.a:z"), RequestedVersion: "1", Kind: resolve.ProblemUnresolved, Message: "not found"},
		{Module: id("org.a:d"), Kind: resolve.ProblemConflict, Message: "1.0 vs 2.0"},
	}}
	want := "2 dependency problem(s):\n  - org.a:z:1 (unresolved): not found\n  - org.a:d (conflict): 1.0 vs 2.0"
	if got := rep.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (resolve.ErrorReport{}).String(); got != "no problems" {
		t.Errorf("empty String() = %q", got)
	}
}
