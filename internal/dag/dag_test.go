// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	g := New()
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestTopologicalSort_ScopeChain(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("compile", "runtime")
	g.AddEdge("runtime", "test")
	g.AddEdge("provided", "test")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"compile", "provided", "runtime", "test"}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestTopologicalSort_ProjectDiamond(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("core", "api")
	g.AddEdge("core", "impl")
	g.AddEdge("api", "app")
	g.AddEdge("impl", "app")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order[0] != "core" || order[len(order)-1] != "app" || len(order) != 4 {
		t.Errorf("expected core first and app last, got %v", order)
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][2]string
		want  []string
	}{
		{"self loop", [][2]string{{"a", "a"}}, []string{"a", "a"}},
		{"two nodes", [][2]string{{"a", "b"}, {"b", "a"}}, []string{"b", "a", "b"}},
		{"three nodes", [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}, []string{"b", "c", "a", "b"}},
		{"cycle behind a tail", [][2]string{{"root", "x"}, {"x", "y"}, {"y", "x"}}, []string{"y", "x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			_, err := g.TopologicalSort()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected *CycleError, got %T: %v", err, err)
			}
			if !slices.Equal(cycleErr.Cycle, tt.want) {
				t.Errorf("Cycle = %v, want %v", cycleErr.Cycle, tt.want)
			}
			assertClosedPath(t, g, cycleErr.Cycle)
		})
	}
}

func assertClosedPath(t *testing.T, g *Graph, cycle []string) {
	t.Helper()
	if len(cycle) < 2 || cycle[0] != cycle[len(cycle)-1] {
		t.Fatalf("cycle %v is not closed", cycle)
	}
	for i := range len(cycle) - 1 {
		if !slices.Contains(g.Successors(cycle[i]), cycle[i+1]) {
			t.Errorf("cycle %v uses missing edge %s -> %s", cycle, cycle[i], cycle[i+1])
		}
	}
}

func TestTopologicalSort_DisconnectedComponents(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddNode("C")
	g.AddNode("D")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 4 {
		t.Errorf("expected 4 nodes, got %d: %v", len(order), order)
	}
	aIdx := slices.Index(order, "A")
	bIdx := slices.Index(order, "B")
	if aIdx >= bIdx {
		t.Errorf("A (idx %d) must come before B (idx %d) in %v", aIdx, bIdx, order)
	}
}

func TestAddEdge_Duplicate(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	if got := g.Successors("A"); !slices.Equal(got, []string{"B"}) {
		t.Errorf("Successors(A) = %v, want [B]", got)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(order, []string{"A", "B"}) {
		t.Errorf("expected [A, B], got %v", order)
	}
	if !g.HasNode("B") || g.HasNode("Z") || g.Len() != 2 {
		t.Errorf("unexpected node set: len=%d", g.Len())
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()
	err := &CycleError{Cycle: []string{"A", "B", "A"}}
	expected := "cycle detected: A -> B -> A"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
