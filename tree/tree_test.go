package tree

import "testing"

func TestAddNodeAssignsIDs(t *testing.T) {
	tr := New()
	a := tr.AddNode(&Node{Title: "First"})
	b := tr.AddNode(&Node{Title: "Second"})
	if a.ID != "n1" {
		t.Errorf("first generated id = %q, want n1", a.ID)
	}
	if b.ID != "n2" {
		t.Errorf("second generated id = %q, want n2", b.ID)
	}
}

func TestAddNodeKeepsGivenID(t *testing.T) {
	tr := New()
	tr.AddNode(&Node{ID: "n7"})
	n := tr.AddNode(&Node{})
	if n.ID != "n8" {
		t.Errorf("generated id after n7 = %q, want n8", n.ID)
	}

	// Non-numeric ids don't disturb the generator.
	tr.AddNode(&Node{ID: "boss"})
	n = tr.AddNode(&Node{})
	if n.ID != "n9" {
		t.Errorf("generated id after custom id = %q, want n9", n.ID)
	}
}

func TestAddNodeClampsDifficulty(t *testing.T) {
	tr := New()
	n := tr.AddNode(&Node{Difficulty: 99})
	if n.Difficulty != MaxDifficulty {
		t.Errorf("Difficulty = %d, want %d", n.Difficulty, MaxDifficulty)
	}
	n = tr.AddNode(&Node{Difficulty: -5})
	if n.Difficulty != MinDifficulty {
		t.Errorf("Difficulty = %d, want %d", n.Difficulty, MinDifficulty)
	}
}

func TestClampDifficulty(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 0},
		{0, 0},
		{17, 17},
		{33, 33},
		{34, 33},
		{1000, 33},
	}
	for _, tt := range tests {
		if got := ClampDifficulty(tt.in); got != tt.want {
			t.Errorf("ClampDifficulty(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"17", 17},
		{" 33 ", 33},
		{"99", 33},
		{"-4", 0},
		{"12.9", 12},
		{"abc", 0},
		{"", 0},
		{"1e3", 33},
	}
	for _, tt := range tests {
		if got := ParseDifficulty(tt.in); got != tt.want {
			t.Errorf("ParseDifficulty(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFindNode(t *testing.T) {
	tr := New()
	n := tr.AddNode(&Node{Title: "Forage"})
	if got := tr.FindNode(n.ID); got != n {
		t.Errorf("FindNode(%q) = %v, want the added node", n.ID, got)
	}
	if got := tr.FindNode("missing"); got != nil {
		t.Errorf("FindNode(missing) = %v, want nil", got)
	}
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	tr := New()
	a := tr.AddNode(&Node{})
	b := tr.AddNode(&Node{})
	c := tr.AddNode(&Node{})
	tr.AddEdge(a.ID, b.ID, EdgeStraight)
	tr.AddEdge(b.ID, c.ID, EdgeCurved)
	tr.AddEdge(a.ID, c.ID, EdgeStraight)

	if !tr.RemoveNode(b.ID) {
		t.Fatal("RemoveNode returned false for existing node")
	}
	if len(tr.Nodes) != 2 {
		t.Errorf("len(Nodes) = %d, want 2", len(tr.Nodes))
	}
	if len(tr.Edges) != 1 {
		t.Fatalf("len(Edges) = %d, want 1 (edges touching removed node dropped)", len(tr.Edges))
	}
	if tr.Edges[0].From != a.ID || tr.Edges[0].To != c.ID {
		t.Errorf("surviving edge = %v, want %s-%s", tr.Edges[0], a.ID, c.ID)
	}

	if tr.RemoveNode("missing") {
		t.Error("RemoveNode returned true for unknown id")
	}
}

func TestMoveNode(t *testing.T) {
	tr := New()
	n := tr.AddNode(&Node{X: 1, Y: 2})
	tr.MoveNode(n.ID, 300, -40)
	if n.X != 300 || n.Y != -40 {
		t.Errorf("position = (%v, %v), want (300, -40)", n.X, n.Y)
	}
	tr.MoveNode("missing", 0, 0) // no-op, must not panic
}

func TestObjectives(t *testing.T) {
	tr := New()
	n := tr.AddNode(&Node{})
	tr.AddObjective(n.ID, "collect 5 herbs")
	tr.AddObjective(n.ID, "visit the grove")
	if len(n.Objectives) != 2 {
		t.Fatalf("len(Objectives) = %d, want 2", len(n.Objectives))
	}

	if done := tr.ToggleObjective(n.ID, 0); !done {
		t.Error("ToggleObjective first call = false, want true")
	}
	done, total := tr.Progress(n.ID)
	if done != 1 || total != 2 {
		t.Errorf("Progress = %d/%d, want 1/2", done, total)
	}
	if done := tr.ToggleObjective(n.ID, 0); done {
		t.Error("ToggleObjective second call = true, want false")
	}

	tr.SetObjectiveText(n.ID, 1, "visit the old grove")
	if n.Objectives[1].Text != "visit the old grove" {
		t.Errorf("objective text = %q after SetObjectiveText", n.Objectives[1].Text)
	}

	tr.RemoveObjective(n.ID, 0)
	if len(n.Objectives) != 1 || n.Objectives[0].Text != "visit the old grove" {
		t.Errorf("Objectives after remove = %v", n.Objectives)
	}

	// Out-of-range indexes are ignored.
	tr.RemoveObjective(n.ID, 5)
	tr.SetObjectiveText(n.ID, -1, "x")
	if tr.ToggleObjective(n.ID, 2) {
		t.Error("ToggleObjective out of range = true, want false")
	}
}

func TestProgressUnknownNode(t *testing.T) {
	tr := New()
	done, total := tr.Progress("missing")
	if done != 0 || total != 0 {
		t.Errorf("Progress(missing) = %d/%d, want 0/0", done, total)
	}
}

func TestAddEdgeToggle(t *testing.T) {
	tr := New()
	a := tr.AddNode(&Node{})
	b := tr.AddNode(&Node{})

	if !tr.AddEdge(a.ID, b.ID, EdgeCurved) {
		t.Error("first AddEdge = false, want true (added)")
	}
	if len(tr.Edges) != 1 {
		t.Fatalf("len(Edges) = %d, want 1", len(tr.Edges))
	}

	// Re-adding the same pair removes the edge, even with swapped endpoints.
	if tr.AddEdge(b.ID, a.ID, EdgeStraight) {
		t.Error("second AddEdge = true, want false (removed)")
	}
	if len(tr.Edges) != 0 {
		t.Errorf("len(Edges) = %d after toggle, want 0", len(tr.Edges))
	}
}

func TestAddEdgeToleratesMissingEndpoints(t *testing.T) {
	tr := New()
	tr.AddEdge("ghost1", "ghost2", EdgeStraight)
	if len(tr.Edges) != 1 {
		t.Fatalf("len(Edges) = %d, want 1 (dangling edges are kept)", len(tr.Edges))
	}
	if got := tr.ResolvedEdges(); len(got) != 0 {
		t.Errorf("ResolvedEdges = %v, want none for dangling edge", got)
	}
}

func TestAddEdgeDefaultsKind(t *testing.T) {
	tr := New()
	tr.AddEdge("a", "b", EdgeKind("wiggly"))
	if tr.Edges[0].Kind != EdgeStraight {
		t.Errorf("Kind = %q, want %q for unknown kind", tr.Edges[0].Kind, EdgeStraight)
	}
}

func TestRemoveEdgeEitherDirection(t *testing.T) {
	tr := New()
	tr.AddEdge("a", "b", EdgeStraight)
	if !tr.RemoveEdge("b", "a") {
		t.Error("RemoveEdge with swapped endpoints = false, want true")
	}
	if tr.RemoveEdge("a", "b") {
		t.Error("RemoveEdge on empty tree = true, want false")
	}
}

func TestResolvedEdgesSkipsStale(t *testing.T) {
	tr := New()
	a := tr.AddNode(&Node{})
	b := tr.AddNode(&Node{})
	c := tr.AddNode(&Node{})
	tr.AddEdge(a.ID, b.ID, EdgeStraight)
	tr.AddEdge(b.ID, c.ID, EdgeCurved)

	tr.RemoveNode(c.ID)
	// Recreate the stale reference by hand: RemoveNode cascaded the edge,
	// so put one back pointing at the gone node.
	tr.Edges = append(tr.Edges, Edge{From: b.ID, To: "gone", Kind: EdgeStraight})

	resolved := tr.ResolvedEdges()
	if len(resolved) != 1 {
		t.Fatalf("len(ResolvedEdges) = %d, want 1", len(resolved))
	}
	if resolved[0].From != a || resolved[0].To != b {
		t.Errorf("resolved endpoints = %v-%v, want a-b", resolved[0].From, resolved[0].To)
	}

	// The stale edge itself is still stored.
	if len(tr.Edges) != 2 {
		t.Errorf("len(Edges) = %d, want 2 (stale edge retained)", len(tr.Edges))
	}
}
