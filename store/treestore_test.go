package store

import (
	"strings"
	"testing"

	"github.com/phanxgames/arbor/tree"
)

func newTestTree() *tree.Tree {
	t := tree.New()
	a := t.AddNode(&tree.Node{Title: "Forage", X: 100, Y: 50, Difficulty: 3})
	b := t.AddNode(&tree.Node{Title: "Herbalism", X: 260, Y: -20, Difficulty: 12, Unlocked: true})
	t.AddObjective(a.ID, "collect 5 herbs")
	t.AddObjective(a.ID, "visit the grove")
	t.ToggleObjective(a.ID, 0)
	t.AddEdge(a.ID, b.ID, tree.EdgeCurved)
	return t
}

func TestSaveAllRoundTrip(t *testing.T) {
	kv := NewMemKV()
	s := NewTreeStore(kv)

	orig := newTestTree()
	if err := s.SaveAll(orig); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	// index + edges + 2 node records
	if kv.Len() != 4 {
		t.Errorf("stored keys = %d, want 4", kv.Len())
	}

	got := s.Load()
	if len(got.Nodes) != 2 {
		t.Fatalf("loaded %d nodes, want 2", len(got.Nodes))
	}
	a := got.FindNode("n1")
	if a == nil {
		t.Fatal("node n1 not loaded")
	}
	if a.Title != "Forage" || a.X != 100 || a.Y != 50 || a.Difficulty != 3 {
		t.Errorf("n1 = %+v, fields lost in round trip", a)
	}
	if len(a.Objectives) != 2 || !a.Objectives[0].Done || a.Objectives[1].Done {
		t.Errorf("n1 objectives = %v, want first done only", a.Objectives)
	}
	if len(got.Edges) != 1 || got.Edges[0].Kind != tree.EdgeCurved {
		t.Errorf("edges = %v, want one curved edge", got.Edges)
	}
}

func TestLoadEmptyStore(t *testing.T) {
	s := NewTreeStore(NewMemKV())
	got := s.Load()
	if len(got.Nodes) != 0 || len(got.Edges) != 0 {
		t.Errorf("empty store loaded %d nodes, %d edges", len(got.Nodes), len(got.Edges))
	}
}

func TestLoadMalformedIndex(t *testing.T) {
	kv := NewMemKV()
	kv.Set("skilltree.nodes", []byte("{not json"))
	got := NewTreeStore(kv).Load()
	if len(got.Nodes) != 0 {
		t.Errorf("malformed index loaded %d nodes, want 0", len(got.Nodes))
	}
}

func TestLoadSkipsBadRecords(t *testing.T) {
	kv := NewMemKV()
	s := NewTreeStore(kv)
	if err := s.SaveAll(newTestTree()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	// Corrupt one record and drop nothing else.
	kv.Set("skilltree.node.n1", []byte("garbage"))
	got := s.Load()
	if len(got.Nodes) != 1 {
		t.Fatalf("loaded %d nodes, want 1 (bad record skipped)", len(got.Nodes))
	}
	if got.Nodes[0].ID != "n2" {
		t.Errorf("surviving node = %q, want n2", got.Nodes[0].ID)
	}
}

func TestLoadSkipsMissingRecords(t *testing.T) {
	kv := NewMemKV()
	kv.Set("skilltree.nodes", []byte(`["n1","n2"]`))
	kv.Set("skilltree.node.n2", []byte(`{"id":"n2","title":"Here"}`))
	got := NewTreeStore(kv).Load()
	if len(got.Nodes) != 1 || got.Nodes[0].ID != "n2" {
		t.Errorf("loaded %v, want only n2 (indexed id without record skipped)", got.Nodes)
	}
}

func TestLoadMalformedEdges(t *testing.T) {
	kv := NewMemKV()
	s := NewTreeStore(kv)
	if err := s.SaveAll(newTestTree()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	kv.Set("skilltree.edges", []byte(";;;"))
	got := s.Load()
	if len(got.Edges) != 0 {
		t.Errorf("malformed edge list loaded %d edges, want 0", len(got.Edges))
	}
	if len(got.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2 (edge damage must not touch nodes)", len(got.Nodes))
	}
}

func TestLoadClampsStoredDifficulty(t *testing.T) {
	kv := NewMemKV()
	kv.Set("skilltree.nodes", []byte(`["n1"]`))
	kv.Set("skilltree.node.n1", []byte(`{"id":"n1","difficulty":99}`))
	got := NewTreeStore(kv).Load()
	if got.Nodes[0].Difficulty != tree.MaxDifficulty {
		t.Errorf("Difficulty = %d, want %d (clamped on load)", got.Nodes[0].Difficulty, tree.MaxDifficulty)
	}
}

func TestLoadKeyWinsOverRecordID(t *testing.T) {
	kv := NewMemKV()
	kv.Set("skilltree.nodes", []byte(`["n1"]`))
	kv.Set("skilltree.node.n1", []byte(`{"id":"liar"}`))
	got := NewTreeStore(kv).Load()
	if got.Nodes[0].ID != "n1" {
		t.Errorf("ID = %q, want n1 (the key names the node)", got.Nodes[0].ID)
	}
}

func TestLoadContinuesIDSequence(t *testing.T) {
	kv := NewMemKV()
	s := NewTreeStore(kv)
	if err := s.SaveAll(newTestTree()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	got := s.Load()
	n := got.AddNode(&tree.Node{})
	if n.ID != "n3" {
		t.Errorf("id after load = %q, want n3 (generator continues past stored ids)", n.ID)
	}
}

func TestDeleteNode(t *testing.T) {
	kv := NewMemKV()
	s := NewTreeStore(kv)
	tr := newTestTree()
	if err := s.SaveAll(tr); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	tr.RemoveNode("n1")
	if err := s.DeleteNode(tr, "n1"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	got := s.Load()
	if len(got.Nodes) != 1 || got.Nodes[0].ID != "n2" {
		t.Errorf("after delete loaded %v, want only n2", got.Nodes)
	}
	if len(got.Edges) != 0 {
		t.Errorf("after delete loaded %d edges, want 0 (cascade persisted)", len(got.Edges))
	}
	if _, ok, _ := kv.Get("skilltree.node.n1"); ok {
		t.Error("deleted node record still present in KV")
	}
}

func TestSaveNodePersistsMutation(t *testing.T) {
	kv := NewMemKV()
	s := NewTreeStore(kv)
	tr := newTestTree()
	if err := s.SaveAll(tr); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	// The drag-release path: move, then persist just that node.
	tr.MoveNode("n2", -75, 300)
	if err := s.SaveNode(tr, tr.FindNode("n2")); err != nil {
		t.Fatalf("SaveNode: %v", err)
	}

	got := s.Load()
	n := got.FindNode("n2")
	if n.X != -75 || n.Y != 300 {
		t.Errorf("persisted position = (%v, %v), want (-75, 300)", n.X, n.Y)
	}
}

func TestBadgerKVRoundTrip(t *testing.T) {
	kv, err := OpenBadgerInMemory()
	if err != nil {
		t.Fatalf("OpenBadgerInMemory: %v", err)
	}
	defer kv.Close()

	if _, ok, err := kv.Get("absent"); err != nil || ok {
		t.Errorf("Get(absent) = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
	if err := kv.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := kv.Get("k")
	if err != nil || !ok || string(val) != "v" {
		t.Errorf("Get(k) = %q ok=%v err=%v, want v", val, ok, err)
	}
	if err := kv.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get("k"); ok {
		t.Error("key still present after Delete")
	}
}

func TestTreeStoreOnBadger(t *testing.T) {
	kv, err := OpenBadgerInMemory()
	if err != nil {
		t.Fatalf("OpenBadgerInMemory: %v", err)
	}
	s := NewTreeStore(kv)
	defer s.Close()

	if err := s.SaveAll(newTestTree()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	got := s.Load()
	if len(got.Nodes) != 2 || len(got.Edges) != 1 {
		t.Errorf("badger round trip loaded %d nodes, %d edges; want 2, 1", len(got.Nodes), len(got.Edges))
	}
}

func TestWriteCSV(t *testing.T) {
	tr := tree.New()
	tr.AddNode(&tree.Node{X: 10, Y: 20})
	tr.AddNode(&tree.Node{X: -3.5, Y: 0.25})

	var sb strings.Builder
	if err := WriteCSV(tr, &sb); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "n1,10,20\nn2,-3.5,0.25\n"
	if sb.String() != want {
		t.Errorf("csv = %q, want %q", sb.String(), want)
	}
}

func TestWriteCSVEmptyTree(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(tree.New(), &sb); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if sb.String() != "" {
		t.Errorf("csv of empty tree = %q, want empty", sb.String())
	}
}
