package app

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/store"
	"github.com/phanxgames/arbor/tree"
)

// newTestApp builds an editor over an in-memory store, optionally seeded.
func newTestApp(t *testing.T, seed func(*tree.Tree)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Dir = t.TempDir()
	st := store.NewTreeStore(store.NewMemKV())
	if seed != nil {
		tr := tree.New()
		seed(tr)
		if err := st.SaveAll(tr); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return New(cfg, st)
}

func seedPair(tr *tree.Tree) {
	tr.AddNode(&tree.Node{ID: "n1", X: 0, Y: 0, Title: "First", Unlocked: true})
	tr.AddNode(&tree.Node{ID: "n2", X: 200, Y: 0, Title: "Second"})
	tr.AddEdge("n1", "n2", tree.EdgeStraight)
}

func TestNewBuildsMarkersAndLinks(t *testing.T) {
	a := newTestApp(t, seedPair)

	if len(a.markers) != 2 {
		t.Fatalf("markers = %d, want 2", len(a.markers))
	}
	if a.markers["n1"] == nil || a.markers["n2"] == nil {
		t.Fatal("markers should be keyed by node id")
	}
	if len(a.links.links) != 1 {
		t.Fatalf("links = %d, want 1", len(a.links.links))
	}
}

func TestMarkerSingleClickOpensViewDialog(t *testing.T) {
	a := newTestApp(t, seedPair)

	a.markerClick("n1")
	if a.dialog != nil {
		t.Fatal("dialog must not open before the double-click window passes")
	}
	a.elapsed += doubleClickWindow + 0.01
	a.runTimers()
	if a.dialog == nil {
		t.Fatal("view dialog should open after the double-click window")
	}
}

func TestMarkerDoubleClickFocusesInsteadOfOpening(t *testing.T) {
	a := newTestApp(t, seedPair)

	a.markerClick("n2")
	a.elapsed += 0.1
	a.markerClick("n2")

	a.elapsed += doubleClickWindow + 0.01
	a.runTimers()
	if a.dialog != nil {
		t.Fatal("double click should cancel the pending dialog")
	}
}

func TestCanvasDoubleClickOpensCreateDialog(t *testing.T) {
	a := newTestApp(t, nil)

	a.canvasClick(150, 80)
	if a.dialog != nil {
		t.Fatal("single canvas click should not open a dialog")
	}
	a.elapsed += 0.1
	a.canvasClick(154, 83) // within the slop radius
	if a.dialog == nil {
		t.Fatal("double canvas click should open the create dialog")
	}
}

func TestCanvasDoubleClickTooFarApart(t *testing.T) {
	a := newTestApp(t, nil)

	a.canvasClick(0, 0)
	a.elapsed += 0.1
	a.canvasClick(100, 100)
	if a.dialog != nil {
		t.Fatal("clicks far apart should not count as a double click")
	}
}

func TestEdgeModeCreatesAndTogglesEdge(t *testing.T) {
	a := newTestApp(t, func(tr *tree.Tree) {
		tr.AddNode(&tree.Node{ID: "n1"})
		tr.AddNode(&tree.Node{ID: "n2", X: 100})
	})

	a.edgeModeClick("n1", arbor.ModCtrl)
	if a.edgeSource != "n1" {
		t.Fatalf("edgeSource = %q, want n1", a.edgeSource)
	}
	if !a.markers["n1"].armed.Visible {
		t.Error("armed ring should show on the source marker")
	}

	a.edgeModeClick("n2", arbor.ModCtrl)
	if a.edgeSource != "" {
		t.Error("commit should disarm edge mode")
	}
	if len(a.tree.Edges) != 1 || a.tree.Edges[0].Kind != tree.EdgeStraight {
		t.Fatalf("edges = %v, want one straight edge", a.tree.Edges)
	}
	if len(a.links.links) != 1 {
		t.Errorf("links = %d, want 1", len(a.links.links))
	}

	// Same pair again removes the edge.
	a.edgeModeClick("n1", arbor.ModCtrl)
	a.edgeModeClick("n2", arbor.ModCtrl)
	if len(a.tree.Edges) != 0 {
		t.Fatalf("edges = %v, want none after toggle", a.tree.Edges)
	}
	if len(a.links.links) != 0 {
		t.Errorf("links = %d, want 0", len(a.links.links))
	}
}

func TestEdgeModeAltMakesCurvedEdge(t *testing.T) {
	a := newTestApp(t, func(tr *tree.Tree) {
		tr.AddNode(&tree.Node{ID: "n1"})
		tr.AddNode(&tree.Node{ID: "n2", X: 100})
	})

	a.edgeModeClick("n1", arbor.ModCtrl)
	a.edgeModeClick("n2", arbor.ModCtrl|arbor.ModAlt)
	if len(a.tree.Edges) != 1 || a.tree.Edges[0].Kind != tree.EdgeCurved {
		t.Fatalf("edges = %v, want one curved edge", a.tree.Edges)
	}
}

func TestEdgeModeSourceClickCancels(t *testing.T) {
	a := newTestApp(t, seedPair)

	a.edgeModeClick("n1", arbor.ModCtrl)
	a.edgeModeClick("n1", arbor.ModCtrl)
	if a.edgeSource != "" {
		t.Error("clicking the armed source should cancel edge mode")
	}
	if a.markers["n1"].armed.Visible {
		t.Error("armed ring should hide on cancel")
	}
}

func TestEdgeCommitPersists(t *testing.T) {
	kv := store.NewMemKV()
	st := store.NewTreeStore(kv)
	tr := tree.New()
	tr.AddNode(&tree.Node{ID: "n1"})
	tr.AddNode(&tree.Node{ID: "n2", X: 100})
	if err := st.SaveAll(tr); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Store.Dir = t.TempDir()
	a := New(cfg, st)

	a.edgeModeClick("n1", arbor.ModCtrl)
	a.edgeModeClick("n2", arbor.ModCtrl)

	reloaded := store.NewTreeStore(kv).Load()
	if len(reloaded.Edges) != 1 {
		t.Fatalf("reloaded edges = %d, want 1", len(reloaded.Edges))
	}
}

func TestApplyRulesUnlocksAndRestyles(t *testing.T) {
	a := newTestApp(t, func(tr *tree.Tree) {
		tr.AddNode(&tree.Node{
			ID:   "n1",
			Rule: "done(self) == total(self)",
			Objectives: []tree.Objective{
				{Text: "find the key", Done: true},
			},
		})
	})

	tn := a.tree.FindNode("n1")
	if !tn.Unlocked {
		t.Fatal("startup applyRules should have unlocked n1")
	}
	if !a.markers["n1"].halo.Visible {
		t.Error("unlocked marker should show its halo")
	}
}

func TestRulesDisabledByConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Dir = t.TempDir()
	cfg.Rules.Enabled = false
	st := store.NewTreeStore(store.NewMemKV())
	tr := tree.New()
	tr.AddNode(&tree.Node{ID: "n1", Rule: "true"})
	if err := st.SaveAll(tr); err != nil {
		t.Fatal(err)
	}

	a := New(cfg, st)
	if a.tree.FindNode("n1").Unlocked {
		t.Error("rules disabled, node must stay locked")
	}
}

func TestExportCSVWritesFile(t *testing.T) {
	a := newTestApp(t, seedPair)

	var exportedPath string
	a.exported = func(p string) { exportedPath = p }
	a.exportCSV()

	want := filepath.Join(a.cfg.Store.Dir, "nodes.csv")
	if exportedPath != want {
		t.Fatalf("exported to %q, want %q", exportedPath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("export should not be empty")
	}
}

func TestTimersFireOnceAndCancel(t *testing.T) {
	a := newTestApp(t, nil)

	var fired int
	a.after(1.0, func() { fired++ })
	canceled := a.after(1.0, func() { fired += 100 })
	canceled.canceled = true

	a.elapsed += 0.5
	a.runTimers()
	if fired != 0 {
		t.Fatal("timer fired early")
	}

	a.elapsed += 0.6
	a.runTimers()
	a.runTimers()
	if fired != 1 {
		t.Fatalf("fired = %d, want exactly 1", fired)
	}
}

func TestTimerCallbackMaySchedule(t *testing.T) {
	a := newTestApp(t, nil)

	var chained bool
	a.after(0.1, func() {
		a.after(0.1, func() { chained = true })
	})

	a.elapsed += 0.2
	a.runTimers()
	if chained {
		t.Fatal("chained timer must wait its own delay")
	}
	a.elapsed += 0.2
	a.runTimers()
	if !chained {
		t.Fatal("chained timer never fired")
	}
}

func TestCurveControlPerpendicular(t *testing.T) {
	start := arbor.Vec2{X: 0, Y: 0}
	end := arbor.Vec2{X: 100, Y: 0}
	c := curveControl(start, end)

	if c.X != 50 {
		t.Errorf("control X = %f, want 50 (midpoint)", c.X)
	}
	if math.Abs(c.Y-100*curveBow) > 1e-9 {
		t.Errorf("control Y = %f, want %f", c.Y, 100*curveBow)
	}
}

func TestDialogSuppressesCanvasState(t *testing.T) {
	a := newTestApp(t, seedPair)

	a.openViewDialog("n1")
	if a.dialog == nil {
		t.Fatal("view dialog should be registered as modal")
	}
	if !a.dim.Node().Visible {
		t.Error("dim layer should show behind a dialog")
	}
	if len(a.dim.Spots()) != 1 {
		t.Errorf("dim spots = %d, want 1 around the viewed marker", len(a.dim.Spots()))
	}

	a.dialog.close()
	if a.dialog != nil {
		t.Error("close should clear the modal dialog")
	}
	if a.dim.Node().Visible {
		t.Error("dim layer should hide when the dialog closes")
	}
}

func TestEditDialogDeleteRemovesEverything(t *testing.T) {
	a := newTestApp(t, seedPair)

	a.openEditDialog("n2")
	ed := a.dialog
	if ed == nil {
		t.Fatal("edit dialog did not open")
	}

	// Reach the delete path the button would take.
	a.tree.RemoveNode("n2")
	if err := a.store.DeleteNode(a.tree, "n2"); err != nil {
		t.Fatal(err)
	}
	a.removeMarker("n2")
	a.links.sync()

	if a.tree.FindNode("n2") != nil {
		t.Error("node should be gone from the tree")
	}
	if a.markers["n2"] != nil {
		t.Error("marker should be gone")
	}
	if len(a.links.links) != 0 {
		t.Errorf("links = %d, want 0 after deleting an endpoint", len(a.links.links))
	}
}

func TestMarkerRestyleTracksUnlock(t *testing.T) {
	a := newTestApp(t, seedPair)
	m := a.markers["n2"]

	if m.halo.Visible {
		t.Fatal("locked marker must not show a halo")
	}
	if len(m.root.Filters) != 1 {
		t.Fatalf("locked marker filters = %d, want desaturation only", len(m.root.Filters))
	}

	a.tree.SetUnlocked("n2", true)
	m.restyle()
	if !m.halo.Visible {
		t.Error("unlocked marker should show its halo")
	}
	if len(m.root.Filters) != 0 {
		t.Errorf("unlocked marker filters = %d, want none", len(m.root.Filters))
	}
}

func TestSyncPositionFollowsTree(t *testing.T) {
	a := newTestApp(t, seedPair)

	a.tree.MoveNode("n1", 500, -120)
	m := a.markers["n1"]
	m.syncPosition()
	if m.root.X != 500 || m.root.Y != -120 {
		t.Errorf("marker at (%f, %f), want (500, -120)", m.root.X, m.root.Y)
	}
}

func TestShiftDragPersistsNodePosition(t *testing.T) {
	a := newTestApp(t, seedPair)

	// n1 sits at world (0, 0), which the default camera puts at screen
	// (640, 400). Drag 120px right over 6 frames: press, four moves at
	// 24px world steps, release. The grab offset is taken at the first
	// move (world x=24), so the node follows the pointer from there and
	// lands at x=72 when the last move arrives at 96.
	a.world.InjectDragMod(640, 400, 760, 400, 6, arbor.ModShift, true)
	for i := 0; i < 8; i++ {
		a.world.Update()
	}

	tn := a.tree.FindNode("n1")
	if tn == nil {
		t.Fatal("n1 missing from tree")
	}
	if tn.X != 72 || tn.Y != 0 {
		t.Fatalf("n1 at (%f, %f) after drag, want (72, 0)", tn.X, tn.Y)
	}

	// Releasing the drag is a commit point: the per-node record must
	// already carry the new coordinates.
	raw, ok, err := a.store.KV().Get("skilltree.node.n1")
	if err != nil || !ok {
		t.Fatalf("stored node record: ok=%v err=%v", ok, err)
	}
	var stored tree.Node
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("stored record unmarshal: %v", err)
	}
	if stored.X != tn.X || stored.Y != tn.Y {
		t.Errorf("stored position (%f, %f), want (%f, %f)", stored.X, stored.Y, tn.X, tn.Y)
	}
	if m := a.markers["n1"]; m.root.X != tn.X || m.root.Y != tn.Y {
		t.Errorf("marker at (%f, %f), want (%f, %f)", m.root.X, m.root.Y, tn.X, tn.Y)
	}
}
