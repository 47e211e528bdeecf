package arbor

import (
	"math"
	"sort"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// traverseScene collects render commands without touching a draw target, so
// tests can inspect the command list headlessly.
func traverseScene(s *Scene) {
	s.commands = s.commands[:0]
	s.commandsDirtyThisFrame = false
	updateWorldTransform(s.root, identityTransform, 1.0, false)
	treeOrder := 0
	s.traverse(s.root, identityTransform, 1.0, false, &treeOrder)
}

// markerRegion is the stock 48x48 marker artwork footprint.
func markerRegion() TextureRegion {
	return TextureRegion{Width: 48, Height: 48, OriginalW: 48, OriginalH: 48}
}

// --- Command emission ---

func TestTraverseEmission(t *testing.T) {
	cases := []struct {
		name  string
		build func(root *Node)
		want  int
	}{
		{
			"visible marker emits one sprite command",
			func(root *Node) {
				root.AddChild(NewSprite("marker", markerRegion()))
			},
			1,
		},
		{
			"hidden marker emits nothing",
			func(root *Node) {
				m := NewSprite("marker", markerRegion())
				m.Visible = false
				root.AddChild(m)
			},
			0,
		},
		{
			"hiding a tier hides every marker in it",
			func(root *Node) {
				tier := NewContainer("tier2")
				tier.Visible = false
				tier.AddChild(NewSprite("m1", markerRegion()))
				tier.AddChild(NewSprite("m2", markerRegion()))
				root.AddChild(tier)
			},
			0,
		},
		{
			"bare container emits nothing",
			func(root *Node) {
				root.AddChild(NewContainer("tier1"))
			},
			0,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := NewScene()
			c.build(s.Root())
			traverseScene(s)
			if len(s.commands) != c.want {
				t.Fatalf("commands = %d, want %d", len(s.commands), c.want)
			}
			if c.want == 1 && s.commands[0].Type != CommandSprite {
				t.Errorf("Type = %d, want CommandSprite", s.commands[0].Type)
			}
		})
	}
}

func TestRenderableFalseSkipsSelfNotChildren(t *testing.T) {
	s := NewScene()
	group := NewSprite("group", markerRegion())
	group.Renderable = false
	badge := NewSprite("badge", TextureRegion{Width: 16, Height: 16, OriginalW: 16, OriginalH: 16})
	group.AddChild(badge)
	s.Root().AddChild(group)

	traverseScene(s)

	if len(s.commands) != 1 {
		t.Fatalf("commands = %d, want just the badge", len(s.commands))
	}
	if s.commands[0].TextureRegion.Width != 16 {
		t.Error("the surviving command should be the badge, not the group")
	}
}

func TestTreeOrderStrictlyIncreases(t *testing.T) {
	s := NewScene()
	for _, name := range []string{"disc", "ring", "badge"} {
		s.Root().AddChild(NewSprite(name, markerRegion()))
	}

	traverseScene(s)

	if len(s.commands) != 3 {
		t.Fatalf("commands = %d, want 3", len(s.commands))
	}
	prev := -1
	for i, cmd := range s.commands {
		if cmd.treeOrder <= prev {
			t.Errorf("treeOrder not increasing at %d: %d after %d", i, cmd.treeOrder, prev)
		}
		prev = cmd.treeOrder
	}
}

func TestCommandCarriesCumulativeAlpha(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	tier.Alpha = 0.5
	marker := NewSprite("marker", markerRegion())
	marker.Alpha = 0.8
	tier.AddChild(marker)
	s.Root().AddChild(tier)

	traverseScene(s)

	if len(s.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(s.commands))
	}
	if got := float64(s.commands[0].Color.A); math.Abs(got-0.4) > 1e-6 {
		t.Errorf("Color.A = %v, want 0.5*0.8", got)
	}
}

// --- Command ordering ---

func TestSortByRenderLayerThenGlobalOrder(t *testing.T) {
	s := NewScene()
	rope := NewSprite("rope", markerRegion())
	rope.RenderLayer = 1
	bg := NewSprite("bg", markerRegion())
	bg.RenderLayer = 0
	late := NewSprite("late", markerRegion())
	late.GlobalOrder = 10
	early := NewSprite("early", markerRegion())
	early.GlobalOrder = 5
	for _, n := range []*Node{rope, bg, late, early} {
		s.Root().AddChild(n)
	}

	traverseScene(s)
	s.mergeSort()

	// Layer 0 first; inside a layer, GlobalOrder decides.
	if s.commands[0].GlobalOrder != 0 || s.commands[0].RenderLayer != 0 {
		t.Errorf("first = layer %d order %d, want layer 0 order 0",
			s.commands[0].RenderLayer, s.commands[0].GlobalOrder)
	}
	if s.commands[1].GlobalOrder != 5 || s.commands[2].GlobalOrder != 10 {
		t.Errorf("orders = %d, %d, want 5 then 10",
			s.commands[1].GlobalOrder, s.commands[2].GlobalOrder)
	}
	if s.commands[3].RenderLayer != 1 {
		t.Errorf("last layer = %d, want 1", s.commands[3].RenderLayer)
	}
}

func TestSortKeepsTreeOrderWithinLayer(t *testing.T) {
	s := NewScene()
	for i := uint16(1); i <= 5; i++ {
		s.Root().AddChild(NewSprite("", TextureRegion{Width: i, OriginalW: i, OriginalH: 1}))
	}

	traverseScene(s)
	s.mergeSort()

	for i := uint16(0); i < 5; i++ {
		if s.commands[i].TextureRegion.Width != i+1 {
			t.Errorf("commands[%d].Width = %d, want %d", i, s.commands[i].TextureRegion.Width, i+1)
		}
	}
}

func TestZIndexReordersSiblings(t *testing.T) {
	s := NewScene()
	top := NewSprite("top", TextureRegion{Width: 1, OriginalW: 1, OriginalH: 1})
	top.SetZIndex(2)
	bottom := NewSprite("bottom", TextureRegion{Width: 2, OriginalW: 2, OriginalH: 1})
	bottom.SetZIndex(0)
	mid := NewSprite("mid", TextureRegion{Width: 3, OriginalW: 3, OriginalH: 1})
	mid.SetZIndex(1)
	s.Root().AddChild(top)
	s.Root().AddChild(bottom)
	s.Root().AddChild(mid)

	traverseScene(s)

	widths := []uint16{}
	for _, cmd := range s.commands {
		widths = append(widths, cmd.TextureRegion.Width)
	}
	// z 0, 1, 2 corresponds to widths 2, 3, 1.
	if len(widths) != 3 || widths[0] != 2 || widths[1] != 3 || widths[2] != 1 {
		t.Errorf("emission order by width = %v, want [2 3 1]", widths)
	}
}

// --- mergeSort ---

func sortKeyLess(a, b RenderCommand) bool {
	if a.RenderLayer != b.RenderLayer {
		return a.RenderLayer < b.RenderLayer
	}
	if a.GlobalOrder != b.GlobalOrder {
		return a.GlobalOrder < b.GlobalOrder
	}
	return a.treeOrder < b.treeOrder
}

func TestMergeSortAgreesWithStdlib(t *testing.T) {
	s := NewScene()
	input := []RenderCommand{
		{RenderLayer: 2, treeOrder: 1},
		{RenderLayer: 0, GlobalOrder: 3, treeOrder: 2},
		{RenderLayer: 0, GlobalOrder: 1, treeOrder: 3},
		{RenderLayer: 1, treeOrder: 4},
		{RenderLayer: 0, GlobalOrder: 1, treeOrder: 5},
		{RenderLayer: 2, treeOrder: 6},
		{RenderLayer: 0, treeOrder: 7},
	}

	want := make([]RenderCommand, len(input))
	copy(want, input)
	sort.SliceStable(want, func(i, j int) bool { return sortKeyLess(want[i], want[j]) })

	s.commands = make([]RenderCommand, len(input))
	copy(s.commands, input)
	s.mergeSort()

	for i := range s.commands {
		got, exp := s.commands[i], want[i]
		if got.RenderLayer != exp.RenderLayer || got.GlobalOrder != exp.GlobalOrder || got.treeOrder != exp.treeOrder {
			t.Errorf("index %d: got (%d,%d,%d), want (%d,%d,%d)",
				i, got.RenderLayer, got.GlobalOrder, got.treeOrder,
				exp.RenderLayer, exp.GlobalOrder, exp.treeOrder)
		}
	}
}

func TestMergeSortIsStable(t *testing.T) {
	s := NewScene()
	s.commands = make([]RenderCommand, 100)
	for i := range s.commands {
		// Equal keys everywhere; only treeOrder distinguishes entries.
		s.commands[i] = RenderCommand{treeOrder: i}
	}

	s.mergeSort()

	for i := range s.commands {
		if s.commands[i].treeOrder != i {
			t.Fatalf("equal-key entries reordered at %d: treeOrder=%d", i, s.commands[i].treeOrder)
		}
	}
}

func TestMergeSortReusesScratchBuffer(t *testing.T) {
	s := NewScene()

	fill := func(n int) {
		s.commands = make([]RenderCommand, n)
		for i := range s.commands {
			s.commands[i] = RenderCommand{treeOrder: n - i}
		}
	}

	fill(50)
	s.mergeSort()
	grown := cap(s.sortBuf)

	fill(30)
	s.mergeSort()
	if cap(s.sortBuf) != grown {
		t.Errorf("scratch buffer reallocated: cap %d then %d", grown, cap(s.sortBuf))
	}
}

func TestMergeSortDegenerateInputs(t *testing.T) {
	s := NewScene()
	s.commands = nil
	s.mergeSort()

	s.commands = []RenderCommand{{treeOrder: 7}}
	s.mergeSort()
	if s.commands[0].treeOrder != 7 {
		t.Error("single command should pass through untouched")
	}
}

func TestMergeSortSkipsCleanReplayFrame(t *testing.T) {
	s := NewScene()
	s.commands = make([]RenderCommand, 10)
	for i := range s.commands {
		s.commands[i] = RenderCommand{treeOrder: i}
	}
	// Frames built entirely from cached subtrees arrive pre-sorted.
	s.commandsDirtyThisFrame = false
	s.mergeSort()

	if len(s.sortBuf) != 0 {
		t.Error("clean pre-sorted frame should not grow the scratch buffer")
	}
	for i := range s.commands {
		if s.commands[i].treeOrder != i {
			t.Fatalf("order disturbed at %d", i)
		}
	}
}

// --- Cached subtrees ---

// cachedTierScene builds a tier of faded markers, optionally recorded as a
// cached subtree.
func cachedTierScene(cached bool) *Scene {
	s := NewScene()
	tier := NewContainer("tier")
	for i := 0; i < 10; i++ {
		m := NewSprite("marker", markerRegion())
		m.X = float64(i * 90)
		m.Alpha = 0.8
		tier.AddChild(m)
	}
	s.Root().AddChild(tier)
	if cached {
		tier.SetCacheAsTree(true, CacheTreeManual)
	}
	return s
}

func TestCachedTierReplayMatchesLiveTraverse(t *testing.T) {
	live := cachedTierScene(false)
	cached := cachedTierScene(true)

	traverseScene(live)
	traverseScene(cached) // record
	traverseScene(cached) // replay

	if len(cached.commands) != len(live.commands) {
		t.Fatalf("command count: replay=%d, live=%d", len(cached.commands), len(live.commands))
	}
	for i := range cached.commands {
		r, l := cached.commands[i], live.commands[i]
		if r.Transform != l.Transform {
			t.Errorf("cmd[%d] transform: replay %v, live %v", i, r.Transform, l.Transform)
		}
		if r.Color != l.Color {
			t.Errorf("cmd[%d] color: replay %v, live %v", i, r.Color, l.Color)
		}
		if r.TextureRegion != l.TextureRegion {
			t.Errorf("cmd[%d] region: replay %v, live %v", i, r.TextureRegion, l.TextureRegion)
		}
	}
}

func TestManualCacheIgnoresChildSetters(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	marker := NewSprite("marker", markerRegion())
	tier.AddChild(marker)
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeManual)

	traverseScene(s) // record
	traverseScene(s) // replay

	marker.SetPosition(100, 100)
	traverseScene(s)

	if len(s.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(s.commands))
	}
	// Manual mode keeps replaying the stale recording.
	if tx := s.commands[0].Transform[4]; tx != 0 {
		t.Errorf("replayed tx = %v, want the recorded 0", tx)
	}

	tier.InvalidateCacheTree()
	traverseScene(s)
	if tx := s.commands[0].Transform[4]; tx != 100 {
		t.Errorf("tx after explicit invalidate = %v, want 100", tx)
	}
}

func TestAutoCacheInvalidatesOnChildSetter(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	marker := NewSprite("marker", markerRegion())
	tier.AddChild(marker)
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeAuto)

	traverseScene(s)
	traverseScene(s)

	marker.SetPosition(50, 50)
	traverseScene(s)

	if len(s.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(s.commands))
	}
	if tx := s.commands[0].Transform[4]; tx != 50 {
		t.Errorf("tx = %v, want the re-recorded 50", tx)
	}
}

func TestCachedTierPanRemapsTransforms(t *testing.T) {
	build := func() (*Scene, *Node) {
		s := NewScene()
		tier := NewContainer("tier")
		m := NewSprite("marker", markerRegion())
		m.X = 100
		tier.AddChild(m)
		s.Root().AddChild(tier)
		return s, tier
	}

	s, tier := build()
	tier.SetCacheAsTree(true, CacheTreeManual)
	traverseScene(s) // record before the pan

	// Moving the cached container is not a child edit: the recording stays
	// valid and replay applies the container's transform delta.
	tier.SetPosition(-50, -30)
	tier.SetScale(2, 2)

	ref, refTier := build()
	refTier.SetPosition(-50, -30)
	refTier.SetScale(2, 2)

	traverseScene(s)
	traverseScene(ref)

	if len(s.commands) != len(ref.commands) {
		t.Fatalf("command count: remapped=%d, live=%d", len(s.commands), len(ref.commands))
	}
	for i := range s.commands {
		for j := 0; j < 6; j++ {
			d := float64(s.commands[i].Transform[j] - ref.commands[i].Transform[j])
			if math.Abs(d) > 0.01 {
				t.Errorf("cmd[%d].Transform[%d]: remapped %v, live %v",
					i, j, s.commands[i].Transform[j], ref.commands[i].Transform[j])
			}
		}
	}
}

func TestCachedTierAlphaRemap(t *testing.T) {
	s := NewScene()
	panel := NewContainer("panel")
	panel.Alpha = 0.5
	tier := NewContainer("tier")
	tier.AddChild(NewSprite("marker", markerRegion()))
	panel.AddChild(tier)
	s.Root().AddChild(panel)
	tier.SetCacheAsTree(true, CacheTreeManual)

	traverseScene(s)
	if len(s.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(s.commands))
	}
	if a := float64(s.commands[0].Color.A); math.Abs(a-0.5) > 0.01 {
		t.Errorf("recorded alpha = %v, want 0.5", a)
	}

	// A fade on the ancestor shifts the cache root's world alpha; replay
	// rescales the recorded colors instead of re-recording.
	panel.SetAlpha(0.8)
	traverseScene(s)
	if a := float64(s.commands[0].Color.A); math.Abs(a-0.8) > 0.01 {
		t.Errorf("remapped alpha = %v, want 0.8", a)
	}
}

func TestCachedRegionSwapSamePage(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	marker := NewSprite("marker", markerRegion())
	tier.AddChild(marker)
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeManual)

	traverseScene(s)

	// Swapping to the unlocked artwork on the same page patches UVs in place.
	marker.SetTextureRegion(TextureRegion{Page: 0, X: 48, Width: 48, Height: 48, OriginalW: 48, OriginalH: 48})

	traverseScene(s)
	if len(s.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(s.commands))
	}
	if s.commands[0].TextureRegion.X != 48 {
		t.Errorf("replayed region X = %d, want the swapped 48", s.commands[0].TextureRegion.X)
	}
}

func TestCachedRegionSwapAcrossPagesInvalidates(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	marker := NewSprite("marker", markerRegion())
	tier.AddChild(marker)
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeAuto)

	traverseScene(s)

	marker.SetTextureRegion(TextureRegion{Page: 1, Width: 48, Height: 48, OriginalW: 48, OriginalH: 48})
	if !tier.cacheTreeDirty {
		t.Error("a page change cannot be patched and must invalidate the cache")
	}
}

func TestCacheInvalidatesOnTreeEdits(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	tier.AddChild(NewSprite("marker", markerRegion()))
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeAuto)

	traverseScene(s)
	if tier.cacheTreeDirty {
		t.Error("cache should be clean right after recording")
	}

	badge := NewSprite("badge", TextureRegion{Width: 16, Height: 16, OriginalW: 16, OriginalH: 16})
	tier.AddChild(badge)
	if !tier.cacheTreeDirty {
		t.Error("AddChild under a cached tier must invalidate")
	}

	traverseScene(s)
	tier.RemoveChild(badge)
	if !tier.cacheTreeDirty {
		t.Error("RemoveChild under a cached tier must invalidate")
	}
}

func TestRopeBlocksSubtreeCache(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	link := NewMesh("link", nil, []ebiten.Vertex{{}, {}, {}}, []uint16{0, 1, 2})
	tier.AddChild(link)
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeManual)

	traverseScene(s)

	// Rope meshes rebuild their vertices per frame, so the recording never
	// completes and the cache stays dirty.
	if !tier.cacheTreeDirty {
		t.Error("a mesh in the subtree should keep the cache dirty")
	}
}

func TestCleanReplayFrameNotMarkedDirty(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	for i := 0; i < 5; i++ {
		tier.AddChild(NewSprite("marker", markerRegion()))
	}
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeManual)

	traverseScene(s)
	if !s.commandsDirtyThisFrame {
		t.Error("the recording frame emits fresh commands and must be dirty")
	}

	traverseScene(s)
	if s.commandsDirtyThisFrame {
		t.Error("a pure replay frame should not be marked dirty")
	}
}

func TestDisableCacheDropsRecording(t *testing.T) {
	s := NewScene()
	tier := NewContainer("tier")
	tier.AddChild(NewSprite("marker", markerRegion()))
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeManual)

	traverseScene(s)
	traverseScene(s)

	tier.SetCacheAsTree(false)
	if tier.cacheTreeEnabled {
		t.Error("cache should be off")
	}
	if tier.cachedCommands != nil {
		t.Error("disabling should release the recorded commands")
	}

	traverseScene(s)
	if len(s.commands) != 1 {
		t.Fatalf("commands = %d, want 1 from the live traverse", len(s.commands))
	}
}

// --- Benchmarks ---

func markerGrid(count int) *Scene {
	s := NewScene()
	for i := 0; i < count; i++ {
		m := NewSprite("", markerRegion())
		m.X = float64(i%100) * 90
		m.Y = float64(i/100) * 90
		s.Root().AddChild(m)
	}
	return s
}

func BenchmarkTraverseMarkers(b *testing.B) {
	for _, count := range []int{1000, 10000} {
		b.Run(map[int]string{1000: "1k", 10000: "10k"}[count], func(b *testing.B) {
			s := markerGrid(count)
			traverseScene(s)

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				s.commands = s.commands[:0]
				treeOrder := 0
				s.traverse(s.root, identityTransform, 1.0, false, &treeOrder)
			}
		})
	}
}

func BenchmarkCachedTierReplay(b *testing.B) {
	s := NewScene()
	tier := NewContainer("tier")
	for i := 0; i < 1000; i++ {
		m := NewSprite("", markerRegion())
		m.X = float64(i)
		tier.AddChild(m)
	}
	s.Root().AddChild(tier)
	tier.SetCacheAsTree(true, CacheTreeManual)
	traverseScene(s)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		s.commands = s.commands[:0]
		treeOrder := 0
		s.traverse(s.root, identityTransform, 1.0, false, &treeOrder)
	}
}
