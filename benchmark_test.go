package arbor

import (
	"math"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// setupMarkerCanvas builds a scene shaped like a populated skill canvas:
// n markers (disc + tier ring, two atlas pages) scattered on a grid, each
// marker interactable with a circular hit shape.
func setupMarkerCanvas(n int) *Scene {
	s := NewScene()
	s.RegisterPage(0, ebiten.NewImage(64, 64))
	s.RegisterPage(1, ebiten.NewImage(64, 64))

	discRegion := TextureRegion{Page: 0, Width: 48, Height: 48, OriginalW: 48, OriginalH: 48}
	ringRegion := TextureRegion{Page: 1, Width: 56, Height: 56, OriginalW: 56, OriginalH: 56}

	root := s.Root()
	for i := 0; i < n; i++ {
		m := NewContainer("marker")
		m.X = float64(i%100) * 90
		m.Y = float64(i/100) * 90
		m.Interactable = true
		m.HitShape = HitCircle{Radius: 28}

		disc := NewSprite("disc", discRegion)
		disc.SetPivot(24, 24)
		m.AddChild(disc)

		ring := NewSprite("ring", ringRegion)
		ring.SetPivot(28, 28)
		m.AddChild(ring)

		root.AddChild(m)
	}
	return s
}

// --- Canvas draw ---

func BenchmarkCanvasDrawStatic(b *testing.B) {
	for _, mode := range []struct {
		name string
		mode BatchMode
	}{
		{"immediate", BatchModeImmediate},
		{"coalesced", BatchModeCoalesced},
	} {
		b.Run(mode.name, func(b *testing.B) {
			s := setupMarkerCanvas(2000)
			s.SetBatchMode(mode.mode)
			screen := ebiten.NewImage(1280, 800)
			s.Draw(screen) // warmup fills the sort buffer

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				s.Draw(screen)
			}
		})
	}
}

func BenchmarkCanvasDrawPanning(b *testing.B) {
	s := setupMarkerCanvas(2000)
	s.SetBatchMode(BatchModeCoalesced)
	cam := s.NewCamera(Rect{Width: 1280, Height: 800})
	screen := ebiten.NewImage(1280, 800)
	s.Draw(screen)

	b.ResetTimer()
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		// Drift the camera so every frame recomputes the view and culls a
		// different slice of the canvas.
		cam.X = 2000 + 1500*math.Sin(float64(i)*0.01)
		cam.Y = 2000 + 1500*math.Cos(float64(i)*0.01)
		s.Update()
		s.Draw(screen)
		i++
	}
}

func BenchmarkCanvasCulling(b *testing.B) {
	for _, enabled := range []bool{true, false} {
		name := "off"
		if enabled {
			name = "on"
		}
		b.Run(name, func(b *testing.B) {
			s := setupMarkerCanvas(2000)
			cam := s.NewCamera(Rect{Width: 1280, Height: 800})
			cam.CullEnabled = enabled
			screen := ebiten.NewImage(1280, 800)
			s.Update()
			s.Draw(screen)

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				s.Draw(screen)
			}
		})
	}
}

// --- Drag-style transform churn ---

func BenchmarkTransformAllDirty(b *testing.B) {
	s := setupMarkerCanvas(2000)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		markSubtreeDirty(s.Root())
		updateWorldTransform(s.Root(), identityTransform, 1.0, false)
	}
}

func BenchmarkTransformAllClean(b *testing.B) {
	s := setupMarkerCanvas(2000)
	updateWorldTransform(s.Root(), identityTransform, 1.0, true)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		updateWorldTransform(s.Root(), identityTransform, 1.0, false)
	}
}

func BenchmarkCommandSort(b *testing.B) {
	s := setupMarkerCanvas(2000)
	screen := ebiten.NewImage(1280, 800)
	s.Draw(screen)

	saved := make([]RenderCommand, len(s.commands))
	copy(saved, s.commands)
	s.mergeSort() // warm the merge buffer

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		s.commands = s.commands[:len(saved)]
		copy(s.commands, saved)
		s.mergeSort()
	}
}

// --- Pointer hit testing ---

func BenchmarkHitTestMarkers(b *testing.B) {
	s := setupMarkerCanvas(1000)
	updateWorldTransform(s.root, identityTransform, 1.0, true)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		s.hitTest(4500, 450)
	}
}

// --- Rope links ---

func BenchmarkRopeLayerUpdate(b *testing.B) {
	const ropes = 200
	s := setupMarkerCanvas(ropes + 1)
	layer := NewContainer("links")
	s.Root().AddChild(layer)

	set := make([]*Rope, ropes)
	starts := make([]Vec2, ropes)
	ends := make([]Vec2, ropes)
	for i := range set {
		starts[i] = Vec2{X: float64(i%100) * 90, Y: float64(i/100) * 90}
		ends[i] = Vec2{X: float64((i+1)%100) * 90, Y: float64((i+1)/100) * 90}
		rope, node := NewRope("link", nil, []Vec2{starts[i], ends[i]}, RopeConfig{
			Width:    5,
			JoinMode: RopeJoinBevel,
			Segments: 24,
			Start:    &starts[i],
			End:      &ends[i],
		})
		layer.AddChild(node)
		set[i] = rope
	}

	b.ResetTimer()
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		// Endpoints move every frame while a marker is dragged.
		for j, r := range set {
			ends[j].Y += math.Sin(float64(i+j)) * 0.5
			r.Update()
		}
		i++
	}
}

// --- Unlock burst particles ---

func unlockBurstConfig(maxParticles int) EmitterConfig {
	return EmitterConfig{
		MaxParticles: maxParticles,
		EmitRate:     100000,
		Lifetime:     Range{Min: 10, Max: 10},
		Speed:        Range{Min: 40, Max: 160},
		Angle:        Range{Min: 0, Max: 2 * math.Pi},
		StartScale:   Range{Min: 1, Max: 1},
		EndScale:     Range{Min: 0.1, Max: 0.1},
		StartAlpha:   Range{Min: 1, Max: 1},
		EndAlpha:     Range{Min: 0, Max: 0},
		StartColor:   Color{1, 0.9, 0.5, 1},
		EndColor:     Color{1, 0.4, 0.1, 1},
		Region: TextureRegion{
			Page:      magentaPlaceholderPage,
			Width:     8,
			Height:    8,
			OriginalW: 8,
			OriginalH: 8,
		},
	}
}

func BenchmarkUnlockBurstUpdate(b *testing.B) {
	emitter := newParticleEmitter(unlockBurstConfig(5000))
	emitter.Start()
	for emitter.alive < 5000 {
		emitter.update(1.0 / 60.0)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		emitter.update(1.0 / 60.0)
	}
}

func BenchmarkUnlockBurstDraw(b *testing.B) {
	for _, mode := range []struct {
		name string
		mode BatchMode
	}{
		{"immediate", BatchModeImmediate},
		{"coalesced", BatchModeCoalesced},
	} {
		b.Run(mode.name, func(b *testing.B) {
			s := NewScene()
			s.SetBatchMode(mode.mode)
			node := NewParticleEmitter("burst", unlockBurstConfig(1000))
			node.Emitter.Start()
			for node.Emitter.alive < 1000 {
				node.Emitter.update(1.0 / 60.0)
			}
			s.Root().AddChild(node)
			screen := ebiten.NewImage(1280, 800)
			s.Draw(screen)

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				s.Draw(screen)
			}
		})
	}
}

// --- Link glow filter ---

func BenchmarkGlowFilteredLayer(b *testing.B) {
	s := NewScene()
	s.RegisterPage(0, ebiten.NewImage(64, 64))
	region := TextureRegion{Page: 0, Width: 32, Height: 32, OriginalW: 32, OriginalH: 32}

	layer := NewContainer("links")
	layer.Filters = []Filter{NewGlowFilter(6, Color{0.5, 0.8, 1, 1})}
	for i := 0; i < 100; i++ {
		sp := NewSprite("seg", region)
		sp.X = float64(i%10) * 40
		sp.Y = float64(i/10) * 40
		layer.AddChild(sp)
	}
	s.Root().AddChild(layer)
	screen := ebiten.NewImage(640, 480)
	s.Draw(screen)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		s.Draw(screen)
	}
}

// --- Focus layer ---

func BenchmarkFocusLayerRedraw(b *testing.B) {
	fl := NewFocusLayer(512, 512, 0.7)
	defer fl.Dispose()

	for i := 0; i < 50; i++ {
		fl.AddSpot(&Spot{
			X:         float64(i%10) * 50,
			Y:         float64(i/10) * 50,
			Radius:    30,
			Intensity: 0.8,
			Enabled:   true,
		})
	}
	fl.Redraw()

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		fl.Redraw()
	}
}
