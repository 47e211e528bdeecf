package arbor

import (
	"math"
	"testing"
)

// sparkConfig is the unlock-burst spark preset used across these tests.
func sparkConfig(pool int) EmitterConfig {
	cfg := EmitterConfig{
		MaxParticles: pool,
		EmitRate:     100,
		Region:       TextureRegion{Width: 16, Height: 16, OriginalW: 16, OriginalH: 16},
	}
	cfg.Lifetime, cfg.Speed = Range{1.0, 1.0}, Range{100, 100}
	cfg.StartScale, cfg.EndScale = Range{1, 1}, Range{0.5, 0.5}
	cfg.StartAlpha, cfg.EndAlpha = Range{1, 1}, Range{0, 0}
	cfg.StartColor, cfg.EndColor = Color{1, 1, 1, 1}, Color{0, 0, 0, 1}
	return cfg
}

func TestEmitterPoolAllocation(t *testing.T) {
	e := newParticleEmitter(sparkConfig(500))
	if len(e.particles) != 500 {
		t.Errorf("pool = %d, want 500", len(e.particles))
	}
	if e.alive != 0 {
		t.Errorf("alive = %d, want 0 before Start", e.alive)
	}

	// Zero MaxParticles falls back to the stock pool size.
	e = newParticleEmitter(EmitterConfig{})
	if len(e.particles) != 128 {
		t.Errorf("default pool = %d, want 128", len(e.particles))
	}
}

func TestEmitterLifecycle(t *testing.T) {
	e := newParticleEmitter(sparkConfig(100))

	if e.IsActive() {
		t.Error("fresh emitter should be idle")
	}
	e.Start()
	if !e.IsActive() {
		t.Error("Start should activate")
	}
	e.Stop()
	if e.IsActive() {
		t.Error("Stop should deactivate")
	}

	e.Start()
	e.update(0.1)
	if e.AliveCount() == 0 {
		t.Fatal("rate 100/s over 0.1s should spawn sparks")
	}

	e.Reset()
	if e.IsActive() || e.AliveCount() != 0 {
		t.Errorf("Reset should clear: active=%v alive=%d", e.IsActive(), e.AliveCount())
	}
}

func TestUnlockBurst(t *testing.T) {
	cfg := sparkConfig(100)
	cfg.EmitRate = 0 // burst-only emitter, no steady stream
	e := newParticleEmitter(cfg)

	e.Burst(30)
	if e.AliveCount() != 30 {
		t.Errorf("alive = %d, want 30", e.AliveCount())
	}

	// A burst larger than the pool drops the overflow.
	e.Burst(200)
	if e.AliveCount() != 100 {
		t.Errorf("alive = %d, want the pool cap of 100", e.AliveCount())
	}

	// The whole burst expires after its 1s lifetime, and rate 0 means
	// nothing respawns.
	e.update(1.0)
	if e.AliveCount() != 0 {
		t.Errorf("alive = %d, want 0 after lifetime", e.AliveCount())
	}
}

func TestWorldSpaceBurstSpawnsAtMarker(t *testing.T) {
	cfg := sparkConfig(10)
	cfg.EmitRate = 0
	cfg.WorldSpace = true
	sparks := NewParticleEmitter("sparks", cfg)
	sparks.X = 300
	sparks.Y = 150
	updateWorldTransform(sparks, identityTransform, 1.0, false)

	// The update walk samples the world position before spawning.
	updateParticles(sparks, 0)
	sparks.Emitter.Burst(5)

	if sparks.Emitter.AliveCount() != 5 {
		t.Fatalf("alive = %d, want 5", sparks.Emitter.AliveCount())
	}
	p := &sparks.Emitter.particles[0]
	if p.x != 300 || p.y != 150 {
		t.Errorf("spawned at (%f, %f), want the marker position (300, 150)", p.x, p.y)
	}
}

func TestSteadyEmissionRate(t *testing.T) {
	cfg := sparkConfig(1000)
	cfg.EmitRate = 60
	e := newParticleEmitter(cfg)
	e.Start()

	// One simulated second at 60 fps.
	for i := 0; i < 60; i++ {
		e.update(1.0 / 60.0)
	}
	if got := e.AliveCount(); got != 60 {
		t.Errorf("alive = %d, want 60 after 1s at 60/s", got)
	}
}

func TestExpiredSparksAreRecycled(t *testing.T) {
	cfg := sparkConfig(100)
	cfg.Lifetime = Range{0.05, 0.05}
	e := newParticleEmitter(cfg)
	e.Start()

	e.update(0.02)
	if e.AliveCount() == 0 {
		t.Fatal("expected sparks in flight")
	}

	e.Stop()
	e.update(0.1) // past every spark's lifetime
	if e.AliveCount() != 0 {
		t.Errorf("alive = %d, want 0 once all sparks expire", e.AliveCount())
	}
}

func TestGravityPullsSparks(t *testing.T) {
	cfg := sparkConfig(10)
	cfg.Gravity = Vec2{0, 100}
	cfg.Speed = Range{0, 0}
	cfg.Lifetime = Range{10, 10}
	cfg.EmitRate = 10000
	e := newParticleEmitter(cfg)
	e.Start()

	e.update(0.001)
	e.Stop()
	e.update(1.0)
	if e.AliveCount() == 0 {
		t.Fatal("expected sparks in flight")
	}

	p := &e.particles[0]
	assertNear(t, "vy", p.vy, 100.0)
	if p.y < 50 {
		t.Errorf("y = %f, gravity should have carried the spark down", p.y)
	}
}

func TestSparkFadesOverLifetime(t *testing.T) {
	cfg := sparkConfig(1)
	cfg.EmitRate = 1000
	cfg.StartScale = Range{2, 2}
	cfg.EndScale = Range{0, 0}
	cfg.StartColor = Color{1, 0, 0, 1}
	cfg.EndColor = Color{0, 1, 0, 1}
	e := newParticleEmitter(cfg)
	e.Start()

	e.update(0.001)
	e.Stop()
	if e.AliveCount() != 1 {
		t.Fatalf("alive = %d, want 1", e.AliveCount())
	}

	p := &e.particles[0]
	for _, c := range []struct {
		label string
		got   float32
		want  float64
	}{
		{"scale at birth", p.scale, 2.0},
		{"alpha at birth", p.alpha, 1.0},
		{"red at birth", p.colorR, 1.0},
		{"green at birth", p.colorG, 0.0},
	} {
		assertNear(t, c.label, float64(c.got), c.want)
	}

	// A freshly spawned spark skips its spawn frame's dt, so this update
	// takes life from 1.0 straight to 0.5.
	e.update(0.5)
	age := 1.0 - p.life/p.maxLife
	assertNear(t, "age", age, 0.5)
	for _, c := range []struct {
		label string
		got   float32
		from  float64
		to    float64
	}{
		{"scale at half-life", p.scale, 2, 0},
		{"alpha at half-life", p.alpha, 1, 0},
		{"red at half-life", p.colorR, 1, 0},
		{"green at half-life", p.colorG, 0, 1},
	} {
		assertNear(t, c.label, float64(c.got), lerp(c.from, c.to, age))
	}
}

func TestPoolCapHolds(t *testing.T) {
	cfg := sparkConfig(5)
	cfg.EmitRate = 10000
	e := newParticleEmitter(cfg)
	e.Start()

	e.update(1.0)
	if e.AliveCount() > 5 {
		t.Errorf("alive = %d, exceeds the pool of 5", e.AliveCount())
	}
}

func TestRangeRandom(t *testing.T) {
	r := Range{10, 20}
	for range 100 {
		if v := r.Random(); v < 10 || v > 20 {
			t.Fatalf("Random() = %f, outside [10, 20]", v)
		}
	}

	fixed := Range{5, 5}
	for range 10 {
		if got := fixed.Random(); got != 5 {
			t.Fatalf("degenerate range produced %f, want its single value 5", got)
		}
	}
}

func TestLerp(t *testing.T) {
	for _, c := range []struct{ at, want float64 }{{0, 0}, {0.5, 5}, {1, 10}} {
		assertNear(t, "lerp", lerp(0, 10, c.at), c.want)
	}
}

func TestTraverseEmitsParticleCommand(t *testing.T) {
	s := NewScene()
	sparks := NewParticleEmitter("sparks", sparkConfig(100))
	sparks.Emitter.Start()
	sparks.Emitter.update(0.1)
	s.Root().AddChild(sparks)

	traverseScene(s)

	var found bool
	for _, cmd := range s.commands {
		if cmd.Type != CommandParticle {
			continue
		}
		found = true
		if cmd.emitter != sparks.Emitter {
			t.Error("command should reference the node's own emitter")
		}
	}
	if !found {
		t.Error("expected a CommandParticle for the live emitter")
	}
}

func TestIdleEmitterEmitsNoCommand(t *testing.T) {
	s := NewScene()
	s.Root().AddChild(NewParticleEmitter("sparks", sparkConfig(100))) // never started

	traverseScene(s)

	for _, cmd := range s.commands {
		if cmd.Type == CommandParticle {
			t.Error("an emitter with no live sparks should emit nothing")
		}
	}
}

func TestUpdateParticlesWalksTree(t *testing.T) {
	root := NewContainer("canvas")
	tier := NewContainer("tier")
	root.AddChild(tier)

	topLevel := NewParticleEmitter("sparks1", sparkConfig(100))
	topLevel.Emitter.Start()
	root.AddChild(topLevel)

	nested := NewParticleEmitter("sparks2", sparkConfig(100))
	nested.Emitter.Start()
	tier.AddChild(nested)

	updateParticles(root, 0.1)

	if topLevel.Emitter.AliveCount() == 0 {
		t.Error("top-level emitter was not updated")
	}
	if nested.Emitter.AliveCount() == 0 {
		t.Error("nested emitter was not updated")
	}
}

func TestNewParticleEmitterNode(t *testing.T) {
	cfg := sparkConfig(50)
	cfg.Region = TextureRegion{Width: 32, Height: 32, OriginalW: 64, OriginalH: 48, Page: 1}
	cfg.BlendMode = BlendAdd
	n := NewParticleEmitter("sparks", cfg)

	if n.Type != NodeTypeParticleEmitter {
		t.Error("wrong node type")
	}
	if n.Emitter == nil {
		t.Fatal("node should own an emitter")
	}
	if n.TextureRegion.Width != 32 || n.BlendMode != BlendAdd {
		t.Error("region and blend mode should copy from the config")
	}
	if w, h := nodeDimensions(n); w != 64 || h != 48 {
		t.Errorf("nodeDimensions = (%f, %f), want the region's source size", w, h)
	}
}

func TestSteadyStateUpdateAllocatesNothing(t *testing.T) {
	cfg := sparkConfig(1000)
	cfg.EmitRate = 500
	e := newParticleEmitter(cfg)
	e.Start()

	const dt = 1.0 / 60.0
	for range 100 {
		e.update(dt)
	}

	if allocs := testing.AllocsPerRun(100, func() { e.update(dt) }); allocs > 0 {
		t.Errorf("update allocs = %f, want 0", allocs)
	}
}

func TestConfigPointerAllowsLiveTuning(t *testing.T) {
	e := newParticleEmitter(sparkConfig(100))
	e.Config().EmitRate = 999
	if e.config.EmitRate != 999 {
		t.Error("Config must expose the live config for editor sliders")
	}
}

func TestEmissionAngleSetsVelocity(t *testing.T) {
	cfg := sparkConfig(1)
	cfg.EmitRate = 10000
	cfg.Angle = Range{math.Pi / 2, math.Pi / 2}
	cfg.Lifetime = Range{10, 10}
	e := newParticleEmitter(cfg)
	e.Start()

	if e.update(1.0); e.AliveCount() == 0 {
		t.Fatal("expected sparks in flight")
	}
	p := &e.particles[0]
	assertNear(t, "vx", p.vx, 0)
	assertNear(t, "vy", p.vy, 100)
}

// --- Benchmarks ---

func BenchmarkSparkUpdate(b *testing.B) {
	for _, pool := range []int{1000, 10000} {
		b.Run(map[int]string{1000: "1k", 10000: "10k"}[pool], func(b *testing.B) {
			cfg := sparkConfig(pool)
			cfg.EmitRate = float64(pool) / 2
			e := newParticleEmitter(cfg)
			e.Start()
			const dt = 1.0 / 60.0
			for range 200 {
				e.update(dt)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				e.update(dt)
			}
		})
	}
}

func BenchmarkSparkTraverse(b *testing.B) {
	s := NewScene()
	cfg := sparkConfig(1000)
	cfg.EmitRate = 5000
	sparks := NewParticleEmitter("sparks", cfg)
	sparks.Emitter.Start()
	for range 200 {
		sparks.Emitter.update(1.0 / 60.0)
	}
	s.Root().AddChild(sparks)
	traverseScene(s)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		s.commands = s.commands[:0]
		treeOrder := 0
		s.traverse(s.root, identityTransform, 1.0, false, &treeOrder)
	}
}
