package arbor

import (
	"math"
	"math/rand/v2"
)

// particle is per-spark simulation state, managed by ParticleEmitter.
// Position and velocity run in float64 to match node transforms; the
// interpolated visual attributes stay float32 since they feed vertex colors
// directly.
type particle struct {
	x, y    float64
	vx, vy  float64
	life    float64 // seconds remaining
	maxLife float64 // lifetime at spawn, for computing the interpolation t

	startScale, endScale float32
	scale                float32

	startAlpha, endAlpha float32
	alpha                float32

	startR, startG, startB float32
	endR, endG, endB       float32
	colorR, colorG, colorB float32
}

// EmitterConfig controls how particles spawn and behave. The unlock
// celebration uses a short-lived burst preset; ambient marker shimmer runs
// a slow continuous stream.
//
// The Start*/End* pairs are sampled per particle at birth and interpolated
// over its lifetime.
type EmitterConfig struct {
	// MaxParticles is the pool size. Spawns are silently dropped when full.
	MaxParticles int

	// EmitRate is particles per second while the emitter is active.
	EmitRate float64

	Lifetime Range // particle lifetime in seconds
	Speed    Range // initial speed in pixels per second
	Angle    Range // emission angle in radians

	StartScale Range
	EndScale   Range
	StartAlpha Range
	EndAlpha   Range
	StartColor Color
	EndColor   Color

	// Gravity is a constant acceleration applied to every particle.
	Gravity Vec2

	// Region is the sprite drawn for each particle.
	Region TextureRegion

	// BlendMode is the compositing operation for particle rendering.
	// Sparks usually use BlendAdd.
	BlendMode BlendMode

	// WorldSpace pins emitted particles to their world position instead of
	// following the emitter node, so sparks trail behind a dragged marker.
	WorldSpace bool
}

// ParticleEmitter manages a pool of particles with CPU-based simulation.
type ParticleEmitter struct {
	config    EmitterConfig
	particles []particle
	alive     int
	emitAccum float64
	active    bool
	// Last known world position, captured by the update walk so world-space
	// particles spawn at the node's current location.
	worldX, worldY float64
}

// newParticleEmitter creates a ParticleEmitter with a preallocated pool.
func newParticleEmitter(cfg EmitterConfig) *ParticleEmitter {
	pool := cfg.MaxParticles
	if pool <= 0 {
		pool = 128 // enough for a single unlock burst
	}
	return &ParticleEmitter{config: cfg, particles: make([]particle, pool)}
}

// Start turns the continuous stream on.
func (e *ParticleEmitter) Start() { e.active = true }

// Stop halts new emission. Alive particles finish their lifetimes.
func (e *ParticleEmitter) Stop() { e.active = false }

// Reset stops emission and kills every alive particle at once.
func (e *ParticleEmitter) Reset() {
	e.active = false
	e.alive, e.emitAccum = 0, 0
}

// Burst spawns up to n particles immediately, independent of EmitRate.
// Spawns are dropped once the pool is full. The unlock celebration is a
// one-shot Burst; its emitter never runs a continuous stream.
func (e *ParticleEmitter) Burst(n int) {
	for i := 0; i < n && e.alive < len(e.particles); i++ {
		e.spawnParticle()
	}
}

// IsActive reports whether the continuous stream is on.
func (e *ParticleEmitter) IsActive() bool {
	return e.active
}

// AliveCount returns how many particles are currently alive.
func (e *ParticleEmitter) AliveCount() int {
	return e.alive
}

// Config exposes the emitter's config for live tuning from the editor.
func (e *ParticleEmitter) Config() *EmitterConfig {
	return &e.config
}

// update advances the simulation by dt seconds. Existing particles move and
// interpolate first; emission runs last, so a particle spawned this frame
// does not also consume this frame's dt.
func (e *ParticleEmitter) update(dt float64) {
	gx := e.config.Gravity.X * dt
	gy := e.config.Gravity.Y * dt

	i := 0
	for i < e.alive {
		p := &e.particles[i]
		p.life -= dt
		if p.life <= 0 {
			// Swap-remove: the last alive particle takes this slot.
			e.alive--
			e.particles[i] = e.particles[e.alive]
			continue
		}

		p.vx += gx
		p.vy += gy
		p.x += p.vx * dt
		p.y += p.vy * dt
		p.interpolate()

		i++
	}

	if !e.active || e.config.EmitRate <= 0 {
		return
	}
	e.emitAccum += e.config.EmitRate * dt
	for ; e.emitAccum >= 1.0; e.emitAccum-- {
		if e.alive < len(e.particles) {
			e.spawnParticle()
		}
	}
}

// interpolate refreshes the visual attributes from the life fraction.
func (p *particle) interpolate() {
	t := float32(1.0 - p.life/p.maxLife)
	p.scale = lerp32(p.startScale, p.endScale, t)
	p.alpha = lerp32(p.startAlpha, p.endAlpha, t)
	p.colorR = lerp32(p.startR, p.endR, t)
	p.colorG = lerp32(p.startG, p.endG, t)
	p.colorB = lerp32(p.startB, p.endB, t)
}

// spawnParticle initializes the particle at slot e.alive and increments alive.
func (e *ParticleEmitter) spawnParticle() {
	cfg := &e.config
	p := &e.particles[e.alive]

	angle := cfg.Angle.Random()
	speed := cfg.Speed.Random()
	p.vx = math.Cos(angle) * speed
	p.vy = math.Sin(angle) * speed

	p.x, p.y = 0, 0
	if cfg.WorldSpace {
		p.x, p.y = e.worldX, e.worldY
	}

	p.life = cfg.Lifetime.Random()
	if p.life <= 0 {
		p.life = 1.0
	}
	p.maxLife = p.life

	p.startScale, p.endScale = float32(cfg.StartScale.Random()), float32(cfg.EndScale.Random())
	p.startAlpha, p.endAlpha = float32(cfg.StartAlpha.Random()), float32(cfg.EndAlpha.Random())
	p.startR, p.startG, p.startB = float32(cfg.StartColor.R), float32(cfg.StartColor.G), float32(cfg.StartColor.B)
	p.endR, p.endG, p.endB = float32(cfg.EndColor.R), float32(cfg.EndColor.G), float32(cfg.EndColor.B)

	// Birth values before the first interpolation tick.
	p.scale = p.startScale
	p.alpha = p.startAlpha
	p.colorR, p.colorG, p.colorB = p.startR, p.startG, p.startB

	e.alive++
}

// updateParticles walks the tree and advances every emitter by dt seconds.
// The emitter's world position is captured first so world-space particles
// spawn at the node's current location. Hidden nodes keep simulating; they
// just don't render.
func updateParticles(n *Node, dt float64) {
	if n.Emitter != nil {
		n.Emitter.worldX = n.worldTransform[4]
		n.Emitter.worldY = n.worldTransform[5]
		n.Emitter.update(dt)
	}
	for _, child := range n.children {
		updateParticles(child, dt)
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerp32(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Random samples a uniform value in [Min, Max].
func (r Range) Random() float64 {
	if span := r.Max - r.Min; span != 0 {
		return r.Min + rand.Float64()*span
	}
	return r.Min
}
