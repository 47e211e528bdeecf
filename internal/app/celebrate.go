package app

import (
	"math"

	"github.com/tanema/gween/ease"

	"github.com/phanxgames/arbor"
)

// celebrate fires a one-shot particle burst at a marker and flashes its
// halo. Used when a node's last objective completes or a rule unlocks it.
func (a *App) celebrate(m *marker) {
	b := a.theme.Disc.Bounds()
	cfg := arbor.EmitterConfig{
		MaxParticles: 64,
		Lifetime:     arbor.Range{Min: 0.5, Max: 1.1},
		Speed:        arbor.Range{Min: 70, Max: 180},
		Angle:        arbor.Range{Min: 0, Max: 2 * math.Pi},
		StartScale:   arbor.Range{Min: 0.12, Max: 0.25},
		EndScale:     arbor.Range{Min: 0.02, Max: 0.05},
		StartAlpha:   arbor.Range{Min: 0.9, Max: 1},
		EndAlpha:     arbor.Range{Min: 0, Max: 0},
		Gravity:      arbor.Vec2{Y: 70},
		StartColor:   colorCelebration,
		EndColor:     colorCelebrateEnd,
		Region: arbor.TextureRegion{
			Page:      particlePage,
			Width:     uint16(b.Dx()),
			Height:    uint16(b.Dy()),
			OriginalW: uint16(b.Dx()),
			OriginalH: uint16(b.Dy()),
		},
		BlendMode:  arbor.BlendAdd,
		WorldSpace: true,
	}

	burst := arbor.NewParticleEmitter("celebration", cfg)
	burst.SetPosition(m.data.X, m.data.Y)
	a.world.Root().AddChild(burst)
	burst.Emitter.Burst(48)
	a.after(1.4, func() { burst.Dispose() })

	// Halo flash on top of the steady unlocked glow.
	m.halo.Alpha = 1
	a.animate(arbor.TweenAlpha(m.halo, 0.35, 0.8, ease.OutQuad))
}
