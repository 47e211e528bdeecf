package arbor

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// fpsRefreshInterval throttles the overlay redraw; per-frame text updates
// are unreadable anyway.
const fpsRefreshInterval = 0.25

// NewFPSWidget returns a small frame-rate overlay node. Place it on a UI
// scene; it draws above everything else on its layer and refreshes a few
// times per second via its OnUpdate hook.
func NewFPSWidget() *Node {
	canvas := ebiten.NewImage(104, 32)

	n := NewSprite("fps", TextureRegion{})
	n.SetCustomImage(canvas)
	n.RenderLayer = 255

	var sinceRefresh float64
	n.OnUpdate = func(dt float64) {
		sinceRefresh += dt
		if sinceRefresh < fpsRefreshInterval {
			return
		}
		sinceRefresh = 0

		canvas.Clear()
		canvas.Fill(color.RGBA{0, 0, 0, 128})
		ebitenutil.DebugPrint(canvas, fmt.Sprintf("FPS %5.1f\nTPS %5.1f",
			ebiten.ActualFPS(), ebiten.ActualTPS()))
	}
	return n
}
