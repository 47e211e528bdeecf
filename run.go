package arbor

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// RunConfig configures the window created by Run.
type RunConfig struct {
	Title  string
	Width  int // logical width in pixels
	Height int // logical height in pixels

	// Resizable allows the user to resize the window. The logical size
	// passed to the scene stays Width x Height regardless.
	Resizable bool

	// Fullscreen starts the window in fullscreen mode.
	Fullscreen bool
}

// game adapts a Scene to the ebiten.Game interface.
type game struct {
	scene  *Scene
	width  int
	height int
}

func (g *game) Update() error {
	g.scene.Update()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	g.scene.Draw(screen)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

// Run opens a window and drives the scene's Update and Draw until the window
// closes. It blocks until then and returns any error from the run loop.
func Run(s *Scene, cfg RunConfig) error {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	if cfg.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	if cfg.Fullscreen {
		ebiten.SetFullscreen(true)
	}
	return ebiten.RunGame(&game{scene: s, width: cfg.Width, height: cfg.Height})
}
