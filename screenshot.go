package arbor

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Screenshot queues a labeled capture of the current frame. The PNG is
// written under ScreenshotDir once Draw finishes compositing, so the file
// shows exactly what the player saw. Safe to call from Update or Draw.
func (s *Scene) Screenshot(label string) {
	s.screenshotQueue = append(s.screenshotQueue, label)
}

// flushScreenshots drains the queue at the end of Scene.Draw. All queued
// labels share one pixel readback; only the file names differ.
func (s *Scene) flushScreenshots(screen *ebiten.Image) {
	if len(s.screenshotQueue) == 0 {
		return
	}
	queue := s.screenshotQueue
	s.screenshotQueue = s.screenshotQueue[:0]

	if err := os.MkdirAll(s.ScreenshotDir, 0o755); err != nil {
		slog.Warn("screenshot dir", "dir", s.ScreenshotDir, "err", err)
		return
	}

	img := unpremultiply(screen)
	stamp := time.Now().Format("20060102_150405")

	for _, label := range queue {
		name := fmt.Sprintf("%s_%s.png", stamp, sanitizeLabel(label))
		if err := writePNG(filepath.Join(s.ScreenshotDir, name), img); err != nil {
			slog.Warn("screenshot write", "err", err)
		}
	}
}

// unpremultiply reads the screen back into a straight-alpha NRGBA image,
// which is what PNG encoders expect.
func unpremultiply(screen *ebiten.Image) *image.NRGBA {
	bounds := screen.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	px := make([]byte, 4*w*h)
	screen.ReadPixels(px)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(px); i += 4 {
		r, g, b, a := px[i], px[i+1], px[i+2], px[i+3]
		if a > 0 && a < 255 {
			r = unscale(r, a)
			g = unscale(g, a)
			b = unscale(b, a)
		}
		img.Pix[i+0] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

// unscale divides a premultiplied channel back out by its alpha.
func unscale(ch, a uint8) uint8 {
	return uint8(min(int(ch)*255/int(a), 255))
}

func writePNG(path string, img *image.NRGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel keeps file names portable: anything outside a small safe
// set becomes an underscore, and an empty label gets a stand-in name.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, label)
}
