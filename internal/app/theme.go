package app

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/tree"
)

// Marker geometry, shared by the marker widgets and hit shapes.
const (
	markerRadius = 26.0
	ringWidth    = 4.0
)

// Difficulty tiers pick the marker ring color.
const (
	tierBronze = iota
	tierSilver
	tierGold
)

// tierOf maps a difficulty score to its tier.
func tierOf(difficulty int) int {
	switch {
	case difficulty <= 10:
		return tierBronze
	case difficulty <= 21:
		return tierSilver
	default:
		return tierGold
	}
}

var tierColors = [3]arbor.Color{
	{R: 0.80, G: 0.52, B: 0.26, A: 1}, // bronze
	{R: 0.76, G: 0.79, B: 0.86, A: 1}, // silver
	{R: 0.95, G: 0.80, B: 0.25, A: 1}, // gold
}

var (
	colorCanvas       = arbor.Color{R: 0.07, G: 0.08, B: 0.12, A: 1}
	colorGridDots     = arbor.Color{R: 0.30, G: 0.33, B: 0.42, A: 1}
	colorUnlocked     = arbor.Color{R: 1.00, G: 0.96, B: 0.84, A: 1}
	colorLocked       = arbor.Color{R: 0.42, G: 0.44, B: 0.50, A: 1}
	colorLink         = arbor.Color{R: 0.45, G: 0.75, B: 0.95, A: 1}
	colorLinkPreview  = arbor.Color{R: 0.95, G: 0.85, B: 0.40, A: 1}
	colorHover        = arbor.Color{R: 0.55, G: 0.85, B: 1.00, A: 1}
	colorArmed        = arbor.Color{R: 0.95, G: 0.85, B: 0.40, A: 1}
	colorPanelFill    = arbor.Color{R: 0.12, G: 0.13, B: 0.18, A: 0.96}
	colorPanelBorder  = arbor.Color{R: 0.42, G: 0.50, B: 0.66, A: 1}
	colorText         = arbor.Color{R: 0.92, G: 0.93, B: 0.96, A: 1}
	colorTextDim      = arbor.Color{R: 0.62, G: 0.64, B: 0.70, A: 1}
	colorButton       = arbor.Color{R: 0.22, G: 0.26, B: 0.36, A: 1}
	colorButtonHover  = arbor.Color{R: 0.30, G: 0.36, B: 0.50, A: 1}
	colorDanger       = arbor.Color{R: 0.78, G: 0.30, B: 0.28, A: 1}
	colorFieldFill    = arbor.Color{R: 0.09, G: 0.10, B: 0.14, A: 1}
	colorFieldFocus   = arbor.Color{R: 0.55, G: 0.85, B: 1.00, A: 1}
	colorCheckDone    = arbor.Color{R: 0.42, G: 0.85, B: 0.48, A: 1}
	colorCelebration  = arbor.Color{R: 1.00, G: 0.90, B: 0.45, A: 1}
	colorCelebrateEnd = arbor.Color{R: 0.95, G: 0.45, B: 0.20, A: 0}
)

// Theme bundles fonts and textures. Every asset is optional in config;
// the fallbacks are generated procedurally at startup so the editor never
// depends on files being present.
type Theme struct {
	Font      arbor.Font // dialog/body text
	TitleFont arbor.Font

	Disc  *ebiten.Image // feathered marker disc
	Ring  *ebiten.Image // marker ring, tinted per tier
	Halo  *ebiten.Image // additive halo behind unlocked markers
	Dash  *ebiten.Image // tileable energy-dash rope texture
	Solid *ebiten.Image // 4x4 white, for untextured ropes and fills

	Panel       *ebiten.Image // nine-slice frame source
	PanelInset  int           // nine-slice border width in source pixels
	Background  *ebiten.Image // optional background artwork
	IconAtlas   []byte        // optional TexturePacker JSON
	IconPage    *ebiten.Image
	hasIconPack bool
}

// NewTheme builds the theme from config, generating procedural stand-ins
// for any asset that is missing or unreadable. Asset problems are warnings,
// never fatal.
func NewTheme(cfg config.ThemeConfig) *Theme {
	t := &Theme{
		Disc:       arbor.NewCircleImage(markerRadius),
		Ring:       makeRingImage(markerRadius, ringWidth),
		Halo:       arbor.NewCircleImage(markerRadius * 2.2),
		Dash:       makeDashImage(),
		Solid:      makeSolidImage(),
		Panel:      makePanelImage(),
		PanelInset: 12,
	}

	font, err := arbor.LoadTTFFont(goregular.TTF, 15)
	if err != nil {
		panic(fmt.Sprintf("arbor: builtin font: %v", err))
	}
	title, err := arbor.LoadTTFFont(goregular.TTF, 20)
	if err != nil {
		panic(fmt.Sprintf("arbor: builtin font: %v", err))
	}
	t.Font, t.TitleFont = font, title

	if cfg.Font != "" {
		if data, err := os.ReadFile(cfg.Font); err != nil {
			slog.Warn("bitmap font unreadable, using builtin", "path", cfg.Font, "err", err)
		} else if bf, err := arbor.LoadBitmapFont(data); err != nil {
			slog.Warn("bitmap font malformed, using builtin", "path", cfg.Font, "err", err)
		} else {
			t.Font = bf
			t.TitleFont = bf
		}
	}

	if cfg.PanelFrame != "" {
		if img, err := loadImage(cfg.PanelFrame); err != nil {
			slog.Warn("panel frame unreadable, using builtin", "path", cfg.PanelFrame, "err", err)
		} else {
			t.Panel = img
			t.PanelInset = img.Bounds().Dx() / 4
		}
	}

	if cfg.Background != "" {
		if img, err := loadImage(cfg.Background); err != nil {
			slog.Warn("background unreadable, using grid only", "path", cfg.Background, "err", err)
		} else {
			t.Background = img
		}
	}

	if cfg.IconAtlas != "" && cfg.IconPage != "" {
		json, jerr := os.ReadFile(cfg.IconAtlas)
		page, perr := loadImage(cfg.IconPage)
		if jerr != nil || perr != nil {
			slog.Warn("icon atlas unreadable, using builtin markers",
				"atlas", cfg.IconAtlas, "err", jerr, "pageErr", perr)
		} else {
			t.IconAtlas = json
			t.IconPage = page
			t.hasIconPack = true
		}
	}

	return t
}

// HasIcons reports whether a level-icon atlas was configured and loaded.
func (t *Theme) HasIcons() bool {
	return t.hasIconPack
}

// TierColor returns the ring color for a difficulty score.
func (t *Theme) TierColor(difficulty int) arbor.Color {
	return tierColors[tierOf(difficulty)]
}

// IconName returns the atlas region name for a difficulty score.
func (t *Theme) IconName(difficulty int) string {
	switch tierOf(difficulty) {
	case tierBronze:
		return "level_bronze"
	case tierSilver:
		return "level_silver"
	default:
		return "level_gold"
	}
}

func loadImage(path string) (*ebiten.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ebiten.NewImageFromImage(img), nil
}

// makeRingImage draws an anti-aliased ring of the given outer radius.
func makeRingImage(radius, width float64) *ebiten.Image {
	size := int(radius*2) + 2
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	inner := radius - width
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			// 1px feather on both edges.
			a := math.Min(clamp01(radius-d+0.5), clamp01(d-inner+0.5))
			v := uint8(a * 255)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = v
		}
	}
	return ebiten.NewImageFromImage(img)
}

// makeDashImage builds the tileable rope texture: a bright dash fading out
// toward both ends, so scrolling the UVs reads as energy flowing along the
// link.
func makeDashImage() *ebiten.Image {
	const w, h = 128, 8
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		// Periodic pulse along the length.
		pulse := 0.25 + 0.75*math.Pow(0.5+0.5*math.Sin(2*math.Pi*float64(x)/w), 3)
		for y := 0; y < h; y++ {
			// Soft falloff toward the rope edges.
			edge := 1 - math.Abs(float64(y)+0.5-h/2)/(h/2)
			a := clamp01(pulse * math.Sqrt(edge))
			v := uint8(a * 255)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = v
		}
	}
	return ebiten.NewImageFromImage(img)
}

func makeSolidImage() *ebiten.Image {
	img := ebiten.NewImage(4, 4)
	img.Fill(color.White)
	return img
}

// makePanelImage builds the builtin nine-slice frame source: a filled
// rounded panel with a lighter border, 48x48 with a 12px inset.
func makePanelImage() *ebiten.Image {
	const size, corner = 48, 10
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := roundedRectDistance(float64(x)+0.5, float64(y)+0.5, size, size, corner)
			if d > 0.5 {
				continue // outside
			}
			fill := colorPanelFill
			// 2px border band just inside the edge.
			if d > -2.5 {
				fill = colorPanelBorder
			}
			a := clamp01(0.5 - d)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(fill.R * 255)
			img.Pix[i+1] = uint8(fill.G * 255)
			img.Pix[i+2] = uint8(fill.B * 255)
			img.Pix[i+3] = uint8(fill.A * a * 255)
		}
	}
	return ebiten.NewImageFromImage(img)
}

// roundedRectDistance is the signed distance from (x, y) to the edge of a
// w x h rounded rectangle at the origin. Negative inside.
func roundedRectDistance(x, y, w, h, r float64) float64 {
	qx := math.Abs(x-w/2) - (w/2 - r)
	qy := math.Abs(y-h/2) - (h/2 - r)
	ax, ay := math.Max(qx, 0), math.Max(qy, 0)
	return math.Hypot(ax, ay) + math.Min(math.Max(qx, qy), 0) - r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// nodeTint returns the disc tint for a tree node's unlock state.
func nodeTint(n *tree.Node) arbor.Color {
	if n.Unlocked {
		return colorUnlocked
	}
	return colorLocked
}
