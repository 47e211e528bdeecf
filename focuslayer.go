package arbor

import (
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Spot is a lit region in a FocusLayer.
type Spot struct {
	// X and Y are the spot's position in the focus layer's local coordinate space.
	X, Y float64
	// Radius controls the drawn size (diameter = Radius*2 pixels).
	Radius float64
	// Rotation is the spot's rotation in radians; useful for directional shapes.
	Rotation float64
	// Intensity controls how fully the dim is lifted, in the range [0, 1].
	Intensity float64
	// Enabled determines whether this spot is drawn during Redraw.
	// Disabled spots are skipped entirely.
	Enabled bool
	// Color is the tint color. Zero value or white means neutral (no tint).
	Color Color
	// TextureRegion, if non-zero, uses this sprite sheet region instead of
	// the default feathered circle.
	TextureRegion TextureRegion
	// Target, if set, makes the spot follow this node's pivot point each Redraw.
	Target *Node
	// OffsetX and OffsetY offset the spot from the target's pivot in
	// focus-layer space.
	OffsetX float64
	OffsetY float64
}

// FocusLayer dims everything behind it except chosen spots. It renders an
// ambient darkness color into an offscreen texture and erases feathered
// circles at each spot position, then displays the result as a sprite node
// with BlendMultiply. Dialogs use it to fade the canvas while keeping the
// focused marker fully lit.
type FocusLayer struct {
	rt          *RenderTexture
	node        *Node
	spots       []*Spot
	pages       []*ebiten.Image // atlas pages for resolving Spot.TextureRegion
	dimAlpha    float64
	circleCache map[int]*ebiten.Image // cached circle textures keyed by quantized radius
	imgOp       ebiten.DrawImageOptions
}

// NewFocusLayer creates a focus layer covering (w x h) pixels.
// dimAlpha controls the base darkness (0 = fully transparent, 1 = fully opaque black).
func NewFocusLayer(w, h int, dimAlpha float64) *FocusLayer {
	rt := NewRenderTexture(w, h)
	node := rt.NewSpriteNode("focus_layer")
	node.BlendMode = BlendMultiply

	fl := &FocusLayer{
		rt:       rt,
		node:     node,
		dimAlpha: dimAlpha,
	}
	return fl
}

// Node returns the sprite node that displays the focus layer.
// Add this to the scene graph to render the dimming effect.
func (fl *FocusLayer) Node() *Node {
	return fl.node
}

// RenderTexture returns the underlying RenderTexture.
func (fl *FocusLayer) RenderTexture() *RenderTexture {
	return fl.rt
}

// AddSpot adds a spot to the layer.
func (fl *FocusLayer) AddSpot(s *Spot) {
	fl.spots = append(fl.spots, s)
}

// RemoveSpot removes a spot from the layer.
func (fl *FocusLayer) RemoveSpot(s *Spot) {
	for i, existing := range fl.spots {
		if existing == s {
			fl.spots = append(fl.spots[:i], fl.spots[i+1:]...)
			return
		}
	}
}

// ClearSpots removes all spots from the layer.
func (fl *FocusLayer) ClearSpots() {
	fl.spots = fl.spots[:0]
}

// Spots returns the current spot list. The returned slice MUST NOT be mutated.
func (fl *FocusLayer) Spots() []*Spot {
	return fl.spots
}

// SetDimAlpha sets the base darkness level.
func (fl *FocusLayer) SetDimAlpha(a float64) {
	fl.dimAlpha = a
}

// DimAlpha returns the current base darkness level.
func (fl *FocusLayer) DimAlpha() float64 {
	return fl.dimAlpha
}

// SetPages stores the atlas page images used to resolve Spot.TextureRegion.
// Typically called with the Scene's pages after loading atlases.
func (fl *FocusLayer) SetPages(pages []*ebiten.Image) {
	fl.pages = pages
}

// SetCircleRadius pre-generates a feathered circle texture at the given radius
// and stores it in the cache.
func (fl *FocusLayer) SetCircleRadius(radius float64) {
	fl.getCircle(radius)
}

// getCircle returns a cached circle texture for the given radius, generating
// one if it doesn't exist. Radius is quantized to the nearest integer to
// avoid generating separate textures for tiny differences.
func (fl *FocusLayer) getCircle(radius float64) *ebiten.Image {
	key := int(math.Ceil(radius))
	if key < 1 {
		key = 1
	}
	if fl.circleCache == nil {
		fl.circleCache = make(map[int]*ebiten.Image)
	}
	if img, ok := fl.circleCache[key]; ok {
		return img
	}
	img := generateCircle(float64(key))
	fl.circleCache[key] = img
	return img
}

// Redraw clears the texture, fills it with the dim color, and erases spot
// shapes at each enabled spot position. Spots with a TextureRegion use that
// sprite; spots without fall back to a generated feathered circle.
// Call this every frame (or whenever spots change) before drawing the scene.
func (fl *FocusLayer) Redraw() {
	// Sync attached spots to their target node positions.
	for _, s := range fl.spots {
		if s.Target == nil || s.Target.IsDisposed() {
			continue
		}
		// Get target's pivot in world space.
		wx, wy := s.Target.LocalToWorld(s.Target.PivotX, s.Target.PivotY)
		// Convert to focus layer's local coordinate space.
		lx, ly := fl.node.WorldToLocal(wx, wy)
		s.X = lx + s.OffsetX
		s.Y = ly + s.OffsetY
	}

	target := fl.rt.Image()
	target.Clear()

	// Fill with the dim color.
	a := clamp01(fl.dimAlpha)
	target.Fill(color.NRGBA{R: 0, G: 0, B: 0, A: uint8(a * 255)})

	op := &fl.imgOp
	for _, s := range fl.spots {
		if !s.Enabled || s.Radius <= 0 {
			continue
		}

		intensity := clamp01(s.Intensity)

		// Resolve the spot image: TextureRegion or fallback circle.
		spotImg, srcW, srcH := fl.resolveSpotImage(s)
		if spotImg == nil {
			continue
		}

		// Erase pass: punch a hole in the darkness.
		fl.setupSpotGeoM(op, s, srcW, srcH)
		op.ColorScale.Reset()
		op.ColorScale.Scale(float32(intensity), float32(intensity), float32(intensity), float32(intensity))
		op.Blend = BlendErase.EbitenBlend()
		target.DrawImage(spotImg, op)

		// Color tint pass: additive tint if the spot has a non-white/non-zero color.
		c := s.Color
		if c != (Color{}) && c != ColorWhite {
			fl.setupSpotGeoM(op, s, srcW, srcH)
			op.ColorScale.Reset()
			tintAlpha := float32(intensity * 0.3)
			op.ColorScale.Scale(
				float32(c.R)*tintAlpha,
				float32(c.G)*tintAlpha,
				float32(c.B)*tintAlpha,
				tintAlpha,
			)
			op.Blend = BlendAdd.EbitenBlend()
			target.DrawImage(spotImg, op)
		}
	}
}

// resolveSpotImage returns the image to draw for a spot, along with its
// source dimensions. Uses TextureRegion if set, otherwise the default circle.
func (fl *FocusLayer) resolveSpotImage(s *Spot) (img *ebiten.Image, srcW, srcH float64) {
	r := &s.TextureRegion
	if r.Width > 0 && r.Height > 0 {
		// Resolve atlas page.
		var page *ebiten.Image
		if r.Page == magentaPlaceholderPage {
			page = ensureMagentaImage()
		} else if int(r.Page) < len(fl.pages) {
			page = fl.pages[r.Page]
		}
		if page == nil {
			return nil, 0, 0
		}
		var subRect image.Rectangle
		if r.Rotated {
			subRect = image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Height), int(r.Y)+int(r.Width))
		} else {
			subRect = image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Width), int(r.Y)+int(r.Height))
		}
		sub := page.SubImage(subRect).(*ebiten.Image)
		return sub, float64(r.OriginalW), float64(r.OriginalH)
	}
	// Default: generated circle.
	circle := fl.getCircle(s.Radius)
	sz := float64(circle.Bounds().Dx())
	return circle, sz, sz
}

// setupSpotGeoM configures the GeoM on op to position, scale, and rotate
// a spot image so it's centered on the spot's (X, Y) at the correct size.
func (fl *FocusLayer) setupSpotGeoM(op *ebiten.DrawImageOptions, s *Spot, srcW, srcH float64) {
	op.GeoM.Reset()

	// Handle rotated atlas regions.
	r := &s.TextureRegion
	if r.Width > 0 && r.Height > 0 && r.Rotated {
		op.GeoM.Rotate(-math.Pi / 2)
		op.GeoM.Translate(0, float64(r.Width))
	}

	// Apply trim offset for atlas regions.
	if r.OffsetX != 0 || r.OffsetY != 0 {
		op.GeoM.Translate(float64(r.OffsetX), float64(r.OffsetY))
	}

	// Scale to desired size (Radius*2 x Radius*2).
	desiredW := s.Radius * 2
	desiredH := s.Radius * 2
	if srcW > 0 && srcH > 0 {
		op.GeoM.Scale(desiredW/srcW, desiredH/srcH)
	}

	// Center on origin for rotation.
	op.GeoM.Translate(-desiredW/2, -desiredH/2)

	// Apply rotation.
	if s.Rotation != 0 {
		op.GeoM.Rotate(s.Rotation)
	}

	// Translate to spot position.
	op.GeoM.Translate(s.X, s.Y)
}

// Dispose releases all resources owned by the focus layer.
func (fl *FocusLayer) Dispose() {
	if fl.rt != nil {
		fl.rt.Dispose()
		fl.rt = nil
	}
	for _, img := range fl.circleCache {
		img.Deallocate()
	}
	fl.circleCache = nil
	if fl.node != nil {
		fl.node.customImage = nil
		fl.node = nil
	}
	fl.spots = nil
}

// NewCircleImage returns a feathered white disc with premultiplied alpha.
// Useful as a particle texture or soft glow sprite.
func NewCircleImage(radius float64) *ebiten.Image {
	return generateCircle(radius)
}

// generateCircle creates a feathered white circle image with the given radius.
// Uses smoothstep falloff and premultiplied alpha.
func generateCircle(radius float64) *ebiten.Image {
	size := int(math.Ceil(radius * 2))
	if size < 1 {
		size = 1
	}
	img := ebiten.NewImage(size, size)
	pix := make([]byte, size*size*4)

	cx, cy := radius, radius
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			dist := math.Sqrt(dx*dx+dy*dy) / radius

			var alpha float64
			if dist >= 1 {
				alpha = 0
			} else {
				// smoothstep: 1 at center, 0 at edge
				t := 1 - dist
				alpha = t * t * (3 - 2*t)
			}

			a := uint8(alpha * 255)
			off := (y*size + x) * 4
			pix[off+0] = a // premultiplied white
			pix[off+1] = a
			pix[off+2] = a
			pix[off+3] = a
		}
	}
	img.WritePixels(pix)
	return img
}
