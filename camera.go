package arbor

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// scrollAnim holds the active scroll-to tweens for camera X and Y.
type scrollAnim struct {
	tweenX, tweenY *gween.Tween
	doneX, doneY   bool
}

// Camera is the view into the canvas: position, zoom, rotation, viewport.
// The studio binds one camera per canvas pane; split views get two.
type Camera struct {
	// X and Y are the world point the camera centers on.
	X, Y float64
	// Zoom scales the view: 1 is native size, above 1 magnifies.
	Zoom float64
	// Rotation spins the view clockwise, in radians.
	Rotation float64
	// Viewport is the screen-space rectangle this camera renders into.
	Viewport Rect

	// MinZoom and MaxZoom clamp SetZoom and ZoomAt. A value <= 0 leaves
	// that end unbounded.
	MinZoom, MaxZoom float64

	// CullEnabled skips nodes whose world AABB falls entirely outside the
	// camera's visible bounds.
	CullEnabled bool

	// BoundsEnabled keeps the visible area inside Bounds, the world-space
	// rectangle the canvas occupies.
	BoundsEnabled bool
	Bounds        Rect

	viewMatrix, invViewMatrix [6]float64

	dirty       bool
	scrollTween *scrollAnim
}

// newCamera creates a Camera with default values and the given viewport.
func newCamera(viewport Rect) *Camera {
	c := &Camera{Zoom: 1.0, Viewport: viewport}
	c.CullEnabled, c.dirty = true, true
	return c
}

// ScrollTo glides the camera to the given world position over duration
// seconds, one tween per axis.
func (c *Camera) ScrollTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	anim := &scrollAnim{}
	anim.tweenX = gween.New(float32(c.X), float32(x), duration, easeFn)
	anim.tweenY = gween.New(float32(c.Y), float32(y), duration, easeFn)
	c.scrollTween = anim
}

// SetZoom sets the zoom level, clamped to [MinZoom, MaxZoom].
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = c.clampZoom(zoom)
	c.dirty = true
}

// ZoomAt multiplies the zoom by factor while keeping the world point under
// the given screen position stationary. Scroll-wheel zoom: the marker under
// the cursor stays put while the canvas scales around it.
func (c *Camera) ZoomAt(screenX, screenY, factor float64) {
	oldZoom := c.Zoom
	newZoom := c.clampZoom(oldZoom * factor)
	if newZoom == oldZoom {
		return
	}
	wx, wy := c.ScreenToWorld(screenX, screenY)
	ratio := oldZoom / newZoom
	c.X = wx - (wx-c.X)*ratio
	c.Y = wy - (wy-c.Y)*ratio
	c.Zoom = newZoom
	c.dirty = true
	if c.BoundsEnabled {
		c.clampToBounds()
	}
}

func (c *Camera) clampZoom(zoom float64) float64 {
	switch {
	case c.MinZoom > 0 && zoom < c.MinZoom:
		return c.MinZoom
	case c.MaxZoom > 0 && zoom > c.MaxZoom:
		return c.MaxZoom
	}
	return zoom
}

// SetBounds turns on bounds clamping against the given world rectangle.
func (c *Camera) SetBounds(bounds Rect) {
	c.BoundsEnabled, c.Bounds = true, bounds
}

// ClearBounds disables camera bounds clamping.
func (c *Camera) ClearBounds() { c.BoundsEnabled = false }

// ClampToBounds re-clamps immediately after a direct X/Y write (a pan
// callback, say), so not even one frame renders outside the bounds.
// No-op when BoundsEnabled is false.
func (c *Camera) ClampToBounds() {
	if !c.BoundsEnabled {
		return
	}
	c.clampToBounds()
}

// update advances the scroll animation and re-clamps. Called from Scene.Update().
func (c *Camera) update(dt float32) {
	prevX, prevY := c.X, c.Y
	prevZoom, prevRot := c.Zoom, c.Rotation

	if anim := c.scrollTween; anim != nil {
		if !anim.doneX {
			val, done := anim.tweenX.Update(dt)
			c.X = float64(val)
			anim.doneX = done
		}
		if !anim.doneY {
			val, done := anim.tweenY.Update(dt)
			c.Y = float64(val)
			anim.doneY = done
		}
		if anim.doneX && anim.doneY {
			c.scrollTween = nil
		}
	}

	if c.BoundsEnabled {
		c.clampToBounds()
	}

	moved := c.X != prevX || c.Y != prevY
	if moved || c.Zoom != prevZoom || c.Rotation != prevRot {
		c.dirty = true
	}
}

// clampAxis keeps pos within [lo, hi]; when the range is inverted (the world
// span is smaller than the visible span) the camera centers on mid instead.
func clampAxis(pos, lo, hi, mid float64) float64 {
	if lo > hi {
		return mid
	}
	return math.Max(lo, math.Min(pos, hi))
}

// clampToBounds restricts camera position so the visible area stays within Bounds.
func (c *Camera) clampToBounds() {
	halfW, halfH := c.Viewport.Width/(2*c.Zoom), c.Viewport.Height/(2*c.Zoom)
	bx, by := c.Bounds.X, c.Bounds.Y
	bw, bh := c.Bounds.Width, c.Bounds.Height

	c.X = clampAxis(c.X, bx+halfW, bx+bw-halfW, bx+bw/2)
	c.Y = clampAxis(c.Y, by+halfH, by+bh-halfH, by+bh/2)
}

// computeViewMatrix refreshes the cached view matrix when dirty. The matrix
// is the product
//
//	Translate(center) * Scale(zoom) * Rotate(-rotation) * Translate(-X, -Y)
//
// where center is the viewport midpoint.
func (c *Camera) computeViewMatrix() [6]float64 {
	if !c.dirty {
		return c.viewMatrix
	}
	c.dirty = false

	cx, cy := c.Viewport.X+c.Viewport.Width/2, c.Viewport.Y+c.Viewport.Height/2
	sin, cos := math.Sincos(-c.Rotation)
	z := c.Zoom

	// Expanded product of the four factors above:
	// [a b tx]   [z*cos  -z*sin  cx + z*(-cos*X + sin*Y)]
	// [c d ty] = [z*sin   z*cos  cy + z*(-sin*X - cos*Y)]
	zc, zs := z*cos, z*sin
	c.viewMatrix = [6]float64{
		zc, zs, -zs, zc,
		cx + z*(-cos*c.X+sin*c.Y),
		cy + z*(-sin*c.X-cos*c.Y),
	}
	c.invViewMatrix = invertAffine(c.viewMatrix)
	return c.viewMatrix
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (float64, float64) {
	c.computeViewMatrix()
	return transformPoint(c.viewMatrix, wx, wy)
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	c.computeViewMatrix()
	return transformPoint(c.invViewMatrix, sx, sy)
}

// cornerAABB returns the axis-aligned rect spanning four transformed corners.
func cornerAABB(x0, y0, x1, y1, x2, y2, x3, y3 float64) Rect {
	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// VisibleBounds returns the axis-aligned bounding rect of the camera's
// visible area in world space.
func (c *Camera) VisibleBounds() Rect {
	c.computeViewMatrix()
	inv := c.invViewMatrix

	v := c.Viewport
	right, bottom := v.X+v.Width, v.Y+v.Height

	x0, y0 := transformPoint(inv, v.X, v.Y)
	x1, y1 := transformPoint(inv, right, v.Y)
	x2, y2 := transformPoint(inv, right, bottom)
	x3, y3 := transformPoint(inv, v.X, bottom)
	return cornerAABB(x0, y0, x1, y1, x2, y2, x3, y3)
}

// MarkDirty forces a recomputation of the view matrix.
func (c *Camera) MarkDirty() { c.dirty = true }

// --- Culling ---

// worldAABB computes the axis-aligned bounding box for a rectangle of size
// (w, h) under the given affine transform. Zero allocations.
func worldAABB(transform [6]float64, w, h float64) Rect {
	a, b := transform[0], transform[2]
	cc, d := transform[1], transform[3]
	tx, ty := transform[4], transform[5]

	// Corners (0,0), (w,0), (w,h), (0,h).
	return cornerAABB(
		tx, ty,
		a*w+tx, cc*w+ty,
		a*w+b*h+tx, cc*w+d*h+ty,
		b*h+tx, d*h+ty,
	)
}

// nodeDimensions returns the width and height used for AABB culling.
func nodeDimensions(n *Node) (w, h float64) {
	switch n.Type {
	case NodeTypeSprite:
		img := n.customImage
		if img == nil {
			return float64(n.TextureRegion.OriginalW), float64(n.TextureRegion.OriginalH)
		}
		b := img.Bounds()
		return float64(b.Dx()), float64(b.Dy())
	case NodeTypeMesh:
		n.recomputeMeshAABB()
		return n.meshAABB.Width, n.meshAABB.Height
	case NodeTypeParticleEmitter:
		if e := n.Emitter; e != nil {
			return float64(e.config.Region.OriginalW), float64(e.config.Region.OriginalH)
		}
	case NodeTypeText:
		if tb := n.TextBlock; tb != nil {
			tb.layout() // ensure measured dims are current
			return tb.measuredW, tb.measuredH
		}
	}
	return 0, 0
}

// shouldCull reports whether the node's emission can be skipped for this
// frame. worldXform is the node's world transform; cullBounds the camera's
// visible world-space rectangle. Containers are never culled; nodes whose
// size can't be determined (unmeasured text, zero regions) aren't either.
func shouldCull(n *Node, worldXform [6]float64, cullBounds Rect) bool {
	switch n.Type {
	case NodeTypeContainer:
		return false
	case NodeTypeMesh:
		aabb := meshWorldAABBOffset(n, worldXform)
		if aabb.Width == 0 && aabb.Height == 0 {
			return false
		}
		return !aabb.Intersects(cullBounds)
	}

	w, h := nodeDimensions(n)
	if w == 0 && h == 0 {
		return false // unmeasured, keep it
	}
	return !worldAABB(worldXform, w, h).Intersects(cullBounds)
}
