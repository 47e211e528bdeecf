package arbor

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// RenderTexture is a caller-owned offscreen canvas. The dialog layer
// composites its nine-slice panels into one, then shows it through a
// sprite node. Unlike the pooled render targets the renderer recycles
// every frame, a RenderTexture lives until Dispose.
type RenderTexture struct {
	img  *ebiten.Image
	w, h int
}

// NewRenderTexture allocates a transparent canvas of the given pixel size.
func NewRenderTexture(w, h int) *RenderTexture {
	return &RenderTexture{img: ebiten.NewImage(w, h), w: w, h: h}
}

// Image exposes the backing *ebiten.Image for direct drawing.
func (rt *RenderTexture) Image() *ebiten.Image { return rt.img }

// Width returns the canvas width in pixels.
func (rt *RenderTexture) Width() int { return rt.w }

// Height returns the canvas height in pixels.
func (rt *RenderTexture) Height() int { return rt.h }

// Clear resets the canvas to transparent black.
func (rt *RenderTexture) Clear() {
	rt.img.Clear()
}

// Fill floods the canvas with a single color.
func (rt *RenderTexture) Fill(c Color) {
	rt.img.Fill(c.toRGBA())
}

// DrawImage composites src onto the canvas with the given options.
func (rt *RenderTexture) DrawImage(src *ebiten.Image, op *ebiten.DrawImageOptions) {
	rt.img.DrawImage(src, op)
}

// NewSpriteNode returns a sprite node that displays this canvas. Later
// draws to the canvas show up on the node automatically.
func (rt *RenderTexture) NewSpriteNode(name string) *Node {
	n := newNode(name, NodeTypeSprite)
	n.customImage = rt.img
	return n
}

// Dispose releases the backing image. The canvas is unusable afterwards.
func (rt *RenderTexture) Dispose() {
	if rt.img != nil {
		rt.img.Deallocate()
		rt.img = nil
	}
}
