package arbor

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Mesh vertex helpers. Rope links between markers are built as triangle
// strips of ebiten.Vertex; these routines transform, tint, and bound them.

// transformVertices writes src transformed by the affine matrix and tinted
// into dst, which must hold at least len(src) vertices.
//
// Matrix layout: [0]=a, [1]=b, [2]=c, [3]=d, [4]=tx, [5]=ty with
// newX = a*x + c*y + tx and newY = b*x + d*y + ty.
//
// Vertex colors multiply against the tint. The tint alpha already carries
// worldAlpha, so RGB is premultiplied by it here exactly once.
func transformVertices(src, dst []ebiten.Vertex, transform [6]float64, tint Color) {
	a, b := transform[0], transform[1]
	c, d := transform[2], transform[3]
	tx, ty := transform[4], transform[5]
	ta := float32(tint.A)
	tr := float32(tint.R) * ta
	tg := float32(tint.G) * ta
	tb := float32(tint.B) * ta

	for i := range src {
		v := &src[i]
		x := float64(v.DstX)
		y := float64(v.DstY)
		dst[i] = ebiten.Vertex{
			DstX:   float32(a*x + c*y + tx),
			DstY:   float32(b*x + d*y + ty),
			SrcX:   v.SrcX,
			SrcY:   v.SrcY,
			ColorR: v.ColorR * tr,
			ColorG: v.ColorG * tg,
			ColorB: v.ColorB * tb,
			ColorA: v.ColorA * ta,
		}
	}
}

// computeMeshAABB returns the local-space bounding box of the vertex
// positions. An empty slice yields the zero Rect.
func computeMeshAABB(verts []ebiten.Vertex) Rect {
	if len(verts) == 0 {
		return Rect{}
	}
	loX := float64(verts[0].DstX)
	loY := float64(verts[0].DstY)
	hiX, hiY := loX, loY
	for _, v := range verts[1:] {
		x := float64(v.DstX)
		y := float64(v.DstY)
		loX = min(loX, x)
		hiX = max(hiX, x)
		loY = min(loY, y)
		hiY = max(hiY, y)
	}
	return Rect{X: loX, Y: loY, Width: hiX - loX, Height: hiY - loY}
}

// ensureTransformedVerts reslices the node's transformedVerts scratch buffer
// to len(n.Vertices), reallocating only on growth. The buffer never shrinks.
func ensureTransformedVerts(n *Node) []ebiten.Vertex {
	need := len(n.Vertices)
	if cap(n.transformedVerts) < need {
		n.transformedVerts = make([]ebiten.Vertex, need)
	}
	n.transformedVerts = n.transformedVerts[:need]
	return n.transformedVerts
}

// InvalidateMeshAABB marks the cached AABB stale. Call after editing
// Vertices, e.g. when a rope is re-laid between moved markers.
func (n *Node) InvalidateMeshAABB() {
	n.meshAABBDirty = true
}

func (n *Node) recomputeMeshAABB() {
	if !n.meshAABBDirty {
		return
	}
	n.meshAABB = computeMeshAABB(n.Vertices)
	n.meshAABBDirty = false
}

// ensureWhitePixel returns the shared 1x1 white image used by untextured
// polygon meshes and solid-fill widgets.
func ensureWhitePixel() *ebiten.Image {
	if WhitePixel == nil {
		WhitePixel = ebiten.NewImage(1, 1)
		WhitePixel.Fill(ColorWhite.toRGBA())
	}
	return WhitePixel
}

// meshWorldAABB returns the world-space AABB of a mesh node. Vertices need
// not start at the origin, so the transform is first shifted to the local
// AABB's min corner.
func meshWorldAABB(n *Node, transform [6]float64) Rect {
	n.recomputeMeshAABB()
	local := n.meshAABB
	if local.Width == 0 && local.Height == 0 {
		return Rect{}
	}
	shifted := transform
	shifted[4] = transform[0]*local.X + transform[2]*local.Y + transform[4]
	shifted[5] = transform[1]*local.X + transform[3]*local.Y + transform[5]
	return worldAABB(shifted, local.Width, local.Height)
}

// meshWorldAABBOffset maps the local AABB's four corners through the given
// transform and bounds them. Culling compares the result against the
// camera's visible bounds.
func meshWorldAABBOffset(n *Node, transform [6]float64) Rect {
	n.recomputeMeshAABB()
	local := n.meshAABB
	if local.Width == 0 && local.Height == 0 {
		return Rect{}
	}
	x0, y0 := local.X, local.Y
	x1, y1 := local.X+local.Width, local.Y+local.Height
	return cornerAABB(
		transform[0]*x0+transform[2]*y0+transform[4], transform[1]*x0+transform[3]*y0+transform[5],
		transform[0]*x1+transform[2]*y0+transform[4], transform[1]*x1+transform[3]*y0+transform[5],
		transform[0]*x1+transform[2]*y1+transform[4], transform[1]*x1+transform[3]*y1+transform[5],
		transform[0]*x0+transform[2]*y1+transform[4], transform[1]*x0+transform[3]*y1+transform[5],
	)
}
