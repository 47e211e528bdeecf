package arbor

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// maxDotsPerDraw is the maximum number of dots per mesh command.
// Limited by uint16 index buffer: 65535 / 4 vertices per dot = 16383.
const maxDotsPerDraw = 16383

// minDotScreenSpacing is the smallest on-screen distance between dots before
// the grid coarsens to the next spacing level.
const minDotScreenSpacing = 24.0

// CanvasGrid renders the editor's infinite background dot grid. It keeps a
// viewport-sized buffer of dot geometry in world space, rebuilt when the
// camera crosses a grid-cell boundary or the zoom changes, and emits the
// buffer as mesh commands each frame. Spacing doubles as the camera zooms
// out so dots never crowd the screen.
type CanvasGrid struct {
	node *Node // container node in the scene graph

	// Spacing is the base distance between dots in world units.
	Spacing float64

	// DotSize is the dot diameter in screen pixels. Dots keep roughly this
	// size regardless of zoom.
	DotSize float64

	// MajorEvery marks every Nth dot on both axes as a major dot, drawn
	// larger and at full opacity. 0 disables major dots.
	MajorEvery int

	// MinorAlpha is the opacity of non-major dots relative to the node tint.
	MinorAlpha float64

	// MarginCells is the number of extra grid cells beyond the viewport edge
	// to keep buffered. Prevents pop-in during fast pans. Default 2.
	MarginCells int

	// Camera binding. The grid is inert until a camera is bound.
	camera *Camera

	// Geometry buffer — preallocated to max visible dots.
	vertices  []ebiten.Vertex // 4 vertices per dot
	indices   []uint16        // 6 indices per dot (topology never changes)
	baseAlpha []float32       // per-dot opacity (major vs minor)
	dotCount  int

	// Tracking which grid cells the buffer currently covers.
	bufStartCol int
	bufStartRow int
	bufCols     int
	bufRows     int
	bufDirty    bool // force rebuild on next update

	lastZoom    float64
	lastSpacing float64
}

// NewCanvasGrid creates a background grid node. Add the returned grid's Node
// to the scene graph (typically on a low RenderLayer) and bind a camera with
// SetCamera.
func NewCanvasGrid(name string) *CanvasGrid {
	g := &CanvasGrid{
		node:        NewContainer(name),
		Spacing:     48,
		DotSize:     3,
		MajorEvery:  4,
		MinorAlpha:  0.55,
		MarginCells: 2,
		bufDirty:    true,
		bufStartCol: -1, // force initial rebuild
		bufStartRow: -1,
	}
	g.node.OnUpdate = g.update
	g.node.customEmit = g.emitCommands
	return g
}

// Node returns the underlying scene graph node for this grid.
func (g *CanvasGrid) Node() *Node {
	return g.node
}

// SetCamera binds the grid to the camera whose visible bounds drive the
// buffer window.
func (g *CanvasGrid) SetCamera(cam *Camera) {
	g.camera = cam
	g.bufDirty = true
}

// InvalidateBuffer forces a full buffer rebuild on the next frame.
func (g *CanvasGrid) InvalidateBuffer() {
	g.bufDirty = true
	g.bufStartCol = -1
	g.bufStartRow = -1
}

// effectiveSpacing returns the world-space dot spacing for the given zoom.
// The base spacing doubles until dots are at least minDotScreenSpacing pixels
// apart on screen.
func (g *CanvasGrid) effectiveSpacing(zoom float64) float64 {
	spacing := g.Spacing
	if spacing <= 0 {
		spacing = 48
	}
	for i := 0; i < 20 && spacing*zoom < minDotScreenSpacing; i++ {
		spacing *= 2
	}
	return spacing
}

// update is the per-frame update callback registered on the grid node.
func (g *CanvasGrid) update(dt float64) {
	cam := g.camera
	if cam == nil {
		return
	}

	zoom := cam.Zoom
	if zoom <= 0 {
		zoom = 1.0
	}
	spacing := g.effectiveSpacing(zoom)
	bounds := cam.VisibleBounds()

	// Compute buffer dimensions from the visible world area.
	// +2 accounts for partial cells visible at both edges when the camera is
	// not cell-aligned.
	bufCols := int(math.Ceil(bounds.Width/spacing)) + 2 + 2*g.MarginCells
	bufRows := int(math.Ceil(bounds.Height/spacing)) + 2 + 2*g.MarginCells

	// Compute the visible cell range. The grid is unbounded, so negative
	// columns and rows are valid; there is nothing to clamp against.
	startCol := int(math.Floor(bounds.X/spacing)) - g.MarginCells
	startRow := int(math.Floor(bounds.Y/spacing)) - g.MarginCells

	g.ensureBuffer(bufCols, bufRows)

	// Rebuild on cell boundary crossings, zoom changes, or explicit dirty.
	if g.bufDirty || startCol != g.bufStartCol || startRow != g.bufStartRow ||
		spacing != g.lastSpacing || zoom != g.lastZoom {
		g.rebuildBuffer(startCol, startRow, bufCols, bufRows, spacing, zoom)
	}
}

// ensureBuffer grows the geometry buffer if needed.
func (g *CanvasGrid) ensureBuffer(cols, rows int) {
	cap := cols * rows
	if cap <= len(g.baseAlpha) {
		return
	}

	g.baseAlpha = make([]float32, cap)
	g.vertices = make([]ebiten.Vertex, cap*4)

	// Build index buffer (topology never changes).
	g.indices = make([]uint16, cap*6)
	for i := 0; i < cap; i++ {
		base := uint16(i * 4)
		off := i * 6
		g.indices[off+0] = base + 0
		g.indices[off+1] = base + 1
		g.indices[off+2] = base + 2
		g.indices[off+3] = base + 1
		g.indices[off+4] = base + 3
		g.indices[off+5] = base + 2
	}
}

// rebuildBuffer fills the vertex buffer with dot quads for the given cell range.
func (g *CanvasGrid) rebuildBuffer(startCol, startRow, bufCols, bufRows int, spacing, zoom float64) {
	g.bufStartCol = startCol
	g.bufStartRow = startRow
	g.bufCols = bufCols
	g.bufRows = bufRows
	g.bufDirty = false
	g.lastSpacing = spacing
	g.lastZoom = zoom

	// Dot diameter in world units, so dots stay DotSize pixels on screen.
	dotWorld := g.DotSize / zoom
	major := dotWorld * 1.6

	dot := 0
	for br := 0; br < bufRows; br++ {
		row := startRow + br
		cy := float64(row) * spacing
		for bc := 0; bc < bufCols; bc++ {
			col := startCol + bc
			cx := float64(col) * spacing

			size := dotWorld
			alpha := float32(g.MinorAlpha)
			if g.MajorEvery > 0 && col%g.MajorEvery == 0 && row%g.MajorEvery == 0 {
				size = major
				alpha = 1
			}

			half := float32(size / 2)
			x := float32(cx)
			y := float32(cy)

			vi := dot * 4
			// Quad corners around the dot center: TL, TR, BL, BR.
			g.vertices[vi+0].DstX = x - half
			g.vertices[vi+0].DstY = y - half
			g.vertices[vi+1].DstX = x + half
			g.vertices[vi+1].DstY = y - half
			g.vertices[vi+2].DstX = x - half
			g.vertices[vi+2].DstY = y + half
			g.vertices[vi+3].DstX = x + half
			g.vertices[vi+3].DstY = y + half

			// UVs span the shared 1x1 white pixel.
			g.vertices[vi+0].SrcX, g.vertices[vi+0].SrcY = 0, 0
			g.vertices[vi+1].SrcX, g.vertices[vi+1].SrcY = 1, 0
			g.vertices[vi+2].SrcX, g.vertices[vi+2].SrcY = 0, 1
			g.vertices[vi+3].SrcX, g.vertices[vi+3].SrcY = 1, 1

			g.baseAlpha[dot] = alpha
			dot++
		}
	}
	g.dotCount = dot
}

// emitCommands is the customEmit callback for the grid node. Vertex positions
// are already world-space; the camera view is applied at submit time. Only the
// tint is refreshed here, mirroring how transformVertices folds color into
// mesh vertices.
func (g *CanvasGrid) emitCommands(s *Scene, treeOrder *int) {
	if g.dotCount == 0 {
		return
	}

	n := g.node
	a := float32(n.Color.A * n.worldAlpha)
	cr := float32(n.Color.R) * a
	cg := float32(n.Color.G) * a
	cb := float32(n.Color.B) * a

	count := g.dotCount
	for i := 0; i < count; i++ {
		ba := g.baseAlpha[i]
		vi := i * 4
		for k := 0; k < 4; k++ {
			v := &g.vertices[vi+k]
			v.ColorR = cr * ba
			v.ColorG = cg * ba
			v.ColorB = cb * ba
			v.ColorA = a * ba
		}
	}

	// Emit commands, splitting at maxDotsPerDraw boundaries.
	for offset := 0; offset < count; offset += maxDotsPerDraw {
		end := offset + maxDotsPerDraw
		if end > count {
			end = count
		}
		batchDots := end - offset

		*treeOrder++
		s.commands = append(s.commands, RenderCommand{
			Type:        CommandMesh,
			RenderLayer: n.RenderLayer,
			GlobalOrder: n.GlobalOrder,
			treeOrder:   *treeOrder,
			BlendMode:   n.BlendMode,
			meshVerts:   g.vertices[offset*4 : end*4],
			meshInds:    g.indices[:batchDots*6],
			meshImage:   WhitePixel,
		})
	}
}
