package arbor

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Rope ---

// RopeJoinMode controls how segments join in a Rope mesh.
type RopeJoinMode uint8

const (
	// RopeJoinMiter extends segment corners to a sharp point.
	RopeJoinMiter RopeJoinMode = iota
	// RopeJoinBevel averages adjacent normals without miter extension,
	// avoiding spikes at sharp corners.
	RopeJoinBevel
)

// RopeCurveMode selects the curve algorithm used by Rope.Update().
type RopeCurveMode uint8

const (
	// RopeCurveLine draws a straight line between Start and End.
	RopeCurveLine RopeCurveMode = iota
	// RopeCurveQuadBezier uses a quadratic Bézier with one control point.
	RopeCurveQuadBezier
	// RopeCurveWave produces a sinusoidal wave along the line.
	RopeCurveWave
)

// RopeConfig configures a Rope mesh.
type RopeConfig struct {
	Width    float64
	JoinMode RopeJoinMode

	CurveMode RopeCurveMode
	Segments  int // number of subdivisions (default 20)

	// Endpoint positions (pointers). Update() dereferences these each call,
	// so you can bind them once and mutate the underlying Vec2 freely.
	Start *Vec2
	End   *Vec2

	// Quadratic Bézier control point (pointer, same binding rules as Start/End).
	Control *Vec2

	// Wave parameters.
	Amplitude float64
	Frequency float64 // cycles along the rope length
	Phase     float64 // phase offset in radians

	// UVOffset shifts the texture horizontally along the path, in pixels.
	// Advancing it each frame scrolls the texture along the rope.
	UVOffset float64
}

// Rope generates a ribbon mesh that follows a polyline path.
type Rope struct {
	node   *Node
	config RopeConfig
	cumLen []float64 // preallocated cumulative length buffer
	ptsBuf []Vec2    // preallocated points buffer for Update()
}

// NewRope creates a rope mesh node that renders a textured ribbon along the
// given points. The image is tiled along the path (SrcX) and spans the full
// image height (SrcY). Panics on malformed configuration: geometry setup
// errors are programmer errors.
func NewRope(name string, img *ebiten.Image, points []Vec2, cfg RopeConfig) (*Rope, *Node) {
	if cfg.Width <= 0 {
		panic("arbor: rope width must be positive")
	}
	if cfg.CurveMode > RopeCurveWave {
		panic("arbor: unknown rope curve mode")
	}
	n := NewMesh(name, img, nil, nil)
	r := &Rope{node: n, config: cfg}
	r.SetPoints(points)
	return r, n
}

// Node returns the underlying mesh node.
func (r *Rope) Node() *Node {
	return r.node
}

// Config returns a pointer to the rope's configuration so callers can mutate
// fields directly before calling Update().
func (r *Rope) Config() *RopeConfig {
	return &r.config
}

// Update recomputes the rope's point path from the current RopeConfig and
// rebuilds the mesh. Call this after moving the bound Vec2 values. Start and
// End must be non-nil.
func (r *Rope) Update() {
	if r.config.Start == nil || r.config.End == nil {
		return
	}

	segs := r.config.Segments
	if segs <= 0 {
		segs = 20
	}
	n := segs + 1

	// Grow ptsBuf to high-water mark.
	if cap(r.ptsBuf) < n {
		r.ptsBuf = make([]Vec2, n)
	}
	r.ptsBuf = r.ptsBuf[:n]

	switch r.config.CurveMode {
	case RopeCurveLine:
		s, e := *r.config.Start, *r.config.End
		for i := 0; i < n; i++ {
			t := float64(i) / float64(segs)
			r.ptsBuf[i] = Vec2{
				X: s.X + (e.X-s.X)*t,
				Y: s.Y + (e.Y-s.Y)*t,
			}
		}

	case RopeCurveQuadBezier:
		if r.config.Control == nil {
			return
		}
		a, c, b := *r.config.Start, *r.config.Control, *r.config.End
		for i := 0; i < n; i++ {
			t := float64(i) / float64(segs)
			u := 1 - t
			r.ptsBuf[i] = Vec2{
				X: u*u*a.X + 2*u*t*c.X + t*t*b.X,
				Y: u*u*a.Y + 2*u*t*c.Y + t*t*b.Y,
			}
		}

	case RopeCurveWave:
		s, e := *r.config.Start, *r.config.End
		dx := e.X - s.X
		dy := e.Y - s.Y
		ln := math.Sqrt(dx*dx + dy*dy)
		var px, py float64 // perpendicular unit vector
		if ln > 1e-10 {
			px = -dy / ln
			py = dx / ln
		}
		for i := 0; i < n; i++ {
			t := float64(i) / float64(segs)
			off := r.config.Amplitude * math.Sin(r.config.Frequency*2*math.Pi*t+r.config.Phase)
			r.ptsBuf[i] = Vec2{
				X: s.X + dx*t + px*off,
				Y: s.Y + dy*t + py*off,
			}
		}
	}

	r.SetPoints(r.ptsBuf)
}

// SetUVOffset updates the horizontal texture offset and rewrites vertex UVs in
// place, without rebuilding geometry. Cheap enough to call every frame for
// flow animation.
func (r *Rope) SetUVOffset(offset float64) {
	r.config.UVOffset = offset
	if len(r.cumLen)*2 != len(r.node.Vertices) {
		return
	}
	for i := range r.cumLen {
		srcX := float32(r.cumLen[i] - offset)
		r.node.Vertices[i*2].SrcX = srcX
		r.node.Vertices[i*2+1].SrcX = srcX
	}
}

// SetPoints updates the rope's path. For N points: 2N vertices, 6(N-1) indices.
func (r *Rope) SetPoints(points []Vec2) {
	if len(points) < 2 {
		r.node.Vertices = r.node.Vertices[:0]
		r.node.Indices = r.node.Indices[:0]
		r.node.InvalidateMeshAABB()
		return
	}

	n := len(points)
	numVerts := n * 2
	numInds := (n - 1) * 6

	// Grow vertex/index slices to high-water mark.
	if cap(r.node.Vertices) < numVerts {
		r.node.Vertices = make([]ebiten.Vertex, numVerts)
	}
	r.node.Vertices = r.node.Vertices[:numVerts]

	if cap(r.node.Indices) < numInds {
		r.node.Indices = make([]uint16, numInds)
	}
	r.node.Indices = r.node.Indices[:numInds]

	imgH := float64(0)
	if r.node.MeshImage != nil {
		imgH = float64(r.node.MeshImage.Bounds().Dy())
	}

	halfW := r.config.Width / 2

	// Compute cumulative path length for UV tiling.
	if cap(r.cumLen) < n {
		r.cumLen = make([]float64, n)
	}
	r.cumLen = r.cumLen[:n]
	r.cumLen[0] = 0
	for i := 1; i < n; i++ {
		dx := points[i].X - points[i-1].X
		dy := points[i].Y - points[i-1].Y
		r.cumLen[i] = r.cumLen[i-1] + math.Sqrt(dx*dx+dy*dy)
	}

	for i := 0; i < n; i++ {
		// Compute perpendicular normal.
		var nx, ny float64
		if i == 0 {
			nx, ny = perpendicular(points[0], points[1])
		} else if i == n-1 {
			nx, ny = perpendicular(points[n-2], points[n-1])
		} else {
			// Average of adjacent segment normals (miter).
			nx0, ny0 := perpendicular(points[i-1], points[i])
			nx1, ny1 := perpendicular(points[i], points[i+1])
			nx, ny = nx0+nx1, ny0+ny1
			ln := math.Sqrt(nx*nx + ny*ny)
			if ln > 1e-10 {
				nx /= ln
				ny /= ln
			}
			if r.config.JoinMode == RopeJoinMiter {
				// Scale to maintain width at the miter, clamped to avoid
				// exaggerated spikes at sharp corners (max 2x extension).
				dot := nx0*nx + ny0*ny
				if dot > 0.1 {
					scale := 1.0 / dot
					if scale > 2.0 {
						scale = 2.0
					}
					nx *= scale
					ny *= scale
				}
			}
		}

		srcX := float32(r.cumLen[i] - r.config.UVOffset)
		vi := i * 2
		r.node.Vertices[vi] = ebiten.Vertex{
			DstX:   float32(points[i].X + nx*halfW),
			DstY:   float32(points[i].Y + ny*halfW),
			SrcX:   srcX,
			SrcY:   0,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		}
		r.node.Vertices[vi+1] = ebiten.Vertex{
			DstX:   float32(points[i].X - nx*halfW),
			DstY:   float32(points[i].Y - ny*halfW),
			SrcX:   srcX,
			SrcY:   float32(imgH),
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		}
	}

	// Build indices: two triangles per segment.
	for i := 0; i < n-1; i++ {
		ii := i * 6
		v := uint16(i * 2)
		r.node.Indices[ii+0] = v
		r.node.Indices[ii+1] = v + 1
		r.node.Indices[ii+2] = v + 2
		r.node.Indices[ii+3] = v + 1
		r.node.Indices[ii+4] = v + 3
		r.node.Indices[ii+5] = v + 2
	}

	r.node.InvalidateMeshAABB()
}

// perpendicular returns the unit left-perpendicular of the segment from a to b.
func perpendicular(a, b Vec2) (float64, float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	ln := math.Sqrt(dx*dx + dy*dy)
	if ln < 1e-10 {
		return 0, -1
	}
	return -dy / ln, dx / ln
}

// --- Polygon ---

// NewPolygon creates an untextured polygon mesh from the given vertices.
// Uses fan triangulation (convex polygons). The polygon is drawn with a shared
// 1x1 white pixel image; color comes from the node's Color field.
func NewPolygon(name string, points []Vec2) *Node {
	white := ensureWhitePixel()
	verts, inds := buildPolygonFan(points, false, nil)
	return NewMesh(name, white, verts, inds)
}

// NewPolygonTextured creates a textured polygon mesh. UVs are mapped to the
// bounding box of the points, so (0,0)→top-left and (imgW,imgH)→bottom-right.
func NewPolygonTextured(name string, img *ebiten.Image, points []Vec2) *Node {
	verts, inds := buildPolygonFan(points, true, img)
	return NewMesh(name, img, verts, inds)
}

// SetPolygonPoints updates the polygon's vertices. Maintains fan triangulation.
// If the node carries a texture, UVs are remapped to the new bounding box.
func SetPolygonPoints(n *Node, points []Vec2) {
	textured := false
	var img *ebiten.Image
	if n.MeshImage != nil && n.MeshImage != ensureWhitePixel() {
		textured = true
		img = n.MeshImage
	}
	verts, inds := buildPolygonFan(points, textured, img)

	// Reuse backing arrays when possible.
	if cap(n.Vertices) >= len(verts) {
		n.Vertices = n.Vertices[:len(verts)]
		copy(n.Vertices, verts)
	} else {
		n.Vertices = verts
	}
	if cap(n.Indices) >= len(inds) {
		n.Indices = n.Indices[:len(inds)]
		copy(n.Indices, inds)
	} else {
		n.Indices = inds
	}

	n.InvalidateMeshAABB()
}

// buildPolygonFan generates vertices and indices for a fan-triangulated polygon.
// N vertices, 3*(N-2) indices.
func buildPolygonFan(points []Vec2, textured bool, img *ebiten.Image) ([]ebiten.Vertex, []uint16) {
	n := len(points)
	if n < 3 {
		return nil, nil
	}

	verts := make([]ebiten.Vertex, n)
	inds := make([]uint16, (n-2)*3)

	// Compute bounding box for UV mapping (textured mode).
	var minX, minY, maxX, maxY float64
	var imgW, imgH float64
	if textured && img != nil {
		minX, minY = points[0].X, points[0].Y
		maxX, maxY = minX, minY
		for i := 1; i < n; i++ {
			if points[i].X < minX {
				minX = points[i].X
			}
			if points[i].X > maxX {
				maxX = points[i].X
			}
			if points[i].Y < minY {
				minY = points[i].Y
			}
			if points[i].Y > maxY {
				maxY = points[i].Y
			}
		}
		b := img.Bounds()
		imgW = float64(b.Dx())
		imgH = float64(b.Dy())
	}

	for i, p := range points {
		v := &verts[i]
		v.DstX = float32(p.X)
		v.DstY = float32(p.Y)
		v.ColorR = 1
		v.ColorG = 1
		v.ColorB = 1
		v.ColorA = 1

		if textured && img != nil {
			bbW := maxX - minX
			bbH := maxY - minY
			var u, vv float64
			if bbW > 0 {
				u = (p.X - minX) / bbW * imgW
			}
			if bbH > 0 {
				vv = (p.Y - minY) / bbH * imgH
			}
			v.SrcX = float32(u)
			v.SrcY = float32(vv)
		} else {
			// Untextured: map to center of white pixel (0.5, 0.5)
			v.SrcX = 0.5
			v.SrcY = 0.5
		}
	}

	// Fan triangulation: vertex 0 is the hub.
	for i := 0; i < n-2; i++ {
		inds[i*3+0] = 0
		inds[i*3+1] = uint16(i + 1)
		inds[i*3+2] = uint16(i + 2)
	}

	return verts, inds
}
