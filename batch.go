package arbor

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// BatchMode selects how the sorted command list reaches the GPU.
type BatchMode uint8

const (
	// BatchModeImmediate issues one draw call per command. The default.
	BatchModeImmediate BatchMode = iota
	// BatchModeCoalesced merges runs of same-page sprites into single
	// DrawTriangles32 calls. Pays off on dense marker canvases where
	// hundreds of small quads share one atlas page.
	BatchModeCoalesced
)

// SetBatchMode selects the command submission strategy.
func (s *Scene) SetBatchMode(mode BatchMode) {
	s.batchMode = mode
}

// GetBatchMode reports the current command submission strategy.
func (s *Scene) GetBatchMode() BatchMode {
	return s.batchMode
}

// batchKey groups commands that may share one draw call.
type batchKey struct {
	targetID, shaderID uint16
	blend              BlendMode
	page               uint16
}

func commandBatchKey(cmd *RenderCommand) batchKey {
	return batchKey{cmd.TargetID, cmd.ShaderID, cmd.BlendMode, cmd.TextureRegion.Page}
}

// resetBatch truncates the shared vertex and index buffers, keeping capacity.
func (s *Scene) resetBatch() {
	s.batchVerts = s.batchVerts[:0]
	s.batchInds = s.batchInds[:0]
}

// appendQuadIndices emits the two triangles for the quad whose vertices
// start at base.
func (s *Scene) appendQuadIndices(base uint32) {
	s.batchInds = append(s.batchInds,
		base+0, base+1, base+2,
		base+1, base+3, base+2,
	)
}

// mulAffine32 composes two affines; the result applies n first, then m.
func mulAffine32(m, n [6]float32) [6]float32 {
	return [6]float32{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

// screenTransform stacks the active camera view on the command's world
// transform.
func (s *Scene) screenTransform(cmd *RenderCommand) [6]float32 {
	if s.viewIdentity {
		return cmd.Transform
	}
	return mulAffine32(s.view32, cmd.Transform)
}

// pageImage resolves an atlas page index, including the magenta fallback
// for unresolved regions. Returns nil for unregistered pages.
func (s *Scene) pageImage(page uint16) *ebiten.Image {
	if page == magentaPlaceholderPage {
		return ensureMagentaImage()
	}
	if int(page) < len(s.pages) {
		return s.pages[page]
	}
	return nil
}

// atlasRect is the region's pixel rectangle on its page. Rotated regions
// are stored sideways, so the rect swaps the axes.
func atlasRect(r *TextureRegion) image.Rectangle {
	if r.Rotated {
		return image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Height), int(r.Y)+int(r.Width))
	}
	return image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Width), int(r.Y)+int(r.Height))
}

// applyTint writes the command's premultiplied tint into op. The zero
// color is the untinted sentinel and renders opaque white.
func applyTint(op *ebiten.DrawImageOptions, c color32) {
	op.ColorScale.Reset()
	if c.A == 0 && c.R == 0 && c.G == 0 && c.B == 0 {
		return
	}
	op.ColorScale.Scale(c.R*c.A, c.G*c.A, c.B*c.A, c.A)
}

// affineGeoM converts a [6]float32 affine into an ebiten.GeoM.
func affineGeoM(t [6]float32) ebiten.GeoM {
	var m ebiten.GeoM
	m.SetElement(0, 0, float64(t[0]))
	m.SetElement(1, 0, float64(t[1]))
	m.SetElement(0, 1, float64(t[2]))
	m.SetElement(1, 1, float64(t[3]))
	m.SetElement(0, 2, float64(t[4]))
	m.SetElement(1, 2, float64(t[5]))
	return m
}

// --- Immediate submission ---

func (s *Scene) submitBatches(target *ebiten.Image) {
	if len(s.commands) == 0 {
		return
	}

	var op ebiten.DrawImageOptions
	for i := range s.commands {
		switch cmd := &s.commands[i]; cmd.Type {
		case CommandSprite:
			s.submitSprite(target, cmd, &op)
		case CommandParticle:
			s.submitParticles(target, cmd, &op)
		case CommandMesh:
			s.submitMesh(target, cmd)
		}
	}
}

func (s *Scene) submitSprite(target *ebiten.Image, cmd *RenderCommand, op *ebiten.DrawImageOptions) {
	// Composited subtrees (masks, filters, texture caches) arrive as a
	// pre-rendered image and draw in one call.
	if cmd.directImage != nil {
		op.GeoM.Reset()
		op.GeoM.Concat(affineGeoM(s.screenTransform(cmd)))
		applyTint(op, cmd.Color)
		op.Blend = cmd.BlendMode.EbitenBlend()
		target.DrawImage(cmd.directImage, op)
		return
	}

	r := &cmd.TextureRegion
	page := s.pageImage(r.Page)
	if page == nil {
		return
	}
	sub := page.SubImage(atlasRect(r)).(*ebiten.Image)

	op.GeoM.Reset()
	if r.Rotated {
		// Undo the packer's quarter-turn clockwise storage rotation.
		op.GeoM.Rotate(-1.5707963267948966)
		op.GeoM.Translate(0, float64(r.Width))
	}
	if r.OffsetX != 0 || r.OffsetY != 0 {
		op.GeoM.Translate(float64(r.OffsetX), float64(r.OffsetY))
	}
	op.GeoM.Concat(affineGeoM(s.screenTransform(cmd)))

	applyTint(op, cmd.Color)
	op.Blend = cmd.BlendMode.EbitenBlend()
	target.DrawImage(sub, op)
}

func (s *Scene) submitParticles(target *ebiten.Image, cmd *RenderCommand, op *ebiten.DrawImageOptions) {
	e := cmd.emitter
	if e == nil || e.alive == 0 {
		return
	}

	r := &cmd.TextureRegion

	// A direct image (the white pixel, typically) trumps the atlas.
	src := cmd.directImage
	if src == nil {
		page := s.pageImage(r.Page)
		if page == nil {
			return
		}
		src = page.SubImage(atlasRect(r)).(*ebiten.Image)
	}

	// Emitter world transform, or identity for world-space sparks, with
	// the camera view stacked on top.
	baseGeoM := affineGeoM(s.screenTransform(cmd))

	halfW := float64(r.OriginalW) / 2
	halfH := float64(r.OriginalH) / 2

	for i := 0; i < e.alive; i++ {
		p := &e.particles[i]

		op.GeoM.Reset()
		if r.Rotated {
			op.GeoM.Rotate(-1.5707963267948966)
			op.GeoM.Translate(0, float64(r.Width))
		}
		if r.OffsetX != 0 || r.OffsetY != 0 {
			op.GeoM.Translate(float64(r.OffsetX), float64(r.OffsetY))
		}

		// Scale around the sprite center, then place. Attached particles
		// are emitter-relative; world-space ones carry absolute coords.
		op.GeoM.Translate(-halfW, -halfH)
		op.GeoM.Scale(float64(p.scale), float64(p.scale))
		op.GeoM.Translate(halfW, halfH)
		op.GeoM.Translate(p.x, p.y)
		op.GeoM.Concat(baseGeoM)

		ca := p.alpha * cmd.Color.A
		op.ColorScale.Reset()
		op.ColorScale.Scale(
			p.colorR*cmd.Color.R*ca,
			p.colorG*cmd.Color.G*ca,
			p.colorB*cmd.Color.B*ca,
			ca,
		)
		op.Blend = cmd.BlendMode.EbitenBlend()
		target.DrawImage(src, op)
	}
}

// submitMesh draws a mesh command. Vertices were transformed to world
// space during traversal; only the camera view remains to apply.
func (s *Scene) submitMesh(target *ebiten.Image, cmd *RenderCommand) {
	if cmd.meshImage == nil || len(cmd.meshVerts) == 0 || len(cmd.meshInds) == 0 {
		return
	}

	var triOp ebiten.DrawTrianglesOptions
	triOp.Blend = cmd.BlendMode.EbitenBlend()

	if s.viewIdentity {
		target.DrawTriangles(cmd.meshVerts, cmd.meshInds, cmd.meshImage, &triOp)
		return
	}

	v := s.view32
	s.resetBatch()
	for _, vert := range cmd.meshVerts {
		x := v[0]*vert.DstX + v[2]*vert.DstY + v[4]
		y := v[1]*vert.DstX + v[3]*vert.DstY + v[5]
		vert.DstX = x
		vert.DstY = y
		s.batchVerts = append(s.batchVerts, vert)
	}
	for _, idx := range cmd.meshInds {
		s.batchInds = append(s.batchInds, uint32(idx))
	}
	target.DrawTriangles32(s.batchVerts, s.batchInds, cmd.meshImage, &triOp)
	s.resetBatch()
}

// --- Coalesced submission ---

func (s *Scene) submitBatchesCoalesced(target *ebiten.Image) {
	if len(s.commands) == 0 {
		return
	}

	s.resetBatch()

	var runKey batchKey
	inRun := false
	var op ebiten.DrawImageOptions

	for i := range s.commands {
		cmd := &s.commands[i]
		switch cmd.Type {
		case CommandSprite:
			if cmd.directImage != nil {
				// Composite images come from distinct sources and break
				// the run.
				s.flushSpriteBatch(target, runKey)
				inRun = false
				s.submitSprite(target, cmd, &op)
				continue
			}

			key := commandBatchKey(cmd)
			if inRun && key != runKey {
				s.flushSpriteBatch(target, runKey)
			}
			runKey = key
			inRun = true
			s.appendSpriteQuad(cmd)

		case CommandParticle:
			s.flushSpriteBatch(target, runKey)
			inRun = false
			s.submitParticlesBatched(target, cmd)

		case CommandMesh:
			s.flushSpriteBatch(target, runKey)
			inRun = false
			s.submitMesh(target, cmd)
		}
	}

	s.flushSpriteBatch(target, runKey)
}

// regionUVCorners returns per-corner atlas coordinates in TL, TR, BL, BR
// order. Rotated regions walk the stored rect on the swapped axis.
func regionUVCorners(r *TextureRegion) (sx, sy [4]float32) {
	rx, ry := float32(r.X), float32(r.Y)
	if r.Rotated {
		storedW := float32(r.Height)
		storedH := float32(r.Width)
		sx = [4]float32{rx + storedW, rx + storedW, rx, rx}
		sy = [4]float32{ry, ry + storedH, ry, ry + storedH}
		return
	}
	w, h := float32(r.Width), float32(r.Height)
	sx = [4]float32{rx, rx + w, rx, rx + w}
	sy = [4]float32{ry, ry, ry + h, ry + h}
	return
}

// premulColor expands a command tint into premultiplied RGBA components.
func premulColor(c color32) (cr, cg, cb, ca float32) {
	if c.A == 0 && c.R == 0 && c.G == 0 && c.B == 0 {
		return 1, 1, 1, 1
	}
	return c.R * c.A, c.G * c.A, c.B * c.A, c.A
}

// appendSpriteQuad accumulates one sprite as 4 vertices and 6 indices.
func (s *Scene) appendSpriteQuad(cmd *RenderCommand) {
	r := &cmd.TextureRegion
	t := s.screenTransform(cmd)

	// The quad keeps the authored visual size; trim offsets shift the
	// local origin.
	ox, oy := float64(r.OffsetX), float64(r.OffsetY)
	w, h := float64(r.Width), float64(r.Height)
	lx := [4]float64{ox, ox + w, ox, ox + w}
	ly := [4]float64{oy, oy, oy + h, oy + h}

	a, b, c, d := float64(t[0]), float64(t[1]), float64(t[2]), float64(t[3])
	tx, ty := float64(t[4]), float64(t[5])

	sx, sy := regionUVCorners(r)
	cr, cg, cb, ca := premulColor(cmd.Color)

	s.appendQuadVerts(a, b, c, d, tx, ty, lx, ly, sx, sy, cr, cg, cb, ca)
}

// appendQuadVerts accumulates one affine-transformed quad: 4 vertices with
// the given UV corners and premultiplied tint, plus its 6 indices.
func (s *Scene) appendQuadVerts(a, b, c, d, tx, ty float64, lx, ly [4]float64, sx, sy [4]float32, cr, cg, cb, ca float32) {
	base := uint32(len(s.batchVerts))
	for i := range 4 {
		s.batchVerts = append(s.batchVerts, ebiten.Vertex{
			DstX: float32(a*lx[i] + c*ly[i] + tx),
			DstY: float32(b*lx[i] + d*ly[i] + ty),
			SrcX: sx[i], SrcY: sy[i],
			ColorR: cr, ColorG: cg, ColorB: cb, ColorA: ca,
		})
	}
	s.appendQuadIndices(base)
}

// flushSpriteBatch submits the accumulated run as one DrawTriangles32.
func (s *Scene) flushSpriteBatch(target *ebiten.Image, key batchKey) {
	if len(s.batchVerts) == 0 {
		return
	}
	defer s.resetBatch()

	page := s.pageImage(key.page)
	if page == nil {
		return
	}

	var triOp ebiten.DrawTrianglesOptions
	triOp.Blend = key.blend.EbitenBlend()
	triOp.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	target.DrawTriangles32(s.batchVerts, s.batchInds, page, &triOp)
}

// submitParticlesBatched draws every live particle of one emitter with a
// single DrawTriangles32 call.
func (s *Scene) submitParticlesBatched(target *ebiten.Image, cmd *RenderCommand) {
	e := cmd.emitter
	if e == nil || e.alive == 0 {
		return
	}

	r := &cmd.TextureRegion

	// Source image and its UV bounds.
	var src *ebiten.Image
	var u0, v0, u1, v1 float32
	if cmd.directImage != nil {
		src = cmd.directImage
		b := src.Bounds()
		u0, v0 = float32(b.Min.X), float32(b.Min.Y)
		u1, v1 = float32(b.Max.X), float32(b.Max.Y)
	} else {
		src = s.pageImage(r.Page)
		if src == nil {
			return
		}
		u0, v0 = float32(r.X), float32(r.Y)
		if r.Rotated {
			u1, v1 = u0+float32(r.Height), v0+float32(r.Width)
		} else {
			u1, v1 = u0+float32(r.Width), v0+float32(r.Height)
		}
	}

	bt := s.screenTransform(cmd)
	ba, bb, bc, bd := float64(bt[0]), float64(bt[1]), float64(bt[2]), float64(bt[3])
	btx, bty := float64(bt[4]), float64(bt[5])

	halfW := float64(r.OriginalW) / 2
	halfH := float64(r.OriginalH) / 2
	offX := float64(r.OffsetX)
	offY := float64(r.OffsetY)

	// Per-corner UVs; rotated regions traverse the stored rect sideways.
	var sx, sy [4]float32
	if cmd.directImage == nil && r.Rotated {
		sx = [4]float32{u1, u1, u0, u0}
		sy = [4]float32{v0, v1, v0, v1}
	} else {
		sx = [4]float32{u0, u1, u0, u1}
		sy = [4]float32{v0, v0, v1, v1}
	}

	// Quad footprint in local space.
	var qw, qh float64
	if cmd.directImage != nil {
		qw, qh = float64(u1-u0), float64(v1-v0)
	} else {
		qw, qh = float64(r.Width), float64(r.Height)
	}
	qlx := [4]float64{0, qw, 0, qw}
	qly := [4]float64{0, 0, qh, qh}

	s.resetBatch()

	for i := 0; i < e.alive; i++ {
		p := &e.particles[i]

		// Collapse trim offset, center scale, and particle placement into
		// a single uniform-scale local transform, then stack the base.
		ps := float64(p.scale)
		localTx := (offX-halfW)*ps + halfW + p.x
		localTy := (offY-halfH)*ps + halfH + p.y

		fa, fb, fc, fd := ba*ps, bb*ps, bc*ps, bd*ps
		ftx := ba*localTx + bc*localTy + btx
		fty := bb*localTx + bd*localTy + bty

		ca := p.alpha * cmd.Color.A
		cr := p.colorR * cmd.Color.R * ca
		cg := p.colorG * cmd.Color.G * ca
		cb := p.colorB * cmd.Color.B * ca

		s.appendQuadVerts(fa, fb, fc, fd, ftx, fty, qlx, qly, sx, sy, cr, cg, cb, ca)
	}

	if len(s.batchVerts) == 0 {
		return
	}

	var triOp ebiten.DrawTrianglesOptions
	triOp.Blend = cmd.BlendMode.EbitenBlend()
	triOp.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	target.DrawTriangles32(s.batchVerts, s.batchInds, src, &triOp)
	s.resetBatch()
}
