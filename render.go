package arbor

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// CommandType identifies the kind of render command.
type CommandType uint8

const (
	CommandSprite   CommandType = iota // DrawImage
	CommandMesh                        // DrawTriangles
	CommandParticle                    // particle quads (batches as sprites)
)

// color32 is a compact RGBA color using float32, for render commands only.
type color32 struct {
	R, G, B, A float32
}

// RenderCommand is a single draw instruction emitted during scene traversal.
// Transforms are world-space; the camera view is applied at submit time.
type RenderCommand struct {
	Type          CommandType
	Transform     [6]float32
	TextureRegion TextureRegion
	Color         color32
	BlendMode     BlendMode
	ShaderID      uint16
	TargetID      uint16
	RenderLayer   uint8
	GlobalOrder   int
	treeOrder     int // assigned during traversal for stable sort

	// Mesh-only fields (slice headers, not copies of vertex data).
	meshVerts []ebiten.Vertex
	meshInds  []uint16
	meshImage *ebiten.Image

	// directImage, when non-nil, is drawn directly instead of looking up an
	// atlas page. Used for cached/filtered/masked node output.
	directImage *ebiten.Image

	// emitter references the particle emitter for CommandParticle commands.
	emitter            *ParticleEmitter
	worldSpaceParticle bool // particles carry absolute world positions; Transform is identity
}

// identityTransform32 is the identity affine matrix as float32.
var identityTransform32 = [6]float32{1, 0, 0, 1, 0, 0}

// affine32 converts a [6]float64 affine matrix to [6]float32.
func affine32(m [6]float64) [6]float32 {
	return [6]float32{float32(m[0]), float32(m[1]), float32(m[2]), float32(m[3]), float32(m[4]), float32(m[5])}
}

// nodeTint folds a node's color and world alpha into a command color.
func nodeTint(n *Node, worldAlpha float64) color32 {
	return color32{float32(n.Color.R), float32(n.Color.G), float32(n.Color.B), float32(n.Color.A * worldAlpha)}
}

// traverse walks the node tree depth-first, updating transforms and emitting
// render commands for visible, renderable leaf nodes.
func (s *Scene) traverse(n *Node, parentTransform [6]float64, parentAlpha float64, parentRecomputed bool, treeOrder *int) {
	if !n.Visible {
		return
	}

	recompute := n.transformDirty || parentRecomputed
	if recompute {
		n.worldTransform = multiplyAffine(parentTransform, computeLocalTransform(n))
		n.worldAlpha = parentAlpha * n.Alpha
		n.transformDirty = false
	}

	// Tree command cache: replay the recorded list when clean, re-record it
	// otherwise.
	if n.cacheTreeEnabled {
		if s.cacheRecordOwner != nil {
			// Nested tree caches don't compose: the outer recording would
			// hold copies the inner cache can silently invalidate.
			s.cacheBlockers++
		}
		if !n.cacheTreeDirty && n.cachedCommands != nil {
			s.replayCacheTree(n, treeOrder)
			return
		}
		s.recordCacheTree(n, recompute, treeOrder)
		return
	}

	s.emitAndDescend(n, recompute, treeOrder)
}

// emitAndDescend emits this node's render commands and traverses its
// children. Split out of traverse so tree cache recording can capture the
// same output.
func (s *Scene) emitAndDescend(n *Node, recompute bool, treeOrder *int) {
	// Culling only suppresses this node's command emission. Children are
	// ALWAYS traversed: any node type may have children whose world positions
	// fall outside the parent's AABB.
	culled := s.cullActive && n.Renderable && shouldCull(n, n.worldTransform, s.cullBounds)

	// Nodes with masks, cache, or filters render their subtree offscreen and
	// emit a single directImage command.
	if !culled && (n.mask != nil || n.cacheEnabled || len(n.Filters) > 0) {
		s.renderSpecialNode(n, treeOrder)
		return
	}

	if n.Renderable && !culled {
		if n.customEmit != nil {
			// Nodes with a custom emitter (the dot grid) append their own
			// commands instead of the per-type paths below. Their geometry is
			// regenerated per frame, so they also block tree caching.
			s.commandsDirtyThisFrame = true
			s.cacheBlockers++
			n.customEmit(s, treeOrder)
		} else {
			switch n.Type {
			case NodeTypeSprite:
				s.emitWorldSprite(n, treeOrder)
			case NodeTypeMesh:
				s.emitWorldMesh(n, treeOrder)
			case NodeTypeParticleEmitter:
				s.emitWorldParticles(n, treeOrder)
			case NodeTypeText:
				s.emitWorldText(n, treeOrder)
				// NodeTypeContainer doesn't emit commands
			}
		}
	}

	if len(n.children) == 0 {
		return
	}
	for _, child := range s.orderedChildren(n) {
		s.traverse(child, n.worldTransform, n.worldAlpha, recompute, treeOrder)
	}
}

func (s *Scene) emitWorldSprite(n *Node, treeOrder *int) {
	*treeOrder++
	s.commandsDirtyThisFrame = true
	// During tree-cache recording, remember where this sprite's command lands
	// so SetTextureRegion can patch it in place later.
	if s.cacheRecordOwner != nil {
		n.cachedCmdOwner = s.cacheRecordOwner
		n.cachedCmdIndex = int32(len(s.commands) - s.cacheRecordStart)
	}
	cmd := RenderCommand{
		Type:        CommandSprite,
		Transform:   affine32(n.worldTransform),
		Color:       nodeTint(n, n.worldAlpha),
		BlendMode:   n.BlendMode,
		RenderLayer: n.RenderLayer,
		GlobalOrder: n.GlobalOrder,
		treeOrder:   *treeOrder,
	}
	if n.customImage != nil {
		cmd.directImage = n.customImage
	} else {
		cmd.TextureRegion = n.TextureRegion
	}
	s.commands = append(s.commands, cmd)
}

func (s *Scene) emitWorldMesh(n *Node, treeOrder *int) {
	// Mesh commands alias the node's transform buffer, which is rewritten in
	// place each frame; never recordable.
	s.cacheBlockers++
	if len(n.Vertices) == 0 || len(n.Indices) == 0 {
		return
	}
	s.commandsDirtyThisFrame = true
	tint := Color{n.Color.R, n.Color.G, n.Color.B, n.Color.A * n.worldAlpha}
	dst := ensureTransformedVerts(n)
	transformVertices(n.Vertices, dst, n.worldTransform, tint)
	*treeOrder++
	s.commands = append(s.commands, RenderCommand{
		Type:        CommandMesh,
		Transform:   affine32(n.worldTransform),
		BlendMode:   n.BlendMode,
		RenderLayer: n.RenderLayer,
		GlobalOrder: n.GlobalOrder,
		treeOrder:   *treeOrder,
		meshVerts:   dst,
		meshInds:    n.Indices,
		meshImage:   n.MeshImage,
	})
}

func (s *Scene) emitWorldParticles(n *Node, treeOrder *int) {
	// Particle state changes every frame; never recordable.
	s.cacheBlockers++
	if n.Emitter == nil || n.Emitter.alive == 0 {
		return
	}
	s.commandsDirtyThisFrame = true
	*treeOrder++
	particleTransform := affine32(n.worldTransform)
	ws := n.Emitter.config.WorldSpace
	if ws {
		particleTransform = identityTransform32
	}
	s.commands = append(s.commands, RenderCommand{
		Type:               CommandParticle,
		Transform:          particleTransform,
		TextureRegion:      n.TextureRegion,
		directImage:        n.customImage,
		Color:              nodeTint(n, n.worldAlpha),
		BlendMode:          n.BlendMode,
		RenderLayer:        n.RenderLayer,
		GlobalOrder:        n.GlobalOrder,
		treeOrder:          *treeOrder,
		emitter:            n.Emitter,
		worldSpaceParticle: ws,
	})
}

func (s *Scene) emitWorldText(n *Node, treeOrder *int) {
	if n.TextBlock == nil || n.TextBlock.Font == nil {
		return
	}
	s.commandsDirtyThisFrame = true
	switch n.TextBlock.Font.(type) {
	case *BitmapFont:
		s.commands = emitBitmapTextCommands(n.TextBlock, n, n.worldTransform, n.worldAlpha, s.commands, treeOrder)
	case *TTFFont:
		s.commands, s.pages = emitTTFTextCommand(n.TextBlock, n, n.worldTransform, n.worldAlpha, s.commands, treeOrder, s.pages, &s.nextPage)
	}
}

// recordCacheTree runs a normal emission pass for n's subtree and snapshots
// the emitted command range into n.cachedCommands. Recording is abandoned
// (the subtree simply renders normally, staying dirty) when the range holds
// anything tied to per-frame state: meshes, particles, custom emitters,
// nested caches, or offscreen composites.
func (s *Scene) recordCacheTree(n *Node, recompute bool, treeOrder *int) {
	prevOwner, prevStart, prevBlockers := s.cacheRecordOwner, s.cacheRecordStart, s.cacheBlockers
	start := len(s.commands)
	s.cacheRecordOwner, s.cacheRecordStart = n, start
	s.cacheBlockers = 0

	s.emitAndDescend(n, recompute, treeOrder)

	blocked := s.cacheBlockers > 0
	s.cacheRecordOwner, s.cacheRecordStart, s.cacheBlockers = prevOwner, prevStart, prevBlockers
	if blocked {
		return
	}

	recorded := s.commands[start:]
	if cap(n.cachedCommands) < len(recorded) {
		n.cachedCommands = make([]RenderCommand, len(recorded))
	}
	n.cachedCommands = n.cachedCommands[:len(recorded)]
	copy(n.cachedCommands, recorded)
	n.cachedTreeTransform = n.worldTransform
	n.cachedTreeAlpha = n.worldAlpha
	n.cacheTreeDirty = false
}

// replayCacheTree appends the recorded commands, renumbering treeOrder and
// remapping transforms and alpha for any change in the cache root's own
// world state since recording. With a static root — the common case, since
// the camera view is applied at submit time and never touches commands —
// each command is an untouched copy.
func (s *Scene) replayCacheTree(n *Node, treeOrder *int) {
	remap := n.worldTransform != n.cachedTreeTransform
	var delta32 [6]float32
	if remap {
		delta32 = affine32(multiplyAffine(n.worldTransform, invertAffine(n.cachedTreeTransform)))
	}
	alphaScale := float32(1)
	if n.cachedTreeAlpha > 0 && n.worldAlpha != n.cachedTreeAlpha {
		alphaScale = float32(n.worldAlpha / n.cachedTreeAlpha)
	}
	for i := range n.cachedCommands {
		cmd := n.cachedCommands[i]
		*treeOrder++
		cmd.treeOrder = *treeOrder
		if remap {
			cmd.Transform = mulAffine32(delta32, cmd.Transform)
		}
		if alphaScale != 1 {
			cmd.Color.A *= alphaScale
		}
		s.commands = append(s.commands, cmd)
	}
}

// rebuildSortedChildren rebuilds the ZIndex-sorted traversal order for a node.
// Stable insertion sort: zero allocations, O(n) for the typical case of few,
// nearly-sorted children.
func (s *Scene) rebuildSortedChildren(n *Node) {
	nc := len(n.children)
	if cap(n.sortedChildren) < nc {
		n.sortedChildren = make([]*Node, nc)
	}
	n.sortedChildren = n.sortedChildren[:nc]
	copy(n.sortedChildren, n.children)
	for i := 1; i < nc; i++ {
		key := n.sortedChildren[i]
		j := i - 1
		for j >= 0 && n.sortedChildren[j].ZIndex > key.ZIndex {
			n.sortedChildren[j+1] = n.sortedChildren[j]
			j--
		}
		n.sortedChildren[j+1] = key
	}
	n.childrenSorted = true
}

// --- Command sort ---

// commandLessOrEqual returns true if a sorts before or at the same position
// as b. The <= on treeOrder keeps the sort stable.
func commandLessOrEqual(a, b RenderCommand) bool {
	if a.RenderLayer != b.RenderLayer {
		return a.RenderLayer < b.RenderLayer
	}
	if a.GlobalOrder != b.GlobalOrder {
		return a.GlobalOrder < b.GlobalOrder
	}
	return a.treeOrder <= b.treeOrder
}

// commandsSorted reports whether cmds is already in submission order.
func commandsSorted(cmds []RenderCommand) bool {
	for i := 1; i < len(cmds); i++ {
		if !commandLessOrEqual(cmds[i-1], cmds[i]) {
			return false
		}
	}
	return true
}

// mergeSort sorts s.commands in-place using s.sortBuf as scratch space.
// Bottom-up: zero allocations once the sort buffer hits its high-water mark.
func (s *Scene) mergeSort() {
	n := len(s.commands)
	if n <= 1 {
		return
	}
	// A frame of pure cache replays arrives in the previous frame's order;
	// verify that and skip the merge passes.
	if !s.commandsDirtyThisFrame && commandsSorted(s.commands) {
		return
	}
	if cap(s.sortBuf) < n {
		s.sortBuf = make([]RenderCommand, n)
	}
	s.sortBuf = s.sortBuf[:n]

	a, b := s.commands, s.sortBuf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for lo := 0; lo < n; lo += 2 * width {
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(s.commands, s.sortBuf)
	}
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []RenderCommand, lo, mid, hi int) {
	i, j := lo, mid
	for k := lo; k < hi; k++ {
		if i < mid && (j >= hi || commandLessOrEqual(src[i], src[j])) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
	}
}

// --- Special node rendering ---

// emitComposite appends the single sprite command that places an offscreen
// composite on screen.
func (s *Scene) emitComposite(n *Node, transform [6]float32, img *ebiten.Image, treeOrder *int) {
	*treeOrder++
	s.commands = append(s.commands, RenderCommand{
		Type:        CommandSprite,
		Transform:   transform,
		Color:       color32{1, 1, 1, float32(n.worldAlpha)},
		BlendMode:   n.BlendMode,
		RenderLayer: n.RenderLayer,
		GlobalOrder: n.GlobalOrder,
		treeOrder:   *treeOrder,
		directImage: img,
	})
}

// renderSpecialNode handles nodes with masks, cache, or filters: bounds,
// transform adjustment, cache check, offscreen render, mask, filter chain,
// cache store, composite emission.
func (s *Scene) renderSpecialNode(n *Node, treeOrder *int) {
	// The composite command references a texture that later rebuilds replace
	// or the pool recycles, so a tree cache must not record it.
	s.commandsDirtyThisFrame = true
	s.cacheBlockers++

	// Every path needs the subtree bounds first. RT pixel (0,0) corresponds
	// to local (bounds.X, bounds.Y), not local (0,0), so the world transform
	// is shifted by the world-space equivalent of that offset.
	bounds := paddedSubtreeBounds(n)
	adjustedTransform := foldOrigin(n.worldTransform, bounds.X, bounds.Y)
	at32 := affine32(adjustedTransform)

	// Cache hit: reuse the stored texture.
	if n.cacheEnabled && n.cacheTexture != nil && !n.cacheDirty {
		s.emitComposite(n, at32, n.cacheTexture, treeOrder)
		return
	}

	w := int(math.Ceil(bounds.Width))
	h := int(math.Ceil(bounds.Height))
	if w <= 0 || h <= 0 {
		return
	}

	result := renderMaskedFiltered(s, n, bounds, w, h)

	if n.cacheEnabled {
		// Copy into a non-pooled texture the node owns, then release the
		// pooled RT right away.
		if n.cacheTexture != nil {
			n.cacheTexture.Deallocate()
		}
		cacheImg := ebiten.NewImage(w, h)
		var op ebiten.DrawImageOptions
		cacheImg.DrawImage(result, &op)
		n.cacheTexture = cacheImg
		n.cacheDirty = false
		s.rtPool.Release(result)

		s.emitComposite(n, at32, n.cacheTexture, treeOrder)
		return
	}

	// Not cached: the pooled RT stays live until after submitBatches.
	s.rtDeferred = append(s.rtDeferred, result)
	s.emitComposite(n, at32, result, treeOrder)
}
