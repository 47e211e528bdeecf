package arbor

import (
	"image"
	"math"
	"math/bits"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Render texture pool ---

// renderTexturePool recycles offscreen ebiten.Images, bucketed by
// power-of-two dimensions. After warmup, Acquire/Release are zero-alloc.
// Dialog masks and marker filters hit this every frame.
type renderTexturePool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared offscreen image with at least (w, h) pixels.
// Dimensions are rounded up to the next power of two.
func (p *renderTexturePool) Acquire(w, h int) *ebiten.Image {
	pw, ph := nextPowerOfTwo(w), nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if stack := p.buckets[key]; len(stack) > 0 {
		last := len(stack) - 1
		img := stack[last]
		p.buckets[key] = stack[:last]
		img.Clear()
		return img
	}

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, pw, ph),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// Release returns an image to the pool for reuse. Clearing happens on the
// next Acquire, not here, so a release-then-reacquire pays for one clear.
func (p *renderTexturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())
	p.buckets[key] = append(p.buckets[key], img)
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// --- CacheAsTexture API ---

// SetCacheAsTexture enables or disables caching of this node's subtree as a
// single texture. When enabled, the subtree is rendered to an offscreen image
// and reused across frames until InvalidateCache is called. The editor uses
// this for dialog panels and other static widget subtrees.
func (n *Node) SetCacheAsTexture(enabled bool) {
	if n.cacheEnabled == enabled {
		return
	}
	n.cacheEnabled = enabled
	switch {
	case enabled:
		n.cacheDirty = true
	default:
		if n.cacheTexture != nil {
			n.cacheTexture.Deallocate()
			n.cacheTexture = nil
		}
		n.cacheDirty = false
	}
	invalidateAncestorCache(n)
}

// InvalidateCache marks the cached texture as dirty so it will be re-rendered
// on the next frame. No-op if caching is not enabled.
func (n *Node) InvalidateCache() {
	if n.cacheEnabled {
		n.cacheDirty = true
	}
}

// IsCacheEnabled reports whether subtree caching is enabled for this node.
func (n *Node) IsCacheEnabled() bool {
	return n.cacheEnabled
}

// invalidateAncestorCache marks every caching ancestor dirty so a change
// inside a cached subtree shows up on the next frame.
func invalidateAncestorCache(n *Node) {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.cacheEnabled {
			p.cacheDirty = true
		}
	}
}

// --- CacheAsTree API ---

// CacheTreeMode controls how a tree command cache is invalidated.
type CacheTreeMode uint8

const (
	// CacheTreeManual keeps the recorded commands until InvalidateCacheTree is
	// called. Property changes inside the subtree do NOT show up until then.
	CacheTreeManual CacheTreeMode = iota
	// CacheTreeAuto invalidates the recorded commands whenever a node in the
	// subtree changes through a setter or a tree operation.
	CacheTreeAuto
)

// SetCacheAsTree enables or disables command-list caching for this node's
// subtree. Unlike SetCacheAsTexture this does not rasterize anything: the
// subtree's render commands are recorded on the next frame and replayed on
// later frames, skipping traversal of the subtree entirely. Replay remaps the
// recorded transforms and alpha when this node's own world transform or alpha
// has changed, so panning or fading a whole cached tier stays cheap.
//
// Subtrees containing meshes, particle emitters, or offscreen passes are not
// cacheable; recording is skipped and the subtree renders normally.
//
// The mode defaults to CacheTreeManual when omitted.
func (n *Node) SetCacheAsTree(enabled bool, mode ...CacheTreeMode) {
	if !enabled {
		n.cacheTreeEnabled = false
		n.cacheTreeDirty = false
		n.cachedCommands = nil
		return
	}
	n.cacheTreeEnabled = true
	n.cacheTreeMode = CacheTreeManual
	if len(mode) > 0 {
		n.cacheTreeMode = mode[0]
	}
	n.cacheTreeDirty = true
}

// InvalidateCacheTree discards the recorded command list so the subtree is
// re-recorded on the next frame. No-op if tree caching is not enabled.
func (n *Node) InvalidateCacheTree() {
	if n.cacheTreeEnabled {
		n.cacheTreeDirty = true
	}
}

// invalidateAutoCaches marks dirty every auto-mode tree cache at or above
// start. Setters call this with the changed node's parent (the caches whose
// recorded lists contain the node); tree operations call it with the mutated
// node itself.
func invalidateAutoCaches(start *Node) {
	for p := start; p != nil; p = p.Parent {
		if p.cacheTreeEnabled && p.cacheTreeMode == CacheTreeAuto {
			p.cacheTreeDirty = true
		}
	}
}

// ToTexture renders this node's subtree to a new offscreen image and returns
// it. The caller owns the returned image (it is NOT pooled). Requires a Scene
// reference to use the render pipeline.
func (n *Node) ToTexture(s *Scene) *ebiten.Image {
	bounds := subtreeBounds(n)
	w := int(math.Ceil(bounds.Width))
	h := int(math.Ceil(bounds.Height))
	if w <= 0 || h <= 0 {
		return ebiten.NewImage(1, 1)
	}
	img := ebiten.NewImage(w, h)
	renderSubtree(s, n, img, bounds)
	return img
}

// --- Subtree bounds ---

// subtreeBounds computes the bounding rectangle of a node and all its
// descendants in the node's local coordinate space.
func subtreeBounds(n *Node) Rect {
	var r Rect
	first := true
	subtreeBoundsWalk(n, identityTransform, &r, &first)
	return r
}

func subtreeBoundsWalk(n *Node, localTransform [6]float64, bounds *Rect, first *bool) {
	aabb, ok := localAABB(n, localTransform)
	switch {
	case !ok:
	case *first:
		*bounds, *first = aabb, false
	default:
		*bounds = rectUnion(*bounds, aabb)
	}

	for _, child := range n.children {
		childTransform := multiplyAffine(localTransform, computeLocalTransform(child))
		subtreeBoundsWalk(child, childTransform, bounds, first)
	}
}

// localAABB measures one node under the given transform. ok is false for
// nodes with no measurable extent (containers, unmeasured text).
func localAABB(n *Node, transform [6]float64) (aabb Rect, ok bool) {
	if n.Type == NodeTypeMesh {
		aabb = meshWorldAABB(n, transform)
		return aabb, aabb.Width > 0 || aabb.Height > 0
	}
	if w, h := nodeDimensions(n); w > 0 && h > 0 {
		return worldAABB(transform, w, h), true
	}
	return Rect{}, false
}

// rectUnion returns the smallest Rect containing both a and b.
func rectUnion(a, b Rect) Rect {
	minX := min(a.X, b.X)
	minY := min(a.Y, b.Y)
	maxX := max(a.X+a.Width, b.X+b.Width)
	maxY := max(a.Y+a.Height, b.Y+b.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// --- Subtree rendering ---

// orderedChildren returns n's children in ZIndex-sorted traversal order,
// rebuilding the sorted buffer if stale.
func (s *Scene) orderedChildren(n *Node) []*Node {
	if !n.childrenSorted {
		s.rebuildSortedChildren(n)
	}
	if n.sortedChildren != nil {
		return n.sortedChildren
	}
	return n.children
}

// renderSubtree renders a node and its children to the given target image.
// It temporarily swaps the scene's command buffer to avoid disturbing the
// main render pass. The node's content is rendered at local-space origin,
// offset by -bounds.X, -bounds.Y so everything fits in the target.
//
// Offscreen content is local-space; the camera view belongs to the final
// composite command, so the view state is forced to identity for the
// duration of the pass.
func renderSubtree(s *Scene, n *Node, target *ebiten.Image, bounds Rect) {
	// Swap in the offscreen command buffer. The field is nilled while its
	// buffer is in use so nested subtree passes don't alias it.
	savedCmds := s.commands
	s.commands = s.offscreenCmds[:0]
	s.offscreenCmds = nil

	savedView32 := s.view32
	savedViewIdentity := s.viewIdentity
	savedViewTransform := s.viewTransform
	s.view32 = identityTransform32
	s.viewIdentity = true
	s.viewTransform = identityTransform

	// Offset transform so the subtree content starts at (0,0) in the target.
	offsetTransform := [6]float64{1, 0, 0, 1, -bounds.X, -bounds.Y}

	treeOrder := 0

	// The node itself, then its subtree. Base alpha is 1.0 here: worldAlpha
	// is applied once by the final composite command in renderSpecialNode,
	// not double-applied inside the pass.
	emitNodeCommand(s, n, offsetTransform, 1.0, &treeOrder)
	for _, child := range s.orderedChildren(n) {
		renderSubtreeWalk(s, child, offsetTransform, 1.0, &treeOrder)
	}

	s.mergeSort()
	s.submitBatches(target)

	s.view32 = savedView32
	s.viewIdentity = savedViewIdentity
	s.viewTransform = savedViewTransform

	// Hand the buffer back at high-water capacity.
	s.offscreenCmds = s.commands[:0]
	s.commands = savedCmds
}

// renderSubtreeWalk traverses a node subtree, emitting commands into the
// current s.commands buffer. Like traverse() but with explicit transforms
// rather than cached world transforms.
func renderSubtreeWalk(s *Scene, n *Node, parentTransform [6]float64, parentAlpha float64, treeOrder *int) {
	if !n.Visible {
		return
	}

	transform := multiplyAffine(parentTransform, computeLocalTransform(n))
	alpha := parentAlpha * n.Alpha

	// Nested special node (mask, cache, or filter): render it to its own RT
	// and emit a command using the computed local transform.
	if n.mask != nil || n.cacheEnabled || len(n.Filters) > 0 {
		renderSpecialSubtreeNode(s, n, transform, alpha, treeOrder)
		return
	}

	emitNodeCommand(s, n, transform, alpha, treeOrder)
	for _, child := range s.orderedChildren(n) {
		renderSubtreeWalk(s, child, transform, alpha, treeOrder)
	}
}

// renderSpecialSubtreeNode handles a masked/cached/filtered node encountered
// inside a subtree rendering pass. It mirrors renderSpecialNode but uses an
// explicit local transform instead of n.worldTransform, and always re-renders
// (nested caches are not stored).
func renderSpecialSubtreeNode(s *Scene, n *Node, localTransform [6]float64, alpha float64, treeOrder *int) {
	bounds := paddedSubtreeBounds(n)

	// Fold the bounds origin into the node transform so the composite lands
	// where the subtree content would have.
	adjustedTransform := foldOrigin(localTransform, bounds.X, bounds.Y)

	w := int(math.Ceil(bounds.Width))
	h := int(math.Ceil(bounds.Height))
	if w <= 0 || h <= 0 {
		return
	}

	result := renderMaskedFiltered(s, n, bounds, w, h)

	s.rtDeferred = append(s.rtDeferred, result)
	*treeOrder++
	s.commands = append(s.commands, RenderCommand{
		Type:        CommandSprite,
		Transform:   affine32(adjustedTransform),
		Color:       color32{1, 1, 1, float32(alpha)},
		BlendMode:   n.BlendMode,
		RenderLayer: n.RenderLayer,
		GlobalOrder: n.GlobalOrder,
		treeOrder:   *treeOrder,
		directImage: result,
	})
}

// paddedSubtreeBounds returns the node's subtree bounds inflated on every
// side by its filter chain padding.
func paddedSubtreeBounds(n *Node) Rect {
	bounds := subtreeBounds(n)
	if pad := float64(filterChainPadding(n.Filters)); pad > 0 {
		bounds.X -= pad
		bounds.Y -= pad
		bounds.Width += 2 * pad
		bounds.Height += 2 * pad
	}
	return bounds
}

// foldOrigin shifts the transform so its origin maps to local point (x, y).
func foldOrigin(transform [6]float64, x, y float64) [6]float64 {
	transform[4] += transform[0]*x + transform[2]*y
	transform[5] += transform[1]*x + transform[3]*y
	return transform
}

// renderMaskedFiltered renders n's subtree into a pooled texture of size
// (w, h), punches out the mask if present, and runs the filter chain.
// The returned image comes from the pool; the caller owns releasing it.
func renderMaskedFiltered(s *Scene, n *Node, bounds Rect, w, h int) *ebiten.Image {
	result := s.rtPool.Acquire(w, h)
	renderSubtree(s, n, result, bounds)

	if n.mask != nil {
		maskRT := s.rtPool.Acquire(w, h)
		renderSubtree(s, n.mask, maskRT, bounds)

		// Keep only the parts of result where the mask has alpha.
		var op ebiten.DrawImageOptions
		op.Blend = BlendMask.EbitenBlend()
		result.DrawImage(maskRT, &op)

		s.rtPool.Release(maskRT)
	}

	if len(n.Filters) > 0 {
		filtered := applyFilters(n.Filters, result, &s.rtPool)
		if filtered != result {
			s.rtPool.Release(result)
			result = filtered
		}
	}
	return result
}

// emitNodeCommand emits the render command(s) for a single node at the given
// explicit transform.
func emitNodeCommand(s *Scene, n *Node, transform [6]float64, alpha float64, treeOrder *int) {
	if !n.Renderable {
		return
	}
	switch n.Type {
	case NodeTypeSprite:
		emitSpriteAt(s, n, transform, alpha, treeOrder)
	case NodeTypeMesh:
		emitMeshAt(s, n, transform, alpha, treeOrder)
	case NodeTypeParticleEmitter:
		emitParticlesAt(s, n, transform, alpha, treeOrder)
	case NodeTypeText:
		emitTextAt(s, n, transform, alpha, treeOrder)
	}
}

func emitSpriteAt(s *Scene, n *Node, transform [6]float64, alpha float64, treeOrder *int) {
	*treeOrder++
	cmd := RenderCommand{
		Type:        CommandSprite,
		Transform:   affine32(transform),
		Color:       color32{float32(n.Color.R), float32(n.Color.G), float32(n.Color.B), float32(n.Color.A * alpha)},
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

func emitMeshAt(s *Scene, n *Node, transform [6]float64, alpha float64, treeOrder *int) {
	if len(n.Vertices) == 0 || len(n.Indices) == 0 {
		return
	}
	tint := Color{n.Color.R, n.Color.G, n.Color.B, n.Color.A * alpha}
	dst := ensureTransformedVerts(n)
	transformVertices(n.Vertices, dst, transform, tint)
	*treeOrder++
	s.commands = append(s.commands, RenderCommand{
		Type:        CommandMesh,
		Transform:   affine32(transform),
		BlendMode:   n.BlendMode,
		RenderLayer: n.RenderLayer,
		GlobalOrder: n.GlobalOrder,
		treeOrder:   *treeOrder,
		meshVerts:   dst,
		meshInds:    n.Indices,
		meshImage:   n.MeshImage,
	})
}

func emitParticlesAt(s *Scene, n *Node, transform [6]float64, alpha float64, treeOrder *int) {
	if n.Emitter == nil || n.Emitter.alive == 0 {
		return
	}
	*treeOrder++
	ws := n.Emitter.config.WorldSpace
	if ws {
		// World-space particles carry absolute positions. The view is
		// applied at submit time (identity during offscreen passes).
		transform = identityTransform
	}
	s.commands = append(s.commands, RenderCommand{
		Type:               CommandParticle,
		Transform:          affine32(transform),
		TextureRegion:      n.TextureRegion,
		directImage:        n.customImage,
		Color:              color32{float32(n.Color.R), float32(n.Color.G), float32(n.Color.B), float32(n.Color.A * alpha)},
		BlendMode:          n.BlendMode,
		RenderLayer:        n.RenderLayer,
		GlobalOrder:        n.GlobalOrder,
		treeOrder:          *treeOrder,
		emitter:            n.Emitter,
		worldSpaceParticle: ws,
	})
}

func emitTextAt(s *Scene, n *Node, transform [6]float64, alpha float64, treeOrder *int) {
	if n.TextBlock == nil || n.TextBlock.Font == nil {
		return
	}
	switch n.TextBlock.Font.(type) {
	case *BitmapFont:
		s.commands = emitBitmapTextCommands(n.TextBlock, n, transform, alpha, s.commands, treeOrder)
	case *TTFFont:
		s.commands, s.pages = emitTTFTextCommand(n.TextBlock, n, transform, alpha, s.commands, treeOrder, s.pages, &s.nextPage)
	}
}
