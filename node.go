package arbor

import (
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
)

// HitShape overrides the default AABB hit test with a custom region.
type HitShape interface {
	Contains(x, y float64) bool
}

// PointerContext carries pointer event data.
type PointerContext struct {
	Node             *Node
	UserData         any
	PointerID        int
	GlobalX, GlobalY float64
	LocalX, LocalY   float64
	Button           MouseButton
	Modifiers        KeyModifiers
}

// ClickContext carries click event data.
type ClickContext struct {
	Node             *Node
	UserData         any
	PointerID        int
	GlobalX, GlobalY float64
	LocalX, LocalY   float64
	Button           MouseButton
	Modifiers        KeyModifiers
}

// DragContext carries drag event data.
type DragContext struct {
	Node             *Node
	UserData         any
	PointerID        int
	GlobalX, GlobalY float64
	LocalX, LocalY   float64
	StartX, StartY   float64
	DeltaX, DeltaY   float64
	// ScreenDeltaX and ScreenDeltaY are the movement in screen pixels,
	// unaffected by camera zoom. Camera panning uses these so the canvas
	// tracks the pointer exactly at any zoom level.
	ScreenDeltaX float64
	ScreenDeltaY float64
	Button       MouseButton
	Modifiers    KeyModifiers
}

// PinchContext carries pinch gesture data.
type PinchContext struct {
	CenterX, CenterY   float64
	Scale, ScaleDelta  float64
	Rotation, RotDelta float64
}

// nodeIDCounter hands out IDs. Arbor is single-threaded, so a plain
// counter suffices.
var nodeIDCounter uint32

func nextNodeID() uint32 { nodeIDCounter++; return nodeIDCounter }

// Node is the scene graph element. One flat struct serves every node kind;
// the editor keeps thousands of marker sprites live per canvas, and a flat
// struct avoids interface dispatch on the traversal hot path.
type Node struct {
	ID   uint32
	Name string
	Type NodeType

	Parent   *Node
	children []*Node

	// Local transform.
	X, Y     float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64
	PivotX   float64
	PivotY   float64

	// Computed during traversal.
	worldTransform [6]float64
	worldAlpha     float64
	transformDirty bool

	Alpha        float64
	Visible      bool
	Renderable   bool
	Interactable bool

	// Ordering within siblings and across the frame.
	ZIndex      int
	RenderLayer uint8
	GlobalOrder int

	// UserData binds domain records to canvas nodes (a *tree.Node on a
	// skill marker, a *tree.Link on a rope mesh).
	UserData any

	// Sprite (NodeTypeSprite): marker icons, badges, dialog chrome.
	TextureRegion TextureRegion
	BlendMode     BlendMode
	Color         Color
	customImage   *ebiten.Image // user-provided offscreen canvas (RenderTexture)

	// Mesh (NodeTypeMesh): rope links between markers.
	Vertices         []ebiten.Vertex
	Indices          []uint16
	MeshImage        *ebiten.Image
	transformedVerts []ebiten.Vertex // preallocated transform buffer
	meshAABB         Rect            // cached local-space AABB
	meshAABBDirty    bool

	// Particles (NodeTypeParticleEmitter): unlock sparks.
	Emitter *ParticleEmitter

	// Text (NodeTypeText): marker labels, dialog titles.
	TextBlock *TextBlock

	HitShape HitShape

	Filters []Filter

	// Texture cache (SetCacheAsTexture).
	cacheEnabled bool
	cacheTexture *ebiten.Image
	cacheDirty   bool

	// Command cache (SetCacheAsTree).
	cacheTreeEnabled    bool
	cacheTreeMode       CacheTreeMode
	cacheTreeDirty      bool
	cachedCommands      []RenderCommand
	cachedTreeTransform [6]float64 // world transform at record time
	cachedTreeAlpha     float64    // world alpha at record time
	cachedCmdOwner      *Node      // ancestor whose cachedCommands hold this node's command
	cachedCmdIndex      int32

	mask *Node

	// OnUpdate runs every frame during Scene.Update with the frame delta in
	// seconds. Used by widgets, the grid layer, and the FPS overlay.
	OnUpdate func(dt float64)

	// customEmit, when set, replaces the default render command emission for
	// this node. The grid layer uses it to submit buffered geometry.
	customEmit func(s *Scene, treeOrder *int)

	// Per-node callbacks (nil by default; zero cost when unused).
	OnPointerDown  func(PointerContext)
	OnPointerUp    func(PointerContext)
	OnPointerMove  func(PointerContext)
	OnClick        func(ClickContext)
	OnDragStart    func(DragContext)
	OnDrag         func(DragContext)
	OnDragEnd      func(DragContext)
	OnPinch        func(PinchContext)
	OnPointerEnter func(PointerContext)
	OnPointerLeave func(PointerContext)

	disposed       bool
	childrenSorted bool
	sortedChildren []*Node // reused buffer for ZIndex-sorted traversal order
}

// newNode allocates a node of the given type with the defaults every
// constructor shares: unit scale, opaque white tint, visible, and dirty so
// the first transform pass computes it.
func newNode(name string, typ NodeType) *Node {
	return &Node{
		ID:             nextNodeID(),
		Name:           name,
		Type:           typ,
		ScaleX:         1,
		ScaleY:         1,
		Alpha:          1,
		Color:          Color{1, 1, 1, 1},
		Visible:        true,
		Renderable:     true,
		transformDirty: true,
		childrenSorted: true,
	}
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	return newNode(name, NodeTypeContainer)
}

// NewSprite creates a sprite node that renders a texture region.
// A zero region defaults to the shared WhitePixel image, giving a solid
// rectangle whose size comes from the node's scale and color from its tint.
func NewSprite(name string, region TextureRegion) *Node {
	n := newNode(name, NodeTypeSprite)
	n.TextureRegion = region
	if region.Width == 0 && region.Height == 0 {
		n.customImage = WhitePixel
	}
	return n
}

// NewMesh creates a mesh node that uses DrawTriangles for rendering.
func NewMesh(name string, img *ebiten.Image, vertices []ebiten.Vertex, indices []uint16) *Node {
	n := newNode(name, NodeTypeMesh)
	n.MeshImage = img
	n.Vertices = vertices
	n.Indices = indices
	n.meshAABBDirty = true
	return n
}

// NewParticleEmitter creates a particle emitter node with a preallocated pool.
func NewParticleEmitter(name string, cfg EmitterConfig) *Node {
	n := newNode(name, NodeTypeParticleEmitter)
	n.TextureRegion = cfg.Region
	n.BlendMode = cfg.BlendMode
	n.Emitter = newParticleEmitter(cfg)
	return n
}

// NewText creates a text node with the given content and font.
func NewText(name string, content string, font Font) *Node {
	n := newNode(name, NodeTypeText)
	n.TextBlock = &TextBlock{
		Content:     content,
		Font:        font,
		Color:       Color{1, 1, 1, 1},
		layoutDirty: true,
		ttfPage:     -1,
	}
	return n
}

// SetCustomImage sets a user-provided *ebiten.Image to display instead of
// TextureRegion. RenderTexture uses this to attach a persistent offscreen
// canvas to a sprite node.
func (n *Node) SetCustomImage(img *ebiten.Image) { n.customImage = img }

// CustomImage returns the user-provided image, or nil if not set.
func (n *Node) CustomImage() *ebiten.Image { return n.customImage }

// SetTextureRegion swaps the sprite's texture region. A swap within the same
// atlas page patches the recorded command of an enclosing tree cache in place
// (frame-flipping inside a cached subtree stays free); a page change makes the
// recorded batch key stale, so the enclosing cache is invalidated instead.
func (n *Node) SetTextureRegion(region TextureRegion) {
	old := n.TextureRegion
	n.TextureRegion = region
	if old == region {
		return
	}
	if owner := n.cachedCmdOwner; owner != nil {
		if region.Page == old.Page && int(n.cachedCmdIndex) < len(owner.cachedCommands) {
			owner.cachedCommands[n.cachedCmdIndex].TextureRegion = region
			return
		}
		owner.cacheTreeDirty = true
	}
	invalidateAutoCaches(n.Parent)
}

// --- Tree manipulation ---

// adoptChild validates and reparents c under n, then inserts it at index
// (len(n.children) appends). Shared by AddChild and AddChildAt.
func (n *Node) adoptChild(c *Node, index int, caller string) {
	if c == nil {
		panic("arbor: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, caller+" (parent)")
		debugCheckDisposed(c, caller+" (child)")
	}
	if isAncestor(c, n) {
		panic("arbor: adding child would create a cycle")
	}
	if c.Parent != nil {
		c.Parent.removeChildByPtr(c)
	}
	c.Parent = n
	if index == len(n.children) {
		n.children = append(n.children, c)
	} else {
		n.children = append(n.children, nil)
		copy(n.children[index+1:], n.children[index:])
		n.children[index] = c
	}
	n.childrenSorted = false
	markSubtreeDirty(c)
	invalidateAutoCaches(n)
	if globalDebug {
		debugCheckTreeDepth(c)
		debugCheckChildCount(n)
	}
}

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	n.adoptChild(child, len(n.children), "AddChild")
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if index < 0 || index > len(n.children) {
		panic("arbor: child index out of range")
	}
	n.adoptChild(child, index, "AddChildAt")
}

// RemoveChild detaches child from this node. Panics when the child belongs
// to a different parent.
func (n *Node) RemoveChild(child *Node) {
	if globalDebug {
		debugCheckDisposed(n, "RemoveChild (parent)")
		debugCheckDisposed(child, "RemoveChild (child)")
	}
	if child.Parent != n {
		panic("arbor: child's parent is not this node")
	}
	n.detachChildAt(n.childIndex(child))
}

// RemoveChildAt removes and returns the child at the given index.
func (n *Node) RemoveChildAt(index int) *Node {
	if globalDebug {
		debugCheckDisposed(n, "RemoveChildAt")
	}
	switch {
	case index < 0, index >= len(n.children):
		panic("arbor: child index out of range")
	}
	return n.detachChildAt(index)
}

// detachChildAt removes the child at index, clears its parent link, and
// invalidates ordering and caches. index must be valid.
func (n *Node) detachChildAt(index int) *Node {
	c := n.children[index]
	n.children = deleteChild(n.children, index)
	c.Parent = nil
	n.childrenSorted = false
	markSubtreeDirty(c)
	invalidateAutoCaches(n)
	return c
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// RemoveChildren detaches all children from this node.
// Children are NOT disposed.
func (n *Node) RemoveChildren() {
	for _, c := range n.children {
		c.Parent = nil
		markSubtreeDirty(c)
	}
	n.children = n.children[:0]
	n.childrenSorted = true
	invalidateAutoCaches(n)
}

// Children returns the child list. Callers must treat the returned slice
// as read-only.
func (n *Node) Children() []*Node { return n.children }

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return len(n.children) }

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node { return n.children[index] }

// childIndex returns the position of c in n.children, or -1.
func (n *Node) childIndex(c *Node) int {
	return slices.Index(n.children, c)
}

// SetChildIndex moves child to a new index among its siblings.
func (n *Node) SetChildIndex(child *Node, index int) {
	switch {
	case child.Parent != n:
		panic("arbor: child's parent is not this node")
	case index < 0 || index >= len(n.children):
		panic("arbor: child index out of range")
	}
	old := n.childIndex(child)
	if old == index {
		return
	}
	// Shift the siblings between the two positions, then drop the child
	// into the vacated slot.
	switch {
	case old < index:
		copy(n.children[old:], n.children[old+1:index+1])
	default:
		copy(n.children[index+1:], n.children[index:old])
	}
	n.children[index] = child
	n.childrenSorted = false
	invalidateAutoCaches(n)
}

// SetZIndex changes the node's draw order among its siblings. The parent's
// child list is re-sorted lazily on the next traversal.
func (n *Node) SetZIndex(z int) {
	if n.ZIndex == z {
		return
	}
	n.ZIndex = z
	if p := n.Parent; p != nil {
		p.childrenSorted = false
	}
	invalidateAutoCaches(n.Parent)
}

// --- Disposal ---

// Dispose detaches this node from its parent and tears down the whole
// subtree. Disposing twice is a no-op.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed, n.ID = true, 0

	for _, c := range n.children {
		c.Parent = nil
		c.dispose()
	}
	n.children, n.sortedChildren, n.Parent = nil, nil, nil

	// Release render resources. The cache texture is given back to ebiten
	// explicitly; everything else just drops its reference.
	if n.cacheTexture != nil {
		n.cacheTexture.Deallocate()
		n.cacheTexture = nil
	}
	n.cacheEnabled, n.cacheDirty = false, false
	n.cacheTreeEnabled, n.cacheTreeDirty = false, false
	n.cachedCommands, n.cachedCmdOwner = nil, nil
	n.mask, n.customImage, n.MeshImage = nil, nil, nil
	n.transformedVerts = nil
	n.Emitter, n.TextBlock = nil, nil
	n.HitShape, n.Filters, n.UserData = nil, nil, nil

	// Drop callbacks so disposed nodes can't keep closures alive.
	n.OnUpdate, n.customEmit = nil, nil
	n.OnPointerDown, n.OnPointerUp, n.OnPointerMove = nil, nil, nil
	n.OnClick = nil
	n.OnDragStart, n.OnDrag, n.OnDragEnd = nil, nil, nil
	n.OnPinch = nil
	n.OnPointerEnter, n.OnPointerLeave = nil, nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// SetMask clips this node's rendering by the mask node's alpha channel.
// Dialogs use this to keep scrolling rows inside the list area. The mask
// is not attached to the scene tree; its transform is relative to n.
func (n *Node) SetMask(maskNode *Node) {
	n.mask = maskNode
}

// ClearMask removes any mask.
func (n *Node) ClearMask() { n.mask = nil }

// GetMask returns the mask node, or nil when unmasked.
func (n *Node) GetMask() *Node { return n.mask }

// --- Helpers ---

// isAncestor reports whether candidate appears on node's parent chain.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
func (n *Node) removeChildByPtr(child *Node) {
	if i := n.childIndex(child); i >= 0 {
		n.children = deleteChild(n.children, i)
	}
}

// deleteChild removes the element at i, nilling the vacated tail slot so the
// backing array does not retain a dangling pointer.
func deleteChild(list []*Node, i int) []*Node {
	copy(list[i:], list[i+1:])
	last := len(list) - 1
	list[last] = nil
	return list[:last]
}

// markSubtreeDirty sets transformDirty on node and all its descendants.
// Tree-cache command slots are forgotten too: after a reparent the node no
// longer lives at its recorded index, so patching it would hit the wrong slot.
func markSubtreeDirty(node *Node) {
	node.transformDirty = true
	node.cachedCmdOwner = nil
	for _, child := range node.children {
		markSubtreeDirty(child)
	}
}
