package arbor

import (
	"image"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

const defaultCommandCap = 1024

// Scene is the top-level object that owns the node tree, cameras, input
// state, and render buffers. The studio runs one Scene per editor window.
type Scene struct {
	root  *Node
	debug bool

	// ClearColor fills the screen at the start of Draw when its alpha is
	// non-zero. The editor sets this to the canvas background tint.
	ClearColor Color

	// ScreenshotDir is where Screenshot writes PNG captures. Empty means
	// the current working directory's "screenshots" folder.
	ScreenshotDir string

	// updateFunc is the per-frame application callback set via SetUpdateFunc.
	updateFunc func(dt float64)

	cameras []*Camera

	// Render state.
	commands      []RenderCommand
	sortBuf       []RenderCommand
	pages         []*ebiten.Image
	nextPage      int        // next available page index for LoadAtlas
	cullBounds    Rect       // current camera cull bounds (set per-camera during Draw)
	cullActive    bool       // whether culling is active for the current camera
	viewTransform [6]float64 // current camera view matrix, applied at submit time
	view32        [6]float32
	viewIdentity  bool
	batchMode     BatchMode

	// Tree cache state. commandsDirtyThisFrame is false when the whole frame
	// came from cache replays, which lets mergeSort verify-and-skip.
	commandsDirtyThisFrame bool
	cacheRecordOwner       *Node // tree cache recording in progress, if any
	cacheRecordStart       int   // s.commands index where the recording began
	cacheBlockers          int   // uncacheable emissions seen during recording

	// Sprite batch buffers (submitBatches).
	batchVerts []ebiten.Vertex
	batchInds  []uint32

	// Render target pool and offscreen buffers.
	rtPool        renderTexturePool
	rtDeferred    []*ebiten.Image
	offscreenCmds []RenderCommand

	// Input state.
	handlers     handlerRegistry
	captured     [maxPointers]*Node
	pointers     [maxPointers]pointerState
	hitBuf       []*Node
	dragDeadZone float64

	// Touch slot bookkeeping, pinch tracking, keyboard edge detection.
	touchMap     [maxPointers]ebiten.TouchID
	touchUsed    [maxPointers]bool
	prevTouchIDs []ebiten.TouchID
	pinch        pinchState
	keys         keyboardState

	// Synthetic input and scripted test driving.
	injectQueue     []syntheticPointerEvent
	testRunner      *TestRunner
	screenshotQueue []string
}

// NewScene creates a new scene with a pre-created root container.
func NewScene() *Scene {
	root := NewContainer("root")
	root.Interactable = true
	return &Scene{
		root:          root,
		commands:      make([]RenderCommand, 0, defaultCommandCap),
		sortBuf:       make([]RenderCommand, 0, defaultCommandCap),
		dragDeadZone:  defaultDragDeadZone,
		ScreenshotDir: "screenshots",
		viewTransform: identityTransform,
		view32:        identityTransform32,
		viewIdentity:  true,
	}
}

// Root returns the scene's root container node.
func (s *Scene) Root() *Node { return s.root }

// SetUpdateFunc registers an application callback invoked once per Update
// with the frame delta in seconds, after transforms and cameras refresh but
// before input processing.
func (s *Scene) SetUpdateFunc(fn func(dt float64)) {
	s.updateFunc = fn
}

// Update processes input, advances animations, and simulates particles.
func (s *Scene) Update() {
	dt := float32(1.0 / float64(ebiten.TPS()))

	// Refresh world transforms first so camera scrolling and hit testing
	// have accurate positions this frame.
	updateWorldTransform(s.root, identityTransform, 1.0, false)

	for _, cam := range s.cameras {
		cam.update(dt)
	}

	s.keys.update()
	runOnUpdate(s.root, float64(dt))

	if s.testRunner != nil {
		s.testRunner.step(s)
	}
	if s.updateFunc != nil {
		s.updateFunc(float64(dt))
	}

	updateParticles(s.root, float64(dt))
	s.processInput()
}

// runOnUpdate invokes OnUpdate callbacks through the tree in child order.
func runOnUpdate(n *Node, dt float64) {
	if n.OnUpdate != nil {
		n.OnUpdate(dt)
	}
	for _, child := range n.children {
		runOnUpdate(child, dt)
	}
}

// Draw traverses the scene tree, emits render commands, sorts them, and
// submits batches to the given screen image.
func (s *Scene) Draw(screen *ebiten.Image) {
	if s.ClearColor.A > 0 {
		screen.Fill(s.ClearColor.toRGBA())
	}

	if len(s.cameras) == 0 {
		// No explicit cameras: implicit identity camera, full screen.
		s.drawWithCamera(screen, nil)
	} else {
		for _, cam := range s.cameras {
			cam.computeViewMatrix()
			vp := cam.Viewport
			pane := screen.SubImage(image.Rect(
				int(vp.X), int(vp.Y),
				int(vp.X+vp.Width), int(vp.Y+vp.Height),
			)).(*ebiten.Image)
			s.drawWithCamera(pane, cam)
		}
	}

	s.flushScreenshots(screen)
}

// setCameraView loads a camera's view and cull state into the scene's
// per-pass render fields. A nil camera means identity view, no culling.
func (s *Scene) setCameraView(cam *Camera) {
	if cam != nil {
		s.viewTransform = cam.computeViewMatrix()
		s.cullActive = cam.CullEnabled
		if cam.CullEnabled {
			s.cullBounds = cam.VisibleBounds()
		}
	} else {
		s.viewTransform = identityTransform
		s.cullActive = false
	}
	s.view32 = affine32(s.viewTransform)
	s.viewIdentity = s.viewTransform == identityTransform
}

// drawWithCamera renders the scene from a camera's perspective.
//
// Node transforms stay in world space; the camera view matrix is applied
// once per command at submit time. This keeps hit testing, culling, and
// command emission all in the same coordinate space.
func (s *Scene) drawWithCamera(target *ebiten.Image, cam *Camera) {
	s.commands = s.commands[:0]
	s.commandsDirtyThisFrame = false
	s.setCameraView(cam)

	// lap measures elapsed time between pipeline stages; a no-op outside
	// debug mode.
	var stats debugStats
	lap := func() time.Duration { return 0 }
	if s.debug {
		last := time.Now()
		lap = func() time.Duration {
			now := time.Now()
			d := now.Sub(last)
			last = now
			return d
		}
	}

	treeOrder := 0
	s.traverse(s.root, identityTransform, 1.0, false, &treeOrder)
	stats.traverseTime = lap()

	s.mergeSort()
	stats.sortTime = lap()
	stats.commandCount = len(s.commands)

	coalesced := s.batchMode == BatchModeCoalesced
	if coalesced {
		s.submitBatchesCoalesced(target)
	} else {
		s.submitBatches(target)
	}
	stats.submitTime = lap()

	if s.debug {
		stats.batchCount = countBatches(s.commands)
		if coalesced {
			stats.drawCallCount = countDrawCallsCoalesced(s.commands)
		} else {
			stats.drawCallCount = countDrawCalls(s.commands)
		}
		s.debugLog(stats)
	}

	// Pooled textures drawn as directImage this frame go back to the pool
	// only after submission.
	for i, img := range s.rtDeferred {
		s.rtPool.Release(img)
		s.rtDeferred[i] = nil
	}
	s.rtDeferred = s.rtDeferred[:0]
}

// NewCamera creates a camera with the given viewport and adds it to the scene.
func (s *Scene) NewCamera(viewport Rect) *Camera {
	cam := newCamera(viewport)
	s.cameras = append(s.cameras, cam)
	return cam
}

// RemoveCamera removes a camera from the scene.
func (s *Scene) RemoveCamera(cam *Camera) {
	if i := slices.Index(s.cameras, cam); i >= 0 {
		s.cameras = slices.Delete(s.cameras, i, i+1)
	}
}

// Cameras returns the scene's camera list. Callers must treat the returned
// slice as read-only.
func (s *Scene) Cameras() []*Camera { return s.cameras }

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// access panics, tree depth and child count warnings are printed, and
// per-frame timing stats are logged to stderr.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug, globalDebug = enabled, enabled
}

// globalDebug mirrors the most recently set Scene debug flag so node
// operations, which carry no Scene pointer, can check it cheaply. With
// several Scenes at different debug settings, the last SetDebugMode wins.
var globalDebug bool

// RegisterPage stores an atlas page image at the given index.
// Sprite submission SubImages regions out of these pages.
func (s *Scene) RegisterPage(index int, img *ebiten.Image) {
	if missing := index + 1 - len(s.pages); missing > 0 {
		s.pages = append(s.pages, make([]*ebiten.Image, missing)...)
	}
	s.pages[index] = img
}

// LoadAtlas parses TexturePacker JSON, registers atlas pages with the scene,
// and returns the Atlas for region lookups. Pages are registered starting at
// the next available page index.
func (s *Scene) LoadAtlas(jsonData []byte, pages []*ebiten.Image) (*Atlas, error) {
	atlas, err := LoadAtlas(jsonData, pages)
	if err != nil {
		return nil, err
	}
	start := s.nextPage
	for i, page := range pages {
		s.RegisterPage(start+i, page)
	}
	s.nextPage = start + len(pages)
	if start == 0 {
		return atlas, nil
	}
	// Region page indices were parsed relative to the sheet; shift them to
	// the scene-wide page slots just claimed.
	for name, r := range atlas.regions {
		r.Page += uint16(start)
		atlas.regions[name] = r
	}
	return atlas, nil
}
