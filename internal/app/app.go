// Package app composes the engine, the tree model, and the store into the
// interactive skill tree editor.
package app

import (
	"log/slog"
	"math"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/store"
	"github.com/phanxgames/arbor/tree"
)

const (
	minZoom = 0.25
	maxZoom = 3.0
	// doubleClickWindow is the maximum delay between two clicks that count
	// as a double click, in seconds.
	doubleClickWindow = 0.30
	// particlePage is the scene texture page the celebration particles use.
	particlePage = 250
)

// App is the editor: two scenes (the camera-transformed world canvas and a
// screen-space UI overlay), the tree, and the store, implementing
// ebiten.Game.
type App struct {
	cfg   config.Config
	theme *Theme

	store *store.TreeStore
	tree  *tree.Tree
	rules *tree.RuleEvaluator

	world *arbor.Scene
	ui    *arbor.Scene
	cam   *arbor.Camera

	grid        *arbor.CanvasGrid
	markerLayer *arbor.Node
	markers     map[string]*marker
	links       *linkLayer
	icons       *arbor.Atlas

	dialog  *dialog
	dim     *arbor.FocusLayer
	focused *textField

	// edgeSource is the armed source node id while edge-creation mode has
	// its first endpoint, "" otherwise.
	edgeSource string

	// Node-drag bookkeeping (Shift-drag on a marker).
	dragID   string
	dragOffX float64
	dragOffY float64

	// Canvas (empty space) click detection; OnClick never fires without a
	// node, so presses and releases are paired by hand.
	canvasPress   bool
	justDragged   bool
	lastClickAt   float64
	lastClickID   string
	lastClickX    float64
	lastClickY    float64
	pendingDialog *timer

	elapsed  float64
	tweens   []*arbor.TweenGroup
	timers   []*timer
	debugOn  bool
	fpsNode  *arbor.Node
	exported func(path string) // test hook; nil in production
}

type timer struct {
	at       float64
	fn       func()
	canceled bool
}

// New builds the editor over an open store.
func New(cfg config.Config, st *store.TreeStore) *App {
	a := &App{
		cfg:     cfg,
		theme:   NewTheme(cfg.Theme),
		store:   st,
		tree:    st.Load(),
		markers: make(map[string]*marker),
	}
	if cfg.Rules.Enabled {
		a.rules = tree.NewRuleEvaluator(a.tree)
	}

	a.buildWorld()
	a.buildUI()
	a.wireInput()

	// Apply rules once at startup so a store edited elsewhere settles.
	a.applyRules()
	return a
}

// Run opens the window and blocks until it closes.
func (a *App) Run() error {
	ebiten.SetWindowSize(a.cfg.Window.Width, a.cfg.Window.Height)
	ebiten.SetWindowTitle(a.cfg.Window.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(a)
}

// Update implements ebiten.Game.
func (a *App) Update() error {
	a.world.Update()
	a.ui.Update()
	return nil
}

// Draw implements ebiten.Game. The world renders under the UI overlay.
func (a *App) Draw(screen *ebiten.Image) {
	a.world.Draw(screen)
	a.ui.Draw(screen)
}

// Layout implements ebiten.Game.
func (a *App) Layout(int, int) (int, int) {
	return a.cfg.Window.Width, a.cfg.Window.Height
}

// --- scene construction ---

func (a *App) buildWorld() {
	a.world = arbor.NewScene()
	a.world.ClearColor = colorCanvas
	a.world.SetBatchMode(arbor.BatchModeCoalesced)
	a.world.SetDebugMode(a.cfg.Debug.Stats)
	a.debugOn = a.cfg.Debug.Stats

	w := float64(a.cfg.Window.Width)
	h := float64(a.cfg.Window.Height)
	a.cam = a.world.NewCamera(arbor.Rect{Width: w, Height: h})
	a.cam.MinZoom = minZoom
	a.cam.MaxZoom = maxZoom

	if a.theme.Background != nil {
		bg := spriteFromImage("background", a.theme.Background)
		bg.ZIndex = -20
		a.world.Root().AddChild(bg)
	}

	a.grid = arbor.NewCanvasGrid("grid")
	a.grid.Node().ZIndex = -10
	a.grid.Node().Color = colorGridDots
	a.grid.SetCamera(a.cam)
	a.world.Root().AddChild(a.grid.Node())

	a.world.RegisterPage(particlePage, a.theme.Disc)

	if a.theme.HasIcons() {
		atlas, err := a.world.LoadAtlas(a.theme.IconAtlas, []*ebiten.Image{a.theme.IconPage})
		if err != nil {
			slog.Warn("icon atlas malformed, using builtin markers", "err", err)
		} else {
			a.icons = atlas
		}
	}

	a.links = newLinkLayer(a)
	a.links.container.ZIndex = -5
	a.links.previewLayer.ZIndex = -4
	a.world.Root().AddChild(a.links.container)
	a.world.Root().AddChild(a.links.previewLayer)

	a.markerLayer = arbor.NewContainer("markers")
	a.world.Root().AddChild(a.markerLayer)

	for _, tn := range a.tree.Nodes {
		a.addMarker(tn)
	}
	a.links.sync()

	a.world.SetUpdateFunc(a.tick)
}

func (a *App) buildUI() {
	a.ui = arbor.NewScene()
	// The UI scene draws last, so its flush captures the composited frame.
	a.ui.ScreenshotDir = filepath.Join(a.cfg.Store.Dir, "screenshots")

	a.dim = arbor.NewFocusLayer(a.cfg.Window.Width, a.cfg.Window.Height, 0.55)
	a.dim.Node().Visible = false
	a.dim.Node().ZIndex = -1
	a.ui.Root().AddChild(a.dim.Node())

	a.fpsNode = arbor.NewFPSWidget()
	a.fpsNode.SetPosition(8, 8)
	a.fpsNode.Visible = a.debugOn
	a.ui.Root().AddChild(a.fpsNode)
}

func (a *App) addMarker(tn *tree.Node) *marker {
	m := newMarker(a, tn)
	a.markers[tn.ID] = m
	a.markerLayer.AddChild(m.root)
	return m
}

func (a *App) removeMarker(id string) {
	if m, ok := a.markers[id]; ok {
		m.dispose()
		delete(a.markers, id)
	}
}

// --- per-frame work ---

func (a *App) tick(dt float64) {
	a.elapsed += dt
	a.links.update(dt)
	a.runTweens(dt)
	a.runTimers()
	a.handleKeys()
	a.handleWheel()

	if a.focused != nil {
		if a.ui.KeyJustPressed(ebiten.KeyTab) && a.dialog != nil {
			a.dialog.focusNext()
		} else {
			a.focused.handleInput(a.ui, dt)
		}
	}
}

func (a *App) runTweens(dt float64) {
	alive := a.tweens[:0]
	for _, g := range a.tweens {
		g.Update(float32(dt))
		if !g.Done {
			alive = append(alive, g)
		}
	}
	a.tweens = alive
}

func (a *App) runTimers() {
	// Fired callbacks may schedule new timers, so detach the slice first.
	timers := a.timers
	a.timers = nil
	for _, t := range timers {
		if t.canceled {
			continue
		}
		if a.elapsed >= t.at {
			t.fn()
			continue
		}
		a.timers = append(a.timers, t)
	}
}

// animate registers a tween group to advance every frame until done.
func (a *App) animate(g *arbor.TweenGroup) {
	a.tweens = append(a.tweens, g)
}

// after schedules fn to run once, seconds from now.
func (a *App) after(seconds float64, fn func()) *timer {
	t := &timer{at: a.elapsed + seconds, fn: fn}
	a.timers = append(a.timers, t)
	return t
}

func (a *App) handleKeys() {
	s := a.world

	if s.KeyJustPressed(ebiten.KeyEscape) {
		switch {
		case a.dialog != nil:
			a.dialog.close()
		case a.edgeSource != "":
			a.disarmEdgeMode()
		}
		return
	}

	// Releasing Control cancels an armed edge source.
	if a.edgeSource != "" && !s.KeyPressed(ebiten.KeyControl) {
		a.disarmEdgeMode()
	}

	if a.dialog != nil || a.focused != nil {
		return // typing, not hotkeys
	}

	if s.KeyJustPressed(ebiten.KeyE) {
		a.exportCSV()
	}
	if s.KeyJustPressed(ebiten.KeyF12) {
		a.ui.Screenshot("arbor")
	}
	if s.KeyJustPressed(ebiten.KeyF1) {
		a.debugOn = !a.debugOn
		a.world.SetDebugMode(a.debugOn)
		a.fpsNode.Visible = a.debugOn
	}
}

func (a *App) handleWheel() {
	if a.dialog != nil {
		if _, wy := ebiten.Wheel(); wy != 0 && a.dialog.onWheel != nil {
			a.dialog.onWheel(wy)
		}
		return
	}
	_, wy := ebiten.Wheel()
	if wy == 0 {
		return
	}
	cx, cy := ebiten.CursorPosition()
	a.cam.ZoomAt(float64(cx), float64(cy), math.Pow(1.1, wy))
}

// exportCSV writes the node dump next to the store.
func (a *App) exportCSV() {
	path := filepath.Join(a.cfg.Store.Dir, "nodes.csv")
	if err := store.ExportCSV(a.tree, path); err != nil {
		slog.Warn("csv export failed", "path", path, "err", err)
		return
	}
	slog.Info("exported nodes", "path", path, "nodes", len(a.tree.Nodes))
	if a.exported != nil {
		a.exported(path)
	}
}

// --- input wiring (world scene) ---

func (a *App) wireInput() {
	s := a.world

	s.OnClick(func(ctx arbor.ClickContext) {
		if a.dialog != nil {
			return
		}
		id, ok := ctx.Node.UserData.(string)
		if !ok {
			return
		}
		if ctx.Modifiers&arbor.ModCtrl != 0 {
			a.edgeModeClick(id, ctx.Modifiers)
			return
		}
		a.markerClick(id)
	})

	s.OnPointerDown(func(ctx arbor.PointerContext) {
		if a.dialog != nil {
			return
		}
		a.canvasPress = ctx.Node == nil
	})

	s.OnPointerMove(func(ctx arbor.PointerContext) {
		if a.edgeSource != "" {
			a.links.movePreview(ctx.GlobalX, ctx.GlobalY)
		}
	})

	s.OnDragStart(func(ctx arbor.DragContext) {
		if a.dialog != nil {
			return
		}
		a.canvasPress = false
		id, isMarker := dragTargetID(ctx)
		if isMarker && ctx.Modifiers&arbor.ModShift != 0 {
			// Drag-mode: move the node, remembering the grab offset so the
			// marker doesn't jump to the cursor.
			a.dragID = id
			if tn := a.tree.FindNode(id); tn != nil {
				a.dragOffX = tn.X - ctx.GlobalX
				a.dragOffY = tn.Y - ctx.GlobalY
			}
			a.world.CapturePointer(ctx.PointerID, ctx.Node)
		}
	})

	s.OnDrag(func(ctx arbor.DragContext) {
		if a.dialog != nil {
			return
		}
		if a.dragID != "" {
			a.tree.MoveNode(a.dragID, ctx.GlobalX+a.dragOffX, ctx.GlobalY+a.dragOffY)
			if m := a.markers[a.dragID]; m != nil {
				m.syncPosition()
			}
			return
		}
		// Anything else pans. Screen deltas keep the content glued to the
		// pointer at any zoom.
		a.cam.X -= ctx.ScreenDeltaX / a.cam.Zoom
		a.cam.Y -= ctx.ScreenDeltaY / a.cam.Zoom
		a.cam.MarkDirty()
	})

	s.OnDragEnd(func(ctx arbor.DragContext) {
		a.justDragged = true
		if a.dragID == "" {
			return
		}
		// Drag release is a commit point: persist the new coordinates.
		if tn := a.tree.FindNode(a.dragID); tn != nil {
			if err := a.store.SaveNode(a.tree, tn); err != nil {
				slog.Warn("persist move failed", "node", tn.ID, "err", err)
			}
		}
		a.dragID = ""
	})

	s.OnPointerUp(func(ctx arbor.PointerContext) {
		if a.dialog != nil {
			return
		}
		if a.justDragged {
			a.justDragged = false
			a.canvasPress = false
			return
		}
		if ctx.Node == nil && a.canvasPress {
			a.canvasClick(ctx.GlobalX, ctx.GlobalY)
		}
		a.canvasPress = false
	})

	s.OnPinch(func(ctx arbor.PinchContext) {
		if a.dialog != nil || ctx.ScaleDelta == 0 {
			return
		}
		a.cam.SetZoom(a.cam.Zoom * ctx.ScaleDelta)
	})
}

// dragTargetID unwraps the marker id from a drag context.
func dragTargetID(ctx arbor.DragContext) (string, bool) {
	if ctx.Node == nil {
		return "", false
	}
	id, ok := ctx.Node.UserData.(string)
	return id, ok
}

// markerClick handles an unmodified click on a marker: single opens the
// view dialog, double focuses the camera. The dialog open is deferred by
// the double-click window so the second click can cancel it.
func (a *App) markerClick(id string) {
	if id == a.lastClickID && a.elapsed-a.lastClickAt < doubleClickWindow {
		if a.pendingDialog != nil {
			a.pendingDialog.canceled = true
			a.pendingDialog = nil
		}
		a.lastClickID = ""
		if tn := a.tree.FindNode(id); tn != nil {
			a.cam.ScrollTo(tn.X, tn.Y, 0.4, ease.OutQuad)
		}
		return
	}
	a.lastClickID = id
	a.lastClickAt = a.elapsed
	a.pendingDialog = a.after(doubleClickWindow, func() {
		a.pendingDialog = nil
		a.openViewDialog(id)
	})
}

// canvasClick handles a click on empty canvas: it cancels an armed edge
// source, and a double click opens the create dialog at that world point.
func (a *App) canvasClick(wx, wy float64) {
	if a.edgeSource != "" {
		a.disarmEdgeMode()
		return
	}
	if a.lastClickID == "canvas" && a.elapsed-a.lastClickAt < doubleClickWindow &&
		math.Hypot(wx-a.lastClickX, wy-a.lastClickY) < 24 {
		a.lastClickID = ""
		a.openCreateDialog(wx, wy)
		return
	}
	a.lastClickID = "canvas"
	a.lastClickAt = a.elapsed
	a.lastClickX = wx
	a.lastClickY = wy
}

// edgeModeClick handles Control-clicks on markers: the first click arms the
// source, the second commits the AddEdge toggle. Alt on the commit click
// makes the link curved. Clicking the armed source again cancels.
func (a *App) edgeModeClick(id string, mods arbor.KeyModifiers) {
	if a.edgeSource == "" {
		a.edgeSource = id
		if m := a.markers[id]; m != nil {
			m.setArmed(true)
		}
		if tn := a.tree.FindNode(id); tn != nil {
			a.links.showPreview(tn)
		}
		return
	}
	if a.edgeSource == id {
		a.disarmEdgeMode()
		return
	}

	kind := tree.EdgeStraight
	if mods&arbor.ModAlt != 0 {
		kind = tree.EdgeCurved
	}
	a.tree.AddEdge(a.edgeSource, id, kind)
	if err := a.store.SaveEdges(a.tree); err != nil {
		slog.Warn("persist edges failed", "err", err)
	}
	a.disarmEdgeMode()
	a.links.sync()
}

func (a *App) disarmEdgeMode() {
	if m := a.markers[a.edgeSource]; m != nil {
		m.setArmed(false)
	}
	a.edgeSource = ""
	a.links.hidePreview()
}

// --- modal bookkeeping ---

func (a *App) setDialog(d *dialog) {
	a.dialog = d
	a.focusField(nil)
	if d == nil {
		a.dim.Node().Visible = false
		a.dim.ClearSpots()
		a.dim.Redraw()
		return
	}
	a.dim.Node().Visible = true
	a.dim.Redraw()
}

// dimAround keeps a marker lit through the dialog dim layer.
func (a *App) dimAround(id string) {
	a.dim.ClearSpots()
	if tn := a.tree.FindNode(id); tn != nil {
		sx, sy := a.cam.WorldToScreen(tn.X, tn.Y)
		a.dim.AddSpot(&arbor.Spot{
			X: sx, Y: sy,
			Radius:    markerRadius * 3 * a.cam.Zoom,
			Intensity: 1,
			Enabled:   true,
		})
	}
	a.dim.Redraw()
}

func (a *App) focusField(f *textField) {
	if a.focused == f {
		return
	}
	if a.focused != nil {
		a.focused.setFocus(false)
	}
	a.focused = f
	if f != nil {
		f.setFocus(true)
	}
}

// --- rules & persistence helpers ---

// applyRules runs the Lua unlock rules (when enabled), persists any newly
// unlocked nodes, and celebrates them.
func (a *App) applyRules() {
	if a.rules == nil {
		return
	}
	for _, id := range a.rules.ApplyRules() {
		tn := a.tree.FindNode(id)
		if tn == nil {
			continue
		}
		if err := a.store.SaveNode(a.tree, tn); err != nil {
			slog.Warn("persist unlock failed", "node", id, "err", err)
		}
		if m := a.markers[id]; m != nil {
			m.restyle()
			a.celebrate(m)
		}
	}
}
