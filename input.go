package arbor

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	maxPointers         = 10  // slot 0 is the mouse, 1-9 are touches
	defaultDragDeadZone = 4.0 // screen pixels of travel before a press becomes a drag
)

// --- Hit shapes ---

// HitRect is an axis-aligned rectangular hit area in local coordinates.
type HitRect struct {
	X, Y          float64
	Width, Height float64
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r HitRect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// HitCircle is a circular hit area in local coordinates. Skill markers use
// this so clicks just outside the disc corner don't count.
type HitCircle struct {
	CenterX, CenterY float64
	Radius           float64
}

// Contains reports whether (x, y) lies inside or on the circle.
func (c HitCircle) Contains(x, y float64) bool {
	dx, dy := x-c.CenterX, y-c.CenterY
	return math.Hypot(dx, dy) <= c.Radius
}

// HitPolygon is a convex polygon hit area in local coordinates. Either
// winding order works; concave polygons give wrong answers.
type HitPolygon struct {
	Points []Vec2
}

// Contains tests which side of each edge the point falls on. A point
// inside a convex polygon is on the same side of every edge.
func (p HitPolygon) Contains(x, y float64) bool {
	if len(p.Points) < 3 {
		return false
	}
	var pos, neg bool
	for i, a := range p.Points {
		b := p.Points[(i+1)%len(p.Points)]
		switch cross := (b.X-a.X)*(y-a.Y) - (b.Y-a.Y)*(x-a.X); {
		case cross > 0:
			pos = true
		case cross < 0:
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

// --- Per-pointer state ---

type pointerState struct {
	down, dragging bool
	button   MouseButton // latched at press so it can't change mid-gesture

	// World coordinates at press and at the previous sample.
	startX, startY float64
	lastX, lastY   float64

	// Raw screen coordinates, kept separately for the drag dead zone.
	startSX, startSY float64
	lastSX, lastSY   float64

	hitNode   *Node // node under the press, target of click and drag events
	hoverNode *Node // node under the pointer last frame, for enter/leave
}

type pinchState struct {
	active             bool
	pointer0, pointer1 int

	initialDist, initialAngle float64
	prevDist, prevAngle       float64
}

// --- Handler registry ---

type handlerEntry[T any] struct {
	id uint32
	fn func(T)
}

// handlerList is an ordered list of scene-level callbacks for one event
// kind. Removal compacts the slice so dispatch never skips nil entries.
type handlerList[T any] struct {
	entries []handlerEntry[T]
}

func (l *handlerList[T]) add(id uint32, fn func(T)) {
	l.entries = append(l.entries, handlerEntry[T]{id: id, fn: fn})
}

func (l *handlerList[T]) drop(id uint32) {
	for i := range l.entries {
		if l.entries[i].id == id {
			copy(l.entries[i:], l.entries[i+1:])
			l.entries[len(l.entries)-1] = handlerEntry[T]{}
			l.entries = l.entries[:len(l.entries)-1]
			return
		}
	}
}

func (l *handlerList[T]) emit(ctx T) {
	for _, e := range l.entries {
		e.fn(ctx)
	}
}

type handlerRegistry struct {
	pointerDown  handlerList[PointerContext]
	pointerUp    handlerList[PointerContext]
	pointerMove  handlerList[PointerContext]
	pointerEnter handlerList[PointerContext]
	pointerLeave handlerList[PointerContext]
	click        handlerList[ClickContext]
	dragStart    handlerList[DragContext]
	drag         handlerList[DragContext]
	dragEnd      handlerList[DragContext]
	pinch        handlerList[PinchContext]
	nextID       uint32
}

// CallbackHandle detaches a registered scene-level callback. The zero
// value is a no-op.
type CallbackHandle struct {
	detach func()
}

// Remove unregisters the callback so it no longer fires.
func (h CallbackHandle) Remove() {
	if h.detach != nil {
		h.detach()
	}
}

func register[T any](reg *handlerRegistry, list *handlerList[T], fn func(T)) CallbackHandle {
	reg.nextID++
	id := reg.nextID
	list.add(id, fn)
	return CallbackHandle{detach: func() { list.drop(id) }}
}

// --- Scene-level event registration ---

// OnPointerDown registers a scene-level callback for pointer presses.
func (s *Scene) OnPointerDown(fn func(PointerContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.pointerDown, fn)
}

// OnPointerUp registers a scene-level callback for pointer releases.
func (s *Scene) OnPointerUp(fn func(PointerContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.pointerUp, fn)
}

// OnPointerMove registers a scene-level callback for hover movement.
func (s *Scene) OnPointerMove(fn func(PointerContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.pointerMove, fn)
}

// OnPointerEnter registers a scene-level callback fired when the pointer
// moves onto a node it wasn't over before.
func (s *Scene) OnPointerEnter(fn func(PointerContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.pointerEnter, fn)
}

// OnPointerLeave registers a scene-level callback fired when the pointer
// moves off a node, whether onto another node or empty canvas.
func (s *Scene) OnPointerLeave(fn func(PointerContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.pointerLeave, fn)
}

// OnClick registers a scene-level callback for press-release pairs that
// stay on the same node.
func (s *Scene) OnClick(fn func(ClickContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.click, fn)
}

// OnDragStart registers a scene-level callback fired once travel exceeds
// the drag dead zone.
func (s *Scene) OnDragStart(fn func(DragContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.dragStart, fn)
}

// OnDrag registers a scene-level callback for drag movement.
func (s *Scene) OnDrag(fn func(DragContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.drag, fn)
}

// OnDragEnd registers a scene-level callback for drag release.
func (s *Scene) OnDragEnd(fn func(DragContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.dragEnd, fn)
}

// OnPinch registers a scene-level callback for two-finger pinch gestures.
func (s *Scene) OnPinch(fn func(PinchContext)) CallbackHandle {
	return register(&s.handlers, &s.handlers.pinch, fn)
}

// CapturePointer routes all events for pointerID to node until release.
// Dragging a marker captures the pointer so fast drags can't slip off it.
func (s *Scene) CapturePointer(pointerID int, node *Node) {
	if pointerID < 0 || pointerID >= maxPointers {
		return
	}
	s.captured[pointerID] = node
}

// ReleasePointer undoes CapturePointer before the pointer goes up.
func (s *Scene) ReleasePointer(pointerID int) {
	s.CapturePointer(pointerID, nil)
}

// SetDragDeadZone sets the travel in screen pixels needed before a press
// turns into a drag.
func (s *Scene) SetDragDeadZone(pixels float64) { s.dragDeadZone = pixels }

// --- Hit testing ---

// nodeContainsLocal tests (lx, ly) against a node's hit region: the
// HitShape when set, otherwise the node's own bounds. Containers without
// a HitShape have no bounds and are never hit.
func nodeContainsLocal(n *Node, lx, ly float64) bool {
	if n.HitShape != nil {
		return n.HitShape.Contains(lx, ly)
	}
	switch w, h := nodeDimensions(n); {
	case w == 0 && h == 0:
		return false
	default:
		return HitRect{Width: w, Height: h}.Contains(lx, ly)
	}
}

// collectInteractable appends hit-testable nodes to buf in painter order
// (DFS through ZIndex-sorted children). Invisible or non-interactable
// subtrees are pruned whole.
func (s *Scene) collectInteractable(n *Node, buf []*Node) []*Node {
	if !n.Visible || !n.Interactable {
		return buf
	}
	if n.HitShape != nil || n.Type != NodeTypeContainer {
		buf = append(buf, n)
	}
	for _, child := range s.orderedChildren(n) {
		buf = s.collectInteractable(child, buf)
	}
	return buf
}

// hitTest returns the topmost interactable node at the world position,
// or nil. Topmost means last in painter order, so the scan runs backward.
func (s *Scene) hitTest(worldX, worldY float64) *Node {
	s.hitBuf = s.collectInteractable(s.root, s.hitBuf[:0])
	for i := len(s.hitBuf) - 1; i >= 0; i-- {
		cand := s.hitBuf[i]
		if lx, ly := cand.WorldToLocal(worldX, worldY); nodeContainsLocal(cand, lx, ly) {
			return cand
		}
	}
	return nil
}

// --- Input processing ---

var modifierKeySets = [...]struct {
	mod  KeyModifiers
	keys [3]ebiten.Key
}{
	{ModShift, [3]ebiten.Key{ebiten.KeyShift, ebiten.KeyShiftLeft, ebiten.KeyShiftRight}},
	{ModCtrl, [3]ebiten.Key{ebiten.KeyControl, ebiten.KeyControlLeft, ebiten.KeyControlRight}},
	{ModAlt, [3]ebiten.Key{ebiten.KeyAlt, ebiten.KeyAltLeft, ebiten.KeyAltRight}},
	{ModMeta, [3]ebiten.Key{ebiten.KeyMeta, ebiten.KeyMetaLeft, ebiten.KeyMetaRight}},
}

// readModifiers samples the live modifier key state.
func readModifiers() KeyModifiers {
	var mods KeyModifiers
	for _, set := range modifierKeySets {
		for _, k := range set.keys {
			if ebiten.IsKeyPressed(k) {
				mods |= set.mod
				break
			}
		}
	}
	return mods
}

// processInput runs once per Scene.Update, after world transforms have
// been refreshed, and feeds mouse, touch, and injected events through the
// pointer state machine.
func (s *Scene) processInput() {
	mods := readModifiers()

	// The primary camera defines the screen-to-world mapping.
	var cam *Camera
	if len(s.cameras) != 0 {
		cam = s.cameras[0]
		cam.computeViewMatrix()
	}

	// An injected event replaces real mouse input for the frame, so a
	// scripted drag isn't disturbed by the live cursor position.
	if !s.processInjectedInput(cam, mods) {
		s.processMousePointer(cam, mods)
	}
	s.processTouchPointers(cam, mods)
	s.detectPinch()
}

// screenToWorld converts screen coordinates through the primary camera,
// or passes them through when the scene has no camera.
func screenToWorld(cam *Camera, sx, sy float64) (float64, float64) {
	if cam == nil {
		return sx, sy
	}
	return cam.ScreenToWorld(sx, sy)
}

// processMousePointer feeds the mouse through pointer slot 0.
func (s *Scene) processMousePointer(cam *Camera, mods KeyModifiers) {
	mx, my := ebiten.CursorPosition()
	sx, sy := float64(mx), float64(my)
	wx, wy := screenToWorld(cam, sx, sy)

	var pressed bool
	var button MouseButton
	switch {
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		pressed, button = true, MouseButtonLeft
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight):
		pressed, button = true, MouseButtonRight
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle):
		pressed, button = true, MouseButtonMiddle
	}

	s.processPointer(0, wx, wy, sx, sy, pressed, button, mods)
}

// processTouchPointers feeds live touches through pointer slots 1-9 and
// synthesizes releases for touches that vanished since last frame.
func (s *Scene) processTouchPointers(cam *Camera, mods KeyModifiers) {
	touchIDs := ebiten.AppendTouchIDs(s.prevTouchIDs[:0])
	s.prevTouchIDs = touchIDs

	var live [maxPointers]bool
	for _, tid := range touchIDs {
		slot := s.touchSlot(tid)
		if slot < 0 {
			continue
		}
		live[slot] = true

		tx, ty := ebiten.TouchPosition(tid)
		sx, sy := float64(tx), float64(ty)
		wx, wy := screenToWorld(cam, sx, sy)
		s.processPointer(slot, wx, wy, sx, sy, true, MouseButtonLeft, mods)
	}

	for i := 1; i < maxPointers; i++ {
		if !s.touchUsed[i] || live[i] {
			continue
		}
		if ps := &s.pointers[i]; ps.down {
			s.processPointer(i, ps.lastX, ps.lastY, ps.lastSX, ps.lastSY, false, MouseButtonLeft, mods)
		}
		s.touchUsed[i] = false
		s.touchMap[i] = 0
	}
}

// touchSlot returns the pointer slot already mapped to tid, or claims a
// free one. Returns -1 when all nine touch slots are taken.
func (s *Scene) touchSlot(tid ebiten.TouchID) int {
	free := -1
	for i := 1; i < maxPointers; i++ {
		switch {
		case s.touchUsed[i] && s.touchMap[i] == tid:
			return i
		case !s.touchUsed[i] && free < 0:
			free = i
		}
	}
	if free > 0 {
		s.touchUsed[free] = true
		s.touchMap[free] = tid
	}
	return free
}

// processPointer is the per-pointer state machine. (wx, wy) are world
// coordinates, (sx, sy) raw screen coordinates.
func (s *Scene) processPointer(pointerID int, wx, wy, sx, sy float64, pressed bool, button MouseButton, mods KeyModifiers) {
	ps := &s.pointers[pointerID]

	// A captured pointer always targets its captor; otherwise hit test.
	target := s.captured[pointerID]
	if target == nil {
		target = s.hitTest(wx, wy)
	}

	if prev := ps.hoverNode; target != prev {
		ps.hoverNode = target
		if prev != nil {
			s.firePointerLeave(prev, pointerID, wx, wy, button, mods)
		}
		if target != nil {
			s.firePointerEnter(target, pointerID, wx, wy, button, mods)
		}
	}

	switch {
	case pressed && !ps.down:
		// Press. The button is latched for the whole interaction.
		ps.down = true
		ps.button = button
		ps.startX, ps.startY = wx, wy
		ps.lastX, ps.lastY = wx, wy
		ps.startSX, ps.startSY = sx, sy
		ps.lastSX, ps.lastSY = sx, sy
		ps.hitNode = target
		ps.dragging = false

		s.firePointerDown(target, pointerID, wx, wy, ps.button, mods)

	case !pressed && ps.down:
		// Release. A drag ends; a stationary press on the same node clicks.
		switch {
		case ps.dragging:
			s.fireDragEnd(ps.hitNode, pointerID, wx, wy, ps,
				wx-ps.lastX, wy-ps.lastY, sx-ps.lastSX, sy-ps.lastSY, mods)
		case ps.hitNode != nil && ps.hitNode == target:
			s.fireClick(target, pointerID, wx, wy, ps.button, mods)
		}

		s.firePointerUp(target, pointerID, wx, wy, ps.button, mods)

		s.captured[pointerID] = nil
		ps.down = false
		ps.hitNode = nil
		ps.dragging = false

	case pressed && ps.down:
		// Held. Movement beyond the dead zone promotes the press to a drag.
		if wx != ps.lastX || wy != ps.lastY || sx != ps.lastSX || sy != ps.lastSY {
			if !ps.dragging {
				dx := sx - ps.startSX
				dy := sy - ps.startSY
				if math.Sqrt(dx*dx+dy*dy) > s.dragDeadZone {
					ps.dragging = true
					s.fireDragStart(ps.hitNode, pointerID, wx, wy, ps,
						wx-ps.startX, wy-ps.startY, sx-ps.startSX, sy-ps.startSY, mods)
				}
			}
			if ps.dragging {
				s.fireDrag(ps.hitNode, pointerID, wx, wy, ps,
					wx-ps.lastX, wy-ps.lastY, sx-ps.lastSX, sy-ps.lastSY, mods)
			}
		}
		ps.lastX, ps.lastY = wx, wy
		ps.lastSX, ps.lastSY = sx, sy

	default:
		// Idle hover.
		if wx == ps.lastX && wy == ps.lastY {
			return
		}
		s.firePointerMove(target, pointerID, wx, wy, button, mods)
		ps.lastX, ps.lastY, ps.lastSX, ps.lastSY = wx, wy, sx, sy
	}
}

// --- Pinch detection ---

func (s *Scene) detectPinch() {
	// A pinch needs exactly two touch pointers held down.
	p0, p1, count := 0, 0, 0
	for i := 1; i < maxPointers; i++ {
		if s.pointers[i].down {
			switch count {
			case 0:
				p0 = i
			case 1:
				p1 = i
			}
			count++
		}
	}

	if count != 2 {
		s.pinch.active = false
		return
	}

	ps0 := &s.pointers[p0]
	ps1 := &s.pointers[p1]

	cx := (ps0.lastX + ps1.lastX) / 2
	cy := (ps0.lastY + ps1.lastY) / 2
	dx := ps1.lastX - ps0.lastX
	dy := ps1.lastY - ps0.lastY
	dist := math.Sqrt(dx*dx + dy*dy)
	angle := math.Atan2(dy, dx)

	if !s.pinch.active {
		s.pinch = pinchState{
			active:   true,
			pointer0: p0, pointer1: p1,
			initialDist: dist, initialAngle: angle,
			prevDist: dist, prevAngle: angle,
		}
	} else {
		scale := 1.0
		if s.pinch.initialDist > 0 {
			scale = dist / s.pinch.initialDist
		}
		scaleDelta := 0.0
		if s.pinch.prevDist > 0 {
			scaleDelta = dist/s.pinch.prevDist - 1.0
		}
		s.firePinch(PinchContext{
			CenterX: cx, CenterY: cy,
			Scale: scale, ScaleDelta: scaleDelta,
			Rotation: angle - s.pinch.initialAngle,
			RotDelta: angle - s.pinch.prevAngle,
		})
		s.pinch.prevDist = dist
		s.pinch.prevAngle = angle
	}

	// The two pinch pointers must not double as drags.
	ps0.dragging = false
	ps1.dragging = false
}

// --- Event dispatch ---

// pointerCtxAt fills the shared context fields, resolving node-local
// coordinates and user data when a node is involved.
func pointerCtxAt(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) PointerContext {
	ctx := PointerContext{
		GlobalX: wx, GlobalY: wy,
		Button: button, PointerID: pointerID, Modifiers: mods,
	}
	if node != nil {
		ctx.Node = node
		ctx.UserData = node.UserData
		ctx.LocalX, ctx.LocalY = node.WorldToLocal(wx, wy)
	}
	return ctx
}

func dragCtxAt(node *Node, pointerID int, wx, wy float64, ps *pointerState, dx, dy, sdx, sdy float64, mods KeyModifiers) DragContext {
	ctx := DragContext{
		GlobalX: wx, GlobalY: wy,
		StartX: ps.startX, StartY: ps.startY,
		DeltaX: dx, DeltaY: dy,
		ScreenDeltaX: sdx, ScreenDeltaY: sdy,
		Button: ps.button, PointerID: pointerID, Modifiers: mods,
	}
	if node != nil {
		ctx.Node = node
		ctx.UserData = node.UserData
		ctx.LocalX, ctx.LocalY = node.WorldToLocal(wx, wy)
	}
	return ctx
}

// Scene-level handlers fire before the per-node callback throughout.

func (s *Scene) firePointerDown(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	ctx := pointerCtxAt(node, pointerID, wx, wy, button, mods)
	s.handlers.pointerDown.emit(ctx)
	if node != nil && node.OnPointerDown != nil {
		node.OnPointerDown(ctx)
	}
}

func (s *Scene) firePointerUp(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	ctx := pointerCtxAt(node, pointerID, wx, wy, button, mods)
	s.handlers.pointerUp.emit(ctx)
	if node != nil && node.OnPointerUp != nil {
		node.OnPointerUp(ctx)
	}
}

func (s *Scene) firePointerMove(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	ctx := pointerCtxAt(node, pointerID, wx, wy, button, mods)
	s.handlers.pointerMove.emit(ctx)
	if node != nil && node.OnPointerMove != nil {
		node.OnPointerMove(ctx)
	}
}

func (s *Scene) firePointerEnter(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	ctx := pointerCtxAt(node, pointerID, wx, wy, button, mods)
	s.handlers.pointerEnter.emit(ctx)
	if node != nil && node.OnPointerEnter != nil {
		node.OnPointerEnter(ctx)
	}
}

func (s *Scene) firePointerLeave(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	ctx := pointerCtxAt(node, pointerID, wx, wy, button, mods)
	s.handlers.pointerLeave.emit(ctx)
	if node != nil && node.OnPointerLeave != nil {
		node.OnPointerLeave(ctx)
	}
}

func (s *Scene) fireClick(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	p := pointerCtxAt(node, pointerID, wx, wy, button, mods)
	ctx := ClickContext{
		Node: p.Node, UserData: p.UserData,
		GlobalX: p.GlobalX, GlobalY: p.GlobalY, LocalX: p.LocalX, LocalY: p.LocalY,
		Button: button, PointerID: pointerID, Modifiers: mods,
	}
	s.handlers.click.emit(ctx)
	if node != nil && node.OnClick != nil {
		node.OnClick(ctx)
	}
}

func (s *Scene) fireDragStart(node *Node, pointerID int, wx, wy float64, ps *pointerState, dx, dy, sdx, sdy float64, mods KeyModifiers) {
	ctx := dragCtxAt(node, pointerID, wx, wy, ps, dx, dy, sdx, sdy, mods)
	s.handlers.dragStart.emit(ctx)
	if node != nil && node.OnDragStart != nil {
		node.OnDragStart(ctx)
	}
}

func (s *Scene) fireDrag(node *Node, pointerID int, wx, wy float64, ps *pointerState, dx, dy, sdx, sdy float64, mods KeyModifiers) {
	ctx := dragCtxAt(node, pointerID, wx, wy, ps, dx, dy, sdx, sdy, mods)
	s.handlers.drag.emit(ctx)
	if node != nil && node.OnDrag != nil {
		node.OnDrag(ctx)
	}
}

func (s *Scene) fireDragEnd(node *Node, pointerID int, wx, wy float64, ps *pointerState, dx, dy, sdx, sdy float64, mods KeyModifiers) {
	ctx := dragCtxAt(node, pointerID, wx, wy, ps, dx, dy, sdx, sdy, mods)
	s.handlers.dragEnd.emit(ctx)
	if node != nil && node.OnDragEnd != nil {
		node.OnDragEnd(ctx)
	}
}

func (s *Scene) firePinch(ctx PinchContext) {
	s.handlers.pinch.emit(ctx)

	// The per-node OnPinch goes to whatever the first pinch finger pressed.
	if s.pinch.pointer0 > 0 && s.pinch.pointer0 < maxPointers {
		if n := s.pointers[s.pinch.pointer0].hitNode; n != nil && n.OnPinch != nil {
			n.OnPinch(ctx)
		}
	}
}
