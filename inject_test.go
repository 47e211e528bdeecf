package arbor

import "testing"

// markerScene builds a scene with one interactable marker sprite of the
// given size at the origin, transforms refreshed.
func markerScene(size uint16) (*Scene, *Node) {
	s := NewScene()
	marker := NewSprite("marker", TextureRegion{OriginalW: size, OriginalH: size})
	marker.Interactable = true
	s.Root().AddChild(marker)
	updateWorldTransform(s.root, identityTransform, 1.0, false)
	return s, marker
}

func TestInjectClick(t *testing.T) {
	s, marker := markerScene(100)

	var clicked bool
	s.OnClick(func(ctx ClickContext) {
		clicked = true
		if ctx.Node != marker {
			t.Error("click should land on the marker")
		}
	})

	s.InjectClick(50, 50)
	if got := len(s.injectQueue); got != 2 {
		t.Fatalf("queued events = %d, want 2", got)
	}

	// First frame is the press; the click only fires on release.
	s.processInput()
	if clicked {
		t.Error("click fired on press frame")
	}
	if got := len(s.injectQueue); got != 1 {
		t.Fatalf("events left after press frame = %d, want 1", got)
	}

	s.processInput()
	if !clicked {
		t.Error("click did not fire on release frame")
	}
	if got := len(s.injectQueue); got != 0 {
		t.Fatalf("events left after release frame = %d, want 0", got)
	}
}

func TestInjectDrag(t *testing.T) {
	s, _ := markerScene(400)

	var events []string
	s.OnDragStart(func(DragContext) { events = append(events, "dragstart") })
	s.OnDrag(func(DragContext) { events = append(events, "drag") })
	s.OnDragEnd(func(DragContext) { events = append(events, "dragend") })

	// Five frames: press at (10,10), three interpolated moves, release at
	// (200,200).
	s.InjectDrag(10, 10, 200, 200, 5)
	if got := len(s.injectQueue); got != 5 {
		t.Fatalf("queued events = %d, want 5", got)
	}
	for range 5 {
		s.processInput()
	}

	if len(events) < 3 {
		t.Fatalf("expected dragstart, drag(s), dragend; got %v", events)
	}
	if events[0] != "dragstart" {
		t.Errorf("first event = %s, want dragstart", events[0])
	}
	if last := events[len(events)-1]; last != "dragend" {
		t.Errorf("last event = %s, want dragend", last)
	}
}

func TestInjectDragClampsFrameCount(t *testing.T) {
	s := NewScene()
	s.InjectDrag(0, 0, 100, 100, 1) // press and release need a frame each
	if got := len(s.injectQueue); got != 2 {
		t.Fatalf("queued events = %d, want 2 after clamping", got)
	}
}

func TestInjectQueueOrder(t *testing.T) {
	s := NewScene()
	s.InjectPress(10, 20)
	s.InjectMove(30, 40)
	s.InjectRelease(50, 60)

	want := []struct {
		pressed bool
		x       float64
	}{
		{true, 10},
		{true, 30},
		{false, 50},
	}
	if got := len(s.injectQueue); got != len(want) {
		t.Fatalf("queued events = %d, want %d", got, len(want))
	}
	for i, w := range want {
		ev := s.injectQueue[i]
		if ev.pressed != w.pressed || ev.screenX != w.x {
			t.Errorf("event %d = {pressed:%v x:%v}, want {pressed:%v x:%v}",
				i, ev.pressed, ev.screenX, w.pressed, w.x)
		}
	}
}

func TestInjectClickModForcesModifiers(t *testing.T) {
	s, _ := markerScene(100)

	var gotMods KeyModifiers
	s.OnClick(func(ctx ClickContext) { gotMods = ctx.Modifiers })

	// No keyboard is held in tests; the injected modifier state must win.
	s.InjectClickMod(50, 50, ModCtrl)
	s.processInput()
	s.processInput()

	if gotMods&ModCtrl == 0 {
		t.Errorf("click modifiers = %v, want ModCtrl set", gotMods)
	}
}

func TestProcessInjectedInput(t *testing.T) {
	s, _ := markerScene(100)

	var downFired bool
	s.OnPointerDown(func(ctx PointerContext) {
		downFired = true
		// No camera, so screen coords pass through as world coords.
		if ctx.GlobalX != 50 || ctx.GlobalY != 50 {
			t.Errorf("global = (%v,%v), want (50,50)", ctx.GlobalX, ctx.GlobalY)
		}
	})

	s.InjectPress(50, 50)
	if !s.processInjectedInput(nil, 0) {
		t.Error("processInjectedInput should consume the queued event")
	}
	if !downFired {
		t.Error("pointer down did not fire")
	}
	if got := len(s.injectQueue); got != 0 {
		t.Errorf("queue length = %d, want 0", got)
	}
}

func TestProcessInjectedInputEmptyQueue(t *testing.T) {
	s := NewScene()
	if s.processInjectedInput(nil, 0) {
		t.Error("empty queue should not report a consumed event")
	}
}

func TestInjectWithCamera(t *testing.T) {
	s := NewScene()
	cam := s.NewCamera(Rect{Width: 640, Height: 480})
	cam.X = 320
	cam.Y = 240
	cam.Zoom = 2.0
	cam.computeViewMatrix()

	marker := NewSprite("marker", TextureRegion{OriginalW: 50, OriginalH: 50})
	marker.Interactable = true
	marker.X = 295
	marker.Y = 215
	s.Root().AddChild(marker)
	updateWorldTransform(s.root, identityTransform, 1.0, false)

	var hit *Node
	s.OnPointerDown(func(ctx PointerContext) { hit = ctx.Node })

	// With the camera centered on (320,240), the screen center maps back
	// to that same world point, inside the marker.
	s.InjectPress(320, 240)
	s.processInjectedInput(cam, 0)

	if hit != marker {
		t.Errorf("camera-mapped press hit %v, want the marker", hit)
	}
}
