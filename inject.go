package arbor

// Synthetic input. Scripted tests and the editor's automation mode feed
// pointer events through the same state machine as real mice and touches,
// one event per frame, in screen coordinates.

type syntheticPointerEvent struct {
	screenX, screenY float64
	pressed          bool
	button           MouseButton
	mods             KeyModifiers
	hasMods          bool // use mods instead of live keyboard state
}

func (s *Scene) inject(x, y float64, pressed bool, mods KeyModifiers, hasMods bool) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		pressed: pressed,
		button:  MouseButtonLeft,
		mods:    mods, hasMods: hasMods,
	})
}

// InjectPress queues a left-button press at the given screen coordinates.
// The event is consumed on the next frame's input pass.
func (s *Scene) InjectPress(x, y float64) {
	s.inject(x, y, true, 0, false)
}

// InjectMove queues a move with the button held down. Use between
// InjectPress and InjectRelease to script a drag by hand.
func (s *Scene) InjectMove(x, y float64) {
	s.inject(x, y, true, 0, false)
}

// InjectRelease queues a release at the given screen coordinates.
func (s *Scene) InjectRelease(x, y float64) {
	s.inject(x, y, false, 0, false)
}

// InjectClick queues a press followed by a release at the same position,
// consuming two frames.
func (s *Scene) InjectClick(x, y float64) {
	s.InjectPress(x, y)
	s.InjectRelease(x, y)
}

// InjectClickMod queues a press/release pair that reports the given
// modifiers to handlers regardless of the live keyboard, so scripts can
// exercise modifier-gated interactions (Ctrl-click, Shift-drag) headlessly.
func (s *Scene) InjectClickMod(x, y float64, mods KeyModifiers) {
	s.inject(x, y, true, mods, true)
	s.inject(x, y, false, mods, true)
}

// InjectDrag queues a full drag: press at (fromX, fromY), linearly
// interpolated moves, release at (toX, toY). The sequence consumes exactly
// `frames` frames, clamped to a minimum of 2 (press + release).
func (s *Scene) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	s.InjectDragMod(fromX, fromY, toX, toY, frames, 0, false)
}

// InjectDragMod is InjectDrag with forced modifier state on every event in
// the sequence. Pass useMods=false to fall back to the live keyboard.
func (s *Scene) InjectDragMod(fromX, fromY, toX, toY float64, frames int, mods KeyModifiers, useMods bool) {
	frames = max(frames, 2)
	s.inject(fromX, fromY, true, mods, useMods)

	moves := frames - 2
	for i := 1; i <= moves; i++ {
		t := float64(i) / float64(moves+1)
		s.inject(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t, true, mods, useMods)
	}
	s.inject(toX, toY, false, mods, useMods)
}

// processInjectedInput pops one queued event, converts screen to world via
// the primary camera, and runs it through processPointer. Returns true when
// an event was consumed, in which case real mouse input is skipped this
// frame.
func (s *Scene) processInjectedInput(cam *Camera, mods KeyModifiers) bool {
	if len(s.injectQueue) == 0 {
		return false
	}
	evt := s.injectQueue[0]
	copy(s.injectQueue, s.injectQueue[1:])
	s.injectQueue = s.injectQueue[:len(s.injectQueue)-1]

	if evt.hasMods {
		mods = evt.mods
	}
	wx, wy := screenToWorld(cam, evt.screenX, evt.screenY)
	s.processPointer(0, wx, wy, evt.screenX, evt.screenY, evt.pressed, evt.button, mods)
	return true
}
