package arbor

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// keyboardState tracks per-frame key transitions and buffered text input.
// Updated once per Scene.Update before application callbacks run, so
// KeyJustPressed is stable for the whole frame regardless of call order.
type keyboardState struct {
	prev  [ebiten.KeyMax + 1]bool
	curr  [ebiten.KeyMax + 1]bool
	chars []rune
}

func (k *keyboardState) update() {
	k.prev = k.curr
	for key := ebiten.Key(0); key <= ebiten.KeyMax; key++ {
		k.curr[key] = ebiten.IsKeyPressed(key)
	}
	k.chars = ebiten.AppendInputChars(k.chars[:0])
}

// KeyPressed reports whether the key is currently held down.
func (s *Scene) KeyPressed(key ebiten.Key) bool {
	return s.keys.curr[key]
}

// KeyJustPressed reports whether the key went down this frame.
func (s *Scene) KeyJustPressed(key ebiten.Key) bool {
	return s.keys.curr[key] && !s.keys.prev[key]
}

// KeyJustReleased reports whether the key went up this frame.
func (s *Scene) KeyJustReleased(key ebiten.Key) bool {
	return !s.keys.curr[key] && s.keys.prev[key]
}

// InputChars returns the printable characters typed this frame.
// The returned slice is reused next frame; copy it if you keep it.
func (s *Scene) InputChars() []rune {
	return s.keys.chars
}

// Modifiers returns the current keyboard modifier state.
func (s *Scene) Modifiers() KeyModifiers {
	return readModifiers()
}
