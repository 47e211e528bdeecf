package app

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/arbor"
)

// rectSprite returns a w x h rectangle node tinted with the given color,
// built by scaling the theme's solid texture.
func (a *App) rectSprite(name string, w, h float64, c arbor.Color) *arbor.Node {
	n := arbor.NewSprite(name, arbor.TextureRegion{})
	n.SetCustomImage(a.theme.Solid)
	n.SetScale(w/4, h/4)
	n.Color = c
	return n
}

// label returns a text node in the body font.
func (a *App) label(content string, c arbor.Color) *arbor.Node {
	n := arbor.NewText("label", content, a.theme.Font)
	n.TextBlock.Color = c
	return n
}

// --- button ---

type button struct {
	root  *arbor.Node
	bg    *arbor.Node
	text  *arbor.Node
	base  arbor.Color
	hover arbor.Color
}

// newButton builds a w x h clickable button. onClick runs on release.
func (a *App) newButton(caption string, w, h float64, bg arbor.Color, onClick func()) *button {
	b := &button{base: bg, hover: colorButtonHover}
	if bg == colorDanger {
		b.hover = arbor.Color{R: bg.R * 1.2, G: bg.G * 1.2, B: bg.B * 1.2, A: 1}
	}

	b.root = arbor.NewContainer("button:" + caption)
	b.root.Interactable = true
	b.root.HitShape = arbor.HitRect{Width: w, Height: h}

	b.bg = a.rectSprite("bg", w, h, bg)
	b.root.AddChild(b.bg)

	b.text = arbor.NewText("caption", caption, a.theme.Font)
	b.text.TextBlock.Align = arbor.TextAlignCenter
	b.text.TextBlock.WrapWidth = w
	b.text.TextBlock.Color = colorText
	_, th := b.text.TextBlock.Measure()
	b.text.SetPosition(0, (h-th)/2)
	b.root.AddChild(b.text)

	b.root.OnPointerEnter = func(arbor.PointerContext) { b.bg.Color = b.hover }
	b.root.OnPointerLeave = func(arbor.PointerContext) { b.bg.Color = b.base }
	b.root.OnClick = func(arbor.ClickContext) {
		if onClick != nil {
			onClick()
		}
	}
	return b
}

// setCaption replaces the button text.
func (b *button) setCaption(caption string) {
	b.text.TextBlock.Content = caption
	b.text.TextBlock.Invalidate()
}

// --- checkbox ---

type checkbox struct {
	root  *arbor.Node
	box   *arbor.Node
	mark  *arbor.Node
	value bool
}

// newCheckbox builds a toggle box. onToggle receives the new value.
func (a *App) newCheckbox(size float64, value bool, onToggle func(bool)) *checkbox {
	c := &checkbox{value: value}
	c.root = arbor.NewContainer("checkbox")
	c.root.Interactable = true
	c.root.HitShape = arbor.HitRect{X: -4, Y: -4, Width: size + 8, Height: size + 8}

	c.box = a.rectSprite("box", size, size, colorFieldFill)
	c.root.AddChild(c.box)

	inset := size * 0.25
	c.mark = a.rectSprite("mark", size-inset*2, size-inset*2, colorCheckDone)
	c.mark.SetPosition(inset, inset)
	c.mark.Visible = value
	c.root.AddChild(c.mark)

	c.root.OnClick = func(arbor.ClickContext) {
		c.set(!c.value)
		if onToggle != nil {
			onToggle(c.value)
		}
	}
	return c
}

func (c *checkbox) set(v bool) {
	c.value = v
	c.mark.Visible = v
}

// --- text field ---

// textField is a single-line editable field. The app routes typed runes
// and backspace to whichever field holds focus.
type textField struct {
	app      *App
	root     *arbor.Node
	bg       *arbor.Node
	text     *arbor.Node
	caret    *arbor.Node
	value    []rune
	width    float64
	focused  bool
	blink    float64
	onCommit func(string) // Enter or focus loss
}

func (a *App) newTextField(w, h float64, value string, onCommit func(string)) *textField {
	f := &textField{app: a, value: []rune(value), width: w, onCommit: onCommit}

	f.root = arbor.NewContainer("field")
	f.root.Interactable = true
	f.root.HitShape = arbor.HitRect{Width: w, Height: h}

	f.bg = a.rectSprite("bg", w, h, colorFieldFill)
	f.root.AddChild(f.bg)

	f.text = arbor.NewText("value", value, a.theme.Font)
	f.text.TextBlock.Color = colorText
	_, th := f.text.TextBlock.Measure()
	f.text.SetPosition(6, (h-th)/2)
	f.root.AddChild(f.text)

	f.caret = a.rectSprite("caret", 2, h-8, colorFieldFocus)
	f.caret.SetPosition(6, 4)
	f.caret.Visible = false
	f.root.AddChild(f.caret)

	f.root.OnClick = func(arbor.ClickContext) { a.focusField(f) }
	return f
}

func (f *textField) String() string {
	return string(f.value)
}

func (f *textField) setValue(s string) {
	f.value = []rune(s)
	f.refresh()
}

func (f *textField) setFocus(focused bool) {
	if f.focused && !focused {
		f.commit()
	}
	f.focused = focused
	f.caret.Visible = focused
	f.blink = 0
	if focused {
		f.bg.Color = arbor.Color{R: 0.12, G: 0.14, B: 0.20, A: 1}
	} else {
		f.bg.Color = colorFieldFill
	}
}

func (f *textField) commit() {
	if f.onCommit != nil {
		f.onCommit(string(f.value))
	}
}

// handleInput consumes this frame's typed characters. Returns true when
// Enter committed the field.
func (f *textField) handleInput(s *arbor.Scene, dt float64) bool {
	for _, r := range s.InputChars() {
		if r >= ' ' {
			f.value = append(f.value, r)
		}
	}
	if s.KeyJustPressed(ebiten.KeyBackspace) && len(f.value) > 0 {
		f.value = f.value[:len(f.value)-1]
	}
	f.refresh()

	f.blink += dt
	f.caret.Visible = math.Mod(f.blink, 1.0) < 0.6

	if s.KeyJustPressed(ebiten.KeyEnter) {
		f.commit()
		return true
	}
	return false
}

func (f *textField) refresh() {
	f.text.TextBlock.Content = string(f.value)
	f.text.TextBlock.Invalidate()
	tw, _ := f.text.TextBlock.Measure()
	// Keep the caret inside the field when the text overflows.
	cx := 6 + tw
	if cx > f.width-6 {
		cx = f.width - 6
	}
	f.caret.SetPosition(cx, 4)
}
