package app

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/arbor"
)

// dialog is the base of every popup: a nine-slice panel centered on screen,
// living in the UI scene, with an open/close scale-and-alpha tween. At most
// one dialog is open at a time; while one is, canvas interactions behind it
// are suppressed by the App.
type dialog struct {
	app  *App
	root *arbor.Node
	w, h float64

	// fields holds the dialog's text fields in tab order.
	fields []*textField

	// onWheel, when set, receives mouse wheel movement while the dialog is
	// open (used to scroll objective lists).
	onWheel func(dy float64)
}

func (a *App) newDialog(name string, w, h float64) *dialog {
	d := &dialog{app: a, w: w, h: h}
	d.root = arbor.NewContainer("dialog:" + name)
	// Pivot at the panel center so the open/close scale tween zooms about
	// the middle, positioned at the screen center.
	d.root.SetPivot(w/2, h/2)
	d.root.SetPosition(float64(a.cfg.Window.Width)/2, float64(a.cfg.Window.Height)/2)

	panel := a.ninePanel(int(w), int(h))
	d.root.AddChild(panel)

	// A full-panel hit rect so clicks inside the dialog never leak through
	// to widgets beneath it.
	d.root.Interactable = true
	d.root.HitShape = arbor.HitRect{Width: w, Height: h}

	return d
}

// open animates the dialog in and registers it as the modal dialog.
func (d *dialog) open() {
	d.app.ui.Root().AddChild(d.root)
	d.root.Alpha = 0
	d.root.SetScale(0.88, 0.88)
	d.app.animate(arbor.TweenAlpha(d.root, 1, 0.15, ease.OutQuad))
	d.app.animate(arbor.TweenScale(d.root, 1, 1, 0.15, ease.OutBack))
	d.app.setDialog(d)
}

// close animates the dialog out and disposes it.
func (d *dialog) close() {
	if d.app.dialog == d {
		d.app.setDialog(nil)
	}
	root := d.root
	d.app.animate(arbor.TweenAlpha(root, 0, 0.12, ease.InQuad))
	d.app.animate(arbor.TweenScale(root, 0.9, 0.9, 0.12, ease.InQuad))
	d.app.after(0.13, func() { root.Dispose() })
}

// addField registers a text field for focus cycling with Tab.
func (d *dialog) addField(f *textField) {
	d.fields = append(d.fields, f)
}

// focusNext moves focus to the field after the currently focused one.
func (d *dialog) focusNext() {
	if len(d.fields) == 0 {
		return
	}
	for i, f := range d.fields {
		if f.focused {
			d.app.focusField(d.fields[(i+1)%len(d.fields)])
			return
		}
	}
	d.app.focusField(d.fields[0])
}

// ninePanel renders the theme's nine-slice frame at the given size.
func (a *App) ninePanel(w, h int) *arbor.Node {
	rt := arbor.NewRenderTexture(w, h)
	drawNineSlice(rt, a.theme.Panel, a.theme.PanelInset)
	return rt.NewSpriteNode("panel")
}

// drawNineSlice scales the center and edge slices of src into the render
// texture, keeping the corner slices at their source size.
func drawNineSlice(rt *arbor.RenderTexture, src *ebiten.Image, inset int) {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	w, h := rt.Width(), rt.Height()

	srcX := [4]int{0, inset, sw - inset, sw}
	srcY := [4]int{0, inset, sh - inset, sh}
	dstX := [4]int{0, inset, w - inset, w}
	dstY := [4]int{0, inset, h - inset, h}

	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			spw := srcX[col+1] - srcX[col]
			sph := srcY[row+1] - srcY[row]
			dpw := dstX[col+1] - dstX[col]
			dph := dstY[row+1] - dstY[row]
			if spw <= 0 || sph <= 0 || dpw <= 0 || dph <= 0 {
				continue
			}
			part := src.SubImage(image.Rect(
				b.Min.X+srcX[col], b.Min.Y+srcY[row],
				b.Min.X+srcX[col+1], b.Min.Y+srcY[row+1],
			)).(*ebiten.Image)

			var op ebiten.DrawImageOptions
			op.GeoM.Scale(float64(dpw)/float64(spw), float64(dph)/float64(sph))
			op.GeoM.Translate(float64(dstX[col]), float64(dstY[row]))
			rt.DrawImage(part, &op)
		}
	}
}
