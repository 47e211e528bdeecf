package app

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/tree"
)

// marker is the on-canvas widget for one tree node: a tinted disc with a
// tier ring, title text underneath, an additive halo while unlocked, and a
// selection ring while armed as an edge source.
type marker struct {
	app  *App
	data *tree.Node

	root  *arbor.Node // positioned at the tree node's world coordinates
	disc  *arbor.Node
	ring  *arbor.Node
	icon  *arbor.Node // atlas level icon; nil without an icon pack
	halo  *arbor.Node
	armed *arbor.Node
	title *arbor.Node

	hover      bool
	outline    *arbor.OutlineFilter
	desaturate *arbor.ColorMatrixFilter
}

func newMarker(a *App, data *tree.Node) *marker {
	m := &marker{app: a, data: data}
	th := a.theme

	m.root = arbor.NewContainer("marker:" + data.ID)
	m.root.Interactable = true
	m.root.HitShape = arbor.HitCircle{Radius: markerRadius + 6}
	m.root.UserData = data.ID

	m.halo = spriteFromImage("halo", th.Halo)
	m.halo.BlendMode = arbor.BlendAdd
	m.halo.Alpha = 0.35
	m.halo.ZIndex = -1
	m.root.AddChild(m.halo)

	m.disc = spriteFromImage("disc", th.Disc)
	m.root.AddChild(m.disc)

	m.ring = spriteFromImage("ring", th.Ring)
	m.root.AddChild(m.ring)

	if th.HasIcons() && a.icons != nil {
		m.icon = arbor.NewSprite("icon", a.icons.Region(th.IconName(data.Difficulty)))
		centerSprite(m.icon)
		m.icon.SetScale(0.6, 0.6)
		m.root.AddChild(m.icon)
	}

	m.armed = spriteFromImage("armed", th.Ring)
	m.armed.Color = colorArmed
	m.armed.SetScale(1.25, 1.25)
	m.armed.Visible = false
	m.root.AddChild(m.armed)

	m.title = arbor.NewText("title", data.Title, th.Font)
	m.title.TextBlock.Align = arbor.TextAlignCenter
	m.title.TextBlock.WrapWidth = 140
	m.title.TextBlock.Color = colorText
	m.title.SetPosition(-70, markerRadius+8)
	m.root.AddChild(m.title)

	m.outline = arbor.NewOutlineFilter(2, colorHover)
	m.desaturate = arbor.NewColorMatrixFilter()
	m.desaturate.SetSaturation(0.25)

	m.root.OnPointerEnter = func(arbor.PointerContext) { m.setHover(true) }
	m.root.OnPointerLeave = func(arbor.PointerContext) { m.setHover(false) }

	m.root.SetPosition(data.X, data.Y)
	m.restyle()
	return m
}

// restyle applies unlock state, tier color, and title from the tree node.
func (m *marker) restyle() {
	m.disc.Color = nodeTint(m.data)
	m.ring.Color = m.app.theme.TierColor(m.data.Difficulty)
	m.halo.Visible = m.data.Unlocked
	if m.icon != nil {
		m.icon.SetTextureRegion(m.app.icons.Region(m.app.theme.IconName(m.data.Difficulty)))
	}
	if m.title.TextBlock.Content != m.data.Title {
		m.title.TextBlock.Content = m.data.Title
		m.title.TextBlock.Invalidate()
	}
	m.applyFilters()
	m.root.MarkDirty()
}

// applyFilters composes the hover outline and the locked desaturation.
// Locked markers are drawn desaturated; hover adds an outline either way.
func (m *marker) applyFilters() {
	filters := m.root.Filters[:0]
	if !m.data.Unlocked {
		filters = append(filters, m.desaturate)
	}
	if m.hover {
		filters = append(filters, m.outline)
	}
	m.root.Filters = filters
}

func (m *marker) setHover(h bool) {
	if m.hover == h {
		return
	}
	m.hover = h
	m.applyFilters()
	scale := 1.0
	if h {
		scale = 1.08
	}
	m.app.animate(arbor.TweenScale(m.root, scale, scale, 0.12, ease.OutQuad))
}

// setArmed shows the edge-mode source ring.
func (m *marker) setArmed(armed bool) {
	m.armed.Visible = armed
}

// syncPosition moves the widget to the tree node's coordinates.
func (m *marker) syncPosition() {
	m.root.SetPosition(m.data.X, m.data.Y)
}

func (m *marker) dispose() {
	m.root.Dispose()
}

// spriteFromImage makes a centered sprite node from a whole image.
func spriteFromImage(name string, img *ebiten.Image) *arbor.Node {
	n := arbor.NewSprite(name, arbor.TextureRegion{})
	n.SetCustomImage(img)
	centerSprite(n)
	return n
}

// centerSprite sets the pivot to the sprite's center.
func centerSprite(n *arbor.Node) {
	w, h := spriteSize(n)
	n.SetPivot(w/2, h/2)
}

func spriteSize(n *arbor.Node) (float64, float64) {
	if img := n.CustomImage(); img != nil {
		b := img.Bounds()
		return float64(b.Dx()), float64(b.Dy())
	}
	return float64(n.TextureRegion.OriginalW), float64(n.TextureRegion.OriginalH)
}
