package app

import (
	"math"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/tree"
)

const (
	linkWidth = 5.0
	// curveBow is the fraction of the span by which a curved link's control
	// point is displaced along the perpendicular at the midpoint.
	curveBow = 0.18
	// flowSpeed scrolls the dash texture along the rope, pixels per second.
	flowSpeed = 48.0
	// glowPulseHz is the pulse frequency of the additive link glow.
	glowPulseHz = 0.6
)

// link is one rendered edge: a textured rope bound to the two endpoint
// positions, rebuilt every frame so marker drags track instantly.
type link struct {
	edge       tree.Edge
	rope       *arbor.Rope
	start, end arbor.Vec2
	control    arbor.Vec2
}

// linkLayer renders all resolved edges plus the edge-mode preview rope. The
// whole layer carries a pulsing additive glow filter.
type linkLayer struct {
	app       *App
	container *arbor.Node
	links     []*link
	glow      *arbor.GlowFilter
	elapsed   float64

	preview      *link
	previewLayer *arbor.Node // separate node so the preview skips the glow
}

func newLinkLayer(a *App) *linkLayer {
	l := &linkLayer{
		app:       a,
		container: arbor.NewContainer("links"),
		glow:      arbor.NewGlowFilter(6, colorLink),
	}
	l.container.Filters = []arbor.Filter{l.glow}
	l.previewLayer = arbor.NewContainer("link_preview")
	return l
}

// sync rebuilds the rope set from the tree's resolved edges. Stale edges
// never reach here; ResolvedEdges already skipped them.
func (l *linkLayer) sync() {
	for _, lk := range l.links {
		lk.rope.Node().Dispose()
	}
	l.links = l.links[:0]

	for _, re := range l.app.tree.ResolvedEdges() {
		lk := &link{edge: re.Edge}
		lk.rope = l.newRope(re.Edge.Kind, &lk.start, &lk.end, &lk.control, colorLink)
		l.container.AddChild(lk.rope.Node())
		l.links = append(l.links, lk)
	}
}

func (l *linkLayer) newRope(kind tree.EdgeKind, start, end, control *arbor.Vec2, tint arbor.Color) *arbor.Rope {
	cfg := arbor.RopeConfig{
		Width:    linkWidth,
		JoinMode: arbor.RopeJoinBevel,
		Segments: 24,
		Start:    start,
		End:      end,
	}
	if kind == tree.EdgeCurved {
		cfg.CurveMode = arbor.RopeCurveQuadBezier
		cfg.Control = control
	}
	rope, node := arbor.NewRope("link", l.app.theme.Dash, []arbor.Vec2{*start, *end}, cfg)
	node.Color = tint
	node.BlendMode = arbor.BlendAdd
	return rope
}

// update refreshes endpoint bindings from the tree, advances the dash flow,
// and pulses the glow.
func (l *linkLayer) update(dt float64) {
	l.elapsed += dt
	offset := l.elapsed * flowSpeed
	l.glow.Intensity = 0.65 + 0.35*math.Sin(2*math.Pi*glowPulseHz*l.elapsed)

	for _, lk := range l.links {
		from := l.app.tree.FindNode(lk.edge.From)
		to := l.app.tree.FindNode(lk.edge.To)
		if from == nil || to == nil {
			// The edge went stale since the last sync; hide until resync.
			lk.rope.Node().Visible = false
			continue
		}
		lk.rope.Node().Visible = true
		lk.start = arbor.Vec2{X: from.X, Y: from.Y}
		lk.end = arbor.Vec2{X: to.X, Y: to.Y}
		if lk.edge.Kind == tree.EdgeCurved {
			lk.control = curveControl(lk.start, lk.end)
		}
		lk.rope.Config().UVOffset = offset
		lk.rope.Update()
	}

	if l.preview != nil {
		l.preview.rope.Config().UVOffset = offset * 2
		l.preview.rope.Update()
	}
}

// curveControl places the Bezier control point at the midpoint, displaced
// along the perpendicular by a fixed fraction of the span.
func curveControl(a, b arbor.Vec2) arbor.Vec2 {
	mx, my := (a.X+b.X)/2, (a.Y+b.Y)/2
	dx, dy := b.X-a.X, b.Y-a.Y
	return arbor.Vec2{X: mx - dy*curveBow, Y: my + dx*curveBow}
}

// showPreview starts the edge-mode preview rope from a source node.
func (l *linkLayer) showPreview(from *tree.Node) {
	l.hidePreview()
	lk := &link{
		start: arbor.Vec2{X: from.X, Y: from.Y},
		end:   arbor.Vec2{X: from.X, Y: from.Y},
	}
	lk.rope = l.newRope(tree.EdgeStraight, &lk.start, &lk.end, nil, colorLinkPreview)
	lk.rope.Node().Alpha = 0.8
	l.previewLayer.AddChild(lk.rope.Node())
	l.preview = lk
}

// movePreview tracks the cursor with the preview's free end.
func (l *linkLayer) movePreview(wx, wy float64) {
	if l.preview == nil {
		return
	}
	l.preview.end = arbor.Vec2{X: wx, Y: wy}
}

func (l *linkLayer) hidePreview() {
	if l.preview == nil {
		return
	}
	l.preview.rope.Node().Dispose()
	l.preview = nil
}
