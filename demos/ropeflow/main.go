// Rope Flow — draggable energy links.
//
// Six glowing nodes sit on a ring around a hub. Each is connected to the hub
// by a textured rope whose dash pattern flows along it, the same treatment
// the editor uses for skill links. Drag any node and its rope follows; the
// mouse wheel zooms the camera around the cursor.
//
// Demonstrates: NewRope with pointer-bound endpoints, quadratic Bezier
// curves, UV scrolling, GlowFilter, camera zoom, and drag input.
package main

import (
	"image"
	"log"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/arbor"
)

const (
	screenW = 1280
	screenH = 720

	numSpokes  = 6
	ringRadius = 250.0
	discRadius = 22.0
	ropeWidth  = 6.0
	flowSpeed  = 60.0 // dash texture scroll, pixels per second
	curveBow   = 0.22 // control point displacement as a fraction of the span
)

var spokeColors = [numSpokes]arbor.Color{
	{R: 0.95, G: 0.30, B: 0.25, A: 1}, // red
	{R: 0.25, G: 0.65, B: 0.95, A: 1}, // blue
	{R: 0.35, G: 0.88, B: 0.40, A: 1}, // green
	{R: 0.95, G: 0.75, B: 0.15, A: 1}, // gold
	{R: 0.75, G: 0.35, B: 0.90, A: 1}, // purple
	{R: 0.20, G: 0.85, B: 0.80, A: 1}, // teal
}

// spoke is one draggable node plus its rope back to the hub.
type spoke struct {
	disc    *arbor.Node
	rope    *arbor.Rope
	start   arbor.Vec2 // rope reads &start — must be a stable pointer
	end     arbor.Vec2
	control arbor.Vec2
}

type garden struct {
	scene  *arbor.Scene
	cam    *arbor.Camera
	hub    arbor.Vec2
	spokes [numSpokes]*spoke
	time   float64
	glow   *arbor.GlowFilter
}

func main() {
	scene := arbor.NewScene()
	scene.ClearColor = arbor.Color{R: 0.06, G: 0.05, B: 0.10, A: 1}

	cam := scene.NewCamera(arbor.Rect{Width: screenW, Height: screenH})
	cam.MinZoom = 0.4
	cam.MaxZoom = 3

	g := &garden{scene: scene, cam: cam, glow: arbor.NewGlowFilter(6, arbor.ColorWhite)}
	g.build()

	scene.SetUpdateFunc(g.update)
	g.wireInput()

	fps := arbor.NewFPSWidget()
	fps.SetPosition(8, 8)
	scene.Root().AddChild(fps)

	if err := arbor.Run(scene, arbor.RunConfig{
		Title:  "Arbor — Rope Flow",
		Width:  screenW,
		Height: screenH,
	}); err != nil {
		log.Fatal(err)
	}
}

func (g *garden) build() {
	dash := makeDashImage()
	root := g.scene.Root()

	ropeLayer := arbor.NewContainer("ropes")
	ropeLayer.ZIndex = -1
	ropeLayer.Filters = []arbor.Filter{g.glow}
	root.AddChild(ropeLayer)

	hub := discSprite("hub", arbor.Color{R: 0.9, G: 0.92, B: 0.95, A: 1})
	hub.SetScale(1.3, 1.3)
	root.AddChild(hub)

	for i := range g.spokes {
		angle := float64(i) / numSpokes * 2 * math.Pi
		s := &spoke{
			start: arbor.Vec2{},
			end: arbor.Vec2{
				X: math.Cos(angle) * ringRadius,
				Y: math.Sin(angle) * ringRadius,
			},
		}

		s.disc = discSprite("spoke", spokeColors[i])
		s.disc.SetPosition(s.end.X, s.end.Y)
		s.disc.Interactable = true
		s.disc.HitShape = arbor.HitCircle{Radius: discRadius + 8}
		s.disc.UserData = i
		root.AddChild(s.disc)

		rope, node := arbor.NewRope("flow", dash, []arbor.Vec2{s.start, s.end}, arbor.RopeConfig{
			Width:     ropeWidth,
			Segments:  24,
			JoinMode:  arbor.RopeJoinBevel,
			CurveMode: arbor.RopeCurveQuadBezier,
			Start:     &s.start,
			End:       &s.end,
			Control:   &s.control,
		})
		node.Color = spokeColors[i]
		node.BlendMode = arbor.BlendAdd
		s.rope = rope
		ropeLayer.AddChild(node)

		g.spokes[i] = s
	}
}

func (g *garden) wireInput() {
	s := g.scene
	var dragging = -1

	s.OnDragStart(func(ctx arbor.DragContext) {
		if ctx.Node == nil {
			return
		}
		if i, ok := ctx.Node.UserData.(int); ok {
			dragging = i
			s.CapturePointer(ctx.PointerID, ctx.Node)
		}
	})
	s.OnDrag(func(ctx arbor.DragContext) {
		if dragging >= 0 {
			sp := g.spokes[dragging]
			sp.disc.SetPosition(ctx.GlobalX, ctx.GlobalY)
			return
		}
		g.cam.X -= ctx.ScreenDeltaX / g.cam.Zoom
		g.cam.Y -= ctx.ScreenDeltaY / g.cam.Zoom
		g.cam.MarkDirty()
	})
	s.OnDragEnd(func(arbor.DragContext) { dragging = -1 })
}

func (g *garden) update(dt float64) {
	g.time += dt

	if _, wy := ebiten.Wheel(); wy != 0 {
		cx, cy := ebiten.CursorPosition()
		g.cam.ZoomAt(float64(cx), float64(cy), math.Pow(1.1, wy))
	}

	// Pulse the glow together with the flow.
	g.glow.Intensity = 1.5 + 0.6*math.Sin(g.time*2*math.Pi*0.5)

	for _, sp := range g.spokes {
		sp.end = arbor.Vec2{X: sp.disc.X, Y: sp.disc.Y}

		// Bow the cable perpendicular to its span.
		mx, my := (sp.start.X+sp.end.X)/2, (sp.start.Y+sp.end.Y)/2
		dx, dy := sp.end.X-sp.start.X, sp.end.Y-sp.start.Y
		sp.control = arbor.Vec2{X: mx - dy*curveBow, Y: my + dx*curveBow}

		sp.rope.Config().UVOffset = g.time * flowSpeed
		sp.rope.Update()
	}
}

// discSprite builds a feathered disc node with a centered pivot.
func discSprite(name string, c arbor.Color) *arbor.Node {
	n := arbor.NewSprite(name, arbor.TextureRegion{})
	n.SetCustomImage(makeDiscImage(discRadius))
	size := discRadius*2 + 2
	n.SetPivot(size/2, size/2)
	n.Color = c
	return n
}

func makeDiscImage(radius float64) *ebiten.Image {
	size := int(radius*2) + 2
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			a := clamp01(radius - d + 0.5)
			v := uint8(a * 255)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = v
		}
	}
	return ebiten.NewImageFromImage(img)
}

// makeDashImage builds the tileable rope texture: a periodic bright pulse
// so scrolling the UVs reads as energy flowing along the rope.
func makeDashImage() *ebiten.Image {
	const w, h = 128, 8
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		pulse := 0.25 + 0.75*math.Pow(0.5+0.5*math.Sin(2*math.Pi*float64(x)/w), 3)
		for y := 0; y < h; y++ {
			edge := 1 - math.Abs(float64(y)+0.5-h/2)/(h/2)
			a := clamp01(pulse * math.Sqrt(edge))
			v := uint8(a * 255)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = v
		}
	}
	return ebiten.NewImageFromImage(img)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
