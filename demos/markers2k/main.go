// markers2k scatters 2,000 skill markers over a huge canvas and drifts the
// camera across them. A stress test for the batching pipeline and camera
// culling with the editor's marker look: tinted disc, tier ring, and a
// pulsing halo on the unlocked ones.
package main

import (
	"image"
	"log"
	"math"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/arbor"
)

const (
	screenW = 1280
	screenH = 720

	count       = 2_000
	worldExtent = 8_000.0 // markers span [-extent/2, extent/2] on both axes
	radius      = 22.0
)

var tierColors = [3]arbor.Color{
	{R: 0.80, G: 0.52, B: 0.26, A: 1}, // bronze
	{R: 0.76, G: 0.79, B: 0.86, A: 1}, // silver
	{R: 0.95, G: 0.80, B: 0.25, A: 1}, // gold
}

type marker struct {
	halo  *arbor.Node
	speed float64
	phase float64
}

func main() {
	scene := arbor.NewScene()
	scene.ClearColor = arbor.Color{R: 0.07, G: 0.08, B: 0.12, A: 1}
	scene.SetBatchMode(arbor.BatchModeCoalesced)

	cam := scene.NewCamera(arbor.Rect{Width: screenW, Height: screenH})
	cam.Zoom = 0.8

	disc := makeDiscImage(radius, 0)
	ring := makeDiscImage(radius, radius-4)
	scene.RegisterPage(0, disc)
	scene.RegisterPage(1, ring)
	db := disc.Bounds()
	w, h := uint16(db.Dx()), uint16(db.Dy())
	discRegion := arbor.TextureRegion{Page: 0, Width: w, Height: h, OriginalW: w, OriginalH: h}
	ringRegion := arbor.TextureRegion{Page: 1, Width: w, Height: h, OriginalW: w, OriginalH: h}

	root := scene.Root()
	markers := make([]marker, 0, count/4)

	for i := 0; i < count; i++ {
		unlocked := rand.Float64() < 0.25

		m := arbor.NewContainer("marker")
		m.SetPosition(
			(rand.Float64()-0.5)*worldExtent,
			(rand.Float64()-0.5)*worldExtent,
		)

		body := arbor.NewSprite("disc", discRegion)
		body.SetPivot(float64(db.Dx())/2, float64(db.Dy())/2)
		if unlocked {
			body.Color = arbor.Color{R: 1.00, G: 0.96, B: 0.84, A: 1}
		} else {
			body.Color = arbor.Color{R: 0.42, G: 0.44, B: 0.50, A: 1}
		}
		m.AddChild(body)

		tier := arbor.NewSprite("ring", ringRegion)
		tier.SetPivot(float64(db.Dx())/2, float64(db.Dy())/2)
		tier.Color = tierColors[rand.IntN(3)]
		m.AddChild(tier)

		if unlocked {
			halo := arbor.NewSprite("halo", discRegion)
			halo.SetPivot(float64(db.Dx())/2, float64(db.Dy())/2)
			halo.SetScale(1.8, 1.8)
			halo.BlendMode = arbor.BlendAdd
			halo.Alpha = 0.3
			halo.ZIndex = -1
			m.AddChild(halo)
			markers = append(markers, marker{
				halo:  halo,
				speed: 0.5 + rand.Float64()*1.5,
				phase: rand.Float64() * math.Pi * 2,
			})
		}

		root.AddChild(m)
	}

	fps := arbor.NewFPSWidget()
	fps.SetPosition(8, 8)
	root.AddChild(fps)

	var t float64
	scene.SetUpdateFunc(func(dt float64) {
		t += dt

		// Lissajous drift through the field.
		cam.X = math.Sin(t*0.11) * worldExtent * 0.35
		cam.Y = math.Cos(t*0.07) * worldExtent * 0.35
		cam.Zoom = 0.6 + 0.3*math.Sin(t*0.2)
		cam.MarkDirty()

		for i := range markers {
			m := &markers[i]
			m.halo.Alpha = 0.2 + 0.15*math.Sin(t*m.speed+m.phase)
			m.halo.MarkDirty()
		}
	})

	if err := arbor.Run(scene, arbor.RunConfig{
		Title:  "Arbor — 2k Markers",
		Width:  screenW,
		Height: screenH,
	}); err != nil {
		log.Fatal(err)
	}
}

// makeDiscImage draws a feathered disc, hollowed to a ring when inner > 0.
func makeDiscImage(outer, inner float64) *ebiten.Image {
	size := int(outer*2) + 2
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			a := clamp01(outer - d + 0.5)
			if inner > 0 {
				a = math.Min(a, clamp01(d-inner+0.5))
			}
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
