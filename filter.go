package arbor

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is a visual effect applied to a node's rendered output. The studio
// uses filters for marker states: desaturation on locked markers, a glow halo
// on the selected one.
type Filter interface {
	// Apply renders src into dst with the filter effect.
	Apply(src, dst *ebiten.Image)
	// Padding returns the extra pixels needed around the source so the effect
	// isn't clipped (blur radius, outline thickness). Zero means no padding.
	Padding() int
}

// Kage shader sources. All use //kage:unit pixels. Ebitengine works in
// premultiplied alpha, so shaders un-premultiply before processing and
// re-premultiply on output.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	px := imageSrc0At(src)
	if px.a > 0 {
		px.rgb /= px.a // back to straight alpha for the matrix
	}
	// 4x5 color matrix, row-major, offsets at elements 4/9/14/19.
	out := vec4(
		Matrix[0]*px.r+Matrix[1]*px.g+Matrix[2]*px.b+Matrix[3]*px.a+Matrix[4],
		Matrix[5]*px.r+Matrix[6]*px.g+Matrix[7]*px.b+Matrix[8]*px.a+Matrix[9],
		Matrix[10]*px.r+Matrix[11]*px.g+Matrix[12]*px.b+Matrix[13]*px.a+Matrix[14],
		Matrix[15]*px.r+Matrix[16]*px.g+Matrix[17]*px.b+Matrix[18]*px.a+Matrix[19])
	out = clamp(out, 0.0, 1.0)
	return vec4(out.rgb*out.a, out.a)
}
`

const glowShaderSrc = `//kage:unit pixels
package main

var GlowColor vec4
var Intensity float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	px := imageSrc0At(src)
	if px.a == 0 {
		return vec4(0)
	}
	// Input is premultiplied; tint and boost, staying premultiplied.
	halo := GlowColor.a
	return vec4(px.rgb*GlowColor.rgb*Intensity*halo, px.a*halo)
}
`

// Shaders compile lazily on first use. No sync.Once; arbor is single-threaded.

var (
	colorMatrixShader *ebiten.Shader
	glowShader        *ebiten.Shader
)

func compileShader(src, name string) *ebiten.Shader {
	sh, err := ebiten.NewShader([]byte(src))
	if err != nil {
		panic("arbor: failed to compile " + name + " shader: " + err.Error())
	}
	return sh
}

func ensureColorMatrixShader() *ebiten.Shader {
	if colorMatrixShader == nil {
		colorMatrixShader = compileShader(colorMatrixShaderSrc, "color matrix")
	}
	return colorMatrixShader
}

func ensureGlowShader() *ebiten.Shader {
	if glowShader == nil {
		glowShader = compileShader(glowShaderSrc, "glow")
	}
	return glowShader
}

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a 4x5 color matrix via a Kage shader. Row-major
// layout: [R_r, R_g, R_b, R_a, R_offset, G_r, ...]. SetSaturation(0) is the
// locked-marker grayscale.
type ColorMatrixFilter struct {
	Matrix   [20]float64
	uniforms map[string]any
	// matrixF32 and matrixSlice persist across frames so the float64 to
	// float32 copy in Apply allocates nothing.
	matrixF32   [20]float32
	matrixSlice []float32
	shaderOp    ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{uniforms: make(map[string]any, 1)}
	f.matrixSlice = f.matrixF32[:]
	f.uniforms["Matrix"] = f.matrixSlice
	for _, diag := range [4]int{0, 6, 12, 18} {
		f.Matrix[diag] = 1
	}
	return f
}

// scaleOffsetMatrix multiplies each color channel by scale and adds offset,
// leaving alpha untouched.
func scaleOffsetMatrix(scale, offset float64) [20]float64 {
	return [20]float64{
		scale, 0, 0, 0, offset,
		0, scale, 0, 0, offset,
		0, 0, scale, 0, offset,
		0, 0, 0, 1, 0,
	}
}

// SetBrightness sets the matrix to adjust brightness by the given offset [-1, 1].
func (f *ColorMatrixFilter) SetBrightness(b float64) {
	f.Matrix = scaleOffsetMatrix(1, b)
}

// SetContrast sets the matrix to adjust contrast. c=1 is normal, 0=gray, >1 is higher.
func (f *ColorMatrixFilter) SetContrast(c float64) {
	f.Matrix = scaleOffsetMatrix(c, (1.0-c)/2.0)
}

// SetSaturation sets the matrix to adjust saturation. s=1 is normal, 0=grayscale.
// Desaturated channels mix toward Rec. 601 luma.
func (f *ColorMatrixFilter) SetSaturation(s float64) {
	luma := [3]float64{0.299, 0.587, 0.114}
	f.Matrix = [20]float64{}
	for row := range 3 {
		for col, l := range luma {
			f.Matrix[row*5+col] = (1 - s) * l
		}
		f.Matrix[row*5+row] += s
	}
	f.Matrix[18] = 1
}

// Apply renders the color matrix transformation from src into dst.
func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	// matrixSlice already points into matrixF32 and sits in the uniforms map.
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	f.shaderOp.Images[0], f.shaderOp.Uniforms = src, f.uniforms
	b := src.Bounds()
	dst.DrawRectShader(b.Dx(), b.Dy(), ensureColorMatrixShader(), &f.shaderOp)
}

// Padding returns 0; color matrix transforms don't expand the image bounds.
func (f *ColorMatrixFilter) Padding() int { return 0 }

// --- BlurFilter ---

// BlurFilter applies a Kawase iterative blur using downscale/upscale passes.
// No Kage shader needed: bilinear filtering during DrawImage does the work.
type BlurFilter struct {
	Radius int

	temps []*ebiten.Image
	imgOp ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur filter with the given radius in pixels.
func NewBlurFilter(radius int) *BlurFilter {
	return &BlurFilter{Radius: max(radius, 0)}
}

// drawFit draws src into dst scaled to dst's full size with linear filtering.
func (f *BlurFilter) drawFit(dst, src *ebiten.Image) {
	op := &f.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	sb, db := src.Bounds(), dst.Bounds()
	op.GeoM.Scale(float64(db.Dx())/float64(sb.Dx()), float64(db.Dy())/float64(sb.Dy()))
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(src, op)
}

// ensureTemp returns a cleared scratch image of exactly w×h at chain slot i.
func (f *BlurFilter) ensureTemp(i, w, h int) *ebiten.Image {
	tmp := f.temps[i]
	if tmp != nil && tmp.Bounds().Dx() == w && tmp.Bounds().Dy() == h {
		tmp.Clear()
		return tmp
	}
	if tmp != nil {
		tmp.Deallocate()
	}
	tmp = ebiten.NewImage(w, h)
	f.temps[i] = tmp
	return tmp
}

// Apply renders a Kawase blur from src into dst.
func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	if f.Radius <= 0 {
		op := &f.imgOp
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Filter = ebiten.FilterNearest
		dst.DrawImage(src, op)
		return
	}

	// log2(radius) half-size passes, minimum one. The same chain serves the
	// way back up.
	passes := int(math.Ceil(math.Log2(float64(f.Radius))))
	if passes < 1 {
		passes = 1
	}

	// Size the temp chain; a shrink from a previously larger radius releases
	// the excess images.
	for len(f.temps) < passes {
		f.temps = append(f.temps, nil)
	}
	for i := passes; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:passes]

	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()

	// Down.
	current := src
	for i := 0; i < passes; i++ {
		w = max(w/2, 1)
		h = max(h/2, 1)
		tmp := f.ensureTemp(i, w, h)
		f.drawFit(tmp, current)
		current = tmp
	}

	// Back up through the chain, then out to dst.
	for i := passes - 2; i >= 0; i-- {
		next := f.temps[i]
		next.Clear()
		f.drawFit(next, current)
		current = next
	}
	f.drawFit(dst, current)
}

// Padding returns the blur radius; the offscreen buffer is expanded to avoid clipping.
func (f *BlurFilter) Padding() int { return f.Radius }

// --- OutlineFilter ---

// OutlineFilter draws the source tinted with the outline color at 8 offsets
// (cardinals and diagonals), then the original on top. Works at any thickness.
type OutlineFilter struct {
	Thickness int
	Color     Color
	imgOp     ebiten.DrawImageOptions
}

// NewOutlineFilter creates an outline filter of the given thickness and color.
func NewOutlineFilter(thickness int, c Color) *OutlineFilter {
	return &OutlineFilter{Thickness: thickness, Color: c}
}

// Apply draws an 8-direction offset outline behind the source image.
func (f *OutlineFilter) Apply(src, dst *ebiten.Image) {
	t := float64(f.Thickness)
	op := &f.imgOp

	// Outline color premultiplied once; every offset pass reuses it.
	a := float32(f.Color.A)
	cr, cg, cb := float32(f.Color.R)*a, float32(f.Color.G)*a, float32(f.Color.B)*a

	for _, off := range strokeOffsets(t) {
		op.ColorScale.Reset()
		op.ColorScale.Scale(cr, cg, cb, a)
		op.GeoM.Reset()
		op.GeoM.Translate(off[0], off[1])
		dst.DrawImage(src, op)
	}

	// The untinted original goes on top of the stroke passes.
	op.GeoM.Reset()
	op.ColorScale.Reset()
	dst.DrawImage(src, op)
}

// Padding returns the outline thickness; the offscreen buffer is expanded by this amount.
func (f *OutlineFilter) Padding() int { return f.Thickness }

// --- GlowFilter ---

// GlowFilter draws a blurred, tinted copy of the source additively beneath the
// original, producing a halo. Intensity scales the halo brightness; the studio
// tweens it for the selected-marker pulse.
type GlowFilter struct {
	Radius    int
	Color     Color
	Intensity float64

	blur       BlurFilter
	halo       *ebiten.Image
	haloW      int
	haloH      int
	uniforms   map[string]any
	colorF32   [4]float32
	colorSlice []float32
	shaderOp   ebiten.DrawRectShaderOptions
	imgOp      ebiten.DrawImageOptions
}

// NewGlowFilter creates a glow filter with the given halo radius and color.
// Intensity starts at 1.
func NewGlowFilter(radius int, c Color) *GlowFilter {
	if radius < 1 {
		radius = 1
	}
	f := &GlowFilter{
		Radius:    radius,
		Color:     c,
		Intensity: 1,
		uniforms:  make(map[string]any, 2),
	}
	f.blur.Radius = radius
	f.colorSlice = f.colorF32[:]
	f.uniforms["GlowColor"] = f.colorSlice
	return f
}

// ensureHalo keeps a scratch image matching the source dimensions.
func (f *GlowFilter) ensureHalo(w, h int) *ebiten.Image {
	if f.halo != nil && f.haloW == w && f.haloH == h {
		f.halo.Clear()
		return f.halo
	}
	if f.halo != nil {
		f.halo.Deallocate()
	}
	f.halo = ebiten.NewImage(w, h)
	f.haloW = w
	f.haloH = h
	return f.halo
}

// Apply blurs the source into a scratch image, then composites the tinted halo
// additively under the original.
func (f *GlowFilter) Apply(src, dst *ebiten.Image) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	f.blur.Radius = f.Radius
	halo := f.ensureHalo(w, h)
	f.blur.Apply(src, halo)

	sh := ensureGlowShader()
	f.colorF32[0] = float32(f.Color.R)
	f.colorF32[1] = float32(f.Color.G)
	f.colorF32[2] = float32(f.Color.B)
	f.colorF32[3] = float32(f.Color.A)
	// Scalar float32 boxing is unavoidable with Ebitengine's uniform API.
	f.uniforms["Intensity"] = float32(f.Intensity)

	f.shaderOp.Images[0] = halo
	f.shaderOp.Uniforms = f.uniforms
	f.shaderOp.Blend = ebiten.BlendLighter
	dst.DrawRectShader(w, h, sh, &f.shaderOp)

	// Original on top.
	f.imgOp.GeoM.Reset()
	f.imgOp.ColorScale.Reset()
	dst.DrawImage(src, &f.imgOp)
}

// Padding returns the halo radius; the offscreen buffer is expanded so the
// glow isn't clipped.
func (f *GlowFilter) Padding() int { return f.Radius }

// --- CustomShaderFilter ---

// CustomShaderFilter wraps a user-provided Kage shader, exposing Ebitengine's
// shader system directly. Images[0] is auto-filled with the source texture;
// the user may set Images[1] and Images[2] for additional textures.
type CustomShaderFilter struct {
	Shader   *ebiten.Shader
	Uniforms map[string]any
	Images   [3]*ebiten.Image
	padding  int
	shaderOp ebiten.DrawRectShaderOptions
}

// NewCustomShaderFilter creates a custom shader filter with the given shader and padding.
func NewCustomShaderFilter(shader *ebiten.Shader, padding int) *CustomShaderFilter {
	return &CustomShaderFilter{
		Shader:   shader,
		Uniforms: make(map[string]any),
		padding:  padding,
	}
}

// Apply runs the user-provided Kage shader with src as Images[0].
func (f *CustomShaderFilter) Apply(src, dst *ebiten.Image) {
	b := src.Bounds()
	f.shaderOp.Images = [4]*ebiten.Image{src, f.Images[1], f.Images[2], nil}
	f.shaderOp.Uniforms = f.Uniforms
	dst.DrawRectShader(b.Dx(), b.Dy(), f.Shader, &f.shaderOp)
}

// Padding returns the padding value set at construction time.
func (f *CustomShaderFilter) Padding() int { return f.padding }

// --- Chain helpers ---

// filterChainPadding sums the padding of every filter in the chain. The
// offscreen buffer gets the sum, not the max, so no single stage clips.
func filterChainPadding(filters []Filter) int {
	total := 0
	for _, f := range filters {
		total += f.Padding()
	}
	return total
}

// applyFilters runs a filter chain on src, ping-ponging between src and one
// scratch image from the pool. Returns the image holding the final result;
// the caller handles releasing the scratch if pooled.
func applyFilters(filters []Filter, src *ebiten.Image, pool *renderTexturePool) *ebiten.Image {
	if len(filters) == 0 {
		return src
	}

	b := src.Bounds()
	current, scratch := src, (*ebiten.Image)(nil)
	for _, f := range filters {
		switch scratch {
		case nil:
			scratch = pool.Acquire(b.Dx(), b.Dy())
		default:
			scratch.Clear()
		}
		f.Apply(current, scratch)
		current, scratch = scratch, current
	}
	return current
}
