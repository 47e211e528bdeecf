package arbor

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
)

// Font measures text for layout. Both bitmap and TTF fonts satisfy it.
type Font interface {
	MeasureString(text string) (width, height float64)
	LineHeight() float64
}

// Outline is a text stroke drawn behind the fill, used on marker titles
// so they stay readable over any canvas background.
type Outline struct {
	Color     Color
	Thickness float64
}

// TextBlock holds a text node's content and formatting plus its cached
// layout. Mutate the exported fields, then call Invalidate.
type TextBlock struct {
	Content   string
	Font      Font
	Align     TextAlign
	WrapWidth float64
	Color     Color
	Outline   *Outline

	// LineHeight overrides the font's own line height when nonzero.
	LineHeight float64

	layoutDirty          bool
	measuredW, measuredH float64
	lines       []glyphLine
	wordBuf     []placedGlyph // scratch for word wrapping, reused across layouts

	// TTF text renders to a cached image rather than per-glyph sprites.
	ttfImage *ebiten.Image
	ttfPage  int // page slot of ttfImage, -1 until assigned
	ttfDirty bool
}

// Invalidate schedules a layout recompute before the next draw. Call it
// after changing Content, Font, Align, WrapWidth, Color, or Outline.
func (tb *TextBlock) Invalidate() {
	tb.layoutDirty = true
	tb.ttfDirty = true
}

// Measure returns the laid-out text dimensions, computing layout if stale.
func (tb *TextBlock) Measure() (width, height float64) {
	tb.layout()
	return tb.measuredW, tb.measuredH
}

// glyphLine is one laid-out line.
type glyphLine struct {
	glyphs []placedGlyph
	width  float64
}

// placedGlyph is a glyph pinned to its line-local position.
type placedGlyph struct {
	x, y   float64
	region TextureRegion
}

func (tb *TextBlock) lineHeight() float64 {
	switch {
	case tb.LineHeight > 0:
		return tb.LineHeight
	case tb.Font != nil:
		return tb.Font.LineHeight()
	}
	return 0
}

// layout recomputes glyph positions when dirty and returns the cached lines.
func (tb *TextBlock) layout() []glyphLine {
	if !tb.layoutDirty {
		return tb.lines
	}
	tb.layoutDirty = false
	tb.lines = tb.lines[:0]
	tb.measuredW, tb.measuredH = 0, 0

	if tb.Font == nil {
		return tb.lines
	}
	tb.ttfDirty = true

	switch f := tb.Font.(type) {
	case *BitmapFont:
		tb.layoutBitmap(f)
	case *TTFFont:
		// TTF only measures here; rendering goes through the cached image.
		tb.measuredW, tb.measuredH = f.MeasureString(tb.Content)
	}
	return tb.lines
}

// layoutBitmap places glyphs line by line. Glyphs of the word in progress
// accumulate in wordBuf; when the word crosses WrapWidth the open line is
// closed and the whole word re-lays onto a fresh one.
func (tb *TextBlock) layoutBitmap(f *BitmapFont) {
	lh := tb.lineHeight()
	content := tb.Content
	tb.wordBuf = tb.wordBuf[:0]

	var (
		widest   float64
		line     glyphLine
		wordMark int     // byte index where the pending word began
		pendingW float64 // advance width of the pending word
		penX     float64
		last     rune
		haveLast bool
	)

	commitWord := func() {
		line.glyphs = append(line.glyphs, tb.wordBuf...)
		line.width += pendingW
		tb.wordBuf = tb.wordBuf[:0]
		pendingW = 0
	}
	closeLine := func() {
		widest = max(widest, line.width)
		tb.lines = append(tb.lines, line)
		line = glyphLine{}
		penX = 0
		haveLast = false
	}

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		i += size

		if r == '\n' {
			commitWord()
			wordMark, last = i, 0
			closeLine()
			continue
		}

		g := f.glyph(r)
		if g == nil {
			haveLast = false
			continue
		}

		var kern int16
		if haveLast {
			kern = f.kern(last, r)
		}
		advance := float64(g.xAdvance) + float64(kern)
		pg := placedGlyph{
			x:      penX + float64(kern) + float64(g.xOffset),
			y:      float64(g.yOffset),
			region: f.glyphRegion(g),
		}

		if r == ' ' {
			// A space commits the pending word to the line.
			commitWord()
			wordMark = i
			line.glyphs = append(line.glyphs, pg)
			line.width = penX + advance
			penX += advance
		} else {
			tb.wordBuf = append(tb.wordBuf, pg)
			pendingW += advance

			if tb.WrapWidth > 0 && penX+advance > tb.WrapWidth && len(line.glyphs) > 0 {
				// Too wide: close the line and re-lay the word from scratch.
				closeLine()
				tb.wordBuf = tb.wordBuf[:0]
				pendingW = 0
				i = wordMark
				continue
			}
			penX += advance
		}

		last = r
		haveLast = true
	}

	line.glyphs = append(line.glyphs, tb.wordBuf...)
	line.width = penX
	if len(line.glyphs) > 0 || len(tb.lines) == 0 {
		widest = max(widest, line.width)
		tb.lines = append(tb.lines, line)
	}

	tb.alignLines(widest)
	tb.measuredW = widest
	tb.measuredH = float64(len(tb.lines)) * lh
}

// alignLines shifts glyphs for center and right alignment. Alignment works
// within WrapWidth when set, else within the widest line.
func (tb *TextBlock) alignLines(widest float64) {
	if tb.Align == TextAlignLeft {
		return
	}
	span := widest
	if tb.WrapWidth > 0 {
		span = tb.WrapWidth
	}
	for li := range tb.lines {
		line := &tb.lines[li]
		shift := span - line.width
		if tb.Align == TextAlignCenter {
			shift /= 2
		}
		if shift == 0 {
			continue
		}
		for gi := range line.glyphs {
			line.glyphs[gi].x += shift
		}
	}
}

// --- BitmapFont ---

type glyph struct {
	id               rune
	x, y             uint16
	width, height    uint16
	xOffset, yOffset int16
	xAdvance         int16
}

const asciiGlyphCount = 128

// BitmapFont renders pre-rasterized glyphs from a BMFont atlas. ASCII
// glyphs sit in a fixed array so the hot lookup path never allocates.
type BitmapFont struct {
	lineHeight float64
	base       float64
	page       uint16 // scene atlas page holding the glyph image

	asciiGlyphs [asciiGlyphCount]glyph
	asciiSet    [asciiGlyphCount]bool
	extGlyphs   map[rune]*glyph // non-ASCII spillover

	kernings map[[2]rune]int16
}

// MeasureString returns the advance width and line count height of s.
func (f *BitmapFont) MeasureString(s string) (width, height float64) {
	var widest, penX float64
	var last rune
	var haveLast bool
	lineCount := 1

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		switch {
		case r == '\n':
			widest = max(widest, penX)
			penX = 0
			lineCount++
			haveLast = false
		default:
			g := f.glyph(r)
			if g == nil {
				haveLast = false
				continue
			}
			if haveLast {
				penX += float64(f.kern(last, r))
			}
			penX += float64(g.xAdvance)
			last = r
			haveLast = true
		}
	}

	return max(widest, penX), float64(lineCount) * f.lineHeight
}

// LineHeight returns the baseline-to-baseline distance.
func (f *BitmapFont) LineHeight() float64 {
	return f.lineHeight
}

func (f *BitmapFont) glyph(r rune) *glyph {
	if r >= 0 && r < asciiGlyphCount {
		if !f.asciiSet[r] {
			return nil
		}
		return &f.asciiGlyphs[r]
	}
	return f.extGlyphs[r]
}

func (f *BitmapFont) kern(first, second rune) int16 {
	// A nil map lookup already yields zero, but skip building the key.
	if f.kernings == nil {
		return 0
	}
	return f.kernings[[2]rune{first, second}]
}

// glyphRegion views a glyph's packed rect as a TextureRegion on the font's page.
func (f *BitmapFont) glyphRegion(g *glyph) TextureRegion {
	return TextureRegion{
		Page:      f.page,
		X:         g.x,
		Y:         g.y,
		Width:     g.width,
		Height:    g.height,
		OriginalW: g.width,
		OriginalH: g.height,
	}
}

// LoadBitmapFont parses text-format BMFont .fnt data. The glyph atlas
// image itself must be registered on the scene as page 0 via
// Scene.RegisterPage.
func LoadBitmapFont(fntData []byte) (*BitmapFont, error) {
	f := &BitmapFont{}
	charCount := 0

	scanner := bufio.NewScanner(bytes.NewReader(fntData))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tag, rest := splitTag(line)
		fields := parseFields(rest)

		switch tag {
		case "common":
			f.lineHeight = fieldFloat(fields, "lineHeight")
			f.base = fieldFloat(fields, "base")
		case "char":
			charCount++
			f.addGlyph(parseGlyph(fields))
		case "kerning":
			if f.kernings == nil {
				f.kernings = make(map[[2]rune]int16)
			}
			pair := [2]rune{rune(fieldInt(fields, "first")), rune(fieldInt(fields, "second"))}
			f.kernings[pair] = int16(fieldInt(fields, "amount"))
		}
	}

	switch {
	case scanner.Err() != nil:
		return nil, fmt.Errorf("arbor: error reading .fnt data: %w", scanner.Err())
	case f.lineHeight == 0:
		return nil, fmt.Errorf("arbor: .fnt data missing common lineHeight")
	case charCount == 0:
		return nil, fmt.Errorf("arbor: .fnt data has no char definitions")
	}
	return f, nil
}

func parseGlyph(fields map[string]string) glyph {
	return glyph{
		id:       rune(fieldInt(fields, "id")),
		x:        uint16(fieldInt(fields, "x")),
		y:        uint16(fieldInt(fields, "y")),
		width:    uint16(fieldInt(fields, "width")),
		height:   uint16(fieldInt(fields, "height")),
		xOffset:  int16(fieldInt(fields, "xoffset")),
		yOffset:  int16(fieldInt(fields, "yoffset")),
		xAdvance: int16(fieldInt(fields, "xadvance")),
	}
}

func (f *BitmapFont) addGlyph(g glyph) {
	if g.id >= 0 && g.id < asciiGlyphCount {
		f.asciiGlyphs[g.id] = g
		f.asciiSet[g.id] = true
		return
	}
	if f.extGlyphs == nil {
		f.extGlyphs = make(map[rune]*glyph)
	}
	spilled := g
	f.extGlyphs[g.id] = &spilled
}

// splitTag separates a BMFont line into its leading tag and the rest.
func splitTag(line string) (string, string) {
	tag, rest, _ := strings.Cut(line, " ")
	return tag, rest
}

// parseFields turns `key=value key="quoted value"` pairs into a map.
func parseFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Fields(s) {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		val = strings.TrimSuffix(strings.TrimPrefix(val, `"`), `"`)
		fields[key] = val
	}
	return fields
}

func fieldInt(fields map[string]string, key string) int {
	v, _ := strconv.Atoi(fields[key])
	return v
}

func fieldFloat(fields map[string]string, key string) float64 {
	v, _ := strconv.ParseFloat(fields[key], 64)
	return v
}

// --- TTFFont ---

// TTFFont wraps Ebitengine's text/v2 face for TrueType rendering.
type TTFFont struct {
	face   *text.GoTextFace
	source *text.GoTextFaceSource
	size   float64
	lh     float64
}

// LoadTTFFont parses raw TTF/OTF data into a face at the given size.
func LoadTTFFont(ttfData []byte, size float64) (*TTFFont, error) {
	source, err := text.NewGoTextFaceSource(bytes.NewReader(ttfData))
	if err != nil {
		return nil, fmt.Errorf("arbor: failed to parse TTF data: %w", err)
	}

	face := &text.GoTextFace{Source: source, Size: size}
	m := face.Metrics()

	return &TTFFont{
		face:   face,
		source: source,
		size:   size,
		lh:     m.HAscent + m.HDescent + m.HLineGap,
	}, nil
}

// Size returns the point size the face was created with.
func (f *TTFFont) Size() float64 {
	return f.size
}

// MeasureString returns the rendered dimensions of s.
func (f *TTFFont) MeasureString(s string) (width, height float64) {
	return text.Measure(s, f.face, f.lh)
}

// LineHeight returns the baseline-to-baseline distance.
func (f *TTFFont) LineHeight() float64 {
	return f.lh
}

// Face exposes the underlying GoTextFace for direct text/v2 calls.
func (f *TTFFont) Face() *text.GoTextFace {
	return f.face
}

// --- Render emission (called from render.go) ---

// modulate folds a text color through the node tint and world alpha.
func modulate(base Color, n *Node, alpha float64) color32 {
	return color32{
		R: float32(base.R * n.Color.R),
		G: float32(base.G * n.Color.G),
		B: float32(base.B * n.Color.B),
		A: float32(base.A * n.Color.A * alpha),
	}
}

// emitBitmapTextCommands emits one sprite command per glyph. The caller
// supplies the transform and alpha so the same path serves the camera
// pass and offscreen subtree passes.
func emitBitmapTextCommands(tb *TextBlock, n *Node, transform [6]float64, alpha float64, commands []RenderCommand, treeOrder *int) []RenderCommand {
	lines := tb.layout()
	if len(lines) == 0 {
		return commands
	}
	lh := tb.lineHeight()
	emit := func(gp placedGlyph, lineY, offX, offY float64, col color32) []RenderCommand {
		*treeOrder++
		return append(commands, RenderCommand{
			Type:          CommandSprite,
			Transform:     affine32(composeGlyphTransform(transform, gp.x+offX, gp.y+lineY+offY)),
			TextureRegion: gp.region,
			Color:         col,
			BlendMode:     n.BlendMode,
			RenderLayer:   n.RenderLayer,
			GlobalOrder:   n.GlobalOrder,
			treeOrder:     *treeOrder,
		})
	}

	// Stroke pass first: each glyph offset in 8 directions.
	if tb.Outline != nil && tb.Outline.Thickness > 0 {
		stroke := modulate(tb.Outline.Color, n, alpha)
		for _, off := range strokeOffsets(tb.Outline.Thickness) {
			for li, line := range lines {
				lineY := float64(li) * lh
				for _, gp := range line.glyphs {
					commands = emit(gp, lineY, off[0], off[1], stroke)
				}
			}
		}
	}

	fill := modulate(tb.Color, n, alpha)
	for li, line := range lines {
		lineY := float64(li) * lh
		for _, gp := range line.glyphs {
			commands = emit(gp, lineY, 0, 0, fill)
		}
	}
	return commands
}

// strokeOffsets lists the 8 stroke directions at thickness t, cardinals
// before diagonals.
func strokeOffsets(t float64) [8][2]float64 {
	return [8][2]float64{
		{-t, 0}, {t, 0}, {0, -t}, {0, t},
		{-t, -t}, {t, -t}, {-t, t}, {t, t},
	}
}

// composeGlyphTransform is worldTransform * Translate(localX, localY).
func composeGlyphTransform(world [6]float64, localX, localY float64) [6]float64 {
	return foldOrigin(world, localX, localY)
}

// renderTTFImage rasterizes the block's content into its cached image,
// reallocating only when the measured size changed.
func (tb *TextBlock) renderTTFImage(f *TTFFont, w, h int) {
	switch {
	case tb.ttfImage == nil:
		tb.ttfImage = ebiten.NewImage(w, h)
	default:
		b := tb.ttfImage.Bounds()
		if b.Dx() != w || b.Dy() != h {
			tb.ttfImage.Deallocate()
			tb.ttfImage = ebiten.NewImage(w, h)
		} else {
			tb.ttfImage.Clear()
		}
	}

	op := &text.DrawOptions{}
	op.ColorScale.Scale(
		float32(tb.Color.R),
		float32(tb.Color.G),
		float32(tb.Color.B),
		float32(tb.Color.A),
	)
	op.LineSpacing = f.lh
	text.Draw(tb.ttfImage, tb.Content, f.face, op)
}

// emitTTFTextCommand renders TTF text into the block's cached image and
// emits a single sprite command. The image re-renders only when the
// block is dirty; its page slot is claimed once and reused.
func emitTTFTextCommand(tb *TextBlock, n *Node, transform [6]float64, alpha float64, commands []RenderCommand, treeOrder *int, pages []*ebiten.Image, nextPage *int) ([]RenderCommand, []*ebiten.Image) {
	tb.layout()
	if tb.measuredW == 0 || tb.measuredH == 0 {
		return commands, pages
	}

	f := tb.Font.(*TTFFont)
	w := int(tb.measuredW) + 1
	h := int(tb.measuredH) + 1

	if tb.ttfDirty || tb.ttfImage == nil {
		tb.ttfDirty = false
		tb.renderTTFImage(f, w, h)

		if tb.ttfPage < 0 {
			tb.ttfPage = *nextPage
			*nextPage = tb.ttfPage + 1
		}
		if missing := tb.ttfPage + 1 - len(pages); missing > 0 {
			pages = append(pages, make([]*ebiten.Image, missing)...)
		}
		pages[tb.ttfPage] = tb.ttfImage
	}
	*treeOrder++
	commands = append(commands, RenderCommand{
		Type:      CommandSprite,
		Transform: affine32(transform),
		TextureRegion: TextureRegion{
			Page:      uint16(tb.ttfPage),
			Width:     uint16(w),
			Height:    uint16(h),
			OriginalW: uint16(w),
			OriginalH: uint16(h),
		},
		Color:       color32{float32(n.Color.R), float32(n.Color.G), float32(n.Color.B), float32(n.Color.A * alpha)},
		BlendMode:   n.BlendMode,
		RenderLayer: n.RenderLayer,
		GlobalOrder: n.GlobalOrder,
		treeOrder:   *treeOrder,
	})
	return commands, pages
}
