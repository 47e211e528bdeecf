package arbor

import (
	"encoding/json"
	"fmt"
	"image/color"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
)

// TextureRegion locates one packed sprite (a marker icon, badge, or dialog
// chrome slice) inside an atlas page. It is a 32-byte value type and lives
// directly on Node.
type TextureRegion struct {
	Page      uint16 // index into Scene.pages
	X, Y      uint16 // packed rect top-left within the page
	Width     uint16 // packed rect width (smaller than OriginalW when trimmed)
	Height    uint16 // packed rect height (smaller than OriginalH when trimmed)
	OriginalW uint16 // authored sprite width before trimming
	OriginalH uint16 // authored sprite height before trimming
	OffsetX   int16  // trim offset applied when drawing
	OffsetY   int16
	Rotated   bool // stored rotated 90 degrees clockwise in the page
}

// Atlas maps sprite names to packed regions across one or more page images.
type Atlas struct {
	// Pages holds the page images, indexed by region Page.
	Pages   []*ebiten.Image
	regions map[string]TextureRegion
}

// Region looks up a named sprite. Unknown names return a 1x1 magenta
// placeholder region (and log a warning in debug mode) so a typo in an icon
// name shows up on screen instead of crashing the editor.
func (a *Atlas) Region(name string) TextureRegion {
	r, ok := a.regions[name]
	if !ok {
		if globalDebug {
			log.Printf("arbor: atlas region %q not found, using magenta placeholder", name)
		}
		return magentaRegion()
	}
	return r
}

// magentaPlaceholderPage is the sentinel page index for missing-region
// placeholders, chosen to never collide with a real page.
const magentaPlaceholderPage = 0xFFFF

// Lazily created 1x1 magenta pixel. No sync.Once; arbor is single-threaded.
var magentaImage *ebiten.Image

func ensureMagentaImage() *ebiten.Image {
	if magentaImage == nil {
		magentaImage = ebiten.NewImage(1, 1)
		magentaImage.Fill(color.RGBA{R: 0xFF, B: 0xFF, A: 0xFF})
	}
	return magentaImage
}

func magentaRegion() TextureRegion {
	return TextureRegion{
		Page: magentaPlaceholderPage,
		Width: 1, Height: 1,
		OriginalW: 1, OriginalH: 1,
	}
}

// LoadAtlas parses TexturePacker JSON and pairs it with the given page
// images. Both the single-page hash format (top-level "frames" object) and
// the multi-page array format (top-level "textures" array) are accepted.
func LoadAtlas(jsonData []byte, pages []*ebiten.Image) (*Atlas, error) {
	var doc struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("arbor: failed to parse atlas JSON: %w", err)
	}

	atlas := &Atlas{
		Pages:   pages,
		regions: make(map[string]TextureRegion),
	}

	switch {
	case doc.Textures != nil:
		var texPages []packedPage
		if err := json.Unmarshal(doc.Textures, &texPages); err != nil {
			return nil, fmt.Errorf("arbor: failed to parse atlas textures array: %w", err)
		}
		for i, page := range texPages {
			atlas.addFrames(page.Frames, uint16(i))
		}
	case doc.Frames != nil:
		var frames map[string]packedFrame
		if err := json.Unmarshal(doc.Frames, &frames); err != nil {
			return nil, fmt.Errorf("arbor: failed to parse atlas frames: %w", err)
		}
		atlas.addFrames(frames, 0)
	default:
		return nil, fmt.Errorf("arbor: atlas JSON has neither \"frames\" nor \"textures\" key")
	}

	return atlas, nil
}

func (a *Atlas) addFrames(frames map[string]packedFrame, page uint16) {
	for name, f := range frames {
		a.regions[name] = TextureRegion{
			Page:      page,
			X:         uint16(f.Frame.X),
			Y:         uint16(f.Frame.Y),
			Width:     uint16(f.Frame.W),
			Height:    uint16(f.Frame.H),
			OriginalW: uint16(f.SourceSize.W),
			OriginalH: uint16(f.SourceSize.H),
			OffsetX:   int16(f.SpriteSourceSize.X),
			OffsetY:   int16(f.SpriteSourceSize.Y),
			Rotated:   f.Rotated,
		}
	}
}

// TexturePacker JSON shapes.

type packedRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type packedSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type packedFrame struct {
	Frame            packedRect `json:"frame"`
	Rotated          bool       `json:"rotated"`
	Trimmed          bool       `json:"trimmed"`
	SpriteSourceSize packedRect `json:"spriteSourceSize"`
	SourceSize       packedSize `json:"sourceSize"`
}

type packedPage struct {
	Image  string                 `json:"image"`
	Frames map[string]packedFrame `json:"frames"`
}
