package sprite

import (
	"encoding/binary"
	"image"
	"image/draw"
	"math"
	"os"
	"sync"
	"weak"

	glm "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/devblok/prism/gfx"
)

// Glyph atlas covers printable ASCII.
const (
	atlasFirstRune = ' '
	atlasLastRune  = '~'
	atlasColumns   = 16
)

// NewFontCache creates a cache that loads each (path, scale) pair at
// most once while the font is in use anywhere. Entries are held
// weakly, so a font no longer referenced by any drawable is collected
// and reloaded on the next request.
func NewFontCache(device gfx.Device, queue gfx.Queue) *FontCache {
	return &FontCache{
		device: device,
		queue:  queue,
		fonts:  make(map[fontKey]weak.Pointer[Font]),
	}
}

type fontKey struct {
	path  string
	scale float32
}

// FontCache deduplicates font loads per device. Safe for concurrent
// use.
type FontCache struct {
	device gfx.Device
	queue  gfx.Queue

	mutex sync.Mutex
	fonts map[fontKey]weak.Pointer[Font]
}

// Get returns the font for path rendered at scale, loading it when it
// is not cached. A non-nil chain reports a pending atlas upload for
// a freshly loaded font.
func (c *FontCache) Get(path string, scale float32) (*Font, *gfx.FutureChain, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := fontKey{path: path, scale: scale}
	if ref, ok := c.fonts[key]; ok {
		if f := ref.Value(); f != nil {
			return f, nil, nil
		}
	}

	f, upload, err := LoadFont(c.device, c.queue, path, scale)
	if err != nil {
		return nil, nil, err
	}
	c.fonts[key] = weak.Make(f)
	return f, upload, nil
}

// LoadFont reads an OpenType font from disk and rasterises its glyph
// atlas at the given pixel scale.
func LoadFont(device gfx.Device, queue gfx.Queue, path string, scale float32) (*Font, *gfx.FutureChain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return NewFont(device, queue, data, scale)
}

// NewFont parses OpenType data and uploads a glyph atlas texture.
func NewFont(device gfx.Device, queue gfx.Queue, data []byte, scale float32) (*Font, *gfx.FutureChain, error) {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(scale),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, nil, err
	}
	defer face.Close()

	metrics := face.Metrics()
	cellW := metrics.MaxAdvance.Ceil()
	cellH := (metrics.Ascent + metrics.Descent).Ceil()
	if cellW <= 0 || cellH <= 0 {
		cellW, cellH = int(scale), int(scale)
	}

	runeCount := int(atlasLastRune - atlasFirstRune + 1)
	rows := (runeCount + atlasColumns - 1) / atlasColumns
	atlas := image.NewRGBA(image.Rect(0, 0, cellW*atlasColumns, cellH*rows))
	draw.Draw(atlas, atlas.Bounds(), image.Transparent, image.Point{}, draw.Src)

	drawer := font.Drawer{
		Dst:  atlas,
		Src:  image.White,
		Face: face,
	}

	glyphs := make(map[rune]Glyph, runeCount)
	for idx := 0; idx < runeCount; idx++ {
		r := rune(atlasFirstRune + idx)
		advance, ok := face.GlyphAdvance(r)
		if !ok {
			continue
		}
		col, row := idx%atlasColumns, idx/atlasColumns
		originX := col * cellW
		originY := row*cellH + metrics.Ascent.Ceil()
		drawer.Dot = fixed.P(originX, originY)
		drawer.DrawString(string(r))

		glyphs[r] = Glyph{
			Cell:    [2]float32{float32(originX), float32(row * cellH)},
			Size:    [2]float32{float32(cellW), float32(cellH)},
			Advance: float32(advance.Round()),
		}
	}

	extent := gfx.Extent{
		Width:  uint32(atlas.Bounds().Dx()),
		Height: uint32(atlas.Bounds().Dy()),
	}
	texture, token, err := device.NewTexture(queue, extent, atlas.Pix)
	if err != nil {
		return nil, nil, err
	}

	return &Font{
		texture:    texture,
		glyphs:     glyphs,
		lineHeight: float32(metrics.Height.Ceil()),
		atlasSize:  [2]float32{float32(extent.Width), float32(extent.Height)},
	}, gfx.NewFutureChain(token), nil
}

// Glyph locates one rune inside the font atlas, in pixels.
type Glyph struct {
	Cell    [2]float32
	Size    [2]float32
	Advance float32
}

// Font is a rasterised glyph atlas ready for text drawables.
type Font struct {
	texture    gfx.Texture
	glyphs     map[rune]Glyph
	lineHeight float32
	atlasSize  [2]float32
}

// Glyph returns atlas placement for r.
func (f *Font) Glyph(r rune) (Glyph, bool) {
	g, ok := f.glyphs[r]
	return g, ok
}

// LineHeight returns the vertical advance between text lines.
func (f *Font) LineHeight() float32 {
	return f.lineHeight
}

// Texture returns the atlas texture.
func (f *Font) Texture() gfx.Texture {
	return f.texture
}

// Release frees the atlas texture.
func (f *Font) Release() {
	f.texture.Release()
}

// NewText lays out value with the font and uploads its quads.
func NewText(device gfx.Device, queue gfx.Queue, f *Font, value string, pos glm.Vec2) (*Text, *gfx.FutureChain, error) {
	vertices, count := layoutText(f, value, pos)
	buffer, token, err := device.NewVertexBuffer(queue, vertices)
	if err != nil {
		return nil, nil, err
	}
	return &Text{
		font:     f,
		vertices: buffer,
		count:    count,
	}, gfx.NewFutureChain(token), nil
}

// Text is a drawable string of glyph quads.
type Text struct {
	font     *Font
	vertices gfx.Buffer
	count    int
}

// MakeCommands implements Drawable2D.
func (t *Text) MakeCommands(shared *Shared, targetDesc gfx.DescriptorSet, queueFamily uint32, dimensions [2]float32) (gfx.CommandBuffer, error) {
	return shared.Device().NewDrawCommands(gfx.DrawDesc{
		Pipeline:    shared.Pipeline(),
		Descriptors: []gfx.DescriptorSet{targetDesc},
		Vertices:    t.vertices,
		Texture:     t.font.Texture(),
		VertexCount: t.count,
		QueueFamily: queueFamily,
	})
}

// Release frees the text vertex buffer. The font stays usable.
func (t *Text) Release() {
	t.vertices.Release()
}

func layoutText(f *Font, value string, pos glm.Vec2) ([]byte, int) {
	var (
		out   []byte
		count int
	)
	penX, penY := pos.X(), pos.Y()

	put := func(v float32) {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	for _, r := range value {
		if r == '\n' {
			penX = pos.X()
			penY += f.LineHeight()
			continue
		}
		g, ok := f.Glyph(r)
		if !ok {
			continue
		}

		x0, y0 := penX, penY
		x1, y1 := penX+g.Size[0], penY+g.Size[1]
		u0 := g.Cell[0] / f.atlasSize[0]
		v0 := g.Cell[1] / f.atlasSize[1]
		u1 := (g.Cell[0] + g.Size[0]) / f.atlasSize[0]
		v1 := (g.Cell[1] + g.Size[1]) / f.atlasSize[1]

		quad := [][4]float32{
			{x0, y0, u0, v0},
			{x1, y0, u1, v0},
			{x1, y1, u1, v1},
			{x0, y0, u0, v0},
			{x1, y1, u1, v1},
			{x0, y1, u0, v1},
		}
		for _, vert := range quad {
			put(vert[0])
			put(vert[1])
			put(vert[2])
			put(vert[3])
		}
		count += 6
		penX += g.Advance
	}
	return out, count
}
