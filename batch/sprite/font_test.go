package sprite_test

import (
	"os"
	"path/filepath"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/devblok/prism/batch/sprite"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/gfx/gfxtest"
)

func TestNewFontBuildsAtlas(t *testing.T) {
	device := gfxtest.NewDevice()
	queue := gfxtest.NewQueue(0)

	f, upload, err := sprite.NewFont(device, queue, goregular.TTF, 14)
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Error("font creation returned no atlas upload chain")
	}

	g, ok := f.Glyph('A')
	if !ok {
		t.Fatal("atlas is missing glyph 'A'")
	}
	if g.Advance <= 0 {
		t.Errorf("glyph 'A' advance %f, want > 0", g.Advance)
	}
	if f.LineHeight() <= 0 {
		t.Errorf("line height %f, want > 0", f.LineHeight())
	}
	if f.Texture().Extent().Width == 0 || f.Texture().Extent().Height == 0 {
		t.Error("atlas texture has zero extent")
	}
}

func TestFontCacheReusesLiveFonts(t *testing.T) {
	device := gfxtest.NewDevice()
	queue := gfxtest.NewQueue(0)

	path := filepath.Join(t.TempDir(), "regular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}

	cache := sprite.NewFontCache(device, queue)
	first, upload, err := cache.Get(path, 14)
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Error("first load returned no upload chain")
	}

	second, upload, err := cache.Get(path, 14)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("cache loaded the same font twice")
	}
	if upload != nil {
		t.Error("cache hit returned an upload chain")
	}

	// A different scale is a distinct entry.
	third, _, err := cache.Get(path, 28)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("distinct scales share one font")
	}
}

func TestTextLayout(t *testing.T) {
	device := gfxtest.NewDevice()
	queue := gfxtest.NewQueue(0)

	f, _, err := sprite.NewFont(device, queue, goregular.TTF, 14)
	if err != nil {
		t.Fatal(err)
	}

	text, upload, err := sprite.NewText(device, queue, f, "hi\nthere", glm.Vec2{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Error("text creation returned no upload chain")
	}

	shared, err := sprite.NewShared(device, gfx.FormatB8G8R8A8SRGB)
	if err != nil {
		t.Fatal(err)
	}
	set, err := device.NewDescriptorSet(shared.Pipeline(), 0, &gfxtest.Buffer{})
	if err != nil {
		t.Fatal(err)
	}

	commands, err := text.MakeCommands(shared, set, 0, [2]float32{640, 480})
	if err != nil {
		t.Fatal(err)
	}
	draw := commands.(*gfxtest.Commands).Draws[0]
	// Seven visible glyphs, six vertices each, newline draws nothing.
	if draw.VertexCount != 7*6 {
		t.Errorf("text draws %d vertices, want %d", draw.VertexCount, 7*6)
	}
	if draw.Texture != f.Texture() {
		t.Error("text does not sample the font atlas")
	}
}
