package sprite_test

import (
	"errors"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/prism/batch/sprite"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/gfx/gfxtest"
)

type fakeTarget struct {
	root      gfx.ObjectIDRoot
	swapchain *gfxtest.Swapchain
}

func newFakeTarget(extent gfx.Extent, count int) *fakeTarget {
	return &fakeTarget{
		root:      gfx.NewObjectIDRoot(),
		swapchain: gfxtest.NewSwapchain(gfx.FormatB8G8R8A8SRGB, extent, count),
	}
}

func (t *fakeTarget) Format() gfx.Format        { return t.swapchain.Format() }
func (t *fakeTarget) IDRoot() *gfx.ObjectIDRoot { return &t.root }
func (t *fakeTarget) Images() []gfx.Image       { return t.swapchain.Images() }

func newTestBatch(t *testing.T, imageCount int) (*sprite.SpriteBatch, *fakeTarget, *gfxtest.Device) {
	t.Helper()

	device := gfxtest.NewDevice()
	queue := gfxtest.NewQueue(0)
	target := newFakeTarget(gfx.Extent{Width: 640, Height: 480}, imageCount)

	shared, err := sprite.NewShared(device, target.Format())
	if err != nil {
		t.Fatal(err)
	}
	b, upload, err := sprite.NewSpriteBatch(device, queue, target, shared)
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Fatal("no upload chain for the initial resolution descriptor")
	}
	return b, target, device
}

func TestCommandsCachesPerSlot(t *testing.T) {
	b, target, device := newTestBatch(t, 2)

	// Both slots were prebuilt at construction time.
	if device.Framebuffers != 2 {
		t.Fatalf("construction allocated %d framebuffers, want 2", device.Framebuffers)
	}

	for _, slot := range []int{0, 1, 0} {
		if _, upload, err := b.Commands(target, slot); err != nil {
			t.Fatal(err)
		} else if upload != nil {
			t.Errorf("slot %d produced an upload chain on a cache hit", slot)
		}
	}
	if device.Framebuffers != 2 {
		t.Errorf("commands allocated %d extra framebuffers, want 0", device.Framebuffers-2)
	}
}

func TestRecreationRebuildsEachSlotOnce(t *testing.T) {
	b, target, device := newTestBatch(t, 2)

	if err := target.swapchain.Recreate(target.swapchain.Extent()); err != nil {
		t.Fatal(err)
	}

	// Identity changed for both slots, so each rebuilds exactly once.
	for _, slot := range []int{0, 1, 0, 1} {
		if _, _, err := b.Commands(target, slot); err != nil {
			t.Fatal(err)
		}
	}
	if device.Framebuffers != 4 {
		t.Errorf("allocated %d framebuffers total, want 4", device.Framebuffers)
	}
}

func TestResizeRebuildsDescriptorOnce(t *testing.T) {
	b, target, device := newTestBatch(t, 2)
	uniformsBefore := device.Uniforms

	if err := target.swapchain.Recreate(gfx.Extent{Width: 1280, Height: 720}); err != nil {
		t.Fatal(err)
	}

	_, upload, err := b.Commands(target, 0)
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Error("dimension change did not produce a descriptor upload chain")
	}

	// The second slot has the same new dimensions, no second rebuild.
	if _, upload, err = b.Commands(target, 1); err != nil {
		t.Fatal(err)
	} else if upload != nil {
		t.Error("descriptor rebuilt twice for one resize")
	}
	if got := device.Uniforms - uniformsBefore; got != 1 {
		t.Errorf("resize allocated %d uniform buffers, want 1", got)
	}
}

func TestCommandsForeignTargetPanics(t *testing.T) {
	b, _, device := newTestBatch(t, 2)
	foreign := newFakeTarget(gfx.Extent{Width: 640, Height: 480}, 2)
	allocated := device.Framebuffers

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("commands against a foreign target did not panic")
		} else if err, ok := r.(error); !ok || !errors.Is(err, gfx.ErrInvalidTarget) {
			t.Fatalf("panic value %v, want gfx.ErrInvalidTarget", r)
		}
		if device.Framebuffers != allocated {
			t.Error("foreign target call mutated cached resources")
		}
	}()
	b.Commands(foreign, 0)
}

type orderedDrawable struct {
	device *gfxtest.Device
	marker int
	log    *[]int
}

func (d *orderedDrawable) MakeCommands(shared *sprite.Shared, targetDesc gfx.DescriptorSet, queueFamily uint32, dimensions [2]float32) (gfx.CommandBuffer, error) {
	*d.log = append(*d.log, d.marker)
	return d.device.NewDrawCommands(gfx.DrawDesc{
		Pipeline:    shared.Pipeline(),
		Descriptors: []gfx.DescriptorSet{targetDesc},
		VertexCount: 3,
		QueueFamily: queueFamily,
	})
}

func TestDrawablesRunInInsertionOrder(t *testing.T) {
	b, target, device := newTestBatch(t, 2)

	var order []int
	for marker := range 3 {
		b.Add(&orderedDrawable{device: device, marker: marker, log: &order})
	}

	commands, _, err := b.Commands(target, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("drawables invoked in order %v, want [0 1 2]", order)
	}
	if got := len(commands.(*gfxtest.Commands).Draws); got != 3 {
		t.Errorf("recorded %d draws, want 3", got)
	}
}

type failingDrawable struct{}

func (failingDrawable) MakeCommands(*sprite.Shared, gfx.DescriptorSet, uint32, [2]float32) (gfx.CommandBuffer, error) {
	return nil, gfx.ErrOutOfMemory
}

func TestDrawableFailurePropagates(t *testing.T) {
	b, target, _ := newTestBatch(t, 2)
	b.Add(failingDrawable{})

	if _, _, err := b.Commands(target, 0); !errors.Is(err, gfx.ErrOutOfMemory) {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}

	// The render scope was closed, the batch stays usable.
	if _, _, err := b.Commands(target, 1); !errors.Is(err, gfx.ErrOutOfMemory) {
		t.Fatal("batch unusable after a failed drawable")
	}
}

func TestSpriteQuad(t *testing.T) {
	device := gfxtest.NewDevice()
	queue := gfxtest.NewQueue(0)

	texture, _, err := device.NewTexture(queue, gfx.Extent{Width: 4, Height: 4}, make([]byte, 64))
	if err != nil {
		t.Fatal(err)
	}
	s, upload, err := sprite.NewSprite(device, queue, texture, glm.Vec2{10, 20}, glm.Vec2{32, 32})
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Error("sprite creation returned no upload chain")
	}

	shared, err := sprite.NewShared(device, gfx.FormatB8G8R8A8SRGB)
	if err != nil {
		t.Fatal(err)
	}
	set, err := device.NewDescriptorSet(shared.Pipeline(), 0, &gfxtest.Buffer{})
	if err != nil {
		t.Fatal(err)
	}

	commands, err := s.MakeCommands(shared, set, 0, [2]float32{640, 480})
	if err != nil {
		t.Fatal(err)
	}
	draw := commands.(*gfxtest.Commands).Draws[0]
	if draw.VertexCount != 6 {
		t.Errorf("sprite draws %d vertices, want 6", draw.VertexCount)
	}
	if draw.Vertices.Size() != 6*16 {
		t.Errorf("vertex buffer is %d bytes, want %d", draw.Vertices.Size(), 6*16)
	}
}
