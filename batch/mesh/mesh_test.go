package mesh_test

import (
	"bytes"
	"errors"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/prism/asset"
	"github.com/devblok/prism/batch/mesh"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/gfx/gfxtest"
	"github.com/devblok/prism/model"
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

func newTestBatch(t *testing.T) (*mesh.MeshBatch, *fakeTarget, *gfxtest.Device) {
	t.Helper()

	device := gfxtest.NewDevice()
	queue := gfxtest.NewQueue(0)
	target := newFakeTarget(gfx.Extent{Width: 640, Height: 480}, 2)

	pass, err := mesh.NewMeshPass(device, target.Format())
	if err != nil {
		t.Fatal(err)
	}
	b, upload, err := mesh.NewMeshBatch(device, queue, target, pass, model.Uniform{
		Model:      glm.Ident4(),
		View:       glm.Ident4(),
		Projection: glm.Ident4(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Fatal("no upload chain for the camera uniform")
	}
	return b, target, device
}

func triangle() model.MeshData {
	return model.MeshData{
		Name: "triangle",
		Vertices: []model.Vertex{
			{Pos: glm.Vec3{0, -1, 0}, Normal: glm.Vec3{0, 0, 1}, Color: glm.Vec4{1, 0, 0, 1}},
			{Pos: glm.Vec3{1, 1, 0}, Normal: glm.Vec3{0, 0, 1}, Color: glm.Vec4{0, 1, 0, 1}},
			{Pos: glm.Vec3{-1, 1, 0}, Normal: glm.Vec3{0, 0, 1}, Color: glm.Vec4{0, 0, 1, 1}},
		},
	}
}

func TestCommandsCachesPerSlot(t *testing.T) {
	b, target, device := newTestBatch(t)

	// Both slots prebuilt, four gbuffer images shared between them.
	if device.Framebuffers != 2 {
		t.Fatalf("construction allocated %d framebuffers, want 2", device.Framebuffers)
	}
	if device.RenderImages != 4 {
		t.Fatalf("construction allocated %d gbuffer images, want 4", device.RenderImages)
	}

	for _, slot := range []int{0, 1, 0} {
		if _, err := b.Commands(target, slot); err != nil {
			t.Fatal(err)
		}
	}
	if device.Framebuffers != 2 || device.RenderImages != 4 {
		t.Error("commands on cached slots allocated new target resources")
	}
}

func TestRecreationKeepsGBufferAtSameExtent(t *testing.T) {
	b, target, device := newTestBatch(t)

	if err := target.swapchain.Recreate(target.swapchain.Extent()); err != nil {
		t.Fatal(err)
	}
	for _, slot := range []int{0, 1} {
		if _, err := b.Commands(target, slot); err != nil {
			t.Fatal(err)
		}
	}

	// Framebuffers follow the new image identities, the gbuffer does
	// not change dimensions and survives.
	if device.Framebuffers != 4 {
		t.Errorf("allocated %d framebuffers total, want 4", device.Framebuffers)
	}
	if device.RenderImages != 4 {
		t.Errorf("allocated %d gbuffer images total, want 4", device.RenderImages)
	}
}

func TestResizeRecreatesGBufferOnce(t *testing.T) {
	b, target, device := newTestBatch(t)

	if err := target.swapchain.Recreate(gfx.Extent{Width: 1280, Height: 720}); err != nil {
		t.Fatal(err)
	}
	for _, slot := range []int{0, 1} {
		if _, err := b.Commands(target, slot); err != nil {
			t.Fatal(err)
		}
	}

	// One new set of four images for the new dimensions, shared by
	// both rebuilt slots.
	if device.RenderImages != 8 {
		t.Errorf("allocated %d gbuffer images total, want 8", device.RenderImages)
	}
}

func TestCommandsForeignTargetPanics(t *testing.T) {
	b, _, _ := newTestBatch(t)
	foreign := newFakeTarget(gfx.Extent{Width: 640, Height: 480}, 2)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("commands against a foreign target did not panic")
		} else if err, ok := r.(error); !ok || !errors.Is(err, gfx.ErrInvalidTarget) {
			t.Fatalf("panic value %v, want gfx.ErrInvalidTarget", r)
		}
	}()
	b.Commands(foreign, 0)
}

func TestDeferredCommandLayout(t *testing.T) {
	b, target, device := newTestBatch(t)
	queue := gfxtest.NewQueue(0)

	for range 2 {
		m, _, err := mesh.NewMesh(device, queue, triangle())
		if err != nil {
			t.Fatal(err)
		}
		b.Add(m)
	}

	commands, err := b.Commands(target, 0)
	if err != nil {
		t.Fatal(err)
	}
	draws := commands.(*gfxtest.Commands).Draws
	if len(draws) != 4 {
		t.Fatalf("recorded %d draws, want 2 meshes + 2 resolves", len(draws))
	}
	for idx, draw := range draws[:2] {
		if draw.Vertices == nil || draw.VertexCount != 3 {
			t.Errorf("mesh draw %d does not carry its vertices", idx)
		}
	}
	// Resolve draws are generated fullscreen triangles.
	for idx, draw := range draws[2:] {
		if draw.Vertices != nil || draw.VertexCount != 3 {
			t.Errorf("resolve draw %d should have no vertex buffer", idx)
		}
	}
}

func TestResizeRebuildsResolveDescriptors(t *testing.T) {
	b, target, device := newTestBatch(t)

	if _, err := b.Commands(target, 0); err != nil {
		t.Fatal(err)
	}
	if device.InputSets != 2 {
		t.Fatalf("first commands allocated %d input descriptor sets, want 2", device.InputSets)
	}
	if _, err := b.Commands(target, 1); err != nil {
		t.Fatal(err)
	}
	if device.InputSets != 2 {
		t.Error("cached resolves reallocated input descriptors")
	}

	// A resize retires the gbuffer, the resolves must re-point their
	// input attachments at the fresh images.
	if err := target.swapchain.Recreate(gfx.Extent{Width: 1280, Height: 720}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Commands(target, 0); err != nil {
		t.Fatal(err)
	}
	if device.InputSets != 4 {
		t.Errorf("resize allocated %d input descriptor sets total, want 4", device.InputSets)
	}
}

func TestSetCameraUploads(t *testing.T) {
	b, _, device := newTestBatch(t)
	uniformsBefore := device.Uniforms

	upload, err := b.SetCamera(model.Uniform{Projection: glm.Perspective(1.0, 4.0/3.0, 0.1, 100)})
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Error("camera update returned no upload chain")
	}
	if device.Uniforms != uniformsBefore+1 {
		t.Errorf("camera update allocated %d uniform buffers, want 1", device.Uniforms-uniformsBefore)
	}
}

func TestFromArchive(t *testing.T) {
	builder, err := asset.NewBuilder(asset.Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	var encoded bytes.Buffer
	data := triangle()
	if err := data.Encode(&encoded); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("triangle.mesh", &encoded); err != nil {
		t.Fatal(err)
	}
	var pak bytes.Buffer
	if _, err := builder.WriteTo(&pak); err != nil {
		t.Fatal(err)
	}
	ar, err := asset.Open(bytes.NewReader(pak.Bytes()))
	if err != nil {
		t.Fatal(err)
	}

	device := gfxtest.NewDevice()
	queue := gfxtest.NewQueue(0)
	m, upload, err := mesh.FromArchive(device, queue, ar, "triangle.mesh")
	if err != nil {
		t.Fatal(err)
	}
	if upload == nil {
		t.Error("mesh load returned no upload chain")
	}
	if m.Name() != "triangle" {
		t.Errorf("loaded mesh named %q, want %q", m.Name(), "triangle")
	}
}
