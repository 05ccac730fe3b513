package sprite

import (
	"encoding/binary"
	"math"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/prism/batch"
	"github.com/devblok/prism/gfx"
)

var clearColor = [4]float32{0.1, 0.1, 0.1, 1.0}

// Drawable2D is a unit of per-frame command generation consumed by a
// SpriteBatch. Implementations record their draw into a command
// buffer executed inside the batch render pass, in insertion order.
type Drawable2D interface {

	// MakeCommands records the drawable's commands. It receives the
	// shared pipeline resources, the target resolution descriptor,
	// the queue family the commands will run on and the target
	// dimensions in pixels.
	MakeCommands(shared *Shared, targetDesc gfx.DescriptorSet, queueFamily uint32, dimensions [2]float32) (gfx.CommandBuffer, error)
}

// NewSpriteBatch creates a batch rendering to target. Framebuffers
// for the current target images and the resolution descriptor are
// built up front, the returned chain signals when the descriptor
// upload has completed.
func NewSpriteBatch(device gfx.Device, queue gfx.Queue, target gfx.RenderTarget, shared *Shared) (*SpriteBatch, *gfx.FutureChain, error) {
	images := target.Images()
	cache := batch.NewTargetCache(len(images), func(img gfx.Image) (gfx.Framebuffer, error) {
		return device.NewFramebuffer(shared.RenderPass(), img)
	})
	for idx := range images {
		if _, _, err := cache.GetOrBuild(idx, images); err != nil {
			cache.Release()
			return nil, nil, err
		}
	}

	extent := images[0].Extent()
	targetDesc, upload, err := makeTargetDesc(device, queue, shared.Pipeline(), extent)
	if err != nil {
		cache.Release()
		return nil, nil, err
	}

	return &SpriteBatch{
		device:     device,
		queue:      queue,
		shared:     shared,
		cache:      cache,
		targetID:   target.IDRoot().MakeID(),
		targetDesc: targetDesc,
		descExtent: extent,
	}, upload, nil
}

// SpriteBatch renders an ordered list of drawables into a per-target
// cached framebuffer. The cache revalidates against target image
// identity every frame, so the batch needs no notification when the
// target's swapchain is recreated.
type SpriteBatch struct {
	device     gfx.Device
	queue      gfx.Queue
	shared     *Shared
	sprites    []Drawable2D
	cache      *batch.TargetCache
	targetID   gfx.ObjectID
	targetDesc gfx.DescriptorSet
	descExtent gfx.Extent
}

// Add appends a drawable. Draw order is insertion order.
func (b *SpriteBatch) Add(d Drawable2D) {
	b.sprites = append(b.sprites, d)
}

// Commands assembles the batch command sequence for the given target
// image slot. The returned chain, when not nil, represents a pending
// descriptor upload the caller must join before submission.
//
// Calling Commands with a target the batch was not constructed
// against panics with gfx.ErrInvalidTarget.
func (b *SpriteBatch) Commands(target gfx.RenderTarget, slot int) (gfx.CommandBuffer, *gfx.FutureChain, error) {
	if !b.targetID.ChildOf(target.IDRoot()) {
		panic(gfx.ErrInvalidTarget)
	}

	framebuffer, rebuilt, err := b.cache.GetOrBuild(slot, target.Images())
	if err != nil {
		return nil, nil, err
	}

	var upload *gfx.FutureChain
	if rebuilt && framebuffer.Extent() != b.descExtent {
		extent := framebuffer.Extent()
		targetDesc, chain, err := makeTargetDesc(b.device, b.queue, b.shared.Pipeline(), extent)
		if err != nil {
			return nil, nil, err
		}
		b.targetDesc.Release()
		b.targetDesc = targetDesc
		b.descExtent = extent
		upload = chain
	}

	recorder, err := b.device.NewRecorder(b.queue.Family())
	if err != nil {
		return nil, nil, err
	}
	scope, err := recorder.BeginRenderPass(framebuffer, clearColor)
	if err != nil {
		return nil, nil, err
	}
	defer scope.Abort()

	dimensions := [2]float32{
		float32(framebuffer.Extent().Width),
		float32(framebuffer.Extent().Height),
	}
	for _, sprite := range b.sprites {
		commands, err := sprite.MakeCommands(b.shared, b.targetDesc, b.queue.Family(), dimensions)
		if err != nil {
			return nil, nil, err
		}
		if err := scope.Execute(commands); err != nil {
			return nil, nil, err
		}
	}

	commands, err := scope.End()
	if err != nil {
		return nil, nil, err
	}
	return commands, upload, nil
}

// Release frees the batch's cached target resources.
func (b *SpriteBatch) Release() {
	b.cache.Release()
	b.targetDesc.Release()
}

func makeTargetDesc(device gfx.Device, queue gfx.Queue, pipeline gfx.Pipeline, extent gfx.Extent) (gfx.DescriptorSet, *gfx.FutureChain, error) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], extent.Width)
	binary.LittleEndian.PutUint32(data[4:], extent.Height)

	buffer, token, err := device.NewUniformBuffer(queue, data)
	if err != nil {
		return nil, nil, err
	}
	set, err := device.NewDescriptorSet(pipeline, 0, buffer)
	if err != nil {
		// Descriptor construction only fails on caller bugs,
		// resource exhaustion is reported by the buffer upload.
		panic("sprite: target descriptor: " + err.Error())
	}
	return set, gfx.NewFutureChain(token), nil
}

// NewSprite creates a textured quad at pos with the given size in
// pixels. The returned chain signals when the vertex upload has
// completed.
func NewSprite(device gfx.Device, queue gfx.Queue, texture gfx.Texture, pos, size glm.Vec2) (*Sprite, *gfx.FutureChain, error) {
	vertices := quadVertices(pos, size)
	buffer, token, err := device.NewVertexBuffer(queue, vertices)
	if err != nil {
		return nil, nil, err
	}
	return &Sprite{
		texture:  texture,
		vertices: buffer,
	}, gfx.NewFutureChain(token), nil
}

// Sprite is a textured quad drawable.
type Sprite struct {
	texture  gfx.Texture
	vertices gfx.Buffer
}

// MakeCommands implements Drawable2D.
func (s *Sprite) MakeCommands(shared *Shared, targetDesc gfx.DescriptorSet, queueFamily uint32, dimensions [2]float32) (gfx.CommandBuffer, error) {
	return shared.Device().NewDrawCommands(gfx.DrawDesc{
		Pipeline:    shared.Pipeline(),
		Descriptors: []gfx.DescriptorSet{targetDesc},
		Vertices:    s.vertices,
		Texture:     s.texture,
		VertexCount: 6,
		QueueFamily: queueFamily,
	})
}

// Release frees the sprite's vertex buffer. The texture is owned by
// the caller.
func (s *Sprite) Release() {
	s.vertices.Release()
}

func quadVertices(pos, size glm.Vec2) []byte {
	x0, y0 := pos.X(), pos.Y()
	x1, y1 := x0+size.X(), y0+size.Y()

	quad := []float32{
		x0, y0, 0, 0,
		x1, y0, 1, 0,
		x1, y1, 1, 1,
		x0, y0, 0, 0,
		x1, y1, 1, 1,
		x0, y1, 0, 1,
	}
	out := make([]byte, 0, len(quad)*4)
	for _, v := range quad {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}
