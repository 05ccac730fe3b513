package mesh

import (
	"github.com/devblok/prism/batch"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/model"
)

var clearColor = [4]float32{0, 0, 0, 1.0}

// Drawable3D is a unit of per-frame command generation consumed by a
// MeshBatch. Commands are recorded into the geometry buffer subpass,
// in insertion order.
type Drawable3D interface {

	// MakeCommands records the drawable's geometry commands against
	// the shared pass resources and the camera descriptor.
	MakeCommands(pass *MeshPass, cameraDesc gfx.DescriptorSet, queueFamily uint32) (gfx.CommandBuffer, error)
}

// NewMeshBatch creates a batch rendering to target through the
// deferred pass. Framebuffers and geometry buffer images for the
// current target images are built up front. The returned chain
// signals when the camera uniform upload has completed.
func NewMeshBatch(device gfx.Device, queue gfx.Queue, target gfx.RenderTarget, pass *MeshPass, camera model.Uniform) (*MeshBatch, *gfx.FutureChain, error) {
	b := &MeshBatch{
		device:   device,
		queue:    queue,
		pass:     pass,
		targetID: target.IDRoot().MakeID(),
	}

	images := target.Images()
	b.cache = batch.NewTargetCache(len(images), func(img gfx.Image) (gfx.Framebuffer, error) {
		if err := b.ensureGBuffer(img.Extent()); err != nil {
			return nil, err
		}
		return device.NewFramebuffer(pass.RenderPass(),
			b.gbuffer.albedo, b.gbuffer.normal, b.gbuffer.depth, b.gbuffer.history, img)
	})
	for idx := range images {
		if _, _, err := b.cache.GetOrBuild(idx, images); err != nil {
			b.Release()
			return nil, nil, err
		}
	}

	upload, err := b.SetCamera(camera)
	if err != nil {
		b.Release()
		return nil, nil, err
	}
	return b, upload, nil
}

// MeshBatch renders an ordered list of 3D drawables into a per-target
// cached framebuffer. Geometry buffer images are shared across slots
// and recreated when the target dimensions change. The cache
// revalidates against target image identity every frame.
type MeshBatch struct {
	device gfx.Device
	queue  gfx.Queue
	pass   *MeshPass

	meshes   []Drawable3D
	cache    *batch.TargetCache
	targetID gfx.ObjectID

	gbuffer struct {
		extent  gfx.Extent
		albedo  gfx.RenderImage
		normal  gfx.RenderImage
		depth   gfx.RenderImage
		history gfx.RenderImage
	}

	cameraBuf  gfx.Buffer
	cameraDesc gfx.DescriptorSet

	// Resolve draws read the geometry buffer through input
	// attachment descriptors, so they follow its lifetime.
	historyDesc    gfx.DescriptorSet
	targetDesc     gfx.DescriptorSet
	resolveHistory gfx.CommandBuffer
	resolveTarget  gfx.CommandBuffer
}

// Add appends a drawable. Draw order is insertion order.
func (b *MeshBatch) Add(d Drawable3D) {
	b.meshes = append(b.meshes, d)
}

// SetCamera replaces the camera uniform. The returned chain signals
// when the upload has completed and must be joined before the next
// submission.
func (b *MeshBatch) SetCamera(camera model.Uniform) (*gfx.FutureChain, error) {
	buf, token, err := b.device.NewUniformBuffer(b.queue, camera.Bytes())
	if err != nil {
		return nil, err
	}
	desc, err := b.device.NewDescriptorSet(b.pass.PipelineGBuffers(), 0, buf)
	if err != nil {
		panic("mesh: camera descriptor: " + err.Error())
	}
	if b.cameraDesc != nil {
		b.cameraDesc.Release()
		b.cameraBuf.Release()
	}
	b.cameraBuf = buf
	b.cameraDesc = desc
	return gfx.NewFutureChain(token), nil
}

// Commands assembles the deferred command sequence for the given
// target image slot: geometry subpass with every drawable, then the
// two fullscreen resolve subpasses.
//
// Calling Commands with a target the batch was not constructed
// against panics with gfx.ErrInvalidTarget.
func (b *MeshBatch) Commands(target gfx.RenderTarget, slot int) (gfx.CommandBuffer, error) {
	if !b.targetID.ChildOf(target.IDRoot()) {
		panic(gfx.ErrInvalidTarget)
	}

	framebuffer, _, err := b.cache.GetOrBuild(slot, target.Images())
	if err != nil {
		return nil, err
	}
	if err := b.ensureResolves(); err != nil {
		return nil, err
	}

	recorder, err := b.device.NewRecorder(b.queue.Family())
	if err != nil {
		return nil, err
	}
	scope, err := recorder.BeginRenderPass(framebuffer, clearColor)
	if err != nil {
		return nil, err
	}
	defer scope.Abort()

	for _, mesh := range b.meshes {
		commands, err := mesh.MakeCommands(b.pass, b.cameraDesc, b.queue.Family())
		if err != nil {
			return nil, err
		}
		if err := scope.Execute(commands); err != nil {
			return nil, err
		}
	}
	if err := scope.Next(); err != nil {
		return nil, err
	}
	if err := scope.Execute(b.resolveHistory); err != nil {
		return nil, err
	}
	if err := scope.Next(); err != nil {
		return nil, err
	}
	if err := scope.Execute(b.resolveTarget); err != nil {
		return nil, err
	}
	return scope.End()
}

// Release frees the batch's cached target resources and the geometry
// buffer images. The shared pass is owned by the caller.
func (b *MeshBatch) Release() {
	b.cache.Release()
	b.releaseGBuffer()
	if b.cameraDesc != nil {
		b.cameraDesc.Release()
		b.cameraBuf.Release()
	}
}

func (b *MeshBatch) ensureGBuffer(extent gfx.Extent) error {
	if b.gbuffer.albedo != nil && b.gbuffer.extent == extent {
		return nil
	}
	b.releaseGBuffer()

	images := []struct {
		dst    *gfx.RenderImage
		format gfx.Format
	}{
		{&b.gbuffer.albedo, albedoFormat},
		{&b.gbuffer.normal, normalFormat},
		{&b.gbuffer.depth, depthFormat},
		{&b.gbuffer.history, b.pass.format},
	}
	for _, img := range images {
		created, err := b.device.NewRenderImage(extent, img.format)
		if err != nil {
			b.releaseGBuffer()
			return err
		}
		*img.dst = created
	}
	b.gbuffer.extent = extent
	return nil
}

func (b *MeshBatch) releaseGBuffer() {
	b.releaseResolves()
	for _, img := range []gfx.RenderImage{b.gbuffer.albedo, b.gbuffer.normal, b.gbuffer.depth, b.gbuffer.history} {
		if img != nil {
			img.Release()
		}
	}
	b.gbuffer.albedo = nil
	b.gbuffer.normal = nil
	b.gbuffer.depth = nil
	b.gbuffer.history = nil
}

func (b *MeshBatch) releaseResolves() {
	if b.historyDesc != nil {
		b.historyDesc.Release()
		b.targetDesc.Release()
	}
	b.historyDesc = nil
	b.targetDesc = nil
	b.resolveHistory = nil
	b.resolveTarget = nil
}

func (b *MeshBatch) ensureResolves() error {
	if b.resolveHistory != nil {
		return nil
	}

	historyDesc, err := b.device.NewInputDescriptorSet(b.pass.history,
		b.gbuffer.albedo, b.gbuffer.normal, b.gbuffer.depth)
	if err != nil {
		return err
	}
	targetDesc, err := b.device.NewInputDescriptorSet(b.pass.target, b.gbuffer.history)
	if err != nil {
		historyDesc.Release()
		return err
	}

	history, err := b.device.NewDrawCommands(gfx.DrawDesc{
		Pipeline:    b.pass.history,
		Descriptors: []gfx.DescriptorSet{historyDesc},
		VertexCount: 3,
		QueueFamily: b.queue.Family(),
	})
	if err != nil {
		targetDesc.Release()
		historyDesc.Release()
		return err
	}
	target, err := b.device.NewDrawCommands(gfx.DrawDesc{
		Pipeline:    b.pass.target,
		Descriptors: []gfx.DescriptorSet{targetDesc},
		VertexCount: 3,
		QueueFamily: b.queue.Family(),
	})
	if err != nil {
		targetDesc.Release()
		historyDesc.Release()
		return err
	}

	b.historyDesc = historyDesc
	b.targetDesc = targetDesc
	b.resolveHistory = history
	b.resolveTarget = target
	return nil
}
