// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"

	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/prism/gfx"
)

// Commands is a deferred draw recording. It replays into the primary
// command buffer when executed inside a render scope, which is when
// the target dimensions are known.
type Commands struct {
	record func(cb vk.CommandBuffer)
}

// NewDrawCommands implements gfx.Device.
func (d *Device) NewDrawCommands(desc gfx.DrawDesc) (gfx.CommandBuffer, error) {
	pipeline, ok := desc.Pipeline.(*Pipeline)
	if !ok {
		return nil, errors.New("vkr: pipeline from another backend")
	}

	sets := make([]vk.DescriptorSet, 0, len(desc.Descriptors))
	for _, descriptor := range desc.Descriptors {
		set, ok := descriptor.(*DescriptorSet)
		if !ok {
			return nil, errors.New("vkr: descriptor set from another backend")
		}
		sets = append(sets, set.set)
	}

	var vertexBuffer vk.Buffer
	if desc.Vertices != nil {
		buffer, ok := desc.Vertices.(*Buffer)
		if !ok {
			return nil, errors.New("vkr: buffer from another backend")
		}
		vertexBuffer = buffer.Get()
	}

	var samplerSet vk.DescriptorSet
	if desc.Texture != nil {
		texture, ok := desc.Texture.(*Texture)
		if !ok {
			return nil, errors.New("vkr: texture from another backend")
		}
		samplerSet = texture.set
	}

	vertexCount := uint32(desc.VertexCount)
	return &Commands{
		record: func(cb vk.CommandBuffer) {
			vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pipeline.pipeline)
			if len(sets) > 0 {
				vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics,
					pipeline.layout, 0, uint32(len(sets)), sets, 0, nil)
			}
			if samplerSet != vk.NullDescriptorSet {
				vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics,
					pipeline.layout, 1, 1, []vk.DescriptorSet{samplerSet}, 0, nil)
			}
			if vertexBuffer != vk.NullBuffer {
				vk.CmdBindVertexBuffers(cb, 0, 1, []vk.Buffer{vertexBuffer}, []vk.DeviceSize{0})
			}
			vk.CmdDraw(cb, vertexCount, 1, 0, 0)
		},
	}, nil
}

// NewRecorder implements gfx.Device.
func (d *Device) NewRecorder(queueFamily uint32) (gfx.Recorder, error) {
	if queueFamily != d.queueIndex {
		return nil, errors.New("vkr: no command pool for queue family")
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	buffers := make([]vk.CommandBuffer, 1)
	if err := mapResult("vk.AllocateCommandBuffers", vk.AllocateCommandBuffers(d.device, &cbai, buffers)); err != nil {
		return nil, err
	}
	return &Recorder{
		device: d.device,
		pool:   d.commandPool,
		cb:     buffers[0],
	}, nil
}

// Recorder implements gfx.Recorder over one primary command buffer.
type Recorder struct {
	device vk.Device
	pool   vk.CommandPool
	cb     vk.CommandBuffer
}

// BeginRenderPass implements gfx.Recorder.
func (r *Recorder) BeginRenderPass(fb gfx.Framebuffer, clear [4]float32) (gfx.RenderScope, error) {
	framebuffer, ok := fb.(*Framebuffer)
	if !ok {
		return nil, errors.New("vkr: framebuffer from another backend")
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(r.cb, &cbbi)); err != nil {
		return nil, errors.New("vk.BeginCommandBuffer(): " + err.Error())
	}

	clearValues := make([]vk.ClearValue, len(framebuffer.renderPass.desc.Attachments))
	for idx, attachment := range framebuffer.renderPass.desc.Attachments {
		if attachment.Format == gfx.FormatD16Unorm {
			clearValues[idx].SetDepthStencil(1, 0)
		} else {
			clearValues[idx].SetColor(clear[:])
		}
	}

	extent := framebuffer.Extent()
	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  framebuffer.renderPass.renderPass,
		Framebuffer: framebuffer.framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(r.cb, &rpbi, vk.SubpassContentsInline)

	vk.CmdSetViewport(r.cb, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(r.cb, 0, 1, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}})

	return &Scope{recorder: r}, nil
}

// Scope implements gfx.RenderScope.
type Scope struct {
	recorder *Recorder
	closed   bool
}

// Execute implements gfx.RenderScope.
func (s *Scope) Execute(cb gfx.CommandBuffer) error {
	if s.closed {
		return errors.New("vkr: execute on a closed scope")
	}
	commands, ok := cb.(*Commands)
	if !ok {
		return errors.New("vkr: command buffer from another backend")
	}
	commands.record(s.recorder.cb)
	return nil
}

// Next implements gfx.RenderScope.
func (s *Scope) Next() error {
	if s.closed {
		return errors.New("vkr: next on a closed scope")
	}
	vk.CmdNextSubpass(s.recorder.cb, vk.SubpassContentsInline)
	return nil
}

// End implements gfx.RenderScope.
func (s *Scope) End() (gfx.CommandBuffer, error) {
	if s.closed {
		return nil, errors.New("vkr: end on a closed scope")
	}
	s.closed = true

	vk.CmdEndRenderPass(s.recorder.cb)
	if err := vk.Error(vk.EndCommandBuffer(s.recorder.cb)); err != nil {
		return nil, errors.New("vk.EndCommandBuffer(): " + err.Error())
	}
	return &Primary{recorder: s.recorder}, nil
}

// Abort implements gfx.RenderScope.
func (s *Scope) Abort() {
	if s.closed {
		return
	}
	s.closed = true

	vk.CmdEndRenderPass(s.recorder.cb)
	vk.EndCommandBuffer(s.recorder.cb)
	s.recorder.free()
}

func (r *Recorder) free() {
	vk.FreeCommandBuffers(r.device, r.pool, 1, []vk.CommandBuffer{r.cb})
}

// Primary is a finished primary command buffer ready for submission.
type Primary struct {
	recorder *Recorder
}

// Queue implements gfx.Queue on the device queue.
type Queue struct {
	device *Device
	queue  vk.Queue
	family uint32
}

// Family implements gfx.Queue.
func (q *Queue) Family() uint32 {
	return q.family
}

// Submit implements gfx.Queue. Chain ordering is enforced host-side
// by waiting on the fences backing the chain.
func (q *Queue) Submit(cb gfx.CommandBuffer, after *gfx.FutureChain) (gfx.Token, error) {
	primary, ok := cb.(*Primary)
	if !ok {
		return nil, errors.New("vkr: command buffer from another backend")
	}

	waitChain(after)

	fence, err := newFence(q.device.device)
	if err != nil {
		return nil, err
	}

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{primary.recorder.cb},
	}}
	if err := mapResult("vk.QueueSubmit", vk.QueueSubmit(q.queue, 1, submit, fence.fence)); err != nil {
		fence.Free()
		return nil, err
	}
	fence.done = primary.recorder.free
	return fence, nil
}

// Present implements gfx.Queue. The returned fence signals once every
// command submitted to the queue before presentation has completed.
func (q *Queue) Present(sc gfx.Swapchain, slot int, after *gfx.FutureChain) (gfx.Token, error) {
	swapchain, ok := sc.(*Swapchain)
	if !ok {
		return nil, errors.New("vkr: swapchain from another backend")
	}

	waitChain(after)

	fence, err := newFence(q.device.device)
	if err != nil {
		return nil, err
	}
	if err := mapResult("vk.QueueSubmit", vk.QueueSubmit(q.queue, 0, nil, fence.fence)); err != nil {
		fence.Free()
		return nil, err
	}

	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{swapchain.handle},
		PImageIndices:  []uint32{uint32(slot)},
	}
	if err := mapResult("vk.QueuePresent", vk.QueuePresent(q.queue, &presentInfo)); err != nil {
		fence.Free()
		return nil, err
	}
	return fence, nil
}
