// Package sprite implements a 2D batch: an ordered collection of
// drawables rendered into a cached per-target framebuffer with a
// resolution descriptor forwarded to every draw.
package sprite

import (
	"github.com/devblok/prism/gfx"
)

// Vertex layout shared by every sprite pipeline: x, y, u, v float32.
const (
	vertexStride = 16
	uvOffset     = 8
)

// NewShared builds the render pass and pipeline shared by every
// SpriteBatch rendering to targets of the given format.
func NewShared(device gfx.Device, format gfx.Format) (*Shared, error) {
	renderPass, err := device.NewRenderPass(gfx.RenderPassDesc{
		Attachments: []gfx.Attachment{
			{Format: format, Load: gfx.LoadClear, Store: true},
		},
		Subpasses: []gfx.Subpass{
			{Colors: []int{0}, DepthStencil: -1},
		},
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.NewPipeline(renderPass, gfx.PipelineDesc{
		VertexShader:   "sprite.vert",
		FragmentShader: "sprite.frag",
		VertexStride:   vertexStride,
		VertexAttrs: []gfx.VertexAttr{
			{Location: 0, Offset: 0, Format: gfx.FormatR32G32Sfloat},
			{Location: 1, Offset: uvOffset, Format: gfx.FormatR32G32Sfloat},
		},
	})
	if err != nil {
		renderPass.Release()
		return nil, err
	}

	return &Shared{
		device:     device,
		renderPass: renderPass,
		pipeline:   pipeline,
	}, nil
}

// Shared holds the resources common to all sprite batches on one
// device: the render pass and the sprite pipeline.
type Shared struct {
	device     gfx.Device
	renderPass gfx.RenderPass
	pipeline   gfx.Pipeline
}

// Device returns the device the shared resources live on.
func (s *Shared) Device() gfx.Device {
	return s.device
}

// RenderPass returns the sprite render pass.
func (s *Shared) RenderPass() gfx.RenderPass {
	return s.renderPass
}

// Pipeline returns the sprite pipeline.
func (s *Shared) Pipeline() gfx.Pipeline {
	return s.pipeline
}

// Release frees the shared resources.
func (s *Shared) Release() {
	s.pipeline.Release()
	s.renderPass.Release()
}
