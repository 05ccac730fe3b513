// Package mesh implements a 3D batch: meshes rendered through a
// deferred pass that first fills geometry buffers, then resolves
// lighting into a history attachment and finally composites onto the
// target image.
package mesh

import (
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/model"
)

// Geometry buffer formats.
const (
	albedoFormat = gfx.FormatA2B10G10R10Unorm
	normalFormat = gfx.FormatR32G32B32A32Sfloat
	depthFormat  = gfx.FormatD16Unorm
)

// Attachment order inside the pass and its framebuffers.
const (
	attachmentAlbedo = iota
	attachmentNormal
	attachmentDepth
	attachmentHistory
	attachmentOut
	attachmentCount
)

// NewMeshPass builds the deferred render pass and its three pipelines
// for targets of the given format.
func NewMeshPass(device gfx.Device, format gfx.Format) (*MeshPass, error) {
	renderPass, err := device.NewRenderPass(gfx.RenderPassDesc{
		Attachments: []gfx.Attachment{
			{Format: albedoFormat, Load: gfx.LoadClear, Store: true},
			{Format: normalFormat, Load: gfx.LoadClear, Store: true},
			{Format: depthFormat, Load: gfx.LoadClear, Store: true},
			{Format: format, Load: gfx.LoadDontCare, Store: true},
			{Format: format, Load: gfx.LoadDontCare, Store: true},
		},
		Subpasses: []gfx.Subpass{
			{Colors: []int{attachmentAlbedo, attachmentNormal}, DepthStencil: attachmentDepth},
			{Colors: []int{attachmentHistory}, DepthStencil: -1, Inputs: []int{attachmentAlbedo, attachmentNormal, attachmentDepth}},
			{Colors: []int{attachmentOut}, DepthStencil: -1, Inputs: []int{attachmentHistory}},
		},
	})
	if err != nil {
		return nil, err
	}

	gbuffers, err := device.NewPipeline(renderPass, gfx.PipelineDesc{
		VertexShader:   "mesh_gbuffers.vert",
		FragmentShader: "mesh_gbuffers.frag",
		Subpass:        0,
		DepthTest:      true,
		VertexStride:   model.VertexStride,
		VertexAttrs: []gfx.VertexAttr{
			{Location: 0, Offset: 0, Format: gfx.FormatR32G32B32Sfloat},
			{Location: 1, Offset: 12, Format: gfx.FormatR32G32B32Sfloat},
			{Location: 2, Offset: 24, Format: gfx.FormatR32G32B32A32Sfloat},
		},
	})
	if err != nil {
		renderPass.Release()
		return nil, err
	}

	// The resolve subpasses draw a single fullscreen triangle
	// generated in the vertex shader, no vertex input.
	history, err := device.NewPipeline(renderPass, gfx.PipelineDesc{
		VertexShader:   "mesh_history.vert",
		FragmentShader: "mesh_history.frag",
		Subpass:        1,
		InputCount:     3,
	})
	if err != nil {
		gbuffers.Release()
		renderPass.Release()
		return nil, err
	}
	target, err := device.NewPipeline(renderPass, gfx.PipelineDesc{
		VertexShader:   "mesh_target.vert",
		FragmentShader: "mesh_target.frag",
		Subpass:        2,
		InputCount:     1,
	})
	if err != nil {
		history.Release()
		gbuffers.Release()
		renderPass.Release()
		return nil, err
	}

	return &MeshPass{
		device:   device,
		format:   format,
		pass:     renderPass,
		gbuffers: gbuffers,
		history:  history,
		target:   target,
	}, nil
}

// MeshPass holds the deferred render pass and the pipelines shared by
// all mesh batches on one device.
type MeshPass struct {
	device   gfx.Device
	format   gfx.Format
	pass     gfx.RenderPass
	gbuffers gfx.Pipeline
	history  gfx.Pipeline
	target   gfx.Pipeline
}

// Device returns the device the pass lives on.
func (p *MeshPass) Device() gfx.Device {
	return p.device
}

// RenderPass returns the deferred render pass.
func (p *MeshPass) RenderPass() gfx.RenderPass {
	return p.pass
}

// PipelineGBuffers returns the geometry buffer fill pipeline.
func (p *MeshPass) PipelineGBuffers() gfx.Pipeline {
	return p.gbuffers
}

// Release frees the pass and its pipelines.
func (p *MeshPass) Release() {
	p.target.Release()
	p.history.Release()
	p.gbuffers.Release()
	p.pass.Release()
}
