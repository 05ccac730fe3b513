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

// imageViewer is satisfied by every image this backend produces.
type imageViewer interface {
	imageView() vk.ImageView
}

// NewRenderPass implements gfx.Device. Color attachments written by
// the final subpass leave the pass in present layout, everything else
// stays an attachment or input.
func (d *Device) NewRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	presented := make(map[int]bool)
	if len(desc.Subpasses) > 0 {
		for _, idx := range desc.Subpasses[len(desc.Subpasses)-1].Colors {
			presented[idx] = true
		}
	}

	attachments := make([]vk.AttachmentDescription, len(desc.Attachments))
	for idx, attachment := range desc.Attachments {
		loadOp := vk.AttachmentLoadOpClear
		if attachment.Load == gfx.LoadDontCare {
			loadOp = vk.AttachmentLoadOpDontCare
		}
		storeOp := vk.AttachmentStoreOpDontCare
		if attachment.Store {
			storeOp = vk.AttachmentStoreOpStore
		}

		finalLayout := vk.ImageLayoutColorAttachmentOptimal
		switch {
		case attachment.Format == gfx.FormatD16Unorm:
			finalLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		case presented[idx]:
			finalLayout = vk.ImageLayoutPresentSrc
		}

		attachments[idx] = vk.AttachmentDescription{
			Format:         formatToVk(attachment.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp,
			StoreOp:        storeOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    finalLayout,
		}
	}

	subpasses := make([]vk.SubpassDescription, len(desc.Subpasses))
	for idx, subpass := range desc.Subpasses {
		colorRefs := make([]vk.AttachmentReference, len(subpass.Colors))
		for c, attachment := range subpass.Colors {
			colorRefs[c] = vk.AttachmentReference{
				Attachment: uint32(attachment),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}
		}
		inputRefs := make([]vk.AttachmentReference, len(subpass.Inputs))
		for i, attachment := range subpass.Inputs {
			inputRefs[i] = vk.AttachmentReference{
				Attachment: uint32(attachment),
				Layout:     vk.ImageLayoutShaderReadOnlyOptimal,
			}
		}

		subpasses[idx] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(colorRefs)),
			PColorAttachments:    colorRefs,
			InputAttachmentCount: uint32(len(inputRefs)),
			PInputAttachments:    inputRefs,
		}
		if subpass.DepthStencil >= 0 {
			subpasses[idx].PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: uint32(subpass.DepthStencil),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}
	}

	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}}
	for idx := 1; idx < len(desc.Subpasses); idx++ {
		dependencies = append(dependencies, vk.SubpassDependency{
			SrcSubpass:      uint32(idx - 1),
			DstSubpass:      uint32(idx),
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		})
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var renderPass vk.RenderPass
	if err := mapResult("vk.CreateRenderPass", vk.CreateRenderPass(d.device, &rpci, nil, &renderPass)); err != nil {
		return nil, err
	}
	return &RenderPass{
		device:     d.device,
		renderPass: renderPass,
		desc:       desc,
	}, nil
}

// RenderPass implements gfx.RenderPass.
type RenderPass struct {
	device     vk.Device
	renderPass vk.RenderPass
	desc       gfx.RenderPassDesc
}

// Release implements gfx.RenderPass.
func (r *RenderPass) Release() {
	vk.DestroyRenderPass(r.device, r.renderPass, nil)
}

// NewFramebuffer implements gfx.Device.
func (d *Device) NewFramebuffer(rp gfx.RenderPass, images ...gfx.Image) (gfx.Framebuffer, error) {
	pass, ok := rp.(*RenderPass)
	if !ok {
		return nil, errors.New("vkr: render pass from another backend")
	}
	if len(images) == 0 {
		return nil, errors.New("vkr: framebuffer needs at least one image")
	}

	views := make([]vk.ImageView, len(images))
	for idx, image := range images {
		viewer, ok := image.(imageViewer)
		if !ok {
			return nil, errors.New("vkr: image from another backend")
		}
		views[idx] = viewer.imageView()
	}

	extent := images[0].Extent()
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.renderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := mapResult("vk.CreateFramebuffer", vk.CreateFramebuffer(d.device, &fci, nil, &framebuffer)); err != nil {
		return nil, err
	}
	return &Framebuffer{
		device:      d.device,
		framebuffer: framebuffer,
		renderPass:  pass,
		extent:      extent,
	}, nil
}

// Framebuffer implements gfx.Framebuffer.
type Framebuffer struct {
	device      vk.Device
	framebuffer vk.Framebuffer
	renderPass  *RenderPass
	extent      gfx.Extent
}

// Extent implements gfx.Framebuffer.
func (f *Framebuffer) Extent() gfx.Extent {
	return f.extent
}

// Release implements gfx.Framebuffer.
func (f *Framebuffer) Release() {
	vk.DestroyFramebuffer(f.device, f.framebuffer, nil)
}
