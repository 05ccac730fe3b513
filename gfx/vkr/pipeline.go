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

// inputBindingBase is the first set layout binding used for subpass
// input attachments.
const inputBindingBase = 1

// NewPipeline implements gfx.Device. Shaders are looked up by the
// names they were loaded under, viewport and scissor are dynamic so
// pipelines survive target resizes.
func (d *Device) NewPipeline(rp gfx.RenderPass, desc gfx.PipelineDesc) (gfx.Pipeline, error) {
	pass, ok := rp.(*RenderPass)
	if !ok {
		return nil, errors.New("vkr: render pass from another backend")
	}

	vertex, ok := d.shaders[desc.VertexShader]
	if !ok {
		return nil, errors.New("vkr: shader not loaded: " + desc.VertexShader)
	}
	fragment, ok := d.shaders[desc.FragmentShader]
	if !ok {
		return nil, errors.New("vkr: shader not loaded: " + desc.FragmentShader)
	}

	/* Layout */
	// Set 0 holds the uniform block and subpass inputs, set 1 is the
	// device-wide sampler layout carried by textures.
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}}
	for input := 0; input < desc.InputCount; input++ {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         inputBindingBase + uint32(input),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeInputAttachment,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}

	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var setLayout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &dslci, nil, &setLayout)); err != nil {
		return nil, errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 2,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout, d.samplerLayout},
	}

	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(d.device, &plci, nil, &layout)); err != nil {
		vk.DestroyDescriptorSetLayout(d.device, setLayout, nil)
		return nil, errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}

	/* Vertex input */
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if desc.VertexStride > 0 {
		attrs := make([]vk.VertexInputAttributeDescription, len(desc.VertexAttrs))
		for idx, attr := range desc.VertexAttrs {
			attrs[idx] = vk.VertexInputAttributeDescription{
				Binding:  0,
				Location: attr.Location,
				Offset:   attr.Offset,
				Format:   formatToVk(attr.Format),
			}
		}
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attrs))
		vertexInput.PVertexAttributeDescriptions = attrs
	}

	depthEnabled := vk.Bool32(vk.False)
	if desc.DepthTest {
		depthEnabled = vk.Bool32(vk.True)
	}

	shaderStages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vertex,
		PName:  "main\x00",
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: fragment,
		PName:  "main\x00",
	}}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(shaderStages)),
		PStages:           shaderStages,
		PVertexInputState: &vertexInput,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  depthEnabled,
			DepthWriteEnable: depthEnabled,
			DepthCompareOp:   vk.CompareOpLessOrEqual,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(pass.desc.Subpasses[desc.Subpass].Colors)),
			PAttachments:    blendAttachments(len(pass.desc.Subpasses[desc.Subpass].Colors)),
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     layout,
		RenderPass: pass.renderPass,
		Subpass:    uint32(desc.Subpass),
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := mapResult("vk.CreateGraphicsPipelines", vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		vk.DestroyPipelineLayout(d.device, layout, nil)
		vk.DestroyDescriptorSetLayout(d.device, setLayout, nil)
		return nil, err
	}

	return &Pipeline{
		device:    d.device,
		pipeline:  pipelines[0],
		layout:    layout,
		setLayout: setLayout,
	}, nil
}

func blendAttachments(count int) []vk.PipelineColorBlendAttachmentState {
	states := make([]vk.PipelineColorBlendAttachmentState, count)
	for idx := range states {
		states[idx] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: 0xF,
			BlendEnable:    vk.False,
		}
	}
	return states
}

// Pipeline implements gfx.Pipeline.
type Pipeline struct {
	device    vk.Device
	pipeline  vk.Pipeline
	layout    vk.PipelineLayout
	setLayout vk.DescriptorSetLayout
}

// Release implements gfx.Pipeline.
func (p *Pipeline) Release() {
	vk.DestroyPipeline(p.device, p.pipeline, nil)
	vk.DestroyPipelineLayout(p.device, p.layout, nil)
	vk.DestroyDescriptorSetLayout(p.device, p.setLayout, nil)
}

// NewDescriptorSet implements gfx.Device.
func (d *Device) NewDescriptorSet(p gfx.Pipeline, binding uint32, buf gfx.Buffer) (gfx.DescriptorSet, error) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		return nil, errors.New("vkr: pipeline from another backend")
	}
	buffer, ok := buf.(*Buffer)
	if !ok {
		return nil, errors.New("vkr: buffer from another backend")
	}

	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pipeline.setLayout},
	}

	sets := make([]vk.DescriptorSet, 1)
	if err := mapResult("vk.AllocateDescriptorSets", vk.AllocateDescriptorSets(d.device, &dsai, &sets[0])); err != nil {
		return nil, err
	}

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          sets[0],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Get(),
			Offset: 0,
			Range:  vk.DeviceSize(buffer.Size()),
		}},
	}
	vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)

	return &DescriptorSet{
		device: d.device,
		pool:   d.descriptorPool,
		set:    sets[0],
	}, nil
}

// NewInputDescriptorSet implements gfx.Device.
func (d *Device) NewInputDescriptorSet(p gfx.Pipeline, images ...gfx.RenderImage) (gfx.DescriptorSet, error) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		return nil, errors.New("vkr: pipeline from another backend")
	}

	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pipeline.setLayout},
	}

	sets := make([]vk.DescriptorSet, 1)
	if err := mapResult("vk.AllocateDescriptorSets", vk.AllocateDescriptorSets(d.device, &dsai, &sets[0])); err != nil {
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, len(images))
	for idx, image := range images {
		viewer, ok := image.(imageViewer)
		if !ok {
			vk.FreeDescriptorSets(d.device, d.descriptorPool, 1, &sets[0])
			return nil, errors.New("vkr: image from another backend")
		}
		writes[idx] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      inputBindingBase + uint32(idx),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeInputAttachment,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   viewer.imageView(),
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		}
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)

	return &DescriptorSet{
		device: d.device,
		pool:   d.descriptorPool,
		set:    sets[0],
	}, nil
}

// DescriptorSet implements gfx.DescriptorSet.
type DescriptorSet struct {
	device vk.Device
	pool   vk.DescriptorPool
	set    vk.DescriptorSet
}

// Release implements gfx.DescriptorSet.
func (s *DescriptorSet) Release() {
	vk.FreeDescriptorSets(s.device, s.pool, 1, &s.set)
}
