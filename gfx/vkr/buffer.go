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

// newBuffer creates, configures, allocates and binds a new buffer.
func newBuffer(dev vk.Device, size uint, usage vk.BufferUsageFlagBits, ma *MemoryAllocator) (*Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := mapResult("vk.CreateBuffer", vk.CreateBuffer(dev, &createInfo, nil, &buffer)); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &req)
	req.Deref()

	memory, err := ma.Malloc(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return nil, err
	}

	vk.BindBufferMemory(dev, buffer, memory.Get(), vk.DeviceSize(memory.Offset()))

	return &Buffer{
		device: dev,
		buffer: buffer,
		memory: memory,
		size:   int(size),
	}, nil
}

// Buffer implements gfx.Buffer over a host-visible vulkan buffer.
type Buffer struct {
	device vk.Device
	buffer vk.Buffer
	memory Memory
	size   int
}

// Size implements gfx.Buffer.
func (b *Buffer) Size() int {
	return b.size
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
}

func (b *Buffer) upload(data []byte) {
	mapped := b.memory.Map()
	vk.Memcopy(mapped, data)
	b.memory.Unmap()
}

// NewUniformBuffer implements gfx.Device. The write is host coherent,
// the returned token is already complete.
func (d *Device) NewUniformBuffer(q gfx.Queue, data []byte) (gfx.Buffer, gfx.Token, error) {
	buffer, err := newBuffer(d.device, uint(len(data)), vk.BufferUsageUniformBufferBit, d.alloc)
	if err != nil {
		return nil, nil, err
	}
	buffer.upload(data)
	return buffer, signaledToken{}, nil
}

// NewVertexBuffer implements gfx.Device.
func (d *Device) NewVertexBuffer(q gfx.Queue, data []byte) (gfx.Buffer, gfx.Token, error) {
	buffer, err := newBuffer(d.device, uint(len(data)), vk.BufferUsageVertexBufferBit, d.alloc)
	if err != nil {
		return nil, nil, err
	}
	buffer.upload(data)
	return buffer, signaledToken{}, nil
}

// NewRenderImage implements gfx.Device.
func (d *Device) NewRenderImage(extent gfx.Extent, format gfx.Format) (gfx.RenderImage, error) {
	vkFormat := formatToVk(format)

	usage := vk.ImageUsageColorAttachmentBit | vk.ImageUsageInputAttachmentBit
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if format == gfx.FormatD16Unorm {
		usage = vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageInputAttachmentBit
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vkFormat,
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var image vk.Image
	if err := mapResult("vk.CreateImage", vk.CreateImage(d.device, &ici, nil, &image)); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()

	memory, err := d.alloc.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return nil, err
	}
	if err := vk.Error(vk.BindImageMemory(d.device, image, memory.Get(), 0)); err != nil {
		memory.Release()
		vk.DestroyImage(d.device, image, nil)
		return nil, errors.New("vk.BindImageMemory(): " + err.Error())
	}

	view, err := newImageView(d.device, image, vkFormat, aspect)
	if err != nil {
		memory.Release()
		vk.DestroyImage(d.device, image, nil)
		return nil, err
	}

	return &RenderImage{
		device: d.device,
		image:  image,
		view:   view,
		memory: memory,
		extent: extent,
		format: format,
	}, nil
}

// RenderImage implements gfx.RenderImage, an application-owned
// attachment image.
type RenderImage struct {
	device vk.Device
	image  vk.Image
	view   vk.ImageView
	memory Memory
	extent gfx.Extent
	format gfx.Format
}

// Extent implements gfx.Image.
func (i *RenderImage) Extent() gfx.Extent { return i.extent }

// Format implements gfx.Image.
func (i *RenderImage) Format() gfx.Format { return i.format }

// Release implements gfx.RenderImage.
func (i *RenderImage) Release() {
	vk.DestroyImageView(i.device, i.view, nil)
	vk.DestroyImage(i.device, i.image, nil)
	i.memory.Release()
}

func (i *RenderImage) imageView() vk.ImageView { return i.view }

// NewTexture implements gfx.Device. Pixels go into a linear tiled
// host-visible image, sampled directly.
func (d *Device) NewTexture(q gfx.Queue, extent gfx.Extent, pix []byte) (gfx.Texture, gfx.Token, error) {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatR8g8b8a8Unorm,
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingLinear,
		InitialLayout: vk.ImageLayoutPreinitialized,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
	}

	var image vk.Image
	if err := mapResult("vk.CreateImage", vk.CreateImage(d.device, &ici, nil, &image)); err != nil {
		return nil, nil, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()

	memory, err := d.alloc.Malloc(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return nil, nil, err
	}
	if err := vk.Error(vk.BindImageMemory(d.device, image, memory.Get(), 0)); err != nil {
		memory.Release()
		vk.DestroyImage(d.device, image, nil)
		return nil, nil, errors.New("vk.BindImageMemory(): " + err.Error())
	}

	mapped := memory.Map()
	vk.Memcopy(mapped, pix)
	memory.Unmap()

	view, err := newImageView(d.device, image, vk.FormatR8g8b8a8Unorm, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		memory.Release()
		vk.DestroyImage(d.device, image, nil)
		return nil, nil, err
	}

	sampler, err := newSampler(d.device)
	if err != nil {
		vk.DestroyImageView(d.device, view, nil)
		memory.Release()
		vk.DestroyImage(d.device, image, nil)
		return nil, nil, err
	}

	set, err := d.newSamplerSet(view, sampler)
	if err != nil {
		vk.DestroySampler(d.device, sampler, nil)
		vk.DestroyImageView(d.device, view, nil)
		memory.Release()
		vk.DestroyImage(d.device, image, nil)
		return nil, nil, err
	}

	return &Texture{
		device:  d.device,
		pool:    d.descriptorPool,
		image:   image,
		view:    view,
		sampler: sampler,
		set:     set,
		memory:  memory,
		extent:  extent,
	}, signaledToken{}, nil
}

// newSamplerSet allocates the texture's descriptor set from the
// device sampler layout and points it at the view.
func (d *Device) newSamplerSet(view vk.ImageView, sampler vk.Sampler) (vk.DescriptorSet, error) {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.samplerLayout},
	}

	sets := make([]vk.DescriptorSet, 1)
	if err := mapResult("vk.AllocateDescriptorSets", vk.AllocateDescriptorSets(d.device, &dsai, &sets[0])); err != nil {
		return vk.NullDescriptorSet, err
	}

	// Linear tiled host images stay in general layout.
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          sets[0],
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}
	vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return sets[0], nil
}

// Texture implements gfx.Texture.
type Texture struct {
	device  vk.Device
	pool    vk.DescriptorPool
	image   vk.Image
	view    vk.ImageView
	sampler vk.Sampler
	set     vk.DescriptorSet
	memory  Memory
	extent  gfx.Extent
}

// Extent implements gfx.Texture.
func (t *Texture) Extent() gfx.Extent { return t.extent }

// Release implements gfx.Texture.
func (t *Texture) Release() {
	vk.FreeDescriptorSets(t.device, t.pool, 1, &t.set)
	vk.DestroySampler(t.device, t.sampler, nil)
	vk.DestroyImageView(t.device, t.view, nil)
	vk.DestroyImage(t.device, t.image, nil)
	t.memory.Release()
}

func newSampler(device vk.Device) (vk.Sampler, error) {
	sci := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		MaxAnisotropy: 1,
	}
	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(device, &sci, nil, &sampler)); err != nil {
		return vk.NullSampler, errors.New("vk.CreateSampler(): " + err.Error())
	}
	return sampler, nil
}
