// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/prism/core"
)

// NewDevice creates a logical device on the first suitable physical
// device, with one combined graphics and present queue.
func NewDevice(instance *Instance, surface vk.Surface, cfg core.RendererConfiguration) (*Device, error) {
	physical := instance.AvailableDevices()[0]

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physical, &properties)
	properties.Deref()
	log.Infof("Using device: %s", vk.ToString(properties.DeviceName[:]))

	queueIndex, err := findQueueFamily(physical, surface)
	if err != nil {
		return nil, err
	}

	requiredExtensions := append([]string{vk.KhrSwapchainExtensionName}, cfg.DeviceExtensions...)

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: queueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: safeStrings(requiredExtensions),
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(physical, &dci, nil, &device)); err != nil {
		return nil, errors.New("vk.CreateDevice(): " + err.Error())
	}

	var queue vk.Queue
	vk.GetDeviceQueue(device, queueIndex, 0, &queue)

	alloc, err := NewMemoryAllocator(device, physical)
	if err != nil {
		vk.DestroyDevice(device, nil)
		return nil, err
	}

	d := &Device{
		physical:   physical,
		device:     device,
		surface:    surface,
		queueIndex: queueIndex,
		alloc:      alloc,
	}

	if err := d.createCommandPool(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.createDescriptorPool(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.createSamplerLayout(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.loadShaders(cfg.ShaderDirectory); err != nil {
		d.Release()
		return nil, err
	}

	d.queue = &Queue{device: d, queue: queue, family: queueIndex}
	return d, nil
}

// Device implements gfx.Device on a vulkan logical device.
type Device struct {
	physical   vk.PhysicalDevice
	device     vk.Device
	surface    vk.Surface
	queueIndex uint32
	queue      *Queue
	alloc      *MemoryAllocator

	commandPool    vk.CommandPool
	descriptorPool vk.DescriptorPool
	samplerLayout  vk.DescriptorSetLayout
	shaders        map[string]vk.ShaderModule
}

// Queue returns the combined graphics and present queue.
func (d *Device) Queue() *Queue {
	return d.queue
}

// Wait implements gfx.Device.
func (d *Device) Wait() {
	vk.DeviceWaitIdle(d.device)
}

// Release implements gfx.Device.
func (d *Device) Release() {
	vk.DeviceWaitIdle(d.device)
	for _, shader := range d.shaders {
		vk.DestroyShaderModule(d.device, shader, nil)
	}
	if d.samplerLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(d.device, d.samplerLayout, nil)
	}
	if d.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(d.device, d.descriptorPool, nil)
	}
	if d.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.device, d.commandPool, nil)
	}
	vk.DestroyDevice(d.device, nil)
}

func findQueueFamily(physical vk.PhysicalDevice, surface vk.Surface) (uint32, error) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &queueFamilyCount, nil)
	if queueFamilyCount == 0 {
		return 0, errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no queuefamilies on GPU")
	}
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &queueFamilyCount, queueFamilies)

	for idx := uint32(0); idx < queueFamilyCount; idx++ {
		queueFamilies[idx].Deref()
		if queueFamilies[idx].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(physical, idx, surface, &supportsPresent)
		if supportsPresent.B() {
			return idx, nil
		}
	}
	return 0, errors.New("no queue family with graphics and present support")
}

func (d *Device) createCommandPool() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(d.device, &cpci, nil, &commandPool)); err != nil {
		return errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	d.commandPool = commandPool
	return nil
}

func (d *Device) createDescriptorPool() error {
	const maxSets = 256
	dpci := vk.DescriptorPoolCreateInfo{
		SType:   vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:   vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets: maxSets,
		PoolSizeCount: 3,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: maxSets,
		}, {
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: maxSets,
		}, {
			Type:            vk.DescriptorTypeInputAttachment,
			DescriptorCount: maxSets,
		}},
	}

	var descriptorPool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(d.device, &dpci, nil, &descriptorPool)); err != nil {
		return errors.New("vk.CreateDescriptorPool(): " + err.Error())
	}
	d.descriptorPool = descriptorPool
	return nil
}

// createSamplerLayout builds the set layout every texture descriptor
// is allocated from. Pipelines use it as their second set, which lets
// a texture carry one descriptor valid for any pipeline.
func (d *Device) createSamplerLayout() error {
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}},
	}

	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &dslci, nil, &layout)); err != nil {
		return errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
	}
	d.samplerLayout = layout
	return nil
}
