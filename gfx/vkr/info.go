// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

// DeviceInfo describes one enumerated physical device.
type DeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        vk.DeviceSize
}

// DeviceInfo collects properties, extensions, layers and total heap
// memory of every enumerated physical device. Devices that fail
// enumeration are marked Invalid instead of aborting the report.
func (i *Instance) DeviceInfo() []DeviceInfo {
	infos := make([]DeviceInfo, len(i.devices))
	for idx, device := range i.devices {
		infos[idx] = describeDevice(device)
	}
	return infos
}

func describeDevice(device vk.PhysicalDevice) DeviceInfo {
	var info DeviceInfo

	var numExtensions uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &numExtensions, nil)); err != nil {
		info.Invalid = true
	}
	extensions := make([]vk.ExtensionProperties, numExtensions)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &numExtensions, extensions)); err != nil {
		info.Invalid = true
	}
	for _, ext := range extensions {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	var numLayers uint32
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numLayers, nil)); err != nil {
		info.Invalid = true
	}
	layers := make([]vk.LayerProperties, numLayers)
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numLayers, layers)); err != nil {
		info.Invalid = true
	}
	for _, layer := range layers {
		layer.Deref()
		info.Layers = append(info.Layers, vk.ToString(layer.LayerName[:]))
	}

	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(device, &memoryProperties)
	memoryProperties.Deref()
	for heap := uint32(0); heap < memoryProperties.MemoryHeapCount; heap++ {
		memoryProperties.MemoryHeaps[heap].Deref()
		info.Memory += memoryProperties.MemoryHeaps[heap].Size
	}

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &properties)
	properties.Deref()
	info.ID = int(properties.DeviceID)
	info.VendorID = int(properties.VendorID)
	info.Name = vk.ToString(properties.DeviceName[:])
	info.DriverVersion = int(properties.DriverVersion)

	return info
}
