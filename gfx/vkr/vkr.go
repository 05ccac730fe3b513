// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the vulkan renderer backend.
package vkr

import (
	"errors"
	"fmt"
	"unsafe"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/prism/gfx"
)

// NewInstance creates a Vulkan instance with the given extensions.
// procAddr is the GetInstanceProcAddr pointer from the windowing
// library, pass nil to use the system loader.
func NewInstance(appName string, extensions []string, procAddr unsafe.Pointer) (*Instance, error) {
	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(appName),
		PEngineName:        "Prism\x00",
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(instance)

	devices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	for _, dev := range devices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &properties)
		properties.Deref()
		log.Infof("Found device: %s", vk.ToString(properties.DeviceName[:]))
	}

	return &Instance{
		instance: instance,
		devices:  devices,
	}, nil
}

// Instance wraps the Vulkan API instance and the physical devices it
// enumerated.
type Instance struct {
	instance vk.Instance
	devices  []vk.PhysicalDevice
}

// Handle returns the vk.Instance for surface creation.
func (i *Instance) Handle() vk.Instance {
	return i.instance
}

// AvailableDevices returns handles of the enumerated physical devices.
func (i *Instance) AvailableDevices() []vk.PhysicalDevice {
	return i.devices
}

// Release destroys the instance.
func (i *Instance) Release() {
	i.devices = nil
	vk.DestroyInstance(i.instance, nil)
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	if deviceCount == 0 {
		return nil, errors.New("no vulkan capable devices found")
	}
	devices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, devices)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return devices, nil
}

// mapResult translates the transient and exhaustion results into the
// gfx sentinels, anything else surfaces as an opaque error.
func mapResult(call string, result vk.Result) error {
	switch result {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return gfx.ErrOutOfDate
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		return gfx.ErrOutOfMemory
	default:
		return errors.New(call + "(): " + vk.Error(result).Error())
	}
}

func formatToVk(format gfx.Format) vk.Format {
	switch format {
	case gfx.FormatB8G8R8A8SRGB:
		return vk.FormatB8g8r8a8Srgb
	case gfx.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gfx.FormatA2B10G10R10Unorm:
		return vk.FormatA2b10g10r10UnormPack32
	case gfx.FormatD16Unorm:
		return vk.FormatD16Unorm
	case gfx.FormatR32G32Sfloat:
		return vk.FormatR32g32Sfloat
	case gfx.FormatR32G32B32Sfloat:
		return vk.FormatR32g32b32Sfloat
	case gfx.FormatR32G32B32A32Sfloat:
		return vk.FormatR32g32b32a32Sfloat
	default:
		return vk.FormatUndefined
	}
}

func formatFromVk(format vk.Format) gfx.Format {
	switch format {
	case vk.FormatB8g8r8a8Srgb:
		return gfx.FormatB8G8R8A8SRGB
	case vk.FormatR8g8b8a8Unorm:
		return gfx.FormatR8G8B8A8Unorm
	case vk.FormatA2b10g10r10UnormPack32:
		return gfx.FormatA2B10G10R10Unorm
	case vk.FormatD16Unorm:
		return gfx.FormatD16Unorm
	default:
		return gfx.FormatUndefined
	}
}

func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, s+"\x00")
	}
	return safe
}
