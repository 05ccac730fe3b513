// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"math"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/prism/gfx"
)

// SwapImage is one presentable image of a swapchain.
type SwapImage struct {
	image  vk.Image
	view   vk.ImageView
	extent gfx.Extent
	format gfx.Format
}

// Extent implements gfx.Image.
func (i *SwapImage) Extent() gfx.Extent { return i.extent }

// Format implements gfx.Image.
func (i *SwapImage) Format() gfx.Format { return i.format }

func (i *SwapImage) imageView() vk.ImageView { return i.view }

// NewSwapchain creates a swapchain for the device surface.
func NewSwapchain(device *Device, extent gfx.Extent, minImages uint32) (*Swapchain, error) {
	format, colorspace, err := chooseSurfaceFormat(device.physical, device.surface)
	if err != nil {
		return nil, err
	}

	s := &Swapchain{
		device:     device,
		format:     format,
		colorspace: colorspace,
		minImages:  minImages,
	}
	if err := s.create(extent, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return s, nil
}

// Swapchain implements gfx.Swapchain. Recreate hands the retired
// swapchain to the driver through OldSwapchain and replaces the image
// slice wholesale, so stale handles never leak back to callers.
type Swapchain struct {
	device     *Device
	handle     vk.Swapchain
	format     vk.Format
	colorspace vk.ColorSpace
	extent     gfx.Extent
	minImages  uint32

	images []gfx.Image
	views  []vk.ImageView
}

// Format implements gfx.Swapchain.
func (s *Swapchain) Format() gfx.Format {
	return formatFromVk(s.format)
}

// Extent implements gfx.Swapchain.
func (s *Swapchain) Extent() gfx.Extent {
	return s.extent
}

// Images implements gfx.Swapchain.
func (s *Swapchain) Images() []gfx.Image {
	return s.images
}

// Acquire implements gfx.Swapchain.
func (s *Swapchain) Acquire() (int, gfx.Token, error) {
	fence, err := newFence(s.device.device)
	if err != nil {
		return 0, nil, err
	}

	var index uint32
	result := vk.AcquireNextImage(s.device.device, s.handle, math.MaxUint64, vk.NullSemaphore, fence.fence, &index)
	if err := mapResult("vk.AcquireNextImage", result); err != nil {
		fence.Free()
		return 0, nil, err
	}
	return int(index), fence, nil
}

// Recreate implements gfx.Swapchain.
func (s *Swapchain) Recreate(extent gfx.Extent) error {
	var capabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(s.device.physical, s.device.surface, &capabilities)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	capabilities.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	if extent.Width == 0 || extent.Height == 0 ||
		extent.Width < capabilities.MinImageExtent.Width ||
		extent.Height < capabilities.MinImageExtent.Height ||
		extent.Width > capabilities.MaxImageExtent.Width ||
		extent.Height > capabilities.MaxImageExtent.Height {
		return gfx.ErrUnsupportedExtent
	}

	vk.DeviceWaitIdle(s.device.device)

	old := s.handle
	s.destroyViews()
	if err := s.create(extent, old); err != nil {
		return err
	}
	vk.DestroySwapchain(s.device.device, old, nil)

	log.Debugf("swapchain recreated at %dx%d", extent.Width, extent.Height)
	return nil
}

// Release implements gfx.Swapchain.
func (s *Swapchain) Release() {
	s.destroyViews()
	vk.DestroySwapchain(s.device.device, s.handle, nil)
}

func (s *Swapchain) create(extent gfx.Extent, old vk.Swapchain) error {
	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         s.device.surface,
		MinImageCount:   s.minImages,
		ImageFormat:     s.format,
		ImageColorSpace: s.colorspace,
		ImageExtent: vk.Extent2D{
			Width:  extent.Width,
			Height: extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}

	var swapchain vk.Swapchain
	if err := mapResult("vk.CreateSwapchain", vk.CreateSwapchain(s.device.device, &scci, nil, &swapchain)); err != nil {
		return err
	}
	s.handle = swapchain
	s.extent = extent

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(s.device.device, s.handle, &numImages, nil)); err != nil {
		return errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}
	vkImages := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(s.device.device, s.handle, &numImages, vkImages)); err != nil {
		return errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}

	images := make([]gfx.Image, numImages)
	views := make([]vk.ImageView, numImages)
	for idx, image := range vkImages {
		view, err := newImageView(s.device.device, image, s.format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		views[idx] = view
		images[idx] = &SwapImage{
			image:  image,
			view:   view,
			extent: extent,
			format: formatFromVk(s.format),
		}
	}
	s.images = images
	s.views = views
	return nil
}

func (s *Swapchain) destroyViews() {
	for _, view := range s.views {
		vk.DestroyImageView(s.device.device, view, nil)
	}
	s.views = nil
}

func chooseSurfaceFormat(physical vk.PhysicalDevice, surface vk.Surface) (vk.Format, vk.ColorSpace, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, nil)); err != nil {
		return 0, 0, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, formats)); err != nil {
		return 0, 0, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}

	for idx := range formats {
		formats[idx].Deref()
		if formats[idx].Format == vk.FormatB8g8r8a8Srgb {
			return formats[idx].Format, formats[idx].ColorSpace, nil
		}
	}
	return formats[0].Format, formats[0].ColorSpace, nil
}

func newImageView(device vk.Device, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(device, &ivci, nil, &view)); err != nil {
		return vk.NullImageView, errors.New("vk.CreateImageView(): " + err.Error())
	}
	return view, nil
}
