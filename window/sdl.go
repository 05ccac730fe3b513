package window

import (
	"errors"

	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/prism/core"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/gfx/vkr"
)

// NewSDL creates a backend over the SDL video subsystem. SDL must be
// initialised and the vulkan library loaded before the first surface
// is created, see sdl.Init and sdl.VulkanLoadLibrary.
func NewSDL(cfg core.Configuration) *SDL {
	return &SDL{cfg: cfg}
}

// SDL implements Backend. The vulkan instance is created together
// with the first window, instance extensions are only known once a
// vulkan capable window exists.
type SDL struct {
	cfg      core.Configuration
	instance *vkr.Instance
}

// CreateSurface implements Backend.
func (b *SDL) CreateSurface(title string, extent gfx.Extent) (Surface, error) {
	win, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(extent.Width),
		int32(extent.Height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, errors.New("sdl.CreateWindow(): " + err.Error())
	}

	if b.instance == nil {
		instance, err := vkr.NewInstance(title,
			win.VulkanGetInstanceExtensions(),
			sdl.VulkanGetVkGetInstanceProcAddr())
		if err != nil {
			win.Destroy()
			return nil, err
		}
		b.instance = instance
	}

	id, err := win.GetID()
	if err != nil {
		win.Destroy()
		return nil, errors.New("sdl.Window.GetID(): " + err.Error())
	}

	pSurface, err := win.VulkanCreateSurface(b.instance.Handle())
	if err != nil {
		win.Destroy()
		return nil, errors.New("sdl.Window.VulkanCreateSurface(): " + err.Error())
	}
	surface := vk.SurfaceFromPointer(uintptr(pSurface))

	device, err := vkr.NewDevice(b.instance, surface, b.cfg.Renderer)
	if err != nil {
		vk.DestroySurface(b.instance.Handle(), surface, nil)
		win.Destroy()
		return nil, err
	}

	s := &sdlSurface{
		window:   win,
		id:       ID(id),
		instance: b.instance,
		handle:   surface,
		device:   device,
	}
	swapchain, err := vkr.NewSwapchain(device, s.DrawableExtent(), b.cfg.Renderer.SwapchainSize)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.swapchain = swapchain
	return s, nil
}

// Release destroys the shared vulkan instance. Call after every
// surface is closed.
func (b *SDL) Release() {
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// sdlSurface implements Surface over one SDL window.
type sdlSurface struct {
	window    *sdl.Window
	id        ID
	instance  *vkr.Instance
	handle    vk.Surface
	device    *vkr.Device
	swapchain *vkr.Swapchain
}

// ID implements Surface.
func (s *sdlSurface) ID() ID {
	return s.id
}

// Device implements Surface.
func (s *sdlSurface) Device() gfx.Device {
	return s.device
}

// Queue implements Surface.
func (s *sdlSurface) Queue() gfx.Queue {
	return s.device.Queue()
}

// Swapchain implements Surface.
func (s *sdlSurface) Swapchain() gfx.Swapchain {
	return s.swapchain
}

// DrawableExtent implements Surface.
func (s *sdlSurface) DrawableExtent() gfx.Extent {
	width, height := s.window.VulkanGetDrawableSize()
	return gfx.Extent{Width: uint32(width), Height: uint32(height)}
}

// Close implements Surface. The swapchain is released by the Window
// that owns this surface.
func (s *sdlSurface) Close() {
	s.device.Release()
	vk.DestroySurface(s.instance.Handle(), s.handle, nil)
	s.window.Destroy()
}

// SDLEvents implements EventSource over the SDL event queue. Poll
// must run on the thread that initialised the video subsystem.
type SDLEvents struct{}

// Poll implements EventSource. Window housekeeping events map to
// their tagged variants, keyboard and mouse events pass through as
// Input with the original SDL event as payload.
func (SDLEvents) Poll(deliver func(Event)) {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.WindowEvent:
			switch e.Event {
			case sdl.WINDOWEVENT_SIZE_CHANGED:
				deliver(Resized{
					Window: ID(e.WindowID),
					Extent: gfx.Extent{Width: uint32(e.Data1), Height: uint32(e.Data2)},
				})
			case sdl.WINDOWEVENT_CLOSE:
				deliver(Closed{Window: ID(e.WindowID)})
			case sdl.WINDOWEVENT_FOCUS_GAINED:
				deliver(FocusChanged{Window: ID(e.WindowID), Focused: true})
			case sdl.WINDOWEVENT_FOCUS_LOST:
				deliver(FocusChanged{Window: ID(e.WindowID), Focused: false})
			}
		case *sdl.QuitEvent:
			deliver(Closed{Window: 0})
		case *sdl.KeyboardEvent:
			deliver(Input{Window: ID(e.WindowID), Data: e})
		case *sdl.MouseMotionEvent:
			deliver(Input{Window: ID(e.WindowID), Data: e})
		case *sdl.MouseButtonEvent:
			deliver(Input{Window: ID(e.WindowID), Data: e})
		case *sdl.MouseWheelEvent:
			deliver(Input{Window: ID(e.WindowID), Data: e})
		}
	}
}
