package window

import (
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/prism/gfx"
)

// Surface is a platform window with a device, a graphics+present
// queue and a swapchain bound to it.
type Surface interface {

	// ID returns the identifier events use for this window.
	ID() ID

	// Device returns the rendering device of the surface.
	Device() gfx.Device

	// Queue returns a queue capable of graphics and present.
	Queue() gfx.Queue

	// Swapchain returns the swapchain of the surface.
	Swapchain() gfx.Swapchain

	// DrawableExtent returns the current drawable size.
	DrawableExtent() gfx.Extent

	// Close destroys the platform window.
	Close()
}

// Backend creates platform surfaces.
type Backend interface {

	// CreateSurface creates a window with an initialised swapchain.
	CreateSurface(title string, extent gfx.Extent) (Surface, error)
}

// BuildFrame generates one frame worth of rendering work. It receives
// the target image slot index and the chain the frame must be ordered
// after, and returns the chain representing the frame's commands with
// everything already joined in.
type BuildFrame func(w *Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error)

// New creates a window on the backend and registers it with the
// events loop for resize tracking.
func New(backend Backend, events *EventsLoop, title string, extent gfx.Extent) (*Window, error) {
	surface, err := backend.CreateSurface(title, extent)
	if err != nil {
		return nil, err
	}

	w := &Window{
		surface:   surface,
		device:    surface.Device(),
		queue:     surface.Queue(),
		swapchain: surface.Swapchain(),
		resized:   events.track(surface.ID()),
		idRoot:    gfx.NewObjectIDRoot(),
	}
	w.images = w.swapchain.Images()
	return w, nil
}

// Window drives the per-frame presentation state machine over one
// surface. It owns the swapchain, the current target image sequence
// and the single pending FutureChain of the surface. A Window is
// driven from one goroutine, the frame loop.
type Window struct {
	surface   Surface
	device    gfx.Device
	queue     gfx.Queue
	swapchain gfx.Swapchain
	images    []gfx.Image
	previous  *gfx.FutureChain
	resized   *atomic.Bool
	idRoot    gfx.ObjectIDRoot
}

// Present runs one frame: it handles a pending resize, acquires a
// target image slot, invokes buildFrame with the slot and the chain
// the frame must follow, then presents the result.
//
// Device-reported staleness is never an error. An unsupported extent
// during recreation, an out-of-date acquire or an out-of-date present
// all set the resize flag and skip the frame, returning nil, so the
// next call self-corrects. Resource exhaustion propagates verbatim,
// with the pending chain kept intact so a recovering caller still
// gets its frames ordered.
func (w *Window) Present(buildFrame BuildFrame) error {
	if w.resized.Swap(false) {
		extent := w.surface.DrawableExtent()
		switch err := w.swapchain.Recreate(extent); {
		case err == nil:
			w.images = w.swapchain.Images()
			log.Debugf("window: swapchain recreated at %dx%d", extent.Width, extent.Height)
		case errors.Is(err, gfx.ErrUnsupportedExtent), errors.Is(err, gfx.ErrOutOfDate):
			// Transient mid-resize condition, try again next frame.
			w.resized.Store(true)
			return nil
		case errors.Is(err, gfx.ErrOutOfMemory):
			w.resized.Store(true)
			return err
		default:
			panic("window: swapchain recreation: " + err.Error())
		}
	}

	slot, acquire, err := w.swapchain.Acquire()
	if errors.Is(err, gfx.ErrOutOfDate) {
		w.resized.Store(true)
		return nil
	} else if err != nil {
		panic("window: image acquisition: " + err.Error())
	}

	chain := w.previous
	w.previous = nil
	chain.Cleanup()
	chain = chain.Join(gfx.NewFutureChain(acquire))

	built, err := buildFrame(w, slot, chain)
	if err != nil {
		// The frame never reached the queue. Keep the chain pending so
		// the next frame still orders after the prior work, acquire
		// token included.
		w.previous = chain
		return err
	}
	chain = built

	fence, err := w.queue.Present(w.swapchain, slot, chain)
	if errors.Is(err, gfx.ErrOutOfDate) {
		w.resized.Store(true)
		chain.Free()
		return nil
	} else if err != nil {
		panic("window: present: " + err.Error())
	}

	w.previous = chain.Join(gfx.NewFutureChain(fence))
	return nil
}

// JoinFuture merges an externally produced chain, for example an
// initial resource upload, into the window's pending chain.
func (w *Window) JoinFuture(chain *gfx.FutureChain) {
	w.previous = w.previous.Join(chain)
}

// Pending returns the chain of work still in flight for this surface.
// May be nil when nothing is pending.
func (w *Window) Pending() *gfx.FutureChain {
	return w.previous
}

// Device returns the rendering device of the window.
func (w *Window) Device() gfx.Device {
	return w.device
}

// Queue returns the graphics and present queue of the window.
func (w *Window) Queue() gfx.Queue {
	return w.queue
}

// DrawableExtent returns the current drawable size of the surface.
func (w *Window) DrawableExtent() gfx.Extent {
	return w.surface.DrawableExtent()
}

// Close releases the pending chain and destroys the surface.
func (w *Window) Close() {
	w.previous.Free()
	w.previous = nil
	w.swapchain.Release()
	w.surface.Close()
}

// Format implements gfx.RenderTarget.
func (w *Window) Format() gfx.Format {
	return w.swapchain.Format()
}

// IDRoot implements gfx.RenderTarget.
func (w *Window) IDRoot() *gfx.ObjectIDRoot {
	return &w.idRoot
}

// Images implements gfx.RenderTarget.
func (w *Window) Images() []gfx.Image {
	return w.images
}
