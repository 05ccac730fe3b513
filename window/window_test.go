package window_test

import (
	"errors"
	"testing"

	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/gfx/gfxtest"
	"github.com/devblok/prism/window"
)

type fakeSource struct {
	pending []window.Event
}

func (s *fakeSource) Poll(fn func(window.Event)) {
	for _, ev := range s.pending {
		fn(ev)
	}
	s.pending = nil
}

type fakeSurface struct {
	id        window.ID
	device    *gfxtest.Device
	queue     *gfxtest.Queue
	swapchain *gfxtest.Swapchain
	extent    gfx.Extent
	closed    bool
}

func (s *fakeSurface) ID() window.ID             { return s.id }
func (s *fakeSurface) Device() gfx.Device        { return s.device }
func (s *fakeSurface) Queue() gfx.Queue          { return s.queue }
func (s *fakeSurface) Swapchain() gfx.Swapchain  { return s.swapchain }
func (s *fakeSurface) DrawableExtent() gfx.Extent { return s.extent }
func (s *fakeSurface) Close()                    { s.closed = true }

type fakeBackend struct {
	surface *fakeSurface
}

func (b *fakeBackend) CreateSurface(title string, extent gfx.Extent) (window.Surface, error) {
	return b.surface, nil
}

func newTestWindow(t *testing.T, imageCount int) (*window.Window, *fakeSurface, *fakeSource, *window.EventsLoop) {
	t.Helper()

	extent := gfx.Extent{Width: 800, Height: 600}
	surface := &fakeSurface{
		id:        1,
		device:    gfxtest.NewDevice(),
		queue:     gfxtest.NewQueue(0),
		swapchain: gfxtest.NewSwapchain(gfx.FormatB8G8R8A8SRGB, extent, imageCount),
		extent:    extent,
	}
	source := &fakeSource{}
	events := window.NewEventsLoop(source)

	win, err := window.New(&fakeBackend{surface: surface}, events, "test", extent)
	if err != nil {
		t.Fatal(err)
	}
	return win, surface, source, events
}

func renderNothing(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
	return chain, nil
}

func TestPresentStoresPendingChain(t *testing.T) {
	win, surface, _, _ := newTestWindow(t, 2)

	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}

	if len(surface.queue.Presented) != 1 {
		t.Fatalf("queue saw %d presents, want 1", len(surface.queue.Presented))
	}
	if win.Pending() == nil {
		t.Error("no pending chain stored after a successful present")
	}
	// Acquire token plus present fence.
	if got := len(win.Pending().Tokens()); got != 2 {
		t.Errorf("pending chain holds %d tokens, want 2", got)
	}
}

func TestPresentOrdersFramesBackToBack(t *testing.T) {
	win, surface, _, _ := newTestWindow(t, 2)

	var incoming *gfx.FutureChain
	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}
	if err := win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
		incoming = chain
		return chain, nil
	}); err != nil {
		t.Fatal(err)
	}

	// Frame two must be ordered after frame one's unfinished work.
	if len(incoming.Tokens()) < 2 {
		t.Errorf("second frame chain holds %d tokens, want previous frame joined in", len(incoming.Tokens()))
	}
	if got := surface.queue.Presented[1].Slot; got != 1 {
		t.Errorf("second frame presented slot %d, want 1", got)
	}
}

func TestAcquireStaleSkipsFrame(t *testing.T) {
	win, surface, _, _ := newTestWindow(t, 2)

	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}
	pending := win.Pending()

	surface.swapchain.FailAcquire = gfx.ErrOutOfDate
	err := win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
		t.Fatal("buildFrame invoked on a skipped frame")
		return chain, nil
	})
	if err != nil {
		t.Fatalf("stale acquire surfaced as error: %v", err)
	}
	if win.Pending() != pending {
		t.Error("pending chain disturbed by a skipped frame")
	}

	// The stale condition folds into the resize flag, so the next
	// frame recreates and presents normally.
	generations := surface.swapchain.Generations
	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}
	if surface.swapchain.Generations != generations+1 {
		t.Error("swapchain not recreated after stale acquire")
	}
	if len(surface.queue.Presented) != 2 {
		t.Errorf("queue saw %d presents, want 2", len(surface.queue.Presented))
	}
}

func TestResizeRecreatesSwapchain(t *testing.T) {
	win, surface, source, events := newTestWindow(t, 3)

	before := surface.swapchain.Images()
	surface.extent = gfx.Extent{Width: 1024, Height: 768}
	source.pending = []window.Event{window.Resized{Window: 1, Extent: surface.extent}}
	events.Poll(func(window.Event) {})

	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}

	if surface.swapchain.Generations != 2 {
		t.Fatalf("swapchain generation %d, want 2", surface.swapchain.Generations)
	}
	after := win.Images()
	if len(after) != len(before) {
		t.Fatalf("image count changed from %d to %d", len(before), len(after))
	}
	for idx := range after {
		if after[idx] == before[idx] {
			t.Errorf("slot %d kept its image identity across recreation", idx)
		}
		if after[idx].Extent() != surface.extent {
			t.Errorf("slot %d extent %+v, want %+v", idx, after[idx].Extent(), surface.extent)
		}
	}
}

func TestUnsupportedExtentDefersFrame(t *testing.T) {
	win, surface, source, events := newTestWindow(t, 2)

	source.pending = []window.Event{window.Resized{Window: 1, Extent: surface.extent}}
	events.Poll(func(window.Event) {})
	surface.swapchain.FailRecreate = gfx.ErrUnsupportedExtent

	err := win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
		t.Fatal("buildFrame invoked while the extent is unsupported")
		return chain, nil
	})
	if err != nil {
		t.Fatalf("unsupported extent surfaced as error: %v", err)
	}

	// Flag re-set, the next frame retries recreation.
	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}
	if surface.swapchain.Generations != 2 {
		t.Error("recreation not retried after a deferred frame")
	}
}

func TestBuildFrameErrorKeepsPendingChain(t *testing.T) {
	win, surface, _, _ := newTestWindow(t, 2)

	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}

	err := win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
		return nil, gfx.ErrOutOfMemory
	})
	if !errors.Is(err, gfx.ErrOutOfMemory) {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}

	// The failed frame never reached the queue, so its ordering chain
	// stays pending: previous fence and acquire plus this frame's
	// acquire, none of them freed.
	pending := win.Pending()
	if pending == nil {
		t.Fatal("pending chain lost after a buildFrame failure")
	}
	if got := len(pending.Tokens()); got != 3 {
		t.Fatalf("pending chain holds %d tokens, want 3", got)
	}
	for idx, tok := range pending.Tokens() {
		if tok.(*gfxtest.Token).Freed != 0 {
			t.Errorf("token %d freed while still pending", idx)
		}
	}

	// A recovering caller still gets the next frame ordered after the
	// surviving work.
	var incoming *gfx.FutureChain
	if err := win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
		incoming = chain
		return chain, nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(incoming.Tokens()) < 4 {
		t.Errorf("recovery frame chain holds %d tokens, want the lost frame joined in", len(incoming.Tokens()))
	}
	if len(surface.queue.Presented) != 2 {
		t.Errorf("queue saw %d presents, want 2", len(surface.queue.Presented))
	}
}

func TestRecreateStaleDefersFrame(t *testing.T) {
	win, surface, source, events := newTestWindow(t, 2)

	source.pending = []window.Event{window.Resized{Window: 1, Extent: surface.extent}}
	events.Poll(func(window.Event) {})
	surface.swapchain.FailRecreate = gfx.ErrOutOfDate

	// Staleness out of recreation folds back into the resize flag,
	// just like an unsupported extent.
	err := win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
		t.Fatal("buildFrame invoked while the swapchain is stale")
		return chain, nil
	})
	if err != nil {
		t.Fatalf("stale recreation surfaced as error: %v", err)
	}

	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}
	if surface.swapchain.Generations != 2 {
		t.Error("recreation not retried after a deferred frame")
	}
}

func TestPresentStaleDropsChain(t *testing.T) {
	win, surface, _, _ := newTestWindow(t, 2)

	surface.queue.FailPresent = gfx.ErrOutOfDate
	if err := win.Present(renderNothing); err != nil {
		t.Fatalf("stale present surfaced as error: %v", err)
	}
	if win.Pending() != nil {
		t.Error("dropped frame stored as pending chain")
	}

	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}
	if surface.swapchain.Generations != 2 {
		t.Error("swapchain not recreated after stale present")
	}
}

func TestJoinFuture(t *testing.T) {
	win, _, _, _ := newTestWindow(t, 2)

	upload := &gfxtest.Token{}
	win.JoinFuture(gfx.NewFutureChain(upload))

	var incoming *gfx.FutureChain
	if err := win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
		incoming = chain
		return chain, nil
	}); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, tok := range incoming.Tokens() {
		if tok == gfx.Token(upload) {
			found = true
		}
	}
	if !found {
		t.Error("joined upload token not carried into the frame chain")
	}
}

func TestEventsLoopTracking(t *testing.T) {
	win, surface, source, events := newTestWindow(t, 2)

	var seen []window.Event
	source.pending = []window.Event{
		window.FocusChanged{Window: 1, Focused: true},
		window.Closed{Window: 1},
		window.Resized{Window: 1, Extent: gfx.Extent{Width: 10, Height: 10}},
	}
	events.Poll(func(ev window.Event) { seen = append(seen, ev) })

	if len(seen) != 3 {
		t.Fatalf("callback saw %d events, want all 3", len(seen))
	}

	// The Resized after Closed hits an untracked window, so no
	// recreation happens on the next frame.
	if err := win.Present(renderNothing); err != nil {
		t.Fatal(err)
	}
	if surface.swapchain.Generations != 1 {
		t.Error("swapchain recreated for an untracked window")
	}
}
