// Package window owns the presentable surface: it pairs an event loop
// that tracks resize notifications with a Window that drives the
// per-frame acquire, execute and present state machine over a
// gfx.Swapchain.
package window

import (
	"sync/atomic"

	"github.com/devblok/prism/gfx"
)

// ID identifies a window within its event source.
type ID uint32

// Event is a tagged window event. Every variant delivered by the
// source reaches the caller's callback, the loop only observes
// Closed and Resized on the way through.
type Event interface{}

// Closed reports that a window was closed.
type Closed struct {
	Window ID
}

// Resized reports a new drawable extent for a window.
type Resized struct {
	Window ID
	Extent gfx.Extent
}

// FocusChanged reports a change of input focus.
type FocusChanged struct {
	Window  ID
	Focused bool
}

// Input carries a raw input event. The payload is source specific
// and passes through the loop untouched.
type Input struct {
	Window ID
	Data   any
}

// EventSource delivers platform events. Poll must invoke the callback
// once per pending event and return without blocking.
type EventSource interface {
	Poll(func(Event))
}

// NewEventsLoop creates an events loop over the given source.
func NewEventsLoop(source EventSource) *EventsLoop {
	return &EventsLoop{
		source:  source,
		resized: make(map[ID]*atomic.Bool),
	}
}

// EventsLoop polls an event source and keeps a resize flag per
// tracked window. The flags are shared with the Window values created
// against this loop, which consume them during Present.
type EventsLoop struct {
	source  EventSource
	resized map[ID]*atomic.Bool
}

// Poll drains pending events, updating resize tracking and forwarding
// every event to callback.
func (l *EventsLoop) Poll(callback func(Event)) {
	l.source.Poll(func(ev Event) {
		switch e := ev.(type) {
		case Closed:
			delete(l.resized, e.Window)
		case Resized:
			if flag, ok := l.resized[e.Window]; ok {
				flag.Store(true)
			}
		}
		callback(ev)
	})
}

func (l *EventsLoop) track(id ID) *atomic.Bool {
	flag := &atomic.Bool{}
	l.resized[id] = flag
	return flag
}
