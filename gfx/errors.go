package gfx

import "errors"

// package errors
var (
	// ErrOutOfDate reports that the surface configuration no longer
	// matches the display and the swapchain must be recreated. It is
	// a transient condition, never a frame failure.
	ErrOutOfDate = errors.New("gfx: surface out of date")

	// ErrUnsupportedExtent reports that a swapchain could not be
	// recreated at the requested extent. Transient, happens
	// mid-resize on some platforms.
	ErrUnsupportedExtent = errors.New("gfx: unsupported surface extent")

	// ErrOutOfMemory reports device or host memory exhaustion
	// during resource construction. The caller decides whether to
	// abort the frame or the process.
	ErrOutOfMemory = errors.New("gfx: out of device memory")

	// ErrInvalidTarget reports that a batch was asked to render to
	// a target it was not constructed against. Always a caller bug,
	// raised as a panic value.
	ErrInvalidTarget = errors.New("gfx: batch used with foreign render target")
)
