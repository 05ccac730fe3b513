// Package batch provides the per-target resource cache shared by the
// concrete batch implementations in the subpackages.
package batch

import "github.com/devblok/prism/gfx"

// NewTargetCache creates a cache with one slot per target image.
// build constructs a framebuffer bound to a given target image.
func NewTargetCache(slots int, build func(gfx.Image) (gfx.Framebuffer, error)) *TargetCache {
	return &TargetCache{
		entries: make([]entry, slots),
		build:   build,
	}
}

// TargetCache caches one framebuffer per target image slot. An entry
// is valid only while the image it was built from is identical to the
// image currently occupying its slot, so the cache self-heals across
// swapchain recreation without any invalidation signal: staleness is
// detected lazily by identity comparison at use time.
type TargetCache struct {
	entries []entry
	build   func(gfx.Image) (gfx.Framebuffer, error)
}

type entry struct {
	image       gfx.Image
	framebuffer gfx.Framebuffer
}

// GetOrBuild returns the framebuffer for slot, rebuilding it when the
// cached entry was built from an image no longer occupying the slot.
// The second return reports whether a rebuild happened. Construction
// failures propagate verbatim.
func (c *TargetCache) GetOrBuild(slot int, images []gfx.Image) (gfx.Framebuffer, bool, error) {
	current := images[slot]
	if e := &c.entries[slot]; e.image == current && e.framebuffer != nil {
		return e.framebuffer, false, nil
	}

	framebuffer, err := c.build(current)
	if err != nil {
		return nil, false, err
	}
	if old := c.entries[slot].framebuffer; old != nil {
		old.Release()
	}
	c.entries[slot] = entry{image: current, framebuffer: framebuffer}
	return framebuffer, true, nil
}

// Release frees every cached framebuffer.
func (c *TargetCache) Release() {
	for idx := range c.entries {
		if fb := c.entries[idx].framebuffer; fb != nil {
			fb.Release()
		}
		c.entries[idx] = entry{}
	}
}
