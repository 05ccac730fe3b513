package batch_test

import (
	"errors"
	"testing"

	"github.com/devblok/prism/batch"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/gfx/gfxtest"
)

func TestGetOrBuildCachesByIdentity(t *testing.T) {
	device := gfxtest.NewDevice()
	sc := gfxtest.NewSwapchain(gfx.FormatB8G8R8A8SRGB, gfx.Extent{Width: 64, Height: 64}, 2)
	rp, err := device.NewRenderPass(gfx.RenderPassDesc{})
	if err != nil {
		t.Fatal(err)
	}

	cache := batch.NewTargetCache(2, func(img gfx.Image) (gfx.Framebuffer, error) {
		return device.NewFramebuffer(rp, img)
	})

	first, rebuilt, err := cache.GetOrBuild(0, sc.Images())
	if err != nil {
		t.Fatal(err)
	}
	if !rebuilt {
		t.Error("first use of a slot must build")
	}

	again, rebuilt, err := cache.GetOrBuild(0, sc.Images())
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt || again != first {
		t.Error("unchanged image identity must be a cache hit")
	}
	if device.Framebuffers != 1 {
		t.Errorf("allocated %d framebuffers, want 1", device.Framebuffers)
	}
}

func TestGetOrBuildRebuildsAfterRecreation(t *testing.T) {
	device := gfxtest.NewDevice()
	sc := gfxtest.NewSwapchain(gfx.FormatB8G8R8A8SRGB, gfx.Extent{Width: 64, Height: 64}, 2)
	rp, _ := device.NewRenderPass(gfx.RenderPassDesc{})

	cache := batch.NewTargetCache(2, func(img gfx.Image) (gfx.Framebuffer, error) {
		return device.NewFramebuffer(rp, img)
	})

	stale, _, err := cache.GetOrBuild(0, sc.Images())
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.Recreate(sc.Extent()); err != nil {
		t.Fatal(err)
	}

	fresh, rebuilt, err := cache.GetOrBuild(0, sc.Images())
	if err != nil {
		t.Fatal(err)
	}
	if !rebuilt {
		t.Error("identity change must force a rebuild")
	}
	if fresh.(*gfxtest.Framebuffer).Images[0] != sc.Images()[0] {
		t.Error("rebuilt framebuffer not bound to the current slot image")
	}
	if !stale.(*gfxtest.Framebuffer).Released {
		t.Error("replaced framebuffer was not released")
	}
}

func TestGetOrBuildPropagatesFailure(t *testing.T) {
	device := gfxtest.NewDevice()
	sc := gfxtest.NewSwapchain(gfx.FormatB8G8R8A8SRGB, gfx.Extent{Width: 64, Height: 64}, 1)
	rp, _ := device.NewRenderPass(gfx.RenderPassDesc{})

	cache := batch.NewTargetCache(1, func(img gfx.Image) (gfx.Framebuffer, error) {
		return device.NewFramebuffer(rp, img)
	})

	device.FailFramebuffer = gfx.ErrOutOfMemory
	if _, _, err := cache.GetOrBuild(0, sc.Images()); !errors.Is(err, gfx.ErrOutOfMemory) {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}

	// The failed slot stays empty and builds on the next attempt.
	if _, rebuilt, err := cache.GetOrBuild(0, sc.Images()); err != nil || !rebuilt {
		t.Errorf("slot did not recover after failure: rebuilt=%v err=%v", rebuilt, err)
	}
}
