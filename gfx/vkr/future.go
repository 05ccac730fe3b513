// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"math"

	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/prism/gfx"
)

// newFence creates an unsignaled fence token.
func newFence(device vk.Device) (*fenceToken, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(device, &fci, nil, &fence)); err != nil {
		return nil, errors.New("vk.CreateFence(): " + err.Error())
	}
	return &fenceToken{device: device, fence: fence}, nil
}

// fenceToken implements gfx.Token over a vulkan fence. done, when
// set, releases resources owned by the guarded work.
type fenceToken struct {
	device vk.Device
	fence  vk.Fence
	done   func()
}

// Signaled implements gfx.Token.
func (t *fenceToken) Signaled() bool {
	return vk.GetFenceStatus(t.device, t.fence) == vk.Success
}

// Free implements gfx.Token.
func (t *fenceToken) Free() {
	vk.DestroyFence(t.device, t.fence, nil)
	if t.done != nil {
		t.done()
	}
}

// wait blocks until the fence signals.
func (t *fenceToken) wait() {
	vk.WaitForFences(t.device, 1, []vk.Fence{t.fence}, vk.True, math.MaxUint64)
}

// signaledToken is the token for work that completed synchronously,
// for example host-visible memory writes.
type signaledToken struct{}

// Signaled implements gfx.Token.
func (signaledToken) Signaled() bool { return true }

// Free implements gfx.Token.
func (signaledToken) Free() {}

// waitChain blocks on every fence token of the chain. Already
// signaled tokens cost nothing.
func waitChain(chain *gfx.FutureChain) {
	for _, token := range chain.Tokens() {
		if fence, ok := token.(*fenceToken); ok {
			fence.wait()
		}
	}
}
