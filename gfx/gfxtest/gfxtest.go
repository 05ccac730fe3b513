// Package gfxtest implements the gfx interfaces in memory so the
// presentation machinery and batch caches can be exercised without a
// real device. Completion tokens are signaled manually and failure
// knobs inject the transient device conditions a display produces.
package gfxtest

import (
	"errors"

	"github.com/devblok/prism/gfx"
)

// Token is a manually signaled completion token.
type Token struct {
	Done  bool
	Freed int
}

// Signaled implements gfx.Token.
func (t *Token) Signaled() bool { return t.Done }

// Free implements gfx.Token.
func (t *Token) Free() { t.Freed++ }

// Signal marks the token complete.
func (t *Token) Signal() { t.Done = true }

// Image is a fake target image. Identity is pointer identity.
type Image struct {
	extent gfx.Extent
	format gfx.Format
}

// Extent implements gfx.Image.
func (i *Image) Extent() gfx.Extent { return i.extent }

// Format implements gfx.Image.
func (i *Image) Format() gfx.Format { return i.format }

// RenderImage is an application-owned fake attachment image.
type RenderImage struct {
	Image
	Released bool
}

// Release implements gfx.RenderImage.
func (i *RenderImage) Release() { i.Released = true }

// Framebuffer is a fake framebuffer remembering what it was built from.
type Framebuffer struct {
	Images   []gfx.Image
	Released bool

	extent gfx.Extent
}

// Extent implements gfx.Framebuffer.
func (f *Framebuffer) Extent() gfx.Extent { return f.extent }

// Release implements gfx.Framebuffer.
func (f *Framebuffer) Release() { f.Released = true }

// Buffer is a fake device buffer.
type Buffer struct {
	Data     []byte
	Released bool
}

// Size implements gfx.Buffer.
func (b *Buffer) Size() int { return len(b.Data) }

// Release implements gfx.Buffer.
func (b *Buffer) Release() { b.Released = true }

// Texture is a fake sampled image.
type Texture struct {
	Pix      []byte
	Released bool

	extent gfx.Extent
}

// Extent implements gfx.Texture.
func (t *Texture) Extent() gfx.Extent { return t.extent }

// Release implements gfx.Texture.
func (t *Texture) Release() { t.Released = true }

// RenderPass is a fake render pass.
type RenderPass struct {
	Desc     gfx.RenderPassDesc
	Released bool
}

// Release implements gfx.RenderPass.
func (r *RenderPass) Release() { r.Released = true }

// Pipeline is a fake pipeline.
type Pipeline struct {
	Desc     gfx.PipelineDesc
	Released bool
}

// Release implements gfx.Pipeline.
func (p *Pipeline) Release() { p.Released = true }

// DescriptorSet is a fake descriptor set.
type DescriptorSet struct {
	Buffer   gfx.Buffer
	Images   []gfx.RenderImage
	Released bool
}

// Release implements gfx.DescriptorSet.
func (d *DescriptorSet) Release() { d.Released = true }

// Commands is the fake command buffer produced by recorders and
// NewDrawCommands.
type Commands struct {
	Draws []gfx.DrawDesc
}

// NewDevice creates a fake device.
func NewDevice() *Device {
	return &Device{}
}

// Device implements gfx.Device in memory. The allocation counters let
// tests assert that caches do not rebuild resources redundantly.
type Device struct {
	Framebuffers int
	RenderImages int
	Uniforms     int
	Vertices     int
	Textures     int
	InputSets    int
	Released     bool

	// FailFramebuffer, when set, is returned by the next
	// NewFramebuffer call and then cleared.
	FailFramebuffer error
}

// NewRenderPass implements gfx.Device.
func (d *Device) NewRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	return &RenderPass{Desc: desc}, nil
}

// NewFramebuffer implements gfx.Device.
func (d *Device) NewFramebuffer(rp gfx.RenderPass, images ...gfx.Image) (gfx.Framebuffer, error) {
	if err := d.FailFramebuffer; err != nil {
		d.FailFramebuffer = nil
		return nil, err
	}
	if len(images) == 0 {
		return nil, errors.New("gfxtest: framebuffer needs at least one image")
	}
	d.Framebuffers++
	return &Framebuffer{
		Images: images,
		extent: images[0].Extent(),
	}, nil
}

// NewPipeline implements gfx.Device.
func (d *Device) NewPipeline(rp gfx.RenderPass, desc gfx.PipelineDesc) (gfx.Pipeline, error) {
	return &Pipeline{Desc: desc}, nil
}

// NewRenderImage implements gfx.Device.
func (d *Device) NewRenderImage(extent gfx.Extent, format gfx.Format) (gfx.RenderImage, error) {
	d.RenderImages++
	return &RenderImage{Image: Image{extent: extent, format: format}}, nil
}

// NewUniformBuffer implements gfx.Device.
func (d *Device) NewUniformBuffer(q gfx.Queue, data []byte) (gfx.Buffer, gfx.Token, error) {
	d.Uniforms++
	return &Buffer{Data: append([]byte(nil), data...)}, &Token{}, nil
}

// NewVertexBuffer implements gfx.Device.
func (d *Device) NewVertexBuffer(q gfx.Queue, data []byte) (gfx.Buffer, gfx.Token, error) {
	d.Vertices++
	return &Buffer{Data: append([]byte(nil), data...)}, &Token{}, nil
}

// NewTexture implements gfx.Device.
func (d *Device) NewTexture(q gfx.Queue, extent gfx.Extent, pix []byte) (gfx.Texture, gfx.Token, error) {
	d.Textures++
	return &Texture{Pix: append([]byte(nil), pix...), extent: extent}, &Token{}, nil
}

// NewDescriptorSet implements gfx.Device.
func (d *Device) NewDescriptorSet(p gfx.Pipeline, binding uint32, buf gfx.Buffer) (gfx.DescriptorSet, error) {
	return &DescriptorSet{Buffer: buf}, nil
}

// NewInputDescriptorSet implements gfx.Device.
func (d *Device) NewInputDescriptorSet(p gfx.Pipeline, images ...gfx.RenderImage) (gfx.DescriptorSet, error) {
	d.InputSets++
	return &DescriptorSet{Images: images}, nil
}

// NewDrawCommands implements gfx.Device.
func (d *Device) NewDrawCommands(desc gfx.DrawDesc) (gfx.CommandBuffer, error) {
	return &Commands{Draws: []gfx.DrawDesc{desc}}, nil
}

// NewRecorder implements gfx.Device.
func (d *Device) NewRecorder(queueFamily uint32) (gfx.Recorder, error) {
	return &Recorder{}, nil
}

// Wait implements gfx.Device.
func (d *Device) Wait() {}

// Release implements gfx.Device.
func (d *Device) Release() { d.Released = true }

// Recorder implements gfx.Recorder.
type Recorder struct{}

// BeginRenderPass implements gfx.Recorder.
func (r *Recorder) BeginRenderPass(fb gfx.Framebuffer, clear [4]float32) (gfx.RenderScope, error) {
	return &Scope{}, nil
}

// Scope implements gfx.RenderScope. It records executed draws and
// tracks whether it was closed.
type Scope struct {
	Recorded []gfx.DrawDesc
	Subpass  int
	Ended    bool
	Aborted  bool
}

// Execute implements gfx.RenderScope.
func (s *Scope) Execute(cb gfx.CommandBuffer) error {
	if s.Ended || s.Aborted {
		return errors.New("gfxtest: execute on a closed scope")
	}
	cmds, ok := cb.(*Commands)
	if !ok {
		return errors.New("gfxtest: foreign command buffer")
	}
	s.Recorded = append(s.Recorded, cmds.Draws...)
	return nil
}

// Next implements gfx.RenderScope.
func (s *Scope) Next() error {
	if s.Ended || s.Aborted {
		return errors.New("gfxtest: next on a closed scope")
	}
	s.Subpass++
	return nil
}

// End implements gfx.RenderScope.
func (s *Scope) End() (gfx.CommandBuffer, error) {
	if s.Ended || s.Aborted {
		return nil, errors.New("gfxtest: end on a closed scope")
	}
	s.Ended = true
	return &Commands{Draws: s.Recorded}, nil
}

// Abort implements gfx.RenderScope.
func (s *Scope) Abort() {
	if !s.Ended {
		s.Aborted = true
	}
}

// PresentCall records one Queue.Present invocation.
type PresentCall struct {
	Slot  int
	Chain *gfx.FutureChain
}

// NewQueue creates a fake queue for a family.
func NewQueue(family uint32) *Queue {
	return &Queue{family: family}
}

// Queue implements gfx.Queue.
type Queue struct {
	Submitted []gfx.CommandBuffer
	Presented []PresentCall

	// FailPresent, when set, is returned by the next Present call
	// and then cleared.
	FailPresent error

	family uint32
}

// Family implements gfx.Queue.
func (q *Queue) Family() uint32 { return q.family }

// Submit implements gfx.Queue.
func (q *Queue) Submit(cb gfx.CommandBuffer, after *gfx.FutureChain) (gfx.Token, error) {
	q.Submitted = append(q.Submitted, cb)
	return &Token{}, nil
}

// Present implements gfx.Queue.
func (q *Queue) Present(sc gfx.Swapchain, slot int, after *gfx.FutureChain) (gfx.Token, error) {
	if err := q.FailPresent; err != nil {
		q.FailPresent = nil
		return nil, err
	}
	q.Presented = append(q.Presented, PresentCall{Slot: slot, Chain: after})
	return &Token{}, nil
}

// NewSwapchain creates a fake swapchain with the given number of
// target images.
func NewSwapchain(format gfx.Format, extent gfx.Extent, count int) *Swapchain {
	sc := &Swapchain{format: format}
	sc.populate(extent, count)
	return sc
}

// Swapchain implements gfx.Swapchain. Recreate replaces every image
// with a fresh identity, modeling what a real swapchain does.
type Swapchain struct {
	Generations int
	Released    bool

	// FailAcquire and FailRecreate, when set, are returned by the
	// next respective call and then cleared.
	FailAcquire  error
	FailRecreate error

	format gfx.Format
	extent gfx.Extent
	images []gfx.Image
	next   int
}

// Format implements gfx.Swapchain.
func (s *Swapchain) Format() gfx.Format { return s.format }

// Extent implements gfx.Swapchain.
func (s *Swapchain) Extent() gfx.Extent { return s.extent }

// Images implements gfx.Swapchain.
func (s *Swapchain) Images() []gfx.Image { return s.images }

// Acquire implements gfx.Swapchain. Slots rotate round-robin.
func (s *Swapchain) Acquire() (int, gfx.Token, error) {
	if err := s.FailAcquire; err != nil {
		s.FailAcquire = nil
		return 0, nil, err
	}
	slot := s.next
	s.next = (s.next + 1) % len(s.images)
	return slot, &Token{}, nil
}

// Recreate implements gfx.Swapchain.
func (s *Swapchain) Recreate(extent gfx.Extent) error {
	if err := s.FailRecreate; err != nil {
		s.FailRecreate = nil
		return err
	}
	s.populate(extent, len(s.images))
	return nil
}

// Release implements gfx.Swapchain.
func (s *Swapchain) Release() { s.Released = true }

func (s *Swapchain) populate(extent gfx.Extent, count int) {
	images := make([]gfx.Image, count)
	for idx := range images {
		images[idx] = &Image{extent: extent, format: s.format}
	}
	s.images = images
	s.extent = extent
	s.next = 0
	s.Generations++
}
