// Package gfx defines the rendering primitives that backends must implement.
// The interfaces here are deliberately thin: they describe resource creation,
// command recording and presentation, while ordering of asynchronous GPU work
// is expressed host-side through FutureChain.
package gfx

// Extent describes a two dimensional size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Format identifies a pixel or vertex component format.
type Format int

// Formats supported by the abstraction. Backends map these
// onto their native equivalents.
const (
	FormatUndefined Format = iota
	FormatB8G8R8A8SRGB
	FormatR8G8B8A8Unorm
	FormatA2B10G10R10Unorm
	FormatD16Unorm
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Image is a handle to a renderable image. Two Image values compare
// equal only when they refer to the same underlying resource, which
// makes interface equality usable as an identity test.
type Image interface {

	// Extent returns the image dimensions.
	Extent() Extent

	// Format returns the pixel format of the image.
	Format() Format
}

// RenderImage is an image created by the application rather than
// a swapchain, for example a gbuffer attachment.
type RenderImage interface {
	Image
	Releasable
}

// Texture is a sampled image with its contents uploaded from the host.
type Texture interface {
	Releasable

	// Extent returns the texture dimensions.
	Extent() Extent
}

// Buffer is a chunk of device memory with host-provided contents.
type Buffer interface {
	Releasable

	// Size returns the buffer length in bytes.
	Size() int
}

// Framebuffer binds a render pass to a concrete set of images.
type Framebuffer interface {
	Releasable

	// Extent returns the dimensions of the bound images.
	Extent() Extent
}

// DescriptorSet is a bound resource referenced by draw commands.
type DescriptorSet interface {
	Releasable
}

// RenderPass describes attachment usage over one or more subpasses.
type RenderPass interface {
	Releasable
}

// Pipeline is a compiled graphics pipeline bound to a render pass subpass.
type Pipeline interface {
	Releasable
}

// CommandBuffer is an opaque recorded sequence of commands ready
// for execution inside a render scope or submission to a queue.
type CommandBuffer interface{}

// AttachmentLoad selects what happens to an attachment when
// a render pass begins.
type AttachmentLoad int

// Load operations.
const (
	LoadClear AttachmentLoad = iota
	LoadDontCare
)

// Attachment describes a single render pass attachment.
type Attachment struct {
	Format Format
	Load   AttachmentLoad
	Store  bool
}

// Subpass describes one subpass by attachment index. DepthStencil
// is -1 when the subpass has no depth attachment.
type Subpass struct {
	Colors       []int
	DepthStencil int
	Inputs       []int
}

// RenderPassDesc is a backend-neutral render pass description.
type RenderPassDesc struct {
	Attachments []Attachment
	Subpasses   []Subpass
}

// VertexAttr describes one vertex attribute within a vertex.
type VertexAttr struct {
	Location uint32
	Offset   uint32
	Format   Format
}

// PipelineDesc describes a graphics pipeline. Shaders are referenced
// by name, resolution is left to the backend. InputCount is the
// number of subpass input attachments the fragment shader reads,
// bound through NewInputDescriptorSet.
type PipelineDesc struct {
	VertexShader   string
	FragmentShader string
	Subpass        int
	DepthTest      bool
	VertexStride   uint32
	VertexAttrs    []VertexAttr
	InputCount     int
}

// DrawDesc describes a single canned draw for NewDrawCommands.
type DrawDesc struct {
	Pipeline    Pipeline
	Descriptors []DescriptorSet
	Vertices    Buffer
	Texture     Texture
	VertexCount int
	QueueFamily uint32
}

// Device creates rendering resources. All creation methods report
// resource exhaustion as ErrOutOfMemory, any other failure is
// considered a programming error by callers.
type Device interface {
	Releasable

	// NewRenderPass builds a render pass from a description.
	NewRenderPass(desc RenderPassDesc) (RenderPass, error)

	// NewFramebuffer binds a render pass to the given images.
	// Image order must match the render pass attachment order.
	NewFramebuffer(rp RenderPass, images ...Image) (Framebuffer, error)

	// NewPipeline builds a graphics pipeline for a subpass of rp.
	NewPipeline(rp RenderPass, desc PipelineDesc) (Pipeline, error)

	// NewRenderImage creates an application-owned attachment image.
	NewRenderImage(extent Extent, format Format) (RenderImage, error)

	// NewUniformBuffer uploads data into a device-local uniform
	// buffer. The returned token signals upload completion.
	NewUniformBuffer(q Queue, data []byte) (Buffer, Token, error)

	// NewVertexBuffer uploads data into a device-local vertex
	// buffer. The returned token signals upload completion.
	NewVertexBuffer(q Queue, data []byte) (Buffer, Token, error)

	// NewTexture uploads pixels into a sampled image. Pixels are
	// tightly packed RGBA. The returned token signals upload
	// completion.
	NewTexture(q Queue, extent Extent, pix []byte) (Texture, Token, error)

	// NewDescriptorSet binds a uniform buffer at the given binding
	// of the pipeline's first set layout.
	NewDescriptorSet(p Pipeline, binding uint32, buf Buffer) (DescriptorSet, error)

	// NewInputDescriptorSet binds render images as the subpass input
	// attachments of the pipeline, in declaration order. The image
	// count must match the pipeline's InputCount.
	NewInputDescriptorSet(p Pipeline, images ...RenderImage) (DescriptorSet, error)

	// NewDrawCommands records a canned draw into a reusable
	// command buffer for execution inside a render scope.
	NewDrawCommands(desc DrawDesc) (CommandBuffer, error)

	// NewRecorder creates a command recorder for a queue family.
	NewRecorder(queueFamily uint32) (Recorder, error)

	// Wait blocks until the device is idle. Used at shutdown.
	Wait()
}

// Recorder records primary command buffers.
type Recorder interface {

	// BeginRenderPass opens a render pass recording scope on the
	// given framebuffer. The scope must be ended or aborted.
	BeginRenderPass(fb Framebuffer, clear [4]float32) (RenderScope, error)
}

// RenderScope is an open render pass recording. End finalises it into
// a command buffer. Abort closes the scope without producing commands
// and is a no-op after End, so it is safe to defer.
type RenderScope interface {

	// Execute appends previously recorded commands to the scope.
	Execute(cb CommandBuffer) error

	// Next advances recording to the next subpass of the render
	// pass. Calling it past the last subpass is a programming error.
	Next() error

	// End closes the render pass and finalises the commands.
	End() (CommandBuffer, error)

	// Abort closes the scope discarding anything recorded.
	Abort()
}

// Queue executes and presents recorded work.
type Queue interface {

	// Family returns the queue family index, used as a capability
	// token when recording commands for this queue.
	Family() uint32

	// Submit executes cb after every token in the chain has been
	// waited on. The returned token signals completion of cb.
	Submit(cb CommandBuffer, after *FutureChain) (Token, error)

	// Present queues presentation of the image in the given
	// swapchain slot, ordered after the chain, and returns a fence
	// token that signals when the frame's work has completed.
	// Returns ErrOutOfDate when the surface configuration no
	// longer matches the display.
	Present(sc Swapchain, slot int, after *FutureChain) (Token, error)
}

// Swapchain is a rotating set of presentable images.
type Swapchain interface {
	Releasable

	// Format returns the image format of the swapchain.
	Format() Format

	// Extent returns the current swapchain dimensions.
	Extent() Extent

	// Images returns the current target images. The slice is
	// replaced wholesale by Recreate, never mutated in place, so
	// image identity distinguishes swapchain generations.
	Images() []Image

	// Acquire blocks until a target image slot is available and
	// returns its index with a token that signals when the image
	// is ready to be written. Returns ErrOutOfDate when the
	// surface needs recreation.
	Acquire() (int, Token, error)

	// Recreate rebuilds the swapchain for a new extent. Returns
	// ErrUnsupportedExtent when the extent is transiently invalid,
	// for example mid-resize.
	Recreate(extent Extent) error
}
