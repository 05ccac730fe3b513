package gfx

// RenderTarget is anything a batch can render into. Windows implement
// it over their swapchain, offscreen targets over their own images.
type RenderTarget interface {

	// Format returns the format of the target images.
	Format() Format

	// IDRoot returns the identity root batches record ids from.
	IDRoot() *ObjectIDRoot

	// Images returns the current target images in slot order.
	Images() []Image
}
