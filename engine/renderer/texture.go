package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureDescriptor describes a GPU texture created through the Renderer.
type TextureDescriptor struct {
	// Label is the debug label of the texture and its view.
	Label string
	// Width and Height are the texture dimensions in pixels.
	Width, Height int
	// Layers is the number of array layers. Zero is treated as one.
	Layers uint32
	// Format is the texel format.
	Format wgpu.TextureFormat
	// Usage is the set of usages the texture is created with.
	Usage wgpu.TextureUsage
	// Cube requests a cube view. Only valid when Layers is 6.
	Cube bool
}

// LayerCount returns the effective number of array layers.
func (d TextureDescriptor) LayerCount() uint32 {
	if d.Layers == 0 {
		return 1
	}
	return d.Layers
}

// Texture is a GPU texture together with the single view the Renderer created for it.
type Texture interface {
	// Label returns the debug label the texture was created with.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Width returns the texture width in pixels.
	//
	// Returns:
	//   - int: the width
	Width() int

	// Height returns the texture height in pixels.
	//
	// Returns:
	//   - int: the height
	Height() int

	// Layers returns the number of array layers.
	//
	// Returns:
	//   - uint32: the layer count
	Layers() uint32

	// Format returns the texel format.
	//
	// Returns:
	//   - wgpu.TextureFormat: the format
	Format() wgpu.TextureFormat

	// Usage returns the usage flags the texture was created with.
	//
	// Returns:
	//   - wgpu.TextureUsage: the usage flags
	Usage() wgpu.TextureUsage

	// View returns the texture view used for both attachment and sampling.
	//
	// Returns:
	//   - *wgpu.TextureView: the view
	View() *wgpu.TextureView

	// Release destroys the view and the texture. Safe to call more than once.
	Release()
}

type wgpuTexture struct {
	desc    TextureDescriptor
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string              { return t.desc.Label }
func (t *wgpuTexture) Width() int                 { return t.desc.Width }
func (t *wgpuTexture) Height() int                { return t.desc.Height }
func (t *wgpuTexture) Layers() uint32             { return t.desc.LayerCount() }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *wgpuTexture) Usage() wgpu.TextureUsage   { return t.desc.Usage }
func (t *wgpuTexture) View() *wgpu.TextureView    { return t.view }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// IsDepthFormat reports whether the format carries a depth aspect.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - bool: true for depth and depth-stencil formats
func IsDepthFormat(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatDepth16Unorm,
		wgpu.TextureFormatDepth24Plus,
		wgpu.TextureFormatDepth24PlusStencil8,
		wgpu.TextureFormatDepth32Float,
		wgpu.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}

// IsRenderableColorFormat reports whether the format can be used as a color attachment.
// Only the formats the renderer allocates targets in are listed.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - bool: true if the format is a renderable color format
func IsRenderableColorFormat(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatR32Float,
		wgpu.TextureFormatRG32Float,
		wgpu.TextureFormatRGBA32Float,
		wgpu.TextureFormatR16Float,
		wgpu.TextureFormatRGBA16Float,
		wgpu.TextureFormatRGBA8Unorm,
		wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatBGRA8Unorm,
		wgpu.TextureFormatBGRA8UnormSrgb:
		return true
	}
	return false
}

// IsBlendable reports whether fixed-function blending is available for the format
// without optional device features. 32-bit float formats are not blendable.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - bool: true if blending may be enabled on a target of this format
func IsBlendable(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatR32Float, wgpu.TextureFormatRG32Float, wgpu.TextureFormatRGBA32Float:
		return false
	}
	return IsRenderableColorFormat(format)
}

// SampleTypeFor returns the texture sample type a shader must declare to read the format.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - wgpu.TextureSampleType: Depth for depth formats, UnfilterableFloat for 32-bit float formats, Float otherwise
func SampleTypeFor(format wgpu.TextureFormat) wgpu.TextureSampleType {
	if IsDepthFormat(format) {
		return wgpu.TextureSampleTypeDepth
	}
	switch format {
	case wgpu.TextureFormatR32Float, wgpu.TextureFormatRG32Float, wgpu.TextureFormatRGBA32Float:
		return wgpu.TextureSampleTypeUnfilterableFloat
	}
	return wgpu.TextureSampleTypeFloat
}
