package renderer

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestFormatClassification(t *testing.T) {
	assert.True(t, IsDepthFormat(wgpu.TextureFormatDepth32Float))
	assert.True(t, IsDepthFormat(wgpu.TextureFormatDepth24Plus))
	assert.False(t, IsDepthFormat(wgpu.TextureFormatR32Float))

	assert.True(t, IsRenderableColorFormat(wgpu.TextureFormatRGBA16Float))
	assert.True(t, IsRenderableColorFormat(wgpu.TextureFormatBGRA8UnormSrgb))
	assert.False(t, IsRenderableColorFormat(wgpu.TextureFormatDepth32Float))

	assert.True(t, IsBlendable(wgpu.TextureFormatRGBA16Float))
	assert.False(t, IsBlendable(wgpu.TextureFormatRGBA32Float))
	assert.False(t, IsBlendable(wgpu.TextureFormatDepth32Float))
}

func TestSampleTypeFor(t *testing.T) {
	assert.Equal(t, wgpu.TextureSampleTypeDepth, SampleTypeFor(wgpu.TextureFormatDepth32Float))
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, SampleTypeFor(wgpu.TextureFormatR32Float))
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, SampleTypeFor(wgpu.TextureFormatRGBA32Float))
	assert.Equal(t, wgpu.TextureSampleTypeFloat, SampleTypeFor(wgpu.TextureFormatRGBA16Float))
	assert.Equal(t, wgpu.TextureSampleTypeFloat, SampleTypeFor(wgpu.TextureFormatRGBA8Unorm))
}

func TestTextureDescriptorLayerCount(t *testing.T) {
	assert.Equal(t, uint32(1), TextureDescriptor{}.LayerCount())
	assert.Equal(t, uint32(6), TextureDescriptor{Layers: 6}.LayerCount())
}

func TestPresentModeNames(t *testing.T) {
	m, ok := PresentModeFromName("vsync")
	assert.True(t, ok)
	assert.Equal(t, PresentModeVSync, m)
	m, ok = PresentModeFromName("uncapped")
	assert.True(t, ok)
	assert.Equal(t, "uncapped", m.String())
	_, ok = PresentModeFromName("mailbox")
	assert.False(t, ok)
}
