package bind_group_provider

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestNewBindGroupProviderKeepsLabel(t *testing.T) {
	p := NewBindGroupProvider("Depth Pass Uniforms")
	assert.Equal(t, "Depth Pass Uniforms", p.Label())
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.Buffer(0))
	assert.Nil(t, p.TextureView(0))
	assert.Nil(t, p.Sampler(0))
}

func TestOptionsPopulateBindings(t *testing.T) {
	view := &wgpu.TextureView{}
	buf := &wgpu.Buffer{}
	p := NewBindGroupProvider("targets", WithTextureView(2, view))
	p.SetBuffer(0, buf)
	assert.Same(t, view, p.TextureView(2))
	assert.Same(t, buf, p.Buffer(0))
	assert.Nil(t, p.TextureView(0))

	p.SetIndexCount(6)
	assert.Equal(t, 6, p.IndexCount())
}

func TestReleaseDropsBorrowedViews(t *testing.T) {
	p := NewBindGroupProvider("targets")
	p.SetTextureView(0, &wgpu.TextureView{})
	p.SetTextureView(1, &wgpu.TextureView{})

	// views are borrowed, so Release only forgets them
	p.Release()
	assert.Nil(t, p.TextureView(0))
	assert.Nil(t, p.TextureView(1))
	p.ReleaseBindGroup()
	assert.Nil(t, p.BindGroup())
}
