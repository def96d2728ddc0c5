package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexSource = `
//@oxy:include camera
//@oxy:include particle_position
//@oxy:include particle_color
//@oxy:group 0 0 storage_uniform camera camera

struct Out {
    @builtin(position) clip: vec4<f32>,
};

@vertex
fn vs_main(p: ParticlePosition, c: ParticleColor) -> Out {
    var o: Out;
    o.clip = camera.projection * vec4<f32>(p.center.xyz, 1.0);
    return o;
}
`

const fragmentSource = `
//@oxy:include camera
//@oxy:group 0 0 storage_uniform camera camera
//@oxy:provider 1 0 targets position
@group(1) @binding(0) var position_tex: texture_2d<f32>;

struct SceneOut {
    @location(0) position: vec4<f32>,
    @location(1) color: vec4<f32>,
};

@fragment
fn fs_main() -> SceneOut {
    var o: SceneOut;
    return o;
}
`

func mustShader(t *testing.T, key string, st shader.ShaderType, src string) shader.Shader {
	t.Helper()
	s, err := shader.NewShaderFromSource(key, st, src)
	require.NoError(t, err)
	return s
}

func TestDefaults(t *testing.T) {
	p := NewPipeline("defaults")
	assert.Equal(t, "defaults", p.PipelineKey())
	assert.True(t, p.TargetsSurface())
	assert.Equal(t, wgpu.TextureFormatUndefined, p.DepthFormat())
	assert.Equal(t, wgpu.CompareFunctionLess, p.DepthCompare())
	assert.Nil(t, p.Pipeline())
	assert.Empty(t, p.OutputSlots())
	assert.Nil(t, p.VertexLayouts())

	p = NewPipeline("no_test", WithDepthTestEnabled(false))
	assert.Equal(t, wgpu.CompareFunctionAlways, p.DepthCompare())
}

func TestMergedLayoutsWithOverrides(t *testing.T) {
	p := NewPipeline("scene",
		WithVertexShader(mustShader(t, "vs", shader.ShaderTypeVertex, vertexSource)),
		WithFragmentShader(mustShader(t, "fs", shader.ShaderTypeFragment, fragmentSource)),
		WithSampleType(1, 0, wgpu.TextureSampleTypeUnfilterableFloat),
	)

	layouts, err := p.BindGroupLayouts()
	require.NoError(t, err)
	require.Len(t, layouts, 2)

	require.Len(t, layouts[0].Entries, 1)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, layouts[0].Entries[0].Visibility)
	assert.Equal(t, "scene Group 0", layouts[0].Label)

	require.Len(t, layouts[1].Entries, 1)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, layouts[1].Entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.ShaderStageFragment, layouts[1].Entries[0].Visibility)
}

func TestNonContiguousGroups(t *testing.T) {
	fs := `
//@oxy:provider 2 0 environment cubemap
@group(2) @binding(0) var cube: texture_cube<f32>;
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	p := NewPipeline("gap",
		WithVertexShader(mustShader(t, "vs", shader.ShaderTypeVertex, vertexSource)),
		WithFragmentShader(mustShader(t, "fs", shader.ShaderTypeFragment, fs)),
	)
	_, err := p.BindGroupLayouts()
	assert.Error(t, err)
}

func TestVertexLayoutsOrderedWithStepModes(t *testing.T) {
	p := NewPipeline("sprites",
		WithVertexShader(mustShader(t, "vs", shader.ShaderTypeVertex, vertexSource)),
		WithVertexStepMode(0, wgpu.VertexStepModeInstance),
		WithVertexStepMode(1, wgpu.VertexStepModeInstance),
	)
	layouts := p.VertexLayouts()
	require.Len(t, layouts, 2)
	for i, l := range layouts {
		assert.Equal(t, wgpu.VertexStepModeInstance, l.StepMode)
		assert.Equal(t, uint32(i), l.Attributes[0].ShaderLocation)
	}
}

func TestValidate(t *testing.T) {
	vs := mustShader(t, "vs", shader.ShaderTypeVertex, vertexSource)
	fs := mustShader(t, "fs", shader.ShaderTypeFragment, fragmentSource)

	err := NewPipeline("missing", WithVertexShader(vs)).Validate()
	assert.ErrorIs(t, err, ErrIncompleteProgram)

	err = NewPipeline("swapped", WithVertexShader(fs), WithFragmentShader(vs)).Validate()
	assert.ErrorIs(t, err, ErrIncompleteProgram)

	// two outputs cannot land on the single surface target
	err = NewPipeline("surface", WithVertexShader(vs), WithFragmentShader(fs)).Validate()
	assert.ErrorIs(t, err, ErrIncompleteProgram)

	p := NewPipeline("scene",
		WithVertexShader(vs),
		WithFragmentShader(fs),
		WithColorTargets(wgpu.TextureFormatRGBA32Float, wgpu.TextureFormatRGBA16Float),
		WithDepthFormat(wgpu.TextureFormatDepth32Float),
	)
	require.NoError(t, p.Validate())
	assert.False(t, p.TargetsSurface())
	assert.Equal(t, map[string]int{"position": 0, "color": 1}, p.OutputSlots())
	assert.Equal(t, wgpu.TextureFormatDepth32Float, p.DepthFormat())
}

func TestMergeBindGroupLayouts(t *testing.T) {
	v := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageVertex}, {Binding: 0, Visibility: wgpu.ShaderStageVertex}}},
	}
	f := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageFragment}, {Binding: 2, Visibility: wgpu.ShaderStageFragment}}},
		1: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageFragment}}},
	}
	merged := mergeBindGroupLayouts(v, f)
	require.Len(t, merged, 2)
	entries := merged[0].Entries
	require.Len(t, entries, 3)
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{entries[0].Binding, entries[1].Binding, entries[2].Binding})
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, entries[1].Visibility)
	assert.Len(t, merged[1].Entries, 1)
}
