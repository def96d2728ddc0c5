package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spriteVertexSource = `
//@oxy:include camera
//@oxy:include fluid_params
//@oxy:include particle_position
//@oxy:include particle_color
//@oxy:group 0 0 storage_uniform camera camera
//@oxy:group 0 1 storage_uniform params fluid_params

struct SpriteOut {
    @builtin(position) clip: vec4<f32>,
    @location(0) corner: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) vi: u32, p: ParticlePosition, c: ParticleColor) -> SpriteOut {
    var out: SpriteOut;
    out.clip = camera.projection * camera.model_view * vec4<f32>(p.center.xyz, 1.0);
    out.corner = vec2<f32>(0.0, 0.0);
    return out;
}
`

const sceneFragmentSource = `
//@oxy:include camera
//@oxy:group 0 0 storage_uniform camera camera

struct SceneOut {
    @location(1) color: vec4<f32>,
    @builtin(frag_depth) depth: f32,
    @location(0) position: vec4<f32>,
};

@fragment
fn fs_main(@builtin(position) frag: vec4<f32>) -> SceneOut {
    var out: SceneOut;
    return out;
}
`

const compositeFragmentSource = `
//@oxy:include display_modes
//@oxy:provider 1 0 targets raw_depth
@group(1) @binding(0) var raw_depth_tex: texture_depth_2d;
//@oxy:provider 1 1 targets blur_depth
@group(1) @binding(1) var blur_depth_tex: texture_2d<f32>;
//@oxy:provider 2 0 environment cubemap
@group(2) @binding(0) var cube_tex: texture_cube<f32>;
//@oxy:provider 2 1 environment cubemap_sampler
@group(2) @binding(1) var cube_sampler: sampler;

@fragment
fn fs_main(@builtin(position) frag: vec4<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

func TestParseAnnotation(t *testing.T) {
	a, err := parseAnnotation("  //@oxy:provider 1 3 targets normal", 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, AnnotationTypeProvider, a.Type)
	assert.Equal(t, []AnnotationArg{AnnotationArgTargets, AnnotationArgNormal}, a.Args)
	assert.Equal(t, 1, *a.Group)
	assert.Equal(t, 3, *a.Binding)
	assert.Equal(t, 7, a.Line)

	a, err = parseAnnotation("let x = 1.0;", 1)
	assert.NoError(t, err)
	assert.Nil(t, a)

	bad := []string{
		"//@oxy:",
		"//@oxy:include light",
		"//@oxy:group 0 0 storage_uniform camera",
		"//@oxy:group x 0 storage_uniform camera camera",
		"//@oxy:group 0 0 private camera camera",
		"//@oxy:provider 1 0 material",
		"//@oxy:provider 1 0 targets diffuse_texture",
		"//@oxy:shadow 0",
	}
	for _, line := range bad {
		_, err := parseAnnotation(line, 1)
		assert.Error(t, err, line)
	}
}

func TestPreProcessorInjectsSources(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(spriteVertexSource)
	require.NoError(t, err)

	assert.Contains(t, out, "struct CameraUniform")
	assert.Contains(t, out, "struct FluidParams")
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> camera: CameraUniform;")
	assert.Contains(t, out, "@group(0) @binding(1) var<uniform> params: FluidParams;")
	assert.NotContains(t, out, "@oxy:")

	decls := pp.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, AnnotationTypeBindingGroup, decls[0].Type)
	assert.Equal(t, 1, *decls[1].Binding)
}

func TestPreProcessorRejectsConstantBlockAsType(t *testing.T) {
	_, err := NewPreProcessor().Process("//@oxy:group 0 0 storage_uniform modes display_modes")
	assert.Error(t, err)
}

func TestPreProcessorResetsDeclarations(t *testing.T) {
	pp := NewPreProcessor()
	_, err := pp.Process(compositeFragmentSource)
	require.NoError(t, err)
	assert.Len(t, pp.Declarations(), 4)

	_, err = pp.Process("fn f() {}")
	require.NoError(t, err)
	assert.Empty(t, pp.Declarations())
}

func TestVertexLayoutsFollowSourceOrder(t *testing.T) {
	s, err := NewShaderFromSource("sprite_vs", ShaderTypeVertex, spriteVertexSource)
	require.NoError(t, err)
	assert.Equal(t, "vs_main", s.EntryPoint())

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 2)
	pos := s.VertexLayout(0)
	require.Len(t, pos, 1)
	assert.Equal(t, uint64(16), pos[0].ArrayStride)
	assert.Equal(t, uint32(0), pos[0].Attributes[0].ShaderLocation)
	col := s.VertexLayout(1)
	require.Len(t, col, 1)
	assert.Equal(t, uint32(1), col[0].Attributes[0].ShaderLocation)

	assert.Empty(t, s.Outputs())

	desc := s.BindGroupLayoutDescriptor(0)
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(352), desc.Entries[0].Buffer.MinBindingSize)
	assert.Equal(t, uint64(64), desc.Entries[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageVertex, desc.Entries[0].Visibility)
}

func TestFragmentOutputsFromStruct(t *testing.T) {
	s, err := NewShaderFromSource("scene_fs", ShaderTypeFragment, sceneFragmentSource)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"position": 0, "color": 1}, s.Outputs())
	loc, ok := s.OutputLocation("color")
	assert.True(t, ok)
	assert.Equal(t, 1, loc)
	_, ok = s.OutputLocation("depth")
	assert.False(t, ok)

	outs := s.Outputs()
	outs["color"] = 9
	loc, _ = s.OutputLocation("color")
	assert.Equal(t, 1, loc)
}

func TestFragmentOutputsBareLocation(t *testing.T) {
	s, err := NewShaderFromSource("composite_fs", ShaderTypeFragment, compositeFragmentSource)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{DefaultOutputName: 0}, s.Outputs())
	assert.Contains(t, s.Source(), "const MODE_TOTAL: u32 = 11u;")

	g1 := s.BindGroupLayoutDescriptor(1)
	require.Len(t, g1.Entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, g1.Entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, g1.Entries[1].Texture.SampleType)

	g2 := s.BindGroupLayoutDescriptor(2)
	require.Len(t, g2.Entries, 2)
	assert.Equal(t, wgpu.TextureViewDimensionCube, g2.Entries[0].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, g2.Entries[1].Sampler.Type)

	binding, ok := s.BindGroupFromVarName(2, "cube_sampler")
	assert.True(t, ok)
	assert.Equal(t, 1, binding)
	assert.Equal(t, "blur_depth_tex", s.BindGroupVarName(1, 1))

	var roles []AnnotationArg
	for _, d := range s.Declarations() {
		roles = append(roles, d.Args[1])
	}
	assert.Equal(t, []AnnotationArg{AnnotationArgRawDepth, AnnotationArgBlurDepth, AnnotationArgCubemap, AnnotationArgCubemapSampler}, roles)
}

func TestFragmentOutputsDuplicateLocation(t *testing.T) {
	src := `
struct Out {
    @location(0) a: vec4<f32>,
    @location(0) b: vec4<f32>,
};
@fragment
fn fs_main() -> Out { var o: Out; return o; }
`
	_, err := NewShaderFromSource("dup", ShaderTypeFragment, src)
	assert.Error(t, err)
}

func TestMissingEntryPoint(t *testing.T) {
	_, err := NewShaderFromSource("empty", ShaderTypeVertex, "fn helper() {}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	_, err = NewShaderFromSource("bad_annotation", ShaderTypeVertex, "//@oxy:include nothing")
	assert.Error(t, err)
}

func TestNewShaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "composite.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(compositeFragmentSource), 0o644))

	s, err := NewShaderFromFile("composite_fs", ShaderTypeFragment, path)
	require.NoError(t, err)
	assert.Equal(t, "composite_fs", s.Module().Label)

	_, err = NewShaderFromFile("missing", ShaderTypeFragment, filepath.Join(t.TempDir(), "nope.wgsl"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.wgsl")
}
