package fluid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAll(t *testing.T) [PassCount]*PassProgram {
	t.Helper()
	var progs [PassCount]*PassProgram
	for _, p := range passOrder {
		prog, err := buildProgram(p, "")
		require.NoError(t, err, p.String())
		progs[p] = prog
	}
	return progs
}

func layoutEntry(t *testing.T, prog *PassProgram, group, binding int) wgpu.BindGroupLayoutEntry {
	t.Helper()
	for _, e := range prog.Layout(group).Entries {
		if int(e.Binding) == binding {
			return e
		}
	}
	require.Failf(t, "missing layout entry", "%v group %d binding %d", prog.Pass, group, binding)
	return wgpu.BindGroupLayoutEntry{}
}

func TestPassOrder(t *testing.T) {
	assert.Equal(t, []Pass{PassBackground, PassDepth, PassThickness, PassBlur, PassNormal, PassComposite}, passOrder[:])
}

func TestProgramsWriteTheirBindingFormats(t *testing.T) {
	progs := buildAll(t)
	for _, p := range passOrder {
		prog := progs[p]
		if prog.Binding == BindingSurface {
			assert.True(t, prog.Pipeline.TargetsSurface(), p.String())
			continue
		}
		formats := prog.Pipeline.ColorTargets()
		outputs := prog.Pipeline.OutputSlots()
		require.Len(t, formats, len(outputs), p.String())
		for name, loc := range outputs {
			id, ok := TargetForRole(name)
			require.True(t, ok, name)
			assert.Equal(t, id.Format(), formats[loc], "%v output %s", p, name)
		}
	}
	assert.Equal(t, BindingSurface, progs[PassComposite].Binding)
}

func TestDepthProgramWritesDepth(t *testing.T) {
	prog, err := buildProgram(PassDepth, "")
	require.NoError(t, err)
	p := prog.Pipeline
	assert.Equal(t, wgpu.TextureFormatDepth32Float, p.DepthFormat())
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.CompareFunctionLess, p.DepthCompare())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, map[string]int{"position": 0, "color": 1}, p.OutputSlots())
	for _, l := range p.VertexLayouts() {
		assert.Equal(t, wgpu.VertexStepModeInstance, l.StepMode)
	}
}

func TestThicknessProgramAccumulates(t *testing.T) {
	prog, err := buildProgram(PassThickness, "")
	require.NoError(t, err)
	p := prog.Pipeline
	assert.Equal(t, wgpu.TextureFormatUndefined, p.DepthFormat())
	assert.False(t, p.DepthTestEnabled())
	assert.False(t, p.DepthWriteEnabled())
	require.True(t, p.BlendEnabled())
	blend := p.BlendState()
	require.NotNil(t, blend)
	for _, c := range []wgpu.BlendComponent{blend.Color, blend.Alpha} {
		assert.Equal(t, wgpu.BlendOperationAdd, c.Operation)
		assert.Equal(t, wgpu.BlendFactorOne, c.SrcFactor)
		assert.Equal(t, wgpu.BlendFactorOne, c.DstFactor)
	}
}

func TestProgramInputs(t *testing.T) {
	progs := buildAll(t)

	assert.Empty(t, progs[PassBackground].InputTargets())
	assert.Empty(t, progs[PassDepth].InputTargets())
	assert.Empty(t, progs[PassThickness].InputTargets())
	assert.Equal(t, []TargetID{TargetRawDepth}, progs[PassBlur].InputTargets())
	assert.Equal(t, []TargetID{TargetBlurDepth}, progs[PassNormal].InputTargets())
	assert.Equal(t, []TargetID{TargetBlurDepth, TargetNormal, TargetColor, TargetPosition, TargetBackground, TargetThickness},
		progs[PassComposite].InputTargets())

	blur := progs[PassBlur]
	assert.Equal(t, wgpu.TextureSampleTypeDepth, layoutEntry(t, blur, blur.TargetGroup, 0).Texture.SampleType)

	comp := progs[PassComposite]
	for binding, id := range comp.InputBindings() {
		entry := layoutEntry(t, comp, comp.TargetGroup, binding)
		switch id {
		case TargetBlurDepth, TargetPosition:
			assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, entry.Texture.SampleType, id.String())
		default:
			assert.Equal(t, wgpu.TextureSampleTypeFloat, entry.Texture.SampleType, id.String())
		}
	}
}

func TestEnvironmentSlots(t *testing.T) {
	progs := buildAll(t)

	bg := progs[PassBackground]
	face, ok := bg.EnvironmentSlot(shader.AnnotationArgSkyboxFace)
	require.True(t, ok)
	sampler, ok := bg.EnvironmentSlot(shader.AnnotationArgSkyboxSampler)
	require.True(t, ok)
	assert.Equal(t, bg.EnvironmentGroup, face.Group)
	assert.Equal(t, face.Group, sampler.Group)
	assert.NotEqual(t, face.Binding, sampler.Binding)
	assert.Equal(t, -1, bg.TargetGroup)

	comp := progs[PassComposite]
	cube, ok := comp.EnvironmentSlot(shader.AnnotationArgCubemap)
	require.True(t, ok)
	_, ok = comp.EnvironmentSlot(shader.AnnotationArgCubemapSampler)
	require.True(t, ok)
	assert.NotEqual(t, comp.TargetGroup, cube.Group)
	_, ok = comp.EnvironmentSlot(shader.AnnotationArgSkyboxFace)
	assert.False(t, ok)
}

func TestFrameGroupLayoutIsShared(t *testing.T) {
	progs := buildAll(t)
	first := progs[PassBackground].Layout(0)
	require.Len(t, first.Entries, 2)
	for _, p := range passOrder[1:] {
		layout := progs[p].Layout(0)
		require.Len(t, layout.Entries, len(first.Entries), p.String())
		for i := range first.Entries {
			assert.Equal(t, first.Entries[i].Binding, layout.Entries[i].Binding, p.String())
			assert.Equal(t, first.Entries[i].Buffer, layout.Entries[i].Buffer, p.String())
		}
	}
}

func TestCompositeHandlesEveryDisplayMode(t *testing.T) {
	src, err := shaderAssets.ReadFile("assets/composite.frag.wgsl")
	require.NoError(t, err)
	body := string(src)
	for m := range fluid_types.DisplayModeCount {
		name := "MODE_" + strings.ToUpper(fluid_types.DisplayMode(m).Name())
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, "default")
}

func TestShaderDirOverride(t *testing.T) {
	src, err := shaderAssets.ReadFile("assets/thickness.frag.wgsl")
	require.NoError(t, err)
	dir := t.TempDir()

	renamed := strings.NewReplacer("thickness:", "albedo:", "out.thickness", "out.albedo").Replace(string(src))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thickness.frag.wgsl"), []byte(renamed), 0o644))
	_, err = buildProgram(PassThickness, dir)
	assert.ErrorIs(t, err, ErrOutputMismatch)

	// passes without an override file fall back to the embedded source
	_, err = buildProgram(PassDepth, dir)
	assert.NoError(t, err)
}

func TestBuildProgramRejectsUnknownPass(t *testing.T) {
	_, err := buildProgram(PassCount, "")
	assert.ErrorIs(t, err, ErrProgramUnavailable)
	assert.Equal(t, fmt.Sprintf("pass(%d)", int(PassCount)), PassCount.String())
}
