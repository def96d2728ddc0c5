package fluid

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-fluid/common"
	"github.com/Carmen-Shannon/oxy-fluid/engine/camera"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCamera(w, h int) camera.State {
	identity := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	return camera.State{
		ModelView:      identity,
		Projection:     identity,
		Position:       [3]float32{0, 0, 5},
		Near:           0.1,
		Far:            100,
		FovY:           60,
		ViewportWidth:  w,
		ViewportHeight: h,
	}
}

func newTestFluidRenderer(t *testing.T, r *fakeRenderer, options ...FluidRendererBuilderOption) FluidRenderer {
	t.Helper()
	options = append([]FluidRendererBuilderOption{WithWorkerPool(newTestPool(t))}, options...)
	f, err := NewFluidRenderer(r, options...)
	require.NoError(t, err)
	t.Cleanup(f.Release)
	f.SetCamera(testCamera(r.Width(), r.Height()))
	return f
}

func testParticles(count uint32) ParticleStream {
	size := uint64(count) * fluid_types.ParticleStride
	return ParticleStream{Positions: newFakeBuffer(size), Colors: newFakeBuffer(size), Count: count}
}

func TestNewFluidRendererLinksEveryPass(t *testing.T) {
	r := newFakeRenderer(64, 48)
	f := newTestFluidRenderer(t, r)

	require.NoError(t, f.Status())
	for _, p := range passOrder {
		prog := f.Program(p)
		require.NotNil(t, prog, p.String())
		assert.Same(t, prog.Pipeline, r.Pipeline(prog.Pipeline.PipelineKey()))
	}
	assert.Nil(t, f.Program(PassCount))
	w, h := f.Targets().Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
	assert.Contains(t, r.bindInits, "Fluid Frame")
	assert.Contains(t, r.bindInits, "Fluid composite Targets")
}

func TestDisplayRunsPassesInOrder(t *testing.T) {
	r := newFakeRenderer(64, 48)
	f := newTestFluidRenderer(t, r)
	particles := testParticles(100)
	require.NoError(t, f.SetParticles(particles))
	r.takePasses()

	require.NoError(t, f.Display())

	log := f.PassLog()
	require.Len(t, log, int(PassCount))
	for i, rec := range log {
		assert.Equal(t, passOrder[i], rec.Pass)
		assert.NoError(t, rec.Err, rec.Pass.String())
	}
	assert.Equal(t, 0, log[PassBackground].Draws)
	assert.Equal(t, uint32(100), log[PassDepth].Instances)
	assert.Equal(t, uint32(100), log[PassThickness].Instances)
	assert.Equal(t, 1, log[PassComposite].Draws)

	passes := r.takePasses()
	require.Len(t, passes, int(PassCount))
	for i, p := range passes {
		assert.Equal(t, "fluid/"+passOrder[i].String(), p.Pipeline)
		require.NotEmpty(t, p.Binds)
		assert.Equal(t, recordedBind{Group: 0, Label: "Fluid Frame"}, p.Binds[0])
	}

	depth := passes[PassDepth]
	assert.Same(t, particles.Positions, depth.Vertex[0])
	assert.Same(t, particles.Colors, depth.Vertex[1])
	assert.Equal(t, []recordedDraw{{Kind: "draw", Count: spriteVertices, Instances: 100}}, depth.Draws)
	require.NotNil(t, depth.Desc.Depth)
	assert.Len(t, depth.Desc.Color, 2)

	comp := passes[PassComposite]
	require.Len(t, comp.Desc.Color, 1)
	assert.True(t, comp.Desc.Color[0].Surface)
	assert.Contains(t, comp.Binds, recordedBind{Group: 1, Label: "Fluid composite Targets"})
	assert.Contains(t, comp.Binds, recordedBind{Group: 2, Label: "Fallback Cubemap"})
	assert.Equal(t, []recordedDraw{{Kind: "mesh:Fluid Quad", Count: 6, Instances: 1}}, comp.Draws)

	for _, id := range []TargetID{TargetBackground, TargetRawDepth, TargetThickness, TargetBlurDepth, TargetNormal} {
		assert.True(t, f.Targets().writtenIn(1, id), id.String())
	}
}

func TestDisplayWithoutParticlesStillClears(t *testing.T) {
	r := newFakeRenderer(32, 32)
	f := newTestFluidRenderer(t, r)
	r.takePasses()

	require.NoError(t, f.Display())
	passes := r.takePasses()
	require.Len(t, passes, int(PassCount))
	assert.Empty(t, passes[PassDepth].Draws)
	assert.Empty(t, passes[PassThickness].Draws)
	assert.True(t, passes[PassDepth].Desc.Color[0].Clear)
	assert.Len(t, passes[PassComposite].Draws, 1)
}

func TestIncompleteBindingPropagatesToDependents(t *testing.T) {
	r := newFakeRenderer(32, 32)
	r.failFormats[TargetPosition.Format()] = true
	f := newTestFluidRenderer(t, r)
	require.ErrorIs(t, f.Status(), renderer.CauseMissingAttachment)
	require.NoError(t, f.SetParticles(testParticles(10)))
	r.takePasses()

	err := f.Display()
	require.Error(t, err)
	assert.ErrorIs(t, err, renderer.CauseMissingAttachment)
	assert.ErrorIs(t, err, ErrInputNotWritten)

	log := f.PassLog()
	assert.NoError(t, log[PassBackground].Err)
	assert.ErrorIs(t, log[PassDepth].Err, renderer.CauseMissingAttachment)
	assert.NoError(t, log[PassThickness].Err)
	assert.ErrorIs(t, log[PassBlur].Err, ErrInputNotWritten)
	assert.ErrorIs(t, log[PassNormal].Err, ErrInputNotWritten)
	assert.ErrorIs(t, log[PassComposite].Err, ErrInputNotWritten)

	passes := r.takePasses()
	require.Len(t, passes, 3)
	last := passes[len(passes)-1]
	assert.True(t, last.Desc.Color[0].Surface)
	assert.Empty(t, last.Pipeline)
	assert.Empty(t, last.Draws)
}

func TestFailedSurfaceClearJoinsFrameError(t *testing.T) {
	r := newFakeRenderer(32, 32)
	r.failFormats[TargetPosition.Format()] = true
	f := newTestFluidRenderer(t, r)
	r.failSurface = errFakeSurface
	r.takePasses()

	err := f.Display()
	require.Error(t, err)
	assert.ErrorIs(t, err, errFakeSurface)

	comp := f.PassLog()[PassComposite].Err
	assert.ErrorIs(t, comp, ErrInputNotWritten)
	assert.ErrorIs(t, comp, errFakeSurface)
	assert.Contains(t, comp.Error(), "surface clear")
}

func TestDisplayIsDeterministic(t *testing.T) {
	r := newFakeRenderer(32, 32)
	f := newTestFluidRenderer(t, r)
	require.NoError(t, f.SetParticles(testParticles(7)))

	require.NoError(t, f.Display())
	first := f.PassLog()
	firstPasses := r.takePasses()
	require.NoError(t, f.Display())
	second := f.PassLog()
	secondPasses := r.takePasses()

	assert.Equal(t, first, second)
	require.Len(t, secondPasses, len(firstPasses))
	for i := range firstPasses {
		assert.Equal(t, firstPasses[i].Pipeline, secondPasses[i].Pipeline)
		assert.Equal(t, firstPasses[i].Binds, secondPasses[i].Binds)
		assert.Equal(t, firstPasses[i].Draws, secondPasses[i].Draws)
	}
}

func TestUniformsCarryCameraAndParams(t *testing.T) {
	r := newFakeRenderer(32, 32)
	f := newTestFluidRenderer(t, r)
	f.SetRadius(0.25)
	f.SetDisplayMode(fluid_types.DisplayMode(99))
	assert.Equal(t, fluid_types.DisplayModeTotal, f.DisplayMode())
	f.SetDisplayMode(fluid_types.DisplayModeNormal)
	r.writes = nil

	require.NoError(t, f.Display())
	require.Len(t, r.writes, 2)
	cam := camera.NewGPUCameraUniform(testCamera(32, 32))
	assert.Equal(t, 0, r.writes[0].Binding)
	assert.Equal(t, cam.Marshal(), r.writes[0].Data)

	params := r.writes[1].Data
	assert.Equal(t, 1, r.writes[1].Binding)
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(params[0:4])))
	assert.InDelta(t, common.PointScale(32, 60), math.Float32frombits(binary.LittleEndian.Uint32(params[4:8])), 1e-4)
	assert.Equal(t, uint32(fluid_types.DisplayModeNormal), binary.LittleEndian.Uint32(params[8:12]))

	for _, rec := range f.PassLog() {
		assert.Equal(t, append(append([]byte(nil), r.writes[0].Data...), params...), rec.Uniforms)
	}
	assert.Zero(t, f.Params().PointScale)
}

func TestResizeRebindsTargets(t *testing.T) {
	r := newFakeRenderer(32, 32)
	f := newTestFluidRenderer(t, r)
	gen := f.Targets().Generation()
	r.bindInits = nil

	r.Resize(80, 60)
	require.NoError(t, f.Resize(80, 60))
	assert.Equal(t, gen+1, f.Targets().Generation())
	assert.Equal(t, 80, f.Targets().Target(TargetNormal).Width())
	assert.ElementsMatch(t, []string{
		"Fluid blur Targets",
		"Fluid normal Targets",
		"Fluid composite Targets",
	}, r.bindInits)

	require.NoError(t, f.Resize(80, 60))
	assert.Equal(t, gen+1, f.Targets().Generation())

	f.SetCamera(testCamera(80, 60))
	require.NoError(t, f.Display())
}

func TestSkyboxDrawsSixWalls(t *testing.T) {
	r := newFakeRenderer(32, 32)
	f := newTestFluidRenderer(t, r, WithSkyboxLayout(LayoutHorizontalStrip))
	require.NoError(t, f.LoadSkyboxTexture(writePNG(t, layoutImage(LayoutHorizontalStrip, 2))))
	r.takePasses()

	require.NoError(t, f.Display())
	bg := r.takePasses()[PassBackground]
	require.Len(t, bg.Draws, int(CubeFaceCount))
	for i, face := range []CubeFace{CubeFacePositiveX, CubeFaceNegativeX, CubeFacePositiveY, CubeFaceNegativeY, CubeFacePositiveZ, CubeFaceNegativeZ} {
		assert.Equal(t, "mesh:Skybox Wall "+face.String(), bg.Draws[i].Kind)
		assert.Contains(t, bg.Binds, recordedBind{Group: 1, Label: "Skybox Face " + face.String()})
	}
	assert.Equal(t, 6, f.PassLog()[PassBackground].Draws)
}

func TestSetParticlesRejectsMissingBuffers(t *testing.T) {
	r := newFakeRenderer(16, 16)
	f := newTestFluidRenderer(t, r)
	assert.ErrorIs(t, f.SetParticles(ParticleStream{Count: 3, Colors: &wgpu.Buffer{}}), ErrInvalidParticles)
	assert.ErrorIs(t, f.SetParticles(ParticleStream{Count: 3, Positions: &wgpu.Buffer{}}), ErrInvalidParticles)
	assert.NoError(t, f.SetParticles(ParticleStream{}))
}

func TestSetParticlesRejectsUndersizedBuffers(t *testing.T) {
	r := newFakeRenderer(16, 16)
	f := newTestFluidRenderer(t, r)

	stream := testParticles(8)
	stream.Count = 9
	assert.ErrorIs(t, f.SetParticles(stream), ErrInvalidParticles)

	short := testParticles(8)
	short.Colors = newFakeBuffer(7 * fluid_types.ParticleStride)
	err := f.SetParticles(short)
	require.ErrorIs(t, err, ErrInvalidParticles)
	assert.Contains(t, err.Error(), "color buffer")

	assert.NoError(t, f.SetParticles(testParticles(8)))
	require.NoError(t, f.Display())
	depth := r.takePasses()[PassDepth]
	require.NotEmpty(t, depth.Draws)
	assert.Equal(t, uint32(8), depth.Draws[0].Instances)
}

func TestWithParamsNormalizesMode(t *testing.T) {
	r := newFakeRenderer(16, 16)
	params := fluid_types.DefaultFluidParams()
	params.DisplayMode = 42
	params.Radius = 3
	f := newTestFluidRenderer(t, r, WithParams(params))
	assert.Equal(t, fluid_types.DisplayModeTotal, f.DisplayMode())
	assert.Equal(t, float32(3), f.Radius())
}

func TestReleasedRendererRefusesWork(t *testing.T) {
	r := newFakeRenderer(16, 16)
	f := newTestFluidRenderer(t, r)
	f.Release()
	assert.ErrorIs(t, f.Display(), ErrRendererReleased)
	assert.ErrorIs(t, f.Resize(32, 32), ErrRendererReleased)
	f.Release()
}
