package fluid

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetRolesAndFormats(t *testing.T) {
	formats := map[TargetID]wgpu.TextureFormat{
		TargetRawDepth:   wgpu.TextureFormatDepth32Float,
		TargetBlurDepth:  wgpu.TextureFormatR32Float,
		TargetThickness:  wgpu.TextureFormatRGBA16Float,
		TargetNormal:     wgpu.TextureFormatRGBA16Float,
		TargetPosition:   wgpu.TextureFormatRGBA32Float,
		TargetColor:      wgpu.TextureFormatRGBA16Float,
		TargetBackground: wgpu.TextureFormatRGBA8Unorm,
	}
	for id, format := range formats {
		assert.Equal(t, format, id.Format(), id.String())
		back, ok := TargetForRole(id.String())
		require.True(t, ok, id.String())
		assert.Equal(t, id, back)
	}
	_, ok := TargetForRole("albedo")
	assert.False(t, ok)
	assert.Equal(t, wgpu.TextureFormatUndefined, TargetCount.Format())
}

func TestBindingTargets(t *testing.T) {
	assert.Equal(t, []TargetID{TargetPosition, TargetColor, TargetRawDepth}, BindingScene.Targets())
	assert.Equal(t, []TargetID{TargetBlurDepth}, BindingBlur.Targets())
	assert.Nil(t, BindingSurface.Targets())
	assert.Equal(t, "surface", BindingSurface.String())
}

func newTestTargets(t *testing.T, w, h int) (*RenderTargetSet, *fakeRenderer) {
	t.Helper()
	r := newFakeRenderer(w, h)
	s := NewRenderTargetSet(r)
	require.NoError(t, s.Initialize(w, h))
	return s, r
}

func TestInitializeAllocatesEveryTarget(t *testing.T) {
	s, r := newTestTargets(t, 64, 32)
	require.Len(t, r.textures, int(TargetCount))
	for id := range TargetCount {
		tex := s.Target(id)
		require.NotNil(t, tex, id.String())
		assert.Equal(t, 64, tex.Width())
		assert.Equal(t, 32, tex.Height())
		assert.Equal(t, id.Format(), tex.Format())
		assert.NotZero(t, tex.Usage()&wgpu.TextureUsageRenderAttachment)
		assert.NotZero(t, tex.Usage()&wgpu.TextureUsageTextureBinding)
	}
	for b := range BindingCount {
		assert.NoError(t, s.Incomplete(b), b.String())
	}
	assert.Equal(t, uint64(1), s.Generation())
}

func TestLinkBindingOrdersAttachmentsByOutputSlot(t *testing.T) {
	s, _ := newTestTargets(t, 8, 8)
	require.NoError(t, s.LinkBinding(BindingScene, map[string]int{"color": 0, "position": 1}))

	desc, err := s.BindForWrite(1, BindingScene)
	require.NoError(t, err)
	require.Len(t, desc.Color, 2)
	assert.Equal(t, TargetColor.Format(), desc.Color[0].Target.Format())
	assert.Equal(t, TargetPosition.Format(), desc.Color[1].Target.Format())
	require.NotNil(t, desc.Depth)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, desc.Depth.Target.Format())
	assert.True(t, desc.Depth.Clear)
	assert.Equal(t, float32(1), desc.Depth.ClearValue)
}

func TestLinkBindingRejectsMismatchedOutputs(t *testing.T) {
	s := NewRenderTargetSet(newFakeRenderer(8, 8))
	assert.ErrorIs(t, s.LinkBinding(BindingScene, map[string]int{"position": 0}), ErrOutputMismatch)
	assert.ErrorIs(t, s.LinkBinding(BindingScene, map[string]int{"position": 0, "normal": 1}), ErrOutputMismatch)
	assert.ErrorIs(t, s.LinkBinding(BindingScene, map[string]int{"position": 0, "color": 0}), ErrOutputMismatch)
	assert.ErrorIs(t, s.LinkBinding(BindingScene, map[string]int{"position": 0, "color": 2}), ErrOutputMismatch)
	assert.ErrorIs(t, s.LinkBinding(BindingCount, nil), ErrUnknownBinding)
}

func TestClearColors(t *testing.T) {
	s, _ := newTestTargets(t, 8, 8)
	white := wgpu.Color{R: 1, G: 1, B: 1, A: 1}

	bg, err := s.BindForWrite(1, BindingBackground)
	require.NoError(t, err)
	assert.Equal(t, white, bg.Color[0].ClearValue)

	blur, err := s.BindForWrite(1, BindingBlur)
	require.NoError(t, err)
	assert.Equal(t, white, blur.Color[0].ClearValue)

	thick, err := s.BindForWrite(1, BindingThickness)
	require.NoError(t, err)
	assert.True(t, thick.Color[0].Clear)
	assert.Equal(t, wgpu.Color{}, thick.Color[0].ClearValue)
}

func TestResetForSampleRequiresInputsWrittenThisFrame(t *testing.T) {
	s, _ := newTestTargets(t, 8, 8)

	_, err := s.ResetForSample(0)
	assert.NoError(t, err)
	_, err = s.ResetForSample(0, TargetRawDepth)
	assert.ErrorIs(t, err, ErrInputNotWritten)

	_, err = s.ResetForSample(1, TargetRawDepth)
	assert.ErrorIs(t, err, ErrInputNotWritten)

	s.MarkWritten(1, BindingScene)
	assert.True(t, s.writtenIn(1, TargetRawDepth))
	assert.True(t, s.writtenIn(1, TargetColor))
	assert.False(t, s.writtenIn(1, TargetBlurDepth))

	desc, err := s.ResetForSample(1, TargetRawDepth)
	require.NoError(t, err)
	require.Len(t, desc.Color, 1)
	assert.True(t, desc.Color[0].Surface)
	assert.True(t, desc.Color[0].Clear)
	assert.Nil(t, desc.Depth)

	// a write in an earlier frame does not count
	_, err = s.ResetForSample(2, TargetRawDepth)
	assert.ErrorIs(t, err, ErrInputNotWritten)

	_, err = s.ResetForSample(2, TargetCount)
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestBindForWriteRejectsTargetsBeingSampled(t *testing.T) {
	s, _ := newTestTargets(t, 8, 8)
	s.MarkWritten(1, BindingScene)
	_, err := s.ResetForSample(1, TargetRawDepth)
	require.NoError(t, err)

	_, err = s.BindForWrite(1, BindingScene)
	assert.ErrorIs(t, err, ErrSampleHazard)

	_, err = s.BindForWrite(1, BindingBlur)
	assert.NoError(t, err)

	// sampling state does not carry into the next frame
	_, err = s.BindForWrite(2, BindingScene)
	assert.NoError(t, err)

	_, err = s.BindForWrite(2, BindingSurface)
	assert.ErrorIs(t, err, ErrUnknownBinding)
}

func TestResizeReallocates(t *testing.T) {
	s, r := newTestTargets(t, 8, 8)
	first := s.Target(TargetNormal).(*fakeTexture)
	s.MarkWritten(1, BindingNormal)

	require.NoError(t, s.Resize(8, 8))
	assert.Equal(t, uint64(1), s.Generation())
	require.NoError(t, s.Resize(0, 4))
	assert.Equal(t, uint64(1), s.Generation())

	require.NoError(t, s.Resize(16, 12))
	assert.Equal(t, uint64(2), s.Generation())
	assert.True(t, first.released)
	w, h := s.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 12, h)
	assert.Equal(t, 16, s.Target(TargetNormal).Width())
	assert.False(t, s.writtenIn(1, TargetNormal))
	assert.Len(t, r.textures, 2*int(TargetCount))
}

func TestAllocationFailureMarksBindingIncomplete(t *testing.T) {
	r := newFakeRenderer(8, 8)
	r.failFormats[wgpu.TextureFormatRGBA32Float] = true
	s := NewRenderTargetSet(r)

	err := s.Initialize(8, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFakeCreate)
	assert.ErrorIs(t, s.Incomplete(BindingScene), renderer.CauseMissingAttachment)
	assert.NoError(t, s.Incomplete(BindingBlur))

	_, err = s.BindForWrite(1, BindingScene)
	assert.ErrorIs(t, err, renderer.CauseMissingAttachment)
}

func TestReleasedTargets(t *testing.T) {
	s, _ := newTestTargets(t, 8, 8)
	tex := s.Target(TargetBackground).(*fakeTexture)
	s.Release()
	assert.True(t, tex.released)
	assert.Nil(t, s.Target(TargetBackground))
	assert.ErrorIs(t, s.Initialize(8, 8), ErrTargetsReleased)
	assert.ErrorIs(t, s.Resize(4, 4), ErrTargetsReleased)
	_, err := s.BindForWrite(1, BindingBlur)
	assert.ErrorIs(t, err, ErrTargetsReleased)
}
