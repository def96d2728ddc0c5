package renderer

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTexture struct {
	label  string
	w, h   int
	layers uint32
	format wgpu.TextureFormat
	usage  wgpu.TextureUsage
}

func (t *stubTexture) Label() string              { return t.label }
func (t *stubTexture) Width() int                 { return t.w }
func (t *stubTexture) Height() int                { return t.h }
func (t *stubTexture) Layers() uint32             { return t.layers }
func (t *stubTexture) Format() wgpu.TextureFormat { return t.format }
func (t *stubTexture) Usage() wgpu.TextureUsage   { return t.usage }
func (t *stubTexture) View() *wgpu.TextureView    { return nil }
func (t *stubTexture) Release()                   {}

func target(label string, format wgpu.TextureFormat, w, h int) *stubTexture {
	return &stubTexture{
		label:  label,
		w:      w,
		h:      h,
		layers: 1,
		format: format,
		usage:  wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	}
}

func requireCause(t *testing.T, err error, cause error) {
	t.Helper()
	require.Error(t, err)
	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "scene", incomplete.Binding)
}

func TestCheckAttachmentsComplete(t *testing.T) {
	desc := PassDescriptor{
		Label: "scene",
		Color: []ColorAttachment{
			{Target: target("position", wgpu.TextureFormatRGBA32Float, 640, 480), Clear: true},
			{Target: target("color", wgpu.TextureFormatRGBA16Float, 640, 480), Clear: true},
		},
		Depth: &DepthAttachment{Target: target("raw_depth", wgpu.TextureFormatDepth32Float, 640, 480), Clear: true, ClearValue: 1},
	}
	assert.NoError(t, CheckAttachments(desc, 640, 480))

	surface := PassDescriptor{Label: "composite", Color: []ColorAttachment{{Surface: true}}}
	assert.NoError(t, CheckAttachments(surface, 800, 600))

	depthOnly := PassDescriptor{Label: "depth", Depth: &DepthAttachment{Target: target("d", wgpu.TextureFormatDepth32Float, 4, 4)}}
	assert.NoError(t, CheckAttachments(depthOnly, 1, 1))
}

func TestCheckAttachmentsCauses(t *testing.T) {
	color := target("color", wgpu.TextureFormatRGBA16Float, 640, 480)

	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene"}, 640, 480), CauseMissingAttachment)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{}}}, 640, 480), CauseMissingAttachment)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Depth: &DepthAttachment{}}, 640, 480), CauseMissingAttachment)

	small := target("small", wgpu.TextureFormatRGBA16Float, 320, 240)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Target: color}, {Target: small}}}, 640, 480), CauseDimensionMismatch)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Surface: true}}, Depth: &DepthAttachment{Target: target("d", wgpu.TextureFormatDepth32Float, 320, 240)}}, 640, 480), CauseDimensionMismatch)

	depthAsColor := target("depth", wgpu.TextureFormatDepth32Float, 640, 480)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Target: depthAsColor}}}, 640, 480), CauseUnsupportedFormat)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Depth: &DepthAttachment{Target: color}}, 640, 480), CauseUnsupportedFormat)

	sampledOnly := target("sampled", wgpu.TextureFormatRGBA8Unorm, 640, 480)
	sampledOnly.usage = wgpu.TextureUsageTextureBinding
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Target: sampledOnly}}}, 640, 480), CauseMissingUsage)

	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Target: color}, {Target: color}}}, 640, 480), CauseUnsupportedConfiguration)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Surface: true}, {Surface: true}}}, 640, 480), CauseUnsupportedConfiguration)
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Surface: true, Target: color}}}, 640, 480), CauseUnsupportedConfiguration)

	layered := target("cube", wgpu.TextureFormatRGBA8Unorm, 640, 480)
	layered.layers = 6
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: []ColorAttachment{{Target: layered}}}, 640, 480), CauseUnsupportedConfiguration)

	tooMany := make([]ColorAttachment, MaxColorAttachments+1)
	for i := range tooMany {
		tooMany[i] = ColorAttachment{Target: target("c", wgpu.TextureFormatRGBA8Unorm, 640, 480)}
	}
	requireCause(t, CheckAttachments(PassDescriptor{Label: "scene", Color: tooMany}, 640, 480), CauseUnsupportedConfiguration)
}

func TestIncompleteErrorMessage(t *testing.T) {
	err := &IncompleteError{Binding: "blur", Cause: CauseMissingUsage, Detail: "color0 (blur_depth)"}
	assert.Equal(t, `binding "blur" incomplete: attachment lacks render attachment usage: color0 (blur_depth)`, err.Error())
	assert.ErrorIs(t, err, CauseMissingUsage)
}

func TestRunScopedEndsOnEveryExitPath(t *testing.T) {
	ended := 0
	end := func() { ended++ }

	require.NoError(t, runScoped("ok", end, func() error { return nil }))
	assert.Equal(t, 1, ended)

	boom := errors.New("boom")
	err := runScoped("failing", end, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"failing"`)
	assert.Equal(t, 2, ended)

	err = runScoped("panicking", end, func() error { panic("bad draw") })
	assert.ErrorIs(t, err, ErrPassPanicked)
	assert.Contains(t, err.Error(), "bad draw")
	assert.Equal(t, 3, ended)
}

func TestRunScopedEndsBeforeRecover(t *testing.T) {
	var order []string
	err := runScoped("order", func() { order = append(order, "end") }, func() error {
		order = append(order, "body")
		panic("x")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"body", "end"}, order)
}
