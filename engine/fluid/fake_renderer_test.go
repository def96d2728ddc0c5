package fluid

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fluid/common"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	errFakeCreate  = errors.New("fake texture creation failed")
	errFakeSurface = errors.New("fake surface lost")
)

// fakeBufferSizes maps buffers made by newFakeBuffer to their byte size. Any other
// buffer reports an unbounded size.
var fakeBufferSizes sync.Map

func init() {
	bufferSize = func(b *wgpu.Buffer) uint64 {
		if n, ok := fakeBufferSizes.Load(b); ok {
			return n.(uint64)
		}
		return math.MaxUint64
	}
}

// newFakeBuffer returns a buffer handle that reports size bytes without touching a device.
func newFakeBuffer(size uint64) *wgpu.Buffer {
	b := &wgpu.Buffer{}
	fakeBufferSizes.Store(b, size)
	return b
}

type fakeTexture struct {
	desc     renderer.TextureDescriptor
	layers   [][]byte
	released bool
}

var _ renderer.Texture = &fakeTexture{}

func (t *fakeTexture) Label() string              { return t.desc.Label }
func (t *fakeTexture) Width() int                 { return t.desc.Width }
func (t *fakeTexture) Height() int                { return t.desc.Height }
func (t *fakeTexture) Layers() uint32             { return t.desc.LayerCount() }
func (t *fakeTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *fakeTexture) Usage() wgpu.TextureUsage   { return t.desc.Usage }
func (t *fakeTexture) View() *wgpu.TextureView    { return nil }
func (t *fakeTexture) Release()                   { t.released = true }

// recordedBind is one SetBindGroup call.
type recordedBind struct {
	Group uint32
	Label string
}

// recordedDraw is one draw call.
type recordedDraw struct {
	Kind      string
	Count     uint32
	Instances uint32
}

// recordedPass is one RenderPass call and everything its body encoded.
type recordedPass struct {
	Desc     renderer.PassDescriptor
	Pipeline string
	Binds    []recordedBind
	Vertex   map[uint32]*wgpu.Buffer
	Draws    []recordedDraw
	Err      error
}

type fakeEncoder struct {
	pass *recordedPass
}

var _ renderer.PassEncoder = &fakeEncoder{}

func (e *fakeEncoder) SetPipeline(p pipeline.Pipeline) error {
	e.pass.Pipeline = p.PipelineKey()
	return nil
}

func (e *fakeEncoder) SetBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) error {
	e.pass.Binds = append(e.pass.Binds, recordedBind{Group: group, Label: provider.Label()})
	return nil
}

func (e *fakeEncoder) SetVertexBuffer(slot uint32, buf *wgpu.Buffer) {
	e.pass.Vertex[slot] = buf
}

func (e *fakeEncoder) SetIndexBuffer(*wgpu.Buffer) {}

func (e *fakeEncoder) Draw(vertexCount, instanceCount uint32) {
	e.pass.Draws = append(e.pass.Draws, recordedDraw{Kind: "draw", Count: vertexCount, Instances: instanceCount})
}

func (e *fakeEncoder) DrawIndexed(indexCount, instanceCount, _ uint32) {
	e.pass.Draws = append(e.pass.Draws, recordedDraw{Kind: "indexed", Count: indexCount, Instances: instanceCount})
}

func (e *fakeEncoder) DrawMesh(mesh bind_group_provider.BindGroupProvider, instanceCount uint32) {
	e.pass.Draws = append(e.pass.Draws, recordedDraw{Kind: "mesh:" + mesh.Label(), Count: uint32(mesh.IndexCount()), Instances: instanceCount})
}

// fakeRenderer records every call the fluid package makes and never touches a GPU.
type fakeRenderer struct {
	width, height int

	// failFormats makes CreateTexture fail for targets of these formats.
	failFormats map[wgpu.TextureFormat]bool
	// failSurface, when set, is returned by every pass that draws to the surface.
	failSurface error

	textures  []*fakeTexture
	uploads   []*fakeTexture
	pipelines map[string]pipeline.Pipeline
	meshes    map[string][]byte
	bindInits []string
	writes    []bind_group_provider.BufferWrite
	passes    []*recordedPass
}

var _ renderer.Renderer = &fakeRenderer{}

func newFakeRenderer(width, height int) *fakeRenderer {
	return &fakeRenderer{
		width:       width,
		height:      height,
		failFormats: make(map[wgpu.TextureFormat]bool),
		pipelines:   make(map[string]pipeline.Pipeline),
		meshes:      make(map[string][]byte),
	}
}

func (r *fakeRenderer) Pipeline(key string) pipeline.Pipeline { return r.pipelines[key] }

func (r *fakeRenderer) Pipelines() map[string]pipeline.Pipeline { return r.pipelines }

func (r *fakeRenderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		if err := p.Validate(); err != nil {
			return err
		}
		r.pipelines[p.PipelineKey()] = p
	}
	return nil
}

func (r *fakeRenderer) Resize(width, height int) {
	r.width, r.height = width, height
}

func (r *fakeRenderer) Width() int                        { return r.width }
func (r *fakeRenderer) Height() int                       { return r.height }
func (r *fakeRenderer) SurfaceFormat() wgpu.TextureFormat { return wgpu.TextureFormatBGRA8Unorm }

func (r *fakeRenderer) CreateTexture(desc renderer.TextureDescriptor) (renderer.Texture, error) {
	if r.failFormats[desc.Format] {
		return nil, fmt.Errorf("%s: %w", desc.Label, errFakeCreate)
	}
	t := &fakeTexture{desc: desc}
	r.textures = append(r.textures, t)
	return t, nil
}

func (r *fakeRenderer) UploadTexture(desc renderer.TextureDescriptor, layers [][]byte) (renderer.Texture, error) {
	if int(desc.LayerCount()) != len(layers) {
		return nil, fmt.Errorf("%s: %d layers for %d slices", desc.Label, desc.LayerCount(), len(layers))
	}
	t := &fakeTexture{desc: desc, layers: layers}
	r.uploads = append(r.uploads, t)
	return t, nil
}

func (r *fakeRenderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, _ []byte, indexCount int) error {
	provider.SetIndexCount(indexCount)
	r.meshes[provider.Label()] = append([]byte(nil), vertexData...)
	return nil
}

func (r *fakeRenderer) InitVertexBuffers(bind_group_provider.BindGroupProvider, map[int]uint64) error {
	return nil
}

func (r *fakeRenderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, _ wgpu.BindGroupLayoutDescriptor, _ map[int]wgpu.BufferUsage, _ map[int]uint64) error {
	r.bindInits = append(r.bindInits, provider.Label())
	return nil
}

func (r *fakeRenderer) InitSampler(bind_group_provider.BindGroupProvider, int, common.SamplerStagingData) error {
	return nil
}

func (r *fakeRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.writes = append(r.writes, writes...)
}

func (r *fakeRenderer) BeginFrame() error { return nil }

func (r *fakeRenderer) RenderPass(desc renderer.PassDescriptor, body func(renderer.PassEncoder) error) error {
	rec := &recordedPass{Desc: desc, Vertex: make(map[uint32]*wgpu.Buffer)}
	r.passes = append(r.passes, rec)
	if err := renderer.CheckAttachments(desc, r.width, r.height); err != nil {
		rec.Err = err
		return err
	}
	if r.failSurface != nil && len(desc.Color) > 0 && desc.Color[0].Surface {
		rec.Err = r.failSurface
		return r.failSurface
	}
	if err := body(&fakeEncoder{pass: rec}); err != nil {
		rec.Err = err
		return fmt.Errorf("render pass %q: %w", desc.Label, err)
	}
	return nil
}

func (r *fakeRenderer) EndFrame()                           {}
func (r *fakeRenderer) Present()                            {}
func (r *fakeRenderer) SetPresentMode(renderer.PresentMode) {}
func (r *fakeRenderer) Release()                            {}

// takePasses returns and forgets the passes recorded so far.
func (r *fakeRenderer) takePasses() []*recordedPass {
	out := r.passes
	r.passes = nil
	return out
}

// newTestPool returns a small worker pool stopped when the test ends.
func newTestPool(t *testing.T) worker.DynamicWorkerPool {
	t.Helper()
	pool := worker.NewDynamicWorkerPool(2, 16, time.Second)
	t.Cleanup(pool.Stop)
	return pool
}
