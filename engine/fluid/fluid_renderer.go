package fluid

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fluid/common"
	"github.com/Carmen-Shannon/oxy-fluid/engine/camera"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
)

var ErrRendererReleased = errors.New("fluid renderer released")

// FluidRenderer draws a particle stream as a screen-space fluid surface.
// It is driven once per frame by Display, between Renderer.BeginFrame and Renderer.EndFrame.
type FluidRenderer interface {
	// SetParticles sets the particle buffers drawn by the next frames. The buffers are
	// borrowed and must stay alive until they are replaced.
	//
	// Parameters:
	//   - stream: the particle positions, colors and count
	//
	// Returns:
	//   - error: ErrInvalidParticles if a non-empty stream lacks a buffer
	SetParticles(stream ParticleStream) error

	// SetCamera sets the camera snapshot used by the next frame.
	//
	// Parameters:
	//   - state: the camera matrices, clip planes and viewport
	SetCamera(state camera.State)

	// SetRadius sets the particle radius in world units.
	//
	// Parameters:
	//   - radius: the radius
	SetRadius(radius float32)

	// Radius returns the particle radius in world units.
	//
	// Returns:
	//   - float32: the radius
	Radius() float32

	// SetDisplayMode selects what the composite pass shows. Out-of-range modes select Total.
	//
	// Parameters:
	//   - mode: the display mode
	SetDisplayMode(mode fluid_types.DisplayMode)

	// DisplayMode returns the current display mode.
	//
	// Returns:
	//   - fluid_types.DisplayMode: the normalized display mode
	DisplayMode() fluid_types.DisplayMode

	// SetParams replaces the shading parameters. The radius and display mode are taken from params too.
	//
	// Parameters:
	//   - params: the parameters
	SetParams(params fluid_types.GPUFluidParams)

	// Params returns the shading parameters.
	//
	// Returns:
	//   - fluid_types.GPUFluidParams: the parameters, without the per-frame point scale
	Params() fluid_types.GPUFluidParams

	// LoadSkyboxTexture loads the background skybox from a layout image.
	//
	// Parameters:
	//   - path: the image file
	//
	// Returns:
	//   - error: a decode or layout failure naming the file; the previous skybox is kept
	LoadSkyboxTexture(path string) error

	// LoadCubeMapTexture loads the reflection cube map from a layout image.
	//
	// Parameters:
	//   - path: the image file
	//
	// Returns:
	//   - error: a decode or layout failure naming the file; the previous cube map is kept
	LoadCubeMapTexture(path string) error

	// Resize reallocates every render target at the new size.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: the incompleteness of any binding at the new size
	Resize(width, height int) error

	// Display runs every pass of one frame.
	//
	// Returns:
	//   - error: the joined failures of the passes that did not complete
	Display() error

	// Targets returns the render target set.
	//
	// Returns:
	//   - *RenderTargetSet: the targets
	Targets() *RenderTargetSet

	// Program returns the linked program of a pass, or nil if it failed to build.
	//
	// Parameters:
	//   - pass: the pass
	//
	// Returns:
	//   - *PassProgram: the program
	Program(pass Pass) *PassProgram

	// PassLog returns what every pass did in the last frame, in execution order.
	//
	// Returns:
	//   - []PassRecord: one record per pass
	PassLog() []PassRecord

	// Status returns the link and allocation failures recorded so far.
	//
	// Returns:
	//   - error: the joined failures, or nil if every pass is usable
	Status() error

	// Release frees every GPU resource the fluid renderer created.
	Release()
}

type fluidRenderer struct {
	mu sync.Mutex
	r  renderer.Renderer

	pool     worker.DynamicWorkerPool
	ownsPool bool

	shaderDir    string
	cubeLayout   CubeLayout
	skyboxLayout CubeLayout

	params    fluid_types.GPUFluidParams
	cam       camera.State
	particles ParticleStream

	targets   *RenderTargetSet
	targetGen uint64
	seq       *sequencer
	env       *Environment

	status   []error
	released bool
}

var _ FluidRenderer = &fluidRenderer{}

// NewFluidRenderer links every pass program, allocates the render targets at the renderer's
// size and creates the environment. A pass that fails to link is logged and skipped each
// frame; see Status.
//
// Parameters:
//   - r: the renderer to draw with
//   - options: functional options applied before construction
//
// Returns:
//   - FluidRenderer: the fluid renderer
//   - error: a failure that leaves nothing to draw with
func NewFluidRenderer(r renderer.Renderer, options ...FluidRendererBuilderOption) (FluidRenderer, error) {
	if r == nil {
		return nil, errors.New("fluid renderer requires a renderer")
	}
	f := &fluidRenderer{
		r:            r,
		params:       fluid_types.DefaultFluidParams(),
		cubeLayout:   LayoutHorizontalCross,
		skyboxLayout: LayoutHorizontalCross,
	}
	for _, opt := range options {
		opt(f)
	}
	if f.pool == nil {
		f.pool = worker.NewDynamicWorkerPool(max(runtime.NumCPU()-1, 1), 256, 1*time.Second)
		f.ownsPool = true
	}

	f.targets = NewRenderTargetSet(r)
	f.seq = &sequencer{r: r, targets: f.targets}

	for _, p := range passOrder {
		prog, err := f.link(p)
		if err != nil {
			f.report(err)
			continue
		}
		f.seq.programs[p] = prog
	}

	frame, err := f.newFrameProvider()
	if err != nil {
		f.Release()
		return nil, err
	}
	f.seq.frameProvider = frame

	quad, err := newFullScreenQuad(r)
	if err != nil {
		f.Release()
		return nil, err
	}
	f.seq.quad = quad

	env, err := NewEnvironment(r, f.pool, f.seq.programs[PassBackground], f.seq.programs[PassComposite], f.cubeLayout, f.skyboxLayout)
	if err != nil {
		f.report(fmt.Errorf("environment: %w", err))
	}
	f.env = env
	f.seq.env = env

	// allocation failures are logged by the target set and surface through Status
	_ = f.targets.Initialize(r.Width(), r.Height())
	if err := f.bindTargets(); err != nil {
		f.report(err)
	}
	return f, nil
}

// link builds a pass program, registers its pipeline and orders its binding's attachments.
func (f *fluidRenderer) link(p Pass) (*PassProgram, error) {
	prog, err := buildProgram(p, f.shaderDir)
	if err != nil {
		return nil, err
	}
	if err := f.r.RegisterPipelines(prog.Pipeline); err != nil {
		return nil, fmt.Errorf("%v pass: %w", p, err)
	}
	if prog.Binding != BindingSurface {
		if err := f.targets.LinkBinding(prog.Binding, prog.Pipeline.OutputSlots()); err != nil {
			return nil, fmt.Errorf("%v pass: %w", p, err)
		}
	}
	return prog, nil
}

// newFrameProvider creates the camera and parameter uniforms shared by every pass at group 0.
func (f *fluidRenderer) newFrameProvider() (bind_group_provider.BindGroupProvider, error) {
	for _, prog := range f.seq.programs {
		if prog == nil {
			continue
		}
		frame := bind_group_provider.NewBindGroupProvider("Fluid Frame")
		if err := f.r.InitBindGroup(frame, prog.Layout(0), nil, nil); err != nil {
			frame.Release()
			return nil, fmt.Errorf("frame uniforms: %w", err)
		}
		return frame, nil
	}
	return nil, fmt.Errorf("frame uniforms: %w: no pass linked", ErrProgramUnavailable)
}

// bindTargets points every pass's target bind group at the current target textures.
func (f *fluidRenderer) bindTargets() error {
	gen := f.targets.Generation()
	if gen == f.targetGen {
		return nil
	}
	var errs []error
	for _, p := range passOrder {
		prog := f.seq.programs[p]
		if prog == nil || prog.TargetGroup < 0 {
			continue
		}
		provider := f.seq.inputs[p]
		if provider == nil {
			provider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("Fluid %v Targets", p))
			f.seq.inputs[p] = provider
		}
		missing := false
		for binding, id := range prog.InputBindings() {
			tex := f.targets.Target(id)
			if tex == nil {
				errs = append(errs, fmt.Errorf("%v pass: %w: %v", p, ErrUnknownTarget, id))
				missing = true
				break
			}
			provider.SetTextureView(binding, tex.View())
		}
		if missing {
			provider.ReleaseBindGroup()
			continue
		}
		if err := f.r.InitBindGroup(provider, prog.Layout(prog.TargetGroup), nil, nil); err != nil {
			errs = append(errs, fmt.Errorf("%v pass: %w", p, err))
		}
	}
	f.targetGen = gen
	return errors.Join(errs...)
}

func (f *fluidRenderer) report(err error) {
	log.Printf("[Fluid] %v", err)
	f.status = append(f.status, err)
}

func (f *fluidRenderer) SetParticles(stream ParticleStream) error {
	if err := stream.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.particles = stream
	return nil
}

func (f *fluidRenderer) SetCamera(state camera.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cam = state
}

func (f *fluidRenderer) SetRadius(radius float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params.Radius = radius
}

func (f *fluidRenderer) Radius() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params.Radius
}

func (f *fluidRenderer) SetDisplayMode(mode fluid_types.DisplayMode) {
	mode = mode.Normalize()
	f.mu.Lock()
	defer f.mu.Unlock()
	if uint32(mode) != f.params.DisplayMode {
		log.Printf("[Fluid] %s", mode)
	}
	f.params.DisplayMode = uint32(mode)
}

func (f *fluidRenderer) DisplayMode() fluid_types.DisplayMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fluid_types.DisplayMode(f.params.DisplayMode).Normalize()
}

func (f *fluidRenderer) SetParams(params fluid_types.GPUFluidParams) {
	params.DisplayMode = uint32(fluid_types.DisplayMode(params.DisplayMode).Normalize())
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = params
}

func (f *fluidRenderer) Params() fluid_types.GPUFluidParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

func (f *fluidRenderer) LoadSkyboxTexture(path string) error {
	if f.env == nil {
		return fmt.Errorf("skybox %s: %w", path, ErrProgramUnavailable)
	}
	return f.env.LoadSkybox(path)
}

func (f *fluidRenderer) LoadCubeMapTexture(path string) error {
	if f.env == nil {
		return fmt.Errorf("cubemap %s: %w", path, ErrProgramUnavailable)
	}
	return f.env.LoadCubeMap(path)
}

func (f *fluidRenderer) Resize(width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return ErrRendererReleased
	}
	err := f.targets.Resize(width, height)
	return errors.Join(err, f.bindTargets())
}

func (f *fluidRenderer) Display() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return ErrRendererReleased
	}
	if err := f.bindTargets(); err != nil {
		log.Printf("[Fluid] %v", err)
	}

	camBytes, paramBytes := f.uniforms()
	f.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: f.seq.frameProvider, Binding: 0, Data: camBytes},
		{Provider: f.seq.frameProvider, Binding: 1, Data: paramBytes},
	})
	uniforms := append(append(make([]byte, 0, len(camBytes)+len(paramBytes)), camBytes...), paramBytes...)
	return f.seq.run(f.particles, uniforms)
}

// uniforms serializes the camera and parameter blocks for the current frame. Callers hold mu.
func (f *fluidRenderer) uniforms() ([]byte, []byte) {
	cam := camera.NewGPUCameraUniform(f.cam)
	params := f.params
	params.PointScale = common.PointScale(f.cam.ViewportHeight, f.cam.FovY)
	return cam.Marshal(), params.Marshal()
}

func (f *fluidRenderer) Targets() *RenderTargetSet {
	return f.targets
}

func (f *fluidRenderer) Program(pass Pass) *PassProgram {
	if pass < 0 || pass >= PassCount {
		return nil
	}
	return f.seq.programs[pass]
}

func (f *fluidRenderer) PassLog() []PassRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq.passLog()
}

func (f *fluidRenderer) Status() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := append([]error(nil), f.status...)
	for b := range BindingCount {
		if f.seq.programs[passForBinding(b)] == nil {
			continue
		}
		if err := f.targets.Incomplete(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// passForBinding returns the pass that writes a binding.
func passForBinding(b BindingID) Pass {
	for p, spec := range passSpecs {
		if spec.binding == b {
			return Pass(p)
		}
	}
	return PassComposite
}

func (f *fluidRenderer) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return
	}
	f.released = true
	if f.env != nil {
		f.env.Release()
	}
	for p, provider := range f.seq.inputs {
		if provider != nil {
			provider.Release()
			f.seq.inputs[p] = nil
		}
	}
	if f.seq.frameProvider != nil {
		f.seq.frameProvider.Release()
	}
	if f.seq.quad != nil {
		f.seq.quad.Release()
	}
	f.targets.Release()
	if f.ownsPool {
		f.pool.Stop()
	}
}
