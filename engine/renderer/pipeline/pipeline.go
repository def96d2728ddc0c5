package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrIncompleteProgram is returned by Validate when a pipeline is missing a stage or its
// stages do not fit together.
var ErrIncompleteProgram = errors.New("incomplete pipeline program")

// sampleTypeKey addresses one texture binding of a merged bind group layout.
type sampleTypeKey struct {
	group, binding int
}

// pipeline is the implementation of the Pipeline interface.
// It holds the underlying WebGPU render pipeline and the configuration it is created from.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// the following shader references are used for pipeline creation, they are required to be set before registering a pipeline.

	vertexShader, fragmentShader shader.Shader

	// renderPipeline is the created GPU pipeline, nil until registered
	renderPipeline *wgpu.RenderPipeline

	// The following properties are used to configure the pipeline during creation and can be toggled/set with the builder options.

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        wgpu.CompareFunction
	depthFormat         wgpu.TextureFormat
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState

	// colorTargets holds one format per fragment output location. Empty means a single
	// target in the surface format.
	colorTargets []wgpu.TextureFormat
	stepModes    map[int]wgpu.VertexStepMode
	sampleTypes  map[sampleTypeKey]wgpu.TextureSampleType
}

// Pipeline defines the interface for a GPU render pipeline (vertex + fragment shaders). It holds all
// configuration state required for pipeline creation including depth, blend, cull, topology and
// color target settings, and exposes the merged layouts the renderer builds the GPU objects from.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex or fragment)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Pipeline returns the underlying GPU render pipeline, or nil if it has not been registered.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the created pipeline
	Pipeline() *wgpu.RenderPipeline

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// DepthCompare returns the effective depth comparison: the configured function when
	// depth testing is enabled, CompareFunctionAlways otherwise.
	//
	// Returns:
	//   - wgpu.CompareFunction: the depth comparison function
	DepthCompare() wgpu.CompareFunction

	// DepthFormat returns the depth attachment format, or TextureFormatUndefined when the
	// pipeline renders without a depth attachment.
	//
	// Returns:
	//   - wgpu.TextureFormat: the depth format
	DepthFormat() wgpu.TextureFormat

	// DepthBias returns the depth bias value configured for this pipeline.
	//
	// Returns:
	//   - int32: the depth bias value for this pipeline
	DepthBias() int32

	// DepthBiasSlopeScale returns the depth bias slope scale configured for this pipeline.
	//
	// Returns:
	//   - float32: the depth bias slope scale for this pipeline
	DepthBiasSlopeScale() float32

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline (e.g., wgpu.CullModeNone, wgpu.CullModeFront, wgpu.CullModeBack)
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline (e.g., wgpu.PrimitiveTopologyTriangleList)
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline (e.g., wgpu.FrontFaceCCW, wgpu.FrontFaceCW)
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline (e.g., wgpu.ColorWriteMaskAll)
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state for this pipeline
	BlendState() *wgpu.BlendState

	// ColorTargets returns the color target formats indexed by fragment output location.
	// An empty slice means a single target in the surface format.
	//
	// Returns:
	//   - []wgpu.TextureFormat: the color target formats
	ColorTargets() []wgpu.TextureFormat

	// TargetsSurface reports whether the pipeline renders to the window surface.
	//
	// Returns:
	//   - bool: true if no offscreen color targets were configured
	TargetsSurface() bool

	// OutputSlots returns the fragment shader's output name to location map. The map is
	// built once when the fragment shader is parsed.
	//
	// Returns:
	//   - map[string]int: output name to @location index, empty if no fragment shader is set
	OutputSlots() map[string]int

	// VertexLayouts returns the vertex buffer layouts ordered by buffer slot, with any
	// configured step modes applied.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: one layout per vertex buffer slot
	VertexLayouts() []wgpu.VertexBufferLayout

	// BindGroupLayouts merges the vertex and fragment bind group layouts, applies the
	// configured sample type overrides, and returns them ordered by group index.
	//
	// Returns:
	//   - []wgpu.BindGroupLayoutDescriptor: one descriptor per group, starting at group 0
	//   - error: an error if the used group indices are not contiguous from 0
	BindGroupLayouts() ([]wgpu.BindGroupLayoutDescriptor, error)

	// Validate checks that both stages are present and that every fragment output location
	// has a color target.
	//
	// Returns:
	//   - error: an error wrapping ErrIncompleteProgram if the stages do not fit together
	Validate() error

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// Release releases the GPU render pipeline, if one was created.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new render Pipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      wgpu.CompareFunctionLess,
		depthFormat:       wgpu.TextureFormatUndefined,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
		stepModes:   make(map[int]wgpu.VertexStepMode),
		sampleTypes: make(map[sampleTypeKey]wgpu.TextureSampleType),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Pipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthCompare() wgpu.CompareFunction {
	if !p.depthTestEnabled {
		return wgpu.CompareFunctionAlways
	}
	return p.depthCompare
}

func (p *pipeline) DepthFormat() wgpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) ColorTargets() []wgpu.TextureFormat {
	return p.colorTargets
}

func (p *pipeline) TargetsSurface() bool {
	return len(p.colorTargets) == 0
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) OutputSlots() map[string]int {
	if p.fragmentShader == nil {
		return map[string]int{}
	}
	return p.fragmentShader.Outputs()
}

func (p *pipeline) VertexLayouts() []wgpu.VertexBufferLayout {
	if p.vertexShader == nil {
		return nil
	}
	byKey := p.vertexShader.VertexLayouts()
	keys := make([]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	layouts := make([]wgpu.VertexBufferLayout, 0, len(keys))
	for _, k := range keys {
		for _, l := range byKey[k] {
			if mode, ok := p.stepModes[len(layouts)]; ok {
				l.StepMode = mode
			}
			layouts = append(layouts, l)
		}
	}
	return layouts
}

func (p *pipeline) BindGroupLayouts() ([]wgpu.BindGroupLayoutDescriptor, error) {
	var vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor
	if p.vertexShader != nil {
		vertexLayouts = p.vertexShader.BindGroupLayoutDescriptors()
	}
	if p.fragmentShader != nil {
		fragmentLayouts = p.fragmentShader.BindGroupLayoutDescriptors()
	}
	merged := mergeBindGroupLayouts(vertexLayouts, fragmentLayouts)

	out := make([]wgpu.BindGroupLayoutDescriptor, len(merged))
	for g, desc := range merged {
		if g < 0 || g >= len(merged) {
			return nil, fmt.Errorf("pipeline %s: bind groups must be contiguous from 0, found group %d of %d", p.pipelineKey, g, len(merged))
		}
		desc.Label = fmt.Sprintf("%s Group %d", p.pipelineKey, g)
		for i, e := range desc.Entries {
			if st, ok := p.sampleTypes[sampleTypeKey{g, int(e.Binding)}]; ok && e.Texture.SampleType != wgpu.TextureSampleTypeUndefined {
				desc.Entries[i].Texture.SampleType = st
			}
		}
		out[g] = desc
	}
	return out, nil
}

func (p *pipeline) Validate() error {
	if p.vertexShader == nil || p.fragmentShader == nil {
		return fmt.Errorf("pipeline %s: both vertex and fragment shaders must be set: %w", p.pipelineKey, ErrIncompleteProgram)
	}
	if p.vertexShader.ShaderType() != shader.ShaderTypeVertex || p.fragmentShader.ShaderType() != shader.ShaderTypeFragment {
		return fmt.Errorf("pipeline %s: shader stages are swapped: %w", p.pipelineKey, ErrIncompleteProgram)
	}
	targets := max(len(p.colorTargets), 1)
	for name, loc := range p.OutputSlots() {
		if loc >= targets {
			return fmt.Errorf("pipeline %s: output %q at location %d has no color target (%d configured): %w",
				p.pipelineKey, name, loc, targets, ErrIncompleteProgram)
		}
	}
	return nil
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
}

// mergeBindGroupLayouts merges the bind group layout descriptors from a vertex and fragment shader
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
		for _, e := range vertexLayouts[g].Entries {
			entryMap[e.Binding] = e
		}
		for _, e := range fragmentLayouts[g].Entries {
			if existing, ok := entryMap[e.Binding]; ok {
				// same binding in both stages, OR the visibility
				existing.Visibility |= e.Visibility
				entryMap[e.Binding] = existing
			} else {
				entryMap[e.Binding] = e
			}
		}

		keys := make([]uint32, 0, len(entryMap))
		for k := range maps.Keys(entryMap) {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, entryMap[k])
		}
		merged[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}

	return merged
}
