package fluid

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/*.wgsl
var shaderAssets embed.FS

// Pass identifies one stage of the fluid pipeline.
type Pass int

const (
	PassBackground Pass = iota
	PassDepth
	PassThickness
	PassBlur
	PassNormal
	PassComposite
	PassCount
)

// passOrder is the fixed execution order of a frame.
var passOrder = [PassCount]Pass{PassBackground, PassDepth, PassThickness, PassBlur, PassNormal, PassComposite}

var passNames = [PassCount]string{"background", "depth", "thickness", "blur", "normal", "composite"}

func (p Pass) String() string {
	if p < 0 || p >= PassCount {
		return fmt.Sprintf("pass(%d)", int(p))
	}
	return passNames[p]
}

type drawKind int

const (
	drawSkybox drawKind = iota
	drawSprites
	drawQuad
)

// spriteVertices is the number of vertices of one particle sprite.
const spriteVertices = 6

type passSpec struct {
	vertex, fragment string
	binding          BindingID
	draw             drawKind
}

var passSpecs = [PassCount]passSpec{
	PassBackground: {vertex: "skybox.vert.wgsl", fragment: "skybox.frag.wgsl", binding: BindingBackground, draw: drawSkybox},
	PassDepth:      {vertex: "sprite.vert.wgsl", fragment: "depth.frag.wgsl", binding: BindingScene, draw: drawSprites},
	PassThickness:  {vertex: "sprite.vert.wgsl", fragment: "thickness.frag.wgsl", binding: BindingThickness, draw: drawSprites},
	PassBlur:       {vertex: "quad.vert.wgsl", fragment: "blur.frag.wgsl", binding: BindingBlur, draw: drawQuad},
	PassNormal:     {vertex: "quad.vert.wgsl", fragment: "normal.frag.wgsl", binding: BindingNormal, draw: drawQuad},
	PassComposite:  {vertex: "quad.vert.wgsl", fragment: "composite.frag.wgsl", binding: BindingSurface, draw: drawQuad},
}

var (
	ErrProgramUnavailable = errors.New("pass program unavailable")
	ErrUnknownRole        = errors.New("binding role names no resource")
)

// ResourceSlot is the group and binding a shader declares a resource at.
type ResourceSlot struct {
	Group, Binding int
}

// PassProgram is a linked pass: its pipeline, the binding it writes and where its shaders
// expect each input. Everything is resolved once when the program is built.
type PassProgram struct {
	Pass     Pass
	Binding  BindingID
	Pipeline pipeline.Pipeline

	// Layouts are the pipeline's bind group layouts, indexed by group.
	Layouts []wgpu.BindGroupLayoutDescriptor
	// TargetGroup is the group the program reads render targets from, or -1.
	TargetGroup int
	// EnvironmentGroup is the group the program reads environment textures from, or -1.
	EnvironmentGroup int

	inputs      map[int]TargetID
	environment map[shader.AnnotationArg]ResourceSlot
	draw        drawKind
}

// InputTargets returns the render targets the program samples, in binding order.
func (p *PassProgram) InputTargets() []TargetID {
	bindings := make([]int, 0, len(p.inputs))
	for b := range p.inputs {
		bindings = append(bindings, b)
	}
	sort.Ints(bindings)
	out := make([]TargetID, len(bindings))
	for i, b := range bindings {
		out[i] = p.inputs[b]
	}
	return out
}

// InputBindings returns the binding index of every sampled target in TargetGroup.
func (p *PassProgram) InputBindings() map[int]TargetID {
	out := make(map[int]TargetID, len(p.inputs))
	for b, id := range p.inputs {
		out[b] = id
	}
	return out
}

// EnvironmentSlot returns where the program expects an environment resource.
//
// Parameters:
//   - role: the binding role, such as cubemap or skybox_face
//
// Returns:
//   - ResourceSlot: the group and binding
//   - bool: false if the program does not read the resource
func (p *PassProgram) EnvironmentSlot(role shader.AnnotationArg) (ResourceSlot, bool) {
	slot, ok := p.environment[role]
	return slot, ok
}

// Layout returns the bind group layout of a group, or an empty descriptor.
func (p *PassProgram) Layout(group int) wgpu.BindGroupLayoutDescriptor {
	if group < 0 || group >= len(p.Layouts) {
		return wgpu.BindGroupLayoutDescriptor{}
	}
	return p.Layouts[group]
}

// loadShader builds a shader from an override directory when it holds the named file and
// from the embedded assets otherwise.
func loadShader(shaderDir, name string, shaderType shader.ShaderType) (shader.Shader, error) {
	key := "fluid/" + name
	if shaderDir != "" {
		path := filepath.Join(shaderDir, name)
		if _, err := os.Stat(path); err == nil {
			return shader.NewShaderFromFile(key, shaderType, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("shader %s: %w", path, err)
		}
	}
	src, err := shaderAssets.ReadFile("assets/" + name)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	return shader.NewShaderFromSource(key, shaderType, string(src))
}

// buildProgram parses a pass's shaders and links them into a pipeline description. The
// pipeline is not registered with the GPU here.
//
// Parameters:
//   - pass: the pass to build
//   - shaderDir: optional directory whose .wgsl files replace the embedded ones
//
// Returns:
//   - *PassProgram: the linked program
//   - error: a parse or link failure naming the pass
func buildProgram(pass Pass, shaderDir string) (*PassProgram, error) {
	if pass < 0 || pass >= PassCount {
		return nil, fmt.Errorf("%w: %v", ErrProgramUnavailable, pass)
	}
	spec := passSpecs[pass]
	vs, err := loadShader(shaderDir, spec.vertex, shader.ShaderTypeVertex)
	if err != nil {
		return nil, fmt.Errorf("%v pass: %w", pass, err)
	}
	fsh, err := loadShader(shaderDir, spec.fragment, shader.ShaderTypeFragment)
	if err != nil {
		return nil, fmt.Errorf("%v pass: %w", pass, err)
	}

	prog := &PassProgram{
		Pass:             pass,
		Binding:          spec.binding,
		TargetGroup:      -1,
		EnvironmentGroup: -1,
		inputs:           make(map[int]TargetID),
		environment:      make(map[shader.AnnotationArg]ResourceSlot),
		draw:             spec.draw,
	}

	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fsh),
		pipeline.WithCullMode(wgpu.CullModeNone),
	}

	for _, a := range append(vs.Declarations(), fsh.Declarations()...) {
		if a.Type != shader.AnnotationTypeProvider || a.Group == nil || a.Binding == nil || len(a.Args) < 2 {
			continue
		}
		group, binding, role := *a.Group, *a.Binding, a.Args[1]
		switch a.Args[0] {
		case shader.AnnotationArgTargets:
			id, ok := TargetForRole(string(role))
			if !ok {
				return nil, fmt.Errorf("%v pass: %w: %q", pass, ErrUnknownRole, role)
			}
			if prog.TargetGroup >= 0 && prog.TargetGroup != group {
				return nil, fmt.Errorf("%v pass: render targets declared in groups %d and %d", pass, prog.TargetGroup, group)
			}
			prog.TargetGroup = group
			prog.inputs[binding] = id
			opts = append(opts, pipeline.WithSampleType(group, binding, renderer.SampleTypeFor(id.Format())))
		case shader.AnnotationArgEnvironment:
			if prog.EnvironmentGroup >= 0 && prog.EnvironmentGroup != group {
				return nil, fmt.Errorf("%v pass: environment declared in groups %d and %d", pass, prog.EnvironmentGroup, group)
			}
			prog.EnvironmentGroup = group
			prog.environment[role] = ResourceSlot{Group: group, Binding: binding}
		}
	}

	if spec.binding != BindingSurface {
		outputs := fsh.Outputs()
		formats := make([]wgpu.TextureFormat, len(outputs))
		for name, loc := range outputs {
			id, ok := TargetForRole(name)
			if !ok || loc < 0 || loc >= len(formats) {
				return nil, fmt.Errorf("%v pass: %w: output %q at location %d", pass, ErrOutputMismatch, name, loc)
			}
			formats[loc] = id.Format()
		}
		opts = append(opts, pipeline.WithColorTargets(formats...))
	}

	switch pass {
	case PassDepth:
		opts = append(opts,
			pipeline.WithDepthFormat(TargetRawDepth.Format()),
			pipeline.WithDepthTestEnabled(true),
			pipeline.WithDepthWriteEnabled(true),
			pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
			pipeline.WithVertexStepMode(0, wgpu.VertexStepModeInstance),
			pipeline.WithVertexStepMode(1, wgpu.VertexStepModeInstance),
		)
	case PassThickness:
		opts = append(opts,
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
			pipeline.WithBlendEnabled(true),
			pipeline.WithBlendState(additiveBlend()),
			pipeline.WithVertexStepMode(0, wgpu.VertexStepModeInstance),
			pipeline.WithVertexStepMode(1, wgpu.VertexStepModeInstance),
		)
	default:
		opts = append(opts,
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		)
	}

	p := pipeline.NewPipeline("fluid/"+pass.String(), opts...)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%v pass: %w", pass, err)
	}
	layouts, err := p.BindGroupLayouts()
	if err != nil {
		return nil, fmt.Errorf("%v pass: %w", pass, err)
	}
	prog.Pipeline = p
	prog.Layouts = layouts
	return prog, nil
}

// additiveBlend sums source and destination, so overlapping sprites accumulate.
func additiveBlend() *wgpu.BlendState {
	add := wgpu.BlendComponent{
		Operation: wgpu.BlendOperationAdd,
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOne,
	}
	return &wgpu.BlendState{Color: add, Alpha: add}
}
