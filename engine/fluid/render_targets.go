package fluid

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// TargetID identifies one of the offscreen images written by the fluid passes.
type TargetID int

const (
	TargetRawDepth TargetID = iota
	TargetBlurDepth
	TargetThickness
	TargetNormal
	TargetPosition
	TargetColor
	TargetBackground
	TargetCount
)

type targetInfo struct {
	role   shader.AnnotationArg
	format wgpu.TextureFormat
}

var targetInfos = [TargetCount]targetInfo{
	TargetRawDepth:   {shader.AnnotationArgRawDepth, wgpu.TextureFormatDepth32Float},
	TargetBlurDepth:  {shader.AnnotationArgBlurDepth, wgpu.TextureFormatR32Float},
	TargetThickness:  {shader.AnnotationArgThickness, wgpu.TextureFormatRGBA16Float},
	TargetNormal:     {shader.AnnotationArgNormal, wgpu.TextureFormatRGBA16Float},
	TargetPosition:   {shader.AnnotationArgPosition, wgpu.TextureFormatRGBA32Float},
	TargetColor:      {shader.AnnotationArgColor, wgpu.TextureFormatRGBA16Float},
	TargetBackground: {shader.AnnotationArgBackground, wgpu.TextureFormatRGBA8Unorm},
}

// Format returns the texel format the target is allocated in.
func (t TargetID) Format() wgpu.TextureFormat {
	if t < 0 || t >= TargetCount {
		return wgpu.TextureFormatUndefined
	}
	return targetInfos[t].format
}

func (t TargetID) String() string {
	if t < 0 || t >= TargetCount {
		return fmt.Sprintf("target(%d)", int(t))
	}
	return string(targetInfos[t].role)
}

// TargetForRole resolves a shader binding role to the target it names.
//
// Parameters:
//   - role: the binding role from an @oxy:provider annotation or a fragment output name
//
// Returns:
//   - TargetID: the matching target
//   - bool: false if no target carries the role
func TargetForRole(role string) (TargetID, bool) {
	for id, info := range targetInfos {
		if string(info.role) == role {
			return TargetID(id), true
		}
	}
	return 0, false
}

// BindingID identifies a set of targets written together by one pass.
type BindingID int

const (
	BindingBackground BindingID = iota
	BindingScene
	BindingThickness
	BindingBlur
	BindingNormal
	BindingCount

	// BindingSurface is the on-screen destination selected by ResetForSample.
	BindingSurface BindingID = -1
)

type bindingInfo struct {
	name       string
	color      []TargetID
	depth      TargetID
	hasDepth   bool
	clearColor wgpu.Color
}

var bindingInfos = [BindingCount]bindingInfo{
	BindingBackground: {name: "background", color: []TargetID{TargetBackground}, clearColor: wgpu.Color{R: 1, G: 1, B: 1, A: 1}},
	BindingScene:      {name: "scene", color: []TargetID{TargetPosition, TargetColor}, depth: TargetRawDepth, hasDepth: true},
	BindingThickness:  {name: "thickness", color: []TargetID{TargetThickness}},
	BindingBlur:       {name: "blur", color: []TargetID{TargetBlurDepth}, clearColor: wgpu.Color{R: 1, G: 1, B: 1, A: 1}},
	BindingNormal:     {name: "normal", color: []TargetID{TargetNormal}},
}

func (b BindingID) String() string {
	if b == BindingSurface {
		return "surface"
	}
	if b < 0 || b >= BindingCount {
		return fmt.Sprintf("binding(%d)", int(b))
	}
	return bindingInfos[b].name
}

// Targets returns the targets the binding writes, color targets first and the depth target last.
func (b BindingID) Targets() []TargetID {
	if b < 0 || b >= BindingCount {
		return nil
	}
	info := bindingInfos[b]
	out := append([]TargetID(nil), info.color...)
	if info.hasDepth {
		out = append(out, info.depth)
	}
	return out
}

var (
	ErrUnknownTarget   = errors.New("unknown render target")
	ErrUnknownBinding  = errors.New("unknown framebuffer binding")
	ErrSampleHazard    = errors.New("target is bound for sampling while being written")
	ErrInputNotWritten = errors.New("input target was not written this frame")
	ErrOutputMismatch  = errors.New("program outputs do not match binding")
	ErrTargetsReleased = errors.New("render targets released")
)

// targetUsage is the usage every offscreen target is created with.
const targetUsage = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding

// RenderTargetSet owns the offscreen images of the fluid pipeline and the bindings that
// group them into pass destinations. Targets are reallocated as a whole on resize.
type RenderTargetSet struct {
	mu sync.Mutex
	r  renderer.Renderer

	width, height int
	generation    uint64
	released      bool

	targets    [TargetCount]renderer.Texture
	incomplete [BindingCount]error
	// order maps a binding's color attachment index to the target in that slot, set by LinkBinding.
	order [BindingCount][]TargetID

	frame    uint64
	written  [TargetCount]uint64
	sampling [TargetCount]bool
}

// NewRenderTargetSet creates an empty target set. Initialize allocates the targets.
//
// Parameters:
//   - r: the renderer that creates the textures
//
// Returns:
//   - *RenderTargetSet: the target set
func NewRenderTargetSet(r renderer.Renderer) *RenderTargetSet {
	s := &RenderTargetSet{r: r}
	for b := range BindingCount {
		s.order[b] = append([]TargetID(nil), bindingInfos[b].color...)
	}
	return s
}

// LinkBinding orders a binding's color attachments by the output slots of the program writing it.
// Each output name must be the role of one of the binding's color targets.
//
// Parameters:
//   - b: the binding
//   - outputs: the program's fragment output name to location map
//
// Returns:
//   - error: ErrOutputMismatch if the outputs and the binding's targets do not correspond
func (s *RenderTargetSet) LinkBinding(b BindingID, outputs map[string]int) error {
	if b < 0 || b >= BindingCount {
		return fmt.Errorf("%w: %v", ErrUnknownBinding, b)
	}
	color := bindingInfos[b].color
	if len(outputs) != len(color) {
		return fmt.Errorf("%w: %v writes %d targets, program has %d outputs", ErrOutputMismatch, b, len(color), len(outputs))
	}
	order := make([]TargetID, len(color))
	filled := make([]bool, len(color))
	for name, loc := range outputs {
		id, ok := TargetForRole(name)
		if !ok || !slices.Contains(color, id) {
			return fmt.Errorf("%w: output %q is not a target of %v", ErrOutputMismatch, name, b)
		}
		if loc < 0 || loc >= len(order) || filled[loc] {
			return fmt.Errorf("%w: output %q has location %d", ErrOutputMismatch, name, loc)
		}
		order[loc] = id
		filled[loc] = true
	}

	s.mu.Lock()
	s.order[b] = order
	s.mu.Unlock()
	return nil
}

// Initialize allocates every target at the given size, releasing any previous allocation,
// and checks every binding for completeness. Incomplete bindings are logged and returned
// joined, but the set stays usable for the complete ones.
//
// Parameters:
//   - width, height: the target size in pixels
//
// Returns:
//   - error: the allocation and completeness failures, or nil
func (s *RenderTargetSet) Initialize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrTargetsReleased
	}
	return s.allocate(width, height)
}

// Resize reallocates every target at the new size. Sizes that are unchanged or not
// positive are ignored.
//
// Parameters:
//   - width, height: the new size in pixels
//
// Returns:
//   - error: the allocation and completeness failures, or nil
func (s *RenderTargetSet) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrTargetsReleased
	}
	if width <= 0 || height <= 0 || (width == s.width && height == s.height && s.generation > 0) {
		return nil
	}
	return s.allocate(width, height)
}

func (s *RenderTargetSet) allocate(width, height int) error {
	s.releaseTargets()
	s.width, s.height = width, height
	s.generation++
	s.written = [TargetCount]uint64{}
	s.sampling = [TargetCount]bool{}

	var errs []error
	for id := range TargetCount {
		tex, err := s.r.CreateTexture(renderer.TextureDescriptor{
			Label:  "Fluid " + id.String(),
			Width:  width,
			Height: height,
			Format: id.Format(),
			Usage:  targetUsage,
		})
		if err != nil {
			err = fmt.Errorf("target %v: %w", id, err)
			log.Printf("[Targets] %v", err)
			errs = append(errs, err)
			continue
		}
		s.targets[id] = tex
	}

	for b := range BindingCount {
		desc := s.descriptor(b)
		err := renderer.CheckAttachments(desc, width, height)
		s.incomplete[b] = err
		if err != nil {
			log.Printf("[Targets] %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// descriptor builds the pass descriptor for a binding. Callers hold mu.
func (s *RenderTargetSet) descriptor(b BindingID) renderer.PassDescriptor {
	info := bindingInfos[b]
	desc := renderer.PassDescriptor{Label: "Fluid " + info.name}
	for _, id := range s.order[b] {
		desc.Color = append(desc.Color, renderer.ColorAttachment{
			Target:     s.targets[id],
			Clear:      true,
			ClearValue: info.clearColor,
		})
	}
	if info.hasDepth {
		desc.Depth = &renderer.DepthAttachment{
			Target:     s.targets[info.depth],
			Clear:      true,
			ClearValue: 1,
		}
	}
	return desc
}

// beginFrame starts a new frame when frame differs from the current one. Callers hold mu.
func (s *RenderTargetSet) beginFrame(frame uint64) {
	if frame != s.frame {
		s.frame = frame
		s.sampling = [TargetCount]bool{}
	}
}

// BindForWrite returns the destination for a binding. None of the binding's targets may be
// bound for sampling in the same frame.
//
// Parameters:
//   - frame: the current frame number
//   - b: the binding to write
//
// Returns:
//   - renderer.PassDescriptor: the attachments, cleared on begin
//   - error: a sample hazard, the binding's incompleteness, or ErrUnknownBinding
func (s *RenderTargetSet) BindForWrite(frame uint64, b BindingID) (renderer.PassDescriptor, error) {
	if b < 0 || b >= BindingCount {
		return renderer.PassDescriptor{}, fmt.Errorf("%w: %v", ErrUnknownBinding, b)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return renderer.PassDescriptor{}, ErrTargetsReleased
	}
	s.beginFrame(frame)
	for _, id := range b.Targets() {
		if s.sampling[id] {
			return renderer.PassDescriptor{}, fmt.Errorf("%v: %w: %v", b, ErrSampleHazard, id)
		}
	}
	if err := s.incomplete[b]; err != nil {
		return renderer.PassDescriptor{}, err
	}
	return s.descriptor(b), nil
}

// ResetForSample makes the given targets sampleable and returns the on-screen destination
// with its color cleared. Every input must have been written earlier in the same frame.
//
// Parameters:
//   - frame: the current frame number
//   - inputs: the targets the next pass reads
//
// Returns:
//   - renderer.PassDescriptor: the surface attachment, cleared on begin
//   - error: ErrInputNotWritten naming the first unwritten input, or ErrUnknownTarget
func (s *RenderTargetSet) ResetForSample(frame uint64, inputs ...TargetID) (renderer.PassDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return renderer.PassDescriptor{}, ErrTargetsReleased
	}
	s.beginFrame(frame)
	for _, id := range inputs {
		if id < 0 || id >= TargetCount {
			return renderer.PassDescriptor{}, fmt.Errorf("%w: %v", ErrUnknownTarget, id)
		}
		if frame == 0 || s.written[id] != frame {
			return renderer.PassDescriptor{}, fmt.Errorf("%w: %v", ErrInputNotWritten, id)
		}
	}
	for _, id := range inputs {
		s.sampling[id] = true
	}
	return renderer.PassDescriptor{
		Label: "Fluid surface",
		Color: []renderer.ColorAttachment{{
			Surface:    true,
			Clear:      true,
			ClearValue: wgpu.Color{R: 1, G: 1, B: 1, A: 1},
		}},
	}, nil
}

// MarkWritten records that a binding's targets were written in the given frame.
//
// Parameters:
//   - frame: the current frame number
//   - b: the binding whose pass completed
func (s *RenderTargetSet) MarkWritten(frame uint64, b BindingID) {
	if b < 0 || b >= BindingCount {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginFrame(frame)
	for _, id := range b.Targets() {
		s.written[id] = frame
	}
}

// writtenIn reports whether a target was written in the given frame.
func (s *RenderTargetSet) writtenIn(frame uint64, id TargetID) bool {
	if id < 0 || id >= TargetCount {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written[id] == frame && frame != 0
}

// Target returns the texture allocated for a target, or nil before Initialize.
func (s *RenderTargetSet) Target(id TargetID) renderer.Texture {
	if id < 0 || id >= TargetCount {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets[id]
}

// Incomplete returns the completeness error recorded for a binding at the last allocation.
func (s *RenderTargetSet) Incomplete(b BindingID) error {
	if b < 0 || b >= BindingCount {
		return fmt.Errorf("%w: %v", ErrUnknownBinding, b)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incomplete[b]
}

// Size returns the current target size.
func (s *RenderTargetSet) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Generation increments on every allocation. Bind groups referencing target views must be
// rebuilt when it changes.
func (s *RenderTargetSet) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Release destroys every target. The set cannot be reinitialized afterwards.
func (s *RenderTargetSet) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseTargets()
	s.released = true
}

func (s *RenderTargetSet) releaseTargets() {
	for id, t := range s.targets {
		if t != nil {
			t.Release()
			s.targets[id] = nil
		}
	}
}
