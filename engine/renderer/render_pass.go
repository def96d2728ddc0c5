package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaxColorAttachments is the number of color attachments a single pass may write.
const MaxColorAttachments = 8

// Causes of binding incompleteness. An *IncompleteError unwraps to exactly one of these.
var (
	CauseMissingAttachment        = errors.New("missing attachment")
	CauseDimensionMismatch        = errors.New("attachment dimension mismatch")
	CauseUnsupportedFormat        = errors.New("unsupported attachment format")
	CauseMissingUsage             = errors.New("attachment lacks render attachment usage")
	CauseUnsupportedConfiguration = errors.New("unsupported attachment configuration")
)

var (
	ErrNoFrame                 = errors.New("no frame in progress")
	ErrPassPanicked            = errors.New("render pass body panicked")
	ErrPipelineNotRegistered   = errors.New("pipeline has no GPU render pipeline")
	ErrBindGroupNotInitialized = errors.New("bind group provider has no bind group")
)

// IncompleteError reports why a set of attachments cannot be rendered to.
type IncompleteError struct {
	// Binding names the attachment set, usually the pass label.
	Binding string
	// Cause is one of the Cause* sentinels.
	Cause error
	// Detail names the offending attachment.
	Detail string
}

func (e *IncompleteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("binding %q incomplete: %v", e.Binding, e.Cause)
	}
	return fmt.Sprintf("binding %q incomplete: %v: %s", e.Binding, e.Cause, e.Detail)
}

func (e *IncompleteError) Unwrap() error {
	return e.Cause
}

// ColorAttachment is one color output of a pass. Exactly one of Target or Surface is set.
type ColorAttachment struct {
	// Target is the offscreen texture written by the pass.
	Target Texture
	// Surface selects the window surface acquired by BeginFrame.
	Surface bool
	// Clear clears the attachment to ClearValue when the pass begins; otherwise contents are loaded.
	Clear bool
	// ClearValue is the color the attachment is cleared to.
	ClearValue wgpu.Color
}

// DepthAttachment is the depth output of a pass.
type DepthAttachment struct {
	// Target is the depth texture.
	Target Texture
	// Clear clears the depth to ClearValue when the pass begins; otherwise contents are loaded.
	Clear bool
	// ClearValue is the depth the attachment is cleared to.
	ClearValue float32
}

// PassDescriptor describes the attachments of one render pass.
type PassDescriptor struct {
	// Label names the pass in errors and GPU debug output.
	Label string
	// Color lists the color attachments in output-slot order.
	Color []ColorAttachment
	// Depth is the optional depth attachment.
	Depth *DepthAttachment
}

// CheckAttachments validates a pass descriptor without touching the GPU.
//
// Parameters:
//   - desc: the pass descriptor to check
//   - surfaceWidth, surfaceHeight: the current surface size, used for surface attachments
//
// Returns:
//   - error: nil if complete, otherwise an *IncompleteError naming the cause
func CheckAttachments(desc PassDescriptor, surfaceWidth, surfaceHeight int) error {
	incomplete := func(cause error, format string, args ...any) error {
		return &IncompleteError{Binding: desc.Label, Cause: cause, Detail: fmt.Sprintf(format, args...)}
	}

	if len(desc.Color) == 0 && desc.Depth == nil {
		return incomplete(CauseMissingAttachment, "no color or depth attachments")
	}
	if len(desc.Color) > MaxColorAttachments {
		return incomplete(CauseUnsupportedConfiguration, "%d color attachments exceeds %d", len(desc.Color), MaxColorAttachments)
	}

	width, height := -1, -1
	matchSize := func(name string, w, h int) error {
		if width < 0 {
			width, height = w, h
			return nil
		}
		if w != width || h != height {
			return incomplete(CauseDimensionMismatch, "%s is %dx%d, expected %dx%d", name, w, h, width, height)
		}
		return nil
	}

	seen := make(map[Texture]bool, len(desc.Color)+1)
	surfaceSeen := false
	for i, c := range desc.Color {
		name := fmt.Sprintf("color%d", i)
		if c.Surface {
			if c.Target != nil {
				return incomplete(CauseUnsupportedConfiguration, "%s names both the surface and a target", name)
			}
			if surfaceSeen {
				return incomplete(CauseUnsupportedConfiguration, "%s repeats the surface", name)
			}
			surfaceSeen = true
			if err := matchSize(name, surfaceWidth, surfaceHeight); err != nil {
				return err
			}
			continue
		}
		if c.Target == nil {
			return incomplete(CauseMissingAttachment, "%s has no target", name)
		}
		name = fmt.Sprintf("%s (%s)", name, c.Target.Label())
		if seen[c.Target] {
			return incomplete(CauseUnsupportedConfiguration, "%s is attached twice", name)
		}
		seen[c.Target] = true
		if !IsRenderableColorFormat(c.Target.Format()) {
			return incomplete(CauseUnsupportedFormat, "%s has format %v", name, c.Target.Format())
		}
		if err := checkTarget(incomplete, name, c.Target); err != nil {
			return err
		}
		if err := matchSize(name, c.Target.Width(), c.Target.Height()); err != nil {
			return err
		}
	}

	if desc.Depth != nil {
		if desc.Depth.Target == nil {
			return incomplete(CauseMissingAttachment, "depth has no target")
		}
		name := fmt.Sprintf("depth (%s)", desc.Depth.Target.Label())
		if seen[desc.Depth.Target] {
			return incomplete(CauseUnsupportedConfiguration, "%s is also a color attachment", name)
		}
		if !IsDepthFormat(desc.Depth.Target.Format()) {
			return incomplete(CauseUnsupportedFormat, "%s has format %v", name, desc.Depth.Target.Format())
		}
		if err := checkTarget(incomplete, name, desc.Depth.Target); err != nil {
			return err
		}
		if err := matchSize(name, desc.Depth.Target.Width(), desc.Depth.Target.Height()); err != nil {
			return err
		}
	}
	return nil
}

func checkTarget(incomplete func(error, string, ...any) error, name string, t Texture) error {
	if t.Usage()&wgpu.TextureUsageRenderAttachment == 0 {
		return incomplete(CauseMissingUsage, "%s", name)
	}
	if t.Layers() != 1 {
		return incomplete(CauseUnsupportedConfiguration, "%s has %d layers", name, t.Layers())
	}
	if t.Width() <= 0 || t.Height() <= 0 {
		return incomplete(CauseDimensionMismatch, "%s is %dx%d", name, t.Width(), t.Height())
	}
	return nil
}

// PassEncoder records commands into the pass opened by Renderer.RenderPass.
// It is only valid inside the pass body.
type PassEncoder interface {
	// SetPipeline binds a registered render pipeline.
	//
	// Parameters:
	//   - p: the pipeline, which must have been registered with the Renderer
	//
	// Returns:
	//   - error: ErrPipelineNotRegistered if the pipeline has no GPU object
	SetPipeline(p pipeline.Pipeline) error

	// SetBindGroup binds the provider's bind group at the given group index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - provider: the provider holding an initialized bind group
	//
	// Returns:
	//   - error: ErrBindGroupNotInitialized if the provider has no bind group
	SetBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) error

	// SetVertexBuffer binds a whole buffer to a vertex buffer slot.
	//
	// Parameters:
	//   - slot: the vertex buffer slot
	//   - buf: the buffer
	SetVertexBuffer(slot uint32, buf *wgpu.Buffer)

	// SetIndexBuffer binds a whole buffer of uint32 indices.
	//
	// Parameters:
	//   - buf: the index buffer
	SetIndexBuffer(buf *wgpu.Buffer)

	// Draw issues a non-indexed draw.
	//
	// Parameters:
	//   - vertexCount: vertices per instance
	//   - instanceCount: number of instances
	Draw(vertexCount, instanceCount uint32)

	// DrawIndexed issues an indexed draw using the bound index buffer.
	//
	// Parameters:
	//   - indexCount: number of indices
	//   - instanceCount: number of instances
	//   - firstIndex: offset into the index buffer, in indices
	DrawIndexed(indexCount, instanceCount, firstIndex uint32)

	// DrawMesh binds the mesh provider's vertex and index buffers at slot 0 and draws all of its indices.
	//
	// Parameters:
	//   - mesh: a provider initialized by InitMeshBuffers
	//   - instanceCount: number of instances
	DrawMesh(mesh bind_group_provider.BindGroupProvider, instanceCount uint32)
}

// runScoped runs body between a begun pass and end. end always runs first on the way out,
// whether body returns normally, returns an error or panics. A panic becomes an error
// wrapping ErrPassPanicked.
func runScoped(label string, end func(), body func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render pass %q: %w: %v", label, ErrPassPanicked, r)
		}
	}()
	defer end()
	if err = body(); err != nil {
		return fmt.Errorf("render pass %q: %w", label, err)
	}
	return nil
}

type wgpuPassEncoder struct {
	pass *wgpu.RenderPassEncoder
}

var _ PassEncoder = &wgpuPassEncoder{}

func (e *wgpuPassEncoder) SetPipeline(p pipeline.Pipeline) error {
	rp := p.Pipeline()
	if rp == nil {
		return fmt.Errorf("%s: %w", p.PipelineKey(), ErrPipelineNotRegistered)
	}
	e.pass.SetPipeline(rp)
	return nil
}

func (e *wgpuPassEncoder) SetBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) error {
	bg := provider.BindGroup()
	if bg == nil {
		return fmt.Errorf("%s: %w", provider.Label(), ErrBindGroupNotInitialized)
	}
	e.pass.SetBindGroup(group, bg, nil)
	return nil
}

func (e *wgpuPassEncoder) SetVertexBuffer(slot uint32, buf *wgpu.Buffer) {
	e.pass.SetVertexBuffer(slot, buf, 0, wgpu.WholeSize)
}

func (e *wgpuPassEncoder) SetIndexBuffer(buf *wgpu.Buffer) {
	e.pass.SetIndexBuffer(buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (e *wgpuPassEncoder) Draw(vertexCount, instanceCount uint32) {
	e.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (e *wgpuPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32) {
	e.pass.DrawIndexed(indexCount, instanceCount, firstIndex, 0, 0)
}

func (e *wgpuPassEncoder) DrawMesh(mesh bind_group_provider.BindGroupProvider, instanceCount uint32) {
	e.pass.SetVertexBuffer(0, mesh.VertexBuffer(), 0, wgpu.WholeSize)
	e.pass.SetIndexBuffer(mesh.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	e.pass.DrawIndexed(uint32(mesh.IndexCount()), instanceCount, 0, 0, 0)
}
