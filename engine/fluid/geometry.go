package fluid

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-fluid/common"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

var ErrInvalidParticles = errors.New("invalid particle stream")

// bufferSize reports a buffer's byte size. Tests swap it out to avoid native calls.
var bufferSize = func(b *wgpu.Buffer) uint64 { return b.GetSize() }

// ParticleStream is the per-frame particle input. The buffers are borrowed from the
// simulation; the fluid renderer never writes or releases them.
type ParticleStream struct {
	// Positions holds Count vec4<f32> view-independent centers (w unused).
	Positions *wgpu.Buffer
	// Colors holds Count vec4<f32> RGBA colors.
	Colors *wgpu.Buffer
	// Count is the number of particles to draw.
	Count uint32
}

// Validate checks that a non-empty stream carries both buffers and that each holds at
// least Count elements.
func (s ParticleStream) Validate() error {
	if s.Count == 0 {
		return nil
	}
	if s.Positions == nil {
		return fmt.Errorf("%w: %d particles without a position buffer", ErrInvalidParticles, s.Count)
	}
	if s.Colors == nil {
		return fmt.Errorf("%w: %d particles without a color buffer", ErrInvalidParticles, s.Count)
	}
	need := uint64(s.Count) * fluid_types.ParticleStride
	if size := bufferSize(s.Positions); size < need {
		return fmt.Errorf("%w: position buffer holds %d bytes, %d particles need %d", ErrInvalidParticles, size, s.Count, need)
	}
	if size := bufferSize(s.Colors); size < need {
		return fmt.Errorf("%w: color buffer holds %d bytes, %d particles need %d", ErrInvalidParticles, size, s.Count, need)
	}
	return nil
}

// quadVertex matches the QuadVertex WGSL struct.
type quadVertex struct {
	Position [2]float32
	UV       [2]float32
}

// fullScreenQuad covers clip space with two triangles. Texcoords have v pointing down.
var fullScreenQuad = [4]quadVertex{
	{Position: [2]float32{-1, -1}, UV: [2]float32{0, 1}},
	{Position: [2]float32{1, -1}, UV: [2]float32{1, 1}},
	{Position: [2]float32{1, 1}, UV: [2]float32{1, 0}},
	{Position: [2]float32{-1, 1}, UV: [2]float32{0, 0}},
}

var quadIndices = [6]uint32{0, 1, 2, 0, 2, 3}

// newFullScreenQuad uploads the quad mesh once.
func newFullScreenQuad(r renderer.Renderer) (bind_group_provider.BindGroupProvider, error) {
	mesh := bind_group_provider.NewBindGroupProvider("Fluid Quad")
	if err := r.InitMeshBuffers(mesh, common.SliceToBytes(fullScreenQuad[:]), common.SliceToBytes(quadIndices[:]), len(quadIndices)); err != nil {
		mesh.Release()
		return nil, fmt.Errorf("full-screen quad: %w", err)
	}
	return mesh, nil
}

// skyboxVertex matches the SkyboxVertex WGSL struct.
type skyboxVertex struct {
	Position [3]float32
	UV       [2]float32
}

// SkyboxFaceSize is the edge length of each skybox wall in world units.
const SkyboxFaceSize = 800

// skyboxWall returns the four corners of the wall showing a cube face, relative to the
// camera, starting at the texture's bottom-left. The image reads upright when seen from
// inside the box.
func skyboxWall(face CubeFace, half float32) [4]skyboxVertex {
	h := half
	var p [4][3]float32
	switch face {
	case CubeFacePositiveZ:
		p = [4][3]float32{{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h}}
	case CubeFacePositiveX:
		p = [4][3]float32{{h, -h, -h}, {h, -h, h}, {h, h, h}, {h, h, -h}}
	case CubeFaceNegativeZ:
		p = [4][3]float32{{h, -h, h}, {-h, -h, h}, {-h, h, h}, {h, h, h}}
	case CubeFaceNegativeX:
		p = [4][3]float32{{-h, -h, h}, {-h, -h, -h}, {-h, h, -h}, {-h, h, h}}
	case CubeFacePositiveY:
		p = [4][3]float32{{-h, h, -h}, {h, h, -h}, {h, h, h}, {-h, h, h}}
	case CubeFaceNegativeY:
		p = [4][3]float32{{-h, -h, h}, {h, -h, h}, {h, -h, -h}, {-h, -h, -h}}
	}
	uv := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	var out [4]skyboxVertex
	for i := range out {
		out[i] = skyboxVertex{Position: p[i], UV: uv[i]}
	}
	return out
}

// newSkyboxWalls uploads one quad per cube face.
func newSkyboxWalls(r renderer.Renderer) ([CubeFaceCount]bind_group_provider.BindGroupProvider, error) {
	var walls [CubeFaceCount]bind_group_provider.BindGroupProvider
	for f := range CubeFaceCount {
		verts := skyboxWall(f, SkyboxFaceSize/2)
		mesh := bind_group_provider.NewBindGroupProvider("Skybox Wall " + f.String())
		if err := r.InitMeshBuffers(mesh, common.SliceToBytes(verts[:]), common.SliceToBytes(quadIndices[:]), len(quadIndices)); err != nil {
			mesh.Release()
			for _, w := range walls {
				if w != nil {
					w.Release()
				}
			}
			return walls, fmt.Errorf("skybox wall %v: %w", f, err)
		}
		walls[f] = mesh
	}
	return walls, nil
}
