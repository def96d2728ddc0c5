package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-fluid/common"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (352 bytes, std140 aligned).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Matches the WGSL CameraUniform struct layout exactly (see GPUCameraUniformSource).
// Size: 352 bytes.
type GPUCameraUniform struct {
	ModelView         [16]float32 // offset   0: world-to-view matrix
	Projection        [16]float32 // offset  64: view-to-clip matrix
	InvProjection     [16]float32 // offset 128: clip-to-view matrix
	InvTransModelView [16]float32 // offset 192: normal matrix of the model-view transform
	InvModelView      [16]float32 // offset 256: view-to-world matrix
	CameraPosition    [3]float32  // offset 320: world-space camera position
	Near              float32     // offset 332
	Viewport          [2]float32  // offset 336: viewport size in pixels
	Far               float32     // offset 344
	FovY              float32     // offset 348: vertical field of view in degrees
}

// NewGPUCameraUniform builds the uniform block for a camera snapshot, deriving the
// inverse and normal matrices. A singular model-view leaves the derived matrices at identity.
//
// Parameters:
//   - s: the camera state to upload
//
// Returns:
//   - GPUCameraUniform: the populated uniform block
func NewGPUCameraUniform(s State) GPUCameraUniform {
	u := GPUCameraUniform{
		ModelView:      s.ModelView,
		Projection:     s.Projection,
		CameraPosition: s.Position,
		Near:           s.Near,
		Viewport:       [2]float32{float32(s.ViewportWidth), float32(s.ViewportHeight)},
		Far:            s.Far,
		FovY:           s.FovY,
	}
	common.Identity(u.InvProjection[:])
	common.Identity(u.InvTransModelView[:])
	common.Identity(u.InvModelView[:])
	common.Invert4(u.InvProjection[:], s.Projection[:])
	common.Invert4(u.InvModelView[:], s.ModelView[:])
	common.InverseTranspose4(u.InvTransModelView[:], s.ModelView[:])
	return u
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (352)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	for m, mat := range [][16]float32{g.ModelView, g.Projection, g.InvProjection, g.InvTransModelView, g.InvModelView} {
		for i := range 16 {
			put(m*64+i*4, mat[i])
		}
	}
	for i := range 3 {
		put(320+i*4, g.CameraPosition[i])
	}
	put(332, g.Near)
	put(336, g.Viewport[0])
	put(340, g.Viewport[1])
	put(344, g.Far)
	put(348, g.FovY)
	return buf
}
