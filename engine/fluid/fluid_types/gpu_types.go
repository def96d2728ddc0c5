package fluid_types

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUFluidParamsSource is the canonical WGSL definition of the FluidParams struct.
// Matches GPUFluidParams layout exactly (64 bytes).
//
//go:embed assets/fluid_params.wgsl
var GPUFluidParamsSource string

// GPUParticlePositionSource declares the per-instance particle center attribute at location 0.
//
//go:embed assets/particle_position.wgsl
var GPUParticlePositionSource string

// GPUParticleColorSource declares the per-instance particle color attribute at location 1.
//
//go:embed assets/particle_color.wgsl
var GPUParticleColorSource string

// GPUQuadVertexSource declares the full-screen quad vertex (clip-space position, texcoord).
//
//go:embed assets/quad_vertex.wgsl
var GPUQuadVertexSource string

// GPUSkyboxVertexSource declares the skybox wall vertex (camera-relative position, texcoord).
//
//go:embed assets/skybox_vertex.wgsl
var GPUSkyboxVertexSource string

// ParticleStride is the byte size of one particle position or color element (vec4<f32>).
const ParticleStride = 16

// GPUFluidParams is the GPU-aligned uniform block shared by every fluid pass.
// Matches the WGSL FluidParams struct layout exactly (see GPUFluidParamsSource).
// Size: 64 bytes.
type GPUFluidParams struct {
	Radius             float32    // offset  0: particle radius in world units
	PointScale         float32    // offset  4: viewportHeight / tan(fov/2)
	DisplayMode        uint32     // offset  8: normalized DisplayMode
	FilterRadius       float32    // offset 12: blur kernel half-width in pixels
	BlurScale          float32    // offset 16: spatial falloff of the blur kernel
	BlurDepthFalloff   float32    // offset 20: range falloff of the blur kernel
	RefractionStrength float32    // offset 24: screen-space refraction offset scale
	FresnelF0          float32    // offset 28: reflectance at normal incidence
	FluidColor         [4]float32 // offset 32: absorption tint, alpha scales thickness attenuation
	LightDir           [4]float32 // offset 48: view-space direction towards the light (w unused)
}

// DefaultFluidParams returns the shading parameters the viewer starts with.
//
// Returns:
//   - GPUFluidParams: parameters with radius 1 and the Total display mode
func DefaultFluidParams() GPUFluidParams {
	return GPUFluidParams{
		Radius:             1.0,
		DisplayMode:        uint32(DisplayModeTotal),
		FilterRadius:       6,
		BlurScale:          0.1,
		BlurDepthFalloff:   2.0,
		RefractionStrength: 0.05,
		FresnelF0:          0.02,
		FluidColor:         [4]float32{0.1, 0.4, 0.9, 0.35},
		LightDir:           [4]float32{0.577, 0.577, 0.577, 0},
	}
}

// Size returns the size of the GPUFluidParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPUFluidParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFluidParams struct into a byte buffer suitable for GPU upload.
// The display mode is normalized on the way out so the shader never sees an unknown value.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUFluidParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	put(0, g.Radius)
	put(4, g.PointScale)
	binary.LittleEndian.PutUint32(buf[8:], uint32(DisplayMode(g.DisplayMode).Normalize()))
	put(12, g.FilterRadius)
	put(16, g.BlurScale)
	put(20, g.BlurDepthFalloff)
	put(24, g.RefractionStrength)
	put(28, g.FresnelF0)
	for i := range 4 {
		put(32+i*4, g.FluidColor[i])
		put(48+i*4, g.LightDir[i])
	}
	return buf
}
