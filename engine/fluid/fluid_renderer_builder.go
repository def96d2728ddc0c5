package fluid

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
)

// FluidRendererBuilderOption is a functional option applied to a fluid renderer during construction via NewFluidRenderer.
type FluidRendererBuilderOption func(*fluidRenderer)

// WithShaderDir sets a directory whose .wgsl files replace the embedded pass shaders of the same name.
//
// Parameters:
//   - dir: the directory, or "" to use only the embedded shaders
//
// Returns:
//   - FluidRendererBuilderOption: a function that applies the shader directory option
func WithShaderDir(dir string) FluidRendererBuilderOption {
	return func(f *fluidRenderer) {
		f.shaderDir = dir
	}
}

// WithCubeLayout sets the layout reflection cube map images are packed in.
//
// Parameters:
//   - layout: the cube layout
//
// Returns:
//   - FluidRendererBuilderOption: a function that applies the cube layout option
func WithCubeLayout(layout CubeLayout) FluidRendererBuilderOption {
	return func(f *fluidRenderer) {
		f.cubeLayout = layout
	}
}

// WithSkyboxLayout sets the layout skybox images are packed in.
//
// Parameters:
//   - layout: the cube layout
//
// Returns:
//   - FluidRendererBuilderOption: a function that applies the skybox layout option
func WithSkyboxLayout(layout CubeLayout) FluidRendererBuilderOption {
	return func(f *fluidRenderer) {
		f.skyboxLayout = layout
	}
}

// WithParams sets the initial shading parameters, radius and display mode.
//
// Parameters:
//   - params: the parameters
//
// Returns:
//   - FluidRendererBuilderOption: a function that applies the parameters option
func WithParams(params fluid_types.GPUFluidParams) FluidRendererBuilderOption {
	return func(f *fluidRenderer) {
		params.DisplayMode = uint32(fluid_types.DisplayMode(params.DisplayMode).Normalize())
		f.params = params
	}
}

// WithWorkerPool shares an existing worker pool for face extraction. The pool is not
// stopped on Release. Without this option the fluid renderer creates and owns its own pool.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - FluidRendererBuilderOption: a function that applies the worker pool option
func WithWorkerPool(pool worker.DynamicWorkerPool) FluidRendererBuilderOption {
	return func(f *fluidRenderer) {
		f.pool = pool
	}
}
