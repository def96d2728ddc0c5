// Package config loads the viewer settings from an INI file layered over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"gopkg.in/gcfg.v1"
)

// Example is a complete config file with every value at its default.
const Example = `[Window]
Title  = oxy-fluid
Width  = 640
Height = 480

[Camera]
# vertical field of view in degrees
FovY     = 60
Near     = 1
Far      = 400
# initial orbit distance from the origin
Distance = 75

[Fluid]
Radius             = 1
# one of depth, normal, position, color, diffuse, diffuse_spec, fresnel,
# reflection, fres_refl, thickness, refrac, total
DisplayMode        = total
FilterRadius       = 6
BlurScale          = 0.1
BlurDepthFalloff   = 2
RefractionStrength = 0.05
FresnelF0          = 0.02
# directory of .wgsl files replacing the built-in pass shaders
# ShaderDir = shaders

[Environment]
# Skybox  = assets/skybox.png
# CubeMap = assets/cubemap.png
SkyboxLayout = horizontal-cross
CubeLayout   = horizontal-cross

[Particles]
Count       = 1000
Spacing     = 2
Paused      = false
# peak sway of the top layer in world units, and the sway period in seconds
Slosh       = 6
SloshPeriod = 4

[Renderer]
# vsync or uncapped
PresentMode = vsync
# 0 leaves the render loop uncapped
FrameLimit  = 0
Profiler    = false
# 0 uses one worker per spare CPU
Workers     = 0
# use a CPU fallback adapter (needs a software Vulkan driver)
Software    = false
`

type Window struct {
	Title         string
	Width, Height int
}

type Camera struct {
	FovY, Near, Far float64
	Distance        float64
}

type Fluid struct {
	Radius             float64
	DisplayMode        string
	FilterRadius       float64
	BlurScale          float64
	BlurDepthFalloff   float64
	RefractionStrength float64
	FresnelF0          float64
	ShaderDir          string
}

type Environment struct {
	Skybox       string
	CubeMap      string
	SkyboxLayout string
	CubeLayout   string
}

type Particles struct {
	Count       int
	Spacing     float64
	Paused      bool
	Slosh       float64
	SloshPeriod float64
}

type Renderer struct {
	PresentMode string
	FrameLimit  float64
	Profiler    bool
	Workers     int
	Software    bool
}

// Config is the full viewer configuration. Each field is one INI section.
type Config struct {
	Window      Window
	Camera      Camera
	Fluid       Fluid
	Environment Environment
	Particles   Particles
	Renderer    Renderer
}

var ErrInvalid = errors.New("invalid config")

// Default returns a configuration that runs without a config file.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Window: Window{Title: "oxy-fluid", Width: 640, Height: 480},
		Camera: Camera{FovY: 60, Near: 1, Far: 400, Distance: 75},
		Fluid: Fluid{
			Radius:             1,
			DisplayMode:        fluid_types.DisplayModeTotal.Name(),
			FilterRadius:       6,
			BlurScale:          0.1,
			BlurDepthFalloff:   2,
			RefractionStrength: 0.05,
			FresnelF0:          0.02,
		},
		Environment: Environment{
			SkyboxLayout: fluid.LayoutHorizontalCross.Name,
			CubeLayout:   fluid.LayoutHorizontalCross.Name,
		},
		Particles: Particles{Count: 1000, Spacing: 2, Slosh: 6, SloshPeriod: 4},
		Renderer:  Renderer{PresentMode: renderer.PresentModeVSync.String()},
	}
}

// Load reads an INI file over the defaults and validates the result. An empty path returns the defaults.
//
// Parameters:
//   - path: the config file
//
// Returns:
//   - Config: the configuration
//   - error: a read, parse or validation failure naming the file
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := gcfg.ReadFileInto(&cfg, path); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads INI text over the defaults and validates the result.
//
// Parameters:
//   - text: the config text
//
// Returns:
//   - Config: the configuration
//   - error: a parse or validation failure
func Parse(text string) (Config, error) {
	cfg := Default()
	if err := gcfg.ReadStringInto(&cfg, text); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate reports every out-of-range or unknown value.
//
// Returns:
//   - error: the joined problems wrapping ErrInvalid, or nil
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		bad("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Camera.FovY <= 0 || c.Camera.FovY >= 180 {
		bad("camera fovy %g", c.Camera.FovY)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		bad("camera clip planes %g..%g", c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.Distance <= 0 {
		bad("camera distance %g", c.Camera.Distance)
	}
	if c.Fluid.Radius <= 0 {
		bad("fluid radius %g", c.Fluid.Radius)
	}
	if c.Fluid.FilterRadius < 0 {
		bad("fluid filter radius %g", c.Fluid.FilterRadius)
	}
	if _, err := fluid_types.DisplayModeFromName(c.Fluid.DisplayMode); err != nil {
		bad("fluid %v", err)
	}
	if _, err := fluid.LayoutByName(c.Environment.SkyboxLayout); err != nil {
		bad("environment skybox %v", err)
	}
	if _, err := fluid.LayoutByName(c.Environment.CubeLayout); err != nil {
		bad("environment cubemap %v", err)
	}
	if c.Particles.Count < 0 {
		bad("particle count %d", c.Particles.Count)
	}
	if c.Particles.Spacing <= 0 {
		bad("particle spacing %g", c.Particles.Spacing)
	}
	if c.Particles.Slosh < 0 || c.Particles.SloshPeriod <= 0 {
		bad("particle slosh %g over %gs", c.Particles.Slosh, c.Particles.SloshPeriod)
	}
	if _, ok := renderer.PresentModeFromName(c.Renderer.PresentMode); !ok {
		bad("present mode %q", c.Renderer.PresentMode)
	}
	if c.Renderer.FrameLimit < 0 {
		bad("frame limit %g", c.Renderer.FrameLimit)
	}
	if c.Renderer.Workers < 0 {
		bad("workers %d", c.Renderer.Workers)
	}
	return errors.Join(errs...)
}

// FluidParams converts the fluid section into the shading uniform block.
//
// Returns:
//   - fluid_types.GPUFluidParams: the parameters, with defaults for values the file cannot set
func (c Config) FluidParams() fluid_types.GPUFluidParams {
	p := fluid_types.DefaultFluidParams()
	p.Radius = float32(c.Fluid.Radius)
	p.DisplayMode = uint32(c.DisplayMode())
	p.FilterRadius = float32(c.Fluid.FilterRadius)
	p.BlurScale = float32(c.Fluid.BlurScale)
	p.BlurDepthFalloff = float32(c.Fluid.BlurDepthFalloff)
	p.RefractionStrength = float32(c.Fluid.RefractionStrength)
	p.FresnelF0 = float32(c.Fluid.FresnelF0)
	return p
}

// DisplayMode returns the configured display mode, or Total if the name is unknown.
func (c Config) DisplayMode() fluid_types.DisplayMode {
	m, _ := fluid_types.DisplayModeFromName(c.Fluid.DisplayMode)
	return m
}

// Layouts returns the skybox and cube map layouts, falling back to the horizontal cross.
func (c Config) Layouts() (skybox, cube fluid.CubeLayout) {
	skybox, err := fluid.LayoutByName(c.Environment.SkyboxLayout)
	if err != nil {
		skybox = fluid.LayoutHorizontalCross
	}
	cube, err = fluid.LayoutByName(c.Environment.CubeLayout)
	if err != nil {
		cube = fluid.LayoutHorizontalCross
	}
	return skybox, cube
}

// PresentMode returns the configured present mode, or VSync if the name is unknown.
func (c Config) PresentMode() renderer.PresentMode {
	m, ok := renderer.PresentModeFromName(c.Renderer.PresentMode)
	if !ok {
		return renderer.PresentModeVSync
	}
	return m
}
