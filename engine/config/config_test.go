package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, 480, cfg.Window.Height)
	assert.Equal(t, 60.0, cfg.Camera.FovY)
	assert.Equal(t, 75.0, cfg.Camera.Distance)
	assert.Equal(t, 1000, cfg.Particles.Count)
	assert.Equal(t, fluid_types.DisplayModeTotal, cfg.DisplayMode())
	assert.Equal(t, renderer.PresentModeVSync, cfg.PresentMode())
	assert.Equal(t, fluid_types.DefaultFluidParams(), cfg.FluidParams())
}

func TestExampleMatchesDefault(t *testing.T) {
	cfg, err := Parse(Example)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse(`
[fluid]
radius = 0.5
displaymode = fres-refl

[environment]
skybox = sky.png
cubelayout = vertical-cross

[particles]
count = 64
paused = true
slosh = 0

[renderer]
software = true
`)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Fluid.Radius)
	assert.Equal(t, fluid_types.DisplayModeFresRefl, cfg.DisplayMode())
	assert.Equal(t, "sky.png", cfg.Environment.Skybox)
	skybox, cube := cfg.Layouts()
	assert.Equal(t, fluid.LayoutHorizontalCross, skybox)
	assert.Equal(t, fluid.LayoutVerticalCross, cube)
	assert.Equal(t, 64, cfg.Particles.Count)
	assert.True(t, cfg.Particles.Paused)
	assert.Zero(t, cfg.Particles.Slosh)
	assert.Equal(t, 4.0, cfg.Particles.SloshPeriod)
	assert.True(t, cfg.Renderer.Software)
	assert.Equal(t, 640, cfg.Window.Width)

	params := cfg.FluidParams()
	assert.Equal(t, float32(0.5), params.Radius)
	assert.Equal(t, uint32(fluid_types.DisplayModeFresRefl), params.DisplayMode)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Window.Width = 0
	cfg.Camera.Far = cfg.Camera.Near
	cfg.Fluid.DisplayMode = "sparkle"
	cfg.Environment.CubeLayout = "octahedral"
	cfg.Renderer.PresentMode = "mailbox"
	cfg.Particles.SloshPeriod = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"window size", "clip planes", "sparkle", "octahedral", "mailbox", "slosh"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse("[window]\ncolour = blue\n")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "fluid.ini")
	require.NoError(t, os.WriteFile(path, []byte("[camera]\nfovy = 45\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45.0, cfg.Camera.FovY)

	_, err = Load(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.ini")

	require.NoError(t, os.WriteFile(path, []byte("[particles]\nspacing = -1\n"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}
