package main

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fluid/engine/config"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideConfig(t *testing.T) {
	o, err := parseFlags([]string{"-mode", "fres-refl", "-particles", "64", "-skybox", "sky.png", "-profile"})
	require.NoError(t, err)

	cfg, err := applyFlags(config.Default(), o)
	require.NoError(t, err)
	assert.Equal(t, fluid_types.DisplayModeFresRefl, cfg.DisplayMode())
	assert.Equal(t, 64, cfg.Particles.Count)
	assert.Equal(t, "sky.png", cfg.Environment.Skybox)
	assert.Empty(t, cfg.Environment.CubeMap)
	assert.True(t, cfg.Renderer.Profiler)
}

func TestFlagsKeepConfigWhenUnset(t *testing.T) {
	o, err := parseFlags(nil)
	require.NoError(t, err)
	cfg, err := applyFlags(config.Default(), o)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestUnknownModeFlagFailsValidation(t *testing.T) {
	o, err := parseFlags([]string{"-mode", "sparkle"})
	require.NoError(t, err)
	_, err = applyFlags(config.Default(), o)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestWindowTitleShowsModeLabel(t *testing.T) {
	assert.Equal(t, "oxy-fluid | "+fluid_types.DisplayModeDepth.String(), windowTitle("oxy-fluid", fluid_types.DisplayModeDepth, false))
	assert.Contains(t, windowTitle("oxy-fluid", fluid_types.DisplayModeTotal, true), "(paused)")
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 3, workerCount(3))
	assert.GreaterOrEqual(t, workerCount(0), 1)
}
