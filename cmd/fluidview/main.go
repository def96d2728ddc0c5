// Command fluidview renders a block of particles as a screen-space fluid surface.
//
// Usage:
//
//	fluidview [-config fluid.ini] [-mode total] [-particles 1000] [-skybox sky.png] [-cubemap env.png]
//
// Keys: 0-9 ! @ # select the display mode, space pauses, p resets, Escape or q quits.
// Mouse: left-drag orbits, middle-drag pans, the wheel zooms.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fluid/common"
	"github.com/Carmen-Shannon/oxy-fluid/engine"
	"github.com/Carmen-Shannon/oxy-fluid/engine/camera"
	"github.com/Carmen-Shannon/oxy-fluid/engine/config"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/particles"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/scene"
	"github.com/Carmen-Shannon/oxy-fluid/engine/window"
)

type options struct {
	configPath string
	mode       string
	particles  int
	skybox     string
	cubemap    string
	profile    bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("fluidview", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "INI config file (defaults are used when empty)")
	fs.StringVar(&o.mode, "mode", "", "initial display mode, e.g. total, depth, fres_refl")
	fs.IntVar(&o.particles, "particles", -1, "particle count override")
	fs.StringVar(&o.skybox, "skybox", "", "skybox layout image override")
	fs.StringVar(&o.cubemap, "cubemap", "", "reflection cube map layout image override")
	fs.BoolVar(&o.profile, "profile", false, "log frame statistics every second")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

// applyFlags layers command line overrides over the loaded config.
func applyFlags(cfg config.Config, o options) (config.Config, error) {
	if o.mode != "" {
		cfg.Fluid.DisplayMode = o.mode
	}
	if o.particles >= 0 {
		cfg.Particles.Count = o.particles
	}
	if o.skybox != "" {
		cfg.Environment.Skybox = o.skybox
	}
	if o.cubemap != "" {
		cfg.Environment.CubeMap = o.cubemap
	}
	if o.profile {
		cfg.Renderer.Profiler = true
	}
	return cfg, cfg.Validate()
}

func workerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	return max(1, runtime.NumCPU()-1)
}

func windowTitle(base string, mode fluid_types.DisplayMode, paused bool) string {
	title := fmt.Sprintf("%s | %s", base, mode)
	if paused {
		title += " (paused)"
	}
	return title
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}
	if cfg, err = applyFlags(cfg, o); err != nil {
		log.Fatalf("[Main] %v", err)
	}

	// ── Engine + Window ─────────────────────────────────────────────────
	eng := engine.NewEngine(
		engine.WithProfiling(cfg.Renderer.Profiler),
		engine.WithRenderFrameLimit(cfg.Renderer.FrameLimit),
		engine.WithWindow(window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithWidth(cfg.Window.Width),
			window.WithHeight(cfg.Window.Height),
			window.WithQuitKeys(common.KeyEsc, common.KeyQ),
		)),
	)
	win := eng.Window()

	// ── Renderer ────────────────────────────────────────────────────────
	r := renderer.NewRenderer(
		renderer.BackendTypeWGPU,
		win,
		renderer.WithPresentMode(cfg.PresentMode()),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.Software),
	)

	// ── Camera ──────────────────────────────────────────────────────────
	cam := camera.NewCamera(
		camera.WithFovY(float32(cfg.Camera.FovY)),
		camera.WithClipPlanes(float32(cfg.Camera.Near), float32(cfg.Camera.Far)),
		camera.WithViewport(win.Width(), win.Height()),
		camera.WithController(camera.NewCameraController(
			camera.WithRadius(float32(cfg.Camera.Distance)),
			camera.WithTarget(0, 0, 0),
			camera.WithRadiusBounds(float32(cfg.Camera.Near)*2, float32(cfg.Camera.Far)*0.9),
		)),
	)

	// ── Fluid ───────────────────────────────────────────────────────────
	pool := worker.NewDynamicWorkerPool(workerCount(cfg.Renderer.Workers), 1024, 5*time.Second)
	defer pool.Stop()

	skyboxLayout, cubeLayout := cfg.Layouts()
	fr, err := fluid.NewFluidRenderer(r,
		fluid.WithParams(cfg.FluidParams()),
		fluid.WithShaderDir(cfg.Fluid.ShaderDir),
		fluid.WithSkyboxLayout(skyboxLayout),
		fluid.WithCubeLayout(cubeLayout),
		fluid.WithWorkerPool(pool),
	)
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}
	if err := fr.Status(); err != nil {
		log.Printf("[Main] fluid renderer is degraded: %v", err)
	}
	if path := cfg.Environment.Skybox; path != "" {
		_ = fr.LoadSkyboxTexture(path)
	}
	if path := cfg.Environment.CubeMap; path != "" {
		_ = fr.LoadCubeMapTexture(path)
	}

	src, err := particles.NewDamSource(r,
		particles.WithCount(cfg.Particles.Count),
		particles.WithSpacing(float32(cfg.Particles.Spacing)),
		particles.WithPaused(cfg.Particles.Paused),
		particles.WithSlosh(float32(cfg.Particles.Slosh), float32(cfg.Particles.SloshPeriod)),
		particles.WithWorkerPool(pool),
	)
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	// ── Scene ───────────────────────────────────────────────────────────
	sc, err := scene.NewScene("fluid", cam, r, fr, scene.WithParticles(src))
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}
	eng.AddScene(0, sc)

	setupInput(win, sc, cfg.Window.Title)

	log.Printf("[Main] %d particles, mode %s, %dx%d", src.Count(), fr.DisplayMode(), win.Width(), win.Height())
	eng.Run()

	sc.Release()
	r.Release()
	if err := win.Close(); err != nil {
		log.Printf("[Main] %v", err)
	}
}

// setupInput wires the display mode keys, pause and reset, and the orbit camera.
//
// Parameters:
//   - win: the window delivering input events
//   - sc: the scene whose camera, fluid renderer and particles are controlled
//   - title: the base window title
func setupInput(win window.Window, sc scene.Scene, title string) {
	fr := sc.Fluid()
	ctrl := sc.Camera().Controller()
	refreshTitle := func() {
		paused := false
		if src := sc.Particles(); src != nil {
			paused = src.Paused()
		}
		win.SetTitle(windowTitle(title, fr.DisplayMode(), paused))
	}
	refreshTitle()

	win.SetCharCallback(func(ch rune) {
		mode, ok := fluid_types.DisplayModeForKey(ch)
		if !ok || mode == fr.DisplayMode() {
			return
		}
		fr.SetDisplayMode(mode)
		log.Printf("[Main] display mode: %s", mode)
		refreshTitle()
	})

	win.SetKeyDownCallback(func(key window.Key) {
		src := sc.Particles()
		if src == nil {
			return
		}
		switch key {
		case common.KeySpace:
			log.Printf("[Main] paused: %v", src.TogglePause())
			refreshTitle()
		case common.KeyP:
			src.Reset()
			log.Printf("[Main] particles reset")
		}
	})

	var drag window.DragTracker
	win.SetMouseButtonCallback(drag.Button)
	win.SetMouseMoveCallback(func(x, y int32) {
		button, dx, dy, ok := drag.Move(x, y)
		if !ok || ctrl == nil {
			return
		}
		switch button {
		case window.MouseButtonLeft:
			ctrl.Orbit(dx, dy)
		case window.MouseButtonMiddle:
			ctrl.Pan(dx, dy)
		}
	})
	win.SetScrollCallback(func(delta float32) {
		if ctrl != nil {
			ctrl.Zoom(delta)
		}
	})
}
