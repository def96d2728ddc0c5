package scene

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-fluid/engine/camera"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid"
	"github.com/Carmen-Shannon/oxy-fluid/engine/particles"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
)

// Scene ties a camera and a particle source to a fluid renderer. The engine drives it once
// per frame: PrepareCompute before the frame's passes and DrawCalls inside the frame.
// Scenes can be hot-swapped via the Active flag.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// Renderer returns the scene's renderer.
	Renderer() renderer.Renderer

	// Fluid returns the scene's fluid renderer.
	Fluid() fluid.FluidRenderer

	// Particles returns the scene's particle source, or nil.
	Particles() particles.Source

	// SetParticles replaces the particle source. The previous source is not released.
	//
	// Parameters:
	//   - src: the new source, or nil to draw nothing
	SetParticles(src particles.Source)

	// Resize updates the camera viewport and reallocates the fluid render targets.
	//
	// Parameters:
	//   - width, height: the new surface size in pixels
	Resize(width, height int)

	// PrepareCompute advances the particle source and uploads its state.
	// Must be called before DrawCalls each frame.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	PrepareCompute(deltaTime float32)

	// DrawCalls hands the camera and particles to the fluid renderer and displays one frame.
	// Must be called between Renderer.BeginFrame and Renderer.EndFrame.
	//
	// Returns:
	//   - error: the joined failures of the fluid passes
	DrawCalls() error

	// Release frees the fluid renderer and the particle source.
	Release()
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu sync.RWMutex

	name   string
	active bool

	cam   camera.Camera
	r     renderer.Renderer
	fluid fluid.FluidRenderer
	src   particles.Source

	// lastErr is the last frame's error text, so repeated failures are logged once.
	lastErr string
}

var _ Scene = &scene{}

// NewScene creates a Scene drawing with the given fluid renderer.
//
// Parameters:
//   - name: the scene identifier
//   - cam: the camera viewing the fluid
//   - r: the renderer the fluid renderer draws with
//   - f: the fluid renderer
//   - options: functional options for scene configuration
//
// Returns:
//   - Scene: the newly created scene
//   - error: if any required dependency is nil
func NewScene(name string, cam camera.Camera, r renderer.Renderer, f fluid.FluidRenderer, options ...SceneBuilderOption) (Scene, error) {
	if cam == nil || r == nil || f == nil {
		return nil, errors.New("scene requires a camera, a renderer and a fluid renderer")
	}
	s := &scene{
		name:   name,
		active: true,
		cam:    cam,
		r:      r,
		fluid:  f,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Renderer() renderer.Renderer {
	return s.r
}

func (s *scene) Fluid() fluid.FluidRenderer {
	return s.fluid
}

func (s *scene) Particles() particles.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.src
}

func (s *scene) SetParticles(src particles.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = src
}

func (s *scene) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.cam.SetViewport(width, height)
	if err := s.fluid.Resize(width, height); err != nil {
		log.Printf("[Scene] %s: resize %dx%d: %v", s.name, width, height, err)
	}
}

func (s *scene) PrepareCompute(deltaTime float32) {
	src := s.Particles()
	if src == nil {
		return
	}
	if err := src.Tick(deltaTime); err != nil {
		log.Printf("[Scene] %s: particles: %v", s.name, err)
	}
}

func (s *scene) DrawCalls() error {
	s.cam.Update()
	s.fluid.SetCamera(s.cam.Snapshot())

	var stream fluid.ParticleStream
	if src := s.Particles(); src != nil {
		stream = src.Stream()
	}
	if err := s.fluid.SetParticles(stream); err != nil {
		return fmt.Errorf("scene %s: %w", s.name, err)
	}

	err := s.fluid.Display()
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	switch {
	case err != nil && msg != s.lastErr:
		log.Printf("[Scene] %s: %v", s.name, err)
	case err == nil && s.lastErr != "":
		log.Printf("[Scene] %s: all passes recovered", s.name)
	}
	s.lastErr = msg
	return err
}

func (s *scene) Release() {
	s.mu.Lock()
	src := s.src
	s.src = nil
	s.mu.Unlock()
	if src != nil {
		src.Release()
	}
	s.fluid.Release()
}
