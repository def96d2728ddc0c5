package scene

import "github.com/Carmen-Shannon/oxy-fluid/engine/particles"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithParticles sets the particle source the scene ticks and draws.
//
// Parameters:
//   - src: the particle source
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithParticles(src particles.Source) SceneBuilderOption {
	return func(s *scene) {
		s.src = src
	}
}
