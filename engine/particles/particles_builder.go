package particles

import "github.com/Carmen-Shannon/automation/tools/worker"

// SourceBuilderOption is a functional option applied to a particle source during construction.
type SourceBuilderOption func(*damSource)

// WithCount sets the number of particles.
//
// Parameters:
//   - count: the particle count
//
// Returns:
//   - SourceBuilderOption: a function that applies the count option
func WithCount(count int) SourceBuilderOption {
	return func(s *damSource) {
		s.count = count
	}
}

// WithSpacing sets the distance between neighbouring particles at rest.
//
// Parameters:
//   - spacing: the spacing in world units
//
// Returns:
//   - SourceBuilderOption: a function that applies the spacing option
func WithSpacing(spacing float32) SourceBuilderOption {
	return func(s *damSource) {
		if spacing > 0 {
			s.spacing = spacing
		}
	}
}

// WithSlosh sets how far and how fast the block sways.
//
// Parameters:
//   - amplitude: the peak displacement of the top layer in world units
//   - period: the sway period in seconds
//
// Returns:
//   - SourceBuilderOption: a function that applies the slosh option
func WithSlosh(amplitude, period float32) SourceBuilderOption {
	return func(s *damSource) {
		s.amplitude = amplitude
		if period > 0 {
			s.period = period
		}
	}
}

// WithPaused starts the source frozen.
func WithPaused(paused bool) SourceBuilderOption {
	return func(s *damSource) {
		s.paused = paused
	}
}

// WithWorkerPool shares an existing worker pool for particle generation. The pool is not
// stopped on Release.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - SourceBuilderOption: a function that applies the worker pool option
func WithWorkerPool(pool worker.DynamicWorkerPool) SourceBuilderOption {
	return func(s *damSource) {
		s.pool = pool
	}
}

// WithChunkSize sets how many particles one worker task generates.
func WithChunkSize(n int) SourceBuilderOption {
	return func(s *damSource) {
		if n > 0 {
			s.chunk = n
		}
	}
}
