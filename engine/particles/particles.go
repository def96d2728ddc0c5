package particles

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fluid/common"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid"
	"github.com/Carmen-Shannon/oxy-fluid/engine/fluid/fluid_types"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
	"github.com/chewxy/math32"
)

const (
	positionSlot = 0
	colorSlot    = 1
)

var ErrSourceReleased = errors.New("particle source released")

// Source produces the particle stream the fluid renderer draws. The stream's buffers are
// owned by the source and stay valid until Release.
type Source interface {
	// Tick advances the source by dt seconds and uploads the new particle state.
	// A paused source uploads nothing.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	//
	// Returns:
	//   - error: ErrSourceReleased after Release
	Tick(dt float32) error

	// Stream returns the particle buffers and count.
	//
	// Returns:
	//   - fluid.ParticleStream: the stream
	Stream() fluid.ParticleStream

	// Count returns the number of particles.
	Count() uint32

	// Time returns the simulated time in seconds.
	Time() float32

	// Paused reports whether the source is frozen.
	Paused() bool

	// SetPaused freezes or resumes the source.
	//
	// Parameters:
	//   - paused: true to freeze
	SetPaused(paused bool)

	// TogglePause flips the paused state.
	//
	// Returns:
	//   - bool: the new paused state
	TogglePause() bool

	// Reset restarts the source at time zero. The next Tick uploads the initial state.
	Reset()

	// Release frees the particle buffers.
	Release()
}

// damSource is a block of particles that sloshes back and forth along x like water released
// from a dam. It is a deterministic function of time.
type damSource struct {
	mu sync.Mutex
	r  renderer.Renderer

	pool     worker.DynamicWorkerPool
	ownsPool bool
	// chunk is the number of particles generated per worker task.
	chunk int

	count   int
	spacing float32
	// amplitude is the peak horizontal displacement of the top layer.
	amplitude float32
	// period is the slosh period in seconds.
	period float32
	paused bool

	time  float32
	dirty bool

	dims      [3]int
	positions []float32
	colors    []float32
	buffers   bind_group_provider.BindGroupProvider
	released  bool
}

var _ Source = &damSource{}

// NewDamSource creates the demo particle source and its GPU vertex buffers.
//
// Parameters:
//   - r: the renderer that owns the vertex buffers
//   - options: functional options applied before the buffers are created
//
// Returns:
//   - Source: the particle source, with its initial state uploaded
//   - error: a failure creating the vertex buffers
func NewDamSource(r renderer.Renderer, options ...SourceBuilderOption) (Source, error) {
	s := &damSource{
		r:         r,
		count:     1000,
		chunk:     1024,
		spacing:   2,
		amplitude: 6,
		period:    4,
		dirty:     true,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.count < 0 {
		return nil, fmt.Errorf("particle count %d", s.count)
	}
	if s.pool == nil {
		s.pool = worker.NewDynamicWorkerPool(2, 256, 1*time.Second)
		s.ownsPool = true
	}
	s.dims = blockDims(s.count)
	s.positions = make([]float32, s.count*4)
	s.colors = make([]float32, s.count*4)

	if s.count > 0 {
		s.buffers = bind_group_provider.NewBindGroupProvider("Particles")
		size := uint64(s.count * fluid_types.ParticleStride)
		if err := r.InitVertexBuffers(s.buffers, map[int]uint64{positionSlot: size, colorSlot: size}); err != nil {
			s.Release()
			return nil, fmt.Errorf("particle buffers: %w", err)
		}
	}
	if err := s.Tick(0); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// blockDims returns the smallest grid of columns, layers and rows holding n particles,
// twice as tall as it is wide so the block slumps visibly.
func blockDims(n int) [3]int {
	if n <= 0 {
		return [3]int{}
	}
	side := max(int(math32.Ceil(math32.Cbrt(float32(n)/2))), 1)
	rows := (n + side*side - 1) / (side * side)
	return [3]int{side, side, rows}
}

// particleAt returns the position and color of particle i at time t.
func (s *damSource) particleAt(i int, t float32) (pos, col [4]float32) {
	cols, depth, rows := s.dims[0], s.dims[1], s.dims[2]
	x := i % cols
	z := (i / cols) % depth
	y := i / (cols * depth)

	h := float32(0)
	if rows > 1 {
		h = float32(y) / float32(rows-1)
	}
	phase := 2 * math32.Pi * t / s.period
	// upper layers lag behind the lower ones
	slosh := s.amplitude * h * math32.Sin(phase-h)
	wave := 0.5 * s.spacing * math32.Sin(phase+float32(z)*0.4) * h

	pos = [4]float32{
		(float32(x)-float32(cols-1)/2)*s.spacing + slosh,
		(float32(y)-float32(rows-1)/2)*s.spacing + wave,
		(float32(z) - float32(depth-1)/2) * s.spacing,
		1,
	}
	col = [4]float32{0.1 + 0.3*h, 0.35 + 0.4*h, 0.9, 1}
	return pos, col
}

// generate fills the CPU copies for time t, one worker task per chunk.
func (s *damSource) generate(t float32) {
	var wg sync.WaitGroup
	for start, id := 0, 0; start < s.count; start, id = start+s.chunk, id+1 {
		end := min(start+s.chunk, s.count)
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := start; i < end; i++ {
					pos, col := s.particleAt(i, t)
					copy(s.positions[i*4:i*4+4], pos[:])
					copy(s.colors[i*4:i*4+4], col[:])
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (s *damSource) Tick(dt float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrSourceReleased
	}
	if s.paused && !s.dirty {
		return nil
	}
	if !s.paused {
		s.time += dt
	}
	s.dirty = false
	if s.count == 0 {
		return nil
	}
	s.generate(s.time)
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: s.buffers, Binding: positionSlot, Data: common.SliceToBytes(s.positions)},
		{Provider: s.buffers, Binding: colorSlot, Data: common.SliceToBytes(s.colors)},
	})
	return nil
}

func (s *damSource) Stream() fluid.ParticleStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffers == nil || s.released {
		return fluid.ParticleStream{}
	}
	return fluid.ParticleStream{
		Positions: s.buffers.Buffer(positionSlot),
		Colors:    s.buffers.Buffer(colorSlot),
		Count:     uint32(s.count),
	}
}

func (s *damSource) Count() uint32 {
	return uint32(s.count)
}

func (s *damSource) Time() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

func (s *damSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *damSource) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *damSource) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	return s.paused
}

func (s *damSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.time = 0
	s.dirty = true
}

func (s *damSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	if s.buffers != nil {
		s.buffers.Release()
	}
	if s.ownsPool {
		s.pool.Stop()
	}
}
