package profiler

import (
	"log"
	"runtime"
	"time"
)

// Stats is one reporting interval of frame and memory statistics.
type Stats struct {
	FPS float64
	// FailedFrames counts frames in the interval where at least one fluid pass failed.
	FailedFrames int
	// Particles is the particle count of the last frame in the interval.
	Particles uint32
	HeapMB    float64
	// AllocRateMB is the heap allocation rate in MB per second.
	AllocRateMB float64
	GCCount     uint32
	// LastPauseUs and MaxPauseUs are GC pause times in microseconds.
	LastPauseUs, MaxPauseUs uint64
	SysMB                   float64
}

// Profiler tracks frame rate, pass failures and memory statistics for the viewer.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	failedFrames   int
	particles      uint32
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats

	now func() time.Time
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - interval: how often stats are logged; values <= 0 default to 1 second
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
		now:            time.Now,
	}
}

// Tick should be called once per displayed frame.
// Logs statistics when the update interval has elapsed.
//
// Parameters:
//   - particles: the number of particles drawn this frame
//   - frameErr: the frame's joined pass failures, or nil
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(particles uint32, frameErr error) bool {
	p.frameCount++
	p.particles = particles
	if frameErr != nil {
		p.failedFrames++
	}
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	s := Stats{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		FailedFrames: p.failedFrames,
		Particles:    p.particles,
	}

	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	s.GCCount = p.memStats.NumGC
	if s.GCCount > 0 {
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		start := p.lastGCCount
		if s.GCCount-start > 256 {
			start = s.GCCount - 256
		}
		for i := start; i < s.GCCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}

	log.Printf("[Profiler] FPS: %.2f | Particles: %d | Failed frames: %d | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		s.FPS, s.Particles, s.FailedFrames, s.HeapMB, s.AllocRateMB, s.GCCount, s.LastPauseUs, s.MaxPauseUs, s.SysMB)

	p.last = s
	p.frameCount = 0
	p.failedFrames = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the stats of the most recently completed interval.
func (p *Profiler) Last() Stats {
	return p.last
}
