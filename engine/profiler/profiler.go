package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler tracks frame rate, kernel dispatch rate and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastDispatches uint64
	lastTotalAlloc uint64
	now            func() time.Time
}

// NewProfiler creates a new Profiler logging once per interval. A non-positive interval
// defaults to one second.
//
// Parameters:
//   - interval: the time between log lines
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

// Tick should be called once per presented frame.
// Logs FPS, dispatches per frame and per second, heap usage, allocation rate and GC count
// when the update interval has elapsed.
//
// Parameters:
//   - dispatches: the compute context's running dispatch count
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(dispatches uint64) bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	seconds := elapsed.Seconds()
	fps := float64(p.frameCount) / seconds
	issued := dispatches - p.lastDispatches

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / seconds

	log.Printf("[Profiler] FPS: %.2f | Dispatches: %.1f/frame, %.0f/s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d",
		fps, float64(issued)/float64(p.frameCount), float64(issued)/seconds,
		allocMB, allocRateMB, p.memStats.NumGC-p.lastGCCount)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = p.memStats.NumGC
	p.lastDispatches = dispatches
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
