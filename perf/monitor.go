package perf

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultWindow             = 30
	DefaultStabilizationCount = 10
	DefaultLowWaterFPS        = 30
	DefaultHighWaterFPS       = 55
)

// Params are the quality parameters adjusted from the measured frame rate.
type Params struct {
	RenderDistance     int `json:"render_distance" yaml:"render_distance"`
	MaxObjectsPerChunk int `json:"max_objects_per_chunk" yaml:"max_objects_per_chunk"`
}

// Bounds constrains Params and defines the adjustment steps.
type Bounds struct {
	Min Params `yaml:"min"`
	Max Params `yaml:"max"`

	RenderDistanceStep     int `yaml:"render_distance_step"`
	MaxObjectsPerChunkStep int `yaml:"max_objects_per_chunk_step"`
}

// DefaultBounds returns render distance in [2, 4] by steps of 1 and objects
// per chunk in [30, 70] by steps of 10.
func DefaultBounds() Bounds {
	return Bounds{
		Min:                    Params{RenderDistance: 2, MaxObjectsPerChunk: 30},
		Max:                    Params{RenderDistance: 4, MaxObjectsPerChunk: 70},
		RenderDistanceStep:     1,
		MaxObjectsPerChunkStep: 10,
	}
}

func (b Bounds) Clamp(p Params) Params {
	return Params{
		RenderDistance:     clamp(p.RenderDistance, b.Min.RenderDistance, b.Max.RenderDistance),
		MaxObjectsPerChunk: clamp(p.MaxObjectsPerChunk, b.Min.MaxObjectsPerChunk, b.Max.MaxObjectsPerChunk),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MonitorOptions configures a Monitor. Zero values are replaced by defaults.
type MonitorOptions struct {
	// The number of frame intervals the smoothed frame rate is computed
	// over.
	Window int

	// The number of intervals to record after an adjustment before another
	// one can happen.
	StabilizationCount int

	LowWaterFPS  float64
	HighWaterFPS float64

	Bounds  Bounds
	Initial Params
}

// Monitor tracks recent frame timings and derives a smoothed frame rate that
// drives the dynamic quality parameters.
type Monitor struct {
	window             int
	stabilizationCount int
	lowWaterFPS        float64
	highWaterFPS       float64
	bounds             Bounds

	mutex        sync.RWMutex
	intervals    []float64
	next         int
	filled       bool
	last         time.Time
	hasLast      bool
	sinceAdjust  int
	frozen       bool
	params       Params
	adjustments  int
	onAdjustment func(prev, next Params, fps float64)
}

func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.StabilizationCount <= 0 {
		opts.StabilizationCount = DefaultStabilizationCount
	}
	if opts.LowWaterFPS <= 0 {
		opts.LowWaterFPS = DefaultLowWaterFPS
	}
	if opts.HighWaterFPS <= 0 {
		opts.HighWaterFPS = DefaultHighWaterFPS
	}
	if opts.Bounds == (Bounds{}) {
		opts.Bounds = DefaultBounds()
	}
	if opts.Initial == (Params{}) {
		opts.Initial = opts.Bounds.Min
	}

	return &Monitor{
		window:             opts.Window,
		stabilizationCount: opts.StabilizationCount,
		lowWaterFPS:        opts.LowWaterFPS,
		highWaterFPS:       opts.HighWaterFPS,
		bounds:             opts.Bounds,
		intervals:          make([]float64, 0, opts.Window),
		params:             opts.Bounds.Clamp(opts.Initial),
	}
}

// OnAdjustment registers a function called, with the monitor locked, each
// time the parameters are adjusted from the frame rate.
func (m *Monitor) OnAdjustment(f func(prev, next Params, fps float64)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.onAdjustment = f
}

// Sample records a frame at the given time.
func (m *Monitor) Sample(now time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.hasLast {
		m.last = now
		m.hasLast = true
		return
	}

	interval := now.Sub(m.last)
	if interval <= 0 {
		return
	}
	m.last = now

	m.record(float64(interval) / float64(time.Millisecond))
	m.sinceAdjust++

	if !m.frozen && m.sinceAdjust >= m.stabilizationCount {
		m.adjust()
	}
}

// SampleMillis records a frame at a timestamp expressed in milliseconds.
func (m *Monitor) SampleMillis(nowMillis int64) {
	m.Sample(time.UnixMilli(nowMillis))
}

func (m *Monitor) record(intervalMillis float64) {
	if !m.filled {
		m.intervals = append(m.intervals, intervalMillis)
		if len(m.intervals) == m.window {
			m.filled = true
		}
		return
	}

	m.intervals[m.next] = intervalMillis
	m.next = (m.next + 1) % m.window
}

func (m *Monitor) adjust() {
	fps := m.smoothedFPS()
	prev := m.params
	next := prev

	switch {
	case fps < m.lowWaterFPS:
		next.RenderDistance -= m.bounds.RenderDistanceStep
		next.MaxObjectsPerChunk -= m.bounds.MaxObjectsPerChunkStep

	case fps > m.highWaterFPS:
		next.RenderDistance += m.bounds.RenderDistanceStep
		next.MaxObjectsPerChunk += m.bounds.MaxObjectsPerChunkStep

	default:
		return
	}

	next = m.bounds.Clamp(next)
	m.sinceAdjust = 0
	if next == prev {
		return
	}

	m.params = next
	m.adjustments++
	if m.onAdjustment != nil {
		m.onAdjustment(prev, next, fps)
	}
}

// SmoothedFPS returns the frame rate averaged over the window, or 0 when no
// interval has been recorded yet.
func (m *Monitor) SmoothedFPS() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.smoothedFPS()
}

func (m *Monitor) smoothedFPS() float64 {
	if len(m.intervals) == 0 {
		return 0
	}

	mean := stat.Mean(m.intervals, nil)
	if mean <= 0 {
		return 0
	}
	return 1000 / mean
}

// Samples returns the number of intervals currently in the window.
func (m *Monitor) Samples() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.intervals)
}

func (m *Monitor) CurrentParams() Params {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.params
}

// SetParams overrides the current parameters, clamped to the bounds, and
// restarts the stabilization count.
func (m *Monitor) SetParams(p Params) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.params = m.bounds.Clamp(p)
	m.sinceAdjust = 0
}

// SetFrozen suspends or resumes frame rate driven adjustments. Samples are
// still recorded while frozen.
func (m *Monitor) SetFrozen(frozen bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.frozen = frozen
	m.sinceAdjust = 0
}

// Adjustments returns how many frame rate driven adjustments happened.
func (m *Monitor) Adjustments() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.adjustments
}

func (m *Monitor) Bounds() Bounds {
	return m.bounds
}
