package perf

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func feed(m *Monitor, clk *clock.Mock, frames int, interval time.Duration) {
	for i := 0; i < frames; i++ {
		clk.Add(interval)
		m.Sample(clk.Now())
	}
}

func TestMonitorSmoothedFPS(t *testing.T) {
	t.Run("no interval yet", func(t *testing.T) {
		m := NewMonitor(MonitorOptions{})
		require.Zero(t, m.SmoothedFPS())

		m.SampleMillis(1000)
		require.Zero(t, m.SmoothedFPS())
	})

	t.Run("average over the window", func(t *testing.T) {
		m := NewMonitor(MonitorOptions{StabilizationCount: 1000})
		m.SampleMillis(0)
		m.SampleMillis(10)
		m.SampleMillis(40)
		require.InDelta(t, 1000.0/20, m.SmoothedFPS(), 1e-9)
	})

	t.Run("oldest samples are evicted", func(t *testing.T) {
		clk := clock.NewMock()
		m := NewMonitor(MonitorOptions{Window: 4, StabilizationCount: 1000})
		m.Sample(clk.Now())

		feed(m, clk, 10, 100*time.Millisecond)
		require.Equal(t, 4, m.Samples())
		require.InDelta(t, 10, m.SmoothedFPS(), 1e-9)

		feed(m, clk, 4, 20*time.Millisecond)
		require.Equal(t, 4, m.Samples())
		require.InDelta(t, 50, m.SmoothedFPS(), 1e-9)
	})

	t.Run("backwards and duplicated timestamps are ignored", func(t *testing.T) {
		m := NewMonitor(MonitorOptions{StabilizationCount: 1000})
		m.SampleMillis(100)
		m.SampleMillis(100)
		m.SampleMillis(50)
		require.Zero(t, m.Samples())

		m.SampleMillis(125)
		require.Equal(t, 1, m.Samples())
		require.InDelta(t, 40, m.SmoothedFPS(), 1e-9)
	})
}

func TestMonitorAdjustments(t *testing.T) {
	bounds := Bounds{
		Min:                    Params{RenderDistance: 1, MaxObjectsPerChunk: 10},
		Max:                    Params{RenderDistance: 6, MaxObjectsPerChunk: 100},
		RenderDistanceStep:     1,
		MaxObjectsPerChunkStep: 10,
	}
	initial := Params{RenderDistance: 4, MaxObjectsPerChunk: 50}

	newMonitor := func() (*Monitor, *clock.Mock) {
		clk := clock.NewMock()
		m := NewMonitor(MonitorOptions{
			Window:             10,
			StabilizationCount: 10,
			Bounds:             bounds,
			Initial:            initial,
		})
		m.Sample(clk.Now())
		return m, clk
	}

	t.Run("no adjustment before the stabilization count", func(t *testing.T) {
		m, clk := newMonitor()
		feed(m, clk, 9, 50*time.Millisecond)
		require.Equal(t, initial, m.CurrentParams())
	})

	t.Run("low frame rate decreases by exactly one step", func(t *testing.T) {
		m, clk := newMonitor()
		feed(m, clk, 10, 50*time.Millisecond)
		require.Equal(t, Params{RenderDistance: 3, MaxObjectsPerChunk: 40}, m.CurrentParams())

		feed(m, clk, 5, 50*time.Millisecond)
		require.Equal(t, Params{RenderDistance: 3, MaxObjectsPerChunk: 40}, m.CurrentParams())
		require.Equal(t, 1, m.Adjustments())
	})

	t.Run("sustained low frame rate keeps stepping down to the bounds", func(t *testing.T) {
		m, clk := newMonitor()
		feed(m, clk, 100, 50*time.Millisecond)
		require.Equal(t, bounds.Min, m.CurrentParams())
	})

	t.Run("high frame rate increases by one step", func(t *testing.T) {
		m, clk := newMonitor()
		feed(m, clk, 10, 10*time.Millisecond)
		require.Equal(t, Params{RenderDistance: 5, MaxObjectsPerChunk: 60}, m.CurrentParams())
	})

	t.Run("neutral frame rate keeps the parameters", func(t *testing.T) {
		m, clk := newMonitor()
		feed(m, clk, 50, 25*time.Millisecond)
		require.Equal(t, initial, m.CurrentParams())
		require.Zero(t, m.Adjustments())
	})

	t.Run("frozen monitor does not adjust", func(t *testing.T) {
		m, clk := newMonitor()
		m.SetFrozen(true)
		feed(m, clk, 30, 50*time.Millisecond)
		require.Equal(t, initial, m.CurrentParams())

		m.SetFrozen(false)
		feed(m, clk, 10, 50*time.Millisecond)
		require.Equal(t, Params{RenderDistance: 3, MaxObjectsPerChunk: 40}, m.CurrentParams())
	})

	t.Run("adjustment callback", func(t *testing.T) {
		m, clk := newMonitor()

		var prev, next Params
		var fps float64
		m.OnAdjustment(func(p, n Params, f float64) {
			prev, next, fps = p, n, f
		})

		feed(m, clk, 10, 50*time.Millisecond)
		require.Equal(t, initial, prev)
		require.Equal(t, m.CurrentParams(), next)
		require.InDelta(t, 20, fps, 1e-9)
	})
}

func TestMonitorSetParamsIsClamped(t *testing.T) {
	m := NewMonitor(MonitorOptions{})
	require.Equal(t, DefaultBounds().Min, m.CurrentParams())

	m.SetParams(Params{RenderDistance: 100, MaxObjectsPerChunk: -5})
	require.Equal(t, Params{RenderDistance: 4, MaxObjectsPerChunk: 30}, m.CurrentParams())
}
