package lod

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTierString(t *testing.T) {
	require.Equal(t, "LOW", Low.String())
	require.Equal(t, "MEDIUM", Medium.String())
	require.Equal(t, "HIGH", High.String())
	require.Equal(t, "UNKNOWN", Tier(42).String())
	require.True(t, Low < Medium && Medium < High)
}

func TestPolicyTierFor(t *testing.T) {
	p := NewPolicy(1000)

	t.Run("base tiers at a neutral frame rate", func(t *testing.T) {
		require.Equal(t, High, p.TierFor(0, 45, false))
		require.Equal(t, High, p.TierFor(500, 45, false))
		require.Equal(t, Medium, p.TierFor(501, 45, false))
		require.Equal(t, Medium, p.TierFor(800, 45, false))
		require.Equal(t, Low, p.TierFor(801, 45, false))
	})

	t.Run("low frame rate drops one tier", func(t *testing.T) {
		require.Equal(t, Medium, p.TierFor(100, 20, false))
		require.Equal(t, Low, p.TierFor(600, 20, false))
		require.Equal(t, Low, p.TierFor(900, 20, false))
	})

	t.Run("high frame rate raises one tier", func(t *testing.T) {
		require.Equal(t, High, p.TierFor(100, 60, false))
		require.Equal(t, High, p.TierFor(600, 60, false))
		require.Equal(t, Medium, p.TierFor(900, 60, false))
	})

	t.Run("water marks are exclusive", func(t *testing.T) {
		require.Equal(t, Medium, p.TierFor(600, 30, false))
		require.Equal(t, Medium, p.TierFor(600, 55, false))
	})

	t.Run("warm up forces the highest tier", func(t *testing.T) {
		for _, d := range []float64{0, 10, 700, 5000, math.Inf(1)} {
			require.Equal(t, High, p.TierFor(d, 60, true))
			require.Equal(t, High, p.TierFor(d, 5, true))
		}
	})

	t.Run("invalid distances", func(t *testing.T) {
		require.Equal(t, Low, p.TierFor(math.NaN(), 45, false))
		require.Equal(t, Low, p.TierFor(math.Inf(1), 45, false))
		require.Equal(t, High, p.TierFor(-10, 45, false))
	})
}

func TestPolicyIsPure(t *testing.T) {
	p := NewPolicy(1000)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 1000; i++ {
		d := r.Float64() * 1500
		fps := r.Float64() * 120

		first := p.TierFor(d, fps, false)
		second := p.TierFor(d, fps, false)
		require.Equal(t, first, second)
		require.GreaterOrEqual(t, first, Low)
		require.LessOrEqual(t, first, High)
	}
}
