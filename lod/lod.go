package lod

import "math"

// Tier is a discrete detail level. Higher is more detailed.
type Tier int

const (
	Low Tier = iota
	Medium
	High
)

func (t Tier) String() string {
	switch t {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t Tier) clamp() Tier {
	if t < Low {
		return Low
	}
	if t > High {
		return High
	}
	return t
}

const (
	DefaultHighFraction   = 0.5
	DefaultMediumFraction = 0.8
	DefaultLowWaterFPS    = 30
	DefaultHighWaterFPS   = 55
)

// Policy maps a distance and a frame rate to a tier. It holds no state and
// can be copied freely.
type Policy struct {
	// The distance beyond which nothing is rendered. Thresholds are fractions
	// of it.
	MaxRenderRadius float64

	// Objects closer than HighFraction * MaxRenderRadius are High, closer
	// than MediumFraction * MaxRenderRadius are Medium, the rest Low.
	HighFraction   float64
	MediumFraction float64

	// Below LowWaterFPS tiers drop by one, above HighWaterFPS they rise by
	// one.
	LowWaterFPS  float64
	HighWaterFPS float64
}

// NewPolicy returns a policy with default thresholds and water marks.
func NewPolicy(maxRenderRadius float64) Policy {
	return Policy{
		MaxRenderRadius: maxRenderRadius,
		HighFraction:    DefaultHighFraction,
		MediumFraction:  DefaultMediumFraction,
		LowWaterFPS:     DefaultLowWaterFPS,
		HighWaterFPS:    DefaultHighWaterFPS,
	}
}

// TierFor returns the tier for an object at distance from the camera given
// the current smoothed frame rate.
func (p Policy) TierFor(distance, fps float64, warmupActive bool) Tier {
	if warmupActive {
		return High
	}

	tier := p.baseTier(distance)

	switch {
	case fps < p.LowWaterFPS:
		tier--
	case fps > p.HighWaterFPS && tier != High:
		tier++
	}
	return tier.clamp()
}

func (p Policy) baseTier(distance float64) Tier {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return Low
	}
	if distance < 0 {
		distance = 0
	}

	switch {
	case distance <= p.HighFraction*p.MaxRenderRadius:
		return High
	case distance <= p.MediumFraction*p.MaxRenderRadius:
		return Medium
	default:
		return Low
	}
}
