package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func VectorsEqualWithEpsilon(a r3.Vector, b r3.Vector, epsilon float64) bool {
	return EqualWithEpsilon(a.X, b.X, epsilon) &&
		EqualWithEpsilon(a.Y, b.Y, epsilon) &&
		EqualWithEpsilon(a.Z, b.Z, epsilon)
}

// Sphere is the bounding volume used for both chunks and objects.
type Sphere struct {
	Center r3.Vector
	Radius float64
}

// SphereForWeight returns the bounding sphere of an object: the radius grows
// with the square root of the weight and is capped at maxRadius.
func SphereForWeight(center r3.Vector, weight float64, scale float64, maxRadius float64) Sphere {
	if weight < 0 || math.IsNaN(weight) {
		weight = 0
	}

	radius := math.Sqrt(weight) * scale
	if radius > maxRadius {
		radius = maxRadius
	}

	return Sphere{
		Center: center,
		Radius: radius,
	}
}

// Plane is defined by Normal.p + D = 0. Points with a positive distance are
// in front of the plane.
type Plane struct {
	Normal r3.Vector
	D      float64
}

func (p Plane) Distance(v r3.Vector) float64 {
	return p.Normal.Dot(v) + p.D
}

func (p Plane) normalized() Plane {
	length := p.Normal.Norm()
	if length == 0 {
		return p
	}

	return Plane{
		Normal: p.Normal.Mul(1 / length),
		D:      p.D / length,
	}
}
