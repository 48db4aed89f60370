package models

import (
	"math"

	"github.com/golang/geo/r3"
)

// Object represents something the visibility core can index: a stable
// identifier, a world position and a weight used to size its bounding volume.
type Object struct {
	ID       string
	Position r3.Vector
	Weight   float64
}

// Valid reports whether the object can be indexed.
func (o Object) Valid() bool {
	return o.ID != "" && IsFinite(o.Position)
}

// IsFinite reports whether all the vector components are finite numbers.
func IsFinite(v r3.Vector) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// ObjectsFromPositions zips ids, positions and weights into objects. Missing
// weights default to 1.
func ObjectsFromPositions(ids []string, positions []r3.Vector, weights []float64) []Object {
	n := len(ids)
	if len(positions) < n {
		n = len(positions)
	}

	objects := make([]Object, n)
	for i := 0; i < n; i++ {
		weight := 1.0
		if i < len(weights) {
			weight = weights[i]
		}

		objects[i] = Object{
			ID:       ids[i],
			Position: positions[i],
			Weight:   weight,
		}
	}
	return objects
}
