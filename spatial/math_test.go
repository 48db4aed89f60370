package spatial

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestEqualWithEpsilon(t *testing.T) {
	require.True(t, EqualWithEpsilon(0.1, 0.2, 0.11))
	require.False(t, EqualWithEpsilon(0.1, 0.3, 0.11))
	require.True(t, VectorsEqualWithEpsilon(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 0.9, Y: 1.1, Z: 1}, 0.11))
}

func TestSphereForWeight(t *testing.T) {
	center := r3.Vector{X: 1, Y: 2, Z: 3}

	t.Run("radius grows with the square root of the weight", func(t *testing.T) {
		s := SphereForWeight(center, 16, 2, 20)
		require.Equal(t, center, s.Center)
		require.Equal(t, 8.0, s.Radius)
	})

	t.Run("radius is capped", func(t *testing.T) {
		s := SphereForWeight(center, 10000, 2, 20)
		require.Equal(t, 20.0, s.Radius)
	})

	t.Run("negative weight yields an empty radius", func(t *testing.T) {
		s := SphereForWeight(center, -4, 2, 20)
		require.Zero(t, s.Radius)
	})
}

func TestChunkKey(t *testing.T) {
	t.Run("floor division per axis", func(t *testing.T) {
		k := ChunkKeyOf(r3.Vector{X: 10, Y: -10, Z: 600}, 250)
		require.Equal(t, ChunkKey{X: 0, Y: -1, Z: 2}, k)
	})

	t.Run("default chunk size", func(t *testing.T) {
		k := ChunkKeyOf(r3.Vector{X: 251, Y: 0, Z: 0}, 0)
		require.Equal(t, ChunkKey{X: 1}, k)
	})

	t.Run("string round trip", func(t *testing.T) {
		k := ChunkKey{X: -3, Y: 0, Z: 12}
		require.Equal(t, "-3,0,12", k.String())

		parsed, err := ParseChunkKey(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	})

	t.Run("invalid keys", func(t *testing.T) {
		_, err := ParseChunkKey("1,2")
		require.Error(t, err)

		_, err = ParseChunkKey("1,b,2")
		require.Error(t, err)
	})

	t.Run("center and bounding sphere", func(t *testing.T) {
		k := ChunkKey{X: 1, Y: 2, Z: 3}
		require.Equal(t, r3.Vector{X: 15, Y: 25, Z: 35}, k.Center(10))

		s := k.BoundingSphere(10)
		require.InDelta(t, 10*math.Sqrt(3)/2, s.Radius, 1e-9)
	})

	t.Run("sort", func(t *testing.T) {
		keys := []ChunkKey{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {-1, 5, 5}}
		SortChunkKeys(keys)
		require.Equal(t, []ChunkKey{{-1, 5, 5}, {0, 0, 1}, {0, 1, 0}, {1, 0, 0}}, keys)
	})
}

func TestFrustum(t *testing.T) {
	eye := mgl64.Vec3{0, 0, 0}
	projection := mgl64.Perspective(mgl64.DegToRad(60), 1, 0.1, 1000)
	view := mgl64.LookAtV(eye, mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, 1, 0})
	f := NewFrustum(projection.Mul4(view))

	t.Run("point in front is contained", func(t *testing.T) {
		require.True(t, f.ContainsPoint(r3.Vector{Z: -10}))
	})

	t.Run("point behind is not contained", func(t *testing.T) {
		require.False(t, f.ContainsPoint(r3.Vector{Z: 10}))
	})

	t.Run("point beyond far plane is not contained", func(t *testing.T) {
		require.False(t, f.ContainsPoint(r3.Vector{Z: -2000}))
	})

	t.Run("sphere straddling a plane intersects", func(t *testing.T) {
		require.True(t, f.IntersectsSphere(Sphere{Center: r3.Vector{Z: 5}, Radius: 6}))
		require.False(t, f.IntersectsSphere(Sphere{Center: r3.Vector{Z: 5}, Radius: 1}))
	})

	t.Run("planes are normalized", func(t *testing.T) {
		for _, p := range f.Planes {
			require.InDelta(t, 1, p.Normal.Norm(), 1e-9)
		}
	})
}
