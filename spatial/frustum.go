package spatial

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum is the camera's visible volume as six inward facing planes.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts the frustum planes from a combined view-projection
// matrix (Gribb/Hartmann).
func NewFrustum(viewProjection mgl64.Mat4) Frustum {
	r0 := viewProjection.Row(0)
	r1 := viewProjection.Row(1)
	r2 := viewProjection.Row(2)
	r3w := viewProjection.Row(3)

	var f Frustum
	f.Planes[PlaneLeft] = planeFromVec4(r3w.Add(r0))
	f.Planes[PlaneRight] = planeFromVec4(r3w.Sub(r0))
	f.Planes[PlaneBottom] = planeFromVec4(r3w.Add(r1))
	f.Planes[PlaneTop] = planeFromVec4(r3w.Sub(r1))
	f.Planes[PlaneNear] = planeFromVec4(r3w.Add(r2))
	f.Planes[PlaneFar] = planeFromVec4(r3w.Sub(r2))
	return f
}

func planeFromVec4(v mgl64.Vec4) Plane {
	return Plane{
		Normal: r3.Vector{X: v[0], Y: v[1], Z: v[2]},
		D:      v[3],
	}.normalized()
}

func (f Frustum) ContainsPoint(p r3.Vector) bool {
	for _, plane := range f.Planes {
		if plane.Distance(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether the sphere is at least partially inside
// the frustum. Spheres near frustum corners can yield false positives.
func (f Frustum) IntersectsSphere(s Sphere) bool {
	for _, plane := range f.Planes {
		if plane.Distance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}
