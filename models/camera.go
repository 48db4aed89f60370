package models

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Camera is a snapshot of the viewer sampled once per evaluation.
type Camera struct {
	Position   r3.Vector
	Projection mgl64.Mat4
	View       mgl64.Mat4
}

// NewPerspectiveCamera returns a camera located at position and looking at
// target, with a vertical field of view in degrees.
func NewPerspectiveCamera(position, target r3.Vector, fovY, aspect, near, far float64) *Camera {
	eye := mgl64.Vec3{position.X, position.Y, position.Z}
	center := mgl64.Vec3{target.X, target.Y, target.Z}

	return &Camera{
		Position:   position,
		Projection: mgl64.Perspective(mgl64.DegToRad(fovY), aspect, near, far),
		View:       mgl64.LookAtV(eye, center, mgl64.Vec3{0, 1, 0}),
	}
}

// ViewProjection returns the combined projection * view matrix.
func (c *Camera) ViewProjection() mgl64.Mat4 {
	return c.Projection.Mul4(c.View)
}

// DistanceTo returns the distance between the camera and p.
func (c *Camera) DistanceTo(p r3.Vector) float64 {
	return c.Position.Distance(p)
}
