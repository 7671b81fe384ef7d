// Package comp provides the standard components shipped with the engine and
// the systems operating on them.
package comp

import "github.com/go-gl/mathgl/mgl64"

// Transform places an entity in world space through translation, rotation and
// scale.
type Transform struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3
}

// NewTransform returns an identity transform.
func NewTransform() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// At returns an identity transform at the given position.
func At(pos mgl64.Vec3) Transform {
	t := NewTransform()
	t.Translation = pos
	return t
}

// Mat4 composes the transform into a single matrix, applying scale first,
// then rotation, then translation.
func (t Transform) Mat4() mgl64.Mat4 {
	return mgl64.Translate3D(t.Translation.X(), t.Translation.Y(), t.Translation.Z()).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl64.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// Velocity is the linear and angular velocity of an entity, in units and
// radians per second.
type Velocity struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}
