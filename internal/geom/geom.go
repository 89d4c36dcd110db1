// Package geom implements the 3-vector and ray arithmetic the rest of
// the ray tracer is built on. Grounded on the original crt geom crate
// for semantics and on the vector-math example repo's linear package
// for Go naming (Dot, Cross, Norm), adapted to value semantics: Vec3
// is Copy-by-value like the original v64, so methods return a new
// Vec3 rather than mutating a receiver in place.
package geom

import "math"

// Vec3 is a 3-tuple of float64s with pointwise arithmetic.
type Vec3 struct {
	X, Y, Z float64
}

// Zero is the additive identity.
var Zero = Vec3{}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Scale returns v * c.
func (v Vec3) Scale(c float64) Vec3 {
	return Vec3{v.X * c, v.Y * c, v.Z * c}
}

// Div returns v / c.
func (v Vec3) Div(c float64) Vec3 {
	r := 1.0 / c
	return v.Scale(r)
}

// Dot returns the dot product v . w.
func Dot(v, w Vec3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Cross returns the cross product v x w.
func Cross(v, w Vec3) Vec3 {
	return Vec3{
		v.Y*w.Z - v.Z*w.Y,
		-(v.X*w.Z - v.Z*w.X),
		v.X*w.Y - v.Y*w.X,
	}
}

// NormSquared returns |v|^2.
func (v Vec3) NormSquared() float64 {
	return Dot(v, v)
}

// Norm returns |v|.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.NormSquared())
}

// Unit returns v normalized to unit length. A zero-length v produces
// a non-finite result; that is the caller's responsibility, same as
// the original.
func (v Vec3) Unit() Vec3 {
	return v.Div(v.Norm())
}

// At returns the i'th axis component, for indexing by split axis
// (0=X, 1=Y, 2=Z).
func (v Vec3) At(axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Ray carries an origin and a unit direction.
type Ray struct {
	origin Vec3
	dir    Vec3
}

// NewRay constructs a ray from an origin and direction, normalizing
// the direction.
func NewRay(origin, dir Vec3) Ray {
	return Ray{origin: origin, dir: dir.Unit()}
}

// RayFromTo constructs a unit ray pointing from from towards to.
func RayFromTo(from, to Vec3) Ray {
	return NewRay(from, to.Sub(from))
}

// Origin returns the ray's origin.
func (r Ray) Origin() Vec3 { return r.origin }

// Dir returns the ray's unit direction.
func (r Ray) Dir() Vec3 { return r.dir }

// At returns the point origin + t*dir.
func (r Ray) At(t float64) Vec3 {
	return r.origin.Add(r.dir.Scale(t))
}
