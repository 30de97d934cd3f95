package spindle

import "math"

// Vec3 is a position or direction in physical units (microns for TrackMate
// exports). Value semantics throughout; none of these methods mutate.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func NewVec3(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Mid returns the midpoint between v and o.
func (v Vec3) Mid(o Vec3) Vec3 {
	return Vec3{X: (v.X + o.X) / 2, Y: (v.Y + o.Y) / 2, Z: (v.Z + o.Z) / 2}
}

// Length returns the Euclidean norm of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Length()
}

// Normalize returns the unit vector in the direction of v. A zero-length
// input returns the zero vector rather than dividing by zero; callers treat
// that as a degenerate normal, not an error.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{X: v.X / l, Y: v.Y / l, Z: v.Z / l}
}
