// Package vec provides the small 3D vector type shared by the simulation.
// The Y axis points up; the court lies in the X/Z plane.
package vec

import "math"

// Vec3 is a position or velocity in world space (meters, meters/second)
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Up is the unit vertical vector
var Up = Vec3{Y: 1}

// New builds a Vec3
func New(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Len returns the euclidean length
func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector, or zero for a zero-length input
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Planar drops the vertical component
func (v Vec3) Planar() Vec3 {
	return Vec3{X: v.X, Z: v.Z}
}

// PlanarLen is the length of the X/Z projection
func (v Vec3) PlanarLen() float64 {
	return math.Hypot(v.X, v.Z)
}

// PlanarDist is the X/Z distance between two points
func PlanarDist(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// WithY returns v with its height replaced
func (v Vec3) WithY(y float64) Vec3 {
	v.Y = y
	return v
}

// IsFinite reports whether every component is a real number
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Yaw returns the heading of the planar direction in radians (0 = +Z)
func (v Vec3) Yaw() float64 {
	return math.Atan2(v.X, v.Z)
}

// MoveTowards steps current toward target by at most maxDelta
func MoveTowards(current, target Vec3, maxDelta float64) Vec3 {
	d := target.Sub(current)
	dist := d.Len()
	if dist <= maxDelta || dist < 1e-9 {
		return target
	}
	return current.Add(d.Scale(maxDelta / dist))
}
