// Package geom holds the 2D math used by collision, physics and rendering.
// Coordinates are screen-style: y grows downward.
package geom

import "math"

// Epsilon is the tolerance used for float comparisons across the engine.
const Epsilon = 1e-3

// Vector2 is a point or displacement.
type Vector2 struct {
	X, Y float32
}

func Vec(x, y float32) Vector2 { return Vector2{X: x, Y: y} }

func (v Vector2) Add(o Vector2) Vector2 { return Vector2{v.X + o.X, v.Y + o.Y} }
func (v Vector2) Sub(o Vector2) Vector2 { return Vector2{v.X - o.X, v.Y - o.Y} }
func (v Vector2) Scale(s float32) Vector2 { return Vector2{v.X * s, v.Y * s} }
func (v Vector2) Mul(o Vector2) Vector2 { return Vector2{v.X * o.X, v.Y * o.Y} }
func (v Vector2) Neg() Vector2 { return Vector2{-v.X, -v.Y} }
func (v Vector2) Dot(o Vector2) float32 { return v.X*o.X + v.Y*o.Y }
func (v Vector2) Cross(o Vector2) float32 { return v.X*o.Y - v.Y*o.X }
func (v Vector2) MagnitudeSq() float32 { return v.X*v.X + v.Y*v.Y }
func (v Vector2) Magnitude() float32 { return float32(math.Sqrt(float64(v.MagnitudeSq()))) }
func (v Vector2) IsZero() bool { return v.X == 0 && v.Y == 0 }
func (v Vector2) Rotated90CW() Vector2 { return Vector2{v.Y, -v.X} }
func (v Vector2) Rotated90CCW() Vector2 { return Vector2{-v.Y, v.X} }
func (v Vector2) DistanceSq(o Vector2) float32 { return v.Sub(o).MagnitudeSq() }

// Normalized returns the unit vector in the direction of v, or zero for a
// zero vector.
func (v Vector2) Normalized() Vector2 {
	m := v.Magnitude()
	if m == 0 {
		return Vector2{}
	}
	return Vector2{v.X / m, v.Y / m}
}

// Rotated rotates v by angle radians.
func (v Vector2) Rotated(angle float32) Vector2 {
	s, c := math.Sincos(float64(angle))
	sf, cf := float32(s), float32(c)
	return Vector2{v.X*cf - v.Y*sf, v.X*sf + v.Y*cf}
}

// Project returns the scalar projection of v onto axis.
func (v Vector2) Project(axis Vector2) float32 {
	m := axis.Magnitude()
	if m == 0 {
		return 0
	}
	return v.Dot(axis) / m
}

// Clamp limits each component to the matching range of box.
func (v Vector2) Clamp(box AABB) Vector2 {
	return Vector2{Clamp(v.X, box.Left, box.Right), Clamp(v.Y, box.Top, box.Bottom)}
}

// ApproxEqual compares component-wise within Epsilon.
func (v Vector2) ApproxEqual(o Vector2) bool {
	return NearlyEqual(v.X, o.X) && NearlyEqual(v.Y, o.Y)
}

func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func NearlyEqual(a, b float32) bool {
	d := a - b
	return d < Epsilon && d > -Epsilon
}

func Abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// Sign returns -1, 0 or 1.
func Sign(x float32) float32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func Sqrt(x float32) float32 { return float32(math.Sqrt(float64(x))) }
