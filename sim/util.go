package sim

import "math"

// Vec is a 2D vector in canvas space (y grows downward).
type Vec struct {
	X, Y float64
}

func (v Vec) Add(o Vec) Vec       { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec       { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(s float64) Vec { return Vec{v.X * s, v.Y * s} }
func (v Vec) LenSq() float64      { return v.X*v.X + v.Y*v.Y }
func (v Vec) Len() float64        { return math.Sqrt(v.LenSq()) }

// Norm returns the unit vector, or the zero vector for a zero input.
func (v Vec) Norm() Vec {
	l := v.Len()
	if l == 0 {
		return Vec{}
	}
	return Vec{v.X / l, v.Y / l}
}

// ClampLen limits the vector length to limit.
func (v Vec) ClampLen(limit float64) Vec {
	l := v.Len()
	if l > limit && l > 0 {
		return v.Scale(limit / l)
	}
	return v
}

// Lerp interpolates between a and b.
func Lerp(a, b Vec, t float64) Vec {
	return Vec{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

// Clamp keeps v inside [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

// DistanceSq avoids the square root for comparisons.
func DistanceSq(a, b Vec) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}

// Distance is the straight-line gap between a and b.
func Distance(a, b Vec) float64 {
	return math.Sqrt(DistanceSq(a, b))
}

// FromAngle returns a vector of the given length pointing at angle a.
func FromAngle(a, length float64) Vec {
	return Vec{math.Cos(a) * length, math.Sin(a) * length}
}
