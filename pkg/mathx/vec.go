// pkg/mathx/vec.go
package mathx

import "math"

// Vec3 is a 3D vector of float64 components. The frame it lives in
// (ENU world, sim world, or body) is determined by context.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
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

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) NormSq() float64 {
	return v.Dot(v)
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.NormSq())
}

// Normalized returns the unit vector, or the zero vector when the
// magnitude is too small to divide by.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n < 1e-12 {
		return Vec3{}
	}
	inv := 1.0 / n
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

// ClampMagnitude rescales the vector to maxMag when it is longer,
// preserving direction.
func (v Vec3) ClampMagnitude(maxMag float64) Vec3 {
	if maxMag <= 0 {
		return Vec3{}
	}
	nsq := v.NormSq()
	if nsq <= maxMag*maxMag {
		return v
	}
	return v.Normalized().Scale(maxMag)
}

// Lerp linearly interpolates between a and b by t (not clamped).
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// IsFinite reports whether all components are finite numbers.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to the range [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}
