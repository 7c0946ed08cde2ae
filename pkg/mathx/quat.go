// pkg/mathx/quat.go
package mathx

import "math"

// Quat is a rotation quaternion in [w, x, y, z] order. A valid Quat is
// unit-normalized; use Sanitized at component boundaries to enforce that.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// QuatIdentity is the no-rotation quaternion.
func QuatIdentity() Quat {
	return Quat{W: 1}
}

func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// IsValid reports whether the quaternion has finite components and a
// magnitude large enough to normalize.
func (q Quat) IsValid() bool {
	for _, c := range [4]float64{q.W, q.X, q.Y, q.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return q.Norm() > 1e-9
}

// Normalized returns the unit quaternion, or identity when degenerate.
func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n < 1e-9 {
		return QuatIdentity()
	}
	inv := 1.0 / n
	return Quat{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// Sanitized replaces a NaN/Inf-containing or near-zero quaternion with
// identity and unit-normalizes everything else.
func (q Quat) Sanitized() Quat {
	if !q.IsValid() {
		return QuatIdentity()
	}
	return q.Normalized()
}

// Conjugate returns the inverse rotation for a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Mul returns the Hamilton product q*o (apply o first, then q).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Rotate applies the rotation to v: v' = q v q*.
func (q Quat) Rotate(v Vec3) Vec3 {
	// q v q* expanded via t = 2 (q.xyz x v)
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// RotateInverse applies the inverse rotation to v.
func (q Quat) RotateInverse(v Vec3) Vec3 {
	return q.Conjugate().Rotate(v)
}

// QuatFromAxisAngle builds a unit quaternion rotating by angle radians
// around axis. A degenerate axis yields identity.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	a := axis.Normalized()
	if a == (Vec3{}) {
		return QuatIdentity()
	}
	half := angle * 0.5
	s := math.Sin(half)
	return Quat{
		W: math.Cos(half),
		X: a.X * s,
		Y: a.Y * s,
		Z: a.Z * s,
	}
}

// Dot returns the 4D dot product of two quaternions.
func (q Quat) Dot(o Quat) float64 {
	return q.W*o.W + q.X*o.X + q.Y*o.Y + q.Z*o.Z
}

// Slerp spherically interpolates between unit quaternions a and b by
// t in [0,1], taking the shortest arc. Nearly parallel inputs fall back
// to normalized linear interpolation to avoid division by a tiny sine.
func Slerp(a, b Quat, t float64) Quat {
	d := a.Dot(b)
	if d < 0 {
		b = Quat{-b.W, -b.X, -b.Y, -b.Z}
		d = -d
	}
	if d > 0.9995 {
		return Quat{
			W: a.W + (b.W-a.W)*t,
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
		}.Normalized()
	}
	theta := math.Acos(Clamp(d, -1, 1))
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta
	return Quat{
		W: wa*a.W + wb*b.W,
		X: wa*a.X + wb*b.X,
		Y: wa*a.Y + wb*b.Y,
		Z: wa*a.Z + wb*b.Z,
	}.Normalized()
}
