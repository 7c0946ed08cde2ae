// Package frame converts between the external East-North-Up convention
// used by recorded episodes and the remote policy protocol, and the
// internal simulation frame.
//
// The mapping is a pure axis permutation: sim-X = ENU east, sim-Y =
// ENU up, sim-Z = ENU north. It is its own inverse, so round trips are
// exact for all finite vectors.
package frame

import (
	"math"

	"github.com/hlynr/interceptor/pkg/mathx"
)

// Body axes in the sim frame: +X right, +Y up, +Z forward.
var (
	BodyRight   = mathx.Vec3{X: 1}
	BodyUp      = mathx.Vec3{Y: 1}
	BodyForward = mathx.Vec3{Z: 1}
)

// ENU basis axes.
var (
	enuEast  = mathx.Vec3{X: 1}
	enuNorth = mathx.Vec3{Y: 1}
	enuUp    = mathx.Vec3{Z: 1}
)

// ToSim maps an ENU vector into the sim frame.
func ToSim(v mathx.Vec3) mathx.Vec3 {
	return mathx.Vec3{X: v.X, Y: v.Z, Z: v.Y}
}

// ToENU maps a sim-frame vector back to ENU. Exact inverse of ToSim.
func ToENU(v mathx.Vec3) mathx.Vec3 {
	return mathx.Vec3{X: v.X, Y: v.Z, Z: v.Y}
}

// QuatFromBasis builds a unit quaternion from three approximately
// orthonormal axis vectors, treated as the columns (right, up, forward)
// of a rotation matrix. Branch selection follows the largest of the
// trace and the three diagonal terms to avoid cancellation. The result
// is re-normalized.
func QuatFromBasis(right, up, forward mathx.Vec3) mathx.Quat {
	m00, m01, m02 := right.X, up.X, forward.X
	m10, m11, m12 := right.Y, up.Y, forward.Y
	m20, m21, m22 := right.Z, up.Z, forward.Z

	trace := m00 + m11 + m22

	var q mathx.Quat
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = mathx.Quat{
			W: 0.25 * s,
			X: (m21 - m12) / s,
			Y: (m02 - m20) / s,
			Z: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = mathx.Quat{
			W: (m21 - m12) / s,
			X: 0.25 * s,
			Y: (m01 + m10) / s,
			Z: (m02 + m20) / s,
		}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = mathx.Quat{
			W: (m02 - m20) / s,
			X: (m01 + m10) / s,
			Y: 0.25 * s,
			Z: (m12 + m21) / s,
		}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = mathx.Quat{
			W: (m10 - m01) / s,
			X: (m02 + m20) / s,
			Y: (m12 + m21) / s,
			Z: 0.25 * s,
		}
	}
	return q.Sanitized()
}

// WorldToBodyToSim bridges an externally recorded attitude into the
// internal rotation convention. The input is an ENU world-to-body
// quaternion in [w,x,y,z] order; the result rotates body axes into the
// sim world frame. Degenerate input yields identity.
func WorldToBodyToSim(w, x, y, z float64) mathx.Quat {
	q := mathx.Quat{W: w, X: x, Y: y, Z: z}.Sanitized()

	// Conjugate to body->world, rotate the ENU basis, then express each
	// rotated axis in the sim frame.
	bodyToWorld := q.Conjugate()
	right := ToSim(bodyToWorld.Rotate(enuEast))
	up := ToSim(bodyToWorld.Rotate(enuUp))
	forward := ToSim(bodyToWorld.Rotate(enuNorth))

	return QuatFromBasis(right, up, forward)
}

// SimOrientation sanitizes a recorded ENU quaternion and converts it
// into the sim frame convention.
func SimOrientation(q mathx.Quat) mathx.Quat {
	return WorldToBodyToSim(q.W, q.X, q.Y, q.Z)
}

// LookRotation builds the sim-frame orientation whose forward axis
// points along dir, keeping up as close to world up as possible. A
// degenerate direction yields identity; a direction parallel to up
// falls back to world forward as the up hint.
func LookRotation(dir mathx.Vec3) mathx.Quat {
	forward := dir.Normalized()
	if forward == (mathx.Vec3{}) {
		return mathx.QuatIdentity()
	}
	upHint := mathx.Vec3{Y: 1}
	if math.Abs(forward.Dot(upHint)) > 0.999 {
		upHint = mathx.Vec3{Z: 1}
	}
	right := upHint.Cross(forward).Normalized()
	up := forward.Cross(right)
	return QuatFromBasis(right, up, forward)
}
