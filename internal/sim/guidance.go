// internal/sim/guidance.go
package sim

import (
	"math"

	"github.com/hlynr/interceptor/internal/frame"
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// alignedEps is the rotation angle below which guidance considers the
// forward axis already on the line of sight (about 0.01 degrees).
const alignedEps = 0.01 * math.Pi / 180

// ProNav is a pursuit-style proportional navigation law: it commands
// the body rate that rotates the forward axis onto the line of sight
// within a fixed time constant.
type ProNav struct {
	timeToAlign float64
}

// NewProNav creates the guidance law with the given time-to-align
// constant in seconds. Non-positive values fall back to one second.
func NewProNav(timeToAlign float64) *ProNav {
	if timeToAlign <= 0 {
		timeToAlign = 1
	}
	return &ProNav{timeToAlign: timeToAlign}
}

// RateCommand computes the desired body-frame angular rate toward the
// target. The second return is false when guidance is inert this tick:
// no lock, coincident positions, already aligned, or a degenerate
// rotation axis.
func (g *ProNav) RateCommand(own core.Pose, target *mathx.Vec3, locked bool) (mathx.Vec3, bool) {
	if !locked || target == nil {
		return mathx.Vec3{}, false
	}

	losUnit := target.Sub(own.Position).Normalized()
	if losUnit == (mathx.Vec3{}) {
		return mathx.Vec3{}, false
	}

	fwd := own.Orientation.Rotate(frame.BodyForward)

	// Minimal rotation taking the forward axis onto the line of sight.
	axis := fwd.Cross(losUnit)
	angle := math.Atan2(axis.Norm(), mathx.Clamp(fwd.Dot(losUnit), -1, 1))
	if angle < alignedEps {
		return mathx.Vec3{}, false
	}
	axisUnit := axis.Normalized()
	if axisUnit == (mathx.Vec3{}) {
		// Anti-parallel: axis from the cross product vanished.
		return mathx.Vec3{}, false
	}

	worldRate := axisUnit.Scale(angle / g.timeToAlign)
	return own.Orientation.RotateInverse(worldRate), true
}

// DesiredLateralAccel exposes the lateral acceleration implied by a
// rate command at the given speed. Diagnostic only; not part of the
// control loop.
func (g *ProNav) DesiredLateralAccel(bodyRate mathx.Vec3, speed float64) mathx.Vec3 {
	return bodyRate.Cross(frame.BodyForward).Scale(speed)
}
